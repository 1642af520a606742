package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/roach88/carbonspin/internal/ir"
)

var (
	codecOnce sync.Once
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	codecErr  error
)

// codecs builds the shared zstd encoder and decoder on first use. Both are
// safe for concurrent EncodeAll/DecodeAll calls.
func codecs() (*zstd.Encoder, *zstd.Decoder, error) {
	codecOnce.Do(func() {
		encoder, codecErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if codecErr != nil {
			codecErr = fmt.Errorf("create zstd encoder: %w", codecErr)
			return
		}
		decoder, codecErr = zstd.NewReader(nil)
		if codecErr != nil {
			codecErr = fmt.Errorf("create zstd decoder: %w", codecErr)
		}
	})
	return encoder, decoder, codecErr
}

// SaveSnapshot stores pool values under the key's fingerprint, replacing
// any earlier snapshot for the same key. Rows are tagged with
// ir.SnapshotVersion.
func (s *Store) SaveSnapshot(ctx context.Context, key ir.CacheKey, values []float64) error {
	blob, err := encodePools(values)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO spinup_snapshots
		(fingerprint, variant, spatial_unit, historic_type, pool_count, encoding, pools)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET
			pool_count = excluded.pool_count,
			encoding = excluded.encoding,
			pools = excluded.pools
	`,
		key.Fingerprint(),
		string(key.Variant),
		key.SpatialUnit,
		key.HistoricType,
		len(values),
		ir.SnapshotVersion,
		blob,
	)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot returns the snapshot stored for key; ok is false when there
// is none or it was written with another snapshot encoding.
func (s *Store) LoadSnapshot(ctx context.Context, key ir.CacheKey) ([]float64, bool, error) {
	var (
		count    int
		encoding string
		blob     []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT pool_count, encoding, pools FROM spinup_snapshots WHERE fingerprint = ?
	`, key.Fingerprint()).Scan(&count, &encoding, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load snapshot: %w", err)
	}
	if encoding != ir.SnapshotVersion {
		return nil, false, nil
	}

	values, err := decodePools(blob)
	if err != nil {
		return nil, false, fmt.Errorf("load snapshot %s: %w", key.Fingerprint(), err)
	}
	if len(values) != count {
		return nil, false, fmt.Errorf("load snapshot %s: %d values, header says %d", key.Fingerprint(), len(values), count)
	}
	return values, true, nil
}

// SnapshotCount returns the number of stored snapshots.
func (s *Store) SnapshotCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM spinup_snapshots`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count snapshots: %w", err)
	}
	return n, nil
}

func encodePools(values []float64) ([]byte, error) {
	enc, _, err := codecs()
	if err != nil {
		return nil, err
	}
	raw := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(raw[8*i:], math.Float64bits(v))
	}
	return enc.EncodeAll(raw, nil), nil
}

func decodePools(blob []byte) ([]float64, error) {
	_, dec, err := codecs()
	if err != nil {
		return nil, err
	}
	raw, err := dec.DecodeAll(blob, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress: %w", err)
	}
	if len(raw)%8 != 0 {
		return nil, fmt.Errorf("pool blob length %d is not a multiple of 8", len(raw))
	}
	values := make([]float64, len(raw)/8)
	for i := range values {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[8*i:]))
	}
	return values, nil
}
