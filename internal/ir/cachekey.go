package ir

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// Domain prefixes for fingerprints.
// Version suffix enables future algorithm migration.
const (
	DomainForestKey   = "carbonspin/spinup/forest/v1"
	DomainPeatlandKey = "carbonspin/spinup/peatland/v1"
)

// CacheVariant distinguishes the two spin-up sequencers.
type CacheVariant string

const (
	VariantForest   CacheVariant = "forest"
	VariantPeatland CacheVariant = "peatland"
)

// CacheKey fingerprints the inputs that fully determine a spun-up pool vector.
//
// Forest keys use the growth curve id as SurfaceID and the age return
// interval as Interval. Peatland keys use the peatland class as SurfaceID and
// the (capped) fire return interval as Interval.
//
// Two units with equal keys reach identical spun-up pools.
type CacheKey struct {
	Variant               CacheVariant `json:"variant"`
	SpatialUnit           int          `json:"spatial_unit_id"`
	HistoricType          string       `json:"historic_disturbance_type"`
	SurfaceID             int          `json:"surface_id"`
	Interval              int          `json:"interval"`
	MeanAnnualTemperature float64      `json:"mean_annual_temperature"`
}

// ForestKey builds a forest-variant cache key.
func ForestKey(spu int, historic string, curveID, returnInterval int, mat float64) CacheKey {
	return CacheKey{
		Variant:               VariantForest,
		SpatialUnit:           spu,
		HistoricType:          historic,
		SurfaceID:             curveID,
		Interval:              returnInterval,
		MeanAnnualTemperature: mat,
	}
}

// PeatlandKey builds a peatland-variant cache key.
func PeatlandKey(spu int, historic string, peatlandID, fireReturnInterval int, mat float64) CacheKey {
	return CacheKey{
		Variant:               VariantPeatland,
		SpatialUnit:           spu,
		HistoricType:          historic,
		SurfaceID:             peatlandID,
		Interval:              fireReturnInterval,
		MeanAnnualTemperature: mat,
	}
}

// Fingerprint returns the hex SHA-256 of the key's canonical encoding with
// domain separation. Stable across runs, processes and map orderings.
func (k CacheKey) Fingerprint() string {
	domain := DomainForestKey
	if k.Variant == VariantPeatland {
		domain = DomainPeatlandKey
	}
	return hashWithDomain(domain, k.canonical())
}

// canonical produces a fixed-order JSON array of the key fields.
// Strings are NFC normalized; the temperature uses the shortest exact
// decimal so equal float64 values always encode identically.
func (k CacheKey) canonical() []byte {
	var buf bytes.Buffer
	buf.WriteByte('[')
	buf.Write(canonicalString(string(k.Variant)))
	buf.WriteByte(',')
	buf.WriteString(strconv.Itoa(k.SpatialUnit))
	buf.WriteByte(',')
	buf.Write(canonicalString(k.HistoricType))
	buf.WriteByte(',')
	buf.WriteString(strconv.Itoa(k.SurfaceID))
	buf.WriteByte(',')
	buf.WriteString(strconv.Itoa(k.Interval))
	buf.WriteByte(',')
	buf.Write(canonicalString(strconv.FormatFloat(k.MeanAnnualTemperature, 'g', -1, 64)))
	buf.WriteByte(']')
	return buf.Bytes()
}

// canonicalString encodes a JSON string after NFC normalization,
// without HTML escaping.
func canonicalString(s string) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// Encoding a string cannot fail.
	_ = enc.Encode(norm.NFC.String(s))
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'})
}

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
