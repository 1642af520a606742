package disturbance

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/roach88/carbonspin/internal/condition"
	"github.com/roach88/carbonspin/internal/engine"
	"github.com/roach88/carbonspin/internal/ir"
	"github.com/roach88/carbonspin/internal/landunit"
)

//go:embed event_record.schema.json
var eventRecordSchema []byte

const eventRecordSchemaURL = "carbonspin://disturbance/event_record.schema.json"

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

// recordSchema compiles the embedded schema once per process. The compiled
// schema is immutable and shared by every listener.
func recordSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource(eventRecordSchemaURL, bytes.NewReader(eventRecordSchema)); err != nil {
			schemaErr = fmt.Errorf("add event record schema: %w", err)
			return
		}
		compiledSchema, schemaErr = c.Compile(eventRecordSchemaURL)
	})
	return compiledSchema, schemaErr
}

// reserved record keys; every other key becomes event metadata.
var reservedRecordKeys = map[string]bool{
	"year":                  true,
	"disturbance_type":      true,
	"disturbance_type_code": true,
	"transition":            true,
	"conditions":            true,
}

// EventRecord is one typed disturbance event before type resolution.
type EventRecord struct {
	// DisturbanceType is the explicit name, empty when only a code is given.
	DisturbanceType string
	// TypeCode is the explicit code, nil when only a name is given.
	TypeCode   *int
	Year       int
	Transition int
	Conditions []condition.SubCondition
	Metadata   map[string]any
}

// ResolvedEvent is an event with its disturbance type settled, waiting in
// its year's bucket.
type ResolvedEvent struct {
	DisturbanceType string
	Year            int
	Transition      int
	Metadata        map[string]any
	Conditions      []condition.SubCondition
}

// normalizeJSON converts v to the encoding/json decoded form (maps, slices,
// json.Number) that schema validation expects.
func normalizeJSON(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// recordsFromValue validates a layer's value and splits it into records.
// A layer holds one record or a list of records. Any invalid record fails
// the whole layer with a DATA_QUALITY error.
func recordsFromValue(layer string, value any) ([]map[string]any, error) {
	schema, err := recordSchema()
	if err != nil {
		return nil, err
	}

	norm, err := normalizeJSON(value)
	if err != nil {
		return nil, engine.DataQualityError("layer %q: %v", layer, err)
	}

	var items []any
	switch v := norm.(type) {
	case []any:
		items = v
	case map[string]any:
		items = []any{v}
	default:
		return nil, engine.DataQualityError("layer %q: expected a record or list of records, got %T", layer, norm)
	}

	out := make([]map[string]any, 0, len(items))
	for i, item := range items {
		if err := schema.Validate(item); err != nil {
			return nil, engine.DataQualityError("layer %q record %d: %v", layer, i, err)
		}
		out = append(out, item.(map[string]any))
	}
	return out, nil
}

// ParseEventRecord converts one decoded record. Gating conditions that fail
// to parse are CONFIGURATION errors.
func ParseEventRecord(m map[string]any) (EventRecord, error) {
	rec := EventRecord{Transition: ir.NoTransition}

	year, ok := landunit.ToInt(m["year"])
	if !ok {
		return EventRecord{}, engine.DataQualityError("event record year %v is not an integer", m["year"])
	}
	rec.Year = year

	if name, ok := m["disturbance_type"].(string); ok {
		rec.DisturbanceType = name
	}
	if raw, ok := m["disturbance_type_code"]; ok {
		code, ok := landunit.ToInt(raw)
		if !ok {
			return EventRecord{}, engine.DataQualityError("disturbance_type_code %v is not an integer", raw)
		}
		rec.TypeCode = &code
	}
	if raw, ok := m["transition"]; ok {
		tr, ok := landunit.ToInt(raw)
		if !ok {
			return EventRecord{}, engine.DataQualityError("transition %v is not an integer", raw)
		}
		rec.Transition = tr
	}
	if raw, ok := m["conditions"].([]any); ok {
		conds, err := condition.ParseList(raw)
		if err != nil {
			return EventRecord{}, fmt.Errorf("event conditions: %w", err)
		}
		rec.Conditions = conds
	}

	for k, v := range m {
		if reservedRecordKeys[k] {
			continue
		}
		if rec.Metadata == nil {
			rec.Metadata = make(map[string]any)
		}
		rec.Metadata[k] = v
	}
	return rec, nil
}

// ParseEventRecords validates a record or list of records against the event
// record schema and converts each one. source names the value in errors.
func ParseEventRecords(source string, value any) ([]EventRecord, error) {
	records, err := recordsFromValue(source, value)
	if err != nil {
		return nil, err
	}
	out := make([]EventRecord, 0, len(records))
	for _, m := range records {
		rec, err := ParseEventRecord(m)
		if err != nil {
			return nil, fmt.Errorf("layer %q: %w", source, err)
		}
		out = append(out, rec)
	}
	return out, nil
}
