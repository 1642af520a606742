package landunit

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ToFloat converts a loosely-typed numeric value.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// ToInt converts a loosely-typed integral value. Non-integral floats fail.
func ToInt(v any) (int, bool) {
	switch n := v.(type) {
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	case bool:
		return 0, false
	}
	f, ok := ToFloat(v)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

// ToBool converts a loosely-typed flag. Strings "true"/"false" are accepted.
func ToBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		return parsed, err == nil
	}
	f, ok := ToFloat(v)
	if !ok {
		return false, false
	}
	return f != 0, true
}

// ToString converts a scalar to its string form.
func ToString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case nil:
		return "", false
	case fmt.Stringer:
		return s.String(), true
	}
	if f, ok := ToFloat(v); ok {
		return strconv.FormatFloat(f, 'g', -1, 64), true
	}
	return "", false
}

// IntVar reads an integer variable. Missing or empty variables return ok=false.
func (d *Data) IntVar(name string) (int, bool) {
	v, ok := d.Value(name)
	if !ok || v == nil {
		return 0, false
	}
	return ToInt(v)
}

// FloatVar reads a numeric variable.
func (d *Data) FloatVar(name string) (float64, bool) {
	v, ok := d.Value(name)
	if !ok || v == nil {
		return 0, false
	}
	return ToFloat(v)
}

// BoolVar reads a flag variable; missing or unparsable flags are false.
func (d *Data) BoolVar(name string) bool {
	v, ok := d.Value(name)
	if !ok || v == nil {
		return false
	}
	b, _ := ToBool(v)
	return b
}

// StringVar reads a string variable.
func (d *Data) StringVar(name string) (string, bool) {
	v, ok := d.Value(name)
	if !ok || v == nil {
		return "", false
	}
	return ToString(v)
}
