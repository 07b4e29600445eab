package docstore

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Fields is the content of a document. Backends hand back whatever their
// encoding produces (float64, int64, json.Number, time.Time, RFC 3339
// strings), so callers read values through the typed accessors below.
type Fields map[string]any

// Clone returns a shallow copy.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	return maps.Clone(f)
}

// Has reports whether key is present and non-nil.
func (f Fields) Has(key string) bool {
	v, ok := f[key]
	return ok && v != nil
}

// String returns the string at key, or "" if absent.
func (f Fields) String(key string) string {
	switch v := f[key].(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return ""
	}
}

// Bool returns the bool at key, or false if absent.
func (f Fields) Bool(key string) bool {
	v, _ := f[key].(bool)
	return v
}

// Decimal returns the numeric value at key. A missing key yields zero and a
// NaN or infinite float is an error.
func (f Fields) Decimal(key string) (decimal.Decimal, error) {
	switch v := f[key].(type) {
	case nil:
		return decimal.Zero, nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return decimal.Zero, fmt.Errorf("field %q: non-finite value %v", key, v)
		}
		return decimal.NewFromFloat(v), nil
	case float32:
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return decimal.Zero, fmt.Errorf("field %q: non-finite value %v", key, v)
		}
		return decimal.NewFromFloat32(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case json.Number:
		return decimal.NewFromString(v.String())
	case string:
		return decimal.NewFromString(v)
	case decimal.Decimal:
		return v, nil
	default:
		return decimal.Zero, fmt.Errorf("field %q: unsupported numeric type %T", key, v)
	}
}

// Time returns the timestamp at key. A missing key yields the zero time.
func (f Fields) Time(key string) (time.Time, error) {
	switch v := f[key].(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return v.UTC(), nil
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return time.Time{}, fmt.Errorf("field %q: %w", key, err)
		}
		return t.UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("field %q: unsupported time type %T", key, v)
	}
}

// Merge applies patch on top of base without mutating either map. It is the
// shallow merge every backend implements for Set and Update.
func Merge(base, patch Fields) Fields {
	out := make(Fields, len(base)+len(patch))
	maps.Copy(out, base)
	maps.Copy(out, patch)
	return out
}
