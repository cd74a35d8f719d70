package record

import (
	"reflect"
	"strings"

	"github.com/google/uuid"
)

// Record is an arbitrary, possibly nested key-value structure with no
// fixed schema. It lives only for the duration of one fetch.
type Record map[string]any

// GetPath walks a dot-separated path through the record. The second
// return value is false when any segment is absent or an intermediate
// value is nil or not an object; a present-but-nil leaf returns (nil, true).
func GetPath(rec Record, path string) (any, bool) {
	if rec == nil || path == "" {
		return nil, false
	}
	var cur any = map[string]any(rec)
	segments := strings.Split(path, ".")
	for i, seg := range segments {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
		if cur == nil && i < len(segments)-1 {
			return nil, false
		}
	}
	return cur, true
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Record:
		return m, true
	default:
		return nil, false
	}
}

// Sanitize converts driver-specific values (UUIDs, pointers, 16-byte
// binaries) to JSON-friendly scalars.
func Sanitize(v any) any {
	if v == nil {
		return nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
		v = rv.Interface()
	}

	if u, ok := v.(uuid.UUID); ok {
		return u.String()
	}

	// 16-byte binaries are almost always UUIDs in practice.
	if (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) && rv.Len() == 16 && rv.Type().Elem().Kind() == reflect.Uint8 {
		var b [16]byte
		for i := 0; i < 16; i++ {
			b[i] = uint8(rv.Index(i).Uint())
		}
		if u, err := uuid.FromBytes(b[:]); err == nil {
			return u.String()
		}
	}

	return v
}

// SanitizeAll sanitizes every top-level value of a record in place.
func SanitizeAll(rec Record) Record {
	for k, v := range rec {
		rec[k] = Sanitize(v)
	}
	return rec
}
