// Package codec converts between document-store records and model types.
// Each record kind has one schema listing its required and optional fields;
// a record that violates its schema is rejected as a whole.
package codec

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidRecord = errors.New("invalid record")

type fieldKind int

const (
	kindString fieldKind = iota
	kindTime
	kindBool
	kindNumber
)

func (k fieldKind) String() string {
	switch k {
	case kindString:
		return "string"
	case kindTime:
		return "timestamp"
	case kindBool:
		return "bool"
	case kindNumber:
		return "number"
	}
	return "unknown"
}

type field struct {
	name     string
	kind     fieldKind
	required bool
}

type schema []field

// validate checks presence of required fields and the type of every declared
// field that is present. Undeclared fields are ignored.
func (s schema) validate(rec map[string]any) error {
	for _, f := range s {
		v, ok := rec[f.name]
		if !ok || v == nil {
			if f.required {
				return fmt.Errorf("%w: missing %s", ErrInvalidRecord, f.name)
			}
			continue
		}
		if !f.kind.accepts(v) {
			return fmt.Errorf("%w: %s is %T, want %s", ErrInvalidRecord, f.name, v, f.kind)
		}
	}
	return nil
}

func (k fieldKind) accepts(v any) bool {
	switch k {
	case kindString:
		_, ok := v.(string)
		return ok
	case kindTime:
		switch t := v.(type) {
		case time.Time:
			return true
		case string:
			_, err := time.Parse(time.RFC3339, t)
			return err == nil
		}
		return false
	case kindBool:
		_, ok := v.(bool)
		return ok
	case kindNumber:
		_, ok := toFloat(v)
		return ok
	}
	return false
}

func getString(rec map[string]any, name string) string {
	s, _ := rec[name].(string)
	return s
}

func getBool(rec map[string]any, name string) bool {
	b, _ := rec[name].(bool)
	return b
}

func getTime(rec map[string]any, name string) time.Time {
	switch t := rec[name].(type) {
	case time.Time:
		return t.UTC()
	case string:
		parsed, _ := time.Parse(time.RFC3339, t)
		return parsed.UTC()
	}
	return time.Time{}
}

func getNumber(rec map[string]any, name string) float64 {
	f, _ := toFloat(rec[name])
	return f
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

// FormatTime is the wire form of every timestamp field.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
