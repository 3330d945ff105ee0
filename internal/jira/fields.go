package jira

import (
	"fmt"
	"sort"
	"time"
)

// Jira date formats for field payloads.
const (
	DateFormat     = "2006-01-02"
	DateTimeFormat = "2006-01-02T15:04:05.000-0700"
)

type valueKind int

const (
	kindNull valueKind = iota
	kindString
	kindDate
	kindDateTime
	kindOption
	kindOptionName
	kindLateBound
)

// FieldValue is a typed value for a Jira field payload. The zero value is
// an explicit null, which clears the field.
//
// LateBound values are resolved when the payload is built, so a timestamp
// field gets the time of the request that carries it rather than the time
// the configuration was loaded.
type FieldValue struct {
	kind valueKind
	text string
	at   time.Time
	bind func(now time.Time) FieldValue
}

// String returns a plain text field value.
func String(s string) FieldValue { return FieldValue{kind: kindString, text: s} }

// Date returns a date field value (no time of day).
func Date(t time.Time) FieldValue { return FieldValue{kind: kindDate, at: t} }

// DateTime returns a date-time field value.
func DateTime(t time.Time) FieldValue { return FieldValue{kind: kindDateTime, at: t} }

// Option references a select option by id: {"id": "10200"}.
func Option(id string) FieldValue { return FieldValue{kind: kindOption, text: id} }

// OptionNamed references an option by name: {"name": "Done"}.
func OptionNamed(name string) FieldValue { return FieldValue{kind: kindOptionName, text: name} }

// Null clears a field.
func Null() FieldValue { return FieldValue{} }

// LateBound defers computing the value until the payload is resolved.
func LateBound(fn func(now time.Time) FieldValue) FieldValue {
	return FieldValue{kind: kindLateBound, bind: fn}
}

// Now is a late-bound date-time holding the resolution time.
func Now() FieldValue {
	return LateBound(func(now time.Time) FieldValue { return DateTime(now) })
}

// Today is a late-bound date holding the resolution day.
func Today() FieldValue {
	return LateBound(func(now time.Time) FieldValue { return Date(now) })
}

// IsNull reports whether the value clears the field.
func (v FieldValue) IsNull() bool { return v.kind == kindNull }

// Resolve renders the value as the JSON-ready shape Jira expects.
func (v FieldValue) Resolve(now time.Time) interface{} {
	switch v.kind {
	case kindString:
		return v.text
	case kindDate:
		return v.at.Format(DateFormat)
	case kindDateTime:
		return v.at.Format(DateTimeFormat)
	case kindOption:
		return map[string]string{"id": v.text}
	case kindOptionName:
		return map[string]string{"name": v.text}
	case kindLateBound:
		if v.bind == nil {
			return nil
		}
		bound := v.bind(now)
		if bound.kind == kindLateBound {
			// one level only; a binder returning another binder is a bug
			return nil
		}
		return bound.Resolve(now)
	default:
		return nil
	}
}

func (v FieldValue) String() string {
	switch v.kind {
	case kindString:
		return fmt.Sprintf("%q", v.text)
	case kindDate:
		return v.at.Format(DateFormat)
	case kindDateTime:
		return v.at.Format(DateTimeFormat)
	case kindOption:
		return "option(id=" + v.text + ")"
	case kindOptionName:
		return "option(name=" + v.text + ")"
	case kindLateBound:
		return "<late-bound>"
	default:
		return "null"
	}
}

// Fields maps Jira field ids (e.g. "resolution", "customfield_10100") to
// values.
type Fields map[string]FieldValue

// Has reports whether the field id is set.
func (f Fields) Has(id string) bool {
	_, ok := f[id]
	return ok
}

// Resolve builds the "fields" payload object, resolving late-bound values
// against now.
func (f Fields) Resolve(now time.Time) map[string]interface{} {
	out := make(map[string]interface{}, len(f))
	for id, v := range f {
		out[id] = v.Resolve(now)
	}
	return out
}

// Keys returns the field ids in sorted order.
func (f Fields) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Merge returns a new map with the entries of all maps; later maps win.
func Merge(maps ...Fields) Fields {
	out := Fields{}
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}
