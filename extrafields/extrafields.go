// Package extrafields turns the arbitrary JSON payload attached to a
// snapshot into a typed, render-ready tree. The payload is fully
// submitter-controlled, so normalization never assumes a schema, never
// fails, and guards against pathological nesting.
package extrafields

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"unicode/utf8"
)

// Type tags carried by normalized fields.
const (
	TypeNull    = "null"
	TypeString  = "string"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeArray   = "array"
	TypeObject  = "object"
	TypeUnknown = "unknown"
)

// MaxDepth is the nesting ceiling. Values nested deeper degrade to the
// unknown type instead of recursing further.
const MaxDepth = 64

// Field is one node of the normalized display tree.
type Field struct {
	Key          string   `json:"key,omitempty"`
	Label        string   `json:"label,omitempty"`
	Type         string   `json:"type"`
	Value        string   `json:"value,omitempty"`
	DecodedValue string   `json:"decodedValue,omitempty"`
	Fields       []*Field `json:"fields,omitempty"`
}

// Member is a single key/value pair of a decoded JSON object.
type Member struct {
	Key   string
	Value any
}

// Object is a decoded JSON object with field order preserved.
type Object struct {
	Members []Member
}

// NormalizeRaw decodes a raw JSON payload and normalizes it. A payload that
// is not valid JSON degrades to a single unknown node holding the raw text.
func NormalizeRaw(raw []byte) *Field {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	value, err := Decode(raw)
	if err != nil {
		return &Field{Type: TypeUnknown, Value: string(raw)}
	}
	return Normalize(value)
}

// Normalize classifies a decoded JSON value into a Field tree. It is total:
// any input yields a tree, never an error.
func Normalize(value any) *Field {
	return normalizeValue("", value, 0)
}

func normalizeValue(key string, value any, depth int) (field *Field) {
	// A failure normalizing one field must not take down its siblings.
	defer func() {
		if r := recover(); r != nil {
			field = newField(key, TypeUnknown, textForm(value))
		}
	}()

	if depth > MaxDepth {
		return newField(key, TypeUnknown, textForm(value))
	}

	switch v := value.(type) {
	case nil:
		return newField(key, TypeNull, "null")
	case string:
		f := newField(key, TypeString, v)
		if decoded, ok := decodeBase64(v); ok {
			f.DecodedValue = decoded
		}
		return f
	case json.Number:
		return newField(key, TypeNumber, v.String())
	case float64:
		return newField(key, TypeNumber, textForm(v))
	case bool:
		if v {
			return newField(key, TypeBoolean, "true")
		}
		return newField(key, TypeBoolean, "false")
	case []any:
		f := newField(key, TypeArray, "")
		// Array elements are flattened to text, not recursively typed.
		// Strings stay verbatim, everything else renders as JSON text.
		for _, item := range v {
			f.Fields = append(f.Fields, &Field{Type: TypeString, Value: textForm(item)})
		}
		return f
	case *Object:
		f := newField(key, TypeObject, "")
		for _, m := range v.Members {
			f.Fields = append(f.Fields, normalizeValue(m.Key, m.Value, depth+1))
		}
		return f
	case map[string]any:
		// Payloads decoded outside this package lose field order; still
		// normalize them rather than reject.
		f := newField(key, TypeObject, "")
		for _, k := range sortedKeys(v) {
			f.Fields = append(f.Fields, normalizeValue(k, v[k], depth+1))
		}
		return f
	default:
		return newField(key, TypeUnknown, textForm(v))
	}
}

func newField(key, typ, value string) *Field {
	f := &Field{Key: key, Type: typ, Value: value}
	if key != "" {
		f.Label = Label(key)
	}
	return f
}

// textForm renders any decoded JSON value as display text.
func textForm(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}

// decodeBase64 is a pure probe: it reports whether s decodes cleanly as
// base64 into valid UTF-8 text. Failure is the expected case for ordinary
// strings and is not an error.
func decodeBase64(s string) (string, bool) {
	if s == "" {
		return "", false
	}
	decoded, err := base64.StdEncoding.DecodeString(s)
	if err != nil || !utf8.Valid(decoded) {
		return "", false
	}
	return string(decoded), true
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
