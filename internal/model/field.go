package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// FieldKind tags the shape held by a Field.
type FieldKind uint8

const (
	KindEmpty FieldKind = iota
	KindText
	KindNumber
	KindBool
	KindSelect
)

func (k FieldKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindSelect:
		return "select"
	default:
		return "empty"
	}
}

// SelectOption is a choice presented by the UI. Value is the canonical ID the
// backend expects; Label is display only.
type SelectOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Field is a form value in one of the shapes the portal UI produces.
// Use the constructors; the zero value is an empty field.
type Field struct {
	Kind   FieldKind
	Text   string
	Number float64
	Bool   bool
	Option SelectOption
}

func Text(s string) Field { return Field{Kind: KindText, Text: s} }
func Number(n float64) Field { return Field{Kind: KindNumber, Number: n} }
func Bool(b bool) Field { return Field{Kind: KindBool, Bool: b} }
func Select(value, label string) Field {
	return Field{Kind: KindSelect, Option: SelectOption{Value: value, Label: label}}
}

// IsEmpty reports whether the field holds no value at all (null/undefined).
func (f Field) IsEmpty() bool { return f.Kind == KindEmpty }

// MarshalJSON writes the field back in the shape it was read.
func (f Field) MarshalJSON() ([]byte, error) {
	switch f.Kind {
	case KindText:
		return json.Marshal(f.Text)
	case KindNumber:
		return json.Marshal(f.Number)
	case KindBool:
		return json.Marshal(f.Bool)
	case KindSelect:
		return json.Marshal(f.Option)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts null, strings, numbers, booleans and option objects
// ({"value":..,"label":..} or {"id":..,"label":..}).
func (f *Field) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = Field{}
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = Text(s)
	case 't', 'f':
		var v bool
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*f = Bool(v)
	case '{':
		var raw struct {
			Value json.RawMessage `json:"value"`
			ID    json.RawMessage `json:"id"`
			Label string          `json:"label"`
		}
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
		id := raw.Value
		if len(id) == 0 || bytes.Equal(id, []byte("null")) {
			id = raw.ID
		}
		v, err := scalarString(id)
		if err != nil {
			return fmt.Errorf("option value: %w", err)
		}
		*f = Select(v, raw.Label)
	case '[':
		return fmt.Errorf("field: unexpected array")
	default:
		n, err := strconv.ParseFloat(string(b), 64)
		if err != nil {
			return fmt.Errorf("field: %w", err)
		}
		*f = Number(n)
	}
	return nil
}

// scalarString renders a JSON string/number/bool literal as plain text.
func scalarString(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		err := json.Unmarshal(raw, &s)
		return s, err
	}
	if _, err := strconv.ParseFloat(string(raw), 64); err == nil {
		return string(raw), nil
	}
	if bytes.Equal(raw, []byte("true")) || bytes.Equal(raw, []byte("false")) {
		return string(raw), nil
	}
	return "", fmt.Errorf("unsupported literal %s", raw)
}
