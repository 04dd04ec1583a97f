package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"shipportal/internal/model"
)

// FlexString decodes a JSON string, number or null into a string. The backend
// is inconsistent about quoting IDs.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("flex string: %w", err)
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) String() string { return string(f) }

// Record is one loosely typed backend object.
type Record map[string]any

// String returns the first non-empty value among keys, stringified.
func (r Record) String(keys ...string) string {
	for _, k := range keys {
		if s := Stringify(r[k]); s != "" {
			return s
		}
	}
	return ""
}

// Stringify renders scalars the way the backend would send them back.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		if t {
			return "1"
		}
		return "0"
	default:
		return ""
	}
}

// decodeRecords accepts data as an array of objects, a single object, or an
// object wrapping the array under one of wrapKeys.
func decodeRecords(data json.RawMessage, wrapKeys ...string) ([]Record, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if data[0] == '[' {
		var out []Record
		if err := dec.Decode(&out); err != nil {
			return nil, err
		}
		return out, nil
	}
	var obj Record
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	for _, k := range wrapKeys {
		if arr, ok := obj[k].([]any); ok {
			out := make([]Record, 0, len(arr))
			for _, item := range arr {
				if m, ok := item.(map[string]any); ok {
					out = append(out, Record(m))
				}
			}
			return out, nil
		}
		if m, ok := obj[k].(map[string]any); ok {
			return []Record{Record(m)}, nil
		}
	}
	return []Record{obj}, nil
}

// options turns records into select options using the first matching keys.
func options(recs []Record, idKeys, labelKeys []string) []model.SelectOption {
	out := make([]model.SelectOption, 0, len(recs))
	for _, r := range recs {
		id := r.String(idKeys...)
		if id == "" {
			continue
		}
		label := r.String(labelKeys...)
		if label == "" {
			label = id
		}
		out = append(out, model.SelectOption{Value: id, Label: label})
	}
	return out
}
