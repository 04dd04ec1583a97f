// Package normalize turns form fields into submission-ready scalars. It is the
// only package that looks at a field's kind; everyone else asks here.
package normalize

import (
	"strconv"
	"strings"

	"shipportal/internal/model"
)

// FieldValue returns the submittable string for f. Empty fields yield def,
// option fields yield their value (never the label).
func FieldValue(f model.Field, def string) string {
	switch f.Kind {
	case model.KindSelect:
		return f.Option.Value
	case model.KindText:
		return f.Text
	case model.KindNumber:
		return formatNumber(f.Number)
	case model.KindBool:
		return strconv.FormatBool(f.Bool)
	default:
		return def
	}
}

// BooleanFlag returns "1" for boolean true or the strings "true"/"1", else "0".
// Numbers are not flags on the wire.
func BooleanFlag(f model.Field) string {
	if strictFlag(f) {
		return "1"
	}
	return "0"
}

func strictFlag(f model.Field) bool {
	switch f.Kind {
	case model.KindBool:
		return f.Bool
	case model.KindText:
		return f.Text == "true" || f.Text == "1"
	}
	return false
}

// Flag reads f as a bool for in-process decisions such as pricing. It accepts
// what BooleanFlag does plus any non-zero number.
func Flag(f model.Field) bool {
	if f.Kind == model.KindNumber {
		return f.Number != 0
	}
	return strictFlag(f)
}

// DisplayText is what a human sees: the option label when present, the raw
// text otherwise. Used for format checks on location names.
func DisplayText(f model.Field) string {
	if f.Kind == model.KindSelect {
		if f.Option.Label != "" {
			return f.Option.Label
		}
		return f.Option.Value
	}
	return FieldValue(f, "")
}

// Number parses a numeric field. Text and option values are parsed after
// trimming; anything unparsable reports ok=false.
func Number(f model.Field) (float64, bool) {
	switch f.Kind {
	case model.KindNumber:
		return f.Number, true
	case model.KindText:
		return parse(f.Text)
	case model.KindSelect:
		return parse(f.Option.Value)
	}
	return 0, false
}

// NumberOr is Number with a fallback.
func NumberOr(f model.Field, def float64) float64 {
	if n, ok := Number(f); ok {
		return n
	}
	return def
}

// IsSet reports whether the field carries a non-blank value.
func IsSet(f model.Field) bool {
	switch f.Kind {
	case model.KindEmpty:
		return false
	case model.KindText:
		return strings.TrimSpace(f.Text) != ""
	case model.KindSelect:
		return strings.TrimSpace(f.Option.Value) != "" || strings.TrimSpace(f.Option.Label) != ""
	}
	return true
}

// Values normalizes a list, dropping entries that normalize to "".
func Values(fs []model.Field) []string {
	out := make([]string, 0, len(fs))
	for _, f := range fs {
		if v := strings.TrimSpace(FieldValue(f, "")); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Equal compares two fields by their submittable value.
func Equal(a, b model.Field) bool {
	return a.Kind == b.Kind && FieldValue(a, "") == FieldValue(b, "")
}

func parse(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}
