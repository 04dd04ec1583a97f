// Package location resolves location form fields to the canonical IDs the
// backend expects.
package location

import (
	"strconv"
	"strings"

	"shipportal/internal/model"
)

// Kind names which location field is being resolved.
type Kind string

const (
	State   Kind = "state"
	City    Kind = "city"
	Area    Kind = "area"
	Country Kind = "country"
)

// Fallback IDs (Maharashtra / Mumbai).
const (
	DefaultState   = "21"
	DefaultCity    = "817"
	DefaultArea    = "1"
	DefaultCountry = "1"
)

// Default returns the fallback ID for k.
func Default(k Kind) string {
	switch k {
	case State:
		return DefaultState
	case City:
		return DefaultCity
	case Area:
		return DefaultArea
	default:
		return DefaultCountry
	}
}

// ResolveID maps f to a location ID. It never fails: anything it cannot make
// sense of yields def.
//
// Free-text state and city names are looked up case-insensitively in a small
// table; unknown names pass through trimmed. Already-resolved IDs come back
// unchanged, so resolution is idempotent.
func ResolveID(f model.Field, k Kind, def string) string {
	switch f.Kind {
	case model.KindSelect:
		if v := strings.TrimSpace(f.Option.Value); v != "" {
			return v
		}
		// an option without an id resolves by its label
		return byName(f.Option.Label, k, def)
	case model.KindText:
		return byName(f.Text, k, def)
	case model.KindNumber:
		return strconv.FormatFloat(f.Number, 'f', -1, 64)
	default:
		return def
	}
}

func byName(name string, k Kind, def string) string {
	s := strings.TrimSpace(name)
	if s == "" {
		return def
	}
	if id, ok := lookup(k, s); ok {
		return id
	}
	return s
}

// Resolve is ResolveID with the kind's own default.
func Resolve(f model.Field, k Kind) string { return ResolveID(f, k, Default(k)) }

func lookup(k Kind, name string) (string, bool) {
	var table map[string]string
	switch k {
	case State:
		table = stateIDs
	case City:
		table = cityIDs
	default:
		return "", false
	}
	id, ok := table[strings.ToLower(name)]
	return id, ok
}
