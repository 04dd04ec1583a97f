package location

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"shipportal/internal/model"
)

func TestResolveID(t *testing.T) {
	cases := []struct {
		name string
		in   model.Field
		kind Kind
		want string
	}{
		{"empty state", model.Field{}, State, DefaultState},
		{"empty city", model.Field{}, City, DefaultCity},
		{"option value wins over label", model.Select("817", "Pune"), City, "817"},
		{"option without id resolves by label", model.Select("", "Maharashtra"), State, "21"},
		{"option with blank id and unknown label", model.Select("  ", " Kalyan "), City, "Kalyan"},
		{"option with neither id nor label", model.Select("", ""), City, DefaultCity},
		{"known state name", model.Text("  maharashtra "), State, "21"},
		{"known city mixed case", model.Text("MUMBAI"), City, "817"},
		{"unknown city passes through trimmed", model.Text(" Kalyan "), City, "Kalyan"},
		{"area is never looked up", model.Text("Mumbai"), Area, "Mumbai"},
		{"blank text uses default", model.Text("   "), Area, DefaultArea},
		{"number stringified", model.Number(12), Country, "12"},
		{"bool falls back", model.Bool(true), Country, DefaultCountry},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Resolve(tc.in, tc.kind))
		})
	}
}

func TestResolveIDIdempotent(t *testing.T) {
	inputs := []model.Field{
		model.Text("Mumbai"),
		model.Text("Kalyan"),
		model.Select("21", "Maharashtra"),
		model.Number(5),
		{},
	}
	for _, k := range []Kind{State, City, Area, Country} {
		for _, in := range inputs {
			first := Resolve(in, k)
			assert.Equal(t, first, Resolve(model.Text(first), k), "kind=%s in=%v", k, in)
			assert.Equal(t, first, Resolve(model.Select(first, "x"), k))
		}
	}
}

func TestResolveIDCustomDefault(t *testing.T) {
	assert.Equal(t, "99", ResolveID(model.Field{}, State, "99"))
}

func TestOptionsLabelKnownIDs(t *testing.T) {
	states := Options(State)
	assert.Contains(t, states, model.SelectOption{Value: "21", Label: "Maharashtra"})
	assert.Contains(t, states, model.SelectOption{Value: "14", Label: "Jammu and Kashmir"})

	cities := Options(City)
	assert.Contains(t, cities, model.SelectOption{Value: "817", Label: "Mumbai"})
	n := 0
	for _, c := range cities {
		if c.Value == "1127" {
			n++
			assert.Equal(t, "Bangalore", c.Label)
		}
	}
	assert.Equal(t, 1, n)
	assert.Nil(t, Options(Area))
}
