package location

import (
	"sort"
	"strings"

	"shipportal/internal/model"
)

// Common state and city names seen in free-text input. Keys are lower case.
var stateIDs = map[string]string{
	"andhra pradesh":    "1",
	"assam":             "3",
	"bihar":             "4",
	"chhattisgarh":      "6",
	"delhi":             "9",
	"goa":               "10",
	"gujarat":           "11",
	"haryana":           "12",
	"karnataka":         "16",
	"kerala":            "17",
	"madhya pradesh":    "20",
	"maharashtra":       "21",
	"odisha":            "28",
	"punjab":            "30",
	"rajasthan":         "31",
	"tamil nadu":        "33",
	"telangana":         "34",
	"uttar pradesh":     "36",
	"uttarakhand":       "37",
	"west bengal":       "38",
	"jammu and kashmir": "14",
}

var cityIDs = map[string]string{
	"mumbai":      "817",
	"navi mumbai": "818",
	"thane":       "819",
	"pune":        "820",
	"nagpur":      "821",
	"nashik":      "822",
	"aurangabad":  "823",
	"new delhi":   "706",
	"delhi":       "707",
	"bengaluru":   "1127",
	"bangalore":   "1127",
	"chennai":     "3659",
	"hyderabad":   "4460",
	"kolkata":     "5583",
	"ahmedabad":   "779",
	"surat":       "783",
	"jaipur":      "3378",
	"lucknow":     "4933",
}

// Options lists the table's known IDs as select options, one per ID, so bare
// IDs can be shown with a name. Where several names share an ID the first
// in alphabetical order is used.
func Options(k Kind) []model.SelectOption {
	var table map[string]string
	switch k {
	case State:
		table = stateIDs
	case City:
		table = cityIDs
	default:
		return nil
	}
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)
	seen := map[string]bool{}
	out := make([]model.SelectOption, 0, len(names))
	for _, name := range names {
		id := table[name]
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, model.SelectOption{Value: id, Label: titleCase(name)})
	}
	return out
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if w == "and" && i > 0 {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
