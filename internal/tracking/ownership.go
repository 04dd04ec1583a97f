// Package tracking gates shipment details on ownership.
package tracking

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Decision is the outcome of an ownership check.
type Decision int

const (
	Unauthorized Decision = iota
	Authorized
)

func (d Decision) String() string {
	if d == Authorized {
		return "authorized"
	}
	return "unauthorized"
}

// ownerKeys are checked in order; the first non-empty one is the owner.
var ownerKeys = []string{"user_id", "customer_id", "sender_id", "cust_id"}

// CheckOwnership compares the record's owner to userID. A record with no
// owner field, or a blank userID, is unauthorized. When cust_id is present it
// must match as well, even if an earlier key already did.
func CheckOwnership(rec map[string]any, userID string) Decision {
	userID = strings.TrimSpace(userID)
	if userID == "" || rec == nil {
		return Unauthorized
	}
	owner := ""
	for _, k := range ownerKeys {
		if v := scalar(rec[k]); v != "" {
			owner = v
			break
		}
	}
	if owner == "" || owner != userID {
		return Unauthorized
	}
	if cust := scalar(rec["cust_id"]); cust != "" && cust != userID {
		return Unauthorized
	}
	return Authorized
}

func scalar(v any) string {
	switch t := v.(type) {
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
	default:
		return ""
	}
}
