package wizard

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"shipportal/internal/model"
)

// Patch is a partial draft in the wire shape of model.ShipmentDraft. Address
// blocks merge key by key; every other key replaces the stored value.
type Patch map[string]json.RawMessage

// ignoredKeys are accepted but dropped: charges are derived, and the shipment
// id is fixed by Start.
var ignoredKeys = map[string]bool{"charges": true, "shipmentId": true}

var addressBlocks = map[string]bool{"sender": true, "receiver": true, "deliveryAddress": true}

// PatchError reports patch keys that are unknown or carry an unusable shape.
type PatchError struct {
	Fields []string
	Err    error
}

func (e *PatchError) Error() string {
	if len(e.Fields) > 0 {
		return "unknown fields: " + strings.Join(e.Fields, ", ")
	}
	return "invalid field value: " + e.Err.Error()
}

func (e *PatchError) Unwrap() error { return e.Err }

// apply merges p into d.
func apply(d model.ShipmentDraft, p Patch) (model.ShipmentDraft, error) {
	base, err := json.Marshal(d)
	if err != nil {
		return d, err
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(base, &doc); err != nil {
		return d, err
	}
	var unknown []string
	for k, v := range p {
		if ignoredKeys[k] {
			continue
		}
		cur, ok := doc[k]
		if !ok {
			unknown = append(unknown, k)
			continue
		}
		if addressBlocks[k] {
			merged, err := mergeAddress(cur, v)
			if err != nil {
				return d, &PatchError{Err: fmt.Errorf("%s: %w", k, err)}
			}
			doc[k] = merged
			continue
		}
		doc[k] = v
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return d, &PatchError{Fields: unknown}
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return d, &PatchError{Err: err}
	}
	var next model.ShipmentDraft
	if err := json.Unmarshal(out, &next); err != nil {
		return d, &PatchError{Err: err}
	}
	next.ShipmentID = d.ShipmentID
	next.Charges = d.Charges
	return next, nil
}

func mergeAddress(cur, patch json.RawMessage) (json.RawMessage, error) {
	var a, b map[string]json.RawMessage
	if err := json.Unmarshal(cur, &a); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(patch, &b); err != nil {
		return nil, fmt.Errorf("expected an object")
	}
	for k, v := range b {
		if _, ok := a[k]; !ok {
			return nil, fmt.Errorf("unknown field %q", k)
		}
		a[k] = v
	}
	return json.Marshal(a)
}
