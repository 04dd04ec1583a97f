package wizard

import (
	"strings"

	"shipportal/internal/model"
	"shipportal/internal/normalize"
)

// Reconcile swaps bare IDs or labels for the matching option object so the UI
// controls show a selection. It is idempotent: resolved values are only
// touched to fill a missing label.
func Reconcile(d model.ShipmentDraft, o model.Options) model.ShipmentDraft {
	d.Category = match(d.Category, o.Categories)
	if len(d.Commodity) > 0 {
		cs := make([]model.Field, len(d.Commodity))
		for i, c := range d.Commodity {
			cs[i] = match(c, o.Commodities)
		}
		d.Commodity = cs
	}
	d.PaymentMode = match(d.PaymentMode, o.PaymentModes)
	d.ServiceType = match(d.ServiceType, o.ServiceTypes)
	d.Sender = reconcileAddress(d.Sender, o)
	d.Receiver = reconcileAddress(d.Receiver, o)
	d.Delivery = reconcileAddress(d.Delivery, o)
	return d
}

func reconcileAddress(a model.Address, o model.Options) model.Address {
	a.State = match(a.State, o.States)
	a.City = match(a.City, o.Cities)
	a.Area = match(a.Area, o.Areas)
	return a
}

// match finds f in opts by ID first, then by label (case-insensitive).
func match(f model.Field, opts []model.SelectOption) model.Field {
	if len(opts) == 0 {
		return f
	}
	switch f.Kind {
	case model.KindText, model.KindNumber:
		s := strings.TrimSpace(normalize.FieldValue(f, ""))
		if s == "" {
			return f
		}
		if opt, ok := find(s, opts); ok {
			return model.Select(opt.Value, opt.Label)
		}
	case model.KindSelect:
		if f.Option.Label != "" {
			return f
		}
		for _, opt := range opts {
			if opt.Value == f.Option.Value {
				return model.Select(opt.Value, opt.Label)
			}
		}
	}
	return f
}

func find(s string, opts []model.SelectOption) (model.SelectOption, bool) {
	for _, opt := range opts {
		if opt.Value == s {
			return opt, true
		}
	}
	for _, opt := range opts {
		if strings.EqualFold(strings.TrimSpace(opt.Label), s) {
			return opt, true
		}
	}
	return model.SelectOption{}, false
}
