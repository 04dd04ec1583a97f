package pricing

import (
	"shipportal/internal/model"
	"shipportal/internal/normalize"
)

// FromDraft extracts pricing inputs from a draft. An explicit isMetro flag
// wins; otherwise the destination city decides.
func (c *Calculator) FromDraft(d model.ShipmentDraft, customerID string) Input {
	dest := d.Receiver.City
	if normalize.Flag(d.IsDifferentDeliveryAddress) {
		dest = d.Delivery.City
	}
	return Input{
		GrossWeight:      normalize.NumberOr(d.GrossWeight, 0),
		InvoiceValue:     normalize.NumberOr(d.InvoiceValue, 0),
		InsuranceValue:   normalize.NumberOr(d.InsuranceValue, 0),
		CarrierInsurance: normalize.Flag(d.Insurance),
		IsMetro:          c.metro(d.IsMetro, dest),
		Commodities:      normalize.Values(d.Commodity),
		CustomerID:       customerID,
	}
}

// FromQuote extracts pricing inputs from a standalone quote request.
func (c *Calculator) FromQuote(q model.QuoteRequest, customerID string) Input {
	return Input{
		GrossWeight:      normalize.NumberOr(q.GrossWeight, 0),
		InvoiceValue:     normalize.NumberOr(q.InvoiceValue, 0),
		InsuranceValue:   normalize.NumberOr(q.InsuranceValue, 0),
		CarrierInsurance: normalize.Flag(q.Insurance),
		IsMetro:          c.metro(q.IsMetro, q.City),
		Commodities:      normalize.Values(q.Commodity),
		CustomerID:       customerID,
	}
}

func (c *Calculator) metro(flag, city model.Field) bool {
	if normalize.IsSet(flag) {
		return normalize.Flag(flag)
	}
	return c.cfg.IsMetroCity(normalize.FieldValue(city, "")) || c.cfg.IsMetroCity(normalize.DisplayText(city))
}

// Inputs lists the draft fields charges depend on, for change detection.
func Inputs(d model.ShipmentDraft) []model.Field {
	fs := []model.Field{
		d.GrossWeight, d.InvoiceValue, d.InsuranceValue, d.Insurance, d.IsMetro,
		d.IsDifferentDeliveryAddress, d.Receiver.City, d.Delivery.City,
	}
	return append(fs, d.Commodity...)
}
