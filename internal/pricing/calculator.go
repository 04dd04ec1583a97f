// Package pricing computes shipment charges from weight slabs, insurance and GST.
package pricing

import (
	"math"

	"shipportal/internal/model"
)

// Input holds the already-parsed pricing inputs of a shipment.
type Input struct {
	GrossWeight    float64
	InvoiceValue   float64
	InsuranceValue float64
	// CarrierInsurance is set when the customer elects the carrier's insurance.
	CarrierInsurance bool
	IsMetro          bool
	Commodities      []string
	CustomerID       string
}

// Calculator is safe for concurrent use; Compute does not mutate the config.
type Calculator struct {
	cfg Config
}

func NewCalculator(cfg Config) *Calculator { return &Calculator{cfg: cfg} }

// Config returns the rate table in use.
func (c *Calculator) Config() Config { return c.cfg }

// Compute prices a shipment. Every amount is rounded to two places and the
// GST and grand total are derived from the rounded total.
func (c *Calculator) Compute(in Input) model.Charges {
	weight := math.Max(in.GrossWeight, 0)
	invoice := math.Max(in.InvoiceValue, 0)
	insured := math.Max(in.InsuranceValue, 0)

	shipment := round2(c.shipmentCharge(weight, in.IsMetro))
	handling := round2(c.handlingCharge(in.Commodities, in.IsMetro))
	insurance := round2(c.insuranceCharge(invoice, insured, in.IsMetro, in.CustomerID))

	var additional float64
	if in.CarrierInsurance {
		additional = round2(math.Max(0, invoice-insured))
	}

	total := round2(shipment + insurance + handling)
	gst := round2(total * c.gstRate())
	return model.Charges{
		ShipmentCharges:  shipment,
		InsuranceCharges: insurance,
		HandlingCharges:  handling,
		TotalCharges:     total,
		GSTAmount:        gst,
		GrandTotal:       round2(total + gst),
		AdditionalCharge: additional,
	}
}

// shipmentCharge walks every slab; each match overwrites the previous one, so
// with overlapping slabs the last match wins. A weight in no slab costs 0.
func (c *Calculator) shipmentCharge(weight float64, metro bool) float64 {
	slabs := c.cfg.NonMetroSlabs
	if metro {
		slabs = c.cfg.MetroSlabs
	}
	var charge float64
	for i, s := range slabs {
		if weight < s.WeightFrom || weight > s.WeightTo {
			continue
		}
		if s.CommissionRate != nil {
			charge = weight * *s.CommissionRate
		} else if i < len(c.cfg.FlatRates) {
			charge = weight * c.cfg.FlatRates[i]
		} else {
			charge = 0
		}
	}
	return charge
}

func (c *Calculator) handlingCharge(commodities []string, metro bool) float64 {
	var sum float64
	for _, id := range commodities {
		h, ok := c.cfg.Commodities[id]
		if !ok {
			h = c.cfg.DefaultHandling
		}
		if metro {
			sum += h.Metro
		} else {
			sum += h.NonMetro
		}
	}
	return sum
}

// insuranceCharge is the same formula whether or not carrier insurance is elected.
func (c *Calculator) insuranceCharge(invoice, insured float64, metro bool, customer string) float64 {
	if insured >= invoice {
		return 0
	}
	r := c.cfg.NonMetroInsuranceRate
	if metro {
		r = c.cfg.MetroInsuranceRate
	}
	if custom, ok := c.cfg.CustomInsuranceRates[customer]; ok && customer != "" {
		r = custom
	}
	return invoice * r / 100
}

func (c *Calculator) gstRate() float64 {
	if c.cfg.GSTRate > 0 {
		return c.cfg.GSTRate
	}
	return 0.18
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
