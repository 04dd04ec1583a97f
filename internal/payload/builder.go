// Package payload assembles the flat request body for insertShipment and
// updateShipment from a wizard draft.
package payload

import (
	"sort"
	"strconv"
	"strings"

	"shipportal/internal/location"
	"shipportal/internal/model"
	"shipportal/internal/normalize"
)

// fixed holds backend-required keys with constant values.
var fixed = map[string]string{
	"added_by_type":      "1",
	"calculation_status": "custom",
	"shipment_status":    "Pending",
	"fuel_surcharge":     "0",
	"docket_charges":     "0",
	"fov_charges":        "0",
	"cod_charges":        "0",
	"cod_amount":         "0",
	"discount":           "0",
	"other_charges":      "0",
	"round_off":          "0.00",
	"pickup_status":      "0",
	"delivery_status":    "0",
	"is_cod":             "0",
	"is_deleted":         "0",
	"tax_type":           "GST",
	"gst_percentage":     "18",
	"source":             "portal",
	"platform":           "web",
}

var chargeKeys = []string{
	"shipment_charges", "insurance_charges", "handling_charges",
	"total_charges", "gst_amount", "grand_total", "additional_charge",
}

var addressKeys = []string{
	"name", "company_name", "zip_code", "state", "city", "area", "country",
	"gst_no", "address_line1", "address_line2", "mobile", "email", "customer_id",
}

var shipmentKeys = []string{
	"shipment_id", "customer_id", "added_by",
	"name", "category_id", "commodity_id",
	"net_weight", "gross_weight", "number_of_parcel",
	"payment_mode", "service_type", "invoice_value", "invoice_number",
	"insurance", "policy_number", "expiry_date", "insurance_value",
	"bill_to", "is_metro",
	"is_new_sender_address", "is_new_receiver_address", "is_different_delivery_address",
}

// RequiredKeys lists every key Build emits, sorted.
var RequiredKeys = requiredKeys()

func requiredKeys() []string {
	keys := append([]string{}, shipmentKeys...)
	keys = append(keys, chargeKeys...)
	for _, prefix := range []string{"sender", "receiver", "delivery"} {
		for _, k := range addressKeys {
			keys = append(keys, prefix+"_"+k)
		}
	}
	for k := range fixed {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Build maps a draft to the backend payload. It never fails: every key has a
// default, and every draft value passes through the normalizer or the
// location resolver. Delivery keys are always sent, even when the draft has
// no separate delivery address.
func Build(d model.ShipmentDraft, userID string) model.Payload {
	fv := normalize.FieldValue
	p := model.Payload{
		"shipment_id": fv(d.ShipmentID, ""),
		"customer_id": userID,
		"added_by":    userID,

		"name":             fv(d.Name, ""),
		"category_id":      fv(d.Category, ""),
		"commodity_id":     strings.Join(normalize.Values(d.Commodity), ","),
		"net_weight":       fv(d.NetWeight, "0"),
		"gross_weight":     fv(d.GrossWeight, "0"),
		"number_of_parcel": fv(d.NumberOfParcel, "1"),
		"payment_mode":     fv(d.PaymentMode, ""),
		"service_type":     fv(d.ServiceType, ""),
		"invoice_value":    fv(d.InvoiceValue, "0"),
		"invoice_number":   fv(d.InvoiceNumber, ""),

		"insurance":       normalize.BooleanFlag(d.Insurance),
		"policy_number":   fv(d.PolicyNumber, ""),
		"expiry_date":     fv(d.ExpiryDate, ""),
		"insurance_value": fv(d.InsuranceValue, "0"),

		"bill_to":                       billTo(d.BillTo),
		"is_metro":                      normalize.BooleanFlag(d.IsMetro),
		"is_new_sender_address":         isNewAddress(d.Sender),
		"is_new_receiver_address":       isNewAddress(d.Receiver),
		"is_different_delivery_address": normalize.BooleanFlag(d.IsDifferentDeliveryAddress),
	}
	putAddress(p, "sender", d.Sender)
	putAddress(p, "receiver", d.Receiver)
	putAddress(p, "delivery", d.Delivery)
	putCharges(p, d.Charges)
	for k, v := range fixed {
		p[k] = v
	}
	return p
}

func putAddress(p model.Payload, prefix string, a model.Address) {
	fv := normalize.FieldValue
	p[prefix+"_name"] = fv(a.Name, "")
	p[prefix+"_company_name"] = fv(a.CompanyName, "")
	p[prefix+"_zip_code"] = fv(a.ZipCode, "")
	p[prefix+"_state"] = location.Resolve(a.State, location.State)
	p[prefix+"_city"] = location.Resolve(a.City, location.City)
	p[prefix+"_area"] = location.Resolve(a.Area, location.Area)
	p[prefix+"_country"] = location.Resolve(a.Country, location.Country)
	p[prefix+"_gst_no"] = fv(a.GSTNo, "")
	p[prefix+"_address_line1"] = fv(a.AddressLine1, "")
	p[prefix+"_address_line2"] = fv(a.AddressLine2, "")
	p[prefix+"_mobile"] = fv(a.Mobile, "")
	p[prefix+"_email"] = fv(a.Email, "")
	p[prefix+"_customer_id"] = fv(a.CustomerID, "")
}

func putCharges(p model.Payload, c *model.Charges) {
	var v model.Charges
	if c != nil {
		v = *c
	}
	p["shipment_charges"] = money(v.ShipmentCharges)
	p["insurance_charges"] = money(v.InsuranceCharges)
	p["handling_charges"] = money(v.HandlingCharges)
	p["total_charges"] = money(v.TotalCharges)
	p["gst_amount"] = money(v.GSTAmount)
	p["grand_total"] = money(v.GrandTotal)
	p["additional_charge"] = money(v.AdditionalCharge)
}

// billTo sends "1" for sender and "2" for receiver; anything else is passed
// through with "1" as the fallback.
func billTo(f model.Field) string {
	switch strings.ToLower(strings.TrimSpace(normalize.FieldValue(f, ""))) {
	case "sender":
		return "1"
	case "receiver":
		return "2"
	}
	if v := normalize.FieldValue(f, "1"); v != "" {
		return v
	}
	return "1"
}

// isNewAddress prefers addressType and falls back to the legacy boolean.
func isNewAddress(a model.Address) string {
	t := strings.ToLower(strings.TrimSpace(normalize.FieldValue(a.AddressType, "")))
	switch {
	case t == "new":
		return "1"
	case t != "":
		return "0"
	default:
		return normalize.BooleanFlag(a.IsNewAddress)
	}
}

func money(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }
