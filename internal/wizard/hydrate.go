package wizard

import (
	"strconv"
	"strings"

	"shipportal/internal/backend"
	"shipportal/internal/model"
)

// hydrate rebuilds a draft from a shipmentactivelist record. Keys mirror the
// submission payload; IDs stay bare until Reconcile swaps in options.
func hydrate(r backend.Record) model.ShipmentDraft {
	d := model.ShipmentDraft{
		ShipmentID:     text(r, "shipment_id", "id"),
		Name:           text(r, "name"),
		Category:       option(r, "category_id", "category_name", "category"),
		NetWeight:      text(r, "net_weight"),
		GrossWeight:    text(r, "gross_weight"),
		NumberOfParcel: text(r, "number_of_parcel"),
		PaymentMode:    option(r, "payment_mode", "payment_mode_name"),
		ServiceType:    option(r, "service_type", "service_type_name"),
		InvoiceValue:   text(r, "invoice_value"),
		InvoiceNumber:  text(r, "invoice_number"),
		Insurance:      flag(r, "insurance"),
		PolicyNumber:   text(r, "policy_number"),
		ExpiryDate:     text(r, "expiry_date"),
		InsuranceValue: text(r, "insurance_value"),
		IsMetro:        flag(r, "is_metro"),
		BillTo:         billTo(r.String("bill_to")),

		IsDifferentDeliveryAddress: flag(r, "is_different_delivery_address"),
	}
	for _, id := range strings.Split(r.String("commodity_id", "commodity"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			d.Commodity = append(d.Commodity, model.Text(id))
		}
	}
	d.Sender = address(r, "sender")
	d.Receiver = address(r, "receiver")
	d.Delivery = address(r, "delivery")
	return d
}

func address(r backend.Record, prefix string) model.Address {
	k := func(s string) string { return prefix + "_" + s }
	a := model.Address{
		Name:         text(r, k("name")),
		CompanyName:  text(r, k("company_name")),
		ZipCode:      text(r, k("zip_code"), k("pincode")),
		State:        option(r, k("state"), k("state_name")),
		City:         option(r, k("city"), k("city_name")),
		Area:         option(r, k("area"), k("area_name")),
		Country:      option(r, k("country"), k("country_name")),
		GSTNo:        text(r, k("gst_no")),
		AddressLine1: text(r, k("address_line1")),
		AddressLine2: text(r, k("address_line2")),
		Mobile:       text(r, k("mobile")),
		Email:        text(r, k("email")),
		CustomerID:   text(r, k("customer_id")),
	}
	switch r.String("is_new_" + prefix + "_address") {
	case "1", "true":
		a.AddressType = model.Text("new")
	case "0", "false":
		a.AddressType = model.Text("existing")
	}
	return a
}

func text(r backend.Record, keys ...string) model.Field {
	if v := r.String(keys...); v != "" {
		return model.Text(v)
	}
	return model.Field{}
}

// option builds a full option when the record carries both ID and name.
func option(r backend.Record, idKey string, nameKeys ...string) model.Field {
	id := r.String(idKey)
	name := r.String(nameKeys...)
	switch {
	case id != "" && name != "":
		return model.Select(id, name)
	case id != "":
		return model.Text(id)
	case name != "":
		return model.Text(name)
	}
	return model.Field{}
}

func flag(r backend.Record, key string) model.Field {
	v := r.String(key)
	if v == "" {
		return model.Field{}
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return model.Bool(v == "1" || strings.EqualFold(v, "yes"))
	}
	return model.Bool(b)
}

func billTo(v string) model.Field {
	switch v {
	case "1", "sender":
		return model.Text("sender")
	case "2", "receiver":
		return model.Text("receiver")
	case "":
		return model.Field{}
	}
	return model.Text(v)
}
