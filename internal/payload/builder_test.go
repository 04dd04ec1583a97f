package payload

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shipportal/internal/model"
)

func TestBuildEmptyDraftHasEveryKey(t *testing.T) {
	p := Build(model.ShipmentDraft{}, "")
	require.Len(t, p, len(RequiredKeys))
	for _, k := range RequiredKeys {
		_, ok := p[k]
		assert.True(t, ok, "missing %s", k)
	}

	assert.Equal(t, "", p["shipment_id"])
	assert.Equal(t, "custom", p["calculation_status"])
	assert.Equal(t, "1", p["added_by_type"])
	assert.Equal(t, "Pending", p["shipment_status"])
	assert.Equal(t, "0.00", p["grand_total"])
	assert.Equal(t, "0.00", p["shipment_charges"])
	assert.Equal(t, "0", p["invoice_value"])
	assert.Equal(t, "1", p["bill_to"])
	assert.Equal(t, "0", p["is_new_sender_address"])
	for _, prefix := range []string{"sender", "receiver", "delivery"} {
		assert.Equal(t, "21", p[prefix+"_state"])
		assert.Equal(t, "817", p[prefix+"_city"])
		assert.Equal(t, "1", p[prefix+"_area"])
		assert.Equal(t, "1", p[prefix+"_country"])
	}
}

func TestBuildMapsDraft(t *testing.T) {
	d := model.ShipmentDraft{
		ShipmentID:     model.Text("SHP-9"),
		Name:           model.Text("Books"),
		Category:       model.Select("4", "Documents"),
		Commodity:      []model.Field{model.Select("1", "Paper"), model.Text("7")},
		GrossWeight:    model.Number(750),
		InvoiceValue:   model.Text("10000"),
		Insurance:      model.Bool(true),
		IsMetro:        model.Text("1"),
		PaymentMode:    model.Select("2", "Prepaid"),
		BillTo:         model.Text("receiver"),
		Sender:         model.Address{State: model.Text("Gujarat"), City: model.Select("779", "Ahmedabad"), AddressType: model.Text("existing")},
		Receiver:       model.Address{City: model.Text("Pune"), Area: model.Select("55", "Kothrud"), IsNewAddress: model.Bool(true)},
		Charges:        &model.Charges{ShipmentCharges: 90, HandlingCharges: 25, TotalCharges: 115, GSTAmount: 20.7, GrandTotal: 135.7},
		NumberOfParcel: model.Number(2),
	}
	p := Build(d, "42")

	assert.Equal(t, "SHP-9", p["shipment_id"])
	assert.Equal(t, "42", p["customer_id"])
	assert.Equal(t, "42", p["added_by"])
	assert.Equal(t, "4", p["category_id"])
	assert.Equal(t, "1,7", p["commodity_id"])
	assert.Equal(t, "750", p["gross_weight"])
	assert.Equal(t, "2", p["number_of_parcel"])
	assert.Equal(t, "2", p["payment_mode"])
	assert.Equal(t, "1", p["insurance"])
	assert.Equal(t, "1", p["is_metro"])
	assert.Equal(t, "2", p["bill_to"])
	assert.Equal(t, "0", p["is_new_sender_address"])
	assert.Equal(t, "1", p["is_new_receiver_address"])
	assert.Equal(t, "11", p["sender_state"])
	assert.Equal(t, "779", p["sender_city"])
	assert.Equal(t, "820", p["receiver_city"])
	assert.Equal(t, "55", p["receiver_area"])
	assert.Equal(t, "90.00", p["shipment_charges"])
	assert.Equal(t, "20.70", p["gst_amount"])
	assert.Equal(t, "135.70", p["grand_total"])
	assert.Equal(t, "0", p["is_different_delivery_address"])
	assert.Equal(t, "817", p["delivery_city"])
}

func TestBillTo(t *testing.T) {
	assert.Equal(t, "1", billTo(model.Text("sender")))
	assert.Equal(t, "2", billTo(model.Text("Receiver")))
	assert.Equal(t, "3", billTo(model.Select("3", "Third party")))
	assert.Equal(t, "1", billTo(model.Field{}))
	assert.Equal(t, "1", billTo(model.Text("")))
}

func TestIsNewAddress(t *testing.T) {
	assert.Equal(t, "1", isNewAddress(model.Address{AddressType: model.Text("new")}))
	assert.Equal(t, "0", isNewAddress(model.Address{AddressType: model.Text("existing"), IsNewAddress: model.Bool(true)}))
	assert.Equal(t, "1", isNewAddress(model.Address{IsNewAddress: model.Text("true")}))
	assert.Equal(t, "0", isNewAddress(model.Address{}))
}

func TestBuildDeterministic(t *testing.T) {
	d := model.ShipmentDraft{Name: model.Text("x"), Commodity: []model.Field{model.Text("1")}}
	assert.Equal(t, Build(d, "1"), Build(d, "1"))
}

func TestBuildResolvesOptionsWithoutIDs(t *testing.T) {
	var d model.ShipmentDraft
	require.NoError(t, json.Unmarshal([]byte(`{"sender":{"state":{"value":"","label":"Maharashtra"},"city":{"value":null,"label":"Mumbai"}},"receiver":{"city":{"value":"","label":""}}}`), &d))
	p := Build(d, "42")
	assert.Equal(t, "21", p["sender_state"])
	assert.Equal(t, "817", p["sender_city"])
	assert.Equal(t, "817", p["receiver_city"])
}
