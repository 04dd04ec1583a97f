package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shipportal/internal/model"
)

func validAddress() model.Address {
	return model.Address{
		Name:         model.Text("Asha Rao"),
		CompanyName:  model.Text("Rao Traders"),
		ZipCode:      model.Text("400001"),
		State:        model.Select("21", "Maharashtra"),
		City:         model.Select("817", "Mumbai"),
		GSTNo:        model.Text("27ABCDE1234F1Z5"),
		AddressLine1: model.Text("12 Marine Drive"),
		AddressLine2: model.Text("Near Churchgate"),
		Mobile:       model.Text("9876543210"),
		Email:        model.Text("asha@example.com"),
		AddressType:  model.Text("new"),
	}
}

func validDraft() model.ShipmentDraft {
	return model.ShipmentDraft{
		Name:           model.Text("Books"),
		Category:       model.Select("1", "Documents"),
		Commodity:      []model.Field{model.Select("1", "Paper")},
		NetWeight:      model.Number(700),
		GrossWeight:    model.Text("750"),
		PaymentMode:    model.Select("2", "Prepaid"),
		ServiceType:    model.Select("1", "Surface"),
		NumberOfParcel: model.Number(1),
		InvoiceValue:   model.Number(10000),
		InvoiceNumber:  model.Text("INV-1"),
		Sender:         validAddress(),
		Receiver:       validAddress(),
		BillTo:         model.Text("sender"),
	}
}

func TestStepShipment(t *testing.T) {
	v := New()
	require.Empty(t, v.Step(model.StepShipment, validDraft(), FlowAdd))

	errs := v.Step(model.StepShipment, model.ShipmentDraft{}, FlowAdd)
	for _, f := range []string{"name", "category", "commodity", "netWeight", "grossWeight", "paymentMode", "serviceType", "numberOfParcel", "invoiceValue", "invoiceNumber"} {
		assert.True(t, errs.Has(f), "missing error for %s", f)
	}

	d := validDraft()
	d.GrossWeight = model.Text("-3")
	d.NetWeight = model.Text("abc")
	errs = v.Step(model.StepShipment, d, FlowAdd)
	require.Len(t, errs, 2)
	assert.Equal(t, "must be a positive number", errs[0].Message)
}

func TestMobileRules(t *testing.T) {
	v := New()
	cases := []struct {
		mobile string
		want   string
	}{
		{"9876543210", ""},
		{"5876543210", "must start with 6, 7, 8, or 9"},
		{"12345", "must be exactly 10 digits"},
		{"98765abcde", "must be exactly 10 digits"},
	}
	for _, tc := range cases {
		t.Run(tc.mobile, func(t *testing.T) {
			d := validDraft()
			d.Sender.Mobile = model.Text(tc.mobile)
			errs := v.Step(model.StepAddresses, d, FlowAdd)
			if tc.want == "" {
				assert.Empty(t, errs)
				return
			}
			require.Len(t, errs, 1)
			assert.Equal(t, "sender.mobile", errs[0].Field)
			assert.Equal(t, tc.want, errs[0].Message)
		})
	}
}

func TestGSTRules(t *testing.T) {
	v := New()
	d := validDraft()
	d.Receiver.GSTNo = model.Text("27ABCDE1234F1Z5")
	assert.Empty(t, v.Step(model.StepAddresses, d, FlowAdd))

	d.Receiver.GSTNo = model.Text("27ABCDE1234F1Z")
	errs := v.Step(model.StepAddresses, d, FlowAdd)
	require.Len(t, errs, 1)
	assert.Equal(t, "receiver.gstNo", errs[0].Field)
	assert.Equal(t, "must be exactly 15 alphanumeric characters", errs[0].Message)

	// edit flow still checks the format
	assert.True(t, v.Step(model.StepAddresses, d, FlowEdit).Has("receiver.gstNo"))
}

func TestFlowAsymmetry(t *testing.T) {
	v := New()
	d := validDraft()
	d.Sender.GSTNo = model.Field{}
	d.Sender.AddressLine2 = model.Text("")

	add := v.Step(model.StepAddresses, d, FlowAdd)
	assert.True(t, add.Has("sender.gstNo"))
	assert.True(t, add.Has("sender.addressLine2"))

	assert.Empty(t, v.Step(model.StepAddresses, d, FlowEdit))

	d.Sender.AddressLine2 = model.Text("abc")
	assert.True(t, v.Step(model.StepAddresses, d, FlowEdit).Has("sender.addressLine2"))
}

func TestAddressesAggregatesAllErrors(t *testing.T) {
	v := New()
	d := validDraft()
	d.Sender.Name = model.Text("A1")
	d.Sender.ZipCode = model.Text("4000")
	d.Receiver.Email = model.Text("nope")
	d.Receiver.City = model.Text("Mumbai 1")
	d.Receiver.AddressType = model.Text("other")
	d.BillTo = model.Text("nobody")

	errs := v.Step(model.StepAddresses, d, FlowAdd)
	var fields []string
	for _, e := range errs {
		fields = append(fields, e.Field)
	}
	assert.Equal(t, []string{
		"sender.name", "sender.zipCode",
		"receiver.city", "receiver.email", "receiver.addressType",
		"billTo",
	}, fields)
	assert.Contains(t, errs.Error(), "billTo must be one of: sender receiver")
}

func TestDeliveryStepConditional(t *testing.T) {
	v := New()
	d := validDraft()
	assert.Nil(t, v.Step(model.StepDelivery, d, FlowAdd))

	d.IsDifferentDeliveryAddress = model.Bool(true)
	errs := v.Step(model.StepDelivery, d, FlowAdd)
	assert.True(t, errs.Has("deliveryAddress.name"))
	assert.True(t, errs.Has("deliveryAddress.addressLine2"))
	assert.True(t, errs.Has("deliveryAddress.companyName"))
	assert.False(t, errs.Has("deliveryAddress.gstNo"), "GST number is optional on the delivery block")
	assert.False(t, v.Step(model.StepDelivery, d, FlowEdit).Has("deliveryAddress.addressLine2"))

	d.Delivery = validAddress()
	d.Delivery.GSTNo = model.Field{}
	assert.Empty(t, v.Step(model.StepDelivery, d, FlowAdd))

	d.Delivery.CompanyName = model.Text("R")
	d.Delivery.GSTNo = model.Text("27ABCDE1234F1Z")
	errs = v.Step(model.StepDelivery, d, FlowEdit)
	assert.True(t, errs.Has("deliveryAddress.companyName"))
	assert.True(t, errs.Has("deliveryAddress.gstNo"))
}

func TestReviewStepHasNoRules(t *testing.T) {
	assert.Nil(t, New().Step(model.StepReview, model.ShipmentDraft{}, FlowAdd))
}

func TestCriticalCheck(t *testing.T) {
	v := Default()
	assert.Empty(t, v.CriticalCheck(validDraft(), FlowAdd))

	d := validDraft()
	d.Sender.GSTNo = model.Text("SHORT")
	d.Sender.Mobile = model.Text("12")
	d.Receiver.Email = model.Text("x@y")
	errs := v.CriticalCheck(d, FlowAdd)
	require.Len(t, errs, 3)
	assert.Equal(t, "sender.gstNo", errs[0].Field)
	assert.Equal(t, "sender.mobile", errs[1].Field)
	assert.Equal(t, "receiver.email", errs[2].Field)

	d = validDraft()
	d.Receiver.GSTNo = model.Field{}
	assert.True(t, v.CriticalCheck(d, FlowAdd).Has("receiver.gstNo"))
	assert.Empty(t, v.CriticalCheck(d, FlowEdit))
}

func TestErrorsMerge(t *testing.T) {
	a := Errors{{Field: "sender.mobile", Message: "x"}}
	b := Errors{{Field: "sender.mobile", Message: "y"}, {Field: "receiver.email", Message: "z"}}
	got := a.Merge(b)
	require.Len(t, got, 2)
	assert.Equal(t, "x", got[0].Message)
	assert.Nil(t, Errors(nil).Err())
	assert.Error(t, got.Err())
}
