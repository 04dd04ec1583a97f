package wizard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shipportal/internal/model"
)

var opts = model.Options{
	Categories:  []model.SelectOption{{Value: "1", Label: "Documents"}, {Value: "2", Label: "Parcel"}},
	Commodities: []model.SelectOption{{Value: "3", Label: "Clothing"}},
	States:      []model.SelectOption{{Value: "21", Label: "Maharashtra"}},
	Cities:      []model.SelectOption{{Value: "817", Label: "Mumbai"}},
	Areas:       []model.SelectOption{{Value: "5", Label: "Colaba"}},
}

func TestReconcileMatchesByIDThenLabel(t *testing.T) {
	d := model.ShipmentDraft{
		Category:  model.Text("2"),
		Commodity: []model.Field{model.Text("clothing"), model.Text("99")},
		Receiver: model.Address{
			State: model.Number(21),
			City:  model.Text(" Mumbai "),
			Area:  model.Select("5", ""),
		},
	}
	got := Reconcile(d, opts)
	assert.Equal(t, model.Select("2", "Parcel"), got.Category)
	assert.Equal(t, model.Select("3", "Clothing"), got.Commodity[0])
	assert.Equal(t, model.Text("99"), got.Commodity[1], "unknown ids stay bare")
	assert.Equal(t, model.Select("21", "Maharashtra"), got.Receiver.State)
	assert.Equal(t, model.Select("817", "Mumbai"), got.Receiver.City)
	assert.Equal(t, model.Select("5", "Colaba"), got.Receiver.Area, "missing label filled")
	assert.Equal(t, model.Text("clothing"), d.Commodity[0], "input not mutated")
}

func TestReconcileIsIdempotent(t *testing.T) {
	d := model.ShipmentDraft{
		Category:  model.Text("Documents"),
		Commodity: []model.Field{model.Text("3")},
		Sender:    model.Address{State: model.Select("21", "MH"), City: model.Text("817")},
	}
	once := Reconcile(d, opts)
	twice := Reconcile(once, opts)
	assert.Equal(t, once, twice)
	assert.Equal(t, model.Select("21", "MH"), once.Sender.State, "resolved options keep their label")
}

func TestReconcileWithoutOptions(t *testing.T) {
	d := model.ShipmentDraft{Category: model.Text("2")}
	assert.Equal(t, d, Reconcile(d, model.Options{}))
}

func TestApplyPatch(t *testing.T) {
	d := model.ShipmentDraft{ShipmentID: model.Text("S1"), Charges: &model.Charges{GrandTotal: 5}}
	d.Sender.Name = model.Text("Asha")
	next, err := apply(d, Patch{
		"sender":     []byte(`{"city":{"value":"817","label":"Mumbai"}}`),
		"shipmentId": []byte(`"S2"`),
		"billTo":     []byte(`"receiver"`),
	})
	require.NoError(t, err)
	assert.Equal(t, "Asha", next.Sender.Name.Text, "address blocks merge")
	assert.Equal(t, model.Select("817", "Mumbai"), next.Sender.City)
	assert.Equal(t, "S1", next.ShipmentID.Text)
	assert.Equal(t, model.Text("receiver"), next.BillTo)
	assert.Equal(t, 5.0, next.Charges.GrandTotal)
}
