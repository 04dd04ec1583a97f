package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shipportal/internal/auth"
	"shipportal/internal/backend"
	"shipportal/internal/model"
	"shipportal/internal/store"
	"shipportal/internal/validation"
	"shipportal/internal/webhooks"
)

type stubBackend struct {
	mu       sync.Mutex
	inserted []model.Payload
	updated  []model.Payload
	err      error
	record   backend.Record
}

func (s *stubBackend) InsertShipment(ctx context.Context, token string, p model.Payload) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserted = append(s.inserted, p)
	if s.err != nil {
		return "", s.err
	}
	return "SHP-1001", nil
}

func (s *stubBackend) UpdateShipment(ctx context.Context, token string, p model.Payload) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updated = append(s.updated, p)
	if s.err != nil {
		return "", s.err
	}
	return p["shipment_id"], nil
}

func (s *stubBackend) Shipment(ctx context.Context, token, customerID, id string) (backend.Record, bool, error) {
	if s.record == nil {
		return nil, false, nil
	}
	return s.record, true, nil
}

type stubLocator struct {
	details map[string]backend.PincodeDetails
	areas   map[string][]model.SelectOption
	pins    []string
}

func (l *stubLocator) PincodeDetails(ctx context.Context, token, pin string) (backend.PincodeDetails, error) {
	l.pins = append(l.pins, pin)
	d, ok := l.details[pin]
	if !ok {
		return backend.PincodeDetails{}, &backend.Error{Kind: backend.KindStatus, Message: "pincode not found"}
	}
	return d, nil
}

func (l *stubLocator) Areas(ctx context.Context, token, pin string) ([]model.SelectOption, error) {
	return l.areas[pin], nil
}

type recordSink struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordSink) Publish(sessionID string, evt Event) {
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()
}

func (r *recordSink) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type recordHooks struct{ events []string }

func (h *recordHooks) Emit(ctx context.Context, customerID, eventType string, data any) int {
	h.events = append(h.events, eventType)
	return 1
}

type staticCatalog model.Options

func (c staticCatalog) Options(ctx context.Context, token string) (model.Options, error) {
	return model.Options(c), nil
}

var principal = auth.Principal{SessionID: "sess-1", CustomerID: "42", BackendToken: "tok"}

type fixture struct {
	ctl   *Controller
	mem   *store.Memory
	be    *stubBackend
	sink  *recordSink
	hooks *recordHooks
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{mem: store.NewMemory(), be: &stubBackend{}, sink: &recordSink{}, hooks: &recordHooks{}}
	f.ctl = New(Deps{
		Drafts:      f.mem,
		Submissions: f.mem,
		Backend:     f.be,
		Sink:        f.sink,
		Hooks:       f.hooks,
		Catalog: staticCatalog{
			Categories:   []model.SelectOption{{Value: "1", Label: "Documents"}},
			Commodities:  []model.SelectOption{{Value: "1", Label: "Paper"}, {Value: "2", Label: "Electronics"}},
			PaymentModes: []model.SelectOption{{Value: "2", Label: "Prepaid"}},
			ServiceTypes: []model.SelectOption{{Value: "1", Label: "Surface"}},
		},
	})
	return f
}

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
		GrossWeight:    model.Number(750),
		PaymentMode:    model.Select("2", "Prepaid"),
		ServiceType:    model.Select("1", "Surface"),
		NumberOfParcel: model.Number(1),
		InvoiceValue:   model.Number(10000),
		InvoiceNumber:  model.Text("INV-1"),
		InsuranceValue: model.Number(10000),
		IsMetro:        model.Bool(true),
		Sender:         validAddress(),
		Receiver:       validAddress(),
		BillTo:         model.Text("sender"),
	}
}

func (f *fixture) seed(t *testing.T, step model.Step, mode model.Mode, d model.ShipmentDraft) {
	t.Helper()
	require.NoError(t, f.mem.SaveWizard(context.Background(), model.WizardState{SessionID: principal.SessionID, Mode: mode, Step: step, Draft: d}))
}

func patchOf(t *testing.T, v map[string]any) Patch {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	var p Patch
	require.NoError(t, json.Unmarshal(b, &p))
	return p
}

func TestStartAddAndState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.ctl.State(ctx, principal)
	assert.ErrorIs(t, err, ErrNoWizard)

	st, err := f.ctl.Start(ctx, principal, model.ModeAdd, "")
	require.NoError(t, err)
	assert.Equal(t, model.StepShipment, st.Step)
	assert.Equal(t, model.ModeAdd, st.Mode)
	require.NotNil(t, st.Draft.Charges)

	got, err := f.ctl.State(ctx, principal)
	require.NoError(t, err)
	assert.Equal(t, st.Step, got.Step)
	assert.Equal(t, []string{EventDraftStep}, f.sink.types())
}

func TestNextGatesOnValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.ctl.Start(ctx, principal, model.ModeAdd, "")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		st, err := f.ctl.Next(ctx, principal)
		var verrs validation.Errors
		require.True(t, errors.As(err, &verrs))
		assert.Greater(t, len(verrs), 5, "every violation is reported")
		assert.Equal(t, model.StepShipment, st.Step)
	}
	st, err := f.ctl.State(ctx, principal)
	require.NoError(t, err)
	assert.Equal(t, model.StepShipment, st.Step)
}

func TestNextAndBackWalkTheSteps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, model.StepShipment, model.ModeAdd, validDraft())

	for _, want := range []model.Step{model.StepAddresses, model.StepDelivery, model.StepReview, model.StepReview} {
		st, err := f.ctl.Next(ctx, principal)
		require.NoError(t, err)
		assert.Equal(t, want, st.Step)
	}
	for _, want := range []model.Step{model.StepDelivery, model.StepAddresses, model.StepShipment, model.StepShipment} {
		st, err := f.ctl.Back(ctx, principal)
		require.NoError(t, err)
		assert.Equal(t, want, st.Step)
	}
}

func TestNextAddressStepRunsCriticalCheck(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := validDraft()
	d.Sender.Mobile = model.Text("5876543210")
	d.Receiver.GSTNo = model.Text("27ABCDE1234F1Z")
	f.seed(t, model.StepAddresses, model.ModeAdd, d)

	st, err := f.ctl.Next(ctx, principal)
	var verrs validation.Errors
	require.True(t, errors.As(err, &verrs))
	assert.True(t, verrs.Has("sender.mobile"))
	assert.True(t, verrs.Has("receiver.gstNo"))
	assert.Equal(t, model.StepAddresses, st.Step)
}

func TestUpdateRecomputesCharges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.ctl.Start(ctx, principal, model.ModeAdd, "")
	require.NoError(t, err)

	st, err := f.ctl.Update(ctx, principal, patchOf(t, map[string]any{
		"grossWeight":    750,
		"invoiceValue":   "10000",
		"insuranceValue": 10000,
		"insurance":      false,
		"isMetro":        true,
		"commodity":      []any{map[string]any{"value": "1", "label": "Paper"}},
		"charges":        map[string]any{"grandTotal": 1},
	}))
	require.NoError(t, err)
	require.NotNil(t, st.Draft.Charges)
	assert.Equal(t, 90.0, st.Draft.Charges.ShipmentCharges)
	assert.Equal(t, 25.0, st.Draft.Charges.HandlingCharges)
	assert.Equal(t, 115.0, st.Draft.Charges.TotalCharges)
	assert.Equal(t, 20.7, st.Draft.Charges.GSTAmount)
	assert.Equal(t, 135.7, st.Draft.Charges.GrandTotal)
	assert.Contains(t, f.sink.types(), EventChargesUpdated)

	// a non-pricing edit leaves charges alone and emits no charges event
	before := len(f.sink.types())
	st, err = f.ctl.Update(ctx, principal, patchOf(t, map[string]any{"sender": map[string]any{"name": "Ravi"}}))
	require.NoError(t, err)
	assert.Equal(t, "Ravi", st.Draft.Sender.Name.Text)
	assert.Equal(t, 135.7, st.Draft.Charges.GrandTotal)
	assert.Equal(t, []string{EventDraftUpdated}, f.sink.types()[before:])
}

func TestUpdateRejectsUnknownFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.ctl.Start(ctx, principal, model.ModeAdd, "")
	require.NoError(t, err)

	_, err = f.ctl.Update(ctx, principal, patchOf(t, map[string]any{"weight": 1, "colour": "red"}))
	var pe *PatchError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, []string{"colour", "weight"}, pe.Fields)

	_, err = f.ctl.Update(ctx, principal, patchOf(t, map[string]any{"commodity": "1"}))
	require.True(t, errors.As(err, &pe))

	_, err = f.ctl.Update(ctx, principal, patchOf(t, map[string]any{"sender": map[string]any{"nickname": "x"}}))
	require.True(t, errors.As(err, &pe))
}

func TestConcurrentUpdatesAreNotLost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.ctl.Start(ctx, principal, model.ModeAdd, "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, p := range []Patch{
		patchOf(t, map[string]any{"sender": map[string]any{"name": "Asha"}}),
		patchOf(t, map[string]any{"receiver": map[string]any{"name": "Ravi"}}),
		patchOf(t, map[string]any{"invoiceNumber": "INV-9"}),
		patchOf(t, map[string]any{"grossWeight": 10}),
	} {
		wg.Add(1)
		go func(p Patch) {
			defer wg.Done()
			_, err := f.ctl.Update(ctx, principal, p)
			assert.NoError(t, err)
		}(p)
	}
	wg.Wait()

	st, err := f.ctl.State(ctx, principal)
	require.NoError(t, err)
	assert.Equal(t, "Asha", st.Draft.Sender.Name.Text)
	assert.Equal(t, "Ravi", st.Draft.Receiver.Name.Text)
	assert.Equal(t, "INV-9", st.Draft.InvoiceNumber.Text)
	assert.Equal(t, 10.0, st.Draft.GrossWeight.Number)
}

func TestSubmitOnlyFromReview(t *testing.T) {
	f := newFixture(t)
	f.seed(t, model.StepDelivery, model.ModeAdd, validDraft())
	_, err := f.ctl.Submit(context.Background(), principal)
	assert.ErrorIs(t, err, ErrNotReviewStep)
	assert.Empty(t, f.be.inserted)
}

func TestSubmitSuccessResets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, model.StepReview, model.ModeAdd, validDraft())

	res, err := f.ctl.Submit(ctx, principal)
	require.NoError(t, err)
	assert.Equal(t, "SHP-1001", res.ShipmentID)
	assert.Equal(t, model.StepShipment, res.State.Step)

	require.Len(t, f.be.inserted, 1)
	p := f.be.inserted[0]
	assert.Equal(t, "42", p["customer_id"])
	assert.Equal(t, "135.70", p["grand_total"])
	assert.Equal(t, "1", p["bill_to"])

	st, err := f.ctl.State(ctx, principal)
	require.NoError(t, err)
	assert.Equal(t, model.StepShipment, st.Step)
	assert.True(t, st.Draft.Name.IsEmpty())

	subs, err := f.mem.ListSubmissions(ctx, "42", 10)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "success", subs[0].Status)
	assert.Equal(t, []string{webhooks.EventShipmentCreated}, f.hooks.events)
	assert.Contains(t, f.sink.types(), EventShipmentSubmitted)
}

func TestSubmitFailureLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.be.err = &backend.Error{Kind: backend.KindStatus, Endpoint: backend.EndpointInsertShipment, Message: "Duplicate invoice"}
	d := validDraft()
	f.seed(t, model.StepReview, model.ModeAdd, d)
	before, err := f.mem.GetWizard(ctx, principal.SessionID)
	require.NoError(t, err)

	_, err = f.ctl.Submit(ctx, principal)
	require.Error(t, err)
	assert.True(t, backend.IsKind(err, backend.KindStatus))

	after, err := f.mem.GetWizard(ctx, principal.SessionID)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	subs, err := f.mem.ListSubmissions(ctx, "42", 10)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "failed", subs[0].Status)
	assert.Equal(t, "Duplicate invoice", subs[0].Message)
	assert.Empty(t, f.hooks.events)
}

func TestSubmitRevalidatesEveryStep(t *testing.T) {
	f := newFixture(t)
	d := validDraft()
	d.Name = model.Field{}
	f.seed(t, model.StepReview, model.ModeAdd, d)
	_, err := f.ctl.Submit(context.Background(), principal)
	var verrs validation.Errors
	require.True(t, errors.As(err, &verrs))
	assert.True(t, verrs.Has("name"))
	assert.Empty(t, f.be.inserted)
}

func TestStartEditHydratesAndReconciles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.be.record = backend.Record{
		"shipment_id":           "SHP-7",
		"cust_id":               "42",
		"name":                  "Books",
		"category_id":           "1",
		"commodity_id":          "1,2",
		"gross_weight":          "750",
		"invoice_value":         "10000",
		"insurance_value":       "10000",
		"is_metro":              "1",
		"payment_mode":          "Prepaid",
		"bill_to":               "2",
		"sender_state":          "21",
		"sender_state_name":     "Maharashtra",
		"is_new_sender_address": "0",
	}

	st, err := f.ctl.Start(ctx, principal, model.ModeEdit, "SHP-7")
	require.NoError(t, err)
	assert.Equal(t, model.ModeEdit, st.Mode)
	assert.Equal(t, model.Select("1", "Documents"), st.Draft.Category)
	assert.Equal(t, []model.Field{model.Select("1", "Paper"), model.Select("2", "Electronics")}, st.Draft.Commodity)
	assert.Equal(t, model.Select("2", "Prepaid"), st.Draft.PaymentMode, "matched by label")
	assert.Equal(t, model.Text("receiver"), st.Draft.BillTo)
	assert.Equal(t, model.Select("21", "Maharashtra"), st.Draft.Sender.State)
	assert.Equal(t, model.Text("existing"), st.Draft.Sender.AddressType)
	assert.Equal(t, "SHP-7", st.Draft.ShipmentID.Text)
	require.NotNil(t, st.Draft.Charges)
	assert.Equal(t, 90.0, st.Draft.Charges.ShipmentCharges)

	_, err = f.ctl.Start(ctx, principal, model.ModeEdit, "")
	assert.ErrorIs(t, err, ErrMissingShipment)
	f.be.record = backend.Record{"shipment_id": "SHP-8", "cust_id": "7"}
	_, err = f.ctl.Start(ctx, principal, model.ModeEdit, "SHP-8")
	assert.ErrorIs(t, err, ErrShipmentNotFound, "another customer's shipment")
	f.be.record = backend.Record{"shipment_id": "SHP-8"}
	_, err = f.ctl.Start(ctx, principal, model.ModeEdit, "SHP-8")
	assert.ErrorIs(t, err, ErrShipmentNotFound, "no owner field")
	f.be.record = nil
	_, err = f.ctl.Start(ctx, principal, model.ModeEdit, "SHP-8")
	assert.ErrorIs(t, err, ErrShipmentNotFound)
}

func TestStartEditResolvesBareLocationIDs(t *testing.T) {
	f := newFixture(t)
	loc := &stubLocator{
		details: map[string]backend.PincodeDetails{
			"411057": {Pincode: "411057", State: model.SelectOption{Value: "21", Label: "Maharashtra"}, City: model.SelectOption{Value: "9001", Label: "Hinjewadi"}},
		},
		areas: map[string][]model.SelectOption{"411057": {{Value: "5", Label: "Phase One"}}},
	}
	f.ctl.locator = loc
	f.be.record = backend.Record{
		"shipment_id":       "SHP-7",
		"cust_id":           "42",
		"sender_zip_code":   "411057",
		"sender_state":      "21",
		"sender_city":       "9001",
		"sender_area":       "5",
		"receiver_zip_code": "400001",
		"receiver_state":    "21",
		"receiver_city":     "817",
	}

	st, err := f.ctl.Start(context.Background(), principal, model.ModeEdit, "SHP-7")
	require.NoError(t, err)
	assert.Equal(t, model.Select("21", "Maharashtra"), st.Draft.Sender.State)
	assert.Equal(t, model.Select("9001", "Hinjewadi"), st.Draft.Sender.City)
	assert.Equal(t, model.Select("5", "Phase One"), st.Draft.Sender.Area)
	// the receiver's pincode is unknown to the backend; the static table still labels it
	assert.Equal(t, model.Select("21", "Maharashtra"), st.Draft.Receiver.State)
	assert.Equal(t, model.Select("817", "Mumbai"), st.Draft.Receiver.City)
	assert.ElementsMatch(t, []string{"411057", "400001"}, loc.pins)

	errs := validation.Default().Step(model.StepAddresses, st.Draft, validation.FlowEdit)
	for _, field := range []string{"sender.state", "sender.city", "receiver.state", "receiver.city"} {
		assert.False(t, errs.Has(field), field)
	}
}

func TestEditSubmitUsesUpdate(t *testing.T) {
	f := newFixture(t)
	d := validDraft()
	d.ShipmentID = model.Text("SHP-7")
	d.Sender.GSTNo = model.Field{}
	d.Receiver.AddressLine2 = model.Field{}
	f.seed(t, model.StepReview, model.ModeEdit, d)

	res, err := f.ctl.Submit(context.Background(), principal)
	require.NoError(t, err)
	assert.Equal(t, "SHP-7", res.ShipmentID)
	require.Len(t, f.be.updated, 1)
	assert.Empty(t, f.be.inserted)
	assert.Equal(t, []string{webhooks.EventShipmentUpdated}, f.hooks.events)
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, model.StepDelivery, model.ModeAdd, validDraft())
	require.NoError(t, f.ctl.Cancel(ctx, principal))
	_, err := f.ctl.State(ctx, principal)
	assert.ErrorIs(t, err, ErrNoWizard)
}

func TestQuote(t *testing.T) {
	f := newFixture(t)
	ch := f.ctl.Quote(model.QuoteRequest{
		GrossWeight:    model.Number(750),
		InvoiceValue:   model.Number(10000),
		InsuranceValue: model.Number(10000),
		IsMetro:        model.Bool(true),
		Commodity:      []model.Field{model.Text("1")},
	}, "42")
	assert.Equal(t, 135.7, ch.GrandTotal)
}
