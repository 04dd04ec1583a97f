// Package wizard is the multi-step shipment form controller. It is the only
// writer of wizard state: every operation on a session runs under that
// session's lock, and validation finishes before any mutation is stored.
package wizard

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"shipportal/internal/auth"
	"shipportal/internal/backend"
	"shipportal/internal/location"
	"shipportal/internal/metrics"
	"shipportal/internal/model"
	"shipportal/internal/normalize"
	"shipportal/internal/payload"
	"shipportal/internal/pricing"
	"shipportal/internal/store"
	"shipportal/internal/tracking"
	"shipportal/internal/validation"
	"shipportal/internal/webhooks"
)

var (
	ErrNoWizard         = errors.New("no shipment form in progress")
	ErrNotReviewStep    = errors.New("shipments can only be submitted from the review step")
	ErrShipmentNotFound = errors.New("shipment not found")
	ErrMissingShipment  = errors.New("shipment id is required to edit")
)

// Event types published to the session's event stream.
const (
	EventDraftUpdated      = "draft.updated"
	EventDraftStep         = "draft.step"
	EventChargesUpdated    = "charges.updated"
	EventShipmentSubmitted = "shipment.submitted"
)

// Event is one message on a session's stream.
type Event struct {
	Type string
	Data map[string]any
}

// Sink receives session events. Publish must not block.
type Sink interface {
	Publish(sessionID string, evt Event)
}

// Backend is the subset of the backend client the controller drives.
type Backend interface {
	InsertShipment(ctx context.Context, token string, p model.Payload) (string, error)
	UpdateShipment(ctx context.Context, token string, p model.Payload) (string, error)
	Shipment(ctx context.Context, token, customerID, shipmentID string) (backend.Record, bool, error)
}

// Catalog supplies the option lists used to reconcile hydrated drafts.
type Catalog interface {
	Options(ctx context.Context, token string) (model.Options, error)
}

// Locator resolves a pincode to the location options the UI shows for it.
type Locator interface {
	PincodeDetails(ctx context.Context, token, pincode string) (backend.PincodeDetails, error)
	Areas(ctx context.Context, token, pincode string) ([]model.SelectOption, error)
}

// Hooks fans shipment events out to customer webhooks.
type Hooks interface {
	Emit(ctx context.Context, customerID, eventType string, data any) int
}

type Controller struct {
	store     store.DraftStore
	log       store.SubmissionLog
	backend   Backend
	calc      *pricing.Calculator
	validator *validation.Validator
	catalog   Catalog
	locator   Locator
	sink      Sink
	hooks     Hooks
	logger    *zap.Logger
	now       func() time.Time

	locks keyedMutex
}

// Deps wires a Controller. Catalog, Locator, Sink and Hooks are optional.
type Deps struct {
	Drafts      store.DraftStore
	Submissions store.SubmissionLog
	Backend     Backend
	Calculator  *pricing.Calculator
	Validator   *validation.Validator
	Catalog     Catalog
	Locator     Locator
	Sink        Sink
	Hooks       Hooks
	Logger      *zap.Logger
}

func New(d Deps) *Controller {
	c := &Controller{
		store:     d.Drafts,
		log:       d.Submissions,
		backend:   d.Backend,
		calc:      d.Calculator,
		validator: d.Validator,
		catalog:   d.Catalog,
		locator:   d.Locator,
		sink:      d.Sink,
		hooks:     d.Hooks,
		logger:    d.Logger,
		now:       time.Now,
	}
	if c.calc == nil {
		c.calc = pricing.NewCalculator(pricing.DefaultConfig())
	}
	if c.validator == nil {
		c.validator = validation.Default()
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	c.logger = c.logger.Named("wizard")
	return c
}

// Start opens a fresh form for p's session, replacing any previous one. Edit
// mode hydrates the draft from the customer's shipment.
func (c *Controller) Start(ctx context.Context, p auth.Principal, mode model.Mode, shipmentID string) (model.WizardState, error) {
	defer c.locks.lock(p.SessionID)()

	st := model.WizardState{SessionID: p.SessionID, Mode: model.ModeAdd, Step: model.StepShipment}
	if mode == model.ModeEdit {
		shipmentID = strings.TrimSpace(shipmentID)
		if shipmentID == "" {
			return model.WizardState{}, ErrMissingShipment
		}
		rec, found, err := c.backend.Shipment(ctx, p.BackendToken, p.CustomerID, shipmentID)
		if err != nil {
			return model.WizardState{}, err
		}
		if !found || tracking.CheckOwnership(rec, p.CustomerID) != tracking.Authorized {
			return model.WizardState{}, ErrShipmentNotFound
		}
		st.Mode = model.ModeEdit
		st.Draft = hydrate(rec)
		if st.Draft.ShipmentID.IsEmpty() {
			st.Draft.ShipmentID = model.Text(shipmentID)
		}
		var opts model.Options
		if c.catalog != nil {
			o, err := c.catalog.Options(ctx, p.BackendToken)
			if err != nil {
				c.logger.Warn("catalog unavailable; draft left partly unreconciled", zap.Error(err))
			} else {
				opts = o
			}
		}
		c.addLocationOptions(ctx, p, st.Draft, &opts)
		st.Draft = Reconcile(st.Draft, opts)
	}
	c.recompute(&st.Draft, p.CustomerID)
	if err := c.save(ctx, &st); err != nil {
		return model.WizardState{}, err
	}
	c.publish(st.SessionID, EventDraftStep, map[string]any{"step": int(st.Step), "mode": string(st.Mode)})
	return st, nil
}

// addLocationOptions fills the state, city and area lists for every address
// in d that has a zip code. Pincode answers come first; the static table
// labels any remaining known IDs.
func (c *Controller) addLocationOptions(ctx context.Context, p auth.Principal, d model.ShipmentDraft, opts *model.Options) {
	if c.locator != nil {
		seen := map[string]bool{}
		for _, a := range []model.Address{d.Sender, d.Receiver, d.Delivery} {
			pin := strings.TrimSpace(normalize.FieldValue(a.ZipCode, ""))
			if pin == "" || seen[pin] {
				continue
			}
			seen[pin] = true
			det, err := c.locator.PincodeDetails(ctx, p.BackendToken, pin)
			if err != nil {
				c.logger.Warn("pincode lookup failed during edit", zap.String("pincode", pin), zap.Error(err))
			} else {
				if det.State.Value != "" {
					opts.States = append(opts.States, det.State)
				}
				if det.City.Value != "" {
					opts.Cities = append(opts.Cities, det.City)
				}
			}
			areas, err := c.locator.Areas(ctx, p.BackendToken, pin)
			if err != nil {
				c.logger.Warn("area lookup failed during edit", zap.String("pincode", pin), zap.Error(err))
				continue
			}
			opts.Areas = append(opts.Areas, areas...)
		}
	}
	opts.States = append(opts.States, location.Options(location.State)...)
	opts.Cities = append(opts.Cities, location.Options(location.City)...)
}

// State returns the session's current form.
func (c *Controller) State(ctx context.Context, p auth.Principal) (model.WizardState, error) {
	defer c.locks.lock(p.SessionID)()
	return c.load(ctx, p.SessionID)
}

// Update merges a patch into the draft. Charges are recomputed when any
// pricing input changed and are never taken from the patch.
func (c *Controller) Update(ctx context.Context, p auth.Principal, patch Patch) (model.WizardState, error) {
	defer c.locks.lock(p.SessionID)()
	st, err := c.load(ctx, p.SessionID)
	if err != nil {
		return model.WizardState{}, err
	}
	next, err := apply(st.Draft, patch)
	if err != nil {
		return model.WizardState{}, err
	}
	changed := inputsChanged(st.Draft, next) || next.Charges == nil
	if changed {
		c.recompute(&next, p.CustomerID)
	}
	st.Draft = next
	if err := c.save(ctx, &st); err != nil {
		return model.WizardState{}, err
	}
	c.publish(st.SessionID, EventDraftUpdated, map[string]any{"fields": patchKeys(patch)})
	if changed {
		c.publish(st.SessionID, EventChargesUpdated, map[string]any{"charges": *st.Draft.Charges})
	}
	return st, nil
}

// Next validates the current step and advances one step. On failure the
// returned error is validation.Errors holding every violation, and nothing is
// stored.
func (c *Controller) Next(ctx context.Context, p auth.Principal) (model.WizardState, error) {
	defer c.locks.lock(p.SessionID)()
	st, err := c.load(ctx, p.SessionID)
	if err != nil {
		return model.WizardState{}, err
	}
	flow := validation.FlowFor(st.Mode)
	errs := c.validator.Step(st.Step, st.Draft, flow)
	if st.Step == model.StepAddresses {
		errs = errs.Merge(c.validator.CriticalCheck(st.Draft, flow))
	}
	if len(errs) > 0 {
		metrics.StepTransitions.WithLabelValues(st.Step.String(), "rejected").Inc()
		return st, errs
	}
	metrics.StepTransitions.WithLabelValues(st.Step.String(), "advanced").Inc()
	if st.Step < model.LastStep {
		st.Step++
	}
	if err := c.save(ctx, &st); err != nil {
		return model.WizardState{}, err
	}
	c.publish(st.SessionID, EventDraftStep, map[string]any{"step": int(st.Step)})
	return st, nil
}

// Back retreats one step without validating.
func (c *Controller) Back(ctx context.Context, p auth.Principal) (model.WizardState, error) {
	defer c.locks.lock(p.SessionID)()
	st, err := c.load(ctx, p.SessionID)
	if err != nil {
		return model.WizardState{}, err
	}
	if st.Step > model.StepShipment {
		st.Step--
	}
	if err := c.save(ctx, &st); err != nil {
		return model.WizardState{}, err
	}
	c.publish(st.SessionID, EventDraftStep, map[string]any{"step": int(st.Step)})
	return st, nil
}

// Reconcile applies option lists to the stored draft.
func (c *Controller) Reconcile(ctx context.Context, p auth.Principal, opts model.Options) (model.WizardState, error) {
	defer c.locks.lock(p.SessionID)()
	st, err := c.load(ctx, p.SessionID)
	if err != nil {
		return model.WizardState{}, err
	}
	next := Reconcile(st.Draft, opts)
	if reconcileEqual(st.Draft, next) {
		return st, nil
	}
	st.Draft = next
	if err := c.save(ctx, &st); err != nil {
		return model.WizardState{}, err
	}
	c.publish(st.SessionID, EventDraftUpdated, map[string]any{"reconciled": true})
	return st, nil
}

// Cancel discards the session's form.
func (c *Controller) Cancel(ctx context.Context, p auth.Principal) error {
	defer c.locks.lock(p.SessionID)()
	if err := c.store.DeleteWizard(ctx, p.SessionID); err != nil {
		return err
	}
	c.publish(p.SessionID, EventDraftStep, map[string]any{"step": int(model.StepShipment), "cancelled": true})
	return nil
}

// SubmitResult is what a successful Submit reports.
type SubmitResult struct {
	ShipmentID string            `json:"shipmentId"`
	Mode       model.Mode        `json:"mode"`
	State      model.WizardState `json:"state"`
}

// Submit sends the draft to the backend. It is only allowed on the review
// step. On success the form resets to a fresh first step; on any failure the
// stored state is left exactly as it was.
func (c *Controller) Submit(ctx context.Context, p auth.Principal) (SubmitResult, error) {
	defer c.locks.lock(p.SessionID)()
	st, err := c.load(ctx, p.SessionID)
	if err != nil {
		return SubmitResult{}, err
	}
	if st.Step != model.LastStep {
		return SubmitResult{}, ErrNotReviewStep
	}
	flow := validation.FlowFor(st.Mode)
	if errs := c.validator.Check(st.Draft, flow, model.LastStep).Merge(c.validator.CriticalCheck(st.Draft, flow)); len(errs) > 0 {
		return SubmitResult{}, errs
	}

	draft := st.Draft
	c.recompute(&draft, p.CustomerID)
	body := payload.Build(draft, p.CustomerID)

	var id string
	if st.Mode == model.ModeEdit {
		id, err = c.backend.UpdateShipment(ctx, p.BackendToken, body)
	} else {
		id, err = c.backend.InsertShipment(ctx, p.BackendToken, body)
	}
	if err != nil {
		metrics.Submissions.WithLabelValues(string(st.Mode), "failed").Inc()
		c.record(ctx, p, st.Mode, body["shipment_id"], "failed", backend.UserMessage(err))
		c.logger.Warn("submit failed", zap.String("session_id", p.SessionID), zap.String("mode", string(st.Mode)), zap.Error(err))
		return SubmitResult{}, err
	}
	metrics.Submissions.WithLabelValues(string(st.Mode), "success").Inc()
	c.record(ctx, p, st.Mode, id, "success", "")

	fresh := model.WizardState{SessionID: p.SessionID, Mode: model.ModeAdd, Step: model.StepShipment}
	if err := c.save(ctx, &fresh); err != nil {
		// the shipment exists; the stale draft is the only casualty
		c.logger.Error("reset after submit failed", zap.String("session_id", p.SessionID), zap.Error(err))
	}

	event := webhooks.EventShipmentCreated
	if st.Mode == model.ModeEdit {
		event = webhooks.EventShipmentUpdated
	}
	data := map[string]any{"shipmentId": id, "mode": string(st.Mode), "grandTotal": draft.Charges.GrandTotal}
	if c.hooks != nil {
		c.hooks.Emit(ctx, p.CustomerID, event, data)
	}
	c.publish(p.SessionID, EventShipmentSubmitted, data)
	c.logger.Info("shipment submitted", zap.String("session_id", p.SessionID), zap.String("shipment_id", id), zap.String("mode", string(st.Mode)))
	return SubmitResult{ShipmentID: id, Mode: st.Mode, State: fresh}, nil
}

// Quote prices a standalone request with the same calculator as drafts.
func (c *Controller) Quote(q model.QuoteRequest, customerID string) model.Charges {
	metrics.Quotes.WithLabelValues("quote").Inc()
	return c.calc.Compute(c.calc.FromQuote(q, customerID))
}

func (c *Controller) recompute(d *model.ShipmentDraft, customerID string) {
	ch := c.calc.Compute(c.calc.FromDraft(*d, customerID))
	d.Charges = &ch
	metrics.Quotes.WithLabelValues("draft").Inc()
}

func (c *Controller) load(ctx context.Context, sessionID string) (model.WizardState, error) {
	st, err := c.store.GetWizard(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return model.WizardState{}, ErrNoWizard
	}
	return st, err
}

func (c *Controller) save(ctx context.Context, st *model.WizardState) error {
	st.UpdatedAt = c.now().UTC()
	return c.store.SaveWizard(ctx, *st)
}

func (c *Controller) record(ctx context.Context, p auth.Principal, mode model.Mode, shipmentID, status, msg string) {
	if c.log == nil {
		return
	}
	_, err := c.log.RecordSubmission(ctx, model.Submission{
		SessionID:  p.SessionID,
		CustomerID: p.CustomerID,
		Mode:       mode,
		ShipmentID: shipmentID,
		Status:     status,
		Message:    msg,
		CreatedAt:  c.now().UTC(),
	})
	if err != nil {
		c.logger.Warn("record submission", zap.Error(err))
	}
}

func (c *Controller) publish(sessionID, typ string, data map[string]any) {
	if c.sink != nil {
		c.sink.Publish(sessionID, Event{Type: typ, Data: data})
	}
}

func inputsChanged(a, b model.ShipmentDraft) bool {
	x, y := pricing.Inputs(a), pricing.Inputs(b)
	if len(x) != len(y) {
		return true
	}
	for i := range x {
		if !normalize.Equal(x[i], y[i]) {
			return true
		}
	}
	return false
}

// reconcileEqual compares the fields Reconcile may rewrite.
func reconcileEqual(a, b model.ShipmentDraft) bool {
	fa := []model.Field{a.Category, a.PaymentMode, a.ServiceType}
	fb := []model.Field{b.Category, b.PaymentMode, b.ServiceType}
	for _, pair := range [][2]model.Address{{a.Sender, b.Sender}, {a.Receiver, b.Receiver}, {a.Delivery, b.Delivery}} {
		fa = append(fa, pair[0].State, pair[0].City, pair[0].Area)
		fb = append(fb, pair[1].State, pair[1].City, pair[1].Area)
	}
	fa = append(fa, a.Commodity...)
	fb = append(fb, b.Commodity...)
	if len(fa) != len(fb) {
		return false
	}
	for i := range fa {
		if fa[i] != fb[i] {
			return false
		}
	}
	return true
}

func patchKeys(p Patch) []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
