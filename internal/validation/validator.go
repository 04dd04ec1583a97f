// Package validation holds the per-step rule sets of the shipment wizard.
package validation

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"shipportal/internal/model"
	"shipportal/internal/normalize"
)

// Flow selects between the create and edit rule variants.
type Flow int

const (
	// FlowAdd requires GST number and address line 2.
	FlowAdd Flow = iota
	// FlowEdit format-checks GST number only when present; address line 2 is optional.
	FlowEdit
)

// FlowFor maps a wizard mode to its rule flow.
func FlowFor(m model.Mode) Flow {
	if m == model.ModeEdit {
		return FlowEdit
	}
	return FlowAdd
}

// FieldError is one violated rule.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Errors is every violation found for a step, in field order.
type Errors []FieldError

func (e Errors) Error() string {
	parts := make([]string, len(e))
	for i, fe := range e {
		parts[i] = fe.Field + " " + fe.Message
	}
	return strings.Join(parts, "; ")
}

// Has reports whether field has at least one violation.
func (e Errors) Has(field string) bool {
	for _, fe := range e {
		if fe.Field == field {
			return true
		}
	}
	return false
}

// Merge appends violations from other for fields not already reported.
func (e Errors) Merge(other Errors) Errors {
	for _, fe := range other {
		if !e.Has(fe.Field) {
			e = append(e, fe)
		}
	}
	return e
}

// Err returns nil for an empty set so callers can use the usual err != nil check.
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// Validator runs the step schemas. It is safe for concurrent use.
type Validator struct {
	v *validator.Validate
}

var (
	defaultValidator *Validator
	defaultOnce      sync.Once
)

// Default returns the shared Validator.
func Default() *Validator {
	defaultOnce.Do(func() { defaultValidator = New() })
	return defaultValidator
}

// New builds a Validator with the portal's custom tags registered.
func New() *Validator {
	v := validator.New()
	_ = v.RegisterValidation("personname", validatePersonName)
	_ = v.RegisterValidation("placename", validatePlaceName)
	_ = v.RegisterValidation("gstin", validateGSTIN)
	_ = v.RegisterValidation("pincode", validatePincode)
	_ = v.RegisterValidation("mobilestart", validateMobileStart)
	_ = v.RegisterValidation("portalemail", validatePortalEmail)
	_ = v.RegisterValidation("positive", validatePositive)

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return fld.Name
		}
		return name
	})
	return &Validator{v: v}
}

// Step validates the field subset of one wizard step and returns every
// violation. Steps with nothing to check return nil.
func (v *Validator) Step(step model.Step, d model.ShipmentDraft, flow Flow) Errors {
	switch step {
	case model.StepShipment:
		return v.structErrors(shipmentFormOf(d))
	case model.StepAddresses:
		errs := v.structErrors(addressesFormOf(d))
		errs = append(errs, v.flowRules("sender", d.Sender, flow)...)
		errs = append(errs, v.flowRules("receiver", d.Receiver, flow)...)
		return sortByField(errs, addressesFieldOrder)
	case model.StepDelivery:
		if !normalize.Flag(d.IsDifferentDeliveryAddress) {
			return nil
		}
		errs := v.structErrors(deliveryFormOf(d.Delivery))
		errs = append(errs, v.lineTwo("deliveryAddress", d.Delivery, flow)...)
		return errs
	default:
		return nil
	}
}

// Check validates the steps from first through last inclusive.
func (v *Validator) Check(d model.ShipmentDraft, flow Flow, last model.Step) Errors {
	var errs Errors
	for s := model.StepShipment; s <= last; s++ {
		errs = append(errs, v.Step(s, d, flow)...)
	}
	return errs
}

func (v *Validator) structErrors(form any) Errors {
	err := v.v.Struct(form)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return Errors{{Field: "form", Message: err.Error()}}
	}
	out := make(Errors, 0, len(verrs))
	for _, e := range verrs {
		out = append(out, FieldError{Field: fieldPath(e.Namespace()), Message: formatFieldError(e)})
	}
	return out
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func (v *Validator) varError(field, value, tag string) Errors {
	err := v.v.Var(value, tag)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return Errors{{Field: field, Message: "is invalid"}}
	}
	return Errors{{Field: field, Message: formatFieldError(verrs[0])}}
}

// flowRules applies the GST and address line 2 rules, which differ per flow.
func (v *Validator) flowRules(prefix string, a model.Address, flow Flow) Errors {
	gstTag := "required,gstin"
	if flow == FlowEdit {
		gstTag = "omitempty,gstin"
	}
	errs := v.varError(prefix+".gstNo", text(a.GSTNo), gstTag)
	return append(errs, v.lineTwo(prefix, a, flow)...)
}

func (v *Validator) lineTwo(prefix string, a model.Address, flow Flow) Errors {
	tag := "required,min=5,max=200"
	if flow == FlowEdit {
		tag = "omitempty,min=5,max=200"
	}
	return v.varError(prefix+".addressLine2", text(a.AddressLine2), tag)
}

func text(f model.Field) string { return strings.TrimSpace(normalize.FieldValue(f, "")) }

func display(f model.Field) string { return strings.TrimSpace(normalize.DisplayText(f)) }

var addressesFieldOrder = []string{
	"name", "companyName", "zipCode", "state", "city", "gstNo",
	"addressLine1", "addressLine2", "mobile", "email", "addressType",
}

// sortByField orders address errors sender first, then receiver, then the
// rest, following the on-screen field order within each block.
func sortByField(errs Errors, order []string) Errors {
	rank := func(field string) int {
		block, name, found := strings.Cut(field, ".")
		if !found {
			return 1 << 20
		}
		base := 0
		if block == "receiver" {
			base = 1 << 10
		}
		for i, o := range order {
			if o == name {
				return base + i
			}
		}
		return base + len(order)
	}
	out := make(Errors, len(errs))
	copy(out, errs)
	// insertion sort keeps the order stable and the slices are tiny
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && rank(out[j].Field) < rank(out[j-1].Field); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
