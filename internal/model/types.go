package model

import "time"

// Core domain types for the shipment portal.

// Address is a sender, receiver or delivery address block as edited in the wizard.
type Address struct {
	Name         Field `json:"name"`
	CompanyName  Field `json:"companyName"`
	ZipCode      Field `json:"zipCode"`
	State        Field `json:"state"`
	City         Field `json:"city"`
	Area         Field `json:"area"`
	Country      Field `json:"country"`
	GSTNo        Field `json:"gstNo"`
	AddressLine1 Field `json:"addressLine1"`
	AddressLine2 Field `json:"addressLine2"`
	Mobile       Field `json:"mobile"`
	Email        Field `json:"email"`
	AddressType  Field `json:"addressType"`  // "new" | "existing"
	IsNewAddress Field `json:"isNewAddress"` // legacy boolean used when addressType is absent
	CustomerID   Field `json:"customerId"`
}

// Charges are derived from pricing inputs and never edited by the customer.
type Charges struct {
	ShipmentCharges  float64 `json:"shipmentCharges"`
	InsuranceCharges float64 `json:"insuranceCharges"`
	HandlingCharges  float64 `json:"handlingCharges"`
	TotalCharges     float64 `json:"totalCharges"`
	GSTAmount        float64 `json:"gstAmount"`
	GrandTotal       float64 `json:"grandTotal"`
	// AdditionalCharge is the uninsured gap when carrier insurance is elected.
	// Informational; not part of the total.
	AdditionalCharge float64 `json:"additionalCharge"`
}

// ShipmentDraft is the in-progress multi-step shipment form.
type ShipmentDraft struct {
	ShipmentID Field `json:"shipmentId"`

	Name           Field   `json:"name"`
	Category       Field   `json:"category"`
	Commodity      []Field `json:"commodity"`
	NetWeight      Field   `json:"netWeight"`
	GrossWeight    Field   `json:"grossWeight"`
	NumberOfParcel Field   `json:"numberOfParcel"`
	PaymentMode    Field   `json:"paymentMode"`
	ServiceType    Field   `json:"serviceType"`
	InvoiceValue   Field   `json:"invoiceValue"`
	InvoiceNumber  Field   `json:"invoiceNumber"`

	Insurance      Field `json:"insurance"`
	PolicyNumber   Field `json:"policyNumber"`
	ExpiryDate     Field `json:"expiryDate"`
	InsuranceValue Field `json:"insuranceValue"`
	IsMetro        Field `json:"isMetro"`

	Sender   Address `json:"sender"`
	Receiver Address `json:"receiver"`
	BillTo   Field   `json:"billTo"` // "sender" | "receiver"

	IsDifferentDeliveryAddress Field   `json:"isDifferentDeliveryAddress"`
	Delivery                   Address `json:"deliveryAddress"`

	Charges *Charges `json:"charges,omitempty"`
}

// Payload is the flat string-valued request sent to insertShipment/updateShipment.
type Payload map[string]string

// Step indexes the four wizard steps.
type Step int

const (
	StepShipment Step = iota
	StepAddresses
	StepDelivery
	StepReview
)

// LastStep is the review step, the only one that accepts Submit.
const LastStep = StepReview

func (s Step) String() string {
	switch s {
	case StepShipment:
		return "shipment"
	case StepAddresses:
		return "addresses"
	case StepDelivery:
		return "delivery"
	case StepReview:
		return "review"
	default:
		return "unknown"
	}
}

// Mode is whether the wizard creates a new shipment or edits an existing one.
type Mode string

const (
	ModeAdd  Mode = "add"
	ModeEdit Mode = "edit"
)

// WizardState is what the form controller persists per session.
type WizardState struct {
	SessionID string        `json:"sessionId"`
	Mode      Mode          `json:"mode"`
	Step      Step          `json:"step"`
	Draft     ShipmentDraft `json:"draft"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// Options are the choice lists the UI shows, used to reconcile bare IDs.
type Options struct {
	Categories   []SelectOption `json:"categories,omitempty"`
	Commodities  []SelectOption `json:"commodities,omitempty"`
	PaymentModes []SelectOption `json:"paymentModes,omitempty"`
	ServiceTypes []SelectOption `json:"serviceTypes,omitempty"`
	States       []SelectOption `json:"states,omitempty"`
	Cities       []SelectOption `json:"cities,omitempty"`
	Areas        []SelectOption `json:"areas,omitempty"`
}

// Customer mirrors the Customerdetail object returned by the backend login.
type Customer struct {
	ID     string `json:"id"`
	Token  string `json:"token"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
	Mobile string `json:"mobile,omitempty"`
}

// Session is an authenticated portal session.
type Session struct {
	ID        string    `json:"id"`
	Customer  Customer  `json:"customer"`
	CreatedAt time.Time `json:"createdAt"`
	LastSeen  time.Time `json:"lastSeen"`
}

// QuoteRequest carries the pricing inputs for a standalone quote.
type QuoteRequest struct {
	GrossWeight    Field   `json:"grossWeight"`
	InvoiceValue   Field   `json:"invoiceValue"`
	InsuranceValue Field   `json:"insuranceValue"`
	Insurance      Field   `json:"insurance"`
	IsMetro        Field   `json:"isMetro"`
	City           Field   `json:"city"`
	Commodity      []Field `json:"commodity"`
}

// Submission is a log entry of a submit attempt.
type Submission struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"sessionId"`
	CustomerID string    `json:"customerId"`
	Mode       Mode      `json:"mode"`
	ShipmentID string    `json:"shipmentId,omitempty"`
	Status     string    `json:"status"`
	Message    string    `json:"message,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

type SubscriptionRequest struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Secret string   `json:"secret"`
}

type Subscription struct {
	ID         string   `json:"id"`
	CustomerID string   `json:"customerId"`
	URL        string   `json:"url"`
	Events     []string `json:"events"`
	Secret     string   `json:"secret,omitempty"`
}
