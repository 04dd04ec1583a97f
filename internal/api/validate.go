package api

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"shipportal/internal/model"
	"shipportal/internal/webhooks"
)

var requestValidator = validator.New()

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type startRequest struct {
	Mode       model.Mode `json:"mode" validate:"omitempty,oneof=add edit"`
	ShipmentID string     `json:"shipmentId" validate:"required_if=Mode edit"`
}

func validateLogin(req *loginRequest) error {
	req.Email = strings.TrimSpace(req.Email)
	if err := requestValidator.Struct(req); err != nil {
		return errors.New("email and password are required")
	}
	return nil
}

func validateStart(req *startRequest) error {
	if req.Mode == "" {
		req.Mode = model.ModeAdd
	}
	req.ShipmentID = strings.TrimSpace(req.ShipmentID)
	if err := requestValidator.Struct(req); err != nil {
		return errors.New(`mode must be "add" or "edit", and edit needs shipmentId`)
	}
	return nil
}

func validatePincode(pin string) error {
	if err := requestValidator.Var(pin, "required,numeric,len=6"); err != nil {
		return errors.New("pincode must be exactly 6 digits")
	}
	return nil
}

func validateSubscription(req *model.SubscriptionRequest) error {
	req.URL = strings.TrimSpace(req.URL)
	if err := requestValidator.Var(req.URL, "required,http_url"); err != nil {
		return errors.New("url must be an absolute http(s) URL")
	}
	if len(req.Events) == 0 {
		return errors.New("at least one event is required")
	}
	for _, e := range req.Events {
		if !known(e) {
			return errors.New("unknown event: " + e + " (allowed: " + strings.Join(webhooks.KnownEvents, ",") + ")")
		}
	}
	return nil
}

func known(event string) bool {
	for _, k := range webhooks.KnownEvents {
		if k == event {
			return true
		}
	}
	return false
}
