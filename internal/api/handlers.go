package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"shipportal/internal/auth"
	"shipportal/internal/backend"
	"shipportal/internal/model"
	"shipportal/internal/tracking"
)

// LoginHandler handles POST /v1/auth/login
func (s *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if err := validateLogin(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid login request", err.Error(), r.URL.Path)
		return
	}
	token, p, err := s.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if backend.IsKind(err, backend.KindStatus) || backend.IsKind(err, backend.KindHTTP) {
			writeProblem(w, http.StatusUnauthorized, "Invalid credentials", backend.UserMessage(err), r.URL.Path)
			return
		}
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":     token,
		"expiresIn": int(s.Auth.IdleTimeout().Seconds()),
		"customer":  customerView(p),
	})
}

// LogoutHandler handles POST /v1/auth/logout
func (s *Server) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.Auth.Logout(r.Context(), auth.BearerToken(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MeHandler handles GET /v1/auth/me
func (s *Server) MeHandler(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	writeJSON(w, http.StatusOK, customerView(p))
}

func customerView(p auth.Principal) map[string]string {
	return map[string]string{"id": p.CustomerID, "name": p.Name, "email": p.Email, "mobile": p.Mobile}
}

// CatalogHandler handles GET /v1/catalog/{kind}
func (s *Server) CatalogHandler(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	items, err := s.Catalog.List(r.Context(), p.BackendToken, r.PathValue("kind"))
	if errors.Is(err, errUnknownCatalog) {
		writeProblem(w, http.StatusNotFound, "Not Found", "catalog must be one of categories, commodities, services, payment-modes", r.URL.Path)
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// PincodeHandler handles GET /v1/lookup/pincode/{pin}?field=sender
func (s *Server) PincodeHandler(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	pin := r.PathValue("pin")
	if err := validatePincode(pin); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid pincode", err.Error(), r.URL.Path)
		return
	}
	d, err := s.Locations.Pincode(r.Context(), p, r.URL.Query().Get("field"), pin)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// AreasHandler handles GET /v1/lookup/areas?pincode=&field=
func (s *Server) AreasHandler(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	pin := r.URL.Query().Get("pincode")
	if err := validatePincode(pin); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid pincode", err.Error(), r.URL.Path)
		return
	}
	items, err := s.Locations.Areas(r.Context(), p, r.URL.Query().Get("field"), pin)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// ShipmentsHandler handles GET /v1/shipments
func (s *Server) ShipmentsHandler(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	items, err := s.Backend.ActiveShipments(r.Context(), p.BackendToken, p.CustomerID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if items == nil {
		items = []backend.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// ShipmentByIDHandler handles GET /v1/shipments/{id}
func (s *Server) ShipmentByIDHandler(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	rec, found, err := s.Backend.Shipment(r.Context(), p.BackendToken, p.CustomerID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !found || tracking.CheckOwnership(rec, p.CustomerID) != tracking.Authorized {
		writeProblem(w, http.StatusNotFound, "Not Found", "shipment not found", r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// TrackHandler handles GET /v1/track/{id}. Every failure short of a missing
// login reads as not found, so shipment ids cannot be probed.
func (s *Server) TrackHandler(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	rec, err := s.Tracking.Track(r.Context(), p.CustomerID, p.BackendToken, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// SubmissionsHandler handles GET /v1/submissions
func (s *Server) SubmissionsHandler(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	items, err := s.Store.ListSubmissions(r.Context(), p.CustomerID, queryInt(r, "limit", 50))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// AddressesHandler handles GET /v1/addresses
func (s *Server) AddressesHandler(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	items, err := s.Backend.AddressBook(r.Context(), p.BackendToken, p.CustomerID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if items == nil {
		items = []backend.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// AddAddressHandler handles POST /v1/addresses
func (s *Server) AddAddressHandler(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	fields, ok := s.formFields(w, r, p)
	if !ok {
		return
	}
	if err := s.Backend.AddAddress(r.Context(), p.BackendToken, fields); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]bool{"ok": true})
}

// UpdateAddressHandler handles PUT /v1/addresses/{id}
func (s *Server) UpdateAddressHandler(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	fields, ok := s.formFields(w, r, p)
	if !ok {
		return
	}
	fields["address_id"] = r.PathValue("id")
	if err := s.Backend.UpdateAddress(r.Context(), p.BackendToken, fields); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// DeleteAddressHandler handles DELETE /v1/addresses/{id}
func (s *Server) DeleteAddressHandler(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	if err := s.Backend.DeleteAddress(r.Context(), p.BackendToken, p.CustomerID, r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ProfileHandler handles PUT /v1/profile
func (s *Server) ProfileHandler(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	fields, ok := s.formFields(w, r, p)
	if !ok {
		return
	}
	if err := s.Backend.UpdateProfile(r.Context(), p.BackendToken, fields); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// formFields decodes a flat JSON object into backend form fields. The
// customer id always comes from the session, never the body.
func (s *Server) formFields(w http.ResponseWriter, r *http.Request, p auth.Principal) (map[string]string, bool) {
	var body map[string]any
	if err := decodeJSON(w, r, &body); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return nil, false
	}
	fields := make(map[string]string, len(body)+1)
	for k, v := range body {
		fields[k] = backend.Stringify(v)
	}
	fields["customer_id"] = p.CustomerID
	return fields, true
}

// ListSubscriptionsHandler handles GET /v1/subscriptions
func (s *Server) ListSubscriptionsHandler(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	items, next, err := s.Store.ListSubscriptions(r.Context(), p.CustomerID, r.URL.Query().Get("cursor"), queryInt(r, "limit", 100))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	for i := range items {
		items[i].Secret = ""
	}
	if items == nil {
		items = []model.Subscription{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
}

// CreateSubscriptionHandler handles POST /v1/subscriptions
func (s *Server) CreateSubscriptionHandler(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	var req model.SubscriptionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if err := validateSubscription(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid subscription", err.Error(), r.URL.Path)
		return
	}
	sub, err := s.Store.CreateSubscription(r.Context(), p.CustomerID, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sub.Secret = ""
	writeJSON(w, http.StatusCreated, sub)
}

// DeleteSubscriptionHandler handles DELETE /v1/subscriptions/{id}
func (s *Server) DeleteSubscriptionHandler(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	if err := s.Store.DeleteSubscription(r.Context(), p.CustomerID, r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// WebhookDeliveriesHandler handles GET /v1/webhook-deliveries?status=
func (s *Server) WebhookDeliveriesHandler(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	items, err := s.Store.ListWebhookDeliveries(r.Context(), p.CustomerID, r.URL.Query().Get("status"), queryInt(r, "limit", 100))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// WebhookDeliveryRetryHandler handles POST /v1/webhook-deliveries/{id}/retry
func (s *Server) WebhookDeliveryRetryHandler(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	if err := s.Store.RetryWebhookDelivery(r.Context(), p.CustomerID, r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]int{"accepted": 1})
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ReadyHandler fails only when the store is unreachable. An open backend
// breaker is reported but the portal can still serve drafts and quotes.
func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.Store.Ping(ctx); err != nil {
		s.logFor(r).Warn("store not ready", zap.Error(err))
		writeProblem(w, http.StatusServiceUnavailable, "Not Ready", err.Error(), r.URL.Path)
		return
	}
	status := "ok"
	if s.Backend.BreakerState() == gobreaker.StateOpen {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status, "backend": s.Backend.BreakerState().String()})
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}
