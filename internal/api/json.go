package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"shipportal/internal/auth"
	"shipportal/internal/backend"
	"shipportal/internal/logging"
	"shipportal/internal/lookup"
	"shipportal/internal/store"
	"shipportal/internal/tracking"
	"shipportal/internal/validation"
	"shipportal/internal/wizard"
)

// maxBody caps JSON request bodies.
const maxBody = 1 << 20

// Problem represents an RFC7807 problem details response body.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
	// Errors lists every field violation when Status is 422.
	Errors validation.Errors `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, title, detail, instance string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Problem{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: instance,
	})
}

func writeValidation(w http.ResponseWriter, r *http.Request, errs validation.Errors) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(http.StatusUnprocessableEntity)
	_ = json.NewEncoder(w).Encode(Problem{
		Type:     "about:blank",
		Title:    "Validation failed",
		Status:   http.StatusUnprocessableEntity,
		Detail:   fmt.Sprintf("%d field(s) need attention", len(errs)),
		Instance: r.URL.Path,
		Errors:   errs,
	})
}

// writeError maps a domain error to a problem response. Unexpected errors are
// logged and reported without their text.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verrs validation.Errors
	var perr *wizard.PatchError
	var berr *backend.Error
	switch {
	case errors.As(err, &verrs):
		writeValidation(w, r, verrs)
	case errors.As(err, &perr):
		writeProblem(w, http.StatusBadRequest, "Invalid draft fields", perr.Error(), r.URL.Path)
	case errors.Is(err, auth.ErrUnauthenticated), errors.Is(err, tracking.ErrUnauthenticated):
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", err.Error(), r.URL.Path)
	case errors.Is(err, wizard.ErrNoWizard):
		writeProblem(w, http.StatusNotFound, "No shipment form", err.Error(), r.URL.Path)
	case errors.Is(err, wizard.ErrNotReviewStep):
		writeProblem(w, http.StatusConflict, "Not on review step", err.Error(), r.URL.Path)
	case errors.Is(err, wizard.ErrMissingShipment):
		writeProblem(w, http.StatusBadRequest, "Missing shipment id", err.Error(), r.URL.Path)
	case errors.Is(err, wizard.ErrShipmentNotFound), errors.Is(err, tracking.ErrNotFound), errors.Is(err, store.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error(), r.URL.Path)
	case errors.Is(err, lookup.ErrSuperseded):
		writeProblem(w, http.StatusConflict, "Superseded", err.Error(), r.URL.Path)
	case errors.As(err, &berr):
		status := http.StatusBadGateway
		switch berr.Kind {
		case backend.KindUnavailable:
			status = http.StatusServiceUnavailable
		case backend.KindStatus:
			status = http.StatusUnprocessableEntity
		}
		s.logFor(r).Warn("backend call failed", zap.Error(err))
		writeProblem(w, status, "Backend request failed", backend.UserMessage(err), r.URL.Path)
	default:
		s.logFor(r).Error("request failed", zap.Error(err))
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "", r.URL.Path)
	}
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (s *Server) logFor(r *http.Request) *zap.Logger {
	return logging.FromContext(r.Context(), s.Log)
}
