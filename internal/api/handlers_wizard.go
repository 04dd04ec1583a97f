package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"shipportal/internal/auth"
	"shipportal/internal/model"
	"shipportal/internal/wizard"
)

// heartbeatEvery keeps idle event streams open through proxies.
const heartbeatEvery = 15 * time.Second

type wizardView struct {
	Mode      model.Mode          `json:"mode"`
	Step      model.Step          `json:"step"`
	StepName  string              `json:"stepName"`
	IsLast    bool                `json:"isLastStep"`
	Draft     model.ShipmentDraft `json:"draft"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

func viewOf(st model.WizardState) wizardView {
	return wizardView{
		Mode:      st.Mode,
		Step:      st.Step,
		StepName:  st.Step.String(),
		IsLast:    st.Step == model.LastStep,
		Draft:     st.Draft,
		UpdatedAt: st.UpdatedAt,
	}
}

// WizardStartHandler handles POST /v1/wizard/start {mode, shipmentId}
func (s *Server) WizardStartHandler(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	var req startRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if err := validateStart(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid start request", err.Error(), r.URL.Path)
		return
	}
	st, err := s.Wizard.Start(r.Context(), p, req.Mode, req.ShipmentID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewOf(st))
}

// WizardStateHandler handles GET /v1/wizard
func (s *Server) WizardStateHandler(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	st, err := s.Wizard.State(r.Context(), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(st))
}

// WizardUpdateHandler handles PATCH /v1/wizard with a partial draft.
func (s *Server) WizardUpdateHandler(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	var patch wizard.Patch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	st, err := s.Wizard.Update(r.Context(), p, patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(st))
}

// WizardNextHandler handles POST /v1/wizard/next. A rejected step answers 422
// with every violation.
func (s *Server) WizardNextHandler(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	st, err := s.Wizard.Next(r.Context(), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(st))
}

// WizardBackHandler handles POST /v1/wizard/back
func (s *Server) WizardBackHandler(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	st, err := s.Wizard.Back(r.Context(), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(st))
}

// WizardSubmitHandler handles POST /v1/wizard/submit
func (s *Server) WizardSubmitHandler(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	res, err := s.Wizard.Submit(r.Context(), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"shipmentId": res.ShipmentID,
		"mode":       res.Mode,
		"state":      viewOf(res.State),
	})
}

// WizardCancelHandler handles POST /v1/wizard/cancel
func (s *Server) WizardCancelHandler(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	if err := s.Wizard.Cancel(r.Context(), p); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// WizardReconcileHandler handles POST /v1/wizard/reconcile. Without a body
// the cached catalog lists are used.
func (s *Server) WizardReconcileHandler(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	var opts model.Options
	if err := decodeJSON(w, r, &opts); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if isEmptyOptions(opts) {
		var err error
		if opts, err = s.Catalog.Options(r.Context(), p.BackendToken); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	st, err := s.Wizard.Reconcile(r.Context(), p, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(st))
}

func isEmptyOptions(o model.Options) bool {
	return len(o.Categories)+len(o.Commodities)+len(o.PaymentModes)+len(o.ServiceTypes)+
		len(o.States)+len(o.Cities)+len(o.Areas) == 0
}

// WizardEventsHandler handles GET /v1/wizard/events as a server-sent event stream.
func (s *Server) WizardEventsHandler(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, http.StatusInternalServerError, "Streaming unsupported", "", r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.Broker.Subscribe(p.SessionID)
	defer s.Broker.Unsubscribe(p.SessionID, ch)

	heartbeat := func() {
		fmt.Fprintf(w, "event: heartbeat\ndata: {\"ts\":%q}\n\n", time.Now().UTC().Format(time.RFC3339))
		flusher.Flush()
	}
	heartbeat()
	tick := time.NewTicker(heartbeatEvery)
	defer tick.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			b, _ := json.Marshal(evt.Data)
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, b)
			flusher.Flush()
		case <-tick.C:
			heartbeat()
		}
	}
}
