package handlers

import (
	"net/http"

	"github.com/padelops/tournament-engine/services"
)

type IncidentHandler struct {
	incidentService *services.IncidentService
}

func NewIncidentHandler(incidentService *services.IncidentService) *IncidentHandler {
	return &IncidentHandler{incidentService: incidentService}
}

// ReportIncident handles POST /incidents.
func (h *IncidentHandler) ReportIncident(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrFail(w, r)
	if !ok {
		return
	}

	var in services.ReportIncidentInput
	if err := readJSON(w, r, &in); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	incident, err := h.incidentService.ReportIncident(r.Context(), caller, in)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, incident, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListIncidents handles GET /incidents?open=true. Admin only.
func (h *IncidentHandler) ListIncidents(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrFail(w, r)
	if !ok {
		return
	}

	onlyOpen := r.URL.Query().Get("open") == "true"
	incidents, err := h.incidentService.ListIncidents(r.Context(), caller, onlyOpen)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"incidents": incidents}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ResolveIncident handles POST /incidents/{incidentID}/resolve. Admin only.
// Resolving an already-resolved incident replies with the original outcome
// and performs no side effects.
func (h *IncidentHandler) ResolveIncident(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrFail(w, r)
	if !ok {
		return
	}
	incidentID, err := uuidParam(r, "incidentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var res services.Resolution
	if err := readJSON(w, r, &res); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	summary, err := h.incidentService.ResolveIncident(r.Context(), caller, incidentID, res)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, summary, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
