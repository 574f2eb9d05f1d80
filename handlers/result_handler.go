package handlers

import (
	"net/http"

	"github.com/padelops/tournament-engine/services"
)

type ResultHandler struct {
	resultService *services.ResultService
}

func NewResultHandler(resultService *services.ResultService) *ResultHandler {
	return &ResultHandler{resultService: resultService}
}

// ReportResult handles POST /matches/{matchID}/result. An Idempotency-Key
// header makes retries safe: the stored response is replayed as-is.
func (h *ResultHandler) ReportResult(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrFail(w, r)
	if !ok {
		return
	}
	matchID, err := uuidParam(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var in services.ReportResultInput
	if err := readJSON(w, r, &in); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	in.MatchID = matchID
	in.IdempotencyKey = r.Header.Get("Idempotency-Key")

	resp, err := h.resultService.ReportResult(r.Context(), caller, in)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, resp, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type confirmResultRequest struct {
	Accept        bool   `json:"accept"`
	DisputeReason string `json:"dispute_reason,omitempty"`
}

// ConfirmResult handles POST /matches/{matchID}/result/confirm. The opposing
// side either accepts the pending result or disputes it with a reason.
func (h *ResultHandler) ConfirmResult(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrFail(w, r)
	if !ok {
		return
	}
	matchID, err := uuidParam(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var req confirmResultRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	resp, err := h.resultService.AcceptResult(r.Context(), caller, matchID, req.Accept, req.DisputeReason)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, resp, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
