package handlers

import (
	"net/http"
	"strconv"

	"github.com/padelops/tournament-engine/models"
	"github.com/padelops/tournament-engine/services"
)

type TournamentHandler struct {
	tournamentService *services.TournamentService
}

func NewTournamentHandler(tournamentService *services.TournamentService) *TournamentHandler {
	return &TournamentHandler{tournamentService: tournamentService}
}

// GetTournament handles GET /tournaments/{tournamentID}: the tournament with
// its entries and full fixture, set scores included.
func (h *TournamentHandler) GetTournament(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrFail(w, r)
	if !ok {
		return
	}
	tournamentID, err := uuidParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	tournament, err := h.tournamentService.GetWithFixture(r.Context(), caller, tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, tournament, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListMatches handles GET /tournaments/{tournamentID}/matches with optional
// round and status query filters.
func (h *TournamentHandler) ListMatches(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrFail(w, r)
	if !ok {
		return
	}
	tournamentID, err := uuidParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var round *int
	if raw := r.URL.Query().Get("round"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			errorResponse(w, r, http.StatusBadRequest, "round must be a positive integer")
			return
		}
		round = &n
	}
	var status *models.MatchStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := models.MatchStatus(raw)
		if !s.Valid() {
			errorResponse(w, r, http.StatusBadRequest, "unknown match status")
			return
		}
		status = &s
	}

	matches, err := h.tournamentService.ListMatches(r.Context(), caller, tournamentID, round, status)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"matches": matches}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetStandings handles GET /tournaments/{tournamentID}/standings: group
// tables computed from finished group-stage matches.
func (h *TournamentHandler) GetStandings(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrFail(w, r)
	if !ok {
		return
	}
	tournamentID, err := uuidParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	standings, err := h.tournamentService.Standings(r.Context(), caller, tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"standings": standings}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// UploadPoster handles PUT /tournaments/{tournamentID}/poster. Admin only.
func (h *TournamentHandler) UploadPoster(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrFail(w, r)
	if !ok {
		return
	}
	tournamentID, err := uuidParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 5<<20) // 5MB
	contentType := r.Header.Get("Content-Type")

	location, err := h.tournamentService.UploadPoster(r.Context(), caller, tournamentID, contentType, r.Body)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"poster_url": location}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
