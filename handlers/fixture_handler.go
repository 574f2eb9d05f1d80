package handlers

import (
	"net/http"

	"github.com/padelops/tournament-engine/brackets"
	"github.com/padelops/tournament-engine/services"
)

type FixtureHandler struct {
	fixtureService *services.FixtureService
}

func NewFixtureHandler(fixtureService *services.FixtureService) *FixtureHandler {
	return &FixtureHandler{fixtureService: fixtureService}
}

// GenerateFixture handles POST /tournaments/{tournamentID}/fixture. The body
// is an optional FixtureConfig; omitted fields fall back to defaults.
func (h *FixtureHandler) GenerateFixture(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrFail(w, r)
	if !ok {
		return
	}
	tournamentID, err := uuidParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var cfg *brackets.FixtureConfig
	if r.ContentLength != 0 {
		var req brackets.FixtureConfig
		if err := readJSON(w, r, &req); err != nil {
			badRequestResponse(w, r, err)
			return
		}
		cfg = &req
	}

	summary, err := h.fixtureService.GenerateFixture(r.Context(), caller, tournamentID, cfg)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, summary, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
