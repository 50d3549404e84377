package handlers

import (
	"net/http"

	"github.com/padelhub/match-system/services"
)

type MedalHandler struct {
	medalService *services.MedalService
}

func NewMedalHandler(medalService *services.MedalService) *MedalHandler {
	return &MedalHandler{medalService: medalService}
}

func (h *MedalHandler) ListCatalog(w http.ResponseWriter, r *http.Request) {
	medals, err := h.medalService.ListCatalog(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"medals": medals}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MedalHandler) ListUserMedals(w http.ResponseWriter, r *http.Request) {
	userID, err := getIDFromURL(r, "userID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	medals, err := h.medalService.ListUserMedals(r.Context(), userID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"medals": medals}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
