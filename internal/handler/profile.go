package handler

import (
	"net/http"

	"github.com/goalnest/goalnest/internal/ctxkeys"
	"github.com/goalnest/goalnest/internal/service"
)

type ProfileHandler struct {
	profileService *service.ProfileService
}

func NewProfileHandler(profileService *service.ProfileService) *ProfileHandler {
	return &ProfileHandler{
		profileService: profileService,
	}
}

type updateNameRequest struct {
	Name string `json:"name" validate:"required"`
}

func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ctxkeys.Profile(r.Context()))
}

func (h *ProfileHandler) UpdateName(w http.ResponseWriter, r *http.Request) {
	var req updateNameRequest
	if !decode(w, r, &req) {
		return
	}

	err := h.profileService.UpdateName(r.Context(), req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}

	profile, err := h.profileService.Profile(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}
