package handler

import (
	"net/http"

	"github.com/goalnest/goalnest/internal/service"
)

type HintHandler struct {
	hintService *service.HintService
}

func NewHintHandler(hintService *service.HintService) *HintHandler {
	return &HintHandler{
		hintService: hintService,
	}
}

type toggleHintsRequest struct {
	Enabled bool `json:"enabled"`
}

func (h *HintHandler) Get(w http.ResponseWriter, r *http.Request) {
	record, err := h.hintService.HintRecord(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// Toggle enables hints (fetching a fresh list) or disables them.
func (h *HintHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	var req toggleHintsRequest
	if !decode(w, r, &req) {
		return
	}

	goalID := r.PathValue("id")
	if req.Enabled {
		err := h.hintService.EnableHintsForGoal(r.Context(), goalID)
		if err != nil {
			writeError(w, r, err)
			return
		}
	} else {
		h.hintService.DisableHintsForGoal(r.Context(), goalID)
	}

	hints, err := h.hintService.AvailableHints(r.Context(), goalID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hints)
}

func (h *HintHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	h.hintService.DeleteGoalHint(r.Context(), r.PathValue("id"), r.PathValue("hintId"))
	w.WriteHeader(http.StatusNoContent)
}
