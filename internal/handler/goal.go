package handler

import (
	"net/http"

	"github.com/goalnest/goalnest/internal/model"
	"github.com/goalnest/goalnest/internal/service"
)

type GoalHandler struct {
	goalService *service.GoalService
}

func NewGoalHandler(goalService *service.GoalService) *GoalHandler {
	return &GoalHandler{
		goalService: goalService,
	}
}

type createGoalRequest struct {
	Title        string `json:"title" validate:"required"`
	ParentGoalID string `json:"parentGoalId"`
	Color        string `json:"color"`
}

type updateGoalRequest struct {
	Title string `json:"title" validate:"required"`
	Color string `json:"color"`
}

type moveGoalRequest struct {
	ParentGoalID string `json:"parentGoalId"`
}

type transitionRequest struct {
	Ancestry []string `json:"ancestry" validate:"dive,required"`
	Partner  bool     `json:"isPartnerContext"`
}

type transitionResponse struct {
	Action model.Action `json:"action"`
}

func (h *GoalHandler) List(w http.ResponseWriter, r *http.Request) {
	goals, err := h.goalService.Active(r.Context(), r.URL.Query().Get("parent"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goals)
}

func (h *GoalHandler) Archived(w http.ResponseWriter, r *http.Request) {
	goals, err := h.goalService.Archived(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goals)
}

func (h *GoalHandler) Deleted(w http.ResponseWriter, r *http.Request) {
	items, err := h.goalService.Deleted(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *GoalHandler) Search(w http.ResponseWriter, r *http.Request) {
	goals, err := h.goalService.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goals)
}

func (h *GoalHandler) Get(w http.ResponseWriter, r *http.Request) {
	goal, err := h.goalService.ByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

func (h *GoalHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createGoalRequest
	if !decode(w, r, &req) {
		return
	}

	goal, err := h.goalService.Create(r.Context(), req.Title, req.ParentGoalID, req.Color)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, goal)
}

func (h *GoalHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateGoalRequest
	if !decode(w, r, &req) {
		return
	}

	goal, err := h.goalService.Update(r.Context(), r.PathValue("id"), req.Title, req.Color)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

func (h *GoalHandler) Move(w http.ResponseWriter, r *http.Request) {
	var req moveGoalRequest
	if !decode(w, r, &req) {
		return
	}

	goal, err := h.goalService.Move(r.Context(), r.PathValue("id"), req.ParentGoalID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

func (h *GoalHandler) Archive(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if !decode(w, r, &req) {
		return
	}

	action, err := h.goalService.Archive(r.Context(), r.PathValue("id"), req.Ancestry)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transitionResponse{Action: action})
}

func (h *GoalHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if !decode(w, r, &req) {
		return
	}

	action, err := h.goalService.Delete(r.Context(), r.PathValue("id"), req.Ancestry, req.Partner)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transitionResponse{Action: action})
}

func (h *GoalHandler) Restore(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if !decode(w, r, &req) {
		return
	}

	action, err := h.goalService.Restore(r.Context(), r.PathValue("id"), req.Ancestry)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transitionResponse{Action: action})
}

func (h *GoalHandler) AcceptHint(w http.ResponseWriter, r *http.Request) {
	goal, err := h.goalService.AcceptHint(r.Context(), r.PathValue("id"), r.PathValue("hintId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, goal)
}
