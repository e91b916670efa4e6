package handler

import (
	"net/http"

	"github.com/goalnest/goalnest/internal/service"
)

type CollaborationHandler struct {
	collaborationService *service.CollaborationService
}

func NewCollaborationHandler(collaborationService *service.CollaborationService) *CollaborationHandler {
	return &CollaborationHandler{
		collaborationService: collaborationService,
	}
}

type inviteRequest struct {
	Name  string `json:"name" validate:"required,max=100"`
	Email string `json:"email" validate:"omitempty,email"`
}

type acceptInviteRequest struct {
	Link string `json:"link" validate:"required"`
	Name string `json:"name" validate:"required,max=100"`
}

type shareRequest struct {
	ContactID string `json:"contactId" validate:"required"`
}

type refreshResponse struct {
	Applied int `json:"applied"`
}

func (h *CollaborationHandler) Contacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := h.collaborationService.Contacts(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, contacts)
}

func (h *CollaborationHandler) Invite(w http.ResponseWriter, r *http.Request) {
	var req inviteRequest
	if !decode(w, r, &req) {
		return
	}

	invitation, err := h.collaborationService.CreateInvitation(r.Context(), req.Name, req.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, invitation)
}

func (h *CollaborationHandler) Accept(w http.ResponseWriter, r *http.Request) {
	var req acceptInviteRequest
	if !decode(w, r, &req) {
		return
	}

	contact, err := h.collaborationService.AcceptInvitation(r.Context(), req.Link, req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, contact)
}

func (h *CollaborationHandler) CheckAcceptance(w http.ResponseWriter, r *http.Request) {
	contact, err := h.collaborationService.CheckAcceptance(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, contact)
}

func (h *CollaborationHandler) Share(w http.ResponseWriter, r *http.Request) {
	var req shareRequest
	if !decode(w, r, &req) {
		return
	}

	msg, err := h.collaborationService.ShareGoal(r.Context(), r.PathValue("id"), req.ContactID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (h *CollaborationHandler) PendingShares(w http.ResponseWriter, r *http.Request) {
	goals, err := h.collaborationService.PendingShares(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goals)
}

func (h *CollaborationHandler) Collaborate(w http.ResponseWriter, r *http.Request) {
	goal, err := h.collaborationService.Collaborate(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, goal)
}

func (h *CollaborationHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	applied, err := h.collaborationService.Refresh(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, refreshResponse{Applied: applied})
}
