package handler

import (
	"net/http"

	"github.com/goalnest/goalnest/internal/appstate"
	"github.com/goalnest/goalnest/internal/config"
	"github.com/goalnest/goalnest/internal/ctxkeys"
	"github.com/goalnest/goalnest/internal/model"
)

// StateHandler exposes the application state the presentation layer reads.
type StateHandler struct {
	state *appstate.State
}

func NewStateHandler(state *appstate.State) *StateHandler {
	return &StateHandler{
		state: state,
	}
}

type stateResponse struct {
	appstate.Snapshot
	Config *config.Config `json:"config,omitempty"`
}

type updateStateRequest struct {
	DarkMode      *bool                      `json:"darkMode"`
	Confirmations map[string]map[string]bool `json:"confirmations" validate:"dive,keys,oneof=goal collaboration,endkeys"`
}

type ackResponse struct {
	Action model.Action `json:"action"`
}

func (h *StateHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, stateResponse{
		Snapshot: h.state.Snapshot(),
		Config:   ctxkeys.Config(r.Context()),
	})
}

func (h *StateHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateStateRequest
	if !decode(w, r, &req) {
		return
	}

	if req.DarkMode != nil {
		h.state.SetDarkMode(*req.DarkMode)
	}
	for category, flags := range req.Confirmations {
		for name, on := range flags {
			h.state.SetConfirmation(category, name, on)
		}
	}

	writeJSON(w, http.StatusOK, stateResponse{Snapshot: h.state.Snapshot()})
}

// Ack consumes the last action once the caller has refreshed.
func (h *StateHandler) Ack(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ackResponse{Action: h.state.ConsumeLastAction()})
}
