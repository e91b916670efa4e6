package routes

import (
	"net/http"

	"github.com/goalnest/goalnest/internal/app"
	"github.com/goalnest/goalnest/internal/handler"
	"github.com/goalnest/goalnest/internal/middleware"
)

func SetupRoutes(app *app.App) http.Handler {
	// Handlers
	goal := handler.NewGoalHandler(app.GoalService)
	hint := handler.NewHintHandler(app.HintService)
	collaboration := handler.NewCollaborationHandler(app.CollaborationService)
	profile := handler.NewProfileHandler(app.ProfileService)
	state := handler.NewStateHandler(app.State)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	// ============================================================================
	// GOALS
	// ============================================================================

	mux.HandleFunc("GET /api/goals", goal.List)
	mux.HandleFunc("POST /api/goals", goal.Create)
	mux.HandleFunc("GET /api/goals/archived", goal.Archived)
	mux.HandleFunc("GET /api/goals/deleted", goal.Deleted)
	mux.HandleFunc("GET /api/goals/search", goal.Search)
	mux.HandleFunc("GET /api/goals/{id}", goal.Get)
	mux.HandleFunc("PATCH /api/goals/{id}", goal.Update)
	mux.HandleFunc("POST /api/goals/{id}/move", goal.Move)
	mux.HandleFunc("POST /api/goals/{id}/archive", goal.Archive)
	mux.HandleFunc("POST /api/goals/{id}/delete", goal.Delete)
	mux.HandleFunc("POST /api/goals/{id}/restore", goal.Restore)

	// Hints
	mux.HandleFunc("GET /api/goals/{id}/hints", hint.Get)
	mux.HandleFunc("PUT /api/goals/{id}/hints", hint.Toggle)
	mux.HandleFunc("DELETE /api/goals/{id}/hints/{hintId}", hint.Dismiss)
	mux.HandleFunc("POST /api/goals/{id}/hints/{hintId}/accept", goal.AcceptHint)

	// ============================================================================
	// COLLABORATION
	// ============================================================================

	mux.HandleFunc("POST /api/goals/{id}/share", collaboration.Share)
	mux.HandleFunc("GET /api/contacts", collaboration.Contacts)
	mux.HandleFunc("POST /api/contacts/invite", collaboration.Invite)
	mux.HandleFunc("POST /api/contacts/accept", collaboration.Accept)
	mux.HandleFunc("POST /api/contacts/{id}/check", collaboration.CheckAcceptance)
	mux.HandleFunc("GET /api/shares", collaboration.PendingShares)
	mux.HandleFunc("POST /api/shares/{id}/collaborate", collaboration.Collaborate)
	mux.HandleFunc("POST /api/sync", collaboration.Refresh)

	// ============================================================================
	// PROFILE & STATE
	// ============================================================================

	mux.HandleFunc("GET /api/profile", profile.Get)
	mux.HandleFunc("PATCH /api/profile", profile.UpdateName)
	mux.HandleFunc("GET /api/state", state.Get)
	mux.HandleFunc("PATCH /api/state", state.Update)
	mux.HandleFunc("POST /api/state/ack", state.Ack)

	return middleware.Chain(mux,
		middleware.RequestID,
		middleware.RequestLogging,
		middleware.Config(app.Cfg),
		middleware.Profile(app.ProfileService),
	)
}
