package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goalnest/goalnest/internal/app"
	"github.com/goalnest/goalnest/internal/config"
	"github.com/goalnest/goalnest/internal/db/dbtest"
	"github.com/goalnest/goalnest/internal/model"
	"github.com/goalnest/goalnest/internal/relay"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startRelay(t *testing.T) string {
	t.Helper()
	server := relay.NewServer(relay.NewStore(0), relay.NewTokens("secret", time.Hour), nil)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

type client struct {
	t       *testing.T
	handler http.Handler
}

func newClient(t *testing.T, relayURL, name string) *client {
	t.Helper()
	cfg := &config.Config{
		AppName:        "Goalnest",
		AppEnv:         "development",
		AppURL:         "http://goalnest.test",
		DisplayName:    name,
		DBDriver:       "sqlite",
		RelayURL:       relayURL,
		RelayTimeout:   5 * time.Second,
		TrashRetention: 7 * 24 * time.Hour,
		EmailFrom:      "noreply@example.com",
	}

	a, err := app.Build(context.Background(), cfg, dbtest.Open(t))
	require.NoError(t, err)
	return &client{t: t, handler: SetupRoutes(a)}
}

func (c *client) do(method, path string, body any, out any) int {
	c.t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)

	if out != nil && rec.Body.Len() > 0 {
		require.NoError(c.t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

type actionBody struct {
	Action model.Action `json:"action"`
}

func TestHealthz(t *testing.T) {
	c := newClient(t, startRelay(t), "Alice")
	assert.Equal(t, http.StatusNoContent, c.do(http.MethodGet, "/healthz", nil, nil))
}

func TestGoalLifecycleOverHTTP(t *testing.T) {
	c := newClient(t, startRelay(t), "Alice")

	var goal model.Goal
	code := c.do(http.MethodPost, "/api/goals", map[string]string{"title": "Run 5k"}, &goal)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, model.RootGoalID, goal.ParentGoalID)

	var errBody map[string]string
	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodPost, "/api/goals", map[string]string{}, &errBody))
	assert.NotEmpty(t, errBody["error"])
	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodPost, "/api/goals", map[string]string{"title": "x", "color": "blue"}, nil))
	assert.Equal(t, http.StatusUnprocessableEntity, c.do(http.MethodPost, "/api/goals", map[string]string{"title": "x", "parentGoalId": "nope"}, nil))
	assert.Equal(t, http.StatusNotFound, c.do(http.MethodGet, "/api/goals/nope", nil, nil))

	var action actionBody
	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/api/goals/"+goal.ID+"/archive", nil, &action))
	assert.Equal(t, model.ActionGoalArchived, action.Action)

	var archived []model.Goal
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/goals/archived", nil, &archived))
	require.Len(t, archived, 1)

	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/api/goals/"+goal.ID+"/restore", map[string]any{"ancestry": []string{}}, &action))
	assert.Equal(t, model.ActionGoalUnarchived, action.Action)

	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/api/goals/"+goal.ID+"/delete", nil, &action))
	assert.Equal(t, model.ActionGoalDeleted, action.Action)

	var trash []model.TrashItem
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/goals/deleted", nil, &trash))
	require.Len(t, trash, 1)
	assert.Equal(t, "Run 5k", trash[0].Title)

	var found []model.Goal
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/goals/search?q=run", nil, &found))
	assert.Len(t, found, 1)

	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/api/goals/"+goal.ID+"/restore", nil, &action))
	assert.Equal(t, model.ActionGoalRestored, action.Action)

	var active []model.Goal
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/goals", nil, &active))
	require.Len(t, active, 1)
	assert.Equal(t, goal.ID, active[0].ID)

	// the state follows the last transition until it is acknowledged
	var state struct {
		LastAction model.Action `json:"lastAction"`
	}
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/state", nil, &state))
	assert.Equal(t, model.ActionGoalRestored, state.LastAction)

	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/api/state/ack", nil, &action))
	assert.Equal(t, model.ActionGoalRestored, action.Action)
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/state", nil, &state))
	assert.Equal(t, model.ActionNone, state.LastAction)
}

func TestHintsOverHTTP(t *testing.T) {
	c := newClient(t, startRelay(t), "Alice")

	var goal model.Goal
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/api/goals", map[string]string{"title": "Run a marathon"}, &goal))

	var hints []model.GoalHint
	require.Equal(t, http.StatusOK, c.do(http.MethodPut, "/api/goals/"+goal.ID+"/hints", map[string]bool{"enabled": true}, &hints))
	require.NotEmpty(t, hints)

	assert.Equal(t, http.StatusNoContent, c.do(http.MethodDelete, "/api/goals/"+goal.ID+"/hints/"+hints[0].ID, nil, nil))

	var child model.Goal
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/api/goals/"+goal.ID+"/hints/"+hints[1].ID+"/accept", nil, &child))
	assert.Equal(t, hints[1].Title, child.Title)
	assert.Equal(t, goal.ID, child.ParentGoalID)

	var record model.HintRecord
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/goals/"+goal.ID+"/hints", nil, &record))
	assert.Len(t, record.GoalHints, len(hints)-2)
	require.Len(t, record.Dismissed, 1)
	assert.Equal(t, hints[0].Title, record.Dismissed[0].Title)

	require.Equal(t, http.StatusOK, c.do(http.MethodPut, "/api/goals/"+goal.ID+"/hints", map[string]bool{"enabled": false}, &hints))
	assert.Empty(t, hints)
}

func TestInviteShareCollaborateOverHTTP(t *testing.T) {
	relayURL := startRelay(t)
	alice := newClient(t, relayURL, "Alice")
	bob := newClient(t, relayURL, "Bob")

	var invitation model.Invitation
	require.Equal(t, http.StatusCreated, alice.do(http.MethodPost, "/api/contacts/invite", map[string]string{"name": "Bob"}, &invitation))
	require.NotEmpty(t, invitation.Link)

	var contact model.Contact
	require.Equal(t, http.StatusOK, bob.do(http.MethodPost, "/api/contacts/accept",
		map[string]string{"link": invitation.Link, "name": "User 1"}, &contact))
	assert.True(t, contact.Accepted)
	assert.Equal(t, "User 1", contact.Name)

	var goal model.Goal
	require.Equal(t, http.StatusCreated, alice.do(http.MethodPost, "/api/goals", map[string]string{"title": "Run 5k"}, &goal))

	// sharing waits for the invitee to accept
	assert.Equal(t, http.StatusConflict, alice.do(http.MethodPost, "/api/goals/"+goal.ID+"/share",
		map[string]string{"contactId": invitation.Contact.ID}, nil))

	require.Equal(t, http.StatusOK, alice.do(http.MethodPost, "/api/contacts/"+invitation.Contact.ID+"/check", nil, &contact))
	require.True(t, contact.Accepted)

	require.Equal(t, http.StatusCreated, alice.do(http.MethodPost, "/api/goals/"+goal.ID+"/share",
		map[string]string{"contactId": invitation.Contact.ID}, nil))

	var refreshed struct {
		Applied int `json:"applied"`
	}
	require.Equal(t, http.StatusOK, bob.do(http.MethodPost, "/api/sync", nil, &refreshed))
	assert.Equal(t, 1, refreshed.Applied)

	var pending []model.Goal
	require.Equal(t, http.StatusOK, bob.do(http.MethodGet, "/api/shares", nil, &pending))
	require.Len(t, pending, 1)
	assert.Equal(t, "Run 5k", pending[0].Title)

	var copied model.Goal
	require.Equal(t, http.StatusCreated, bob.do(http.MethodPost, "/api/shares/"+pending[0].ID+"/collaborate", nil, &copied))
	assert.Equal(t, model.GoalTypeCollaborated, copied.TypeOfGoal)

	var profile model.Profile
	require.Equal(t, http.StatusOK, bob.do(http.MethodGet, "/api/profile", nil, &profile))
	assert.Equal(t, "Bob", profile.Name)
	assert.NotEmpty(t, profile.InstallID)
}
