package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goalnest/goalnest/internal/middleware"
	"github.com/goalnest/goalnest/internal/model"
	"github.com/goalnest/goalnest/internal/sharing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRelay(t *testing.T, limiter *middleware.RateLimiter) (*httptest.Server, *sharing.Client) {
	t.Helper()
	server := NewServer(NewStore(0), NewTokens("secret", time.Hour), limiter)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return ts, sharing.NewClient(ts.URL, 5*time.Second)
}

// pair has from invite to, accepting as to. Both identities come back
// holding their access tokens.
func pair(t *testing.T, client *sharing.Client, from, to *sharing.Identity) string {
	t.Helper()
	ctx := context.Background()

	created, err := client.CreateRelationship(ctx, *from)
	require.NoError(t, err)
	if created.AccessToken != "" {
		from.Token = created.AccessToken
	}
	require.NotEmpty(t, from.Token)

	accepted, err := client.AcceptRelationship(ctx, created.InviteToken, *to)
	require.NoError(t, err)
	if accepted.AccessToken != "" {
		to.Token = accepted.AccessToken
	}
	require.NotEmpty(t, to.Token)
	return created.RelID
}

func TestRelayInviteAcceptShare(t *testing.T) {
	ctx := context.Background()
	_, client := newTestRelay(t, nil)
	a := sharing.Identity{Peer: alice}
	b := sharing.Identity{Peer: bob}

	created, err := client.CreateRelationship(ctx, a)
	require.NoError(t, err)
	assert.NotEmpty(t, created.RelID)
	assert.NotEmpty(t, created.InviteToken)
	require.NotEmpty(t, created.AccessToken)
	a.Token = created.AccessToken

	status, err := client.RelationshipStatus(ctx, created.RelID, a)
	require.NoError(t, err)
	assert.False(t, status.Accepted)

	accepted, err := client.AcceptRelationship(ctx, created.InviteToken, b)
	require.NoError(t, err)
	assert.True(t, accepted.Accepted)
	assert.Equal(t, created.RelID, accepted.RelationshipID)
	require.NotNil(t, accepted.Peer)
	assert.Equal(t, alice, *accepted.Peer)
	require.NotEmpty(t, accepted.AccessToken)
	b.Token = accepted.AccessToken

	status, err = client.RelationshipStatus(ctx, created.RelID, a)
	require.NoError(t, err)
	assert.True(t, status.Accepted)
	assert.Equal(t, &bob, status.Peer)

	// a registered install gets no second token
	again, err := client.CreateRelationship(ctx, a)
	require.NoError(t, err)
	assert.Empty(t, again.AccessToken)

	msg, err := client.SendMessage(ctx, a, sharing.SendMessageRequest{
		RelID: created.RelID,
		Type:  sharing.MessageShare,
		Goal:  sharing.GoalPayload{ID: "g1", Title: "Run 5k"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Run 5k", msg.Goal.Title)
	assert.Equal(t, alice.InstallID, msg.SenderID)

	inbox, err := client.Messages(ctx, b, 0)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, msg.ID, inbox[0].ID)

	inbox, err = client.Messages(ctx, b, msg.Seq)
	require.NoError(t, err)
	assert.Empty(t, inbox)
}

func TestRelayRejections(t *testing.T) {
	ctx := context.Background()
	_, client := newTestRelay(t, nil)
	a := sharing.Identity{Peer: alice}

	_, err := client.AcceptRelationship(ctx, "forged", sharing.Identity{Peer: bob})
	assert.ErrorIs(t, err, sharing.ErrRejected)

	created, err := client.CreateRelationship(ctx, a)
	require.NoError(t, err)
	a.Token = created.AccessToken

	_, err = client.AcceptRelationship(ctx, created.InviteToken, a)
	assert.ErrorIs(t, err, sharing.ErrRejected)

	_, err = client.SendMessage(ctx, a, sharing.SendMessageRequest{
		RelID: created.RelID,
		Type:  sharing.MessageShare,
		Goal:  sharing.GoalPayload{ID: "g1", Title: "Run 5k"},
	})
	assert.ErrorIs(t, err, sharing.ErrRejected, "not accepted yet")

	_, err = client.RelationshipStatus(ctx, "missing", a)
	assert.ErrorIs(t, err, sharing.ErrRejected)

	_, err = client.SendMessage(ctx, a, sharing.SendMessageRequest{
		RelID: created.RelID,
		Type:  "delete",
		Goal:  sharing.GoalPayload{ID: "g1", Title: "Run 5k"},
	})
	assert.ErrorIs(t, err, sharing.ErrRejected, "unknown message type")
}

func TestRelayKeepsMailboxesPrivate(t *testing.T) {
	ctx := context.Background()
	_, client := newTestRelay(t, nil)
	a := sharing.Identity{Peer: alice}
	b := sharing.Identity{Peer: bob}
	c := sharing.Identity{Peer: carol}

	bobRel := pair(t, client, &a, &b)
	carolRel := pair(t, client, &c, &a)

	_, err := client.SendMessage(ctx, c, sharing.SendMessageRequest{
		RelID: carolRel,
		Type:  sharing.MessageShare,
		Goal:  sharing.GoalPayload{ID: "g1", Title: "Private plan for Alice"},
	})
	require.NoError(t, err)

	// Bob learns Alice's install id from his own relationship
	status, err := client.RelationshipStatus(ctx, bobRel, b)
	require.NoError(t, err)
	require.NotNil(t, status.Peer)
	aliceID := status.Peer.InstallID

	posingAsAlice := sharing.Identity{Peer: sharing.Peer{InstallID: aliceID, Name: "Alice"}, Token: b.Token}
	_, err = client.Messages(ctx, posingAsAlice, 0)
	assert.ErrorIs(t, err, sharing.ErrRejected, "another install's token")

	posingAsAlice.Token = ""
	_, err = client.Messages(ctx, posingAsAlice, 0)
	assert.ErrorIs(t, err, sharing.ErrRejected, "no token")

	_, err = client.CreateRelationship(ctx, posingAsAlice)
	assert.ErrorIs(t, err, sharing.ErrRejected, "registered ids cannot be claimed again")

	posingAsAlice.Token = b.Token
	_, err = client.SendMessage(ctx, posingAsAlice, sharing.SendMessageRequest{
		RelID: bobRel,
		Type:  sharing.MessageUpdate,
		Goal:  sharing.GoalPayload{ID: "g1", Title: "Forged"},
	})
	assert.ErrorIs(t, err, sharing.ErrRejected)

	inbox, err := client.Messages(ctx, a, 0)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, "Private plan for Alice", inbox[0].Goal.Title)
}

func TestRelayFailedAcceptKeepsInstallUnregistered(t *testing.T) {
	ctx := context.Background()
	_, client := newTestRelay(t, nil)
	a := sharing.Identity{Peer: alice}
	b := sharing.Identity{Peer: bob}
	c := sharing.Identity{Peer: carol}

	relID := pair(t, client, &a, &b)
	require.NotEmpty(t, relID)

	status, err := client.RelationshipStatus(ctx, relID, a)
	require.NoError(t, err)
	require.True(t, status.Accepted)

	created, err := client.CreateRelationship(ctx, a)
	require.NoError(t, err)
	_, err = client.AcceptRelationship(ctx, created.InviteToken, b)
	require.NoError(t, err)

	// the invitation is taken, so carol's first call fails and must not
	// consume her registration
	_, err = client.AcceptRelationship(ctx, created.InviteToken, c)
	assert.ErrorIs(t, err, sharing.ErrRejected)

	own, err := client.CreateRelationship(ctx, c)
	require.NoError(t, err)
	assert.NotEmpty(t, own.AccessToken)
}

func TestRelayErrorEnvelope(t *testing.T) {
	ts, _ := newTestRelay(t, nil)

	resp, err := http.Post(ts.URL+"/relationships", "application/json", strings.NewReader(`{"installId":""}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var env sharing.Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.Equal(t, sharing.StatusError, env.Status)
	assert.NotEmpty(t, env.Error)
}

func TestRelayHints(t *testing.T) {
	ctx := context.Background()
	_, client := newTestRelay(t, nil)

	hints, err := client.Hints(ctx, &model.Goal{Title: "Learn Spanish"}, "")
	require.NoError(t, err)
	require.NotEmpty(t, hints)
	assert.Equal(t, "Learn Spanish", hints[0].ParentTitle)
	assert.Empty(t, hints[0].ID)
}

func TestRelayRateLimit(t *testing.T) {
	limiter := middleware.NewRateLimiter(2, time.Minute)
	defer limiter.Close()
	ts, _ := newTestRelay(t, limiter)

	codes := make([]int, 0, 3)
	for range 3 {
		resp, err := http.Get(ts.URL + "/healthz")
		require.NoError(t, err)
		resp.Body.Close()
		codes = append(codes, resp.StatusCode)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}
