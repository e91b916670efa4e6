package service

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goalnest/goalnest/internal/db/dbtest"
	"github.com/goalnest/goalnest/internal/model"
	"github.com/goalnest/goalnest/internal/relay"
	"github.com/goalnest/goalnest/internal/repository"
	"github.com/goalnest/goalnest/internal/sharing"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

const testRetention = 7 * 24 * time.Hour

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recorder struct {
	mu     sync.Mutex
	events []model.Event
}

func (r *recorder) Publish(ev model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) actions() []model.Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	actions := make([]model.Action, 0, len(r.events))
	for _, ev := range r.events {
		actions = append(actions, ev.Action)
	}
	return actions
}

func (r *recorder) last() model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return model.Event{}
	}
	return r.events[len(r.events)-1]
}

type stubProvider struct {
	mu    sync.Mutex
	hints []model.GoalHint
	err   error
	calls int
}

func (p *stubProvider) set(hints ...model.GoalHint) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hints = hints
}

func (p *stubProvider) Hints(ctx context.Context, goal *model.Goal, parentTitle string) ([]model.GoalHint, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	out := make([]model.GoalHint, len(p.hints))
	copy(out, p.hints)
	return out, p.err
}

// node is one installation: its own database and services.
type node struct {
	db       *sqlx.DB
	clock    *fakeClock
	events   *recorder
	provider *stubProvider
	goalRepo repository.GoalRepository
	contacts repository.ContactRepository
	hintRepo repository.HintRepository
	goals    *GoalService
	hints    *HintService
	profiles *ProfileService
	collab   *CollaborationService
}

func newNode(t *testing.T, name string, relayClient Relay, clock *fakeClock) *node {
	t.Helper()

	database := dbtest.Open(t)
	n := &node{
		db:       database,
		clock:    clock,
		events:   &recorder{},
		provider: &stubProvider{},
		goalRepo: repository.NewGoalRepository(database),
		contacts: repository.NewContactRepository(database),
		hintRepo: repository.NewHintRepository(database),
	}

	trashRepo := repository.NewTrashRepository(database)
	sharedRepo := repository.NewSharedGoalRepository(database)
	settingsRepo := repository.NewSettingsRepository(database)

	n.hints = NewHintService(database, n.hintRepo, n.goalRepo, n.provider, n.events, clock.Now)
	n.goals = NewGoalService(database, n.goalRepo, trashRepo, sharedRepo, n.hints, n.events, testRetention, clock.Now)
	n.profiles = NewProfileService(settingsRepo, name)
	n.collab = NewCollaborationService(
		database,
		relayClient,
		n.contacts,
		n.goalRepo,
		sharedRepo,
		settingsRepo,
		n.goals,
		n.profiles,
		NewEmailService("", "noreply@example.com", "Goalnest", true),
		n.events,
		"http://goalnest.test",
		clock.Now,
	)
	return n
}

// startRelay runs a relay over HTTP and returns a client for it.
func startRelay(t *testing.T) *sharing.Client {
	t.Helper()

	server := relay.NewServer(relay.NewStore(0), relay.NewTokens("test-secret", time.Hour), nil)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)

	return sharing.NewClient(ts.URL, 5*time.Second)
}

func (n *node) mustCreate(t *testing.T, title, parentID string) *model.Goal {
	t.Helper()
	goal, err := n.goals.Create(context.Background(), title, parentID, "")
	require.NoError(t, err)
	return goal
}
