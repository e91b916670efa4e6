package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/goalnest/goalnest/internal/model"
	"github.com/goalnest/goalnest/internal/sharing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// connect invites to from, accepts on the other side and confirms on the
// inviting side. It returns the contact each side holds for the other.
func connect(t *testing.T, from, to *node, toName, fromName string) (*model.Contact, *model.Contact) {
	t.Helper()
	ctx := context.Background()

	invitation, err := from.collab.CreateInvitation(ctx, toName, "")
	require.NoError(t, err)

	back, err := to.collab.AcceptInvitation(ctx, invitation.Link, fromName)
	require.NoError(t, err)

	contact, err := from.collab.CheckAcceptance(ctx, invitation.Contact.ID)
	require.NoError(t, err)
	require.True(t, contact.Accepted)
	return contact, back
}

func TestInviteAndAccept(t *testing.T) {
	ctx := context.Background()
	relayClient := startRelay(t)
	clock := newFakeClock()
	a := newNode(t, "Alice", relayClient, clock)
	b := newNode(t, "Bob", relayClient, clock)

	invitation, err := a.collab.CreateInvitation(ctx, "Bob", "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(invitation.Link, "http://goalnest.test/invite/"))
	assert.False(t, invitation.Contact.Accepted)

	pending, err := a.collab.CheckAcceptance(ctx, invitation.Contact.ID)
	require.NoError(t, err)
	assert.False(t, pending.Accepted)

	contact, err := b.collab.AcceptInvitation(ctx, invitation.Link, "User 1")
	require.NoError(t, err)
	assert.Equal(t, "User 1", contact.Name)
	assert.True(t, contact.Accepted)

	contacts, err := b.collab.Contacts(ctx)
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, "User 1", contacts[0].Name)

	// the stored relationship resolves to A on the relay
	aProfile, err := a.profiles.Profile(ctx)
	require.NoError(t, err)
	bSelf, err := b.collab.self(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, bSelf.Token, "accepting registers the install with the relay")

	env, err := relayClient.RelationshipStatus(ctx, contacts[0].RelationshipID, bSelf)
	require.NoError(t, err)
	assert.True(t, env.Accepted)
	require.NotNil(t, env.Peer)
	assert.Equal(t, aProfile.InstallID, env.Peer.InstallID)

	accepted, err := a.collab.CheckAcceptance(ctx, invitation.Contact.ID)
	require.NoError(t, err)
	assert.True(t, accepted.Accepted)

	// accepting the same link again keeps a single contact
	again, err := b.collab.AcceptInvitation(ctx, invitation.Token, "Someone else")
	require.NoError(t, err)
	assert.Equal(t, contact.ID, again.ID)
}

func TestAcceptInvitationRejectsBadLinks(t *testing.T) {
	ctx := context.Background()
	relayClient := startRelay(t)
	b := newNode(t, "Bob", relayClient, newFakeClock())

	_, err := b.collab.AcceptInvitation(ctx, "http://goalnest.test/invite/", "User 1")
	assert.ErrorIs(t, err, ErrInvalidInvite)

	_, err = b.collab.AcceptInvitation(ctx, "not-a-token", "User 1")
	assert.ErrorIs(t, err, sharing.ErrRejected)

	contacts, err := b.collab.Contacts(ctx)
	require.NoError(t, err)
	assert.Empty(t, contacts)
}

func TestRefreshBeforeRegistrationIsNoop(t *testing.T) {
	ctx := context.Background()
	relayClient := startRelay(t)
	b := newNode(t, "Bob", relayClient, newFakeClock())

	applied, err := b.collab.Refresh(ctx)
	require.NoError(t, err)
	assert.Zero(t, applied)

	self, err := b.collab.self(ctx)
	require.NoError(t, err)
	assert.Empty(t, self.Token)
}

func TestShareRequiresAcceptedContact(t *testing.T) {
	ctx := context.Background()
	relayClient := startRelay(t)
	a := newNode(t, "Alice", relayClient, newFakeClock())
	goal := a.mustCreate(t, "Run 5k", "")

	invitation, err := a.collab.CreateInvitation(ctx, "Bob", "")
	require.NoError(t, err)

	_, err = a.collab.ShareGoal(ctx, goal.ID, invitation.Contact.ID)
	assert.ErrorIs(t, err, ErrContactNotAccepted)

	got, err := a.goals.ByID(ctx, goal.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Participants)
}

func TestSharedGoalShowsInPendingShares(t *testing.T) {
	ctx := context.Background()
	relayClient := startRelay(t)
	clock := newFakeClock()
	a := newNode(t, "Alice", relayClient, clock)
	b := newNode(t, "Bob", relayClient, clock)

	bobOnA, aliceOnB := connect(t, a, b, "Bob", "Alice")
	goal := a.mustCreate(t, "Run 5k", "")

	msg, err := a.collab.ShareGoal(ctx, goal.ID, bobOnA.ID)
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, sharing.MessageShare, msg.Type)
	assert.Equal(t, "Run 5k", msg.Goal.Title)

	shared, err := a.goals.ByID(ctx, goal.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{bobOnA.ID}, shared.Participants)

	applied, err := b.collab.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	pending, err := b.collab.PendingShares(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "Run 5k", pending[0].Title)
	assert.Equal(t, model.GoalTypeShared, pending[0].TypeOfGoal)
	assert.Equal(t, []string{aliceOnB.ID}, pending[0].Participants)

	// the cursor moved on, nothing is applied twice
	applied, err = b.collab.Refresh(ctx)
	require.NoError(t, err)
	assert.Zero(t, applied)
}

func TestCollaborateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	relayClient := startRelay(t)
	clock := newFakeClock()
	a := newNode(t, "Alice", relayClient, clock)
	b := newNode(t, "Bob", relayClient, clock)

	bobOnA, aliceOnB := connect(t, a, b, "Bob", "Alice")
	goal := a.mustCreate(t, "Run 5k", "")
	_, err := a.collab.ShareGoal(ctx, goal.ID, bobOnA.ID)
	require.NoError(t, err)
	_, err = b.collab.Refresh(ctx)
	require.NoError(t, err)

	pending, err := b.collab.PendingShares(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	copied, err := b.collab.Collaborate(ctx, pending[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.GoalTypeCollaborated, copied.TypeOfGoal)
	assert.Equal(t, goal.ID, copied.SourceGoalID)
	assert.Equal(t, []string{aliceOnB.ID}, copied.Participants)

	again, err := b.collab.Collaborate(ctx, pending[0].ID)
	require.NoError(t, err)
	assert.Equal(t, copied.ID, again.ID)

	pending, err = b.collab.PendingShares(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	active, err := b.goals.Active(ctx, "")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Run 5k", active[0].Title)

	// the copy has its own hint record
	_, err = b.hints.HintRecord(ctx, copied.ID)
	assert.NoError(t, err)

	assert.Contains(t, b.events.actions(), model.ActionGoalColabRequest)
}

func TestCollaborateAgainRestoresTrashedCopy(t *testing.T) {
	ctx := context.Background()
	relayClient := startRelay(t)
	clock := newFakeClock()
	a := newNode(t, "Alice", relayClient, clock)
	b := newNode(t, "Bob", relayClient, clock)

	bobOnA, _ := connect(t, a, b, "Bob", "Alice")
	goal := a.mustCreate(t, "Run 5k", "")
	_, err := a.collab.ShareGoal(ctx, goal.ID, bobOnA.ID)
	require.NoError(t, err)
	_, err = b.collab.Refresh(ctx)
	require.NoError(t, err)

	pending, err := b.collab.PendingShares(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	shareID := pending[0].ID

	copied, err := b.collab.Collaborate(ctx, shareID)
	require.NoError(t, err)

	action, err := b.goals.Delete(ctx, copied.ID, nil, false)
	require.NoError(t, err)
	require.Equal(t, model.ActionGoalDeleted, action)

	again, err := b.collab.Collaborate(ctx, shareID)
	require.NoError(t, err)
	assert.Equal(t, copied.ID, again.ID)

	action, err = b.goals.Restore(ctx, copied.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, model.ActionNone, action)

	copies, err := b.goalRepo.BySource(ctx, copied.SourceRelationshipID, goal.ID)
	require.NoError(t, err)
	require.Len(t, copies, 1)
	assert.Equal(t, copied.ID, copies[0].ID)

	trash, err := b.goals.Deleted(ctx)
	require.NoError(t, err)
	assert.Empty(t, trash)
}

func TestCollaborateAfterTrashedCopyExpiredMakesNewCopy(t *testing.T) {
	ctx := context.Background()
	relayClient := startRelay(t)
	clock := newFakeClock()
	a := newNode(t, "Alice", relayClient, clock)
	b := newNode(t, "Bob", relayClient, clock)

	bobOnA, _ := connect(t, a, b, "Bob", "Alice")
	goal := a.mustCreate(t, "Run 5k", "")
	_, err := a.collab.ShareGoal(ctx, goal.ID, bobOnA.ID)
	require.NoError(t, err)
	_, err = b.collab.Refresh(ctx)
	require.NoError(t, err)

	pending, err := b.collab.PendingShares(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	shareID := pending[0].ID

	copied, err := b.collab.Collaborate(ctx, shareID)
	require.NoError(t, err)
	_, err = b.goals.Delete(ctx, copied.ID, nil, false)
	require.NoError(t, err)

	clock.Advance(testRetention + time.Hour)

	fresh, err := b.collab.Collaborate(ctx, shareID)
	require.NoError(t, err)
	assert.NotEqual(t, copied.ID, fresh.ID)

	_, err = b.hints.HintRecord(ctx, copied.ID)
	assert.Error(t, err, "expired copy is purged with its hint record")

	copies, err := b.goalRepo.BySource(ctx, fresh.SourceRelationshipID, goal.ID)
	require.NoError(t, err)
	assert.Len(t, copies, 1)
}

func TestCollaborationChainKeepsTitleLineage(t *testing.T) {
	ctx := context.Background()
	relayClient := startRelay(t)
	clock := newFakeClock()
	a := newNode(t, "Alice", relayClient, clock)
	b := newNode(t, "Bob", relayClient, clock)
	c := newNode(t, "Carol", relayClient, clock)

	bobOnA, _ := connect(t, a, b, "Bob", "Alice")
	carolOnB, _ := connect(t, b, c, "Carol", "Bob")

	original := a.mustCreate(t, "Learn to sail", "")
	_, err := a.collab.ShareGoal(ctx, original.ID, bobOnA.ID)
	require.NoError(t, err)

	_, err = b.collab.Refresh(ctx)
	require.NoError(t, err)
	pending, err := b.collab.PendingShares(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	bCopy, err := b.collab.Collaborate(ctx, pending[0].ID)
	require.NoError(t, err)

	_, err = b.collab.ShareGoal(ctx, bCopy.ID, carolOnB.ID)
	require.NoError(t, err)

	_, err = c.collab.Refresh(ctx)
	require.NoError(t, err)
	pending, err = c.collab.PendingShares(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, original.Title, pending[0].Title)

	cCopy, err := c.collab.Collaborate(ctx, pending[0].ID)
	require.NoError(t, err)
	assert.Equal(t, original.Title, cCopy.Title)
	assert.Equal(t, bCopy.ID, cCopy.SourceGoalID)

	// an edit at the head of the chain reaches the end of it
	_, err = a.goals.Update(ctx, original.ID, "Learn to sail solo", "")
	require.NoError(t, err)

	_, err = b.collab.Refresh(ctx)
	require.NoError(t, err)
	_, err = c.collab.Refresh(ctx)
	require.NoError(t, err)

	gotB, err := b.goals.ByID(ctx, bCopy.ID)
	require.NoError(t, err)
	assert.Equal(t, "Learn to sail solo", gotB.Title)

	gotC, err := c.goals.ByID(ctx, cCopy.ID)
	require.NoError(t, err)
	assert.Equal(t, "Learn to sail solo", gotC.Title)
}

func TestEditsFlowBackToTheOwner(t *testing.T) {
	ctx := context.Background()
	relayClient := startRelay(t)
	clock := newFakeClock()
	a := newNode(t, "Alice", relayClient, clock)
	b := newNode(t, "Bob", relayClient, clock)

	bobOnA, _ := connect(t, a, b, "Bob", "Alice")
	goal := a.mustCreate(t, "Run 5k", "")
	_, err := a.collab.ShareGoal(ctx, goal.ID, bobOnA.ID)
	require.NoError(t, err)

	_, err = b.collab.Refresh(ctx)
	require.NoError(t, err)
	pending, err := b.collab.PendingShares(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	bCopy, err := b.collab.Collaborate(ctx, pending[0].ID)
	require.NoError(t, err)

	_, err = b.goals.Update(ctx, bCopy.ID, "Run 10k", "#112233")
	require.NoError(t, err)

	applied, err := a.collab.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	got, err := a.goals.ByID(ctx, goal.ID)
	require.NoError(t, err)
	assert.Equal(t, "Run 10k", got.Title)
	assert.Equal(t, "#112233", got.Color)

	// A applied the edit without echoing it back
	applied, err = b.collab.Refresh(ctx)
	require.NoError(t, err)
	assert.Zero(t, applied)
}

func TestUpdateBeforeCollaborateRefreshesPendingShare(t *testing.T) {
	ctx := context.Background()
	relayClient := startRelay(t)
	clock := newFakeClock()
	a := newNode(t, "Alice", relayClient, clock)
	b := newNode(t, "Bob", relayClient, clock)

	bobOnA, _ := connect(t, a, b, "Bob", "Alice")
	goal := a.mustCreate(t, "Run 5k", "")
	_, err := a.collab.ShareGoal(ctx, goal.ID, bobOnA.ID)
	require.NoError(t, err)
	_, err = a.goals.Update(ctx, goal.ID, "Run 8k", "")
	require.NoError(t, err)

	applied, err := b.collab.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, applied)

	pending, err := b.collab.PendingShares(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "Run 8k", pending[0].Title)
}

func TestPartnerContextDeleteDropsTheShare(t *testing.T) {
	ctx := context.Background()
	relayClient := startRelay(t)
	clock := newFakeClock()
	a := newNode(t, "Alice", relayClient, clock)
	b := newNode(t, "Bob", relayClient, clock)

	bobOnA, _ := connect(t, a, b, "Bob", "Alice")
	goal := a.mustCreate(t, "Run 5k", "")
	_, err := a.collab.ShareGoal(ctx, goal.ID, bobOnA.ID)
	require.NoError(t, err)
	_, err = b.collab.Refresh(ctx)
	require.NoError(t, err)

	pending, err := b.collab.PendingShares(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	shareID := pending[0].ID
	action, err := b.goals.Delete(ctx, shareID, nil, true)
	require.NoError(t, err)
	assert.Equal(t, model.ActionGoalDeleted, action)

	pending, err = b.collab.PendingShares(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	items, err := b.goals.Deleted(ctx)
	require.NoError(t, err)
	assert.Empty(t, items, "shares never go to the trash")

	action, err = b.goals.Delete(ctx, shareID, nil, true)
	require.NoError(t, err)
	assert.Equal(t, model.ActionNone, action)
}

func TestInviteToken(t *testing.T) {
	tests := []struct {
		name    string
		link    string
		want    string
		wantErr bool
	}{
		{name: "full link", link: "https://goalnest.app/invite/abc.def.ghi", want: "abc.def.ghi"},
		{name: "trailing slash", link: "https://goalnest.app/invite/abc/", want: "abc"},
		{name: "bare token", link: "  abc.def  ", want: "abc.def"},
		{name: "empty", link: "", wantErr: true},
		{name: "no token", link: "https://goalnest.app/invite/", wantErr: true},
		{name: "query", link: "https://goalnest.app/invite/abc?x=1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := inviteToken(tt.link)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInvite)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
