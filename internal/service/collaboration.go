package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/goalnest/goalnest/internal/db"
	"github.com/goalnest/goalnest/internal/model"
	"github.com/goalnest/goalnest/internal/repository"
	"github.com/goalnest/goalnest/internal/sharing"
	"github.com/goalnest/goalnest/internal/validation"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var (
	ErrContactNotAccepted = errors.New("contact has not accepted the invitation yet")
	ErrInvalidInvite      = errors.New("invalid invitation link")
)

// CollaborationService runs invite, accept, share, collaborate and edit
// propagation against the relay. Local state written before a failing relay
// call is kept; nothing is retried.
type CollaborationService struct {
	db           *sqlx.DB
	relay        Relay
	contactRepo  repository.ContactRepository
	goalRepo     repository.GoalRepository
	sharedRepo   repository.SharedGoalRepository
	settingsRepo repository.SettingsRepository
	goals        *GoalService
	profiles     *ProfileService
	email        *EmailService
	events       EventPublisher
	appURL       string
	now          Clock
}

func NewCollaborationService(
	database *sqlx.DB,
	relay Relay,
	contactRepo repository.ContactRepository,
	goalRepo repository.GoalRepository,
	sharedRepo repository.SharedGoalRepository,
	settingsRepo repository.SettingsRepository,
	goals *GoalService,
	profiles *ProfileService,
	email *EmailService,
	events EventPublisher,
	appURL string,
	clock Clock,
) *CollaborationService {
	if events == nil {
		events = nopPublisher{}
	}
	if clock == nil {
		clock = systemClock
	}
	s := &CollaborationService{
		db:           database,
		relay:        relay,
		contactRepo:  contactRepo,
		goalRepo:     goalRepo,
		sharedRepo:   sharedRepo,
		settingsRepo: settingsRepo,
		goals:        goals,
		profiles:     profiles,
		email:        email,
		events:       events,
		appURL:       strings.TrimSuffix(appURL, "/"),
		now:          clock,
	}
	goals.SetPropagator(s)
	return s
}

// self is this installation as the relay knows it. Token is empty until the
// relay has issued one on the first invite or accept.
func (s *CollaborationService) self(ctx context.Context) (sharing.Identity, error) {
	profile, err := s.profiles.Profile(ctx)
	if err != nil {
		return sharing.Identity{}, err
	}

	token, err := s.settingsRepo.Get(ctx, repository.SettingRelayToken)
	if err != nil && !errors.Is(err, repository.ErrSettingNotFound) {
		return sharing.Identity{}, err
	}

	return sharing.Identity{
		Peer:  sharing.Peer{InstallID: profile.InstallID, Name: profile.Name},
		Token: token,
	}, nil
}

// keepToken stores the access token the relay issues on first contact.
func (s *CollaborationService) keepToken(ctx context.Context, env *sharing.Envelope) error {
	if env.AccessToken == "" {
		return nil
	}
	err := s.settingsRepo.Set(ctx, repository.SettingRelayToken, env.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to store relay token: %w", err)
	}
	return nil
}

// CreateInvitation opens a relationship on the relay and stores a pending
// contact for it. When email is set the link is also mailed; a failed
// delivery is logged and the invitation is still returned.
func (s *CollaborationService) CreateInvitation(ctx context.Context, name, email string) (*model.Invitation, error) {
	name = strings.TrimSpace(name)
	err := validation.ValidateName(name)
	if err != nil {
		return nil, err
	}

	email = strings.TrimSpace(email)
	if email != "" {
		err = validation.ValidateEmail(email)
		if err != nil {
			return nil, err
		}
	}

	self, err := s.self(ctx)
	if err != nil {
		return nil, err
	}

	env, err := s.relay.CreateRelationship(ctx, self)
	if err != nil {
		return nil, fmt.Errorf("failed to create relationship: %w", err)
	}
	err = s.keepToken(ctx, env)
	if err != nil {
		return nil, err
	}

	contact := &model.Contact{
		ID:             uuid.New().String(),
		Name:           name,
		Email:          email,
		RelationshipID: env.RelID,
		Accepted:       false,
		CreatedAt:      s.now(),
	}
	err = s.contactRepo.Create(ctx, contact)
	if err != nil {
		return nil, fmt.Errorf("failed to create contact: %w", err)
	}

	invitation := &model.Invitation{
		Link:    s.appURL + "/invite/" + url.PathEscape(env.InviteToken),
		Token:   env.InviteToken,
		Contact: contact,
	}

	if email != "" && s.email != nil {
		err = s.email.SendInvitationEmail(ctx, email, name, self.Name, invitation.Link)
		if err != nil {
			slog.Warn("failed to send invitation email", "error", err, "contact_id", contact.ID)
		}
	}

	publish(s.events, model.ActionContactAdded, "", nil, contact.CreatedAt)
	return invitation, nil
}

// inviteToken accepts either a full invitation link or the bare token.
func inviteToken(link string) (string, error) {
	link = strings.TrimSpace(link)
	if i := strings.LastIndex(link, "/invite/"); i >= 0 {
		link = link[i+len("/invite/"):]
	}
	link = strings.Trim(link, "/")

	token, err := url.PathUnescape(link)
	if err != nil || token == "" || strings.ContainsAny(token, "/?# ") {
		return "", ErrInvalidInvite
	}
	return token, nil
}

// AcceptInvitation redeems an invitation link. The relay resolves the
// inviter; the result is stored as an accepted contact named contactName.
// Accepting the same relationship twice returns the existing contact.
func (s *CollaborationService) AcceptInvitation(ctx context.Context, link, contactName string) (*model.Contact, error) {
	token, err := inviteToken(link)
	if err != nil {
		return nil, err
	}

	contactName = strings.TrimSpace(contactName)
	err = validation.ValidateName(contactName)
	if err != nil {
		return nil, err
	}

	self, err := s.self(ctx)
	if err != nil {
		return nil, err
	}

	env, err := s.relay.AcceptRelationship(ctx, token, self)
	if err != nil {
		return nil, fmt.Errorf("failed to accept invitation: %w", err)
	}
	err = s.keepToken(ctx, env)
	if err != nil {
		return nil, err
	}

	existing, err := s.contactRepo.ByRelationship(ctx, env.RelationshipID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrContactNotFound) {
		return nil, err
	}

	contact := &model.Contact{
		ID:             uuid.New().String(),
		Name:           contactName,
		RelationshipID: env.RelationshipID,
		Accepted:       true,
		CreatedAt:      s.now(),
	}
	err = s.contactRepo.Create(ctx, contact)
	if err != nil {
		return nil, fmt.Errorf("failed to create contact: %w", err)
	}

	publish(s.events, model.ActionContactAccepted, "", nil, contact.CreatedAt)
	return contact, nil
}

// CheckAcceptance asks the relay whether a pending contact has accepted and
// records it when so.
func (s *CollaborationService) CheckAcceptance(ctx context.Context, contactID string) (*model.Contact, error) {
	contact, err := s.contactRepo.ByID(ctx, contactID)
	if err != nil {
		return nil, err
	}
	if contact.Accepted {
		return contact, nil
	}

	self, err := s.self(ctx)
	if err != nil {
		return nil, err
	}

	env, err := s.relay.RelationshipStatus(ctx, contact.RelationshipID, self)
	if err != nil {
		return nil, fmt.Errorf("failed to check relationship: %w", err)
	}
	if !env.Accepted {
		return contact, nil
	}

	err = s.contactRepo.MarkAccepted(ctx, contact.ID)
	if err != nil {
		return nil, err
	}
	contact.Accepted = true

	publish(s.events, model.ActionContactAccepted, "", nil, s.now())
	return contact, nil
}

func (s *CollaborationService) Contacts(ctx context.Context) ([]*model.Contact, error) {
	return s.contactRepo.Contacts(ctx)
}

// ShareGoal sends a goal to an accepted contact. The message the relay
// returns is proof of the share; only then is the contact added as a
// participant.
func (s *CollaborationService) ShareGoal(ctx context.Context, goalID, contactID string) (*sharing.Message, error) {
	contact, err := s.contactRepo.ByID(ctx, contactID)
	if err != nil {
		return nil, err
	}
	if !contact.Accepted {
		return nil, ErrContactNotAccepted
	}

	goal, err := s.goalRepo.ByID(ctx, goalID)
	if err != nil {
		return nil, err
	}

	self, err := s.self(ctx)
	if err != nil {
		return nil, err
	}

	msg, err := s.relay.SendMessage(ctx, self, sharing.SendMessageRequest{
		RelID:    contact.RelationshipID,
		Type:     sharing.MessageShare,
		Goal:     sharing.GoalPayloadFrom(goal),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to share goal: %w", err)
	}

	err = s.goalRepo.AddParticipant(ctx, goal.ID, contact.ID)
	if err != nil {
		return nil, err
	}

	publish(s.events, model.ActionGoalShared, goal.ID, nil, s.now())
	return msg, nil
}

// Refresh pulls new messages from the relay and applies them in order. The
// cursor advances past every message handled, including ones from unknown
// relationships. It returns the number of messages applied.
func (s *CollaborationService) Refresh(ctx context.Context) (int, error) {
	self, err := s.self(ctx)
	if err != nil {
		return 0, err
	}
	// nothing can be addressed to an install the relay has not registered
	if self.Token == "" {
		return 0, nil
	}

	cursor, err := s.cursor(ctx)
	if err != nil {
		return 0, err
	}

	messages, err := s.relay.Messages(ctx, self, cursor)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch messages: %w", err)
	}

	applied := 0
	for _, msg := range messages {
		ok, err := s.apply(ctx, msg)
		if err != nil {
			return applied, err
		}
		if ok {
			applied++
		}

		err = s.settingsRepo.Set(ctx, repository.SettingInboxCursor, strconv.FormatInt(msg.Seq, 10))
		if err != nil {
			return applied, err
		}
	}
	return applied, nil
}

func (s *CollaborationService) cursor(ctx context.Context) (int64, error) {
	value, err := s.settingsRepo.Get(ctx, repository.SettingInboxCursor)
	if errors.Is(err, repository.ErrSettingNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(value, 10, 64)
}

func (s *CollaborationService) apply(ctx context.Context, msg sharing.Message) (bool, error) {
	contact, err := s.contactRepo.ByRelationship(ctx, msg.RelID)
	if errors.Is(err, repository.ErrContactNotFound) {
		slog.Warn("message for unknown relationship", "rel_id", msg.RelID, "message_id", msg.ID)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	switch msg.Type {
	case sharing.MessageShare:
		return true, s.receiveShare(ctx, contact, msg)
	case sharing.MessageUpdate:
		return true, s.applyUpdate(ctx, contact, msg.Goal)
	default:
		slog.Warn("unknown message type", "type", msg.Type, "message_id", msg.ID)
		return false, nil
	}
}

func (s *CollaborationService) receiveShare(ctx context.Context, contact *model.Contact, msg sharing.Message) error {
	share := &model.SharedGoal{
		ID:             uuid.New().String(),
		RelationshipID: contact.RelationshipID,
		ContactID:      contact.ID,
		SourceGoalID:   msg.Goal.ID,
		Title:          msg.Goal.Title,
		Color:          msg.Goal.Color,
		Status:         model.SharedGoalPending,
		ReceivedAt:     s.now(),
	}
	err := s.sharedRepo.Upsert(ctx, share)
	if err != nil {
		return fmt.Errorf("failed to store share: %w", err)
	}

	publish(s.events, model.ActionShareReceived, msg.Goal.ID, nil, share.ReceivedAt)
	return nil
}

// applyUpdate writes an inbound edit to every local goal it refers to: the
// copies made from that source, and the source itself when the edit comes
// back from a collaborator. Goals that change and have participants of
// their own pass the edit on.
func (s *CollaborationService) applyUpdate(ctx context.Context, contact *model.Contact, payload sharing.GoalPayload) error {
	targets, err := s.goalRepo.BySource(ctx, contact.RelationshipID, payload.ID)
	if err != nil {
		return err
	}

	own, err := s.goalRepo.ByID(ctx, payload.ID)
	if err == nil && slices.Contains(own.Participants, contact.ID) {
		targets = append(targets, own)
	} else if err != nil && !errors.Is(err, repository.ErrGoalNotFound) {
		return err
	}

	share, err := s.sharedRepo.BySource(ctx, contact.RelationshipID, payload.ID)
	if err == nil && (share.Title != payload.Title || share.Color != payload.Color) {
		share.Title = payload.Title
		share.Color = payload.Color
		err = s.sharedRepo.Upsert(ctx, share)
		if err != nil {
			return err
		}
	} else if err != nil && !errors.Is(err, repository.ErrSharedGoalNotFound) {
		return err
	}

	for _, goal := range targets {
		if goal.Title == payload.Title && goal.Color == payload.Color {
			continue
		}

		goal.Title = payload.Title
		goal.Color = payload.Color
		goal.UpdatedAt = s.now()
		err = s.goalRepo.Update(ctx, goal)
		if err != nil {
			return err
		}

		publish(s.events, model.ActionGoalUpdated, goal.ID, nil, goal.UpdatedAt)
		if goal.IsShared() {
			s.PropagateEdit(ctx, goal, contact.ID)
		}
	}
	return nil
}

func (s *CollaborationService) PendingShares(ctx context.Context) ([]*model.Goal, error) {
	shares, err := s.sharedRepo.ByStatus(ctx, model.SharedGoalPending)
	if err != nil {
		return nil, err
	}

	goals := make([]*model.Goal, 0, len(shares))
	for _, share := range shares {
		goals = append(goals, share.AsGoal())
	}
	return goals, nil
}

// Collaborate turns a received share into a collaborated goal owned
// locally. The sharing contact becomes its participant so edits flow both
// ways. Calling it again returns the existing copy, taking it back out of
// the trash when it was deleted.
func (s *CollaborationService) Collaborate(ctx context.Context, sharedID string) (*model.Goal, error) {
	var goal *model.Goal
	err := db.InTx(ctx, s.db, lifecycleTables, func(ctx context.Context) error {
		share, err := s.sharedRepo.ByID(ctx, sharedID)
		if err != nil {
			return err
		}

		existing, err := s.goalRepo.BySource(ctx, share.RelationshipID, share.SourceGoalID)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			goal = existing[0]
		} else if share.Status == model.SharedGoalCollaborated {
			goal, err = s.goals.restoreBySource(ctx, share.RelationshipID, share.SourceGoalID)
			if err != nil {
				return err
			}
		}

		if goal == nil {
			goal = &model.Goal{
				Title:                share.Title,
				ParentGoalID:         model.RootGoalID,
				TypeOfGoal:           model.GoalTypeCollaborated,
				Color:                share.Color,
				Participants:         []string{share.ContactID},
				SourceGoalID:         share.SourceGoalID,
				SourceRelationshipID: share.RelationshipID,
			}
			err = s.goals.insert(ctx, goal)
			if err != nil {
				return err
			}
		}

		if share.Status == model.SharedGoalCollaborated {
			return nil
		}
		return s.sharedRepo.UpdateStatus(ctx, share.ID, model.SharedGoalCollaborated)
	})
	if err != nil {
		return nil, err
	}

	publish(s.events, model.ActionGoalColabRequest, goal.ID, nil, s.now())
	return goal, nil
}

// PropagateEdit sends the current title and color of goal to each accepted
// participant except skipContactID. Failures are logged and skipped.
func (s *CollaborationService) PropagateEdit(ctx context.Context, goal *model.Goal, skipContactID string) {
	self, err := s.self(ctx)
	if err != nil {
		slog.Error("failed to load profile for propagation", "error", err, "goal_id", goal.ID)
		return
	}

	for _, contactID := range goal.Participants {
		if contactID == skipContactID {
			continue
		}

		contact, err := s.contactRepo.ByID(ctx, contactID)
		if err != nil {
			slog.Warn("participant lookup failed", "error", err, "goal_id", goal.ID, "contact_id", contactID)
			continue
		}
		if !contact.Accepted {
			continue
		}

		// Towards the contact the goal came from, refer to their goal id.
		payload := sharing.GoalPayloadFrom(goal)
		if goal.SourceRelationshipID == contact.RelationshipID && goal.SourceGoalID != "" {
			payload.ID = goal.SourceGoalID
		}

		_, err = s.relay.SendMessage(ctx, self, sharing.SendMessageRequest{
			RelID: contact.RelationshipID,
			Type:  sharing.MessageUpdate,
			Goal:  payload,
		})
		if err != nil {
			slog.Warn("failed to propagate edit", "error", err, "goal_id", goal.ID, "contact_id", contactID)
		}
	}
}
