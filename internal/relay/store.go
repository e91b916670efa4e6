package relay

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/goalnest/goalnest/internal/sharing"
	"github.com/google/uuid"
)

var (
	ErrRelationshipNotFound = errors.New("relationship not found")
	ErrNotParticipant       = errors.New("not part of this relationship")
	ErrNotAccepted          = errors.New("relationship not accepted")
	ErrAlreadyAccepted      = errors.New("invitation already used")
	ErrOwnInvitation        = errors.New("cannot accept own invitation")
	ErrUnauthorized         = errors.New("missing or invalid access token")
)

// DefaultMessageTTL bounds how long an unread message waits in a mailbox.
const DefaultMessageTTL = 30 * 24 * time.Hour

type relationship struct {
	ID        string
	Inviter   sharing.Peer
	Invitee   *sharing.Peer
	CreatedAt time.Time
}

func (r *relationship) accepted() bool {
	return r.Invitee != nil
}

// other returns the party of r that is not installID.
func (r *relationship) other(installID string) (*sharing.Peer, error) {
	switch {
	case r.Inviter.InstallID == installID:
		return r.Invitee, nil
	case r.Invitee != nil && r.Invitee.InstallID == installID:
		inviter := r.Inviter
		return &inviter, nil
	default:
		return nil, ErrNotParticipant
	}
}

type mailboxEntry struct {
	recipient string
	message   sharing.Message
}

// Store keeps installs, relationships and messages in memory. Message
// sequence numbers are global and strictly increasing. A message is dropped
// once its recipient has read past it or it is older than messageTTL.
type Store struct {
	mu            sync.RWMutex
	installs      map[string]struct{}
	relationships map[string]*relationship
	messages      []mailboxEntry
	seq           int64
	messageTTL    time.Duration
	now           func() time.Time
}

// NewStore creates an empty store. A messageTTL of zero uses
// DefaultMessageTTL.
func NewStore(messageTTL time.Duration) *Store {
	if messageTTL <= 0 {
		messageTTL = DefaultMessageTTL
	}
	return &Store{
		installs:      make(map[string]struct{}),
		relationships: make(map[string]*relationship),
		messageTTL:    messageTTL,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Register records installID as known. It reports false when it already
// was, in which case the caller must present the install's access token.
func (s *Store) Register(installID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.installs[installID]; ok {
		return false
	}
	s.installs[installID] = struct{}{}
	return true
}

// Forget undoes a registration whose access token never reached the install.
func (s *Store) Forget(installID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.installs, installID)
}

func (s *Store) Registered(installID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.installs[installID]
	return ok
}

func (s *Store) CreateRelationship(inviter sharing.Peer) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	rel := &relationship{
		ID:        uuid.New().String(),
		Inviter:   inviter,
		CreatedAt: s.now(),
	}
	s.relationships[rel.ID] = rel
	return rel.ID
}

// Accept binds invitee to the relationship. Accepting again as the same
// invitee is allowed; a different one is not.
func (s *Store) Accept(relID, inviterID string, invitee sharing.Peer) (sharing.Peer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rel, ok := s.relationships[relID]
	if !ok || rel.Inviter.InstallID != inviterID {
		return sharing.Peer{}, ErrRelationshipNotFound
	}
	if rel.Inviter.InstallID == invitee.InstallID {
		return sharing.Peer{}, ErrOwnInvitation
	}
	if rel.Invitee != nil && rel.Invitee.InstallID != invitee.InstallID {
		return sharing.Peer{}, ErrAlreadyAccepted
	}

	rel.Invitee = &invitee
	return rel.Inviter, nil
}

// Status reports whether the relationship is accepted and, if so, the
// party on the other side of installID.
func (s *Store) Status(relID, installID string) (bool, *sharing.Peer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rel, ok := s.relationships[relID]
	if !ok {
		return false, nil, ErrRelationshipNotFound
	}

	other, err := rel.other(installID)
	if err != nil {
		return false, nil, err
	}
	return rel.accepted(), other, nil
}

// Post stores a message for the other party of the relationship.
func (s *Store) Post(req sharing.SendMessageRequest) (sharing.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rel, ok := s.relationships[req.RelID]
	if !ok {
		return sharing.Message{}, ErrRelationshipNotFound
	}
	if !rel.accepted() {
		return sharing.Message{}, ErrNotAccepted
	}

	recipient, err := rel.other(req.SenderID)
	if err != nil {
		return sharing.Message{}, err
	}

	s.pruneExpired()

	s.seq++
	msg := sharing.Message{
		ID:       uuid.New().String(),
		Seq:      s.seq,
		RelID:    rel.ID,
		Type:     req.Type,
		SenderID: req.SenderID,
		Goal:     req.Goal,
		SentAt:   s.now(),
	}
	s.messages = append(s.messages, mailboxEntry{recipient: recipient.InstallID, message: msg})
	return msg, nil
}

// Messages returns what installID received after seq, oldest first. Reading
// with after acknowledges everything up to it, which is then dropped.
func (s *Store) Messages(installID string, after int64) []sharing.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneExpired()

	var out []sharing.Message
	kept := s.messages[:0]
	for _, entry := range s.messages {
		if entry.recipient != installID {
			kept = append(kept, entry)
			continue
		}
		if entry.message.Seq <= after {
			continue
		}
		kept = append(kept, entry)
		out = append(out, entry.message)
	}
	clear(s.messages[len(kept):])
	s.messages = kept
	return out
}

// Pending reports how many messages are waiting across all mailboxes.
func (s *Store) Pending() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// pruneExpired drops messages older than messageTTL. Messages are kept in
// send order, so the expired ones form a prefix. Callers hold the lock.
func (s *Store) pruneExpired() {
	cutoff := s.now().Add(-s.messageTTL)
	n := 0
	for n < len(s.messages) && s.messages[n].message.SentAt.Before(cutoff) {
		n++
	}
	if n > 0 {
		s.messages = slices.Delete(s.messages, 0, n)
	}
}
