package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/goalnest/goalnest/internal/db"
	"github.com/goalnest/goalnest/internal/model"
	"github.com/goalnest/goalnest/internal/repository"
	"github.com/goalnest/goalnest/internal/storage"
	"github.com/jmoiron/sqlx"
)

const backupStampLayout = "20060102T150405Z"

// snapshotTables is everything a snapshot reads, in one transaction.
var snapshotTables = []string{
	repository.TableGoals,
	repository.TableParticipants,
	repository.TableTrash,
	repository.TableContacts,
	repository.TableSharedGoals,
	repository.TableHintRecords,
	repository.TableGoalHints,
	repository.TableDismissedHints,
}

var ErrBackupsDisabled = errors.New("backups are not configured")

// Snapshot is everything a backup holds.
type Snapshot struct {
	CreatedAt   time.Time           `json:"createdAt"`
	InstallID   string              `json:"installId"`
	Goals       []*model.Goal       `json:"goals"`
	Trash       []*model.TrashItem  `json:"trash"`
	Contacts    []*model.Contact    `json:"contacts"`
	SharedGoals []*model.SharedGoal `json:"sharedGoals"`
	HintRecords []*model.HintRecord `json:"hintRecords"`
}

type BackupService struct {
	db          *sqlx.DB
	goalRepo    repository.GoalRepository
	trashRepo   repository.TrashRepository
	contactRepo repository.ContactRepository
	sharedRepo  repository.SharedGoalRepository
	hintRepo    repository.HintRepository
	profiles    *ProfileService
	storage     storage.Storage
	email       *EmailService
	notifyEmail string
	retention   time.Duration
	now         Clock
}

// NewBackupService creates the backup job. Snapshots older than retention
// are removed after each successful run; zero keeps them all.
func NewBackupService(
	database *sqlx.DB,
	goalRepo repository.GoalRepository,
	trashRepo repository.TrashRepository,
	contactRepo repository.ContactRepository,
	sharedRepo repository.SharedGoalRepository,
	hintRepo repository.HintRepository,
	profiles *ProfileService,
	store storage.Storage,
	email *EmailService,
	notifyEmail string,
	retention time.Duration,
	clock Clock,
) *BackupService {
	if clock == nil {
		clock = systemClock
	}
	return &BackupService{
		db:          database,
		goalRepo:    goalRepo,
		trashRepo:   trashRepo,
		contactRepo: contactRepo,
		sharedRepo:  sharedRepo,
		hintRepo:    hintRepo,
		profiles:    profiles,
		storage:     store,
		email:       email,
		notifyEmail: notifyEmail,
		retention:   retention,
		now:         clock,
	}
}

// Snapshot reads the whole local state in one transaction so a
// concurrent transition cannot leave a goal in two places.
func (s *BackupService) Snapshot(ctx context.Context) (*Snapshot, error) {
	profile, err := s.profiles.Profile(ctx)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{CreatedAt: s.now(), InstallID: profile.InstallID}
	err = db.InTx(ctx, s.db, snapshotTables, func(ctx context.Context) error {
		return s.read(ctx, snap)
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *BackupService) read(ctx context.Context, snap *Snapshot) error {
	var err error
	snap.Goals, err = s.goalRepo.Goals(ctx, repository.GoalFilter{}, repository.GoalSortTitle)
	if err != nil {
		return fmt.Errorf("failed to read goals: %w", err)
	}
	snap.Trash, err = s.trashRepo.Items(ctx, "")
	if err != nil {
		return fmt.Errorf("failed to read trash: %w", err)
	}
	snap.Contacts, err = s.contactRepo.Contacts(ctx)
	if err != nil {
		return fmt.Errorf("failed to read contacts: %w", err)
	}

	for _, status := range []string{model.SharedGoalPending, model.SharedGoalCollaborated} {
		shares, err := s.sharedRepo.ByStatus(ctx, status)
		if err != nil {
			return fmt.Errorf("failed to read shared goals: %w", err)
		}
		snap.SharedGoals = append(snap.SharedGoals, shares...)
	}

	records, err := s.hintRepo.Records(ctx)
	if err != nil {
		return fmt.Errorf("failed to read hint records: %w", err)
	}
	for _, record := range records {
		full, err := s.hintRepo.ByGoal(ctx, record.GoalID)
		if err != nil {
			return fmt.Errorf("failed to read hints of %s: %w", record.GoalID, err)
		}
		snap.HintRecords = append(snap.HintRecords, full)
	}
	return nil
}

// Run writes a snapshot to storage and returns its key.
func (s *BackupService) Run(ctx context.Context) (string, error) {
	if s.storage == nil {
		return "", ErrBackupsDisabled
	}

	snap, err := s.Snapshot(ctx)
	if err != nil {
		return "", err
	}

	body, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}

	prefix := backupPrefix(snap.InstallID)
	key := prefix + snap.CreatedAt.UTC().Format(backupStampLayout) + ".json"
	err = s.storage.Save(ctx, key, bytes.NewReader(body))
	if err != nil {
		return "", err
	}

	slog.Info("backup written", "key", key, "goals", len(snap.Goals), "bytes", len(body))

	pruned, err := s.prune(ctx, prefix, key)
	if err != nil {
		slog.Warn("failed to prune old backups", "error", err, "prefix", prefix)
	} else if pruned > 0 {
		slog.Info("old backups pruned", "count", pruned, "prefix", prefix)
	}

	if s.notifyEmail != "" && s.email != nil {
		err = s.email.SendBackupEmail(ctx, s.notifyEmail, s.storage.URL(ctx, key))
		if err != nil {
			slog.Warn("failed to send backup email", "error", err, "key", key)
		}
	}
	return key, nil
}

func backupPrefix(installID string) string {
	return "backups/" + installID + "/"
}

// prune deletes this install's snapshots older than the retention period.
// The age comes from the key's timestamp; keys that do not parse and the
// snapshot just written are left alone.
func (s *BackupService) prune(ctx context.Context, prefix, current string) (int, error) {
	if s.retention <= 0 {
		return 0, nil
	}

	keys, err := s.storage.List(ctx, prefix)
	if err != nil {
		return 0, err
	}

	cutoff := s.now().Add(-s.retention)
	pruned := 0
	for _, key := range keys {
		if key == current {
			continue
		}
		stamp := strings.TrimSuffix(path.Base(key), ".json")
		createdAt, err := time.Parse(backupStampLayout, stamp)
		if err != nil || !createdAt.Before(cutoff) {
			continue
		}

		err = s.storage.Delete(ctx, key)
		if err != nil {
			return pruned, err
		}
		pruned++
	}
	return pruned, nil
}
