package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/goalnest/goalnest/internal/db"
	"github.com/goalnest/goalnest/internal/model"
	"github.com/goalnest/goalnest/internal/repository"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/text/unicode/norm"
)

const (
	// HintRecheckNovel is the next check delay after a refresh that brought
	// at least one new title.
	HintRecheckNovel = 24 * time.Hour
	// HintRecheckUnchanged is the delay after a refresh with nothing new.
	HintRecheckUnchanged = 7 * 24 * time.Hour
)

var hintTables = []string{
	repository.TableHintRecords,
	repository.TableGoalHints,
	repository.TableDismissedHints,
}

// HintService keeps the suggested sub-goals of every goal. Storage failures
// are logged and the operation becomes a no-op; missing records are ignored.
type HintService struct {
	db       *sqlx.DB
	repo     repository.HintRepository
	goalRepo repository.GoalRepository
	provider HintProvider
	events   EventPublisher
	now      Clock
}

func NewHintService(
	database *sqlx.DB,
	repo repository.HintRepository,
	goalRepo repository.GoalRepository,
	provider HintProvider,
	events EventPublisher,
	clock Clock,
) *HintService {
	if events == nil {
		events = nopPublisher{}
	}
	if clock == nil {
		clock = systemClock
	}
	return &HintService{
		db:       database,
		repo:     repo,
		goalRepo: goalRepo,
		provider: provider,
		events:   events,
		now:      clock,
	}
}

// hintKey is the form titles are compared in.
func hintKey(title string) string {
	return norm.NFC.String(strings.TrimSpace(title))
}

// AddHintRecord creates the hint record of a new goal. A goal never gets a
// second record.
func (s *HintService) AddHintRecord(ctx context.Context, goalID string) {
	err := s.addRecord(ctx, goalID)
	if err != nil {
		slog.Error("failed to add hint record", "error", err, "goal_id", goalID)
	}
}

func (s *HintService) addRecord(ctx context.Context, goalID string) error {
	return db.InTx(ctx, s.db, []string{repository.TableHintRecords, repository.TableGoalHints}, func(ctx context.Context) error {
		_, err := s.repo.Record(ctx, goalID)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrHintRecordNotFound) {
			return err
		}

		now := s.now()
		return s.repo.Create(ctx, &model.HintRecord{
			ID:            uuid.New().String(),
			GoalID:        goalID,
			HintEnabled:   true,
			LastCheckedAt: now,
			NextCheckAt:   now.Add(HintRecheckNovel),
		})
	})
}

func (s *HintService) HintRecord(ctx context.Context, goalID string) (*model.HintRecord, error) {
	return s.repo.ByGoal(ctx, goalID)
}

// AvailableHints returns the active suggestions of an enabled record.
func (s *HintService) AvailableHints(ctx context.Context, goalID string) ([]model.GoalHint, error) {
	record, err := s.repo.ByGoal(ctx, goalID)
	if errors.Is(err, repository.ErrHintRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if !record.HintEnabled {
		return nil, nil
	}
	return record.GoalHints, nil
}

// UpdateHintItem stores a freshly computed list of suggestions. Suggestions
// whose title was dismissed before are dropped. The next check is one day
// out when any suggested title is new to the record, dismissed ones
// included, seven days otherwise. A goal
// without a record gets one.
func (s *HintService) UpdateHintItem(ctx context.Context, goalID string, enabled bool, suggestions []model.GoalHint) {
	err := db.InTx(ctx, s.db, hintTables, func(ctx context.Context) error {
		return s.updateHints(ctx, goalID, enabled, suggestions)
	})
	if err != nil {
		slog.Error("failed to update hints", "error", err, "goal_id", goalID)
		return
	}
	publish(s.events, model.ActionHintsUpdated, goalID, nil, s.now())
}

func (s *HintService) updateHints(ctx context.Context, goalID string, enabled bool, suggestions []model.GoalHint) error {
	now := s.now()

	record, err := s.repo.ByGoal(ctx, goalID)
	if errors.Is(err, repository.ErrHintRecordNotFound) {
		record = &model.HintRecord{
			ID:     uuid.New().String(),
			GoalID: goalID,
		}
		err = s.repo.Create(ctx, record)
	}
	if err != nil {
		return err
	}

	var hints []model.GoalHint
	if enabled {
		hints = filterDismissed(suggestions, record.Dismissed)
	}

	current := make(map[string]bool, len(record.GoalHints))
	for _, hint := range record.GoalHints {
		current[hintKey(hint.Title)] = true
	}

	// novelty looks at the raw suggestions, so a dismissed title offered again still counts
	novel := false
	for _, hint := range suggestions {
		key := hintKey(hint.Title)
		if key != "" && !current[key] {
			novel = true
		}
	}
	for i := range hints {
		if hints[i].ID == "" {
			hints[i].ID = uuid.New().String()
		}
	}

	record.HintEnabled = enabled
	record.LastCheckedAt = now
	record.NextCheckAt = now.Add(HintRecheckUnchanged)
	if novel {
		record.NextCheckAt = now.Add(HintRecheckNovel)
	}

	err = s.repo.UpdateRecord(ctx, record)
	if err != nil {
		return err
	}
	return s.repo.ReplaceHints(ctx, record.ID, hints)
}

// filterDismissed drops suggestions matching a dismissed title as well as
// repeated titles within the list itself.
func filterDismissed(suggestions, dismissed []model.GoalHint) []model.GoalHint {
	skip := make(map[string]bool, len(dismissed))
	for _, hint := range dismissed {
		skip[hintKey(hint.Title)] = true
	}

	kept := make([]model.GoalHint, 0, len(suggestions))
	for _, hint := range suggestions {
		key := hintKey(hint.Title)
		if key == "" || skip[key] {
			continue
		}
		skip[key] = true
		kept = append(kept, hint)
	}
	return kept
}

// DeleteGoalHint dismisses one suggestion. Its content is remembered so the
// same title is never suggested again for this goal.
func (s *HintService) DeleteGoalHint(ctx context.Context, goalID, hintID string) {
	err := db.InTx(ctx, s.db, hintTables, func(ctx context.Context) error {
		record, err := s.repo.Record(ctx, goalID)
		if err != nil {
			return err
		}

		hint, err := s.repo.RemoveHint(ctx, record.ID, hintID)
		if err != nil {
			return err
		}

		hint.ID = ""
		return s.repo.AddDismissed(ctx, record.ID, *hint, s.now())
	})
	if errors.Is(err, repository.ErrHintRecordNotFound) || errors.Is(err, repository.ErrGoalHintNotFound) {
		return
	}
	if err != nil {
		slog.Error("failed to dismiss hint", "error", err, "goal_id", goalID, "hint_id", hintID)
		return
	}
	publish(s.events, model.ActionHintsUpdated, goalID, nil, s.now())
}

// DisableHintsForGoal turns suggestions off and drops the cached ones.
// Dismissed titles are kept.
func (s *HintService) DisableHintsForGoal(ctx context.Context, goalID string) {
	tables := []string{repository.TableHintRecords, repository.TableGoalHints}
	err := db.InTx(ctx, s.db, tables, func(ctx context.Context) error {
		record, err := s.repo.Record(ctx, goalID)
		if err != nil {
			return err
		}

		record.HintEnabled = false
		err = s.repo.UpdateRecord(ctx, record)
		if err != nil {
			return err
		}
		return s.repo.DeleteHints(ctx, record.ID)
	})
	if errors.Is(err, repository.ErrHintRecordNotFound) {
		return
	}
	if err != nil {
		slog.Error("failed to disable hints", "error", err, "goal_id", goalID)
		return
	}
	publish(s.events, model.ActionHintsUpdated, goalID, nil, s.now())
}

// EnableHintsForGoal turns suggestions on and fetches a fresh list from the
// provider. Provider failures are returned; nothing is stored then.
func (s *HintService) EnableHintsForGoal(ctx context.Context, goalID string) error {
	suggestions, err := s.suggest(ctx, goalID)
	if err != nil {
		return err
	}

	s.UpdateHintItem(ctx, goalID, true, suggestions)
	return nil
}

func (s *HintService) suggest(ctx context.Context, goalID string) ([]model.GoalHint, error) {
	if s.provider == nil {
		return nil, nil
	}

	goal, err := s.goalRepo.ByID(ctx, goalID)
	if err != nil {
		return nil, err
	}

	var parentTitle string
	if !goal.IsRoot() {
		parent, err := s.goalRepo.ByID(ctx, goal.ParentGoalID)
		if err == nil {
			parentTitle = parent.Title
		}
	}

	return s.provider.Hints(ctx, goal, parentTitle)
}

// RecheckDue refreshes every enabled record whose next check has passed and
// returns how many were refreshed. Goals that no longer exist are skipped.
func (s *HintService) RecheckDue(ctx context.Context) (int, error) {
	records, err := s.repo.Records(ctx)
	if err != nil {
		return 0, err
	}

	now := s.now()
	refreshed := 0
	for _, record := range records {
		if !record.HintEnabled || record.NextCheckAt.After(now) {
			continue
		}

		suggestions, err := s.suggest(ctx, record.GoalID)
		if errors.Is(err, repository.ErrGoalNotFound) {
			continue
		}
		if err != nil {
			slog.Warn("hint recheck failed", "error", err, "goal_id", record.GoalID)
			continue
		}

		s.UpdateHintItem(ctx, record.GoalID, true, suggestions)
		refreshed++
	}
	return refreshed, nil
}

// DeleteHintRecord removes the record of a destroyed goal with its
// suggestions and dismissals.
func (s *HintService) DeleteHintRecord(ctx context.Context, goalID string) {
	err := s.repo.DeleteByGoal(ctx, goalID)
	if err != nil {
		slog.Error("failed to delete hint record", "error", err, "goal_id", goalID)
	}
}
