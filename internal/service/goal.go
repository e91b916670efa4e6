package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/goalnest/goalnest/internal/db"
	"github.com/goalnest/goalnest/internal/model"
	"github.com/goalnest/goalnest/internal/repository"
	"github.com/goalnest/goalnest/internal/validation"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var (
	ErrParentNotFound = errors.New("parent goal not found")
	ErrGoalCycle      = errors.New("goal cannot be moved below itself")
)

// lifecycleTables is the scope of every archive/delete/restore transaction.
var lifecycleTables = []string{
	repository.TableGoals,
	repository.TableParticipants,
	repository.TableTrash,
	repository.TableSharedGoals,
	repository.TableHintRecords,
	repository.TableGoalHints,
	repository.TableDismissedHints,
}

// GoalService owns goal creation, editing and the archive/delete/restore
// transitions. Every transition resolves with the action it performed and
// publishes it; ActionNone means nothing changed.
type GoalService struct {
	db         *sqlx.DB
	repo       repository.GoalRepository
	trashRepo  repository.TrashRepository
	sharedRepo repository.SharedGoalRepository
	hints      *HintService
	events     EventPublisher
	retention  time.Duration
	now        Clock
	propagator EditPropagator
}

func NewGoalService(
	database *sqlx.DB,
	repo repository.GoalRepository,
	trashRepo repository.TrashRepository,
	sharedRepo repository.SharedGoalRepository,
	hints *HintService,
	events EventPublisher,
	retention time.Duration,
	clock Clock,
) *GoalService {
	if events == nil {
		events = nopPublisher{}
	}
	if clock == nil {
		clock = systemClock
	}
	return &GoalService{
		db:         database,
		repo:       repo,
		trashRepo:  trashRepo,
		sharedRepo: sharedRepo,
		hints:      hints,
		events:     events,
		retention:  retention,
		now:        clock,
	}
}

// SetPropagator wires edit propagation. Without one, edits stay local.
func (s *GoalService) SetPropagator(p EditPropagator) {
	s.propagator = p
}

func (s *GoalService) Create(ctx context.Context, title, parentID, color string) (*model.Goal, error) {
	title = strings.TrimSpace(title)

	err := validation.ValidateTitle(title)
	if err != nil {
		return nil, err
	}
	err = validation.ValidateColor(color)
	if err != nil {
		return nil, err
	}

	goal := &model.Goal{
		Title:        title,
		ParentGoalID: parentID,
		TypeOfGoal:   model.GoalTypeMine,
		Color:        color,
	}

	err = s.insert(ctx, goal)
	if err != nil {
		return nil, err
	}

	publish(s.events, model.ActionGoalCreated, goal.ID, nil, goal.CreatedAt)
	return goal, nil
}

// insert stores a new goal together with its hint record.
func (s *GoalService) insert(ctx context.Context, goal *model.Goal) error {
	if goal.ParentGoalID == "" {
		goal.ParentGoalID = model.RootGoalID
	}

	now := s.now()
	goal.ID = uuid.New().String()
	goal.CreatedAt = now
	goal.UpdatedAt = now

	tables := []string{
		repository.TableGoals,
		repository.TableParticipants,
		repository.TableHintRecords,
		repository.TableGoalHints,
	}
	err := db.InTx(ctx, s.db, tables, func(ctx context.Context) error {
		if !goal.IsRoot() {
			_, err := s.repo.ByID(ctx, goal.ParentGoalID)
			if errors.Is(err, repository.ErrGoalNotFound) {
				return ErrParentNotFound
			}
			if err != nil {
				return err
			}
		}

		err := s.repo.Create(ctx, goal)
		if err != nil {
			return fmt.Errorf("failed to create goal: %w", err)
		}

		return s.hints.addRecord(ctx, goal.ID)
	})
	if err != nil {
		return err
	}

	slog.Info("goal created", "goal_id", goal.ID, "type", goal.TypeOfGoal)
	return nil
}

func (s *GoalService) ByID(ctx context.Context, goalID string) (*model.Goal, error) {
	return s.repo.ByID(ctx, goalID)
}

// Active lists the non-archived children of parentID, most recently
// updated first. An empty parentID means the root.
func (s *GoalService) Active(ctx context.Context, parentID string) ([]*model.Goal, error) {
	if parentID == "" {
		parentID = model.RootGoalID
	}
	archived := false
	return s.repo.Goals(ctx, repository.GoalFilter{ParentID: parentID, Archived: &archived}, repository.GoalSortRecent)
}

func (s *GoalService) Archived(ctx context.Context) ([]*model.Goal, error) {
	archived := true
	return s.repo.Goals(ctx, repository.GoalFilter{Archived: &archived}, repository.GoalSortRecent)
}

// Update edits title and color. A goal with participants sends the change
// to each of them.
func (s *GoalService) Update(ctx context.Context, goalID, title, color string) (*model.Goal, error) {
	title = strings.TrimSpace(title)

	err := validation.ValidateTitle(title)
	if err != nil {
		return nil, err
	}
	err = validation.ValidateColor(color)
	if err != nil {
		return nil, err
	}

	goal, err := s.repo.ByID(ctx, goalID)
	if err != nil {
		return nil, err
	}

	if goal.Title == title && goal.Color == color {
		return goal, nil
	}

	goal.Title = title
	goal.Color = color
	goal.UpdatedAt = s.now()

	err = s.repo.Update(ctx, goal)
	if err != nil {
		return nil, fmt.Errorf("failed to update goal: %w", err)
	}

	publish(s.events, model.ActionGoalUpdated, goal.ID, nil, goal.UpdatedAt)

	if goal.IsShared() && s.propagator != nil {
		s.propagator.PropagateEdit(ctx, goal, "")
	}
	return goal, nil
}

// Move reparents a goal. Moving a goal below itself or one of its
// descendants is rejected.
func (s *GoalService) Move(ctx context.Context, goalID, newParentID string) (*model.Goal, error) {
	if newParentID == "" {
		newParentID = model.RootGoalID
	}

	var goal *model.Goal
	err := db.InTx(ctx, s.db, []string{repository.TableGoals, repository.TableParticipants}, func(ctx context.Context) error {
		var err error
		goal, err = s.repo.ByID(ctx, goalID)
		if err != nil {
			return err
		}

		err = s.checkParent(ctx, goalID, newParentID)
		if err != nil {
			return err
		}

		goal.ParentGoalID = newParentID
		goal.UpdatedAt = s.now()
		return s.repo.Update(ctx, goal)
	})
	if err != nil {
		return nil, err
	}

	publish(s.events, model.ActionGoalMoved, goal.ID, nil, goal.UpdatedAt)
	return goal, nil
}

// checkParent walks up from parentID and fails when it reaches goalID.
func (s *GoalService) checkParent(ctx context.Context, goalID, parentID string) error {
	seen := map[string]bool{}
	for id := parentID; id != model.RootGoalID && id != ""; {
		if id == goalID {
			return ErrGoalCycle
		}
		if seen[id] {
			return ErrGoalCycle
		}
		seen[id] = true

		parent, err := s.repo.ByID(ctx, id)
		if errors.Is(err, repository.ErrGoalNotFound) {
			return ErrParentNotFound
		}
		if err != nil {
			return err
		}
		id = parent.ParentGoalID
	}
	return nil
}

// Archive marks a goal archived. Archiving is local only and keeps the
// goal's own timestamps so that restoring it gives back the same goal.
func (s *GoalService) Archive(ctx context.Context, goalID string, ancestry []string) (model.Action, error) {
	action := model.ActionNone
	err := db.InTx(ctx, s.db, []string{repository.TableGoals, repository.TableParticipants}, func(ctx context.Context) error {
		goal, err := s.repo.ByID(ctx, goalID)
		if errors.Is(err, repository.ErrGoalNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if goal.Archived {
			return nil
		}

		goal.Archived = true
		err = s.repo.Update(ctx, goal)
		if err != nil {
			return err
		}

		action = model.ActionGoalArchived
		return s.touchAncestry(ctx, goalID, ancestry)
	})
	return s.finish(action, goalID, ancestry, err)
}

// Delete moves a goal into the trash. In a partner context the goal is a
// received share and is dropped from the shared inbox instead.
func (s *GoalService) Delete(ctx context.Context, goalID string, ancestry []string, isPartnerContext bool) (model.Action, error) {
	if isPartnerContext {
		return s.deleteShare(ctx, goalID, ancestry)
	}

	action := model.ActionNone
	err := db.InTx(ctx, s.db, lifecycleTables, func(ctx context.Context) error {
		_, err := s.trashRepo.ByID(ctx, goalID)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrTrashItemNotFound) {
			return err
		}

		goal, err := s.repo.ByID(ctx, goalID)
		if errors.Is(err, repository.ErrGoalNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		err = s.trashRepo.Create(ctx, &model.TrashItem{Goal: *goal, DeletedAt: s.now()})
		if err != nil {
			return err
		}
		err = s.repo.Delete(ctx, goalID)
		if err != nil {
			return err
		}

		action = model.ActionGoalDeleted
		return s.touchAncestry(ctx, goalID, ancestry)
	})
	return s.finish(action, goalID, ancestry, err)
}

func (s *GoalService) deleteShare(ctx context.Context, shareID string, ancestry []string) (model.Action, error) {
	err := s.sharedRepo.Delete(ctx, shareID)
	if errors.Is(err, repository.ErrSharedGoalNotFound) {
		return model.ActionNone, nil
	}
	return s.finish(model.ActionGoalDeleted, shareID, ancestry, err)
}

// Restore undoes Delete or Archive depending on where the goal is. Trash
// items past retention are purged instead and cannot come back.
func (s *GoalService) Restore(ctx context.Context, goalID string, ancestry []string) (model.Action, error) {
	action := model.ActionNone
	err := db.InTx(ctx, s.db, lifecycleTables, func(ctx context.Context) error {
		item, err := s.trashRepo.ByID(ctx, goalID)
		switch {
		case err == nil:
			if s.expired(item) {
				return s.purge(ctx, item)
			}
			action = model.ActionGoalRestored
			_, err = s.restoreTrashed(ctx, item, ancestry)
			return err
		case !errors.Is(err, repository.ErrTrashItemNotFound):
			return err
		}

		goal, err := s.repo.ByID(ctx, goalID)
		if errors.Is(err, repository.ErrGoalNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if !goal.Archived {
			return nil
		}

		goal.Archived = false
		err = s.repo.Update(ctx, goal)
		if err != nil {
			return err
		}

		action = model.ActionGoalUnarchived
		return s.touchAncestry(ctx, goalID, ancestry)
	})
	return s.finish(action, goalID, ancestry, err)
}

func (s *GoalService) restoreTrashed(ctx context.Context, item *model.TrashItem, ancestry []string) (*model.Goal, error) {
	goal := item.Goal
	if !goal.IsRoot() {
		_, err := s.repo.ByID(ctx, goal.ParentGoalID)
		if errors.Is(err, repository.ErrGoalNotFound) {
			goal.ParentGoalID = model.RootGoalID
		} else if err != nil {
			return nil, err
		}
	}

	err := s.repo.Create(ctx, &goal)
	if err != nil {
		return nil, err
	}
	err = s.trashRepo.Delete(ctx, goal.ID)
	if err != nil {
		return nil, err
	}
	return &goal, s.touchAncestry(ctx, goal.ID, ancestry)
}

// touchAncestry bumps updated_at on the ancestors so their lists refresh.
func (s *GoalService) touchAncestry(ctx context.Context, goalID string, ancestry []string) error {
	ids := make([]string, 0, len(ancestry))
	for _, id := range ancestry {
		if id != goalID && id != model.RootGoalID && id != "" {
			ids = append(ids, id)
		}
	}
	return s.repo.Touch(ctx, ids, s.now())
}

func (s *GoalService) finish(action model.Action, goalID string, ancestry []string, err error) (model.Action, error) {
	if err != nil {
		slog.Error("goal transition failed", "error", err, "goal_id", goalID)
		return model.ActionNone, err
	}
	if action != model.ActionNone {
		publish(s.events, action, goalID, ancestry, s.now())
	}
	return action, nil
}

// AcceptHint turns a suggestion into a sub-goal of goalID and removes it
// from the suggestions.
func (s *GoalService) AcceptHint(ctx context.Context, goalID, hintID string) (*model.Goal, error) {
	var child *model.Goal
	tables := []string{
		repository.TableGoals,
		repository.TableParticipants,
		repository.TableHintRecords,
		repository.TableGoalHints,
	}
	err := db.InTx(ctx, s.db, tables, func(ctx context.Context) error {
		record, err := s.hints.repo.Record(ctx, goalID)
		if err != nil {
			return err
		}

		hint, err := s.hints.repo.RemoveHint(ctx, record.ID, hintID)
		if err != nil {
			return err
		}

		child = &model.Goal{
			Title:        hint.Title,
			ParentGoalID: goalID,
			TypeOfGoal:   model.GoalTypeMine,
		}
		return s.insert(ctx, child)
	})
	if err != nil {
		return nil, err
	}

	publish(s.events, model.ActionGoalCreated, child.ID, []string{goalID}, child.CreatedAt)
	return child, nil
}
