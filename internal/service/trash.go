package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/goalnest/goalnest/internal/db"
	"github.com/goalnest/goalnest/internal/model"
	"github.com/goalnest/goalnest/internal/repository"
	"golang.org/x/text/cases"
)

func (s *GoalService) expired(item *model.TrashItem) bool {
	return !s.now().Before(item.ExpiresAt(s.retention))
}

// purge destroys a trashed goal for good together with its hint record.
// Children still in the tree move up to the root.
func (s *GoalService) purge(ctx context.Context, item *model.TrashItem) error {
	err := s.trashRepo.Delete(ctx, item.ID)
	if err != nil {
		return err
	}

	err = s.hints.repo.DeleteByGoal(ctx, item.ID)
	if err != nil {
		return err
	}

	children, err := s.repo.Goals(ctx, repository.GoalFilter{ParentID: item.ID}, repository.GoalSortRecent)
	if err != nil {
		return err
	}
	for _, child := range children {
		child.ParentGoalID = model.RootGoalID
		err = s.repo.Update(ctx, child)
		if err != nil {
			return err
		}
	}

	slog.Info("goal purged", "goal_id", item.ID, "deleted_at", item.DeletedAt)
	return nil
}

// restoreBySource brings back the trashed copy of a goal received through
// relID. It returns nil when there is no restorable copy; expired copies
// are purged.
func (s *GoalService) restoreBySource(ctx context.Context, relID, sourceGoalID string) (*model.Goal, error) {
	items, err := s.trashRepo.Items(ctx, "")
	if err != nil {
		return nil, err
	}

	for _, item := range items {
		if item.SourceRelationshipID != relID || item.SourceGoalID != sourceGoalID {
			continue
		}
		if s.expired(item) {
			err = s.purge(ctx, item)
			if err != nil {
				return nil, err
			}
			continue
		}
		return s.restoreTrashed(ctx, item, nil)
	}
	return nil, nil
}

// Deleted lists the restorable trash, newest first. Expired items are
// purged on the way.
func (s *GoalService) Deleted(ctx context.Context) ([]*model.TrashItem, error) {
	_, err := s.PurgeExpired(ctx)
	if err != nil {
		return nil, err
	}
	return s.trashRepo.Items(ctx, "")
}

// PurgeExpired removes every trash item past retention and returns how
// many were removed.
func (s *GoalService) PurgeExpired(ctx context.Context) (int, error) {
	purged := 0
	err := db.InTx(ctx, s.db, lifecycleTables, func(ctx context.Context) error {
		items, err := s.trashRepo.Items(ctx, "")
		if err != nil {
			return err
		}

		for _, item := range items {
			if !s.expired(item) {
				continue
			}
			err = s.purge(ctx, item)
			if err != nil {
				return err
			}
			purged++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return purged, nil
}

// Search matches titles case-insensitively across active, archived and
// restorable trashed goals.
func (s *GoalService) Search(ctx context.Context, text string) ([]*model.Goal, error) {
	fold := cases.Fold()
	needle := fold.String(strings.TrimSpace(text))
	if needle == "" {
		return nil, nil
	}

	goals, err := s.repo.Goals(ctx, repository.GoalFilter{}, repository.GoalSortTitle)
	if err != nil {
		return nil, err
	}

	trashed, err := s.Deleted(ctx)
	if err != nil {
		return nil, err
	}

	var found []*model.Goal
	for _, goal := range goals {
		if strings.Contains(fold.String(goal.Title), needle) {
			found = append(found, goal)
		}
	}
	for _, item := range trashed {
		if strings.Contains(fold.String(item.Title), needle) {
			goal := item.Goal
			found = append(found, &goal)
		}
	}
	return found, nil
}
