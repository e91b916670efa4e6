package repository

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/goalnest/goalnest/internal/db"
	"github.com/goalnest/goalnest/internal/model"
	"github.com/jmoiron/sqlx"
)

const (
	GoalSortRecent = "recent"
	GoalSortTitle  = "title"
)

const (
	TableGoals        = "goals"
	TableParticipants = "goal_participants"
)

var (
	ErrGoalNotFound = errors.New("goal not found")
)

// GoalFilter narrows Goals. Empty fields match everything.
type GoalFilter struct {
	ParentID string
	Archived *bool
	Type     string
}

type GoalRepository interface {
	Create(ctx context.Context, goal *model.Goal) error
	ByID(ctx context.Context, goalID string) (*model.Goal, error)
	Goals(ctx context.Context, filter GoalFilter, sortBy string) ([]*model.Goal, error)
	BySource(ctx context.Context, relationshipID, sourceGoalID string) ([]*model.Goal, error)
	Update(ctx context.Context, goal *model.Goal) error
	Touch(ctx context.Context, goalIDs []string, at time.Time) error
	Delete(ctx context.Context, goalID string) error
	AddParticipant(ctx context.Context, goalID, contactID string) error
}

type goalRepository struct {
	db *sqlx.DB
}

func NewGoalRepository(db *sqlx.DB) GoalRepository {
	return &goalRepository{db: db}
}

func (r *goalRepository) Create(ctx context.Context, goal *model.Goal) error {
	return db.InTx(ctx, r.db, []string{TableGoals, TableParticipants}, func(ctx context.Context) error {
		q, err := db.Conn(ctx, r.db, TableGoals)
		if err != nil {
			return err
		}

		query := `INSERT INTO goals (id, title, parent_goal_id, type_of_goal, archived, color,
		          source_goal_id, source_relationship_id, created_at, updated_at)
		          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

		_, err = q.ExecContext(ctx, query,
			goal.ID,
			goal.Title,
			goal.ParentGoalID,
			goal.TypeOfGoal,
			goal.Archived,
			goal.Color,
			goal.SourceGoalID,
			goal.SourceRelationshipID,
			goal.CreatedAt,
			goal.UpdatedAt,
		)
		if err != nil {
			return err
		}

		for _, contactID := range goal.Participants {
			err = r.AddParticipant(ctx, goal.ID, contactID)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *goalRepository) ByID(ctx context.Context, goalID string) (*model.Goal, error) {
	q, err := db.Conn(ctx, r.db, TableGoals, TableParticipants)
	if err != nil {
		return nil, err
	}

	goal := &model.Goal{}
	query := `SELECT * FROM goals WHERE id = $1`

	err = sqlx.GetContext(ctx, q, goal, query, goalID)
	if err == sql.ErrNoRows {
		return nil, ErrGoalNotFound
	}
	if err != nil {
		return nil, err
	}

	err = sqlx.SelectContext(ctx, q, &goal.Participants,
		`SELECT contact_id FROM goal_participants WHERE goal_id = $1 ORDER BY contact_id`, goalID)
	if err != nil {
		return nil, err
	}

	return goal, nil
}

func (r *goalRepository) Goals(ctx context.Context, filter GoalFilter, sortBy string) ([]*model.Goal, error) {
	q, err := db.Conn(ctx, r.db, TableGoals, TableParticipants)
	if err != nil {
		return nil, err
	}

	var (
		where []string
		args  []any
	)
	if filter.ParentID != "" {
		args = append(args, filter.ParentID)
		where = append(where, "parent_goal_id = $"+strconv.Itoa(len(args)))
	}
	if filter.Archived != nil {
		args = append(args, *filter.Archived)
		where = append(where, "archived = $"+strconv.Itoa(len(args)))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		where = append(where, "type_of_goal = $"+strconv.Itoa(len(args)))
	}

	query := `SELECT * FROM goals`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}

	switch sortBy {
	case GoalSortTitle:
		query += ` ORDER BY LOWER(title) ASC`
	default: // GoalSortRecent or empty
		query += ` ORDER BY updated_at DESC, id ASC`
	}

	var goals []*model.Goal
	err = sqlx.SelectContext(ctx, q, &goals, query, args...)
	if err != nil {
		return nil, err
	}

	err = r.attachParticipants(ctx, q, goals)
	if err != nil {
		return nil, err
	}
	return goals, nil
}

func (r *goalRepository) BySource(ctx context.Context, relationshipID, sourceGoalID string) ([]*model.Goal, error) {
	q, err := db.Conn(ctx, r.db, TableGoals, TableParticipants)
	if err != nil {
		return nil, err
	}

	var goals []*model.Goal
	query := `SELECT * FROM goals WHERE source_relationship_id = $1 AND source_goal_id = $2`
	err = sqlx.SelectContext(ctx, q, &goals, query, relationshipID, sourceGoalID)
	if err != nil {
		return nil, err
	}

	err = r.attachParticipants(ctx, q, goals)
	if err != nil {
		return nil, err
	}
	return goals, nil
}

func (r *goalRepository) attachParticipants(ctx context.Context, q sqlx.QueryerContext, goals []*model.Goal) error {
	if len(goals) == 0 {
		return nil
	}

	var rows []struct {
		GoalID    string `db:"goal_id"`
		ContactID string `db:"contact_id"`
	}
	err := sqlx.SelectContext(ctx, q, &rows, `SELECT goal_id, contact_id FROM goal_participants ORDER BY contact_id`)
	if err != nil {
		return err
	}

	byGoal := make(map[string][]string)
	for _, row := range rows {
		byGoal[row.GoalID] = append(byGoal[row.GoalID], row.ContactID)
	}
	for _, goal := range goals {
		goal.Participants = byGoal[goal.ID]
	}
	return nil
}

func (r *goalRepository) Update(ctx context.Context, goal *model.Goal) error {
	q, err := db.Conn(ctx, r.db, TableGoals)
	if err != nil {
		return err
	}

	query := `UPDATE goals
	          SET title = $1, parent_goal_id = $2, archived = $3, color = $4, updated_at = $5
	          WHERE id = $6`

	result, err := q.ExecContext(ctx, query,
		goal.Title,
		goal.ParentGoalID,
		goal.Archived,
		goal.Color,
		goal.UpdatedAt,
		goal.ID,
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrGoalNotFound
	}

	return nil
}

// Touch bumps updated_at on goals that exist; unknown ids are ignored.
func (r *goalRepository) Touch(ctx context.Context, goalIDs []string, at time.Time) error {
	if len(goalIDs) == 0 {
		return nil
	}

	q, err := db.Conn(ctx, r.db, TableGoals)
	if err != nil {
		return err
	}

	query, args, err := sqlx.In(`UPDATE goals SET updated_at = ? WHERE id IN (?)`, at, goalIDs)
	if err != nil {
		return err
	}

	_, err = q.ExecContext(ctx, q.Rebind(query), args...)
	return err
}

func (r *goalRepository) Delete(ctx context.Context, goalID string) error {
	q, err := db.Conn(ctx, r.db, TableGoals, TableParticipants)
	if err != nil {
		return err
	}

	_, err = q.ExecContext(ctx, `DELETE FROM goal_participants WHERE goal_id = $1`, goalID)
	if err != nil {
		return err
	}

	result, err := q.ExecContext(ctx, `DELETE FROM goals WHERE id = $1`, goalID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrGoalNotFound
	}

	return nil
}

func (r *goalRepository) AddParticipant(ctx context.Context, goalID, contactID string) error {
	q, err := db.Conn(ctx, r.db, TableParticipants)
	if err != nil {
		return err
	}

	query := `INSERT INTO goal_participants (goal_id, contact_id) VALUES ($1, $2)
	          ON CONFLICT (goal_id, contact_id) DO NOTHING`
	_, err = q.ExecContext(ctx, query, goalID, contactID)
	return err
}
