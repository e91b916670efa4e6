package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/goalnest/goalnest/internal/db"
	"github.com/goalnest/goalnest/internal/model"
	"github.com/jmoiron/sqlx"
)

const TableSharedGoals = "shared_goals"

var (
	ErrSharedGoalNotFound = errors.New("shared goal not found")
)

type SharedGoalRepository interface {
	// Upsert stores a received share. A share of the same source goal over the
	// same relationship replaces title and color but keeps its status.
	Upsert(ctx context.Context, share *model.SharedGoal) error
	ByID(ctx context.Context, id string) (*model.SharedGoal, error)
	BySource(ctx context.Context, relationshipID, sourceGoalID string) (*model.SharedGoal, error)
	ByStatus(ctx context.Context, status string) ([]*model.SharedGoal, error)
	UpdateStatus(ctx context.Context, id, status string) error
	Delete(ctx context.Context, id string) error
}

type sharedGoalRepository struct {
	db *sqlx.DB
}

func NewSharedGoalRepository(db *sqlx.DB) SharedGoalRepository {
	return &sharedGoalRepository{db: db}
}

func (r *sharedGoalRepository) Upsert(ctx context.Context, share *model.SharedGoal) error {
	q, err := db.Conn(ctx, r.db, TableSharedGoals)
	if err != nil {
		return err
	}

	query := `INSERT INTO shared_goals (id, relationship_id, contact_id, source_goal_id, title, color, status, received_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	          ON CONFLICT (relationship_id, source_goal_id)
	          DO UPDATE SET title = excluded.title, color = excluded.color, received_at = excluded.received_at`
	_, err = q.ExecContext(ctx, query,
		share.ID,
		share.RelationshipID,
		share.ContactID,
		share.SourceGoalID,
		share.Title,
		share.Color,
		share.Status,
		share.ReceivedAt,
	)
	return err
}

func (r *sharedGoalRepository) ByID(ctx context.Context, id string) (*model.SharedGoal, error) {
	return r.get(ctx, `SELECT * FROM shared_goals WHERE id = $1`, id)
}

func (r *sharedGoalRepository) BySource(ctx context.Context, relationshipID, sourceGoalID string) (*model.SharedGoal, error) {
	return r.get(ctx, `SELECT * FROM shared_goals WHERE relationship_id = $1 AND source_goal_id = $2`,
		relationshipID, sourceGoalID)
}

func (r *sharedGoalRepository) get(ctx context.Context, query string, args ...any) (*model.SharedGoal, error) {
	q, err := db.Conn(ctx, r.db, TableSharedGoals)
	if err != nil {
		return nil, err
	}

	share := &model.SharedGoal{}
	err = sqlx.GetContext(ctx, q, share, query, args...)
	if err == sql.ErrNoRows {
		return nil, ErrSharedGoalNotFound
	}
	if err != nil {
		return nil, err
	}
	return share, nil
}

func (r *sharedGoalRepository) ByStatus(ctx context.Context, status string) ([]*model.SharedGoal, error) {
	q, err := db.Conn(ctx, r.db, TableSharedGoals)
	if err != nil {
		return nil, err
	}

	var shares []*model.SharedGoal
	err = sqlx.SelectContext(ctx, q, &shares,
		`SELECT * FROM shared_goals WHERE status = $1 ORDER BY received_at DESC, id ASC`, status)
	if err != nil {
		return nil, err
	}
	return shares, nil
}

func (r *sharedGoalRepository) UpdateStatus(ctx context.Context, id, status string) error {
	q, err := db.Conn(ctx, r.db, TableSharedGoals)
	if err != nil {
		return err
	}

	result, err := q.ExecContext(ctx, `UPDATE shared_goals SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrSharedGoalNotFound
	}
	return nil
}

func (r *sharedGoalRepository) Delete(ctx context.Context, id string) error {
	q, err := db.Conn(ctx, r.db, TableSharedGoals)
	if err != nil {
		return err
	}

	result, err := q.ExecContext(ctx, `DELETE FROM shared_goals WHERE id = $1`, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrSharedGoalNotFound
	}
	return nil
}
