package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goalnest/goalnest/internal/db"
	"github.com/goalnest/goalnest/internal/model"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const (
	TableHintRecords    = "hint_records"
	TableGoalHints      = "goal_hints"
	TableDismissedHints = "dismissed_goal_hints"
)

var (
	ErrHintRecordNotFound = errors.New("hint record not found")
	ErrGoalHintNotFound   = errors.New("goal hint not found")
)

type HintRepository interface {
	Create(ctx context.Context, record *model.HintRecord) error
	Record(ctx context.Context, goalID string) (*model.HintRecord, error)
	ByGoal(ctx context.Context, goalID string) (*model.HintRecord, error)
	Records(ctx context.Context) ([]*model.HintRecord, error)
	UpdateRecord(ctx context.Context, record *model.HintRecord) error
	ReplaceHints(ctx context.Context, recordID string, hints []model.GoalHint) error
	DeleteHints(ctx context.Context, recordID string) error
	RemoveHint(ctx context.Context, recordID, hintID string) (*model.GoalHint, error)
	AddDismissed(ctx context.Context, recordID string, hint model.GoalHint, at time.Time) error
	DeleteByGoal(ctx context.Context, goalID string) error
}

type hintRepository struct {
	db *sqlx.DB
}

func NewHintRepository(db *sqlx.DB) HintRepository {
	return &hintRepository{db: db}
}

func (r *hintRepository) Create(ctx context.Context, record *model.HintRecord) error {
	return db.InTx(ctx, r.db, []string{TableHintRecords, TableGoalHints}, func(ctx context.Context) error {
		q, err := db.Conn(ctx, r.db, TableHintRecords)
		if err != nil {
			return err
		}

		query := `INSERT INTO hint_records (id, goal_id, hint_enabled, last_checked_at, next_check_at)
		          VALUES ($1, $2, $3, $4, $5)`
		_, err = q.ExecContext(ctx, query,
			record.ID,
			record.GoalID,
			record.HintEnabled,
			record.LastCheckedAt,
			record.NextCheckAt,
		)
		if err != nil {
			return err
		}

		if len(record.GoalHints) == 0 {
			return nil
		}
		return r.ReplaceHints(ctx, record.ID, record.GoalHints)
	})
}

// Record loads the record alone, touching only hint_records.
func (r *hintRepository) Record(ctx context.Context, goalID string) (*model.HintRecord, error) {
	q, err := db.Conn(ctx, r.db, TableHintRecords)
	if err != nil {
		return nil, err
	}

	record := &model.HintRecord{}
	err = sqlx.GetContext(ctx, q, record, `SELECT * FROM hint_records WHERE goal_id = $1`, goalID)
	if err == sql.ErrNoRows {
		return nil, ErrHintRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// ByGoal loads the record together with its active and dismissed hints.
func (r *hintRepository) ByGoal(ctx context.Context, goalID string) (*model.HintRecord, error) {
	record, err := r.Record(ctx, goalID)
	if err != nil {
		return nil, err
	}

	err = r.loadHints(ctx, record)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (r *hintRepository) loadHints(ctx context.Context, record *model.HintRecord) error {
	q, err := db.Conn(ctx, r.db, TableGoalHints, TableDismissedHints)
	if err != nil {
		return err
	}

	err = sqlx.SelectContext(ctx, q, &record.GoalHints,
		`SELECT id, title, duration, parent_title FROM goal_hints
		 WHERE hint_record_id = $1 ORDER BY position ASC`, record.ID)
	if err != nil {
		return err
	}

	var dismissed []struct {
		Title       string `db:"title"`
		Duration    string `db:"duration"`
		ParentTitle string `db:"parent_title"`
	}
	err = sqlx.SelectContext(ctx, q, &dismissed,
		`SELECT title, duration, parent_title FROM dismissed_goal_hints
		 WHERE hint_record_id = $1 ORDER BY dismissed_at ASC`, record.ID)
	if err != nil {
		return err
	}

	record.Dismissed = make([]model.GoalHint, 0, len(dismissed))
	for _, d := range dismissed {
		record.Dismissed = append(record.Dismissed, model.GoalHint{
			Title:       d.Title,
			Duration:    d.Duration,
			ParentTitle: d.ParentTitle,
		})
	}
	return nil
}

// Records lists every hint record without its hints.
func (r *hintRepository) Records(ctx context.Context) ([]*model.HintRecord, error) {
	q, err := db.Conn(ctx, r.db, TableHintRecords)
	if err != nil {
		return nil, err
	}

	var records []*model.HintRecord
	err = sqlx.SelectContext(ctx, q, &records, `SELECT * FROM hint_records ORDER BY next_check_at ASC`)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *hintRepository) UpdateRecord(ctx context.Context, record *model.HintRecord) error {
	q, err := db.Conn(ctx, r.db, TableHintRecords)
	if err != nil {
		return err
	}

	query := `UPDATE hint_records
	          SET hint_enabled = $1, last_checked_at = $2, next_check_at = $3
	          WHERE id = $4`
	result, err := q.ExecContext(ctx, query,
		record.HintEnabled,
		record.LastCheckedAt,
		record.NextCheckAt,
		record.ID,
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrHintRecordNotFound
	}
	return nil
}

// ReplaceHints swaps the active list for hints, keeping their order.
func (r *hintRepository) ReplaceHints(ctx context.Context, recordID string, hints []model.GoalHint) error {
	return db.InTx(ctx, r.db, []string{TableGoalHints}, func(ctx context.Context) error {
		err := r.DeleteHints(ctx, recordID)
		if err != nil {
			return err
		}

		q, err := db.Conn(ctx, r.db, TableGoalHints)
		if err != nil {
			return err
		}

		query := `INSERT INTO goal_hints (id, hint_record_id, title, duration, parent_title, position)
		          VALUES ($1, $2, $3, $4, $5, $6)`
		for i, hint := range hints {
			_, err = q.ExecContext(ctx, query, hint.ID, recordID, hint.Title, hint.Duration, hint.ParentTitle, i)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *hintRepository) DeleteHints(ctx context.Context, recordID string) error {
	q, err := db.Conn(ctx, r.db, TableGoalHints)
	if err != nil {
		return err
	}

	_, err = q.ExecContext(ctx, `DELETE FROM goal_hints WHERE hint_record_id = $1`, recordID)
	return err
}

// RemoveHint deletes one active hint and returns what it held.
func (r *hintRepository) RemoveHint(ctx context.Context, recordID, hintID string) (*model.GoalHint, error) {
	q, err := db.Conn(ctx, r.db, TableGoalHints)
	if err != nil {
		return nil, err
	}

	hint := &model.GoalHint{}
	err = sqlx.GetContext(ctx, q, hint,
		`SELECT id, title, duration, parent_title FROM goal_hints WHERE hint_record_id = $1 AND id = $2`,
		recordID, hintID)
	if err == sql.ErrNoRows {
		return nil, ErrGoalHintNotFound
	}
	if err != nil {
		return nil, err
	}

	_, err = q.ExecContext(ctx, `DELETE FROM goal_hints WHERE hint_record_id = $1 AND id = $2`, recordID, hintID)
	if err != nil {
		return nil, err
	}
	return hint, nil
}

// AddDismissed remembers the content of a dismissed hint. The hint's own id
// is not kept.
func (r *hintRepository) AddDismissed(ctx context.Context, recordID string, hint model.GoalHint, at time.Time) error {
	q, err := db.Conn(ctx, r.db, TableDismissedHints)
	if err != nil {
		return err
	}

	query := `INSERT INTO dismissed_goal_hints (id, hint_record_id, title, duration, parent_title, dismissed_at)
	          VALUES ($1, $2, $3, $4, $5, $6)`
	_, err = q.ExecContext(ctx, query, uuid.New().String(), recordID, hint.Title, hint.Duration, hint.ParentTitle, at)
	return err
}

func (r *hintRepository) DeleteByGoal(ctx context.Context, goalID string) error {
	return db.InTx(ctx, r.db, []string{TableHintRecords, TableGoalHints, TableDismissedHints}, func(ctx context.Context) error {
		q, err := db.Conn(ctx, r.db, TableHintRecords, TableGoalHints, TableDismissedHints)
		if err != nil {
			return err
		}

		query := `DELETE FROM %s WHERE hint_record_id IN (SELECT id FROM hint_records WHERE goal_id = $1)`
		for _, table := range []string{TableGoalHints, TableDismissedHints} {
			_, err = q.ExecContext(ctx, fmt.Sprintf(query, table), goalID)
			if err != nil {
				return err
			}
		}

		_, err = q.ExecContext(ctx, `DELETE FROM hint_records WHERE goal_id = $1`, goalID)
		return err
	})
}
