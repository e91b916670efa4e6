package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/goalnest/goalnest/internal/db"
	"github.com/goalnest/goalnest/internal/model"
	"github.com/jmoiron/sqlx"
)

const TableTrash = "goal_trash"

var (
	ErrTrashItemNotFound = errors.New("trash item not found")
)

type TrashRepository interface {
	Create(ctx context.Context, item *model.TrashItem) error
	ByID(ctx context.Context, goalID string) (*model.TrashItem, error)
	Items(ctx context.Context, parentID string) ([]*model.TrashItem, error)
	Delete(ctx context.Context, goalID string) error
}

type trashRow struct {
	ID           string    `db:"id"`
	Title        string    `db:"title"`
	ParentGoalID string    `db:"parent_goal_id"`
	Snapshot     string    `db:"snapshot"`
	DeletedAt    time.Time `db:"deleted_at"`
}

func (row *trashRow) item() (*model.TrashItem, error) {
	item := &model.TrashItem{DeletedAt: row.DeletedAt}
	err := json.Unmarshal([]byte(row.Snapshot), &item.Goal)
	if err != nil {
		return nil, fmt.Errorf("failed to decode trashed goal %s: %w", row.ID, err)
	}
	return item, nil
}

type trashRepository struct {
	db *sqlx.DB
}

func NewTrashRepository(db *sqlx.DB) TrashRepository {
	return &trashRepository{db: db}
}

func (r *trashRepository) Create(ctx context.Context, item *model.TrashItem) error {
	q, err := db.Conn(ctx, r.db, TableTrash)
	if err != nil {
		return err
	}

	snapshot, err := json.Marshal(item.Goal)
	if err != nil {
		return fmt.Errorf("failed to encode goal snapshot: %w", err)
	}

	query := `INSERT INTO goal_trash (id, title, parent_goal_id, snapshot, deleted_at)
	          VALUES ($1, $2, $3, $4, $5)`
	_, err = q.ExecContext(ctx, query, item.ID, item.Title, item.ParentGoalID, string(snapshot), item.DeletedAt)
	return err
}

func (r *trashRepository) ByID(ctx context.Context, goalID string) (*model.TrashItem, error) {
	q, err := db.Conn(ctx, r.db, TableTrash)
	if err != nil {
		return nil, err
	}

	row := &trashRow{}
	err = sqlx.GetContext(ctx, q, row, `SELECT * FROM goal_trash WHERE id = $1`, goalID)
	if err == sql.ErrNoRows {
		return nil, ErrTrashItemNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.item()
}

// Items lists trashed goals, newest first. An empty parentID lists all of them.
func (r *trashRepository) Items(ctx context.Context, parentID string) ([]*model.TrashItem, error) {
	q, err := db.Conn(ctx, r.db, TableTrash)
	if err != nil {
		return nil, err
	}

	var rows []*trashRow
	if parentID == "" {
		err = sqlx.SelectContext(ctx, q, &rows, `SELECT * FROM goal_trash ORDER BY deleted_at DESC`)
	} else {
		err = sqlx.SelectContext(ctx, q, &rows,
			`SELECT * FROM goal_trash WHERE parent_goal_id = $1 ORDER BY deleted_at DESC`, parentID)
	}
	if err != nil {
		return nil, err
	}

	items := make([]*model.TrashItem, 0, len(rows))
	for _, row := range rows {
		item, err := row.item()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (r *trashRepository) Delete(ctx context.Context, goalID string) error {
	q, err := db.Conn(ctx, r.db, TableTrash)
	if err != nil {
		return err
	}

	result, err := q.ExecContext(ctx, `DELETE FROM goal_trash WHERE id = $1`, goalID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrTrashItemNotFound
	}
	return nil
}
