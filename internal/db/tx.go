package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/jmoiron/sqlx"
)

var (
	ErrTableOutOfScope = errors.New("table not declared in transaction scope")
	ErrTxDone          = errors.New("transaction already finished")
)

// Tx is a transaction bound to a fixed set of tables. Repositories reached
// through a context carrying a Tx refuse tables outside that set.
type Tx struct {
	tx     *sqlx.Tx
	tables map[string]struct{}
	done   bool
}

type txKey struct{}

// Begin opens a transaction scoped to tables.
func Begin(ctx context.Context, db *sqlx.DB, tables ...string) (*Tx, error) {
	if len(tables) == 0 {
		return nil, errors.New("transaction needs at least one table")
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	scope := make(map[string]struct{}, len(tables))
	for _, t := range tables {
		scope[t] = struct{}{}
	}
	return &Tx{tx: tx, tables: scope}, nil
}

func (t *Tx) Commit() error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	return t.tx.Commit()
}

// Rollback is a no-op once the transaction has been committed.
func (t *Tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

func (t *Tx) Allows(table string) bool {
	_, ok := t.tables[table]
	return ok
}

func (t *Tx) Tables() []string {
	tables := make([]string, 0, len(t.tables))
	for name := range t.tables {
		tables = append(tables, name)
	}
	sort.Strings(tables)
	return tables
}

func WithTx(ctx context.Context, tx *Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

func TxFrom(ctx context.Context) *Tx {
	tx, _ := ctx.Value(txKey{}).(*Tx)
	return tx
}

// InTx runs fn inside a transaction scoped to tables and commits when fn
// returns nil. When ctx already carries a transaction, fn joins it as long as
// every table is part of the outer scope.
func InTx(ctx context.Context, db *sqlx.DB, tables []string, fn func(ctx context.Context) error) error {
	if outer := TxFrom(ctx); outer != nil {
		for _, table := range tables {
			if !outer.Allows(table) {
				return fmt.Errorf("%w: %s", ErrTableOutOfScope, table)
			}
		}
		return fn(ctx)
	}

	tx, err := Begin(ctx, db, tables...)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	err = fn(WithTx(ctx, tx))
	if err != nil {
		return err
	}
	return tx.Commit()
}

// Conn returns what a repository should query for the given tables: the
// transaction carried by ctx, or db itself outside a transaction.
func Conn(ctx context.Context, db *sqlx.DB, tables ...string) (sqlx.ExtContext, error) {
	tx := TxFrom(ctx)
	if tx == nil {
		return db, nil
	}
	for _, table := range tables {
		if !tx.Allows(table) {
			return nil, fmt.Errorf("%w: %s (scope %v)", ErrTableOutOfScope, table, tx.Tables())
		}
	}
	return tx.tx, nil
}
