package db_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goalnest/goalnest/internal/db"
	"github.com/goalnest/goalnest/internal/db/dbtest"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func insertSetting(ctx context.Context, t *testing.T, database *sqlx.DB, key string) error {
	t.Helper()
	q, err := db.Conn(ctx, database, "settings")
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, $3)`,
		key, "v", time.Now().UTC())
	return err
}

func countSettings(t *testing.T, database *sqlx.DB) int {
	t.Helper()
	var n int
	require.NoError(t, database.Get(&n, `SELECT COUNT(*) FROM settings`))
	return n
}

func TestInTxCommits(t *testing.T) {
	ctx := context.Background()
	database := dbtest.Open(t)

	err := db.InTx(ctx, database, []string{"settings"}, func(ctx context.Context) error {
		require.NotNil(t, db.TxFrom(ctx))
		return insertSetting(ctx, t, database, "a")
	})
	require.NoError(t, err)
	assert.Equal(t, 1, countSettings(t, database))
}

func TestInTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	database := dbtest.Open(t)
	boom := errors.New("boom")

	err := db.InTx(ctx, database, []string{"settings"}, func(ctx context.Context) error {
		require.NoError(t, insertSetting(ctx, t, database, "a"))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, countSettings(t, database))
}

func TestConnRefusesTablesOutsideScope(t *testing.T) {
	ctx := context.Background()
	database := dbtest.Open(t)

	err := db.InTx(ctx, database, []string{"goals"}, func(ctx context.Context) error {
		return insertSetting(ctx, t, database, "a")
	})
	assert.ErrorIs(t, err, db.ErrTableOutOfScope)
	assert.Zero(t, countSettings(t, database))
}

func TestNestedInTx(t *testing.T) {
	ctx := context.Background()
	database := dbtest.Open(t)

	err := db.InTx(ctx, database, []string{"settings", "goals"}, func(ctx context.Context) error {
		outer := db.TxFrom(ctx)
		return db.InTx(ctx, database, []string{"settings"}, func(ctx context.Context) error {
			assert.Same(t, outer, db.TxFrom(ctx))
			return insertSetting(ctx, t, database, "a")
		})
	})
	require.NoError(t, err)
	assert.Equal(t, 1, countSettings(t, database))

	err = db.InTx(ctx, database, []string{"goals"}, func(ctx context.Context) error {
		return db.InTx(ctx, database, []string{"settings"}, func(ctx context.Context) error {
			t.Fatal("inner transaction must not run")
			return nil
		})
	})
	assert.ErrorIs(t, err, db.ErrTableOutOfScope)
}

func TestTxCommitAndRollback(t *testing.T) {
	ctx := context.Background()
	database := dbtest.Open(t)

	_, err := db.Begin(ctx, database)
	assert.Error(t, err)

	tx, err := db.Begin(ctx, database, "settings", "goals")
	require.NoError(t, err)
	assert.Equal(t, []string{"goals", "settings"}, tx.Tables())
	assert.True(t, tx.Allows("goals"))
	assert.False(t, tx.Allows("contacts"))

	require.NoError(t, insertSetting(db.WithTx(ctx, tx), t, database, "a"))
	require.NoError(t, tx.Commit())
	assert.NoError(t, tx.Rollback())
	assert.ErrorIs(t, tx.Commit(), db.ErrTxDone)
	assert.Equal(t, 1, countSettings(t, database))
}

func TestMigrations(t *testing.T) {
	ctx := context.Background()
	database := dbtest.Open(t)

	version, err := db.SchemaVersion(ctx, database.DB, "sqlite")
	require.NoError(t, err)
	assert.EqualValues(t, 6, version)

	require.NoError(t, db.MigrateDown(ctx, database.DB, "sqlite"))
	version, err = db.SchemaVersion(ctx, database.DB, "sqlite")
	require.NoError(t, err)
	assert.EqualValues(t, 5, version)

	require.NoError(t, db.RunMigrations(ctx, database.DB, "sqlite"))
	version, err = db.SchemaVersion(ctx, database.DB, "sqlite")
	require.NoError(t, err)
	assert.EqualValues(t, 6, version)
}
