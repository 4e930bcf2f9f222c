package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eav-backend/internal/config"
)

func memoryStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(context.Background(), config.DatabaseConfig{Driver: "sqlite", Name: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBootstrap_Idempotent(t *testing.T) {
	ctx := context.Background()
	s := memoryStore(t)

	require.NoError(t, s.Bootstrap(ctx, DefaultTables()))
	require.NoError(t, s.Bootstrap(ctx, DefaultTables()))

	for _, name := range []string{"eav_entity_type", "eav_entity", "eav_attribute", "eav_value", "all_possible_eav_data", "all_existing_eav_data"} {
		var got string
		err := s.DB.QueryRowContext(ctx,
			"SELECT name FROM sqlite_master WHERE name = ?1", name).Scan(&got)
		require.NoError(t, err, name)
	}
}

func TestBootstrap_RejectsBadTableName(t *testing.T) {
	s := memoryStore(t)
	tables := DefaultTables()
	tables.Value = "values; DROP TABLE x"

	err := s.Bootstrap(context.Background(), tables)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "value_table")
}

func TestValidate_ReportsFirstInvalidNameInOrder(t *testing.T) {
	tables := DefaultTables()
	tables.Entity = "Entity"
	tables.Value = "value-table"
	tables.ExistingView = ""

	for i := 0; i < 20; i++ {
		err := tables.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "entity_table")
	}
}

func TestTablesFromConfig(t *testing.T) {
	tables := TablesFromConfig(config.SchemaConfig{EntityTable: "products"})
	assert.Equal(t, "products", tables.Entity)
	assert.Equal(t, "eav_value", tables.Value)
	require.NoError(t, tables.Validate())
}

func TestIsValidIdentifier(t *testing.T) {
	assert.True(t, isValidIdentifier("eav_value"))
	assert.True(t, isValidIdentifier("v2"))
	assert.False(t, isValidIdentifier(""))
	assert.False(t, isValidIdentifier("2v"))
	assert.False(t, isValidIdentifier("Value"))
	assert.False(t, isValidIdentifier("a-b"))
}

func TestInTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := memoryStore(t)
	require.NoError(t, s.Bootstrap(ctx, DefaultTables()))

	boom := errors.New("boom")
	err := InTx(ctx, s.DB, func(tx Querier) error {
		if _, err := Exec(ctx, tx, "INSERT INTO eav_entity_type (entity_type) VALUES (?1)", "Product"); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var n int
	require.NoError(t, s.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM eav_entity_type").Scan(&n))
	assert.Zero(t, n)
}

func TestInsertReturningID(t *testing.T) {
	ctx := context.Background()
	s := memoryStore(t)
	require.NoError(t, s.Bootstrap(ctx, DefaultTables()))

	first, err := InsertReturningID(ctx, s.DB, "INSERT INTO eav_entity_type (entity_type) VALUES (?1) RETURNING id", "Product")
	require.NoError(t, err)
	second, err := InsertReturningID(ctx, s.DB, "INSERT INTO eav_entity_type (entity_type) VALUES (?1) RETURNING id", "Order")
	require.NoError(t, err)
	assert.Greater(t, second, first)
}

func TestMapError_SQLite_UniqueViolation(t *testing.T) {
	ctx := context.Background()
	s := memoryStore(t)
	require.NoError(t, s.Bootstrap(ctx, DefaultTables()))

	_, err := Exec(ctx, s.DB, "INSERT INTO eav_entity_type (entity_type) VALUES (?1)", "Product")
	require.NoError(t, err)
	_, err = Exec(ctx, s.DB, "INSERT INTO eav_entity_type (entity_type) VALUES (?1)", "Product")
	require.Error(t, err)

	assert.ErrorIs(t, MapError(s.Dialect, err), ErrUniqueViolation)
}

func TestMapError_PG_UniqueViolation(t *testing.T) {
	dialect := &PostgresDialect{}
	pgErr := &pgconn.PgError{
		Code:           "23505",
		Message:        "duplicate key value violates unique constraint \"eav_entity_type_entity_type_key\"",
		ConstraintName: "eav_entity_type_entity_type_key",
	}
	wrapped := fmt.Errorf("exec: %w", pgErr)

	mapped := MapError(dialect, wrapped)
	require.ErrorIs(t, mapped, ErrUniqueViolation)

	var extracted *pgconn.PgError
	require.ErrorAs(t, mapped, &extracted)
	assert.Equal(t, "eav_entity_type_entity_type_key", extracted.ConstraintName)
}

func TestMapError_PassThrough(t *testing.T) {
	err := errors.New("some other error")
	assert.Same(t, err, MapError(&PostgresDialect{}, err))
	assert.Same(t, err, MapError(&SQLiteDialect{}, err))
	assert.NoError(t, MapError(&PostgresDialect{}, nil))
}

func TestInExpr(t *testing.T) {
	pg := &PostgresDialect{}
	p := NewParams(pg)
	assert.Equal(t, "id = ANY($1)", pg.InExpr("id", p, []int64{1, 2}))
	assert.Equal(t, 1, p.Len())

	lite := &SQLiteDialect{}
	p = NewParams(lite)
	p.Add("x")
	assert.Equal(t, "id IN (?2, ?3)", lite.InExpr("id", p, []int64{4, 5}))
	assert.Equal(t, []any{"x", int64(4), int64(5)}, p.Args())
	assert.Equal(t, "1=0", lite.InExpr("id", NewParams(lite), nil))
}
