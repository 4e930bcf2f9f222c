package store

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgresDialect implements Dialect for PostgreSQL via pgx/stdlib.
type PostgresDialect struct{}

func (d *PostgresDialect) Name() string       { return "postgres" }
func (d *PostgresDialect) DriverName() string { return "pgx" }

func (d *PostgresDialect) Placeholder(i int) string {
	return "$" + strconv.Itoa(i)
}

// InExpr binds the whole id set as one bigint[] argument.
func (d *PostgresDialect) InExpr(field string, p *Params, ids []int64) string {
	return field + " = ANY(" + p.Add(ids) + ")"
}

func (d *PostgresDialect) SchemaSQL(t Tables) string {
	return fmt.Sprintf(pgSchemaSQL,
		t.EntityType, t.Entity, t.Attribute, t.Value,
		t.PossibleView, viewSelect(t, false),
		t.ExistingView, viewSelect(t, true),
	)
}

func (d *PostgresDialect) MapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %w", ErrUniqueViolation, err)
	}
	// pgx/stdlib may surface only the message text
	errStr := err.Error()
	if strings.Contains(errStr, "SQLSTATE 23505") || strings.Contains(errStr, "duplicate key") {
		return fmt.Errorf("%w: %w", ErrUniqueViolation, err)
	}
	return err
}

// --- PostgreSQL DDL ---

const pgSchemaSQL = `
CREATE TABLE IF NOT EXISTS %[1]s (
    id          BIGSERIAL PRIMARY KEY,
    entity_type TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS %[2]s (
    id             BIGSERIAL PRIMARY KEY,
    entity_type_id BIGINT NOT NULL,
    entity         TEXT NOT NULL,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_%[2]s_entity_type ON %[2]s (entity_type_id);

CREATE TABLE IF NOT EXISTS %[3]s (
    id             BIGSERIAL PRIMARY KEY,
    entity_type_id BIGINT NOT NULL,
    attr           TEXT NOT NULL,
    value_type     TEXT NOT NULL CHECK (value_type IN ('str', 'int', 'float', 'time', 'bool')),
    allow_multiple BOOLEAN NOT NULL DEFAULT false,
    UNIQUE (entity_type_id, attr)
);

CREATE TABLE IF NOT EXISTS %[4]s (
    id          BIGSERIAL PRIMARY KEY,
    entity_id   BIGINT NOT NULL,
    attr_id     BIGINT NOT NULL,
    value_str   TEXT,
    value_int   BIGINT,
    value_float DOUBLE PRECISION,
    value_time  TIMESTAMPTZ,
    value_bool  BOOLEAN
);
CREATE INDEX IF NOT EXISTS idx_%[4]s_entity ON %[4]s (entity_id);
CREATE INDEX IF NOT EXISTS idx_%[4]s_attr ON %[4]s (attr_id);

CREATE OR REPLACE VIEW %[5]s AS %[6]s;

CREATE OR REPLACE VIEW %[7]s AS %[8]s;
`
