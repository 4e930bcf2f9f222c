package store

import (
	"fmt"
	"strconv"
	"strings"
)

// SQLiteDialect implements Dialect for SQLite via modernc.org/sqlite.
type SQLiteDialect struct{}

func (d *SQLiteDialect) Name() string       { return "sqlite" }
func (d *SQLiteDialect) DriverName() string { return "sqlite" }

func (d *SQLiteDialect) Placeholder(i int) string {
	return "?" + strconv.Itoa(i)
}

// InExpr expands ids into one argument each. SQLite has no array binding.
func (d *SQLiteDialect) InExpr(field string, p *Params, ids []int64) string {
	if len(ids) == 0 {
		return "1=0"
	}
	phs := make([]string, len(ids))
	for i, id := range ids {
		phs[i] = p.Add(id)
	}
	return field + " IN (" + strings.Join(phs, ", ") + ")"
}

func (d *SQLiteDialect) SchemaSQL(t Tables) string {
	return fmt.Sprintf(sqliteSchemaSQL,
		t.EntityType, t.Entity, t.Attribute, t.Value,
		t.PossibleView, viewSelect(t, false),
		t.ExistingView, viewSelect(t, true),
	)
}

func (d *SQLiteDialect) MapError(err error) error {
	if err == nil {
		return nil
	}
	errStr := err.Error()
	if strings.Contains(errStr, "UNIQUE constraint failed") || strings.Contains(errStr, "constraint failed: UNIQUE") {
		return fmt.Errorf("%w: %w", ErrUniqueViolation, err)
	}
	return err
}

// --- SQLite DDL ---

const sqliteSchemaSQL = `
CREATE TABLE IF NOT EXISTS %[1]s (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    entity_type TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS %[2]s (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    entity_type_id INTEGER NOT NULL,
    entity         TEXT NOT NULL,
    created_at     TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_%[2]s_entity_type ON %[2]s (entity_type_id);

CREATE TABLE IF NOT EXISTS %[3]s (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    entity_type_id INTEGER NOT NULL,
    attr           TEXT NOT NULL,
    value_type     TEXT NOT NULL CHECK (value_type IN ('str', 'int', 'float', 'time', 'bool')),
    allow_multiple BOOLEAN NOT NULL DEFAULT 0,
    UNIQUE (entity_type_id, attr)
);

CREATE TABLE IF NOT EXISTS %[4]s (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    entity_id   INTEGER NOT NULL,
    attr_id     INTEGER NOT NULL,
    value_str   TEXT,
    value_int   INTEGER,
    value_float REAL,
    value_time  TIMESTAMP,
    value_bool  BOOLEAN
);
CREATE INDEX IF NOT EXISTS idx_%[4]s_entity ON %[4]s (entity_id);
CREATE INDEX IF NOT EXISTS idx_%[4]s_attr ON %[4]s (attr_id);

CREATE VIEW IF NOT EXISTS %[5]s AS %[6]s;

CREATE VIEW IF NOT EXISTS %[7]s AS %[8]s;
`
