// Package eav maps the entity/attribute/value model onto four relational tables
// and two flattened views.
package eav

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"eav-backend/internal/logger"
	"eav-backend/internal/store"
)

const (
	entityTypeColumns = "id, entity_type"
	entityColumns     = "id, entity_type_id, entity, created_at"
	attributeColumns  = "id, entity_type_id, attr, value_type, allow_multiple"
	valueColumns      = "id, entity_id, attr_id, value_str, value_int, value_float, value_time, value_bool"
	viewColumns       = "entity_type_id, entity_id, entity, entity_type, created_at, attr_id, attr, value_type, " +
		"allow_multiple, value_id, value_str, value_int, value_float, value_time, value_bool"
)

// Repository runs EAV reads and writes against one database.
type Repository struct {
	db      *sql.DB
	dialect store.Dialect
	t       store.Tables
	log     *zap.Logger
}

// NewRepository returns a Repository over db. The table names must already be validated.
func NewRepository(db *sql.DB, dialect store.Dialect, tables store.Tables, log *zap.Logger) *Repository {
	return &Repository{db: db, dialect: dialect, t: tables, log: logger.OrNop(log)}
}

// Tables returns the relation names the repository queries.
func (r *Repository) Tables() store.Tables {
	return r.t
}

func (r *Repository) ph(i int) string {
	return r.dialect.Placeholder(i)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func queryAll[T any](ctx context.Context, q store.Querier, scan func(rowScanner) (T, error), sqlStr string, args ...any) ([]T, error) {
	rows, err := q.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

// queryOne returns nil when the query yields no row.
func queryOne[T any](ctx context.Context, q store.Querier, scan func(rowScanner) (T, error), sqlStr string, args ...any) (*T, error) {
	item, err := scan(q.QueryRowContext(ctx, sqlStr, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query row: %w", err)
	}
	return &item, nil
}

func scanEntityType(s rowScanner) (EntityType, error) {
	var et EntityType
	err := s.Scan(&et.ID, &et.Name)
	return et, err
}

func scanEntity(s rowScanner) (Entity, error) {
	var e Entity
	var created nullTime
	if err := s.Scan(&e.ID, &e.EntityTypeID, &e.Name, &created); err != nil {
		return e, err
	}
	e.CreatedAt = created.Time
	return e, nil
}

func scanAttribute(s rowScanner) (Attribute, error) {
	var a Attribute
	var vt string
	if err := s.Scan(&a.ID, &a.EntityTypeID, &a.Name, &vt, &a.AllowMultiple); err != nil {
		return a, err
	}
	a.ValueType = ValueType(vt)
	return a, nil
}

func scanValue(s rowScanner) (Value, error) {
	var v Value
	var cols typedColumns
	if err := s.Scan(append([]any{&v.ID, &v.EntityID, &v.AttrID}, cols.dest()...)...); err != nil {
		return v, err
	}
	v.ValueStr, v.ValueInt, v.ValueFloat, v.ValueTime, v.ValueBool = cols.values()
	return v, nil
}

func scanView(s rowScanner) (View, error) {
	var v View
	var (
		created       nullTime
		attrID        sql.NullInt64
		attr          sql.NullString
		valueType     sql.NullString
		allowMultiple sql.NullBool
		valueID       sql.NullInt64
		cols          typedColumns
	)
	dest := append([]any{
		&v.EntityTypeID, &v.EntityID, &v.Entity, &v.EntityType, &created,
		&attrID, &attr, &valueType, &allowMultiple, &valueID,
	}, cols.dest()...)
	if err := s.Scan(dest...); err != nil {
		return v, err
	}
	v.CreatedAt = created.Time
	v.AttrID = ptrIf(attrID.Int64, attrID.Valid)
	v.Attr = ptrIf(attr.String, attr.Valid)
	v.ValueType = ptrIf(ValueType(valueType.String), valueType.Valid)
	v.AllowMultiple = ptrIf(allowMultiple.Bool, allowMultiple.Valid)
	v.ValueID = ptrIf(valueID.Int64, valueID.Valid)
	v.ValueStr, v.ValueInt, v.ValueFloat, v.ValueTime, v.ValueBool = cols.values()
	return v, nil
}

// typedColumns scans the five nullable value columns.
type typedColumns struct {
	str sql.NullString
	i   sql.NullInt64
	f   sql.NullFloat64
	t   nullTime
	b   sql.NullBool
}

func (c *typedColumns) dest() []any {
	return []any{&c.str, &c.i, &c.f, &c.t, &c.b}
}

func (c *typedColumns) values() (*string, *int64, *float64, *time.Time, *bool) {
	return ptrIf(c.str.String, c.str.Valid),
		ptrIf(c.i.Int64, c.i.Valid),
		ptrIf(c.f.Float64, c.f.Valid),
		ptrIf(c.t.Time, c.t.Valid),
		ptrIf(c.b.Bool, c.b.Valid)
}

func ptrIf[T any](v T, ok bool) *T {
	if !ok {
		return nil
	}
	return &v
}

// nullTime accepts native timestamps as well as the text forms SQLite stores.
type nullTime struct {
	Time  time.Time
	Valid bool
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
}

func (n *nullTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		n.Time, n.Valid = time.Time{}, false
		return nil
	case time.Time:
		n.Time, n.Valid = v, true
		return nil
	case []byte:
		return n.parse(string(v))
	case string:
		return n.parse(v)
	default:
		return fmt.Errorf("unsupported timestamp type %T", src)
	}
}

func (n *nullTime) parse(s string) error {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			n.Time, n.Valid = t, true
			return nil
		}
	}
	return fmt.Errorf("unparseable timestamp %q", s)
}

// nullable converts an optional pointer into a driver argument.
func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func idsOf[T any](items []T, id func(T) int64) []int64 {
	ids := make([]int64, len(items))
	for i, item := range items {
		ids[i] = id(item)
	}
	return ids
}
