package eav

import (
	"context"
	"fmt"

	"eav-backend/internal/store"
)

// GetValues returns every value row of the entity.
func (r *Repository) GetValues(ctx context.Context, e Entity) ([]Value, error) {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE entity_id = %s ORDER BY id", valueColumns, r.t.Value, r.ph(1))
	values, err := queryAll(ctx, r.db, scanValue, q, e.ID)
	if err != nil {
		return nil, r.wrapDB(err, "get values")
	}
	return values, nil
}

// GetValueByID returns nil when no value has the id.
func (r *Repository) GetValueByID(ctx context.Context, id int64) (*Value, error) {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE id = %s", valueColumns, r.t.Value, r.ph(1))
	v, err := queryOne(ctx, r.db, scanValue, q, id)
	if err != nil {
		return nil, r.wrapDB(err, "get value")
	}
	return v, nil
}

// CreateValue stores tv for the entity's attribute slot. Both rows must be persisted,
// belong to the same entity type, and tv must carry the attribute's declared type.
// Nothing is written when a check fails.
func (r *Repository) CreateValue(ctx context.Context, e Entity, a Attribute, tv TypedValue) (*Value, error) {
	if e.ID == 0 || a.ID == 0 {
		return nil, invalidArgument("entity and attribute must be persisted")
	}
	if e.EntityTypeID != a.EntityTypeID {
		return nil, invalidArgument("attribute %d does not belong to entity type %d", a.ID, e.EntityTypeID)
	}
	if tv == nil {
		return nil, invalidArgument("value is required")
	}
	if tv.Type() != a.ValueType {
		return nil, invalidArgument("value of type %q does not match attribute type %q", tv.Type(), a.ValueType)
	}

	v := Value{EntityID: e.ID, AttrID: a.ID}
	tv.assign(&v)
	return r.insertValue(ctx, v)
}

// UnsafeCreateValue inserts v's typed columns verbatim. No check ties them to the
// attribute's declared type or to each other.
func (r *Repository) UnsafeCreateValue(ctx context.Context, v Value) (*Value, error) {
	return r.insertValue(ctx, v)
}

func (r *Repository) insertValue(ctx context.Context, v Value) (*Value, error) {
	q := fmt.Sprintf("INSERT INTO %s (entity_id, attr_id, value_str, value_int, value_float, value_time, value_bool) "+
		"VALUES (%s, %s, %s, %s, %s, %s, %s) RETURNING id",
		r.t.Value, r.ph(1), r.ph(2), r.ph(3), r.ph(4), r.ph(5), r.ph(6), r.ph(7))
	id, err := store.InsertReturningID(ctx, r.db, q,
		v.EntityID, v.AttrID,
		nullable(v.ValueStr), nullable(v.ValueInt), nullable(v.ValueFloat), nullable(v.ValueTime), nullable(v.ValueBool))
	if err != nil {
		return nil, r.wrapDB(err, "create value")
	}

	created, err := r.GetValueByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if created == nil {
		return nil, creationFailed("value")
	}
	return created, nil
}

// UpdateValue overwrites all five typed columns, nils included.
func (r *Repository) UpdateValue(ctx context.Context, v Value) (*Value, error) {
	if v.ID == 0 {
		return nil, invalidArgument("value id is required")
	}
	q := fmt.Sprintf("UPDATE %s SET value_str = %s, value_int = %s, value_float = %s, value_time = %s, value_bool = %s WHERE id = %s",
		r.t.Value, r.ph(1), r.ph(2), r.ph(3), r.ph(4), r.ph(5), r.ph(6))
	_, err := store.Exec(ctx, r.db, q,
		nullable(v.ValueStr), nullable(v.ValueInt), nullable(v.ValueFloat), nullable(v.ValueTime), nullable(v.ValueBool),
		v.ID)
	if err != nil {
		return nil, r.wrapDB(err, "update value")
	}

	updated, err := r.GetValueByID(ctx, v.ID)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, notFound("value", v.ID)
	}
	return updated, nil
}

// DeleteValue removes the value row with v's own id.
func (r *Repository) DeleteValue(ctx context.Context, v Value) (bool, error) {
	return r.DeleteValues(ctx, []Value{v})
}

// DeleteValues removes the given value rows. An empty set is a no-op success.
func (r *Repository) DeleteValues(ctx context.Context, values []Value) (bool, error) {
	if len(values) == 0 {
		return true, nil
	}
	ids := idsOf(values, func(v Value) int64 { return v.ID })
	n, err := r.deleteWhereIn(ctx, r.db, r.t.Value, "id", ids)
	if err != nil {
		return false, r.wrapDB(err, "delete values")
	}
	return n > 0, nil
}
