package eav

import (
	"context"
	"fmt"
	"strings"

	"eav-backend/internal/store"
)

func (r *Repository) ListEntityTypes(ctx context.Context) ([]EntityType, error) {
	q := fmt.Sprintf("SELECT %s FROM %s ORDER BY id", entityTypeColumns, r.t.EntityType)
	types, err := queryAll(ctx, r.db, scanEntityType, q)
	if err != nil {
		return nil, r.wrapDB(err, "list entity types")
	}
	return types, nil
}

// GetEntityTypesByIDs returns the types whose id is in ids. An empty set is rejected.
func (r *Repository) GetEntityTypesByIDs(ctx context.Context, ids []int64) ([]EntityType, error) {
	if len(ids) == 0 {
		return nil, invalidArgument("entity type id set is empty")
	}
	p := store.NewParams(r.dialect)
	where := r.dialect.InExpr("id", p, ids)
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY id", entityTypeColumns, r.t.EntityType, where)
	types, err := queryAll(ctx, r.db, scanEntityType, q, p.Args()...)
	if err != nil {
		return nil, r.wrapDB(err, "get entity types by ids")
	}
	return types, nil
}

// GetEntityTypeByID returns nil when no type has the id.
func (r *Repository) GetEntityTypeByID(ctx context.Context, id int64) (*EntityType, error) {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE id = %s", entityTypeColumns, r.t.EntityType, r.ph(1))
	et, err := queryOne(ctx, r.db, scanEntityType, q, id)
	if err != nil {
		return nil, r.wrapDB(err, "get entity type")
	}
	return et, nil
}

// GetEntityTypeByName returns nil when no type has the name.
func (r *Repository) GetEntityTypeByName(ctx context.Context, name string) (*EntityType, error) {
	et, err := r.entityTypeByName(ctx, r.db, name)
	if err != nil {
		return nil, r.wrapDB(err, "get entity type by name")
	}
	return et, nil
}

func (r *Repository) entityTypeByName(ctx context.Context, q store.Querier, name string) (*EntityType, error) {
	sqlStr := fmt.Sprintf("SELECT %s FROM %s WHERE entity_type = %s", entityTypeColumns, r.t.EntityType, r.ph(1))
	return queryOne(ctx, q, scanEntityType, sqlStr, name)
}

// CreateEntityType inserts a new type. A name already in use yields ErrDuplicateName.
func (r *Repository) CreateEntityType(ctx context.Context, name string) (*EntityType, error) {
	if strings.TrimSpace(name) == "" {
		return nil, invalidArgument("entity type name is empty")
	}
	q := fmt.Sprintf("INSERT INTO %s (entity_type) VALUES (%s) RETURNING id", r.t.EntityType, r.ph(1))
	id, err := store.InsertReturningID(ctx, r.db, q, name)
	if err != nil {
		return nil, r.wrapDB(err, "create entity type")
	}

	et, err := r.GetEntityTypeByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if et == nil {
		return nil, creationFailed("entity_type")
	}
	return et, nil
}

// DeleteEntityType removes the type row only. Entities and attributes of the type
// are left in place; callers remove them first when that matters.
func (r *Repository) DeleteEntityType(ctx context.Context, et EntityType) (bool, error) {
	q := fmt.Sprintf("DELETE FROM %s WHERE id = %s", r.t.EntityType, r.ph(1))
	n, err := store.Exec(ctx, r.db, q, et.ID)
	if err != nil {
		return false, r.wrapDB(err, "delete entity type")
	}
	return n > 0, nil
}
