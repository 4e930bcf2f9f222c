package eav

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"eav-backend/internal/store"
)

func (r *Repository) ListEntities(ctx context.Context) ([]Entity, error) {
	q := fmt.Sprintf("SELECT %s FROM %s ORDER BY id", entityColumns, r.t.Entity)
	entities, err := queryAll(ctx, r.db, scanEntity, q)
	if err != nil {
		return nil, r.wrapDB(err, "list entities")
	}
	return entities, nil
}

func (r *Repository) ListEntitiesByType(ctx context.Context, et EntityType) ([]Entity, error) {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE entity_type_id = %s ORDER BY id", entityColumns, r.t.Entity, r.ph(1))
	entities, err := queryAll(ctx, r.db, scanEntity, q, et.ID)
	if err != nil {
		return nil, r.wrapDB(err, "list entities by type")
	}
	return entities, nil
}

// GetEntityByID returns nil when no entity has the id.
func (r *Repository) GetEntityByID(ctx context.Context, id int64) (*Entity, error) {
	e, err := r.entityByID(ctx, r.db, id)
	if err != nil {
		return nil, r.wrapDB(err, "get entity")
	}
	return e, nil
}

func (r *Repository) entityByID(ctx context.Context, q store.Querier, id int64) (*Entity, error) {
	sqlStr := fmt.Sprintf("SELECT %s FROM %s WHERE id = %s", entityColumns, r.t.Entity, r.ph(1))
	return queryOne(ctx, q, scanEntity, sqlStr, id)
}

// CreateEntity creates an entity named entityName under the type typeName,
// creating the type first when no type has that name. The write is confirmed by
// reading the type back by name and the entity back by its generated id.
func (r *Repository) CreateEntity(ctx context.Context, typeName, entityName string) (*Entity, error) {
	if strings.TrimSpace(typeName) == "" || strings.TrimSpace(entityName) == "" {
		return nil, invalidArgument("entity type and entity name are required")
	}

	var entityID int64
	err := store.InTx(ctx, r.db, func(tx store.Querier) error {
		insertType := fmt.Sprintf("INSERT INTO %s (entity_type) VALUES (%s) ON CONFLICT (entity_type) DO NOTHING",
			r.t.EntityType, r.ph(1))
		if _, err := store.Exec(ctx, tx, insertType, typeName); err != nil {
			return r.wrapDB(err, "ensure entity type")
		}
		et, err := r.entityTypeByName(ctx, tx, typeName)
		if err != nil {
			return r.wrapDB(err, "resolve entity type")
		}
		if et == nil {
			return creationFailed("entity_type")
		}

		insertEntity := fmt.Sprintf("INSERT INTO %s (entity_type_id, entity) VALUES (%s, %s) RETURNING id",
			r.t.Entity, r.ph(1), r.ph(2))
		entityID, err = store.InsertReturningID(ctx, tx, insertEntity, et.ID, entityName)
		if err != nil {
			return r.wrapDB(err, "insert entity")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	et, err := r.GetEntityTypeByName(ctx, typeName)
	if err != nil {
		return nil, err
	}
	if et == nil {
		return nil, creationFailed("entity_type")
	}
	e, err := r.GetEntityByID(ctx, entityID)
	if err != nil {
		return nil, err
	}
	if e == nil || e.EntityTypeID != et.ID {
		return nil, creationFailed("entity")
	}
	return e, nil
}

// UpdateEntity renames the entity and returns the stored row.
func (r *Repository) UpdateEntity(ctx context.Context, e Entity) (*Entity, error) {
	if e.ID == 0 {
		return nil, invalidArgument("entity id is required")
	}
	q := fmt.Sprintf("UPDATE %s SET entity = %s WHERE id = %s", r.t.Entity, r.ph(1), r.ph(2))
	if _, err := store.Exec(ctx, r.db, q, e.Name, e.ID); err != nil {
		return nil, r.wrapDB(err, "update entity")
	}

	updated, err := r.GetEntityByID(ctx, e.ID)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, notFound("entity", e.ID)
	}
	return updated, nil
}

// DeleteEntity removes the entity's values and then the entity in one transaction.
// It reports whether the entity row existed.
func (r *Repository) DeleteEntity(ctx context.Context, e Entity) (bool, error) {
	return r.DeleteEntities(ctx, []Entity{e})
}

// DeleteEntities is the batch form of DeleteEntity. An empty set is a no-op success.
func (r *Repository) DeleteEntities(ctx context.Context, entities []Entity) (bool, error) {
	if len(entities) == 0 {
		return true, nil
	}
	ids := idsOf(entities, func(e Entity) int64 { return e.ID })

	var removed int64
	err := store.InTx(ctx, r.db, func(tx store.Querier) error {
		values, err := r.deleteWhereIn(ctx, tx, r.t.Value, "entity_id", ids)
		if err != nil {
			return r.wrapDB(err, "delete entity values")
		}
		removed, err = r.deleteWhereIn(ctx, tx, r.t.Entity, "id", ids)
		if err != nil {
			return r.wrapDB(err, "delete entities")
		}
		r.log.Debug("deleted entities",
			zap.Int64s("ids", ids), zap.Int64("values", values), zap.Int64("entities", removed))
		return nil
	})
	if err != nil {
		return false, err
	}
	return removed > 0, nil
}

func (r *Repository) deleteWhereIn(ctx context.Context, q store.Querier, table, column string, ids []int64) (int64, error) {
	p := store.NewParams(r.dialect)
	where := r.dialect.InExpr(column, p, ids)
	return store.Exec(ctx, q, fmt.Sprintf("DELETE FROM %s WHERE %s", table, where), p.Args()...)
}
