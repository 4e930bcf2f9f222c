package eav

import (
	"context"
	"fmt"
)

const viewOrder = "ORDER BY entity_id, attr_id, value_id"

// GetEverything returns one row per (entity, attribute slot), including slots
// that have no value yet. Multi-valued slots yield one row per value.
func (r *Repository) GetEverything(ctx context.Context) ([]View, error) {
	return r.readView(ctx, r.t.PossibleView, 0)
}

// GetEveryValue returns only the rows backed by a stored value.
func (r *Repository) GetEveryValue(ctx context.Context) ([]View, error) {
	return r.readView(ctx, r.t.ExistingView, 0)
}

func (r *Repository) GetEntityView(ctx context.Context, e Entity) ([]View, error) {
	return r.GetEntityViewByID(ctx, e.ID)
}

func (r *Repository) GetEntityViewByID(ctx context.Context, entityID int64) ([]View, error) {
	return r.readView(ctx, r.t.PossibleView, entityID)
}

// GetEntityValuesView is GetEveryValue restricted to one entity.
func (r *Repository) GetEntityValuesView(ctx context.Context, entityID int64) ([]View, error) {
	return r.readView(ctx, r.t.ExistingView, entityID)
}

// readView reads view, filtered to entityID unless it is zero.
func (r *Repository) readView(ctx context.Context, view string, entityID int64) ([]View, error) {
	q := fmt.Sprintf("SELECT %s FROM %s", viewColumns, view)
	var args []any
	if entityID != 0 {
		q += fmt.Sprintf(" WHERE entity_id = %s", r.ph(1))
		args = append(args, entityID)
	}
	q += " " + viewOrder

	rows, err := queryAll(ctx, r.db, scanView, q, args...)
	if err != nil {
		return nil, r.wrapDB(err, "read "+view)
	}
	return rows, nil
}

// EntityViews returns one row per entity carrying only the entity and its type name.
func (r *Repository) EntityViews(ctx context.Context) ([]View, error) {
	types, err := r.ListEntityTypes(ctx)
	if err != nil {
		return nil, err
	}
	entities, err := r.ListEntities(ctx)
	if err != nil {
		return nil, err
	}

	names := make(map[int64]string, len(types))
	for _, et := range types {
		names[et.ID] = et.Name
	}
	views := make([]View, 0, len(entities))
	for _, e := range entities {
		views = append(views, View{
			EntityTypeID: e.EntityTypeID,
			EntityID:     e.ID,
			Entity:       e.Name,
			EntityType:   names[e.EntityTypeID],
			CreatedAt:    e.CreatedAt,
		})
	}
	return views, nil
}
