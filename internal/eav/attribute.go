package eav

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"eav-backend/internal/store"
)

func (r *Repository) ListAttributes(ctx context.Context) ([]Attribute, error) {
	q := fmt.Sprintf("SELECT %s FROM %s ORDER BY id", attributeColumns, r.t.Attribute)
	attrs, err := queryAll(ctx, r.db, scanAttribute, q)
	if err != nil {
		return nil, r.wrapDB(err, "list attributes")
	}
	return attrs, nil
}

func (r *Repository) ListAttributesByType(ctx context.Context, et EntityType) ([]Attribute, error) {
	return r.attributesOfType(ctx, et.ID)
}

// ListAttributesByEntity returns the attribute slots of the entity's type.
func (r *Repository) ListAttributesByEntity(ctx context.Context, e Entity) ([]Attribute, error) {
	return r.attributesOfType(ctx, e.EntityTypeID)
}

func (r *Repository) attributesOfType(ctx context.Context, entityTypeID int64) ([]Attribute, error) {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE entity_type_id = %s ORDER BY id", attributeColumns, r.t.Attribute, r.ph(1))
	attrs, err := queryAll(ctx, r.db, scanAttribute, q, entityTypeID)
	if err != nil {
		return nil, r.wrapDB(err, "list attributes by type")
	}
	return attrs, nil
}

// GetAttributeByID returns nil when no attribute has the id.
func (r *Repository) GetAttributeByID(ctx context.Context, id int64) (*Attribute, error) {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE id = %s", attributeColumns, r.t.Attribute, r.ph(1))
	a, err := queryOne(ctx, r.db, scanAttribute, q, id)
	if err != nil {
		return nil, r.wrapDB(err, "get attribute")
	}
	return a, nil
}

func (r *Repository) CreateAttribute(ctx context.Context, entityTypeID int64, name string, vt ValueType, allowMultiple bool) (*Attribute, error) {
	if entityTypeID == 0 {
		return nil, invalidArgument("entity type id is required")
	}
	if strings.TrimSpace(name) == "" {
		return nil, invalidArgument("attribute name is empty")
	}
	if !vt.Valid() {
		return nil, invalidArgument("unknown value type %q", vt)
	}

	q := fmt.Sprintf("INSERT INTO %s (entity_type_id, attr, value_type, allow_multiple) VALUES (%s, %s, %s, %s) RETURNING id",
		r.t.Attribute, r.ph(1), r.ph(2), r.ph(3), r.ph(4))
	id, err := store.InsertReturningID(ctx, r.db, q, entityTypeID, name, string(vt), allowMultiple)
	if err != nil {
		return nil, r.wrapDB(err, "create attribute")
	}

	a, err := r.GetAttributeByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, creationFailed("attribute")
	}
	return a, nil
}

// UpdateAttribute changes the value type and multiplicity. The name is immutable.
func (r *Repository) UpdateAttribute(ctx context.Context, a Attribute) (*Attribute, error) {
	if a.ID == 0 {
		return nil, invalidArgument("attribute id is required")
	}
	if !a.ValueType.Valid() {
		return nil, invalidArgument("unknown value type %q", a.ValueType)
	}
	q := fmt.Sprintf("UPDATE %s SET value_type = %s, allow_multiple = %s WHERE id = %s",
		r.t.Attribute, r.ph(1), r.ph(2), r.ph(3))
	if _, err := store.Exec(ctx, r.db, q, string(a.ValueType), a.AllowMultiple, a.ID); err != nil {
		return nil, r.wrapDB(err, "update attribute")
	}

	updated, err := r.GetAttributeByID(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, notFound("attribute", a.ID)
	}
	return updated, nil
}

// DeleteAttribute removes the attribute's values and then the attribute in one transaction.
func (r *Repository) DeleteAttribute(ctx context.Context, a Attribute) (bool, error) {
	return r.DeleteAttributes(ctx, []Attribute{a})
}

// DeleteAttributes is the batch form of DeleteAttribute. An empty set is a no-op success.
func (r *Repository) DeleteAttributes(ctx context.Context, attrs []Attribute) (bool, error) {
	if len(attrs) == 0 {
		return true, nil
	}
	ids := idsOf(attrs, func(a Attribute) int64 { return a.ID })

	var removed int64
	err := store.InTx(ctx, r.db, func(tx store.Querier) error {
		values, err := r.deleteWhereIn(ctx, tx, r.t.Value, "attr_id", ids)
		if err != nil {
			return r.wrapDB(err, "delete attribute values")
		}
		removed, err = r.deleteWhereIn(ctx, tx, r.t.Attribute, "id", ids)
		if err != nil {
			return r.wrapDB(err, "delete attributes")
		}
		r.log.Debug("deleted attributes",
			zap.Int64s("ids", ids), zap.Int64("values", values), zap.Int64("attributes", removed))
		return nil
	})
	if err != nil {
		return false, err
	}
	return removed > 0, nil
}
