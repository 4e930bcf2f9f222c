package store

import (
	"context"
	"fmt"

	"eav-backend/internal/config"
)

// Tables names the EAV relations. All names are interpolated into SQL,
// so Validate must pass before any of them is used.
type Tables struct {
	EntityType   string
	Entity       string
	Attribute    string
	Value        string
	PossibleView string
	ExistingView string
}

// DefaultTables returns the stock table and view names.
func DefaultTables() Tables {
	return Tables{
		EntityType:   "eav_entity_type",
		Entity:       "eav_entity",
		Attribute:    "eav_attribute",
		Value:        "eav_value",
		PossibleView: "all_possible_eav_data",
		ExistingView: "all_existing_eav_data",
	}
}

// TablesFromConfig overlays the configured names on the defaults.
func TablesFromConfig(c config.SchemaConfig) Tables {
	t := DefaultTables()
	override := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	override(&t.EntityType, c.EntityTypeTable)
	override(&t.Entity, c.EntityTable)
	override(&t.Attribute, c.AttributeTable)
	override(&t.Value, c.ValueTable)
	override(&t.PossibleView, c.PossibleView)
	override(&t.ExistingView, c.ExistingView)
	return t
}

// Validate checks that every name is a plain SQL identifier.
func (t Tables) Validate() error {
	names := []struct{ key, name string }{
		{"entity_type_table", t.EntityType},
		{"entity_table", t.Entity},
		{"attribute_table", t.Attribute},
		{"value_table", t.Value},
		{"possible_view", t.PossibleView},
		{"existing_view", t.ExistingView},
	}
	for _, n := range names {
		if !isValidIdentifier(n.name) {
			return fmt.Errorf("invalid %s name: %q", n.key, n.name)
		}
	}
	return nil
}

// Bootstrap creates the EAV tables and views if they do not exist yet.
func (s *Store) Bootstrap(ctx context.Context, t Tables) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if _, err := s.DB.ExecContext(ctx, s.Dialect.SchemaSQL(t)); err != nil {
		return fmt.Errorf("bootstrap eav schema: %w", err)
	}
	return nil
}

// viewSelect returns the join backing the flattened views. The possible flavor keeps
// every attribute slot of the entity's type, valued or not; the existing flavor keeps
// only slots with a stored value. Multi-valued slots yield one row per value.
// Entities whose type row is gone still appear, with an empty type name.
func viewSelect(t Tables, existing bool) string {
	attrJoin, valueJoin := "LEFT JOIN", "LEFT JOIN"
	if existing {
		attrJoin, valueJoin = "JOIN", "JOIN"
	}
	return fmt.Sprintf(`SELECT
    e.entity_type_id AS entity_type_id,
    e.id AS entity_id,
    e.entity AS entity,
    COALESCE(et.entity_type, '') AS entity_type,
    e.created_at AS created_at,
    a.id AS attr_id,
    a.attr AS attr,
    a.value_type AS value_type,
    a.allow_multiple AS allow_multiple,
    v.id AS value_id,
    v.value_str AS value_str,
    v.value_int AS value_int,
    v.value_float AS value_float,
    v.value_time AS value_time,
    v.value_bool AS value_bool
FROM %[2]s e
LEFT JOIN %[1]s et ON et.id = e.entity_type_id
%[5]s %[3]s a ON a.entity_type_id = e.entity_type_id
%[6]s %[4]s v ON v.entity_id = e.id AND v.attr_id = a.id`,
		t.EntityType, t.Entity, t.Attribute, t.Value, attrJoin, valueJoin)
}

// isValidIdentifier checks that a table or view name contains only safe characters.
func isValidIdentifier(name string) bool {
	if len(name) == 0 || len(name) > 63 {
		return false
	}
	for i, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c == '_':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
