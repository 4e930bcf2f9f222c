package eav

import "time"

// EntityType is a category of entities sharing one set of attributes.
type EntityType struct {
	ID   int64  `json:"id"`
	Name string `json:"entityType"`
}

type Entity struct {
	ID           int64     `json:"id"`
	EntityTypeID int64     `json:"entityTypeId"`
	Name         string    `json:"entity"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Attribute declares a typed slot available to every entity of its type.
type Attribute struct {
	ID            int64     `json:"id"`
	EntityTypeID  int64     `json:"entityTypeId"`
	Name          string    `json:"attr"`
	ValueType     ValueType `json:"valueType"`
	AllowMultiple bool      `json:"allowMultiple"`
}

// Value is one stored value row. On the validated write path exactly one of the
// typed columns is non-nil, selected by the owning attribute's ValueType.
type Value struct {
	ID         int64      `json:"id"`
	EntityID   int64      `json:"entityId"`
	AttrID     int64      `json:"attrId"`
	ValueStr   *string    `json:"valueStr"`
	ValueInt   *int64     `json:"valueInt"`
	ValueFloat *float64   `json:"valueFloat"`
	ValueTime  *time.Time `json:"valueTime"`
	ValueBool  *bool      `json:"valueBool"`
}

// Typed returns the populated column as a TypedValue. It reports false unless
// exactly one column is set.
func (v Value) Typed() (TypedValue, bool) {
	var out []TypedValue
	if v.ValueStr != nil {
		out = append(out, Str(*v.ValueStr))
	}
	if v.ValueInt != nil {
		out = append(out, Int(*v.ValueInt))
	}
	if v.ValueFloat != nil {
		out = append(out, Float(*v.ValueFloat))
	}
	if v.ValueTime != nil {
		out = append(out, Time(*v.ValueTime))
	}
	if v.ValueBool != nil {
		out = append(out, Bool(*v.ValueBool))
	}
	if len(out) != 1 {
		return nil, false
	}
	return out[0], true
}

// View is one flattened row of entity, type, attribute slot and value.
// Attribute and value fields are nil when the row carries no slot or no value.
type View struct {
	EntityTypeID  int64      `json:"entityTypeId"`
	EntityID      int64      `json:"entityId"`
	Entity        string     `json:"entity"`
	EntityType    string     `json:"entityType"`
	CreatedAt     time.Time  `json:"createdAt"`
	AttrID        *int64     `json:"attrId,omitempty"`
	Attr          *string    `json:"attr,omitempty"`
	ValueType     *ValueType `json:"valueType,omitempty"`
	AllowMultiple *bool      `json:"allowMultiple,omitempty"`
	ValueID       *int64     `json:"valueId,omitempty"`
	ValueStr      *string    `json:"valueStr,omitempty"`
	ValueInt      *int64     `json:"valueInt,omitempty"`
	ValueFloat    *float64   `json:"valueFloat,omitempty"`
	ValueTime     *time.Time `json:"valueTime,omitempty"`
	ValueBool     *bool      `json:"valueBool,omitempty"`
}

// ViewEnv is a View as seen by filter expressions: every field under its JSON name,
// nil when absent. Fields are untyped so expressions compile before any row is seen.
type ViewEnv struct {
	EntityTypeID  any `expr:"entityTypeId"`
	EntityID      any `expr:"entityId"`
	Entity        any `expr:"entity"`
	EntityType    any `expr:"entityType"`
	CreatedAt     any `expr:"createdAt"`
	AttrID        any `expr:"attrId"`
	Attr          any `expr:"attr"`
	ValueType     any `expr:"valueType"`
	AllowMultiple any `expr:"allowMultiple"`
	ValueID       any `expr:"valueId"`
	ValueStr      any `expr:"valueStr"`
	ValueInt      any `expr:"valueInt"`
	ValueFloat    any `expr:"valueFloat"`
	ValueTime     any `expr:"valueTime"`
	ValueBool     any `expr:"valueBool"`
}

// Env returns the row as a filter environment.
func (v View) Env() ViewEnv {
	return ViewEnv{
		EntityTypeID:  v.EntityTypeID,
		EntityID:      v.EntityID,
		Entity:        v.Entity,
		EntityType:    v.EntityType,
		CreatedAt:     v.CreatedAt,
		AttrID:        deref(v.AttrID),
		Attr:          deref(v.Attr),
		ValueType:     derefValueType(v.ValueType),
		AllowMultiple: deref(v.AllowMultiple),
		ValueID:       deref(v.ValueID),
		ValueStr:      deref(v.ValueStr),
		ValueInt:      deref(v.ValueInt),
		ValueFloat:    deref(v.ValueFloat),
		ValueTime:     deref(v.ValueTime),
		ValueBool:     deref(v.ValueBool),
	}
}

func deref[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func derefValueType(p *ValueType) any {
	if p == nil {
		return nil
	}
	return string(*p)
}
