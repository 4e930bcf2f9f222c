package engine

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"eav-backend/internal/eav"
	"eav-backend/internal/logger"
	"eav-backend/internal/session"
)

const sessionKey = "eav.session"

type Handler struct {
	sessions *session.Manager
	filter   *ViewFilter
	log      *zap.Logger
}

func NewHandler(sessions *session.Manager, log *zap.Logger) *Handler {
	return &Handler{sessions: sessions, filter: NewViewFilter(), log: logger.OrNop(log)}
}

// RequireSession rejects the request with NOT_CONNECTED until /connect succeeded
// and pins the current session for the rest of the request.
func (h *Handler) RequireSession() fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := h.sessions.Current()
		if err != nil {
			return err
		}
		c.Locals(sessionKey, s)
		return c.Next()
	}
}

func repo(c *fiber.Ctx) *eav.Repository {
	return c.Locals(sessionKey).(*session.Session).Repo
}

func paramID(c *fiber.Ctx, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, InvalidArgumentError(fmt.Sprintf("%s must be a positive integer", name))
	}
	return id, nil
}

// parseBody decodes the request body by its Content-Type. Bodies Fiber cannot
// decode, including those with no Content-Type, are rejected as invalid input.
func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return InvalidArgumentError("Invalid JSON body")
	}
	return nil
}

func deleted(c *fiber.Ctx, ok bool) error {
	return c.JSON(fiber.Map{"deleted": ok})
}

// Health handles GET /health
func (h *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok", "connected": h.sessions.Connected()})
}

// Connect handles POST /connect
func (h *Handler) Connect(c *fiber.Ctx) error {
	var t session.Target
	if err := parseBody(c, &t); err != nil {
		return err
	}
	if _, err := h.sessions.Connect(c.UserContext(), t); err != nil {
		return err
	}
	return c.SendString("OK")
}

// --- Views ---

func (h *Handler) respondViews(c *fiber.Ctx, rows []eav.View, err error) error {
	if err != nil {
		return err
	}
	rows, err = h.filter.Apply(c.Query("filter"), rows)
	if err != nil {
		return err
	}
	if rows == nil {
		rows = []eav.View{}
	}
	return c.JSON(rows)
}

// ViewAll handles GET /view/all
func (h *Handler) ViewAll(c *fiber.Ctx) error {
	rows, err := repo(c).GetEverything(c.UserContext())
	return h.respondViews(c, rows, err)
}

// ViewValues handles GET /view/values
func (h *Handler) ViewValues(c *fiber.Ctx) error {
	rows, err := repo(c).GetEveryValue(c.UserContext())
	return h.respondViews(c, rows, err)
}

// ViewEntities handles GET /view/entities
func (h *Handler) ViewEntities(c *fiber.Ctx) error {
	rows, err := repo(c).EntityViews(c.UserContext())
	return h.respondViews(c, rows, err)
}

// ViewEntity handles GET /view/entity/:id
func (h *Handler) ViewEntity(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	rows, err := repo(c).GetEntityViewByID(c.UserContext(), id)
	return h.respondViews(c, rows, err)
}

// --- Entity types ---

// ListEntityTypes handles GET /entity-types
func (h *Handler) ListEntityTypes(c *fiber.Ctx) error {
	types, err := repo(c).ListEntityTypes(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(nonNil(types))
}

// GetEntityType handles GET /entity-type/:id
func (h *Handler) GetEntityType(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	et, err := repo(c).GetEntityTypeByID(c.UserContext(), id)
	if err != nil {
		return err
	}
	if et == nil {
		return NotFoundError("entity type", id)
	}
	return c.JSON(et)
}

// CreateEntityType handles POST /entity-type
func (h *Handler) CreateEntityType(c *fiber.Ctx) error {
	var body struct {
		EntityType string `json:"entityType"`
	}
	if err := parseBody(c, &body); err != nil {
		return err
	}
	et, err := repo(c).CreateEntityType(c.UserContext(), body.EntityType)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(et)
}

// DeleteEntityType handles DELETE /entity-type/:id
func (h *Handler) DeleteEntityType(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	ok, err := repo(c).DeleteEntityType(c.UserContext(), eav.EntityType{ID: id})
	if err != nil {
		return err
	}
	return deleted(c, ok)
}

// --- Entities ---

// ListEntities handles GET /entities
func (h *Handler) ListEntities(c *fiber.Ctx) error {
	entities, err := repo(c).ListEntities(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(nonNil(entities))
}

// ListEntitiesByType handles GET /entities/:type_id
func (h *Handler) ListEntitiesByType(c *fiber.Ctx) error {
	id, err := paramID(c, "type_id")
	if err != nil {
		return err
	}
	r := repo(c)
	et, err := r.GetEntityTypeByID(c.UserContext(), id)
	if err != nil {
		return err
	}
	if et == nil {
		return NotFoundError("entity type", id)
	}
	entities, err := r.ListEntitiesByType(c.UserContext(), *et)
	if err != nil {
		return err
	}
	return c.JSON(nonNil(entities))
}

// GetEntity handles GET /entity/:id
func (h *Handler) GetEntity(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	e, err := repo(c).GetEntityByID(c.UserContext(), id)
	if err != nil {
		return err
	}
	if e == nil {
		return NotFoundError("entity", id)
	}
	return c.JSON(e)
}

// CreateEntity handles POST /entity
func (h *Handler) CreateEntity(c *fiber.Ctx) error {
	var body struct {
		EntityType string `json:"entityType"`
		Entity     string `json:"entity"`
	}
	if err := parseBody(c, &body); err != nil {
		return err
	}
	e, err := repo(c).CreateEntity(c.UserContext(), body.EntityType, body.Entity)
	if err != nil {
		return err
	}
	return c.JSON(e)
}

// UpdateEntity handles PUT /entity
func (h *Handler) UpdateEntity(c *fiber.Ctx) error {
	var e eav.Entity
	if err := parseBody(c, &e); err != nil {
		return err
	}
	updated, err := repo(c).UpdateEntity(c.UserContext(), e)
	if err != nil {
		return err
	}
	return c.JSON(updated)
}

// DeleteEntity handles DELETE /entity/:id
func (h *Handler) DeleteEntity(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	ok, err := repo(c).DeleteEntity(c.UserContext(), eav.Entity{ID: id})
	if err != nil {
		return err
	}
	return deleted(c, ok)
}

// DeleteEntities handles DELETE /entities
func (h *Handler) DeleteEntities(c *fiber.Ctx) error {
	var body struct {
		IDs []int64 `json:"ids"`
	}
	if err := parseBody(c, &body); err != nil {
		return err
	}
	entities := make([]eav.Entity, len(body.IDs))
	for i, id := range body.IDs {
		entities[i] = eav.Entity{ID: id}
	}
	ok, err := repo(c).DeleteEntities(c.UserContext(), entities)
	if err != nil {
		return err
	}
	return deleted(c, ok)
}

// --- Attributes ---

// ListAttributes handles GET /attributes
func (h *Handler) ListAttributes(c *fiber.Ctx) error {
	attrs, err := repo(c).ListAttributes(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(nonNil(attrs))
}

// ListAttributesByEntity handles GET /attributes/:entity_id
func (h *Handler) ListAttributesByEntity(c *fiber.Ctx) error {
	id, err := paramID(c, "entity_id")
	if err != nil {
		return err
	}
	r := repo(c)
	e, err := r.GetEntityByID(c.UserContext(), id)
	if err != nil {
		return err
	}
	if e == nil {
		return NotFoundError("entity", id)
	}
	attrs, err := r.ListAttributesByEntity(c.UserContext(), *e)
	if err != nil {
		return err
	}
	return c.JSON(nonNil(attrs))
}

// CreateAttribute handles POST /attribute. The owning type is given directly or
// through one of its entities.
func (h *Handler) CreateAttribute(c *fiber.Ctx) error {
	var body struct {
		EntityTypeID  int64         `json:"entityTypeId"`
		EntityID      int64         `json:"entityId"`
		Attr          string        `json:"attr"`
		ValueType     eav.ValueType `json:"valueType"`
		AllowMultiple bool          `json:"allowMultiple"`
	}
	if err := parseBody(c, &body); err != nil {
		return err
	}

	r := repo(c)
	typeID := body.EntityTypeID
	if typeID == 0 {
		if body.EntityID == 0 {
			return InvalidArgumentError("entityTypeId or entityId is required")
		}
		e, err := r.GetEntityByID(c.UserContext(), body.EntityID)
		if err != nil {
			return err
		}
		if e == nil {
			return NotFoundError("entity", body.EntityID)
		}
		typeID = e.EntityTypeID
	}

	a, err := r.CreateAttribute(c.UserContext(), typeID, body.Attr, body.ValueType, body.AllowMultiple)
	if err != nil {
		return err
	}
	return c.JSON(a)
}

// UpdateAttribute handles PUT /attribute
func (h *Handler) UpdateAttribute(c *fiber.Ctx) error {
	var a eav.Attribute
	if err := parseBody(c, &a); err != nil {
		return err
	}
	updated, err := repo(c).UpdateAttribute(c.UserContext(), a)
	if err != nil {
		return err
	}
	return c.JSON(updated)
}

// DeleteAttribute handles DELETE /attribute/:id
func (h *Handler) DeleteAttribute(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	ok, err := repo(c).DeleteAttribute(c.UserContext(), eav.Attribute{ID: id})
	if err != nil {
		return err
	}
	return deleted(c, ok)
}

// --- Values ---

// GetValues handles GET /values/:entity_id
func (h *Handler) GetValues(c *fiber.Ctx) error {
	id, err := paramID(c, "entity_id")
	if err != nil {
		return err
	}
	values, err := repo(c).GetValues(c.UserContext(), eav.Entity{ID: id})
	if err != nil {
		return err
	}
	return c.JSON(nonNil(values))
}

// CreateValue handles POST /value. The typed columns are stored as sent.
func (h *Handler) CreateValue(c *fiber.Ctx) error {
	var v eav.Value
	if err := parseBody(c, &v); err != nil {
		return err
	}
	if v.EntityID == 0 || v.AttrID == 0 {
		return InvalidArgumentError("entityId and attrId are required")
	}
	created, err := repo(c).UnsafeCreateValue(c.UserContext(), v)
	if err != nil {
		return err
	}
	return c.JSON(created)
}

// CreateTypedValue handles POST /value/typed. The value must have the JSON shape of
// the attribute's declared type.
func (h *Handler) CreateTypedValue(c *fiber.Ctx) error {
	var body struct {
		EntityID int64           `json:"entityId"`
		AttrID   int64           `json:"attrId"`
		Value    json.RawMessage `json:"value"`
	}
	if err := parseBody(c, &body); err != nil {
		return err
	}

	ctx := c.UserContext()
	r := repo(c)
	e, err := r.GetEntityByID(ctx, body.EntityID)
	if err != nil {
		return err
	}
	if e == nil {
		return NotFoundError("entity", body.EntityID)
	}
	a, err := r.GetAttributeByID(ctx, body.AttrID)
	if err != nil {
		return err
	}
	if a == nil {
		return NotFoundError("attribute", body.AttrID)
	}

	tv, err := eav.DecodeTypedValue(a.ValueType, body.Value)
	if err != nil {
		return err
	}
	created, err := r.CreateValue(ctx, *e, *a, tv)
	if err != nil {
		return err
	}
	return c.JSON(created)
}

// UpdateValue handles PUT /value
func (h *Handler) UpdateValue(c *fiber.Ctx) error {
	var v eav.Value
	if err := parseBody(c, &v); err != nil {
		return err
	}
	updated, err := repo(c).UpdateValue(c.UserContext(), v)
	if err != nil {
		return err
	}
	return c.JSON(updated)
}

// DeleteValue handles DELETE /value/:id
func (h *Handler) DeleteValue(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	ok, err := repo(c).DeleteValue(c.UserContext(), eav.Value{ID: id})
	if err != nil {
		return err
	}
	return deleted(c, ok)
}

// nonNil keeps empty lists encoding as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
