package engine

import "github.com/gofiber/fiber/v2"

// RegisterRoutes mounts the EAV routes on app. Everything but /health and /connect
// needs an open session.
func RegisterRoutes(app *fiber.App, h *Handler) {
	app.Use(MapErrors())

	app.Get("/health", h.Health)
	app.Post("/connect", h.Connect)

	need := h.RequireSession()

	app.Get("/view/all", need, h.ViewAll)
	app.Get("/view/values", need, h.ViewValues)
	app.Get("/view/entities", need, h.ViewEntities)
	app.Get("/view/entity/:id", need, h.ViewEntity)

	app.Get("/entity-types", need, h.ListEntityTypes)
	app.Get("/entity-type/:id", need, h.GetEntityType)
	app.Post("/entity-type", need, h.CreateEntityType)
	app.Delete("/entity-type/:id", need, h.DeleteEntityType)

	app.Get("/entities", need, h.ListEntities)
	app.Get("/entities/:type_id", need, h.ListEntitiesByType)
	app.Delete("/entities", need, h.DeleteEntities)
	app.Get("/entity/:id", need, h.GetEntity)
	app.Post("/entity", need, h.CreateEntity)
	app.Put("/entity", need, h.UpdateEntity)
	app.Delete("/entity/:id", need, h.DeleteEntity)

	app.Get("/attributes", need, h.ListAttributes)
	app.Get("/attributes/:entity_id", need, h.ListAttributesByEntity)
	app.Post("/attribute", need, h.CreateAttribute)
	app.Put("/attribute", need, h.UpdateAttribute)
	app.Delete("/attribute/:id", need, h.DeleteAttribute)

	app.Get("/values/:entity_id", need, h.GetValues)
	app.Post("/value", need, h.CreateValue)
	app.Post("/value/typed", need, h.CreateTypedValue)
	app.Put("/value", need, h.UpdateValue)
	app.Delete("/value/:id", need, h.DeleteValue)
}
