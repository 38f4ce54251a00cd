// handlers/closer_routes.go
package handlers

import (
	"coaching-crm-system/middleware"
	"coaching-crm-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupCloserRoutes(app *fiber.App, closerService *services.CloserService) {
	secured := app.Group("/", middleware.UserContextMiddleware())

	// Closer CRM surface
	secured.Get("/appointments", closerService.GetMyAppointments)
	secured.Patch("/appointments/:id/outcome", closerService.UpdateAppointmentOutcome)
	secured.Post("/notes", closerService.CreateNote)
	secured.Get("/notes", closerService.GetNotes)
	secured.Post("/tasks", closerService.CreateTask)
	secured.Get("/tasks", closerService.GetMyTasks)
	secured.Patch("/tasks/:id/status", closerService.UpdateTaskStatus)

	// 🔒 Admin-only roster management
	admin := secured.Group("/admin", middleware.RequireRole(services.RoleAdmin))
	admin.Post("/closers", closerService.CreateCloser)
	admin.Get("/closers", closerService.GetClosers)
}
