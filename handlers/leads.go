// handlers/lead_routes.go
package handlers

import (
	"coaching-crm-system/middleware"
	"coaching-crm-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupLeadRoutes(app *fiber.App, leadService *services.LeadService, timelineService *services.TimelineService) {
	// 🔐 All lead data requires user context; listing and export are admin-only
	secured := app.Group("/", middleware.UserContextMiddleware())

	admin := secured.Group("/", middleware.RequireRole(services.RoleAdmin))
	admin.Get("/leads", leadService.GetLeadsEndpoint)
	admin.Get("/leads/export", leadService.ExportLeadsEndpoint)

	// Timeline is visible to admins and to the closer linked to the lead;
	// the per-lead check lives in the service.
	secured.Get("/sessions/:id/timeline", timelineService.GetTimelineEndpoint)
}
