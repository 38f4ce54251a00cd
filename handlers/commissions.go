// handlers/commission_routes.go
package handlers

import (
	"coaching-crm-system/middleware"
	"coaching-crm-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupCommissionRoutes(app *fiber.App, commissionService *services.CommissionService) {
	secured := app.Group("/", middleware.UserContextMiddleware())
	admin := secured.Group("/admin", middleware.RequireRole(services.RoleAdmin))

	admin.Get("/commissions/status", commissionService.GetStatusEndpoint)
	admin.Post("/commissions/release", commissionService.ReleaseEndpoint)
	admin.Post("/commissions/:id/force-release", commissionService.ForceReleaseEndpoint)
}
