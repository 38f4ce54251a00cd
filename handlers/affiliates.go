// handlers/affiliate_routes.go
package handlers

import (
	"coaching-crm-system/middleware"
	"coaching-crm-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupAffiliateRoutes(app *fiber.App, affiliateService *services.AffiliateService) {
	// 🔓 Public: referral link redirect (still behind Gateway auth)
	app.Get("/r/:code", affiliateService.TrackClick)

	secured := app.Group("/", middleware.UserContextMiddleware())
	admin := secured.Group("/admin", middleware.RequireRole(services.RoleAdmin))

	admin.Post("/affiliates", affiliateService.CreateAffiliate)
	admin.Get("/affiliates", affiliateService.GetAffiliates)
	admin.Get("/affiliates/:id/stats", affiliateService.GetAffiliateStats)
	admin.Post("/conversions", affiliateService.RecordConversion)
}
