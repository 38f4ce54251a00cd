package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"coaching-crm-system/handlers"
	"coaching-crm-system/middleware"
	"coaching-crm-system/models"
	"coaching-crm-system/services"
	"coaching-crm-system/utils"
	"coaching-crm-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 10 * 1024 * 1024, // 10MB
	})

	// 🔐❗ GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	// Load allowed origins from environment variable
	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-User-ID, X-User-Roles, X-Service-Token",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	if err := utils.InitR2(); err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}
	if !utils.R2Enabled() {
		log.Println("⚠️  R2_BUCKET_NAME not set — CSV exports will be written to the local exports dir")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.QuizQuestion{},
		&models.QuizSession{},
		&models.QuizAnswer{},
		&models.Affiliate{},
		&models.AffiliateClick{},
		&models.AffiliateConversion{},
		&models.Appointment{},
		&models.Closer{},
		&models.Note{},
		&models.Task{},
		&models.AuditLog{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	if err := utils.EnsureExportDir(); err != nil {
		log.Fatal("failed to ensure export dir:", err)
	}

	leadService := services.NewLeadService(db)
	commissionService := services.NewCommissionService(db)
	timelineService := services.NewTimelineService(db)
	affiliateService := services.NewAffiliateService(db, leadService)
	closerService := services.NewCloserService(db)

	bookingSyncClient := workers.NewBookingSyncClient(db)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go workers.PollBookings(ctx, bookingSyncClient, 60*time.Second)

	commissionService.StartReleaseScheduler()

	// ✅ Setup routes — enforced Gateway auth, user context on secured groups
	handlers.SetupLeadRoutes(app, leadService, timelineService)
	handlers.SetupAffiliateRoutes(app, affiliateService)
	handlers.SetupCommissionRoutes(app, commissionService)
	handlers.SetupCloserRoutes(app, closerService)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Booking sync polling running (every 60s)")
	log.Println("✅ Commission release scheduler running (hourly)")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}
