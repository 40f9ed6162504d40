package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/calderadev/doc-convert/internal/config"
	"github.com/calderadev/doc-convert/internal/database"
	"github.com/calderadev/doc-convert/internal/handlers"
	"github.com/calderadev/doc-convert/internal/services"
)

func main() {
	// Load .env file if it exists
	godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// Connect to database
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Run migrations
	if err := database.RunMigrations(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize the recognition backend
	recognizer, err := services.NewTesseractRecognizer(cfg.OCRLanguage)
	if err != nil {
		log.Fatalf("Failed to initialize OCR: %v", err)
	}
	defer recognizer.Close()

	// Wire the conversion pipeline
	orchestrator := services.NewOrchestrator(
		db,
		cfg.FreeLimit,
		services.NewWorkspaceManager(cfg.WorkspaceRoot),
		recognizer,
		services.NewAssembler(),
		services.NewOfficeConverter(cfg.SofficePath, cfg.ConvertTimeout),
		cfg.MaxUploadBytes,
	)

	// Initialize Fiber app. The body limit sits well above the upload
	// ceiling so the validator, not the server, is the authority on
	// oversize files; the error handler names the ceiling for the
	// bodies so large they are cut off before any handler runs.
	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.NewErrorHandler(cfg.MaxUploadBytes),
		BodyLimit:    cfg.BodyLimit(),
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowedOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, OPTIONS",
	}))

	// Create handler with dependencies
	h := handlers.New(cfg, orchestrator)

	// Health checks
	app.Get("/health", handlers.Health)
	app.Get("/status", handlers.Health)

	// Conversion routes
	app.Post("/ocr/image-to-pdf", h.ImageToPDF)
	app.Post("/convert/word", h.WordToPDF)
	app.Post("/convert/excel", h.ExcelToPDF)

	// Shut down cleanly on SIGINT/SIGTERM so in-flight conversions can
	// finish and their workspaces get removed.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down...")
		if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
			log.Printf("Warning: Forced shutdown: %v", err)
		}
	}()

	log.Printf("Server starting on port %s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}
