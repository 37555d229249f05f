package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"careview/internal/config"
	"careview/internal/middleware"
	"careview/internal/monitoring"
	"careview/internal/oauth"
	"careview/internal/validator"
	"careview/internal/web"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/csrf"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/gofiber/fiber/v2/utils"
)

func main() {
	cfg := config.NewConfig()

	telemetry, err := monitoring.NewOpenTelemetry(cfg.Telemetry)
	if err != nil {
		log.Fatalf("Failed to initialize telemetry: %v", err)
	}
	logger := telemetry.Logger()

	// Session store: in-memory, one session per browser session. All
	// workflow state lives here and is lost when the session ends.
	store := session.New(session.Config{
		KeyLookup:      "cookie:session_id",
		CookiePath:     "/",
		CookieSecure:   cfg.Server.Environment == "production",
		CookieHTTPOnly: true,
		CookieSameSite: "Lax",
		Expiration:     24 * time.Hour,
	})

	flow := oauth.NewFlow(cfg.OAuth)
	validate := validator.New()
	handler := web.NewHandler(cfg, store, flow, telemetry, validate)

	// Set up Fiber app
	app := fiber.New(fiber.Config{
		Views:        web.NewEngine(),
		ViewsLayout:  "layouts/main",
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	})

	app.Use(middleware.Logger(logger))

	// CSRF Protection
	app.Use(csrf.New(csrf.Config{
		KeyLookup:      "form:csrf_token",
		CookieName:     "csrf_",
		CookieSameSite: "Lax",
		CookieSecure:   cfg.Server.Environment == "production",
		Expiration:     1 * time.Hour,
		KeyGenerator:   utils.UUIDv4,
		ContextKey:     "token", // This makes the token available in c.Locals("token")
	}))

	// Rate limiting for authorization endpoints
	authLimiter := limiter.New(limiter.Config{
		Max:        10,               // 10 attempts
		Expiration: 15 * time.Minute, // per 15 minutes
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP() // Limit by IP address
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many authorization attempts. Please try again later.",
			})
		},
	})

	// Connect and authorization routes
	app.Get("/", handler.ShowConnectPage)
	app.Get("/auth/connect/:provider", authLimiter, handler.InitiateAuthorization)
	app.Get("/auth/callback", handler.CompleteAuthorization)
	app.Post("/auth/logout", handler.Logout)

	// Pages requiring a completed authorization
	authorized := middleware.RequireAuthorization(store)
	app.Get("/search", authorized, handler.ShowSearchPage)
	app.Post("/search", authorized, handler.ShowSearchPage)
	app.Get("/observations", authorized, handler.ShowObservationsPage)
	app.Post("/observations", authorized, handler.ShowObservationsPage)
	app.Get("/calculators/plaquenil", authorized, handler.ShowPlaquenilPage)
	app.Post("/calculators/plaquenil", authorized, handler.ShowPlaquenilPage)
	app.Get("/calculators/creatinine-clearance", authorized, handler.ShowCreatinineClearancePage)
	app.Post("/calculators/creatinine-clearance", authorized, handler.ShowCreatinineClearancePage)

	go func() {
		addr := cfg.Server.Host + ":" + cfg.Server.Port
		logger.Info("Starting server", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Panic(err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down")
	if err := app.Shutdown(); err != nil {
		logger.Error("Server shutdown failed", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := telemetry.Shutdown(ctx); err != nil {
		logger.Error("Telemetry shutdown failed", "error", err)
	}
}
