package server

import (
	"errors"
	"log"

	"ai-tutoring-engine/internal/bootstrap"
	"ai-tutoring-engine/internal/config"
	"ai-tutoring-engine/internal/pkg/serverutils"
	"ai-tutoring-engine/internal/service"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

type Server struct {
	app       *fiber.App
	cfg       *config.Config
	container *bootstrap.Container
}

func New(cfg *config.Config, container *bootstrap.Container) *Server {
	app := fiber.New(fiber.Config{
		BodyLimit: 1 * 1024 * 1024, // 1MB
	})

	// Middleware
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.App.CorsAllowedOrigins,
		AllowCredentials: true,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST, PUT, OPTIONS",
		ExposeHeaders:    "Content-Length, Content-Type",
	}))

	// OpenTelemetry tracing middleware (traces all HTTP requests)
	app.Use(otelfiber.Middleware())

	app.Use(serverutils.ErrorHandlerMiddleware(tutorErrorStatus))

	registerRoutes(app, container)

	return &Server{
		app:       app,
		cfg:       cfg,
		container: container,
	}
}

func (s *Server) GetApp() *fiber.App {
	return s.app
}

func (s *Server) Run() error {
	log.Printf("Tutor gateway is running on http://localhost:%s", s.cfg.App.Port)
	return s.app.Listen(":" + s.cfg.App.Port)
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func registerRoutes(app *fiber.App, c *bootstrap.Container) {
	api := app.Group("/api")
	c.TutorController.RegisterRoutes(api)

	c.TutorStreamHandler.RegisterRoutes(app)
}

func tutorErrorStatus(err error) (int, bool) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound), errors.Is(err, service.ErrTemplateNotFound):
		return fiber.StatusNotFound, true
	case errors.Is(err, service.ErrNoActiveSession):
		return fiber.StatusConflict, true
	}
	return 0, false
}
