package http

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/tubesum/backend/internal/config"
	"github.com/tubesum/backend/internal/core/ports"
	"github.com/tubesum/backend/internal/infrastructure/logger"
	"github.com/tubesum/backend/internal/transport/http/dto"
	"github.com/tubesum/backend/internal/transport/http/handlers"
	httpmw "github.com/tubesum/backend/internal/transport/http/middleware"
)

type RouterConfig struct {
	TaskService ports.TaskService
	Logger      *logger.Logger
	Config      *config.Config
}

func SetupRoutes(app *fiber.App, cfg RouterConfig) {
	a2aHandler := handlers.NewA2AHandler(cfg.TaskService, cfg.Logger)
	cardHandler := handlers.NewAgentCardHandler(dto.NewAgentCard(cfg.Config))
	taskHandler := handlers.NewTaskHandler(cfg.TaskService, cfg.Logger)
	streamHandler := handlers.NewStreamHandler(cfg.TaskService, cfg.Logger)

	// Agent discovery stays public
	app.Get("/.well-known/agent.json", cardHandler.GetCard)

	// A2A JSON-RPC endpoint
	app.Post("/", httpmw.APIKeyAuth(cfg.Config), a2aHandler.Handle)

	// Task event streams
	app.Use("/ws", httpmw.APIKeyAuth(cfg.Config), func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	})
	app.Get("/ws/tasks", websocket.New(streamHandler.Send))
	app.Get("/ws/tasks/:id", websocket.New(streamHandler.Resubscribe))

	// API v1 routes
	api := app.Group("/api/v1", httpmw.APIKeyAuth(cfg.Config))
	tasks := api.Group("/tasks")
	tasks.Get("/:id", taskHandler.GetTask)
}
