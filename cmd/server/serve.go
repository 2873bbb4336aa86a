package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/tubesum/backend/internal/config"
	"github.com/tubesum/backend/internal/core/ports"
	"github.com/tubesum/backend/internal/core/services"
	"github.com/tubesum/backend/internal/infrastructure/logger"
	"github.com/tubesum/backend/internal/infrastructure/mcp"
	"github.com/tubesum/backend/internal/infrastructure/memory"
	"github.com/tubesum/backend/internal/infrastructure/remote"
	transporthttp "github.com/tubesum/backend/internal/transport/http"
)

const requestIDHeader = "X-Request-ID"

type ctxKey string

const requestIDKey ctxKey = "request_id"

func serve(cfg *config.Config) error {
	log, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()
	log = log.Named(string(cfg.Role))

	registry := mcp.NewRegistry(mcp.RegistryConfig{
		Dialer: mcp.NewDialer(mcp.DialerConfig{
			ClientName:    "tubesum-" + string(cfg.Role),
			ClientVersion: cfg.Agent.Version,
			HTTPTransport: cfg.Tools.HTTPTransport,
			AuthToken:     cfg.Tools.AuthToken,
			Logger:        log.Named("mcp"),
		}),
		Size:   cfg.Tools.PoolSize,
		Logger: log.Named("pool"),
	})

	tools := services.NewToolService(services.ToolServiceConfig{
		Pool:              registry,
		SummarizeEndpoint: cfg.Tools.SummarizeEndpoint,
		CombineEndpoint:   cfg.Tools.CombineEndpoint,
		ChannelEndpoint:   cfg.Tools.ChannelEndpoint,
		PlaylistEndpoint:  cfg.Tools.PlaylistEndpoint,
		CallTimeout:       cfg.Tools.CallTimeout,
		Logger:            log,
	})

	taskService := services.NewTaskService(services.TaskServiceConfig{
		Repo:             memory.NewTaskRepository(),
		Agent:            newAgent(cfg, tools, log),
		SniffFailureText: cfg.Task.SniffFailureText,
		Logger:           log,
	})

	app := fiber.New(fiber.Config{
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		IdleTimeout:           cfg.Server.IdleTimeout,
		ErrorHandler:          globalErrorHandler(log),
		DisableStartupMessage: true,
	})

	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.Auth.AllowedOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-API-Key, X-Request-ID",
		AllowMethods: "GET, POST, HEAD, OPTIONS",
	}))

	app.Use(func(c *fiber.Ctx) error {
		reqID := c.Get(requestIDHeader)
		if reqID == "" {
			reqID = uuid.New().String()
		}
		c.Locals(string(requestIDKey), reqID)
		c.SetUserContext(context.WithValue(c.UserContext(), requestIDKey, reqID))
		c.Set(requestIDHeader, reqID)
		return c.Next()
	})

	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		routePath := ""
		if c.Route() != nil {
			routePath = c.Route().Path
		}
		log.Infow("http_access",
			"method", c.Method(),
			"path", c.Path(),
			"route", routePath,
			"status", c.Response().StatusCode(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.IP(),
			"user_agent", string(c.Request().Header.UserAgent()),
			"request_id", c.Locals(string(requestIDKey)),
		)
		return err
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "role": cfg.Role})
	})

	transporthttp.SetupRoutes(app, transporthttp.RouterConfig{
		TaskService: taskService,
		Logger:      log.Named("http"),
		Config:      cfg,
	})

	ln, err := net.Listen("tcp4", cfg.Server.Address())
	if err != nil {
		_ = registry.Close()
		return fmt.Errorf("server failed to listen on %s: %w", cfg.Server.Address(), err)
	}

	go func() {
		if err := app.Listener(ln); err != nil {
			log.Errorw("server_stopped", "error", err)
		}
	}()
	log.Infow("server_started", "address", cfg.Server.Address(), "role", cfg.Role)

	gracefulShutdown(app, registry, log)
	return nil
}

func newAgent(cfg *config.Config, tools *services.ToolService, log *logger.Logger) ports.Agent {
	if cfg.Role == config.RoleFinder {
		return services.NewFinderAgent(services.FinderAgentConfig{
			Tools:  tools,
			Logger: log,
		})
	}

	delegate := services.NewDelegateService(services.DelegateServiceConfig{
		Client: remote.NewA2AClient(remote.A2AClientConfig{
			URL:     cfg.Delegate.URL,
			APIKey:  cfg.Delegate.APIKey,
			Timeout: cfg.Delegate.Timeout,
			Logger:  log.Named("delegate"),
		}),
		Logger: log,
	})
	return services.NewSummaryAgent(services.SummaryAgentConfig{
		Delegate:        delegate,
		Tools:           tools,
		ItemConcurrency: cfg.Task.ItemConcurrency,
		Logger:          log,
	})
}

func globalErrorHandler(log *logger.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
		}

		if code < fiber.StatusInternalServerError {
			log.Warnw("request_failed",
				"method", c.Method(),
				"path", c.Path(),
				"status", code,
				"error", err.Error(),
				"request_id", c.Locals(string(requestIDKey)),
			)
		} else {
			log.Errorw("request_error",
				"method", c.Method(),
				"path", c.Path(),
				"status", code,
				"error", err.Error(),
				"request_id", c.Locals(string(requestIDKey)),
			)
		}

		return c.Status(code).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
}

func gracefulShutdown(app *fiber.App, registry *mcp.Registry, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	log.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Errorf("server forced to shutdown: %v", err)
	}

	if err := registry.Close(); err != nil {
		log.Errorf("failed to close tool sessions: %v", err)
	}

	log.Info("server exited gracefully")
}
