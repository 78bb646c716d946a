package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	fiberSwagger "github.com/gofiber/swagger"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/realityworks/broadcast-app/docs"
	"github.com/realityworks/broadcast-app/internal/auth"
	"github.com/realityworks/broadcast-app/internal/client"
	"github.com/realityworks/broadcast-app/internal/config"
	"github.com/realityworks/broadcast-app/internal/handler"
	"github.com/realityworks/broadcast-app/internal/middleware"
	"github.com/realityworks/broadcast-app/internal/model"
	"github.com/realityworks/broadcast-app/internal/service"
	ws "github.com/realityworks/broadcast-app/internal/websocket"
	"github.com/realityworks/broadcast-app/internal/worker"
	"github.com/realityworks/broadcast-app/internal/workspace"
	"github.com/realityworks/broadcast-app/pkg/logger"
	"github.com/realityworks/broadcast-app/pkg/response"
)

// @title          Broadcast Upload API
// @version        1.0
// @description    Queues post media and profile trailer uploads to Broadcast and reports their progress.
// @host           localhost:8000
// @BasePath       /
// @schemes        http https
// @securityDefinitions.apikey BearerAuth
// @in             header
// @name           Authorization
// @description    Enter your bearer token in the format **Bearer &lt;token&gt;**
func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New().Fatal("failed to load config", "error", err)
	}

	if cfg.Server.ApiDomain != "" {
		docs.SwaggerInfo.Host = cfg.Server.ApiDomain
		docs.SwaggerInfo.Schemes = []string{"https"}
	} else {
		docs.SwaggerInfo.Host = "localhost:" + cfg.Server.Port
		docs.SwaggerInfo.Schemes = []string{"http"}
	}

	level, err := logger.ParseLevel(cfg.Server.LogLevel)
	log := logger.NewWithConfig(logger.Config{Level: level, Output: os.Stdout})
	if err != nil {
		log.Warn("invalid log level, using info", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Warn("redis not available", "error", err)
	}

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	validate := validator.New()

	hub := ws.NewHub(log)
	go hub.Run(ctx)

	wsp, err := workspace.New(cfg.Workspace.Dir, log)
	if err != nil {
		log.Fatal("failed to open workspace", "error", err)
	}
	janitor, err := wsp.StartJanitor(cfg.Workspace.SweepSchedule, cfg.Workspace.MaxAge)
	if err != nil {
		log.Fatal("failed to schedule workspace sweep", "error", err)
	}
	defer janitor.Stop()

	// The upload API is optional; without it every run fails at its first
	// step with a collaborator error
	postAPI, r2Client, err := client.NewPostAPI(cfg, redisClient, log)
	if err != nil {
		log.Warn("uploads disabled", "mode", cfg.Broadcast.Mode, "error", err)
	}
	transferer := client.NewHTTPTransferer(cfg.Transfer.Timeout, log)

	uploadService, err := service.NewUploadService(postAPI, transferer, wsp, validate, log)
	if err != nil {
		log.Fatal("failed to create upload service", "error", err)
	}
	jobService := service.NewJobService(service.NewRedisJobStore(redisClient), asynqClient).
		WithTaskTimeout(cfg.Transfer.JobTimeout)

	// Initialize OIDC JWKS verifier (optional - falls back to legacy JWT)
	var jwksVerifier *auth.JWKSVerifier
	if cfg.OIDC.Issuer != "" {
		jwksVerifier, err = auth.NewJWKSVerifier(&cfg.OIDC)
		if err != nil {
			log.Warn("JWKS verifier not initialized", "error", err)
		} else {
			defer jwksVerifier.Close()
		}
	}

	var tokenVerifier auth.TokenVerifier
	if jwksVerifier != nil {
		tokenVerifier = jwksVerifier
	}

	uploadHandler := handler.NewUploadHandler(jobService, uploadService, wsp, validate, log)
	authHandler := handler.NewAuthHandler(tokenVerifier, cfg.JWT.Secret)

	var apiAuthMiddleware fiber.Handler
	if cfg.Gateway.Enabled {
		// Behind the gateway: ForwardAuth already ran, read X-User-* headers
		log.Info("gateway mode enabled, using header-based auth")
		apiAuthMiddleware = middleware.GatewayAuthMiddleware()
	} else {
		var authMiddleware *middleware.AuthMiddleware
		if jwksVerifier != nil && cfg.JWT.Secret != "" {
			authMiddleware = middleware.NewAuthMiddlewareWithFallback(jwksVerifier, cfg.JWT.Secret)
		} else if jwksVerifier != nil {
			authMiddleware = middleware.NewAuthMiddleware(jwksVerifier)
		} else {
			authMiddleware = middleware.NewLegacyAuthMiddleware(cfg.JWT.Secret)
		}
		apiAuthMiddleware = authMiddleware.Authenticate()
	}
	rateLimiter := middleware.NewRateLimiter(redisClient, log)

	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    handler.MaxUploadSize,
	})

	app.Use(recover.New())
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if log.IsDebugEnabled() {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${reqHeaders}\n"
	}
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"timestamp": time.Now().Unix(),
		})
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"broadcast": postAPI != nil,
				"mode":      cfg.Broadcast.Mode,
				"r2":        r2Client != nil,
				"redis":     redisClient.Ping(c.UserContext()).Err() == nil,
				"auth":      jwksVerifier != nil || cfg.JWT.Secret != "",
			},
		})
	})

	app.Get("/swagger/*", fiberSwagger.HandlerDefault)

	// ForwardAuth verification endpoint (internal, called by the gateway)
	app.Get("/auth/verify", authHandler.Verify)

	api := app.Group("/api", apiAuthMiddleware)

	upload := api.Group("/upload")
	upload.Post("/media", rateLimiter.UploadLimit(cfg.RateLimit.UploadPerHour), uploadHandler.Media)
	upload.Post("/trailer", rateLimiter.UploadLimit(cfg.RateLimit.UploadPerHour), uploadHandler.Trailer)
	upload.Get("/status/:jobId", uploadHandler.Status)
	upload.Get("/current/:kind", uploadHandler.Current)
	upload.Post("/detach/:kind", uploadHandler.Detach)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/uploads/:jobId", websocket.New(func(c *websocket.Conn) {
		hub.HandleConnection(c, c.Params("jobId"))
	}))

	srv := newWorkerServer(cfg)
	uploadWorker := worker.NewUploadWorker(uploadService, jobService, wsp, hub, log)
	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypeUpload, uploadWorker.ProcessTask)
	if err := srv.Start(mux); err != nil {
		log.Fatal("failed to start worker", "error", err)
	}

	go func() {
		<-ctx.Done()
		log.Info("shutting down server")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error("server shutdown error", "error", err)
		}
	}()

	addr := ":" + cfg.Server.Port
	log.Info("server starting", "addr", addr, "mode", cfg.Broadcast.Mode)
	if err := app.Listen(addr); err != nil {
		log.Error("server error", "error", err)
	}

	srv.Shutdown()
}

func newWorkerServer(cfg *config.Config) *asynq.Server {
	asynqLogLevel := asynq.InfoLevel
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		asynqLogLevel = asynq.DebugLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "warn") {
		asynqLogLevel = asynq.WarnLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "error") {
		asynqLogLevel = asynq.ErrorLevel
	}

	// one worker per upload kind; the orchestrator supersedes within a kind
	return asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: len(model.ValidUploadKinds),
			Queues: map[string]int{
				service.QueueUploads: 1,
			},
			LogLevel: asynqLogLevel,
		},
	)
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return response.Error(c, code, response.CodeServiceError, message, nil)
}
