package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/JRChen0927/SimuAgent/internal/agent"
	"github.com/JRChen0927/SimuAgent/internal/api/handlers"
	registry "github.com/JRChen0927/SimuAgent/internal/config"
	"github.com/JRChen0927/SimuAgent/internal/conversation"
	"github.com/JRChen0927/SimuAgent/internal/evaluation"
	"github.com/JRChen0927/SimuAgent/internal/files"
	"github.com/JRChen0927/SimuAgent/internal/llm"
	"github.com/JRChen0927/SimuAgent/internal/metrics"
	"github.com/JRChen0927/SimuAgent/internal/middleware/security"
	"github.com/JRChen0927/SimuAgent/internal/storage/sqlite"
	"github.com/JRChen0927/SimuAgent/pkg/config"
	appLogger "github.com/JRChen0927/SimuAgent/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting SimuAgent API Server")

	for _, dir := range []string{
		filepath.Dir(cfg.SQLite.Path),
		cfg.Storage.UploadDir,
		cfg.Storage.ProcessedDir,
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			appLogger.Fatal("Failed to create directory", zap.String("dir", dir), zap.Error(err))
		}
	}

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	modelRegistry := registry.NewStore(cfg.Models.RegistryPath)
	if err := modelRegistry.Load(); err != nil {
		appLogger.Fatal("Failed to load model registry", zap.Error(err))
	}

	var generator llm.Generator
	switch cfg.LLM.Mode {
	case "openai":
		generator = llm.NewOpenAIGenerator(
			cfg.LLM.APIKey,
			cfg.LLM.BaseURL,
			time.Duration(cfg.LLM.TimeoutSec)*time.Second,
		)
	default:
		generator = llm.NewStubGenerator(time.Duration(cfg.LLM.StubDelayMS) * time.Millisecond)
	}

	agentService := agent.NewService(sqliteClient, modelRegistry)
	conversationService := conversation.NewService(sqliteClient, generator)
	evaluationService := evaluation.NewService(sqliteClient, generator)
	fileService := files.NewService(
		sqliteClient,
		modelRegistry,
		cfg.Storage.UploadDir,
		cfg.Storage.MaxFileSize,
		files.NewStubProcessor(),
	)

	metrics.Init()

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.Server.CORSOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		AllowedOrigins: cfg.Server.CORSOrigins,
		IsDevelopment:  cfg.Logging.Level == "debug",
	}))

	agentHandler := handlers.NewAgentHandler(agentService)
	conversationHandler := handlers.NewConversationHandler(conversationService)
	evaluationHandler := handlers.NewEvaluationHandler(evaluationService)
	configHandler := handlers.NewConfigHandler(modelRegistry)
	fileHandler := handlers.NewFileHandler(fileService)
	wsHandler := handlers.NewWebSocketHandler(conversationService)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})
	app.Get("/metrics", metrics.MetricsHandler())

	api := app.Group("/api")

	agents := api.Group("/agents")
	agents.Post("/", agentHandler.Create)
	agents.Get("/", agentHandler.List)
	agents.Get("/:id", agentHandler.Get)
	agents.Put("/:id", agentHandler.Update)
	agents.Delete("/:id", agentHandler.Delete)
	agents.Post("/:id/clone", agentHandler.Clone)
	agents.Get("/:id/validate", agentHandler.Validate)

	conversations := api.Group("/conversations")
	conversations.Post("/chat", conversationHandler.Chat)
	conversations.Get("/", conversationHandler.List)
	conversations.Get("/sessions/:session_id", conversationHandler.SessionHistory)
	conversations.Delete("/sessions/:session_id", conversationHandler.DeleteSession)
	conversations.Get("/agent/:agent_id", conversationHandler.ForAgent)
	conversations.Get("/stats/agent/:agent_id", conversationHandler.AgentStats)
	conversations.Delete("/:id", conversationHandler.Delete)

	evalGroup := api.Group("/evaluation")
	evalGroup.Post("/evaluate", evaluationHandler.Evaluate)
	evalGroup.Get("/conversation/:conversation_id", evaluationHandler.ForConversation)
	evalGroup.Get("/agent/:agent_id/stats", evaluationHandler.AgentStats)
	evalGroup.Post("/test-cases", evaluationHandler.CreateTestCase)
	evalGroup.Get("/test-cases", evaluationHandler.ListTestCases)
	evalGroup.Post("/ab-tests", evaluationHandler.CreateABTest)
	evalGroup.Post("/ab-tests/:id/run", evaluationHandler.RunABTest)
	evalGroup.Get("/export/rl-data", evaluationHandler.ExportTrainingData)

	configGroup := api.Group("/config")
	configGroup.Get("/", configHandler.Get)
	configGroup.Put("/", configHandler.Update)
	configGroup.Post("/reload", configHandler.Reload)
	configGroup.Get("/models", configHandler.GetModels)
	configGroup.Get("/models/providers", configHandler.GetProviders)
	configGroup.Get("/models/:provider", configHandler.GetProviderModels)
	configGroup.Get("/models/:provider/enabled", configHandler.GetEnabledModels)
	configGroup.Post("/models/:provider/:model/toggle", configHandler.ToggleModel)
	configGroup.Get("/storage", configHandler.GetStorage)
	configGroup.Get("/storage/formats", configHandler.GetSupportedFormats)
	configGroup.Get("/agent", configHandler.GetAgentDefaults)
	configGroup.Get("/evaluation", configHandler.GetEvaluationConfig)

	fileGroup := api.Group("/files")
	fileGroup.Post("/upload", fileHandler.Upload)
	fileGroup.Get("/", fileHandler.List)
	fileGroup.Get("/:id", fileHandler.Get)
	fileGroup.Get("/:id/preview", fileHandler.Preview)
	fileGroup.Delete("/:id", fileHandler.Delete)
	fileGroup.Post("/:id/process", fileHandler.Process)

	app.Use("/ws/chat", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/chat", websocket.New(wsHandler.HandleConnection))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}
