package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yungbote/curricula-backend/internal/db"
	"github.com/yungbote/curricula-backend/internal/enrich/objectives"
	"github.com/yungbote/curricula-backend/internal/enrich/tutoring"
	"github.com/yungbote/curricula-backend/internal/handlers"
	"github.com/yungbote/curricula-backend/internal/importer"
	"github.com/yungbote/curricula-backend/internal/middleware"
	"github.com/yungbote/curricula-backend/internal/observability"
	"github.com/yungbote/curricula-backend/internal/platform/logger"
	"github.com/yungbote/curricula-backend/internal/repos"
	"github.com/yungbote/curricula-backend/internal/server"
	"github.com/yungbote/curricula-backend/internal/sources/ocw"
	"github.com/yungbote/curricula-backend/internal/sse"
)

type App struct {
	Log    *logger.Logger
	DB     *gorm.DB
	Router *gin.Engine
	Cfg    Config
	Hub    *sse.Hub

	Orchestrator *importer.Orchestrator
	Worker       *importer.Worker

	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
	httpSrv      *http.Server
}

func New(ctx context.Context) (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	cfg := LoadConfig()

	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: "curricula-backend",
		Environment: cfg.Environment,
		Version:     cfg.Version,
	})

	pg, err := db.New(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init database: %w", err)
	}
	theDB := pg.DB()
	if err := db.AutoMigrateAll(theDB); err != nil {
		log.Sync()
		return nil, fmt.Errorf("automigrate: %w", err)
	}

	clients, err := wireClients(ctx, log, cfg)
	if err != nil {
		log.Sync()
		return nil, err
	}

	hub := sse.NewHub(log)
	jobRepo := repos.NewImportJobRepo(theDB, log)
	docRepo := repos.NewCurriculumDocRepo(theDB, log)

	ocwHandler, err := ocw.New(log, clients.Archives, ocw.Config{BaseURL: cfg.OCWBaseURL})
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init ocw source: %w", err)
	}

	var symbols *tutoring.SymbolTable
	if cfg.SymbolTablePath != "" {
		table, err := tutoring.LoadSymbolTable(cfg.SymbolTablePath)
		if err != nil {
			log.Warn("symbol table load failed; using defaults", "error", err)
		}
		symbols = &table
	}

	var standards []objectives.Standard
	if cfg.StandardsPath != "" {
		standards, err = objectives.LoadStandards(cfg.StandardsPath)
		if err != nil {
			log.Warn("standards list load failed; alignment disabled", "error", err)
		}
	}

	orch, err := importer.New(importer.Deps{
		Log:  log,
		Jobs: jobRepo,
		Docs: docRepo,
		Hub:  hub,
		Handlers: map[string]importer.SourceHandler{
			ocwHandler.Source().ID: ocwHandler,
		},
		AI:          clients.AI,
		GraphDB:     clients.GraphDB,
		Entities:    clients.Entities,
		Symbols:     symbols,
		Standards:   standards,
		TemplateDir: cfg.TemplateDir,
	})
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init orchestrator: %w", err)
	}

	worker := importer.NewWorker(orch, importer.WorkerConfig{
		Concurrency:  cfg.WorkerConcurrency,
		PollInterval: cfg.WorkerPoll,
		Retention:    cfg.JobRetention,
	})

	authMW := middleware.NewAuthMiddleware(log, cfg.JWTSecretKey, cfg.AdminAPIKeyHash)
	router := server.NewRouter(server.RouterConfig{
		AuthMiddleware:  authMW,
		ImportHandler:   handlers.NewImportHandler(log, orch, jobRepo, hub),
		DocumentHandler: handlers.NewDocumentHandler(log, docRepo),
		AllowOrigins:    cfg.AllowOrigins,
		ServiceName:     "curricula-backend",
	})

	return &App{
		Log:          log,
		DB:           theDB,
		Router:       router,
		Cfg:          cfg,
		Hub:          hub,
		Orchestrator: orch,
		Worker:       worker,
		otelShutdown: otelShutdown,
	}, nil
}

// Start launches the worker pool and the HTTP server. It returns once the
// listener is up; Shutdown stops everything.
func (a *App) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.Worker.Start(ctx)

	a.httpSrv = &http.Server{
		Addr:    ":" + a.Cfg.Port,
		Handler: a.Router,
	}
	go func() {
		a.Log.Info("server listening", "port", a.Cfg.Port)
		if err := a.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Log.Error("server failed", "error", err)
		}
	}()
	return nil
}

func (a *App) Shutdown(ctx context.Context) {
	if a.cancel != nil {
		a.cancel()
	}
	if a.httpSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := a.httpSrv.Shutdown(shutdownCtx); err != nil {
			a.Log.Warn("http shutdown failed", "error", err)
		}
	}
	if a.otelShutdown != nil {
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
	}
	a.Log.Sync()
}
