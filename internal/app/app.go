package app

import (
	"context"
	"fmt"
	"os"

	"gorm.io/gorm"

	"github.com/freightdesk/rulelearn-backend/internal/data/db"
	internalhttp "github.com/freightdesk/rulelearn-backend/internal/http"
	httpMW "github.com/freightdesk/rulelearn-backend/internal/http/middleware"
	"github.com/freightdesk/rulelearn-backend/internal/observability"
	"github.com/freightdesk/rulelearn-backend/internal/platform/logger"
	"github.com/freightdesk/rulelearn-backend/internal/seed"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Server   *internalhttp.Server
	Cfg      Config
	Repos    Repos
	Services Services

	cancel       context.CancelFunc
	otelShutdown func(context.Context) error
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig()

	dbService, err := db.New(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := dbService.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("automigrate: %w", err)
	}
	theDB := dbService.DB()

	otelShutdown := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: "rulelearn",
		Environment: os.Getenv("APP_ENV"),
		Version:     os.Getenv("APP_VERSION"),
	})

	reposet := wireRepos(theDB, log)
	serviceset := wireServices(theDB, log, cfg, reposet)

	if cfg.SeedRulesPath != "" {
		if err := seed.Load(context.Background(), theDB, log, reposet.ActiveRules, reposet.Versions, cfg.SeedRulesPath); err != nil {
			log.Warn("seeding default rules failed", "error", err.Error())
		}
	}

	handlerset := wireHandlers(log, serviceset, reposet, os.Getenv("APP_VERSION"))
	actor := httpMW.NewActorMiddleware(log)
	server := wireServer(log, handlerset, actor)

	return &App{
		Log:          log,
		DB:           theDB,
		Server:       server,
		Cfg:          cfg,
		Repos:        reposet,
		Services:     serviceset,
		otelShutdown: otelShutdown,
	}, nil
}

func (a *App) Start() {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if a.Services.Reattempt != nil {
		go a.Services.Reattempt.Start(ctx)
	}
}

func (a *App) Run() error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Server.Run(":" + a.Cfg.Port)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.Services.RuleCache != nil {
		_ = a.Services.RuleCache.Close()
	}
	if a.otelShutdown != nil {
		_ = a.otelShutdown(context.Background())
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
