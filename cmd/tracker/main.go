package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/yourname/clockwork/internal"
	"github.com/yourname/clockwork/internal/api"
	"github.com/yourname/clockwork/internal/archive"
	"github.com/yourname/clockwork/internal/auth"
	"github.com/yourname/clockwork/internal/config"
	"github.com/yourname/clockwork/internal/gateway"
	"github.com/yourname/clockwork/internal/images"
	"github.com/yourname/clockwork/internal/kvstore"
	"github.com/yourname/clockwork/internal/ledger"
	"github.com/yourname/clockwork/internal/service"
	"github.com/yourname/clockwork/internal/syncer"
)

type app struct {
	logger        internal.Logger
	ledger        *ledger.Ledger
	archive       archive.SessionRepository
	engine        *syncer.Engine
	gateway       *gateway.Gateway
	settings      *service.SettingsManager
	images        *images.Store
	backendOnline *atomic.Bool
}

func (a *app) Logger() internal.Logger            { return a.logger }
func (a *app) Ledger() *ledger.Ledger             { return a.ledger }
func (a *app) Archive() archive.SessionRepository { return a.archive }
func (a *app) Engine() *syncer.Engine             { return a.engine }
func (a *app) Gateway() *gateway.Gateway          { return a.gateway }
func (a *app) Settings() *service.SettingsManager { return a.settings }
func (a *app) Images() *images.Store              { return a.images }
func (a *app) BackendOnline() bool                { return a.backendOnline.Load() }

func newLogger(cfg *config.Config) (*zap.SugaredLogger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}
	var zcfg zap.Config
	if cfg.Env == "production" {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	z, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	return z.Sugar(), nil
}

func main() {
	cfg := config.Load()

	sugared, err := newLogger(cfg)
	if err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer sugared.Sync()
	logger := internal.NewZapLogger(sugared)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Errorf("failed to create data dir: %v", err)
		os.Exit(1)
	}

	kv, err := kvstore.NewFileStore(cfg.StateFile, logger)
	if err != nil {
		logger.Errorf("failed to init state store: %v", err)
		os.Exit(1)
	}
	defer kv.Close()

	var sessionRepo archive.SessionRepository
	switch cfg.StorageBackend {
	case "postgres":
		sessionRepo, err = archive.NewPostgresRepository(cfg.PostgresDSN, logger)
	default:
		sessionRepo, err = archive.NewFileRepository(cfg.SessionsFile, logger)
	}
	if err != nil {
		logger.Errorf("failed to init session archive: %v", err)
		os.Exit(1)
	}
	if closer, ok := sessionRepo.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	imgs := images.NewStore(kv, logger)
	creds := auth.NewCredentialManager(kv, logger)
	gw := gateway.New(cfg.BackendBaseURL, creds, logger)
	engine := syncer.NewEngine(gw, kv, imgs, logger)
	lg := ledger.New(logger)
	settings := service.NewSettingsManager(kv, logger)

	// Crash recovery: pick up the last live-session backup, if any.
	if laps, ok := engine.RestoreBackup(); ok {
		logger.Infof("restored %d laps from live-session backup", len(laps))
		lg.Replace(laps)
	}

	backendOnline := &atomic.Bool{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		ticker := time.NewTicker(60 * time.Second)
		defer ticker.Stop()
		backendOnline.Store(gw.CheckHealth(ctx))
		for {
			select {
			case <-ticker.C:
				healthy := gw.CheckHealth(ctx)
				wasDown := !backendOnline.Swap(healthy)
				// When the backend comes back, drain the queue right away.
				if healthy && wasDown && creds.IsAuthenticated() {
					engine.ProcessSyncQueue(ctx)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	if creds.IsAuthenticated() {
		engine.StartBackground(ctx)
	}
	engine.StartBackup(lg.Laps)
	defer engine.StopBackup()
	defer engine.StopBackground()

	a := &app{
		logger:        logger,
		ledger:        lg,
		archive:       sessionRepo,
		engine:        engine,
		gateway:       gw,
		settings:      settings,
		images:        imgs,
		backendOnline: backendOnline,
	}

	router := api.NewRouter(a)
	server := &http.Server{Addr: cfg.ListenAddr, Handler: router}

	go func() {
		logger.Infof("tracker listening on %s", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Infof("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown error: %v", err)
	}
}
