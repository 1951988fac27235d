package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"idlerealm/internal/catalog"
	"idlerealm/internal/config"
	"idlerealm/internal/game"
	"idlerealm/internal/logger"
	"idlerealm/internal/runner"
	"idlerealm/internal/save"
	"idlerealm/internal/server"
	"idlerealm/internal/telemetry"

	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "idlerealm.yml", "path to config file")
	contentPath := flag.String("content", "", "catalog content file (defaults to the built-in catalog)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Log.Fatalf("load config: %v", err)
	}
	log := logger.Init(cfg.Log.Level, cfg.Log.Format)

	reg, err := loadCatalog(*contentPath)
	if err != nil {
		log.Fatalf("load catalog: %v", err)
	}

	repo, closeRepo, err := save.Open(cfg.Save)
	if err != nil {
		log.Fatalf("open save repository: %v", err)
	}
	defer func() {
		if err := closeRepo(); err != nil {
			log.WithError(err).Warn("close save repository")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := save.Store{Repo: repo, Catalog: reg, Balance: cfg.Balance}
	st, err := store.Load(ctx, cfg.Save.Slot)
	if err != nil {
		if !errors.Is(err, save.ErrCorrupt) {
			log.Fatalf("load save: %v", err)
		}
		log.WithError(err).Warn("save slot unreadable, starting fresh")
	}

	r := runner.New(runner.Options{
		Engine: game.Engine{
			Catalog: reg,
			Balance: cfg.Balance,
			Loc:     cfg.Location(),
			Log:     log,
		},
		State:          st,
		Clock:          game.RealClock{},
		Saver:          store,
		Slot:           cfg.Save.Slot,
		Events:         telemetry.NewMemoryRepository(telemetry.DefaultLimit),
		MaxCatchUp:     cfg.Server.MaxCatchUp,
		AutosaveEvery:  cfg.Server.AutosaveEvery,
		StreamCapacity: cfg.Server.StreamCapacity,
		Log:            log,
	})

	handler, err := server.NewHandler(server.Options{
		Config: cfg,
		Runner: r,
		Saves:  repo,
		Log:    log,
	})
	if err != nil {
		log.Fatalf("build server: %v", err)
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	loopDone := make(chan error, 1)
	go func() { loopDone <- r.Run(ctx, cfg.Server.TickInterval) }()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.WithFields(logrus.Fields{
		"addr":    cfg.Server.Addr,
		"backend": cfg.Save.Backend,
		"slot":    cfg.Save.Slot,
		"catalog": reg.Version(),
	}).Info("listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("serve: %v", err)
	}
	if err := <-loopDone; err != nil {
		log.WithError(err).Error("tick loop")
	}
	log.Info("stopped")
}

func loadCatalog(path string) (*catalog.Registry, error) {
	if path == "" {
		return catalog.Default()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return catalog.Parse(f)
}
