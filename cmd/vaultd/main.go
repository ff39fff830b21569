package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"YieldVault/internal/allocator"
	"YieldVault/internal/bridge"
	"YieldVault/internal/config"
	"YieldVault/internal/custodian"
	"YieldVault/internal/metrics"
	"YieldVault/internal/model"
	"YieldVault/internal/notifier"
	"YieldVault/internal/recorder"
	"YieldVault/internal/scheduler"
	"YieldVault/internal/store"
	"YieldVault/internal/vault"
	"YieldVault/internal/venue"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log.Info("YieldVault starting...")

	// .env is optional; real environment variables win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).Warn("load .env")
	}

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.WithError(err).Fatal("load config")
	}
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("config validation")
	}
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	} else {
		log.WithField("log_level", cfg.LogLevel).Warn("unknown log level, keeping info")
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init state store
	var st store.Store
	switch cfg.Store.Driver {
	case "redis":
		st, err = store.NewRedisStore(ctx, cfg.Store.RedisAddr, cfg.Store.RedisPassword, cfg.Store.RedisDB)
	default:
		st, err = store.NewFileStore(cfg.Store.Dir)
	}
	if err != nil {
		log.WithError(err).Fatal("init state store")
	}
	defer st.Close()
	log.WithField("driver", cfg.Store.Driver).Info("state store ready")

	// Init recorder
	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		_ = os.MkdirAll(filepath.Dir(cfg.Database.SQLitePath), 0o755)
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, log)
		if err != nil {
			log.WithError(err).Warn("init sqlite recorder failed, using noop")
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
			defer sr.Close()
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}

	// Simulated custody and venues: real adapters are wired by the embedding deployment.
	cust := custodian.NewMemory(common.HexToAddress(cfg.VaultAccount))
	alloc := allocator.New(cfg.Allocator.ToleranceBps, log)
	for _, a := range cfg.Assets {
		for id := range a.Allocations {
			alloc.Register(a.Symbol, venue.NewMemory(model.VenueID(id), a.Symbol, cust))
		}
	}

	// Init engine
	admin := common.HexToAddress(cfg.Admin)
	engine := vault.New(vault.Options{
		Admin:     admin,
		Custodian: cust,
		Allocator: alloc,
		Gateway:   bridge.NewGateway(cfg.Gateway.CallsPerSecond, cfg.Gateway.Burst),
		Store:     st,
		Recorder:  rec,
		Logger:    log,
	})
	if err := engine.Load(ctx); err != nil {
		log.WithError(err).Fatal("load vault state")
	}
	for _, a := range cfg.Assets {
		ac := vault.AssetConfig{
			Asset:               a.Symbol,
			MinDeposit:          a.MinDeposit,
			FeeRateBps:          a.FeeRateBps,
			MaxDailyIncreaseBps: a.MaxDailyIncreaseBps,
			Allocations:         make(map[model.VenueID]uint64, len(a.Allocations)),
		}
		if a.FeeRecipient != "" {
			ac.FeeRecipient = common.HexToAddress(a.FeeRecipient)
		}
		for id, bps := range a.Allocations {
			ac.Allocations[model.VenueID(id)] = bps
		}
		if err := engine.EnableAsset(ctx, admin, ac); err != nil {
			log.WithField("asset", a.Symbol).WithError(err).Fatal("enable asset")
		}
	}
	for _, b := range cfg.Bridges {
		if err := engine.AuthorizeBridge(ctx, admin, b.Asset, common.HexToAddress(b.Address), b.DailyLimit); err != nil {
			log.WithField("bridge", b.Address).WithError(err).Fatal("authorize bridge")
		}
	}

	// Init Telegram notifier
	var sender scheduler.Sender
	var tn *notifier.TelegramNotifier
	if cfg.Telegram.BotToken != "" {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, log)
		tn.AllowChats(cfg.Telegram.AllowedChatIDs...)
		sender = tn
	} else {
		log.Warn("telegram not configured, notifications go to the log only")
	}

	// Init scheduler
	sched := scheduler.NewScheduler(ctx, engine, sender, cfg.Assets, log)
	if err := sched.RegisterAll(scheduler.Schedule{
		Refresh:   cfg.Schedule.RefreshCron,
		FundQueue: cfg.Schedule.FundQueueCron,
		Rebalance: cfg.Schedule.RebalanceCron,
		Sweep:     cfg.Schedule.SweepCron,
		Report:    cfg.Schedule.ReportCron,
	}); err != nil {
		log.WithError(err).Fatal("register cron tasks")
	}
	sched.Start()
	defer sched.Stop()

	// Start Telegram polling
	if tn != nil {
		go func() {
			if err := tn.StartPolling(ctx, sched.HandleCommand); err != nil {
				log.WithError(err).Error("telegram commands disabled, notifications still go out")
			}
		}()
		log.Info("telegram polling started")
	}

	// Ops HTTP: metrics and health only
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok", "assets": engine.Assets()})
	})
	srv := &http.Server{Addr: cfg.MetricsAddr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("ops http server")
		}
	}()
	log.WithField("addr", cfg.MetricsAddr).Info("ops http listening")

	// Optional: run immediately on start
	if os.Getenv("RUN_ON_START") == "true" {
		log.Info("RUN_ON_START enabled, sending report now")
		go sched.RunReportNow()
	}

	log.Info("YieldVault is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, stopping...")
	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("ops http shutdown")
	}
	cancel()
	log.Info("YieldVault stopped")
}
