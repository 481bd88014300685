package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"time"

	"monitee/internal/config"
	"monitee/internal/db"
	"monitee/internal/docker"
	"monitee/internal/metrics"
	"monitee/internal/monitoring"
	"monitee/internal/notify"
	"monitee/internal/retention"
	"monitee/internal/serverid"
	"monitee/internal/telemetry"
	"monitee/internal/updatecheck"
	"monitee/internal/web"
	"monitee/internal/webcheck"
)

type App struct {
	cfg config.Config
	log *slog.Logger

	db *db.Repository

	metrics   *metrics.Cache
	evaluator *monitoring.Evaluator
	updates   *updatecheck.Checker
	retention *retention.Service

	shutdownTelemetry func(context.Context) error
	httpSrv           *http.Server
}

// Build identifies the running binary.
type Build struct {
	Version string
	Date    string
}

// openDB is replaced in tests.
var openDB = db.Open

func New(ctx context.Context, cfg config.Config, build Build, logger *slog.Logger) (_ *App, err error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	sqldb, err := openDB(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = sqldb.Close()
		}
	}()
	if err := db.Migrate(sqldb); err != nil {
		return nil, err
	}
	repo := db.NewRepository(sqldb)
	kv := db.NewKVStore(sqldb)
	eventLog := db.NewEventLog(sqldb)

	serverID, err := serverid.Ensure(ctx, kv)
	if err != nil {
		return nil, fmt.Errorf("server id: %w", err)
	}
	logger.Info("server id", "id", serverID)

	shutdownTelemetry, err := telemetry.Setup(telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "monitee-agent",
		ServiceVersion: build.Version,
		Interval:       cfg.Telemetry.Interval,
	})
	if err != nil {
		return nil, err
	}

	sensors := metrics.NewDiskSensors(runtime.GOOS, exec.LookPath, logger.With("module", "sensors"))
	cache := metrics.NewCache(metrics.NewHost(sensors, logger.With("module", "metrics")), cacheTTL(cfg.Cache))

	var dockerClient *docker.Client
	if cfg.Docker.Enabled {
		dockerClient = docker.NewClient(cfg.Docker.Socket)
	}
	containers := docker.NewManager(dockerClient, logger.With("module", "docker"))
	webChecks := webcheck.NewService(repo, cfg.WebChecks.Timeout, cfg.WebChecks.StatusTTL, logger.With("module", "webcheck"))
	builder := monitoring.NewBuilder(cache, containers, webChecks, logger.With("module", "snapshot"))

	serverName := cfg.Notifications.ServerName
	if serverName == "" {
		if serverName, err = os.Hostname(); err != nil {
			serverName = "monitee"
		}
	}
	links := notify.DeepLinks{ServerID: serverID, ReleaseUser: cfg.UpdateCheck.User, ReleaseRepo: cfg.UpdateCheck.Repo}
	formatter := notify.Formatter{
		Temperature: notify.ResolveTemperatureUnit(notify.TemperatureUnit(cfg.Formatting.TemperatureUnit), os.Getenv),
	}
	ntfy := notify.NewNtfy(notify.NtfyConfig{
		Enabled: cfg.Notifications.Ntfy.Enabled,
		URL:     cfg.Notifications.Ntfy.URL,
		Topic:   cfg.Notifications.Ntfy.Topic,
	}, serverID, logger.With("module", "ntfy"))
	telegram := notify.NewTelegram(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID)
	notifier := notify.NewManager(serverName, formatter, links, cfg.Notifications.Timeout,
		logger.With("module", "notify"), ntfy, telegram)

	tracker := monitoring.NewTracker(eventLog, notifier, logger.With("module", "missing"))

	a := &App{
		cfg:               cfg,
		log:               logger,
		db:                repo,
		metrics:           cache,
		evaluator:         monitoring.NewEvaluator(repo, builder, tracker, notifier, logger.With("module", "monitoring")),
		retention:         retention.NewService(repo, cfg.RetentionDays, logger.With("module", "retention")),
		shutdownTelemetry: shutdownTelemetry,
	}
	if cfg.UpdateCheck.Enabled {
		a.updates = updatecheck.NewChecker(cfg.UpdateCheck.User, cfg.UpdateCheck.Repo, build.Version,
			kv, eventLog, notifier, logger.With("module", "updatecheck"))
	}

	srv := web.NewServer(web.Deps{
		Meta:          web.Meta{Version: build.Version, BuildDate: build.Date, ServerID: serverID},
		Store:         repo,
		Docker:        containers,
		Metrics:       cache,
		Items:         builder,
		Generic:       eventLog,
		WebChecks:     webChecks,
		Notifications: notifier,
	}, logger.With("module", "web"))
	a.httpSrv = &http.Server{Addr: cfg.Addr, Handler: srv.Routes(), ReadHeaderTimeout: 10 * time.Second}
	return a, nil
}

func cacheTTL(c config.CacheConfig) metrics.TTL {
	return metrics.TTL{
		CPU:         c.CPU,
		Network:     c.Network,
		Disk:        c.Disk,
		FileSystem:  c.FileSystem,
		Memory:      c.Memory,
		Processes:   c.Processes,
		GPU:         c.GPU,
		Motherboard: c.Motherboard,
	}
}

func (a *App) Run(ctx context.Context) error {
	if err := a.metrics.Initialize(ctx); err != nil {
		a.log.Warn("metrics initialization incomplete", "err", err)
	}

	go func() {
		a.log.Info("http server listening", "addr", a.cfg.Addr)
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("http server failed", "err", err)
		}
	}()

	monitorTicker := time.NewTicker(a.cfg.MonitorInterval)
	retentionTicker := time.NewTicker(6 * time.Hour)
	defer monitorTicker.Stop()
	defer retentionTicker.Stop()

	var updateC <-chan time.Time
	if a.updates != nil {
		updateTicker := time.NewTicker(a.cfg.UpdateCheck.Interval)
		defer updateTicker.Stop()
		updateC = updateTicker.C
	}

	// Immediate first run
	a.evaluator.Evaluate(ctx)
	a.retention.Run(ctx)
	a.checkUpdates(ctx)

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = a.httpSrv.Shutdown(shutdownCtx)
			if err := a.shutdownTelemetry(shutdownCtx); err != nil {
				a.log.Warn("telemetry shutdown", "err", err)
			}
			return a.db.DB().Close()
		case <-monitorTicker.C:
			a.evaluator.Evaluate(ctx)
		case <-retentionTicker.C:
			a.retention.Run(ctx)
		case <-updateC:
			a.checkUpdates(ctx)
		}
	}
}

func (a *App) checkUpdates(ctx context.Context) {
	if a.updates == nil {
		return
	}
	a.updates.Run(ctx)
}
