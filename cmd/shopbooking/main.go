package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shopbooking/internal/audit"
	"shopbooking/internal/config"
	"shopbooking/internal/db"
	"shopbooking/internal/events"
	"shopbooking/internal/lock"
	"shopbooking/internal/metrics"
	"shopbooking/internal/notify"
	"shopbooking/internal/reschedule"
	"shopbooking/internal/shopclock"
	"shopbooking/internal/slots"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	_ = godotenv.Load()

	// Initialize logger
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(config.Path())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if !cfg.Log.Pretty {
		logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
	if level, err := zerolog.ParseLevel(cfg.Log.Level); err == nil {
		logger = logger.Level(level)
	}

	database, err := db.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var rdb *redis.Client
	var locker reschedule.Locker
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		locker = lock.NewRedisLocker(rdb, logger)
	}

	// Initial load + hot reload of shop policy
	if err := config.WatchShops(ctx, cfg.Shops.ConfigPath, cfg.ShopsWatchInterval(), logger, func(updated *config.ShopsConfig) {
		if err := database.SyncShopsFromConfig(ctx, updated); err != nil {
			logger.Error().Err(err).Msg("failed to apply shops config")
			return
		}
		logger.Info().Int("shops", len(updated.Shops)).Msg("shops config applied")
	}); err != nil {
		logger.Error().Err(err).Msg("shops watch failed")
	}

	bus := events.NewEventBus(logger)
	var notifier *notify.Notifier
	if cfg.Notifications.Enabled {
		notifier = startNotifier(ctx, cfg, bus, logger)
	}

	clock := shopclock.New()
	generator := slots.NewGenerator(database, database, clock, logger)
	service := reschedule.NewService(database, generator, bus, logger)

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, database, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	var sweeper *reschedule.Sweeper
	if cfg.SweeperEnabled() {
		sweeper = reschedule.NewSweeper(reschedule.SweeperConfig{
			Interval: cfg.SweepInterval(),
			LockTTL:  cfg.SweepLockTTL(),
		}, service, locker, logger)
		sweeper.Start()
	}

	var exporter *audit.Exporter
	if cfg.Audit.Enabled {
		exporter = audit.NewExporter(audit.Config{
			ExportDir: cfg.Audit.ExportDir,
			Interval:  cfg.AuditInterval(),
			Lookback:  cfg.AuditLookback(),
		}, database, logger)
		exporter.Start()
	}

	if cfg.Backup.Enabled {
		if cfg.Backup.Path == "" {
			cfg.Backup.Path = "backups"
		}
		if cfg.Backup.RetentionDays <= 0 {
			cfg.Backup.RetentionDays = 14
		}
		retention := time.Duration(cfg.Backup.RetentionDays) * 24 * time.Hour
		go database.RunBackups(ctx, cfg.Backup.Path, cfg.BackupInterval(), retention)
	}

	logger.Info().Str("db", database.Path()).Msg("shopbooking started")
	<-ctx.Done()
	logger.Info().Msg("shutting down")

	if sweeper != nil {
		sweeper.Stop()
	}
	if exporter != nil {
		exporter.Stop()
	}
	if notifier != nil {
		notifier.Stop()
	}
}

func startNotifier(ctx context.Context, cfg *config.Config, bus *events.EventBus, logger zerolog.Logger) *notify.Notifier {
	if cfg.Notifications.BotToken == "" || cfg.Notifications.BotToken == "YOUR_BOT_TOKEN_HERE" {
		logger.Warn().Msg("notifications enabled without notifications.bot_token, skipping")
		return nil
	}
	sender, err := notify.NewTelegramSender(cfg.Notifications.BotToken)
	if err != nil {
		logger.Error().Err(err).Msg("create telegram sender error")
		return nil
	}

	perSecond, burst := cfg.NotificationRate()
	n := notify.New(sender, notify.Config{
		DefaultChatID: cfg.Notifications.DefaultChatID,
		ShopChats:     cfg.Notifications.ShopChats,
		Rate:          perSecond,
		Burst:         burst,
	}, logger)
	n.Subscribe(bus)
	n.Start(ctx)
	return n
}

func startHealthServer(ctx context.Context, port int, database *db.DB, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := database.HealthCheck(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
