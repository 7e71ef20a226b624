package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"RatioScope/internal/api"
	"RatioScope/internal/collector"
	"RatioScope/internal/config"
	"RatioScope/internal/metrics"
	"RatioScope/internal/notifier"
	"RatioScope/internal/pipeline"
	"RatioScope/internal/recorder"
	"RatioScope/internal/scheduler"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[INFO] RatioScope starting...")

	if err := godotenv.Load(); err != nil {
		log.Printf("[INFO] no .env file loaded: %v", err)
	}

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}
	lb, iv, err := cfg.DefaultView()
	if err != nil {
		log.Fatalf("[FATAL] default view: %v", err)
	}
	view := pipeline.View{Lookback: lb, Interval: iv}

	m := metrics.NewMetrics()

	// Init fetchers
	cc := collector.NewCryptoCompareFetcher(cfg.Providers.CryptoCompare.BaseURL, cfg.Providers.CryptoCompare.APIKey, cfg.QuoteCurrency, cfg.Proxy)
	cc.Metrics = m
	cg := collector.NewCoinGeckoFetcher(cfg.Providers.CoinGecko.BaseURL, cfg.Providers.CoinGecko.APIKey, cfg.Proxy)
	cg.Metrics = m

	var primary collector.BarFetcher = cc
	var secondary collector.QuoteFetcher = cg
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancelPing := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			log.Printf("[WARN] redis %s unreachable, lookups will fall through: %v", cfg.Redis.Addr, err)
		}
		cancelPing()
		defer rdb.Close()

		cache := collector.NewCachedSource(rdb, cfg.Redis.TTL, m)
		primary = cache.Bars(cc)
		secondary = cache.Quotes(cg)
		log.Printf("[INFO] provider cache: redis %s (ttl %v)", cfg.Redis.Addr, cfg.Redis.TTL)
	}
	src := collector.NewSource(primary, secondary)

	// Init recorder
	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err != nil {
			log.Printf("[WARN] init sqlite recorder failed, using noop: %v", err)
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
			defer sr.Close()
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}

	mgr := pipeline.NewManager(cfg.Pairs, src,
		pipeline.WithMetrics(m),
		pipeline.WithRecorder(rec),
		pipeline.WithIndicators(cfg.Indicators),
	)
	log.Printf("[INFO] %d pairs configured, default view %s/%s", len(cfg.Pairs), view.Lookback, view.Interval)

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init Telegram notifier
	var tn *notifier.TelegramNotifier
	var sender notifier.Sender
	if cfg.TelegramEnabled() {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		sender = tn
	} else {
		log.Println("[INFO] telegram not configured, notifications disabled")
	}

	// Init scheduler
	sched := scheduler.NewScheduler(ctx, mgr, sender, rec, view)
	if err := sched.RegisterAll(cfg.Schedule.RefreshCron, cfg.Schedule.ReportCron); err != nil {
		log.Fatalf("[FATAL] register cron tasks: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Println("[INFO] Telegram polling started")
	}

	if os.Getenv("RUN_ON_START") != "false" {
		go sched.RunRefreshNow()
	}

	// HTTP API
	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.NewRouter(api.NewHandler(mgr, view), m),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("[INFO] HTTP API listening on %s", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[FATAL] http server: %v", err)
		}
	}()

	log.Println("[INFO] RatioScope is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[INFO] shutdown signal received, stopping...")
	cancel()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[WARN] http shutdown: %v", err)
	}
	log.Println("[INFO] RatioScope stopped")
}
