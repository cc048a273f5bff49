package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/tholander/bagwatch/internal/adapter/handler"
	"github.com/tholander/bagwatch/internal/adapter/marketplace"
	"github.com/tholander/bagwatch/internal/adapter/sink"
	"github.com/tholander/bagwatch/internal/adapter/storage"
	"github.com/tholander/bagwatch/internal/core/service"
	"github.com/tholander/bagwatch/internal/port"
)

type config struct {
	httpAddr     string
	mysqlDSN     string
	redisAddr    string
	slackToken   string
	adminChannel string

	marketplaceBase string
	mockFetcher     bool

	pollInterval time.Duration
	maxBackoff   time.Duration
	cycleTimeout time.Duration
	authFailures int

	senderCount int
	queueSize   int
}

func loadConfig() config {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	return config{
		httpAddr:        envStr("HTTP_ADDR", ":8080"),
		mysqlDSN:        envStr("MYSQL_DSN", "root:root@tcp(localhost:3306)/bagwatch?parseTime=true"),
		redisAddr:       envStr("REDIS_ADDR", "localhost:6379"),
		slackToken:      envStr("SLACK_TOKEN", ""),
		adminChannel:    envStr("SLACK_ADMIN_CHANNEL", ""),
		marketplaceBase: envStr("MARKETPLACE_BASE_URL", ""),
		mockFetcher:     envStr("MARKETPLACE_ADAPTER", "http") == "mock",
		pollInterval:    envDur("POLL_INTERVAL", 15*time.Second),
		maxBackoff:      envDur("MAX_BACKOFF", 10*time.Minute),
		cycleTimeout:    envDur("CYCLE_TIMEOUT", 30*time.Second),
		authFailures:    envInt("AUTH_FAILURE_THRESHOLD", 5),
		senderCount:     envInt("SENDER_COUNT", 3),
		queueSize:       envInt("QUEUE_SIZE", 1000),
	}
}

func main() {
	cfg := loadConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.mysqlDSN)
	if err != nil {
		log.Fatalf("failed to connect mysql: %v", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("failed to ping mysql: %v", err)
	}
	log.Println("connected to mysql")

	mysqlAdapter := storage.NewMySQLAdapter(db)
	if err := mysqlAdapter.EnsureSchema(ctx); err != nil {
		log.Fatalf("failed to ensure schema: %v", err)
	}

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{Addr: cfg.redisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	log.Println("connected to redis")

	redisAdapter := storage.NewRedisAdapter(rdb)

	// Fetcher and notification sink
	var fetcher port.Fetcher
	if cfg.mockFetcher {
		fetcher = marketplace.NewMockAdapter()
		log.Println("using mock marketplace adapter")
	} else {
		fetcher, err = marketplace.NewHTTPAdapter(marketplace.HTTPAdapterOptions{
			BaseURL: cfg.marketplaceBase,
			Timeout: cfg.cycleTimeout,
		}, mysqlAdapter)
		if err != nil {
			log.Fatalf("failed to build marketplace adapter: %v", err)
		}
	}

	var notificationSink port.NotificationSink
	if cfg.slackToken != "" {
		notificationSink = sink.NewSlackSink(cfg.slackToken)
	} else {
		notificationSink = sink.NewLogSink()
		log.Println("SLACK_TOKEN not set, logging notifications instead")
	}

	// Core services
	reconciler := service.NewReconciler(mysqlAdapter, redisAdapter)
	notifier := service.NewNotifier(mysqlAdapter, redisAdapter, cfg.queueSize)
	poller := service.NewPoller(service.PollerConfig{
		Interval:             cfg.pollInterval,
		MaxBackoff:           cfg.maxBackoff,
		CycleTimeout:         cfg.cycleTimeout,
		AuthFailureThreshold: cfg.authFailures,
		AdminChannel:         cfg.adminChannel,
	}, fetcher, reconciler, notifier, mysqlAdapter, notificationSink)

	// Start sender workers
	var wg sync.WaitGroup
	for i := 0; i < cfg.senderCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			service.SenderLoop(id, notifier.Queue(), notificationSink)
		}(i)
	}
	log.Printf("started %d senders", cfg.senderCount)

	// Start poll loop
	pollerDone := make(chan struct{})
	go func() {
		defer close(pollerDone)
		poller.Run(ctx)
	}()

	// Initialize HTTP server for the command webhook
	httpHandler := handler.NewHTTPHandler(service.NewCommandService(mysqlAdapter, mysqlAdapter))
	mux := http.NewServeMux()
	mux.HandleFunc("/health", httpHandler.HealthCheck)
	mux.HandleFunc("/api/commands", httpHandler.Command)

	httpServer := &http.Server{
		Addr:    cfg.httpAddr,
		Handler: mux,
	}

	go func() {
		log.Printf("HTTP server listening on %s", cfg.httpAddr)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	log.Println("HTTP server stopped")

	// Let an in-flight cycle finish its persistence before closing the queue.
	cancel()
	<-pollerDone
	log.Println("poller stopped")

	notifier.Close()
	wg.Wait()
	log.Println("senders stopped")

	rdb.Close()
	db.Close()
	log.Println("connections closed")
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDur(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
