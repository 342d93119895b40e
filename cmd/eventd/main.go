package main

import (
	"context"
	"database/sql"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/technosupport/ts-nms/internal/api"
	"github.com/technosupport/ts-nms/internal/config"
	"github.com/technosupport/ts-nms/internal/data"
	"github.com/technosupport/ts-nms/internal/ingest"
	"github.com/technosupport/ts-nms/internal/logging"
	"github.com/technosupport/ts-nms/internal/metrics"
	"github.com/technosupport/ts-nms/internal/persist"
)

const serviceName = "ts-nms-eventd"

func main() {
	cfgPath := flag.String("config", "config/eventd.yaml", "config file path")
	flag.Parse()

	// 1. Config + Logger
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		panic(err)
	}
	log, logLevel, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Store
	db, err := sql.Open("postgres", cfg.ConnString())
	if err != nil {
		log.Fatal("db open failed", zap.Error(err))
	}
	if err := db.PingContext(ctx); err != nil {
		log.Fatal("db ping failed", zap.Error(err))
	}

	// 3. Engine
	rec := metrics.NewRecorder()
	writer := persist.NewWriter(db, persist.Config{
		SequenceName:      cfg.Engine.Sequence,
		DpName:            cfg.Engine.DpName,
		ResolverCacheSize: cfg.Engine.ResolverCacheSize,
	}, log, rec)
	defer writer.Close()

	// 4. Ingest: redis-backed redelivery guard (optional) + NATS consumer
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		defer rdb.Close()
	}
	dedup := ingest.NewDedup(rdb, cfg.Engine.DedupMaxKeys,
		time.Duration(cfg.Redis.DedupTTLSeconds)*time.Second, log)

	nc, err := nats.Connect(cfg.NATS.URL, nats.Name(serviceName))
	if err != nil {
		log.Fatal("nats connect failed", zap.Error(err))
	}
	defer nc.Close()

	consumer := ingest.NewConsumer(nc, cfg.NATS.Subject, cfg.NATS.Queue,
		cfg.NATS.Workers, writer, dedup, log, rec)
	if err := consumer.Start(ctx); err != nil {
		log.Fatal("consumer start failed", zap.Error(err))
	}

	// 5. Hot-tunable settings follow the config file
	config.Watch(ctx, *cfgPath, log, func(next *config.Config) {
		logLevel.SetLevel(logging.ParseLevel(next.Logging.Level))
	})

	// 6. Ops HTTP surface
	handler := &api.Handler{
		DB:      db,
		Alarms:  data.AlarmModel{DB: db},
		Metrics: rec.Handler(),
		Log:     log,
	}
	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: api.NewRouter(handler)}
	go func() {
		log.Info("ops server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("ops server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("ops server shutdown error", zap.Error(err))
	}
	consumer.Stop()
	log.Info("stopped")
}
