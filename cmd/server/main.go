package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"store_manager/internal/cart"
	"store_manager/internal/config"
	"store_manager/internal/dashboard"
	"store_manager/internal/identity"
	"store_manager/internal/queue"
	"store_manager/internal/receipt"
	"store_manager/internal/report"
	"store_manager/internal/router"
	"store_manager/internal/store"
	rediskey "store_manager/pkg/redis"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. 数据库，自动建表
	db, err := store.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		log.Fatalf("%v", err)
	}
	st, err := store.New(db)
	if err != nil {
		log.Fatalf("%v", err)
	}

	// 2. Redis：会话、限流、结账锁、事件 outbox
	var rdb *rd.Client
	if cfg.NeedsRedis() {
		rdb = rd.NewClient(&rd.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("redis ping: %v", err)
		}
		defer rdb.Close()
	}

	var sessions identity.SessionStore = identity.NewMemorySessions()
	if cfg.SessionBackend == "redis" {
		sessions = rediskey.NewSessions(rdb)
	}

	// 3. 事件链路：outbox(Stream) -> Relay -> Kafka -> 低库存告警
	var outbox *queue.Outbox
	if cfg.EventsEnabled {
		outbox = queue.NewOutbox(rdb, cfg.SaleEventStream)

		producer := queue.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
		relay := queue.NewRelay(rdb, producer, cfg.SaleEventStream, cfg.SaleEventGroup, cfg.SaleEventConsumer)
		go relay.Run(ctx)

		consumer := queue.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, st)
		defer consumer.Close()
		go consumer.Run(ctx)
	}

	renderer, err := receipt.NewRenderer(cfg.ReceiptLocale)
	if err != nil {
		log.Fatalf("%v", err)
	}

	carts := cart.NewRegistry()
	go carts.RunSweeper(ctx, time.Hour, cfg.SessionTTL)

	r := gin.Default()
	router.Setup(r, router.Deps{
		Store:     st,
		Identity:  identity.NewService(db, sessions, cfg.SessionTTL),
		Carts:     carts,
		Dashboard: dashboard.NewAggregator(st, cfg.DashboardWindow),
		Reports:   report.NewBuilder(st),
		Receipts:  renderer,
		PDF:       &receipt.PDFPrinter{Bin: cfg.BrowserBin},
		Redis:     rdb,
		Outbox:    outbox,
		Config:    cfg,
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http serve: %v", err)
		}
	}()
	log.Printf("store manager listening on %s (db=%s, sessions=%s, events=%v)",
		cfg.HTTPAddr, cfg.DBDriver, cfg.SessionBackend, cfg.EventsEnabled)

	<-ctx.Done()
	log.Printf("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
}
