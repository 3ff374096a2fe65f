package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/olivierola/e-com-backend/internal/cart"
	"github.com/olivierola/e-com-backend/internal/catalog"
	"github.com/olivierola/e-com-backend/internal/notify"
	"github.com/olivierola/e-com-backend/internal/order"
	"github.com/olivierola/e-com-backend/internal/report"
	"github.com/olivierola/e-com-backend/internal/store/postgres"
	"github.com/olivierola/e-com-backend/pkg/contracts"
	"github.com/olivierola/e-com-backend/pkg/metrics"
)

type cfg struct {
	Port        string
	DatabaseURL string
	RedisAddr   string
}

func readCfg() (cfg, error) {
	db := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if db == "" {
		return cfg{}, errors.New("DATABASE_URL is required")
	}
	return cfg{
		Port:        getenv("PORT", "8080"),
		DatabaseURL: db,
		RedisAddr:   getenv("REDIS_ADDR", ""),
	}, nil
}

func main() {
	cfg, err := readCfg()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect error: %v", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("db ping error: %v", err)
	}

	var productCache catalog.Cache
	if cfg.RedisAddr != "" {
		productCache = &catalog.RedisCache{Client: redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})}
	}

	store := postgres.NewStore(pool)
	notifier := &notify.OutboxNotifier{Pool: pool, Topic: contracts.TopicNotifications}

	app := &application{
		orders:  order.NewService(store, notifier),
		carts:   cart.NewService(store),
		catalog: catalog.NewService(store, productCache),
		reports: report.NewService(pool),
		metrics: metrics.NewServerMetrics("order_service"),
		pool:    pool,
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Printf("order-service listening on :%s", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("http server error: %v", err)
	}
}

func getenv(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}
