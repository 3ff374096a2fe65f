package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/olivierola/e-com-backend/pkg/kafka"
	"github.com/olivierola/e-com-backend/pkg/logging"
	"github.com/olivierola/e-com-backend/pkg/metrics"
	"github.com/olivierola/e-com-backend/pkg/outbox"
)

type cfg struct {
	Port         string
	DatabaseURL  string
	KafkaBrokers string
	PollInterval time.Duration
	BatchSize    int
}

func readCfg() (cfg, error) {
	db := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if db == "" {
		return cfg{}, errors.New("DATABASE_URL is required")
	}
	interval, err := time.ParseDuration(getenv("POLL_INTERVAL", "1s"))
	if err != nil {
		return cfg{}, err
	}
	return cfg{
		Port:         getenv("PORT", "8081"),
		DatabaseURL:  db,
		KafkaBrokers: getenv("KAFKA_BROKERS", ""),
		PollInterval: interval,
		BatchSize:    100,
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

	relay := &relay{
		pool:    pool,
		client:  kafka.NewClient(cfg.KafkaBrokers),
		writers: map[string]*kafkago.Writer{},
		batch:   cfg.BatchSize,
	}
	go relay.run(context.Background(), cfg.PollInterval)

	srvMetrics := metrics.NewServerMetrics("notification_relay")
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		code := http.StatusOK
		body := map[string]any{"status": "ok"}
		if err := pool.Ping(r.Context()); err != nil {
			code = http.StatusServiceUnavailable
			body = map[string]any{"status": "db_error"}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(body)
		srvMetrics.Requests.WithLabelValues("health", strconv.Itoa(code)).Inc()
		srvMetrics.LatencyMS.WithLabelValues("health").Observe(float64(time.Since(start).Milliseconds()))
	})
	mux.Handle("GET /metrics", metrics.Handler())

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	log.Printf("notification-relay listening on :%s", cfg.Port)
	log.Fatal(srv.ListenAndServe())
}

type relay struct {
	pool    *pgxpool.Pool
	client  *kafka.Client
	writers map[string]*kafkago.Writer
	batch   int
}

func (r *relay) run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.drain(ctx); err != nil {
				logging.Log(logging.Fields{
					Service: "notification-relay",
					Step:    "drain",
					Status:  "error",
					Message: err.Error(),
				})
			}
		}
	}
}

// drain publishes pending outbox rows in insertion order and marks each
// one sent only after the broker accepted it. A failed publish stops the
// batch so ordering per key is preserved.
func (r *relay) drain(ctx context.Context) error {
	records, err := outbox.FetchPending(ctx, r.pool, r.batch)
	if err != nil {
		return err
	}
	for _, rec := range records {
		if err := r.publish(ctx, rec); err != nil {
			return err
		}
		if err := outbox.MarkSent(ctx, r.pool, rec.ID); err != nil {
			return err
		}
		logging.Log(logging.Fields{
			Service: "notification-relay",
			EventID: rec.EventID,
			Step:    "publish",
			Status:  "sent",
			Message: rec.Topic,
		})
	}
	return nil
}

func (r *relay) publish(ctx context.Context, rec outbox.Record) error {
	if !r.client.Enabled() {
		// No broker configured: the per-record log in drain is the
		// only delivery channel.
		return nil
	}
	w, ok := r.writers[rec.Topic]
	if !ok {
		w = r.client.NewWriter(rec.Topic)
		r.writers[rec.Topic] = w
	}
	return kafka.PublishJSON(ctx, w, rec.Key, json.RawMessage(rec.Payload))
}

func getenv(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}
