package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/pari-mutuel-escrow/internal/audit-worker/cache"
	"github.com/radieske/pari-mutuel-escrow/internal/audit-worker/consumer"
	"github.com/radieske/pari-mutuel-escrow/internal/audit-worker/repository"
	sharedcache "github.com/radieske/pari-mutuel-escrow/internal/shared/cache"
	"github.com/radieske/pari-mutuel-escrow/internal/shared/config"
	"github.com/radieske/pari-mutuel-escrow/internal/shared/db"
	"github.com/radieske/pari-mutuel-escrow/internal/shared/kafka"
	"github.com/radieske/pari-mutuel-escrow/internal/shared/logger"
	"github.com/radieske/pari-mutuel-escrow/internal/shared/metrics"
)

func main() {
	cfg := config.LoadFor("audit-worker")
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Inicializa dependências: Postgres e Redis
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()
	if err := db.Migrate(pg); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}

	redisClient, err := sharedcache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()

	// consumer group próprio: cada worker recebe uma fatia das partições
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicGameEvents, "audit-worker")
	defer reader.Close()
	dlq := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicGameEventsDLQ)
	defer dlq.Close()

	// Métricas Prometheus por estágio
	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "audit_messages_consumed_total", Help: "mensagens consumidas"})
	cached := prometheus.NewCounter(prometheus.CounterOpts{Name: "audit_cache_sets_total", Help: "sets no cache"})
	persist := prometheus.NewCounter(prometheus.CounterOpts{Name: "audit_db_writes_total", Help: "eventos gravados"})
	deadLettered := prometheus.NewCounter(prometheus.CounterOpts{Name: "audit_dlq_total", Help: "mensagens enviadas para a DLQ"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "audit_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(consumed, cached, persist, deadLettered, errorsBy)

	proc := &consumer.Processor{
		Log:        log,
		Reader:     reader,
		Store:      repository.NewPostgresRepo(pg),
		Cache:      cache.NewRedisCache(redisClient, 24*time.Hour),
		DLQ:        dlq,
		OnConsumed: func() { consumed.Inc() },
		OnCached:   func() { cached.Inc() },
		OnPersist:  func() { persist.Inc() },
		OnDLQ:      func() { deadLettered.Inc() },
		OnError:    func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	metricsSrv := metrics.StartMetricsServer(log, cfg.MetricsPort, map[string]metrics.HealthFunc{
		"postgres": pg.PingContext,
		"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	})
	defer metricsSrv.Close()

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("audit-worker started", zap.String("topic", cfg.TopicGameEvents))
	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("processor stopped with error", zap.Error(err))
	}
	log.Info("audit-worker stopped")
}
