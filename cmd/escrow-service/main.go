package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/pari-mutuel-escrow/internal/escrow"
	"github.com/radieske/pari-mutuel-escrow/internal/escrow-service/cache"
	httpapi "github.com/radieske/pari-mutuel-escrow/internal/escrow-service/http"
	"github.com/radieske/pari-mutuel-escrow/internal/escrow-service/producer"
	"github.com/radieske/pari-mutuel-escrow/internal/escrow-service/pubsub"
	"github.com/radieske/pari-mutuel-escrow/internal/escrow-service/repo"
	"github.com/radieske/pari-mutuel-escrow/internal/escrow-service/wallet"
	"github.com/radieske/pari-mutuel-escrow/internal/escrow-service/ws"
	"github.com/radieske/pari-mutuel-escrow/internal/shared/auth"
	sharedcache "github.com/radieske/pari-mutuel-escrow/internal/shared/cache"
	"github.com/radieske/pari-mutuel-escrow/internal/shared/config"
	"github.com/radieske/pari-mutuel-escrow/internal/shared/db"
	"github.com/radieske/pari-mutuel-escrow/internal/shared/kafka"
	"github.com/radieske/pari-mutuel-escrow/internal/shared/logger"
	"github.com/radieske/pari-mutuel-escrow/internal/shared/metrics"
	walletrepo "github.com/radieske/pari-mutuel-escrow/internal/wallet-service/repo"
)

func main() {
	cfg := config.LoadFor("escrow-service")

	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()
	log.Info("starting service", zap.String("service", cfg.ServiceName), zap.String("env", cfg.Env))

	// Postgres: jogos, apostas e (no modo postgres) carteiras
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

	writer := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicGameEvents)
	defer writer.Close()

	ledger, err := newLedger(cfg, pg)
	if err != nil {
		log.Fatal("ledger", zap.Error(err))
	}
	log.Info("ledger ready", zap.String("mode", cfg.LedgerMode))

	// eventos: invalidação do cache de leitura, Redis Pub/Sub (ws) e Kafka (auditoria).
	// O cache vem primeiro: o write no Kafka pode bloquear até o timeout do writer.
	gameCache := cache.NewGameCache(redisClient, cfg.CacheTTL)
	publisher := producer.Fanout{
		gameCache,
		pubsub.NewRedisBroadcaster(redisClient, cfg.RedisPubSubChannel),
		producer.NewKafkaPublisher(writer),
	}

	m := metrics.NewEscrow(prometheus.DefaultRegisterer)
	svc, err := escrow.NewService(repo.NewPostgres(pg), ledger,
		escrow.WithLogger(log),
		escrow.WithPublisher(publisher),
		escrow.WithHooks(m.Hooks()),
		escrow.WithFeeBps(cfg.FeeBps),
		escrow.WithNoWinnerPolicy(escrow.NoWinnerPolicy(cfg.NoWinnerPolicy)),
	)
	if err != nil {
		log.Fatal("escrow service", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var single *escrow.SingleGame
	if cfg.SingleGame {
		single, err = escrow.NewSingleGame(ctx, svc,
			cfg.SingleGameTeamA, cfg.SingleGameTeamB, cfg.SingleGameDate, cfg.SingleGameAsset, cfg.SingleGameRegistrar)
		if err != nil {
			log.Fatal("single game", zap.Error(err))
		}
		log.Info("single game mode", zap.Stringer("game_id", single.ID()))
	}

	// WebSocket: todas as réplicas assinam o mesmo canal
	hub := ws.NewHub(func(*http.Request) bool { return true })
	ws.StartRedisSubscriber(ctx, log, redisClient, cfg.RedisPubSubChannel, hub)

	api := &httpapi.API{
		Log:       log,
		Svc:       svc,
		Cache:     gameCache,
		Single:    single,
		JWTSecret: cfg.JWTSecret,
		WS:        hub.HandleWS,
	}
	apiSrv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: api.Router(),
	}

	metricsSrv := metrics.StartMetricsServer(log, cfg.MetricsPort, map[string]metrics.HealthFunc{
		"postgres": pg.PingContext,
		"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	})

	go func() {
		log.Info("api listening", zap.String("addr", apiSrv.Addr))
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("api srv", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	_ = apiSrv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
}

// newLedger escolhe a implementação do ledger conforme LEDGER_MODE
func newLedger(cfg config.Config, pg *sql.DB) (escrow.Ledger, error) {
	switch cfg.LedgerMode {
	case "postgres":
		return walletrepo.NewPostgres(pg), nil
	case "http":
		// token de serviço sem expiração, reemitido a cada start
		tok, err := auth.Issue(cfg.WalletJWTSecret, cfg.ServiceName, 0)
		if err != nil {
			return nil, fmt.Errorf("wallet service token: %w", err)
		}
		return wallet.New(cfg.WalletURL, tok), nil
	case "memory":
		return escrow.NewMemoryLedger(), nil
	default:
		return nil, fmt.Errorf("unknown ledger mode %q", cfg.LedgerMode)
	}
}
