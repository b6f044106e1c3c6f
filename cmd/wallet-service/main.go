package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/pari-mutuel-escrow/internal/shared/config"
	"github.com/radieske/pari-mutuel-escrow/internal/shared/db"
	"github.com/radieske/pari-mutuel-escrow/internal/shared/logger"
	"github.com/radieske/pari-mutuel-escrow/internal/shared/metrics"
	whttp "github.com/radieske/pari-mutuel-escrow/internal/wallet-service/http"
	wrepo "github.com/radieske/pari-mutuel-escrow/internal/wallet-service/repo"
)

func main() {
	cfg := config.LoadFor("wallet-service")

	// Inicializa logger estruturado
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("starting service", zap.String("service", cfg.ServiceName), zap.String("env", cfg.Env))

	// Conexão com Postgres para operações de carteira
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()
	if err := db.Migrate(pg); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}

	// Instancia repositório e servidor HTTP da wallet; só serviços autorizados movem saldo
	if cfg.WalletJWTSecret == "" || len(cfg.WalletServices) == 0 {
		log.Fatal("wallet service credentials not configured")
	}
	api := whttp.NewServer(log, wrepo.NewPostgres(pg), whttp.ServiceAuth{
		Secret:   cfg.WalletJWTSecret,
		Services: cfg.WalletServices,
	})
	apiSrv := &http.Server{
		Addr:    ":" + cfg.HTTPPort, // ex: 8082
		Handler: api.Router(),
	}

	// Servidor de métricas e health check
	metricsSrv := metrics.StartMetricsServer(log, cfg.MetricsPort, map[string]metrics.HealthFunc{
		"postgres": pg.PingContext,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		log.Info("api listening", zap.String("addr", apiSrv.Addr))
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("api srv", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	_ = apiSrv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
}
