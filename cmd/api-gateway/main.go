package main

import (
	"net/http"
	"net/http/httputil"
	"net/url"

	"go.uber.org/zap"

	"github.com/radieske/pari-mutuel-escrow/internal/shared/config"
	"github.com/radieske/pari-mutuel-escrow/internal/shared/logger"
)

func rp(to string) (*httputil.ReverseProxy, error) {
	u, err := url.Parse(to)
	if err != nil {
		return nil, err
	}
	return httputil.NewSingleHostReverseProxy(u), nil
}

func main() {
	cfg := config.LoadFor("api-gateway")
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	h, err := newGateway(cfg.EscrowURL, cfg.WalletURL)
	if err != nil {
		log.Fatal("gateway targets", zap.Error(err))
	}

	addr := ":" + cfg.HTTPPort
	log.Info("api-gateway listening", zap.String("addr", addr),
		zap.String("escrow", cfg.EscrowURL), zap.String("wallet", cfg.WalletURL))
	if err := http.ListenAndServe(addr, h); err != nil && err != http.ErrServerClosed {
		log.Fatal("gateway failed", zap.Error(err))
	}
}

// newGateway monta o roteamento: /api/escrow/* -> escrow-service e, do wallet-service,
// só a consulta de saldo. As rotas que movem saldo são internas ao escrow-service.
func newGateway(escrowURL, walletURL string) (http.Handler, error) {
	escrowProxy, err := rp(escrowURL)
	if err != nil {
		return nil, err
	}
	walletProxy, err := rp(walletURL)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/api/escrow/", http.StripPrefix("/api/escrow", escrowProxy))
	mux.Handle("GET /api/wallet/wallet", http.StripPrefix("/api/wallet", walletProxy))
	return withCORS(mux), nil
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}
