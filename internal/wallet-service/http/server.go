package http

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"

	"go.uber.org/zap"

	"github.com/radieske/pari-mutuel-escrow/internal/escrow"
	"github.com/radieske/pari-mutuel-escrow/internal/shared/auth"
	"github.com/radieske/pari-mutuel-escrow/internal/wallet-service/dto"
	"github.com/radieske/pari-mutuel-escrow/internal/wallet-service/repo"
)

// Repo define as operações de carteira usadas pelo handler HTTP
type Repo interface {
	Balance(ctx context.Context, asset, account string) (*big.Int, error)
	Deposit(ctx context.Context, asset, account string, amount *big.Int, ref string) (*big.Int, error)
	Pull(ctx context.Context, asset, from string, amount *big.Int, ref string) error
	Push(ctx context.Context, asset, to string, amount *big.Int, ref string) error
	PushBatch(ctx context.Context, asset string, transfers []escrow.Transfer) error
	Revert(ctx context.Context, asset, ref string) error
}

// ServiceAuth define quem move saldo: token HS256 assinado com Secret e "sub" em Services
type ServiceAuth struct {
	Secret   string
	Services []string
}

// Server expõe o ledger de ativos por HTTP para o escrow-service
type Server struct {
	log  *zap.Logger
	repo Repo
	auth ServiceAuth
}

func NewServer(log *zap.Logger, repo Repo, sa ServiceAuth) *Server {
	return &Server{log: log, repo: repo, auth: sa}
}

// Router retorna o mux HTTP com as rotas da API de wallet.
// Só a consulta de saldo é pública; as rotas que movem saldo exigem um serviço autorizado.
func (s *Server) Router() http.Handler {
	guard := func(h http.HandlerFunc) http.Handler {
		return auth.Middleware(s.auth.Secret)(auth.RequireSubject(s.auth.Services...)(h))
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /wallet", s.getWallet) // ?account=...&asset=...
	mux.Handle("POST /wallet/deposit", guard(s.deposit))
	mux.Handle("POST /wallet/pull", guard(s.pull))
	mux.Handle("POST /wallet/push", guard(s.push))
	mux.Handle("POST /wallet/push-batch", guard(s.pushBatch))
	mux.Handle("POST /wallet/revert", guard(s.revert))
	return mux
}

func (s *Server) getWallet(w http.ResponseWriter, r *http.Request) {
	account, asset := r.URL.Query().Get("account"), r.URL.Query().Get("asset")
	if account == "" || asset == "" {
		writeError(w, http.StatusBadRequest, "account and asset required")
		return
	}
	bal, err := s.repo.Balance(r.Context(), asset, account)
	if err != nil {
		s.fail(w, "balance", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.WalletResponse{Account: account, Asset: asset, Balance: bal.String()})
}

func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	var req dto.DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	amount, ok := parseAmount(req.Amount)
	if req.Account == "" || req.Asset == "" || !ok {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	bal, err := s.repo.Deposit(r.Context(), req.Asset, req.Account, amount, req.ExternalRef)
	if err != nil {
		s.fail(w, "deposit", err)
		return
	}
	s.log.Info("deposit", zap.String("account", req.Account), zap.String("asset", req.Asset), zap.Stringer("amount", amount))
	writeJSON(w, http.StatusOK, dto.WalletResponse{Account: req.Account, Asset: req.Asset, Balance: bal.String()})
}

func (s *Server) pull(w http.ResponseWriter, r *http.Request) {
	s.transfer(w, r, "pull", s.repo.Pull)
}

func (s *Server) push(w http.ResponseWriter, r *http.Request) {
	s.transfer(w, r, "push", s.repo.Push)
}

func (s *Server) transfer(w http.ResponseWriter, r *http.Request, op string,
	fn func(ctx context.Context, asset, account string, amount *big.Int, ref string) error) {
	var req dto.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	amount, ok := parseAmount(req.Amount)
	if req.Account == "" || req.Asset == "" || req.ExternalRef == "" || !ok {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := fn(r.Context(), req.Asset, req.Account, amount, req.ExternalRef); err != nil {
		s.fail(w, op, err, zap.String("ref", req.ExternalRef))
		return
	}
	writeJSON(w, http.StatusOK, dto.StatusResponse{Status: "OK"})
}

func (s *Server) pushBatch(w http.ResponseWriter, r *http.Request) {
	var req dto.PushBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if req.Asset == "" {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	transfers := make([]escrow.Transfer, 0, len(req.Transfers))
	for _, t := range req.Transfers {
		amount, ok := parseAmount(t.Amount)
		if t.Account == "" || t.ExternalRef == "" || !ok {
			writeError(w, http.StatusBadRequest, "invalid transfer")
			return
		}
		transfers = append(transfers, escrow.Transfer{Account: t.Account, Amount: amount, Ref: t.ExternalRef})
	}
	if err := s.repo.PushBatch(r.Context(), req.Asset, transfers); err != nil {
		s.fail(w, "push_batch", err, zap.Int("transfers", len(transfers)))
		return
	}
	writeJSON(w, http.StatusOK, dto.StatusResponse{Status: "OK"})
}

func (s *Server) revert(w http.ResponseWriter, r *http.Request) {
	var req dto.RevertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if req.Asset == "" || req.ExternalRef == "" {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := s.repo.Revert(r.Context(), req.Asset, req.ExternalRef); err != nil {
		s.fail(w, "revert", err, zap.String("ref", req.ExternalRef))
		return
	}
	s.log.Info("transfer reverted", zap.String("ref", req.ExternalRef), zap.String("caller", auth.CallerFrom(r.Context())))
	writeJSON(w, http.StatusOK, dto.StatusResponse{Status: "OK"})
}

func (s *Server) fail(w http.ResponseWriter, op string, err error, fields ...zap.Field) {
	fields = append(fields, zap.String("op", op), zap.Error(err))
	switch {
	case errors.Is(err, escrow.ErrInsufficientFunds):
		s.log.Warn("wallet op rejected", fields...)
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, escrow.ErrNotReversible):
		s.log.Warn("wallet op rejected", fields...)
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, repo.ErrInvalidAmount), errors.Is(err, escrow.ErrSameAccount):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Error("wallet op failed", fields...)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func parseAmount(s string) (*big.Int, bool) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() <= 0 {
		return nil, false
	}
	return v, true
}

// writeJSON serializa e envia resposta JSON
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, dto.ErrorResponse{Error: msg})
}
