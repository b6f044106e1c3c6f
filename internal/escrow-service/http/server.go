package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/radieske/pari-mutuel-escrow/internal/escrow"
	"github.com/radieske/pari-mutuel-escrow/internal/escrow-service/dto"
	"github.com/radieske/pari-mutuel-escrow/internal/shared/auth"
)

// GameCache é o cache de leitura dos jogos (Redis em produção).
// Set recebe a versão do jogo lida do store para não gravar uma visão superada.
type GameCache interface {
	Get(ctx context.Context, gameID string, dst any) (bool, error)
	Set(ctx context.Context, gameID string, version int64, v any) error
}

// API expõe o registro de jogos e o motor de escrow.
// O chamador vem do JWT (claim "sub"); leituras são públicas.
type API struct {
	Log       *zap.Logger
	Svc       *escrow.Service
	Cache     GameCache          // opcional
	Single    *escrow.SingleGame // opcional, habilita /v1/game/*
	JWTSecret string
	WS        http.HandlerFunc // opcional, /v1/ws
}

// idResolver extrai o jogo alvo da requisição
type idResolver func(r *http.Request) (escrow.GameID, error)

var errBadGameID = errors.New("invalid game id")

// Router retorna o roteador HTTP com os endpoints REST
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(auth.Middleware(a.JWTSecret))

	r.Get("/v1/game-id", a.computeGameID)
	r.Get("/v1/games", a.listGames)
	r.With(auth.Require).Post("/v1/games", a.createGame)

	byParam := func(r *http.Request) (escrow.GameID, error) {
		id, err := escrow.ParseGameID(chi.URLParam(r, "id"))
		if err != nil {
			return escrow.GameID{}, errBadGameID
		}
		return id, nil
	}
	r.Route("/v1/games/{id}", func(r chi.Router) { a.gameRoutes(r, byParam) })

	if a.Single != nil {
		fixed := func(*http.Request) (escrow.GameID, error) { return a.Single.ID(), nil }
		r.Route("/v1/game", func(r chi.Router) { a.gameRoutes(r, fixed) })
	}
	if a.WS != nil {
		r.Get("/v1/ws", a.WS)
	}
	return r
}

func (a *API) gameRoutes(r chi.Router, id idResolver) {
	r.Get("/", a.getGame(id))
	r.Get("/open", a.isOpen(id))
	r.Post("/bets", a.placeBet(id))
	r.Post("/close", a.closeBets(id))
	r.Post("/result", a.setResult(id))
	r.Get("/result", a.getResult(id))
}

func (a *API) computeGameID(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	id := a.Svc.ComputeGameID(q.Get("teamA"), q.Get("teamB"), q.Get("date"), q.Get("asset"))
	writeJSON(w, http.StatusOK, dto.GameIDResponse{ID: id.String()})
}

func (a *API) createGame(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad json"})
		return
	}
	if req.TeamA == "" || req.TeamB == "" || req.Date == "" || req.Asset == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "teamA, teamB, date and asset required"})
		return
	}
	id, err := a.Svc.CreateGame(r.Context(), req.TeamA, req.TeamB, req.Date, req.Asset, auth.CallerFrom(r.Context()))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.GameIDResponse{ID: id.String()})
}

func (a *API) listGames(w http.ResponseWriter, r *http.Request) {
	games, err := a.Svc.ListGames(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}
	out := make([]dto.GameView, 0, len(games))
	for _, g := range games {
		out = append(out, dto.NewGameView(g))
	}
	writeJSON(w, http.StatusOK, out)
}

// getGame responde do cache quando possível
func (a *API) getGame(resolve idResolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := resolve(r)
		if err != nil {
			a.writeError(w, err)
			return
		}
		if a.Cache != nil {
			var cached dto.GameView
			if ok, _ := a.Cache.Get(r.Context(), id.String(), &cached); ok {
				writeJSON(w, http.StatusOK, cached)
				return
			}
		}

		g, err := a.Svc.GetGame(r.Context(), id)
		if err != nil {
			a.writeError(w, err)
			return
		}
		view := dto.NewGameView(g)
		if a.Cache != nil {
			if err := a.Cache.Set(r.Context(), id.String(), view.Version, view); err != nil {
				a.Log.Warn("cache set failed", zap.Stringer("game_id", id), zap.Error(err))
			}
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func (a *API) isOpen(resolve idResolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := resolve(r)
		if err != nil {
			a.writeError(w, err)
			return
		}
		open, err := a.Svc.IsOpen(r.Context(), id)
		if err != nil {
			a.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, dto.OpenResponse{ID: id.String(), Open: open})
	}
}

func (a *API) placeBet(resolve idResolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := resolve(r)
		if err != nil {
			a.writeError(w, err)
			return
		}
		var req dto.PlaceBetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad json"})
			return
		}
		// valores inválidos seguem adiante para o motor rejeitar na ordem de validação dele
		amount, _ := new(big.Int).SetString(req.Amount, 10)
		bet, err := a.Svc.PlaceBet(r.Context(), id, toOutcome(req.Outcome), amount, auth.CallerFrom(r.Context()))
		if err != nil {
			a.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, dto.NewBetView(*bet))
	}
}

func (a *API) closeBets(resolve idResolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := resolve(r)
		if err != nil {
			a.writeError(w, err)
			return
		}
		if err := a.Svc.CloseBets(r.Context(), id, auth.CallerFrom(r.Context())); err != nil {
			a.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, dto.StateResponse{ID: id.String(), State: string(escrow.StateClosed)})
	}
}

func (a *API) setResult(resolve idResolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := resolve(r)
		if err != nil {
			a.writeError(w, err)
			return
		}
		var req dto.SetResultRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad json"})
			return
		}
		st, err := a.Svc.SetResult(r.Context(), id, toOutcome(req.Outcome), auth.CallerFrom(r.Context()))
		if err != nil {
			a.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, dto.NewSettlementView(st))
	}
}

func (a *API) getResult(resolve idResolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := resolve(r)
		if err != nil {
			a.writeError(w, err)
			return
		}
		res, err := a.Svc.GetResult(r.Context(), id, auth.CallerFrom(r.Context()))
		if err != nil {
			a.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, dto.ResultResponse{ID: id.String(), Result: int(res)})
	}
}

// toOutcome evita que valores fora de uint8 virem um resultado válido na conversão
func toOutcome(v int) escrow.Outcome {
	if v < 0 || v >= escrow.NumOutcomes {
		return escrow.NumOutcomes
	}
	return escrow.Outcome(v)
}

// StatusFor mapeia os erros do motor para status HTTP
func StatusFor(err error) int {
	switch {
	case errors.Is(err, errBadGameID):
		return http.StatusBadRequest
	case errors.Is(err, escrow.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, escrow.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, escrow.ErrInvalidOutcome), errors.Is(err, escrow.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, escrow.ErrDuplicateGame),
		errors.Is(err, escrow.ErrNotOpen),
		errors.Is(err, escrow.ErrNotClosed),
		errors.Is(err, escrow.ErrNotSettled):
		return http.StatusConflict
	case errors.Is(err, escrow.ErrTransferFailed):
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) writeError(w http.ResponseWriter, err error) {
	code := StatusFor(err)
	if code == http.StatusInternalServerError {
		a.Log.Error("request failed", zap.Error(err))
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

// writeJSON serializa a resposta em JSON e define o status HTTP
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
