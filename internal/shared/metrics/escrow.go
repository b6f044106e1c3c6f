package metrics

import (
	"errors"
	"math/big"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/radieske/pari-mutuel-escrow/internal/escrow"
)

// Escrow agrupa as métricas do motor de apostas
type Escrow struct {
	GamesCreated prometheus.Counter
	BetsPlaced   *prometheus.CounterVec // por ativo
	StakeVolume  *prometheus.CounterVec // soma apostada (float, só para painel)
	BetsClosed   prometheus.Counter
	Settlements  *prometheus.CounterVec // por desfecho: paid | no_winner | refunded
	Payouts      prometheus.Counter
	Errors       *prometheus.CounterVec // por operação e tipo
}

// NewEscrow cria e registra as métricas no registerer informado
func NewEscrow(reg prometheus.Registerer) *Escrow {
	m := &Escrow{
		GamesCreated: prometheus.NewCounter(prometheus.CounterOpts{Name: "escrow_games_created_total", Help: "jogos registrados"}),
		BetsPlaced:   prometheus.NewCounterVec(prometheus.CounterOpts{Name: "escrow_bets_placed_total", Help: "apostas aceitas"}, []string{"asset"}),
		StakeVolume:  prometheus.NewCounterVec(prometheus.CounterOpts{Name: "escrow_stake_volume_total", Help: "volume apostado na menor unidade"}, []string{"asset"}),
		BetsClosed:   prometheus.NewCounter(prometheus.CounterOpts{Name: "escrow_bets_closed_total", Help: "jogos fechados para apostas"}),
		Settlements:  prometheus.NewCounterVec(prometheus.CounterOpts{Name: "escrow_settlements_total", Help: "liquidações concluídas"}, []string{"kind"}),
		Payouts:      prometheus.NewCounter(prometheus.CounterOpts{Name: "escrow_payouts_total", Help: "repasses efetuados"}),
		Errors:       prometheus.NewCounterVec(prometheus.CounterOpts{Name: "escrow_errors_total", Help: "operações rejeitadas"}, []string{"op", "kind"}),
	}
	reg.MustRegister(m.GamesCreated, m.BetsPlaced, m.StakeVolume, m.BetsClosed, m.Settlements, m.Payouts, m.Errors)
	return m
}

// Hooks conecta as métricas aos callbacks do serviço
func (m *Escrow) Hooks() escrow.Hooks {
	return escrow.Hooks{
		OnGameCreated: func() { m.GamesCreated.Inc() },
		OnBetPlaced: func(asset string, amount *big.Int) {
			m.BetsPlaced.WithLabelValues(asset).Inc()
			f, _ := new(big.Float).SetInt(amount).Float64()
			m.StakeVolume.WithLabelValues(asset).Add(f)
		},
		OnBetsClosed: func() { m.BetsClosed.Inc() },
		OnSettled: func(st *escrow.Settlement) {
			kind := "paid"
			switch {
			case st.Refunded:
				kind = "refunded"
			case st.WinningPool.Sign() == 0:
				kind = "no_winner"
			}
			m.Settlements.WithLabelValues(kind).Inc()
			m.Payouts.Add(float64(len(st.Payouts)))
		},
		OnError: func(op string, err error) { m.Errors.WithLabelValues(op, ErrorKind(err)).Inc() },
	}
}

// ErrorKind reduz o erro a um rótulo de baixa cardinalidade
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, escrow.ErrNotFound):
		return "not_found"
	case errors.Is(err, escrow.ErrDuplicateGame):
		return "duplicate_game"
	case errors.Is(err, escrow.ErrForbidden):
		return "forbidden"
	case errors.Is(err, escrow.ErrInvalidOutcome):
		return "invalid_outcome"
	case errors.Is(err, escrow.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, escrow.ErrNotOpen):
		return "not_open"
	case errors.Is(err, escrow.ErrNotClosed):
		return "not_closed"
	case errors.Is(err, escrow.ErrNotSettled):
		return "not_settled"
	case errors.Is(err, escrow.ErrTransferFailed):
		return "transfer_failed"
	default:
		return "internal"
	}
}
