package dto

import (
	"time"

	"github.com/radieske/pari-mutuel-escrow/internal/escrow"
)

// Valores monetários trafegam como string decimal na menor unidade do ativo,
// para não perder precisão em clientes JSON com float64.

type CreateGameRequest struct {
	TeamA string `json:"teamA"`
	TeamB string `json:"teamB"`
	Date  string `json:"date"`
	Asset string `json:"asset"`
}

type PlaceBetRequest struct {
	Outcome int    `json:"outcome"` // 0 = teamA, 1 = empate, 2 = teamB
	Amount  string `json:"amount"`
}

type SetResultRequest struct {
	Outcome int `json:"outcome"`
}

type GameIDResponse struct {
	ID string `json:"id"`
}

type OpenResponse struct {
	ID   string `json:"id"`
	Open bool   `json:"open"`
}

type StateResponse struct {
	ID    string `json:"id"`
	State string `json:"state"`
}

type ResultResponse struct {
	ID     string `json:"id"`
	Result int    `json:"result"`
}

type BetView struct {
	ID       string    `json:"id"`
	Seq      int       `json:"seq"`
	Bettor   string    `json:"bettor"`
	Outcome  int       `json:"outcome"`
	Amount   string    `json:"amount"`
	PlacedAt time.Time `json:"placedAt"`
}

type PayoutView struct {
	BetID     string `json:"betId"`
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

type GameView struct {
	ID        string       `json:"id"`
	TeamA     string       `json:"teamA"`
	TeamB     string       `json:"teamB"`
	Date      string       `json:"date"`
	Asset     string       `json:"asset"`
	Registrar string       `json:"registrar"`
	State     string       `json:"state"`
	Version   int64        `json:"version"`
	Result    *int         `json:"result,omitempty"`
	Stakes    []string     `json:"stakes"`
	TotalPool string       `json:"totalPool"`
	Escrow    string       `json:"escrow"`
	Bets      []BetView    `json:"bets"`
	Payouts   []PayoutView `json:"payouts,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	ClosedAt  *time.Time   `json:"closedAt,omitempty"`
	SettledAt *time.Time   `json:"settledAt,omitempty"`
}

type SettlementView struct {
	GameID      string       `json:"gameId"`
	Result      int          `json:"result"`
	TotalPool   string       `json:"totalPool"`
	WinningPool string       `json:"winningPool"`
	NetJackpot  string       `json:"netJackpot"`
	Paid        string       `json:"paid"`
	Retained    string       `json:"retained"`
	Refunded    bool         `json:"refunded"`
	Payouts     []PayoutView `json:"payouts"`
}

func NewBetView(b escrow.Bet) BetView {
	return BetView{
		ID:       b.ID,
		Seq:      b.Seq,
		Bettor:   b.Bettor,
		Outcome:  int(b.Outcome),
		Amount:   b.Amount.String(),
		PlacedAt: b.PlacedAt,
	}
}

func newPayoutViews(ps []escrow.Payout) []PayoutView {
	out := make([]PayoutView, 0, len(ps))
	for _, p := range ps {
		out = append(out, PayoutView{BetID: p.BetID, Recipient: p.Recipient, Amount: p.Amount.String()})
	}
	return out
}

func NewGameView(g *escrow.Game) GameView {
	v := GameView{
		ID:        g.ID.String(),
		TeamA:     g.TeamA,
		TeamB:     g.TeamB,
		Date:      g.Date,
		Asset:     g.Asset,
		Registrar: g.Registrar,
		State:     string(g.State),
		Version:   g.Version(),
		Stakes:    make([]string, 0, len(g.Stakes)),
		TotalPool: g.TotalPool().String(),
		Escrow:    g.Escrow.String(),
		Bets:      make([]BetView, 0, len(g.Bets)),
		CreatedAt: g.CreatedAt,
		ClosedAt:  g.ClosedAt,
		SettledAt: g.SettledAt,
	}
	if g.Result != nil {
		r := int(*g.Result)
		v.Result = &r
	}
	for _, s := range g.Stakes {
		v.Stakes = append(v.Stakes, s.String())
	}
	for _, b := range g.Bets {
		v.Bets = append(v.Bets, NewBetView(b))
	}
	if len(g.Payouts) > 0 {
		v.Payouts = newPayoutViews(g.Payouts)
	}
	return v
}

func NewSettlementView(st *escrow.Settlement) SettlementView {
	return SettlementView{
		GameID:      st.GameID.String(),
		Result:      int(st.Result),
		TotalPool:   st.TotalPool.String(),
		WinningPool: st.WinningPool.String(),
		NetJackpot:  st.NetJackpot.String(),
		Paid:        st.Paid.String(),
		Retained:    st.Retained.String(),
		Refunded:    st.Refunded,
		Payouts:     newPayoutViews(st.Payouts),
	}
}
