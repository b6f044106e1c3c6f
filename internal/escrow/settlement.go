package escrow

import (
	"math/big"
)

// FeeDenominator é a base das taxas em basis points
const FeeDenominator = 10000

// DefaultFeeBps é a taxa da plataforma: 3% do pool fica retido
const DefaultFeeBps = 300

// NoWinnerPolicy define o destino do pool quando ninguém apostou no resultado
type NoWinnerPolicy string

const (
	// NoWinnerRetain mantém todo o pool no escrow, sem pagamentos
	NoWinnerRetain NoWinnerPolicy = "retain"
	// NoWinnerRefund devolve integralmente cada aposta, sem taxa
	NoWinnerRefund NoWinnerPolicy = "refund"
)

// Settlement descreve a liquidação calculada para um jogo
type Settlement struct {
	GameID      GameID   `json:"gameId"`
	Result      Outcome  `json:"result"`
	TotalPool   *big.Int `json:"totalPool"`
	WinningPool *big.Int `json:"winningPool"`
	NetJackpot  *big.Int `json:"netJackpot"`
	Payouts     []Payout `json:"payouts"`
	Paid        *big.Int `json:"paid"`
	Retained    *big.Int `json:"retained"`
	Refunded    bool     `json:"refunded"`
}

// ComputeSettlement calcula o rateio pari-mutuel sem efeitos colaterais.
//
// payout = amount * total * (10000 - feeBps) / (winning * 10000)
//
// Multiplica antes de dividir e arredonda para baixo em cada aposta; a sobra
// de arredondamento fica retida junto com a taxa. Apostas vencedoras são
// pagas na ordem em que foram feitas.
func ComputeSettlement(g *Game, result Outcome, feeBps int64, policy NoWinnerPolicy) *Settlement {
	total := g.TotalPool()
	winning := new(big.Int).Set(g.Stakes[result])

	net := new(big.Int).Mul(total, big.NewInt(FeeDenominator-feeBps))
	net.Quo(net, big.NewInt(FeeDenominator))

	st := &Settlement{
		GameID:      g.ID,
		Result:      result,
		TotalPool:   total,
		WinningPool: winning,
		NetJackpot:  net,
		Payouts:     []Payout{},
		Paid:        new(big.Int),
	}

	switch {
	case winning.Sign() > 0:
		num := new(big.Int).Mul(total, big.NewInt(FeeDenominator-feeBps))
		den := new(big.Int).Mul(winning, big.NewInt(FeeDenominator))
		for _, b := range g.Bets {
			if b.Outcome != result {
				continue
			}
			amt := new(big.Int).Mul(b.Amount, num)
			amt.Quo(amt, den)
			st.add(b, amt)
		}
	case policy == NoWinnerRefund:
		st.Refunded = true
		st.NetJackpot = new(big.Int).Set(total)
		for _, b := range g.Bets {
			st.add(b, new(big.Int).Set(b.Amount))
		}
	}

	st.Retained = new(big.Int).Sub(g.Escrow, st.Paid)
	return st
}

func (s *Settlement) add(b Bet, amount *big.Int) {
	if amount.Sign() == 0 {
		return
	}
	s.Payouts = append(s.Payouts, Payout{BetID: b.ID, Recipient: b.Bettor, Amount: amount})
	s.Paid.Add(s.Paid, amount)
}
