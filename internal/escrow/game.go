package escrow

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"golang.org/x/crypto/sha3"
)

// NumOutcomes é a quantidade de resultados possíveis por jogo (0, 1, 2)
const NumOutcomes = 3

// Outcome identifica o lado apostado
type Outcome uint8

// Valid informa se o índice está em {0,1,2}
func (o Outcome) Valid() bool { return o < NumOutcomes }

// State representa o ciclo de vida de um jogo: OPEN -> CLOSED -> SETTLED
type State string

const (
	StateOpen    State = "OPEN"
	StateClosed  State = "CLOSED"
	StateSettled State = "SETTLED"
)

// GameID é o hash Keccak-256 dos metadados do jogo
type GameID [32]byte

func (id GameID) String() string { return "0x" + hex.EncodeToString(id[:]) }

func (id GameID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *GameID) UnmarshalText(b []byte) error {
	parsed, err := ParseGameID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseGameID aceita 64 dígitos hexadecimais, com ou sem prefixo 0x
func ParseGameID(s string) (GameID, error) {
	var id GameID
	h := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if len(h) != 64 {
		return id, fmt.Errorf("game id must have 64 hex digits, got %d", len(h))
	}
	b, err := hex.DecodeString(h)
	if err != nil {
		return id, fmt.Errorf("decode game id: %w", err)
	}
	copy(id[:], b)
	return id, nil
}

// ComputeGameID deriva o identificador do jogo. Cada campo entra prefixado
// pelo seu tamanho (uint64 big-endian), então ("ab","c") e ("a","bc") não colidem.
// Função pura: clientes podem prever o id antes do CreateGame.
func ComputeGameID(teamA, teamB, date, asset string) GameID {
	h := sha3.NewLegacyKeccak256()
	var l [8]byte
	for _, f := range []string{teamA, teamB, date, asset} {
		binary.BigEndian.PutUint64(l[:], uint64(len(f)))
		h.Write(l[:])
		h.Write([]byte(f))
	}
	var id GameID
	copy(id[:], h.Sum(nil))
	return id
}

// Bet é um registro imutável de aposta; cada chamada gera um novo registro
type Bet struct {
	ID       string    `json:"id"`
	GameID   GameID    `json:"gameId"`
	Seq      int       `json:"seq"`
	Bettor   string    `json:"bettor"`
	Outcome  Outcome   `json:"outcome"`
	Amount   *big.Int  `json:"amount"`
	PlacedAt time.Time `json:"placedAt"`
}

// Payout é um repasse do escrow para um vencedor (ou reembolso)
type Payout struct {
	BetID     string   `json:"betId"`
	Recipient string   `json:"recipient"`
	Amount    *big.Int `json:"amount"`
}

// Game é o mercado de apostas de um evento
type Game struct {
	ID        GameID                `json:"id"`
	TeamA     string                `json:"teamA"`
	TeamB     string                `json:"teamB"`
	Date      string                `json:"date"`
	Asset     string                `json:"asset"`
	Registrar string                `json:"registrar"`
	State     State                 `json:"state"`
	Result    *Outcome              `json:"result,omitempty"`
	Stakes    [NumOutcomes]*big.Int `json:"stakes"`
	Escrow    *big.Int              `json:"escrow"`
	Bets      []Bet                 `json:"bets"`
	Payouts   []Payout              `json:"payouts,omitempty"`
	CreatedAt time.Time             `json:"createdAt"`
	ClosedAt  *time.Time            `json:"closedAt,omitempty"`
	SettledAt *time.Time            `json:"settledAt,omitempty"`
}

func newGame(teamA, teamB, date, asset, registrar string, now time.Time) *Game {
	g := &Game{
		ID:        ComputeGameID(teamA, teamB, date, asset),
		TeamA:     teamA,
		TeamB:     teamB,
		Date:      date,
		Asset:     asset,
		Registrar: registrar,
		State:     StateOpen,
		Escrow:    new(big.Int),
		CreatedAt: now,
	}
	for i := range g.Stakes {
		g.Stakes[i] = new(big.Int)
	}
	return g
}

// TotalPool soma as apostas de todos os resultados
func (g *Game) TotalPool() *big.Int {
	total := new(big.Int)
	for _, s := range g.Stakes {
		total.Add(total, s)
	}
	return total
}

// Version cresce a cada transição gravada do jogo: uma unidade por aposta
// e uma por mudança de estado. Apostas só entram com o jogo aberto.
func (g *Game) Version() int64 {
	v := int64(len(g.Bets))
	switch g.State {
	case StateClosed:
		v++
	case StateSettled:
		v += 2
	}
	return v
}

// Clone devolve uma cópia profunda; stores nunca expõem o ponteiro interno
func (g *Game) Clone() *Game {
	c := *g
	if g.Result != nil {
		r := *g.Result
		c.Result = &r
	}
	for i, s := range g.Stakes {
		c.Stakes[i] = cloneInt(s)
	}
	c.Escrow = cloneInt(g.Escrow)
	c.Bets = make([]Bet, len(g.Bets))
	for i, b := range g.Bets {
		b.Amount = cloneInt(b.Amount)
		c.Bets[i] = b
	}
	if g.Payouts != nil {
		c.Payouts = make([]Payout, len(g.Payouts))
		for i, p := range g.Payouts {
			p.Amount = cloneInt(p.Amount)
			c.Payouts[i] = p
		}
	}
	if g.ClosedAt != nil {
		t := *g.ClosedAt
		c.ClosedAt = &t
	}
	if g.SettledAt != nil {
		t := *g.SettledAt
		c.SettledAt = &t
	}
	return &c
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
