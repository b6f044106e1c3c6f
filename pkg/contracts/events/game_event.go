package events

// Tipos de evento publicados no tópico "escrow_game_events"
const (
	TypeGameCreated = "GAME_CREATED"
	TypeBetPlaced   = "BET_PLACED"
	TypeBetsClosed  = "BETS_CLOSED"
	TypeGameSettled = "GAME_SETTLED"
)

// PayoutLine é um repasse feito na liquidação; valores na menor unidade do ativo, como string
type PayoutLine struct {
	BetID     string `json:"bet_id"`
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

// GameEvent é emitido pelo escrow-service após cada transição gravada
type GameEvent struct {
	EventID string `json:"event_id"`
	Type    string `json:"type"`
	GameID  string `json:"game_id"`
	Version int64  `json:"version"` // versão do jogo após a transição
	Caller  string `json:"caller"`
	Asset   string `json:"asset"`

	// GAME_CREATED
	TeamA string `json:"team_a,omitempty"`
	TeamB string `json:"team_b,omitempty"`
	Date  string `json:"date,omitempty"`

	// BET_PLACED
	BetID   string `json:"bet_id,omitempty"`
	Outcome *int   `json:"outcome,omitempty"`
	Amount  string `json:"amount,omitempty"`

	// GAME_SETTLED
	Result    *int         `json:"result,omitempty"`
	TotalPool string       `json:"total_pool,omitempty"`
	Retained  string       `json:"retained,omitempty"`
	Refunded  bool         `json:"refunded,omitempty"`
	Payouts   []PayoutLine `json:"payouts,omitempty"`

	TsUnixMs int64 `json:"ts_unix_ms"`
}
