package escrow

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/pari-mutuel-escrow/pkg/contracts/events"
)

// Publisher recebe os eventos de jogo após cada transição gravada
type Publisher interface {
	PublishGameEvent(ctx context.Context, e events.GameEvent) error
}

// Hooks são callbacks de métricas, chamados fora da seção crítica
type Hooks struct {
	OnGameCreated func()
	OnBetPlaced   func(asset string, amount *big.Int)
	OnBetsClosed  func()
	OnSettled     func(st *Settlement)
	OnError       func(op string, err error)
}

const revertTimeout = 5 * time.Second

// Service é o registro de jogos e o motor de escrow/liquidação
type Service struct {
	store  Store
	ledger Ledger
	log    *zap.Logger
	pub    Publisher
	hooks  Hooks
	feeBps int64
	policy NoWinnerPolicy
	now    func() time.Time
}

type Option func(*Service)

func WithLogger(l *zap.Logger) Option { return func(s *Service) { s.log = l } }

func WithPublisher(p Publisher) Option { return func(s *Service) { s.pub = p } }

func WithHooks(h Hooks) Option { return func(s *Service) { s.hooks = h } }

// WithFeeBps define a taxa retida em basis points (300 = 3%)
func WithFeeBps(bps int64) Option { return func(s *Service) { s.feeBps = bps } }

func WithNoWinnerPolicy(p NoWinnerPolicy) Option { return func(s *Service) { s.policy = p } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// NewService monta o motor sobre um store e um ledger
func NewService(store Store, ledger Ledger, opts ...Option) (*Service, error) {
	s := &Service{
		store:  store,
		ledger: ledger,
		log:    zap.NewNop(),
		feeBps: DefaultFeeBps,
		policy: NoWinnerRetain,
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	if s.feeBps < 0 || s.feeBps > FeeDenominator {
		return nil, fmt.Errorf("fee bps out of range: %d", s.feeBps)
	}
	if s.policy != NoWinnerRetain && s.policy != NoWinnerRefund {
		return nil, fmt.Errorf("unknown no-winner policy %q", s.policy)
	}
	return s, nil
}

// FeeBps retorna a taxa configurada
func (s *Service) FeeBps() int64 { return s.feeBps }

// CreateGame registra um jogo aberto com o chamador como registrar
func (s *Service) CreateGame(ctx context.Context, teamA, teamB, date, asset, caller string) (GameID, error) {
	if caller == "" {
		return GameID{}, s.fail("create_game", ErrForbidden)
	}
	g := newGame(teamA, teamB, date, asset, caller, s.now())
	if err := s.store.Insert(ctx, g); err != nil {
		return GameID{}, s.fail("create_game", err, zap.Stringer("game_id", g.ID))
	}

	s.log.Info("game created",
		zap.Stringer("game_id", g.ID),
		zap.String("registrar", caller),
		zap.String("asset", asset),
	)
	if s.hooks.OnGameCreated != nil {
		s.hooks.OnGameCreated()
	}
	s.publish(ctx, events.GameEvent{
		Type:    events.TypeGameCreated,
		GameID:  g.ID.String(),
		Version: g.Version(),
		Caller:  caller,
		Asset:  asset,
		TeamA:  teamA,
		TeamB:  teamB,
		Date:   date,
	})
	return g.ID, nil
}

// ComputeGameID expõe o mesmo hash usado por CreateGame
func (s *Service) ComputeGameID(teamA, teamB, date, asset string) GameID {
	return ComputeGameID(teamA, teamB, date, asset)
}

// GetGame retorna uma cópia do jogo
func (s *Service) GetGame(ctx context.Context, id GameID) (*Game, error) {
	return s.store.Get(ctx, id)
}

// ListGames retorna todos os jogos registrados
func (s *Service) ListGames(ctx context.Context) ([]*Game, error) {
	return s.store.List(ctx)
}

// IsOpen informa se o jogo ainda aceita apostas
func (s *Service) IsOpen(ctx context.Context, id GameID) (bool, error) {
	g, err := s.store.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return g.State == StateOpen, nil
}

// PlaceBet puxa amount do chamador para o escrow e registra a aposta.
// Se o pull falhar nada é gravado.
func (s *Service) PlaceBet(ctx context.Context, id GameID, outcome Outcome, amount *big.Int, caller string) (*Bet, error) {
	var (
		bet     Bet
		asset   string
		pulled  bool
		version int64
	)
	err := s.store.Update(ctx, id, func(g *Game) error {
		if caller == "" || caller == g.Registrar || caller == EscrowAccount {
			return ErrForbidden
		}
		if !outcome.Valid() {
			return ErrInvalidOutcome
		}
		if g.State != StateOpen {
			return ErrNotOpen
		}
		if amount == nil || amount.Sign() <= 0 {
			return ErrInvalidAmount
		}

		bet = Bet{
			ID:       uuid.NewString(),
			GameID:   id,
			Seq:      len(g.Bets),
			Bettor:   caller,
			Outcome:  outcome,
			Amount:   new(big.Int).Set(amount),
			PlacedAt: s.now(),
		}
		ref := StakeRef(id, bet.ID)
		if err := s.ledger.Pull(ctx, g.Asset, caller, bet.Amount, ref); err != nil {
			s.voidStake(ctx, g.Asset, ref, err)
			return fmt.Errorf("%w: %w", ErrTransferFailed, err)
		}
		pulled, asset = true, g.Asset

		g.Bets = append(g.Bets, bet)
		g.Stakes[outcome].Add(g.Stakes[outcome], bet.Amount)
		g.Escrow.Add(g.Escrow, bet.Amount)
		version = g.Version()
		return nil
	})
	if err != nil {
		if pulled {
			// o store não gravou a aposta: devolve o valor já puxado
			s.compensate(ctx, asset, []Transfer{{Account: caller, Amount: bet.Amount, Ref: StakeRef(id, bet.ID)}}, false)
		}
		return nil, s.fail("place_bet", err, zap.Stringer("game_id", id), zap.String("caller", caller))
	}

	s.log.Info("bet placed",
		zap.Stringer("game_id", id),
		zap.String("bet_id", bet.ID),
		zap.String("bettor", caller),
		zap.Uint8("outcome", uint8(outcome)),
		zap.Stringer("amount", bet.Amount),
	)
	if s.hooks.OnBetPlaced != nil {
		s.hooks.OnBetPlaced(asset, bet.Amount)
	}
	o := int(outcome)
	s.publish(ctx, events.GameEvent{
		Type:    events.TypeBetPlaced,
		GameID:  id.String(),
		Version: version,
		Caller:  caller,
		Asset:   asset,
		BetID:   bet.ID,
		Outcome: &o,
		Amount:  bet.Amount.String(),
	})
	return &bet, nil
}

// CloseBets encerra as apostas; nenhum valor é movido
func (s *Service) CloseBets(ctx context.Context, id GameID, caller string) error {
	var (
		asset   string
		version int64
	)
	err := s.store.Update(ctx, id, func(g *Game) error {
		if caller != g.Registrar {
			return ErrForbidden
		}
		if g.State != StateOpen {
			return ErrNotOpen
		}
		now := s.now()
		g.State = StateClosed
		g.ClosedAt = &now
		asset, version = g.Asset, g.Version()
		return nil
	})
	if err != nil {
		return s.fail("close_bets", err, zap.Stringer("game_id", id), zap.String("caller", caller))
	}

	s.log.Info("bets closed", zap.Stringer("game_id", id))
	if s.hooks.OnBetsClosed != nil {
		s.hooks.OnBetsClosed()
	}
	s.publish(ctx, events.GameEvent{
		Type:    events.TypeBetsClosed,
		GameID:  id.String(),
		Version: version,
		Caller:  caller,
		Asset:   asset,
	})
	return nil
}

// SetResult registra o resultado e liquida o jogo. A transição para SETTLED só
// é gravada se todos os repasses forem concluídos; caso contrário o jogo
// permanece CLOSED e a chamada pode ser repetida.
func (s *Service) SetResult(ctx context.Context, id GameID, outcome Outcome, caller string) (*Settlement, error) {
	var (
		st      *Settlement
		asset   string
		version int64
	)
	err := s.store.Update(ctx, id, func(g *Game) error {
		if caller != g.Registrar {
			return ErrForbidden
		}
		if g.State != StateClosed {
			return ErrNotClosed
		}
		if !outcome.Valid() {
			return ErrInvalidOutcome
		}

		st = ComputeSettlement(g, outcome, s.feeBps, s.policy)
		if err := s.disburse(ctx, g, st); err != nil {
			return err
		}

		now := s.now()
		r := outcome
		g.Result = &r
		g.State = StateSettled
		g.SettledAt = &now
		g.Payouts = st.Payouts
		g.Escrow = new(big.Int).Set(st.Retained)
		asset, version = g.Asset, g.Version()
		return nil
	})
	if err != nil {
		return nil, s.fail("set_result", err, zap.Stringer("game_id", id), zap.String("caller", caller))
	}

	s.log.Info("game settled",
		zap.Stringer("game_id", id),
		zap.Uint8("result", uint8(outcome)),
		zap.Stringer("total_pool", st.TotalPool),
		zap.Stringer("winning_pool", st.WinningPool),
		zap.Stringer("paid", st.Paid),
		zap.Stringer("retained", st.Retained),
		zap.Int("payouts", len(st.Payouts)),
		zap.Bool("refunded", st.Refunded),
	)
	if s.hooks.OnSettled != nil {
		s.hooks.OnSettled(st)
	}

	r := int(outcome)
	lines := make([]events.PayoutLine, 0, len(st.Payouts))
	for _, p := range st.Payouts {
		lines = append(lines, events.PayoutLine{BetID: p.BetID, Recipient: p.Recipient, Amount: p.Amount.String()})
	}
	s.publish(ctx, events.GameEvent{
		Type:      events.TypeGameSettled,
		GameID:    id.String(),
		Version:   version,
		Caller:    caller,
		Asset:     asset,
		Result:    &r,
		TotalPool: st.TotalPool.String(),
		Retained:  st.Retained.String(),
		Refunded:  st.Refunded,
		Payouts:   lines,
	})
	return st, nil
}

// GetResult retorna o resultado de um jogo liquidado; qualquer chamador pode consultar
func (s *Service) GetResult(ctx context.Context, id GameID, caller string) (Outcome, error) {
	g, err := s.store.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	if g.State != StateSettled || g.Result == nil {
		return 0, ErrNotSettled
	}
	return *g.Result, nil
}

// disburse executa os repasses. Com BatchPusher o lote é atômico no ledger e as
// refs são determinísticas (jogo+aposta): se a gravação do estado falhar, repetir
// a chamada não paga duas vezes. Sem ele, os repasses já feitos são estornados se
// algum falhar, e cada tentativa usa refs próprias para que a seguinte não seja
// descartada como repetida por um ledger idempotente.
func (s *Service) disburse(ctx context.Context, g *Game, st *Settlement) error {
	if len(st.Payouts) == 0 {
		return nil
	}
	transfers := make([]Transfer, 0, len(st.Payouts))
	for _, p := range st.Payouts {
		transfers = append(transfers, Transfer{Account: p.Recipient, Amount: p.Amount, Ref: PayoutRef(g.ID, p.BetID)})
	}

	if bp, ok := s.ledger.(BatchPusher); ok {
		if err := bp.PushBatch(ctx, g.Asset, transfers); err != nil {
			return fmt.Errorf("%w: %w", ErrTransferFailed, err)
		}
		return nil
	}

	attempt := uuid.NewString()[:8]
	for i := range transfers {
		transfers[i].Ref += "#" + attempt
	}
	for i, t := range transfers {
		if err := s.ledger.Push(ctx, g.Asset, t.Account, t.Amount, t.Ref); err != nil {
			s.compensate(ctx, g.Asset, transfers[:i], true)
			return fmt.Errorf("%w: push %s: %w", ErrTransferFailed, t.Ref, err)
		}
	}
	return nil
}

// compensate desfaz transferências já efetivadas. pushed indica a direção original.
func (s *Service) compensate(ctx context.Context, asset string, done []Transfer, pushed bool) {
	for _, t := range done {
		var err error
		if pushed {
			err = s.ledger.Pull(ctx, asset, t.Account, t.Amount, ReversalRef(t.Ref))
		} else {
			err = s.ledger.Push(ctx, asset, t.Account, t.Amount, ReversalRef(t.Ref))
		}
		if err != nil {
			// exige conciliação manual
			s.log.Error("transfer reversal failed",
				zap.String("ref", t.Ref),
				zap.String("account", t.Account),
				zap.Stringer("amount", t.Amount),
				zap.Error(err),
			)
			continue
		}
		s.log.Warn("transfer reversed", zap.String("ref", t.Ref), zap.String("account", t.Account))
	}
}

// voidStake resolve um pull cujo resultado é incerto (timeout, erro de transporte):
// o ledger estorna a ref se ela chegou a ser aplicada, ou a anula se não chegou.
func (s *Service) voidStake(ctx context.Context, asset, ref string, cause error) {
	if errors.Is(cause, ErrInsufficientFunds) {
		return
	}
	rv, ok := s.ledger.(Reverter)
	if !ok {
		s.log.Error("stake pull outcome unknown, reconcile manually", zap.String("ref", ref), zap.Error(cause))
		return
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), revertTimeout)
	defer cancel()
	if err := rv.Revert(rctx, asset, ref); err != nil {
		// exige conciliação manual
		s.log.Error("stake revert failed", zap.String("ref", ref), zap.NamedError("cause", cause), zap.Error(err))
		return
	}
	s.log.Warn("stake voided", zap.String("ref", ref), zap.NamedError("cause", cause))
}

func (s *Service) publish(ctx context.Context, e events.GameEvent) {
	if s.pub == nil {
		return
	}
	e.EventID = uuid.NewString()
	e.TsUnixMs = s.now().UnixMilli()
	if err := s.pub.PublishGameEvent(ctx, e); err != nil {
		s.log.Warn("publish game event failed",
			zap.String("type", e.Type),
			zap.String("game_id", e.GameID),
			zap.Error(err),
		)
	}
}

func (s *Service) fail(op string, err error, fields ...zap.Field) error {
	fields = append(fields, zap.String("op", op), zap.Error(err))
	if errors.Is(err, ErrTransferFailed) {
		s.log.Warn("transfer failed", fields...)
	} else {
		s.log.Debug("operation rejected", fields...)
	}
	if s.hooks.OnError != nil {
		s.hooks.OnError(op, err)
	}
	return err
}
