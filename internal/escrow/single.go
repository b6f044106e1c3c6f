package escrow

import (
	"context"
	"errors"
	"fmt"
	"math/big"
)

// SingleGame é o modo de implantação com um único jogo fixo: todas as
// operações usam o mesmo id, criado na inicialização.
type SingleGame struct {
	svc *Service
	id  GameID
}

// NewSingleGame cria o jogo se ainda não existir. Se já existir (reinício do
// serviço com store persistente), o registrar precisa ser o mesmo.
func NewSingleGame(ctx context.Context, svc *Service, teamA, teamB, date, asset, registrar string) (*SingleGame, error) {
	id, err := svc.CreateGame(ctx, teamA, teamB, date, asset, registrar)
	if errors.Is(err, ErrDuplicateGame) {
		id = ComputeGameID(teamA, teamB, date, asset)
		g, gerr := svc.GetGame(ctx, id)
		if gerr != nil {
			return nil, gerr
		}
		if g.Registrar != registrar {
			return nil, fmt.Errorf("single game %s registered by %s: %w", id, g.Registrar, ErrForbidden)
		}
	} else if err != nil {
		return nil, err
	}
	return &SingleGame{svc: svc, id: id}, nil
}

func (s *SingleGame) ID() GameID { return s.id }

func (s *SingleGame) Game(ctx context.Context) (*Game, error) { return s.svc.GetGame(ctx, s.id) }

func (s *SingleGame) IsOpen(ctx context.Context) (bool, error) { return s.svc.IsOpen(ctx, s.id) }

func (s *SingleGame) PlaceBet(ctx context.Context, outcome Outcome, amount *big.Int, caller string) (*Bet, error) {
	return s.svc.PlaceBet(ctx, s.id, outcome, amount, caller)
}

func (s *SingleGame) CloseBets(ctx context.Context, caller string) error {
	return s.svc.CloseBets(ctx, s.id, caller)
}

func (s *SingleGame) SetResult(ctx context.Context, outcome Outcome, caller string) (*Settlement, error) {
	return s.svc.SetResult(ctx, s.id, outcome, caller)
}

func (s *SingleGame) GetResult(ctx context.Context, caller string) (Outcome, error) {
	return s.svc.GetResult(ctx, s.id, caller)
}
