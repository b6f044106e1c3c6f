package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/lib/pq"

	"github.com/radieske/pari-mutuel-escrow/internal/escrow"
)

// Postgres implementa escrow.Store; Update serializa por jogo com SELECT ... FOR UPDATE
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

var _ escrow.Store = (*Postgres)(nil)

const uniqueViolation = "23505"

// queryer cobre *sql.DB e *sql.Tx nas leituras
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

const selectGame = `SELECT id, team_a, team_b, game_date, asset, registrar, state, result,
	stake_0, stake_1, stake_2, escrow, created_at, closed_at, settled_at
	FROM games WHERE id=$1`

func (p *Postgres) Insert(ctx context.Context, g *escrow.Game) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO games(id, team_a, team_b, game_date, asset, registrar, state,
		stake_0, stake_1, stake_2, escrow, created_at)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		g.ID.String(), g.TeamA, g.TeamB, g.Date, g.Asset, g.Registrar, string(g.State),
		g.Stakes[0].String(), g.Stakes[1].String(), g.Stakes[2].String(), g.Escrow.String(), g.CreatedAt)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return escrow.ErrDuplicateGame
	}
	return err
}

func (p *Postgres) Get(ctx context.Context, id escrow.GameID) (*escrow.Game, error) {
	return load(ctx, p.db, selectGame, id)
}

// Update carrega o jogo com lock de linha, aplica fn e grava o resultado na mesma transação.
// Se fn retornar erro nada é gravado.
func (p *Postgres) Update(ctx context.Context, id escrow.GameID, fn func(g *escrow.Game) error) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	g, err := load(ctx, tx, selectGame+" FOR UPDATE", id)
	if err != nil {
		return err
	}
	prevBets, prevPayouts := len(g.Bets), len(g.Payouts)

	if err := fn(g); err != nil {
		return err
	}

	var result sql.NullInt16
	if g.Result != nil {
		result = sql.NullInt16{Int16: int16(*g.Result), Valid: true}
	}
	if _, err = tx.ExecContext(ctx, `UPDATE games SET state=$1, result=$2, stake_0=$3, stake_1=$4, stake_2=$5,
		escrow=$6, closed_at=$7, settled_at=$8 WHERE id=$9`,
		string(g.State), result, g.Stakes[0].String(), g.Stakes[1].String(), g.Stakes[2].String(),
		g.Escrow.String(), nullTime(g.ClosedAt), nullTime(g.SettledAt), id.String()); err != nil {
		return fmt.Errorf("update game: %w", err)
	}

	bets, payouts, err := appended(g, prevBets, prevPayouts)
	if err != nil {
		return err
	}
	for _, b := range bets {
		if _, err = tx.ExecContext(ctx, `INSERT INTO bets(id, game_id, seq, bettor, outcome, amount, placed_at)
			VALUES($1,$2,$3,$4,$5,$6,$7)`,
			b.ID, id.String(), b.Seq, b.Bettor, int16(b.Outcome), b.Amount.String(), b.PlacedAt); err != nil {
			return fmt.Errorf("insert bet: %w", err)
		}
	}
	for i, po := range payouts {
		if _, err = tx.ExecContext(ctx, `INSERT INTO payouts(bet_id, game_id, seq, recipient, amount)
			VALUES($1,$2,$3,$4,$5)`,
			po.BetID, id.String(), prevPayouts+i, po.Recipient, po.Amount.String()); err != nil {
			return fmt.Errorf("insert payout: %w", err)
		}
	}

	return tx.Commit()
}

// appended devolve as apostas e repasses acrescentados por uma mutação.
// As duas listas são só acrescentadas; encolher ou reescrever uma linha gravada é erro.
func appended(g *escrow.Game, prevBets, prevPayouts int) ([]escrow.Bet, []escrow.Payout, error) {
	if len(g.Bets) < prevBets || len(g.Payouts) < prevPayouts {
		return nil, nil, fmt.Errorf("game %s: bets and payouts are append-only", g.ID)
	}
	for i, b := range g.Bets[prevBets:] {
		if b.Seq != prevBets+i {
			return nil, nil, fmt.Errorf("game %s: bet %s has seq %d, want %d", g.ID, b.ID, b.Seq, prevBets+i)
		}
	}
	return g.Bets[prevBets:], g.Payouts[prevPayouts:], nil
}

// List retorna os jogos por ordem de criação
func (p *Postgres) List(ctx context.Context) ([]*escrow.Game, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id FROM games ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	var ids []escrow.GameID
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			rows.Close()
			return nil, err
		}
		id, err := escrow.ParseGameID(s)
		if err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*escrow.Game, 0, len(ids))
	for _, id := range ids {
		g, err := p.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

func load(ctx context.Context, q queryer, query string, id escrow.GameID) (*escrow.Game, error) {
	var (
		g                 escrow.Game
		gid, state        string
		result            sql.NullInt16
		s0, s1, s2, esc   string
		closedAt, settled sql.NullTime
	)
	err := q.QueryRowContext(ctx, query, id.String()).Scan(&gid, &g.TeamA, &g.TeamB, &g.Date, &g.Asset,
		&g.Registrar, &state, &result, &s0, &s1, &s2, &esc, &g.CreatedAt, &closedAt, &settled)
	if err == sql.ErrNoRows {
		return nil, escrow.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	g.ID = id
	g.State = escrow.State(state)
	if result.Valid {
		r := escrow.Outcome(result.Int16)
		g.Result = &r
	}
	for i, s := range []string{s0, s1, s2} {
		if g.Stakes[i], err = parseNumeric(s); err != nil {
			return nil, err
		}
	}
	if g.Escrow, err = parseNumeric(esc); err != nil {
		return nil, err
	}
	if closedAt.Valid {
		g.ClosedAt = &closedAt.Time
	}
	if settled.Valid {
		g.SettledAt = &settled.Time
	}

	if g.Bets, err = loadBets(ctx, q, id); err != nil {
		return nil, err
	}
	if g.Payouts, err = loadPayouts(ctx, q, id); err != nil {
		return nil, err
	}
	return &g, nil
}

func loadBets(ctx context.Context, q queryer, id escrow.GameID) ([]escrow.Bet, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, seq, bettor, outcome, amount, placed_at
		FROM bets WHERE game_id=$1 ORDER BY seq`, id.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []escrow.Bet
	for rows.Next() {
		var (
			b       escrow.Bet
			outcome int16
			amount  string
		)
		if err := rows.Scan(&b.ID, &b.Seq, &b.Bettor, &outcome, &amount, &b.PlacedAt); err != nil {
			return nil, err
		}
		b.GameID = id
		b.Outcome = escrow.Outcome(outcome)
		if b.Amount, err = parseNumeric(amount); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func loadPayouts(ctx context.Context, q queryer, id escrow.GameID) ([]escrow.Payout, error) {
	rows, err := q.QueryContext(ctx, `SELECT bet_id, recipient, amount
		FROM payouts WHERE game_id=$1 ORDER BY seq`, id.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []escrow.Payout
	for rows.Next() {
		var (
			po     escrow.Payout
			amount string
		)
		if err := rows.Scan(&po.BetID, &po.Recipient, &amount); err != nil {
			return nil, err
		}
		if po.Amount, err = parseNumeric(amount); err != nil {
			return nil, err
		}
		out = append(out, po)
	}
	return out, rows.Err()
}

// parseNumeric converte NUMERIC(78,0) lido como texto
func parseNumeric(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("bad numeric %q", s)
	}
	return v, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
