package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/google/uuid"

	"github.com/radieske/pari-mutuel-escrow/internal/escrow"
)

// Postgres implementa escrow.Ledger e escrow.BatchPusher sobre a tabela de carteiras.
// Cada transferência grava uma linha em wallet_ledger; repetir a mesma ref não move saldo de novo.
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

var (
	_ escrow.Ledger      = (*Postgres)(nil)
	_ escrow.BatchPusher = (*Postgres)(nil)
	_ escrow.Reverter    = (*Postgres)(nil)
)

const (
	OpDeposit  = "DEPOSIT"
	OpPull     = "PULL"
	OpPush     = "PUSH"
	OpReversal = "REVERSAL"
	OpVoid     = "VOID" // ref anulada antes de ser aplicada; não move saldo
)

var ErrInvalidAmount = errors.New("amount must be positive")

// Balance retorna o saldo da conta; conta inexistente tem saldo zero
func (p *Postgres) Balance(ctx context.Context, asset, account string) (*big.Int, error) {
	var s string
	err := p.db.QueryRowContext(ctx, `SELECT balance FROM wallets WHERE account=$1 AND asset=$2`, account, asset).Scan(&s)
	if err == sql.ErrNoRows {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, err
	}
	return parseNumeric(s)
}

// Deposit credita saldo externo e retorna o novo saldo
func (p *Postgres) Deposit(ctx context.Context, asset, account string, amount *big.Int, ref string) (*big.Int, error) {
	if ref == "" {
		ref = "deposit:" + uuid.NewString()
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err = p.move(ctx, tx, OpDeposit, asset, "", account, amount, ref); err != nil {
		return nil, err
	}
	var s string
	if err = tx.QueryRowContext(ctx, `SELECT balance FROM wallets WHERE account=$1 AND asset=$2`, account, asset).Scan(&s); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return parseNumeric(s)
}

// Pull move do apostador para a conta de escrow
func (p *Postgres) Pull(ctx context.Context, asset, from string, amount *big.Int, ref string) error {
	return p.single(ctx, OpPull, asset, from, escrow.EscrowAccount, amount, ref)
}

// Push move da conta de escrow para o destinatário
func (p *Postgres) Push(ctx context.Context, asset, to string, amount *big.Int, ref string) error {
	return p.single(ctx, OpPush, asset, escrow.EscrowAccount, to, amount, ref)
}

// PushBatch aplica todos os repasses numa única transação; qualquer falha desfaz o lote
func (p *Postgres) PushBatch(ctx context.Context, asset string, transfers []escrow.Transfer) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// trava todas as carteiras em ordem fixa para evitar deadlock entre lotes
	accounts := []string{escrow.EscrowAccount}
	for _, t := range transfers {
		accounts = append(accounts, t.Account)
	}
	if err = lockWallets(ctx, tx, asset, accounts...); err != nil {
		return err
	}

	for _, t := range transfers {
		if err = p.move(ctx, tx, OpPush, asset, escrow.EscrowAccount, t.Account, t.Amount, t.Ref); err != nil {
			return fmt.Errorf("push %s: %w", t.Ref, err)
		}
	}
	return tx.Commit()
}

// Revert anula ref. Se a transferência foi aplicada, o valor volta à origem com a
// ref "reversal:<ref>"; se não foi, grava um VOID com a própria ref e uma chegada
// tardia da operação original cai no ON CONFLICT sem mover saldo.
// Uma transação concorrente com a mesma ref espera o índice único, então as duas
// nunca são aplicadas juntas.
func (p *Postgres) Revert(ctx context.Context, asset, ref string) error {
	if ref == "" {
		return errors.New("external ref required")
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `INSERT INTO wallet_ledger(operation_type, asset, from_account, to_account, amount, external_ref)
		VALUES($1,$2,NULL,'',0,$3) ON CONFLICT (external_ref) DO NOTHING`, OpVoid, asset, ref)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return tx.Commit()
	}

	var (
		op, rowAsset, to, amt string
		from                  sql.NullString
	)
	if err = tx.QueryRowContext(ctx, `SELECT operation_type, asset, from_account, to_account, amount
		FROM wallet_ledger WHERE external_ref=$1`, ref).Scan(&op, &rowAsset, &from, &to, &amt); err != nil {
		return err
	}
	switch {
	case op == OpVoid:
		return nil
	case !from.Valid || rowAsset != asset:
		return fmt.Errorf("%w: %s (%s %s)", escrow.ErrNotReversible, ref, op, rowAsset)
	}
	amount, err := parseNumeric(amt)
	if err != nil {
		return err
	}
	if err = p.move(ctx, tx, OpReversal, asset, to, from.String, amount, escrow.ReversalRef(ref)); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *Postgres) single(ctx context.Context, op, asset, from, to string, amount *big.Int, ref string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err = p.move(ctx, tx, op, asset, from, to, amount, ref); err != nil {
		return err
	}
	return tx.Commit()
}

// move registra a transferência no ledger e ajusta os saldos. from vazio = crédito externo.
// Garante lock pessimista nas linhas das carteiras envolvidas.
func (p *Postgres) move(ctx context.Context, tx *sql.Tx, op, asset, from, to string, amount *big.Int, ref string) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if ref == "" {
		return errors.New("external ref required")
	}
	if from == to {
		return escrow.ErrSameAccount
	}

	// Idempotência: ref já aplicada não move saldo
	res, err := tx.ExecContext(ctx, `INSERT INTO wallet_ledger(operation_type, asset, from_account, to_account, amount, external_ref)
		VALUES($1,$2,$3,$4,$5,$6) ON CONFLICT (external_ref) DO NOTHING`,
		op, asset, sql.NullString{String: from, Valid: from != ""}, to, amount.String(), ref)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}

	accounts := []string{to}
	if from != "" {
		accounts = append(accounts, from)
	}
	if err = lockWallets(ctx, tx, asset, accounts...); err != nil {
		return err
	}

	if from != "" {
		var s string
		if err = tx.QueryRowContext(ctx, `SELECT balance FROM wallets WHERE account=$1 AND asset=$2`, from, asset).Scan(&s); err != nil {
			return err
		}
		bal, err := parseNumeric(s)
		if err != nil {
			return err
		}
		if bal.Cmp(amount) < 0 {
			return escrow.ErrInsufficientFunds
		}
		if _, err = tx.ExecContext(ctx, `UPDATE wallets SET balance = balance - $1, version = version + 1
			WHERE account=$2 AND asset=$3`, amount.String(), from, asset); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, `UPDATE wallets SET balance = balance + $1, version = version + 1
		WHERE account=$2 AND asset=$3`, amount.String(), to, asset)
	return err
}

// lockWallets cria as carteiras que faltam e trava as linhas em ordem alfabética
func lockWallets(ctx context.Context, tx *sql.Tx, asset string, accounts ...string) error {
	uniq := make(map[string]struct{}, len(accounts))
	for _, a := range accounts {
		uniq[a] = struct{}{}
	}
	sorted := make([]string, 0, len(uniq))
	for a := range uniq {
		sorted = append(sorted, a)
	}
	sort.Strings(sorted)

	for _, a := range sorted {
		if _, err := tx.ExecContext(ctx, `INSERT INTO wallets(id, account, asset, balance, version)
			VALUES($1,$2,$3,0,1) ON CONFLICT (account, asset) DO NOTHING`, uuid.NewString(), a, asset); err != nil {
			return err
		}
		var id string
		if err := tx.QueryRowContext(ctx, `SELECT id FROM wallets WHERE account=$1 AND asset=$2 FOR UPDATE`, a, asset).Scan(&id); err != nil {
			return err
		}
	}
	return nil
}

func parseNumeric(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("bad numeric %q", s)
	}
	return v, nil
}
