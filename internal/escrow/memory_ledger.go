package escrow

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrSameAccount       = errors.New("source and destination are the same account")
	ErrNotReversible     = errors.New("transfer cannot be reversed")
)

// MemoryLedger mantém saldos em memória por (ativo, conta).
// O saldo do escrow fica em EscrowAccount. Usado em testes e no modo local.
// Como o ledger Postgres, uma ref já aplicada (ou anulada) não move saldo de novo.
type MemoryLedger struct {
	mu       sync.Mutex
	balances map[string]map[string]*big.Int
	failing  map[string]error
	applied  map[string]entry
	journal  []string
}

// entry é uma transferência aplicada; amount nil marca ref anulada antes de aplicar
type entry struct {
	asset, from, to string
	amount          *big.Int
}

var (
	_ Ledger      = (*MemoryLedger)(nil)
	_ BatchPusher = (*MemoryLedger)(nil)
	_ Reverter    = (*MemoryLedger)(nil)
)

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		balances: make(map[string]map[string]*big.Int),
		failing:  make(map[string]error),
		applied:  make(map[string]entry),
	}
}

// Deposit credita saldo externo numa conta
func (l *MemoryLedger) Deposit(asset, account string, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.bal(asset, account).Add(l.bal(asset, account), amount)
}

// Balance retorna uma cópia do saldo atual
func (l *MemoryLedger) Balance(asset, account string) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.bal(asset, account))
}

// FailFor faz toda transferência envolvendo a conta falhar com err (nil remove)
func (l *MemoryLedger) FailFor(account string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err == nil {
		delete(l.failing, account)
		return
	}
	l.failing[account] = err
}

// Journal devolve as referências das transferências efetivadas, em ordem
func (l *MemoryLedger) Journal() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.journal...)
}

func (l *MemoryLedger) Pull(_ context.Context, asset, from string, amount *big.Int, ref string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.move(asset, from, EscrowAccount, amount, ref)
}

func (l *MemoryLedger) Push(_ context.Context, asset, to string, amount *big.Int, ref string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.move(asset, EscrowAccount, to, amount, ref)
}

// PushBatch valida todos os repasses antes de mover qualquer valor
func (l *MemoryLedger) PushBatch(_ context.Context, asset string, transfers []Transfer) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	need := new(big.Int)
	for _, t := range transfers {
		if err := l.failing[t.Account]; err != nil {
			return fmt.Errorf("push to %s: %w", t.Account, err)
		}
		if t.Account == EscrowAccount {
			return ErrSameAccount
		}
		if _, done := l.applied[t.Ref]; !done {
			need.Add(need, t.Amount)
		}
	}
	if l.bal(asset, EscrowAccount).Cmp(need) < 0 {
		return ErrInsufficientFunds
	}
	for _, t := range transfers {
		if err := l.move(asset, EscrowAccount, t.Account, t.Amount, t.Ref); err != nil {
			return err
		}
	}
	return nil
}

// Revert anula ref: estorna se já aplicada, bloqueia se ainda não
func (l *MemoryLedger) Revert(_ context.Context, asset, ref string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.applied[ref]
	if !ok {
		l.applied[ref] = entry{asset: asset}
		return nil
	}
	if e.amount == nil {
		return nil
	}
	if e.asset != asset {
		return fmt.Errorf("%w: %s moved %s, not %s", ErrNotReversible, ref, e.asset, asset)
	}
	return l.move(asset, e.to, e.from, e.amount, ReversalRef(ref))
}

func (l *MemoryLedger) move(asset, from, to string, amount *big.Int, ref string) error {
	if amount.Sign() < 0 {
		return fmt.Errorf("negative transfer %s", amount)
	}
	if from == to {
		return ErrSameAccount
	}
	if _, done := l.applied[ref]; done {
		return nil
	}
	if err := l.failing[from]; err != nil {
		return fmt.Errorf("transfer from %s: %w", from, err)
	}
	if err := l.failing[to]; err != nil {
		return fmt.Errorf("transfer to %s: %w", to, err)
	}
	src := l.bal(asset, from)
	if src.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	src.Sub(src, amount)
	dst := l.bal(asset, to)
	dst.Add(dst, amount)
	l.applied[ref] = entry{asset: asset, from: from, to: to, amount: new(big.Int).Set(amount)}
	l.journal = append(l.journal, ref)
	return nil
}

func (l *MemoryLedger) bal(asset, account string) *big.Int {
	m, ok := l.balances[asset]
	if !ok {
		m = make(map[string]*big.Int)
		l.balances[asset] = m
	}
	b, ok := m[account]
	if !ok {
		b = new(big.Int)
		m[account] = b
	}
	return b
}
