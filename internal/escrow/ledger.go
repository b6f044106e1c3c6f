package escrow

import (
	"context"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Ledger é a capacidade externa de transferência de ativos.
// Pull move fundos do apostador para o escrow; Push move do escrow para o destinatário.
// ref identifica a operação (idempotência do lado do ledger).
type Ledger interface {
	Pull(ctx context.Context, asset, from string, amount *big.Int, ref string) error
	Push(ctx context.Context, asset, to string, amount *big.Int, ref string) error
}

// EscrowAccount é a conta que custodia os valores apostados
const EscrowAccount = "escrow"

// Reverter é implementado por ledgers que anulam uma transferência pela ref.
// Se a ref já foi aplicada, o valor volta à origem (uma única vez); se ainda não
// foi, ela fica anulada e uma aplicação posterior não move saldo.
type Reverter interface {
	Revert(ctx context.Context, asset, ref string) error
}

// Transfer é um repasse individual dentro de um lote
type Transfer struct {
	Account string
	Amount  *big.Int
	Ref     string
}

// BatchPusher é implementado por ledgers capazes de repassar vários pagamentos
// numa única transação (tudo ou nada)
type BatchPusher interface {
	PushBatch(ctx context.Context, asset string, transfers []Transfer) error
}

// PayoutRef monta a referência usada no ledger para o pagamento de uma aposta
func PayoutRef(id GameID, betID string) string { return "payout:" + id.String() + ":" + betID }

// ReversalRef é a referência do estorno de ref
func ReversalRef(ref string) string { return "reversal:" + ref }

// StakeRef monta a referência usada no ledger para o depósito de uma aposta
func StakeRef(id GameID, betID string) string { return "stake:" + id.String() + ":" + betID }

// ParseQuantity converte uma quantidade legível ("6.111") para a menor unidade do ativo
func ParseQuantity(s string, decimals int32) (*big.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("parse quantity %q: %w", s, err)
	}
	scaled := d.Shift(decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("quantity %q has more than %d decimals", s, decimals)
	}
	return scaled.BigInt(), nil
}

// FormatQuantity faz o caminho inverso de ParseQuantity
func FormatQuantity(v *big.Int, decimals int32) string {
	return decimal.NewFromBigInt(v, -decimals).String()
}
