package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/radieske/pari-mutuel-escrow/internal/escrow"
	walletdto "github.com/radieske/pari-mutuel-escrow/internal/wallet-service/dto"
)

// Client implementa escrow.Ledger, escrow.BatchPusher e escrow.Reverter sobre a API
// do wallet-service. Token é o bearer de serviço exigido pelas rotas que movem saldo.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

var (
	_ escrow.Ledger      = (*Client)(nil)
	_ escrow.BatchPusher = (*Client)(nil)
	_ escrow.Reverter    = (*Client)(nil)
)

func New(base, token string) *Client {
	return &Client{
		BaseURL: base,
		Token:   token,
		HTTP:    &http.Client{Timeout: 2 * time.Second},
	}
}

func (c *Client) Pull(ctx context.Context, asset, from string, amount *big.Int, ref string) error {
	return c.post(ctx, "/wallet/pull", walletdto.TransferRequest{Account: from, Asset: asset, Amount: amount.String(), ExternalRef: ref})
}

func (c *Client) Push(ctx context.Context, asset, to string, amount *big.Int, ref string) error {
	return c.post(ctx, "/wallet/push", walletdto.TransferRequest{Account: to, Asset: asset, Amount: amount.String(), ExternalRef: ref})
}

func (c *Client) PushBatch(ctx context.Context, asset string, transfers []escrow.Transfer) error {
	req := walletdto.PushBatchRequest{Asset: asset, Transfers: make([]walletdto.BatchTransfer, 0, len(transfers))}
	for _, t := range transfers {
		req.Transfers = append(req.Transfers, walletdto.BatchTransfer{Account: t.Account, Amount: t.Amount.String(), ExternalRef: t.Ref})
	}
	return c.post(ctx, "/wallet/push-batch", req)
}

// Revert pede ao wallet-service que anule ref (estorno se aplicada, bloqueio se não)
func (c *Client) Revert(ctx context.Context, asset, ref string) error {
	return c.post(ctx, "/wallet/revert", walletdto.RevertRequest{Asset: asset, ExternalRef: ref})
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	res, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 300 {
		return nil
	}

	var out walletdto.ErrorResponse
	_ = json.NewDecoder(res.Body).Decode(&out)
	switch res.StatusCode {
	case http.StatusConflict:
		return fmt.Errorf("wallet %s: %w", path, escrow.ErrInsufficientFunds)
	case http.StatusUnprocessableEntity:
		return fmt.Errorf("wallet %s: %w: %s", path, escrow.ErrNotReversible, out.Error)
	}
	return fmt.Errorf("wallet %s http %d: %s", path, res.StatusCode, out.Error)
}
