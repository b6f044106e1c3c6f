package http

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/pari-mutuel-escrow/internal/escrow"
	"github.com/radieske/pari-mutuel-escrow/internal/shared/auth"
	"github.com/radieske/pari-mutuel-escrow/internal/wallet-service/dto"
)

const secret = "wallet-secret"

var testAuth = ServiceAuth{Secret: secret, Services: []string{"escrow-service"}}

// memRepo adapta o ledger em memória à interface Repo
type memRepo struct{ *escrow.MemoryLedger }

func (m memRepo) Balance(_ context.Context, asset, account string) (*big.Int, error) {
	return m.MemoryLedger.Balance(asset, account), nil
}

func (m memRepo) Deposit(_ context.Context, asset, account string, amount *big.Int, _ string) (*big.Int, error) {
	m.MemoryLedger.Deposit(asset, account, amount)
	return m.MemoryLedger.Balance(asset, account), nil
}

// do chama a rota como escrow-service
func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return doAs(t, h, "escrow-service", method, path, body)
}

// doAs chama a rota com um token de sub; sub vazio = anônimo
func doAs(t *testing.T, h http.Handler, sub, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if sub != "" {
		tok, err := auth.Issue(secret, sub, 0)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestWalletRoutes(t *testing.T) {
	ledger := escrow.NewMemoryLedger()
	h := NewServer(zap.NewNop(), memRepo{ledger}, testAuth).Router()

	rec := do(t, h, http.MethodPost, "/wallet/deposit", dto.DepositRequest{Account: "alice", Asset: "tok", Amount: "100"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, "/wallet/pull", dto.TransferRequest{Account: "alice", Asset: "tok", Amount: "60", ExternalRef: "stake:1"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, "/wallet/push-batch", dto.PushBatchRequest{Asset: "tok", Transfers: []dto.BatchTransfer{
		{Account: "bob", Amount: "25", ExternalRef: "payout:1"},
		{Account: "carol", Amount: "35", ExternalRef: "payout:2"},
	}})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/wallet?account=carol&asset=tok", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp dto.WalletResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "35", resp.Balance)
	assert.Equal(t, "40", ledger.Balance("tok", "alice").String())
}

func TestWalletErrors(t *testing.T) {
	ledger := escrow.NewMemoryLedger()
	h := NewServer(zap.NewNop(), memRepo{ledger}, testAuth).Router()

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		code   int
	}{
		{"missing query", http.MethodGet, "/wallet?account=a", nil, http.StatusBadRequest},
		{"zero amount", http.MethodPost, "/wallet/pull", dto.TransferRequest{Account: "a", Asset: "tok", Amount: "0", ExternalRef: "r"}, http.StatusBadRequest},
		{"not a number", http.MethodPost, "/wallet/deposit", dto.DepositRequest{Account: "a", Asset: "tok", Amount: "1.5"}, http.StatusBadRequest},
		{"missing ref", http.MethodPost, "/wallet/push", dto.TransferRequest{Account: "a", Asset: "tok", Amount: "1"}, http.StatusBadRequest},
		{"insufficient", http.MethodPost, "/wallet/pull", dto.TransferRequest{Account: "a", Asset: "tok", Amount: "1", ExternalRef: "r"}, http.StatusConflict},
		{"wrong method", http.MethodGet, "/wallet/pull", nil, http.StatusMethodNotAllowed},
		{"self transfer", http.MethodPost, "/wallet/pull", dto.TransferRequest{Account: escrow.EscrowAccount, Asset: "tok", Amount: "1", ExternalRef: "r2"}, http.StatusBadRequest},
		{"revert without ref", http.MethodPost, "/wallet/revert", dto.RevertRequest{Asset: "tok"}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, h, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.code, rec.Code)
		})
	}
}

func TestMutatingRoutesRequireService(t *testing.T) {
	ledger := escrow.NewMemoryLedger()
	ledger.Deposit("tok", "alice", big.NewInt(100))
	h := NewServer(zap.NewNop(), memRepo{ledger}, testAuth).Router()
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/wallet/pull",
		dto.TransferRequest{Account: "alice", Asset: "tok", Amount: "100", ExternalRef: "stake:1"}).Code)

	steal := dto.TransferRequest{Account: "mallory", Asset: "tok", Amount: "100", ExternalRef: "steal-1"}
	routes := []struct {
		path string
		body any
	}{
		{"/wallet/push", steal},
		{"/wallet/pull", dto.TransferRequest{Account: "alice", Asset: "tok", Amount: "1", ExternalRef: "steal-2"}},
		{"/wallet/deposit", dto.DepositRequest{Account: "mallory", Asset: "tok", Amount: "1000"}},
		{"/wallet/push-batch", dto.PushBatchRequest{Asset: "tok", Transfers: []dto.BatchTransfer{{Account: "mallory", Amount: "100", ExternalRef: "steal-3"}}}},
		{"/wallet/revert", dto.RevertRequest{Asset: "tok", ExternalRef: "stake:1"}},
	}
	for _, rt := range routes {
		t.Run(rt.path, func(t *testing.T) {
			assert.Equal(t, http.StatusUnauthorized, doAs(t, h, "", http.MethodPost, rt.path, rt.body).Code)
			assert.Equal(t, http.StatusForbidden, doAs(t, h, "mallory", http.MethodPost, rt.path, rt.body).Code)
		})
	}

	assert.Equal(t, big.NewInt(100), ledger.Balance("tok", escrow.EscrowAccount))
	assert.Equal(t, 0, ledger.Balance("tok", "mallory").Sign())

	// consulta de saldo continua pública
	assert.Equal(t, http.StatusOK, doAs(t, h, "", http.MethodGet, "/wallet?account=alice&asset=tok", nil).Code)
}

func TestRevertRoute(t *testing.T) {
	ledger := escrow.NewMemoryLedger()
	ledger.Deposit("tok", "alice", big.NewInt(100))
	h := NewServer(zap.NewNop(), memRepo{ledger}, testAuth).Router()

	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/wallet/pull",
		dto.TransferRequest{Account: "alice", Asset: "tok", Amount: "60", ExternalRef: "stake:1"}).Code)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/wallet/revert",
		dto.RevertRequest{Asset: "tok", ExternalRef: "stake:1"}).Code)
	assert.Equal(t, big.NewInt(100), ledger.Balance("tok", "alice"))

	rec := do(t, h, http.MethodPost, "/wallet/revert", dto.RevertRequest{Asset: "other", ExternalRef: "stake:1"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
