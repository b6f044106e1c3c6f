package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/pari-mutuel-escrow/internal/escrow"
	"github.com/radieske/pari-mutuel-escrow/internal/escrow-service/dto"
	"github.com/radieske/pari-mutuel-escrow/internal/shared/auth"
)

const secret = "test-secret"

type fixture struct {
	t      *testing.T
	h      http.Handler
	ledger *escrow.MemoryLedger
	svc    *escrow.Service
}

func newFixture(t *testing.T) *fixture {
	ledger := escrow.NewMemoryLedger()
	for _, who := range []string{"alice", "bob", "carol"} {
		ledger.Deposit("tok", who, big.NewInt(1000))
	}
	svc, err := escrow.NewService(escrow.NewMemoryStore(), ledger)
	require.NoError(t, err)
	api := &API{Log: zap.NewNop(), Svc: svc, JWTSecret: secret}
	return &fixture{t: t, h: api.Router(), ledger: ledger, svc: svc}
}

func (f *fixture) do(method, path, caller string, body any) *httptest.ResponseRecorder {
	f.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(f.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if caller != "" {
		tok, err := auth.Issue(secret, caller, time.Hour)
		require.NoError(f.t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	f.h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func (f *fixture) createGame() string {
	rec := f.do(http.MethodPost, "/v1/games", "reg", dto.CreateGameRequest{TeamA: "Flamengo", TeamB: "Vasco", Date: "2024-05-01", Asset: "tok"})
	require.Equal(f.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[dto.GameIDResponse](f.t, rec).ID
}

func TestGameLifecycleOverHTTP(t *testing.T) {
	f := newFixture(t)
	id := f.createGame()
	base := "/v1/games/" + id

	rec := f.do(http.MethodGet, "/v1/game-id?teamA=Flamengo&teamB=Vasco&date=2024-05-01&asset=tok", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, decode[dto.GameIDResponse](t, rec).ID)

	rec = f.do(http.MethodGet, base+"/open", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[dto.OpenResponse](t, rec).Open)

	for _, b := range []struct {
		who     string
		outcome int
		amount  string
	}{{"alice", 0, "300"}, {"bob", 1, "100"}, {"carol", 0, "100"}} {
		rec = f.do(http.MethodPost, base+"/bets", b.who, dto.PlaceBetRequest{Outcome: b.outcome, Amount: b.amount})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec = f.do(http.MethodGet, base+"/result", "", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(http.MethodPost, base+"/close", "reg", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "CLOSED", decode[dto.StateResponse](t, rec).State)

	rec = f.do(http.MethodPost, base+"/result", "reg", dto.SetResultRequest{Outcome: 0})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	st := decode[dto.SettlementView](t, rec)
	assert.Equal(t, "500", st.TotalPool)
	require.Len(t, st.Payouts, 2)
	// 300*500*9700/(400*10000) = 363 ; 100*500*9700/(400*10000) = 121
	assert.Equal(t, "363", st.Payouts[0].Amount)
	assert.Equal(t, "121", st.Payouts[1].Amount)
	assert.Equal(t, "16", st.Retained)

	rec = f.do(http.MethodGet, base+"/result", "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode[dto.ResultResponse](t, rec).Result)

	rec = f.do(http.MethodGet, base, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	g := decode[dto.GameView](t, rec)
	assert.Equal(t, "SETTLED", g.State)
	assert.Equal(t, []string{"400", "100", "0"}, g.Stakes)
	assert.Len(t, g.Bets, 3)
	assert.Equal(t, "16", g.Escrow)

	rec = f.do(http.MethodGet, "/v1/games", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]dto.GameView](t, rec), 1)

	assert.Equal(t, "1063", f.ledger.Balance("tok", "alice").String())
	assert.Equal(t, "900", f.ledger.Balance("tok", "bob").String())
}

func TestErrorStatusCodes(t *testing.T) {
	f := newFixture(t)
	id := f.createGame()
	base := "/v1/games/" + id
	unknown := "/v1/games/" + escrow.ComputeGameID("x", "y", "z", "tok").String()

	cases := []struct {
		name   string
		method string
		path   string
		caller string
		body   any
		code   int
	}{
		{"create anonymous", http.MethodPost, "/v1/games", "", dto.CreateGameRequest{TeamA: "a", TeamB: "b", Date: "d", Asset: "tok"}, http.StatusUnauthorized},
		{"create duplicate", http.MethodPost, "/v1/games", "other", dto.CreateGameRequest{TeamA: "Flamengo", TeamB: "Vasco", Date: "2024-05-01", Asset: "tok"}, http.StatusConflict},
		{"create missing fields", http.MethodPost, "/v1/games", "reg", dto.CreateGameRequest{TeamA: "a"}, http.StatusBadRequest},
		{"bad id", http.MethodGet, "/v1/games/0x12", "", nil, http.StatusBadRequest},
		{"unknown game", http.MethodGet, unknown, "", nil, http.StatusNotFound},
		{"unknown game bet", http.MethodPost, unknown + "/bets", "alice", dto.PlaceBetRequest{Outcome: 9, Amount: "0"}, http.StatusNotFound},
		{"registrar bets", http.MethodPost, base + "/bets", "reg", dto.PlaceBetRequest{Outcome: 0, Amount: "1"}, http.StatusForbidden},
		{"anonymous bet", http.MethodPost, base + "/bets", "", dto.PlaceBetRequest{Outcome: 0, Amount: "1"}, http.StatusForbidden},
		{"outcome out of range", http.MethodPost, base + "/bets", "alice", dto.PlaceBetRequest{Outcome: 256, Amount: "1"}, http.StatusBadRequest},
		{"zero amount", http.MethodPost, base + "/bets", "alice", dto.PlaceBetRequest{Outcome: 0, Amount: "0"}, http.StatusBadRequest},
		{"garbage amount", http.MethodPost, base + "/bets", "alice", dto.PlaceBetRequest{Outcome: 0, Amount: "ten"}, http.StatusBadRequest},
		{"insufficient funds", http.MethodPost, base + "/bets", "alice", dto.PlaceBetRequest{Outcome: 0, Amount: "5000"}, http.StatusPaymentRequired},
		{"close by non registrar", http.MethodPost, base + "/close", "alice", nil, http.StatusForbidden},
		{"result while open", http.MethodPost, base + "/result", "reg", dto.SetResultRequest{Outcome: 0}, http.StatusConflict},
		{"bad json", http.MethodPost, base + "/result", "reg", "{", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.do(tc.method, tc.path, tc.caller, tc.body)
			assert.Equal(t, tc.code, rec.Code, rec.Body.String())
		})
	}
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusPaymentRequired, StatusFor(fmt.Errorf("%w: boom", escrow.ErrTransferFailed)))
	assert.Equal(t, http.StatusConflict, StatusFor(escrow.ErrNotClosed))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(fmt.Errorf("db down")))
}

type mapCache struct {
	data     map[string][]byte
	versions []int64
	gets     int
}

func (m *mapCache) Get(_ context.Context, id string, dst any) (bool, error) {
	m.gets++
	b, ok := m.data[id]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (m *mapCache) Set(_ context.Context, id string, version int64, v any) error {
	b, err := json.Marshal(v)
	m.data[id] = b
	m.versions = append(m.versions, version)
	return err
}

func TestGetGameUsesCache(t *testing.T) {
	f := newFixture(t)
	c := &mapCache{data: map[string][]byte{}}
	f.h = (&API{Log: zap.NewNop(), Svc: f.svc, JWTSecret: secret, Cache: c}).Router()
	id := f.createGame()

	rec := f.do(http.MethodGet, "/v1/games/"+id, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, c.data, id)
	assert.Equal(t, []int64{0}, c.versions)

	// entrada adulterada prova que a segunda leitura veio do cache
	c.data[id] = []byte(`{"id":"cached","state":"OPEN"}`)
	rec = f.do(http.MethodGet, "/v1/games/"+id, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cached", decode[dto.GameView](t, rec).ID)
}

func TestSingleGameRoutes(t *testing.T) {
	f := newFixture(t)
	single, err := escrow.NewSingleGame(context.Background(), f.svc, "A", "B", "2024-06-01", "tok", "reg")
	require.NoError(t, err)
	f.h = (&API{Log: zap.NewNop(), Svc: f.svc, JWTSecret: secret, Single: single}).Router()

	rec := f.do(http.MethodGet, "/v1/game", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, single.ID().String(), decode[dto.GameView](t, rec).ID)

	rec = f.do(http.MethodPost, "/v1/game/bets", "alice", dto.PlaceBetRequest{Outcome: 2, Amount: "10"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = f.do(http.MethodPost, "/v1/game/close", "reg", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = f.do(http.MethodPost, "/v1/game/result", "reg", dto.SetResultRequest{Outcome: 2})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/v1/game/result", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[dto.ResultResponse](t, rec).Result)
	// 10*10*9700/(10*10000) = 9
	assert.Equal(t, "999", f.ledger.Balance("tok", "alice").String())
}
