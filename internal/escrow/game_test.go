package escrow

import (
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeGameID(t *testing.T) {
	a := ComputeGameID("FLA", "FLU", "2021-10-30", token)
	b := ComputeGameID("FLA", "FLU", "2021-10-30", token)
	assert.Equal(t, a, b)

	assert.NotEqual(t, a, ComputeGameID("FLU", "FLA", "2021-10-30", token))
	assert.NotEqual(t, a, ComputeGameID("FLA", "FLU", "2021-10-30", "0xOther"))

	// campos delimitados pelo tamanho: concatenações iguais não colidem
	assert.NotEqual(t, ComputeGameID("ab", "c", "d", "e"), ComputeGameID("a", "bc", "d", "e"))
	assert.NotEqual(t, ComputeGameID("", "abc", "", ""), ComputeGameID("abc", "", "", ""))
}

func TestParseGameID(t *testing.T) {
	id := ComputeGameID("FLA", "FLU", "2021-10-30", token)
	s := id.String()
	assert.Len(t, s, 66)

	parsed, err := ParseGameID(s)
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	parsed, err = ParseGameID(s[2:])
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = ParseGameID("0x1234")
	assert.Error(t, err)
	_, err = ParseGameID("0x" + string(make([]byte, 64)))
	assert.Error(t, err)
}

func TestGameIDJSON(t *testing.T) {
	id := ComputeGameID("A", "B", "C", "D")
	b, err := json.Marshal(struct {
		ID GameID `json:"id"`
	}{id})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"`+id.String()+`"}`, string(b))

	var out struct {
		ID GameID `json:"id"`
	}
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, id, out.ID)
}

func TestCloneIsDeep(t *testing.T) {
	g := newGame("A", "B", "C", "D", owner, time.Now())
	g.Bets = append(g.Bets, Bet{ID: "b1", Amount: big.NewInt(5)})
	g.Stakes[0].SetInt64(5)
	g.Escrow.SetInt64(5)

	c := g.Clone()
	c.Bets[0].Amount.SetInt64(99)
	c.Stakes[0].SetInt64(99)
	c.Escrow.SetInt64(99)
	c.Bets = append(c.Bets, Bet{ID: "b2", Amount: big.NewInt(1)})

	assert.Equal(t, int64(5), g.Bets[0].Amount.Int64())
	assert.Equal(t, int64(5), g.Stakes[0].Int64())
	assert.Equal(t, int64(5), g.Escrow.Int64())
	assert.Len(t, g.Bets, 1)
}

func TestOutcomeValid(t *testing.T) {
	assert.True(t, Outcome(0).Valid())
	assert.True(t, Outcome(2).Valid())
	assert.False(t, Outcome(3).Valid())
}

func TestVersionGrowsWithEveryTransition(t *testing.T) {
	g := newGame("A", "B", "d", "tok", "reg", time.Now())
	assert.Equal(t, int64(0), g.Version())

	g.Bets = append(g.Bets, Bet{ID: "b1"}, Bet{ID: "b2"})
	assert.Equal(t, int64(2), g.Version())

	g.State = StateClosed
	assert.Equal(t, int64(3), g.Version())
	g.State = StateSettled
	assert.Equal(t, int64(4), g.Version())
}
