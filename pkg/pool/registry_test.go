package pool

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solPool() *Pool {
	return &Pool{
		ID: "SOL-USDC", BaseMint: "SOL", QuoteMint: "USDC",
		FeeBps: 30, Enabled: true, MinAmount: 1000,
	}
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(solPool()))

	p, err := r.Get("SOL-USDC")
	require.NoError(t, err)
	assert.Equal(t, "SOL", p.BaseMint)

	_, err = r.Get("missing")
	assert.ErrorIs(t, err, ErrUnknownPool)

	assert.Error(t, r.Register(solPool()), "duplicate id rejected")
	assert.Error(t, r.Register(&Pool{}), "empty id rejected")
	assert.Error(t, r.Register(nil))
	assert.Equal(t, 1, r.Count())
}

func TestRegistryValidate(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(solPool()))
	require.NoError(t, r.Register(&Pool{ID: "OFF-USDC", Enabled: false}))

	_, err := r.Validate("SOL-USDC", 5000)
	assert.NoError(t, err)

	_, err = r.Validate("SOL-USDC", 999)
	assert.Error(t, err, "below pool minimum")

	_, err = r.Validate("OFF-USDC", 5000)
	assert.ErrorIs(t, err, ErrPoolDisabled)

	_, err = r.Validate("missing", 5000)
	assert.ErrorIs(t, err, ErrUnknownPool)
}

func TestRegistryLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pools.json")
	data := `[
	  {"id": "SOL-USDC", "baseMint": "SOL", "quoteMint": "USDC", "feeBps": 30, "enabled": true, "minAmount": 1000},
	  {"id": "BONK-SOL", "baseMint": "BONK", "quoteMint": "SOL", "feeBps": 100, "enabled": false}
	]`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	r := NewRegistry()
	require.NoError(t, r.LoadFile(path))
	assert.Equal(t, 2, r.Count())

	p, err := r.Get("BONK-SOL")
	require.NoError(t, err)
	assert.False(t, p.Enabled)
	assert.EqualValues(t, 100, p.FeeBps)
}

func TestRegistryLoadFileErrors(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.LoadFile(filepath.Join(t.TempDir(), "absent.json")))

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o644))
	assert.Error(t, r.LoadFile(bad))
}

func TestPoolQuoteFee(t *testing.T) {
	p := solPool()
	assert.Equal(t, "3000", p.QuoteFee(1_000_000).String())
	assert.Equal(t, "0.3", p.QuoteFee(100).String())

	free := &Pool{ID: "X", FeeBps: 0}
	assert.True(t, free.QuoteFee(1_000_000).IsZero())
}
