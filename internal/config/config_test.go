package config

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.streamcat.tech/core/clvm"
	"go.streamcat.tech/core/ledger"
	"go.streamcat.tech/core/puzzles"
	"go.streamcat.tech/core/types"
)

func TestLoadMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.False(t, cfg.Mainnet())
	assert.Equal(t, ledger.Testnet11URL, cfg.CoinsetURL())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
network: mainnet
poll_interval: 30s
coinset:
  requests_per_second: 2.5
sage:
  cert_path: /tmp/ssl
`), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Mainnet())
	assert.Equal(t, ledger.MainnetURL, cfg.CoinsetURL())
	assert.Equal(t, 30*time.Second, cfg.PollInterval)
	assert.Equal(t, 2.5, cfg.Coinset.RequestsPerSecond)
	assert.Equal(t, 5, cfg.Coinset.Burst, "unset fields keep their defaults")
	assert.Equal(t, "/tmp/ssl", cfg.Sage.CertPath)
	assert.Equal(t, Default().Sage.URL, cfg.Sage.URL)

	cfg.Coinset.URL = "http://localhost:8555"
	assert.Equal(t, "http://localhost:8555", cfg.CoinsetURL())
}

func TestLoadInvalid(t *testing.T) {
	dir := t.TempDir()
	for name, contents := range map[string]string{
		"network": "network: devnet\n",
		"rate":    "coinset:\n  requests_per_second: 0\n",
		"yaml":    "network: [\n",
	} {
		path := filepath.Join(dir, name+".yaml")
		require.NoError(t, os.WriteFile(path, []byte(contents), 0600))
		_, err := Load(path)
		assert.Error(t, err, name)
	}
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Network = Mainnet
	cfg.Log.Dir = "/var/log/streaming"
	require.NoError(t, Save(path, cfg))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	p, err := ExpandPath("~/ssl")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "ssl"), p)
	p, err = ExpandPath("/abs/~/ssl")
	require.NoError(t, err)
	assert.Equal(t, "/abs/~/ssl", p)
}

func TestLoadTemplates(t *testing.T) {
	dir := t.TempDir()
	reveal := clvm.List(clvm.Atom([]byte("clawback stream")))
	v2Path := filepath.Join(dir, "stream_v2.hex")
	require.NoError(t, os.WriteFile(v2Path, []byte(hex.EncodeToString(clvm.Serialize(reveal))+"\n"), 0600))

	cfg := Default()
	token, r, err := cfg.LoadTemplates()
	require.NoError(t, err)
	assert.Equal(t, puzzles.CATModHash, token.Hash)
	assert.False(t, token.HasReveal())
	_, ok := r.Template(types.StreamV2)
	assert.False(t, ok)

	cfg.Templates.StreamV2 = v2Path
	_, r, err = cfg.LoadTemplates()
	require.NoError(t, err)
	v2, ok := r.Template(types.StreamV2)
	require.True(t, ok)
	assert.Equal(t, clvm.TreeHash(reveal), v2.Hash)
	_, ok = r.Template(types.StreamV1)
	assert.True(t, ok)

	// the token reveal must match the deployed token layer
	cfg.Templates.Token = v2Path
	_, _, err = cfg.LoadTemplates()
	assert.Error(t, err)
	cfg.Templates.Token = filepath.Join(dir, "missing.hex")
	_, _, err = cfg.LoadTemplates()
	assert.Error(t, err)
}
