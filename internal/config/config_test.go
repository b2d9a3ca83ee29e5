package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "node_seed: \"\"\n")
	n, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:7800", n.NodeBindEndpoint)
	require.Equal(t, 512, n.MaxLessPeers)
	require.Equal(t, 10_000, n.TxPoolSize)
	require.Equal(t, "./data", n.DataDir)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, ""+
		"node_bind_endpoint: \"0.0.0.0:9000\"\n"+
		"max_less_peers: 8\n"+
		"max_greater_peers: 4\n"+
		"initial_peers:\n"+
		"  - \"10.0.0.1:7800\"\n"+
		"  - \"10.0.0.2:7800\"\n")
	n, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:9000", n.NodeBindEndpoint)
	require.Equal(t, 8, n.MaxLessPeers)
	require.Equal(t, 4, n.MaxGreaterPeers)
	require.Len(t, n.InitialPeers, 2)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestParseInitialPeers(t *testing.T) {
	n := &Node{InitialPeers: []string{"127.0.0.1:7800", "not-an-endpoint", "192.168.1.1:7801"}}
	addrs, errs := n.ParseInitialPeers()
	require.Len(t, addrs, 2)
	require.Len(t, errs, 1)
}
