package params

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ravine-network/ravine/storage/database"
)

func TestForNetworkReturnsDistinctDifficulty(t *testing.T) {
	live := ForNetwork(NetworkLive)
	beta := ForNetwork(NetworkBeta)
	test := ForNetwork(NetworkTest)

	require.Equal(t, uint64(0xffffffc000000000), live.PublishThreshold)
	require.Equal(t, uint64(0xfffffff800000000), beta.PublishThreshold)
	require.Equal(t, uint64(0xff00000000000000), test.PublishThreshold)
	require.Less(t, test.PublishThreshold, live.PublishThreshold, "test network difficulty must be easier than live")
}

func TestForNetworkUnknownFallsBackToLive(t *testing.T) {
	p := ForNetwork(Network(99))
	require.Equal(t, NetworkLive, p.Network)
}

func TestNetworkString(t *testing.T) {
	require.Equal(t, "live", NetworkLive.String())
	require.Equal(t, "beta", NetworkBeta.String())
	require.Equal(t, "test", NetworkTest.String())
	require.Equal(t, "unknown", Network(99).String())
}

func TestDefaultNodeConfig(t *testing.T) {
	cfg := DefaultNodeConfig()
	require.Equal(t, NetworkLive, cfg.Network)
	require.Equal(t, database.BackendBadger, cfg.Backend)
	require.Equal(t, uint16(7075), cfg.Peering.ListenPort)
	require.Equal(t, 500*time.Millisecond, cfg.BlockProcessor.BatchMaxTime)
	require.Equal(t, 256, cfg.Election.MaxElections)
}

func TestLoadNodeConfigOverridesDefaults(t *testing.T) {
	toml := `
Network = 2
DataDir = "/var/lib/ravine"

[Peering]
ListenPort = 9999
MaxPeersPerIP = 3
PreferredPeers = ["10.0.0.1:7075"]

[BlockProcessor]
BatchMaxTime = 250000000
SidebandBatchSize = 64
`
	cfg, err := LoadNodeConfig(strings.NewReader(toml))
	require.NoError(t, err)
	require.Equal(t, NetworkTest, cfg.Network)
	require.Equal(t, "/var/lib/ravine", cfg.DataDir)
	require.Equal(t, uint16(9999), cfg.Peering.ListenPort)
	require.Equal(t, 3, cfg.Peering.MaxPeersPerIP)
	require.Equal(t, []string{"10.0.0.1:7075"}, cfg.Peering.PreferredPeers)
	require.Equal(t, 250*time.Millisecond, cfg.BlockProcessor.BatchMaxTime)

	// Fields the TOML doesn't touch keep their defaults.
	require.Equal(t, database.BackendBadger, cfg.Backend)
	require.Equal(t, 1500*time.Millisecond, cfg.Election.AnnounceInterval)
}

func TestLoadNodeConfigRejectsMalformedToml(t *testing.T) {
	_, err := LoadNodeConfig(strings.NewReader("this is not = [valid toml"))
	require.Error(t, err)
}
