// Package params holds the per-network constants (genesis, difficulty,
// ports) and the on-disk node configuration, decoded with the same
// naoina/toml library the rest of the corpus uses for its config files.
package params

import (
	"io"
	"time"

	"github.com/naoina/toml"
	"github.com/pkg/errors"

	"github.com/ravine-network/ravine/common"
	"github.com/ravine-network/ravine/storage/database"
)

// Network selects one of the three well-known networks a node can join.
type Network int

const (
	NetworkLive Network = iota
	NetworkBeta
	NetworkTest
)

func (n Network) String() string {
	switch n {
	case NetworkLive:
		return "live"
	case NetworkBeta:
		return "beta"
	case NetworkTest:
		return "test"
	default:
		return "unknown"
	}
}

// NetworkParams bundles the constants that differ between live, beta and
// test networks: genesis content, PoW difficulty and default listening
// port. Test networks use a far easier difficulty so unit tests can
// generate valid work without burning CPU.
type NetworkParams struct {
	Network          Network
	GenesisAccount   common.Account
	GenesisSignature common.Uint512
	PublishThreshold uint64
	DefaultPeerPort  uint16
}

var (
	liveParams = NetworkParams{
		Network:          NetworkLive,
		PublishThreshold: 0xffffffc000000000,
		DefaultPeerPort:  7075,
	}
	betaParams = NetworkParams{
		Network:          NetworkBeta,
		PublishThreshold: 0xfffffff800000000,
		DefaultPeerPort:  54000,
	}
	testParams = NetworkParams{
		Network:          NetworkTest,
		PublishThreshold: 0xff00000000000000,
		DefaultPeerPort:  44000,
	}
)

// ForNetwork returns the constant set for a named network.
func ForNetwork(n Network) NetworkParams {
	switch n {
	case NetworkBeta:
		return betaParams
	case NetworkTest:
		return testParams
	default:
		return liveParams
	}
}

// NodeConfig is the top-level, TOML-decoded node configuration, grounded on
// the corpus's nodeconfig pattern: a flat struct of bools/ints read straight
// out of a config file, with defaults supplied by DefaultNodeConfig.
type NodeConfig struct {
	Network Network

	DataDir string
	Backend database.BackendType

	Peering PeeringConfig
	Bootstrap BootstrapConfig
	BlockProcessor BlockProcessorConfig
	Election ElectionConfig

	DisableUncheckedCleanup bool
	DisableUncheckedDrop    bool
}

type PeeringConfig struct {
	ListenPort         uint16
	MaxPeersPerIP       int
	PreferredPeers      []string
}

type BootstrapConfig struct {
	DisableLazyBootstrap   bool
	DisableLegacyBootstrap bool
	DisableWalletBootstrap bool
	DisableBootstrapListener bool
	FastBootstrap          bool
}

type BlockProcessorConfig struct {
	BatchMaxTime     time.Duration
	SidebandBatchSize int
}

type ElectionConfig struct {
	AnnounceInterval time.Duration
	MaxElections     int
}

// DefaultNodeConfig mirrors the defaults the corpus ships for its own
// daemon config: conservative batch sizes and intervals tuned for a single
// full node rather than a benchmarked validator farm.
func DefaultNodeConfig() NodeConfig {
	return NodeConfig{
		Network: NetworkLive,
		Backend: database.BackendBadger,
		Peering: PeeringConfig{
			ListenPort:    7075,
			MaxPeersPerIP: 10,
		},
		BlockProcessor: BlockProcessorConfig{
			BatchMaxTime:      500 * time.Millisecond,
			SidebandBatchSize: 512,
		},
		Election: ElectionConfig{
			AnnounceInterval: 1500 * time.Millisecond,
			MaxElections:     256,
		},
	}
}

// LoadNodeConfig decodes a TOML config file on top of the defaults, the same
// read-then-decode-then-merge pattern the corpus uses for its daemon config.
func LoadNodeConfig(r io.Reader) (NodeConfig, error) {
	cfg := DefaultNodeConfig()
	if err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return cfg, errors.Wrap(err, "params: failed to decode node config")
	}
	return cfg, nil
}
