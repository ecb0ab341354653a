// Command ravine runs a full block-lattice node: opens its storage,
// constructs the ledger/processor/election/peerset/work-pool wiring, and
// blocks until interrupted. Flag set and app construction are grounded on
// the corpus's own cmd/kcn/main.go (one urfave/cli App, a flat slice of
// flags merged onto it, a single Action that builds and runs the node).
package main

import (
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/urfave/cli"

	"github.com/ravine-network/ravine/log"
	"github.com/ravine-network/ravine/node"
	"github.com/ravine-network/ravine/params"
	"github.com/ravine-network/ravine/storage/database"
)

var logger = log.NewModuleLogger(log.CLI)

var (
	networkFlag = cli.StringFlag{
		Name:  "network",
		Usage: "Network to join: live, beta, or test",
		Value: "live",
	}
	dataDirFlag = cli.StringFlag{
		Name:  "datadir",
		Usage: "Data directory for the node's database; empty runs fully in memory",
	}
	dbTypeFlag = cli.StringFlag{
		Name:  "dbtype",
		Usage: "Storage backend: badger, leveldb, or memory",
		Value: "badger",
	}
	peerPortFlag = cli.IntFlag{
		Name:  "port",
		Usage: "Listening port for peer connections; 0 uses the network default",
	}

	disableBackupFlag            = cli.BoolFlag{Name: "disable_backup", Usage: "Disable periodic wallet backup"}
	disableLazyBootstrapFlag     = cli.BoolFlag{Name: "disable_lazy_bootstrap", Usage: "Disable lazy (bulk_pull_blocks) bootstrap"}
	disableLegacyBootstrapFlag   = cli.BoolFlag{Name: "disable_legacy_bootstrap", Usage: "Disable legacy (frontier-sweep) bootstrap"}
	disableWalletBootstrapFlag   = cli.BoolFlag{Name: "disable_wallet_bootstrap", Usage: "Disable wallet-triggered targeted bootstrap"}
	disableBootstrapListenerFlag = cli.BoolFlag{Name: "disable_bootstrap_listener", Usage: "Refuse incoming bootstrap pull requests from peers"}
	disableUncheckedCleanupFlag  = cli.BoolFlag{Name: "disable_unchecked_cleanup", Usage: "Disable the periodic unchecked-table age sweep"}
	disableUncheckedDropFlag     = cli.BoolFlag{Name: "disable_unchecked_drop", Usage: "Keep the unchecked table across restarts instead of dropping it"}
	fastBootstrapFlag            = cli.BoolFlag{Name: "fast_bootstrap", Usage: "Skip per-block signature verification during bootstrap catch-up"}
	sidebandBatchSizeFlag        = cli.IntFlag{Name: "sideband_batch_size", Usage: "Sideband batch size, stored in the node config (the block processor does not read it)", Value: 512}
)

var nodeFlags = []cli.Flag{
	networkFlag,
	dataDirFlag,
	dbTypeFlag,
	peerPortFlag,
	disableBackupFlag,
	disableLazyBootstrapFlag,
	disableLegacyBootstrapFlag,
	disableWalletBootstrapFlag,
	disableBootstrapListenerFlag,
	disableUncheckedCleanupFlag,
	disableUncheckedDropFlag,
	fastBootstrapFlag,
	sidebandBatchSizeFlag,
}

func main() {
	app := cli.NewApp()
	app.Name = "ravine"
	app.Usage = "block-lattice full node"
	app.Flags = nodeFlags
	app.Action = run
	sort.Sort(cli.FlagsByName(app.Flags))

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg := buildConfig(c)

	n, err := node.New(cfg)
	if err != nil {
		return err
	}
	n.Start()
	logger.Info("ravine node running", "id", n.ID(), "network", cfg.Network)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	logger.Info("shutting down")
	return n.Stop()
}

func buildConfig(c *cli.Context) params.NodeConfig {
	cfg := params.DefaultNodeConfig()

	switch c.String(networkFlag.Name) {
	case "beta":
		cfg.Network = params.NetworkBeta
	case "test":
		cfg.Network = params.NetworkTest
	default:
		cfg.Network = params.NetworkLive
	}

	cfg.DataDir = c.String(dataDirFlag.Name)
	switch c.String(dbTypeFlag.Name) {
	case "leveldb":
		cfg.Backend = database.BackendLevelDB
	case "memory":
		cfg.Backend = database.BackendMemory
	default:
		cfg.Backend = database.BackendBadger
	}

	if port := c.Int(peerPortFlag.Name); port != 0 {
		cfg.Peering.ListenPort = uint16(port)
	}

	cfg.Bootstrap.DisableLazyBootstrap = c.Bool(disableLazyBootstrapFlag.Name)
	cfg.Bootstrap.DisableLegacyBootstrap = c.Bool(disableLegacyBootstrapFlag.Name)
	cfg.Bootstrap.DisableWalletBootstrap = c.Bool(disableWalletBootstrapFlag.Name)
	cfg.Bootstrap.DisableBootstrapListener = c.Bool(disableBootstrapListenerFlag.Name)
	cfg.Bootstrap.FastBootstrap = c.Bool(fastBootstrapFlag.Name)

	cfg.DisableUncheckedCleanup = c.Bool(disableUncheckedCleanupFlag.Name)
	cfg.DisableUncheckedDrop = c.Bool(disableUncheckedDropFlag.Name)

	if n := c.Int(sidebandBatchSizeFlag.Name); n > 0 {
		cfg.BlockProcessor.SidebandBatchSize = n
	}

	// The bootstrap, unchecked-table and sideband settings above are stored
	// in the config, but no component of this node reads them.
	// disable_backup has no home: wallet key-backup is out of scope for
	// this node (see DESIGN.md); the flag is accepted and ignored rather
	// than rejected, matching how the corpus tolerates flags that only
	// apply to some build configurations.
	_ = c.Bool(disableBackupFlag.Name)

	return cfg
}
