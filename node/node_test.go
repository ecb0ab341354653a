package node

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ravine-network/ravine/blockchain"
	"github.com/ravine-network/ravine/blockchain/types"
	"github.com/ravine-network/ravine/common"
	"github.com/ravine-network/ravine/params"
)

func testConfig() params.NodeConfig {
	cfg := params.DefaultNodeConfig()
	cfg.Network = params.NetworkTest // easiest PoW threshold, no DataDir means an in-memory backend
	cfg.Election.AnnounceInterval = time.Millisecond
	return cfg
}

func TestNewOpensMemoryDatabaseWithoutDataDir(t *testing.T) {
	n, err := New(testConfig())
	require.NoError(t, err)
	defer n.Stop()

	require.NotEmpty(t, n.ID())
	require.NotNil(t, n.DB)
	require.NotNil(t, n.Ledger)
	require.NotNil(t, n.Processor)
	require.NotNil(t, n.Elections)
	require.NotNil(t, n.Peers)
	require.NotNil(t, n.Work)
}

func TestStartStopIsIdempotentAndClosesDB(t *testing.T) {
	n, err := New(testConfig())
	require.NoError(t, err)

	n.Start()
	n.Start() // second call must be a no-op, not a double-start panic

	require.NoError(t, n.Stop())
	require.NoError(t, n.Stop()) // second call must be a no-op too
}

func TestOnProcessedForkStartsElection(t *testing.T) {
	n, err := New(testConfig())
	require.NoError(t, err)
	defer n.Stop()

	blk := &types.StateBlock{StateAccount: common.Account{1}, Representative: common.Account{1}}
	n.onProcessed(blockchain.ProcessResult{Code: blockchain.Fork}, blk)

	require.True(t, n.Elections.Active(blk.Root()))
}

func TestOnProcessedProgressStopsElection(t *testing.T) {
	n, err := New(testConfig())
	require.NoError(t, err)
	defer n.Stop()

	blk := &types.StateBlock{StateAccount: common.Account{2}, Representative: common.Account{2}}
	n.onProcessed(blockchain.ProcessResult{Code: blockchain.Fork}, blk)
	require.True(t, n.Elections.Active(blk.Root()))

	n.onProcessed(blockchain.ProcessResult{Code: blockchain.Progress}, blk)
	require.False(t, n.Elections.Active(blk.Root()))
}

func TestConfirmElectionForcesWinnerThroughProcessor(t *testing.T) {
	n, err := New(testConfig())
	require.NoError(t, err)
	defer n.Stop()

	winner := &types.StateBlock{StateAccount: common.Account{3}, Representative: common.Account{3}}
	require.NotPanics(t, func() {
		n.ConfirmElection(winner.Root(), winner)
	})
}

func TestConfirmElectionIgnoresNilWinner(t *testing.T) {
	n, err := New(testConfig())
	require.NoError(t, err)
	defer n.Stop()

	require.NotPanics(t, func() {
		n.ConfirmElection(common.Hash{1}, nil)
	})
}

func TestAnnounceConfirmReqSkipsWithNoKnownRepresentatives(t *testing.T) {
	n, err := New(testConfig())
	require.NoError(t, err)
	defer n.Stop()

	n.AnnounceConfirmReq(common.Hash{1}, nil)
	require.Empty(t, n.PendingAnnouncements())
}

func TestPendingAnnouncementsDrainsOnce(t *testing.T) {
	n, err := New(testConfig())
	require.NoError(t, err)
	defer n.Stop()

	n.mu.Lock()
	n.pending = append(n.pending, PendingAnnouncement{})
	n.mu.Unlock()

	require.Len(t, n.PendingAnnouncements(), 1)
	require.Empty(t, n.PendingAnnouncements(), "a second drain call must return nothing new")
}
