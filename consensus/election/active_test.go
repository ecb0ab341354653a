package election

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ravine-network/ravine/blockchain/types"
	"github.com/ravine-network/ravine/common"
)

type fakeConfirmer struct {
	root   common.Hash
	winner types.Block
}

func (f *fakeConfirmer) ConfirmElection(root common.Hash, winner types.Block) {
	f.root = root
	f.winner = winner
}

type fakeAnnouncer struct {
	roots []common.Hash
}

func (f *fakeAnnouncer) AnnounceConfirmReq(root common.Hash, candidates []types.Block) {
	f.roots = append(f.roots, root)
}

func TestActiveElectionsStartCastsImplicitSelfVote(t *testing.T) {
	weights := &fakeWeights{weight: map[common.Account]common.Uint256{}}
	a := NewActiveElections(weights, &fakeConfirmer{}, &fakeAnnouncer{}, time.Hour)

	blk := &types.OpenBlock{OpenAccount: common.Account{1}}
	e := a.Start(common.Hash{1}, blk)

	require.True(t, a.Active(common.Hash{1}))
	require.Len(t, e.lastVotes, 1)
}

func TestActiveElectionsAnnounceRoundOrdersByDifficulty(t *testing.T) {
	weights := &fakeWeights{weight: map[common.Account]common.Uint256{}}
	announcer := &fakeAnnouncer{}
	a := NewActiveElections(weights, &fakeConfirmer{}, announcer, time.Hour)

	low := &types.StateBlock{StateAccount: common.Account{1}, Representative: common.Account{1}, W: common.Work(0)}
	high := &types.StateBlock{StateAccount: common.Account{2}, Representative: common.Account{2}, W: common.Work(1)}
	a.Start(low.Root(), low)
	a.Start(high.Root(), high)

	a.announceRound()
	require.Len(t, announcer.roots, 2)

	a.mu.Lock()
	first, second := a.elections[announcer.roots[0]], a.elections[announcer.roots[1]]
	a.mu.Unlock()
	require.GreaterOrEqual(t, first.Difficulty(), second.Difficulty(), "the higher-difficulty election must be announced first")

	var elections []*Election
	a.mu.Lock()
	for _, e := range a.elections {
		elections = append(elections, e)
	}
	a.mu.Unlock()
	require.Len(t, elections, 2)
}
