package types

import "github.com/ravine-network/ravine/common"

// defaultUniquerSize bounds how many distinct blocks/votes the uniquer
// registries hold at once; sized generously above normal election fan-out
// so legitimate concurrent elections don't thrash the cache, while still
// bounding memory under a malicious flood.
const defaultUniquerSize = 4096

// BlockUniquer deduplicates blocks by hash so that two copies of the same
// block received from different peers collapse to one shared pointer, the
// same pointer the block processor and active elections both operate on.
type BlockUniquer struct {
	u *common.Uniquer
}

func NewBlockUniquer() *BlockUniquer {
	return &BlockUniquer{u: common.NewUniquer(defaultUniquerSize)}
}

func (bu *BlockUniquer) Unique(b Block) Block {
	return bu.u.Unique(b.Hash(), b).(Block)
}

func (bu *BlockUniquer) Size() int { return bu.u.Size() }

// VoteUniquer deduplicates votes by their signed hash, so a representative
// rebroadcasting the same vote across gossip hops doesn't retally it.
type VoteUniquer struct {
	u *common.Uniquer
}

func NewVoteUniquer() *VoteUniquer {
	return &VoteUniquer{u: common.NewUniquer(defaultUniquerSize)}
}

func (vu *VoteUniquer) Unique(v *Vote) *Vote {
	return vu.u.Unique(v.Hash(), v).(*Vote)
}

func (vu *VoteUniquer) Size() int { return vu.u.Size() }
