package election

import (
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/ravine-network/ravine/blockchain/types"
	"github.com/ravine-network/ravine/common"
)

func bigFromInt(v int64) *big.Int { return big.NewInt(v) }

// defaultAnnounceInterval is how often a live election re-broadcasts
// confirm_req for its still-unconfirmed candidates.
const defaultAnnounceInterval = 1500 * time.Millisecond

// Confirmer is notified every time an election confirms a winner, so it can
// force that block through the processor (rolling back whatever currently
// occupies the root).
type Confirmer interface {
	ConfirmElection(root common.Hash, winner types.Block)
}

// Announcer gossips confirm_req for a still-live election's candidates to
// peers; separated from ActiveElections so tests can supply a no-op.
type Announcer interface {
	AnnounceConfirmReq(root common.Hash, candidates []types.Block)
}

// ActiveElections is the node-wide registry of in-progress conflict
// resolutions, one per contested root. Grounded on the corpus's istanbul
// core — a single mutex-guarded map of in-flight consensus rounds keyed by
// their subject, with a background loop that times out or re-announces
// stale rounds — adapted here from one round per block height to one
// independent election per forked account-chain root, since this ledger has
// no global block height to key off of.
type ActiveElections struct {
	mu        sync.Mutex
	elections map[common.Hash]*Election
	weights   WeightSource
	confirmer Confirmer
	announcer Announcer

	interval time.Duration
	done     chan struct{}
	stopOnce sync.Once
}

// NewActiveElections constructs the registry; Run must be started in its own
// goroutine for the announce loop to operate.
func NewActiveElections(weights WeightSource, confirmer Confirmer, announcer Announcer, interval time.Duration) *ActiveElections {
	if interval <= 0 {
		interval = defaultAnnounceInterval
	}
	return &ActiveElections{
		elections: make(map[common.Hash]*Election),
		weights:   weights,
		confirmer: confirmer,
		announcer: announcer,
		interval:  interval,
		done:      make(chan struct{}),
	}
}

// Start begins an election for root if one isn't already running, and adds
// blk as its first candidate; idempotent by root, matching how the corpus's
// sealing loop refuses to start a second round for a height already in
// flight.
func (a *ActiveElections) Start(root common.Hash, blk types.Block) *Election {
	a.mu.Lock()
	defer a.mu.Unlock()

	if e, ok := a.elections[root]; ok {
		e.AddCandidate(blk)
		return e
	}
	e := newElection(root, a.weights, blk)
	a.elections[root] = e
	return e
}

// AddCandidate registers blk as an additional competitor for an
// already-started election, used when the processor detects a fork against
// a root with a live election.
func (a *ActiveElections) AddCandidate(root common.Hash, blk types.Block) bool {
	a.mu.Lock()
	e, ok := a.elections[root]
	a.mu.Unlock()
	if !ok {
		return false
	}
	e.AddCandidate(blk)
	return true
}

// Vote routes an incoming vote to its election, returning false if no
// election is running for the vote's root.
func (a *ActiveElections) Vote(root common.Hash, v *types.Vote) bool {
	a.mu.Lock()
	e, ok := a.elections[root]
	a.mu.Unlock()
	if !ok {
		return false
	}

	if confirmed := e.Vote(v); confirmed {
		winner, _ := e.Winner()
		a.mu.Lock()
		delete(a.elections, root)
		a.mu.Unlock()
		if a.confirmer != nil {
			a.confirmer.ConfirmElection(root, winner)
		}
		return true
	}
	return true
}

// Active reports whether an election is currently running for root.
func (a *ActiveElections) Active(root common.Hash) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.elections[root]
	return ok
}

// Count returns the number of elections currently in flight, used by the
// node to decide whether it has spare capacity to start new ones.
func (a *ActiveElections) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.elections)
}

// Stop any election tracking root without confirming it, e.g. because the
// processor settled it by other means (a direct, unanimous fast-path).
func (a *ActiveElections) Stop(root common.Hash) {
	a.mu.Lock()
	delete(a.elections, root)
	a.mu.Unlock()
}

// Run drives the announce loop until Close is called; intended to run in
// its own goroutine for the lifetime of the node.
func (a *ActiveElections) Run() {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		select {
		case <-a.done:
			return
		case <-ticker.C:
			a.announceRound()
		}
	}
}

// Close stops the announce loop.
func (a *ActiveElections) Close() {
	a.stopOnce.Do(func() { close(a.done) })
}

// announceRound re-broadcasts confirm_req for every still-live election,
// served in descending difficulty order so that when announcement
// bandwidth is scarce the candidates backed by the most committed
// proof-of-work are re-announced first.
func (a *ActiveElections) announceRound() {
	a.mu.Lock()
	elections := make([]*Election, 0, len(a.elections))
	for _, e := range a.elections {
		elections = append(elections, e)
	}
	a.mu.Unlock()

	sort.Slice(elections, func(i, j int) bool {
		return elections[i].Difficulty() > elections[j].Difficulty()
	})

	for _, e := range elections {
		if e.Confirmed() {
			continue
		}
		e.recordAnnouncement()
		if a.announcer != nil {
			a.announcer.AnnounceConfirmReq(e.Root(), e.Candidates())
		}
	}
}
