// Package election implements conflict resolution for forked roots: an
// Election per contested root tallies weighted votes from representatives
// until one candidate crosses the online-weight quorum, at which point it
// is confirmed and handed to the block processor as a forced block.
//
// This is the weighted-stake analogue of the corpus's istanbul BFT commit
// tally (consensus/istanbul/core/commit.go): that scheme commits once
// strictly more than two-thirds of a FIXED validator set has signed a
// COMMIT for the same subject, whereas here there is no fixed validator
// set — any account can be named as a representative, only the weight of
// currently-online representatives behind a root's candidates is known,
// and confirmation instead requires crossing a quorum percentage of that
// observed online weight.
package election

import (
	"sync"
	"time"

	"github.com/ravine-network/ravine/blockchain/types"
	"github.com/ravine-network/ravine/common"
	"github.com/ravine-network/ravine/log"
	"github.com/ravine-network/ravine/work"
)

var logger = log.NewModuleLogger(log.Election)

// quorumPercent is the fraction of observed online weight a candidate must
// hold to be confirmed — the weighted-stake analogue of istanbul's
// 2*F+1-of-N supermajority.
const quorumPercent = 67

// WeightSource answers how much vote weight a representative currently
// carries; backed by the ledger's representation table in production and a
// fake in tests.
type WeightSource interface {
	WeightOf(account common.Account) common.Uint256
	OnlineWeight() common.Uint256
	Observe(account common.Account)
}

// Election tallies votes for every candidate block competing for one root
// (a forked account-chain position, or an unconfirmed chain tip).
type Election struct {
	mu sync.Mutex

	root       common.Hash
	candidates map[common.Hash]types.Block
	lastVotes  map[common.Account]vote
	tally      map[common.Hash]common.Uint256

	confirmed     bool
	confirmedHash common.Hash
	announcements int
	startedAt     time.Time

	// difficulty is the maximum proof-of-work difficulty observed across
	// this election's candidates; elections are served in descending
	// difficulty order when announcement bandwidth is scarce, since a
	// higher-difficulty candidate represents more committed work.
	difficulty uint64

	weights WeightSource
}

type vote struct {
	blockHash common.Hash
	sequence  uint64
}

// newElection starts a root's election with first as its initial candidate.
// The account whose chain first belongs to implicitly backs its own
// proposal until a real vote says otherwise, so last_votes already holds
// one entry the instant the election exists.
func newElection(root common.Hash, weights WeightSource, first types.Block) *Election {
	e := &Election{
		root:       root,
		candidates: make(map[common.Hash]types.Block),
		lastVotes:  make(map[common.Account]vote),
		tally:      make(map[common.Hash]common.Uint256),
		weights:    weights,
		startedAt:  time.Now(),
	}
	e.addCandidateLocked(first)
	e.lastVotes[first.Account()] = vote{blockHash: first.Hash(), sequence: 0}
	e.recomputeTally()
	return e
}

// AddCandidate registers another block competing for this election's root;
// a block already confirmed ignores further candidates.
func (e *Election) AddCandidate(blk types.Block) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.confirmed {
		return
	}
	e.addCandidateLocked(blk)
}

func (e *Election) addCandidateLocked(blk types.Block) {
	e.candidates[blk.Hash()] = blk
	if d := work.Observed(blk.Root(), blk.Work()); d > e.difficulty {
		e.difficulty = d
	}
}

// Difficulty returns the maximum proof-of-work difficulty observed across
// this election's candidates.
func (e *Election) Difficulty() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.difficulty
}

// Vote records a representative's vote and recomputes the tally for the
// hash it named; returns true if this vote newly confirmed the election.
func (e *Election) Vote(v *types.Vote) bool {
	if !v.Verify() {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.confirmed {
		return false
	}

	if prior, ok := e.lastVotes[v.Account]; ok && v.Sequence <= prior.sequence {
		return false // stale or replayed vote
	}
	e.lastVotes[v.Account] = vote{blockHash: v.BlockHash, sequence: v.Sequence}
	e.weights.Observe(v.Account)

	e.recomputeTally()
	return e.checkQuorumLocked()
}

// recomputeTally rebuilds the per-candidate weight totals from the current
// set of last-votes; cheap enough to redo wholesale given how few
// representatives are online at once relative to total accounts.
func (e *Election) recomputeTally() {
	for h := range e.tally {
		delete(e.tally, h)
	}
	for account, v := range e.lastVotes {
		w := e.weights.WeightOf(account)
		e.tally[v.blockHash] = e.tally[v.blockHash].Add(w)
	}
}

func (e *Election) checkQuorumLocked() bool {
	online := e.weights.OnlineWeight()
	if online.IsZero() {
		return false
	}
	threshold := online.Big()
	threshold.Mul(threshold, bigFromInt(quorumPercent))
	threshold.Div(threshold, bigFromInt(100))

	for hash, weight := range e.tally {
		if weight.Big().Cmp(threshold) >= 0 {
			e.confirmed = true
			e.confirmedHash = hash
			return true
		}
	}
	return false
}

// Winner returns the confirmed candidate, if any.
func (e *Election) Winner() (types.Block, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.confirmed {
		return nil, false
	}
	return e.candidates[e.confirmedHash], true
}

// Confirmed reports whether quorum has been reached.
func (e *Election) Confirmed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.confirmed
}

// Root returns the contested root this election tracks.
func (e *Election) Root() common.Hash { return e.root }

// Age reports how long this election has been running, used to decide when
// to reprioritize its PoW difficulty or give up and drop it.
func (e *Election) Age() time.Duration { return time.Since(e.startedAt) }

// Announcements returns how many confirm_req rounds have gone out for this
// election, incremented by the ActiveElections announce loop.
func (e *Election) Announcements() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.announcements
}

func (e *Election) recordAnnouncement() {
	e.mu.Lock()
	e.announcements++
	e.mu.Unlock()
}

// Candidates returns a snapshot of blocks currently competing in this
// election, for the confirm_req announce loop to gossip.
func (e *Election) Candidates() []types.Block {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]types.Block, 0, len(e.candidates))
	for _, b := range e.candidates {
		out = append(out, b)
	}
	return out
}
