package election

import (
	"sync"
	"time"

	"github.com/ravine-network/ravine/common"
)

// onlineCutoff is how long a representative's last-seen vote counts toward
// the online-weight quorum denominator before it's considered gone.
const onlineCutoff = 2 * time.Minute

// WeightLookup resolves a single representative's current weight, backed by
// Ledger.Weight under a read transaction in production.
type WeightLookup func(account common.Account) common.Uint256

// OnlineReps tracks which representatives have voted recently and answers
// WeightSource for every live Election, so quorum is measured against
// observed online stake rather than total network stake (most of which, at
// any moment, is offline and cannot participate in confirmation).
type OnlineReps struct {
	mu       sync.Mutex
	lastSeen map[common.Account]time.Time
	lookup   WeightLookup
}

func NewOnlineReps(lookup WeightLookup) *OnlineReps {
	return &OnlineReps{
		lastSeen: make(map[common.Account]time.Time),
		lookup:   lookup,
	}
}

// Observe records that account was just seen voting.
func (o *OnlineReps) Observe(account common.Account) {
	o.mu.Lock()
	o.lastSeen[account] = time.Now()
	o.mu.Unlock()
}

// WeightOf implements WeightSource by deferring to the underlying ledger
// lookup; online-ness doesn't gate an individual candidate's tally, only
// the quorum denominator does.
func (o *OnlineReps) WeightOf(account common.Account) common.Uint256 {
	return o.lookup(account)
}

// OnlineWeight implements WeightSource: the sum of weight belonging to
// representatives observed within onlineCutoff.
func (o *OnlineReps) OnlineWeight() common.Uint256 {
	o.mu.Lock()
	cutoff := time.Now().Add(-onlineCutoff)
	accounts := make([]common.Account, 0, len(o.lastSeen))
	for account, seen := range o.lastSeen {
		if seen.Before(cutoff) {
			delete(o.lastSeen, account)
			continue
		}
		accounts = append(accounts, account)
	}
	o.mu.Unlock()

	total := common.Uint256{}
	for _, account := range accounts {
		total = total.Add(o.lookup(account))
	}
	return total
}
