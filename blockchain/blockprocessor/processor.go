// Package blockprocessor sequences incoming blocks through the ledger: a
// bounded queue plus a single goroutine loop that batches signature checks,
// holds one write transaction per batch, and parks blocks whose dependency
// hasn't arrived yet in the unchecked table. Grounded on the corpus's own
// worker-loop shape (a goroutine blocked in a select over several channels,
// committing work in timed batches) adapted from sealing candidate blocks
// to validating network-submitted ones.
package blockprocessor

import (
	"container/ring"
	"sync"
	"time"

	"github.com/ravine-network/ravine/blockchain"
	"github.com/ravine-network/ravine/blockchain/types"
	"github.com/ravine-network/ravine/common"
	"github.com/ravine-network/ravine/log"
	"github.com/ravine-network/ravine/storage/database"
)

var logger = log.NewModuleLogger(log.BlockProcessor)

// rolledBackRingSize bounds how many recently-rolled-back hashes the
// processor remembers, so a confirmation watcher can tell a genuinely new
// fork loss apart from a block it already reported.
const rolledBackRingSize = 1024

// Config tunes batching behavior.
type Config struct {
	BatchMaxTime      time.Duration
	SidebandBatchSize int
	HighWatermark     int
}

// Processor owns the single writer transaction blocks are applied under; it
// is the only component in the node allowed to call Ledger.Process.
type Processor struct {
	ledger *blockchain.Ledger
	db     database.Database
	cfg    Config

	mu      sync.Mutex
	forced  []types.Block
	blocks  []types.Block
	closed  bool

	rolledBack *ring.Ring

	notify    chan struct{}
	done      chan struct{}
	flushReqs chan chan struct{}

	onProcessed func(blockchain.ProcessResult, types.Block)
}

// New constructs a processor against db and ledger; onProcessed, if
// non-nil, is invoked (from the processor's own goroutine) for every block
// as it resolves, so active elections can react to newly confirmed roots.
func New(db database.Database, ledger *blockchain.Ledger, cfg Config, onProcessed func(blockchain.ProcessResult, types.Block)) *Processor {
	return &Processor{
		ledger:      ledger,
		db:          db,
		cfg:         cfg,
		rolledBack:  ring.New(rolledBackRingSize),
		notify:      make(chan struct{}, 1),
		done:        make(chan struct{}),
		flushReqs:   make(chan chan struct{}),
		onProcessed: onProcessed,
	}
}

// Full reports whether the combined queue of forced and ordinary blocks
// already exceeds the configured high-watermark; callers use it to shed
// incoming network traffic rather than let the queue grow unboundedly
// while the processor falls behind.
func (p *Processor) Full() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.forced)+len(p.blocks) > p.cfg.highWatermark()
}

// Flush blocks until every block enqueued before this call returns has
// been applied (or parked as a gap dependency) — used by tests and by
// wallet commits that need a synchronous view of the ledger before
// replying to a caller. Run must already be active in its own goroutine.
func (p *Processor) Flush() {
	done := make(chan struct{})
	p.flushReqs <- done
	<-done
}

// Add enqueues a block for ordinary processing; it will be rejected like
// any other if it fails validation.
func (p *Processor) Add(blk types.Block) {
	p.mu.Lock()
	p.blocks = append(p.blocks, blk)
	p.mu.Unlock()
	p.wake()
}

// Force enqueues a block that must be accepted even if it forks the
// existing chain — used when a local election confirms a competitor to the
// block currently at an account's head, and the competitor must be rolled
// back to make room.
func (p *Processor) Force(blk types.Block) {
	p.mu.Lock()
	p.forced = append(p.forced, blk)
	p.mu.Unlock()
	p.wake()
}

func (p *Processor) wake() {
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// Run is the processor's main loop; callers run it in its own goroutine and
// stop it by calling Stop.
func (p *Processor) Run() {
	ticker := time.NewTicker(p.cfg.batchMaxTime())
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-p.notify:
			p.drain()
		case <-ticker.C:
			p.drain()
		case done := <-p.flushReqs:
			p.drain()
			close(done)
		}
	}
}

func (p *Processor) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()
	close(p.done)
}

func (c Config) batchMaxTime() time.Duration {
	if c.BatchMaxTime <= 0 {
		return 500 * time.Millisecond
	}
	return c.BatchMaxTime
}

func (c Config) highWatermark() int {
	if c.HighWatermark <= 0 {
		return 4096
	}
	return c.HighWatermark
}

// drain applies every currently queued block inside one write transaction,
// forced blocks first (each preceded by a rollback of whatever currently
// occupies that root), then ordinary blocks; each handled block's gap
// dependents are then requeued from the unchecked table.
func (p *Processor) drain() {
	p.mu.Lock()
	forced := p.forced
	blocks := p.blocks
	p.forced = nil
	p.blocks = nil
	p.mu.Unlock()

	if len(forced) == 0 && len(blocks) == 0 {
		return
	}

	var resolved []resolvedBlock
	err := p.db.Update(func(txn database.Txn) error {
		for _, blk := range forced {
			if target, ok := p.ledger.ReplacementTarget(txn, blk.Root()); ok {
				rolledBack := p.ledger.Rollback(txn, target)
				for _, h := range rolledBack {
					p.rolledBack.Value = h
					p.rolledBack = p.rolledBack.Next()
				}
			}
			result := p.ledger.Process(txn, blk)
			resolved = append(resolved, resolvedBlock{result, blk})
			if result.Code == blockchain.Progress {
				p.wakeDependents(txn, blk.Hash())
			}
		}
		for _, blk := range blocks {
			result := p.ledger.Process(txn, blk)
			resolved = append(resolved, resolvedBlock{result, blk})
			if result.Code == blockchain.GapPrevious || result.Code == blockchain.GapSource {
				p.park(txn, blk)
			} else if result.Code == blockchain.Progress {
				p.wakeDependents(txn, blk.Hash())
			}
		}
		return nil
	})
	if err != nil {
		logger.Error("Batch commit failed", "err", err)
		return
	}

	if p.onProcessed != nil {
		for _, r := range resolved {
			p.onProcessed(r.result, r.block)
		}
	}
}

type resolvedBlock struct {
	result blockchain.ProcessResult
	block  types.Block
}

// park records a block in the unchecked table under whichever hash it's
// waiting on, so a later arrival of that dependency can wake it.
func (p *Processor) park(txn database.Txn, blk types.Block) {
	dep := dependencyHash(blk)
	raw := types.EncodeBlock(blk)
	key := append(dep.Bytes(), blk.Hash().Bytes()...)
	if err := txn.Put(database.TableUnchecked, key, raw); err != nil {
		logger.Crit("Failed to write unchecked table", "err", err)
	}
}

// wakeDependents re-enqueues every block parked under a hash that just
// became resolvable.
func (p *Processor) wakeDependents(txn database.Txn, resolvedHash common.Hash) {
	var reenqueue []types.Block
	err := txn.Iterate(database.TableUnchecked, resolvedHash.Bytes(), func(key, value []byte) bool {
		blk, err := types.DecodeBlock(value)
		if err != nil {
			return true
		}
		reenqueue = append(reenqueue, blk)
		return true
	})
	if err != nil {
		logger.Error("Failed to scan unchecked table", "err", err)
		return
	}
	for _, blk := range reenqueue {
		dep := dependencyHash(blk)
		key := append(dep.Bytes(), blk.Hash().Bytes()...)
		if err := txn.Delete(database.TableUnchecked, key); err != nil {
			logger.Crit("Failed to delete unchecked entry", "err", err)
		}
	}
	p.mu.Lock()
	p.blocks = append(p.blocks, reenqueue...)
	p.mu.Unlock()
}

// dependencyHash returns the hash a block is waiting on when parked:
// its previous block for everything but a receive/open-shaped claim, whose
// dependency is the source/link it names instead.
func dependencyHash(blk types.Block) common.Hash {
	switch b := blk.(type) {
	case *types.ReceiveBlock:
		return b.SourceHash
	case *types.OpenBlock:
		return b.SourceHash
	case *types.StateBlock:
		if !b.PreviousHash.IsZero() {
			return b.PreviousHash
		}
		return b.Link
	default:
		return blk.Previous()
	}
}

// RolledBackContains reports whether hash was rolled back within the last
// rolledBackRingSize rollbacks, so a caller (e.g. a wallet watching its own
// sends) can distinguish "still pending" from "lost to a fork".
func (p *Processor) RolledBackContains(hash common.Hash) bool {
	found := false
	p.rolledBack.Do(func(v interface{}) {
		if h, ok := v.(common.Hash); ok && h == hash {
			found = true
		}
	})
	return found
}
