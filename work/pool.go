// Package work generates and validates proof-of-work solutions for new
// blocks. Grounded on the corpus's work/agent.go: a persistent worker loop
// that, on receiving new work, cancels whatever it was doing (by closing a
// "quit this operation" channel) and starts a fresh attempt — adapted here
// from racing to seal one candidate block to racing to find a nonce whose
// hash clears a difficulty threshold, and generalized from one agent to a
// fixed-size pool of them searching disjoint nonce ranges concurrently.
package work

import (
	"crypto/rand"
	"encoding/binary"
	"runtime"
	"sync"

	"github.com/ravine-network/ravine/common"
	"github.com/ravine-network/ravine/crypto"
	"github.com/ravine-network/ravine/log"
)

var logger = log.NewModuleLogger(log.Work)

// Callback receives the solved work value for a root once a worker finds
// one; invoked at most once per Generate call.
type Callback func(root common.Hash, w common.Work)

// ticket is a monotonically increasing fencepost: workers hold the ticket
// value active when they started and stop as soon as it no longer matches
// the pool's current ticket for their root, whether because the request
// was cancelled or because a worker already found a solution.
type Pool struct {
	mu      sync.Mutex
	tickets map[common.Hash]uint64
	next    uint64

	workers int
}

// New constructs a pool with one worker goroutine per generation request
// per available CPU, matching the corpus's one-goroutine-per-mining-attempt
// shape (CpuAgent.mine runs in its own goroutine per work submission).
func New() *Pool {
	workers := runtime.NumCPU()
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		tickets: make(map[common.Hash]uint64),
		workers: workers,
	}
}

// Generate searches for a work value for root clearing difficulty,
// invoking cb exactly once if a solution is found before the request is
// cancelled. Returns immediately; the search runs in background goroutines.
func (p *Pool) Generate(root common.Hash, difficulty uint64, cb Callback) {
	p.mu.Lock()
	p.next++
	ticket := p.next
	p.tickets[root] = ticket
	p.mu.Unlock()

	var once sync.Once
	for i := 0; i < p.workers; i++ {
		go p.search(root, difficulty, ticket, uint64(i), cb, &once)
	}
}

// Cancel abandons any in-flight search for root; workers notice on their
// next difficulty check and exit without invoking the callback.
func (p *Pool) Cancel(root common.Hash) {
	p.mu.Lock()
	p.next++
	p.tickets[root] = p.next
	p.mu.Unlock()
}

func (p *Pool) search(root common.Hash, difficulty uint64, ticket uint64, lane uint64, cb Callback, once *sync.Once) {
	nonce := randomStart() + lane
	for {
		if !p.ticketValid(root, ticket) {
			return
		}

		w := common.Work(nonce)
		if Validate(root, w, difficulty) {
			once.Do(func() {
				p.mu.Lock()
				if p.tickets[root] == ticket {
					p.next++
					p.tickets[root] = p.next
				}
				p.mu.Unlock()
				cb(root, w)
			})
			return
		}
		nonce += uint64(p.workers)
	}
}

func (p *Pool) ticketValid(root common.Hash, ticket uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tickets[root] == ticket
}

// Validate reports whether w clears difficulty for root, the same
// threshold check the ledger performs when it receives a block.
func Validate(root common.Hash, w common.Work, difficulty uint64) bool {
	return Observed(root, w) >= difficulty
}

// Observed returns the difficulty value w actually clears against root —
// the leading 8 bytes of blake2b-512(root||nonce), with the nonce written
// big-endian and the 8 digest bytes read big-endian. An election
// uses the highest value observed across its candidates to decide how
// urgently to keep re-announcing for votes.
func Observed(root common.Hash, w common.Work) uint64 {
	digest := crypto.HashBlake2b512(root[:], workBytes(w))
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(digest[i])
	}
	return v
}

func workBytes(w common.Work) []byte {
	b := make([]byte, 8)
	v := uint64(w)
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * uint(7-i)))
	}
	return b
}

func randomStart() uint64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		logger.Crit("Failed to read random work search start", "err", err)
	}
	return binary.BigEndian.Uint64(buf[:])
}
