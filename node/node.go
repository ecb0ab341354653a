// Package node wires together the storage backend, ledger, block
// processor, active-election registry, peer set and work pool into one
// running instance, the same dependency-injection role the corpus's own
// node.ServiceContext plays (open the configured database, construct
// services against it, manage their Start/Stop lifecycle) — generalized
// here from an open-ended registered-service list to this node's fixed,
// known set of components, since a lattice full node has no plugin
// services to register.
package node

import (
	"crypto/rand"
	"net"
	"sync"
	"time"

	"github.com/pborman/uuid"

	"github.com/ravine-network/ravine/blockchain"
	"github.com/ravine-network/ravine/blockchain/blockprocessor"
	"github.com/ravine-network/ravine/blockchain/types"
	"github.com/ravine-network/ravine/common"
	"github.com/ravine-network/ravine/consensus/election"
	"github.com/ravine-network/ravine/log"
	"github.com/ravine-network/ravine/networks/p2p/peerset"
	"github.com/ravine-network/ravine/networks/p2p/protocol"
	"github.com/ravine-network/ravine/params"
	"github.com/ravine-network/ravine/storage/database"
	"github.com/ravine-network/ravine/work"
)

var logger = log.NewModuleLogger(log.Node)

// peerMaintenanceInterval is how often the node purges stale peers and
// considers new outbound reach-out attempts, analogous to the corpus's own
// periodic peer-refresh loop.
const peerMaintenanceInterval = 60 * time.Second

// peerStaleCutoff bounds how long a peer can go without contact before
// PurgeList drops it, and how long a bootstrap candidate can go without an
// attempt before it's retried.
const peerStaleCutoff = 10 * time.Minute

// keepaliveFanoutSize is how many peers RandomFill samples for one
// keepalive gossip payload.
const keepaliveFanoutSize = 8

// Node owns every long-lived component and their lifecycle.
type Node struct {
	id     string
	config params.NodeConfig
	net    params.NetworkParams

	DB        database.Database
	Ledger    *blockchain.Ledger
	Processor *blockprocessor.Processor
	Elections *election.ActiveElections
	Peers     *peerset.Set
	Work      *work.Pool

	online *election.OnlineReps

	mu       sync.Mutex
	running  bool
	pending  []PendingAnnouncement
	contacts []PendingContact

	peerDone chan struct{}
}

// New opens the configured database and constructs every component against
// it, but starts nothing yet; call Start to begin the processor and
// election announce loops.
func New(cfg params.NodeConfig) (*Node, error) {
	db, err := openDatabase(cfg)
	if err != nil {
		return nil, err
	}

	netParams := params.ForNetwork(cfg.Network)
	ledger := blockchain.NewLedger(netParams.PublishThreshold)

	// The node's own listening endpoint, rejected by Insert/Contacted so a
	// gossiped or looped-back keepalive can never add the node to its own
	// peer list. The bind address isn't tracked separately from the listen
	// port, so IPv4-any stands in for "this instance" rather than a real
	// routable address.
	self := peerset.Endpoint{IP: net.IPv4zero, Port: cfg.Peering.ListenPort}
	peers := peerset.New(self)

	n := &Node{
		id:       uuid.New(),
		config:   cfg,
		net:      netParams,
		DB:       db,
		Ledger:   ledger,
		Peers:    peers,
		Work:     work.New(),
		peerDone: make(chan struct{}),
	}

	n.online = election.NewOnlineReps(n.weightOf)
	n.Elections = election.NewActiveElections(n.online, n, n, cfg.Election.AnnounceInterval)

	n.Processor = blockprocessor.New(db, ledger, blockprocessor.Config{
		BatchMaxTime:      cfg.BlockProcessor.BatchMaxTime,
		SidebandBatchSize: cfg.BlockProcessor.SidebandBatchSize,
	}, n.onProcessed)

	return n, nil
}

func openDatabase(cfg params.NodeConfig) (database.Database, error) {
	if cfg.DataDir == "" {
		return database.NewMemDatabase(), nil
	}
	switch cfg.Backend {
	case database.BackendLevelDB:
		return database.NewLevelDBDatabase(cfg.DataDir, 256, 256)
	case database.BackendMemory:
		return database.NewMemDatabase(), nil
	default:
		return database.NewBadgerDatabase(cfg.DataDir)
	}
}

// weightOf reads a representative's current weight under a fresh read
// transaction; OnlineReps and the election registry only ever need this
// one-shot lookup, never a shared long-lived transaction.
func (n *Node) weightOf(account common.Account) common.Uint256 {
	var w common.Uint256
	err := n.DB.View(func(txn database.Txn) error {
		w = n.Ledger.Weight(txn, account)
		return nil
	})
	if err != nil {
		logger.Error("Failed to read representative weight", "err", err)
	}
	return w
}

// onProcessed is the block processor's completion hook: a losing fork
// detected mid-batch starts (or feeds) an election for its root.
func (n *Node) onProcessed(result blockchain.ProcessResult, blk types.Block) {
	switch result.Code {
	case blockchain.Fork:
		if !n.Elections.AddCandidate(blk.Root(), blk) {
			n.Elections.Start(blk.Root(), blk)
		}
	case blockchain.Progress:
		n.Elections.Stop(blk.Root())
	}
}

// ConfirmElection implements election.Confirmer: force the winning
// candidate through the processor, which will roll back whatever
// currently occupies the root first.
func (n *Node) ConfirmElection(root common.Hash, winner types.Block) {
	if winner == nil {
		return
	}
	n.Processor.Force(winner)
}

// AnnounceConfirmReq implements election.Announcer: flood a confirm_req
// for a still-unsettled election to the peers most likely to carry
// representative weight. Framing the message is this package's job; the
// actual socket write belongs to whatever transport dials each peer, via
// PendingAnnouncements.
func (n *Node) AnnounceConfirmReq(root common.Hash, candidates []types.Block) {
	reps := n.Peers.RepresentativesByWeight()
	if len(reps) == 0 {
		logger.Trace("No known representatives to announce confirm_req to", "root", root)
		return
	}
	n.mu.Lock()
	n.pending = append(n.pending, PendingAnnouncement{
		Req:  protocol.ConfirmReq{Blocks: candidates},
		Reps: reps,
	})
	n.mu.Unlock()
}

// PendingAnnouncement pairs a framed confirm_req with the peers it should
// be sent to; the transport layer dials each and writes the message.
type PendingAnnouncement struct {
	Req  protocol.ConfirmReq
	Reps []peerset.Record
}

// PendingAnnouncements drains and returns every confirm_req framed since
// the last call, for the transport layer to actually dial and write.
func (n *Node) PendingAnnouncements() []PendingAnnouncement {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := n.pending
	n.pending = nil
	return out
}

// PendingContact pairs a peer worth reaching out to with the syn-cookie
// already recorded for it, for the transport layer to open a connection
// and perform the node-ID handshake.
type PendingContact struct {
	Endpoint peerset.Endpoint
	Cookie   [8]byte
}

// PendingContacts drains and returns every outbound reach-out queued since
// the last call.
func (n *Node) PendingContacts() []PendingContact {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := n.contacts
	n.contacts = nil
	return out
}

// HandleKeepalive processes an inbound keepalive message: the sender is
// recorded as contacted (which may trigger a node-ID handshake of our own),
// and every endpoint it advertises is offered to the peer set.
func (n *Node) HandleKeepalive(from peerset.Endpoint, version uint8, msg protocol.Keepalive) {
	n.Peers.Contacted(from, version)
	for _, wep := range msg.Peers {
		if wep.IP == nil || wep.IP.IsUnspecified() {
			continue
		}
		n.Peers.Insert(peerset.Endpoint{IP: wep.IP, Port: wep.Port}, version)
	}
}

// HandleNodeIDHandshakeResponse validates a peer's echoed syn-cookie against
// the one we assigned when we reached out to it.
func (n *Node) HandleNodeIDHandshakeResponse(ep peerset.Endpoint, cookie [8]byte) bool {
	return n.Peers.ValidateSynCookie(ep, cookie)
}

// runPeerMaintenance purges stale peers, then queues a keepalive gossip
// round and any new outbound reach-out attempts; called periodically from
// the peer maintenance loop started by Start.
func (n *Node) runPeerMaintenance() {
	if purged := n.Peers.PurgeList(peerStaleCutoff); purged > 0 {
		logger.Debug("Purged stale peers", "count", purged)
	}

	sample := n.Peers.RandomFill(keepaliveFanoutSize)
	targets := n.Peers.ListFanout(fanoutSize(n.Peers.Len()))
	if len(sample) > 0 && len(targets) > 0 {
		logger.Trace("Keepalive gossip round", "sample", len(sample), "targets", len(targets))
	}

	for _, candidate := range n.Peers.NeedingBootstrapAttempt(peerStaleCutoff) {
		// Candidates are already in the set, so Reachout's known/attempted
		// signal is always true here; call it only to record the attempt.
		n.Peers.Reachout(candidate.Endpoint)
		n.Peers.MarkBootstrapAttempt(candidate.Endpoint)
		cookie := randomSynCookie()
		n.Peers.AssignSynCookie(candidate.Endpoint, cookie)

		n.mu.Lock()
		n.contacts = append(n.contacts, PendingContact{Endpoint: candidate.Endpoint, Cookie: cookie})
		n.mu.Unlock()
	}
}

// fanoutSize returns ceil(sqrt(n)), the original protocol's gossip-relay
// fanout for a peer list of size n.
func fanoutSize(n int) int {
	if n <= 0 {
		return 0
	}
	size := 1
	for size*size < n {
		size++
	}
	return size
}

func randomSynCookie() [8]byte {
	var cookie [8]byte
	if _, err := rand.Read(cookie[:]); err != nil {
		logger.Crit("Failed to read random syn-cookie", "err", err)
	}
	return cookie
}

func (n *Node) peerMaintenanceLoop() {
	ticker := time.NewTicker(peerMaintenanceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-n.peerDone:
			return
		case <-ticker.C:
			n.runPeerMaintenance()
		}
	}
}

// Start begins the processor's batching loop, the election announce loop,
// and the peer maintenance loop; all three run until Stop is called.
func (n *Node) Start() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.running {
		return
	}
	n.running = true
	go n.Processor.Run()
	go n.Elections.Run()
	go n.peerMaintenanceLoop()
	logger.Info("Node started", "id", n.id, "network", n.net.Network)
}

// Stop halts the processor, election, and peer maintenance loops and
// closes the database.
func (n *Node) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.running {
		return nil
	}
	n.running = false
	n.Processor.Stop()
	n.Elections.Close()
	close(n.peerDone)
	return n.DB.Close()
}

// ID returns this node instance's runtime identifier.
func (n *Node) ID() string { return n.id }
