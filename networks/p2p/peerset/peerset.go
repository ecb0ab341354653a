// Package peerset tracks known and connected peers for the gossip network:
// one canonical record per endpoint plus several derived views (by last
// contact, by representative weight, sampled for fanout), all guarded by a
// single mutex the way the corpus's own peerSet (node/cn/peer.go) keeps one
// map of registered peers plus per-node-type derived maps under one lock.
package peerset

import (
	"math/rand"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/ravine-network/ravine/common"
	"github.com/ravine-network/ravine/log"
	"github.com/ravine-network/ravine/networks/p2p/protocol"
)

var logger = log.NewModuleLogger(log.P2PPeerSet)

// maxPeersPerIP bounds how many distinct peer records the set keeps per
// source IP, so one host can't dominate another peer's list by registering
// many addresses.
const maxPeersPerIP = 10

// nodeIDVersion is the minimum protocol version a peer must speak before a
// node-ID handshake is worth initiating against it.
const nodeIDVersion = protocol.ProtocolVersion

// Endpoint identifies a peer by network address; the wire protocol's own
// keepalive entries carry exactly this pair.
type Endpoint struct {
	IP   net.IP
	Port uint16
}

func (e Endpoint) key() string {
	return string(e.IP.To16()) + string([]byte{byte(e.Port >> 8), byte(e.Port)})
}

// Record is everything the set tracks about one peer.
type Record struct {
	Endpoint Endpoint

	Representative   common.Account
	RepWeight        common.Uint256
	HasRep           bool

	LastContact        time.Time
	LastAttempt        time.Time
	LastBootstrapAttempt time.Time
	LastRepRequest      time.Time

	SynCookie [8]byte

	insertedAt time.Time
	insertSeq  uint64
}

// Set is the peer container: insertion order, per-endpoint uniqueness, and
// the several derived orderings the gossip and bootstrap logic need.
type Set struct {
	self Endpoint

	mu       sync.RWMutex
	byEndpoint map[string]*Record
	seq        uint64
}

// New constructs an empty peer set; self is this node's own listening
// endpoint, rejected by Insert/Contacted so a loopback gossip message never
// adds the node to its own peer list.
func New(self Endpoint) *Set {
	return &Set{self: self, byEndpoint: make(map[string]*Record)}
}

func (s *Set) isSelf(ep Endpoint) bool {
	return ep.key() == s.self.key()
}

// reservedV4Blocks are the IPv4 ranges that can never be a real routable
// peer: "this network", the three documentation ranges, the reserved
// Class-E range, and the limited broadcast address. Matches the original
// node's reserved-range table (core_test/peer_container.cpp
// reserved_peers_no_contact).
var reservedV4Blocks = mustParseCIDRs(
	"0.0.0.0/8",
	"192.0.2.0/24",
	"198.51.100.0/24",
	"203.0.113.0/24",
	"240.0.0.0/4",
	"255.255.255.255/32",
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	out := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic(err)
		}
		out = append(out, n)
	}
	return out
}

// isReservedOrMulticast reports whether ip can never be a contactable peer.
// No third-party IP-classification library in the corpus or pack covers
// this narrow a rule (golang.org/x/net's netutil package limits listener
// accept rates, it does not classify addresses), so this is a direct,
// stdlib-only port of the original's reserved-range table.
func isReservedOrMulticast(ip net.IP) bool {
	if ip == nil {
		return true
	}
	if ip.IsMulticast() {
		return true
	}
	v4 := ip.To4()
	if v4 == nil {
		return false
	}
	for _, block := range reservedV4Blocks {
		if block.Contains(v4) {
			return true
		}
	}
	return false
}

// Insert offers a newly learned endpoint; it returns false only when the
// endpoint was genuinely new and got added. It returns true both when the
// endpoint was already known and when it was rejected outright: self,
// reserved/multicast ranges, a version below protocol.ProtocolVersionMin, or
// the per-IP cap.
func (s *Set) Insert(ep Endpoint, version uint8) bool {
	if s.isSelf(ep) || isReservedOrMulticast(ep.IP) || version < protocol.ProtocolVersionMin {
		return true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := ep.key()
	if _, ok := s.byEndpoint[k]; ok {
		return true
	}
	if s.countByIPLocked(ep.IP) >= maxPeersPerIP {
		return true
	}

	s.seq++
	s.byEndpoint[k] = &Record{
		Endpoint:   ep,
		insertedAt: time.Now(),
		insertSeq:  s.seq,
	}
	return false
}

func (s *Set) countByIPLocked(ip net.IP) int {
	count := 0
	for _, r := range s.byEndpoint {
		if r.Endpoint.IP.Equal(ip) {
			count++
		}
	}
	return count
}

// Contacted records a successful keepalive/response exchange with ep,
// inserting it first if it wasn't already known (subject to the same
// self/reserved/version rejection as Insert). It returns true iff a
// node-ID handshake should now be initiated: no earlier contact with the
// peer had been recorded (a record left only by Insert or Reachout still
// counts as new) and its protocol version is at least nodeIDVersion.
func (s *Set) Contacted(ep Endpoint, version uint8) bool {
	if s.isSelf(ep) || isReservedOrMulticast(ep.IP) || version < protocol.ProtocolVersionMin {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	k := ep.key()
	prior, existed := s.byEndpoint[k]
	contactedBefore := existed && !prior.LastContact.IsZero()
	r := s.getOrInsertLocked(ep)
	r.LastContact = time.Now()
	return !contactedBefore && version >= nodeIDVersion
}

// Reachout reports whether ep is already known to us or we've already
// attempted to reach it since the last purge — the idempotence signal a
// keepalive loop uses to avoid hammering an unresponsive or already-known
// peer. Every call records the attempt, known or not.
func (s *Set) Reachout(ep Endpoint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := ep.key()
	r, existed := s.byEndpoint[k]
	if !existed {
		s.seq++
		r = &Record{Endpoint: ep, insertedAt: time.Now(), insertSeq: s.seq}
		s.byEndpoint[k] = r
	}
	r.LastAttempt = time.Now()
	return existed
}

func (s *Set) getOrInsertLocked(ep Endpoint) *Record {
	k := ep.key()
	if r, ok := s.byEndpoint[k]; ok {
		return r
	}
	s.seq++
	r := &Record{Endpoint: ep, insertedAt: time.Now(), insertSeq: s.seq}
	s.byEndpoint[k] = r
	return r
}

// RepResponse records a peer's self-reported representative account and
// its currently cached weight (supplied by the caller, which looks it up
// against the ledger), and the time of the request that prompted it.
func (s *Set) RepResponse(ep Endpoint, account common.Account, weight common.Uint256) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.getOrInsertLocked(ep)
	r.Representative = account
	r.RepWeight = weight
	r.HasRep = true
	r.LastRepRequest = time.Now()
}

// PurgeList removes every peer whose most recent activity (contact,
// outbound attempt, or insertion) is older than cutoff, mirroring the
// corpus's periodic stale-peer sweep.
func (s *Set) PurgeList(cutoff time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	threshold := time.Now().Add(-cutoff)
	purged := 0
	for k, r := range s.byEndpoint {
		last := r.insertedAt
		if r.LastContact.After(last) {
			last = r.LastContact
		}
		if r.LastAttempt.After(last) {
			last = r.LastAttempt
		}
		if last.Before(threshold) {
			delete(s.byEndpoint, k)
			purged++
		}
	}
	return purged
}

// Len returns the number of known peers.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byEndpoint)
}

// RandomFill returns up to n peers chosen uniformly at random, for
// keepalive gossip fanout.
func (s *Set) RandomFill(n int) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]Record, 0, len(s.byEndpoint))
	for _, r := range s.byEndpoint {
		all = append(all, *r)
	}
	rand.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })
	if n > len(all) {
		n = len(all)
	}
	return all[:n]
}

// ListFanout returns up to n peers ordered by most-recent contact, for
// flooding a publish/confirm_req to the liveliest part of the peer list
// first.
func (s *Set) ListFanout(n int) []Record {
	s.mu.RLock()
	all := make([]Record, 0, len(s.byEndpoint))
	for _, r := range s.byEndpoint {
		all = append(all, *r)
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		return all[i].LastContact.After(all[j].LastContact)
	})
	if n > len(all) {
		n = len(all)
	}
	return all[:n]
}

// RepresentativesByWeight returns every peer that has reported itself as a
// representative, ordered by descending weight — used to pick which peers
// to send confirm_req to first, since a quorum is reached faster by
// contacting the heaviest representatives.
func (s *Set) RepresentativesByWeight() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, 0)
	for _, r := range s.byEndpoint {
		if r.HasRep {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RepWeight.Cmp(out[j].RepWeight) > 0
	})
	return out
}

// NeedingBootstrapAttempt returns peers that have never had a bootstrap
// attempt, or whose last attempt is older than cutoff, in insertion order —
// the order the corpus's discovery table walks candidates for its own
// background refresh loop.
func (s *Set) NeedingBootstrapAttempt(cutoff time.Duration) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	threshold := time.Now().Add(-cutoff)
	out := make([]Record, 0)
	for _, r := range s.byEndpoint {
		if r.LastBootstrapAttempt.IsZero() || r.LastBootstrapAttempt.Before(threshold) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].insertSeq < out[j].insertSeq })
	return out
}

// MarkBootstrapAttempt records that a lazy/legacy bootstrap pull was just
// attempted against ep.
func (s *Set) MarkBootstrapAttempt(ep Endpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.getOrInsertLocked(ep)
	r.LastBootstrapAttempt = time.Now()
}

// AssignSynCookie records cookie, generated by the caller for inclusion in
// the outbound handshake, as the syn-cookie expected back from ep.
func (s *Set) AssignSynCookie(ep Endpoint, cookie [8]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.getOrInsertLocked(ep)
	r.SynCookie = cookie
}

// ValidateSynCookie reports whether cookie matches the one last assigned
// to ep, guarding against handshake responses to a peer that never
// received our syn.
func (s *Set) ValidateSynCookie(ep Endpoint, cookie [8]byte) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byEndpoint[ep.key()]
	if !ok {
		return false
	}
	return r.SynCookie == cookie
}
