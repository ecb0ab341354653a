package peerset

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ravine-network/ravine/common"
	"github.com/ravine-network/ravine/networks/p2p/protocol"
)

func ep(ip string, port uint16) Endpoint {
	return Endpoint{IP: net.ParseIP(ip), Port: port}
}

func selfEp() Endpoint { return ep("127.0.0.1", 9999) }

const v = protocol.ProtocolVersion

func TestInsertAndDedup(t *testing.T) {
	s := New(selfEp())
	require.False(t, s.Insert(ep("10.0.0.1", 7075), v), "a genuinely new endpoint must return false")
	require.True(t, s.Insert(ep("10.0.0.1", 7075), v), "re-inserting the same endpoint must return true")
	require.Equal(t, 1, s.Len())
}

func TestInsertRejectsSelf(t *testing.T) {
	s := New(selfEp())
	require.True(t, s.Insert(selfEp(), v))
	require.Equal(t, 0, s.Len())
}

func TestInsertRejectsLowVersion(t *testing.T) {
	s := New(selfEp())
	require.True(t, s.Insert(ep("10.0.0.9", 7075), protocol.ProtocolVersionMin-1))
	require.Equal(t, 0, s.Len())
}

func TestInsertRejectsReservedAndMulticastRanges(t *testing.T) {
	s := New(selfEp())
	reserved := []string{
		"0.0.0.1",
		"192.0.2.1",
		"198.51.100.1",
		"203.0.113.1",
		"224.0.0.1",
		"240.0.0.1",
		"255.255.255.255",
	}
	for _, ip := range reserved {
		require.True(t, s.Insert(ep(ip, 7075), v), "expected %s to be rejected", ip)
	}
	require.Equal(t, 0, s.Len())
}

func TestPerIPCap(t *testing.T) {
	s := New(selfEp())
	for i := 0; i < maxPeersPerIP; i++ {
		require.False(t, s.Insert(ep("10.0.0.1", uint16(7000+i)), v))
	}
	require.True(t, s.Insert(ep("10.0.0.1", uint16(8000)), v))
	require.Equal(t, maxPeersPerIP, s.Len())
}

func TestContactedReturnsTrueOnlyForNewSupportedPeer(t *testing.T) {
	s := New(selfEp())
	e := ep("10.0.0.2", 7075)

	require.True(t, s.Contacted(e, v), "a new peer at a supported version should trigger a handshake")
	require.False(t, s.Contacted(e, v), "an already-known peer should not trigger a second handshake")
	require.Equal(t, 1, s.Len())
}

func TestContactedRejectsSelfAndReserved(t *testing.T) {
	s := New(selfEp())
	require.False(t, s.Contacted(selfEp(), v))
	require.False(t, s.Contacted(ep("0.0.0.1", 7075), v))
	require.Equal(t, 0, s.Len())
}

// reachout exercises the literal scenario: an endpoint that has never been
// reached out to returns false; once the peer has actually been contacted,
// reachout reports it as known; a purge with a cutoff that hasn't elapsed
// yet leaves it known, but a purge past the cutoff clears it and reachout
// reports it as unknown again.
func TestReachoutScenario(t *testing.T) {
	s := New(selfEp())
	e := ep("10.0.0.7", 7075)

	require.False(t, s.Reachout(e), "first reachout to an unknown peer is not redundant")
	require.True(t, s.Contacted(e, v))
	require.True(t, s.Reachout(e), "reachout after a successful contact reports the peer as known")

	purged := s.PurgeList(time.Hour) // 1h cutoff: a peer contacted moments ago isn't stale
	require.Equal(t, 0, purged)
	require.True(t, s.Reachout(e))

	purged = s.PurgeList(-time.Hour) // negative cutoff: everything is now stale
	require.Equal(t, 1, purged)
	require.False(t, s.Reachout(e), "after a purge the peer must look unknown again")
}

func TestReachoutThenContacted(t *testing.T) {
	s := New(selfEp())
	e := ep("10.0.0.2", 7075)
	s.Reachout(e)
	s.Contacted(e, v)
	require.Equal(t, 1, s.Len())

	fanout := s.ListFanout(10)
	require.Len(t, fanout, 1)
	require.False(t, fanout[0].LastContact.IsZero())
}

func TestRepResponseOrdering(t *testing.T) {
	s := New(selfEp())
	a := ep("10.0.0.3", 7075)
	b := ep("10.0.0.4", 7075)

	s.RepResponse(a, common.Account{1}, uint256(10))
	s.RepResponse(b, common.Account{2}, uint256(50))

	reps := s.RepresentativesByWeight()
	require.Len(t, reps, 2)
	require.Equal(t, common.Account{2}, reps[0].Representative)
}

func TestPurgeListRemovesStale(t *testing.T) {
	s := New(selfEp())
	s.Insert(ep("10.0.0.5", 7075), v)
	purged := s.PurgeList(-time.Hour) // cutoff in the past: everything is "stale"
	require.Equal(t, 1, purged)
	require.Equal(t, 0, s.Len())
}

func TestSynCookieRoundTrip(t *testing.T) {
	s := New(selfEp())
	e := ep("10.0.0.6", 7075)
	cookie := [8]byte{1, 2, 3, 4, 5, 6, 7, 8}
	s.AssignSynCookie(e, cookie)
	require.True(t, s.ValidateSynCookie(e, cookie))
	require.False(t, s.ValidateSynCookie(e, [8]byte{}))
}

func TestNeedingBootstrapAttemptOrdersByInsertion(t *testing.T) {
	s := New(selfEp())
	a, b := ep("10.0.0.8", 7075), ep("10.0.0.9", 7075)
	s.Insert(a, v)
	s.Insert(b, v)

	need := s.NeedingBootstrapAttempt(time.Hour)
	require.Len(t, need, 2)
	require.Equal(t, a, need[0].Endpoint)

	s.MarkBootstrapAttempt(a)
	need = s.NeedingBootstrapAttempt(time.Hour)
	require.Len(t, need, 1)
	require.Equal(t, b, need[0].Endpoint)
}

func uint256(n uint64) common.Uint256 {
	var u common.Uint256
	for i := 0; i < 8; i++ {
		u[31-i] = byte(n)
		n >>= 8
	}
	return u
}
