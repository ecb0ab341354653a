package types

import "github.com/ravine-network/ravine/common"

// AccountInfo is the per-account chain-head record the ledger keeps in the
// accounts table: everything needed to validate the next block without
// walking the whole chain.
type AccountInfo struct {
	Head           common.Hash
	Representative common.Account
	OpenBlock      common.Hash
	Balance        common.Uint256
	ModifiedAt     uint64 // unix seconds, local wall clock at write time
	BlockCount     uint64
	Epoch          uint8
}

// PendingKey identifies a pending (unreceived) send by the destination
// account and the hash of the send block that created it; the pending
// table is keyed by (destination, send_hash) so a destination's pending
// entries sort and iterate together.
type PendingKey struct {
	Destination common.Account
	SendHash    common.Hash
}

// PendingInfo records what a pending entry is worth and who sent it, so the
// eventual open/receive/state block can verify its claimed balance delta
// without re-reading the send block.
type PendingInfo struct {
	Source common.Account
	Amount common.Uint256
	Epoch  uint8
}

// UncheckedKey indexes blocks that arrived before their dependency (missing
// previous or missing pending source) by the hash they are waiting on.
type UncheckedKey struct {
	DependencyHash common.Hash
}

// UncheckedInfo holds a block parked in the unchecked table along with when
// it arrived, so a periodic sweep can drop entries that never resolve.
type UncheckedInfo struct {
	Block     Block
	ArrivedAt uint64
}
