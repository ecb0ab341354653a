package types

import (
	"github.com/ravine-network/ravine/common"
	"github.com/ravine-network/ravine/crypto"
)

// Vote is a representative's signed assertion of which block it believes is
// valid at a given root; the election tally sums the weight behind each
// distinct hash a root has received votes for.
type Vote struct {
	Account    common.Account
	Sig        common.Uint512
	Sequence   uint64
	BlockHash  common.Hash
}

// Hash is what gets signed: the account casting the vote is authenticated
// by the signature itself, so it is deliberately excluded from the hashed
// payload.
func (v *Vote) Hash() common.Hash {
	return crypto.HashBlake2b256(
		v.BlockHash[:],
		uint64BE(v.Sequence),
	)
}

// Verify checks the vote's signature against its claimed account.
func (v *Vote) Verify() bool {
	return crypto.Verify(v.Account, v.Hash(), v.Sig)
}

func uint64BE(v uint64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}

// Sideband carries local bookkeeping the ledger stores alongside a block
// but which is never part of its hash or wire signature: the block's height
// on its account chain and the local timestamp it was confirmed.
type Sideband struct {
	Height    uint64
	Timestamp uint64
	Successor common.Hash
}
