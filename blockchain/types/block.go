// Package types defines the block-lattice data model: the five block
// variants joined into one interface via a type switch (the corpus has no
// single idiom for tagged unions, so this follows the same
// interface-plus-type-switch shape blockchain/types.Block used for its own
// transaction variants), account bookkeeping records, pending sends,
// unchecked entries and votes.
package types

import (
	"github.com/ravine-network/ravine/common"
	"github.com/ravine-network/ravine/crypto"
)

// BlockType tags which of the five variants a Block value is, so callers
// that only need the kind (e.g. the wire codec) don't need a type switch.
type BlockType uint8

const (
	BlockTypeInvalid BlockType = iota
	BlockTypeSend
	BlockTypeReceive
	BlockTypeOpen
	BlockTypeChange
	BlockTypeState
)

func (t BlockType) String() string {
	switch t {
	case BlockTypeSend:
		return "send"
	case BlockTypeReceive:
		return "receive"
	case BlockTypeOpen:
		return "open"
	case BlockTypeChange:
		return "change"
	case BlockTypeState:
		return "state"
	default:
		return "invalid"
	}
}

// Block is implemented by each of the four legacy variants plus the
// universal state block. Root/Account/Previous/Hash/Signature/Work are
// common to every variant; Type lets a type switch recover the concrete
// shape without a reflect-based dispatch.
type Block interface {
	Type() BlockType
	Hash() common.Hash
	Account() common.Account
	Previous() common.Hash
	Root() common.Hash
	Signature() common.Uint512
	Work() common.Work
	SetSignature(common.Uint512)
	SetWork(common.Work)
}

// SendBlock moves funds out of account's chain toward destination; the
// remaining balance is recorded, never the sent amount, so the receiver's
// open/receive block can recompute the delta against its own chain tip.
type SendBlock struct {
	PreviousHash common.Hash
	Destination  common.Account
	Balance      common.Uint256
	Sig          common.Uint512
	W            common.Work
	account      common.Account
}

func (b *SendBlock) Type() BlockType           { return BlockTypeSend }
func (b *SendBlock) Previous() common.Hash     { return b.PreviousHash }
func (b *SendBlock) Root() common.Hash         { return b.PreviousHash }
func (b *SendBlock) Signature() common.Uint512 { return b.Sig }
func (b *SendBlock) Work() common.Work         { return b.W }
func (b *SendBlock) SetSignature(s common.Uint512) { b.Sig = s }
func (b *SendBlock) SetWork(w common.Work)         { b.W = w }

// Account on a send block is not stored in the wire block itself; it's
// recovered from the ledger's predecessor lookup at validation time and
// cached here afterward for Account() to return without another lookup.
func (b *SendBlock) Account() common.Account { return b.account }
func (b *SendBlock) Hash() common.Hash {
	return crypto.HashBlake2b256(
		[]byte{byte(BlockTypeSend)},
		b.PreviousHash[:],
		b.Destination[:],
		b.Balance[:],
	)
}

// ReceiveBlock claims a pending send into the receiving account's own
// chain, referencing the send block it claims by hash.
type ReceiveBlock struct {
	PreviousHash common.Hash
	SourceHash   common.Hash
	Sig          common.Uint512
	W            common.Work
	account      common.Account
}

func (b *ReceiveBlock) Type() BlockType           { return BlockTypeReceive }
func (b *ReceiveBlock) Previous() common.Hash     { return b.PreviousHash }
func (b *ReceiveBlock) Root() common.Hash         { return b.PreviousHash }
func (b *ReceiveBlock) Signature() common.Uint512 { return b.Sig }
func (b *ReceiveBlock) Work() common.Work         { return b.W }
func (b *ReceiveBlock) SetSignature(s common.Uint512) { b.Sig = s }
func (b *ReceiveBlock) SetWork(w common.Work)         { b.W = w }
func (b *ReceiveBlock) Account() common.Account       { return b.account }
func (b *ReceiveBlock) Hash() common.Hash {
	return crypto.HashBlake2b256(
		[]byte{byte(BlockTypeReceive)},
		b.PreviousHash[:],
		b.SourceHash[:],
	)
}

// OpenBlock is the first block on a chain: it has no previous, so its root
// is the account's own address, and it claims the first pending send plus
// names the account's initial representative.
type OpenBlock struct {
	SourceHash     common.Hash
	Representative common.Account
	OpenAccount    common.Account
	Sig            common.Uint512
	W              common.Work
}

func (b *OpenBlock) Type() BlockType           { return BlockTypeOpen }
func (b *OpenBlock) Previous() common.Hash     { return common.Hash{} }
func (b *OpenBlock) Root() common.Hash         { return common.Hash(b.OpenAccount) }
func (b *OpenBlock) Signature() common.Uint512 { return b.Sig }
func (b *OpenBlock) Work() common.Work         { return b.W }
func (b *OpenBlock) SetSignature(s common.Uint512) { b.Sig = s }
func (b *OpenBlock) SetWork(w common.Work)         { b.W = w }
func (b *OpenBlock) Account() common.Account       { return b.OpenAccount }
func (b *OpenBlock) Hash() common.Hash {
	return crypto.HashBlake2b256(
		[]byte{byte(BlockTypeOpen)},
		b.SourceHash[:],
		b.Representative[:],
		b.OpenAccount[:],
	)
}

// ChangeBlock alters the account's chosen representative without moving any
// balance.
type ChangeBlock struct {
	PreviousHash   common.Hash
	Representative common.Account
	Sig            common.Uint512
	W              common.Work
	account        common.Account
}

func (b *ChangeBlock) Type() BlockType           { return BlockTypeChange }
func (b *ChangeBlock) Previous() common.Hash     { return b.PreviousHash }
func (b *ChangeBlock) Root() common.Hash         { return b.PreviousHash }
func (b *ChangeBlock) Signature() common.Uint512 { return b.Sig }
func (b *ChangeBlock) Work() common.Work         { return b.W }
func (b *ChangeBlock) SetSignature(s common.Uint512) { b.Sig = s }
func (b *ChangeBlock) SetWork(w common.Work)         { b.W = w }
func (b *ChangeBlock) Account() common.Account       { return b.account }
func (b *ChangeBlock) Hash() common.Hash {
	return crypto.HashBlake2b256(
		[]byte{byte(BlockTypeChange)},
		b.PreviousHash[:],
		b.Representative[:],
	)
}

// StateBlock is the universal variant: a single shape covers send, receive,
// open and change by convention of what Link refers to (see StateSubtype).
// There is no epoch-upgrade form: the ledger has no reserved epoch Link
// value and applies an unchanged-balance state block as a change.
type StateBlock struct {
	StateAccount   common.Account
	PreviousHash   common.Hash
	Representative common.Account
	Balance        common.Uint256
	Link           common.Hash
	Sig            common.Uint512
	W              common.Work
}

// StateSubtype names what Link means for a given state block; it is never
// stored on the wire. The ledger infers the operation from the balance
// change directly and does not produce a StateSubtype value.
type StateSubtype uint8

const (
	StateSubtypeSend StateSubtype = iota
	StateSubtypeReceive
	StateSubtypeOpen
	StateSubtypeChange
	StateSubtypeEpoch
)

func (b *StateBlock) Type() BlockType           { return BlockTypeState }
func (b *StateBlock) Account() common.Account   { return b.StateAccount }
func (b *StateBlock) Previous() common.Hash     { return b.PreviousHash }
func (b *StateBlock) Signature() common.Uint512 { return b.Sig }
func (b *StateBlock) Work() common.Work         { return b.W }
func (b *StateBlock) SetSignature(s common.Uint512) { b.Sig = s }
func (b *StateBlock) SetWork(w common.Work)         { b.W = w }

// Root is the previous block hash for every state block but the chain's
// first, where it is the account address itself — matching the rule used
// for proof-of-work difficulty lookups and the ledger's predecessor walk.
func (b *StateBlock) Root() common.Hash {
	if b.PreviousHash.IsZero() {
		return common.Hash(b.StateAccount)
	}
	return b.PreviousHash
}

func (b *StateBlock) Hash() common.Hash {
	return crypto.HashBlake2b256(
		[]byte{byte(BlockTypeState)},
		b.StateAccount[:],
		b.PreviousHash[:],
		b.Representative[:],
		b.Balance[:],
		b.Link[:],
	)
}

// AccountSetter is implemented by the legacy block variants whose account
// is not self-evident from their own fields; the ledger populates it once
// the predecessor chain has been resolved.
type AccountSetter interface {
	SetAccount(common.Account)
}

func (b *SendBlock) SetAccount(a common.Account)   { b.account = a }
func (b *ReceiveBlock) SetAccount(a common.Account) { b.account = a }
func (b *ChangeBlock) SetAccount(a common.Account)  { b.account = a }
