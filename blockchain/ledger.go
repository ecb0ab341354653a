// Package blockchain implements the ledger: the state machine that
// validates a block against account history and applies it to the account,
// pending and representation tables within a single storage transaction.
package blockchain

import (
	"github.com/ravine-network/ravine/blockchain/types"
	"github.com/ravine-network/ravine/common"
	"github.com/ravine-network/ravine/crypto"
	"github.com/ravine-network/ravine/log"
	"github.com/ravine-network/ravine/storage/database"
)

var logger = log.NewModuleLogger(log.Blockchain)

// ProcessCode enumerates every outcome Process can return; callers (the
// block processor, bootstrap) switch on this rather than parsing an error
// string.
type ProcessCode int

const (
	Progress ProcessCode = iota
	BadSignature
	Old
	NegativeSpend
	Fork
	UnreceivableSource
	GapPrevious
	GapSource
	OpenedBurnAccount
	BalanceMismatch
	RepresentativeMismatch
	BlockPositionMismatch
	InsufficientWork
)

func (c ProcessCode) String() string {
	switch c {
	case Progress:
		return "progress"
	case BadSignature:
		return "bad_signature"
	case Old:
		return "old"
	case NegativeSpend:
		return "negative_spend"
	case Fork:
		return "fork"
	case UnreceivableSource:
		return "unreceivable_source"
	case GapPrevious:
		return "gap_previous"
	case GapSource:
		return "gap_source"
	case OpenedBurnAccount:
		return "opened_burn_account"
	case BalanceMismatch:
		return "balance_mismatch"
	case RepresentativeMismatch:
		return "representative_mismatch"
	case BlockPositionMismatch:
		return "block_position_mismatch"
	case InsufficientWork:
		return "insufficient_work"
	default:
		return "unknown"
	}
}

// ProcessResult is Process's verdict, plus the account-chain state the
// caller needs to react (e.g. to update an active election's status).
type ProcessResult struct {
	Code    ProcessCode
	Account common.Account
}

// BurnAccount is the all-zero account; any block claiming to open or send
// from it is rejected, since it has no controlling keypair and coins sent
// there are permanently unspendable by design of the address space itself.
var BurnAccount common.Account

// Ledger validates and applies blocks, and answers chain-state queries
// against a storage transaction supplied by the caller (the block
// processor holds the single writer transaction every block in a batch
// shares).
type Ledger struct {
	workThreshold uint64
}

func NewLedger(workThreshold uint64) *Ledger {
	return &Ledger{workThreshold: workThreshold}
}

// Process validates blk against the account chain it belongs to and, if
// valid, applies it: writes the new AccountInfo, consumes or creates a
// pending entry, and updates representative weights. All table writes for
// one block happen inside the caller's single txn, so a later block in the
// same batch that fails does not leave this one half-applied.
func (l *Ledger) Process(txn database.Txn, blk types.Block) ProcessResult {
	if !txn.Writable() {
		logger.Crit("Process called with a read-only transaction")
	}

	switch b := blk.(type) {
	case *types.StateBlock:
		return l.processState(txn, b)
	case *types.SendBlock:
		return l.processSend(txn, b)
	case *types.ReceiveBlock:
		return l.processReceive(txn, b)
	case *types.OpenBlock:
		return l.processOpen(txn, b)
	case *types.ChangeBlock:
		return l.processChange(txn, b)
	default:
		logger.Crit("Process called with an unrecognized block variant")
		return ProcessResult{Code: Fork}
	}
}

// accountInfo looks up the chain-head record for account, returning ok=false
// if the account has never been opened.
func (l *Ledger) accountInfo(txn database.Txn, account common.Account) (types.AccountInfo, bool) {
	raw, err := txn.Get(database.TableAccountsV1, account.Bytes())
	if err != nil {
		logger.Crit("Failed to read accounts table", "err", err)
	}
	if raw == nil {
		return types.AccountInfo{}, false
	}
	return decodeAccountInfo(raw), true
}

func (l *Ledger) putAccountInfo(txn database.Txn, account common.Account, info types.AccountInfo) {
	old, hadOld := l.accountInfo(txn, account)
	l.adjustWeight(txn, hadOld,
		accountWeightView{representative: old.Representative, balance: old.Balance},
		accountWeightView{representative: info.Representative, balance: info.Balance},
	)
	if err := txn.Put(database.TableAccountsV1, account.Bytes(), encodeAccountInfo(info)); err != nil {
		logger.Crit("Failed to write accounts table", "err", err)
	}
}

func (l *Ledger) putPending(txn database.Txn, key types.PendingKey, info types.PendingInfo) {
	k := append(append([]byte(nil), key.Destination[:]...), key.SendHash[:]...)
	if err := txn.Put(database.TablePendingV1, k, encodePendingInfo(info)); err != nil {
		logger.Crit("Failed to write pending table", "err", err)
	}
}

func (l *Ledger) takePending(txn database.Txn, key types.PendingKey) (types.PendingInfo, bool) {
	k := append(append([]byte(nil), key.Destination[:]...), key.SendHash[:]...)
	raw, err := txn.Get(database.TablePendingV1, k)
	if err != nil {
		logger.Crit("Failed to read pending table", "err", err)
	}
	if raw == nil {
		return types.PendingInfo{}, false
	}
	info := decodePendingInfo(raw)
	if err := txn.Delete(database.TablePendingV1, k); err != nil {
		logger.Crit("Failed to delete pending entry", "err", err)
	}
	return info, true
}

func (l *Ledger) blockExists(txn database.Txn, hash common.Hash) bool {
	raw, err := txn.Get(database.TableBlocks, hash.Bytes())
	if err != nil {
		logger.Crit("Failed to read blocks table", "err", err)
	}
	return raw != nil
}

// PendingMove describes what, if anything, a block did to the pending
// table, so rollback can tell a balance-lowering send apart from a
// balance-raising open/receive without re-deriving it from sibling blocks.
type PendingMove uint8

const (
	PendingMoveNone PendingMove = iota
	PendingMoveCreated
	PendingMoveConsumed
)

// putBlock stores a block together with the facts rollback needs that are
// not recoverable from the block's own wire bytes alone: which account it
// belongs to (legacy variants don't carry one), the pending amount it
// moved, and which direction it moved it. This makes each blocks-table row
// a self-contained undo record instead of requiring rollback to re-derive
// amounts from sibling blocks.
func (l *Ledger) putBlock(txn database.Txn, blk types.Block, account common.Account, move PendingMove, amount common.Uint256) {
	buf := make([]byte, 0, 65+len(types.EncodeBlock(blk)))
	buf = append(buf, account.Bytes()...)
	buf = append(buf, amount.Bytes()...)
	buf = append(buf, byte(move))
	buf = append(buf, types.EncodeBlock(blk)...)
	if err := txn.Put(database.TableBlocks, blk.Hash().Bytes(), buf); err != nil {
		logger.Crit("Failed to write blocks table", "err", err)
	}
}

// getStoredBlock reads back a block along with the account/amount/move
// metadata putBlock attached to it.
func (l *Ledger) getStoredBlock(txn database.Txn, hash common.Hash) (types.Block, common.Account, PendingMove, common.Uint256, bool) {
	raw, err := txn.Get(database.TableBlocks, hash.Bytes())
	if err != nil {
		logger.Crit("Failed to read blocks table", "err", err)
	}
	if raw == nil || len(raw) < 65 {
		return nil, common.Account{}, PendingMoveNone, common.Uint256{}, false
	}
	account := common.BytesToUint256(raw[0:32])
	amount := common.BytesToUint256(raw[32:64])
	move := PendingMove(raw[64])
	blk, err := types.DecodeBlock(raw[65:])
	if err != nil {
		logger.Crit("Failed to decode stored block", "err", err)
	}
	return blk, account, move, amount, true
}

// verifyWork checks the block's cached-difficulty PoW against the
// network's publish threshold at the block's work root.
func (l *Ledger) verifyWork(blk types.Block) bool {
	domain := blk.Root()
	digest := crypto.HashBlake2b512(domain[:], workBytes(blk.Work()))
	// Difficulty is measured on the leading 8 bytes of the digest,
	// interpreted as a big-endian integer, against the threshold.
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(digest[i])
	}
	return v >= l.workThreshold
}

func workBytes(w common.Work) []byte {
	b := make([]byte, 8)
	v := uint64(w)
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * uint(7-i)))
	}
	return b
}
