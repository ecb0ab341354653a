package blockchain

import (
	"github.com/ravine-network/ravine/blockchain/types"
	"github.com/ravine-network/ravine/common"
	"github.com/ravine-network/ravine/storage/database"
)

// Rollback undoes every block on account's chain starting at its current
// head, working backward down to and including the block at hash, and
// restores pending entries those blocks consumed or created. hash is
// usually the account's current head itself (undoing just the one losing
// tip block); it can also name an earlier block, in which case every
// descendant built on top of it since is undone too. The block processor
// calls this when a losing fork is replaced by a confirmed winner.
func (l *Ledger) Rollback(txn database.Txn, hash common.Hash) []common.Hash {
	if !txn.Writable() {
		logger.Crit("Rollback called with a read-only transaction")
	}

	_, account, _, _, ok := l.getStoredBlock(txn, hash)
	if !ok {
		return nil
	}
	info, ok := l.accountInfo(txn, account)
	if !ok {
		return nil
	}

	var rolledBack []common.Hash
	cur := info.Head
	for {
		blk, _, move, amount, ok := l.getStoredBlock(txn, cur)
		if !ok {
			break
		}
		curInfo, ok := l.accountInfo(txn, account)
		if !ok || curInfo.Head != cur {
			// Already rolled back past this point by an earlier call.
			break
		}

		l.undoBlock(txn, account, blk, move, amount, curInfo)
		rolledBack = append(rolledBack, cur)

		if cur == hash {
			break
		}
		if blk.Previous().IsZero() {
			break
		}
		cur = blk.Previous()
	}
	return rolledBack
}

// ReplacementTarget resolves, for the chain that root belongs to, the hash
// of the block the ledger currently has stored immediately after root —
// the block (and anything built on top of it since) a forced replacement
// candidate sharing that root must roll back before it can be applied.
// root is either an account address directly (an opening block's root is
// the account itself) or the hash of a block a later candidate extends
// (its root is that block's own hash, the fork point competing
// candidates share).
func (l *Ledger) ReplacementTarget(txn database.Txn, root common.Hash) (common.Hash, bool) {
	var account common.Account
	isOpen := false
	if _, acc, _, _, ok := l.getStoredBlock(txn, root); ok {
		account = acc
	} else {
		account = common.Account(root)
		isOpen = true
	}

	info, ok := l.accountInfo(txn, account)
	if !ok {
		return common.Hash{}, false
	}

	cur := info.Head
	for {
		blk, _, _, _, ok := l.getStoredBlock(txn, cur)
		if !ok {
			return common.Hash{}, false
		}
		if isOpen && blk.Previous().IsZero() {
			return cur, true
		}
		if !isOpen && blk.Previous() == root {
			return cur, true
		}
		if blk.Previous().IsZero() {
			return common.Hash{}, false
		}
		cur = blk.Previous()
	}
}

// undoBlock reverses exactly one block's effect on account, using the
// account/move/amount metadata putBlock recorded alongside it rather than
// re-deriving them from sibling blocks.
func (l *Ledger) undoBlock(txn database.Txn, account common.Account, blk types.Block, move PendingMove, amount common.Uint256, info types.AccountInfo) {
	isOpening := blk.Previous().IsZero()

	switch move {
	case PendingMoveCreated:
		sendHash := blk.Hash()
		destination := linkOf(blk)
		l.takePending(txn, types.PendingKey{Destination: destination, SendHash: sendHash})
	case PendingMoveConsumed:
		l.restorePending(txn, account, sourceOf(blk), amount)
	}

	if isOpening {
		l.deleteAccount(txn, account, info)
		if err := txn.Delete(database.TableBlocks, blk.Hash().Bytes()); err != nil {
			logger.Crit("Failed to delete block during rollback", "err", err)
		}
		return
	}

	balance := info.Balance
	switch move {
	case PendingMoveCreated:
		balance = info.Balance.Add(amount)
	case PendingMoveConsumed:
		balance = info.Balance.Sub(amount)
	}

	l.putAccountInfo(txn, account, types.AccountInfo{
		Head:           blk.Previous(),
		Representative: l.representativeAsOf(txn, blk.Previous(), info.Representative),
		OpenBlock:      info.OpenBlock,
		Balance:        balance,
		BlockCount:     info.BlockCount - 1,
	})
	if err := txn.Delete(database.TableBlocks, blk.Hash().Bytes()); err != nil {
		logger.Crit("Failed to delete block during rollback", "err", err)
	}
}

// linkOf returns the account a send-shaped block's pending entry was
// created for: the legacy variant's explicit destination, or a state
// block's Link field reinterpreted as an account.
func linkOf(blk types.Block) common.Account {
	switch b := blk.(type) {
	case *types.SendBlock:
		return b.Destination
	case *types.StateBlock:
		return common.Account(b.Link)
	default:
		return common.Account{}
	}
}

// sourceOf returns the send-block hash a receive-shaped block's pending
// entry was consumed from.
func sourceOf(blk types.Block) common.Hash {
	switch b := blk.(type) {
	case *types.ReceiveBlock:
		return b.SourceHash
	case *types.OpenBlock:
		return b.SourceHash
	case *types.StateBlock:
		return b.Link
	default:
		return common.Hash{}
	}
}

// representativeAsOf walks backward from hash until it finds a block that
// names a representative (open/change/state), since legacy send/receive
// blocks don't carry one of their own.
func (l *Ledger) representativeAsOf(txn database.Txn, hash common.Hash, fallback common.Account) common.Account {
	for !hash.IsZero() {
		blk, _, _, _, ok := l.getStoredBlock(txn, hash)
		if !ok {
			break
		}
		switch b := blk.(type) {
		case *types.OpenBlock:
			return b.Representative
		case *types.ChangeBlock:
			return b.Representative
		case *types.StateBlock:
			return b.Representative
		}
		hash = blk.Previous()
	}
	return fallback
}

func (l *Ledger) deleteAccount(txn database.Txn, account common.Account, info types.AccountInfo) {
	l.adjustWeight(txn, true,
		accountWeightView{representative: info.Representative, balance: info.Balance},
		accountWeightView{},
	)
	if err := txn.Delete(database.TableAccountsV1, account.Bytes()); err != nil {
		logger.Crit("Failed to delete account during rollback", "err", err)
	}
}

// restorePending re-creates a pending entry a receive/open/state block
// consumed, keyed by (destination=account, sendHash), recovering the
// source account from the send block itself.
func (l *Ledger) restorePending(txn database.Txn, destination common.Account, sendHash common.Hash, amount common.Uint256) {
	_, sourceAccount, _, _, ok := l.getStoredBlock(txn, sendHash)
	if !ok {
		return
	}
	l.putPending(txn, types.PendingKey{Destination: destination, SendHash: sendHash}, types.PendingInfo{
		Source: sourceAccount,
		Amount: amount,
	})
}
