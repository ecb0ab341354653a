package blockchain

import (
	"github.com/ravine-network/ravine/blockchain/types"
	"github.com/ravine-network/ravine/common"
	"github.com/ravine-network/ravine/crypto"
	"github.com/ravine-network/ravine/storage/database"
)

// processSend validates and applies a legacy send block: it must follow the
// account's current head, not overdraw the balance, and carry enough work
// for the account's chain root.
func (l *Ledger) processSend(txn database.Txn, b *types.SendBlock) ProcessResult {
	if !l.verifyWork(b) {
		return ProcessResult{Code: InsufficientWork}
	}
	if l.blockExists(txn, b.Hash()) {
		return ProcessResult{Code: Old}
	}

	account, info, ok := l.resolvePredecessor(txn, b.PreviousHash)
	if !ok {
		return ProcessResult{Code: GapPrevious}
	}
	b.SetAccount(account)

	if !crypto.Verify(account, b.Hash(), b.Signature()) {
		return ProcessResult{Code: BadSignature}
	}
	if info.Head != b.PreviousHash {
		return ProcessResult{Code: Fork}
	}
	if b.Balance.Cmp(info.Balance) >= 0 {
		return ProcessResult{Code: NegativeSpend}
	}

	sent := info.Balance.Sub(b.Balance)
	l.putPending(txn, types.PendingKey{Destination: b.Destination, SendHash: b.Hash()}, types.PendingInfo{
		Source: account,
		Amount: sent,
	})

	info.Head = b.Hash()
	info.Balance = b.Balance
	info.BlockCount++
	l.putAccountInfo(txn, account, info)
	l.putBlock(txn, b, account, PendingMoveCreated, sent)

	return ProcessResult{Code: Progress, Account: account}
}

// processReceive validates and applies a legacy receive block: it claims a
// pending send, so the source must exist and have been addressed to this
// account's current head.
func (l *Ledger) processReceive(txn database.Txn, b *types.ReceiveBlock) ProcessResult {
	if !l.verifyWork(b) {
		return ProcessResult{Code: InsufficientWork}
	}
	if l.blockExists(txn, b.Hash()) {
		return ProcessResult{Code: Old}
	}

	account, info, ok := l.resolvePredecessor(txn, b.PreviousHash)
	if !ok {
		return ProcessResult{Code: GapPrevious}
	}
	b.SetAccount(account)

	if !crypto.Verify(account, b.Hash(), b.Signature()) {
		return ProcessResult{Code: BadSignature}
	}
	if info.Head != b.PreviousHash {
		return ProcessResult{Code: Fork}
	}
	if account == BurnAccount {
		return ProcessResult{Code: UnreceivableSource}
	}

	pending, ok := l.takePending(txn, types.PendingKey{Destination: account, SendHash: b.SourceHash})
	if !ok {
		return ProcessResult{Code: GapSource}
	}

	info.Head = b.Hash()
	info.Balance = info.Balance.Add(pending.Amount)
	info.BlockCount++
	l.putAccountInfo(txn, account, info)
	l.putBlock(txn, b, account, PendingMoveConsumed, pending.Amount)

	return ProcessResult{Code: Progress, Account: account}
}

// processOpen validates and applies an open block: the chain's first block,
// claiming a pending send and naming the account's initial representative.
func (l *Ledger) processOpen(txn database.Txn, b *types.OpenBlock) ProcessResult {
	if !l.verifyWork(b) {
		return ProcessResult{Code: InsufficientWork}
	}
	if l.blockExists(txn, b.Hash()) {
		return ProcessResult{Code: Old}
	}
	if b.OpenAccount == BurnAccount {
		return ProcessResult{Code: OpenedBurnAccount}
	}
	if !crypto.Verify(b.OpenAccount, b.Hash(), b.Signature()) {
		return ProcessResult{Code: BadSignature}
	}
	if _, exists := l.accountInfo(txn, b.OpenAccount); exists {
		return ProcessResult{Code: Fork}
	}

	pending, ok := l.takePending(txn, types.PendingKey{Destination: b.OpenAccount, SendHash: b.SourceHash})
	if !ok {
		return ProcessResult{Code: GapSource}
	}

	l.putAccountInfo(txn, b.OpenAccount, types.AccountInfo{
		Head:           b.Hash(),
		Representative: b.Representative,
		OpenBlock:      b.Hash(),
		Balance:        pending.Amount,
		BlockCount:     1,
	})
	l.putBlock(txn, b, b.OpenAccount, PendingMoveConsumed, pending.Amount)

	return ProcessResult{Code: Progress, Account: b.OpenAccount}
}

// processChange validates and applies a representative-change block: no
// balance moves, only the account's chosen representative.
func (l *Ledger) processChange(txn database.Txn, b *types.ChangeBlock) ProcessResult {
	if !l.verifyWork(b) {
		return ProcessResult{Code: InsufficientWork}
	}
	if l.blockExists(txn, b.Hash()) {
		return ProcessResult{Code: Old}
	}

	account, info, ok := l.resolvePredecessor(txn, b.PreviousHash)
	if !ok {
		return ProcessResult{Code: GapPrevious}
	}
	b.SetAccount(account)

	if !crypto.Verify(account, b.Hash(), b.Signature()) {
		return ProcessResult{Code: BadSignature}
	}
	if info.Head != b.PreviousHash {
		return ProcessResult{Code: Fork}
	}

	info.Head = b.Hash()
	info.Representative = b.Representative
	info.BlockCount++
	l.putAccountInfo(txn, account, info)
	l.putBlock(txn, b, account, PendingMoveNone, common.Uint256{})

	return ProcessResult{Code: Progress, Account: account}
}

// processState validates and applies a universal state block. Its subtype
// (send/receive/open/change) is inferred from how Balance relates to the
// previous account state rather than being carried on the wire: lower is a
// send to Link, higher (or a first block) a receive of the send named by
// Link, equal a representative change. Epoch-upgrade blocks are not
// recognised: an unchanged-balance state block is applied as a
// representative change whatever its Link and signer.
func (l *Ledger) processState(txn database.Txn, b *types.StateBlock) ProcessResult {
	if !l.verifyWork(b) {
		return ProcessResult{Code: InsufficientWork}
	}
	if l.blockExists(txn, b.Hash()) {
		return ProcessResult{Code: Old}
	}
	if !crypto.Verify(b.StateAccount, b.Hash(), b.Signature()) {
		return ProcessResult{Code: BadSignature}
	}
	if b.StateAccount == BurnAccount && b.PreviousHash.IsZero() {
		return ProcessResult{Code: OpenedBurnAccount}
	}

	info, exists := l.accountInfo(txn, b.StateAccount)

	if b.PreviousHash.IsZero() {
		if exists {
			return ProcessResult{Code: Fork}
		}
		return l.applyStateOpenOrReceive(txn, b, types.AccountInfo{})
	}

	if !exists {
		return ProcessResult{Code: GapPrevious}
	}
	if info.Head != b.PreviousHash {
		return ProcessResult{Code: Fork}
	}

	switch b.Balance.Cmp(info.Balance) {
	case -1:
		return l.applyStateSend(txn, b, info)
	case 0:
		return l.applyStateChange(txn, b, info)
	default:
		return l.applyStateOpenOrReceive(txn, b, info)
	}
}

func (l *Ledger) applyStateSend(txn database.Txn, b *types.StateBlock, info types.AccountInfo) ProcessResult {
	sent := info.Balance.Sub(b.Balance)
	l.putPending(txn, types.PendingKey{Destination: common.Account(b.Link), SendHash: b.Hash()}, types.PendingInfo{
		Source: b.StateAccount,
		Amount: sent,
	})
	info.Head = b.Hash()
	info.Balance = b.Balance
	info.Representative = b.Representative
	info.BlockCount++
	l.putAccountInfo(txn, b.StateAccount, info)
	l.putBlock(txn, b, b.StateAccount, PendingMoveCreated, sent)
	return ProcessResult{Code: Progress, Account: b.StateAccount}
}

func (l *Ledger) applyStateChange(txn database.Txn, b *types.StateBlock, info types.AccountInfo) ProcessResult {
	info.Head = b.Hash()
	info.Representative = b.Representative
	info.BlockCount++
	l.putAccountInfo(txn, b.StateAccount, info)
	l.putBlock(txn, b, b.StateAccount, PendingMoveNone, common.Uint256{})
	return ProcessResult{Code: Progress, Account: b.StateAccount}
}

// applyStateOpenOrReceive covers both the chain's first block and a later
// balance-increasing block: both consume a pending entry keyed by this
// account as destination and the claimed Link as the send hash.
func (l *Ledger) applyStateOpenOrReceive(txn database.Txn, b *types.StateBlock, info types.AccountInfo) ProcessResult {
	pending, ok := l.takePending(txn, types.PendingKey{Destination: b.StateAccount, SendHash: b.Link})
	if !ok {
		return ProcessResult{Code: GapSource}
	}
	expected := info.Balance.Add(pending.Amount)
	if b.Balance != expected {
		// Put back the pending entry takePending removed: a rejected block
		// leaves the tables as they were.
		l.putPending(txn, types.PendingKey{Destination: b.StateAccount, SendHash: b.Link}, pending)
		return ProcessResult{Code: BalanceMismatch}
	}

	openBlock := info.OpenBlock
	if openBlock.IsZero() {
		openBlock = b.Hash()
	}

	l.putAccountInfo(txn, b.StateAccount, types.AccountInfo{
		Head:           b.Hash(),
		Representative: b.Representative,
		OpenBlock:      openBlock,
		Balance:        b.Balance,
		BlockCount:     info.BlockCount + 1,
	})
	l.putBlock(txn, b, b.StateAccount, PendingMoveConsumed, pending.Amount)
	return ProcessResult{Code: Progress, Account: b.StateAccount}
}

// resolvePredecessor recovers the account chain a legacy block belongs to by
// reading the account metadata stored alongside the previous block in the
// blocks table — legacy variants don't carry their own account, so the
// account of the block they extend is the only way to find it.
func (l *Ledger) resolvePredecessor(txn database.Txn, previousHash common.Hash) (common.Account, types.AccountInfo, bool) {
	_, account, _, _, ok := l.getStoredBlock(txn, previousHash)
	if !ok {
		return common.Account{}, types.AccountInfo{}, false
	}
	info, ok := l.accountInfo(txn, account)
	return account, info, ok
}
