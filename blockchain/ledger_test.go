package blockchain

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ravine-network/ravine/blockchain/types"
	"github.com/ravine-network/ravine/common"
	"github.com/ravine-network/ravine/crypto"
	"github.com/ravine-network/ravine/storage/database"
)

func seed(b byte) []byte {
	s := make([]byte, 32)
	for i := range s {
		s[i] = b
	}
	return s
}

func uint256(n uint64) common.Uint256 {
	var u common.Uint256
	for i := 0; i < 8; i++ {
		u[31-i] = byte(n)
		n >>= 8
	}
	return u
}

// openGenesis creates an account out of thin air by directly writing its
// AccountInfo, standing in for a real genesis block the ledger would
// otherwise require a pending send to open against.
func openGenesis(t *testing.T, l *Ledger, txn database.Txn, account common.Account, balance common.Uint256) {
	l.putAccountInfo(txn, account, types.AccountInfo{
		Head:           common.Hash(account),
		Representative: account,
		OpenBlock:      common.Hash(account),
		Balance:        balance,
		BlockCount:     1,
	})
	l.putBlock(txn, &types.StateBlock{StateAccount: account, Representative: account, Balance: balance}, account, PendingMoveNone, common.Uint256{})
}

func stateSend(kp *crypto.KeyPair, previous common.Hash, rep common.Account, balance common.Uint256, link common.Account) *types.StateBlock {
	b := &types.StateBlock{
		StateAccount:   kp.Account(),
		PreviousHash:   previous,
		Representative: rep,
		Balance:        balance,
		Link:           common.Hash(link),
	}
	b.Sig = kp.Sign(b.Hash())
	return b
}

func TestStateSendThenReceive(t *testing.T) {
	l := NewLedger(0)
	db := database.NewMemDatabase()
	defer db.Close()

	sender, _ := crypto.GenerateKeyPair(seed(1))
	receiver, _ := crypto.GenerateKeyPair(seed(2))

	err := db.Update(func(txn database.Txn) error {
		openGenesis(t, l, txn, sender.Account(), uint256(1000))

		send := stateSend(sender, common.Hash(sender.Account()), sender.Account(), uint256(700), receiver.Account())
		result := l.Process(txn, send)
		require.Equal(t, Progress, result.Code)

		open := &types.StateBlock{
			StateAccount:   receiver.Account(),
			Representative: receiver.Account(),
			Balance:        uint256(300),
			Link:           send.Hash(),
		}
		open.Sig = receiver.Sign(open.Hash())
		result = l.Process(txn, open)
		require.Equal(t, Progress, result.Code)

		info, ok := l.accountInfo(txn, receiver.Account())
		require.True(t, ok)
		require.Equal(t, uint256(300), info.Balance)

		senderInfo, ok := l.accountInfo(txn, sender.Account())
		require.True(t, ok)
		require.Equal(t, uint256(700), senderInfo.Balance)
		return nil
	})
	require.NoError(t, err)
}

func TestStateReceiveRejectsBalanceMismatch(t *testing.T) {
	l := NewLedger(0)
	db := database.NewMemDatabase()
	defer db.Close()

	sender, _ := crypto.GenerateKeyPair(seed(3))
	receiver, _ := crypto.GenerateKeyPair(seed(30))

	err := db.Update(func(txn database.Txn) error {
		openGenesis(t, l, txn, sender.Account(), uint256(1000))
		send := stateSend(sender, common.Hash(sender.Account()), sender.Account(), uint256(600), receiver.Account())
		require.Equal(t, Progress, l.Process(txn, send).Code)

		open := &types.StateBlock{
			StateAccount:   receiver.Account(),
			Representative: receiver.Account(),
			Balance:        uint256(999), // pending entry is only worth 400
			Link:           send.Hash(),
		}
		open.Sig = receiver.Sign(open.Hash())
		result := l.Process(txn, open)
		require.Equal(t, BalanceMismatch, result.Code)
		return nil
	})
	require.NoError(t, err)
}

func TestStateForkDetected(t *testing.T) {
	l := NewLedger(0)
	db := database.NewMemDatabase()
	defer db.Close()

	sender, _ := crypto.GenerateKeyPair(seed(4))

	err := db.Update(func(txn database.Txn) error {
		openGenesis(t, l, txn, sender.Account(), uint256(1000))

		forkA := stateSend(sender, common.Hash(sender.Account()), sender.Account(), uint256(900), common.Account{1})
		result := l.Process(txn, forkA)
		require.Equal(t, Progress, result.Code)

		forkB := stateSend(sender, common.Hash(sender.Account()), sender.Account(), uint256(800), common.Account{2})
		result = l.Process(txn, forkB)
		require.Equal(t, Fork, result.Code)
		return nil
	})
	require.NoError(t, err)
}

func TestStateGapSourceOnUnknownLink(t *testing.T) {
	l := NewLedger(0)
	db := database.NewMemDatabase()
	defer db.Close()

	receiver, _ := crypto.GenerateKeyPair(seed(5))

	err := db.Update(func(txn database.Txn) error {
		open := &types.StateBlock{
			StateAccount:   receiver.Account(),
			Representative: receiver.Account(),
			Balance:        uint256(50),
			Link:           common.Hash{0xaa},
		}
		open.Sig = receiver.Sign(open.Hash())
		result := l.Process(txn, open)
		require.Equal(t, GapSource, result.Code)
		return nil
	})
	require.NoError(t, err)
}

func TestStateBadSignatureRejected(t *testing.T) {
	l := NewLedger(0)
	db := database.NewMemDatabase()
	defer db.Close()

	sender, _ := crypto.GenerateKeyPair(seed(6))
	other, _ := crypto.GenerateKeyPair(seed(7))

	err := db.Update(func(txn database.Txn) error {
		openGenesis(t, l, txn, sender.Account(), uint256(500))
		send := stateSend(sender, common.Hash(sender.Account()), sender.Account(), uint256(400), common.Account{1})
		send.Sig = other.Sign(send.Hash()) // signed by the wrong key
		result := l.Process(txn, send)
		require.Equal(t, BadSignature, result.Code)
		return nil
	})
	require.NoError(t, err)
}

func TestInsufficientWorkRejected(t *testing.T) {
	l := NewLedger(^uint64(0)) // impossible threshold
	db := database.NewMemDatabase()
	defer db.Close()

	sender, _ := crypto.GenerateKeyPair(seed(8))

	err := db.Update(func(txn database.Txn) error {
		openGenesis(t, l, txn, sender.Account(), uint256(500))
		send := stateSend(sender, common.Hash(sender.Account()), sender.Account(), uint256(400), common.Account{1})
		result := l.Process(txn, send)
		require.Equal(t, InsufficientWork, result.Code)
		return nil
	})
	require.NoError(t, err)
}

func TestRollbackRestoresBalanceAndPending(t *testing.T) {
	l := NewLedger(0)
	db := database.NewMemDatabase()
	defer db.Close()

	sender, _ := crypto.GenerateKeyPair(seed(9))

	var sendHash common.Hash
	err := db.Update(func(txn database.Txn) error {
		openGenesis(t, l, txn, sender.Account(), uint256(1000))
		send := stateSend(sender, common.Hash(sender.Account()), sender.Account(), uint256(600), common.Account{3})
		result := l.Process(txn, send)
		require.Equal(t, Progress, result.Code)
		sendHash = send.Hash()
		return nil
	})
	require.NoError(t, err)

	err = db.Update(func(txn database.Txn) error {
		rolledBack := l.Rollback(txn, sendHash)
		require.Equal(t, []common.Hash{sendHash}, rolledBack)

		info, ok := l.accountInfo(txn, sender.Account())
		require.True(t, ok)
		require.Equal(t, uint256(1000), info.Balance)
		require.Equal(t, common.Hash(sender.Account()), info.Head)

		_, ok = l.takePending(txn, types.PendingKey{Destination: common.Account{3}, SendHash: sendHash})
		require.False(t, ok, "pending entry the send created should have been undone")
		return nil
	})
	require.NoError(t, err)
}

func TestRollbackOpeningBlockDeletesAccount(t *testing.T) {
	l := NewLedger(0)
	db := database.NewMemDatabase()
	defer db.Close()

	sender, _ := crypto.GenerateKeyPair(seed(10))
	receiver, _ := crypto.GenerateKeyPair(seed(11))

	var openHash common.Hash
	err := db.Update(func(txn database.Txn) error {
		openGenesis(t, l, txn, sender.Account(), uint256(1000))
		send := stateSend(sender, common.Hash(sender.Account()), sender.Account(), uint256(600), receiver.Account())
		require.Equal(t, Progress, l.Process(txn, send).Code)

		open := &types.StateBlock{
			StateAccount:   receiver.Account(),
			Representative: receiver.Account(),
			Balance:        uint256(400),
			Link:           send.Hash(),
		}
		open.Sig = receiver.Sign(open.Hash())
		require.Equal(t, Progress, l.Process(txn, open).Code)
		openHash = open.Hash()
		return nil
	})
	require.NoError(t, err)

	err = db.Update(func(txn database.Txn) error {
		l.Rollback(txn, openHash)
		_, ok := l.accountInfo(txn, receiver.Account())
		require.False(t, ok, "rolling back the open block should remove the account entirely")
		return nil
	})
	require.NoError(t, err)
}

func TestRollbackCascadesThroughDescendantsButStopsAtTarget(t *testing.T) {
	l := NewLedger(0)
	db := database.NewMemDatabase()
	defer db.Close()

	sender, _ := crypto.GenerateKeyPair(seed(13))

	var losingHash common.Hash
	err := db.Update(func(txn database.Txn) error {
		openGenesis(t, l, txn, sender.Account(), uint256(1000))

		losing := stateSend(sender, common.Hash(sender.Account()), sender.Account(), uint256(900), common.Account{1})
		require.Equal(t, Progress, l.Process(txn, losing).Code)
		losingHash = losing.Hash()

		// A block built on top of the loser while consensus was pending;
		// rolling back to losingHash must undo this too.
		descendant := stateSend(sender, losingHash, sender.Account(), uint256(800), common.Account{2})
		require.Equal(t, Progress, l.Process(txn, descendant).Code)
		return nil
	})
	require.NoError(t, err)

	err = db.Update(func(txn database.Txn) error {
		rolledBack := l.Rollback(txn, losingHash)
		require.Len(t, rolledBack, 2, "both the descendant and the original losing block should be undone")

		info, ok := l.accountInfo(txn, sender.Account())
		require.True(t, ok)
		require.Equal(t, uint256(1000), info.Balance)
		require.Equal(t, common.Hash(sender.Account()), info.Head)
		return nil
	})
	require.NoError(t, err)
}

func TestWeightFollowsRepresentativeChange(t *testing.T) {
	l := NewLedger(0)
	db := database.NewMemDatabase()
	defer db.Close()

	account, _ := crypto.GenerateKeyPair(seed(12))
	repA := common.Account{0xA}
	repB := common.Account{0xB}

	err := db.Update(func(txn database.Txn) error {
		l.putAccountInfo(txn, account.Account(), types.AccountInfo{
			Head:           common.Hash(account.Account()),
			Representative: repA,
			Balance:        uint256(500),
			BlockCount:     1,
		})
		require.Equal(t, uint256(500), l.Weight(txn, repA))
		require.Equal(t, common.Uint256{}, l.Weight(txn, repB))

		l.putAccountInfo(txn, account.Account(), types.AccountInfo{
			Head:           common.Hash{1},
			Representative: repB,
			Balance:        uint256(500),
			BlockCount:     2,
		})
		require.Equal(t, common.Uint256{}, l.Weight(txn, repA))
		require.Equal(t, uint256(500), l.Weight(txn, repB))
		return nil
	})
	require.NoError(t, err)
}
