package blockchain

import (
	"github.com/ravine-network/ravine/common"
	"github.com/ravine-network/ravine/storage/database"
)

// Weight returns a representative's currently cached delegated-weight total:
// the sum of the balance of every account that names it as representative,
// whether or not the representative is online.
// Active elections read this to compute vote quorum.
func (l *Ledger) Weight(txn database.Txn, representative common.Account) common.Uint256 {
	raw, err := txn.Get(database.TableRepresentation, representative.Bytes())
	if err != nil {
		logger.Crit("Failed to read representation table", "err", err)
	}
	if raw == nil {
		return common.Uint256{}
	}
	return common.BytesToUint256(raw)
}

func (l *Ledger) setWeight(txn database.Txn, representative common.Account, weight common.Uint256) {
	if err := txn.Put(database.TableRepresentation, representative.Bytes(), weight.Bytes()); err != nil {
		logger.Crit("Failed to write representation table", "err", err)
	}
}

// adjustWeight moves an account's balance contribution from its previous
// representative (if any) to its current one, in the same write
// transaction as the account-info update that triggered the move. This is
// what keeps the representation table an always-current cache rather than
// something that must be rebuilt by walking every chain.
func (l *Ledger) adjustWeight(txn database.Txn, hadOld bool, old accountWeightView, new accountWeightView) {
	if hadOld && !old.representative.IsZero() {
		cur := l.Weight(txn, old.representative)
		l.setWeight(txn, old.representative, subSaturating(cur, old.balance))
	}
	if !new.representative.IsZero() {
		cur := l.Weight(txn, new.representative)
		l.setWeight(txn, new.representative, cur.Add(new.balance))
	}
}

type accountWeightView struct {
	representative common.Account
	balance        common.Uint256
}

// subSaturating floors at zero: rollback and concurrent updates should
// never drive a weight negative, but floor rather than panic so a latent
// accounting bug degrades to a wrong total instead of a crash loop.
func subSaturating(a, b common.Uint256) common.Uint256 {
	if a.Cmp(b) < 0 {
		return common.Uint256{}
	}
	return a.Sub(b)
}
