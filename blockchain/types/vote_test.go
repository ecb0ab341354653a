package types

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ravine-network/ravine/common"
	"github.com/ravine-network/ravine/crypto"
)

func TestVoteVerify(t *testing.T) {
	kp, err := crypto.GenerateKeyPair(make([]byte, 32))
	require.NoError(t, err)

	v := &Vote{Account: kp.Account(), Sequence: 1, BlockHash: common.Hash{1, 2, 3}}
	v.Sig = kp.Sign(v.Hash())

	require.True(t, v.Verify())
}

func TestVoteVerifyRejectsSequenceTamper(t *testing.T) {
	kp, _ := crypto.GenerateKeyPair(make([]byte, 32))
	v := &Vote{Account: kp.Account(), Sequence: 1, BlockHash: common.Hash{1}}
	v.Sig = kp.Sign(v.Hash())

	v.Sequence = 2
	require.False(t, v.Verify())
}

func TestVoteHashExcludesAccount(t *testing.T) {
	v1 := &Vote{Account: common.Account{1}, Sequence: 5, BlockHash: common.Hash{9}}
	v2 := &Vote{Account: common.Account{2}, Sequence: 5, BlockHash: common.Hash{9}}
	require.Equal(t, v1.Hash(), v2.Hash())
}
