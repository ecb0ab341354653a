package common

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUint256AddSub(t *testing.T) {
	a := Uint256FromBig(big.NewInt(100))
	b := Uint256FromBig(big.NewInt(40))

	require.Equal(t, int64(140), a.Add(b).Big().Int64())
	require.Equal(t, int64(60), a.Sub(b).Big().Int64())
}

func TestUint256FromBigPanicsOnNegative(t *testing.T) {
	require.Panics(t, func() {
		Uint256FromBig(big.NewInt(-1))
	})
}

func TestUint256FromBigPanicsOnOverflow(t *testing.T) {
	huge := new(big.Int).Lsh(big.NewInt(1), 257)
	require.Panics(t, func() {
		Uint256FromBig(huge)
	})
}

func TestUint256Cmp(t *testing.T) {
	a := Uint256FromBig(big.NewInt(5))
	b := Uint256FromBig(big.NewInt(10))
	require.Equal(t, -1, a.Cmp(b))
	require.Equal(t, 1, b.Cmp(a))
	require.Equal(t, 0, a.Cmp(a))
}

func TestHashIsZero(t *testing.T) {
	var h Hash
	require.True(t, h.IsZero())
	h[0] = 1
	require.False(t, h.IsZero())
}

func TestBytesToHashTruncatesAndPads(t *testing.T) {
	h := BytesToHash([]byte{1, 2, 3})
	require.Equal(t, byte(3), h[HashLength-1])
	require.Equal(t, byte(0), h[0])

	long := make([]byte, HashLength+2)
	long[0], long[1], long[2] = 0xaa, 0xbb, 0xcc
	long[len(long)-1] = 7
	tr := BytesToHash(long)
	require.Equal(t, byte(0xcc), tr[0], "the leading excess bytes are dropped")
	require.Equal(t, byte(7), tr[HashLength-1])
}
