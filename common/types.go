// Package common holds the fixed-width number types, account/hash aliases,
// and the uniquer cache shared by every other package in the node.
package common

import (
	"encoding/hex"
	"fmt"
	"math/big"
)

const (
	HashLength    = 32
	Uint128Length = 16
	Uint512Length = 64
)

// Hash is a 256-bit blake2b digest, used for block hashes, vote hashes and
// the account-chain "root" a conflict is keyed by.
type Hash [HashLength]byte

func BytesToHash(b []byte) (h Hash) {
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
	return h
}

func (h Hash) Bytes() []byte  { return h[:] }
func (h Hash) String() string { return hex.EncodeToString(h[:]) }
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// Uint128 is used for the immutable epoch/link "flag" unions in state
// blocks; it never participates in arithmetic, only equality and bit tests.
type Uint128 [Uint128Length]byte

func (u Uint128) Bytes() []byte   { return u[:] }
func (u Uint128) String() string  { return hex.EncodeToString(u[:]) }

// Uint256 is the account-balance and account-address number type: balances
// are plain big-endian 256-bit unsigned integers, and account addresses are
// the same 256-bit width as a public key, so both share this type.
type Uint256 Hash

func BytesToUint256(b []byte) Uint256 { return Uint256(BytesToHash(b)) }

func (u Uint256) Bytes() []byte  { return u[:] }
func (u Uint256) String() string { return hex.EncodeToString(u[:]) }
func (u Uint256) IsZero() bool   { return u == Uint256{} }

// Big returns the balance as an arbitrary-precision integer for arithmetic
// (pending amount accumulation, vote-weight summation).
func (u Uint256) Big() *big.Int {
	return new(big.Int).SetBytes(u[:])
}

// Uint256FromBig renders a big.Int into a 256-bit big-endian fixed array.
// It panics if v is negative or does not fit, which would indicate a
// balance-arithmetic bug upstream rather than bad input.
func Uint256FromBig(v *big.Int) Uint256 {
	if v.Sign() < 0 {
		panic("common: negative value cannot be represented as Uint256")
	}
	b := v.Bytes()
	if len(b) > HashLength {
		panic("common: value overflows Uint256")
	}
	var u Uint256
	copy(u[HashLength-len(b):], b)
	return u
}

// Cmp orders two balances/weights for the "greatest vote weight wins"
// fork-resolution rule.
func (u Uint256) Cmp(other Uint256) int {
	for i := 0; i < HashLength; i++ {
		if u[i] != other[i] {
			if u[i] < other[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// Add returns u+v as a balance; it is the caller's responsibility to ensure
// the ledger has already checked for overflow (balances are conserved by
// construction, never minted out of thin air).
func (u Uint256) Add(v Uint256) Uint256 {
	return Uint256FromBig(new(big.Int).Add(u.Big(), v.Big()))
}

func (u Uint256) Sub(v Uint256) Uint256 {
	return Uint256FromBig(new(big.Int).Sub(u.Big(), v.Big()))
}

// Account is the public-key-derived address of a block-lattice chain head.
type Account = Uint256

// Uint512 holds an ed25519 signature.
type Uint512 [Uint512Length]byte

func (u Uint512) Bytes() []byte  { return u[:] }
func (u Uint512) String() string { return hex.EncodeToString(u[:]) }

// Work is a 64-bit proof-of-work solution nonce, stored little-endian on
// the wire per the original protocol's convention.
type Work uint64

func (w Work) String() string { return fmt.Sprintf("%016x", uint64(w)) }
