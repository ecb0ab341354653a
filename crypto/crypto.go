// Package crypto wraps the node's two primitives: ed25519 signatures over
// account chains, and blake2b hashing of block and vote content.
package crypto

import (
	"crypto/ed25519"
	"errors"

	"golang.org/x/crypto/blake2b"

	"github.com/ravine-network/ravine/common"
)

var ErrInvalidSignature = errors.New("crypto: invalid signature")

// HashBlake2b256 returns the 32-byte blake2b-256 digest of the concatenated
// parts, matching the block/vote hashing scheme: every hashed structure is
// built by feeding its fields in order into one incremental hasher, which
// yields the same digest as hashing the parts joined into one byte slice.
func HashBlake2b256(parts ...[]byte) common.Hash {
	h, err := blake2b.New256(nil)
	if err != nil {
		panic("crypto: blake2b-256 init failed: " + err.Error())
	}
	for _, p := range parts {
		h.Write(p)
	}
	var out common.Hash
	copy(out[:], h.Sum(nil))
	return out
}

// HashBlake2b512 is used for the PoW nonce hash, which needs 512 bits of
// output search space for the difficulty threshold comparison.
func HashBlake2b512(parts ...[]byte) [64]byte {
	h, err := blake2b.New512(nil)
	if err != nil {
		panic("crypto: blake2b-512 init failed: " + err.Error())
	}
	for _, p := range parts {
		h.Write(p)
	}
	var out [64]byte
	copy(out[:], h.Sum(nil))
	return out
}

// KeyPair is a generated or loaded ed25519 account keypair.
type KeyPair struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

// GenerateKeyPair derives a keypair from a 32-byte seed, the account's
// private key material.
func GenerateKeyPair(seed []byte) (*KeyPair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, errors.New("crypto: seed must be 32 bytes")
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &KeyPair{
		Public:  priv.Public().(ed25519.PublicKey),
		Private: priv,
	}, nil
}

// Account returns the 256-bit account address this keypair controls: the
// raw ed25519 public key, reinterpreted as an account number.
func (kp *KeyPair) Account() common.Account {
	return common.BytesToUint256(kp.Public)
}

// Sign produces the ed25519 signature over a block or vote hash.
func (kp *KeyPair) Sign(hash common.Hash) common.Uint512 {
	sig := ed25519.Sign(kp.Private, hash[:])
	var out common.Uint512
	copy(out[:], sig)
	return out
}

// Verify checks a signature against an account's public key and a hash.
// Every block and vote signature check in the ledger and election packages
// routes through this one function.
func Verify(account common.Account, hash common.Hash, sig common.Uint512) bool {
	pub := ed25519.PublicKey(account.Bytes())
	return ed25519.Verify(pub, hash[:], sig.Bytes())
}
