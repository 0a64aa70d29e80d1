// Package crypto provides the custodial wallet for the staking pool: family
// seed decoding, XRPL secp256k1 key derivation, payout transaction signing,
// and encrypted at-rest storage of the seed.
package crypto

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	secpecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/ripemd160"
)

const (
	// seedVersion is the base58 version byte of a family seed ("s...").
	seedVersion byte = 0x21
	// accountVersion is the base58 version byte of an account address ("r...").
	accountVersion byte = 0x00
)

// Wallet holds the keypair derived from the pool's family seed. Only the
// unstake processor may hold one; it is the single shared signing secret of
// the system.
type Wallet struct {
	priv    *secp256k1.PrivateKey
	pub     []byte // compressed, 33 bytes
	address string
}

// WalletFromSeed derives the default (account index 0) keypair from a
// base58 family seed, following the ledger's secp256k1 derivation: a root
// key from the seed entropy, then an additive account key.
func WalletFromSeed(seed string) (*Wallet, error) {
	entropy, err := decodeBase58Check(seed, seedVersion)
	if err != nil {
		return nil, fmt.Errorf("crypto: decode family seed: %w", err)
	}
	if len(entropy) != 16 {
		return nil, errors.New("crypto: family seed must carry 16 bytes of entropy")
	}

	rootScalar, err := deriveScalar(entropy, nil)
	if err != nil {
		return nil, fmt.Errorf("crypto: derive root key: %w", err)
	}
	rootPriv := secp256k1.PrivKeyFromBytes(to32(rootScalar))
	rootPub := rootPriv.PubKey().SerializeCompressed()

	// Intermediate scalar binds the account index (always 0 here) to the
	// root public key.
	var accountIndex [4]byte
	intermediate, err := deriveScalar(rootPub, accountIndex[:])
	if err != nil {
		return nil, fmt.Errorf("crypto: derive account key: %w", err)
	}

	n := secp256k1.S256().N
	accountScalar := new(big.Int).Add(rootScalar, intermediate)
	accountScalar.Mod(accountScalar, n)
	if accountScalar.Sign() == 0 {
		return nil, errors.New("crypto: degenerate account key")
	}

	priv := secp256k1.PrivKeyFromBytes(to32(accountScalar))
	pub := priv.PubKey().SerializeCompressed()

	return &Wallet{
		priv:    priv,
		pub:     pub,
		address: encodeBase58Check(accountVersion, accountID(pub)),
	}, nil
}

// Address returns the classic address derived from the wallet's public key.
func (w *Wallet) Address() string {
	return w.address
}

// PublicKey returns the compressed 33-byte signing public key.
func (w *Wallet) PublicKey() []byte {
	out := make([]byte, len(w.pub))
	copy(out, w.pub)
	return out
}

// Sign produces a canonical DER-encoded ECDSA signature over the
// SHA512-half of the given signing data (which must already carry the
// transaction signing prefix).
func (w *Wallet) Sign(signingData []byte) []byte {
	digest := Sha512Half(signingData)
	return secpecdsa.Sign(w.priv, digest).Serialize()
}

// Sha512Half is the ledger's standard hash: the first 256 bits of SHA-512.
func Sha512Half(data []byte) []byte {
	h := sha512.Sum512(data)
	return h[:32]
}

// DecodeAccountID returns the 20-byte account identifier behind a classic
// "r..." address.
func DecodeAccountID(address string) ([]byte, error) {
	id, err := decodeBase58Check(address, accountVersion)
	if err != nil {
		return nil, fmt.Errorf("crypto: decode address %q: %w", address, err)
	}
	if len(id) != 20 {
		return nil, errors.New("crypto: account ID must be 20 bytes")
	}
	return id, nil
}

// EncodeAccountID is the inverse of DecodeAccountID.
func EncodeAccountID(id []byte) string {
	return encodeBase58Check(accountVersion, id)
}

// accountID computes ripemd160(sha256(pubkey)), the 20-byte account
// identifier behind every classic address.
func accountID(compressedPub []byte) []byte {
	sha := sha256.Sum256(compressedPub)
	rip := ripemd160.New()
	rip.Write(sha[:])
	return rip.Sum(nil)
}

// deriveScalar hashes seed material (plus an optional account-index suffix)
// with an incrementing 32-bit sequence until the result is a valid,
// non-zero scalar below the curve order.
func deriveScalar(material, suffix []byte) (*big.Int, error) {
	n := secp256k1.S256().N
	var seq [4]byte
	for i := uint32(0); i < 0xFFFFFFFF; i++ {
		binary.BigEndian.PutUint32(seq[:], i)
		buf := make([]byte, 0, len(material)+len(suffix)+4)
		buf = append(buf, material...)
		buf = append(buf, suffix...)
		buf = append(buf, seq[:]...)
		candidate := new(big.Int).SetBytes(Sha512Half(buf))
		if candidate.Sign() > 0 && candidate.Cmp(n) < 0 {
			return candidate, nil
		}
	}
	return nil, errors.New("crypto: exhausted key derivation sequence")
}

func to32(v *big.Int) []byte {
	out := make([]byte, 32)
	v.FillBytes(out)
	return out
}
