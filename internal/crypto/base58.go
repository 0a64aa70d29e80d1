package crypto

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"math/big"
)

// rippleAlphabet is the base58 dictionary used by the XRP Ledger. It differs
// from the Bitcoin alphabet so that addresses start with 'r' and family
// seeds with 's'.
const rippleAlphabet = "rpshnaf39wBUDNEGHJKLM4PQRST7VWXYZ2bcdeCg65jkm8oFqi1tuvAxyz"

var (
	errBase58Char     = errors.New("crypto: invalid base58 character")
	errBase58Checksum = errors.New("crypto: base58 checksum mismatch")
	errBase58Payload  = errors.New("crypto: base58 payload too short")
)

var rippleAlphabetIndex = func() [128]int8 {
	var idx [128]int8
	for i := range idx {
		idx[i] = -1
	}
	for i := 0; i < len(rippleAlphabet); i++ {
		idx[rippleAlphabet[i]] = int8(i)
	}
	return idx
}()

// encodeBase58Check encodes version||payload with a 4-byte double-SHA256
// checksum in the ripple alphabet.
func encodeBase58Check(version byte, payload []byte) string {
	data := append([]byte{version}, payload...)
	data = append(data, checksum(data)...)

	n := new(big.Int).SetBytes(data)
	radix := big.NewInt(58)
	mod := new(big.Int)

	var out []byte
	for n.Sign() > 0 {
		n.DivMod(n, radix, mod)
		out = append(out, rippleAlphabet[mod.Int64()])
	}
	// Leading zero bytes map to the zero digit.
	for _, b := range data {
		if b != 0 {
			break
		}
		out = append(out, rippleAlphabet[0])
	}
	// Reverse.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return string(out)
}

// decodeBase58Check decodes a ripple base58check string, verifies the
// checksum and the expected version byte, and returns the payload.
func decodeBase58Check(s string, version byte) ([]byte, error) {
	n := new(big.Int)
	radix := big.NewInt(58)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 128 || rippleAlphabetIndex[c] < 0 {
			return nil, errBase58Char
		}
		n.Mul(n, radix)
		n.Add(n, big.NewInt(int64(rippleAlphabetIndex[c])))
	}
	data := n.Bytes()
	// Restore leading zero bytes.
	for i := 0; i < len(s) && s[i] == rippleAlphabet[0]; i++ {
		data = append([]byte{0}, data...)
	}

	if len(data) < 5 {
		return nil, errBase58Payload
	}
	body, sum := data[:len(data)-4], data[len(data)-4:]
	if !bytes.Equal(checksum(body), sum) {
		return nil, errBase58Checksum
	}
	if body[0] != version {
		return nil, errors.New("crypto: unexpected base58 version byte")
	}
	return body[1:], nil
}

func checksum(data []byte) []byte {
	h1 := sha256.Sum256(data)
	h2 := sha256.Sum256(h1[:])
	return h2[:4]
}
