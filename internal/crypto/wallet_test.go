package crypto

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	secpecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The well-known test-net genesis keypair.
const (
	genesisSeed    = "snoPBrXtMeMyMHUVTgbuqAfg1SUTb"
	genesisAddress = "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh"
)

func TestWalletFromSeedKnownVector(t *testing.T) {
	w, err := WalletFromSeed(genesisSeed)
	require.NoError(t, err)
	assert.Equal(t, genesisAddress, w.Address())
	assert.Len(t, w.PublicKey(), 33)
}

func TestWalletFromSeedDeterministic(t *testing.T) {
	a, err := WalletFromSeed(genesisSeed)
	require.NoError(t, err)
	b, err := WalletFromSeed(genesisSeed)
	require.NoError(t, err)
	assert.Equal(t, a.Address(), b.Address())
	assert.Equal(t, a.PublicKey(), b.PublicKey())
}

func TestWalletFromSeedRejectsGarbage(t *testing.T) {
	for _, seed := range []string{"", "notaseed", "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh"} {
		_, err := WalletFromSeed(seed)
		assert.Error(t, err, "seed %q", seed)
	}
}

func TestSignProducesVerifiableSignature(t *testing.T) {
	w, err := WalletFromSeed(genesisSeed)
	require.NoError(t, err)

	signingData := append([]byte("STX\x00"), []byte("payload under test")...)
	sig := w.Sign(signingData)

	parsed, err := secpecdsa.ParseDERSignature(sig)
	require.NoError(t, err)

	pub, err := secp256k1.ParsePubKey(w.PublicKey())
	require.NoError(t, err)

	assert.True(t, parsed.Verify(Sha512Half(signingData), pub))
}

func TestAccountIDRoundTrip(t *testing.T) {
	id, err := DecodeAccountID(genesisAddress)
	require.NoError(t, err)
	require.Len(t, id, 20)
	assert.Equal(t, genesisAddress, EncodeAccountID(id))
}

func TestDecodeAccountIDRejectsSeed(t *testing.T) {
	_, err := DecodeAccountID(genesisSeed)
	assert.Error(t, err)
}

func TestEncryptedSeedRoundTrip(t *testing.T) {
	blob, err := EncryptSeed(genesisSeed, "hunter2")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	seed, err := LoadSeed(SeedConfig{EncryptedSeedPath: path, SeedPassword: "hunter2"})
	require.NoError(t, err)
	assert.Equal(t, genesisSeed, seed)
}

func TestDecryptSeedWrongPassword(t *testing.T) {
	blob, err := EncryptSeed(genesisSeed, "correct")
	require.NoError(t, err)

	_, err = DecryptSeed(blob, "incorrect")
	assert.Error(t, err)
}

func TestLoadSeedPrefersRawSeed(t *testing.T) {
	seed, err := LoadSeed(SeedConfig{RawSeed: "  " + genesisSeed + "  "})
	require.NoError(t, err)
	assert.Equal(t, genesisSeed, seed)
}

func TestLoadSeedNoSource(t *testing.T) {
	_, err := LoadSeed(SeedConfig{})
	assert.Error(t, err)
}

func TestEncryptSeedRejectsInvalidSeed(t *testing.T) {
	_, err := EncryptSeed("not-a-seed", "pw")
	assert.Error(t, err)
}
