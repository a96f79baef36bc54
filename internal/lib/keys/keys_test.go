package keys

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnvironment(t *testing.T) {
	addr1, phrase1, err := NewAccount()
	require.NoError(t, err)
	addr2, phrase2, err := NewAccount()
	require.NoError(t, err)

	t.Setenv(MnemonicEnvPrefix+"_OWNER", phrase1)
	t.Setenv(MnemonicEnvPrefix+"_INVESTOR", phrase2)

	ks := NewLocalKeyStore(slog.Default())
	num, err := ks.LoadFromEnvironment()
	require.NoError(t, err)
	assert.Equal(t, 2, num)
	assert.True(t, ks.HasAccount(addr1.String()))
	assert.True(t, ks.HasAccount(addr2.String()))
	assert.Len(t, ks.Accounts(), 2)
}

func TestLoadFromEnvironmentBadMnemonic(t *testing.T) {
	t.Setenv(MnemonicEnvPrefix+"_BAD", "not a real mnemonic")
	_, err := NewLocalKeyStore(slog.Default()).LoadFromEnvironment()
	assert.Error(t, err)
}

func TestFindFirstSigner(t *testing.T) {
	addr, phrase, err := NewAccount()
	require.NoError(t, err)
	other, _, err := NewAccount()
	require.NoError(t, err)

	ks := NewLocalKeyStore(slog.Default())
	require.NoError(t, ks.AddMnemonic(phrase))

	signer, err := ks.FindFirstSigner([]string{other.String(), addr.String()})
	require.NoError(t, err)
	assert.Equal(t, addr.String(), signer)

	_, err = ks.FindFirstSigner([]string{other.String()})
	assert.ErrorIs(t, err, ErrNoSigner)
}

func TestSignAndVerify(t *testing.T) {
	addr, phrase, err := NewAccount()
	require.NoError(t, err)
	ks := NewLocalKeyStore(slog.Default())
	require.NoError(t, ks.AddMnemonic(phrase))

	data := []byte("issuance #1")
	sig, err := ks.SignBytes(addr.String(), data)
	require.NoError(t, err)
	assert.True(t, VerifySignature(addr.String(), data, sig))
	assert.False(t, VerifySignature(addr.String(), []byte("issuance #2"), sig))

	_, err = ks.SignBytes("nope", data)
	assert.Error(t, err)
}
