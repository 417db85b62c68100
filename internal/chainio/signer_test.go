package chainio

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEd25519SignerSignsAndVerifies(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	signer, err := NewEd25519SignerFromHex(hex.EncodeToString(priv))
	require.NoError(t, err)
	assert.Equal(t, []byte(pub), signer.PublicKey())

	rawTx := []byte("unsigned-tx-bytes")
	signed, err := signer.Sign(context.Background(), rawTx)
	require.NoError(t, err)
	require.Len(t, signed, ed25519.SignatureSize+len(rawTx))

	sig := signed[:ed25519.SignatureSize]
	assert.True(t, ed25519.Verify(pub, rawTx, sig))
	assert.Equal(t, rawTx, signed[ed25519.SignatureSize:])
}

func TestNewEd25519SignerFromHexRejectsBadInput(t *testing.T) {
	_, err := NewEd25519SignerFromHex("not-hex")
	assert.Error(t, err)

	_, err = NewEd25519SignerFromHex("deadbeef")
	assert.Error(t, err)
}
