// Package chainio provides the concrete adapters that satisfy the core's
// ports.Signer, ports.TokenDirectory, and ports.ExchangeAPI interfaces
// against a real Solana-style RPC endpoint and DEX aggregator. Loading and
// parsing key files, .env values, and wallet formats stays out of this
// package's scope; it only ever accepts key material already decoded by the
// caller (cmd/triarb's process entry).
package chainio

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
)

// Ed25519Signer signs serialized transactions with an in-memory Ed25519
// keypair, the signature scheme Solana-style aggregators expect.
type Ed25519Signer struct {
	priv ed25519.PrivateKey
}

// NewEd25519SignerFromHex builds a signer from a hex-encoded 64-byte
// Ed25519 private key (seed+public key), the wire shape most wallet export
// tools emit.
func NewEd25519SignerFromHex(hexKey string) (*Ed25519Signer, error) {
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decode signer key: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("signer key must be %d bytes, got %d", ed25519.PrivateKeySize, len(raw))
	}
	return &Ed25519Signer{priv: ed25519.PrivateKey(raw)}, nil
}

// PublicKey returns the wallet's public key bytes.
func (s *Ed25519Signer) PublicKey() []byte {
	pub, _ := s.priv.Public().(ed25519.PublicKey)
	return []byte(pub)
}

// Sign appends an Ed25519 signature over rawTx, ahead of it, matching the
// signature-then-message layout Solana transactions use.
func (s *Ed25519Signer) Sign(_ context.Context, rawTx []byte) ([]byte, error) {
	sig := ed25519.Sign(s.priv, rawTx)
	signed := make([]byte, 0, len(sig)+len(rawTx))
	signed = append(signed, sig...)
	signed = append(signed, rawTx...)
	return signed, nil
}
