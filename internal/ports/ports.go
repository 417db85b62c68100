// Package ports declares the external collaborators the core consumes but
// does not implement: wallet signing, the token universe, and the
// aggregator's exchange-quote-to-transaction step. Process entry, .env
// parsing, and key loading build the concrete implementations; the core only
// ever sees these interfaces.
package ports

import (
	"context"
	"math/big"

	"github.com/ajitpratap0/triarb/internal/domain"
)

// Signer exposes a wallet's public key and signs serialized transactions.
// The core never persists private key material.
type Signer interface {
	PublicKey() []byte
	Sign(ctx context.Context, rawTx []byte) (signedTx []byte, err error)
}

// TokenDirectory supplies the anchor asset, the intermediate ring, and
// on-chain balances.
type TokenDirectory interface {
	Anchor() domain.Asset
	Intermediates() []domain.Asset // non-empty, ordered
	Balance(ctx context.Context, asset domain.Asset) (*big.Int, error)
}

// ExchangeAPI turns a quote's route descriptor into an unsigned transaction
// ready for the Signer.
type ExchangeAPI interface {
	BuildTransaction(ctx context.Context, routeDescriptor []byte) (unsignedTx []byte, err error)
}
