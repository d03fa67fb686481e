// Package chain abstracts the blockchain RPC calls the trader needs.
package chain

import (
	"context"
	"errors"

	solana "github.com/gagliardetto/solana-go"
)

// ErrAccountNotFound is returned when a queried account does not exist.
var ErrAccountNotFound = errors.New("chain: account not found")

// Blockhash is a recent blockhash and the last block height it stays valid for.
type Blockhash struct {
	Hash                 solana.Hash
	LastValidBlockHeight uint64
}

// BroadcastOptions mirror the sendTransaction RPC options.
type BroadcastOptions struct {
	SkipPreflight       bool
	PreflightCommitment string
	MaxRetries          uint
}

// DefaultBroadcastOptions runs preflight at confirmed commitment and lets the
// node retry three times.
func DefaultBroadcastOptions() BroadcastOptions {
	return BroadcastOptions{
		SkipPreflight:       false,
		PreflightCommitment: "confirmed",
		MaxRetries:          3,
	}
}

// Provider is the blockchain surface used by balance checks, the decimal
// normalizer and the swap pipeline.
type Provider interface {
	// Balance returns the native balance of owner in lamports.
	Balance(ctx context.Context, owner string) (uint64, error)
	// TokenDecimals reads the decimals field of a token mint account.
	TokenDecimals(ctx context.Context, mint string) (uint8, error)
	LatestBlockhash(ctx context.Context) (Blockhash, error)
	// Broadcast submits a signed transaction and returns its signature.
	Broadcast(ctx context.Context, tx *solana.Transaction, opts BroadcastOptions) (string, error)
}
