// Package solana implements chain.Provider on top of a Solana JSON-RPC node.
package solana

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sol "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"stoic-trader/pkg/chain"
	"stoic-trader/pkg/ratelimit"
)

const defaultRPCURL = "https://api.mainnet-beta.solana.com"

func init() {
	chain.RegisterProvider("solana", func(name string, cfg *chain.ProviderConfig) (chain.Provider, error) {
		if cfg == nil {
			return nil, fmt.Errorf("solana: provider %s config is nil", name)
		}
		opts := []Option{WithRateLimit(ratelimit.New(cfg.RateLimit))}
		if cfg.Commitment != "" {
			opts = append(opts, WithCommitment(cfg.Commitment))
		}
		return New(cfg.RPCURL, opts...), nil
	})
}

// Provider is a chain.Provider backed by solana-go's RPC client.
type Provider struct {
	rpc        *rpc.Client
	commitment rpc.CommitmentType
	policy     *ratelimit.Policy
}

// Option configures a Provider.
type Option func(*Provider)

// WithCommitment sets the commitment used for reads.
func WithCommitment(level string) Option {
	return func(p *Provider) {
		p.commitment = rpc.CommitmentType(strings.ToLower(strings.TrimSpace(level)))
	}
}

// WithRateLimit paces every RPC call through policy.
func WithRateLimit(policy *ratelimit.Policy) Option {
	return func(p *Provider) {
		p.policy = policy
	}
}

// New connects to the RPC endpoint. An empty endpoint selects mainnet-beta.
func New(endpoint string, opts ...Option) *Provider {
	if strings.TrimSpace(endpoint) == "" {
		endpoint = defaultRPCURL
	}
	p := &Provider{
		rpc:        rpc.New(endpoint),
		commitment: rpc.CommitmentFinalized,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Balance returns the lamport balance of owner.
func (p *Provider) Balance(ctx context.Context, owner string) (uint64, error) {
	pk, err := sol.PublicKeyFromBase58(owner)
	if err != nil {
		return 0, fmt.Errorf("solana: invalid owner %q: %w", owner, err)
	}
	if err := p.policy.Wait(ctx); err != nil {
		return 0, err
	}
	out, err := p.rpc.GetBalance(ctx, pk, p.commitment)
	if err != nil {
		return 0, fmt.Errorf("solana: get balance: %w", err)
	}
	return out.Value, nil
}

type parsedMint struct {
	Parsed struct {
		Type string `json:"type"`
		Info struct {
			Decimals *uint8 `json:"decimals"`
		} `json:"info"`
	} `json:"parsed"`
}

// TokenDecimals reads parsed.info.decimals from the mint account.
func (p *Provider) TokenDecimals(ctx context.Context, mint string) (uint8, error) {
	pk, err := sol.PublicKeyFromBase58(mint)
	if err != nil {
		return 0, fmt.Errorf("solana: invalid mint %q: %w", mint, err)
	}
	if err := p.policy.Wait(ctx); err != nil {
		return 0, err
	}
	out, err := p.rpc.GetAccountInfoWithOpts(ctx, pk, &rpc.GetAccountInfoOpts{
		Encoding:   sol.EncodingJSONParsed,
		Commitment: p.commitment,
	})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return 0, fmt.Errorf("%w: mint %s", chain.ErrAccountNotFound, mint)
		}
		return 0, fmt.Errorf("solana: get account info: %w", err)
	}
	if out == nil || out.Value == nil || out.Value.Data == nil {
		return 0, fmt.Errorf("%w: mint %s", chain.ErrAccountNotFound, mint)
	}
	raw := out.Value.Data.GetRawJSON()
	if len(raw) == 0 {
		return 0, fmt.Errorf("solana: mint %s has no parsed data", mint)
	}
	var parsed parsedMint
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return 0, fmt.Errorf("solana: decode mint %s: %w", mint, err)
	}
	if parsed.Parsed.Info.Decimals == nil {
		return 0, fmt.Errorf("solana: account %s is not a token mint", mint)
	}
	return *parsed.Parsed.Info.Decimals, nil
}

// LatestBlockhash returns the most recent blockhash.
func (p *Provider) LatestBlockhash(ctx context.Context) (chain.Blockhash, error) {
	if err := p.policy.Wait(ctx); err != nil {
		return chain.Blockhash{}, err
	}
	out, err := p.rpc.GetLatestBlockhash(ctx, p.commitment)
	if err != nil {
		return chain.Blockhash{}, fmt.Errorf("solana: get latest blockhash: %w", err)
	}
	if out == nil || out.Value == nil {
		return chain.Blockhash{}, fmt.Errorf("solana: empty blockhash response")
	}
	return chain.Blockhash{
		Hash:                 out.Value.Blockhash,
		LastValidBlockHeight: out.Value.LastValidBlockHeight,
	}, nil
}

// Broadcast submits tx. Retries are left to the node through MaxRetries.
func (p *Provider) Broadcast(ctx context.Context, tx *sol.Transaction, opts chain.BroadcastOptions) (string, error) {
	if tx == nil {
		return "", fmt.Errorf("solana: nil transaction")
	}
	if err := p.policy.Wait(ctx); err != nil {
		return "", err
	}
	maxRetries := opts.MaxRetries
	sig, err := p.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       opts.SkipPreflight,
		PreflightCommitment: rpc.CommitmentType(opts.PreflightCommitment),
		MaxRetries:          &maxRetries,
	})
	if err != nil {
		return "", fmt.Errorf("solana: send transaction: %w", err)
	}
	return sig.String(), nil
}
