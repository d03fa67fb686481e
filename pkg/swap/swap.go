// Package swap turns a quote into a signed, broadcast transaction.
package swap

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	bin "github.com/gagliardetto/binary"
	solana "github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/logx"

	"stoic-trader/pkg/chain"
	"stoic-trader/pkg/jupiter"
)

// ErrSignerMismatch means the signing key is not the wallet the swap was
// built for. Callers treat it as fatal.
var ErrSignerMismatch = errors.New("swap: signer does not match wallet public key")

// DefaultExplorerURL is the transaction link template.
const DefaultExplorerURL = "https://solscan.io/tx/%s?cluster=mainnet"

// Quoter is the quote service surface used by the pipeline.
type Quoter interface {
	Quote(ctx context.Context, req jupiter.QuoteRequest) (*jupiter.Quote, error)
	SwapTransaction(ctx context.Context, quote *jupiter.Quote, opts jupiter.SwapOptions) (*jupiter.SwapResponse, error)
}

// Signer exposes the wallet address and, on demand, its signing key.
type Signer interface {
	PublicKey() solana.PublicKey
	Keypair() (solana.PrivateKey, error)
}

// Options tune transaction building and broadcast.
type Options struct {
	SlippageBps                   int
	ComputeUnitPriceMicroLamports int64
	Broadcast                     chain.BroadcastOptions
	ExplorerURL                   string
}

// DefaultOptions match the aggregator settings the bot trades with.
func DefaultOptions() Options {
	return Options{
		SlippageBps:                   50,
		ComputeUnitPriceMicroLamports: 2_000_000,
		Broadcast:                     chain.DefaultBroadcastOptions(),
		ExplorerURL:                   DefaultExplorerURL,
	}
}

// Result describes a broadcast swap.
type Result struct {
	Signature   string
	ExplorerURL string
	Quote       *jupiter.Quote
	Blockhash   chain.Blockhash
}

// Service runs the quote, build, sign and broadcast steps.
type Service struct {
	quotes Quoter
	chain  chain.Provider
	signer Signer
	opts   Options
}

// NewService wires a Service.
func NewService(quotes Quoter, provider chain.Provider, signer Signer, opts Options) *Service {
	if opts.ExplorerURL == "" {
		opts.ExplorerURL = DefaultExplorerURL
	}
	return &Service{quotes: quotes, chain: provider, signer: signer, opts: opts}
}

// Quote asks for a route swapping baseAmount base units of input into output.
func (s *Service) Quote(ctx context.Context, input, output string, baseAmount decimal.Decimal) (*jupiter.Quote, error) {
	return s.quotes.Quote(ctx, jupiter.QuoteRequest{
		InputMint:   input,
		OutputMint:  output,
		Amount:      baseAmount,
		SlippageBps: s.opts.SlippageBps,
	})
}

// Execute builds the transaction for quote, signs it with the wallet key and
// broadcasts it.
func (s *Service) Execute(ctx context.Context, quote *jupiter.Quote) (*Result, error) {
	owner := s.signer.PublicKey()
	resp, err := s.quotes.SwapTransaction(ctx, quote, jupiter.SwapOptions{
		UserPublicKey:                 owner.String(),
		WrapAndUnwrapSOL:              true,
		ComputeUnitPriceMicroLamports: s.opts.ComputeUnitPriceMicroLamports,
		DynamicComputeUnitLimit:       true,
	})
	if err != nil {
		return nil, err
	}

	tx, err := Decode(resp.SwapTransaction)
	if err != nil {
		return nil, err
	}
	if err := s.sign(tx, owner); err != nil {
		return nil, err
	}

	hash, err := s.chain.LatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("swap: latest blockhash: %w", err)
	}
	sig, err := s.chain.Broadcast(ctx, tx, s.opts.Broadcast)
	if err != nil {
		return nil, fmt.Errorf("swap: broadcast: %w", err)
	}
	logx.WithContext(ctx).Infof("swap broadcast %s -> %s sig=%s", quote.InputMint, quote.OutputMint, sig)
	return &Result{
		Signature:   sig,
		ExplorerURL: ExplorerLink(s.opts.ExplorerURL, sig),
		Quote:       quote,
		Blockhash:   hash,
	}, nil
}

func (s *Service) sign(tx *solana.Transaction, owner solana.PublicKey) error {
	key, err := s.signer.Keypair()
	if err != nil {
		return fmt.Errorf("swap: load keypair: %w", err)
	}
	if !key.PublicKey().Equals(owner) {
		return ErrSignerMismatch
	}
	if len(tx.Message.AccountKeys) == 0 || !tx.Message.AccountKeys[0].Equals(owner) {
		return fmt.Errorf("%w: fee payer is not the wallet", ErrSignerMismatch)
	}
	_, err = tx.Sign(func(pk solana.PublicKey) *solana.PrivateKey {
		if pk.Equals(owner) {
			return &key
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("swap: sign: %w", err)
	}
	return nil
}

// Decode parses a base64 serialized transaction.
func Decode(encoded string) (*solana.Transaction, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("swap: decode base64: %w", err)
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, fmt.Errorf("swap: decode transaction: %w", err)
	}
	return tx, nil
}

// ExplorerLink renders the explorer URL for sig.
func ExplorerLink(template, sig string) string {
	if template == "" {
		template = DefaultExplorerURL
	}
	return fmt.Sprintf(template, sig)
}
