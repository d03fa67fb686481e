// Package sim is a paper-trading chain.Provider. It answers reads from memory
// and accepts any fully signed transaction without sending it anywhere. System
// transfers funded by the fee payer are debited from its simulated balance.
package sim

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"sync"

	solana "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/shopspring/decimal"

	"stoic-trader/pkg/amount"
	"stoic-trader/pkg/chain"
)

const (
	defaultSOLBalance    = 1.0
	defaultTokenDecimals = 6
	blockValidity        = 150
)

func init() {
	chain.RegisterProvider("sim", func(name string, cfg *chain.ProviderConfig) (chain.Provider, error) {
		p := New()
		if cfg == nil {
			return p, nil
		}
		if cfg.SOLBalance > 0 {
			p.SetBalance("", uint64(amount.Lamports(decimal.NewFromFloat(cfg.SOLBalance)).IntPart()))
		}
		for mint, dec := range cfg.TokenDecimals {
			p.SetDecimals(mint, dec)
		}
		return p, nil
	})
}

// Provider keeps balances, mint decimals and broadcast transactions in memory.
type Provider struct {
	mu sync.Mutex

	// defaultBalance answers Balance for owners without an explicit entry.
	defaultBalance uint64
	balances       map[string]uint64
	decimals       map[string]uint8
	height         uint64
	sent           []string
}

// New constructs a simulator holding 1 SOL for every owner.
func New() *Provider {
	return &Provider{
		defaultBalance: uint64(amount.Lamports(decimal.NewFromFloat(defaultSOLBalance)).IntPart()),
		balances:       make(map[string]uint64),
		decimals:       make(map[string]uint8),
		height:         1,
	}
}

// SetBalance sets the lamport balance of owner. An empty owner changes the default.
func (p *Provider) SetBalance(owner string, lamports uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	owner = strings.TrimSpace(owner)
	if owner == "" {
		p.defaultBalance = lamports
		return
	}
	p.balances[owner] = lamports
}

// SetDecimals registers the decimals of a mint.
func (p *Provider) SetDecimals(mint string, decimals uint8) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.decimals[strings.TrimSpace(mint)] = decimals
}

// Balance implements chain.Provider.
func (p *Provider) Balance(_ context.Context, owner string) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if bal, ok := p.balances[strings.TrimSpace(owner)]; ok {
		return bal, nil
	}
	return p.defaultBalance, nil
}

// TokenDecimals implements chain.Provider. Unknown mints report 6 decimals.
func (p *Provider) TokenDecimals(_ context.Context, mint string) (uint8, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	mint = strings.TrimSpace(mint)
	if mint == "" {
		return 0, fmt.Errorf("%w: empty mint", chain.ErrAccountNotFound)
	}
	if amount.IsSOL(mint) {
		return amount.SOLDecimals, nil
	}
	if dec, ok := p.decimals[mint]; ok {
		return dec, nil
	}
	return defaultTokenDecimals, nil
}

// LatestBlockhash returns a fresh random hash and advances the simulated height.
func (p *Provider) LatestBlockhash(_ context.Context) (chain.Blockhash, error) {
	var raw [32]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return chain.Blockhash{}, fmt.Errorf("sim: blockhash: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.height++
	return chain.Blockhash{Hash: solana.Hash(raw), LastValidBlockHeight: p.height + blockValidity}, nil
}

// Broadcast records tx, debits the payer's SOL transfers and returns the first
// signature. Unsigned transactions are rejected the way a node would reject them.
func (p *Provider) Broadcast(_ context.Context, tx *solana.Transaction, _ chain.BroadcastOptions) (string, error) {
	if tx == nil {
		return "", fmt.Errorf("sim: nil transaction")
	}
	required := int(tx.Message.Header.NumRequiredSignatures)
	if required == 0 || len(tx.Signatures) < required {
		return "", fmt.Errorf("sim: transaction is missing signatures")
	}
	for _, sig := range tx.Signatures[:required] {
		if sig == (solana.Signature{}) {
			return "", fmt.Errorf("sim: transaction is missing signatures")
		}
	}
	sig := tx.Signatures[0].String()
	payer, spent := payerTransfers(tx)

	p.mu.Lock()
	defer p.mu.Unlock()
	if spent > 0 {
		owner := payer.String()
		bal, ok := p.balances[owner]
		if !ok {
			bal = p.defaultBalance
		}
		if spent > bal {
			return "", fmt.Errorf("sim: insufficient lamports: have %d, transfer %d", bal, spent)
		}
		p.balances[owner] = bal - spent
	}
	p.sent = append(p.sent, sig)
	return sig, nil
}

// payerTransfers sums the System Program transfers funded by the fee payer.
// Wrapping SOL for a swap input is such a transfer. Instructions that reference
// lookup-table accounts are ignored.
func payerTransfers(tx *solana.Transaction) (solana.PublicKey, uint64) {
	keys := tx.Message.AccountKeys
	if len(keys) == 0 {
		return solana.PublicKey{}, 0
	}
	payer := keys[0]
	var total uint64
	for _, ci := range tx.Message.Instructions {
		if int(ci.ProgramIDIndex) >= len(keys) || !keys[ci.ProgramIDIndex].Equals(solana.SystemProgramID) {
			continue
		}
		metas, ok := staticMetas(keys, ci.Accounts)
		if !ok || len(metas) < 2 {
			continue
		}
		inst, err := system.DecodeInstruction(metas, ci.Data)
		if err != nil {
			continue
		}
		transfer, ok := inst.Impl.(*system.Transfer)
		if !ok || transfer.Lamports == nil || !transfer.GetFundingAccount().PublicKey.Equals(payer) ||
			transfer.GetRecipientAccount().PublicKey.Equals(payer) {
			continue
		}
		total += *transfer.Lamports
	}
	return payer, total
}

func staticMetas(keys solana.PublicKeySlice, idx []uint16) ([]*solana.AccountMeta, bool) {
	out := make([]*solana.AccountMeta, 0, len(idx))
	for _, i := range idx {
		if int(i) >= len(keys) {
			return nil, false
		}
		out = append(out, solana.Meta(keys[i]))
	}
	return out, true
}

// Sent returns the signatures broadcast so far.
func (p *Provider) Sent() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.sent...)
}
