package sim

import (
	"context"
	"strings"
	"testing"

	solana "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stoic-trader/pkg/amount"
	"stoic-trader/pkg/chain"
)

func transferTx(t *testing.T, payer *solana.Wallet) *solana.Transaction {
	t.Helper()
	tx, err := solana.NewTransaction(
		[]solana.Instruction{system.NewTransferInstruction(1, payer.PublicKey(), payer.PublicKey()).Build()},
		solana.Hash{},
		solana.TransactionPayer(payer.PublicKey()),
	)
	require.NoError(t, err)
	return tx
}

func TestBalances(t *testing.T) {
	p := New()
	bal, err := p.Balance(context.Background(), "anyone")
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000_000), bal)

	p.SetBalance("wallet", 42)
	bal, _ = p.Balance(context.Background(), "wallet")
	assert.Equal(t, uint64(42), bal)
}

func TestTokenDecimals(t *testing.T) {
	p := New()
	p.SetDecimals("MintA", 9)

	dec, err := p.TokenDecimals(context.Background(), "MintA")
	require.NoError(t, err)
	assert.Equal(t, uint8(9), dec)

	dec, _ = p.TokenDecimals(context.Background(), "Other")
	assert.Equal(t, uint8(defaultTokenDecimals), dec)

	dec, _ = p.TokenDecimals(context.Background(), amount.SOLMint)
	assert.Equal(t, uint8(amount.SOLDecimals), dec)

	_, err = p.TokenDecimals(context.Background(), " ")
	require.ErrorIs(t, err, chain.ErrAccountNotFound)
}

func TestLatestBlockhashAdvances(t *testing.T) {
	p := New()
	a, err := p.LatestBlockhash(context.Background())
	require.NoError(t, err)
	b, err := p.LatestBlockhash(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, a.Hash, b.Hash)
	assert.Greater(t, b.LastValidBlockHeight, a.LastValidBlockHeight)
}

func TestBroadcastRequiresSignature(t *testing.T) {
	p := New()
	payer := solana.NewWallet()
	tx := transferTx(t, payer)

	_, err := p.Broadcast(context.Background(), tx, chain.DefaultBroadcastOptions())
	require.ErrorContains(t, err, "missing signatures")

	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(payer.PublicKey()) {
			return &payer.PrivateKey
		}
		return nil
	})
	require.NoError(t, err)

	sig, err := p.Broadcast(context.Background(), tx, chain.DefaultBroadcastOptions())
	require.NoError(t, err)
	assert.Equal(t, tx.Signatures[0].String(), sig)
	assert.Equal(t, []string{sig}, p.Sent())
}

func TestRegisteredBuilder(t *testing.T) {
	cfg, err := chain.LoadConfigFromReader(strings.NewReader(`
default: paper
providers:
  paper:
    type: sim
    sol_balance: 2.5
    token_decimals:
      MintA: 8
`))
	require.NoError(t, err)
	provider, err := cfg.BuildDefault()
	require.NoError(t, err)

	bal, err := provider.Balance(context.Background(), "wallet")
	require.NoError(t, err)
	assert.Equal(t, uint64(2_500_000_000), bal)
	dec, _ := provider.TokenDecimals(context.Background(), "MintA")
	assert.Equal(t, uint8(8), dec)
}

func signedTransfer(t *testing.T, payer *solana.Wallet, lamports uint64) *solana.Transaction {
	t.Helper()
	tx, err := solana.NewTransaction(
		[]solana.Instruction{system.NewTransferInstruction(lamports, payer.PublicKey(), solana.NewWallet().PublicKey()).Build()},
		solana.Hash{},
		solana.TransactionPayer(payer.PublicKey()),
	)
	require.NoError(t, err)
	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(payer.PublicKey()) {
			return &payer.PrivateKey
		}
		return nil
	})
	require.NoError(t, err)
	return tx
}

func TestBroadcastDebitsPayerTransfers(t *testing.T) {
	p := New()
	payer := solana.NewWallet()
	owner := payer.PublicKey().String()

	_, err := p.Broadcast(context.Background(), signedTransfer(t, payer, 250_000_000), chain.DefaultBroadcastOptions())
	require.NoError(t, err)
	bal, _ := p.Balance(context.Background(), owner)
	assert.Equal(t, uint64(750_000_000), bal)

	other, _ := p.Balance(context.Background(), "someone-else")
	assert.Equal(t, uint64(1_000_000_000), other, "default balance is untouched")

	_, err = p.Broadcast(context.Background(), signedTransfer(t, payer, 800_000_000), chain.DefaultBroadcastOptions())
	require.ErrorContains(t, err, "insufficient lamports")
	bal, _ = p.Balance(context.Background(), owner)
	assert.Equal(t, uint64(750_000_000), bal)
	assert.Len(t, p.Sent(), 1)
}
