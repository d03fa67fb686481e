// Package wallet separates read-only access to the trading wallet (its public
// key) from signing access (its keypair).
package wallet

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	solana "github.com/gagliardetto/solana-go"
)

// ErrKeyMismatch means the signing key does not belong to the configured wallet.
var ErrKeyMismatch = errors.New("wallet: private key does not match wallet public key")

// ErrNoSigningKey means only read-only access is configured.
var ErrNoSigningKey = errors.New("wallet: no signing key configured")

// Config resolves the wallet. The public key may be omitted when a signing
// key source is present.
type Config struct {
	PublicKey   string `json:",optional,env=WALLET_PUBLIC_KEY"`
	PrivateKey  string `json:",optional,env=WALLET_PRIVATE_KEY"`
	KeyFile     string `json:",optional,env=WALLET_KEY_FILE"`
	KeyPassword string `json:",optional,env=WALLET_KEY_PASSWORD"`
}

// Provider hands out the public key freely and the keypair on demand.
type Provider struct {
	cfg    Config
	public solana.PublicKey

	once    sync.Once
	keypair solana.PrivateKey
	keyErr  error
}

// New validates cfg and resolves the public key without touching secret material
// unless the public key has to be derived from it.
func New(cfg Config) (*Provider, error) {
	cfg.PublicKey = strings.TrimSpace(cfg.PublicKey)
	cfg.PrivateKey = strings.TrimSpace(cfg.PrivateKey)
	cfg.KeyFile = strings.TrimSpace(cfg.KeyFile)

	p := &Provider{cfg: cfg}
	switch {
	case cfg.PublicKey != "":
		pk, err := solana.PublicKeyFromBase58(cfg.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("wallet: invalid public key: %w", err)
		}
		p.public = pk
	case cfg.KeyFile != "":
		blob, err := os.ReadFile(cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("wallet: reading key file: %w", err)
		}
		stored, err := parseKeyFile(blob)
		if err != nil {
			return nil, err
		}
		pk, err := solana.PublicKeyFromBase58(stored.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("wallet: key file has invalid public key: %w", err)
		}
		p.public = pk
	case cfg.PrivateKey != "":
		key, err := p.Keypair()
		if err != nil {
			return nil, err
		}
		p.public = key.PublicKey()
	default:
		return nil, errors.New("wallet: public key is required (set WALLET_PUBLIC_KEY)")
	}
	return p, nil
}

// PublicKey returns the wallet address.
func (p *Provider) PublicKey() solana.PublicKey {
	return p.public
}

// Address returns the base58 wallet address.
func (p *Provider) Address() string {
	return p.public.String()
}

// CanSign reports whether a signing key source is configured.
func (p *Provider) CanSign() bool {
	return p.cfg.PrivateKey != "" || p.cfg.KeyFile != ""
}

// Keypair loads the signing key. The raw key wins over the key file.
// The result is cached after the first call.
func (p *Provider) Keypair() (solana.PrivateKey, error) {
	p.once.Do(func() {
		p.keypair, p.keyErr = p.loadKeypair()
	})
	return p.keypair, p.keyErr
}

func (p *Provider) loadKeypair() (solana.PrivateKey, error) {
	switch {
	case p.cfg.PrivateKey != "":
		key, err := solana.PrivateKeyFromBase58(p.cfg.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("wallet: invalid private key: %w", err)
		}
		return key, nil
	case p.cfg.KeyFile != "":
		blob, err := os.ReadFile(p.cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("wallet: reading key file: %w", err)
		}
		return DecryptKey(blob, p.cfg.KeyPassword)
	default:
		return nil, ErrNoSigningKey
	}
}
