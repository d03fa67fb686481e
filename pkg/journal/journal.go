// Package journal writes one JSON audit file per trading cycle. Records are
// never read back by the trader.
package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// CycleRecord captures an end-to-end trading cycle for audit and analysis.
type CycleRecord struct {
	RunID        string    `json:"run_id"`
	CycleNumber  int       `json:"cycle_number"`
	Trigger      string    `json:"trigger"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Wallet       string    `json:"wallet,omitempty"`
	BalanceSOL   string    `json:"balance_sol,omitempty"`
	PortfolioUSD string    `json:"portfolio_usd,omitempty"`
	GatePassed   bool      `json:"gate_passed"`

	Endpoint     string   `json:"endpoint,omitempty"`
	Candidates   []string `json:"candidates,omitempty"`
	Model        string   `json:"model,omitempty"`
	PromptDigest string   `json:"prompt_digest,omitempty"`
	Prompt       string   `json:"prompt,omitempty"`
	Response     string   `json:"response,omitempty"`

	Recommendations any   `json:"recommendations,omitempty"`
	Trades          any   `json:"trades,omitempty"`
	Exits           []any `json:"exits,omitempty"`

	Success      bool           `json:"success"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Extra        map[string]any `json:"extra,omitempty"`
}

// NewRunID returns a fresh cycle identifier.
func NewRunID() string {
	return uuid.NewString()
}

// Writer persists cycle records to a directory as JSON files.
type Writer struct {
	dir   string
	nowFn func() time.Time

	mu  sync.Mutex
	seq int
}

// NewWriter constructs a journal writer, creating dir when needed.
func NewWriter(dir string) (*Writer, error) {
	if dir == "" {
		dir = "journal"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("journal: create dir: %w", err)
	}
	return &Writer{dir: dir, nowFn: time.Now}, nil
}

// Dir returns the output directory.
func (w *Writer) Dir() string { return w.dir }

// WriteCycle writes rec to a timestamped JSON file and returns its path.
// Missing RunID and StartedAt are filled in.
func (w *Writer) WriteCycle(rec *CycleRecord) (string, error) {
	if rec == nil {
		return "", fmt.Errorf("journal: nil record")
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if rec.RunID == "" {
		rec.RunID = NewRunID()
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = w.nowFn()
	}
	w.seq++
	rec.CycleNumber = w.seq

	name := fmt.Sprintf("cycle_%s_%05d_%s.json", rec.StartedAt.UTC().Format("20060102_150405"), w.seq, shortID(rec.RunID))
	path := filepath.Join(w.dir, name)
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("journal: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("journal: write: %w", err)
	}
	return path, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
