package advisor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot is what the advisor decides from.
type Snapshot struct {
	BalanceSOL decimal.Decimal
	// Candidates maps lowercase symbols to token addresses.
	Candidates map[string]string
}

// Recommendation is one proposed buy exactly as the model returned it.
// Fields are validated by the executor, not here.
type Recommendation struct {
	Ticker           string `json:"ticker"`
	InputTokenCA     string `json:"inputTokenCA"`
	OutputTokenCA    string `json:"outputTokenCA"`
	AmountToBuy      Amount `json:"amountToBuy"`
	AmountToBuyInSol Amount `json:"amountToBuyInSol"`
}

// Advice is a full advisor round trip, kept for the cycle journal.
type Advice struct {
	Recommendations []Recommendation
	Prompt          string
	PromptDigest    string
	Response        string
	Model           string
	Timestamp       time.Time
}

// Amount is a numeric field that models emit either as a JSON string or a
// JSON number.
type Amount string

// UnmarshalJSON accepts "1.5", 1.5 and null.
func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*a = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = Amount(strings.TrimSpace(s))
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("amount: %w", err)
		}
		*a = Amount(n.String())
	}
	return nil
}

// Decimal parses the amount.
func (a Amount) Decimal() (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimSpace(string(a)))
}

// IsZero reports whether the field was absent or empty.
func (a Amount) IsZero() bool {
	return strings.TrimSpace(string(a)) == ""
}
