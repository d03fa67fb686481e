package executor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"stoic-trader/pkg/advisor"
	"stoic-trader/pkg/amount"
)

// Validation failures. They reject one recommendation and never the batch.
var (
	ErrMissingField        = errors.New("executor: recommendation is missing a field")
	ErrSameMint            = errors.New("executor: input and output token are the same")
	ErrNonPositiveSpend    = errors.New("executor: spend must be positive")
	ErrInsufficientBalance = errors.New("executor: spend exceeds balance minus safety margin")
	ErrRecentlyPurchased   = errors.New("executor: token was bought recently")
	ErrNonPositiveAmount   = errors.New("executor: amount rounds to zero base units")
	ErrOutputIsSOL         = errors.New("executor: output token must not be SOL")
	ErrInputNotSOL         = errors.New("executor: input token must be SOL")
)

// order is a recommendation that passed the static checks.
type order struct {
	Ticker   string
	Input    string
	Output   string
	SpendSOL decimal.Decimal
}

// validate applies the field, mint and affordability checks in order and
// returns the first failure.
func validate(rec advisor.Recommendation, available, margin decimal.Decimal) (order, error) {
	ticker := strings.TrimSpace(rec.Ticker)
	input := strings.TrimSpace(rec.InputTokenCA)
	output := strings.TrimSpace(rec.OutputTokenCA)

	switch {
	case ticker == "":
		return order{}, fmt.Errorf("%w: ticker", ErrMissingField)
	case input == "":
		return order{}, fmt.Errorf("%w: inputTokenCA", ErrMissingField)
	case output == "":
		return order{}, fmt.Errorf("%w: outputTokenCA", ErrMissingField)
	}
	raw := rec.AmountToBuyInSol
	if raw.IsZero() {
		raw = rec.AmountToBuy
	}
	if raw.IsZero() {
		return order{}, fmt.Errorf("%w: amountToBuyInSol", ErrMissingField)
	}

	if input == output {
		return order{}, fmt.Errorf("%w: %s", ErrSameMint, output)
	}
	if amount.IsSOL(output) {
		return order{}, ErrOutputIsSOL
	}
	if !amount.IsSOL(input) {
		return order{}, fmt.Errorf("%w: got %s", ErrInputNotSOL, input)
	}

	spend, err := raw.Decimal()
	if err != nil {
		return order{}, fmt.Errorf("%w: amountToBuyInSol %q is not a number", ErrMissingField, string(raw))
	}
	if !spend.IsPositive() {
		return order{}, fmt.Errorf("%w: got %s", ErrNonPositiveSpend, spend)
	}
	if limit := available.Sub(margin); spend.GreaterThan(limit) {
		return order{}, fmt.Errorf("%w: spend %s, balance %s, margin %s", ErrInsufficientBalance, spend, available, margin)
	}
	return order{Ticker: ticker, Input: input, Output: output, SpendSOL: spend}, nil
}
