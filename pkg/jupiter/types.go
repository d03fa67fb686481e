package jupiter

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// QuoteRequest asks for the best route to swap Amount base units of InputMint.
type QuoteRequest struct {
	InputMint   string
	OutputMint  string
	Amount      decimal.Decimal
	SlippageBps int
}

// Quote is a priced, time-limited route. Raw holds the untouched response
// body, which must be echoed back verbatim when requesting the swap.
type Quote struct {
	InputMint            string          `json:"inputMint"`
	InAmount             string          `json:"inAmount"`
	OutputMint           string          `json:"outputMint"`
	OutAmount            string          `json:"outAmount"`
	OtherAmountThreshold string          `json:"otherAmountThreshold"`
	SwapMode             string          `json:"swapMode"`
	SlippageBps          int             `json:"slippageBps"`
	PriceImpactPct       string          `json:"priceImpactPct"`
	ContextSlot          uint64          `json:"contextSlot"`
	Raw                  json.RawMessage `json:"-"`
}

// OutAmountBase returns the quoted output in base units.
func (q *Quote) OutAmountBase() decimal.Decimal {
	if q == nil {
		return decimal.Zero
	}
	v, err := decimal.NewFromString(q.OutAmount)
	if err != nil {
		return decimal.Zero
	}
	return v
}

// quoteEnvelope covers the current flat response, the legacy
// {"data":[route]} shape and the error body.
type quoteEnvelope struct {
	Quote
	Data      []Quote `json:"data"`
	Error     string  `json:"error"`
	ErrorCode string  `json:"errorCode"`
}

// SwapOptions are the transaction building knobs sent with /swap.
type SwapOptions struct {
	UserPublicKey                 string
	WrapAndUnwrapSOL              bool
	ComputeUnitPriceMicroLamports int64
	DynamicComputeUnitLimit       bool
}

type swapRequest struct {
	QuoteResponse                 json.RawMessage `json:"quoteResponse"`
	UserPublicKey                 string          `json:"userPublicKey"`
	WrapAndUnwrapSol              bool            `json:"wrapAndUnwrapSol"`
	ComputeUnitPriceMicroLamports int64           `json:"computeUnitPriceMicroLamports,omitempty"`
	DynamicComputeUnitLimit       bool            `json:"dynamicComputeUnitLimit"`
}

// SwapResponse carries the unsigned, base64 encoded transaction.
type SwapResponse struct {
	SwapTransaction           string `json:"swapTransaction"`
	LastValidBlockHeight      uint64 `json:"lastValidBlockHeight"`
	PrioritizationFeeLamports uint64 `json:"prioritizationFeeLamports"`
	Error                     string `json:"error"`
}
