package trade

import (
	"context"
	"math/big"
)

// GasOptimizer folds an estimated approval gas cost (denominated in output
// token base units) into the quoted output, producing the approval-optimized
// trade variant. Returns absent when no estimate is available or the trade
// would not survive the adjustment, in which case callers fall back to the
// plain quote.
type GasOptimizer struct {
	// EstimateApprovalCost returns the approval cost in output-token base
	// units, or absent when the estimate cannot be made.
	EstimateApprovalCost func(ctx context.Context, t *Trade) (*big.Int, bool)
}

func (o *GasOptimizer) Optimize(ctx context.Context, t *Trade, slippageBps int64) (*Trade, bool) {
	if o == nil || o.EstimateApprovalCost == nil || t == nil || !t.OutputAmount.Valid() {
		return nil, false
	}
	cost, ok := o.EstimateApprovalCost(ctx, t)
	if !ok || cost == nil || cost.Sign() < 0 {
		return nil, false
	}
	adjusted := new(big.Int).Sub(t.OutputAmount.Quantity, cost)
	if adjusted.Sign() <= 0 {
		return nil, false
	}
	optimized := *t
	optimized.OutputAmount = CurrencyAmount{Currency: t.OutputAmount.Currency, Quantity: adjusted}
	return &optimized, true
}
