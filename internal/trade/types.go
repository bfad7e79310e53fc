package trade

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	clierr "github.com/ggonzalez94/swapflow/internal/errors"
	"github.com/ggonzalez94/swapflow/internal/id"
	"github.com/ggonzalez94/swapflow/internal/model"
)

type Type string

const (
	ExactInput  Type = "exact-input"
	ExactOutput Type = "exact-output"
)

type Currency struct {
	ChainID  int64
	Address  common.Address
	Symbol   string
	Decimals int
}

type CurrencyAmount struct {
	Currency Currency
	Quantity *big.Int
}

func NewCurrencyAmount(c Currency, baseUnits string) (CurrencyAmount, error) {
	q, ok := new(big.Int).SetString(baseUnits, 10)
	if !ok || q.Sign() < 0 {
		return CurrencyAmount{}, clierr.New(clierr.CodeUsage, "amount must be a non-negative integer in base units")
	}
	return CurrencyAmount{Currency: c, Quantity: q}, nil
}

func (a CurrencyAmount) Valid() bool {
	return a.Quantity != nil
}

func (a CurrencyAmount) Decimal() string {
	if a.Quantity == nil {
		return ""
	}
	return id.FormatDecimal(a.Quantity.String(), a.Currency.Decimals)
}

func (a CurrencyAmount) Info() model.AmountInfo {
	if a.Quantity == nil {
		return model.AmountInfo{}
	}
	return model.AmountInfo{
		AmountBaseUnits: a.Quantity.String(),
		AmountDecimal:   a.Decimal(),
		Decimals:        a.Currency.Decimals,
	}
}

// Trade is an immutable priced exchange of an input amount for an output
// amount along a route. Owned by the quoting layer; the review core only
// reads it.
type Trade struct {
	Type         Type
	InputAmount  CurrencyAmount
	OutputAmount CurrencyAmount
	Route        string
}

// FeeOptions is threaded through to swap submission untouched.
type FeeOptions struct {
	Recipient common.Address
	Bps       int64
}

type Quote struct {
	Trade              *Trade
	AllowedSlippageBps int64
	InputBalance       *big.Int
	FeeOptions         *FeeOptions
	FetchedAt          time.Time
}

// QuoteSource supplies the live quote for the active trade pair.
type QuoteSource interface {
	Latest(ctx context.Context) (Quote, error)
}

// ApprovalOptimizer returns a trade pre-adjusted for approval cost savings,
// or absent when no optimized variant exists.
type ApprovalOptimizer interface {
	Optimize(ctx context.Context, t *Trade, slippageBps int64) (*Trade, bool)
}
