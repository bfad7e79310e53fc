package trade

import (
	"context"
	"math/big"
	"time"
)

// BalanceFunc reads the wallet's balance for a currency in base units.
type BalanceFunc func(ctx context.Context, c Currency) (*big.Int, error)

// Source binds a quote client to one trade pair and layers in the wallet
// balance, slippage, and fee options the review control needs per recompute.
type Source struct {
	client      *Client
	request     QuoteRequest
	balanceOf   BalanceFunc
	feeOptions  *FeeOptions
	slippageBps int64
	now         func() time.Time
}

func NewSource(client *Client, req QuoteRequest, balanceOf BalanceFunc, feeOptions *FeeOptions) *Source {
	return &Source{
		client:      client,
		request:     req,
		balanceOf:   balanceOf,
		feeOptions:  feeOptions,
		slippageBps: req.SlippageBps,
		now:         time.Now,
	}
}

func (s *Source) Latest(ctx context.Context) (Quote, error) {
	t, err := s.client.QuoteTrade(ctx, s.request)
	if err != nil {
		return Quote{}, err
	}
	var balance *big.Int
	if s.balanceOf != nil {
		balance, err = s.balanceOf(ctx, s.request.Input)
		if err != nil {
			return Quote{}, err
		}
	}
	return Quote{
		Trade:              t,
		AllowedSlippageBps: s.slippageBps,
		InputBalance:       balance,
		FeeOptions:         s.feeOptions,
		FetchedAt:          s.now(),
	}, nil
}
