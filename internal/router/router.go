package router

import (
	"context"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ggonzalez94/swapflow/internal/allowance"
	clierr "github.com/ggonzalez94/swapflow/internal/errors"
	"github.com/ggonzalez94/swapflow/internal/execution"
	"github.com/ggonzalez94/swapflow/internal/execution/signer"
	"github.com/ggonzalez94/swapflow/internal/registry"
	"github.com/ggonzalez94/swapflow/internal/review"
	"github.com/ggonzalez94/swapflow/internal/trade"
)

// DefaultFeeTier is the pool fee used when the route does not carry one.
const DefaultFeeTier = 3000

const bpsDenominator = 10_000

type exactInputSingleParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	Fee               *big.Int
	Recipient         common.Address
	AmountIn          *big.Int
	AmountOutMinimum  *big.Int
	SqrtPriceLimitX96 *big.Int
}

type exactOutputSingleParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	Fee               *big.Int
	Recipient         common.Address
	AmountOut         *big.Int
	AmountInMaximum   *big.Int
	SqrtPriceLimitX96 *big.Int
}

// Builder packs swap calldata for a SwapRouter02-compatible router and
// returns callbacks that submit it. Every transaction goes through
// multicall so the deadline always rides along; a held permit signature is
// prepended as a selfPermit call in the same transaction.
type Builder struct {
	backend    execution.Backend
	txSigner   signer.Signer
	routerAddr common.Address
	routerABI  abi.ABI
	opts       execution.SubmitOptions
}

func NewBuilder(backend execution.Backend, txSigner signer.Signer, chainID int64, opts execution.SubmitOptions) (*Builder, error) {
	routerAddr, ok := registry.SwapRouter(chainID)
	if !ok {
		return nil, clierr.New(clierr.CodeUnsupported, "no swap router known for this chain")
	}
	parsed, err := abi.JSON(strings.NewReader(registry.SwapRouterABI))
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "parse swap router abi", err)
	}
	return &Builder{
		backend:    backend,
		txSigner:   txSigner,
		routerAddr: common.HexToAddress(routerAddr),
		routerABI:  parsed,
		opts:       opts,
	}, nil
}

func (b *Builder) RouterAddress() common.Address { return b.routerAddr }

// Build assembles the full transaction calldata for the params tuple and
// returns a callback that broadcasts it.
func (b *Builder) Build(params review.CallbackParams) (review.SwapCallback, error) {
	if params.Trade == nil || !params.Trade.InputAmount.Valid() || !params.Trade.OutputAmount.Valid() {
		return nil, clierr.New(clierr.CodeUsage, "swap requires a fully priced trade")
	}
	if params.Deadline == nil {
		return nil, clierr.New(clierr.CodeUsage, "swap requires a transaction deadline")
	}

	swapData, err := b.packSwap(params)
	if err != nil {
		return nil, err
	}

	calls := make([][]byte, 0, 2)
	if params.Signature != nil {
		permitData, err := b.packSelfPermit(params.Trade.InputAmount.Currency.Address, params.Signature)
		if err != nil {
			return nil, err
		}
		calls = append(calls, permitData)
	}
	calls = append(calls, swapData)

	data, err := b.routerABI.Pack("multicall", params.Deadline, calls)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "encode multicall", err)
	}

	target := b.routerAddr
	opts := b.opts
	return func(ctx context.Context) (string, error) {
		hash, err := execution.SubmitCall(ctx, b.backend, b.txSigner, execution.Call{To: target, Data: data}, opts)
		if err != nil {
			return "", err
		}
		return hash.Hex(), nil
	}, nil
}

func (b *Builder) packSwap(params review.CallbackParams) ([]byte, error) {
	t := params.Trade
	fee := big.NewInt(int64(feeTierFromRoute(t.Route)))
	zero := big.NewInt(0)

	switch t.Type {
	case trade.ExactInput:
		minOut := applySlippageDown(t.OutputAmount.Quantity, params.SlippageBps)
		data, err := b.routerABI.Pack("exactInputSingle", exactInputSingleParams{
			TokenIn:           t.InputAmount.Currency.Address,
			TokenOut:          t.OutputAmount.Currency.Address,
			Fee:               fee,
			Recipient:         params.Recipient,
			AmountIn:          t.InputAmount.Quantity,
			AmountOutMinimum:  minOut,
			SqrtPriceLimitX96: zero,
		})
		if err != nil {
			return nil, clierr.Wrap(clierr.CodeInternal, "encode exactInputSingle", err)
		}
		return data, nil

	case trade.ExactOutput:
		maxIn := applySlippageUp(t.InputAmount.Quantity, params.SlippageBps)
		data, err := b.routerABI.Pack("exactOutputSingle", exactOutputSingleParams{
			TokenIn:           t.InputAmount.Currency.Address,
			TokenOut:          t.OutputAmount.Currency.Address,
			Fee:               fee,
			Recipient:         params.Recipient,
			AmountOut:         t.OutputAmount.Quantity,
			AmountInMaximum:   maxIn,
			SqrtPriceLimitX96: zero,
		})
		if err != nil {
			return nil, clierr.Wrap(clierr.CodeInternal, "encode exactOutputSingle", err)
		}
		return data, nil

	default:
		return nil, clierr.New(clierr.CodeUsage, "unknown trade type "+string(t.Type))
	}
}

func (b *Builder) packSelfPermit(token common.Address, sig *allowance.SignatureData) ([]byte, error) {
	data, err := b.routerABI.Pack("selfPermit", token, sig.Value, sig.Deadline, sig.V, [32]byte(sig.R), [32]byte(sig.S))
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "encode selfPermit", err)
	}
	return data, nil
}

// applySlippageDown shrinks the quoted output by the tolerance to get the
// minimum acceptable fill.
func applySlippageDown(amount *big.Int, bps int64) *big.Int {
	out := new(big.Int).Mul(amount, big.NewInt(bpsDenominator-bps))
	return out.Div(out, big.NewInt(bpsDenominator))
}

// applySlippageUp grows the quoted input by the tolerance to get the
// maximum spend.
func applySlippageUp(amount *big.Int, bps int64) *big.Int {
	in := new(big.Int).Mul(amount, big.NewInt(bpsDenominator+bps))
	// Round up so the cap never undercuts the tolerance.
	in.Add(in, big.NewInt(bpsDenominator-1))
	return in.Div(in, big.NewInt(bpsDenominator))
}

// feeTierFromRoute reads a trailing pool fee from routes shaped like
// "USDC-WETH-500". Anything else gets the default tier.
func feeTierFromRoute(route string) uint32 {
	parts := strings.Split(route, "-")
	if len(parts) < 3 {
		return DefaultFeeTier
	}
	fee, err := strconv.ParseUint(parts[len(parts)-1], 10, 24)
	if err != nil || fee == 0 {
		return DefaultFeeTier
	}
	return uint32(fee)
}
