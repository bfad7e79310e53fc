package app

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ggonzalez94/swapflow/internal/allowance"
	clierr "github.com/ggonzalez94/swapflow/internal/errors"
	"github.com/ggonzalez94/swapflow/internal/execution"
	"github.com/ggonzalez94/swapflow/internal/execution/signer"
	"github.com/ggonzalez94/swapflow/internal/httpx"
	"github.com/ggonzalez94/swapflow/internal/id"
	"github.com/ggonzalez94/swapflow/internal/registry"
	"github.com/ggonzalez94/swapflow/internal/review"
	"github.com/ggonzalez94/swapflow/internal/router"
	"github.com/ggonzalez94/swapflow/internal/trade"
	"github.com/ggonzalez94/swapflow/internal/txlog"
	"github.com/ggonzalez94/swapflow/internal/wallet"
)

type pairFlags struct {
	From          string
	To            string
	AmountBase    string
	AmountDecimal string
	TradeType     string
	KeySource     string
}

// resolvePair turns the pair flags into chain-scoped currencies and a quote
// request. The amount is denominated in the input token for exact-input and
// the output token for exact-output.
func (s *runtimeState) resolvePair(flags pairFlags) (id.Chain, trade.QuoteRequest, error) {
	chain, err := id.ParseChain(s.settings.Chain)
	if err != nil {
		return id.Chain{}, trade.QuoteRequest{}, err
	}
	input, err := resolveCurrency(chain, flags.From)
	if err != nil {
		return id.Chain{}, trade.QuoteRequest{}, err
	}
	output, err := resolveCurrency(chain, flags.To)
	if err != nil {
		return id.Chain{}, trade.QuoteRequest{}, err
	}

	tradeType := trade.Type(strings.TrimSpace(flags.TradeType))
	if tradeType == "" {
		tradeType = trade.ExactInput
	}
	amountDecimals := input.Decimals
	if tradeType == trade.ExactOutput {
		amountDecimals = output.Decimals
	}
	base, _, err := id.NormalizeAmount(flags.AmountBase, flags.AmountDecimal, amountDecimals)
	if err != nil {
		return id.Chain{}, trade.QuoteRequest{}, err
	}

	return chain, trade.QuoteRequest{
		ChainID:     chain.EVMChainID,
		Input:       input,
		Output:      output,
		AmountBase:  base,
		TradeType:   tradeType,
		SlippageBps: s.settings.SlippageBps,
	}, nil
}

func resolveCurrency(chain id.Chain, input string) (trade.Currency, error) {
	asset, err := id.ParseAsset(input, chain)
	if err != nil {
		return trade.Currency{}, err
	}
	if asset.Decimals <= 0 {
		return trade.Currency{}, clierr.New(clierr.CodeUsage, "token decimals unknown for "+input+"; use a registered symbol")
	}
	return trade.Currency{
		ChainID:  chain.EVMChainID,
		Address:  common.HexToAddress(asset.Address),
		Symbol:   asset.Symbol,
		Decimals: asset.Decimals,
	}, nil
}

func (s *runtimeState) quoteClient() *trade.Client {
	httpClient := httpx.New(s.settings.Timeout, s.settings.Retries)
	client := trade.NewClient(httpClient, s.settings.QuoteAPIKey)
	if s.settings.QuoteBaseURL != "" {
		client.SetBaseURL(s.settings.QuoteBaseURL)
	}
	return client
}

func (s *runtimeState) submitOptions() execution.SubmitOptions {
	return execution.SubmitOptions{
		Simulate:           s.settings.Simulate,
		GasMultiplier:      s.settings.GasMultiplier,
		MaxFeeGwei:         s.settings.MaxFeeGwei,
		MaxPriorityFeeGwei: s.settings.MaxPriorityFee,
	}
}

// stack is the fully wired review control plus the resources behind it.
type stack struct {
	chain   id.Chain
	eth     *ethclient.Client
	signer  *signer.LocalSigner
	store   *txlog.Store
	display *txlog.Display
	control *review.Control
	request trade.QuoteRequest
}

func (st *stack) close() {
	if st.eth != nil {
		st.eth.Close()
	}
	if st.store != nil {
		_ = st.store.Close()
	}
}

func (s *runtimeState) buildStack(ctx context.Context, flags pairFlags) (*stack, error) {
	chain, req, err := s.resolvePair(flags)
	if err != nil {
		return nil, err
	}

	sgn, err := signer.NewLocalSignerFromEnv(flags.KeySource)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeSigner, "load signing key", err)
	}

	rpcURL, err := registry.ResolveRPCURL(s.settings.RPCURL, chain.EVMChainID)
	if err != nil {
		return nil, err
	}
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, "connect to RPC endpoint", err)
	}

	store, err := txlog.OpenStore(s.settings.TxlogPath, s.settings.TxlogLockPath)
	if err != nil {
		eth.Close()
		return nil, clierr.Wrap(clierr.CodeInternal, "open transaction log", err)
	}

	reader, err := allowance.NewRPCReader(eth)
	if err != nil {
		eth.Close()
		_ = store.Close()
		return nil, err
	}

	opts := s.submitOptions()
	builder, err := router.NewBuilder(eth, sgn, chain.EVMChainID, opts)
	if err != nil {
		eth.Close()
		_ = store.Close()
		return nil, err
	}

	approvals, err := allowance.NewService(allowance.ServiceConfig{
		Reader:        reader,
		Backend:       eth,
		Signer:        sgn,
		Pending:       store,
		ChainID:       chain.EVMChainID,
		Spender:       builder.RouterAddress(),
		SubmitOptions: opts,
		PermitTTL:     s.settings.PermitTTL,
	})
	if err != nil {
		eth.Close()
		_ = store.Close()
		return nil, err
	}

	owner := sgn.Address()
	balanceOf := func(ctx context.Context, c trade.Currency) (*big.Int, error) {
		return reader.BalanceOf(ctx, c.Address, owner)
	}
	source := trade.NewSource(s.quoteClient(), req, balanceOf, nil)

	display := txlog.NewDisplay(store)
	control, err := review.NewControl(review.ControlConfig{
		Wallet:    wallet.Context{Account: owner, ChainID: chain.EVMChainID},
		Quotes:    source,
		Approvals: approvals,
		Builder:   builder,
		Deadline:  wallet.TTLDeadline{TTL: s.settings.DeadlineTTL},
		Log:       store,
		Display:   display,
	})
	if err != nil {
		eth.Close()
		_ = store.Close()
		return nil, err
	}

	return &stack{
		chain:   chain,
		eth:     eth,
		signer:  sgn,
		store:   store,
		display: display,
		control: control,
		request: req,
	}, nil
}
