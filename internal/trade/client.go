package trade

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"time"

	clierr "github.com/ggonzalez94/swapflow/internal/errors"
	"github.com/ggonzalez94/swapflow/internal/httpx"
)

const defaultBase = "https://trade-api.gateway.uniswap.org"

// quoteOnlySwapper is a deterministic placeholder for quote retrieval flows.
const quoteOnlySwapper = "0x0000000000000000000000000000000000000001"

type Client struct {
	http    *httpx.Client
	baseURL string
	apiKey  string
	now     func() time.Time
}

func NewClient(httpClient *httpx.Client, apiKey string) *Client {
	return &Client{http: httpClient, baseURL: defaultBase, apiKey: apiKey, now: time.Now}
}

// SetBaseURL overrides the quote endpoint, used by tests and self-hosted routers.
func (c *Client) SetBaseURL(url string) {
	c.baseURL = url
}

type QuoteRequest struct {
	ChainID     int64
	Input       Currency
	Output      Currency
	AmountBase  string
	TradeType   Type
	SlippageBps int64
}

type quoteResponse struct {
	Quote struct {
		Input struct {
			Amount string `json:"amount"`
		} `json:"input"`
		Output struct {
			Amount string `json:"amount"`
		} `json:"output"`
		Route json.RawMessage `json:"route"`
	} `json:"quote"`
	AmountIn  string `json:"amountIn"`
	AmountOut string `json:"amountOut"`
	Routing   string `json:"routing"`
}

func (c *Client) QuoteTrade(ctx context.Context, req QuoteRequest) (*Trade, error) {
	if c.apiKey == "" {
		return nil, clierr.New(clierr.CodeAuth, "missing required quote API key (SWAPFLOW_QUOTE_API_KEY)")
	}
	tradeType := req.TradeType
	if tradeType == "" {
		tradeType = ExactInput
	}
	switch tradeType {
	case ExactInput, ExactOutput:
	default:
		return nil, clierr.New(clierr.CodeUnsupported, "trade type must be exact-input or exact-output")
	}

	payload := map[string]any{
		"tokenInChainId":  req.ChainID,
		"tokenOutChainId": req.ChainID,
		"tokenIn":         req.Input.Address.Hex(),
		"tokenOut":        req.Output.Address.Hex(),
		"amount":          req.AmountBase,
		"type":            wireTradeType(tradeType),
		"swapper":         quoteOnlySwapper,
	}
	if req.SlippageBps > 0 {
		payload["slippageTolerance"] = float64(req.SlippageBps) / 100
	} else {
		payload["autoSlippage"] = "DEFAULT"
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "marshal quote request", err)
	}

	headers := map[string]string{"x-api-key": c.apiKey}
	var resp quoteResponse
	if _, err := httpx.DoBodyJSON(ctx, c.http, http.MethodPost, c.baseURL+"/v1/quote", buf, headers, &resp); err != nil {
		return nil, err
	}

	amountOut := resp.AmountOut
	if amountOut == "" {
		amountOut = resp.Quote.Output.Amount
	}
	amountIn := resp.AmountIn
	if amountIn == "" {
		amountIn = resp.Quote.Input.Amount
	}
	if tradeType == ExactInput {
		amountIn = req.AmountBase
	} else if amountOut == "" {
		amountOut = req.AmountBase
	}
	if amountIn == "" || amountOut == "" {
		return nil, clierr.New(clierr.CodeUnavailable, "quote missing input or output amount")
	}

	in, ok := new(big.Int).SetString(amountIn, 10)
	if !ok {
		return nil, clierr.New(clierr.CodeUnavailable, "quote returned non-numeric input amount")
	}
	out, ok := new(big.Int).SetString(amountOut, 10)
	if !ok {
		return nil, clierr.New(clierr.CodeUnavailable, "quote returned non-numeric output amount")
	}

	route := resp.Routing
	if route == "" {
		route = "uniswap"
	}
	return &Trade{
		Type:         tradeType,
		InputAmount:  CurrencyAmount{Currency: req.Input, Quantity: in},
		OutputAmount: CurrencyAmount{Currency: req.Output, Quantity: out},
		Route:        route,
	}, nil
}

func wireTradeType(t Type) string {
	if t == ExactOutput {
		return "EXACT_OUTPUT"
	}
	return "EXACT_INPUT"
}
