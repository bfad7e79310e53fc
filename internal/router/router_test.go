package router

import (
	"bytes"
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/ggonzalez94/swapflow/internal/allowance"
	"github.com/ggonzalez94/swapflow/internal/execution"
	"github.com/ggonzalez94/swapflow/internal/review"
	"github.com/ggonzalez94/swapflow/internal/trade"
)

type stubBackend struct {
	sent []*types.Transaction
}

func (b *stubBackend) ChainID(ctx context.Context) (*big.Int, error) { return big.NewInt(1), nil }

func (b *stubBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return nil, nil
}

func (b *stubBackend) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return 200_000, nil
}

func (b *stubBackend) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (b *stubBackend) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return &types.Header{BaseFee: big.NewInt(10_000_000_000)}, nil
}

func (b *stubBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return 1, nil
}

func (b *stubBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	b.sent = append(b.sent, tx)
	return nil
}

func (b *stubBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return nil, ethereum.NotFound
}

type stubSigner struct {
	addr common.Address
}

func (s *stubSigner) Address() common.Address { return s.addr }

func (s *stubSigner) SignTx(chainID *big.Int, tx *types.Transaction) (*types.Transaction, error) {
	return tx, nil
}

func (s *stubSigner) SignTypedData(data apitypes.TypedData) ([]byte, error) { return nil, nil }

func swapParams() review.CallbackParams {
	usdc := trade.Currency{ChainID: 1, Address: common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"), Symbol: "USDC", Decimals: 6}
	weth := trade.Currency{ChainID: 1, Address: common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"), Symbol: "WETH", Decimals: 18}
	return review.CallbackParams{
		Trade: &trade.Trade{
			Type:         trade.ExactInput,
			InputAmount:  trade.CurrencyAmount{Currency: usdc, Quantity: big.NewInt(100_000_000)},
			OutputAmount: trade.CurrencyAmount{Currency: weth, Quantity: big.NewInt(50_000_000_000_000_000)},
			Route:        "USDC-WETH-500",
		},
		SlippageBps: 50,
		Recipient:   common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Deadline:    big.NewInt(1_700_000_000),
	}
}

func newTestBuilder(t *testing.T, backend *stubBackend) *Builder {
	t.Helper()
	b, err := NewBuilder(backend, &stubSigner{addr: common.HexToAddress("0x1111111111111111111111111111111111111111")}, 1, execution.DefaultSubmitOptions())
	if err != nil {
		t.Fatalf("NewBuilder failed: %v", err)
	}
	return b
}

func (b *Builder) unpackMulticall(t *testing.T, data []byte) (*big.Int, [][]byte) {
	t.Helper()
	method := b.routerABI.Methods["multicall"]
	if !bytes.Equal(data[:4], method.ID) {
		t.Fatalf("expected multicall selector, got %x", data[:4])
	}
	vals, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		t.Fatalf("unpack multicall: %v", err)
	}
	deadline, ok := vals[0].(*big.Int)
	if !ok {
		t.Fatalf("unexpected deadline type %T", vals[0])
	}
	calls, ok := vals[1].([][]byte)
	if !ok {
		t.Fatalf("unexpected calls type %T", vals[1])
	}
	return deadline, calls
}

func TestBuildExactInputSubmitsMulticall(t *testing.T) {
	backend := &stubBackend{}
	builder := newTestBuilder(t, backend)

	cb, err := builder.Build(swapParams())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	hash, err := cb(context.Background())
	if err != nil || hash == "" {
		t.Fatalf("callback failed: hash=%q err=%v", hash, err)
	}
	if len(backend.sent) != 1 {
		t.Fatalf("expected one broadcast, got %d", len(backend.sent))
	}
	tx := backend.sent[0]
	if to := tx.To(); to == nil || *to != builder.RouterAddress() {
		t.Fatalf("expected router target, got %v", to)
	}

	deadline, calls := builder.unpackMulticall(t, tx.Data())
	if deadline.Int64() != 1_700_000_000 {
		t.Fatalf("unexpected deadline %s", deadline)
	}
	if len(calls) != 1 {
		t.Fatalf("expected single inner call, got %d", len(calls))
	}
	if !bytes.Equal(calls[0][:4], builder.routerABI.Methods["exactInputSingle"].ID) {
		t.Fatalf("expected exactInputSingle, got selector %x", calls[0][:4])
	}
}

func TestBuildWithPermitPrependsSelfPermit(t *testing.T) {
	backend := &stubBackend{}
	builder := newTestBuilder(t, backend)

	params := swapParams()
	params.Signature = &allowance.SignatureData{
		Token:    params.Trade.InputAmount.Currency.Address,
		Value:    big.NewInt(100_000_000),
		Deadline: big.NewInt(1_700_000_000),
		V:        28,
		R:        common.HexToHash("0x01"),
		S:        common.HexToHash("0x02"),
	}
	cb, err := builder.Build(params)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if _, err := cb(context.Background()); err != nil {
		t.Fatalf("callback failed: %v", err)
	}

	_, calls := builder.unpackMulticall(t, backend.sent[0].Data())
	if len(calls) != 2 {
		t.Fatalf("expected selfPermit plus swap, got %d calls", len(calls))
	}
	if !bytes.Equal(calls[0][:4], builder.routerABI.Methods["selfPermit"].ID) {
		t.Fatalf("expected selfPermit first, got selector %x", calls[0][:4])
	}
}

func TestBuildExactOutputUsesMaxIn(t *testing.T) {
	backend := &stubBackend{}
	builder := newTestBuilder(t, backend)

	params := swapParams()
	params.Trade.Type = trade.ExactOutput
	cb, err := builder.Build(params)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if _, err := cb(context.Background()); err != nil {
		t.Fatalf("callback failed: %v", err)
	}
	_, calls := builder.unpackMulticall(t, backend.sent[0].Data())
	if !bytes.Equal(calls[0][:4], builder.routerABI.Methods["exactOutputSingle"].ID) {
		t.Fatalf("expected exactOutputSingle, got selector %x", calls[0][:4])
	}
}

func TestBuildRequiresDeadline(t *testing.T) {
	builder := newTestBuilder(t, &stubBackend{})
	params := swapParams()
	params.Deadline = nil
	if _, err := builder.Build(params); err == nil {
		t.Fatal("expected missing deadline error")
	}
}

func TestSlippageBounds(t *testing.T) {
	out := applySlippageDown(big.NewInt(10_000), 50)
	if out.Int64() != 9_950 {
		t.Fatalf("expected 9950, got %s", out)
	}
	in := applySlippageUp(big.NewInt(10_000), 50)
	if in.Int64() != 10_050 {
		t.Fatalf("expected 10050, got %s", in)
	}
	// Rounding never undercuts the tolerance.
	in = applySlippageUp(big.NewInt(3), 50)
	if in.Int64() != 4 {
		t.Fatalf("expected rounded-up cap, got %s", in)
	}
}

func TestFeeTierFromRoute(t *testing.T) {
	if got := feeTierFromRoute("USDC-WETH-500"); got != 500 {
		t.Fatalf("expected 500, got %d", got)
	}
	if got := feeTierFromRoute("USDC-WETH"); got != DefaultFeeTier {
		t.Fatalf("expected default tier, got %d", got)
	}
	if got := feeTierFromRoute(""); got != DefaultFeeTier {
		t.Fatalf("expected default tier, got %d", got)
	}
}
