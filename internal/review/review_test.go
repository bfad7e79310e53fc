package review

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ggonzalez94/swapflow/internal/allowance"
	clierr "github.com/ggonzalez94/swapflow/internal/errors"
	"github.com/ggonzalez94/swapflow/internal/trade"
	"github.com/ggonzalez94/swapflow/internal/txlog"
	"github.com/ggonzalez94/swapflow/internal/wallet"
)

var (
	usdc = trade.Currency{ChainID: 1, Address: common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"), Symbol: "USDC", Decimals: 6}
	weth = trade.Currency{ChainID: 1, Address: common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"), Symbol: "WETH", Decimals: 18}
)

// 100 USDC in for 0.05 WETH out.
func usdcToEthTrade() *trade.Trade {
	return &trade.Trade{
		Type:         trade.ExactInput,
		InputAmount:  trade.CurrencyAmount{Currency: usdc, Quantity: big.NewInt(100_000_000)},
		OutputAmount: trade.CurrencyAmount{Currency: weth, Quantity: big.NewInt(50_000_000_000_000_000)},
		Route:        "USDC-WETH-500",
	}
}

type fakeQuotes struct {
	quote trade.Quote
	err   error
}

func (f *fakeQuotes) Latest(ctx context.Context) (trade.Quote, error) { return f.quote, f.err }

type scriptedApprovals struct {
	res          allowance.Resolution
	resolveErr   error
	approveHash  string
	approveErr   error
	approveCalls int
	onApprove    func(s *scriptedApprovals)
	dropped      int
}

func (s *scriptedApprovals) Resolve(ctx context.Context, t *trade.Trade) (allowance.Resolution, error) {
	return s.res, s.resolveErr
}

func (s *scriptedApprovals) ApproveOrPermit(ctx context.Context, t *trade.Trade) (string, error) {
	s.approveCalls++
	if s.onApprove != nil {
		s.onApprove(s)
	}
	return s.approveHash, s.approveErr
}

func (s *scriptedApprovals) RefreshPending(ctx context.Context, t *trade.Trade) (bool, error) {
	return false, nil
}

func (s *scriptedApprovals) DropSignature() { s.dropped++ }

type funcBuilder struct {
	cb  SwapCallback
	err error
}

func (b funcBuilder) Build(params CallbackParams) (SwapCallback, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.cb, nil
}

type memLog struct {
	recs []txlog.SwapRecord
}

func (m *memLog) RecordSwap(rec txlog.SwapRecord) error {
	m.recs = append(m.recs, rec)
	return nil
}

type memDisplay struct {
	hashes []string
}

func (m *memDisplay) Set(txHash string) error {
	m.hashes = append(m.hashes, txHash)
	return nil
}

func testControl(t *testing.T, quotes *fakeQuotes, approvals *scriptedApprovals, builder CallbackBuilder) (*Control, *memLog, *memDisplay) {
	t.Helper()
	if builder == nil {
		builder = funcBuilder{cb: func(ctx context.Context) (string, error) { return "0xswap", nil }}
	}
	log := &memLog{}
	display := &memDisplay{}
	ctl, err := NewControl(ControlConfig{
		Wallet:    wallet.Context{Account: common.HexToAddress("0x1111111111111111111111111111111111111111"), ChainID: 1},
		Quotes:    quotes,
		Approvals: approvals,
		Builder:   builder,
		Deadline:  wallet.StaticDeadline{Value: big.NewInt(1_700_000_000)},
		Log:       log,
		Display:   display,
	})
	if err != nil {
		t.Fatalf("NewControl failed: %v", err)
	}
	return ctl, log, display
}

func readyQuote() trade.Quote {
	return trade.Quote{
		Trade:              usdcToEthTrade(),
		AllowedSlippageBps: 50,
		InputBalance:       big.NewInt(200_000_000),
	}
}

func TestTransitionLifecycle(t *testing.T) {
	steps := []struct {
		from  State
		event Event
		want  State
	}{
		{StateIdle, EventNotApproved, StateAwaitingApproval},
		{StateAwaitingApproval, EventApprovalSubmitted, StateApprovalPending},
		{StateApprovalPending, EventApprovalCleared, StateReady},
		{StateReady, EventDialogOpened, StateAwaitingConfirmation},
		{StateAwaitingConfirmation, EventConfirmed, StateSubmitting},
		{StateSubmitting, EventSettled, StateIdle},
		{StateAwaitingApproval, EventApprovalCleared, StateReady},
		{StateIdle, EventApprovalSubmitted, StateApprovalPending},
		{StateAwaitingConfirmation, EventDialogClosed, StateIdle},
	}
	for _, step := range steps {
		got, err := Transition(step.from, step.event)
		if err != nil {
			t.Fatalf("Transition(%s, %s) failed: %v", step.from, step.event, err)
		}
		if got != step.want {
			t.Fatalf("Transition(%s, %s) = %s, want %s", step.from, step.event, got, step.want)
		}
	}
}

func TestTransitionRejectsCloseWhileSubmitting(t *testing.T) {
	if _, err := Transition(StateSubmitting, EventDialogClosed); err == nil {
		t.Fatal("expected locked dialog error")
	}
	if _, err := Transition(StateIdle, EventConfirmed); err == nil {
		t.Fatal("expected invalid transition error")
	}
}

func TestSelectorRefreshOnlyWhileOpen(t *testing.T) {
	var sel TradeSelector
	first := usdcToEthTrade()
	second := usdcToEthTrade()
	second.Route = "USDC-WETH-3000"

	sel.Refresh(first)
	if _, ok := sel.Active(); ok {
		t.Fatal("refresh must not open the dialog")
	}

	sel.Open(first)
	sel.Refresh(second)
	active, ok := sel.Active()
	if !ok || active.Route != "USDC-WETH-3000" {
		t.Fatalf("expected refreshed snapshot, got %+v ok=%v", active, ok)
	}

	sel.Close()
	if _, ok := sel.Active(); ok {
		t.Fatal("expected closed selector")
	}
}

func TestDeriveButtonStates(t *testing.T) {
	base := ButtonInputs{
		ChainKnown:  true,
		ChainID:     1,
		InputSymbol: "USDC",
		Balance:     big.NewInt(200_000_000),
		Required:    big.NewInt(100_000_000),
	}

	if got := DeriveButton(base); got.Kind != ButtonReady || got.Label != "Review swap" {
		t.Fatalf("expected ready button, got %+v", got)
	}

	in := base
	in.Resolution.NotApproved = true
	if got := DeriveButton(in); got.Kind != ButtonNeedsApproval || got.Label != "Approve USDC first" {
		t.Fatalf("expected approve label, got %+v", got)
	}
	in.Resolution.SupportsPermit = true
	if got := DeriveButton(in); got.Label != "Allow USDC first" {
		t.Fatalf("expected permit label, got %+v", got)
	}

	in = base
	in.Resolution.PendingApproval = true
	in.Resolution.PendingHash = "0xaaa"
	got := DeriveButton(in)
	if got.Kind != ButtonApprovalPending || !got.Disabled || !got.ShowLoading {
		t.Fatalf("expected disabled pending button, got %+v", got)
	}
	if got.ExplorerURL != "https://etherscan.io/tx/0xaaa" {
		t.Fatalf("unexpected explorer URL: %s", got.ExplorerURL)
	}

	in = base
	in.Balance = big.NewInt(50_000_000)
	in.Resolution.NotApproved = true
	got = DeriveButton(in)
	if got.Kind != ButtonDisabled || got.Message != "insufficient USDC balance" {
		t.Fatalf("insufficient balance must win over approval state, got %+v", got)
	}

	in = base
	in.ChainKnown = false
	if got := DeriveButton(in); got.Kind != ButtonDisabled {
		t.Fatalf("expected disabled without chain, got %+v", got)
	}

	in = base
	in.Resolution.LoadingSignature = true
	if got := DeriveButton(in); got.Kind != ButtonDisabled || !got.ShowLoading {
		t.Fatalf("expected disabled while signature in flight, got %+v", got)
	}
}

func TestPressPrimarySubmitsExactlyOneApproval(t *testing.T) {
	approvals := &scriptedApprovals{approveHash: "0xaaa"}
	approvals.res.NotApproved = true
	approvals.onApprove = func(s *scriptedApprovals) {
		s.res = allowance.Resolution{PendingApproval: true, PendingHash: "0xaaa"}
	}
	ctl, _, _ := testControl(t, &fakeQuotes{quote: readyQuote()}, approvals, nil)

	hash, err := ctl.PressPrimary(context.Background())
	if err != nil {
		t.Fatalf("PressPrimary failed: %v", err)
	}
	if hash != "0xaaa" || approvals.approveCalls != 1 {
		t.Fatalf("expected one approval submission, hash=%q calls=%d", hash, approvals.approveCalls)
	}
	if ctl.State() != StateApprovalPending {
		t.Fatalf("expected approval-pending state, got %s", ctl.State())
	}

	// Pressing again while pending resumes, never re-submits.
	hash, err = ctl.PressPrimary(context.Background())
	if err != nil {
		t.Fatalf("second PressPrimary failed: %v", err)
	}
	if hash != "0xaaa" || approvals.approveCalls != 1 {
		t.Fatalf("expected idempotent resume, hash=%q calls=%d", hash, approvals.approveCalls)
	}
}

func TestPressPrimaryPermitPath(t *testing.T) {
	approvals := &scriptedApprovals{approveHash: ""}
	approvals.res.NotApproved = true
	approvals.res.SupportsPermit = true
	approvals.onApprove = func(s *scriptedApprovals) {
		s.res = allowance.Resolution{SupportsPermit: true, Signature: &allowance.SignatureData{V: 27}}
	}
	ctl, _, _ := testControl(t, &fakeQuotes{quote: readyQuote()}, approvals, nil)

	hash, err := ctl.PressPrimary(context.Background())
	if err != nil {
		t.Fatalf("PressPrimary failed: %v", err)
	}
	if hash != "" {
		t.Fatalf("permit path must not produce a transaction hash, got %q", hash)
	}
	if approvals.approveCalls != 1 || ctl.State() != StateReady {
		t.Fatalf("expected signed permit to land in ready, calls=%d state=%s", approvals.approveCalls, ctl.State())
	}
}

func TestConfirmSuccessRecordsAndClears(t *testing.T) {
	approvals := &scriptedApprovals{}
	ctl, log, display := testControl(t, &fakeQuotes{quote: readyQuote()}, approvals, nil)

	if _, err := ctl.PressPrimary(context.Background()); err != nil {
		t.Fatalf("open dialog failed: %v", err)
	}
	if _, ok := ctl.selector.Active(); !ok {
		t.Fatal("expected open dialog snapshot")
	}

	outcome := ctl.Confirm(context.Background())
	if !outcome.Ok() || outcome.TxHash != "0xswap" {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if len(display.hashes) != 1 || display.hashes[0] != "0xswap" {
		t.Fatalf("expected display slot write, got %v", display.hashes)
	}
	if len(log.recs) != 1 {
		t.Fatalf("expected one swap record, got %d", len(log.recs))
	}
	rec := log.recs[0]
	if rec.TradeType != "exact-input" || rec.InputAmount != "100000000" || rec.OutputAmount != "50000000000000000" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if _, ok := ctl.selector.Active(); ok {
		t.Fatal("expected snapshot cleared after settle")
	}
	if ctl.State() != StateIdle {
		t.Fatalf("expected idle after settle, got %s", ctl.State())
	}
}

func TestConfirmFailureRecordsNothingAndClears(t *testing.T) {
	approvals := &scriptedApprovals{}
	builder := funcBuilder{cb: func(ctx context.Context) (string, error) {
		return "", clierr.New(clierr.CodeRejected, "user declined in wallet")
	}}
	ctl, log, display := testControl(t, &fakeQuotes{quote: readyQuote()}, approvals, builder)

	if _, err := ctl.PressPrimary(context.Background()); err != nil {
		t.Fatalf("open dialog failed: %v", err)
	}
	outcome := ctl.Confirm(context.Background())
	if outcome.Ok() || !clierr.IsRejected(outcome.Err) {
		t.Fatalf("expected rejected outcome, got %+v", outcome)
	}
	if len(log.recs) != 0 || len(display.hashes) != 0 {
		t.Fatalf("failed swap must not touch log or display, log=%d display=%d", len(log.recs), len(display.hashes))
	}
	if _, ok := ctl.selector.Active(); ok {
		t.Fatal("expected snapshot cleared after failure")
	}
	if ctl.State() != StateIdle {
		t.Fatalf("expected idle after failure, got %s", ctl.State())
	}
}

func TestConfirmWithoutDialogFails(t *testing.T) {
	ctl, _, _ := testControl(t, &fakeQuotes{quote: readyQuote()}, &scriptedApprovals{}, nil)
	outcome := ctl.Confirm(context.Background())
	if outcome.Err == nil {
		t.Fatal("expected confirm without dialog to fail")
	}
}

func TestCoordinatorSecondConfirmIsNoOp(t *testing.T) {
	coord := NewCoordinator(&memLog{}, &memDisplay{})
	var sel TradeSelector
	sel.Open(usdcToEthTrade())

	var nested Outcome
	outcome := coord.Confirm(context.Background(), &sel, func(ctx context.Context) (string, error) {
		nested = coord.Confirm(ctx, &sel, func(context.Context) (string, error) { return "0xdup", nil })
		return "0xswap", nil
	})
	if !outcome.Ok() {
		t.Fatalf("outer confirm failed: %+v", outcome)
	}
	if nested.Submitted || nested.TxHash != "" {
		t.Fatalf("nested confirm must be a no-op, got %+v", nested)
	}
}

func TestInsufficientBalanceDisablesRegardlessOfApproval(t *testing.T) {
	quote := readyQuote()
	quote.InputBalance = big.NewInt(50_000_000) // 50 USDC against a 100 USDC trade
	approvals := &scriptedApprovals{}
	approvals.res.NotApproved = true
	approvals.res.SupportsPermit = true
	ctl, _, _ := testControl(t, &fakeQuotes{quote: quote}, approvals, nil)

	snap, err := ctl.Recompute(context.Background())
	if err != nil {
		t.Fatalf("Recompute failed: %v", err)
	}
	if snap.Button.Kind != ButtonDisabled || !snap.Button.Disabled {
		t.Fatalf("expected disabled control, got %+v", snap.Button)
	}
	if _, err := ctl.PressPrimary(context.Background()); err == nil {
		t.Fatal("expected disabled press to fail")
	}
}

func TestFullSwapScenario(t *testing.T) {
	// 100 USDC -> 0.05 ETH with zero starting allowance: needs-approval,
	// approve (hash H), approval-pending, registry clears, ready, open
	// dialog, confirm, success with hash S, exactly one log record.
	quotes := &fakeQuotes{quote: readyQuote()}
	approvals := &scriptedApprovals{approveHash: "0xH"}
	approvals.res.NotApproved = true
	approvals.onApprove = func(s *scriptedApprovals) {
		s.res = allowance.Resolution{PendingApproval: true, PendingHash: "0xH"}
	}
	builder := funcBuilder{cb: func(ctx context.Context) (string, error) { return "0xS", nil }}
	ctl, log, display := testControl(t, quotes, approvals, builder)

	snap, err := ctl.Recompute(context.Background())
	if err != nil {
		t.Fatalf("Recompute failed: %v", err)
	}
	if snap.Button.Kind != ButtonNeedsApproval || snap.Button.Label != "Approve USDC first" {
		t.Fatalf("expected needs-approval, got %+v", snap.Button)
	}

	hash, err := ctl.PressPrimary(context.Background())
	if err != nil || hash != "0xH" {
		t.Fatalf("approval press failed: hash=%q err=%v", hash, err)
	}
	snap, _ = ctl.Recompute(context.Background())
	if snap.Button.Kind != ButtonApprovalPending || snap.Button.PendingHash != "0xH" {
		t.Fatalf("expected approval-pending with hash H, got %+v", snap.Button)
	}

	// Registry clears and allowance now covers the trade.
	approvals.res = allowance.Resolution{}
	snap, _ = ctl.Recompute(context.Background())
	if snap.Button.Kind != ButtonReady || snap.State != StateReady {
		t.Fatalf("expected ready, got %+v state=%s", snap.Button, snap.State)
	}

	if _, err := ctl.PressPrimary(context.Background()); err != nil {
		t.Fatalf("open dialog failed: %v", err)
	}
	if ctl.State() != StateAwaitingConfirmation {
		t.Fatalf("expected awaiting-confirmation, got %s", ctl.State())
	}

	outcome := ctl.Confirm(context.Background())
	if !outcome.Ok() || outcome.TxHash != "0xS" {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if len(display.hashes) != 1 || display.hashes[0] != "0xS" {
		t.Fatalf("expected display slot 0xS, got %v", display.hashes)
	}
	if len(log.recs) != 1 {
		t.Fatalf("expected exactly one swap record, got %d", len(log.recs))
	}
	rec := log.recs[0]
	if rec.InputSymbol != "USDC" || rec.InputAmount != "100000000" {
		t.Fatalf("unexpected input in record: %+v", rec)
	}
	if rec.OutputSymbol != "WETH" || rec.OutputAmount != "50000000000000000" {
		t.Fatalf("unexpected output in record: %+v", rec)
	}
	if ctl.State() != StateIdle {
		t.Fatalf("expected idle at end, got %s", ctl.State())
	}
}
