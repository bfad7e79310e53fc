package review

import (
	"context"
	"sync"

	"github.com/ggonzalez94/swapflow/internal/allowance"
	clierr "github.com/ggonzalez94/swapflow/internal/errors"
	"github.com/ggonzalez94/swapflow/internal/model"
	"github.com/ggonzalez94/swapflow/internal/trade"
	"github.com/ggonzalez94/swapflow/internal/wallet"
)

// ApprovalService is the allowance/permit collaborator the control drives.
// Satisfied by *allowance.Service.
type ApprovalService interface {
	Resolve(ctx context.Context, t *trade.Trade) (allowance.Resolution, error)
	ApproveOrPermit(ctx context.Context, t *trade.Trade) (string, error)
	RefreshPending(ctx context.Context, t *trade.Trade) (bool, error)
	DropSignature()
}

type ControlConfig struct {
	Wallet    wallet.Context
	Quotes    trade.QuoteSource
	Optimizer trade.ApprovalOptimizer
	Approvals ApprovalService
	Builder   CallbackBuilder
	Deadline  wallet.DeadlineProvider
	Log       SwapLog
	Display   DisplaySlot
	// Disabled force-disables the primary button regardless of state.
	Disabled bool
}

// Control is the review-swap control: one approval target, one trade pair,
// one confirmation dialog. All methods are safe for concurrent use; the
// approval and submission locks guarantee at most one of each in flight.
type Control struct {
	cfg         ControlConfig
	selector    TradeSelector
	coordinator *Coordinator

	mu    sync.Mutex
	state State
}

func NewControl(cfg ControlConfig) (*Control, error) {
	if cfg.Quotes == nil {
		return nil, clierr.New(clierr.CodeInternal, "missing quote source")
	}
	if cfg.Approvals == nil {
		return nil, clierr.New(clierr.CodeInternal, "missing approval service")
	}
	if cfg.Builder == nil {
		return nil, clierr.New(clierr.CodeInternal, "missing swap callback builder")
	}
	return &Control{
		cfg:         cfg,
		coordinator: NewCoordinator(cfg.Log, cfg.Display),
		state:       StateIdle,
	}, nil
}

// Snapshot is one recompute of the control: lifecycle state, derived button,
// the quote it was computed from, and the trade that would execute.
type Snapshot struct {
	State      State
	Button     ButtonAction
	Quote      trade.Quote
	ExecTrade  *trade.Trade
	Resolution allowance.Resolution
}

func (c *Control) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Recompute refreshes the quote, re-resolves approval state, derives the
// button, and advances the state machine to match what was observed.
func (c *Control) Recompute(ctx context.Context) (Snapshot, error) {
	quote, err := c.cfg.Quotes.Latest(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{Quote: quote}
	if quote.Trade == nil {
		snap.Button = ButtonAction{Kind: ButtonDisabled, Disabled: true, Message: "waiting for quote"}
		snap.State = c.State()
		return snap, nil
	}

	// Execution always uses the approval-optimized trade when one exists,
	// falling back to the plain quote otherwise.
	exec := quote.Trade
	if c.cfg.Optimizer != nil {
		if optimized, ok := c.cfg.Optimizer.Optimize(ctx, quote.Trade, quote.AllowedSlippageBps); ok {
			exec = optimized
		}
	}
	snap.ExecTrade = exec
	c.selector.Refresh(exec)

	// Opportunistically fold mined approvals back into the registry before
	// resolving; a failure here only delays the Ready transition.
	_, _ = c.cfg.Approvals.RefreshPending(ctx, exec)

	res, err := c.cfg.Approvals.Resolve(ctx, exec)
	if err != nil {
		return Snapshot{}, err
	}
	snap.Resolution = res

	snap.Button = DeriveButton(ButtonInputs{
		DisabledByCaller: c.cfg.Disabled,
		ChainKnown:       c.cfg.Wallet.ChainKnown(),
		ChainID:          c.cfg.Wallet.ChainID,
		InputSymbol:      exec.InputAmount.Currency.Symbol,
		Balance:          quote.InputBalance,
		Required:         exec.InputAmount.Quantity,
		Resolution:       res,
	})
	snap.State = c.advance(snap.Button.Kind)
	return snap, nil
}

// advance folds an observed button kind into the lifecycle state. Dialog
// states are sticky: observations never regress an open dialog.
func (c *Control) advance(kind ButtonKind) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateAwaitingConfirmation, StateSubmitting:
		return c.state
	}
	var event Event
	switch kind {
	case ButtonNeedsApproval:
		event = EventNotApproved
	case ButtonApprovalPending:
		event = EventApprovalSubmitted
	case ButtonReady:
		event = EventQuoteReady
	default:
		return c.state
	}
	if next, err := Transition(c.state, event); err == nil {
		c.state = next
	}
	return c.state
}

// PressPrimary performs the button's primary action for the current state:
// request approval or permit, resume a pending approval, or open the
// confirmation dialog. Returns the approval transaction hash when one was
// submitted.
func (c *Control) PressPrimary(ctx context.Context) (string, error) {
	snap, err := c.Recompute(ctx)
	if err != nil {
		return "", err
	}
	switch snap.Button.Kind {
	case ButtonNeedsApproval:
		hash, err := c.cfg.Approvals.ApproveOrPermit(ctx, snap.ExecTrade)
		if err != nil {
			return "", err
		}
		c.mu.Lock()
		if hash != "" {
			c.state, _ = Transition(c.state, EventApprovalSubmitted)
		} else {
			// Permit path: the signature satisfies approval immediately.
			c.state, _ = Transition(c.state, EventApprovalCleared)
		}
		c.mu.Unlock()
		return hash, nil

	case ButtonApprovalPending:
		// Re-entrant safe: surfaces the outstanding hash, submits nothing.
		return snap.Resolution.PendingHash, nil

	case ButtonReady:
		c.selector.Open(snap.ExecTrade)
		c.mu.Lock()
		c.state, _ = Transition(c.state, EventDialogOpened)
		c.mu.Unlock()
		return "", nil

	default:
		msg := snap.Button.Message
		if msg == "" {
			msg = "action is unavailable"
		}
		return "", clierr.New(clierr.CodeUsage, msg)
	}
}

// Confirm submits the swap for the trade snapshot held by the open dialog.
// The dialog must have been opened via PressPrimary first.
func (c *Control) Confirm(ctx context.Context) Outcome {
	c.mu.Lock()
	next, err := Transition(c.state, EventConfirmed)
	if err != nil {
		c.mu.Unlock()
		return Outcome{Err: err}
	}
	c.state = next
	c.mu.Unlock()

	outcome := c.submit(ctx)

	c.mu.Lock()
	c.state, _ = Transition(c.state, EventSettled)
	c.mu.Unlock()
	return outcome
}

func (c *Control) submit(ctx context.Context) Outcome {
	snapshot, ok := c.selector.Active()
	if !ok {
		return Outcome{Err: clierr.New(clierr.CodeInternal, "confirm without an open dialog")}
	}

	deadline, ok := c.cfg.Deadline.Deadline()
	if !ok {
		c.selector.Close()
		return Outcome{Err: clierr.New(clierr.CodeUsage, "no transaction deadline available")}
	}

	res, err := c.cfg.Approvals.Resolve(ctx, snapshot)
	if err != nil {
		c.selector.Close()
		return Outcome{Err: err}
	}

	quote, err := c.cfg.Quotes.Latest(ctx)
	if err != nil {
		c.selector.Close()
		return Outcome{Err: err}
	}

	cb, err := c.cfg.Builder.Build(CallbackParams{
		Trade:       snapshot,
		SlippageBps: quote.AllowedSlippageBps,
		Recipient:   c.cfg.Wallet.Account,
		Signature:   res.Signature,
		Deadline:    deadline,
		FeeOptions:  quote.FeeOptions,
	})
	if err != nil {
		c.selector.Close()
		return Outcome{Err: err}
	}

	outcome := c.coordinator.Confirm(ctx, &c.selector, cb)
	if outcome.Ok() && res.Signature != nil {
		// The permit rode along inside the swap transaction; it is spent.
		c.cfg.Approvals.DropSignature()
	}
	return outcome
}

// CloseDialog dismisses the confirmation dialog. Refused while a submission
// is in flight.
func (c *Control) CloseDialog() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	next, err := Transition(c.state, EventDialogClosed)
	if err != nil {
		return err
	}
	c.state = next
	c.selector.Close()
	return nil
}

// Status renders a snapshot as the serializable review status.
func (c *Control) Status(ctx context.Context) (model.ReviewStatus, error) {
	snap, err := c.Recompute(ctx)
	if err != nil {
		return model.ReviewStatus{}, err
	}
	status := model.ReviewStatus{
		State:          string(snap.State),
		ButtonKind:     string(snap.Button.Kind),
		ButtonLabel:    snap.Button.Label,
		Disabled:       snap.Button.Disabled,
		Message:        snap.Button.Message,
		ShowLoading:    snap.Button.ShowLoading,
		PendingHash:    snap.Button.PendingHash,
		ExplorerURL:    snap.Button.ExplorerURL,
		SupportsPermit: snap.Resolution.SupportsPermit,
	}
	if t := snap.ExecTrade; t != nil {
		status.TradeType = string(t.Type)
		status.InputSymbol = t.InputAmount.Currency.Symbol
		status.OutputSymbol = t.OutputAmount.Currency.Symbol
		status.InputAmount = t.InputAmount.Info()
		status.OutputAmount = t.OutputAmount.Info()
	}
	return status, nil
}
