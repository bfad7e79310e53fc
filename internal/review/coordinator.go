package review

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ggonzalez94/swapflow/internal/allowance"
	clierr "github.com/ggonzalez94/swapflow/internal/errors"
	"github.com/ggonzalez94/swapflow/internal/trade"
	"github.com/ggonzalez94/swapflow/internal/txlog"
)

// CallbackParams is the full input tuple a swap callback is built from.
// The callback is rebuilt whenever any element changes.
type CallbackParams struct {
	Trade       *trade.Trade
	SlippageBps int64
	Recipient   common.Address
	Signature   *allowance.SignatureData
	Deadline    *big.Int
	FeeOptions  *trade.FeeOptions
}

// SwapCallback submits the prepared swap and returns its transaction hash.
type SwapCallback func(ctx context.Context) (string, error)

// CallbackBuilder turns callback params into a submittable callback.
// Implemented by the router layer.
type CallbackBuilder interface {
	Build(params CallbackParams) (SwapCallback, error)
}

// SwapLog receives one record per successful submission. Satisfied by
// *txlog.Store.
type SwapLog interface {
	RecordSwap(rec txlog.SwapRecord) error
}

// DisplaySlot is the shared "currently highlighted transaction" writer.
// Satisfied by *txlog.Display.
type DisplaySlot interface {
	Set(txHash string) error
}

// Outcome is the typed result of a confirm: either a submission happened
// (with its hash or its failure) or the confirm was a no-op.
type Outcome struct {
	Submitted bool
	TxHash    string
	Err       error
}

func (o Outcome) Ok() bool { return o.Submitted && o.Err == nil }

// Coordinator drives swap submission. It owns the submitting lock: at most
// one swap is in flight at a time, and a second confirm while one is running
// is a no-op rather than a duplicate submission.
type Coordinator struct {
	log     SwapLog
	display DisplaySlot

	mu         sync.Mutex
	submitting bool
}

func NewCoordinator(log SwapLog, display DisplaySlot) *Coordinator {
	return &Coordinator{log: log, display: display}
}

func (c *Coordinator) Submitting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitting
}

// Confirm invokes the swap callback for the selector's held snapshot. On
// success it publishes the hash to the display slot and appends one swap
// record; on failure it records nothing. The snapshot is cleared after the
// submission settles in every case, so the dialog always closes.
func (c *Coordinator) Confirm(ctx context.Context, selector *TradeSelector, cb SwapCallback) Outcome {
	c.mu.Lock()
	if c.submitting {
		c.mu.Unlock()
		return Outcome{}
	}
	c.submitting = true
	c.mu.Unlock()
	defer func() {
		selector.Close()
		c.mu.Lock()
		c.submitting = false
		c.mu.Unlock()
	}()

	snapshot, ok := selector.Active()
	if !ok {
		return Outcome{Err: clierr.New(clierr.CodeUsage, "confirmation dialog is not open")}
	}
	if cb == nil {
		return Outcome{Err: clierr.New(clierr.CodeUsage, "swap is not ready to submit")}
	}

	hash, err := cb(ctx)
	if err != nil {
		return Outcome{Submitted: true, Err: err}
	}

	out := Outcome{Submitted: true, TxHash: hash}
	if !snapshot.InputAmount.Valid() || !snapshot.OutputAmount.Valid() {
		// The resolver must never let a trade without both amounts reach
		// confirmation; reaching this point is a broken upstream contract.
		out.Err = clierr.New(clierr.CodeInternal, "swap confirmed without input and output amounts")
		return out
	}
	if c.display != nil {
		if err := c.display.Set(hash); err != nil {
			out.Err = clierr.Wrap(clierr.CodeInternal, "publish transaction to display state", err)
			return out
		}
	}
	if c.log != nil {
		if err := c.log.RecordSwap(swapRecord(hash, snapshot)); err != nil {
			out.Err = clierr.Wrap(clierr.CodeInternal, "record swap transaction", err)
		}
	}
	return out
}

func swapRecord(hash string, t *trade.Trade) txlog.SwapRecord {
	return txlog.SwapRecord{
		TxHash:         hash,
		TradeType:      string(t.Type),
		InputSymbol:    t.InputAmount.Currency.Symbol,
		InputAmount:    t.InputAmount.Quantity.String(),
		InputDecimals:  t.InputAmount.Currency.Decimals,
		OutputSymbol:   t.OutputAmount.Currency.Symbol,
		OutputAmount:   t.OutputAmount.Quantity.String(),
		OutputDecimals: t.OutputAmount.Currency.Decimals,
	}
}
