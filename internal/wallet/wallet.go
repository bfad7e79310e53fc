package wallet

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Context is the connected-wallet view the review control reads: the
// account submitting transactions and the chain it is connected to. A zero
// chain id means "chain unknown" and disables the control.
type Context struct {
	Account common.Address
	ChainID int64
}

func (c Context) ChainKnown() bool { return c.ChainID != 0 }

// DeadlineProvider supplies the transaction deadline for swap submission.
// ok=false means no deadline is available and confirmation must stay
// disabled.
type DeadlineProvider interface {
	Deadline() (*big.Int, bool)
}

// TTLDeadline derives the deadline as now plus a fixed validity window.
type TTLDeadline struct {
	TTL time.Duration
	Now func() time.Time
}

func (d TTLDeadline) Deadline() (*big.Int, bool) {
	if d.TTL <= 0 {
		return nil, false
	}
	now := time.Now
	if d.Now != nil {
		now = d.Now
	}
	return big.NewInt(now().Add(d.TTL).Unix()), true
}

// StaticDeadline returns a fixed deadline, mainly for tests and dry runs.
type StaticDeadline struct {
	Value *big.Int
}

func (d StaticDeadline) Deadline() (*big.Int, bool) {
	if d.Value == nil {
		return nil, false
	}
	return d.Value, true
}
