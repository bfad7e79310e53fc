package review

import (
	"fmt"
	"math/big"

	"github.com/ggonzalez94/swapflow/internal/allowance"
	"github.com/ggonzalez94/swapflow/internal/registry"
)

// ButtonKind is the single active affordance of the primary button.
// Exactly one kind holds per recompute.
type ButtonKind string

const (
	ButtonDisabled        ButtonKind = "disabled"
	ButtonNeedsApproval   ButtonKind = "needs-approval"
	ButtonApprovalPending ButtonKind = "approval-pending"
	ButtonReady           ButtonKind = "ready"
)

const readyLabel = "Review swap"

// ButtonAction is the derived view-state the button renders.
type ButtonAction struct {
	Kind        ButtonKind
	Label       string
	Disabled    bool
	Message     string
	ShowLoading bool
	PendingHash string
	ExplorerURL string
}

// ButtonInputs is everything the derivation reads at one recompute.
type ButtonInputs struct {
	DisabledByCaller bool
	ChainKnown       bool
	ChainID          int64
	InputSymbol      string
	Balance          *big.Int
	Required         *big.Int
	Resolution       allowance.Resolution
}

// DeriveButton computes the button state. Precedence, top first: hard
// disables (caller, unknown chain, in-flight signature, insufficient
// balance, absent trade data), then needs-approval, then approval-pending,
// then ready.
func DeriveButton(in ButtonInputs) ButtonAction {
	switch {
	case in.DisabledByCaller:
		return ButtonAction{Kind: ButtonDisabled, Disabled: true}
	case !in.ChainKnown:
		return ButtonAction{Kind: ButtonDisabled, Disabled: true, Message: "connect a wallet to continue"}
	case in.Resolution.LoadingSignature:
		return ButtonAction{Kind: ButtonDisabled, Disabled: true, ShowLoading: true, Message: "waiting for wallet signature"}
	case in.Required == nil:
		return ButtonAction{Kind: ButtonDisabled, Disabled: true, Message: "waiting for quote"}
	case in.Balance == nil || in.Balance.Cmp(in.Required) < 0:
		return ButtonAction{Kind: ButtonDisabled, Disabled: true, Message: fmt.Sprintf("insufficient %s balance", in.InputSymbol)}
	}

	if in.Resolution.NotApproved {
		label := fmt.Sprintf("Approve %s first", in.InputSymbol)
		if in.Resolution.SupportsPermit {
			label = fmt.Sprintf("Allow %s first", in.InputSymbol)
		}
		return ButtonAction{Kind: ButtonNeedsApproval, Label: label}
	}

	if in.Resolution.PendingApproval {
		return ButtonAction{
			Kind:        ButtonApprovalPending,
			Disabled:    true,
			ShowLoading: true,
			Message:     "approval transaction pending",
			PendingHash: in.Resolution.PendingHash,
			ExplorerURL: registry.ExplorerTxURL(in.ChainID, in.Resolution.PendingHash),
		}
	}

	return ButtonAction{Kind: ButtonReady, Label: readyLabel}
}
