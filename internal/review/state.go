package review

import (
	clierr "github.com/ggonzalez94/swapflow/internal/errors"
)

// State is the explicit lifecycle position of the review control.
type State string

const (
	StateIdle                 State = "idle"
	StateAwaitingApproval     State = "awaiting-approval"
	StateApprovalPending      State = "approval-pending"
	StateReady                State = "ready"
	StateAwaitingConfirmation State = "awaiting-confirmation"
	StateSubmitting           State = "submitting"
)

// Event is an input to the state machine.
type Event string

const (
	// EventQuoteReady fires when a trade resolves with sufficient allowance.
	EventQuoteReady Event = "quote-ready"
	// EventNotApproved fires when the resolver reports a missing allowance.
	EventNotApproved Event = "not-approved"
	// EventApprovalSubmitted fires when an approval transaction lands in the
	// pending registry.
	EventApprovalSubmitted Event = "approval-submitted"
	// EventApprovalCleared fires when the registry clears and the allowance
	// check passes, or a permit signature is obtained.
	EventApprovalCleared Event = "approval-cleared"
	// EventDialogOpened fires when the user opens the confirmation dialog.
	EventDialogOpened Event = "dialog-opened"
	// EventConfirmed fires when the user confirms the swap.
	EventConfirmed Event = "confirmed"
	// EventSettled fires when the submission resolves, success or failure.
	EventSettled Event = "settled"
	// EventDialogClosed fires when the user dismisses the dialog.
	EventDialogClosed Event = "dialog-closed"
)

// Transition is the pure state-machine step. It returns an error for inputs
// the lifecycle forbids; notably, a dialog close during submission is
// rejected so a settling swap can never race its own cleanup.
func Transition(s State, e Event) (State, error) {
	switch e {
	case EventQuoteReady:
		switch s {
		case StateIdle, StateAwaitingApproval, StateApprovalPending, StateReady:
			return StateReady, nil
		}
	case EventNotApproved:
		switch s {
		case StateIdle, StateReady, StateAwaitingApproval:
			return StateAwaitingApproval, nil
		}
	case EventApprovalSubmitted:
		// Idle is allowed: a restart can observe an approval submitted by a
		// previous run through the pending registry.
		switch s {
		case StateIdle, StateAwaitingApproval, StateApprovalPending:
			return StateApprovalPending, nil
		}
	case EventApprovalCleared:
		switch s {
		case StateAwaitingApproval, StateApprovalPending:
			return StateReady, nil
		}
	case EventDialogOpened:
		if s == StateReady {
			return StateAwaitingConfirmation, nil
		}
	case EventConfirmed:
		if s == StateAwaitingConfirmation {
			return StateSubmitting, nil
		}
	case EventSettled:
		if s == StateSubmitting {
			return StateIdle, nil
		}
	case EventDialogClosed:
		if s == StateSubmitting {
			return s, clierr.New(clierr.CodeInternal, "dialog is locked while a swap submission is in flight")
		}
		return StateIdle, nil
	}
	return s, clierr.New(clierr.CodeInternal, "invalid transition: "+string(s)+" + "+string(e))
}
