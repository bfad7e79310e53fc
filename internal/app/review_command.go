package app

import (
	"context"
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	clierr "github.com/ggonzalez94/swapflow/internal/errors"
	"github.com/ggonzalez94/swapflow/internal/execution"
	"github.com/ggonzalez94/swapflow/internal/model"
	"github.com/ggonzalez94/swapflow/internal/registry"
	"github.com/ggonzalez94/swapflow/internal/review"
	"github.com/spf13/cobra"
)

func (s *runtimeState) newReviewCommand() *cobra.Command {
	root := &cobra.Command{Use: "review", Short: "Review-swap control: status, approval, confirmation"}

	var flags pairFlags
	addPairFlags := func(cmd *cobra.Command) {
		cmd.Flags().StringVar(&flags.From, "from", "", "Input token (symbol/address/CAIP-19)")
		cmd.Flags().StringVar(&flags.To, "to", "", "Output token (symbol/address/CAIP-19)")
		cmd.Flags().StringVar(&flags.AmountBase, "amount", "", "Amount in base units")
		cmd.Flags().StringVar(&flags.AmountDecimal, "amount-decimal", "", "Amount in decimal units")
		cmd.Flags().StringVar(&flags.TradeType, "type", "exact-input", "Trade type (exact-input|exact-output)")
		cmd.Flags().StringVar(&flags.KeySource, "key-source", "auto", "Signing key source (auto|env|file|keystore)")
		_ = cmd.MarkFlagRequired("from")
		_ = cmd.MarkFlagRequired("to")
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Derive the current button state for a trade",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := s.commandContext()
			defer cancel()
			st, err := s.buildStack(ctx, flags)
			if err != nil {
				return err
			}
			defer st.close()
			status, err := st.control.Status(ctx)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), status, nil)
		},
	}
	addPairFlags(statusCmd)

	pressCmd := &cobra.Command{
		Use:   "press",
		Short: "Perform the button's primary action (approve, permit, or open the dialog)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := s.commandContext()
			defer cancel()
			st, err := s.buildStack(ctx, flags)
			if err != nil {
				return err
			}
			defer st.close()

			stop := s.startSpinner("waiting for wallet")
			hash, err := st.control.PressPrimary(ctx)
			stop()
			if err != nil {
				return err
			}

			status, err := st.control.Status(ctx)
			if err != nil {
				return err
			}
			data := map[string]any{
				"status": status,
			}
			if hash != "" {
				data["approval_hash"] = hash
				data["explorer_url"] = registry.ExplorerTxURL(st.chain.EVMChainID, hash)
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), data, nil)
		},
	}
	addPairFlags(pressCmd)

	var wait bool
	var waitTimeout time.Duration
	confirmCmd := &cobra.Command{
		Use:   "confirm",
		Short: "Open the confirmation dialog and submit the swap",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := s.commandContext()
			defer cancel()
			st, err := s.buildStack(ctx, flags)
			if err != nil {
				return err
			}
			defer st.close()

			snap, err := st.control.Recompute(ctx)
			if err != nil {
				return err
			}
			if snap.Button.Kind != review.ButtonReady {
				msg := snap.Button.Message
				if msg == "" {
					msg = string(snap.Button.Kind)
				}
				return clierr.New(clierr.CodeUsage, "swap is not ready to confirm: "+msg)
			}
			if _, err := st.control.PressPrimary(ctx); err != nil {
				return err
			}

			stop := s.startSpinner("submitting swap")
			outcome := st.control.Confirm(ctx)
			stop()
			if outcome.Err != nil {
				return outcome.Err
			}

			result := model.SwapResult{
				TxHash:      outcome.TxHash,
				TradeType:   string(snap.ExecTrade.Type),
				ExplorerURL: registry.ExplorerTxURL(st.chain.EVMChainID, outcome.TxHash),
				SubmittedAt: s.runner.now().UTC().Format(time.RFC3339),
			}
			result.InputAmount = snap.ExecTrade.InputAmount.Info()
			result.OutputAmount = snap.ExecTrade.OutputAmount.Info()

			if wait {
				stop = s.startSpinner("waiting for inclusion")
				err = execution.WaitMined(ctx, st.eth, common.HexToHash(outcome.TxHash), 0, waitTimeout)
				stop()
				if err != nil {
					return err
				}
			}
			s.printSuccessLine(fmt.Sprintf("swap submitted: %s", result.ExplorerURL))
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), result, nil)
		},
	}
	addPairFlags(confirmCmd)
	confirmCmd.Flags().BoolVar(&wait, "wait", false, "Wait for the transaction to be mined")
	confirmCmd.Flags().DurationVar(&waitTimeout, "wait-timeout", 2*time.Minute, "Maximum time to wait for inclusion")

	approvalCmd := &cobra.Command{
		Use:   "approval",
		Short: "Check the pending approval for the trade's input token",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := s.commandContext()
			defer cancel()
			st, err := s.buildStack(ctx, flags)
			if err != nil {
				return err
			}
			defer st.close()

			snap, err := st.control.Recompute(ctx)
			if err != nil {
				return err
			}
			data := map[string]any{
				"state":           string(snap.State),
				"not_approved":    snap.Resolution.NotApproved,
				"pending":         snap.Resolution.PendingApproval,
				"supports_permit": snap.Resolution.SupportsPermit,
			}
			if snap.Resolution.PendingHash != "" {
				data["pending_hash"] = snap.Resolution.PendingHash
				data["explorer_url"] = registry.ExplorerTxURL(st.chain.EVMChainID, snap.Resolution.PendingHash)
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), data, nil)
		},
	}
	addPairFlags(approvalCmd)

	root.AddCommand(statusCmd)
	root.AddCommand(pressCmd)
	root.AddCommand(confirmCmd)
	root.AddCommand(approvalCmd)
	return root
}

func (s *runtimeState) commandContext() (context.Context, context.CancelFunc) {
	timeout := s.settings.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(context.Background(), timeout)
}

// startSpinner shows progress on stderr in plain mode only, so json output
// stays machine-clean. The returned func stops it.
func (s *runtimeState) startSpinner(message string) func() {
	if s.settings.OutputMode != "plain" {
		return func() {}
	}
	sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(s.runner.stderr))
	sp.Suffix = " " + message
	sp.Start()
	return sp.Stop
}

func (s *runtimeState) printSuccessLine(message string) {
	if s.settings.OutputMode != "plain" {
		return
	}
	green := color.New(color.FgGreen)
	_, _ = green.Fprintf(s.runner.stderr, "✔ %s\n", message)
}
