package app

import (
	"github.com/ggonzalez94/swapflow/internal/trade"
	"github.com/spf13/cobra"
)

func (s *runtimeState) newQuoteCommand() *cobra.Command {
	var flags pairFlags
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Fetch a priced trade for a token pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := s.commandContext()
			defer cancel()

			_, req, err := s.resolvePair(flags)
			if err != nil {
				return err
			}
			source := trade.NewSource(s.quoteClient(), req, nil, nil)
			quote, err := source.Latest(ctx)
			if err != nil {
				return err
			}
			t := quote.Trade
			data := map[string]any{
				"trade_type":    string(t.Type),
				"input_symbol":  t.InputAmount.Currency.Symbol,
				"output_symbol": t.OutputAmount.Currency.Symbol,
				"input_amount":  t.InputAmount.Info(),
				"output_amount": t.OutputAmount.Info(),
				"route":         t.Route,
				"slippage_bps":  quote.AllowedSlippageBps,
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), data, nil)
		},
	}
	cmd.Flags().StringVar(&flags.From, "from", "", "Input token (symbol/address/CAIP-19)")
	cmd.Flags().StringVar(&flags.To, "to", "", "Output token (symbol/address/CAIP-19)")
	cmd.Flags().StringVar(&flags.AmountBase, "amount", "", "Amount in base units")
	cmd.Flags().StringVar(&flags.AmountDecimal, "amount-decimal", "", "Amount in decimal units")
	cmd.Flags().StringVar(&flags.TradeType, "type", "exact-input", "Trade type (exact-input|exact-output)")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}
