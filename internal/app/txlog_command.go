package app

import (
	clierr "github.com/ggonzalez94/swapflow/internal/errors"
	"github.com/ggonzalez94/swapflow/internal/id"
	"github.com/ggonzalez94/swapflow/internal/registry"
	"github.com/ggonzalez94/swapflow/internal/txlog"
	"github.com/spf13/cobra"
)

func (s *runtimeState) newTxlogCommand() *cobra.Command {
	root := &cobra.Command{Use: "txlog", Short: "Inspect the local swap transaction log"}

	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded swaps, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := txlog.OpenStore(s.settings.TxlogPath, s.settings.TxlogLockPath)
			if err != nil {
				return clierr.Wrap(clierr.CodeInternal, "open transaction log", err)
			}
			defer func() { _ = store.Close() }()

			records, err := store.ListSwaps(limit)
			if err != nil {
				return clierr.Wrap(clierr.CodeInternal, "list swaps", err)
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), records, nil)
		},
	}
	listCmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of swaps to return")

	root.AddCommand(listCmd)
	return root
}

func (s *runtimeState) newDisplayCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "display",
		Short: "Show the most recently submitted swap transaction",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := txlog.OpenStore(s.settings.TxlogPath, s.settings.TxlogLockPath)
			if err != nil {
				return clierr.Wrap(clierr.CodeInternal, "open transaction log", err)
			}
			defer func() { _ = store.Close() }()

			display := txlog.NewDisplay(store)
			hash, ok := display.Current()
			data := map[string]any{
				"has_transaction": ok,
			}
			if ok {
				data["tx_hash"] = hash
				if chain, err := id.ParseChain(s.settings.Chain); err == nil {
					data["explorer_url"] = registry.ExplorerTxURL(chain.EVMChainID, hash)
				}
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), data, nil)
		},
	}
}
