package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"pricefeed.mini/pfo/internal/api"
	"pricefeed.mini/pfo/internal/types"
)

func newShowCmd(opts *options) *cobra.Command {
	var account string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Read the current price without submitting a transaction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var acct types.Pubkey
			if account != "" {
				var err error
				if acct, err = types.ParsePubkey(account); err != nil {
					return fmt.Errorf("--account: %w", err)
				}
			}
			view, err := opts.client().Price(cmd.Context(), acct)
			if err != nil {
				return err
			}
			if opts.json {
				return printJSON(cmd.OutOrStdout(), view)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "price:     %s (%d, %d decimals)\nauthority: %s\naccount:   %s\nbump:      %d\n",
				view.Value, view.Price, view.Decimals, view.Authority, view.Address, view.Bump)
			return nil
		},
	}
	cmd.Flags().StringVar(&account, "account", "", "price account address (default: the node's derived address)")
	return cmd
}

func newWatchCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print notifications as the node delivers them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			err := opts.client().Watch(ctx, func(m api.StreamMessage) error {
				if opts.json {
					return printJSON(out, m)
				}
				fmt.Fprintf(out, "%s height=%d tx=%s %s\n", m.Timestamp.Format("15:04:05"), m.Height, m.TxID, m.Name)
				if ev, err := m.Decode(); err == nil {
					for _, kv := range ev.Attributes() {
						fmt.Fprintf(out, "  %s: %s\n", kv[0], kv[1])
					}
				}
				return nil
			})
			if ctx.Err() != nil {
				return nil
			}
			return err
		},
	}
}

func newStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report node health, height and whether the price record exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := opts.client().Health(cmd.Context())
			if err != nil {
				return err
			}
			if opts.json {
				return printJSON(cmd.OutOrStdout(), status)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "status:      %s\nheight:      %d\ninitialized: %t\n",
				status.Status, status.Height, status.Initialized)
			return nil
		},
	}
}
