package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pricefeed.mini/pfo/internal/discovery"
	"pricefeed.mini/pfo/internal/feeder"
	"pricefeed.mini/pfo/internal/logger"
)

func newFeedCmd(opts *options) *cobra.Command {
	var (
		source   string
		field    string
		interval time.Duration
		once     bool
	)
	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Poll an HTTP price source and submit update_price when it changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if source == "" {
				return errors.New("--source is required")
			}
			id, err := opts.identity()
			if err != nil {
				return err
			}
			log, err := logger.NewZap("info")
			if err != nil {
				return err
			}
			defer log.Sync()

			poller := feeder.NewPoller(interval, feeder.NewHTTPSource(source, field), opts.client(), id, log.Named("feeder"))
			if once {
				receipt, err := poller.PollOnce(cmd.Context())
				if err != nil {
					return err
				}
				if receipt == nil {
					fmt.Fprintln(cmd.OutOrStdout(), "price unchanged")
					return nil
				}
				if opts.json {
					return printJSON(cmd.OutOrStdout(), receipt)
				}
				printReceipt(cmd.OutOrStdout(), receipt)
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			log.Info("feeding prices", zap.String("source", source), zap.Duration("interval", interval))
			if err := poller.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "URL returning a JSON document with the price")
	cmd.Flags().StringVar(&field, "field", "price", "dot-separated path of the price in the source document")
	cmd.Flags().DurationVar(&interval, "interval", 30*time.Second, "poll interval")
	cmd.Flags().BoolVar(&once, "once", false, "poll a single time and exit")
	return cmd
}

func newDiscoverCmd(opts *options) *cobra.Command {
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Browse the local network for pfo nodes announced over mDNS",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			peers, err := discovery.Browse(cmd.Context(), wait)
			if err != nil {
				return err
			}
			list := peers.List()
			if opts.json {
				return printJSON(cmd.OutOrStdout(), list)
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no nodes found")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "INSTANCE\tURL\tMODE\tPROGRAM")
			for _, p := range list {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Instance, p.URL(), p.Txt[discovery.TxtMode], p.Txt[discovery.TxtProgram])
			}
			return tw.Flush()
		},
	}
	cmd.Flags().DurationVar(&wait, "timeout", 3*time.Second, "how long to listen for announcements")
	return cmd
}
