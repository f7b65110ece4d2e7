package main

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"pricefeed.mini/pfo/internal/types"
)

// submit signs payload with the configured key, targets the node's price
// account and prints the receipt. With unsigned set no key is loaded; the
// node accepts that for get_price only. A rejected transaction is an error.
func submit(ctx context.Context, opts *options, w io.Writer, txType types.TransactionType, unsigned bool, build func(types.Pubkey) interface{}) error {
	var sign func(*types.Transaction) (*types.SignedTransaction, error)
	if unsigned {
		sign = (*types.Transaction).Unsigned
	} else {
		id, err := opts.identity()
		if err != nil {
			return err
		}
		sign = func(tx *types.Transaction) (*types.SignedTransaction, error) { return tx.Sign(id) }
	}
	client := opts.client()
	info, err := client.Address(ctx)
	if err != nil {
		return err
	}

	tx, err := types.NewTransaction(txType, build(info.Address))
	if err != nil {
		return err
	}
	stx, err := sign(tx)
	if err != nil {
		return err
	}
	receipt, err := client.Submit(ctx, stx)
	if err != nil {
		return err
	}

	if opts.json {
		if err := printJSON(w, receipt); err != nil {
			return err
		}
	} else {
		printReceipt(w, receipt)
	}
	if !receipt.OK() {
		return fmt.Errorf("%s rejected: %s", txType, receipt.Log)
	}
	return nil
}

func printReceipt(w io.Writer, r *types.Receipt) {
	status := "ok"
	if !r.OK() {
		status = fmt.Sprintf("rejected (code %d %s)", r.Code, r.Codespace)
	}
	fmt.Fprintf(w, "tx:     %s\nhash:   %s\nheight: %d\nstatus: %s\n", r.TxID, r.Hash, r.Height, status)
	for _, ev := range r.Events {
		keys := make([]string, 0, len(ev.Attributes))
		for k := range ev.Attributes {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprintf(w, "event:  %s", ev.Type)
		for _, k := range keys {
			fmt.Fprintf(w, " %s=%s", k, ev.Attributes[k])
		}
		fmt.Fprintln(w)
	}
}

func newInitializeCmd(opts *options) *cobra.Command {
	var price uint64
	var decimals uint8
	cmd := &cobra.Command{
		Use:   "initialize",
		Short: "Create the price record with this key as authority",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return submit(cmd.Context(), opts, cmd.OutOrStdout(), types.TxInitialize, false, func(acct types.Pubkey) interface{} {
				return types.InitializePayload{PriceAccount: acct, InitialPrice: price, Decimals: decimals}
			})
		},
	}
	cmd.Flags().Uint64Var(&price, "price", 0, "initial price magnitude, e.g. 2197")
	cmd.Flags().Uint8Var(&decimals, "decimals", 0, "decimal exponent, e.g. 2 for 21.97")
	cmd.MarkFlagRequired("price")
	return cmd
}

func newUpdateCmd(opts *options) *cobra.Command {
	var price uint64
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Set a new price (authority only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return submit(cmd.Context(), opts, cmd.OutOrStdout(), types.TxUpdatePrice, false, func(acct types.Pubkey) interface{} {
				return types.UpdatePricePayload{PriceAccount: acct, NewPrice: price}
			})
		},
	}
	cmd.Flags().Uint64Var(&price, "price", 0, "new price magnitude")
	cmd.MarkFlagRequired("price")
	return cmd
}

func newGetCmd(opts *options) *cobra.Command {
	var unsigned bool
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Submit get_price, which emits a PriceInfo notification",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return submit(cmd.Context(), opts, cmd.OutOrStdout(), types.TxGetPrice, unsigned, func(acct types.Pubkey) interface{} {
				return types.GetPricePayload{PriceAccount: acct}
			})
		},
	}
	cmd.Flags().BoolVar(&unsigned, "unsigned", false, "submit without a signature; no key file is needed")
	return cmd
}
