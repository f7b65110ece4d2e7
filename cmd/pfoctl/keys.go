package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pricefeed.mini/pfo/internal/address"
	"pricefeed.mini/pfo/internal/identity"
	"pricefeed.mini/pfo/internal/oracle"
	"pricefeed.mini/pfo/internal/types"
)

func newKeygenCmd(opts *options) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an ed25519 signing key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(opts.keyFile); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", opts.keyFile)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			id, err := identity.Generate(opts.keyFile)
			if err != nil {
				return err
			}
			if opts.json {
				return printJSON(cmd.OutOrStdout(), map[string]string{"key_file": opts.keyFile, "pubkey": id.String()})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\npubkey: %s\n", opts.keyFile, id)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing key file")
	return cmd
}

func newAddressCmd(opts *options) *cobra.Command {
	var programID, seed string
	var remote bool
	cmd := &cobra.Command{
		Use:   "address",
		Short: "Derive the price account address",
		Long: "Derive the price account address for a program id and seed. With --remote\n" +
			"the node reports the address it uses instead.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var info *types.AddressInfo
			if remote {
				var err error
				if info, err = opts.client().Address(cmd.Context()); err != nil {
					return err
				}
			} else {
				pid, err := types.ParsePubkey(programID)
				if err != nil {
					return fmt.Errorf("--program-id: %w", err)
				}
				addr, bump, err := address.FindProgramAddress([][]byte{[]byte(seed)}, pid)
				if err != nil {
					return err
				}
				info = &types.AddressInfo{Address: addr, Bump: bump, ProgramID: pid, Seed: seed}
			}

			if opts.json {
				return printJSON(cmd.OutOrStdout(), info)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "address:    %s\nbump:       %d\nprogram id: %s\nseed:       %s\n",
				info.Address, info.Bump, info.ProgramID, info.Seed)
			return nil
		},
	}
	cmd.Flags().StringVar(&programID, "program-id", oracle.DefaultProgramID, "program id")
	cmd.Flags().StringVar(&seed, "seed", oracle.DefaultSeed, "price record seed")
	cmd.Flags().BoolVar(&remote, "remote", false, "ask the node instead of deriving locally")
	return cmd
}
