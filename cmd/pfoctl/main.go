// Command pfoctl manages keys and talks to a pfo node: it derives the price
// account address, signs and submits oracle transactions, reads the price
// and follows the notification stream.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"pricefeed.mini/pfo/internal/api"
	"pricefeed.mini/pfo/internal/identity"
	"pricefeed.mini/pfo/internal/types"
)

type options struct {
	node    string
	keyFile string
	json    bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "pfoctl",
		Short:         "Operate a pfo price feed node",
		Version:       types.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&opts.node, "node", envOr("PFO_NODE", "http://localhost:8080"), "pfo node HTTP address")
	root.PersistentFlags().StringVar(&opts.keyFile, "key", envOr("PFO_KEY", "pfo_key.pem"), "PEM private key used to sign transactions")
	root.PersistentFlags().BoolVar(&opts.json, "json", false, "print JSON instead of text")

	root.AddCommand(
		newKeygenCmd(opts),
		newAddressCmd(opts),
		newInitializeCmd(opts),
		newUpdateCmd(opts),
		newGetCmd(opts),
		newShowCmd(opts),
		newStatusCmd(opts),
		newWatchCmd(opts),
		newFeedCmd(opts),
		newDiscoverCmd(opts),
	)
	return root
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (o *options) client() *api.Client {
	return api.NewClient(o.node)
}

func (o *options) identity() (*identity.Identity, error) {
	id, err := identity.Load(o.keyFile)
	if err != nil {
		return nil, fmt.Errorf("%w (run pfoctl keygen first)", err)
	}
	return id, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
