package tendermint

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// Home returns the Tendermint home directory: TMHOME if set, otherwise
// ~/.tendermint.
func Home() string {
	if home := os.Getenv("TMHOME"); home != "" {
		return home
	}
	return filepath.Join(os.Getenv("HOME"), ".tendermint")
}

func resolveHome(home string) string {
	if home == "" {
		return Home()
	}
	return home
}

// Initialized reports whether home already holds a Tendermint config.
func Initialized(home string) bool {
	_, err := os.Stat(filepath.Join(resolveHome(home), "config", "config.toml"))
	return err == nil
}

// InitTendermint runs `tendermint init` once for home.
func InitTendermint(ctx context.Context, home string) error {
	home = resolveHome(home)
	if Initialized(home) {
		return nil
	}

	cmd := exec.CommandContext(ctx, "tendermint", "init", "--home", home)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to initialize Tendermint: %w", err)
	}
	return nil
}

// NodeCommand returns the command that runs a Tendermint node against the
// ABCI server at cfg.SocketAddress. The process is killed when ctx ends.
func NodeCommand(ctx context.Context, cfg Config) *exec.Cmd {
	socket := cfg.SocketAddress
	if socket == "" {
		socket = DefaultSocketAddress
	}
	cmd := exec.CommandContext(ctx, "tendermint", "node",
		"--home", resolveHome(cfg.Home),
		"--proxy_app", socket,
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd
}
