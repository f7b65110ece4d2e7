// Package main is the entry point for the pfo price feed node.
// It restores committed state, runs the oracle program behind either the
// in-process submitter or a Tendermint ABCI socket, and serves the HTTP API.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"pricefeed.mini/pfo/internal/abci"
	"pricefeed.mini/pfo/internal/api"
	"pricefeed.mini/pfo/internal/config"
	"pricefeed.mini/pfo/internal/discovery"
	"pricefeed.mini/pfo/internal/docs"
	"pricefeed.mini/pfo/internal/ledger"
	"pricefeed.mini/pfo/internal/logger"
	"pricefeed.mini/pfo/internal/notify"
	"pricefeed.mini/pfo/internal/oracle"
	"pricefeed.mini/pfo/internal/store"
	"pricefeed.mini/pfo/internal/tendermint"
	"pricefeed.mini/pfo/internal/types"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "pfo: %v\n", err)
		os.Exit(1)
	}
	cfg.Port = resolvePort(cfg.Port)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "pfo: invalid config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewZap(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pfo: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("pfo exited", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	log.Info("pfo starting", zap.String("mode", cfg.Mode), zap.String("data_file", cfg.DataFile))

	st, err := store.NewStore(cfg.DataFile)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	accounts, err := st.LoadAccounts()
	if err != nil {
		return fmt.Errorf("load accounts: %w", err)
	}
	commit, err := st.LoadCommitInfo()
	if err != nil {
		return fmt.Errorf("load commit info: %w", err)
	}
	delivered, err := st.LoadDelivered()
	if err != nil {
		return fmt.Errorf("load delivered txs: %w", err)
	}
	state := ledger.NewState()
	state.Load(accounts)
	state.LoadDelivered(delivered)
	log.Info("state restored",
		zap.Int("accounts", state.Len()),
		zap.Int("delivered_txs", state.DeliveredCount()),
		zap.Int64("height", commit.Height))

	oracleCfg, err := cfg.Oracle()
	if err != nil {
		return err
	}
	program, err := oracle.New(oracleCfg, log.Named("oracle"))
	if err != nil {
		return err
	}
	addr, bump := program.Address()
	log.Info("price account derived", zap.Stringer("address", addr), zap.Uint8("bump", bump))

	ring := logger.New(cfg.LogBuffer)
	broker := notify.NewBroker(16)

	app := abci.NewABCIApplication(state, program, log.Named("abci"))
	app.Restore(commit)
	app.Persister = st
	app.ProgramLog = ring
	app.EventHandler = func(notes []notify.Notification) { broker.Publish(notes...) }

	var backend api.Backend
	switch cfg.Mode {
	case config.ModeTendermint:
		client, shutdown, err := startTendermint(ctx, cfg, app, log)
		if err != nil {
			return err
		}
		defer shutdown()
		backend = client
	default:
		backend = abci.NewLocalSubmitter(app)
	}

	svc := api.NewService(backend, broker, ring)
	svc.Docs = docs.NewService()
	svc.Backups = st
	svc.MaxBackups = cfg.MaxBackups
	svc.Mode = cfg.Mode

	if err := ensurePortAvailable(cfg.Port); err != nil {
		return fmt.Errorf("port %d unavailable: %w", cfg.Port, err)
	}
	server := api.NewServer(svc, cfg.Port, log.Named("api"))
	serverErrors := server.Start()

	if cfg.Announce {
		announcer, err := discovery.Announce(cfg.Port, map[string]string{
			discovery.TxtProgram: cfg.ProgramID,
			discovery.TxtMode:    cfg.Mode,
			discovery.TxtVersion: types.Version,
		}, log.Named("discovery"))
		if err != nil {
			log.Warn("mDNS announce failed", zap.Error(err))
		} else {
			defer announcer.Stop()
		}
	}

	select {
	case err := <-serverErrors:
		return fmt.Errorf("API server exited: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("API server shutdown", zap.Error(err))
	}
	if path, err := st.BackupCurrent(cfg.MaxBackups); err != nil {
		log.Warn("shutdown backup failed", zap.Error(err))
	} else if path != "" {
		log.Info("state backed up", zap.String("path", path))
	}
	return nil
}

// startTendermint serves app on the ABCI socket and, when configured, runs
// the tendermint node process alongside it.
func startTendermint(ctx context.Context, cfg *config.Config, app *abci.ABCIApplication, log *zap.Logger) (*tendermint.BroadcastClient, func(), error) {
	tmCfg := tendermint.Config{Home: cfg.TendermintHome, SocketAddress: cfg.SocketAddress}

	srv, err := tendermint.NewABCIServer(app, tmCfg, log.Named("tendermint"))
	if err != nil {
		return nil, nil, err
	}
	if err := srv.Start(); err != nil {
		return nil, nil, err
	}
	shutdown := func() {
		if err := srv.Stop(); err != nil {
			log.Warn("ABCI server stop", zap.Error(err))
		}
	}

	if cfg.SpawnTendermint {
		if err := tendermint.InitTendermint(ctx, tmCfg.Home); err != nil {
			shutdown()
			return nil, nil, err
		}
		cmd := tendermint.NodeCommand(ctx, tmCfg)
		if err := cmd.Start(); err != nil {
			shutdown()
			return nil, nil, fmt.Errorf("start tendermint: %w", err)
		}
		log.Info("tendermint node started", zap.Int("pid", cmd.Process.Pid))
		go func() {
			if err := cmd.Wait(); err != nil && ctx.Err() == nil {
				log.Error("tendermint node exited", zap.Error(err))
			}
		}()
	}

	return tendermint.NewBroadcastClient(cfg.TendermintRPC), shutdown, nil
}

func resolvePort(defaultPort int) int {
	portStr := os.Getenv("PORT")
	if portStr == "" {
		return defaultPort
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		fmt.Fprintf(os.Stderr, "pfo: invalid PORT value %q, using %d\n", portStr, defaultPort)
		return defaultPort
	}
	return port
}

func ensurePortAvailable(port int) error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return err
	}
	return listener.Close()
}
