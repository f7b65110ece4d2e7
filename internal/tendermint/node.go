// Package tendermint connects the pfo ABCI application to Tendermint.
//
// In tendermint mode pfo listens for ABCI connections on a socket and a
// separate tendermint process connects to it with --proxy_app. Clients
// submit transactions through the node's RPC endpoint (see broadcast.go).
package tendermint

import (
	"errors"
	"fmt"
	"os"
	"strings"

	abciserver "github.com/tendermint/tendermint/abci/server"
	abci "github.com/tendermint/tendermint/abci/types"
	"github.com/tendermint/tendermint/libs/service"
	"go.uber.org/zap"
)

const DefaultSocketAddress = "unix://pfo.sock"

// Config holds configuration for the ABCI server and Tendermint connection.
type Config struct {
	// Home is the directory for Tendermint data and config
	Home string
	// SocketAddress is where the ABCI server listens, e.g. "unix://pfo.sock"
	// or "tcp://127.0.0.1:26658"
	SocketAddress string
}

// ABCIServer serves an ABCI application on a socket.
type ABCIServer struct {
	server service.Service
	socket string
	log    *zap.Logger
}

// NewABCIServer creates the server. Call Start to begin listening.
func NewABCIServer(app abci.Application, cfg Config, log *zap.Logger) (*ABCIServer, error) {
	if app == nil {
		return nil, errors.New("ABCI application cannot be nil")
	}
	if cfg.SocketAddress == "" {
		cfg.SocketAddress = DefaultSocketAddress
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ABCIServer{
		server: abciserver.NewSocketServer(cfg.SocketAddress, app),
		socket: cfg.SocketAddress,
		log:    log,
	}, nil
}

// Start begins listening. A stale unix socket file from an unclean
// shutdown is removed first.
func (s *ABCIServer) Start() error {
	s.removeSocketFile()
	if err := s.server.Start(); err != nil {
		return fmt.Errorf("failed to start ABCI server: %w", err)
	}
	s.log.Info("ABCI server listening", zap.String("socket", s.socket))
	return nil
}

// Stop shuts the server down and removes the socket file.
func (s *ABCIServer) Stop() error {
	if s.server.IsRunning() {
		if err := s.server.Stop(); err != nil {
			return fmt.Errorf("failed to stop ABCI server: %w", err)
		}
	}
	s.removeSocketFile()
	return nil
}

func (s *ABCIServer) IsRunning() bool {
	return s.server.IsRunning()
}

// SocketAddress returns the address the server listens on.
func (s *ABCIServer) SocketAddress() string {
	return s.socket
}

func (s *ABCIServer) removeSocketFile() {
	path, ok := strings.CutPrefix(s.socket, "unix://")
	if !ok {
		return
	}
	if _, err := os.Stat(path); err == nil {
		os.Remove(path)
	}
}
