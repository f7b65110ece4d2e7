// Package discovery announces pfo nodes on the local network over mDNS
// (zeroconf) and browses for them, so operators can find a node's API
// without knowing its address.
package discovery

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"
)

const (
	ServiceName = "_pfo._tcp"
	Domain      = "local."

	TxtProgram = "program"
	TxtMode    = "mode"
	TxtVersion = "version"
)

// Announcer keeps the local node registered.
type Announcer struct {
	server *zeroconf.Server
	log    *zap.Logger
}

// Announce registers this node's API port with the given TXT values.
func Announce(port int, txt map[string]string, log *zap.Logger) (*Announcer, error) {
	if log == nil {
		log = zap.NewNop()
	}
	hostname, _ := os.Hostname()

	records := make([]string, 0, len(txt))
	for k, v := range txt {
		records = append(records, k+"="+v)
	}

	server, err := zeroconf.Register(hostname, ServiceName, Domain, port, records, nil)
	if err != nil {
		return nil, fmt.Errorf("mDNS register: %w", err)
	}
	log.Info("mDNS: announced service", zap.String("service", ServiceName), zap.String("host", hostname), zap.Int("port", port))
	return &Announcer{server: server, log: log}, nil
}

// Stop withdraws the announcement.
func (a *Announcer) Stop() {
	a.log.Info("mDNS: withdrawing service")
	a.server.Shutdown()
}

// Browse collects peers for the given duration.
func Browse(ctx context.Context, wait time.Duration) (*PeerStore, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("mDNS resolver: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	store := NewPeerStore()
	entries := make(chan *zeroconf.ServiceEntry)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for entry := range entries {
			if entry.TTL == 0 {
				store.Remove(entry.Instance)
				continue
			}
			store.AddFromServiceEntry(entry)
		}
	}()

	if err := resolver.Browse(ctx, ServiceName, Domain, entries); err != nil {
		return nil, fmt.Errorf("mDNS browse: %w", err)
	}
	<-ctx.Done()
	<-done
	return store, nil
}
