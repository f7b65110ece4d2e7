package discovery

import (
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/grandcat/zeroconf"
)

// Peer is a pfo node seen on the network.
type Peer struct {
	Instance string            `json:"instance"`
	Hostname string            `json:"hostname"`
	Port     int               `json:"port"`
	Addrs    []net.IP          `json:"addrs"`
	Txt      map[string]string `json:"txt"`
}

// URL returns the node's HTTP API address, preferring IPv4.
func (p *Peer) URL() string {
	host := strings.TrimSuffix(p.Hostname, ".")
	if len(p.Addrs) > 0 {
		host = p.Addrs[0].String()
	}
	if host == "" {
		return ""
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(p.Port))
}

// PeerStore is a thread-safe store of discovered peers.
type PeerStore struct {
	mtx   sync.RWMutex
	peers map[string]*Peer // keyed by instance
}

func NewPeerStore() *PeerStore {
	return &PeerStore{peers: make(map[string]*Peer)}
}

// AddFromServiceEntry adds or updates a peer from an mDNS entry.
func (ps *PeerStore) AddFromServiceEntry(e *zeroconf.ServiceEntry) {
	if e == nil {
		return
	}

	txt := make(map[string]string, len(e.Text))
	for _, t := range e.Text {
		if k, v, ok := strings.Cut(t, "="); ok {
			txt[k] = v
		}
	}
	addrs := append([]net.IP(nil), e.AddrIPv4...)
	addrs = append(addrs, e.AddrIPv6...)

	ps.mtx.Lock()
	defer ps.mtx.Unlock()
	ps.peers[e.Instance] = &Peer{
		Instance: e.Instance,
		Hostname: e.HostName,
		Port:     e.Port,
		Addrs:    addrs,
		Txt:      txt,
	}
}

func (ps *PeerStore) Remove(instance string) {
	ps.mtx.Lock()
	defer ps.mtx.Unlock()
	delete(ps.peers, instance)
}

// List returns known peers sorted by instance name.
func (ps *PeerStore) List() []*Peer {
	ps.mtx.RLock()
	defer ps.mtx.RUnlock()
	out := make([]*Peer, 0, len(ps.peers))
	for _, p := range ps.peers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Instance < out[j].Instance })
	return out
}

// ForProgram returns the peers announcing the given program id.
func (ps *PeerStore) ForProgram(programID string) []*Peer {
	var out []*Peer
	for _, p := range ps.List() {
		if p.Txt[TxtProgram] == programID {
			out = append(out, p)
		}
	}
	return out
}
