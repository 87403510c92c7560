// Package discovery implements the UDP broadcast peer discovery service:
// periodic self-advertisement, a listener that ingests peer
// advertisements into the Peer Table, and a cleanup sweep that evicts
// stale entries.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/example/lanshare/internal/models"
	"github.com/example/lanshare/internal/peer"
)

const (
	maxDatagramSize = 1024
	sweepInterval   = 10 * time.Second
	peerTimeout     = 30 * time.Second
)

// advertisement is the wire format of a single UDP discovery datagram.
type advertisement struct {
	PeerID   uuid.UUID `json:"peer_id"`
	Address  string    `json:"address"`
	Hostname string    `json:"hostname"`
}

// Notifier receives discovery events so the Session Layer can fan them
// out to connected WebSocket clients. Kept as an interface here, rather
// than importing the session package directly, to avoid a cycle.
type Notifier interface {
	PeerDiscovered(p models.Peer)
	PeerRemoved(id uuid.UUID)
}

// Service runs the three cooperating discovery loops over a single UDP
// socket.
type Service struct {
	table    *peer.Table
	notifier Notifier
	conn     *net.UDPConn

	broadcastAddr *net.UDPAddr
	transferAddr  string
	interval      time.Duration
}

// New binds the discovery socket on discoveryPort and resolves the
// local IPv4 address advertised alongside transferPort. It does not yet
// start any loop; call Run for that.
func New(table *peer.Table, notifier Notifier, discoveryPort, transferPort int, interval time.Duration) (*Service, error) {
	listenAddr := &net.UDPAddr{IP: net.IPv4zero, Port: discoveryPort}
	conn, err := net.ListenUDP("udp4", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("discovery: failed to bind udp %d: %w", discoveryPort, err)
	}
	if err := setBroadcast(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("discovery: failed to enable broadcast: %w", err)
	}

	localIP := localIPv4()
	broadcastIP := broadcastAddressFor(localIP)

	return &Service{
		table:         table,
		notifier:      notifier,
		conn:          conn,
		broadcastAddr: &net.UDPAddr{IP: broadcastIP, Port: discoveryPort},
		transferAddr:  fmt.Sprintf("%s:%d", localIP, transferPort),
		interval:      interval,
	}, nil
}

// Close releases the discovery socket.
func (s *Service) Close() error {
	return s.conn.Close()
}

// Run drives the broadcast, listen and cleanup loops until ctx is
// cancelled or one of them returns an unrecoverable error. Per the
// cooperating-loops design, the service terminates if any loop returns.
func (s *Service) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return s.broadcastLoop(ctx) })
	group.Go(func() error { return s.listenLoop(ctx) })
	group.Go(func() error { return s.cleanupLoop(ctx) })
	return group.Wait()
}

func (s *Service) broadcastLoop(ctx context.Context) error {
	local := s.table.LocalIdentity()
	payload, err := json.Marshal(advertisement{
		PeerID:   local.ID,
		Address:  s.transferAddr,
		Hostname: local.Hostname,
	})
	if err != nil {
		return fmt.Errorf("discovery: failed to marshal advertisement: %w", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.conn.WriteToUDP(payload, s.broadcastAddr); err != nil {
				log.Printf("discovery: broadcast send failed: %v", err)
			}
		}
	}
}

func (s *Service) listenLoop(ctx context.Context) error {
	buf := make([]byte, maxDatagramSize)
	local := s.table.LocalIdentity()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		s.conn.SetReadDeadline(time.Now().Add(time.Second))
		n, _, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			log.Printf("discovery: read failed: %v", err)
			continue
		}
		if n > maxDatagramSize {
			continue
		}

		var adv advertisement
		if err := json.Unmarshal(buf[:n], &adv); err != nil {
			continue
		}
		if adv.PeerID == uuid.Nil || adv.Address == "" {
			continue
		}
		if adv.PeerID == local.ID {
			continue
		}

		rec := models.Peer{ID: adv.PeerID, Address: adv.Address, Hostname: adv.Hostname, LastSeen: time.Now()}
		_, existed := s.table.Get(adv.PeerID)
		s.table.Upsert(rec)
		if !existed {
			s.notifier.PeerDiscovered(rec)
		}
	}
}

func (s *Service) cleanupLoop(ctx context.Context) error {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for _, id := range s.table.Sweep(peerTimeout) {
				s.notifier.PeerRemoved(id)
			}
		}
	}
}

// localIPv4 resolves the host's primary outbound IPv4 address by
// opening a connected UDP socket to a public address; no packet is
// actually sent, the OS just picks the outbound interface. Falls back
// to the loopback address if that fails.
func localIPv4() net.IP {
	conn, err := net.Dial("udp4", "8.8.8.8:80")
	if err != nil {
		return net.IPv4(127, 0, 0, 1)
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return net.IPv4(127, 0, 0, 1)
	}
	return addr.IP.To4()
}

// broadcastAddressFor computes the /24 broadcast address of ip, or the
// limited broadcast address if ip isn't a usable IPv4.
func broadcastAddressFor(ip net.IP) net.IP {
	v4 := ip.To4()
	if v4 == nil {
		return net.IPv4bcast
	}
	out := make(net.IP, net.IPv4len)
	copy(out, v4)
	out[3] = 255
	return out
}
