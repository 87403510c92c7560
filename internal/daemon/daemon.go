// Package daemon wires the Peer Table, Discovery Service, Transfer
// Engine, Transfer Registry, Broadcast Coordinator and Session Layer
// into one running process.
package daemon

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/example/lanshare/internal/broadcast"
	"github.com/example/lanshare/internal/config"
	"github.com/example/lanshare/internal/discovery"
	"github.com/example/lanshare/internal/middleware"
	"github.com/example/lanshare/internal/peer"
	"github.com/example/lanshare/internal/registry"
	"github.com/example/lanshare/internal/session"
	"github.com/example/lanshare/internal/storage"
	"github.com/example/lanshare/internal/transfer"
)

// Daemon is one running instance of the file-sharing service.
type Daemon struct {
	cfg config.Config

	table      *peer.Table
	registry   *registry.Registry
	engine     *transfer.Engine
	discovery  *discovery.Service
	hub        *session.Hub
	httpServer *http.Server
}

// New constructs every subsystem and wires them together, but starts
// nothing: call Run to bring the daemon up.
func New(cfg config.Config) (*Daemon, error) {
	table := peer.NewTable(peer.NewIdentity())
	reg := registry.New()
	downloads := storage.NewDownloads("downloads")

	hub := session.NewHub(table, reg, nil, nil)
	engine := transfer.NewEngine(downloads, int64(cfg.Transfer.MaxConcurrent), cfg.Transfer.ChunkSize, hub)
	coordinator := broadcast.New(engine, hub)

	// The hub needs the engine and coordinator, but both of those
	// needed the hub as their observer/notifier; wire the back-reference
	// now that all three exist.
	hub.SetCollaborators(engine, coordinator)

	disc, err := discovery.New(table, hub, cfg.Network.DiscoveryPort, cfg.Network.TransferPort, time.Duration(cfg.Network.BroadcastInterval)*time.Second)
	if err != nil {
		return nil, fmt.Errorf("daemon: failed to start discovery: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		session.ServeWS(hub, w, r)
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	handler := middleware.Chain(mux, middleware.Logger(), middleware.Recover())

	return &Daemon{
		cfg:       cfg,
		table:     table,
		registry:  reg,
		engine:    engine,
		discovery: disc,
		hub:       hub,
		httpServer: &http.Server{
			Addr:    fmt.Sprintf("0.0.0.0:%d", cfg.Network.WebPort),
			Handler: handler,
		},
	}, nil
}

// Run starts the discovery loops, the transfer listener, the session
// hub and the HTTP server, and blocks until ctx is cancelled or one of
// them returns an unrecoverable error.
func (d *Daemon) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error { return d.discovery.Run(ctx) })

	group.Go(func() error {
		return d.engine.Serve(ctx, fmt.Sprintf("0.0.0.0:%d", d.cfg.Network.TransferPort))
	})

	group.Go(func() error {
		d.hub.Run(ctx)
		return nil
	})

	group.Go(func() error {
		log.Printf("daemon: web/websocket server listening on %s", d.httpServer.Addr)
		err := d.httpServer.ListenAndServe()
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	})

	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return d.httpServer.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

// Close releases resources that outlive a single Run call, such as the
// discovery socket.
func (d *Daemon) Close() error {
	return d.discovery.Close()
}
