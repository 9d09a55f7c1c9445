package daemon

import (
	"context"
	"errors"
	"github.com/ZilDuck/opentrade/internal/api"
	"github.com/ZilDuck/opentrade/internal/elastic_cache"
	"github.com/ZilDuck/opentrade/internal/event"
	"github.com/ZilDuck/opentrade/internal/protocol"
	"go.uber.org/zap"
	"net/http"
	"time"
)

// Listener is anything that subscribes itself to committed protocol events.
type Listener interface {
	Listen(events *event.Manager)
}

// Flusher is a Listener that buffers what it receives. Flush writes the
// buffer and returns how many items were written.
type Flusher interface {
	Flush() int
}

type Config struct {
	ApiPort       string
	Reindex       bool
	SeedDemo      bool
	FlushInterval time.Duration
	Demo          protocol.DemoConfig
}

type Daemon struct {
	cfg       Config
	protocol  *protocol.Protocol
	server    api.Server
	elastic   elastic_cache.Index
	listeners []Listener
}

// NewDaemon wires the optional search index and event listeners around the
// protocol. A nil elastic disables mapping installation.
func NewDaemon(cfg Config, p *protocol.Protocol, server api.Server, elastic elastic_cache.Index, listeners ...Listener) *Daemon {
	return &Daemon{cfg, p, server, elastic, listeners}
}

// Execute serves the api until ctx is done.
func (d *Daemon) Execute(ctx context.Context) error {
	if d.elastic != nil {
		if err := d.elastic.InstallMappings(); err != nil {
			zap.L().With(zap.Error(err)).Error("Daemon: Failed to install mappings")
			return err
		}

		if d.cfg.Reindex {
			zap.L().Info("Daemon: Reindex complete")
			return nil
		}
	}

	for _, l := range d.listeners {
		l.Listen(d.protocol.Events)
	}
	zap.L().With(zap.Int("listeners", len(d.listeners))).Info("Daemon: Listening for protocol events")

	if d.cfg.SeedDemo {
		report, err := protocol.RunDemo(ctx, d.protocol, d.cfg.Demo)
		if err != nil {
			zap.L().With(zap.Error(err)).Error("Daemon: Failed to seed demo")
			return err
		}
		zap.L().With(
			zap.String("collection", report.Collection.String()),
			zap.String("marketplace", report.Marketplace.String()),
			zap.String("trader", report.Trader.String()),
		).Info("Daemon: Demo seeded")
	}

	return d.serve(ctx)
}

func (d *Daemon) serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + d.cfg.ApiPort,
		Handler:           d.server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		zap.L().With(zap.String("port", d.cfg.ApiPort)).Info("Daemon: Api started")
		errs <- srv.ListenAndServe()
	}()

	var tick <-chan time.Time
	if d.cfg.FlushInterval > 0 {
		ticker := time.NewTicker(d.cfg.FlushInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for running := true; running; {
		select {
		case err := <-errs:
			d.flush()
			if !errors.Is(err, http.ErrServerClosed) {
				zap.L().With(zap.Error(err)).Error("Daemon: Api failed")
				return err
			}
			return nil
		case <-tick:
			d.flush()
		case <-ctx.Done():
			running = false
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.L().With(zap.Error(err)).Warn("Daemon: Api shutdown")
	}

	d.protocol.Events.Wait()
	d.flush()
	zap.L().Info("Daemon: Stopped")

	return nil
}

func (d *Daemon) flush() {
	for _, l := range d.listeners {
		if f, ok := l.(Flusher); ok {
			f.Flush()
		}
	}
}
