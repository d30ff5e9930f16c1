package prometheus

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const readHeaderTimeout = 10 * time.Second

// Exporter serves the client metrics on a private registry.
type Exporter struct {
	addr     string
	registry *prometheus.Registry

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	done     chan error
}

// NewExporter returns an exporter for addr. Nothing listens until Start.
func NewExporter(addr string) *Exporter {
	reg := prometheus.NewRegistry()
	reg.MustRegister(allMetrics...)
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Exporter{addr: addr, registry: reg}
}

// Registry exposes the registry, mainly for tests.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Handler serves /metrics and a /healthz liveness check.
func (e *Exporter) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// Start binds the address and serves in the background. A bind failure is
// returned immediately; calling Start on a running exporter is a no-op.
func (e *Exporter) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.server != nil {
		return nil
	}

	ln, err := net.Listen("tcp", e.addr)
	if err != nil {
		return fmt.Errorf("metrics listener %s: %w", e.addr, err)
	}
	srv := &http.Server{Handler: e.Handler(), ReadHeaderTimeout: readHeaderTimeout}
	done := make(chan error, 1)
	go func() {
		err := srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		done <- err
	}()

	e.server, e.listener, e.done = srv, ln, done
	return nil
}

// Addr returns the bound address once started, otherwise the configured one.
func (e *Exporter) Addr() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.listener != nil {
		return e.listener.Addr().String()
	}
	return e.addr
}

// Shutdown stops serving and returns the error the server stopped with, if any.
func (e *Exporter) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	srv, done := e.server, e.done
	e.server, e.listener, e.done = nil, nil, nil
	e.mu.Unlock()

	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		return err
	}
	return <-done
}
