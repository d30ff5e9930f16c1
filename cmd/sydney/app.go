package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AltairaLabs/sydney/chathub"
	"github.com/AltairaLabs/sydney/config"
	"github.com/AltairaLabs/sydney/credentials"
	"github.com/AltairaLabs/sydney/logger"
	metrics "github.com/AltairaLabs/sydney/metrics/prometheus"
	"github.com/AltairaLabs/sydney/statestore"
	"github.com/AltairaLabs/sydney/telemetry"
)

const shutdownTimeout = 5 * time.Second

// app holds everything a command needs. close releases it in reverse order.
type app struct {
	cfg     *config.Config
	client  *chathub.Client
	closers []func(context.Context) error
}

// newApp loads the configuration and builds the client with its transcript
// store, metrics exporter and tracer provider.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	if err := logger.Configure(cfg.LoggingSpec()); err != nil {
		return nil, fmt.Errorf("configure logging: %w", err)
	}
	if verbose {
		logger.SetVerbose(true)
	}

	cred, err := credentials.Resolve(cfg.CredentialResolver())
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}

	store, err := a.transcriptStore(ctx)
	if err != nil {
		return nil, err
	}

	hubCfg := chathub.Config{
		Credential:  cred,
		Style:       cfg.StyleValue(),
		Generation:  cfg.Generation(),
		Locale:      cfg.LocaleValue(),
		Proxy:       cfg.ProxyURL(),
		DialTimeout: cfg.DialTimeout,
		TurnRate:    cfg.TurnRate,
		Transcripts: store,
		Endpoints: chathub.Endpoints{
			Create:  cfg.Endpoints.Create,
			Chats:   cfg.Endpoints.Chats,
			ChatHub: cfg.Endpoints.ChatHub,
			KBlob:   cfg.Endpoints.KBlob,
			Blob:    cfg.Endpoints.Blob,
		},
	}

	if cfg.Telemetry.OTLPEndpoint != "" {
		tp, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry.OTLPEndpoint, cfg.Telemetry.ServiceName)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("tracing: %w", err)
		}
		telemetry.SetupPropagation()
		hubCfg.TracerProvider = tp
		a.closers = append(a.closers, tp.Shutdown)
	}

	if cfg.Metrics.Addr != "" {
		if err := a.startMetrics(cfg.Metrics.Addr); err != nil {
			a.close()
			return nil, err
		}
	}

	client, err := chathub.NewClient(hubCfg)
	if err != nil {
		a.close()
		return nil, err
	}
	a.client = client
	a.closers = append(a.closers, func(context.Context) error { return client.Close() })
	return a, nil
}

// loadConfig reads --config when given and applies the global flag overrides.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if metricsAddr != "" {
		cfg.Metrics.Addr = metricsAddr
	}
	if otlpEndpoint != "" {
		cfg.Telemetry.OTLPEndpoint = otlpEndpoint
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

func (a *app) transcriptStore(ctx context.Context) (statestore.Store, error) {
	tc := a.cfg.Transcript
	switch tc.Backend {
	case config.BackendMemory:
		return statestore.NewMemoryStore(), nil
	case config.BackendRedis:
		rdb := redis.NewClient(&redis.Options{Addr: tc.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("transcript store %s: %w", tc.RedisAddr, err)
		}
		a.closers = append(a.closers, func(context.Context) error { return rdb.Close() })

		var opts []statestore.RedisOption
		if tc.TTL > 0 {
			opts = append(opts, statestore.WithTTL(tc.TTL))
		}
		if tc.Prefix != "" {
			opts = append(opts, statestore.WithPrefix(tc.Prefix))
		}
		return statestore.NewRedisStore(rdb, opts...), nil
	default:
		return nil, nil
	}
}

func (a *app) startMetrics(addr string) error {
	exporter := metrics.NewExporter(addr)
	if err := exporter.Start(); err != nil {
		return err
	}
	logger.Info("Serving metrics", "addr", exporter.Addr())
	a.closers = append(a.closers, exporter.Shutdown)
	return nil
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			logger.Warn("Shutdown step failed", "error", err)
		}
	}
	a.closers = nil
}
