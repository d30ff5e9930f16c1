package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AltairaLabs/sydney/config"
	"github.com/AltairaLabs/sydney/protocol"
	"github.com/AltairaLabs/sydney/statestore"
)

// withGlobals sets the persistent flag variables for one test.
func withGlobals(t *testing.T, path, metrics, otlp string, verboseOn bool) {
	t.Helper()
	oldPath, oldMetrics, oldOTLP, oldVerbose := configPath, metricsAddr, otlpEndpoint, verbose
	configPath, metricsAddr, otlpEndpoint, verbose = path, metrics, otlp, verboseOn
	t.Cleanup(func() {
		configPath, metricsAddr, otlpEndpoint, verbose = oldPath, oldMetrics, oldOTLP, oldVerbose
	})
}

func TestLoadConfig_Defaults(t *testing.T) {
	withGlobals(t, "", "", "", false)

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, protocol.StyleBalanced, cfg.StyleValue())
	assert.Equal(t, config.BackendNone, cfg.Transcript.Backend)
	assert.Empty(t, cfg.Metrics.Addr)
}

func TestLoadConfig_FileAndOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sydney.yaml")
	require.NoError(t, os.WriteFile(path, []byte("style: precise\nmetrics:\n  addr: \":9000\"\n"), 0o600))
	withGlobals(t, path, ":9100", "localhost:4318", true)

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, protocol.StylePrecise, cfg.StyleValue())
	assert.Equal(t, ":9100", cfg.Metrics.Addr)
	assert.Equal(t, "localhost:4318", cfg.Telemetry.OTLPEndpoint)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	withGlobals(t, filepath.Join(t.TempDir(), "nope.yaml"), "", "", false)
	_, err := loadConfig()
	require.Error(t, err)
}

func TestTranscriptStore(t *testing.T) {
	cfg := config.Default()
	a := &app{cfg: cfg}

	store, err := a.transcriptStore(t.Context())
	require.NoError(t, err)
	assert.Nil(t, store)

	cfg.Transcript.Backend = config.BackendMemory
	store, err = a.transcriptStore(t.Context())
	require.NoError(t, err)
	assert.IsType(t, &statestore.MemoryStore{}, store)
}

func TestTranscriptStore_Redis(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := config.Default()
	cfg.Transcript = config.TranscriptConfig{
		Backend:   config.BackendRedis,
		RedisAddr: mr.Addr(),
		Prefix:    "test",
		TTL:       time.Hour,
	}
	a := &app{cfg: cfg}
	t.Cleanup(a.close)

	store, err := a.transcriptStore(t.Context())
	require.NoError(t, err)
	require.NotNil(t, store)

	require.NoError(t, store.Append(t.Context(), "c1", statestore.Exchange{Kind: "chat", Prompt: "hi", Response: "hello"}))
	tr, err := store.Load(t.Context(), "c1")
	require.NoError(t, err)
	require.Len(t, tr.Exchanges, 1)
	assert.Equal(t, "hello", tr.Exchanges[0].Response)
	assert.NotEmpty(t, mr.Keys())
	assert.Len(t, a.closers, 1)
}

func TestTranscriptStore_RedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := config.Default()
	cfg.Transcript = config.TranscriptConfig{Backend: config.BackendRedis, RedisAddr: addr}
	a := &app{cfg: cfg}

	_, err := a.transcriptStore(t.Context())
	require.Error(t, err)
	assert.Empty(t, a.closers)
}

func TestStartMetrics(t *testing.T) {
	a := &app{cfg: config.Default()}
	require.NoError(t, a.startMetrics("127.0.0.1:0"))
	require.Len(t, a.closers, 1)
	a.close()
	assert.Empty(t, a.closers)
}
