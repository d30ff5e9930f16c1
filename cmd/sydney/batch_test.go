package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AltairaLabs/sydney/chathub"
	"github.com/AltairaLabs/sydney/credentials"
	"github.com/AltairaLabs/sydney/protocol"
)

// failingClient returns a client whose handshakes are all rejected.
func failingClient(t *testing.T) *chathub.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	client, err := chathub.NewClient(chathub.Config{
		Credential: credentials.NewCookieCredential("cookie"),
		Generation: protocol.GenerationBody,
		Endpoints:  chathub.Endpoints{Create: srv.URL},
	})
	require.NoError(t, err)
	return client
}

func TestRunBatch_CollectsEveryFailure(t *testing.T) {
	results := runBatch(t.Context(), failingClient(t), 0, []string{"one", "two", "three"}, 2, false)

	require.Len(t, results, 3)
	for i, prompt := range []string{"one", "two", "three"} {
		assert.Equal(t, prompt, results[i].prompt)
		var sce *chathub.SessionCreationError
		require.ErrorAs(t, results[i].err, &sce)
		assert.Equal(t, http.StatusServiceUnavailable, sce.Status)
	}
}

func TestRunBatch_FailFastCancelsRemaining(t *testing.T) {
	results := runBatch(t.Context(), failingClient(t), 0, []string{"one", "two"}, 1, true)

	var sce *chathub.SessionCreationError
	require.ErrorAs(t, results[0].err, &sce)
	assert.ErrorIs(t, results[1].err, context.Canceled)
}

func TestPrintBatch(t *testing.T) {
	var buf bytes.Buffer
	err := printBatch(&buf, []batchResult{
		{prompt: "one", text: "first"},
		{prompt: "two", err: errors.New("throttled")},
	})
	require.EqualError(t, err, "1 of 2 prompts failed")
	assert.Equal(t, "[1] one\nfirst\n\n[2] two\nerror: throttled\n\n", buf.String())

	buf.Reset()
	require.NoError(t, printBatch(&buf, []batchResult{{prompt: "one", text: "first"}}))
}
