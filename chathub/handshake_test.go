package chathub

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/AltairaLabs/sydney/credentials"
	"github.com/AltairaLabs/sydney/protocol"
)

func TestOpen_BodyGeneration(t *testing.T) {
	f := newFakeService(t)
	conv := f.open(Config{})

	s := conv.Session()
	require.NotNil(t, s)
	assert.Equal(t, "c1", s.ConversationID)
	assert.Equal(t, "u1", s.ClientID)
	assert.Equal(t, "s1", s.ConversationSignature)
	assert.Empty(t, s.EncryptedConversationSignature)
	assert.Equal(t, 0, s.InvocationID)
	assert.Nil(t, s.Throttling)
	createCookies, _ := f.cookiesSeen()
	assert.Equal(t, []string{testCookie}, createCookies)
}

func TestOpen_HeaderGeneration(t *testing.T) {
	f := newFakeService(t)
	f.createBodies = []string{`{"result":{"value":"Success"},"conversationId":"c1","clientId":"u1"}`}
	f.createHeaders = http.Header{}
	f.createHeaders.Set(protocol.HeaderConversationSignature, "sig")
	f.createHeaders.Set(protocol.HeaderEncryptedConversationSignature, "enc+/=")
	f.script(answer("ok"))

	conv := f.open(Config{Generation: protocol.GenerationHeader})
	s := conv.Session()
	assert.Equal(t, "sig", s.ConversationSignature)
	assert.Equal(t, "enc+/=", s.EncryptedConversationSignature)

	_, err := conv.Ask(t.Context(), "hello", AskOptions{})
	require.NoError(t, err)

	require.Equal(t, 1, f.hubDials())
	assert.Equal(t, "enc+/=", f.hubQuery(0).Get("sec_access_token"))
	_, hubCookies := f.cookiesSeen()
	assert.Equal(t, []string{testCookie}, hubCookies)

	reqs := f.turnRequests()
	require.Len(t, reqs, 1)
	assert.Empty(t, reqs[0].Arguments[0].ConversationSignature)
}

func TestOpen_BodyGenerationSendsSignatureInPayload(t *testing.T) {
	f := newFakeService(t)
	f.script(answer("ok"))
	conv := f.open(Config{})

	_, err := conv.Ask(t.Context(), "hello", AskOptions{})
	require.NoError(t, err)

	reqs := f.turnRequests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "s1", reqs[0].Arguments[0].ConversationSignature)
	assert.Empty(t, f.hubQuery(0).Get("sec_access_token"))
}

func TestOpen_HeaderGenerationRequiresEncryptedSignature(t *testing.T) {
	f := newFakeService(t)
	client := f.client(Config{Generation: protocol.GenerationHeader})

	err := client.NewConversation(0).Open(t.Context())

	var sce *SessionCreationError
	require.ErrorAs(t, err, &sce)
	assert.Contains(t, sce.Message, "encryptedConversationSignature")
}

func TestOpen_Non200Status(t *testing.T) {
	f := newFakeService(t)
	f.createStatus = http.StatusForbidden

	conv := f.client(Config{}).NewConversation(0)
	err := conv.Open(t.Context())

	var sce *SessionCreationError
	require.ErrorAs(t, err, &sce)
	assert.Equal(t, http.StatusForbidden, sce.Status)
	assert.Nil(t, conv.Session())
}

func TestOpen_ResultNotSuccess(t *testing.T) {
	f := newFakeService(t)
	f.createBodies = []string{`{"result":{"value":"Forbidden","message":"Sorry, you need to login first."}}`}

	err := f.client(Config{}).NewConversation(0).Open(t.Context())

	var sce *SessionCreationError
	require.ErrorAs(t, err, &sce)
	assert.Equal(t, "Sorry, you need to login first.", sce.Message)
	assert.Contains(t, err.Error(), "login first")
}

func TestOpen_GzipResponse(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte(`{"result":{"value":"Success"},"conversationId":"c9","clientId":"u9","conversationSignature":"s9"}`))
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "gzip, deflate", r.Header.Get("Accept-Encoding"))
		w.Header().Set("Content-Encoding", "gzip")
		_, _ = w.Write(buf.Bytes())
	}))
	defer srv.Close()

	client, err := NewClient(Config{
		Credential: credentials.NewCookieCredential(testCookie),
		Generation: protocol.GenerationBody,
		Endpoints:  Endpoints{Create: srv.URL},
	})
	require.NoError(t, err)

	conv, err := client.StartConversation(t.Context(), protocol.StylePrecise)
	require.NoError(t, err)
	assert.Equal(t, "c9", conv.Session().ConversationID)
	assert.Equal(t, protocol.StylePrecise, conv.Style())
}

func TestOpen_DeflateResponse(t *testing.T) {
	const body = `{"result":{"value":"Success"},"conversationId":"c9","clientId":"u9","conversationSignature":"s9"}`

	tests := []struct {
		name     string
		compress func(t *testing.T, data []byte) []byte
	}{
		{"zlib wrapped", zlibBytes},
		{"raw deflate", flateBytes},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := tt.compress(t, []byte(body))
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Encoding", "deflate")
				_, _ = w.Write(payload)
			}))
			defer srv.Close()

			client, err := NewClient(Config{
				Credential: credentials.NewCookieCredential(testCookie),
				Generation: protocol.GenerationBody,
				Endpoints:  Endpoints{Create: srv.URL},
			})
			require.NoError(t, err)

			conv, err := client.StartConversation(t.Context(), 0)
			require.NoError(t, err)
			assert.Equal(t, "c9", conv.Session().ConversationID)
		})
	}
}

func TestReadBody_Limit(t *testing.T) {
	resp := func(body string) *http.Response {
		return &http.Response{Header: http.Header{}, Body: io.NopCloser(strings.NewReader(body))}
	}

	data, err := readBody(resp("12345"), 5)
	require.NoError(t, err)
	assert.Equal(t, "12345", string(data))

	_, err = readBody(resp("123456"), 5)
	require.ErrorIs(t, err, ErrResponseTooLarge)
}

func zlibBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func flateBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, fw.Close())
	return buf.Bytes()
}

func TestOpen_RecordsSpan(t *testing.T) {
	f := newFakeService(t)
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	f.open(Config{TracerProvider: tp})

	var names []string
	for _, s := range recorder.Ended() {
		names = append(names, s.Name())
	}
	assert.Contains(t, names, "sydney.handshake")
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)

	_, err = NewClient(Config{Credential: &credentials.NoOpCredential{}, Generation: "v3"})
	require.Error(t, err)

	_, err = NewClient(Config{Credential: &credentials.NoOpCredential{}, TurnRate: -1})
	require.Error(t, err)

	c, err := NewClient(Config{Credential: &credentials.NoOpCredential{}})
	require.NoError(t, err)
	assert.Equal(t, protocol.GenerationHeader, c.generation)
	assert.Equal(t, protocol.StyleBalanced, c.style)
	assert.Equal(t, DefaultChatHubURL, c.endpoints.ChatHub)
}

func TestHubURL(t *testing.T) {
	c := &Client{
		generation: protocol.GenerationHeader,
		endpoints:  Endpoints{ChatHub: "wss://hub.test/ChatHub"},
	}
	s := &Session{EncryptedConversationSignature: "a b"}
	assert.Equal(t, "wss://hub.test/ChatHub?sec_access_token=a+b", c.hubURL(s))

	c.endpoints.ChatHub = "wss://hub.test/ChatHub?x=1"
	assert.Equal(t, "wss://hub.test/ChatHub?x=1&sec_access_token=a+b", c.hubURL(s))

	c.generation = protocol.GenerationBody
	assert.Equal(t, "wss://hub.test/ChatHub?x=1", c.hubURL(s))
}

func TestListConversations(t *testing.T) {
	f := newFakeService(t)
	f.chatsBody = `{"chats":[{"conversationId":"c1"},{"conversationId":"c2"}],"result":{"value":"Success"},"clientId":"u1"}`

	list, err := f.client(Config{}).ListConversations(t.Context())
	require.NoError(t, err)
	assert.Len(t, list.Chats, 2)
	assert.Equal(t, protocol.ResultSuccess, list.Result.Value)
	assert.Equal(t, "u1", list.ClientID)
	assert.JSONEq(t, `{"conversationId":"c2"}`, string(list.Chats[1]))
}

func TestListConversations_Non200(t *testing.T) {
	f := newFakeService(t)
	f.chatsStatus = http.StatusUnauthorized
	f.chatsBody = "denied"

	_, err := f.client(Config{}).ListConversations(t.Context())

	var re *RequestError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusUnauthorized, re.Status)
	assert.Equal(t, "denied", re.Body)
}
