package chathub

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/AltairaLabs/sydney/credentials"
	"github.com/AltairaLabs/sydney/protocol"
)

const (
	testCookie  = "cookie-value"
	testBlobURL = "https://blob.test/images/blob?bcid="
)

var hubUpgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// hubTurn scripts the chat hub side of one turn.
type hubTurn struct {
	// messages are written after the turn frame arrives, one WebSocket
	// message each. Use frames to put several frames in one message.
	messages []string

	// closeAfter makes the hub close the socket once messages are written.
	closeAfter bool
}

// kblobUpload is what the fake image service received.
type kblobUpload struct {
	knowledge map[string]any
	imageB64  string
	header    http.Header
}

// fakeService stands in for the create, chats, kblob and chat hub endpoints.
type fakeService struct {
	t   *testing.T
	srv *httptest.Server

	mu sync.Mutex

	// create endpoint
	createStatus  int
	createBodies  []string
	createHeaders http.Header
	createCount   int
	createCookies []string

	// chats endpoint
	chatsStatus int
	chatsBody   string

	// kblob endpoint
	kblobStatus int
	kblobBody   string
	uploads     []kblobUpload

	// chat hub
	turns      []hubTurn
	requests   []protocol.TurnRequest
	hubQueries []url.Values
	hubCookies []string
	turnSent   chan struct{}
	hubClosed  chan struct{}
}

func newFakeService(t *testing.T) *fakeService {
	t.Helper()
	f := &fakeService{
		t:            t,
		createStatus: http.StatusOK,
		createBodies: []string{
			`{"result":{"value":"Success"},"conversationId":"c1","clientId":"u1","conversationSignature":"s1"}`,
		},
		chatsStatus: http.StatusOK,
		chatsBody:   `{"chats":[],"result":{"value":"Success"},"clientId":"u1"}`,
		kblobStatus: http.StatusOK,
		kblobBody:   `{"blobId":"b1","processedBlobId":"p1"}`,
		turnSent:    make(chan struct{}, 16),
		hubClosed:   make(chan struct{}, 16),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/create", f.handleCreate)
	mux.HandleFunc("/chats", f.handleChats)
	mux.HandleFunc("/kblob", f.handleKBlob)
	mux.HandleFunc("/hub", f.handleHub)
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeService) endpoints() Endpoints {
	return Endpoints{
		Create:  f.srv.URL + "/create",
		Chats:   f.srv.URL + "/chats",
		KBlob:   f.srv.URL + "/kblob",
		ChatHub: "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/hub",
		Blob:    testBlobURL,
	}
}

// client returns a client in the body generation unless cfg says otherwise.
func (f *fakeService) client(cfg Config) *Client {
	f.t.Helper()
	if cfg.Credential == nil {
		cfg.Credential = credentials.NewCookieCredential(testCookie)
	}
	if cfg.Generation == "" {
		cfg.Generation = protocol.GenerationBody
	}
	cfg.Endpoints = f.endpoints()
	c, err := NewClient(cfg)
	require.NoError(f.t, err)
	return c
}

// open starts a conversation against the fake service.
func (f *fakeService) open(cfg Config) *Conversation {
	f.t.Helper()
	conv, err := f.client(cfg).StartConversation(f.t.Context(), 0)
	require.NoError(f.t, err)
	return conv
}

func (f *fakeService) script(turns ...hubTurn) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.turns = append(f.turns, turns...)
}

func (f *fakeService) turnRequests() []protocol.TurnRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]protocol.TurnRequest(nil), f.requests...)
}

func (f *fakeService) handleCreate(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	if c, err := r.Cookie(credentials.DefaultCookieName); err == nil {
		f.createCookies = append(f.createCookies, c.Value)
	}
	body := f.createBodies[min(f.createCount, len(f.createBodies)-1)]
	f.createCount++
	status := f.createStatus
	for k, v := range f.createHeaders {
		w.Header()[k] = v
	}
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func (f *fakeService) handleChats(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	status, body := f.chatsStatus, f.chatsBody
	f.mu.Unlock()
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func (f *fakeService) handleKBlob(w http.ResponseWriter, r *http.Request) {
	upload := kblobUpload{header: r.Header.Clone()}
	_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err == nil {
		mr := multipart.NewReader(r.Body, params["boundary"])
		for {
			part, err := mr.NextPart()
			if err != nil {
				break
			}
			data, _ := io.ReadAll(part)
			switch part.FormName() {
			case "knowledgeRequest":
				_ = json.Unmarshal(data, &upload.knowledge)
			case "imageBase64":
				upload.imageB64 = string(data)
			}
		}
	}

	f.mu.Lock()
	f.uploads = append(f.uploads, upload)
	status, body := f.kblobStatus, f.kblobBody
	f.mu.Unlock()

	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func (f *fakeService) handleHub(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.hubQueries = append(f.hubQueries, r.URL.Query())
	if c, err := r.Cookie(credentials.DefaultCookieName); err == nil {
		f.hubCookies = append(f.hubCookies, c.Value)
	}
	f.mu.Unlock()

	conn, err := hubUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() {
		conn.Close()
		select {
		case f.hubClosed <- struct{}{}:
		default:
		}
	}()

	// negotiation
	if _, _, err := conn.ReadMessage(); err != nil {
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte("{}\x1e")); err != nil {
		return
	}

	_, data, err := conn.ReadMessage()
	if err != nil {
		return
	}
	var req protocol.TurnRequest
	if err := json.Unmarshal(bytes.TrimSuffix(data, []byte{protocol.Delimiter}), &req); err != nil {
		f.t.Errorf("hub received an undecodable turn frame: %v", err)
		return
	}

	f.mu.Lock()
	f.requests = append(f.requests, req)
	var turn hubTurn
	if len(f.turns) > 0 {
		turn, f.turns = f.turns[0], f.turns[1:]
	}
	f.mu.Unlock()
	f.turnSent <- struct{}{}

	for _, msg := range turn.messages {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			return
		}
	}
	if turn.closeAfter {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		return
	}

	// Hold the socket until the client hangs up.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// frames joins frames into one hub message.
func frames(fs ...string) string {
	var b strings.Builder
	for _, f := range fs {
		b.WriteString(f)
		b.WriteByte(protocol.Delimiter)
	}
	return b.String()
}

func update(text string) string {
	return fmt.Sprintf(`{"type":1,"target":"update","arguments":[{"messages":[{"text":%q,"author":"bot"}]}]}`, text)
}

func final(text string) string {
	return fmt.Sprintf(`{"type":2,"invocationId":"0","item":{"messages":[{"text":"question","author":"user"},{"text":%q,"author":"bot"}],"result":{"value":"Success"}}}`, text)
}

// answer scripts a turn that streams the given prefixes and ends with the last one.
func answer(partials ...string) hubTurn {
	turn := hubTurn{}
	for _, p := range partials {
		turn.messages = append(turn.messages, frames(update(p)))
	}
	turn.messages = append(turn.messages, frames(final(partials[len(partials)-1])))
	return turn
}

func (f *fakeService) hubQuery(i int) url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hubQueries[i]
}

func (f *fakeService) hubDials() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.hubQueries)
}

func (f *fakeService) cookiesSeen() (create, hub []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.createCookies...), append([]string(nil), f.hubCookies...)
}

func (f *fakeService) kblobUploads() []kblobUpload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]kblobUpload(nil), f.uploads...)
}
