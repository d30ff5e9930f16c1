package chathub

import "net/http"

// Default service endpoints.
const (
	DefaultCreateURL  = "https://edgeservices.bing.com/edgesvc/turing/conversation/create"
	DefaultChatsURL   = "https://www.bing.com/turing/conversation/chats"
	DefaultChatHubURL = "wss://sydney.bing.com/sydney/ChatHub"
	DefaultKBlobURL   = "https://www.bing.com/images/kblob"
	DefaultBlobURL    = "https://www.bing.com/images/blob?bcid="
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36 Edg/117.0.2045.47"

// kblobBoundary is the fixed multipart boundary of upload requests.
const kblobBoundary = "----WebKitFormBoundarySydneyKBlob7MA4YWxk"

// Endpoints are the service URLs a client talks to. Zero fields use the defaults.
type Endpoints struct {
	Create  string
	Chats   string
	ChatHub string
	KBlob   string
	Blob    string
}

func (e Endpoints) withDefaults() Endpoints {
	if e.Create == "" {
		e.Create = DefaultCreateURL
	}
	if e.Chats == "" {
		e.Chats = DefaultChatsURL
	}
	if e.ChatHub == "" {
		e.ChatHub = DefaultChatHubURL
	}
	if e.KBlob == "" {
		e.KBlob = DefaultKBlobURL
	}
	if e.Blob == "" {
		e.Blob = DefaultBlobURL
	}
	return e
}

func chatHeaders() http.Header {
	h := http.Header{}
	h.Set("Accept", "application/json")
	h.Set("Accept-Encoding", "gzip, deflate")
	h.Set("Accept-Language", "en-US,en;q=0.9")
	h.Set("Content-Type", "application/json")
	h.Set("User-Agent", userAgent)
	return h
}

func kblobHeaders(contentType string) http.Header {
	h := http.Header{}
	h.Set("Accept-Language", "en-US,en;q=0.5")
	h.Set("Content-Type", contentType)
	h.Set("Referer", "https://www.bing.com/")
	h.Set("User-Agent", userAgent)
	return h
}

func flatten(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}
