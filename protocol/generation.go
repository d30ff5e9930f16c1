package protocol

import "strings"

// Generation selects where the handshake delivers the conversation signature.
// The service gives no version signal, so the client is told which to speak.
type Generation string

// Protocol generations.
const (
	// GenerationBody reads conversationSignature from the handshake JSON body
	// and sends it inside each turn payload.
	GenerationBody Generation = "body"

	// GenerationHeader reads the signatures from X-Sydney-* response headers
	// and passes the encrypted one to the chat hub as sec_access_token.
	GenerationHeader Generation = "header"
)

// Signature response headers of the header generation.
const (
	HeaderConversationSignature          = "X-Sydney-Conversationsignature"
	HeaderEncryptedConversationSignature = "X-Sydney-Encryptedconversationsignature"
)

// ParseGeneration maps "body" or "header" (case-insensitive) to a Generation.
func ParseGeneration(s string) (Generation, error) {
	switch g := Generation(strings.ToLower(strings.TrimSpace(s))); g {
	case GenerationBody, GenerationHeader:
		return g, nil
	default:
		return "", &UnknownStyleError{Kind: "protocol generation", Value: s}
	}
}
