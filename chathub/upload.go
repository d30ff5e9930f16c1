package chathub

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	metrics "github.com/AltairaLabs/sydney/metrics/prometheus"
	"github.com/AltairaLabs/sydney/protocol"
	"github.com/AltairaLabs/sydney/telemetry"
)

// Attachment is an image to reference in a chat turn: either a URL the
// service can fetch or the raw image bytes.
type Attachment struct {
	URL  string
	Data []byte
}

// AttachmentReference is a registered image.
type AttachmentReference struct {
	BlobID          string
	ProcessedBlobID string

	// ImageURL prefers the processed blob; OriginalImageURL always points at the upload.
	ImageURL         string
	OriginalImageURL string
}

func (r *AttachmentReference) imageRef() *protocol.ImageRef {
	return &protocol.ImageRef{ImageURL: r.ImageURL, OriginalImageURL: r.OriginalImageURL}
}

type kblobRequest struct {
	ImageInfo        kblobImageInfo `json:"imageInfo"`
	KnowledgeRequest kblobKnowledge `json:"knowledgeRequest"`
}

type kblobImageInfo struct {
	URL string `json:"url,omitempty"`
}

type kblobKnowledge struct {
	InvokedSkills            []string          `json:"invokedSkills"`
	SubscriptionID           string            `json:"subscriptionId"`
	InvokedSkillsRequestData kblobSkillOptions `json:"invokedSkillsRequestData"`
	ConvoData                kblobConvoData    `json:"convoData"`
}

type kblobSkillOptions struct {
	EnableFaceBlur bool `json:"enableFaceBlur"`
}

type kblobConvoData struct {
	ConvoID   string `json:"convoid"`
	ConvoTone string `json:"convotone"`
}

type kblobResponse struct {
	BlobID          string `json:"blobId"`
	ProcessedBlobID string `json:"processedBlobId"`
}

// upload registers an attachment with the image service for the conversation of s.
func (c *Client) upload(
	ctx context.Context,
	s *Session,
	style protocol.ConversationStyle,
	a Attachment,
) (ref *AttachmentReference, err error) {
	ctx, span := c.tracer.Start(ctx, "sydney.upload",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(telemetry.AttrConversationID.String(s.ConversationID)),
	)
	start := time.Now()
	defer func() {
		status := metrics.StatusSuccess
		if err != nil {
			status = metrics.StatusError
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		metrics.RecordUpload(status, time.Since(start).Seconds())
		span.End()
	}()

	if a.URL == "" && len(a.Data) == 0 {
		return nil, &AttachmentUploadError{Reason: "attachment has neither a URL nor data"}
	}

	body, contentType, err := kblobBody(s, style, a)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, "kblob", http.MethodPost, c.endpoints.KBlob, kblobHeaders(contentType), bytes.NewReader(body))
	if err != nil {
		return nil, &AttachmentUploadError{Reason: err.Error()}
	}
	if resp.status != http.StatusOK {
		return nil, &AttachmentUploadError{Status: resp.status, Reason: string(resp.body)}
	}

	var out kblobResponse
	if err := json.Unmarshal(resp.body, &out); err != nil {
		return nil, &AttachmentUploadError{Reason: "invalid response body: " + err.Error()}
	}
	if out.BlobID == "" {
		return nil, &AttachmentUploadError{Reason: "response has no blob identifier"}
	}

	imageID := firstNonEmpty(out.ProcessedBlobID, out.BlobID)
	return &AttachmentReference{
		BlobID:           out.BlobID,
		ProcessedBlobID:  out.ProcessedBlobID,
		ImageURL:         c.endpoints.Blob + imageID,
		OriginalImageURL: c.endpoints.Blob + out.BlobID,
	}, nil
}

// kblobBody renders the multipart upload request.
func kblobBody(s *Session, style protocol.ConversationStyle, a Attachment) ([]byte, string, error) {
	knowledge, err := json.Marshal(kblobRequest{
		ImageInfo: kblobImageInfo{URL: a.URL},
		KnowledgeRequest: kblobKnowledge{
			InvokedSkills:            []string{"ImageById"},
			SubscriptionID:           "Bing.Chat.Multimodal",
			InvokedSkillsRequestData: kblobSkillOptions{EnableFaceBlur: true},
			ConvoData: kblobConvoData{
				ConvoID:   s.ConversationID,
				ConvoTone: style.DisplayName(),
			},
		},
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode knowledge request: %w", err)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.SetBoundary(kblobBoundary); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("knowledgeRequest", string(knowledge)); err != nil {
		return nil, "", err
	}
	if len(a.Data) > 0 {
		if err := w.WriteField("imageBase64", base64.StdEncoding.EncodeToString(a.Data)); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finish multipart body: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
