// Package media relays uploaded images to an external webhook that stores
// them and returns a durable attachment URL.
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	maxUploadBytes = 8 << 20
	uploadTimeout  = 15 * time.Second
)

var (
	// ErrUploadTooLarge indicates the payload exceeds the relay limit.
	ErrUploadTooLarge = errors.New("media: upload too large")
	// ErrRelayUnavailable indicates no webhook is configured.
	ErrRelayUnavailable = errors.New("media: relay not configured")
)

// WebhookRelay posts images as multipart attachments to a webhook endpoint
// and extracts the stored attachment URL from the JSON response.
type WebhookRelay struct {
	webhookURL string
	client     *http.Client
	logger     *zap.Logger
}

// RelayConfig describes the webhook relay's endpoint and HTTP client.
type RelayConfig struct {
	WebhookURL string
	Client     *http.Client
	Logger     *zap.Logger
}

// NewWebhookRelay constructs the relay. An empty webhook URL yields a relay
// whose uploads fail with ErrRelayUnavailable.
func NewWebhookRelay(cfg RelayConfig) *WebhookRelay {
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: uploadTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookRelay{webhookURL: cfg.WebhookURL, client: client, logger: logger}
}

type relayResponse struct {
	Attachments []struct {
		URL string `json:"url"`
	} `json:"attachments"`
}

// Upload posts the image bytes and returns the stored attachment URL.
func (r *WebhookRelay) Upload(ctx context.Context, data []byte, mimeType string) (string, error) {
	if r.webhookURL == "" {
		return "", ErrRelayUnavailable
	}
	if len(data) > maxUploadBytes {
		return "", ErrUploadTooLarge
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", fileNameFor(mimeType))
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, r.webhookURL, &body)
	if err != nil {
		return "", err
	}
	request.Header.Set("Content-Type", writer.FormDataContentType())

	response, err := r.client.Do(request)
	if err != nil {
		return "", fmt.Errorf("media: webhook request: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(response.Body, 256))
		return "", fmt.Errorf("media: webhook returned %d: %s", response.StatusCode, snippet)
	}

	var decoded relayResponse
	if err := json.NewDecoder(response.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("media: decode webhook response: %w", err)
	}
	if len(decoded.Attachments) == 0 || decoded.Attachments[0].URL == "" {
		return "", errors.New("media: webhook response missing attachment URL")
	}
	return decoded.Attachments[0].URL, nil
}

func fileNameFor(mimeType string) string {
	extensions, err := mime.ExtensionsByType(mimeType)
	if err == nil && len(extensions) > 0 {
		return "upload" + extensions[0]
	}
	return "upload.bin"
}
