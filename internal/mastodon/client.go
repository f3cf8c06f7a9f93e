package mastodon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path"
	"time"

	"github.com/google/uuid"

	"mastodon_syncer/internal/domain"
	"mastodon_syncer/internal/retry"
)

const (
	userAgent = "Mozilla/5.0 (compatible; MastodonSyncBot/1.0)"

	// Videos above this size are skipped rather than uploaded. Matches the
	// target network's default media policy.
	maxVideoSizeBytes = 40 << 20

	// Media captions are truncated to this many characters before upload.
	maxDescriptionLength = 1500
)

var (
	// ErrMediaTimeout marks a media download aborted by the configured
	// timeout, distinct from other network failures.
	ErrMediaTimeout = errors.New("media download timed out")

	// ErrEmptyMedia marks a media download that returned no bytes.
	ErrEmptyMedia = errors.New("media payload is empty")
)

// APIError is a non-success response from the Mastodon API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mastodon API error (status %d): %s", e.StatusCode, e.Body)
}

// Account is the result of credential verification.
type Account struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Acct     string `json:"acct"`
}

// Attachment is an uploaded media reference.
type Attachment struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Status is a created post.
type Status struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Config holds Mastodon client configuration.
type Config struct {
	BaseURL         string
	AccessToken     string
	Visibility      string
	MaxStatusLength int
	Timeout         time.Duration
	RetryAttempts   int
	MediaTimeout    time.Duration
}

// Client talks to a Mastodon-compatible API: credential verification,
// media upload, and status creation.
type Client struct {
	httpClient   *http.Client
	mediaClient  *http.Client
	baseURL      string
	accessToken  string
	visibility   string
	maxLength    int
	retryPolicy  retry.Policy
	mediaTimeout time.Duration
	logger       *slog.Logger
}

// New creates a Mastodon client.
func New(cfg Config, logger *slog.Logger) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		// Media downloads are bounded per call by MediaTimeout, not by a
		// client-wide deadline.
		mediaClient:  &http.Client{},
		baseURL:      cfg.BaseURL,
		accessToken:  cfg.AccessToken,
		visibility:   cfg.Visibility,
		maxLength:    cfg.MaxStatusLength,
		mediaTimeout: cfg.MediaTimeout,
		logger:       logger.With("component", "mastodon"),
	}
	c.retryPolicy = retry.Policy{
		MaxAttempts:    cfg.RetryAttempts,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
		OnAttempt: func(attempt int, err error) {
			c.logger.Warn("media upload attempt failed",
				"attempt", attempt,
				"max_attempts", cfg.RetryAttempts,
				"error", err,
			)
		},
	}
	return c
}

// VerifyCredentials confirms the configured token resolves to an account.
// A failure here is fatal to startup.
func (c *Client) VerifyCredentials(ctx context.Context) (*Account, error) {
	var account Account
	if err := c.get(ctx, "/api/v1/accounts/verify_credentials", &account); err != nil {
		return nil, fmt.Errorf("verify credentials: %w", err)
	}
	return &account, nil
}

// UploadMedia downloads the attachment's bytes and uploads them with their
// content type and caption. Oversized videos are skipped: the return is
// (nil, nil), logged as a warning, and the item proceeds without them.
func (c *Client) UploadMedia(ctx context.Context, media domain.MediaAttachment) (*Attachment, error) {
	data, contentType, err := c.downloadMedia(ctx, media.URL)
	if err != nil {
		return nil, err
	}

	sizeMB := float64(len(data)) / (1 << 20)
	c.logger.Debug("media downloaded", "url", media.URL, "size_mb", fmt.Sprintf("%.2f", sizeMB))

	if media.Type == domain.MediaVideo && len(data) > maxVideoSizeBytes {
		c.logger.Warn("video exceeds size limit, skipping",
			"url", media.URL,
			"size_mb", fmt.Sprintf("%.2f", sizeMB),
		)
		return nil, nil
	}

	attachment, err := c.createMedia(ctx, media, data, contentType)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("media uploaded", "id", attachment.ID)
	return attachment, nil
}

// UploadMediaWithRetry wraps UploadMedia in the bounded retry loop. A
// timeout is retried like any other transient failure; the final error
// propagates after the last attempt.
func (c *Client) UploadMediaWithRetry(ctx context.Context, media domain.MediaAttachment) (*Attachment, error) {
	return retry.Do(ctx, c.retryPolicy, func(ctx context.Context) (*Attachment, error) {
		return c.UploadMedia(ctx, media)
	})
}

// PostStatus submits the formatted item text with the configured
// visibility and any uploaded media references.
func (c *Client) PostStatus(ctx context.Context, item *domain.FeedItem, mediaIDs []string) (*Status, error) {
	params := statusParams{
		Status:     FormatStatus(item, c.maxLength),
		Visibility: c.visibility,
	}
	if len(mediaIDs) > 0 {
		params.MediaIDs = mediaIDs
	}

	payload, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal status: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/statuses", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", uuid.NewString())

	var status Status
	if err := c.do(req, &status); err != nil {
		return nil, fmt.Errorf("create status: %w", err)
	}
	return &status, nil
}

type statusParams struct {
	Status     string   `json:"status"`
	Visibility string   `json:"visibility"`
	MediaIDs   []string `json:"media_ids,omitempty"`
}

// downloadMedia fetches the attachment bytes, abortable mid-transfer once
// the media timeout elapses.
func (c *Client) downloadMedia(ctx context.Context, mediaURL string) ([]byte, string, error) {
	dlCtx, cancel := context.WithTimeout(ctx, c.mediaTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(dlCtx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.mediaClient.Do(req)
	if err != nil {
		return nil, "", c.mediaError(dlCtx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("download media: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", c.mediaError(dlCtx, err)
	}

	if len(data) == 0 {
		return nil, "", ErrEmptyMedia
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return data, contentType, nil
}

func (c *Client) mediaError(dlCtx context.Context, err error) error {
	if errors.Is(dlCtx.Err(), context.DeadlineExceeded) {
		return ErrMediaTimeout
	}
	return fmt.Errorf("download media: %w", err)
}

func (c *Client) createMedia(ctx context.Context, media domain.MediaAttachment, data []byte, contentType string) (*Attachment, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, mediaFilename(media.URL)))
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("create form part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("write form part: %w", err)
	}

	if media.Description != "" {
		if err := writer.WriteField("description", truncateRunes(media.Description, maxDescriptionLength)); err != nil {
			return nil, fmt.Errorf("write description: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v2/media", &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var attachment Attachment
	if err := c.do(req, &attachment); err != nil {
		return nil, fmt.Errorf("create media: %w", err)
	}
	return &attachment, nil
}

func mediaFilename(mediaURL string) string {
	parsed, err := url.Parse(mediaURL)
	if err != nil || path.Base(parsed.Path) == "/" || path.Base(parsed.Path) == "." {
		return "media"
	}
	return path.Base(parsed.Path)
}

func (c *Client) get(ctx context.Context, apiPath string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+apiPath, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(req, result)
}

func (c *Client) do(req *http.Request, result any) error {
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if result != nil && len(body) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}
