package mastodon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mastodon_syncer/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestClient(t *testing.T, api http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(api)
	t.Cleanup(server.Close)

	return New(Config{
		BaseURL:         server.URL,
		AccessToken:     "test-token",
		Visibility:      "public",
		MaxStatusLength: 500,
		Timeout:         5 * time.Second,
		RetryAttempts:   3,
		MediaTimeout:    5 * time.Second,
	}, testLogger())
}

func serveMedia(t *testing.T, data []byte, contentType string) string {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write(data)
	}))
	t.Cleanup(server.Close)
	return server.URL
}

func TestVerifyCredentials(t *testing.T) {
	var gotAuth string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/accounts/verify_credentials", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(Account{ID: "1", Username: "bot"})
	}))

	account, err := client.VerifyCredentials(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "bot", account.Username)
	assert.Equal(t, "Bearer test-token", gotAuth)
}

func TestVerifyCredentials_AuthFailure(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"The access token is invalid"}`))
	}))

	_, err := client.VerifyCredentials(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestUploadMedia(t *testing.T) {
	mediaURL := serveMedia(t, []byte("fake-image-bytes"), "image/jpeg")

	var gotContentType string
	var gotDescription string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v2/media", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		gotContentType = header.Header.Get("Content-Type")
		gotDescription = r.FormValue("description")

		_ = json.NewEncoder(w).Encode(Attachment{ID: "media-1"})
	}))

	attachment, err := client.UploadMedia(context.Background(), domain.MediaAttachment{
		URL:         mediaURL,
		Type:        domain.MediaImage,
		Description: "A caption",
	})
	require.NoError(t, err)
	require.NotNil(t, attachment)
	assert.Equal(t, "media-1", attachment.ID)
	assert.Equal(t, "image/jpeg", gotContentType)
	assert.Equal(t, "A caption", gotDescription)
}

func TestUploadMedia_EmptyPayloadRejected(t *testing.T) {
	mediaURL := serveMedia(t, nil, "image/jpeg")
	client := newTestClient(t, http.NotFoundHandler())

	_, err := client.UploadMedia(context.Background(), domain.MediaAttachment{
		URL:  mediaURL,
		Type: domain.MediaImage,
	})
	assert.ErrorIs(t, err, ErrEmptyMedia)
}

func TestUploadMedia_TimeoutIsDistinct(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(500 * time.Millisecond)
		_, _ = w.Write([]byte("too late"))
	}))
	t.Cleanup(slow.Close)

	client := newTestClient(t, http.NotFoundHandler())
	client.mediaTimeout = 50 * time.Millisecond

	_, err := client.UploadMedia(context.Background(), domain.MediaAttachment{
		URL:  slow.URL,
		Type: domain.MediaImage,
	})
	assert.ErrorIs(t, err, ErrMediaTimeout)
}

func TestUploadMedia_DownloadFailure(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(broken.Close)

	client := newTestClient(t, http.NotFoundHandler())

	_, err := client.UploadMedia(context.Background(), domain.MediaAttachment{
		URL:  broken.URL,
		Type: domain.MediaImage,
	})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMediaTimeout)
}

func TestUploadMedia_VideoSizePolicy(t *testing.T) {
	t.Run("41MB video skipped", func(t *testing.T) {
		mediaURL := serveMedia(t, bytes.Repeat([]byte{0xAB}, 41<<20), "video/mp4")
		client := newTestClient(t, http.NotFoundHandler()) // upload must never happen

		attachment, err := client.UploadMedia(context.Background(), domain.MediaAttachment{
			URL:  mediaURL,
			Type: domain.MediaVideo,
		})
		require.NoError(t, err)
		assert.Nil(t, attachment)
	})

	t.Run("39MB video uploaded", func(t *testing.T) {
		mediaURL := serveMedia(t, bytes.Repeat([]byte{0xAB}, 39<<20), "video/mp4")
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(Attachment{ID: "media-2"})
		}))

		attachment, err := client.UploadMedia(context.Background(), domain.MediaAttachment{
			URL:  mediaURL,
			Type: domain.MediaVideo,
		})
		require.NoError(t, err)
		require.NotNil(t, attachment)
		assert.Equal(t, "media-2", attachment.ID)
	})

	t.Run("41MB image still uploaded", func(t *testing.T) {
		mediaURL := serveMedia(t, bytes.Repeat([]byte{0xAB}, 41<<20), "image/png")
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(Attachment{ID: "media-3"})
		}))

		attachment, err := client.UploadMedia(context.Background(), domain.MediaAttachment{
			URL:  mediaURL,
			Type: domain.MediaImage,
		})
		require.NoError(t, err)
		require.NotNil(t, attachment)
	})
}

func TestUploadMediaWithRetry_EventualSuccess(t *testing.T) {
	mediaURL := serveMedia(t, []byte("image"), "image/jpeg")

	var attempts int
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(Attachment{ID: "media-1"})
	}))
	client.retryPolicy.InitialBackoff = time.Millisecond

	attachment, err := client.UploadMediaWithRetry(context.Background(), domain.MediaAttachment{
		URL:  mediaURL,
		Type: domain.MediaImage,
	})
	require.NoError(t, err)
	assert.Equal(t, "media-1", attachment.ID)
	assert.Equal(t, 3, attempts)
}

func TestUploadMediaWithRetry_ExhaustsAttempts(t *testing.T) {
	mediaURL := serveMedia(t, []byte("image"), "image/jpeg")

	var attempts int
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	client.retryPolicy.InitialBackoff = time.Millisecond

	_, err := client.UploadMediaWithRetry(context.Background(), domain.MediaAttachment{
		URL:  mediaURL,
		Type: domain.MediaImage,
	})
	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestPostStatus(t *testing.T) {
	var gotBody statusParams
	var gotIdempotency string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/statuses", r.URL.Path)
		gotIdempotency = r.Header.Get("Idempotency-Key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(Status{ID: "1", URL: "https://mastodon.social/@bot/1"})
	}))

	item := &domain.FeedItem{Title: "Hello", URL: "https://example.com/1"}
	status, err := client.PostStatus(context.Background(), item, []string{"m1", "m2"})
	require.NoError(t, err)

	assert.Equal(t, "https://mastodon.social/@bot/1", status.URL)
	assert.Equal(t, "Hello\n\n🔗 https://example.com/1", gotBody.Status)
	assert.Equal(t, "public", gotBody.Visibility)
	assert.Equal(t, []string{"m1", "m2"}, gotBody.MediaIDs)
	assert.NotEmpty(t, gotIdempotency)
}

func TestPostStatus_NoMediaOmitsField(t *testing.T) {
	var raw map[string]any
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		_ = json.NewEncoder(w).Encode(Status{ID: "1", URL: "https://mastodon.social/@bot/1"})
	}))

	_, err := client.PostStatus(context.Background(), &domain.FeedItem{Title: "Text only"}, nil)
	require.NoError(t, err)
	_, present := raw["media_ids"]
	assert.False(t, present)
}

func TestMediaFilename(t *testing.T) {
	assert.Equal(t, "pic.jpg", mediaFilename("https://example.com/images/pic.jpg?w=200"))
	assert.Equal(t, "media", mediaFilename("https://example.com/"))
}
