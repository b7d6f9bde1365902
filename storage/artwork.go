package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const maxArtworkBytes = 5 << 20 // 5MB

// ArtworkMirror copies remote cover images into our own bucket so song
// artwork survives upstream CDN link rotation.
type ArtworkMirror struct {
	uploader   FileUploader
	httpClient *http.Client
}

func NewArtworkMirror(uploader FileUploader) *ArtworkMirror {
	return &ArtworkMirror{
		uploader:   uploader,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Mirror downloads the source image and re-uploads it under a fresh key,
// returning the public URL of the copy.
func (m *ArtworkMirror) Mirror(ctx context.Context, sourceURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return "", fmt.Errorf("invalid artwork URL: %w", err)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch artwork: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("artwork fetch returned status %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}

	key := "artwork/" + uuid.NewString()
	result, err := m.uploader.Upload(ctx, key, contentType,
		io.LimitReader(resp.Body, maxArtworkBytes))
	if err != nil {
		return "", err
	}
	return result.Location, nil
}
