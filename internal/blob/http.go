package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gatherly/server/internal/config"
	"github.com/rs/zerolog"
)

// HTTPStore talks to a storage service with a Supabase-style REST
// surface: POST {endpoint}/object/{bucket}/{path} with a bearer key, and
// publicly readable objects under {public_base}/{bucket}/{path}.
type HTTPStore struct {
	endpoint   string
	publicBase string
	apiKey     string
	client     *http.Client
	logger     zerolog.Logger
}

func NewHTTPStore(cfg config.StorageConfig, logger zerolog.Logger) (*HTTPStore, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("storage endpoint is required")
	}
	if _, err := url.Parse(cfg.Endpoint); err != nil {
		return nil, fmt.Errorf("invalid storage endpoint: %w", err)
	}
	publicBase := cfg.PublicBaseURL
	if publicBase == "" {
		publicBase = strings.TrimSuffix(cfg.Endpoint, "/") + "/object/public"
	}
	return &HTTPStore{
		endpoint:   strings.TrimSuffix(cfg.Endpoint, "/"),
		publicBase: strings.TrimSuffix(publicBase, "/"),
		apiKey:     cfg.APIKey,
		client:     &http.Client{Timeout: 30 * time.Second},
		logger:     logger.With().Str("component", "blob").Logger(),
	}, nil
}

func (s *HTTPStore) Upload(ctx context.Context, bucket, path string, data []byte, contentType string) (string, error) {
	uploadURL := fmt.Sprintf("%s/object/%s/%s", s.endpoint, url.PathEscape(bucket), path)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload object: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("upload object: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	publicURL := fmt.Sprintf("%s/%s/%s", s.publicBase, bucket, path)
	s.logger.Debug().Str("bucket", bucket).Str("path", path).Msg("object uploaded")
	return publicURL, nil
}
