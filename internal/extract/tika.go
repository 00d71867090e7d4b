// Package extract provides plain-text extraction for uploaded documents via
// an Apache Tika server.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"time"
)

// ErrNoServerURL is returned when the Tika server URL is not configured
var ErrNoServerURL = errors.New("tika server URL is required")

// TikaClient extracts document text by PUTting the raw bytes to a Tika server.
type TikaClient struct {
	serverURL  string
	httpClient *http.Client
}

// NewTikaClient creates a new TikaClient instance
func NewTikaClient(serverURL string) (*TikaClient, error) {
	if serverURL == "" {
		return nil, ErrNoServerURL
	}
	return &TikaClient{
		serverURL: serverURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}, nil
}

// NewTikaClientWithHTTPClient creates a TikaClient with a custom HTTP client
// (for testing).
func NewTikaClientWithHTTPClient(serverURL string, httpClient *http.Client) (*TikaClient, error) {
	c, err := NewTikaClient(serverURL)
	if err != nil {
		return nil, err
	}
	c.httpClient = httpClient
	return c, nil
}

// ExtractText extracts plain text from document bytes. The MIME type is
// inferred from the filename extension so Tika picks the right parser.
func (c *TikaClient) ExtractText(ctx context.Context, content []byte, filename string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.serverURL+"/tika", bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("failed to build tika request: %w", err)
	}
	req.Header.Set("Accept", "text/plain")
	req.Header.Set("Content-Type", detectMimeType(filename))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("tika request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("tika returned status %d: %s", resp.StatusCode, string(body))
	}

	text, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read tika response: %w", err)
	}

	return string(text), nil
}

// PlainText is a fallback extractor that returns the raw bytes as text.
// Suitable only for .txt and .md uploads when no Tika server is available.
type PlainText struct{}

func (PlainText) ExtractText(ctx context.Context, content []byte, filename string) (string, error) {
	return string(content), nil
}

// detectMimeType maps a filename extension to a Content-Type
func detectMimeType(filename string) string {
	ext := filepath.Ext(filename)
	if ext == "" {
		return "application/octet-stream"
	}
	mimeType := mime.TypeByExtension(ext)
	if mimeType == "" {
		return "application/octet-stream"
	}
	return mimeType
}
