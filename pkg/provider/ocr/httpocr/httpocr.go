// Package httpocr implements [ocr.Extractor] against a self-hosted OCR
// sidecar (e.g. a tesseract-server instance) that accepts raw image bytes and
// returns extracted text.
package httpocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/lernobot/lernobot/pkg/provider/ocr"
)

// Compile-time interface assertion.
var _ ocr.Extractor = (*Extractor)(nil)

// Extractor posts images to an HTTP OCR service.
type Extractor struct {
	endpoint string
	client   *http.Client
}

// New creates an Extractor for the OCR service at endpoint.
func New(endpoint string) (*Extractor, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("httpocr: endpoint must not be empty")
	}
	return &Extractor{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   &http.Client{},
	}, nil
}

// ocrResponse mirrors the sidecar's JSON payload.
type ocrResponse struct {
	Text string `json:"text"`
}

// ExtractText implements [ocr.Extractor]. The variant is passed to the
// sidecar as the "mode" query parameter; sidecars that ignore it simply
// behave identically across attempts.
func (e *Extractor) ExtractText(ctx context.Context, image []byte, variant ocr.Variant) (string, error) {
	url := e.endpoint + "/ocr"
	if variant != "" {
		url += "?mode=" + string(variant)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(image))
	if err != nil {
		return "", fmt.Errorf("httpocr: build request: %w", err)
	}
	req.Header.Set("Content-Type", http.DetectContentType(image))

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("httpocr: extract: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("httpocr: extract: status %d: %s", resp.StatusCode, string(body))
	}

	var out ocrResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("httpocr: decode response: %w", err)
	}

	text := strings.TrimSpace(out.Text)
	if text == "" {
		return "", ocr.ErrNoText
	}
	return text, nil
}
