package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/betshop/settlement/internal/domain"
)

// ReceiptParser turns a receipt photograph into structured numbers. The
// engine only ever reads the fixed set of fields on ParsedReceipt; how the
// image becomes numbers is entirely the collaborator's business.
type ReceiptParser interface {
	Parse(ctx context.Context, image []byte) (*domain.ParsedReceipt, error)
}

// HTTPParser posts the image to an external OCR service and decodes the
// ParsedReceipt it returns. The observed service can take up to two minutes
// on a busy day, so the client timeout is generous; callers still bound the
// call with their own context.
type HTTPParser struct {
	url    string
	client *http.Client
}

func NewHTTPParser(url string, timeout time.Duration) *HTTPParser {
	return &HTTPParser{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (p *HTTPParser) Parse(ctx context.Context, image []byte) (*domain.ParsedReceipt, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(image))
	if err != nil {
		return nil, fmt.Errorf("build ocr request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ocr call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("ocr returned %d: %s", resp.StatusCode, body)
	}

	var receipt domain.ParsedReceipt
	if err := json.NewDecoder(resp.Body).Decode(&receipt); err != nil {
		return nil, fmt.Errorf("decode ocr response: %w", err)
	}
	if err := receipt.Validate(); err != nil {
		return nil, fmt.Errorf("ocr result rejected: %w", err)
	}
	return &receipt, nil
}
