package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mr1hm/go-health-surveillance/internal/models"
)

type HTTP struct {
	url    string
	client *http.Client
}

func NewHTTP(url string, timeout time.Duration) *HTTP {
	return &HTTP{
		url: url,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (h *HTTP) Deliver(ctx context.Context, r *models.Report) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("error encoding record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	// Lets the receiver drop resends of a record it already stored.
	req.Header.Set("Idempotency-Key", r.ID)

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("error while doing request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status code: %d - status: %s", resp.StatusCode, resp.Status)
	}
	return nil
}
