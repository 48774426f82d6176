package courtapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrNoAPIKey is returned when the court API key is not configured.
var ErrNoAPIKey = errors.New("court API key is not configured")

// UpstreamError carries the status of a failed court API call.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("court api error: status %d | %s", e.StatusCode, e.Body)
}

// Client proxies CNR lookups to the external court-records API.
type Client struct {
	baseURL string // e.g. https://apis.akshit.net/eciapi/17
	apiKey  string
	http    *http.Client
}

func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// tierPath picks the upstream endpoint from the CNR prefix. High-court CNRs
// carry "HC" as the court code in positions 3-4 (e.g. DLHC01...); everything
// else goes to the district-court endpoint. A fixed lookup, not a CNR parser.
func tierPath(cnr string) string {
	if len(cnr) >= 4 && strings.ToUpper(cnr[2:4]) == "HC" {
		return "/high-court/case"
	}
	return "/district-court/case"
}

// Lookup forwards the CNR and relays the upstream JSON verbatim.
func (c *Client) Lookup(ctx context.Context, cnr string) (json.RawMessage, error) {
	if c.apiKey == "" {
		return nil, ErrNoAPIKey
	}

	body, _ := json.Marshal(map[string]string{"cnr": cnr})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+tierPath(cnr), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("court api request failed: %w", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("court api read failed: %w", err)
	}
	if res.StatusCode >= 300 {
		return nil, &UpstreamError{StatusCode: res.StatusCode, Body: string(raw)}
	}
	return json.RawMessage(raw), nil
}
