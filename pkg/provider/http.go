package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// HTTPGateway fetches daily payloads from a provider-shaped HTTP
// endpoint: GET {base}/users/{email}/{dataType}?date=YYYY-MM-DD with a
// bearer token. Authentication flows beyond a static token live in the
// deployment's sidecar or proxy, not here.
type HTTPGateway struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPGateway builds a gateway against baseURL. client may be nil.
func NewHTTPGateway(baseURL, token string, client *http.Client) *HTTPGateway {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPGateway{baseURL: baseURL, token: token, client: client}
}

// Fetch implements Gateway. 404 means no data for the day; 429 and
// 5xx are transient; other non-200s are permanent for the cycle.
func (g *HTTPGateway) Fetch(ctx context.Context, email string, day time.Time, dataType string) (json.RawMessage, error) {
	endpoint := fmt.Sprintf("%s/users/%s/%s?date=%s",
		g.baseURL, url.PathEscape(email), url.PathEscape(dataType), day.Format("2006-01-02"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build provider request: %w", err)
	}
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, Transient(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, Transient(err)
		}
		if len(body) == 0 {
			return nil, ErrNoData
		}
		return json.RawMessage(body), nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNoData
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, Transient(fmt.Errorf("provider returned %d", resp.StatusCode))
	default:
		return nil, fmt.Errorf("provider returned %d", resp.StatusCode)
	}
}
