package bible

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/verte-zerg/bibleclock/internal/model"
)

// DefaultAPIURL is the public bible-api.com endpoint.
const DefaultAPIURL = "https://bible-api.com"

const defaultTimeout = 10 * time.Second

type apiResponse struct {
	Reference string `json:"reference"`
	Text      string `json:"text"`
	Error     string `json:"error"`
}

// Client fetches single verses from a bible-api.com compatible service.
type Client struct {
	baseURL string
	timeout time.Duration
}

// NewClient returns a Client. A zero timeout uses ten seconds.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), timeout: timeout}
}

// Verse implements verse.Source.
func (c *Client) Verse(ctx context.Context, t model.Translation, book string, chapter, verse int) (string, error) {
	ref := fmt.Sprintf("%s %d:%d", book, chapter, verse)
	endpoint := c.baseURL + "/" + url.PathEscape(ref) + "?translation=" + url.QueryEscape(string(t))

	resp, err := httpRequest(ctx, endpoint, c.timeout)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", fmt.Errorf("%s %s: %w", t, ref, ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("unexpected bible api status: %s", resp.Status)
	}

	var payload apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to decode bible api response: %w", err)
	}
	text := strings.Join(strings.Fields(payload.Text), " ")
	if payload.Error != "" || text == "" {
		return "", fmt.Errorf("%s %s: %w", t, ref, ErrNotFound)
	}
	return text, nil
}

func httpRequest(ctx context.Context, url string, timeout time.Duration) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}
