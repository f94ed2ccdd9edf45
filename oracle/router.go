package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

// RouterClient talks to the general-purpose query router: a service that
// takes a free-form question and routes it to the right backend (token
// prices, news, math, page summaries). The prediction game uses it as the
// spot-price oracle.
type RouterClient struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

func (c *RouterClient) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// Query sends a free-form query and returns the processed response text.
func (c *RouterClient) Query(ctx context.Context, query string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("query empty")
	}
	payload, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/router/query", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	resp, err := c.http().Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("router status %d", resp.StatusCode)
	}
	var body struct {
		Response struct {
			ProcessedResponse string `json:"processed_response"`
		} `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	if body.Response.ProcessedResponse == "" {
		return "", fmt.Errorf("router response empty")
	}
	return body.Response.ProcessedResponse, nil
}

// Price asks the router for the current price of an asset.
func (c *RouterClient) Price(ctx context.Context, asset string) (string, error) {
	return c.Query(ctx, fmt.Sprintf("price of %s at the moment", asset))
}
