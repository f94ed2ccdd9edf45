// Package oracle contains minimal HTTP clients for the external data oracles:
// Allora (price predictions), the query router (spot prices and free-form
// queries), and the image generation service. Each client takes a context,
// decodes JSON, and reports non-2xx responses as errors; timeouts come from
// the injected http.Client.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
)

// AlloraClient fetches price inferences from the Allora consumer API.
type AlloraClient struct {
	BaseURL    string
	APIKey     string
	ChainSlug  string // testnet | mainnet
	HTTPClient *http.Client
}

func (c *AlloraClient) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *AlloraClient) chain() string {
	if c.ChainSlug != "" {
		return c.ChainSlug
	}
	return "mainnet"
}

// PriceInference returns the network's predicted price for the asset over the
// given timeframe (e.g. "5m", "8h"), as the raw text the API reports.
func (c *AlloraClient) PriceInference(ctx context.Context, asset, timeframe string) (string, error) {
	if asset == "" {
		return "", fmt.Errorf("asset empty")
	}
	endpoint := fmt.Sprintf("%s/v2/allora/consumer/price/%s/%s/%s",
		c.BaseURL, url.PathEscape(c.chain()), url.PathEscape(asset), url.PathEscape(timeframe))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")
	if c.APIKey != "" {
		req.Header.Set("x-api-key", c.APIKey)
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
		return "", fmt.Errorf("allora status %d", resp.StatusCode)
	}
	var body struct {
		Data struct {
			InferenceData struct {
				NetworkInference string `json:"network_inference_normalized"`
			} `json:"inference_data"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	if body.Data.InferenceData.NetworkInference == "" {
		return "", fmt.Errorf("allora response missing inference")
	}
	return body.Data.InferenceData.NetworkInference, nil
}
