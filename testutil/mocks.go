// Package testutil provides httptest-backed mocks for the external services
// the bot talks to: the Telegram Bot API and the price oracles.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
)

// MockTelegramServer mocks the Telegram Bot API. Handlers are keyed by method
// name (e.g. "sendMessage", "sendPoll"); unhandled methods return a generic
// ok response. Every request's form values are recorded for assertions.
type MockTelegramServer struct {
	*httptest.Server

	mu       sync.Mutex
	Handlers map[string]http.HandlerFunc
	requests map[string][]url.Values
}

// NewMockTelegramServer creates a mock Bot API server with getMe prewired so
// NewBotAPIWithAPIEndpoint can authorize against it. Use Endpoint() as the
// API endpoint template.
func NewMockTelegramServer(t *testing.T) *MockTelegramServer {
	t.Helper()
	m := &MockTelegramServer{
		Handlers: make(map[string]http.HandlerFunc),
		requests: make(map[string][]url.Values),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Paths look like /bot<token>/<method>.
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		method := parts[len(parts)-1]
		_ = r.ParseForm()
		m.mu.Lock()
		m.requests[method] = append(m.requests[method], r.Form)
		handler, ok := m.Handlers[method]
		m.mu.Unlock()
		if ok {
			handler(w, r)
			return
		}
		switch method {
		case "getMe":
			writeResult(w, map[string]any{"id": 42, "is_bot": true, "username": "mockbot", "first_name": "Mock"})
		case "sendMessage", "sendPoll", "sendPhoto":
			writeResult(w, map[string]any{"message_id": 1000 + len(m.Requests(method)), "chat": map[string]any{"id": 1}})
		default:
			writeResult(w, true)
		}
	}))
	t.Cleanup(m.Close)
	return m
}

// Endpoint returns the API endpoint template for tgbotapi.NewBotAPIWithAPIEndpoint.
func (m *MockTelegramServer) Endpoint() string {
	return m.Server.URL + "/bot%s/%s"
}

// Requests returns the recorded form values for a method, in arrival order.
func (m *MockTelegramServer) Requests(method string) []url.Values {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]url.Values, len(m.requests[method]))
	copy(out, m.requests[method])
	return out
}

// FailMethod makes a method return a Telegram API error.
func (m *MockTelegramServer) FailMethod(method string, description string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Handlers[method] = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":          false,
			"error_code":  400,
			"description": description,
		})
	}
}

func writeResult(w http.ResponseWriter, result any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": result}) //nolint:errcheck // test mock response
}

// MockOracleServer mocks the oracle HTTP APIs (router, Allora, imagegen).
// Handlers are keyed by URL path.
type MockOracleServer struct {
	*httptest.Server
	Handlers map[string]http.HandlerFunc
}

// NewMockOracleServer creates a new mock oracle server.
func NewMockOracleServer(t *testing.T) *MockOracleServer {
	t.Helper()
	m := &MockOracleServer{Handlers: make(map[string]http.HandlerFunc)}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := m.Handlers[r.URL.Path]; ok {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(m.Close)
	return m
}

// MockRouterResponse wires /v1/router/query to answer with the given text.
func (m *MockOracleServer) MockRouterResponse(text string) {
	m.Handlers["/v1/router/query"] = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck // test mock response
			"response": map[string]string{"processed_response": text},
		})
	}
}

// MockAlloraResponse wires the price inference path for an asset/timeframe to
// return the given normalized inference.
func (m *MockOracleServer) MockAlloraResponse(chainSlug, asset, timeframe, inference string) {
	path := "/v2/allora/consumer/price/" + chainSlug + "/" + asset + "/" + timeframe
	m.Handlers[path] = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck // test mock response
			"data": map[string]any{
				"inference_data": map[string]string{
					"network_inference_normalized": inference,
				},
			},
		})
	}
}

// MockImageResponse wires the image generation path to return the given URL.
func (m *MockOracleServer) MockImageResponse(imageURL string) {
	m.Handlers["/v1/images/generations"] = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck // test mock response
			"data": []map[string]string{{"url": imageURL}},
		})
	}
}

// MockStatus wires a path to return a bare status code.
func (m *MockOracleServer) MockStatus(path string, code int) {
	m.Handlers[path] = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
	}
}
