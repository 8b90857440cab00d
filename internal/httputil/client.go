package httputil

import (
	"bytes"
	"io"
	"net/http"
	"sync"
)

// HTTPClient abstracts the client operations the telemetry simulator needs,
// so its posting loop can be tested against canned responses.
type HTTPClient interface {
	Post(url, contentType string, body io.Reader) (*http.Response, error)
}

// StandardClient wraps *http.Client to implement HTTPClient.
type StandardClient struct {
	*http.Client
}

// NewStandardClient creates a StandardClient, defaulting to
// http.DefaultClient when c is nil.
func NewStandardClient(c *http.Client) *StandardClient {
	if c == nil {
		c = http.DefaultClient
	}
	return &StandardClient{Client: c}
}

// Post issues a POST request.
func (c *StandardClient) Post(url, contentType string, body io.Reader) (*http.Response, error) {
	return c.Client.Post(url, contentType, body)
}

// MockResponse is a canned response for MockHTTPClient.
type MockResponse struct {
	StatusCode int
	Body       string
	Error      error
}

// MockHTTPClient records requests and replays queued responses. Once the
// queue is exhausted it keeps returning the final response.
type MockHTTPClient struct {
	mu        sync.Mutex
	Requests  []string // request bodies, in order
	URLs      []string
	responses []MockResponse
	idx       int
}

// NewMockHTTPClient creates an empty mock client.
func NewMockHTTPClient() *MockHTTPClient {
	return &MockHTTPClient{}
}

// AddResponse queues a canned response.
func (m *MockHTTPClient) AddResponse(statusCode int, body string) *MockHTTPClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, MockResponse{StatusCode: statusCode, Body: body})
	return m
}

// AddErrorResponse queues a transport-level error.
func (m *MockHTTPClient) AddErrorResponse(err error) *MockHTTPClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, MockResponse{Error: err})
	return m
}

// Post records the request body and returns the next canned response.
func (m *MockHTTPClient) Post(url, contentType string, body io.Reader) (*http.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var payload []byte
	if body != nil {
		payload, _ = io.ReadAll(body)
	}
	m.Requests = append(m.Requests, string(payload))
	m.URLs = append(m.URLs, url)

	if len(m.responses) == 0 {
		return &http.Response{
			StatusCode: http.StatusCreated,
			Body:       io.NopCloser(bytes.NewReader(nil)),
		}, nil
	}

	resp := m.responses[m.idx]
	if m.idx < len(m.responses)-1 {
		m.idx++
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return &http.Response{
		StatusCode: resp.StatusCode,
		Body:       io.NopCloser(bytes.NewBufferString(resp.Body)),
	}, nil
}
