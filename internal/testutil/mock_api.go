// Package testutil provides testing utilities for the recipe cache: a mock
// recipe API, a fault-injecting store and a manual clock.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MockAPIKey is the API key the mock server accepts.
const MockAPIKey = "test-api-key"

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockRecipeAPI is a configurable mock recipe API server for testing.
type MockRecipeAPI struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	requestCount int
	pathCounts   map[string]int
	lastQuery    url.Values
	pointsLeft   float64
}

// NewMockRecipeAPI creates a new mock recipe API server.
func NewMockRecipeAPI() *MockRecipeAPI {
	mock := &MockRecipeAPI{
		handlers:   make(map[string]func(w http.ResponseWriter, r *http.Request)),
		pathCounts: make(map[string]int),
		pointsLeft: 150,
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requestCount++
		mock.pathCounts[r.URL.Path]++
		mock.lastQuery = r.URL.Query()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockRecipeAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockRecipeAPI) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockRecipeAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.pathCounts = make(map[string]int)
	m.lastQuery = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockRecipeAPI) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockRecipeAPI) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}

		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetSequence serves the responses in order for path, repeating the last
// one once the sequence is used up.
func (m *MockRecipeAPI) SetSequence(path string, responses ...MockResponse) {
	var (
		mu   sync.Mutex
		next int
	)
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		resp := responses[next]
		if next < len(responses)-1 {
			next++
		}
		mu.Unlock()

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetPointsLeft sets the X-API-Quota-Left value of default responses.
func (m *MockRecipeAPI) SetPointsLeft(points float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pointsLeft = points
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockRecipeAPI) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// GetPathCount returns the number of requests made to path.
func (m *MockRecipeAPI) GetPathCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pathCounts[path]
}

// LastQuery returns the query parameters of the most recent request.
func (m *MockRecipeAPI) LastQuery() url.Values {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastQuery
}

// defaultHandler provides API-like responses for the recipe endpoints.
func (m *MockRecipeAPI) defaultHandler(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	left := m.pointsLeft
	m.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-API-Quota-Request", "1")
	w.Header().Set("X-API-Quota-Used", strconv.FormatFloat(150-left, 'f', -1, 64))
	w.Header().Set("X-API-Quota-Left", strconv.FormatFloat(left, 'f', -1, 64))

	if r.URL.Query().Get("apiKey") != MockAPIKey {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"status":"failure","code":401,"message":"You are not authorized."}`))
		return
	}

	path := r.URL.Path
	switch {
	case path == "/recipes/complexSearch":
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(SearchBody(SearchLabel(r.URL.Query()), 2)))

	case path == "/recipes/random":
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"recipes":[` + RecipeBody(715538) + `]}`))

	case strings.HasPrefix(path, "/recipes/") && strings.HasSuffix(path, "/information"):
		idStr := strings.TrimSuffix(strings.TrimPrefix(path, "/recipes/"), "/information")
		id, err := strconv.Atoi(idStr)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"status":"failure","code":400,"message":"invalid id"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(RecipeBody(id)))

	default:
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"status":"failure","code":404}`))
	}
}

// SearchLabel names the list a complex search query asks for.
func SearchLabel(q url.Values) string {
	switch {
	case q.Get("sort") == "popularity":
		return "Popular"
	case q.Get("maxCalories") != "":
		return "Healthy"
	case q.Get("type") != "":
		return q.Get("type")
	case q.Get("query") != "":
		return q.Get("query")
	default:
		return "Recipe"
	}
}

// SearchBody returns a complex search body with n results titled after label.
func SearchBody(label string, n int) string {
	var b strings.Builder
	b.WriteString(`{"results":[`)
	for i := 1; i <= n; i++ {
		if i > 1 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, `{"id":%d,"title":"%s %d","image":"https://img.example.com/%d.jpg","imageType":"jpg"}`,
			i, label, i, i)
	}
	fmt.Fprintf(&b, `],"offset":0,"number":%d,"totalResults":%d}`, n, n)
	return b.String()
}

// RecipeBody returns a recipe information body for id.
func RecipeBody(id int) string {
	return fmt.Sprintf(`{"id":%d,"title":"Recipe %d","servings":4,"readyInMinutes":30,`+
		`"vegetarian":true,"vegan":false,"glutenFree":true,"healthScore":42,`+
		`"extendedIngredients":[{"id":1,"name":"lentils","original":"1 cup lentils","amount":1,"unit":"cup"}]}`,
		id, id)
}

// NewHealthyResponse creates a 200 OK response with quota headers.
func NewHealthyResponse(body string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers: map[string]string{
			"X-API-Quota-Request": "1",
			"X-API-Quota-Used":    "10",
			"X-API-Quota-Left":    "140",
			"Content-Type":        "application/json",
		},
	}
}

// NewQuotaExceededResponse creates a 402 Payment Required response.
func NewQuotaExceededResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusPaymentRequired,
		Body:       `{"status":"failure","code":402,"message":"Your daily points limit of 150 has been reached."}`,
		Headers: map[string]string{
			"X-API-Quota-Request": "0",
			"X-API-Quota-Used":    "150",
			"X-API-Quota-Left":    "0",
			"Content-Type":        "application/json",
		},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"status":"failure","code":429,"message":"Too many requests"}`,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"status":"failure","code":500}`,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	}
}

// NewNotFoundResponse creates a 404 Not Found response.
func NewNotFoundResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusNotFound,
		Body:       `{"status":"failure","code":404,"message":"A recipe with the given id does not exist."}`,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	}
}
