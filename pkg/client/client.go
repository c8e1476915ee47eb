// Package client provides the recipe API HTTP client with quota tracking,
// retries, a circuit breaker and typed errors.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/recipe-cache/pkg/kvstore"
	"github.com/Sternrassler/recipe-cache/pkg/ratelimit"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker/v2"
)

// DefaultBaseURL is the public recipe API.
const DefaultBaseURL = "https://api.spoonacular.com"

// Endpoint labels used in metrics and logs.
const (
	endpointSearch      = "complexSearch"
	endpointInformation = "information"
	endpointRandom      = "random"
)

// Client is the recipe API client.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	quota      *ratelimit.Tracker
	breaker    *gobreaker.CircuitBreaker[[]byte]
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// APIKey authenticates every request (REQUIRED)
	APIKey string

	// BaseURL of the recipe API
	BaseURL string

	// Search defaults
	Cuisine            string // cuisine filter for popular and healthy lists
	PageSize           int    // results per list (1..100)
	HealthyMaxCalories int    // calorie cap for the healthy list

	// Store persists quota state; nil disables quota gating
	Store kvstore.Store

	// HTTP
	Timeout time.Duration

	// Retry
	MaxRetries     int           // attempts per request, 0 keeps the per-class default
	InitialBackoff time.Duration // base backoff, 0 keeps the per-class default

	// Circuit breaker
	BreakerThreshold uint32        // consecutive failures before opening
	BreakerTimeout   time.Duration // open duration before half-open
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(store kvstore.Store, apiKey string) Config {
	return Config{
		APIKey:             apiKey,
		BaseURL:            DefaultBaseURL,
		Cuisine:            "Indian",
		PageSize:           10,
		HealthyMaxCalories: 300,
		Store:              store,
		Timeout:            30 * time.Second,
		BreakerThreshold:   5,
		BreakerTimeout:     30 * time.Second,
	}
}

// New creates a new recipe API client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	baseURL, err := url.Parse(cfg.BaseURL)
	if err != nil || baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}

	if cfg.PageSize < 1 || cfg.PageSize > 100 {
		return nil, fmt.Errorf("page_size must be between 1 and 100 (got %d)", cfg.PageSize)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BreakerThreshold == 0 {
		cfg.BreakerThreshold = 5
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}

	// Initialize logger
	logger := log.With().Str("component", "recipe-client").Logger()

	c := &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: baseURL,
		config:  cfg,
		logger:  logger,
	}

	// Create quota tracker
	if cfg.Store != nil {
		c.quota = ratelimit.NewTracker(cfg.Store, logger.With().Str("subcomponent", "quota").Logger())
	}

	// Create circuit breaker
	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "recipe-api",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			apiBreakerState.Set(float64(to))
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
		IsSuccessful: func(err error) bool {
			// Only failures a retry could fix count against the API
			return !shouldRetry(classOf(err))
		},
	})

	return c, nil
}

// PopularRecipes returns the most popular recipes of the configured cuisine.
func (c *Client) PopularRecipes(ctx context.Context) ([]RecipeSummary, error) {
	params := c.listParams()
	params.Set("sort", "popularity")
	return c.search(ctx, params)
}

// HealthyRecipes returns recipes of the configured cuisine under the
// calorie cap.
func (c *Client) HealthyRecipes(ctx context.Context) ([]RecipeSummary, error) {
	params := c.listParams()
	params.Set("maxCalories", strconv.Itoa(c.config.HealthyMaxCalories))
	return c.search(ctx, params)
}

// RecipesByCategory returns recipes of the given meal category
// (e.g. "Breakfast", "Dessert").
func (c *Client) RecipesByCategory(ctx context.Context, category string) ([]RecipeSummary, error) {
	params := c.listParams()
	params.Set("type", MealType(category))
	return c.search(ctx, params)
}

// SearchRecipes runs a free-text search.
func (c *Client) SearchRecipes(ctx context.Context, query string) ([]RecipeSummary, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("number", strconv.Itoa(c.config.PageSize))
	return c.search(ctx, params)
}

// RecipeByID returns the full information of one recipe.
func (c *Client) RecipeByID(ctx context.Context, id int) (Recipe, error) {
	var recipe Recipe

	body, err := c.get(ctx, endpointInformation, fmt.Sprintf("/recipes/%d/information", id), url.Values{})
	if err != nil {
		return recipe, err
	}

	if err := json.Unmarshal(body, &recipe); err != nil {
		return recipe, fmt.Errorf("decode %s response: %w", endpointInformation, ErrMalformedResponse)
	}
	return recipe, nil
}

// RandomRecipe returns one random recipe.
func (c *Client) RandomRecipe(ctx context.Context) (Recipe, error) {
	params := url.Values{}
	params.Set("number", "1")

	body, err := c.get(ctx, endpointRandom, "/recipes/random", params)
	if err != nil {
		return Recipe{}, err
	}

	var resp randomResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Recipe{}, fmt.Errorf("decode %s response: %w", endpointRandom, ErrMalformedResponse)
	}
	if len(resp.Recipes) == 0 {
		return Recipe{}, ErrNoRecipe
	}
	return resp.Recipes[0], nil
}

// MealType maps a meal category to the API's dish type filter.
func MealType(category string) string {
	switch strings.ToLower(strings.TrimSpace(category)) {
	case "lunch", "dinner":
		return "main course"
	case "snacks", "snack":
		return "snack"
	default:
		return strings.ToLower(strings.TrimSpace(category))
	}
}

// QuotaTracker returns the quota tracker, or nil when quota gating is off.
func (c *Client) QuotaTracker() *ratelimit.Tracker {
	return c.quota
}

// BreakerState returns the current circuit breaker state.
func (c *Client) BreakerState() gobreaker.State {
	return c.breaker.State()
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

func (c *Client) listParams() url.Values {
	params := url.Values{}
	if c.config.Cuisine != "" {
		params.Set("cuisine", c.config.Cuisine)
	}
	params.Set("number", strconv.Itoa(c.config.PageSize))
	return params
}

// search calls complex search. A response without a results array yields
// an empty, non-nil slice.
func (c *Client) search(ctx context.Context, params url.Values) ([]RecipeSummary, error) {
	body, err := c.get(ctx, endpointSearch, "/recipes/complexSearch", params)
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", endpointSearch, ErrMalformedResponse)
	}
	if resp.Results == nil {
		c.logger.Debug().Str("endpoint", endpointSearch).Msg("Response without results array")
		return []RecipeSummary{}, nil
	}
	return resp.Results, nil
}

// get performs a GET against the API with quota gating, retries and the
// circuit breaker, returning the body of a 2xx response.
func (c *Client) get(ctx context.Context, endpoint, path string, params url.Values) ([]byte, error) {
	// Start request timing
	startTime := time.Now()
	defer func() {
		apiRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	// Step 1: Check quota
	if c.quota != nil {
		allowed, err := c.quota.ShouldAllowRequest(ctx)
		if err != nil {
			return nil, fmt.Errorf("quota check: %w", err)
		}
		if !allowed {
			c.logger.Warn().
				Str("endpoint", endpoint).
				Msg("Request blocked by quota tracker")
			apiRequestsTotal.WithLabelValues(endpoint, "quota_blocked").Inc()
			return nil, ratelimit.ErrQuotaExhausted
		}
	}

	// Step 2: Build URL
	u := c.baseURL.JoinPath(path)
	query := url.Values{}
	for k, v := range params {
		query[k] = v
	}
	query.Set("apiKey", c.config.APIKey)
	u.RawQuery = query.Encode()

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("path", path).
		Msg("Executing recipe API request")

	// Step 3: Execute with retry, each attempt through the breaker
	var body []byte
	err := retryWithBackoff(ctx, func() error {
		var attemptErr error
		body, attemptErr = c.breaker.Execute(func() ([]byte, error) {
			return c.do(ctx, endpoint, u.String())
		})
		if errors.Is(attemptErr, gobreaker.ErrOpenState) || errors.Is(attemptErr, gobreaker.ErrTooManyRequests) {
			apiRequestsTotal.WithLabelValues(endpoint, "breaker_open").Inc()
			return fmt.Errorf("%w: %v", ErrCircuitOpen, attemptErr)
		}
		return attemptErr
	}, classOf, c.retryConfig)
	if err != nil {
		return nil, err
	}

	return body, nil
}

// do sends one request.
func (c *Client) do(ctx context.Context, endpoint, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			urlErr.URL = redact(urlErr.URL)
		}
		if class := classOf(err); class != "" {
			apiErrorsTotal.WithLabelValues(string(class)).Inc()
		}
		apiRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		return nil, err
	}
	defer resp.Body.Close()

	// Update quota from headers
	if c.quota != nil {
		if err := c.quota.UpdateFromHeaders(ctx, resp.Header); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to update quota from headers")
		}
	}

	apiRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: classifyStatus(resp.StatusCode),
			Message:    resp.Status,
		}
		if apiErr.ErrorClass == ErrorClassQuota {
			apiErr.Err = ratelimit.ErrQuotaExhausted
		}
		apiErrorsTotal.WithLabelValues(string(apiErr.ErrorClass)).Inc()

		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("error_class", string(apiErr.ErrorClass)).
			Msg("Recipe API request error")
		return nil, apiErr
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("decode %s response: %w", endpoint, ErrMalformedResponse)
	}
	return body, nil
}

// retryConfig applies the configured overrides to the per-class defaults.
func (c *Client) retryConfig(class ErrorClass) RetryConfig {
	rc := RetryConfigForErrorClass(class)
	if c.config.MaxRetries > 0 {
		rc.MaxAttempts = c.config.MaxRetries
	}
	if c.config.InitialBackoff > 0 {
		// Keep the per-class ratios relative to the 1s default base
		scale := func(d time.Duration) time.Duration {
			return time.Duration(int64(d/time.Millisecond) * int64(c.config.InitialBackoff) / 1000)
		}
		rc.InitialBackoff = scale(rc.InitialBackoff)
		rc.MaxBackoff = scale(rc.MaxBackoff)
	}
	return rc
}

// classifyStatus categorizes a non-2xx status code.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusPaymentRequired:
		return ErrorClassQuota
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 400 && status < 500:
		return ErrorClassClient
	default:
		return ErrorClassServer
	}
}

// redact removes the API key from a URL.
func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid url>"
	}
	q := u.Query()
	if q.Has("apiKey") {
		q.Set("apiKey", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
