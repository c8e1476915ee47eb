package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Sternrassler/recipe-cache/pkg/cache"
	"github.com/Sternrassler/recipe-cache/pkg/client"
	"github.com/Sternrassler/recipe-cache/pkg/kvstore"
	"github.com/Sternrassler/recipe-cache/pkg/metrics"
	"github.com/Sternrassler/recipe-cache/pkg/ratelimit"
	"github.com/Sternrassler/recipe-cache/pkg/recipes"
	"github.com/rs/zerolog"
)

// server holds the HTTP handlers of the serve command.
type server struct {
	service        *recipes.Service
	store          kvstore.Store
	requestTimeout time.Duration
	logger         zerolog.Logger
}

// routes returns the proxy's HTTP handler.
func (s *server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /recipes/popular", s.handleList(func(ctx context.Context, _ *http.Request) ([]client.RecipeSummary, error) {
		return s.service.Popular(ctx)
	}))
	mux.HandleFunc("GET /recipes/healthy", s.handleList(func(ctx context.Context, _ *http.Request) ([]client.RecipeSummary, error) {
		return s.service.Healthy(ctx)
	}))
	mux.HandleFunc("GET /recipes/category/{category}", s.handleList(func(ctx context.Context, r *http.Request) ([]client.RecipeSummary, error) {
		return s.service.ByCategory(ctx, r.PathValue("category"))
	}))
	mux.HandleFunc("GET /recipes/search", s.handleList(func(ctx context.Context, r *http.Request) ([]client.RecipeSummary, error) {
		return s.service.Search(ctx, r.URL.Query().Get("q"))
	}))
	mux.HandleFunc("GET /recipes/random", s.handleRandom)
	mux.HandleFunc("GET /recipes/{id}", s.handleRecipe)

	return mux
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := kvstore.Ping(ctx, s.store); err != nil {
		s.logger.Warn().Err(err).Msg("Readiness check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": "store unreachable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *server) handleList(fetch func(context.Context, *http.Request) ([]client.RecipeSummary, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
		defer cancel()

		list, err := fetch(ctx, r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if list == nil {
			list = []client.RecipeSummary{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func (s *server) handleRecipe(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "recipe id must be a number"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()

	recipe, err := s.service.ByID(ctx, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recipe)
}

func (s *server) handleRandom(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()

	recipe, err := s.service.Random(ctx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recipe)
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	event := s.logger.Warn()
	if status >= http.StatusInternalServerError {
		event = s.logger.Error()
	}
	event.Err(err).
		Str("path", r.URL.Path).
		Int("status_code", status).
		Msg("Request failed")

	writeJSON(w, status, errorBody{Error: err.Error()})
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	var apiErr *client.APIError

	switch {
	case errors.Is(err, recipes.ErrEmptyCategory),
		errors.Is(err, recipes.ErrEmptyQuery),
		errors.Is(err, recipes.ErrInvalidID),
		errors.Is(err, cache.ErrInvalidKey):
		return http.StatusBadRequest
	case errors.Is(err, ratelimit.ErrQuotaExhausted),
		errors.Is(err, client.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	case errors.Is(err, client.ErrNoRecipe):
		return http.StatusNotFound
	case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound:
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
