// internal/api/handler.go
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	custom_errors "stargazer-ledger/internal/errors"
	"stargazer-ledger/internal/ledger"
	"stargazer-ledger/internal/metrics"
	"stargazer-ledger/internal/model"
)

// Ledger is the part of ledger.Service exposed over HTTP.
type Ledger interface {
	Register(ctx context.Context, owner, name string) (model.Repository, error)
	Reconcile(ctx context.Context, owner, name string) (ledger.Result, error)
	Repositories(ctx context.Context) ([]model.Repository, error)
	Query(ctx context.Context, owner, name string, start, end *time.Time) ([]string, error)
}

// Handler is the container for API dependencies.
type Handler struct {
	ledger  Ledger
	metrics *metrics.Metrics
	logger  *slog.Logger
	// exposeErrors puts internal error text into 500 responses.
	exposeErrors bool
}

type repositoryResponse struct {
	Owner           string `json:"owner"`
	Repo            string `json:"repo"`
	StargazersCount int    `json:"stargazers_count"`
	RegisteredDate  string `json:"registered_date"`
	Message         string `json:"message,omitempty"`
}

type stargazersResponse struct {
	Owner      string   `json:"owner"`
	Repo       string   `json:"repo"`
	Stargazers []string `json:"stargazers"`
}

type refreshResponse struct {
	Owner    string `json:"owner"`
	Repo     string `json:"repo"`
	OldCount int    `json:"old_count"`
	NewTotal int    `json:"new_total"`
	Inserted int    `json:"inserted"`
	Bucket   string `json:"bucket,omitempty"`
	Gone     bool   `json:"gone"`
}

// NewRouter creates and configures a new chi router with all API routes.
func NewRouter(l Ledger, m *metrics.Metrics, logger *slog.Logger, exposeErrors bool) http.Handler {
	h := &Handler{
		ledger:       l,
		metrics:      m,
		logger:       logger,
		exposeErrors: exposeErrors,
	}

	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger) // Chi's default logger
	r.Use(middleware.Recoverer)
	r.Use(h.instrument)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", h.healthCheck)
	r.Handle("/metrics", m.Handler())

	// API Routes
	r.Route("/v1", func(r chi.Router) {
		r.Get("/repos", h.listRepos)
		r.Post("/repos/{owner}/{name}", h.registerRepo)
		r.Get("/repos/{owner}/{name}/stargazers", h.listStargazers)
		r.Post("/repos/{owner}/{name}/refresh", h.refreshRepo)
	})

	// Query-string routes kept for existing clients.
	r.Get("/add-repo", h.legacyAddRepo)
	r.Get("/list-stargazers", h.legacyListStargazers)

	return r
}

// instrument counts requests by route pattern and status.
func (h *Handler) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		h.metrics.ObserveHTTP(r.Method, route, status)
	})
}

// healthCheck is a simple health endpoint.
func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// listRepos returns every tracked repository.
// GET /v1/repos
func (h *Handler) listRepos(w http.ResponseWriter, r *http.Request) {
	repos, err := h.ledger.Repositories(r.Context())
	if err != nil {
		h.respondWithLedgerError(w, err)
		return
	}

	resp := make([]repositoryResponse, 0, len(repos))
	for _, repo := range repos {
		resp = append(resp, toRepositoryResponse(repo, ""))
	}
	respondWithJSON(w, http.StatusOK, resp)
}

// registerRepo starts tracking a repository.
// POST /v1/repos/{owner}/{name}
func (h *Handler) registerRepo(w http.ResponseWriter, r *http.Request) {
	h.register(w, r, chi.URLParam(r, "owner"), chi.URLParam(r, "name"))
}

// legacyAddRepo is registerRepo addressed by query string.
// GET /add-repo?owner=&repo=
func (h *Handler) legacyAddRepo(w http.ResponseWriter, r *http.Request) {
	owner, name, ok := repoFromQuery(w, r)
	if !ok {
		return
	}
	h.register(w, r, owner, name)
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request, owner, name string) {
	repo, err := h.ledger.Register(r.Context(), owner, name)
	if err != nil {
		h.respondWithLedgerError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, toRepositoryResponse(repo, "repository registered"))
}

// listStargazers returns the stargazers first seen within a date window.
// GET /v1/repos/{owner}/{name}/stargazers?start_time=YYYY-M-D&end_time=YYYY-M-D
func (h *Handler) listStargazers(w http.ResponseWriter, r *http.Request) {
	h.query(w, r, chi.URLParam(r, "owner"), chi.URLParam(r, "name"))
}

// legacyListStargazers is listStargazers addressed by query string.
// GET /list-stargazers?owner=&repo=&start_time=&end_time=
func (h *Handler) legacyListStargazers(w http.ResponseWriter, r *http.Request) {
	owner, name, ok := repoFromQuery(w, r)
	if !ok {
		return
	}
	h.query(w, r, owner, name)
}

func (h *Handler) query(w http.ResponseWriter, r *http.Request, owner, name string) {
	start, err := dateParam(r, "start_time")
	if err != nil {
		h.respondWithLedgerError(w, err)
		return
	}
	end, err := dateParam(r, "end_time")
	if err != nil {
		h.respondWithLedgerError(w, err)
		return
	}

	stargazers, err := h.ledger.Query(r.Context(), owner, name, start, end)
	if err != nil {
		h.respondWithLedgerError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, stargazersResponse{Owner: owner, Repo: name, Stargazers: stargazers})
}

// refreshRepo runs one reconciliation cycle for a repository now.
// POST /v1/repos/{owner}/{name}/refresh
func (h *Handler) refreshRepo(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")
	name := chi.URLParam(r, "name")

	res, err := h.ledger.Reconcile(r.Context(), owner, name)
	if err != nil {
		h.respondWithLedgerError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, refreshResponse{
		Owner:    owner,
		Repo:     name,
		OldCount: res.OldCount,
		NewTotal: res.NewTotal,
		Inserted: res.Inserted,
		Bucket:   res.Bucket,
		Gone:     res.Gone,
	})
}

func (h *Handler) respondWithLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, custom_errors.ErrRepoNotFound):
		respondWithError(w, http.StatusNotFound, "Repository not found on GitHub")
	case errors.Is(err, custom_errors.ErrNotTracked):
		respondWithError(w, http.StatusNotFound, "Repository is not tracked")
	case errors.Is(err, custom_errors.ErrAlreadyExists):
		respondWithError(w, http.StatusConflict, "Repository is already tracked")
	case errors.Is(err, custom_errors.ErrCycleInProgress):
		respondWithError(w, http.StatusConflict, "Repository is being registered or reconciled, try again later")
	case errors.Is(err, custom_errors.ErrInvalidDate):
		respondWithError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("Request failed", "error", err)
		message := "Internal server error"
		if h.exposeErrors {
			message = err.Error()
		}
		respondWithError(w, http.StatusInternalServerError, message)
	}
}

func toRepositoryResponse(repo model.Repository, message string) repositoryResponse {
	return repositoryResponse{
		Owner:           repo.Owner,
		Repo:            repo.Name,
		StargazersCount: repo.StargazerCount,
		RegisteredDate:  model.FormatDate(repo.RegisteredDate),
		Message:         message,
	}
}

func repoFromQuery(w http.ResponseWriter, r *http.Request) (owner, name string, ok bool) {
	owner = r.URL.Query().Get("owner")
	name = r.URL.Query().Get("repo")
	if owner == "" || name == "" {
		respondWithError(w, http.StatusBadRequest, "Both 'owner' and 'repo' parameters are required.")
		return "", "", false
	}
	return owner, name, true
}

// dateParam parses an optional YYYY-M-D query parameter. An absent parameter yields nil.
func dateParam(r *http.Request, key string) (*time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	d, err := model.ParseDate(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s=%q", custom_errors.ErrInvalidDate, key, raw)
	}
	return &d, nil
}
