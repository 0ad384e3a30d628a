// internal/github/client.go
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	custom_errors "stargazer-ledger/internal/errors"
	"stargazer-ledger/internal/metrics"
	"stargazer-ledger/internal/model"
)

const (
	// PageSize is the number of stargazers requested per listing page, the maximum GitHub allows.
	PageSize = 100

	maxRetries   = 3
	retryBackoff = 200 * time.Millisecond
	maxBackoff   = 2 * time.Second
)

// Client is a wrapper around the go-github client.
type Client struct {
	gh      *github.Client
	limiter *rate.Limiter
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Client.
type Option func(*Client) error

// WithBaseURL points the client at a GitHub Enterprise (or test) API root.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) error {
		if baseURL == "" {
			return nil
		}
		gh, err := c.gh.WithEnterpriseURLs(baseURL, baseURL)
		if err != nil {
			return fmt.Errorf("invalid github base url: %w", err)
		}
		c.gh = gh
		return nil
	}
}

// WithRateLimit caps outgoing requests to rps with the given burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) error {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		return nil
	}
}

// WithMetrics records every upstream call.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) error {
		c.metrics = m
		return nil
	}
}

// NewClient creates and configures a new Client instance.
// The provided token is used to create an authenticated http.Client; an empty token yields an
// anonymous client.
func NewClient(token string, logger *slog.Logger, opts ...Option) (*Client, error) {
	var hc *http.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: token},
		)
		hc = oauth2.NewClient(context.Background(), ts)
	}

	c := &Client{
		gh:      github.NewClient(hc),
		limiter: rate.NewLimiter(rate.Inf, 1),
		logger:  logger,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// StargazerCount returns the current number of stargazers of owner/name.
func (c *Client) StargazerCount(ctx context.Context, owner, name string) (int, error) {
	var repo *github.Repository
	err := c.do(ctx, "get_repository", func() (*github.Response, error) {
		var (
			resp *github.Response
			err  error
		)
		repo, resp, err = c.gh.Repositories.Get(ctx, owner, name)
		return resp, err
	})
	if err != nil {
		return 0, err
	}
	return repo.GetStargazersCount(), nil
}

// ListStargazers fetches one page (1-based) of stargazers, earliest first.
func (c *Client) ListStargazers(ctx context.Context, owner, name string, page int) ([]model.Stargazer, error) {
	c.logger.Debug("Fetching stargazers page", "owner", owner, "repo", name, "page", page)

	opts := &github.ListOptions{Page: page, PerPage: PageSize}
	var stargazers []*github.Stargazer
	err := c.do(ctx, "list_stargazers", func() (*github.Response, error) {
		var (
			resp *github.Response
			err  error
		)
		stargazers, resp, err = c.gh.Activity.ListStargazers(ctx, owner, name, opts)
		return resp, err
	})
	if err != nil {
		return nil, err
	}
	return toInternalStargazers(stargazers), nil
}

// do runs call under the rate limiter, retrying server errors with exponential backoff and
// classifying the final error.
func (c *Client) do(ctx context.Context, op string, call func() (*github.Response, error)) error {
	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		resp, err := call()
		c.metrics.ObserveUpstream(op, statusLabel(resp, err))
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, retryPolicy(ctx), func(err error, wait time.Duration) {
		c.logger.Warn("Retrying GitHub request", "op", op, "attempt", attempt, "wait", wait.String(), "error", err)
	})
	if err != nil {
		return classify(err)
	}
	return nil
}

// retryPolicy allows maxRetries attempts in total.
func retryPolicy(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = retryBackoff
	eb.MaxInterval = maxBackoff
	eb.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(eb, maxRetries-1), ctx)
}

// retryable reports whether err is a transient server error. Rate limiting is not retried.
func retryable(err error) bool {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		return ghErr.Response.StatusCode >= http.StatusInternalServerError
	}
	return false
}

func classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound {
		return custom_errors.ErrRepoNotFound
	}
	return fmt.Errorf("%w: %w", custom_errors.ErrUpstreamUnavailable, err)
}

func statusLabel(resp *github.Response, err error) string {
	if resp != nil && resp.Response != nil {
		return fmt.Sprintf("%d", resp.StatusCode)
	}
	if err != nil {
		return "error"
	}
	return "ok"
}

// toInternalStargazers translates github.Stargazer objects to our internal model.Stargazer.
func toInternalStargazers(stargazers []*github.Stargazer) []model.Stargazer {
	out := make([]model.Stargazer, 0, len(stargazers))
	for _, s := range stargazers {
		out = append(out, model.Stargazer{Login: s.GetUser().GetLogin()})
	}
	return out
}
