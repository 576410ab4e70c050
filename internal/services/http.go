// HTTP implementation of [Gateway] for the hosted finance backend.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ledgersync/internal/models"
	"github.com/desertthunder/ledgersync/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// HTTPGateway implements [Gateway] against a REST backend.
//
// Outbound calls share one rate limiter so queue drains and migration batches
// cannot starve interactive requests. Push subscriptions are emulated by
// polling: the callback fires with a full snapshot whenever the remote state
// differs from the previously delivered one.
type HTTPGateway struct {
	baseURL      string
	httpClient   *http.Client
	limiter      *rate.Limiter
	pollInterval time.Duration
	logger       *log.Logger
}

// HTTPGatewayOpts contains configuration options for creating an HTTPGateway.
type HTTPGatewayOpts struct {
	BaseURL      string
	Token        string        // bearer token; ignored when Client is set
	Client       *http.Client  // optional pre-configured client
	RateLimit    float64       // requests per second, 0 means 10
	Timeout      time.Duration // per-request timeout, 0 means 10s
	PollInterval time.Duration // subscription poll interval, 0 means 15s
	Logger       *log.Logger
}

// NewHTTPGateway creates a gateway for the backend at opts.BaseURL.
func NewHTTPGateway(opts HTTPGatewayOpts) *HTTPGateway {
	if opts.BaseURL == "" {
		opts.BaseURL = "http://localhost:8787"
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 10
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 15 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	var client *http.Client
	if opts.Client != nil {
		// Work on a copy so the caller's client keeps its own timeout.
		copied := *opts.Client
		client = &copied
	} else if opts.Token != "" {
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token})
		client = oauth2.NewClient(context.Background(), src)
	} else {
		client = &http.Client{}
	}
	client.Timeout = opts.Timeout

	return &HTTPGateway{
		baseURL:      opts.BaseURL,
		httpClient:   client,
		limiter:      rate.NewLimiter(rate.Limit(opts.RateLimit), 1),
		pollInterval: opts.PollInterval,
		logger:       opts.Logger.With("component", "gateway"),
	}
}

// do performs one JSON request. Transport failures wrap [shared.ErrNetwork];
// non-2xx responses decode into [APIError].
func (g *HTTPGateway) do(ctx context.Context, method, path string, in, out any) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrNetwork, err)
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrNetwork, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %v", shared.ErrNetwork, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp.StatusCode, data)
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// decodeAPIError maps an error response body to an APIError, falling back to
// a status-derived code when the body is not the expected JSON shape.
func decodeAPIError(status int, body []byte) error {
	apiErr := &APIError{StatusCode: status}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Code == "" {
		switch status {
		case http.StatusConflict:
			apiErr.Code = CodeDuplicate
		case http.StatusNotFound:
			apiErr.Code = CodeNotFound
		default:
			apiErr.Code = CodeInternal
		}
		apiErr.Message = string(bytes.TrimSpace(body))
	}
	return apiErr
}

func userPath(userID, rest string) string {
	return "/users/" + url.PathEscape(userID) + rest
}

// Health implements [Gateway].
func (g *HTTPGateway) Health(ctx context.Context) error {
	return g.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (g *HTTPGateway) AddTransaction(ctx context.Context, userID string, tx models.Transaction) (models.Transaction, error) {
	var out models.Transaction
	err := g.do(ctx, http.MethodPost, userPath(userID, "/transactions"), tx, &out)
	return out, err
}

func (g *HTTPGateway) UpdateTransaction(ctx context.Context, userID, id string, tx models.Transaction) (models.Transaction, error) {
	var out models.Transaction
	err := g.do(ctx, http.MethodPut, userPath(userID, "/transactions/"+url.PathEscape(id)), tx, &out)
	return out, err
}

func (g *HTTPGateway) DeleteTransaction(ctx context.Context, userID, id string) error {
	return g.do(ctx, http.MethodDelete, userPath(userID, "/transactions/"+url.PathEscape(id)), nil, nil)
}

func (g *HTTPGateway) GetTransactions(ctx context.Context, userID string) ([]models.Transaction, error) {
	var out []models.Transaction
	err := g.do(ctx, http.MethodGet, userPath(userID, "/transactions"), nil, &out)
	return out, err
}

func (g *HTTPGateway) SubscribeTransactions(ctx context.Context, userID string, cb func([]models.Transaction)) (func(), error) {
	return subscribePoll(g, ctx, func(ctx context.Context) ([]models.Transaction, error) {
		return g.GetTransactions(ctx, userID)
	}, cb)
}

func (g *HTTPGateway) AddRecurring(ctx context.Context, userID string, rt models.RecurringTransaction) (models.RecurringTransaction, error) {
	var out models.RecurringTransaction
	err := g.do(ctx, http.MethodPost, userPath(userID, "/recurring-transactions"), rt, &out)
	return out, err
}

func (g *HTTPGateway) UpdateRecurring(ctx context.Context, userID, id string, rt models.RecurringTransaction) (models.RecurringTransaction, error) {
	var out models.RecurringTransaction
	err := g.do(ctx, http.MethodPut, userPath(userID, "/recurring-transactions/"+url.PathEscape(id)), rt, &out)
	return out, err
}

func (g *HTTPGateway) DeleteRecurring(ctx context.Context, userID, id string) error {
	return g.do(ctx, http.MethodDelete, userPath(userID, "/recurring-transactions/"+url.PathEscape(id)), nil, nil)
}

func (g *HTTPGateway) GetRecurring(ctx context.Context, userID string) ([]models.RecurringTransaction, error) {
	var out []models.RecurringTransaction
	err := g.do(ctx, http.MethodGet, userPath(userID, "/recurring-transactions"), nil, &out)
	return out, err
}

func (g *HTTPGateway) SubscribeRecurring(ctx context.Context, userID string, cb func([]models.RecurringTransaction)) (func(), error) {
	return subscribePoll(g, ctx, func(ctx context.Context) ([]models.RecurringTransaction, error) {
		return g.GetRecurring(ctx, userID)
	}, cb)
}

func (g *HTTPGateway) AddGoal(ctx context.Context, userID string, goal models.Goal) (models.Goal, error) {
	var out models.Goal
	err := g.do(ctx, http.MethodPost, userPath(userID, "/goals"), goal, &out)
	return out, err
}

func (g *HTTPGateway) UpdateGoal(ctx context.Context, userID, id string, goal models.Goal) (models.Goal, error) {
	var out models.Goal
	err := g.do(ctx, http.MethodPut, userPath(userID, "/goals/"+url.PathEscape(id)), goal, &out)
	return out, err
}

func (g *HTTPGateway) DeleteGoal(ctx context.Context, userID, id string) error {
	return g.do(ctx, http.MethodDelete, userPath(userID, "/goals/"+url.PathEscape(id)), nil, nil)
}

func (g *HTTPGateway) GetGoals(ctx context.Context, userID string) ([]models.Goal, error) {
	var out []models.Goal
	err := g.do(ctx, http.MethodGet, userPath(userID, "/goals"), nil, &out)
	return out, err
}

func (g *HTTPGateway) SubscribeGoals(ctx context.Context, userID string, cb func([]models.Goal)) (func(), error) {
	return subscribePoll(g, ctx, func(ctx context.Context) ([]models.Goal, error) {
		return g.GetGoals(ctx, userID)
	}, cb)
}

func (g *HTTPGateway) AddCategoryBudget(ctx context.Context, userID string, budget models.CategoryBudget) (models.CategoryBudget, error) {
	var out models.CategoryBudget
	err := g.do(ctx, http.MethodPost, userPath(userID, "/category-budgets"), budget, &out)
	return out, err
}

func (g *HTTPGateway) UpdateCategoryBudget(ctx context.Context, userID, id string, budget models.CategoryBudget) (models.CategoryBudget, error) {
	var out models.CategoryBudget
	err := g.do(ctx, http.MethodPut, userPath(userID, "/category-budgets/"+url.PathEscape(id)), budget, &out)
	return out, err
}

func (g *HTTPGateway) DeleteCategoryBudget(ctx context.Context, userID, id string) error {
	return g.do(ctx, http.MethodDelete, userPath(userID, "/category-budgets/"+url.PathEscape(id)), nil, nil)
}

func (g *HTTPGateway) GetCategoryBudgets(ctx context.Context, userID string) ([]models.CategoryBudget, error) {
	var out []models.CategoryBudget
	err := g.do(ctx, http.MethodGet, userPath(userID, "/category-budgets"), nil, &out)
	return out, err
}

func (g *HTTPGateway) SubscribeCategoryBudgets(ctx context.Context, userID string, cb func([]models.CategoryBudget)) (func(), error) {
	return subscribePoll(g, ctx, func(ctx context.Context) ([]models.CategoryBudget, error) {
		return g.GetCategoryBudgets(ctx, userID)
	}, cb)
}

func (g *HTTPGateway) GetBudget(ctx context.Context, userID string) (models.Budget, error) {
	var out models.Budget
	err := g.do(ctx, http.MethodGet, userPath(userID, "/budget"), nil, &out)
	return out, err
}

func (g *HTTPGateway) PutBudget(ctx context.Context, userID string, b models.Budget) (models.Budget, error) {
	var out models.Budget
	err := g.do(ctx, http.MethodPut, userPath(userID, "/budget"), b, &out)
	return out, err
}

func (g *HTTPGateway) SubscribeBudget(ctx context.Context, userID string, cb func(models.Budget)) (func(), error) {
	return subscribePoll(g, ctx, func(ctx context.Context) (models.Budget, error) {
		return g.GetBudget(ctx, userID)
	}, cb)
}

func (g *HTTPGateway) GetSettings(ctx context.Context, userID string) (models.Settings, error) {
	var out models.Settings
	err := g.do(ctx, http.MethodGet, userPath(userID, "/settings"), nil, &out)
	return out, err
}

func (g *HTTPGateway) PutSettings(ctx context.Context, userID string, s models.Settings) (models.Settings, error) {
	var out models.Settings
	err := g.do(ctx, http.MethodPut, userPath(userID, "/settings"), s, &out)
	return out, err
}

func (g *HTTPGateway) SubscribeSettings(ctx context.Context, userID string, cb func(models.Settings)) (func(), error) {
	return subscribePoll(g, ctx, func(ctx context.Context) (models.Settings, error) {
		return g.GetSettings(ctx, userID)
	}, cb)
}

// subscribePoll emulates a push subscription by polling fetch on the
// gateway's poll interval. The callback fires once with the initial snapshot
// and again whenever the serialized snapshot changes. Fetch errors are logged
// and the poll continues; a not_found on a singleton domain is quietly
// skipped until the record exists.
func subscribePoll[T any](g *HTTPGateway, ctx context.Context, fetch func(context.Context) (T, error), cb func(T)) (func(), error) {
	pollCtx, cancel := context.WithCancel(ctx)

	var last []byte
	deliver := func() {
		snapshot, err := fetch(pollCtx)
		if err != nil {
			if pollCtx.Err() == nil && !IsNotFound(err) {
				g.logger.Debug("subscription poll failed", "error", err)
			}
			return
		}
		raw, err := json.Marshal(snapshot)
		if err != nil {
			g.logger.Debug("subscription snapshot encode failed", "error", err)
			return
		}
		if bytes.Equal(raw, last) {
			return
		}
		last = raw
		cb(snapshot)
	}

	go func() {
		deliver()
		ticker := time.NewTicker(g.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-pollCtx.Done():
				return
			case <-ticker.C:
				deliver()
			}
		}
	}()

	return cancel, nil
}
