package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/angelmondragon/retaildesk/pkg/config"
	pkgerrors "github.com/angelmondragon/retaildesk/pkg/errors"
	"github.com/angelmondragon/retaildesk/pkg/logger"
	"github.com/angelmondragon/retaildesk/pkg/types"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout              = 15 * time.Second
	responseBodyReadLimit int64 = 1 << 20
	requestIDHeader             = "X-Request-Id"
)

var errBaseURLRequired = errors.New("backend base url is required")

// TokenSource supplies the bearer token of the logged-in operator.
type TokenSource interface {
	Token() (string, bool)
}

// Client talks to the retail REST backend.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	tokens     TokenSource
	limiter    *rate.Limiter
	logg       *logger.Logger
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRateLimit paces outgoing requests. A non-positive rps disables pacing.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithLogger(logg *logger.Logger) Option {
	return func(c *Client) {
		if logg != nil {
			c.logg = logg
		}
	}
}

// NewClient builds a client for baseURL. tokens may be nil for clients that
// only call Login.
func NewClient(baseURL string, tokens TokenSource, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(baseURL)
	if trimmed == "" {
		return nil, errBaseURLRequired
	}
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid backend base url %q", trimmed)
	}

	client := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    parsed,
		tokens:     tokens,
		logg:       logger.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// NewFromConfig wires timeout and pacing from the backend config section.
func NewFromConfig(cfg config.BackendConfig, tokens TokenSource, logg *logger.Logger) (*Client, error) {
	return NewClient(cfg.BaseURL, tokens,
		WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
		WithLogger(logg),
	)
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, username, password string) (*types.LoginResponse, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "username and password are required")
	}
	var out types.LoginResponse
	req := types.LoginRequest{Username: strings.TrimSpace(username), Password: password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", req, &out, false); err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "login response missing token")
	}
	return &out, nil
}

func (c *Client) ListProducts(ctx context.Context) ([]types.Product, error) {
	var out []types.Product
	if err := c.do(ctx, http.MethodGet, "/products", nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListCustomers(ctx context.Context) ([]types.Customer, error) {
	var out []types.Customer
	if err := c.do(ctx, http.MethodGet, "/customers", nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListUsers(ctx context.Context) ([]types.User, error) {
	var out []types.User
	if err := c.do(ctx, http.MethodGet, "/users", nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListSales(ctx context.Context) ([]types.Sale, error) {
	var out []types.Sale
	if err := c.do(ctx, http.MethodGet, "/sales", nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

// Checkout creates a sale from the request lines.
func (c *Client) Checkout(ctx context.Context, req types.CheckoutRequest) (*types.CheckoutResponse, error) {
	var out types.CheckoutResponse
	if err := c.do(ctx, http.MethodPost, "/sales/checkout", req, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyPayment asks the backend whether a pending QR payment has settled.
func (c *Client) VerifyPayment(ctx context.Context, saleID int64, md5 string) (*types.VerifyPaymentResponse, error) {
	var out types.VerifyPaymentResponse
	req := types.VerifyPaymentRequest{SaleID: saleID, MD5: md5}
	if err := c.do(ctx, http.MethodPost, "/sales/verify-payment", req, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateSale applies a partial update to an existing sale.
func (c *Client) UpdateSale(ctx context.Context, saleID int64, patch types.SalePatch) (*types.Sale, error) {
	if saleID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sale id is required")
	}
	if patch.IsEmpty() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "nothing to update")
	}
	var out types.Sale
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/sales/%d", saleID), patch, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// SettlePayment asks the sandbox backend to mark a QR payment as paid. Real
// backends learn this from the payment rail and do not expose the route.
func (c *Client) SettlePayment(ctx context.Context, md5 string) (*types.Sale, error) {
	md5 = strings.TrimSpace(md5)
	if md5 == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "md5 is required")
	}
	var out types.Sale
	if err := c.do(ctx, http.MethodPost, "/sandbox/payments/"+url.PathEscape(md5)+"/settle", nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, authed bool) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "backend client not configured")
	}

	var token string
	if authed {
		var ok bool
		if c.tokens != nil {
			token, ok = c.tokens.Token()
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeUnauthorized, "login required")
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "wait for backend rate limit")
		}
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal request body")
		}
		reader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.buildURL(path), reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build backend request")
	}
	requestID := uuid.NewString()
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(requestIDHeader, requestID)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	ctx = c.logg.WithFields(c.logg.WithRequestID(ctx, requestID), map[string]any{
		"method": method,
		"path":   path,
	})
	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logg.Warn(ctx, "backend request failed")
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "backend unreachable")
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read backend response")
	}
	c.logg.Debug(c.logg.WithFields(ctx, map[string]any{
		"status":      resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	}), "backend request completed")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}

	var env types.RawEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode backend response")
	}
	if string(env.Data) == "null" && isSlicePtr(out) {
		// Empty collections may serialise as null.
		return nil
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return pkgerrors.New(pkgerrors.CodeDependency, "backend response missing data")
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode backend response data")
	}
	return nil
}

func isSlicePtr(v any) bool {
	t := reflect.TypeOf(v)
	return t != nil && t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Slice
}

// decodeError maps an error envelope onto a typed error. The envelope code
// wins when it is one we know; otherwise the HTTP status decides.
func decodeError(status int, raw []byte) error {
	var env types.ErrorEnvelope
	_ = json.Unmarshal(raw, &env)

	code := pkgerrors.Code(env.Error.Code)
	if !pkgerrors.IsKnown(code) {
		code = pkgerrors.CodeForStatus(status)
	}
	message := strings.TrimSpace(env.Error.Message)
	if message == "" {
		message = fmt.Sprintf("backend returned %d %s", status, http.StatusText(status))
	}

	err := pkgerrors.New(code, message)
	if env.Error.Details != nil {
		err = err.WithDetails(env.Error.Details)
	}
	return err
}

func (c *Client) buildURL(path string) string {
	trimmed := strings.TrimRight(c.baseURL.String(), "/")
	path = strings.TrimLeft(path, "/")
	return fmt.Sprintf("%s/%s", trimmed, path)
}
