// Package pi is a client for the Pi Network platform API (api.minepi.com).
package pi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

const (
	maxBodyBytes  = 1 << 20
	maxRetryDelay = 5 * time.Second
)

type Config struct {
	BaseURL        string
	APIKey         string
	Timeout        time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
	RateLimit      float64 // requests per second, 0 = unlimited
}

// Client calls the Pi platform API. Only idempotent reads are retried;
// payment mutations are sent once and the caller reconciles through
// GetPayment or IncompleteServerPayments.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	retryBase  time.Duration
	log        *slog.Logger
}

func NewClient(cfg Config, log *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	retryBase := cfg.RetryBaseDelay
	if retryBase <= 0 {
		retryBase = 200 * time.Millisecond
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	if log == nil {
		log = slog.Default()
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, 1),
		maxRetries: cfg.MaxRetries,
		retryBase:  retryBase,
		log:        log,
	}
}

// UpstreamError is a failed call to the Pi API. StatusCode is zero when the
// request never got a response.
type UpstreamError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("pi %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("pi %s: status=%d body=%s", e.Op, e.StatusCode, e.Body)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Temporary reports whether a retry might succeed.
func (e *UpstreamError) Temporary() bool {
	return e.StatusCode == 0 || e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Ambiguous reports whether the call may have taken effect at Pi without
// the result reaching us: no response at all, or a 2xx whose body could not
// be read or decoded.
func (e *UpstreamError) Ambiguous() bool {
	return e.StatusCode == 0 || (e.StatusCode < 300 && e.Err != nil)
}

type UserInfo struct {
	UID         string `json:"uid"`
	Username    string `json:"username"`
	Credentials struct {
		Scopes []string `json:"scopes"`
	} `json:"credentials"`
}

type PaymentStatus struct {
	DeveloperApproved   bool `json:"developer_approved"`
	TransactionVerified bool `json:"transaction_verified"`
	DeveloperCompleted  bool `json:"developer_completed"`
	Cancelled           bool `json:"cancelled"`
	UserCancelled       bool `json:"user_cancelled"`
}

type PaymentTransaction struct {
	TxID     string `json:"txid"`
	Verified bool   `json:"verified"`
	Link     string `json:"_link"`
}

type Payment struct {
	Identifier  string              `json:"identifier"`
	UserUID     string              `json:"user_uid"`
	Amount      json.Number         `json:"amount"`
	Memo        string              `json:"memo"`
	Metadata    map[string]any      `json:"metadata"`
	FromAddress string              `json:"from_address"`
	ToAddress   string              `json:"to_address"`
	Direction   string              `json:"direction"`
	Network     string              `json:"network"`
	CreatedAt   string              `json:"created_at"`
	Status      PaymentStatus       `json:"status"`
	Transaction *PaymentTransaction `json:"transaction"`
}

func (p *Payment) Cancelled() bool {
	return p.Status.Cancelled || p.Status.UserCancelled
}

// TxID returns the blockchain transaction id, if any.
func (p *Payment) TxID() string {
	if p.Transaction == nil {
		return ""
	}
	return p.Transaction.TxID
}

type PaymentArgs struct {
	Amount   json.Number    `json:"amount"`
	Memo     string         `json:"memo"`
	Metadata map[string]any `json:"metadata"`
	UID      string         `json:"uid"`
}

// Me verifies a user access token and returns the Pi identity behind it.
func (c *Client) Me(ctx context.Context, accessToken string) (*UserInfo, error) {
	var info UserInfo
	if err := c.do(ctx, "me", http.MethodGet, "/v2/me", "Bearer "+accessToken, nil, &info, true); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) CreatePayment(ctx context.Context, args PaymentArgs) (*Payment, error) {
	var p Payment
	body := map[string]any{"payment": args}
	if err := c.do(ctx, "create_payment", http.MethodPost, "/v2/payments", c.keyAuth(), body, &p, false); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) ApprovePayment(ctx context.Context, paymentID string) (*Payment, error) {
	return c.paymentAction(ctx, "approve_payment", paymentID, "approve", nil)
}

func (c *Client) CompletePayment(ctx context.Context, paymentID, txid string) (*Payment, error) {
	return c.paymentAction(ctx, "complete_payment", paymentID, "complete", map[string]string{"txid": txid})
}

func (c *Client) CancelPayment(ctx context.Context, paymentID string) (*Payment, error) {
	return c.paymentAction(ctx, "cancel_payment", paymentID, "cancel", nil)
}

func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	var p Payment
	path := "/v2/payments/" + url.PathEscape(paymentID)
	if err := c.do(ctx, "get_payment", http.MethodGet, path, c.keyAuth(), nil, &p, true); err != nil {
		return nil, err
	}
	return &p, nil
}

// IncompleteServerPayments lists app-to-user payments that were created but
// never completed.
func (c *Client) IncompleteServerPayments(ctx context.Context) ([]Payment, error) {
	var out struct {
		Payments []Payment `json:"incomplete_server_payments"`
	}
	if err := c.do(ctx, "incomplete_server_payments", http.MethodGet, "/v2/payments/incomplete_server_payments", c.keyAuth(), nil, &out, true); err != nil {
		return nil, err
	}
	return out.Payments, nil
}

func (c *Client) paymentAction(ctx context.Context, op, paymentID, action string, body any) (*Payment, error) {
	var p Payment
	path := "/v2/payments/" + url.PathEscape(paymentID) + "/" + action
	if err := c.do(ctx, op, http.MethodPost, path, c.keyAuth(), body, &p, false); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) keyAuth() string {
	return "Key " + c.apiKey
}

func (c *Client) do(ctx context.Context, op, method, path, auth string, body, out any, retry bool) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("pi %s: marshal: %w", op, err)
		}
	}
	if !retry {
		return c.send(ctx, op, method, path, auth, payload, out)
	}

	attempt := func() error {
		err := c.send(ctx, op, method, path, auth, payload, out)
		var upErr *UpstreamError
		if err != nil && (!errors.As(err, &upErr) || !upErr.Temporary() || ctx.Err() != nil) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, delay time.Duration) {
		c.log.Warn("retrying pi request", "op", op, "delay", delay.String(), "error", err.Error())
	}

	err := backoff.RetryNotify(attempt, c.newBackOff(ctx), notify)
	var upErr *UpstreamError
	if err != nil && ctx.Err() != nil && !errors.As(err, &upErr) {
		return &UpstreamError{Op: op, Err: err}
	}
	return err
}

func (c *Client) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryBase
	b.Multiplier = 2
	b.MaxInterval = maxRetryDelay
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(max(c.maxRetries, 0))), ctx)
}

func (c *Client) send(ctx context.Context, op, method, path, auth string, payload []byte, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &UpstreamError{Op: op, Err: err}
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("pi %s: new request: %w", op, err)
	}
	req.Header.Set("Authorization", auth)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &UpstreamError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &UpstreamError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode >= 300 {
		return &UpstreamError{Op: op, StatusCode: resp.StatusCode, Body: truncate(raw)}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &UpstreamError{Op: op, StatusCode: resp.StatusCode, Body: truncate(raw), Err: fmt.Errorf("decode: %w", err)}
	}
	return nil
}

func truncate(b []byte) string {
	const limit = 512
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
