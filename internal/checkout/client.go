package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"ecostore/internal/models"
)

const (
	DefaultTimeout   = 15 * time.Second
	DefaultRetryBase = 500 * time.Millisecond
	DefaultAttempts  = 3

	// SessionCookie is the backend's session cookie. It is kept with the
	// stored session and sent back on every request.
	SessionCookie = "session"
)

// Backend is the order API the checkout flow talks to.
type Backend interface {
	CreateOrder(ctx context.Context, draft models.OrderDraft) (*models.Order, error)
	PendingOrder(ctx context.Context, orderID string) (*models.Order, error)
	CancelOrder(ctx context.Context, orderID string) error
	InitiatePayment(ctx context.Context, orderID string) (*models.PaymentSession, error)
	VerifyPayment(ctx context.Context, cb models.PaymentCallback) (*models.VerifyPaymentResponse, error)
}

// ClientConfig configures the backend client.
type ClientConfig struct {
	BaseURL string
	// Timeout bounds each attempt.
	Timeout time.Duration
	// RetryBase is the wait before the first retry; it doubles after that.
	RetryBase time.Duration
	// Attempts is the total number of tries for a transient failure.
	Attempts int
}

// Client calls the order API. Transport errors and 5xx responses are
// retried with exponential backoff; anything else is returned at once.
type Client struct {
	cfg   ClientConfig
	http  *fiber.Client
	local *LocalState
}

// NewClient creates a backend client. local supplies the optional session
// and is cleared when the backend rejects it.
func NewClient(cfg ClientConfig, local *LocalState) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = DefaultRetryBase
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = DefaultAttempts
	}
	return &Client{cfg: cfg, http: &fiber.Client{}, local: local}
}

// CreateOrder submits a draft. Free-text fields are escaped before sending.
// Re-submitting a draft whose order id was already used returns
// ErrDuplicateOrder.
func (c *Client) CreateOrder(ctx context.Context, draft models.OrderDraft) (*models.Order, error) {
	var out struct {
		Order *models.Order `json:"order"`
	}
	err := c.do(ctx, "create order", fiber.MethodPost, "/api/orders", Sanitize(draft), &out)
	if status, berr := businessStatus(err); status == http.StatusConflict {
		berr.Err = ErrDuplicateOrder
		if berr.Message == "" {
			berr.Message = ErrDuplicateOrder.Error()
		}
		return nil, berr
	}
	if err != nil {
		return nil, err
	}
	if out.Order == nil {
		return nil, errors.New("create order: response has no order")
	}
	return out.Order, nil
}

// PendingOrder fetches the order's current state. It returns nil when the
// backend no longer knows the order.
func (c *Client) PendingOrder(ctx context.Context, orderID string) (*models.Order, error) {
	var out struct {
		Order *models.Order `json:"order"`
	}
	err := c.do(ctx, "check order", fiber.MethodGet, "/api/orders/pending/"+url.PathEscape(orderID), nil, &out)
	if status, _ := businessStatus(err); status == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return out.Order, nil
}

// CancelOrder voids a pending order. Cancelling an order the backend no
// longer has succeeds.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	err := c.do(ctx, "cancel order", fiber.MethodDelete, "/api/orders/"+url.PathEscape(orderID), nil, nil)
	switch status, berr := businessStatus(err); status {
	case http.StatusNotFound:
		return nil
	case http.StatusConflict:
		berr.Err = ErrOrderNotPending
		return berr
	}
	return err
}

// InitiatePayment asks the backend to open a gateway payment session.
func (c *Client) InitiatePayment(ctx context.Context, orderID string) (*models.PaymentSession, error) {
	var out models.PaymentSession
	body := map[string]string{"orderId": orderID}
	if err := c.do(ctx, "initiate payment", fiber.MethodPost, "/api/orders/initiate-razorpay-payment", body, &out); err != nil {
		return nil, err
	}
	if out.RazorpayOrderID == "" {
		return nil, errors.New("initiate payment: response has no gateway order id")
	}
	return &out, nil
}

// VerifyPayment forwards the gateway callback for signature verification.
// A rejected verification is reported as Success false, not as an error.
func (c *Client) VerifyPayment(ctx context.Context, cb models.PaymentCallback) (*models.VerifyPaymentResponse, error) {
	var out models.VerifyPaymentResponse
	err := c.do(ctx, "verify payment", fiber.MethodPost, "/api/orders/verify-razorpay-payment", cb, &out)
	if status, berr := businessStatus(err); status != 0 {
		return &models.VerifyPaymentResponse{Success: false, Message: berr.Message}, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Login exchanges admin credentials for a token and stores it, with any
// session cookie the backend set, as the session sent with later requests.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, "login", fiber.MethodPost, "/api/auth/login", body, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", errors.New("login: response has no token")
	}
	if c.local != nil {
		// keep the session cookie the login response may have set
		sess, err := c.local.Session(ctx)
		if err != nil || sess == nil {
			sess = &Session{}
		}
		sess.Token = out.Token
		if err := c.local.SaveSession(ctx, *sess); err != nil {
			return "", fmt.Errorf("login: %w", err)
		}
	}
	return out.Token, nil
}

// statusError is a non-2xx response.
type statusError struct {
	status  int
	message string
}

func (e *statusError) Error() string {
	if e.message == "" {
		return fmt.Sprintf("status %d", e.status)
	}
	return fmt.Sprintf("status %d: %s", e.status, e.message)
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out interface{}) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.RetryBase
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = c.cfg.RetryBase << uint(c.cfg.Attempts)
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.cfg.Attempts-1)), ctx)

	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		return c.send(ctx, method, path, body, out)
	}, policy, func(err error, wait time.Duration) {
		log.Printf("%s %s failed on attempt %d, retrying in %s: %v", method, path, attempt, wait, err)
	})
	if err == nil {
		return nil
	}

	var se *statusError
	switch {
	case errors.As(err, &se) && (se.status == http.StatusUnauthorized || se.status == http.StatusForbidden):
		if c.local != nil {
			if cerr := c.local.ClearSession(ctx); cerr != nil {
				log.Printf("Warning: failed to clear session: %v", cerr)
			}
		}
		return fmt.Errorf("%s: %w", op, ErrUnauthorized)
	case errors.As(err, &se) && se.status < http.StatusInternalServerError:
		return &BusinessError{Status: se.status, Message: se.message}
	case errors.As(err, new(*json.SyntaxError)), errors.As(err, new(*json.UnmarshalTypeError)):
		return fmt.Errorf("%s: malformed response: %w", op, err)
	default:
		return &TransientError{Op: op, Err: err}
	}
}

// send makes one attempt. Errors wrapped in backoff.Permanent stop retries.
func (c *Client) send(ctx context.Context, method, path string, body, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return backoff.Permanent(err)
	}

	target := c.cfg.BaseURL + path
	var a *fiber.Agent
	switch method {
	case fiber.MethodGet:
		a = c.http.Get(target)
	case fiber.MethodDelete:
		a = c.http.Delete(target)
	default:
		a = c.http.Post(target)
	}
	a.Timeout(c.attemptTimeout(ctx))
	a.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)
	if body != nil {
		a.JSON(body)
	}
	if c.local != nil {
		sess, err := c.local.Session(ctx)
		if err != nil {
			log.Printf("Warning: failed to read session: %v", err)
		}
		if sess != nil {
			if sess.Token != "" {
				a.Set(fiber.HeaderAuthorization, "Bearer "+sess.Token)
			}
			if sess.Cookie != "" {
				a.Cookie(SessionCookie, sess.Cookie)
			}
		}
	}

	resp := fiber.AcquireResponse()
	defer fiber.ReleaseResponse(resp)
	a.SetResponse(resp)

	code, respBody, errs := a.Bytes()
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	if code >= http.StatusBadRequest {
		se := &statusError{status: code, message: responseMessage(respBody)}
		if code >= http.StatusInternalServerError {
			return se
		}
		return backoff.Permanent(se)
	}
	if value := responseCookie(resp, SessionCookie); value != "" {
		c.rememberCookie(ctx, value)
	}
	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return backoff.Permanent(err)
		}
	}
	return nil
}

// rememberCookie stores a session cookie set by the backend.
func (c *Client) rememberCookie(ctx context.Context, value string) {
	if c.local == nil {
		return
	}
	sess, err := c.local.Session(ctx)
	if err != nil {
		log.Printf("Warning: failed to read session: %v", err)
	}
	if sess == nil {
		sess = &Session{}
	}
	if sess.Cookie == value {
		return
	}
	sess.Cookie = value
	if err := c.local.SaveSession(ctx, *sess); err != nil {
		log.Printf("Warning: failed to save session cookie: %v", err)
	}
}

func responseCookie(resp *fiber.Response, name string) string {
	cookie := fasthttp.AcquireCookie()
	defer fasthttp.ReleaseCookie(cookie)
	cookie.SetKey(name)
	if !resp.Header.Cookie(cookie) {
		return ""
	}
	return string(cookie.Value())
}

func (c *Client) attemptTimeout(ctx context.Context) time.Duration {
	timeout := c.cfg.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	return timeout
}

// responseMessage pulls the human-readable message out of an error body.
func responseMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return strings.TrimSpace(string(body))
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Error
}

// businessStatus returns the status of a *BusinessError, or 0.
func businessStatus(err error) (int, *BusinessError) {
	var berr *BusinessError
	if errors.As(err, &berr) {
		return berr.Status, berr
	}
	return 0, nil
}
