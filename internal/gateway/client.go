package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// ErrTimeout is returned when the gateway does not answer within the deadline
var ErrTimeout = errors.New("payment gateway timed out")

// Error is an upstream rejection or transport failure
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("payment gateway: %s", e.Message)
	}
	return fmt.Sprintf("payment gateway returned %d: %s", e.StatusCode, e.Message)
}

// Config holds gateway credentials and transport settings
type Config struct {
	BaseURL   string
	KeyID     string
	KeySecret string
	Timeout   time.Duration
}

// SessionRequest asks the gateway to open a hosted payment session
type SessionRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

// Session is the gateway's view of a created payment session
type Session struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type errorBody struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// Client talks to the gateway's order API
type Client struct {
	http    *resty.Client
	timeout time.Duration
}

// NewClient creates a gateway client authenticated with the key pair
func NewClient(cfg Config) *Client {
	http := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetBasicAuth(cfg.KeyID, cfg.KeySecret).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{http: http, timeout: cfg.Timeout}
}

// CreateSession creates a remote payment session. The call is bounded by the
// configured timeout in addition to any deadline already on ctx.
func (c *Client) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var session Session
	var failure errorBody

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&session).
		SetError(&failure).
		Post("/v1/orders")
	if err != nil {
		if isTimeout(err) {
			return nil, ErrTimeout
		}
		return nil, &Error{Message: err.Error()}
	}

	if resp.IsError() {
		msg := failure.Error.Description
		if msg == "" {
			msg = resp.Status()
		}
		return nil, &Error{StatusCode: resp.StatusCode(), Code: failure.Error.Code, Message: msg}
	}

	if session.ID == "" {
		return nil, &Error{StatusCode: resp.StatusCode(), Message: "response carried no session id"}
	}

	return &session, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// MinorUnits converts an amount to the currency's smallest unit, truncating
// anything below it.
func MinorUnits(amount decimal.Decimal, unit currency.Unit) int64 {
	scale, _ := currency.Standard.Rounding(unit)
	return amount.Shift(int32(scale)).IntPart()
}
