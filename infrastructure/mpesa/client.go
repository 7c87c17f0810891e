package mpesa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"investor/domain/entities"
	"investor/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

const (
	defaultTimeout   = 15 * time.Second
	maxResponseBytes = 1 << 20
	defaultTokenTTL  = time.Hour
)

// Config holds the credentials and endpoints for the Daraja API
type Config struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	Shortcode      string
	Passkey        string
	CallbackURL    string
	Timeout        time.Duration

	// AccountReference and TransactionDesc are shown to the customer on the prompt
	AccountReference string
	TransactionDesc  string

	// Optional overrides, mostly for tests
	HTTPClient *http.Client
	Now        func() time.Time
}

// Client talks to the M-Pesa STK push API
type Client struct {
	cfg    Config
	http   *http.Client
	tokens *tokenSource
	now    func() time.Time
}

var _ interfaces.PaymentGateway = (*Client)(nil)

// NewClient creates a new M-Pesa client
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.AccountReference == "" {
		cfg.AccountReference = "Investment Payment"
	}
	if cfg.TransactionDesc == "" {
		cfg.TransactionDesc = "Investment Payment"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	c := &Client{
		cfg:  cfg,
		http: httpClient,
		now:  now,
	}
	c.tokens = newTokenSource(c.fetchToken, now, 2*cfg.Timeout)
	return c
}

// Initiate sends an STK push prompt to the customer's phone
func (c *Client) Initiate(ctx context.Context, phoneNumber string, amount int64) (*entities.PaymentInitiation, error) {
	const op = "initiate"

	phone, err := entities.NormalizePhoneNumber(phoneNumber)
	if err != nil {
		return nil, &GatewayError{Op: op, Kind: entities.ErrGatewayRejected, Err: err}
	}
	if amount <= 0 {
		return nil, &GatewayError{Op: op, Kind: entities.ErrGatewayRejected, Message: fmt.Sprintf("amount must be positive, got %d", amount)}
	}

	timestamp := Timestamp(c.now())
	req := stkPushRequest{
		BusinessShortCode: c.cfg.Shortcode,
		Password:          Password(c.cfg.Shortcode, c.cfg.Passkey, timestamp),
		Timestamp:         timestamp,
		TransactionType:   transactionType,
		Amount:            amount,
		PartyA:            phone,
		PartyB:            c.cfg.Shortcode,
		PhoneNumber:       phone,
		CallBackURL:       c.cfg.CallbackURL,
		AccountReference:  c.cfg.AccountReference,
		TransactionDesc:   c.cfg.TransactionDesc,
	}

	var resp stkPushResponse
	if err := c.post(ctx, op, stkPushPath, req, &resp); err != nil {
		return nil, err
	}

	if string(resp.ResponseCode) != responseCodeAccepted {
		return nil, &GatewayError{
			Op:         op,
			Kind:       entities.ErrGatewayRejected,
			StatusCode: http.StatusOK,
			Code:       string(resp.ResponseCode),
			Message:    resp.ResponseDescription,
		}
	}
	if resp.CheckoutRequestID == "" {
		return nil, &GatewayError{
			Op:         op,
			Kind:       entities.ErrGatewayUnavailable,
			StatusCode: http.StatusOK,
			Message:    "response is missing CheckoutRequestID",
		}
	}

	log.WithFields(log.Fields{
		"checkout_request_id": resp.CheckoutRequestID,
		"merchant_request_id": resp.MerchantRequestID,
		"amount":              amount,
	}).Info("STK push accepted")

	return &entities.PaymentInitiation{
		CorrelationID:          resp.CheckoutRequestID,
		SecondaryCorrelationID: resp.MerchantRequestID,
		CustomerMessage:        resp.CustomerMessage,
	}, nil
}

// QueryStatus asks the gateway for the outcome of an STK push
func (c *Client) QueryStatus(ctx context.Context, correlationID string) (*entities.SettlementStatus, error) {
	const op = "query"

	timestamp := Timestamp(c.now())
	req := stkQueryRequest{
		BusinessShortCode: c.cfg.Shortcode,
		Password:          Password(c.cfg.Shortcode, c.cfg.Passkey, timestamp),
		Timestamp:         timestamp,
		CheckoutRequestID: correlationID,
	}

	var resp stkQueryResponse
	if err := c.post(ctx, op, stkQueryPath, req, &resp); err != nil {
		var gwErr *GatewayError
		if errors.As(err, &gwErr) && gwErr.Code == pendingErrorCode {
			gwErr.Kind = entities.ErrPaymentPending
		}
		return nil, err
	}

	if resp.ResponseCode != "" && string(resp.ResponseCode) != responseCodeAccepted {
		return nil, &GatewayError{
			Op:         op,
			Kind:       entities.ErrGatewayRejected,
			StatusCode: http.StatusOK,
			Code:       string(resp.ResponseCode),
			Message:    resp.ResponseDescription,
		}
	}
	if resp.ResultCode == "" {
		return nil, &GatewayError{Op: op, Kind: entities.ErrPaymentPending, StatusCode: http.StatusOK, Message: resp.ResponseDescription}
	}

	code, err := strconv.Atoi(string(resp.ResultCode))
	if err != nil {
		return nil, &GatewayError{
			Op:         op,
			Kind:       entities.ErrGatewayUnavailable,
			StatusCode: http.StatusOK,
			Message:    fmt.Sprintf("unexpected ResultCode %q", resp.ResultCode),
		}
	}

	return &entities.SettlementStatus{
		CorrelationID:     correlationID,
		ResultCode:        code,
		ResultDescription: resp.ResultDesc,
	}, nil
}

// post sends an authenticated JSON request. A 401 drops the cached token and the
// request is retried once with a fresh one.
func (c *Client) post(ctx context.Context, op, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", op, err)
	}

	for attempt := 0; ; attempt++ {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return err
		}

		status, respBody, err := c.send(ctx, http.MethodPost, path, "Bearer "+token, payload)
		if err != nil {
			return &GatewayError{Op: op, Kind: entities.ErrGatewayUnavailable, Err: err}
		}

		if status == http.StatusUnauthorized && attempt == 0 {
			c.tokens.Invalidate(token)
			continue
		}
		if status != http.StatusOK {
			return classifyStatus(op, status, respBody)
		}

		if err := json.Unmarshal(respBody, out); err != nil {
			return &GatewayError{Op: op, Kind: entities.ErrGatewayUnavailable, StatusCode: status, Message: "malformed response", Err: err}
		}
		return nil
	}
}

func (c *Client) fetchToken(ctx context.Context) (string, time.Duration, error) {
	const op = "token"

	basic := "Basic " + basicCredentials(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)
	status, respBody, err := c.send(ctx, http.MethodGet, tokenPath, basic, nil)
	if err != nil {
		return "", 0, &GatewayError{Op: op, Kind: entities.ErrGatewayUnavailable, Err: err}
	}
	if status != http.StatusOK {
		// Whatever the gateway says about our credentials, callers can only retry later
		gwErr := classifyStatus(op, status, respBody)
		gwErr.Kind = entities.ErrGatewayUnavailable
		return "", 0, gwErr
	}

	var resp tokenResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", 0, &GatewayError{Op: op, Kind: entities.ErrGatewayUnavailable, StatusCode: status, Message: "malformed response", Err: err}
	}
	if resp.AccessToken == "" {
		return "", 0, &GatewayError{Op: op, Kind: entities.ErrGatewayUnavailable, StatusCode: status, Message: "empty access token"}
	}

	ttl := defaultTokenTTL
	if seconds, err := strconv.Atoi(string(resp.ExpiresIn)); err == nil && seconds > 0 {
		ttl = time.Duration(seconds) * time.Second
	}
	return resp.AccessToken, ttl, nil
}

func (c *Client) send(ctx context.Context, method, path, authorization string, payload []byte) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", authorization)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

// classifyStatus maps a non-200 response to a gateway error. Server errors are
// transient, client errors mean the request itself was declined.
func classifyStatus(op string, status int, body []byte) *GatewayError {
	gwErr := &GatewayError{Op: op, StatusCode: status}

	var apiErr apiError
	if json.Unmarshal(body, &apiErr) == nil && (apiErr.ErrorCode != "" || apiErr.ErrorMessage != "") {
		gwErr.Code = apiErr.ErrorCode
		gwErr.Message = apiErr.ErrorMessage
	} else if len(body) > 0 {
		gwErr.Message = truncate(string(body), 200)
	}

	switch {
	case status >= 500, status == http.StatusTooManyRequests, status == http.StatusUnauthorized:
		gwErr.Kind = entities.ErrGatewayUnavailable
	default:
		gwErr.Kind = entities.ErrGatewayRejected
	}
	return gwErr
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
