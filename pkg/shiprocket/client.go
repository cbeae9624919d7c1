package shiprocket

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/bazaarly/bazaarly-backend/pkg/config"
	pkgerrors "github.com/bazaarly/bazaarly-backend/pkg/errors"
	"github.com/bazaarly/bazaarly-backend/pkg/logger"
)

var (
	errEmailRequired    = errors.New("shiprocket email is required")
	errPasswordRequired = errors.New("shiprocket password is required")
)

// Client talks to the Shiprocket external API. The session token is cached
// in the injected TokenStore; a 401 from the carrier invalidates it and the
// request is replayed once with a fresh login. Transient failures (network,
// 5xx, 429) are retried with capped exponential backoff.
type Client struct {
	httpClient *http.Client
	baseURL    string
	email      string
	password   string
	tokenTTL   time.Duration
	maxRetries uint64
	tokens     TokenStore
	logger     *logger.Logger

	loginMu sync.Mutex
}

// NewClient validates credentials and builds the carrier client.
func NewClient(ctx context.Context, cfg config.ShiprocketConfig, tokens TokenStore, logg *logger.Logger) (*Client, error) {
	email := strings.TrimSpace(cfg.Email)
	if email == "" {
		return nil, errEmailRequired
	}
	if strings.TrimSpace(cfg.Password) == "" {
		return nil, errPasswordRequired
	}
	if tokens == nil {
		tokens = NewMemoryTokenStore()
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://apiv2.shiprocket.in/v1/external"
	}

	maxRetries := uint64(cfg.MaxRetries)
	if cfg.MaxRetries <= 0 {
		maxRetries = 3
	}

	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    baseURL,
		email:      email,
		password:   cfg.Password,
		tokenTTL:   cfg.TokenTTL,
		maxRetries: maxRetries,
		tokens:     tokens,
		logger:     logg,
	}

	if logg != nil {
		logg.Info(ctx, "shiprocket client initialized")
	}
	return c, nil
}

// Login authenticates against the carrier and caches the session token.
func (c *Client) Login(ctx context.Context) (string, error) {
	c.loginMu.Lock()
	defer c.loginMu.Unlock()

	var resp struct {
		Token string `json:"token"`
	}
	err := c.request(ctx, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    c.email,
		"password": c.password,
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "carrier login returned empty token")
	}
	if err := c.tokens.Set(ctx, resp.Token, c.tokenTTL); err != nil {
		// A broken cache should not fail the operation; the token is
		// still usable for this request.
		c.log(ctx, "error", "token_cache", map[string]any{"error": err.Error()})
	}
	return resp.Token, nil
}

func (c *Client) token(ctx context.Context) (string, error) {
	token, err := c.tokens.Get(ctx)
	if err != nil {
		c.log(ctx, "error", "token_cache", map[string]any{"error": err.Error()})
	}
	if token != "" {
		return token, nil
	}
	return c.Login(ctx)
}

// CreatePickupLocation registers a named pickup point.
func (c *Client) CreatePickupLocation(ctx context.Context, params PickupLocationParams) error {
	return c.do(ctx, http.MethodPost, "/settings/company/addpickup", params, nil)
}

// CreateOrder creates a forward shipment order.
func (c *Client) CreateOrder(ctx context.Context, params OrderParams) (*OrderResult, error) {
	var result OrderResult
	if err := c.do(ctx, http.MethodPost, "/orders/create/adhoc", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateReturnOrder creates a reverse shipment order.
func (c *Client) CreateReturnOrder(ctx context.Context, params OrderParams) (*OrderResult, error) {
	var result OrderResult
	if err := c.do(ctx, http.MethodPost, "/orders/create/return", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AssignAWB asks the carrier to allocate an airway bill for the shipment.
func (c *Client) AssignAWB(ctx context.Context, shipmentID int64, courierID *int64) (*AWBResult, error) {
	body := map[string]any{"shipment_id": shipmentID}
	if courierID != nil {
		body["courier_id"] = *courierID
	}
	var resp struct {
		Response struct {
			Data AWBResult `json:"data"`
		} `json:"response"`
	}
	if err := c.do(ctx, http.MethodPost, "/courier/assign/awb", body, &resp); err != nil {
		return nil, err
	}
	if resp.Response.Data.AWBCode == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "carrier did not return an awb code")
	}
	return &resp.Response.Data, nil
}

// GeneratePickup schedules courier pickup for the shipments.
func (c *Client) GeneratePickup(ctx context.Context, shipmentIDs []int64) error {
	return c.do(ctx, http.MethodPost, "/courier/generate/pickup", map[string]any{
		"shipment_id": shipmentIDs,
	}, nil)
}

// GenerateLabel produces the shipping label document.
func (c *Client) GenerateLabel(ctx context.Context, shipmentIDs []int64) (*LabelResult, error) {
	var result LabelResult
	err := c.do(ctx, http.MethodPost, "/courier/generate/label", map[string]any{
		"shipment_id": shipmentIDs,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Track fetches the current movement state of a shipment.
func (c *Client) Track(ctx context.Context, shipmentID int64) (*TrackResult, error) {
	var resp struct {
		TrackingData TrackResult `json:"tracking_data"`
	}
	path := fmt.Sprintf("/courier/track/shipment/%d", shipmentID)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.TrackingData, nil
}

// do runs an authenticated request with backoff on transient failures and a
// single token refresh on 401.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(500*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := c.authenticated(ctx, method, path, body, out)
		if isTransient(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func (c *Client) authenticated(ctx context.Context, method, path string, body, out any) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	err = c.request(ctx, method, path, token, body, out)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
		// Session expired upstream; drop the cached token and replay
		// exactly once with a fresh login.
		_ = c.tokens.Del(ctx)
		token, err = c.Login(ctx)
		if err != nil {
			return err
		}
		return c.request(ctx, method, path, token, body, out)
	}
	return err
}

func (c *Client) request(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode carrier request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build carrier request")
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	c.log(ctx, "request", method+" "+path, nil)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "shiprocket request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read shiprocket response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: extractMessage(raw)}
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode shiprocket response")
		}
	}
	return nil
}

func extractMessage(raw []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	return strings.TrimSpace(string(raw))
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	if typed := pkgerrors.As(err); typed != nil {
		return typed.Code() == pkgerrors.CodeDependency
	}
	return false
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = v
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("shiprocket %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("shiprocket %s", phase))
	}
}
