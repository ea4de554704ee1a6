package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "futsal/internal/errors"
	"futsal/internal/metrics"
)

// PaymentStatus is the normalized gateway verdict
type PaymentStatus string

const (
	PaymentCompleted PaymentStatus = "Completed"
	PaymentPending   PaymentStatus = "Pending"
	PaymentFailed    PaymentStatus = "Failed"
)

type GatewayConfig struct {
	BaseURL    string
	SecretKey  string
	ReturnURL  string
	WebsiteURL string
	Timeout    time.Duration
}

type GatewayClient struct {
	baseURL    string
	secretKey  string
	returnURL  string
	websiteURL string
	timeout    time.Duration
	httpClient *http.Client
}

// PaymentSessionRequest describes what the customer is asked to pay
type PaymentSessionRequest struct {
	Reference     string
	Amount        int64
	OrderName     string
	CustomerName  string
	CustomerEmail string
}

// PaymentSession is a created checkout; PaymentIndex identifies it in later lookups.
// ExpiresAt is zero when the gateway did not report a usable expiry.
type PaymentSession struct {
	PaymentIndex string
	PaymentURL   string
	ExpiresAt    time.Time
}

type PaymentLookup struct {
	PaymentIndex  string
	Status        PaymentStatus
	RawStatus     string
	TransactionID string
	TotalAmount   int64
}

type initiateRequest struct {
	ReturnURL         string        `json:"return_url"`
	WebsiteURL        string        `json:"website_url"`
	Amount            int64         `json:"amount"`
	PurchaseOrderID   string        `json:"purchase_order_id"`
	PurchaseOrderName string        `json:"purchase_order_name"`
	CustomerInfo      *customerInfo `json:"customer_info,omitempty"`
}

type customerInfo struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

type initiateResponse struct {
	PIDX       string `json:"pidx"`
	PaymentURL string `json:"payment_url"`
	ExpiresAt  string `json:"expires_at"`
}

type lookupRequest struct {
	PIDX string `json:"pidx"`
}

type lookupResponse struct {
	PIDX          string  `json:"pidx"`
	TotalAmount   int64   `json:"total_amount"`
	Status        string  `json:"status"`
	TransactionID *string `json:"transaction_id"`
}

func NewGatewayClient(cfg GatewayConfig) *GatewayClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &GatewayClient{
		baseURL:    cfg.BaseURL,
		secretKey:  cfg.SecretKey,
		returnURL:  cfg.ReturnURL,
		websiteURL: cfg.WebsiteURL,
		timeout:    cfg.Timeout,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// CreatePaymentSession opens a checkout for the given reference
func (gc *GatewayClient) CreatePaymentSession(ctx context.Context, req PaymentSessionRequest) (*PaymentSession, error) {
	body := initiateRequest{
		ReturnURL:         gc.returnURL,
		WebsiteURL:        gc.websiteURL,
		Amount:            req.Amount,
		PurchaseOrderID:   req.Reference,
		PurchaseOrderName: req.OrderName,
	}
	if req.CustomerName != "" || req.CustomerEmail != "" {
		body.CustomerInfo = &customerInfo{Name: req.CustomerName, Email: req.CustomerEmail}
	}

	var result initiateResponse
	status, err := gc.post(ctx, "initiate", "/epayment/initiate/", body, &result)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("gateway rejected session with status %d: %w", status, apperrors.ErrInvalidRequest)
	}
	if result.PIDX == "" || result.PaymentURL == "" {
		return nil, fmt.Errorf("gateway returned an empty session: %w", apperrors.ErrGatewayUnavailable)
	}

	session := &PaymentSession{
		PaymentIndex: result.PIDX,
		PaymentURL:   result.PaymentURL,
	}
	if expiresAt, err := time.Parse(time.RFC3339, result.ExpiresAt); err == nil {
		session.ExpiresAt = expiresAt
	}
	return session, nil
}

// LookupPayment asks the gateway for the authoritative status of a session
func (gc *GatewayClient) LookupPayment(ctx context.Context, paymentIndex string) (*PaymentLookup, error) {
	var result lookupResponse
	status, err := gc.post(ctx, "lookup", "/epayment/lookup/", lookupRequest{PIDX: paymentIndex}, &result)
	if err != nil {
		return nil, err
	}

	switch {
	case status == http.StatusNotFound:
		return &PaymentLookup{PaymentIndex: paymentIndex, Status: PaymentFailed, RawStatus: "Not found"}, nil
	case status != http.StatusOK:
		return nil, fmt.Errorf("gateway lookup failed with status %d: %w", status, apperrors.ErrInvalidRequest)
	}
	if result.PIDX != paymentIndex {
		return nil, fmt.Errorf("gateway answered lookup for %q with %q: %w", paymentIndex, result.PIDX, apperrors.ErrGatewayUnavailable)
	}

	lookup := &PaymentLookup{
		PaymentIndex: result.PIDX,
		Status:       normalizeStatus(result.Status),
		RawStatus:    result.Status,
		TotalAmount:  result.TotalAmount,
	}
	if result.TransactionID != nil {
		lookup.TransactionID = *result.TransactionID
	}
	return lookup, nil
}

func normalizeStatus(status string) PaymentStatus {
	switch status {
	case "Completed":
		return PaymentCompleted
	case "Pending", "Initiated":
		return PaymentPending
	default:
		return PaymentFailed
	}
}

// post returns the HTTP status for 2xx/4xx replies; transport failures and 5xx map to ErrGatewayUnavailable
func (gc *GatewayClient) post(ctx context.Context, operation, path string, body, out interface{}) (int, error) {
	start := time.Now()
	result := "ok"
	defer func() {
		metrics.GatewayRequestDuration.WithLabelValues(operation, result).Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := context.WithTimeout(ctx, gc.timeout)
	defer cancel()

	jsonBody, err := json.Marshal(body)
	if err != nil {
		result = "error"
		return 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, gc.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		result = "error"
		return 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Key "+gc.secretKey)

	resp, err := gc.httpClient.Do(req)
	if err != nil {
		result = "unavailable"
		return 0, fmt.Errorf("%s request failed: %v: %w", operation, err, apperrors.ErrGatewayUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		result = "unavailable"
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, fmt.Errorf("%s returned status %d: %w", operation, resp.StatusCode, apperrors.ErrGatewayUnavailable)
	}

	if resp.StatusCode != http.StatusOK {
		result = "rejected"
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		result = "error"
		return resp.StatusCode, fmt.Errorf("failed to decode %s response: %v: %w", operation, err, apperrors.ErrGatewayUnavailable)
	}

	return resp.StatusCode, nil
}
