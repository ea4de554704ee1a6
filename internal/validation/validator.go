package validation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"futsal/internal/logger"
	"futsal/internal/models"
)

// SmokeValidator - проверка работающего API на соответствие контракту
type SmokeValidator struct {
	baseURL  string
	username string
	password string
	groundID int64
	client   *http.Client
}

// NewSmokeValidator создает новый валидатор. Учетная запись должна существовать в БД.
func NewSmokeValidator(baseURL, username, password string, groundID int64) *SmokeValidator {
	return &SmokeValidator{
		baseURL:  baseURL,
		username: username,
		password: password,
		groundID: groundID,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type check struct {
	name   string
	method string
	path   string
	body   interface{}
	auth   bool
	want   int
	decode interface{}
}

// ValidateAll проверяет все группы endpoints по очереди
func (v *SmokeValidator) ValidateAll(ctx context.Context) error {
	log := logger.Get()
	log.Info("Начинаю валидацию API", "base_url", v.baseURL)

	groups := []struct {
		name string
		run  func(context.Context) error
	}{
		{"health", v.validateHealth},
		{"venues", v.validateVenues},
		{"bookings", v.validateBookings},
		{"payments", v.validatePayments},
	}

	for _, g := range groups {
		if err := g.run(ctx); err != nil {
			return fmt.Errorf("%s validation failed: %w", g.name, err)
		}
		log.Info("Endpoints валидны", "group", g.name)
	}

	log.Info("Все endpoints прошли валидацию успешно")
	return nil
}

func (v *SmokeValidator) validateHealth(ctx context.Context) error {
	return v.run(ctx, check{name: "health", method: http.MethodGet, path: "/health", want: http.StatusOK})
}

func (v *SmokeValidator) validateVenues(ctx context.Context) error {
	var venues models.ListVenuesResponse
	if err := v.run(ctx, check{
		name: "search venues", method: http.MethodGet, path: "/api/venues?query=futsal",
		auth: true, want: http.StatusOK, decode: &venues,
	}); err != nil {
		return err
	}

	date := time.Now().Format(models.DateLayout)
	var slots models.ListSlotsResponse
	if err := v.run(ctx, check{
		name: "ground slots", method: http.MethodGet, path: fmt.Sprintf("/api/grounds/%d/slots?date=%s", v.groundID, date),
		auth: true, want: http.StatusOK, decode: &slots,
	}); err != nil {
		return err
	}

	return v.run(ctx, check{
		name: "bad slot date", method: http.MethodGet, path: fmt.Sprintf("/api/grounds/%d/slots?date=tomorrow", v.groundID),
		auth: true, want: http.StatusBadRequest,
	})
}

func (v *SmokeValidator) validateBookings(ctx context.Context) error {
	checks := []check{
		{name: "bookings without auth", method: http.MethodGet, path: "/api/bookings", want: http.StatusUnauthorized},
		{name: "list bookings", method: http.MethodGet, path: "/api/bookings", auth: true, want: http.StatusOK, decode: &models.ListBookingsResponse{}},
		{name: "loyalty", method: http.MethodGet, path: "/api/loyalty", auth: true, want: http.StatusOK, decode: &models.LoyaltyStatus{}},
		{
			name: "initiate payment without slots", method: http.MethodPost, path: "/api/bookings/initiatePayment",
			body: map[string]interface{}{"ground_id": v.groundID, "slot_ids": []int64{}, "amount": 1000},
			auth: true, want: http.StatusBadRequest,
		},
		{name: "cancel unknown booking", method: http.MethodPatch, path: "/api/bookings/999999999/cancel", auth: true, want: http.StatusNotFound},
	}

	for _, c := range checks {
		if err := v.run(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func (v *SmokeValidator) validatePayments(ctx context.Context) error {
	if err := v.run(ctx, check{
		name: "callback without params", method: http.MethodGet, path: "/api/payments/callback", want: http.StatusBadRequest,
	}); err != nil {
		return err
	}

	var result models.FinalizeResult
	if err := v.run(ctx, check{
		name: "callback for settled intent", method: http.MethodGet,
		path: "/api/payments/callback?pidx=smoke&purchase_order_id=00000000-0000-0000-0000-000000000000",
		want: http.StatusOK, decode: &result,
	}); err != nil {
		return err
	}
	if !result.AlreadyProcessed {
		return fmt.Errorf("callback for settled intent: expected already_processed")
	}
	return nil
}

func (v *SmokeValidator) run(ctx context.Context, c check) error {
	resp, err := v.makeRequest(ctx, c.method, c.path, c.body, c.auth)
	if err != nil {
		return fmt.Errorf("%s: %w", c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != c.want {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: expected %d, got %d: %s", c.method, c.path, c.want, resp.StatusCode, body)
	}

	if c.decode != nil {
		if err := json.NewDecoder(resp.Body).Decode(c.decode); err != nil {
			return fmt.Errorf("%s %s: failed to decode response: %w", c.method, c.path, err)
		}
	}
	return nil
}

func (v *SmokeValidator) makeRequest(ctx context.Context, method, path string, body interface{}, auth bool) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, v.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		req.SetBasicAuth(v.username, v.password)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	return resp, nil
}
