// Package api implements the HTTP client for the Argus portal REST API.
//
// The client is a thin wrapper: one request per call, no retry and no
// backoff. Mutating endpoints carry the CSRF token from the session
// store as the X-CSRFToken header.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/telescopiosnaescola/argus/internal/session"
	"go.uber.org/zap"
)

// Client issues REST calls against the Argus portal.
type Client struct {
	baseURL    string
	httpClient *http.Client
	sessions   *session.Store
	logger     *zap.Logger
}

// NewClient creates a portal API client. The session store supplies the
// authentication cookies and receives cookies set by auth responses.
func NewClient(baseURL string, sessions *session.Store, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		sessions: sessions,
		logger:   logger.With(zap.String("component", "api_client")),
	}
}

// BaseURL returns the configured portal base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Login authenticates with email and password. On success the server-set
// sessionid and csrftoken cookies are captured into the session store.
func (c *Client) Login(ctx context.Context, email, password string) error {
	body := map[string]string{"email": email, "password": password}
	resp, err := c.do(ctx, http.MethodPost, "/api/auth/login/", body, false)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := c.sessions.UpdateFrom(resp); err != nil {
		return fmt.Errorf("failed to store session cookies: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return c.decodeError(resp)
	}

	c.logger.Info("Logged in", zap.String("email", email))
	return nil
}

// Register creates a new portal account. Field-level validation errors
// come back as FieldErrors.
func (c *Client) Register(ctx context.Context, email, completeName, password1, password2 string) error {
	body := map[string]string{
		"email":        email,
		"completeName": completeName,
		"password1":    password1,
		"password2":    password2,
	}
	resp, err := c.do(ctx, http.MethodPost, "/api/auth/register/", body, false)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return c.decodeError(resp)
	}
	return nil
}

// AppInfo fetches the portal configuration blob.
func (c *Client) AppInfo(ctx context.Context) (*AppInfo, error) {
	var info AppInfo
	if err := c.getJSON(ctx, "/api/appinfo/", &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// FetchPlans lists the user's observation plans.
func (c *Client) FetchPlans(ctx context.Context) ([]ObservationPlan, error) {
	var plans []ObservationPlan
	if err := c.getJSON(ctx, "/api/fetch_plans/", &plans); err != nil {
		return nil, err
	}
	return plans, nil
}

// CreatePlan submits a new observation plan.
func (c *Client) CreatePlan(ctx context.Context, req CreatePlanRequest) (*StatusResponse, error) {
	return c.postStatus(ctx, "/api/create_plan/", req)
}

// DeletePlan removes a plan by id.
func (c *Client) DeletePlan(ctx context.Context, planID int) (*StatusResponse, error) {
	return c.postStatus(ctx, "/api/delete_plan/", map[string]int{"plan_id": planID})
}

// CheckPlanOK asks the server whether a plan could be observed. With now
// set, the check uses the current time instead of the plan start time.
func (c *Client) CheckPlanOK(ctx context.Context, planID int, now bool) (*StatusResponse, error) {
	return c.postStatus(ctx, "/api/check_if_plan_ok/", map[string]interface{}{
		"plan_id": planID,
		"now":     now,
	})
}

// ExecutePlan asks the telescope to run a plan immediately.
func (c *Client) ExecutePlan(ctx context.Context, planID int) (*StatusResponse, error) {
	return c.postStatus(ctx, "/api/execute_plan/", map[string]int{"plan_id": planID})
}

// FetchObserved lists completed observations.
func (c *Client) FetchObserved(ctx context.Context) ([]ObservationPlan, error) {
	var observed []ObservationPlan
	if err := c.getJSON(ctx, "/api/fetch_observed", &observed); err != nil {
		return nil, err
	}
	return observed, nil
}

// RequestFile downloads an output file (FITS/GIF) of an executed plan.
// The caller owns the returned reader and must close it.
func (c *Client) RequestFile(ctx context.Context, filename string) (io.ReadCloser, error) {
	resp, err := c.do(ctx, http.MethodPost, "/api/request_file/", map[string]string{"filename": filename}, true)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer func() { _ = resp.Body.Close() }()
		return nil, c.decodeError(resp)
	}
	return resp.Body, nil
}

// GetReservations lists observing time reservations (admin).
func (c *Client) GetReservations(ctx context.Context) ([]Reservation, error) {
	var payload struct {
		Reservations []Reservation `json:"reservations"`
	}
	if err := c.getJSON(ctx, "/api/get_reservations", &payload); err != nil {
		return nil, err
	}
	return payload.Reservations, nil
}

// GetAllUserEmails lists registered user emails (admin).
func (c *Client) GetAllUserEmails(ctx context.Context) ([]string, error) {
	var payload struct {
		Emails []string `json:"emails"`
	}
	if err := c.getJSON(ctx, "/api/get_all_users_emails", &payload); err != nil {
		return nil, err
	}
	return payload.Emails, nil
}

// ReserveTime grants an observing slot to a user (admin).
func (c *Client) ReserveTime(ctx context.Context, userEmail, startTime, endTime string) (*StatusResponse, error) {
	return c.postStatus(ctx, "/api/reserve_time/", map[string]string{
		"user_email": userEmail,
		"start_time": startTime,
		"end_time":   endTime,
	})
}

// DeleteReservation removes a reservation by id (admin).
func (c *Client) DeleteReservation(ctx context.Context, reservationID int) (*StatusResponse, error) {
	return c.postStatus(ctx, "/api/delete_reservation/", map[string]int{"reservation_id": reservationID})
}

// GetObservablePresavedList fetches the catalog objects currently
// observable from the site.
func (c *Client) GetObservablePresavedList(ctx context.Context) ([]PresavedObject, error) {
	var payload struct {
		Objects []PresavedObject `json:"objects"`
	}
	if err := c.getJSON(ctx, "/api/get_observable_presaved_list/", &payload); err != nil {
		return nil, err
	}
	return payload.Objects, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil, false)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return c.decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) postStatus(ctx context.Context, path string, body interface{}) (*StatusResponse, error) {
	resp, err := c.do(ctx, http.MethodPost, path, body, true)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, c.decodeError(resp)
	}

	var status StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return &status, nil
}

// do builds and sends one request. Mutating requests (csrf=true) attach
// the X-CSRFToken header from the session store.
func (c *Client) do(ctx context.Context, method, path string, body interface{}, csrf bool) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.sessions.ApplyTo(req)
	if csrf {
		req.Header.Set(session.CSRFHeader, c.sessions.CSRFToken())
	}

	c.logger.Debug("Request", zap.String("method", method), zap.String("path", path))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", path, err)
	}
	return resp, nil
}

// decodeError turns a non-200 response into a typed error. Auth
// endpoints return {"field": ["msg", ...]} maps; everything else falls
// back to HTTPError.
func (c *Client) decodeError(resp *http.Response) error {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return &HTTPError{StatusCode: resp.StatusCode}
	}

	var fields FieldErrors
	if err := json.Unmarshal(data, &fields); err == nil && len(fields) > 0 {
		return fields
	}

	var status StatusResponse
	if err := json.Unmarshal(data, &status); err == nil && status.Message != "" {
		return fmt.Errorf("server error: %s", status.Message)
	}

	return &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
}
