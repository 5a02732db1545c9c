package download

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrNoDigitalContent is matched when the server redirects to the generic
// order confirmation.
var ErrNoDigitalContent = errors.New("order has no digital items")

// RedirectError carries the confirmation page the server pointed to
type RedirectError struct {
	Location string
}

func (e *RedirectError) Error() string {
	return fmt.Sprintf("%s, see %s", ErrNoDigitalContent, e.Location)
}

// Is lets errors.Is match ErrNoDigitalContent
func (e *RedirectError) Is(target error) bool {
	return target == ErrNoDigitalContent
}

// APIError is a non-success response from the delivery endpoint
type APIError struct {
	Status   int
	Message  string
	Recovery string
}

func (e *APIError) Error() string {
	if e.Recovery != "" {
		return fmt.Sprintf("delivery request failed (%d): %s (go to %s)", e.Status, e.Message, e.Recovery)
	}
	return fmt.Sprintf("delivery request failed (%d): %s", e.Status, e.Message)
}

// Plan is the server's delivery plan for one order
type Plan struct {
	OrderID          string  `json:"orderId"`
	Assets           []Asset `json:"assets"`
	ExpectedCount    int     `json:"expectedCount"`
	ResolvedCount    int     `json:"resolvedCount"`
	CountdownSeconds int     `json:"countdownSeconds"`
	InterItemDelayMs int     `json:"interItemDelayMs"`
}

// Options derives orchestrator pacing from the plan. The countdown is always
// the default, and the server may lengthen the inter-item delay but never
// shorten it below the default.
func (p *Plan) Options() Options {
	opts := DefaultOptions()
	if d := time.Duration(p.InterItemDelayMs) * time.Millisecond; d > opts.InterItemDelay {
		opts.InterItemDelay = d
	}
	return opts
}

// PlanClient asks the fulfillment server for an order's delivery plan
type PlanClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewPlanClient creates a client that reports redirects instead of following them
func NewPlanClient(baseURL string, timeout time.Duration) *PlanClient {
	return &PlanClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// FetchPlan requests the delivery plan for orderID
func (c *PlanClient) FetchPlan(ctx context.Context, orderID string) (*Plan, error) {
	endpoint := c.baseURL + "/api/v1/downloads?orderId=" + url.QueryEscape(orderID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to request delivery plan: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var plan Plan
		if err := json.NewDecoder(resp.Body).Decode(&plan); err != nil {
			return nil, fmt.Errorf("failed to decode delivery plan: %w", err)
		}
		return &plan, nil

	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		return nil, &RedirectError{Location: resp.Header.Get("Location")}

	default:
		var body struct {
			Error    string `json:"error"`
			Details  string `json:"details"`
			Recovery string `json:"recovery"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		msg := body.Error
		if body.Details != "" {
			msg += ": " + body.Details
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &APIError{Status: resp.StatusCode, Message: msg, Recovery: body.Recovery}
	}
}
