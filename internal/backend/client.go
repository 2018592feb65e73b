// Package backend talks to the remote order API that owns every order.
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
	"strings"
	"time"

	"order-tracking-service/internal/lifecycle"
	"order-tracking-service/internal/model"
)

// Client calls the order API on behalf of a signed-in customer. Every call
// forwards the customer's bearer token.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type ordersEnvelope struct {
	Orders []model.Order `json:"orders"`
}

type orderEnvelope struct {
	Order *model.Order `json:"order"`
}

type eligibilityEnvelope struct {
	Order *model.Eligibility `json:"order"`
}

// ListOrders returns every order of the token's customer.
func (c *Client) ListOrders(ctx context.Context, token string) ([]model.Order, error) {
	var env ordersEnvelope
	if err := c.doJSON(ctx, http.MethodGet, "/orders", token, nil, &env); err != nil {
		return nil, err
	}
	return env.Orders, nil
}

// GetOrder returns one order by lead id.
func (c *Client) GetOrder(ctx context.Context, token, leadID string) (*model.Order, error) {
	var env orderEnvelope
	if err := c.doJSON(ctx, http.MethodGet, orderPath(leadID), token, nil, &env); err != nil {
		return nil, err
	}
	if env.Order == nil {
		return nil, ErrNotFound
	}
	return env.Order, nil
}

// GetEligibility returns the backend's change eligibility and change logs.
func (c *Client) GetEligibility(ctx context.Context, token, leadID string) (*model.Eligibility, error) {
	var env eligibilityEnvelope
	if err := c.doJSON(ctx, http.MethodGet, orderPath(leadID)+"/change-eligibility", token, nil, &env); err != nil {
		return nil, err
	}
	if env.Order == nil {
		return nil, ErrNotFound
	}
	return env.Order, nil
}

// ChangeAddress replaces the delivery address.
func (c *Client) ChangeAddress(ctx context.Context, token, leadID string, req model.ChangeRequest) (*model.Order, error) {
	return c.change(ctx, token, orderPath(leadID)+"/address", req)
}

// ChangeDeliveryDate replaces the expected delivery date.
func (c *Client) ChangeDeliveryDate(ctx context.Context, token, leadID string, req model.ChangeRequest) (*model.Order, error) {
	return c.change(ctx, token, orderPath(leadID)+"/delivery-date", req)
}

func (c *Client) change(ctx context.Context, token, path string, req model.ChangeRequest) (*model.Order, error) {
	var env orderEnvelope
	if err := c.doJSON(ctx, http.MethodPut, path, token, req, &env); err != nil {
		return nil, err
	}
	if env.Order == nil {
		return nil, errors.New("order service returned no order")
	}
	return env.Order, nil
}

// Document downloads a PDF. Error bodies may arrive with a binary content
// type, so any non-PDF payload is decoded as a JSON error before giving up
// with ErrDocumentGeneration.
func (c *Client) Document(ctx context.Context, token, leadID string, kind lifecycle.DocumentKind) ([]byte, error) {
	resp, body, err := c.do(ctx, http.MethodGet, orderPath(leadID)+"/documents/"+string(kind), token, nil)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusOK && isPDF(resp.Header.Get("Content-Type"), body) {
		return body, nil
	}
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, ErrUnauthorized
	}

	ae, ok := decodeAPIError(body)
	if !ok {
		if resp.StatusCode == http.StatusNotFound {
			return nil, ErrDocumentNotReady
		}
		return nil, ErrDocumentGeneration
	}
	if ae.notReady() {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotReady, ae.text())
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ae.text())
	}
	return nil, &DocumentError{Status: resp.StatusCode, Message: ae.text()}
}

func isPDF(contentType string, body []byte) bool {
	if bytes.HasPrefix(body, []byte("%PDF")) {
		return true
	}
	if _, isErr := decodeAPIError(body); isErr {
		return false
	}
	return strings.HasPrefix(contentType, "application/pdf") && len(body) > 0
}

func orderPath(leadID string) string {
	return "/orders/" + url.PathEscape(leadID)
}

func (c *Client) doJSON(ctx context.Context, method, path, token string, in, out any) error {
	var payload io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(raw)
	}

	resp, body, err := c.do(ctx, method, path, token, payload)
	if err != nil {
		return err
	}
	if err := statusError(resp.StatusCode, body); err != nil {
		return err
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path, token string, payload io.Reader) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return nil, nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json, application/pdf")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read body: %v", ErrNetwork, err)
	}
	return resp, body, nil
}

func statusError(status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	ae, _ := decodeAPIError(body)
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		msg := ae.text()
		if msg == "" {
			msg = "request rejected by order service"
		}
		return &ValidationError{Message: msg}
	}
	return &StatusError{Status: status, Message: ae.text()}
}
