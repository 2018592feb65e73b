package controller

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"order-tracking-service/internal/backend"
	"order-tracking-service/internal/dto"
	"order-tracking-service/internal/lifecycle"
	"order-tracking-service/internal/model"
	"order-tracking-service/internal/repository"
	"order-tracking-service/internal/service"
	"order-tracking-service/internal/session"
)

// stubOrders overrides the methods a test needs; any other call panics on
// the nil embedded interface.
type stubOrders struct {
	OrderService

	getOrder  func(leadID string) (*dto.OrderView, error)
	change    func(req model.ChangeRequest) (*dto.OrderView, error)
	document  func(kind lifecycle.DocumentKind) ([]byte, error)
	timeline  []lifecycle.Step
	countdown []lifecycle.ChangeWindow
	watch     chan dto.TrackingView
	stopped   bool
	filter    string
}

func (s *stubOrders) ListOrders(_ context.Context, _ *session.Session, filter string) (*dto.OrderList, error) {
	s.filter = filter
	if filter == "bogus" {
		return nil, service.ErrInvalidFilter
	}
	return &dto.OrderList{Orders: []dto.OrderSummary{{LeadID: "L1"}}}, nil
}

func (s *stubOrders) GetOrder(_ context.Context, _ *session.Session, leadID string) (*dto.OrderView, error) {
	return s.getOrder(leadID)
}

func (s *stubOrders) Timeline(context.Context, *session.Session, string) ([]lifecycle.Step, error) {
	return s.timeline, nil
}

func (s *stubOrders) ChangeAddress(_ context.Context, _ *session.Session, _ string, req model.ChangeRequest) (*dto.OrderView, error) {
	return s.change(req)
}

func (s *stubOrders) Document(_ context.Context, _ *session.Session, _ string, kind lifecycle.DocumentKind) ([]byte, error) {
	return s.document(kind)
}

func (s *stubOrders) Countdown(_ context.Context, _ *session.Session, _ string) (<-chan lifecycle.ChangeWindow, error) {
	ch := make(chan lifecycle.ChangeWindow, len(s.countdown))
	for _, cw := range s.countdown {
		ch <- cw
	}
	close(ch)
	return ch, nil
}

func (s *stubOrders) Watch(_ context.Context, _ *session.Session, _ string) (<-chan dto.TrackingView, func(), error) {
	return s.watch, func() { s.stopped = true }, nil
}

func (s *stubOrders) AdminStats(context.Context) (dto.Stats, error) {
	return dto.Stats{Total: 3, Active: 2, Closed: 1}, nil
}

type stubAuth struct {
	loggedOut []string
}

func (a *stubAuth) Authenticate(_ context.Context, token string) (*session.Session, error) {
	switch token {
	case "customer":
		return &session.Session{Token: token, UserID: "cust-1"}, nil
	case "admin":
		return &session.Session{Token: token, UserID: "ops-1", Permissions: []string{"admin"}}, nil
	}
	return nil, service.ErrInvalidToken
}

func (a *stubAuth) Logout(_ context.Context, token string) error {
	a.loggedOut = append(a.loggedOut, token)
	return nil
}

func setup(orders *stubOrders) (*gin.Engine, *stubAuth) {
	gin.SetMode(gin.TestMode)
	auth := &stubAuth{}
	ctl := NewOrderController(orders, auth, zap.NewNop())
	return NewRouter(ctl, auth, zap.NewNop()), auth
}

func request(r http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) dto.ErrorResponse {
	t.Helper()
	var res dto.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	return res
}

func TestHealthIsPublic(t *testing.T) {
	r, _ := setup(&stubOrders{})
	w := request(r, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestListOrders(t *testing.T) {
	orders := &stubOrders{}
	r, _ := setup(orders)

	assert.Equal(t, http.StatusUnauthorized, request(r, http.MethodGet, "/orders", "", "").Code)

	w := request(r, http.MethodGet, "/orders?status=active", "customer", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "active", orders.filter)
	assert.Contains(t, w.Body.String(), `"leadId":"L1"`)

	w = request(r, http.MethodGet, "/orders?status=bogus", "customer", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetOrder_ErrorMapping(t *testing.T) {
	cases := []struct {
		err       error
		status    int
		retryable bool
	}{
		{backend.ErrNotFound, http.StatusNotFound, false},
		{backend.ErrUnauthorized, http.StatusUnauthorized, false},
		{service.ErrForbidden, http.StatusForbidden, false},
		{fmt.Errorf("%w: dial tcp: connection refused", backend.ErrNetwork), http.StatusBadGateway, true},
		{&backend.StatusError{Status: 503}, http.StatusBadGateway, true},
		{&backend.StatusError{Status: 409, Message: "conflict"}, http.StatusBadGateway, false},
		{context.DeadlineExceeded, http.StatusGatewayTimeout, true},
		{errors.New("boom"), http.StatusInternalServerError, true},
	}

	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			r, _ := setup(&stubOrders{getOrder: func(string) (*dto.OrderView, error) { return nil, tc.err }})
			w := request(r, http.MethodGet, "/orders/L1", "customer", "")
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.retryable, decodeError(t, w).Retryable)
		})
	}
}

func TestGetOrder_OK(t *testing.T) {
	r, _ := setup(&stubOrders{getOrder: func(leadID string) (*dto.OrderView, error) {
		return &dto.OrderView{OrderSummary: dto.OrderSummary{LeadID: leadID, Stage: lifecycle.StagePaymentDone}}, nil
	}})

	w := request(r, http.MethodGet, "/orders/L-77", "customer", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"leadId":"L-77"`)
	assert.Contains(t, w.Body.String(), `"stage":"payment_done"`)
}

func TestTimeline(t *testing.T) {
	r, _ := setup(&stubOrders{timeline: lifecycle.Timeline(lifecycle.StagePaymentDone, time.Time{})})

	w := request(r, http.MethodGet, "/orders/L1/timeline", "customer", "")
	require.Equal(t, http.StatusOK, w.Code)

	var res struct {
		Timeline []lifecycle.Step `json:"timeline"`
		Current  *lifecycle.Step  `json:"current"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Len(t, res.Timeline, 9)
	require.NotNil(t, res.Current)
	assert.Equal(t, lifecycle.StagePaymentDone, res.Current.Key)

	completed := []lifecycle.Step{{Key: lifecycle.StagePending, Badge: lifecycle.BadgeCompleted}}
	r, _ = setup(&stubOrders{timeline: completed})
	w = request(r, http.MethodGet, "/orders/L1/timeline", "customer", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), `"current"`)
}

func TestChangeAddress(t *testing.T) {
	var got model.ChangeRequest
	orders := &stubOrders{change: func(req model.ChangeRequest) (*dto.OrderView, error) {
		got = req
		if req.Reason == "late" {
			return nil, &service.ChangeNotAllowedError{Reason: lifecycle.ReasonExpired}
		}
		if len(req.NewValue) < 10 {
			return nil, &backend.ValidationError{Message: "address must be at least 10 characters"}
		}
		return &dto.OrderView{}, nil
	}}
	r, _ := setup(orders)

	w := request(r, http.MethodPut, "/orders/L1/address", "customer", `{"newValue":"Plot 7, Chakan MIDC, Pune","reason":"site moved"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Plot 7, Chakan MIDC, Pune", got.NewValue)

	w = request(r, http.MethodPut, "/orders/L1/address", "customer", `{"newValue":"x"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = request(r, http.MethodPut, "/orders/L1/address", "customer", `{"newValue":"Pune","reason":"moved"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "address must be at least 10 characters", decodeError(t, w).Error)

	w = request(r, http.MethodPut, "/orders/L1/address", "customer", `{"newValue":"Plot 7, Chakan MIDC, Pune","reason":"late"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, decodeError(t, w).Error, lifecycle.ReasonExpired)
}

func TestDocument(t *testing.T) {
	orders := &stubOrders{document: func(kind lifecycle.DocumentKind) ([]byte, error) {
		switch kind {
		case lifecycle.DocumentQuote:
			return []byte("%PDF-1.7"), nil
		case lifecycle.DocumentInvoice:
			return nil, fmt.Errorf("%w: invoice is not issued yet", backend.ErrDocumentNotReady)
		case lifecycle.DocumentEwayBill:
			return nil, &backend.DocumentError{Status: 500, Message: "e-way bill portal timeout"}
		}
		return nil, backend.ErrDocumentGeneration
	}}
	r, _ := setup(orders)

	w := request(r, http.MethodGet, "/orders/L1/documents/quote", "customer", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), `L1-quote.pdf`)
	assert.Equal(t, "%PDF-1.7", w.Body.String())

	w = request(r, http.MethodGet, "/orders/L1/documents/invoice", "customer", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.True(t, decodeError(t, w).Retryable)

	w = request(r, http.MethodGet, "/orders/L1/documents/ewaybill", "customer", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "e-way bill portal timeout", decodeError(t, w).Error)

	w = request(r, http.MethodGet, "/orders/L1/documents/sales-order", "customer", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "document could not be generated, please try again", decodeError(t, w).Error)

	w = request(r, http.MethodGet, "/orders/L1/documents/receipt", "customer", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCountdownStream(t *testing.T) {
	orders := &stubOrders{countdown: []lifecycle.ChangeWindow{
		{Allowed: true, SecondsLeft: 2},
		{Allowed: true, SecondsLeft: 1},
		{Expired: true, Reason: lifecycle.ReasonExpired},
	}}
	r, _ := setup(orders)

	w := request(r, http.MethodGet, "/orders/L1/countdown", "customer", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	events := 0
	sc := bufio.NewScanner(strings.NewReader(w.Body.String()))
	for sc.Scan() {
		if sc.Text() == "event:countdown" {
			events++
		}
	}
	assert.Equal(t, 3, events)
	assert.Contains(t, w.Body.String(), lifecycle.ReasonExpired)
}

func TestWatchStream(t *testing.T) {
	orders := &stubOrders{watch: make(chan dto.TrackingView, 2)}
	orders.watch <- dto.TrackingView{LeadID: "L1", Stage: lifecycle.StagePaymentDone}
	orders.watch <- dto.TrackingView{LeadID: "L1", Stage: lifecycle.StageInTransit}
	close(orders.watch)
	r, _ := setup(orders)

	w := request(r, http.MethodGet, "/orders/L1/watch", "customer", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, strings.Count(w.Body.String(), "event:status"))
	assert.Contains(t, w.Body.String(), `"stage":"in_transit"`)
	assert.True(t, orders.stopped)
}

func TestWatchStream_ClientGone(t *testing.T) {
	orders := &stubOrders{watch: make(chan dto.TrackingView)}
	r, _ := setup(orders)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/orders/L1/watch", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer customer")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.True(t, orders.stopped)
}

func TestAdminRoutes(t *testing.T) {
	r, _ := setup(&stubOrders{})

	w := request(r, http.MethodGet, "/admin/orders/stats", "customer", "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = request(r, http.MethodGet, "/admin/orders/stats", "admin", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":3`)
}

func TestLogout(t *testing.T) {
	r, auth := setup(&stubOrders{})

	w := request(r, http.MethodPost, "/logout", "customer", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{"customer"}, auth.loggedOut)
}

func TestStatusFor_MirrorNotFound(t *testing.T) {
	status, retryable := statusFor(fmt.Errorf("tracking: %w", repository.ErrNotFound))
	assert.Equal(t, http.StatusNotFound, status)
	assert.False(t, retryable)
}
