package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finvera/tradeflow/pkg/core"
)

// fakeClient implements TradeClient without a bus.
type fakeClient struct {
	submitID  string
	submitErr error
	status    core.OrderStatus
	statusErr error
	closed    bool

	gotOrder   core.Order
	gotOrderID string
}

func (f *fakeClient) SubmitOrder(_ context.Context, order core.Order) (string, error) {
	f.gotOrder = order
	return f.submitID, f.submitErr
}

func (f *fakeClient) GetOrderStatus(_ context.Context, orderID string) (core.OrderStatus, error) {
	f.gotOrderID = orderID
	return f.status, f.statusErr
}

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

func newTestRouter(fc *fakeClient) http.Handler {
	factory := func(ctx context.Context) (TradeClient, error) {
		return fc, nil
	}
	return NewRouter(factory, zerolog.Nop())
}

func TestSubmitOrderCreated(t *testing.T) {
	fc := &fakeClient{submitID: "order-1"}
	router := newTestRouter(fc)

	body := `{"clientId":"client-1","stockSymbol":"AAPL","quantity":100,"price":150.0}`
	req := httptest.NewRequest(http.MethodPost, "/api/trades/submit", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp struct {
		OrderID string `json:"orderId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "order-1", resp.OrderID)

	assert.Equal(t, "AAPL", fc.gotOrder.StockSymbol)
	assert.Equal(t, int64(100), fc.gotOrder.Quantity)
	assert.True(t, fc.closed)
}

func TestSubmitOrderMalformedBody(t *testing.T) {
	fc := &fakeClient{}
	router := newTestRouter(fc)

	req := httptest.NewRequest(http.MethodPost, "/api/trades/submit", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitOrderInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"zero quantity", `{"clientId":"c","stockSymbol":"AAPL","quantity":0,"price":150.0}`},
		{"negative price", `{"clientId":"c","stockSymbol":"AAPL","quantity":10,"price":-1}`},
		{"missing symbol", `{"clientId":"c","quantity":10,"price":150.0}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := &fakeClient{}
			router := newTestRouter(fc)

			req := httptest.NewRequest(http.MethodPost, "/api/trades/submit", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			// Rejected before the client is even created.
			assert.Empty(t, fc.gotOrder.ClientID)
		})
	}
}

func TestSubmitOrderServiceError(t *testing.T) {
	fc := &fakeClient{submitErr: errors.New("request timed out")}
	router := newTestRouter(fc)

	body := `{"clientId":"c","stockSymbol":"AAPL","quantity":10,"price":150.0}`
	req := httptest.NewRequest(http.MethodPost, "/api/trades/submit", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.True(t, fc.closed)
}

func TestGetOrderStatusOK(t *testing.T) {
	fc := &fakeClient{status: core.StatusSettled}
	router := newTestRouter(fc)

	req := httptest.NewRequest(http.MethodGet, "/api/trades/order-1/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		OrderID string `json:"orderId"`
		Status  string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "order-1", resp.OrderID)
	assert.Equal(t, "SETTLED", resp.Status)
	assert.Equal(t, "order-1", fc.gotOrderID)
}

func TestGetOrderStatusNotFound(t *testing.T) {
	fc := &fakeClient{status: core.StatusUnknown}
	router := newTestRouter(fc)

	req := httptest.NewRequest(http.MethodGet, "/api/trades/missing/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetOrderStatusUpstreamError(t *testing.T) {
	fc := &fakeClient{statusErr: errors.New("request timed out")}
	router := newTestRouter(fc)

	req := httptest.NewRequest(http.MethodGet, "/api/trades/order-1/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.True(t, fc.closed)
}

func TestFactoryFailure(t *testing.T) {
	factory := func(ctx context.Context) (TradeClient, error) {
		return nil, errors.New("bus unavailable")
	}
	router := NewRouter(factory, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/trades/order-1/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(&fakeClient{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
