package rest

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/finvera/tradeflow/pkg/core"
	"github.com/finvera/tradeflow/pkg/logging"
)

type tradeHandler struct {
	factory ClientFactory
	logger  zerolog.Logger
}

// submitRequest is the JSON request body for POST /api/trades/submit.
type submitRequest struct {
	ClientID    string  `json:"clientId"`
	StockSymbol string  `json:"stockSymbol"`
	Quantity    int64   `json:"quantity"`
	Price       float64 `json:"price"`
}

type submitResponse struct {
	OrderID string `json:"orderId"`
}

type statusResponse struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *tradeHandler) submitOrder(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}

	order := core.Order{
		ClientID:    req.ClientID,
		StockSymbol: req.StockSymbol,
		Quantity:    req.Quantity,
		Price:       req.Price,
	}
	if err := order.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "order submission failed: " + err.Error()})
		return
	}

	client, err := h.factory(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to create trade client")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "service unavailable"})
		return
	}
	defer client.Close()

	logger := logging.FromContext(r.Context())
	logger.Info().
		Str("client_id", order.ClientID).
		Str("symbol", order.StockSymbol).
		Int64("quantity", order.Quantity).
		Float64("price", order.Price).
		Msg("Received order submission")

	orderID, err := client.SubmitOrder(r.Context(), order)
	if err != nil {
		h.logger.Error().Err(err).Msg("Order submission failed")
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "order submission failed: " + err.Error()})
		return
	}

	writeJSON(w, http.StatusCreated, submitResponse{OrderID: orderID})
}

func (h *tradeHandler) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	client, err := h.factory(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to create trade client")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "service unavailable"})
		return
	}
	defer client.Close()

	status, err := client.GetOrderStatus(r.Context(), orderID)
	if err != nil {
		h.logger.Error().Err(err).Str("order_id", orderID).Msg("Status lookup failed")
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "status lookup failed: " + err.Error()})
		return
	}
	if status == core.StatusUnknown {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "order not found: " + orderID})
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{OrderID: orderID, Status: string(status)})
}
