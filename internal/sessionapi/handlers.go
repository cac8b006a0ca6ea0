package sessionapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/kalshi-dcm-demo/backend/internal/models"
)

// Handler wires inbound HTTP/websocket requests to the worker pool and hub.
type Handler struct {
	pool *WorkerPool
	hub  *Hub
}

func NewHandler(pool *WorkerPool, hub *Hub) *Handler {
	return &Handler{pool: pool, hub: hub}
}

type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, apiResponse{Success: false, Error: message})
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, apiResponse{Success: true, Data: map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	}})
}

// newOrderRequest is the inbound order shape a session submits.
type newOrderRequest struct {
	AccountID  string          `json:"account_id"`
	Ticker     string          `json:"ticker"`
	Side       models.Side     `json:"side"`
	OrderType  models.OrderType `json:"order_type"`
	AssetClass models.AssetClass `json:"asset_class"`
	Price      decimal.Decimal `json:"price"`
	Quantity   decimal.Decimal `json:"quantity"`
	Legs       []newOrderRequest `json:"legs,omitempty"`
}

func (req newOrderRequest) toOrder(sessionID string) models.Order {
	now := time.Now().UTC()
	order := models.Order{
		OrderID:    uuid.NewString(),
		AccountID:  req.AccountID,
		SessionID:  sessionID,
		Ticker:     req.Ticker,
		Side:       req.Side,
		OrderType:  req.OrderType,
		AssetClass: req.AssetClass,
		Price:      req.Price,
		Quantity:   req.Quantity,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	for _, leg := range req.Legs {
		order.Legs = append(order.Legs, leg.toOrder(sessionID))
	}
	return order
}

// PlaceOrder accepts an inbound order for the session named in the URL
// and enqueues it on that session's ordered worker queue.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionID"]
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "missing session id")
		return
	}

	var req newOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AccountID == "" || req.Ticker == "" {
		respondError(w, http.StatusBadRequest, "account_id and ticker are required")
		return
	}

	order := req.toOrder(sessionID)
	if err := h.pool.Submit(order, sessionID); err != nil {
		respondError(w, http.StatusServiceUnavailable, "gateway is shutting down")
		return
	}

	respondJSON(w, http.StatusAccepted, apiResponse{Success: true, Data: map[string]string{"order_id": order.OrderID}})
}

// ServeWS upgrades the session's outbound event connection.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionID"]
	if sessionID == "" {
		http.Error(w, "missing session id", http.StatusBadRequest)
		return
	}
	h.hub.ServeWS(sessionID, w, r)
}
