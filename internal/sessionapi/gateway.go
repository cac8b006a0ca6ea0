package sessionapi

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/kalshi-dcm-demo/backend/internal/models"
)

// WireGateway implements fixadapter.Gateway by delivering wire events
// over the Hub instead of a real FIX session. There is no live market to
// route to: SendNewOrder only notifies the owning session over the Hub,
// and SendOrderCancelRequest marks the order CANCELED in the Store
// directly without sending the session any event.
type WireGateway struct {
	hub   *Hub
	store cancelConfirmer
}

// cancelConfirmer is the subset of store.Store the simulated cancel path
// needs; declared narrowly here so this file doesn't import store
// directly for a single call.
type cancelConfirmer interface {
	UpdateOrderStatus(ctx context.Context, orderID string, status models.OrderStatus, filledQuantityDelta *decimal.Decimal, liquidityTag *models.LiquidityTag) error
}

func NewWireGateway(hub *Hub, store cancelConfirmer) *WireGateway {
	return &WireGateway{hub: hub, store: store}
}

func (g *WireGateway) SendNewOrder(_ context.Context, order models.Order, sessionID string) error {
	g.hub.Deliver(sessionID, OutboundEvent{
		Type: EventOrderRouted,
		Payload: map[string]interface{}{
			"order_id": order.OrderID,
			"ticker":   order.Ticker,
			"side":     order.Side,
			"quantity": order.Quantity.String(),
			"price":    order.Price.String(),
		},
	})
	return nil
}

// SendOrderCancelRequest simulates an immediate market cancel ack: the
// resting order transitions straight to CANCELED so the order manager's
// waitForCancellation poll confirms on its first check. A real FIX
// adapter would instead forward the request and let the market's own
// Cancel Reject/Canceled execution report drive this transition.
func (g *WireGateway) SendOrderCancelRequest(ctx context.Context, order models.Order) error {
	return g.store.UpdateOrderStatus(ctx, order.OrderID, models.OrderStatusCanceled, nil, nil)
}

func (g *WireGateway) SendExecutionReport(_ context.Context, order models.Order, sessionID string, price, quantity decimal.Decimal, liquidityTag models.LiquidityTag) error {
	g.hub.Deliver(sessionID, OutboundEvent{
		Type: EventExecutionReport,
		Payload: map[string]interface{}{
			"order_id":      order.OrderID,
			"ticker":        order.Ticker,
			"side":          order.Side,
			"price":         price.String(),
			"quantity":      quantity.String(),
			"liquidity_tag": liquidityTag,
		},
	})
	return nil
}

func (g *WireGateway) SendReject(_ context.Context, order models.Order, sessionID, reason string) error {
	g.hub.Deliver(sessionID, OutboundEvent{
		Type: EventReject,
		Payload: map[string]interface{}{
			"order_id": order.OrderID,
			"ticker":   order.Ticker,
			"reason":   reason,
		},
	})
	return nil
}
