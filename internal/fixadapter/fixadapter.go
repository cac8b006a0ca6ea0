// Package fixadapter defines the outbound wire boundary the order
// manager talks to. The gateway core never depends on a concrete FIX
// implementation — only this interface — so the session layer is free
// to back it with a real FIX engine, a simulator, or (as in this repo)
// delivery over the websocket hub.
package fixadapter

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/kalshi-dcm-demo/backend/internal/models"
)

// Gateway is the capability the order manager uses to talk to the
// market and to the originating session. Every method name and
// parameter shape mirrors the canonical FIX engine contract: four-
// argument SendExecutionReport (order, session, price/quantity,
// liquidity tag) is the one the rest of this package is built around.
type Gateway interface {
	// SendNewOrder transmits a New Order Single for order under sessionID.
	SendNewOrder(ctx context.Context, order models.Order, sessionID string) error
	// SendOrderCancelRequest transmits an Order Cancel Request for order.
	SendOrderCancelRequest(ctx context.Context, order models.Order) error
	// SendExecutionReport reports a fill of quantity at price for order,
	// under sessionID, tagged with how the liquidity was sourced.
	SendExecutionReport(ctx context.Context, order models.Order, sessionID string, price, quantity decimal.Decimal, liquidityTag models.LiquidityTag) error
	// SendReject reports a pre-trade denial back to the originating session.
	SendReject(ctx context.Context, order models.Order, sessionID, reason string) error
}
