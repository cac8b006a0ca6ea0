// Package ordermanager implements order routing: it decides whether an
// order can be crossed against a resting opposite-side order on the
// same account (internalization) or must go to the market, and drives
// the order through its lifecycle either way.
package ordermanager

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kalshi-dcm-demo/backend/internal/fixadapter"
	"github.com/kalshi-dcm-demo/backend/internal/models"
	"github.com/kalshi-dcm-demo/backend/internal/obslog"
	"github.com/kalshi-dcm-demo/backend/internal/risk"
	"github.com/kalshi-dcm-demo/backend/internal/store"
)

// cancelPollInterval and cancelPollAttempts bound how long
// attemptInternalization waits for a cancellation to confirm: 10
// attempts at 500ms apiece, a 5-second ceiling.
const (
	cancelPollInterval = 500 * time.Millisecond
	cancelPollAttempts = 10
)

// Manager routes risk-approved orders, internalizing against a resting
// opposite-side order when possible and falling back to the market
// otherwise.
type Manager struct {
	store    store.Store
	gateway  fixadapter.Gateway
	pipeline *risk.Pipeline
	logger   obslog.Logger

	// pollInterval/pollAttempts default to the spec's 500ms x 10 (a 5s
	// ceiling); tests shrink them so the cancel-timeout path doesn't
	// need to burn wall-clock seconds.
	pollInterval time.Duration
	pollAttempts int
}

// New builds a Manager. pipeline has already been constructed with its
// plugins in canonical order.
func New(s store.Store, gw fixadapter.Gateway, pipeline *risk.Pipeline, logger obslog.Logger) *Manager {
	return &Manager{
		store: s, gateway: gw, pipeline: pipeline, logger: logger,
		pollInterval: cancelPollInterval,
		pollAttempts: cancelPollAttempts,
	}
}

// ProcessOrder is the single entry point a session hands an inbound
// order to: it halts-checks, runs the risk pipeline, persists the order,
// and attempts internalization before falling back to the market.
func (m *Manager) ProcessOrder(ctx context.Context, order models.Order, sessionID string) error {
	if m.store.IsTradingHalted(order.Ticker) {
		m.logger.LogRiskDenial("TradingHalt", order.OrderID, sessionID, "Trading is halted for this ticker")
		return m.gateway.SendReject(ctx, order, sessionID, "Trading is halted for this ticker")
	}

	account, err := m.store.GetAccount(ctx, order.AccountID)
	if err != nil {
		m.logger.LogDependencyFailure("store", "GetAccount", err)
		return m.gateway.SendReject(ctx, order, sessionID, "Account not found")
	}

	settings, err := m.store.GetRiskSettings(ctx, sessionID)
	if err != nil {
		m.logger.LogDependencyFailure("store", "GetRiskSettings", err)
		return m.gateway.SendReject(ctx, order, sessionID, "Risk settings not found for session.")
	}

	if ok, reason := m.pipeline.CheckOrder(ctx, order, account, sessionID, settings); !ok {
		return m.gateway.SendReject(ctx, order, sessionID, reason)
	}

	order.Status = models.OrderStatusNew
	if err := m.store.CreateOrder(ctx, order); err != nil {
		m.logger.LogDependencyFailure("store", "CreateOrder", err)
		return m.gateway.SendReject(ctx, order, sessionID, "Failed to record order")
	}

	if account.InternalizationEnabled {
		internalized, err := m.attemptInternalization(ctx, order, account, sessionID)
		if err != nil {
			return err
		}
		if internalized {
			return nil
		}
	}

	return m.sendOrderToMarket(ctx, order, sessionID)
}

// attemptInternalization looks for a resting opposite-side order on the
// same account/ticker/price, cancels it out of the market, and — if the
// cancel confirms within the poll window — crosses the two orders
// atomically. It returns (false, nil) when there is no eligible resting
// order or the cancel never confirms, meaning the caller should fall
// back to routing to the market.
func (m *Manager) attemptInternalization(ctx context.Context, order models.Order, account models.Account, sessionID string) (bool, error) {
	oppositeSide := models.Sell
	if order.Side == models.Sell {
		oppositeSide = models.Buy
	}

	candidates, err := m.store.GetOpenOrders(ctx, order.AccountID, order.Ticker, oppositeSide, order.Price)
	if err != nil {
		m.logger.LogDependencyFailure("store", "GetOpenOrders", err)
		return false, nil
	}
	if len(candidates) == 0 {
		return false, nil
	}
	resting := candidates[0]

	if err := m.gateway.SendOrderCancelRequest(ctx, resting); err != nil {
		m.logger.LogDependencyFailure("fixadapter", "SendOrderCancelRequest", err)
		return false, nil
	}

	confirmed, err := m.waitForCancellation(ctx, resting.OrderID)
	if err != nil {
		m.logger.LogDependencyFailure("store", "GetOrder", err)
		return false, nil
	}
	if !confirmed {
		return false, nil
	}

	if err := m.internalizeTrade(ctx, order, resting, sessionID); err != nil {
		// Store transaction failures during internalization commit are
		// Fatal per the error taxonomy: they are not silently downgraded
		// to a market route, since that risks a double-fill.
		return false, fmt.Errorf("internalization commit failed for orders %s/%s: %w", order.OrderID, resting.OrderID, err)
	}
	return true, nil
}

// waitForCancellation polls the order's status up to cancelPollAttempts
// times, cancelPollInterval apart, bounded by ctx — a 5-second ceiling
// in total, never a bare sleep loop with no timeout.
func (m *Manager) waitForCancellation(ctx context.Context, orderID string) (bool, error) {
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for attempt := 0; attempt < m.pollAttempts; attempt++ {
		updated, err := m.store.GetOrder(ctx, orderID)
		if err != nil {
			return false, err
		}
		if updated.Status == models.OrderStatusCanceled {
			return true, nil
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-ticker.C:
		}
	}
	return false, nil
}

// internalizeTrade crosses incoming against resting for
// min(incoming.Quantity, resting.Quantity), updating both orders and
// both positions inside one Store transaction, then emits execution
// reports and routes any residual quantity back out.
func (m *Manager) internalizeTrade(ctx context.Context, incoming, resting models.Order, incomingSessionID string) error {
	executionQuantity := decimal.Min(incoming.Quantity, resting.Quantity)

	err := m.store.WithTransaction(ctx, func(ctx context.Context, tx store.Store) error {
		if err := tx.UpdateOrderStatus(ctx, incoming.OrderID, models.OrderStatusFilled, &executionQuantity, ptr(models.LiquidityInternalized)); err != nil {
			return err
		}
		if err := tx.UpdateOrderStatus(ctx, resting.OrderID, models.OrderStatusFilled, &executionQuantity, ptr(models.LiquidityInternalized)); err != nil {
			return err
		}

		incomingDelta := executionQuantity
		if incoming.Side == models.Sell {
			incomingDelta = executionQuantity.Neg()
		}
		if err := tx.UpdatePosition(ctx, incoming.AccountID, incomingSessionID, incoming.Ticker, incomingDelta, incoming.Price); err != nil {
			return err
		}

		restingDelta := executionQuantity
		if resting.Side == models.Sell {
			restingDelta = executionQuantity.Neg()
		}
		if err := tx.UpdatePosition(ctx, resting.AccountID, resting.SessionID, resting.Ticker, restingDelta, resting.Price); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	m.logger.LogInternalization(resting.OrderID, incoming.OrderID, incoming.Ticker, executionQuantity.InexactFloat64())

	if err := m.gateway.SendExecutionReport(ctx, incoming, incomingSessionID, incoming.Price, executionQuantity, models.LiquidityInternalized); err != nil {
		m.logger.LogDependencyFailure("fixadapter", "SendExecutionReport", err)
	}
	if err := m.gateway.SendExecutionReport(ctx, resting, resting.SessionID, resting.Price, executionQuantity, models.LiquidityInternalized); err != nil {
		m.logger.LogDependencyFailure("fixadapter", "SendExecutionReport", err)
	}

	return m.handleResidualQuantities(ctx, incoming, resting, executionQuantity, incomingSessionID)
}

// handleResidualQuantities re-routes whichever side still has quantity
// left after the cross back out to the market.
func (m *Manager) handleResidualQuantities(ctx context.Context, incoming, resting models.Order, executed decimal.Decimal, incomingSessionID string) error {
	incomingRemaining := incoming.Quantity.Sub(executed)
	restingRemaining := resting.Quantity.Sub(executed)

	if incomingRemaining.IsPositive() {
		if err := m.store.UpdateOrderQuantity(ctx, incoming.OrderID, incomingRemaining); err != nil {
			m.logger.LogDependencyFailure("store", "UpdateOrderQuantity", err)
		} else {
			incoming.Quantity = incomingRemaining
			incoming.FilledQuantity = decimal.Zero
			incoming.Status = models.OrderStatusNew
			if err := m.sendOrderToMarket(ctx, incoming, incomingSessionID); err != nil {
				return err
			}
		}
	}
	if restingRemaining.IsPositive() {
		if err := m.store.UpdateOrderQuantity(ctx, resting.OrderID, restingRemaining); err != nil {
			m.logger.LogDependencyFailure("store", "UpdateOrderQuantity", err)
		} else {
			resting.Quantity = restingRemaining
			resting.FilledQuantity = decimal.Zero
			resting.Status = models.OrderStatusNew
			if err := m.sendOrderToMarket(ctx, resting, resting.SessionID); err != nil {
				return err
			}
		}
	}
	return nil
}

// sendOrderToMarket transmits order via FIX and marks it SENT_TO_MARKET.
func (m *Manager) sendOrderToMarket(ctx context.Context, order models.Order, sessionID string) error {
	if err := m.gateway.SendNewOrder(ctx, order, sessionID); err != nil {
		m.logger.LogDependencyFailure("fixadapter", "SendNewOrder", err)
		return err
	}
	if err := m.store.UpdateOrderStatus(ctx, order.OrderID, models.OrderStatusSentToMarket, nil, nil); err != nil {
		m.logger.LogDependencyFailure("store", "UpdateOrderStatus", err)
		return err
	}
	m.logger.LogOrderRouted(order.OrderID, sessionID, order.Ticker, order.Quantity.InexactFloat64())
	return nil
}

func ptr[T any](v T) *T { return &v }
