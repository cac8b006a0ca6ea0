package risk

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/kalshi-dcm-demo/backend/internal/marketdata"
	"github.com/kalshi-dcm-demo/backend/internal/models"
	"github.com/kalshi-dcm-demo/backend/internal/obslog"
	"github.com/kalshi-dcm-demo/backend/internal/store"
)

// NotionalLimit enforces a per-order and a total (existing positions +
// new order) notional ceiling, keyed by (session, asset class).
type NotionalLimit struct {
	store      store.Store
	marketData marketdata.Provider
	logger     obslog.Logger
}

func NewNotionalLimit(s store.Store, md marketdata.Provider, logger obslog.Logger) *NotionalLimit {
	return &NotionalLimit{store: s, marketData: md, logger: logger}
}

func (n *NotionalLimit) Name() string { return "NotionalLimit" }

func (n *NotionalLimit) Check(ctx context.Context, order models.Order, account models.Account, sessionID string, _ models.RiskSettings) (bool, string) {
	limit, err := n.store.GetNotionalLimit(ctx, sessionID, order.AssetClass)
	if err != nil {
		n.logger.LogDependencyFailure("store", "GetNotionalLimit", err)
		return false, fmt.Sprintf("Notional limits not set for asset class %s", order.AssetClass)
	}

	orderNotional, ok := n.orderNotional(ctx, order)
	if !ok {
		return false, "Failed to calculate order notional value"
	}

	if limit.MaxOrderNotional != nil && orderNotional.GreaterThan(*limit.MaxOrderNotional) {
		return false, fmt.Sprintf("Order notional value %s exceeds maximum allowed %s", orderNotional.String(), limit.MaxOrderNotional.String())
	}

	totalNotional, err := n.totalNotional(ctx, account.AccountID, orderNotional)
	if err != nil {
		n.logger.LogDependencyFailure("store", "GetPositions", err)
		return false, "Failed to calculate total notional value"
	}

	if limit.MaxTotalNotional != nil && totalNotional.GreaterThan(*limit.MaxTotalNotional) {
		return false, fmt.Sprintf("Total notional value %s exceeds maximum allowed %s", totalNotional.String(), limit.MaxTotalNotional.String())
	}

	return true, ""
}

// orderNotional computes price*quantity*contract_size for single-leg
// option/future orders, summing legs for spreads.
func (n *NotionalLimit) orderNotional(ctx context.Context, order models.Order) (decimal.Decimal, bool) {
	if order.OrderType == models.OrderTypeSpread {
		if len(order.Legs) < 2 {
			return decimal.Zero, false
		}
		total := decimal.Zero
		for _, leg := range order.Legs {
			legNotional, ok := n.legNotional(ctx, leg)
			if !ok {
				return decimal.Zero, false
			}
			total = total.Add(legNotional)
		}
		return total, true
	}
	return n.legNotional(ctx, order)
}

func (n *NotionalLimit) legNotional(ctx context.Context, order models.Order) (decimal.Decimal, bool) {
	if order.AssetClass == models.AssetOption || order.AssetClass == models.AssetFuture {
		instrument, err := n.store.GetInstrument(ctx, order.Ticker)
		if err != nil || instrument.ContractSize == nil {
			return decimal.Zero, false
		}
		return order.Price.Mul(order.Quantity).Mul(decimal.NewFromInt(int64(*instrument.ContractSize))), true
	}
	return order.Price.Mul(order.Quantity), true
}

func (n *NotionalLimit) totalNotional(ctx context.Context, accountID string, orderNotional decimal.Decimal) (decimal.Decimal, error) {
	positions, err := n.store.GetPositions(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}

	total := orderNotional
	for _, p := range positions {
		if p.IsFlat() {
			continue
		}
		price, err := n.marketData.LastTrade(ctx, p.Ticker)
		if err != nil {
			continue
		}
		notional := p.Quantity.Abs().Mul(price)
		if p.AssetClass == models.AssetOption || p.AssetClass == models.AssetFuture {
			instrument, err := n.store.GetInstrument(ctx, p.Ticker)
			if err == nil && instrument.ContractSize != nil {
				notional = notional.Mul(decimal.NewFromInt(int64(*instrument.ContractSize)))
			}
		}
		total = total.Add(notional)
	}
	return total, nil
}
