package risk

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/kalshi-dcm-demo/backend/internal/marketdata"
	"github.com/kalshi-dcm-demo/backend/internal/models"
	"github.com/kalshi-dcm-demo/backend/internal/obslog"
	"github.com/kalshi-dcm-demo/backend/internal/store"
)

// CreditLimit compares the account's existing position value plus the
// new order's value against the session's configured max position
// value. Position value always comes from MarketData, never a
// hard-coded price.
type CreditLimit struct {
	store      store.Store
	marketData marketdata.Provider
	logger     obslog.Logger
}

func NewCreditLimit(s store.Store, md marketdata.Provider, logger obslog.Logger) *CreditLimit {
	return &CreditLimit{store: s, marketData: md, logger: logger}
}

func (c *CreditLimit) Name() string { return "CreditLimit" }

func (c *CreditLimit) Check(ctx context.Context, order models.Order, account models.Account, _ string, settings models.RiskSettings) (bool, string) {
	if settings.MaxPositionValue == nil {
		return false, "Credit limit not set for session."
	}

	positions, err := c.store.GetPositions(ctx, account.AccountID)
	if err != nil {
		c.logger.LogDependencyFailure("store", "GetPositions", err)
		return false, "Error in credit limit check."
	}

	total := decimal.Zero
	for _, p := range positions {
		price, err := c.marketData.LastTrade(ctx, p.Ticker)
		if err != nil {
			c.logger.LogDependencyFailure("marketdata", "LastTrade", err)
			return false, "Error in credit limit check."
		}
		total = total.Add(p.Quantity.Mul(price))
	}

	orderValue := order.Quantity.Mul(order.Price)
	if total.Add(orderValue).GreaterThan(*settings.MaxPositionValue) {
		return false, "Credit limit exceeded."
	}
	return true, ""
}
