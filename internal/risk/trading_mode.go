package risk

import (
	"context"
	"fmt"

	"github.com/kalshi-dcm-demo/backend/internal/models"
	"github.com/kalshi-dcm-demo/backend/internal/obslog"
	"github.com/kalshi-dcm-demo/backend/internal/store"
)

// TradingMode denies orders that the account's trading mode and asset
// class do not permit, including implicit short-sale detection: a SELL
// that exceeds the account's existing long position in that ticker is
// treated as a short, which needs AllowShort.
type TradingMode struct {
	store  store.Store
	logger obslog.Logger
}

func NewTradingMode(s store.Store, logger obslog.Logger) *TradingMode {
	return &TradingMode{store: s, logger: logger}
}

func (t *TradingMode) Name() string { return "TradingMode" }

func (t *TradingMode) Check(ctx context.Context, order models.Order, account models.Account, _ string, _ models.RiskSettings) (bool, string) {
	perm, err := t.store.GetTradingPermission(ctx, account.TradingMode, order.AssetClass)
	if err != nil {
		t.logger.LogDependencyFailure("store", "GetTradingPermission", err)
		return false, fmt.Sprintf("Trading permissions not defined for mode %s and asset class %s", account.TradingMode, order.AssetClass)
	}

	if order.OrderType == models.OrderTypeSpread && !perm.AllowSpreads {
		return false, fmt.Sprintf("Trading not allowed for %s in mode %s with side %s", order.AssetClass, account.TradingMode, order.Side)
	}
	if order.AssetClass == models.AssetOption && !perm.AllowOptions {
		return false, fmt.Sprintf("Trading not allowed for %s in mode %s with side %s", order.AssetClass, account.TradingMode, order.Side)
	}
	if order.Side == models.Buy && !perm.AllowBuy {
		return false, fmt.Sprintf("Trading not allowed for %s in mode %s with side %s", order.AssetClass, account.TradingMode, order.Side)
	}
	if order.Side == models.Sell && !perm.AllowSell {
		return false, fmt.Sprintf("Trading not allowed for %s in mode %s with side %s", order.AssetClass, account.TradingMode, order.Side)
	}

	if order.Side == models.Sell && !perm.AllowShort {
		available, err := t.positionAvailable(ctx, order)
		if err != nil {
			t.logger.LogDependencyFailure("store", "GetPositions", err)
			return false, "Error in trading mode check"
		}
		if !available {
			return false, fmt.Sprintf("Trading not allowed for %s in mode %s with side %s", order.AssetClass, account.TradingMode, order.Side)
		}
	}

	return true, ""
}

// positionAvailable reports whether the account holds enough of the
// ticker to cover a SELL without it being a short sale.
func (t *TradingMode) positionAvailable(ctx context.Context, order models.Order) (bool, error) {
	positions, err := t.store.GetPositions(ctx, order.AccountID)
	if err != nil {
		return false, err
	}
	for _, p := range positions {
		if p.Ticker == order.Ticker {
			return p.Quantity.GreaterThanOrEqual(order.Quantity), nil
		}
	}
	return false, nil
}
