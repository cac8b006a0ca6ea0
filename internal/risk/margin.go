package risk

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/kalshi-dcm-demo/backend/internal/models"
	"github.com/kalshi-dcm-demo/backend/internal/obslog"
	"github.com/kalshi-dcm-demo/backend/internal/store"
)

// Margin computes the required margin for an order against the
// account's available balances, with an instrument-level override
// falling back to a (asset class, account type) default, and an offset
// for vertical option spreads.
type Margin struct {
	store  store.Store
	logger obslog.Logger
}

func NewMargin(s store.Store, logger obslog.Logger) *Margin {
	return &Margin{store: s, logger: logger}
}

func (m *Margin) Name() string { return "Margin" }

func (m *Margin) Check(ctx context.Context, order models.Order, account models.Account, _ string, _ models.RiskSettings) (bool, string) {
	// Spreads are margined entirely by checkSpreadMargin's net-of-offset
	// calculation (spec §4.4); the parent SPREAD order carries no
	// standalone price/quantity margin requirement of its own.
	if order.OrderType == models.OrderTypeSpread {
		return m.checkSpreadMargin(ctx, order, account)
	}

	rates, err := m.store.GetMarginRequirement(ctx, order.AssetClass, account.AccountType, order.Ticker)
	if err != nil {
		m.logger.LogDependencyFailure("store", "GetMarginRequirement", err)
		return false, fmt.Sprintf("Margin rates not defined for asset class %s and account type %s", order.AssetClass, account.AccountType)
	}

	orderValue, ok := m.orderValue(ctx, order)
	if !ok {
		return false, "Failed to calculate order value"
	}

	requiredMargin := orderValue.Mul(rates.InitialMarginRate)
	return m.sufficientBalance(account, requiredMargin)
}

func (m *Margin) sufficientBalance(account models.Account, required decimal.Decimal) (bool, string) {
	switch account.AccountType {
	case models.AccountCash:
		if required.GreaterThan(account.CashBalance) {
			return false, "Insufficient cash balance for the order"
		}
	case models.AccountMargin, models.AccountDayTradingMargin:
		available := account.CashBalance.Add(account.MarginBalance)
		if required.GreaterThan(available) {
			return false, "Insufficient margin balance for the order"
		}
	case models.AccountPortfolioMargin:
		if required.GreaterThan(account.PortfolioMarginAvailable) {
			return false, "Insufficient portfolio margin available"
		}
	default:
		return false, fmt.Sprintf("Unknown account type: %s", account.AccountType)
	}
	return true, ""
}

// orderValue is price*quantity, scaled by contract size for
// options/futures.
func (m *Margin) orderValue(ctx context.Context, order models.Order) (decimal.Decimal, bool) {
	if order.AssetClass == models.AssetOption || order.AssetClass == models.AssetFuture {
		instrument, err := m.store.GetInstrument(ctx, order.Ticker)
		if err != nil || instrument.ContractSize == nil {
			return decimal.Zero, false
		}
		return order.Price.Mul(order.Quantity).Mul(decimal.NewFromInt(int64(*instrument.ContractSize))), true
	}
	return order.Price.Mul(order.Quantity), true
}

// checkSpreadMargin sums each leg's required margin, subtracts the
// vertical-spread offset, and compares the net figure against available
// balance — mirroring the net-of-offset calculation the original
// prototype performs for two-leg option spreads.
func (m *Margin) checkSpreadMargin(ctx context.Context, order models.Order, account models.Account) (bool, string) {
	if len(order.Legs) < 2 {
		return false, "Invalid spread order: Less than two legs"
	}

	netRequired := decimal.Zero
	for _, leg := range order.Legs {
		rates, err := m.store.GetMarginRequirement(ctx, leg.AssetClass, account.AccountType, leg.Ticker)
		if err != nil {
			return false, fmt.Sprintf("Margin rates not defined for leg %s", leg.Ticker)
		}
		legValue, ok := m.orderValue(ctx, leg)
		if !ok {
			return false, fmt.Sprintf("Failed to calculate order value for leg %s", leg.Ticker)
		}
		netRequired = netRequired.Add(legValue.Mul(rates.InitialMarginRate))
	}

	// The vertical-spread offset only applies to a two-leg spread; a
	// butterfly/condor or other shape gets no offset (spec §4.4).
	offset := decimal.Zero
	if len(order.Legs) == 2 {
		offset = m.spreadMarginOffset(ctx, order.Legs[0], order.Legs[1])
	}
	totalRequired := netRequired.Sub(offset)
	if totalRequired.IsNegative() {
		totalRequired = decimal.Zero
	}

	available := account.CashBalance.Add(account.MarginBalance)
	if totalRequired.GreaterThan(available) {
		return false, "Insufficient margin balance for the spread order"
	}
	return true, ""
}

// spreadMarginOffset is |strike1-strike2| * contract_size * min(qty1, qty2)
// for a vertical option spread, using the first leg's contract size; it
// returns zero if either leg lacks a strike price or the first leg lacks
// a contract size.
func (m *Margin) spreadMarginOffset(ctx context.Context, leg1, leg2 models.Order) decimal.Decimal {
	instrument1, err := m.store.GetInstrument(ctx, leg1.Ticker)
	if err != nil || instrument1.StrikePrice == nil || instrument1.ContractSize == nil {
		return decimal.Zero
	}
	instrument2, err := m.store.GetInstrument(ctx, leg2.Ticker)
	if err != nil || instrument2.StrikePrice == nil {
		return decimal.Zero
	}

	spreadWidth := instrument1.StrikePrice.Sub(*instrument2.StrikePrice).Abs()
	quantity := decimal.Min(leg1.Quantity, leg2.Quantity)
	return spreadWidth.Mul(decimal.NewFromInt(int64(*instrument1.ContractSize))).Mul(quantity)
}
