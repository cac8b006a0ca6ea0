// Package models defines the data types shared across the risk gateway:
// orders, accounts, positions, and the reference tables the risk plugins
// consult. Optional fields are modeled as pointers so that "missing" and
// "zero" stay distinguishable, per the gateway's margin and notional math.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of an order.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// OrderType enumerates the order shapes the gateway understands.
type OrderType string

const (
	OrderTypeLimit  OrderType = "LIMIT"
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeSpread OrderType = "SPREAD"
)

// AssetClass distinguishes instruments that need a contract-size
// multiplier (options, futures) from flat equities.
type AssetClass string

const (
	AssetEquity AssetClass = "EQUITY"
	AssetOption AssetClass = "OPTION"
	AssetFuture AssetClass = "FUTURE"
)

// OrderStatus is the lifecycle state of an Order (spec §4.8.2).
type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "NEW"
	OrderStatusSentToMarket    OrderStatus = "SENT_TO_MARKET"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCanceled        OrderStatus = "CANCELED"
	OrderStatusRejected        OrderStatus = "REJECTED"
)

// LiquidityTag marks how a fill was obtained.
type LiquidityTag string

const (
	LiquidityInternalized LiquidityTag = "INTERNALIZED"
)

// AccountType determines which balances a MarginCheck compares against.
type AccountType string

const (
	AccountCash             AccountType = "CASH"
	AccountMargin           AccountType = "MARGIN"
	AccountDayTradingMargin AccountType = "DAY_TRADING_MARGIN"
	AccountPortfolioMargin  AccountType = "PORTFOLIO_MARGIN"
)

// TradingMode gates what an account is permitted to trade.
type TradingMode string

const (
	TradingModeNormal TradingMode = "NORMAL"
)

// Order is a value snapshot: once persisted, the Store owns the
// authoritative record. Copies held by the pipeline/order manager are
// read-only.
type Order struct {
	OrderID        string
	AccountID      string
	SessionID      string
	Ticker         string
	Side           Side
	OrderType      OrderType
	AssetClass     AssetClass
	Price          decimal.Decimal
	Quantity       decimal.Decimal
	FilledQuantity decimal.Decimal
	Status         OrderStatus
	LiquidityTag   LiquidityTag
	CreatedAt      time.Time
	UpdatedAt      time.Time

	// Legs is non-nil only when OrderType == OrderTypeSpread; each leg is
	// an Order-shaped record carrying its own ticker/side/quantity/price/
	// asset class.
	Legs []Order
}

// Remaining is the unfilled quantity.
func (o Order) Remaining() decimal.Decimal {
	return o.Quantity.Sub(o.FilledQuantity)
}

// Account holds the balances risk plugins compare required margin/credit
// against.
type Account struct {
	AccountID                string
	AccountType              AccountType
	TradingMode              TradingMode
	CashBalance              decimal.Decimal
	MarginBalance            decimal.Decimal
	PortfolioMarginAvailable decimal.Decimal
	InternalizationEnabled   bool
}

// Position is a signed holding; Quantity < 0 means short. A position with
// Quantity == 0 is treated as absent for availability checks.
type Position struct {
	AccountID    string
	Ticker       string
	Quantity     decimal.Decimal
	AveragePrice decimal.Decimal
	AssetClass   AssetClass
}

// IsFlat reports whether the position should be treated as absent.
func (p Position) IsFlat() bool {
	return p.Quantity.IsZero()
}

// RiskSettings are per-session configuration. Recognized keys are
// promoted to fields; MaxMessagesPerSecond defaults to 100 when unset
// (represented by nil, not zero).
type RiskSettings struct {
	SessionID            string
	MaxPositionValue     *decimal.Decimal
	MaxMessagesPerSecond *int
}

// EffectiveMaxMessagesPerSecond applies the spec's default of 100.
func (r RiskSettings) EffectiveMaxMessagesPerSecond() int {
	if r.MaxMessagesPerSecond == nil {
		return 100
	}
	return *r.MaxMessagesPerSecond
}

// MarginRequirement is keyed by (AssetClass, AccountType), with
// per-instrument overrides keyed by instrument id handled at the Store
// layer (GetMarginRequirement takes an optional instrument id).
type MarginRequirement struct {
	InitialMarginRate     decimal.Decimal
	MaintenanceMarginRate decimal.Decimal
}

// NotionalLimit is keyed by (SessionID, AssetClass). Either bound may be
// nil, meaning unbounded in that direction.
type NotionalLimit struct {
	MaxOrderNotional *decimal.Decimal
	MaxTotalNotional *decimal.Decimal
}

// TradingPermission is keyed by (TradingMode, AssetClass).
type TradingPermission struct {
	AllowBuy     bool
	AllowSell    bool
	AllowShort   bool
	AllowOptions bool
	AllowSpreads bool
}

// Instrument carries reference data needed by margin/notional math.
type Instrument struct {
	Ticker       string
	AssetClass   AssetClass
	ContractSize *int
	StrikePrice  *decimal.Decimal
}

// AuditAction names the kind of event an AuditEntry records.
type AuditAction string

const (
	AuditActionOrderDenied       AuditAction = "order_denied"
	AuditActionOrderRouted       AuditAction = "order_routed"
	AuditActionOrderInternalized AuditAction = "order_internalized"
	AuditActionHalt              AuditAction = "halt"
	AuditActionResume            AuditAction = "resume"
)

// AuditEntry is an immutable compliance record, adapted from the
// teacher's recordkeeping model.
type AuditEntry struct {
	ID        string
	Timestamp time.Time
	AccountID string
	SessionID string
	Action    AuditAction
	EntityID  string
	Detail    string
}
