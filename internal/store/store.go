// Package store defines the persistence capability the risk pipeline and
// order manager depend on (spec §6's Store surface) and ships an
// in-memory implementation for tests and the demo binary. A real
// deployment swaps Memory for a relational-backed implementation without
// the core needing to change: callers only see this interface.
package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kalshi-dcm-demo/backend/internal/models"
)

// Store is the narrow read/write capability the core consumes. Every
// method is assumed transactional on its own; WithTransaction groups the
// four writes the internalization protocol (spec §4.8.1 step 5) needs
// into one logical commit.
type Store interface {
	GetAccount(ctx context.Context, accountID string) (models.Account, error)
	GetRiskSettings(ctx context.Context, sessionID string) (models.RiskSettings, error)

	GetPositions(ctx context.Context, accountID string) ([]models.Position, error)
	UpdatePosition(ctx context.Context, accountID, sessionID, ticker string, deltaQuantity, price decimal.Decimal) error

	CreateOrder(ctx context.Context, order models.Order) error
	GetOpenOrders(ctx context.Context, accountID, ticker string, side models.Side, price decimal.Decimal) ([]models.Order, error)
	// GetRecentOrders returns every order for accountID/ticker touched at or
	// after since, used by the SurveillanceCheck plugin's wash-trade window.
	GetRecentOrders(ctx context.Context, accountID, ticker string, since time.Time) ([]models.Order, error)
	GetOrder(ctx context.Context, orderID string) (models.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID string, status models.OrderStatus, filledQuantityDelta *decimal.Decimal, liquidityTag *models.LiquidityTag) error
	// UpdateOrderQuantity sets quantity as the order's new total and resets
	// FilledQuantity and LiquidityTag to zero/empty: it re-bases the order
	// for a fresh residual re-submission after a partial internalization
	// (spec §4.8.1 step 7), so filled_quantity <= quantity continues to
	// hold for the re-spawned remainder.
	UpdateOrderQuantity(ctx context.Context, orderID string, quantity decimal.Decimal) error

	GetMarginRequirement(ctx context.Context, assetClass models.AssetClass, accountType models.AccountType, instrumentID string) (models.MarginRequirement, error)
	GetNotionalLimit(ctx context.Context, sessionID string, assetClass models.AssetClass) (models.NotionalLimit, error)
	GetTradingPermission(ctx context.Context, tradingMode models.TradingMode, assetClass models.AssetClass) (models.TradingPermission, error)
	GetInstrument(ctx context.Context, ticker string) (models.Instrument, error)

	IsTradingHalted(ticker string) bool
	HaltTrading(ticker, reason, initiatedBy string) error
	ResumeTrading(ticker string) error

	LogAudit(ctx context.Context, entry models.AuditEntry) error
	GetAuditLog(ctx context.Context, since time.Time, limit int) ([]models.AuditEntry, error)

	// WithTransaction runs fn inside one logical transaction. If fn
	// returns an error, all writes performed through the passed Store
	// must be rolled back.
	WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}
