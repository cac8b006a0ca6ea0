package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kalshi-dcm-demo/backend/internal/models"
)

// Memory is a thread-safe in-memory Store, adapted from the demo's
// sharded-map mock store. It is the implementation wired into
// cmd/gateway for local runs and into every test in this module; a
// production deployment would swap in a relational-backed Store without
// any caller needing to change.
type Memory struct {
	accountsMu sync.RWMutex
	accounts   map[string]models.Account

	riskSettingsMu sync.RWMutex
	riskSettings   map[string]models.RiskSettings

	positionsMu sync.RWMutex
	// positions is keyed by accountID, each holding one entry per ticker.
	positions map[string]map[string]models.Position

	ordersMu     sync.RWMutex
	orders       map[string]*models.Order
	ordersByAcct map[string][]string

	marginMu sync.RWMutex
	// margin requirements keyed first by instrument id (override), falling
	// back to (assetClass, accountType).
	marginByInstrument map[string]models.MarginRequirement
	marginByClassType  map[marginKey]models.MarginRequirement

	notionalMu sync.RWMutex
	notional   map[notionalKey]models.NotionalLimit

	permissionMu sync.RWMutex
	permission   map[permissionKey]models.TradingPermission

	instrumentMu sync.RWMutex
	instruments  map[string]models.Instrument

	haltMu sync.RWMutex
	halted map[string]struct {
		reason      string
		initiatedBy string
	}

	auditMu sync.RWMutex
	audit   []models.AuditEntry

	// txMu serializes WithTransaction calls. The in-memory store has no
	// real rollback log, so atomicity (spec §4.8.3) is achieved by holding
	// this lock for the duration of the transaction function instead: no
	// other reader or writer observes a partially-applied internalization.
	txMu sync.Mutex
}

type marginKey struct {
	assetClass  models.AssetClass
	accountType models.AccountType
}

type notionalKey struct {
	sessionID  string
	assetClass models.AssetClass
}

type permissionKey struct {
	tradingMode models.TradingMode
	assetClass  models.AssetClass
}

// NewMemory builds an empty in-memory store. Use the Seed* methods to
// load reference data (accounts, margin schedules, notional limits,
// trading permissions, instruments) before serving traffic.
func NewMemory() *Memory {
	return &Memory{
		accounts:           make(map[string]models.Account),
		riskSettings:       make(map[string]models.RiskSettings),
		positions:          make(map[string]map[string]models.Position),
		orders:             make(map[string]*models.Order),
		ordersByAcct:       make(map[string][]string),
		marginByInstrument: make(map[string]models.MarginRequirement),
		marginByClassType:  make(map[marginKey]models.MarginRequirement),
		notional:           make(map[notionalKey]models.NotionalLimit),
		permission:         make(map[permissionKey]models.TradingPermission),
		instruments:        make(map[string]models.Instrument),
		halted: make(map[string]struct {
			reason      string
			initiatedBy string
		}),
	}
}

// --- reference-data seeding, used by tests ---

func (m *Memory) SeedAccount(a models.Account) {
	m.accountsMu.Lock()
	defer m.accountsMu.Unlock()
	m.accounts[a.AccountID] = a
}

func (m *Memory) SeedRiskSettings(r models.RiskSettings) {
	m.riskSettingsMu.Lock()
	defer m.riskSettingsMu.Unlock()
	m.riskSettings[r.SessionID] = r
}

func (m *Memory) SeedPosition(p models.Position) {
	m.positionsMu.Lock()
	defer m.positionsMu.Unlock()
	byTicker, ok := m.positions[p.AccountID]
	if !ok {
		byTicker = make(map[string]models.Position)
		m.positions[p.AccountID] = byTicker
	}
	byTicker[p.Ticker] = p
}

func (m *Memory) SeedMarginRequirementForInstrument(instrumentID string, req models.MarginRequirement) {
	m.marginMu.Lock()
	defer m.marginMu.Unlock()
	m.marginByInstrument[instrumentID] = req
}

func (m *Memory) SeedMarginRequirement(assetClass models.AssetClass, accountType models.AccountType, req models.MarginRequirement) {
	m.marginMu.Lock()
	defer m.marginMu.Unlock()
	m.marginByClassType[marginKey{assetClass, accountType}] = req
}

func (m *Memory) SeedNotionalLimit(sessionID string, assetClass models.AssetClass, limit models.NotionalLimit) {
	m.notionalMu.Lock()
	defer m.notionalMu.Unlock()
	m.notional[notionalKey{sessionID, assetClass}] = limit
}

func (m *Memory) SeedTradingPermission(mode models.TradingMode, assetClass models.AssetClass, perm models.TradingPermission) {
	m.permissionMu.Lock()
	defer m.permissionMu.Unlock()
	m.permission[permissionKey{mode, assetClass}] = perm
}

func (m *Memory) SeedInstrument(i models.Instrument) {
	m.instrumentMu.Lock()
	defer m.instrumentMu.Unlock()
	m.instruments[i.Ticker] = i
}

// --- Store interface ---

func (m *Memory) GetAccount(_ context.Context, accountID string) (models.Account, error) {
	m.accountsMu.RLock()
	defer m.accountsMu.RUnlock()
	a, ok := m.accounts[accountID]
	if !ok {
		return models.Account{}, ErrAccountNotFound
	}
	return a, nil
}

func (m *Memory) GetRiskSettings(_ context.Context, sessionID string) (models.RiskSettings, error) {
	m.riskSettingsMu.RLock()
	defer m.riskSettingsMu.RUnlock()
	r, ok := m.riskSettings[sessionID]
	if !ok {
		return models.RiskSettings{}, ErrRiskSettingsNotFound
	}
	return r, nil
}

func (m *Memory) GetPositions(_ context.Context, accountID string) ([]models.Position, error) {
	m.positionsMu.RLock()
	defer m.positionsMu.RUnlock()
	byTicker := m.positions[accountID]
	result := make([]models.Position, 0, len(byTicker))
	for _, p := range byTicker {
		result = append(result, p)
	}
	return result, nil
}

// UpdatePosition applies a signed quantity delta at price, recomputing the
// average price on increases to the same side and leaving it unchanged on
// reductions, matching the teacher's cost-basis bookkeeping.
func (m *Memory) UpdatePosition(_ context.Context, accountID, sessionID, ticker string, deltaQuantity, price decimal.Decimal) error {
	_ = sessionID
	m.positionsMu.Lock()
	defer m.positionsMu.Unlock()

	byTicker, ok := m.positions[accountID]
	if !ok {
		byTicker = make(map[string]models.Position)
		m.positions[accountID] = byTicker
	}
	pos, exists := byTicker[ticker]
	if !exists {
		byTicker[ticker] = models.Position{
			AccountID:    accountID,
			Ticker:       ticker,
			Quantity:     deltaQuantity,
			AveragePrice: price,
		}
		return nil
	}

	newQty := pos.Quantity.Add(deltaQuantity)
	sameDirection := pos.Quantity.Sign() == 0 || pos.Quantity.Sign() == deltaQuantity.Sign()
	if sameDirection && !newQty.IsZero() {
		oldNotional := pos.Quantity.Abs().Mul(pos.AveragePrice)
		addedNotional := deltaQuantity.Abs().Mul(price)
		pos.AveragePrice = oldNotional.Add(addedNotional).Div(newQty.Abs())
	} else if newQty.IsZero() {
		pos.AveragePrice = decimal.Zero
	}
	pos.Quantity = newQty
	byTicker[ticker] = pos
	return nil
}

func (m *Memory) CreateOrder(_ context.Context, order models.Order) error {
	m.ordersMu.Lock()
	defer m.ordersMu.Unlock()
	if order.OrderID == "" {
		order.OrderID = uuid.NewString()
	}
	cp := order
	m.orders[cp.OrderID] = &cp
	m.ordersByAcct[cp.AccountID] = append(m.ordersByAcct[cp.AccountID], cp.OrderID)
	return nil
}

// GetOpenOrders returns resting orders eligible for internalization: same
// account, ticker and price, opposite side implied by the caller, and a
// status of SENT_TO_MARKET or PARTIALLY_FILLED (NEW and terminal orders
// are excluded).
func (m *Memory) GetOpenOrders(_ context.Context, accountID, ticker string, side models.Side, price decimal.Decimal) ([]models.Order, error) {
	m.ordersMu.RLock()
	defer m.ordersMu.RUnlock()

	var result []models.Order
	for _, id := range m.ordersByAcct[accountID] {
		o := m.orders[id]
		if o == nil {
			continue
		}
		if o.Ticker != ticker || o.Side != side || !o.Price.Equal(price) {
			continue
		}
		if o.Status != models.OrderStatusSentToMarket && o.Status != models.OrderStatusPartiallyFilled {
			continue
		}
		result = append(result, *o)
	}
	return result, nil
}

// GetRecentOrders returns orders for accountID/ticker with UpdatedAt at
// or after since, regardless of status.
func (m *Memory) GetRecentOrders(_ context.Context, accountID, ticker string, since time.Time) ([]models.Order, error) {
	m.ordersMu.RLock()
	defer m.ordersMu.RUnlock()

	var result []models.Order
	for _, id := range m.ordersByAcct[accountID] {
		o := m.orders[id]
		if o == nil || o.Ticker != ticker {
			continue
		}
		if o.UpdatedAt.Before(since) {
			continue
		}
		result = append(result, *o)
	}
	return result, nil
}

func (m *Memory) GetOrder(_ context.Context, orderID string) (models.Order, error) {
	m.ordersMu.RLock()
	defer m.ordersMu.RUnlock()
	o, ok := m.orders[orderID]
	if !ok {
		return models.Order{}, ErrOrderNotFound
	}
	return *o, nil
}

func (m *Memory) UpdateOrderStatus(_ context.Context, orderID string, status models.OrderStatus, filledQuantityDelta *decimal.Decimal, liquidityTag *models.LiquidityTag) error {
	m.ordersMu.Lock()
	defer m.ordersMu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	o.Status = status
	if filledQuantityDelta != nil {
		o.FilledQuantity = o.FilledQuantity.Add(*filledQuantityDelta)
	}
	if liquidityTag != nil {
		o.LiquidityTag = *liquidityTag
	}
	o.UpdatedAt = time.Now()
	return nil
}

func (m *Memory) UpdateOrderQuantity(_ context.Context, orderID string, quantity decimal.Decimal) error {
	m.ordersMu.Lock()
	defer m.ordersMu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	o.Quantity = quantity
	o.FilledQuantity = decimal.Zero
	o.LiquidityTag = ""
	o.UpdatedAt = time.Now()
	return nil
}

func (m *Memory) GetMarginRequirement(_ context.Context, assetClass models.AssetClass, accountType models.AccountType, instrumentID string) (models.MarginRequirement, error) {
	m.marginMu.RLock()
	defer m.marginMu.RUnlock()
	if instrumentID != "" {
		if req, ok := m.marginByInstrument[instrumentID]; ok {
			return req, nil
		}
	}
	req, ok := m.marginByClassType[marginKey{assetClass, accountType}]
	if !ok {
		return models.MarginRequirement{}, ErrMarginRequirementNotFound
	}
	return req, nil
}

func (m *Memory) GetNotionalLimit(_ context.Context, sessionID string, assetClass models.AssetClass) (models.NotionalLimit, error) {
	m.notionalMu.RLock()
	defer m.notionalMu.RUnlock()
	limit, ok := m.notional[notionalKey{sessionID, assetClass}]
	if !ok {
		return models.NotionalLimit{}, ErrNotionalLimitNotFound
	}
	return limit, nil
}

func (m *Memory) GetTradingPermission(_ context.Context, tradingMode models.TradingMode, assetClass models.AssetClass) (models.TradingPermission, error) {
	m.permissionMu.RLock()
	defer m.permissionMu.RUnlock()
	perm, ok := m.permission[permissionKey{tradingMode, assetClass}]
	if !ok {
		return models.TradingPermission{}, ErrTradingPermissionNotFound
	}
	return perm, nil
}

func (m *Memory) GetInstrument(_ context.Context, ticker string) (models.Instrument, error) {
	m.instrumentMu.RLock()
	defer m.instrumentMu.RUnlock()
	i, ok := m.instruments[ticker]
	if !ok {
		return models.Instrument{}, ErrInstrumentNotFound
	}
	return i, nil
}

func (m *Memory) IsTradingHalted(ticker string) bool {
	m.haltMu.RLock()
	defer m.haltMu.RUnlock()
	if _, ok := m.halted["GLOBAL"]; ok {
		return true
	}
	_, ok := m.halted[ticker]
	return ok
}

func (m *Memory) HaltTrading(ticker, reason, initiatedBy string) error {
	m.haltMu.Lock()
	defer m.haltMu.Unlock()
	key := ticker
	if key == "" {
		key = "GLOBAL"
	}
	m.halted[key] = struct {
		reason      string
		initiatedBy string
	}{reason, initiatedBy}
	return nil
}

func (m *Memory) ResumeTrading(ticker string) error {
	m.haltMu.Lock()
	defer m.haltMu.Unlock()
	key := ticker
	if key == "" {
		key = "GLOBAL"
	}
	delete(m.halted, key)
	return nil
}

func (m *Memory) LogAudit(_ context.Context, entry models.AuditEntry) error {
	m.auditMu.Lock()
	defer m.auditMu.Unlock()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	m.audit = append(m.audit, entry)
	return nil
}

func (m *Memory) GetAuditLog(_ context.Context, since time.Time, limit int) ([]models.AuditEntry, error) {
	m.auditMu.RLock()
	defer m.auditMu.RUnlock()
	var result []models.AuditEntry
	for i := len(m.audit) - 1; i >= 0 && len(result) < limit; i-- {
		e := m.audit[i]
		if e.Timestamp.Before(since) {
			continue
		}
		result = append(result, e)
	}
	return result, nil
}

// WithTransaction runs fn with exclusive access to this store. The
// in-memory backend has no undo log, so every write inside fn is
// expected to succeed once validated by the caller (the order manager
// validates the cancel confirmation before entering the transaction);
// fn returning an error simply propagates without partial writes having
// become visible to other callers, since txMu was held throughout.
func (m *Memory) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return fn(ctx, m)
}

// SnapshotAccounts, SnapshotPositions, and SnapshotOrders return copies
// of the store's current state for the persistence package's autosave
// loop. They take the same read locks as the ordinary accessors rather
// than a single store-wide lock, so a snapshot may interleave with
// concurrent writers; that's acceptable for a periodic recovery
// snapshot, unlike WithTransaction's all-or-nothing guarantee.
func (m *Memory) SnapshotAccounts() map[string]models.Account {
	m.accountsMu.RLock()
	defer m.accountsMu.RUnlock()
	out := make(map[string]models.Account, len(m.accounts))
	for k, v := range m.accounts {
		out[k] = v
	}
	return out
}

func (m *Memory) SnapshotPositions() map[string]map[string]models.Position {
	m.positionsMu.RLock()
	defer m.positionsMu.RUnlock()
	out := make(map[string]map[string]models.Position, len(m.positions))
	for acct, byTicker := range m.positions {
		inner := make(map[string]models.Position, len(byTicker))
		for ticker, pos := range byTicker {
			inner[ticker] = pos
		}
		out[acct] = inner
	}
	return out
}

func (m *Memory) SnapshotOrders() map[string]models.Order {
	m.ordersMu.RLock()
	defer m.ordersMu.RUnlock()
	out := make(map[string]models.Order, len(m.orders))
	for k, v := range m.orders {
		out[k] = *v
	}
	return out
}
