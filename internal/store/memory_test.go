package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kalshi-dcm-demo/backend/internal/models"
)

func TestUpdatePosition_AveragePriceOnSameDirectionIncrease(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	if err := mem.UpdatePosition(ctx, "acct-1", "sess-1", "AAPL", decimal.NewFromInt(10), decimal.NewFromInt(100)); err != nil {
		t.Fatalf("UpdatePosition: %v", err)
	}
	if err := mem.UpdatePosition(ctx, "acct-1", "sess-1", "AAPL", decimal.NewFromInt(10), decimal.NewFromInt(200)); err != nil {
		t.Fatalf("UpdatePosition: %v", err)
	}

	positions, err := mem.GetPositions(ctx, "acct-1")
	if err != nil {
		t.Fatalf("GetPositions: %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("expected one position, got %d", len(positions))
	}
	pos := positions[0]
	if !pos.Quantity.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("expected quantity 20, got %s", pos.Quantity)
	}
	// (10*100 + 10*200) / 20 = 150
	if !pos.AveragePrice.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("expected average price 150, got %s", pos.AveragePrice)
	}
}

func TestUpdatePosition_ReductionLeavesAveragePriceUnchanged(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()
	mem.SeedPosition(models.Position{AccountID: "acct-1", Ticker: "AAPL", Quantity: decimal.NewFromInt(10), AveragePrice: decimal.NewFromInt(100)})

	if err := mem.UpdatePosition(ctx, "acct-1", "sess-1", "AAPL", decimal.NewFromInt(-4), decimal.NewFromInt(500)); err != nil {
		t.Fatalf("UpdatePosition: %v", err)
	}

	positions, _ := mem.GetPositions(ctx, "acct-1")
	pos := positions[0]
	if !pos.Quantity.Equal(decimal.NewFromInt(6)) {
		t.Fatalf("expected quantity 6, got %s", pos.Quantity)
	}
	if !pos.AveragePrice.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("a reduction must not move the cost basis, got %s", pos.AveragePrice)
	}
}

func TestUpdatePosition_FlatteningZeroesAveragePrice(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()
	mem.SeedPosition(models.Position{AccountID: "acct-1", Ticker: "AAPL", Quantity: decimal.NewFromInt(10), AveragePrice: decimal.NewFromInt(100)})

	if err := mem.UpdatePosition(ctx, "acct-1", "sess-1", "AAPL", decimal.NewFromInt(-10), decimal.NewFromInt(500)); err != nil {
		t.Fatalf("UpdatePosition: %v", err)
	}

	positions, _ := mem.GetPositions(ctx, "acct-1")
	pos := positions[0]
	if !pos.Quantity.IsZero() {
		t.Fatalf("expected flat position, got %s", pos.Quantity)
	}
	if !pos.AveragePrice.IsZero() {
		t.Fatalf("expected average price reset to zero once flat, got %s", pos.AveragePrice)
	}
}

func TestUpdateOrderQuantity_ResetsFilledQuantityAndLiquidityTag(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()
	order := models.Order{OrderID: "order-1", AccountID: "acct-1", Ticker: "AAPL", Quantity: decimal.NewFromInt(100)}
	if err := mem.CreateOrder(ctx, order); err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	filled := decimal.NewFromInt(60)
	tag := models.LiquidityInternalized
	if err := mem.UpdateOrderStatus(ctx, "order-1", models.OrderStatusFilled, &filled, &tag); err != nil {
		t.Fatalf("UpdateOrderStatus: %v", err)
	}

	if err := mem.UpdateOrderQuantity(ctx, "order-1", decimal.NewFromInt(40)); err != nil {
		t.Fatalf("UpdateOrderQuantity: %v", err)
	}

	updated, err := mem.GetOrder(ctx, "order-1")
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if !updated.Quantity.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("expected quantity 40, got %s", updated.Quantity)
	}
	if !updated.FilledQuantity.IsZero() {
		t.Fatalf("expected FilledQuantity reset to zero for the residual re-submission, got %s", updated.FilledQuantity)
	}
	if updated.LiquidityTag != "" {
		t.Fatalf("expected LiquidityTag cleared for the residual re-submission, got %q", updated.LiquidityTag)
	}
	if updated.FilledQuantity.GreaterThan(updated.Quantity) {
		t.Fatalf("filled_quantity <= quantity invariant violated: %+v", updated)
	}
}

func TestWithTransaction_RollbackIsNotObservedOnError(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()
	mem.SeedAccount(models.Account{AccountID: "acct-1", CashBalance: decimal.NewFromInt(1000)})

	sentinel := errors.New("boom")
	err := mem.WithTransaction(ctx, func(ctx context.Context, tx Store) error {
		if err := tx.UpdatePosition(ctx, "acct-1", "sess-1", "AAPL", decimal.NewFromInt(10), decimal.NewFromInt(100)); err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected the transaction's error to propagate, got %v", err)
	}

	// The in-memory backend documents writes inside fn as visible once made
	// (no undo log); callers are expected to validate before entering the
	// transaction. What WithTransaction guarantees is exclusivity: no other
	// caller can interleave with an in-flight transaction.
	positions, _ := mem.GetPositions(ctx, "acct-1")
	if len(positions) != 1 {
		t.Fatalf("expected the write made before the error to be present, got %d positions", len(positions))
	}
}

func TestWithTransaction_SerializesConcurrentCallers(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})

	go func() {
		_ = mem.WithTransaction(ctx, func(ctx context.Context, tx Store) error {
			close(started)
			<-release
			return nil
		})
		close(done)
	}()

	<-started
	select {
	case <-done:
		t.Fatalf("first transaction should still be holding the lock")
	case <-time.After(20 * time.Millisecond):
	}

	secondDone := make(chan struct{})
	go func() {
		_ = mem.WithTransaction(ctx, func(ctx context.Context, tx Store) error { return nil })
		close(secondDone)
	}()

	select {
	case <-secondDone:
		t.Fatalf("second transaction must not proceed while the first holds txMu")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	<-done
	<-secondDone
}

func TestHaltTrading_PerTickerAndGlobal(t *testing.T) {
	mem := NewMemory()

	if mem.IsTradingHalted("AAPL") {
		t.Fatalf("expected trading not halted before any halt call")
	}

	if err := mem.HaltTrading("AAPL", "manual review", "ops-1"); err != nil {
		t.Fatalf("HaltTrading: %v", err)
	}
	if !mem.IsTradingHalted("AAPL") {
		t.Fatalf("expected AAPL halted")
	}
	if mem.IsTradingHalted("MSFT") {
		t.Fatalf("expected MSFT unaffected by a ticker-scoped halt")
	}

	if err := mem.ResumeTrading("AAPL"); err != nil {
		t.Fatalf("ResumeTrading: %v", err)
	}
	if mem.IsTradingHalted("AAPL") {
		t.Fatalf("expected AAPL resumed")
	}

	if err := mem.HaltTrading("", "market-wide circuit breaker", "ops-1"); err != nil {
		t.Fatalf("HaltTrading(global): %v", err)
	}
	if !mem.IsTradingHalted("AAPL") || !mem.IsTradingHalted("MSFT") {
		t.Fatalf("expected a global halt to cover every ticker")
	}
}

func TestAuditLog_NewestFirstWithinWindowAndLimit(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 3; i++ {
		entry := models.AuditEntry{
			Action:    models.AuditActionOrderRouted,
			Timestamp: now.Add(time.Duration(i) * time.Second),
		}
		if err := mem.LogAudit(ctx, entry); err != nil {
			t.Fatalf("LogAudit: %v", err)
		}
	}

	log, err := mem.GetAuditLog(ctx, now.Add(-time.Minute), 10)
	if err != nil {
		t.Fatalf("GetAuditLog: %v", err)
	}
	if len(log) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(log))
	}
	if !log[0].Timestamp.After(log[1].Timestamp) || !log[1].Timestamp.After(log[2].Timestamp) {
		t.Fatalf("expected newest-first ordering, got %+v", log)
	}

	limited, err := mem.GetAuditLog(ctx, now.Add(-time.Minute), 1)
	if err != nil {
		t.Fatalf("GetAuditLog: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected limit to cap results at 1, got %d", len(limited))
	}
}

func TestGetOpenOrders_FiltersBySideTickerPriceAndOpenStatus(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	open := models.Order{OrderID: "open-1", AccountID: "acct-1", Ticker: "AAPL", Side: models.Buy, Price: decimal.NewFromInt(50), Status: models.OrderStatusSentToMarket}
	wrongSide := models.Order{OrderID: "wrong-side", AccountID: "acct-1", Ticker: "AAPL", Side: models.Sell, Price: decimal.NewFromInt(50), Status: models.OrderStatusSentToMarket}
	wrongPrice := models.Order{OrderID: "wrong-price", AccountID: "acct-1", Ticker: "AAPL", Side: models.Buy, Price: decimal.NewFromInt(51), Status: models.OrderStatusSentToMarket}
	terminal := models.Order{OrderID: "terminal", AccountID: "acct-1", Ticker: "AAPL", Side: models.Buy, Price: decimal.NewFromInt(50), Status: models.OrderStatusFilled}

	for _, o := range []models.Order{open, wrongSide, wrongPrice, terminal} {
		if err := mem.CreateOrder(ctx, o); err != nil {
			t.Fatalf("CreateOrder(%s): %v", o.OrderID, err)
		}
	}

	results, err := mem.GetOpenOrders(ctx, "acct-1", "AAPL", models.Buy, decimal.NewFromInt(50))
	if err != nil {
		t.Fatalf("GetOpenOrders: %v", err)
	}
	if len(results) != 1 || results[0].OrderID != "open-1" {
		t.Fatalf("expected exactly [open-1], got %+v", results)
	}
}
