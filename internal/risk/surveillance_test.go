package risk

import (
	"context"
	"testing"
	"time"

	"github.com/kalshi-dcm-demo/backend/internal/models"
	"github.com/kalshi-dcm-demo/backend/internal/store"
)

func TestSurveillanceCheck_DeniesOpposingFillWithinWindow(t *testing.T) {
	mem := store.NewMemory()
	account := models.Account{AccountID: "acct-1"}
	order := models.Order{OrderID: "incoming", AccountID: "acct-1", Ticker: "AAPL", Side: models.Sell}

	if err := mem.CreateOrder(context.Background(), models.Order{
		OrderID: "resting", AccountID: "acct-1", Ticker: "AAPL", Side: models.Buy, Status: models.OrderStatusFilled, UpdatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	check := NewSurveillanceCheck(mem, fakeLogger{})
	ok, reason := check.Check(context.Background(), order, account, "sess-1", models.RiskSettings{})
	if ok {
		t.Fatalf("expected deny for an opposing filled order on the same ticker within the window")
	}
	if reason == "" {
		t.Fatalf("expected a non-empty reason")
	}
}

func TestSurveillanceCheck_AllowsOutsideWindow(t *testing.T) {
	mem := store.NewMemory()
	account := models.Account{AccountID: "acct-1"}
	order := models.Order{OrderID: "incoming", AccountID: "acct-1", Ticker: "AAPL", Side: models.Sell}

	check := NewSurveillanceCheck(mem, fakeLogger{})
	check.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	if err := mem.CreateOrder(context.Background(), models.Order{
		OrderID: "resting", AccountID: "acct-1", Ticker: "AAPL", Side: models.Buy, Status: models.OrderStatusFilled, UpdatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	ok, reason := check.Check(context.Background(), order, account, "sess-1", models.RiskSettings{})
	if !ok {
		t.Fatalf("expected allow once the opposing fill has aged out of the window, got deny: %s", reason)
	}
}

func TestSurveillanceCheck_IgnoresSameSideFills(t *testing.T) {
	mem := store.NewMemory()
	account := models.Account{AccountID: "acct-1"}
	order := models.Order{OrderID: "incoming", AccountID: "acct-1", Ticker: "AAPL", Side: models.Sell}

	if err := mem.CreateOrder(context.Background(), models.Order{
		OrderID: "resting", AccountID: "acct-1", Ticker: "AAPL", Side: models.Sell, Status: models.OrderStatusFilled, UpdatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	check := NewSurveillanceCheck(mem, fakeLogger{})
	ok, reason := check.Check(context.Background(), order, account, "sess-1", models.RiskSettings{})
	if !ok {
		t.Fatalf("expected allow: a same-side fill is not a wash-trade pattern, got deny: %s", reason)
	}
}
