package risk

import (
	"context"
	"testing"

	"github.com/kalshi-dcm-demo/backend/internal/models"
	"github.com/kalshi-dcm-demo/backend/internal/store"
)

func TestNotionalLimit_OrderExceedsMax(t *testing.T) {
	mem := store.NewMemory()
	mem.SeedNotionalLimit("sess-1", models.AssetEquity, models.NotionalLimit{MaxOrderNotional: decPtr(decFromInt(1000))})
	md := newFakeMarketData(nil)
	check := NewNotionalLimit(mem, md, fakeLogger{})

	order := models.Order{AssetClass: models.AssetEquity, Ticker: "AAPL", Price: decFromInt(100), Quantity: decFromInt(20)}
	account := models.Account{AccountID: "acct-1"}

	ok, _ := check.Check(context.Background(), order, account, "sess-1", models.RiskSettings{})
	if ok {
		t.Fatalf("expected deny: order notional 2000 exceeds max 1000")
	}
}

func TestNotionalLimit_TotalIncludesExistingPositions(t *testing.T) {
	mem := store.NewMemory()
	mem.SeedNotionalLimit("sess-1", models.AssetEquity, models.NotionalLimit{MaxTotalNotional: decPtr(decFromInt(5000))})
	mem.SeedPosition(models.Position{AccountID: "acct-1", Ticker: "MSFT", Quantity: decFromInt(30), AssetClass: models.AssetEquity})
	md := newFakeMarketData(map[string]float64{"MSFT": 100})
	check := NewNotionalLimit(mem, md, fakeLogger{})

	order := models.Order{AssetClass: models.AssetEquity, Ticker: "AAPL", Price: decFromInt(100), Quantity: decFromInt(30)}
	account := models.Account{AccountID: "acct-1"}

	// existing 30*100=3000 + order 30*100=3000 = 6000 > 5000
	ok, _ := check.Check(context.Background(), order, account, "sess-1", models.RiskSettings{})
	if ok {
		t.Fatalf("expected deny: total notional 6000 exceeds max 5000")
	}
}

func TestNotionalLimit_NoLimitRowDenies(t *testing.T) {
	mem := store.NewMemory()
	md := newFakeMarketData(nil)
	check := NewNotionalLimit(mem, md, fakeLogger{})

	order := models.Order{AssetClass: models.AssetEquity, Ticker: "AAPL", Price: decFromInt(1), Quantity: decFromInt(1)}
	ok, _ := check.Check(context.Background(), order, models.Account{AccountID: "acct-1"}, "sess-1", models.RiskSettings{})
	if ok {
		t.Fatalf("expected deny when no notional limit row exists for (session, asset class)")
	}
}

func TestNotionalLimit_UnboundedWhenNil(t *testing.T) {
	mem := store.NewMemory()
	mem.SeedNotionalLimit("sess-1", models.AssetEquity, models.NotionalLimit{})
	md := newFakeMarketData(nil)
	check := NewNotionalLimit(mem, md, fakeLogger{})

	order := models.Order{AssetClass: models.AssetEquity, Ticker: "AAPL", Price: decFromInt(1_000_000), Quantity: decFromInt(1_000_000)}
	ok, reason := check.Check(context.Background(), order, models.Account{AccountID: "acct-1"}, "sess-1", models.RiskSettings{})
	if !ok {
		t.Fatalf("expected allow when both bounds are nil, got deny: %s", reason)
	}
}
