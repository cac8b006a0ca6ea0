package risk

import (
	"context"
	"testing"

	"github.com/kalshi-dcm-demo/backend/internal/models"
	"github.com/kalshi-dcm-demo/backend/internal/store"
)

// TestTradingMode_ShortSaleBlocked reproduces spec scenario 4: a SELL
// with no covering position is denied when short-selling isn't allowed,
// but the identical order is allowed once the account holds enough of
// the ticker to cover it.
func TestTradingMode_ShortSaleBlocked(t *testing.T) {
	mem := store.NewMemory()
	mem.SeedTradingPermission(models.TradingModeNormal, models.AssetEquity, models.TradingPermission{
		AllowBuy: true, AllowSell: true, AllowShort: false,
	})
	check := NewTradingMode(mem, fakeLogger{})
	account := models.Account{AccountID: "acct-1", TradingMode: models.TradingModeNormal}
	order := models.Order{Side: models.Sell, Ticker: "AAPL", AssetClass: models.AssetEquity, Quantity: decFromInt(10)}

	ok, _ := check.Check(context.Background(), order, account, "sess-1", models.RiskSettings{})
	if ok {
		t.Fatalf("expected deny: short sale with no covering position and AllowShort=false")
	}

	mem.SeedPosition(models.Position{AccountID: "acct-1", Ticker: "AAPL", Quantity: decFromInt(20)})
	ok, reason := check.Check(context.Background(), order, account, "sess-1", models.RiskSettings{})
	if !ok {
		t.Fatalf("expected allow once a sufficient covering position exists, got deny: %s", reason)
	}
}

func TestTradingMode_OptionsDisallowed(t *testing.T) {
	mem := store.NewMemory()
	mem.SeedTradingPermission(models.TradingModeNormal, models.AssetOption, models.TradingPermission{
		AllowBuy: true, AllowSell: true, AllowOptions: false,
	})
	check := NewTradingMode(mem, fakeLogger{})
	account := models.Account{AccountID: "acct-1", TradingMode: models.TradingModeNormal}
	order := models.Order{Side: models.Buy, Ticker: "AAPL240119C00100000", AssetClass: models.AssetOption, Quantity: decFromInt(1)}

	ok, _ := check.Check(context.Background(), order, account, "sess-1", models.RiskSettings{})
	if ok {
		t.Fatalf("expected deny: options trading not permitted for this mode")
	}
}

func TestTradingMode_MissingPermissionDenies(t *testing.T) {
	mem := store.NewMemory()
	check := NewTradingMode(mem, fakeLogger{})
	order := models.Order{Side: models.Buy, AssetClass: models.AssetEquity, Quantity: decFromInt(1)}
	ok, _ := check.Check(context.Background(), order, models.Account{AccountID: "acct-1"}, "sess-1", models.RiskSettings{})
	if ok {
		t.Fatalf("expected deny when no TradingPermission row exists")
	}
}
