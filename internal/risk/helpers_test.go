package risk

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// fakeLogger discards everything; tests assert behavior through return
// values, not log output.
type fakeLogger struct{}

func (fakeLogger) Debug(string, map[string]interface{}) {}
func (fakeLogger) Info(string, map[string]interface{})  {}
func (fakeLogger) Warn(string, map[string]interface{})  {}
func (fakeLogger) Error(string, map[string]interface{}) {}
func (fakeLogger) LogRiskDenial(string, string, string, string) {}
func (fakeLogger) LogOrderRouted(string, string, string, float64) {}
func (fakeLogger) LogInternalization(string, string, string, float64) {}
func (fakeLogger) LogDependencyFailure(string, string, error) {}

// fakeMarketData serves fixed last-trade prices from a map; a ticker
// absent from the map reports a DependencyFailure, matching a real
// provider's behavior on an unknown symbol.
type fakeMarketData struct {
	prices map[string]decimal.Decimal
}

func newFakeMarketData(prices map[string]float64) *fakeMarketData {
	m := &fakeMarketData{prices: make(map[string]decimal.Decimal, len(prices))}
	for ticker, price := range prices {
		m.prices[ticker] = decimal.NewFromFloat(price)
	}
	return m
}

func (f *fakeMarketData) LastTrade(_ context.Context, ticker string) (decimal.Decimal, error) {
	price, ok := f.prices[ticker]
	if !ok {
		return decimal.Zero, errors.New("no quote for " + ticker)
	}
	return price, nil
}
