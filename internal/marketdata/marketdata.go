// Package marketdata provides the last-trade price lookups the
// credit-limit and notional-limit risk plugins need. The interface is kept
// narrow and independent of any one data vendor; the HTTP implementation
// here talks to a generic quote service over REST.
package marketdata

import (
	"context"

	"github.com/shopspring/decimal"
)

// Provider is the capability the risk pipeline consumes. A lookup failure
// (timeout, vendor error, unknown ticker) is a DependencyFailure per spec
// §7: callers must treat an error return as "mark unavailable", never as
// a zero price.
type Provider interface {
	LastTrade(ctx context.Context, ticker string) (decimal.Decimal, error)
}
