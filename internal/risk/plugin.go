// Package risk implements the pre-trade risk pipeline: an ordered chain
// of plugins that each get a veto over an incoming order before it is
// allowed to reach the order manager.
package risk

import (
	"context"

	"github.com/kalshi-dcm-demo/backend/internal/models"
)

// Plugin is the capability every risk check implements. Check must be
// pure with respect to its inputs except where a plugin's own contract
// says otherwise (MessageThrottling is the one stateful plugin in this
// package); it must never panic, and any internal error is converted to
// a deny with a generic reason rather than propagated.
type Plugin interface {
	// Name identifies the plugin in logs and in the configured order.
	Name() string
	// Check reports whether order is allowed. A false result must carry
	// a non-empty, human-readable reason.
	Check(ctx context.Context, order models.Order, account models.Account, sessionID string, settings models.RiskSettings) (bool, string)
}
