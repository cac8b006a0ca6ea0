package risk

import (
	"context"
	"sync"

	"github.com/kalshi-dcm-demo/backend/internal/models"
	"github.com/kalshi-dcm-demo/backend/internal/obslog"
)

// Pipeline runs an ordered list of Plugins against an order and
// short-circuits on the first deny, so later plugins never see an order
// that an earlier one already rejected. The order plugins are registered
// in is the order they run in. Sessions are processed concurrently (spec
// §5), so the counters below are mutex-guarded.
type Pipeline struct {
	plugins []Plugin
	logger  obslog.Logger

	countersMu sync.Mutex
	passCount  map[string]int
	denyCount  map[string]int
}

// NewPipeline builds a Pipeline from plugins in canonical order:
// MessageThrottling, TradingMode, CreditLimit, NotionalLimit, Margin,
// followed by any further plugins registered by name (e.g. the optional
// SurveillanceCheck).
func NewPipeline(logger obslog.Logger, plugins ...Plugin) *Pipeline {
	return &Pipeline{
		plugins:   plugins,
		logger:    logger,
		passCount: make(map[string]int),
		denyCount: make(map[string]int),
	}
}

// CheckOrder evaluates every plugin in order, returning on the first
// deny. An all-pass result returns (true, "").
func (p *Pipeline) CheckOrder(ctx context.Context, order models.Order, account models.Account, sessionID string, settings models.RiskSettings) (bool, string) {
	for _, plugin := range p.plugins {
		ok, reason := plugin.Check(ctx, order, account, sessionID, settings)
		p.countersMu.Lock()
		if !ok {
			p.denyCount[plugin.Name()]++
		} else {
			p.passCount[plugin.Name()]++
		}
		p.countersMu.Unlock()
		if !ok {
			p.logger.LogRiskDenial(plugin.Name(), order.OrderID, sessionID, reason)
			return false, reason
		}
	}
	return true, ""
}

// Counters returns a snapshot of per-plugin pass/deny counts, consumed
// by the ops pipeline-status endpoint.
func (p *Pipeline) Counters() map[string]struct{ Pass, Deny int } {
	p.countersMu.Lock()
	defer p.countersMu.Unlock()
	result := make(map[string]struct{ Pass, Deny int }, len(p.plugins))
	for _, plugin := range p.plugins {
		result[plugin.Name()] = struct{ Pass, Deny int }{
			Pass: p.passCount[plugin.Name()],
			Deny: p.denyCount[plugin.Name()],
		}
	}
	return result
}

// Names returns the configured plugin order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.plugins))
	for i, plugin := range p.plugins {
		names[i] = plugin.Name()
	}
	return names
}
