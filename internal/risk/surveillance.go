package risk

import (
	"context"
	"time"

	"github.com/kalshi-dcm-demo/backend/internal/models"
	"github.com/kalshi-dcm-demo/backend/internal/obslog"
	"github.com/kalshi-dcm-demo/backend/internal/store"
)

// SurveillanceCheck is a post-hoc pattern check rather than a hard
// capital-adequacy gate: it denies an order when the same account has a
// terminal order on the opposite side of the same ticker that filled
// within the wash-trade window, adapted from a wash-trading detector
// that paired opposing fills on a single ticker inside a short window.
// It is off by default and must be explicitly added to the configured
// plugin list.
type SurveillanceCheck struct {
	store  store.Store
	logger obslog.Logger
	window time.Duration
	now    func() time.Time
}

// NewSurveillanceCheck builds the plugin with the standard 60-second
// wash-trade window.
func NewSurveillanceCheck(s store.Store, logger obslog.Logger) *SurveillanceCheck {
	return &SurveillanceCheck{store: s, logger: logger, window: 60 * time.Second, now: time.Now}
}

func (s *SurveillanceCheck) Name() string { return "SurveillanceCheck" }

func (s *SurveillanceCheck) Check(ctx context.Context, order models.Order, account models.Account, _ string, _ models.RiskSettings) (bool, string) {
	since := s.now().Add(-s.window)
	recent, err := s.store.GetRecentOrders(ctx, account.AccountID, order.Ticker, since)
	if err != nil {
		s.logger.LogDependencyFailure("store", "GetRecentOrders", err)
		return false, "Error in surveillance check"
	}

	for _, o := range recent {
		if o.OrderID == order.OrderID {
			continue
		}
		if o.Side == order.Side {
			continue
		}
		if o.Status != models.OrderStatusFilled {
			continue
		}
		return false, "Wash trade pattern detected: opposing order within the same ticker and account inside 60s"
	}
	return true, ""
}
