package risk

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kalshi-dcm-demo/backend/internal/models"
)

// MessageThrottling rate-limits inbound order messages per session. It
// is the one stateful plugin in this package: per-session counts are
// cleared once a second by a background goroutine, started by NewMessageThrottling
// and stopped by Close.
type MessageThrottling struct {
	mu     sync.Mutex
	counts map[string]int

	resetInterval time.Duration
	stop          chan struct{}
	stopped       chan struct{}
}

// NewMessageThrottling starts the background reset loop immediately;
// callers must call Close during shutdown to stop it.
func NewMessageThrottling() *MessageThrottling {
	m := &MessageThrottling{
		counts:        make(map[string]int),
		resetInterval: time.Second,
		stop:          make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	go m.resetLoop()
	return m
}

func (m *MessageThrottling) resetLoop() {
	defer close(m.stopped)
	ticker := time.NewTicker(m.resetInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.mu.Lock()
			m.counts = make(map[string]int)
			m.mu.Unlock()
		case <-m.stop:
			return
		}
	}
}

// Close stops the background reset loop and waits for it to exit.
func (m *MessageThrottling) Close() {
	close(m.stop)
	<-m.stopped
}

func (m *MessageThrottling) Name() string { return "MessageThrottling" }

func (m *MessageThrottling) Check(_ context.Context, _ models.Order, _ models.Account, sessionID string, settings models.RiskSettings) (bool, string) {
	max := settings.EffectiveMaxMessagesPerSecond()

	m.mu.Lock()
	defer m.mu.Unlock()
	count := m.counts[sessionID]
	if count >= max {
		return false, fmt.Sprintf("Message rate limit exceeded: %d messages per second.", max)
	}
	m.counts[sessionID] = count + 1
	return true, ""
}
