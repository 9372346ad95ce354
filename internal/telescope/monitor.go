// Package telescope tracks the live telescope status pushed over the
// realtime channel.
package telescope

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/telescopiosnaescola/argus/pkg/api"
	"github.com/telescopiosnaescola/argus/pkg/realtime"
	"go.uber.org/zap"
)

// DefaultPollInterval is the cadence of status requests.
const DefaultPollInterval = 5 * time.Second

// Condition classifies the free-form status string the server reports.
type Condition string

const (
	ConditionIdle    Condition = "idle"
	ConditionError   Condition = "error"
	ConditionActive  Condition = "active"
	ConditionUnknown Condition = "unknown"
)

// Classify maps a status string to its condition the same way the
// portal UI colors it: "idle" exactly, anything containing "error", and
// anything containing "executing" or "sending" is active.
func Classify(status string) Condition {
	switch {
	case status == "":
		return ConditionUnknown
	case status == "idle":
		return ConditionIdle
	case strings.Contains(status, "error"):
		return ConditionError
	case strings.Contains(status, "executing") || strings.Contains(status, "sending"):
		return ConditionActive
	default:
		return ConditionUnknown
	}
}

// Monitor requests the telescope status on a fixed cadence and keeps the
// last push. Status values are transient; nothing is persisted.
type Monitor struct {
	channel  *realtime.Client
	logger   *zap.Logger
	interval time.Duration

	mu       sync.RWMutex
	last     api.TelescopeStatus
	received bool

	registration int
	stopCh       chan struct{}
	stopOnce     sync.Once
	onUpdate     func(api.TelescopeStatus)
}

// NewMonitor creates a telescope status monitor. With a zero interval
// the default 5 second cadence applies. onUpdate, when non-nil, fires
// for every push.
func NewMonitor(channel *realtime.Client, interval time.Duration, onUpdate func(api.TelescopeStatus), logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Monitor{
		channel:  channel,
		logger:   logger.With(zap.String("component", "telescope_monitor")),
		interval: interval,
		stopCh:   make(chan struct{}),
		onUpdate: onUpdate,
	}
}

// Start subscribes to telescope_status pushes and begins polling. The
// first request goes out immediately.
func (m *Monitor) Start() error {
	m.registration = m.channel.On(realtime.TypeTelescopeStatus, m.handlePush)

	if err := m.channel.Send(realtime.TypeCheckTelescopeStatus, nil); err != nil {
		m.channel.Off(realtime.TypeTelescopeStatus, m.registration)
		return err
	}

	go m.pollLoop()
	return nil
}

// Stop cancels polling and unsubscribes. Pushes arriving after Stop are
// dropped.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
		m.channel.Off(realtime.TypeTelescopeStatus, m.registration)
	})
}

// Last returns the most recent status and whether one was received yet.
func (m *Monitor) Last() (api.TelescopeStatus, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last, m.received
}

// Condition classifies the last known status.
func (m *Monitor) Condition() Condition {
	status, ok := m.Last()
	if !ok {
		return ConditionUnknown
	}
	return Classify(status.Status)
}

func (m *Monitor) pollLoop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			if err := m.channel.Send(realtime.TypeCheckTelescopeStatus, nil); err != nil {
				m.logger.Debug("Status request failed", zap.Error(err))
			}
		}
	}
}

func (m *Monitor) handlePush(payload json.RawMessage) {
	select {
	case <-m.stopCh:
		return
	default:
	}

	var status api.TelescopeStatus
	if err := json.Unmarshal(payload, &status); err != nil {
		m.logger.Warn("Malformed telescope status", zap.Error(err))
		return
	}

	m.mu.Lock()
	m.last = status
	m.received = true
	m.mu.Unlock()

	if m.onUpdate != nil {
		m.onUpdate(status)
	}
}
