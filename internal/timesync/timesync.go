// Package timesync estimates the portal server clock without a
// persistent clock-sync protocol.
package timesync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/telescopiosnaescola/argus/pkg/api"
	"go.uber.org/zap"
)

// DefaultSyncInterval is how long a measured offset stays fresh.
const DefaultSyncInterval = 5 * time.Minute

// DateTimeLocal is the portal's wire format for plan start times
// (the datetime-local input format, minute precision).
const DateTimeLocal = "2006-01-02T15:04"

// Service tracks the offset between the local clock and the
// server-reported clock. The estimate is best effort: no error bound is
// enforced or reported.
type Service struct {
	client *api.Client
	logger *zap.Logger

	interval time.Duration
	now      func() time.Time

	mu       sync.Mutex
	offset   time.Duration
	lastSync time.Time
}

// NewService creates a time service over the given API client. With a
// zero interval the default 5 minute window applies.
func NewService(client *api.Client, interval time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = DefaultSyncInterval
	}
	return &Service{
		client:   client,
		logger:   logger.With(zap.String("component", "time_service")),
		interval: interval,
		now:      time.Now,
	}
}

// Sync measures the clock offset with one request: local time is read
// before (t0) and after (t1), the one-way delay is estimated as
// (t1-t0)/2 and the offset as serverTime + delay - t1. When the server
// does not echo its clock, the offset falls back to zero.
func (s *Service) Sync(ctx context.Context) error {
	t0 := s.now()
	info, err := s.client.AppInfo(ctx)
	t1 := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		// Assume server clock equals local until the next window.
		s.offset = 0
		s.lastSync = t1
		return fmt.Errorf("time sync failed: %w", err)
	}

	serverTime := t1
	if info.CurrentTime != "" {
		parsed, perr := time.Parse(time.RFC3339, info.CurrentTime)
		if perr != nil {
			s.logger.Warn("Unparseable server time, assuming zero offset",
				zap.String("current_time", info.CurrentTime), zap.Error(perr))
		} else {
			serverTime = parsed
		}
	}

	delay := t1.Sub(t0) / 2
	s.offset = serverTime.Add(delay).Sub(t1)
	s.lastSync = t1

	s.logger.Debug("Time synced with server", zap.Duration("offset", s.offset))
	return nil
}

// ServerNow returns the estimated current server time, re-syncing only
// when the last measurement is older than the sync interval. A failed
// re-sync degrades to the local clock rather than returning an error.
func (s *Service) ServerNow(ctx context.Context) time.Time {
	s.mu.Lock()
	stale := s.now().Sub(s.lastSync) > s.interval
	s.mu.Unlock()

	if stale {
		if err := s.Sync(ctx); err != nil {
			s.logger.Warn("Time sync failed, using local clock", zap.Error(err))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now().Add(s.offset)
}

// Offset returns the last measured clock offset.
func (s *Service) Offset() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offset
}

// FutureTime returns the estimated server time the given number of
// minutes from now.
func (s *Service) FutureTime(ctx context.Context, minutes int) time.Time {
	return s.ServerNow(ctx).Add(time.Duration(minutes) * time.Minute)
}

// Format renders a time in the portal's datetime-local wire format.
func Format(t time.Time) string {
	return t.Format(DateTimeLocal)
}

// Parse reads a time in the portal's datetime-local wire format.
func Parse(value string) (time.Time, error) {
	return time.Parse(DateTimeLocal, value)
}
