package timesync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/telescopiosnaescola/argus/internal/session"
	"github.com/telescopiosnaescola/argus/pkg/api"
)

func newService(t *testing.T, handler http.Handler, interval time.Duration) *Service {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	sessions, err := session.NewStore(t.TempDir(), nil)
	require.NoError(t, err)
	return NewService(api.NewClient(srv.URL, sessions, nil), interval, nil)
}

func TestSyncComputesOffset(t *testing.T) {
	serverClock := time.Now().Add(42 * time.Second)
	svc := newService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(api.AppInfo{CurrentTime: serverClock.Format(time.RFC3339)})
	}), 0)

	require.NoError(t, svc.Sync(context.Background()))

	// Server is ~42s ahead; allow for request latency and the RFC3339
	// second truncation.
	assert.InDelta(t, 42.0, svc.Offset().Seconds(), 2.0)
}

func TestSyncWithoutServerClockAssumesZeroOffset(t *testing.T) {
	svc := newService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(api.AppInfo{Latitude: "1"})
	}), 0)

	require.NoError(t, svc.Sync(context.Background()))
	assert.InDelta(t, 0.0, svc.Offset().Seconds(), 1.0)
}

func TestAtMostOneSyncPerWindow(t *testing.T) {
	var fetches int32
	svc := newService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&fetches, 1)
		_ = json.NewEncoder(w).Encode(api.AppInfo{CurrentTime: time.Now().Format(time.RFC3339)})
	}), time.Hour)

	ctx := context.Background()
	for i := 0; i < 20; i++ {
		svc.ServerNow(ctx)
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(&fetches),
		"repeated ServerNow calls within the window must not re-sync")
}

func TestSyncFailureDegradesToLocalClock(t *testing.T) {
	svc := newService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}), time.Hour)

	before := time.Now()
	got := svc.ServerNow(context.Background())
	after := time.Now()

	assert.False(t, got.Before(before))
	assert.False(t, got.After(after.Add(time.Second)))
	assert.Equal(t, time.Duration(0), svc.Offset())
}

func TestFormat(t *testing.T) {
	ts := time.Date(2026, 9, 1, 22, 5, 31, 0, time.UTC)
	assert.Equal(t, "2026-09-01T22:05", Format(ts))
}

func TestFutureTime(t *testing.T) {
	svc := newService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(api.AppInfo{CurrentTime: time.Now().Format(time.RFC3339)})
	}), time.Hour)

	future := svc.FutureTime(context.Background(), 10)
	assert.InDelta(t, 10*60, time.Until(future).Seconds(), 5)
}
