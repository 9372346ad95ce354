package simulator

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telescopiosnaescola/argus/internal/session"
	"github.com/telescopiosnaescola/argus/pkg/api"
	"github.com/telescopiosnaescola/argus/pkg/realtime"
)

// testPortal spins up the simulator behind an httptest listener and
// returns a logged-in API client for the given account.
func testPortal(t *testing.T, admin bool) (*Server, *httptest.Server, *api.Client) {
	t.Helper()

	// A near-polar site keeps circumpolar targets observable at any
	// test run time.
	server, err := NewServer(&Config{
		TelescopeName:    "argus-test",
		SiteLatitude:     89.0,
		SiteLongitude:    0,
		SessionSecret:    "test-secret",
		SlewDuration:     time.Millisecond,
		ExposureOverhead: time.Millisecond,
	}, nil)
	require.NoError(t, err)

	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)

	require.NoError(t, server.Seed("school@example.org", "Escola Teste", "observa123", admin))

	sessions, err := session.NewStore(t.TempDir(), nil)
	require.NoError(t, err)

	client := api.NewClient(ts.URL, sessions, nil)
	require.NoError(t, client.Login(context.Background(), "school@example.org", "observa123"))
	return server, ts, client
}

func TestLoginSetsSessionCookies(t *testing.T) {
	_, ts, _ := testPortal(t, false)

	sessions, err := session.NewStore(t.TempDir(), nil)
	require.NoError(t, err)
	client := api.NewClient(ts.URL, sessions, nil)

	err = client.Login(context.Background(), "school@example.org", "wrong")
	require.Error(t, err)
	assert.False(t, sessions.Authenticated())

	require.NoError(t, client.Login(context.Background(), "school@example.org", "observa123"))
	assert.True(t, sessions.Authenticated())
	assert.NotEmpty(t, sessions.CSRFToken())
}

func TestRegisterValidation(t *testing.T) {
	_, ts, _ := testPortal(t, false)

	sessions, err := session.NewStore(t.TempDir(), nil)
	require.NoError(t, err)
	client := api.NewClient(ts.URL, sessions, nil)

	err = client.Register(context.Background(), "not-an-email", "", "short", "different")
	var fields api.FieldErrors
	require.ErrorAs(t, err, &fields)
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "completeName")
	assert.Contains(t, fields, "password1")
	assert.Contains(t, fields, "password2")

	require.NoError(t, client.Register(context.Background(), "new@example.org", "New School", "observa123", "observa123"))

	err = client.Register(context.Background(), "new@example.org", "New School", "observa123", "observa123")
	require.ErrorAs(t, err, &fields)
	assert.Contains(t, fields, "email")
}

func TestPlanLifecycle(t *testing.T) {
	_, _, client := testPortal(t, false)
	ctx := context.Background()

	plans, err := client.FetchPlans(ctx)
	require.NoError(t, err)
	assert.Empty(t, plans)

	status, err := client.CreatePlan(ctx, api.CreatePlanRequest{
		Name:      "polar field",
		RA:        "180.0",
		DEC:       "89.0",
		Filters:   "R,G",
		FrameMode: "Light",
		ExpTime:   0.01,
		StartTime: time.Now().UTC().Format("2006-01-02T15:04"),
	})
	require.NoError(t, err)
	require.True(t, status.OK(), status.Message)

	plans, err = client.FetchPlans(ctx)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, "polar field", plans[0].Name)
	assert.Equal(t, []string{"R", "G"}, plans[0].FilterList())

	check, err := client.CheckPlanOK(ctx, plans[0].ID, true)
	require.NoError(t, err)
	assert.True(t, check.OK(), check.Message)

	status, err = client.DeletePlan(ctx, plans[0].ID)
	require.NoError(t, err)
	assert.True(t, status.OK())

	status, err = client.DeletePlan(ctx, plans[0].ID)
	require.NoError(t, err)
	assert.False(t, status.OK())
}

func TestCreatePlanRejectsBadInput(t *testing.T) {
	_, _, client := testPortal(t, false)
	ctx := context.Background()

	status, err := client.CreatePlan(ctx, api.CreatePlanRequest{
		Name:      "no target",
		Filters:   "R",
		FrameMode: "Light",
		ExpTime:   1,
		StartTime: "2026-09-01T20:00",
	})
	require.NoError(t, err)
	assert.False(t, status.OK())

	status, err = client.CreatePlan(ctx, api.CreatePlanRequest{
		Name:      "bad coords",
		RA:        "twelve",
		DEC:       "40",
		Filters:   "R",
		FrameMode: "Light",
		ExpTime:   1,
		StartTime: "2026-09-01T20:00",
	})
	require.NoError(t, err)
	assert.False(t, status.OK())
}

func TestCSRFRequiredOnMutations(t *testing.T) {
	_, ts, client := testPortal(t, false)
	ctx := context.Background()

	// A request that carries the session cookie but no CSRF header must
	// be rejected before it reaches the handler.
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/delete_plan/", nil)
	require.NoError(t, err)

	sessions, err := session.NewStore(t.TempDir(), nil)
	require.NoError(t, err)
	probe := api.NewClient(ts.URL, sessions, nil)
	require.NoError(t, probe.Login(ctx, "school@example.org", "observa123"))
	sessions.ApplyTo(req)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// The full client sends the header and gets through.
	status, err := client.DeletePlan(ctx, 12345)
	require.NoError(t, err)
	assert.False(t, status.OK())
}

func TestAdminEndpointsRequireAdmin(t *testing.T) {
	_, _, client := testPortal(t, false)
	ctx := context.Background()

	_, err := client.GetReservations(ctx)
	require.Error(t, err)

	_, err = client.ReserveTime(ctx, "school@example.org", "2026-09-01T20:00", "2026-09-01T22:00")
	require.Error(t, err)
}

func TestReservationLifecycle(t *testing.T) {
	_, _, client := testPortal(t, true)
	ctx := context.Background()

	status, err := client.ReserveTime(ctx, "school@example.org", "2026-09-01T20:00", "2026-09-01T22:00")
	require.NoError(t, err)
	assert.True(t, status.OK(), status.Message)

	status, err = client.ReserveTime(ctx, "nobody@example.org", "2026-09-01T20:00", "2026-09-01T22:00")
	require.NoError(t, err)
	assert.False(t, status.OK())

	reservations, err := client.GetReservations(ctx)
	require.NoError(t, err)
	require.Len(t, reservations, 1)
	assert.Equal(t, "school@example.org", reservations[0].User)

	emails, err := client.GetAllUserEmails(ctx)
	require.NoError(t, err)
	assert.Contains(t, emails, "school@example.org")

	status, err = client.DeleteReservation(ctx, reservations[0].ID)
	require.NoError(t, err)
	assert.True(t, status.OK())
}

func TestExecutePlanProducesResults(t *testing.T) {
	_, _, client := testPortal(t, false)
	ctx := context.Background()

	status, err := client.CreatePlan(ctx, api.CreatePlanRequest{
		Name:      "quick shot",
		RA:        "10.0",
		DEC:       "89.5",
		Filters:   "R",
		FrameMode: "Light",
		ExpTime:   0.01,
		StartTime: time.Now().UTC().Format("2006-01-02T15:04"),
	})
	require.NoError(t, err)
	require.True(t, status.OK(), status.Message)

	plans, err := client.FetchPlans(ctx)
	require.NoError(t, err)
	require.Len(t, plans, 1)

	status, err = client.ExecutePlan(ctx, plans[0].ID)
	require.NoError(t, err)
	require.True(t, status.OK(), status.Message)

	var observed []api.ObservationPlan
	require.Eventually(t, func() bool {
		observed, err = client.FetchObserved(ctx)
		return err == nil && len(observed) == 1
	}, 5*time.Second, 20*time.Millisecond)

	require.NotEmpty(t, observed[0].OutputFiles())
	assert.True(t, observed[0].Executed)

	body, err := client.RequestFile(ctx, observed[0].OutputFiles()[0])
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	require.NoError(t, body.Close())
	assert.Contains(t, string(data), "SIMPLE")

	_, err = client.RequestFile(ctx, "someone_elses_file.fits")
	require.Error(t, err)
}

func TestRealtimeCoordCheck(t *testing.T) {
	_, ts, _ := testPortal(t, false)
	ctx := context.Background()

	sessions, err := session.NewStore(t.TempDir(), nil)
	require.NoError(t, err)
	apiClient := api.NewClient(ts.URL, sessions, nil)
	require.NoError(t, apiClient.Login(ctx, "school@example.org", "observa123"))

	channel, err := realtime.NewClient(ts.URL, sessions, nil)
	require.NoError(t, err)
	require.NoError(t, channel.Connect(ctx))
	defer channel.Disconnect()

	// Circumpolar target at a near-polar site: always observable.
	reply, err := channel.Request(ctx, realtime.TypeCheckCoord, realtime.CoordCheckRequest{RA: "50", DEC: "89"})
	require.NoError(t, err)
	assert.Equal(t, realtime.TypeCoordChecked, reply.Type)

	var verdict realtime.CoordCheckResponse
	require.NoError(t, json.Unmarshal(reply.Payload, &verdict))
	assert.True(t, verdict.Allowed, verdict.Message)

	// A southern target never rises there.
	reply, err = channel.Request(ctx, realtime.TypeCheckCoordOnDate, realtime.CoordCheckRequest{
		RA: "50", DEC: "-30", Date: "2026-09-01T20:00",
	})
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(reply.Payload, &verdict))
	assert.False(t, verdict.Allowed)

	reply, err = channel.Request(ctx, realtime.TypeCheckTelescopeStatus, nil)
	require.NoError(t, err)

	var register api.TelescopeStatus
	require.NoError(t, json.Unmarshal(reply.Payload, &register))
	assert.Equal(t, "argus-test", register.Name)
	assert.Equal(t, "idle", register.Status)
}

func TestSessionRequiredOnWebsocket(t *testing.T) {
	_, ts, _ := testPortal(t, false)

	resp, err := http.Get(ts.URL + "/ws")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
