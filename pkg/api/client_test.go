package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/telescopiosnaescola/argus/internal/session"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *session.Store) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	sessions, err := session.NewStore(t.TempDir(), nil)
	require.NoError(t, err)

	return NewClient(srv.URL, sessions, nil), sessions
}

func TestLoginCapturesCookies(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/auth/login/", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ana@example.com", body["email"])

		http.SetCookie(w, &http.Cookie{Name: session.SessionCookie, Value: "s1"})
		http.SetCookie(w, &http.Cookie{Name: session.CSRFCookie, Value: "c1"})
		w.WriteHeader(http.StatusOK)
	})

	client, sessions := newTestClient(t, handler)
	require.NoError(t, client.Login(context.Background(), "ana@example.com", "secret"))
	assert.Equal(t, "s1", sessions.SessionID())
	assert.Equal(t, "c1", sessions.CSRFToken())
}

func TestLoginFieldErrors(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string][]string{
			"email": {"This field is required."},
		})
	})

	client, _ := newTestClient(t, handler)
	err := client.Login(context.Background(), "", "pw")
	require.Error(t, err)

	var fields FieldErrors
	require.ErrorAs(t, err, &fields)
	assert.Equal(t, []string{"This field is required."}, fields["email"])
}

func TestCreatePlanSendsCSRFHeader(t *testing.T) {
	var gotHeader string
	var gotBody CreatePlanRequest

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/create_plan/", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		gotHeader = r.Header.Get(session.CSRFHeader)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(StatusResponse{Status: "success", Message: "Plan created."})
	})

	client, sessions := newTestClient(t, handler)
	require.NoError(t, sessions.Set("sid", "csrf-token"))

	resp, err := client.CreatePlan(context.Background(), CreatePlanRequest{
		Name:      "M51",
		RA:        "180",
		DEC:       "45",
		Filters:   "R",
		FrameMode: "Light",
		ExpTime:   10,
		StartTime: "2026-09-01T22:00",
	})
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.Equal(t, "csrf-token", gotHeader)
	assert.Equal(t, "180", gotBody.RA)
	assert.Equal(t, "R", gotBody.Filters)
	assert.Equal(t, 10.0, gotBody.ExpTime)
}

func TestFetchPlans(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/fetch_plans/", r.URL.Path)
		_ = json.NewEncoder(w).Encode([]ObservationPlan{
			{ID: 1, Name: "NGC 104", RA: 6.02, DEC: -72.08, Filters: "R, G", FrameMode: "Light", ExpTime: 30},
		})
	})

	client, _ := newTestClient(t, handler)
	plans, err := client.FetchPlans(context.Background())
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, "NGC 104", plans[0].Name)
	assert.Equal(t, []string{"R", "G"}, plans[0].FilterList())
}

func TestCheckPlanOKNow(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, true, body["now"])
		assert.Equal(t, float64(7), body["plan_id"])
		_ = json.NewEncoder(w).Encode(StatusResponse{Status: "error", Message: "Observation angle not allowed."})
	})

	client, _ := newTestClient(t, handler)
	resp, err := client.CheckPlanOK(context.Background(), 7, true)
	require.NoError(t, err)
	assert.False(t, resp.OK())
}

func TestRequestFile(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "m51_R.fits", body["filename"])
		_, _ = w.Write([]byte("SIMPLE  =                    T"))
	})

	client, _ := newTestClient(t, handler)
	rc, err := client.RequestFile(context.Background(), "m51_R.fits")
	require.NoError(t, err)
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Contains(t, string(data), "SIMPLE")
}

func TestHTTPErrorFallback(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway exploded", http.StatusBadGateway)
	})

	client, _ := newTestClient(t, handler)
	_, err := client.FetchPlans(context.Background())
	require.Error(t, err)

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadGateway, httpErr.StatusCode)
}

func TestReservations(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/get_reservations":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"reservations": []Reservation{{ID: 3, User: "ana@example.com"}},
			})
		case "/api/get_all_users_emails":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"emails": []string{"ana@example.com", "bruno@example.com"},
			})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	})

	client, _ := newTestClient(t, handler)

	reservations, err := client.GetReservations(context.Background())
	require.NoError(t, err)
	require.Len(t, reservations, 1)
	assert.Equal(t, 3, reservations[0].ID)

	emails, err := client.GetAllUserEmails(context.Background())
	require.NoError(t, err)
	assert.Len(t, emails, 2)
}
