package planner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/telescopiosnaescola/argus/internal/session"
	"github.com/telescopiosnaescola/argus/pkg/api"
)

func completeForm() *Form {
	return &Form{
		Name:      "M51",
		RA:        "180",
		DEC:       "45",
		Filters:   []string{"R"},
		FrameMode: "Light",
		ExpTime:   10,
		StartTime: "2026-09-01T22:00",
	}
}

func TestFormGating(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Form)
		valid  bool
	}{
		{"complete with coordinates", func(f *Form) {}, true},
		{"complete with object name", func(f *Form) {
			f.RA, f.DEC = "", ""
			f.ObjectName = "Jupiter"
		}, true},
		{"missing name", func(f *Form) { f.Name = "" }, false},
		{"missing filters", func(f *Form) { f.Filters = nil }, false},
		{"missing frame mode", func(f *Form) { f.FrameMode = "" }, false},
		{"zero exposure", func(f *Form) { f.ExpTime = 0 }, false},
		{"missing start time", func(f *Form) { f.StartTime = "" }, false},
		{"no target at all", func(f *Form) {
			f.RA, f.DEC, f.ObjectName = "", "", ""
		}, false},
		{"non numeric RA", func(f *Form) { f.RA = "abc" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := completeForm()
			tt.mutate(f)
			assert.Equal(t, tt.valid, f.Complete())
		})
	}
}

func newSubmitter(t *testing.T, handler http.Handler) *Submitter {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	sessions, err := session.NewStore(t.TempDir(), nil)
	require.NoError(t, err)
	require.NoError(t, sessions.Set("sid", "tok"))
	return NewSubmitter(api.NewClient(srv.URL, sessions, nil), nil)
}

func TestSaveTransitions(t *testing.T) {
	s := newSubmitter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/create_plan/", r.URL.Path)
		_ = json.NewEncoder(w).Encode(api.StatusResponse{Status: "success", Message: "created"})
	}))

	assert.Equal(t, StateEditing, s.State())

	resp, err := s.Save(context.Background(), completeForm())
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.Equal(t, StateSaved, s.State())
}

func TestSaveFailureReturnsToEditing(t *testing.T) {
	s := newSubmitter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))

	_, err := s.Save(context.Background(), completeForm())
	require.Error(t, err)
	assert.Equal(t, StateEditing, s.State())
}

func TestSaveIncompleteFormRejectedLocally(t *testing.T) {
	s := newSubmitter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("incomplete form must not reach the server")
	}))

	f := completeForm()
	f.Filters = nil
	_, err := s.Save(context.Background(), f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Filters")
}

func TestObserveNowRequiresObservableFlag(t *testing.T) {
	s := newSubmitter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(api.StatusResponse{Status: "success"})
	}))

	f := completeForm()
	assert.False(t, s.CanObserveNow(f), "no verdict yet")

	s.SetObservableNow(false)
	assert.False(t, s.CanObserveNow(f))
	assert.Equal(t, StateNotApprovedNow, s.State())

	s.SetObservableNow(true)
	assert.True(t, s.CanObserveNow(f))
	assert.Equal(t, StateApprovedNow, s.State())
}

func TestReplaceCompensatesFailedDelete(t *testing.T) {
	// create_plan succeeds; delete_plan fails for the old id but
	// succeeds for the rollback of the new one.
	var deleted []int
	s := newSubmitter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/create_plan/":
			_ = json.NewEncoder(w).Encode(api.StatusResponse{Status: "success"})
		case "/api/fetch_plans/":
			_ = json.NewEncoder(w).Encode([]api.ObservationPlan{
				{ID: 1, Name: "M51", StartTime: "2026-09-01T22:00"},
				{ID: 2, Name: "M51", StartTime: "2026-09-01T22:00"},
			})
		case "/api/delete_plan/":
			var body map[string]int
			_ = json.NewDecoder(r.Body).Decode(&body)
			deleted = append(deleted, body["plan_id"])
			if body["plan_id"] == 1 {
				_ = json.NewEncoder(w).Encode(api.StatusResponse{Status: "error", Message: "plan is executing"})
				return
			}
			_ = json.NewEncoder(w).Encode(api.StatusResponse{Status: "success"})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))

	err := s.Replace(context.Background(), completeForm(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rolled back")
	// Old plan delete attempted, then the new plan (latest matching id)
	// deleted as compensation.
	assert.Equal(t, []int{1, 2}, deleted)
}

func TestReplaceHappyPath(t *testing.T) {
	var deleted []int
	s := newSubmitter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/create_plan/":
			_ = json.NewEncoder(w).Encode(api.StatusResponse{Status: "success"})
		case "/api/delete_plan/":
			var body map[string]int
			_ = json.NewDecoder(r.Body).Decode(&body)
			deleted = append(deleted, body["plan_id"])
			_ = json.NewEncoder(w).Encode(api.StatusResponse{Status: "success"})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))

	require.NoError(t, s.Replace(context.Background(), completeForm(), 9))
	assert.Equal(t, []int{9}, deleted)
}
