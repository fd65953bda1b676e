package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/neudev/attemptd/internal/auth"
	"github.com/neudev/attemptd/internal/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, role auth.Role, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	id := auth.Identity{UserID: "7", Role: role, Token: "tok"}
	return NewClient(srv.URL+"/", id, 5*time.Second, zerolog.Nop())
}

func TestFetchActivity(t *testing.T) {
	c := newTestClient(t, auth.RoleStudent, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/student/activities/12/items", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Write([]byte(`{"activityName":"Loops","maxPoints":10,"actDuration":"00:30:00",
			"closeDate":"2026-10-20 17:00:00",
			"items":[{"itemID":1,"itemName":"Sum","testCases":[{"testCaseID":5,"inputData":"1 2","expectedOutput":"3","testCasePoints":10}]}],
			"allowedLanguages":[{"progLangName":"Python"}]}`))
	})

	a, err := c.FetchActivity(context.Background(), 12)
	require.NoError(t, err)
	assert.Equal(t, "Loops", a.ActivityName)
	assert.Equal(t, "00:30:00", a.ActDuration)
	require.NotNil(t, a.CloseDate)
	assert.Equal(t, 20, a.CloseDate.Day())
	require.Len(t, a.Items, 1)
	assert.Equal(t, int64(5), a.Items[0].TestCases[0].TestCaseID)
	assert.Equal(t, "Python", a.AllowedLanguages[0].ProgLangName)
}

func TestFetchProgress(t *testing.T) {
	tests := []struct {
		name  string
		role  auth.Role
		path  string
		body  string
		empty bool
	}{
		{"student draft", auth.RoleStudent, "/student/activities/3/progress",
			`{"progress":[{"draftFiles":"[]","draftTestCaseResults":"{}","timeRemaining":120,"selectedLanguage":"Java","draftScore":4}]}`, false},
		{"teacher preview", auth.RoleTeacher, "/teacher/activities/3/progress",
			`{"progress":[{"timeRemaining":60}]}`, false},
		{"no attempt", auth.RoleStudent, "/student/activities/3/progress", `{"progress":[]}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.role, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, tt.path, r.URL.Path)
				w.Write([]byte(tt.body))
			})
			p, err := c.FetchProgress(context.Background(), 3)
			require.NoError(t, err)
			if tt.empty {
				assert.Nil(t, p)
				return
			}
			require.NotNil(t, p)
			assert.Positive(t, p.TimeRemaining)
		})
	}
}

func TestSaveAndClearProgress(t *testing.T) {
	var saved model.Progress
	var deleted bool
	c := newTestClient(t, auth.RoleStudent, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&saved))
		case http.MethodDelete:
			deleted = true
		}
		w.WriteHeader(http.StatusNoContent)
	})

	err := c.SaveProgress(context.Background(), 9, model.Progress{DraftFiles: `[{"id":0}]`, TimeRemaining: 42})
	require.NoError(t, err)
	assert.Equal(t, `[{"id":0}]`, saved.DraftFiles)
	assert.Equal(t, int64(42), saved.TimeRemaining)

	require.NoError(t, c.ClearProgress(context.Background(), 9))
	assert.True(t, deleted)
}

func TestFinalizeSubmission(t *testing.T) {
	var got model.SubmissionPayload
	c := newTestClient(t, auth.RoleStudent, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/student/activities/4/submission", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"finalScore":87.5,"rank":2}`))
	})

	res, err := c.FinalizeSubmission(context.Background(), 4, model.SubmissionPayload{
		Submissions: []model.ItemSubmission{{ItemID: 1, CodeSubmission: "[]", Score: 5, TimeSpent: 30}},
	})
	require.NoError(t, err)
	require.NotNil(t, res.FinalScore)
	assert.Equal(t, 87.5, *res.FinalScore)
	assert.Equal(t, 2, *res.Rank)
	require.Len(t, got.Submissions, 1)
	assert.Equal(t, int64(30), got.Submissions[0].TimeSpent)
}

func TestErrorMapping(t *testing.T) {
	t.Run("unauthorized", func(t *testing.T) {
		c := newTestClient(t, auth.RoleStudent, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
		_, err := c.FetchActivity(context.Background(), 1)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("api error", func(t *testing.T) {
		c := newTestClient(t, auth.RoleStudent, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
			w.Write([]byte(`{"message":"already submitted"}`))
		})
		_, err := c.FinalizeSubmission(context.Background(), 1, model.SubmissionPayload{})
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusConflict, apiErr.Status)
		assert.Equal(t, "already submitted", apiErr.Message)
	})

	t.Run("network", func(t *testing.T) {
		c := NewClient("http://127.0.0.1:1", auth.Identity{}, time.Second, zerolog.Nop())
		err := c.ClearProgress(context.Background(), 1)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrUnauthorized)
	})
}
