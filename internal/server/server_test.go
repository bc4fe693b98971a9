package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alexanderramin/smartplan/internal/db"
	"github.com/alexanderramin/smartplan/internal/domain"
	"github.com/alexanderramin/smartplan/internal/llm"
	"github.com/alexanderramin/smartplan/internal/pipeline"
	"github.com/alexanderramin/smartplan/internal/store"
	"github.com/alexanderramin/smartplan/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, fake *testutil.FakeLLM, opts Options) (*httptest.Server, pipeline.PlanService) {
	t.Helper()
	docs := store.NewSQLStore(testutil.NewTestDB(t), db.Dialect{Driver: db.DriverSQLite})
	svc := pipeline.NewPlanService(fake, docs, pipeline.WithClock(func() time.Time { return fixedNow }))
	ts := httptest.NewServer(New(svc, opts).Handler())
	t.Cleanup(ts.Close)
	return ts, svc
}

func do(t *testing.T, method, url string, body any, header http.Header) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, r)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func smartGoalBody(pre domain.PreGoal) SmartGoalRequest {
	return SmartGoalRequest{
		UserID:      "u1",
		PreGoalData: preGoalData{What: pre.What, Why: pre.Why, When: pre.When, Profile: pre.Profile},
	}
}

func TestSmartGoal_OK(t *testing.T) {
	fake := testutil.NewFakeLLM().On(llm.TaskSmartGoal, testutil.Reply{Content: testutil.SmartGoalText})
	ts, _ := newTestServer(t, fake, Options{})

	resp, body := do(t, http.MethodPost, ts.URL+"/smart_goal", smartGoalBody(testutil.ValidPreGoal()), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var goal string
	require.NoError(t, json.Unmarshal(body, &goal))
	assert.Equal(t, testutil.SmartGoalText, goal)
}

func TestSmartGoal_ValidationErrors(t *testing.T) {
	fake := testutil.NewFakeLLM()
	ts, _ := newTestServer(t, fake, Options{})

	pre := testutil.ValidPreGoal()
	pre.What = ""
	resp, body := do(t, http.MethodPost, ts.URL+"/smart_goal", smartGoalBody(pre), nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var out fieldErrorBody
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Contains(t, out.Errors, "what")
	assert.Empty(t, fake.Requests)
}

func TestSmartGoal_UpstreamFailure(t *testing.T) {
	fake := testutil.NewFakeLLM().On(llm.TaskSmartGoal, testutil.Reply{Err: llm.ErrTimeout})
	ts, _ := newTestServer(t, fake, Options{})

	resp, body := do(t, http.MethodPost, ts.URL+"/smart_goal", smartGoalBody(testutil.ValidPreGoal()), nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.JSONEq(t, `{"error":"SMART goal generation failed"}`, string(body))
}

func TestSmartGoal_InvalidJSON(t *testing.T) {
	ts, _ := newTestServer(t, testutil.NewFakeLLM(), Options{})
	resp, err := http.Post(ts.URL+"/smart_goal", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGeneratePlan_RoundTripAndExport(t *testing.T) {
	fake := testutil.NewFakeLLM().On(llm.TaskPlan, testutil.Reply{Content: testutil.PlanJSON})
	ts, _ := newTestServer(t, fake, Options{})

	resp, body := do(t, http.MethodPost, ts.URL+"/generate_milestones_and_tasks",
		GeneratePlanRequest{UserID: "u1", ValidatedGoal: testutil.SmartGoalText}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var gp domain.GoalPlan
	require.NoError(t, json.Unmarshal(body, &gp))
	require.NotEmpty(t, gp.Goal.GUID)
	assert.Len(t, gp.Goal.Milestones, 2)

	resp, body = do(t, http.MethodGet, ts.URL+"/plans/"+gp.Goal.GUID, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var loaded domain.GoalPlan
	require.NoError(t, json.Unmarshal(body, &loaded))
	assert.Equal(t, gp.Goal, loaded.Goal)

	resp, body = do(t, http.MethodGet, ts.URL+"/plans", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []pipeline.PlanSummary
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list, 1)
	assert.Equal(t, gp.Goal.GUID, list[0].GUID)
	assert.Equal(t, 3, list[0].Tasks)

	resp, body = do(t, http.MethodGet, ts.URL+"/plans/"+gp.Goal.GUID+"/export?format=txt", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `attachment; filename="my-goal-plan.txt"`, resp.Header.Get("Content-Disposition"))
	assert.NotContains(t, string(body), "#")
	assert.Contains(t, string(body), "Run a marathon")

	resp, _ = do(t, http.MethodGet, ts.URL+"/plans/"+gp.Goal.GUID+"/export", nil, nil)
	assert.Equal(t, `attachment; filename="my-goal-plan.md"`, resp.Header.Get("Content-Disposition"))

	resp, _ = do(t, http.MethodGet, ts.URL+"/plans/"+gp.Goal.GUID+"/export?format=pdf", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGeneratePlan_Errors(t *testing.T) {
	fake := testutil.NewFakeLLM().On(llm.TaskPlan, testutil.Reply{Content: "not a plan"})
	ts, _ := newTestServer(t, fake, Options{})

	resp, _ := do(t, http.MethodPost, ts.URL+"/generate_milestones_and_tasks", GeneratePlanRequest{ValidatedGoal: " "}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := do(t, http.MethodPost, ts.URL+"/generate_milestones_and_tasks", GeneratePlanRequest{ValidatedGoal: "x"}, nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.JSONEq(t, `{"error":"failed to generate valid goal plan"}`, string(body))
}

func TestGetPlan_NotFound(t *testing.T) {
	ts, _ := newTestServer(t, testutil.NewFakeLLM(), Options{})
	resp, body := do(t, http.MethodGet, ts.URL+"/plans/does-not-exist", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"error":"plan not found, please try again"}`, string(body))
}

func TestFeedback(t *testing.T) {
	ts, _ := newTestServer(t, testutil.NewFakeLLM(), Options{})

	resp, body := do(t, http.MethodPost, ts.URL+"/feedback", map[string]string{"text": "love it"}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var out map[string]string
	require.NoError(t, json.Unmarshal(body, &out))
	assert.NotEmpty(t, out["id"])

	resp, _ = do(t, http.MethodPost, ts.URL+"/feedback", map[string]string{"text": ""}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAuth(t *testing.T) {
	secret := []byte("s3cret")
	fake := testutil.NewFakeLLM().On(llm.TaskSmartGoal, testutil.Reply{Content: "goal"})
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("metrics")) })
	ts, _ := newTestServer(t, fake, Options{AuthSecret: secret, Metrics: metrics})

	resp, _ := do(t, http.MethodGet, ts.URL+"/health", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "health stays open")
	resp, body := do(t, http.MethodGet, ts.URL+"/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "metrics", string(body))

	resp, _ = do(t, http.MethodGet, ts.URL+"/plans", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, ts.URL+"/plans", nil, http.Header{"Authorization": {"Bearer junk"}})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token, err := IssueToken(secret, "u1", time.Hour, time.Now())
	require.NoError(t, err)
	auth := http.Header{"Authorization": {"Bearer " + token}}
	resp, _ = do(t, http.MethodGet, ts.URL+"/plans", nil, auth)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestTokens(t *testing.T) {
	secret := []byte("s3cret")

	token, err := IssueToken(secret, "alice", time.Hour, time.Now())
	require.NoError(t, err)
	sub, err := ParseToken(secret, token)
	require.NoError(t, err)
	assert.Equal(t, "alice", sub)

	_, err = ParseToken([]byte("other"), token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := IssueToken(secret, "alice", time.Hour, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)
	_, err = ParseToken(secret, expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = IssueToken(nil, "alice", time.Hour, time.Now())
	assert.Error(t, err)
}

func TestSubjectFromContext(t *testing.T) {
	_, ok := SubjectFromContext(context.Background())
	assert.False(t, ok)

	var seen string
	h := requireAuth([]byte("k"), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = SubjectFromContext(r.Context())
	}))
	token, err := IssueToken([]byte("k"), "bob", time.Minute, time.Now())
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "bob", seen)
}

func TestCORSPreflight(t *testing.T) {
	ts, _ := newTestServer(t, testutil.NewFakeLLM(), Options{AllowedOrigins: []string{"http://localhost:3000"}})

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/smart_goal", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
}
