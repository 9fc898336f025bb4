package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/pulse/pkg/observability"
)

type fakeReadService struct {
	report   *StatusReport
	results  []*AnalyticsResult
	readings []Reading
	catalog  []MetricMetadata

	lastStatusKey   ResultKey
	lastReadingsReq struct {
		UserID   int64
		DataType string
		Start    time.Time
		End      time.Time
	}
}

func (f *fakeReadService) Result(ctx context.Context, key ResultKey) (*AnalyticsResult, error) {
	if f.report != nil {
		return f.report.Result, nil
	}
	return nil, nil
}

func (f *fakeReadService) Results(ctx context.Context, userID int64, analyticsType string, timeRange TimeRange) ([]*AnalyticsResult, error) {
	return f.results, nil
}

func (f *fakeReadService) Status(ctx context.Context, key ResultKey) (*StatusReport, error) {
	f.lastStatusKey = key
	if f.report == nil {
		return &StatusReport{State: StateNotScheduled}, nil
	}
	return f.report, nil
}

func (f *fakeReadService) Readings(ctx context.Context, userID int64, dataType string, start, end time.Time) ([]Reading, error) {
	f.lastReadingsReq.UserID = userID
	f.lastReadingsReq.DataType = dataType
	f.lastReadingsReq.Start = start
	f.lastReadingsReq.End = end
	return f.readings, nil
}

func (f *fakeReadService) Catalog() []MetricMetadata {
	return f.catalog
}

type fakeUserDirectory struct {
	users []*User
}

func (f *fakeUserDirectory) EnsureUser(ctx context.Context, email string) (*User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	u := &User{ID: int64(len(f.users) + 1), Email: email, CreatedAt: time.Now()}
	f.users = append(f.users, u)
	return u, nil
}

func (f *fakeUserDirectory) ListUsers(ctx context.Context) ([]*User, error) {
	return f.users, nil
}

type fakeJobCreator struct {
	jobs []*AnalyticsJob
}

func (f *fakeJobCreator) Enqueue(ctx context.Context, userID int64, analyticsType string, timeRange TimeRange, start, end time.Time) (*AnalyticsJob, error) {
	job := &AnalyticsJob{
		ID:            int64(len(f.jobs) + 1),
		UserID:        userID,
		AnalyticsType: analyticsType,
		Range:         timeRange,
		StartDate:     start,
		EndDate:       end,
		Status:        JobPending,
	}
	f.jobs = append(f.jobs, job)
	return job, nil
}

type fakeTriggerCreator struct {
	triggers []*FetchTrigger
}

func (f *fakeTriggerCreator) Insert(ctx context.Context, userID int64, daysBack int) (*FetchTrigger, error) {
	trigger := &FetchTrigger{ID: int64(len(f.triggers) + 1), UserID: userID, DaysBack: daysBack}
	f.triggers = append(f.triggers, trigger)
	return trigger, nil
}

type serverFixture struct {
	server   *Server
	service  *fakeReadService
	users    *fakeUserDirectory
	jobs     *fakeJobCreator
	triggers *fakeTriggerCreator
}

func newServerFixture() *serverFixture {
	f := &serverFixture{
		service:  &fakeReadService{},
		users:    &fakeUserDirectory{},
		jobs:     &fakeJobCreator{},
		triggers: &fakeTriggerCreator{},
	}
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	f.server = NewServer(f.service, f.users, f.jobs, f.triggers, nil, logger)
	return f
}

func (f *serverFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	f := newServerFixture()
	rec := f.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestIDHeader(t *testing.T) {
	f := newServerFixture()
	rec := f.do(t, http.MethodGet, "/healthz", "")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestCatalogEndpoint(t *testing.T) {
	f := newServerFixture()
	f.service.catalog = []MetricMetadata{{MetricName: "steps", Kind: KindCounter}}

	rec := f.do(t, http.MethodGet, "/api/v1/catalog", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []MetricMetadata
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "steps", entries[0].MetricName)
}

func TestCreateUser(t *testing.T) {
	f := newServerFixture()

	rec := f.do(t, http.MethodPost, "/api/v1/users", `{"email": "athlete@example.com"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var user User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	assert.Equal(t, "athlete@example.com", user.Email)
}

func TestCreateUserRequiresEmail(t *testing.T) {
	f := newServerFixture()
	rec := f.do(t, http.MethodPost, "/api/v1/users", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusEndpoint(t *testing.T) {
	f := newServerFixture()
	f.service.report = &StatusReport{State: StateComputing}

	rec := f.do(t, http.MethodGet, "/api/v1/users/7/status/weekly_summary/week", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var report StatusReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, StateComputing, report.State)

	key := f.service.lastStatusKey
	assert.Equal(t, int64(7), key.UserID)
	assert.Equal(t, "weekly_summary", key.AnalyticsType)
	assert.Equal(t, RangeWeek, key.Range)
	assert.Equal(t, 7*24*time.Hour, key.EndDate.Sub(key.StartDate))
}

func TestStatusRejectsUnknownRange(t *testing.T) {
	f := newServerFixture()
	rec := f.do(t, http.MethodGet, "/api/v1/users/7/status/weekly_summary/fortnight", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateTrigger(t *testing.T) {
	f := newServerFixture()

	rec := f.do(t, http.MethodPost, "/api/v1/users/7/triggers", `{"days_back": 3}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Len(t, f.triggers.triggers, 1)
	assert.Equal(t, 3, f.triggers.triggers[0].DaysBack)
}

func TestCreateTriggerClampsDaysBack(t *testing.T) {
	f := newServerFixture()
	rec := f.do(t, http.MethodPost, "/api/v1/users/7/triggers", `{"days_back": 0}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, f.triggers.triggers[0].DaysBack)
}

func TestCreateJob(t *testing.T) {
	f := newServerFixture()

	rec := f.do(t, http.MethodPost, "/api/v1/users/7/jobs", `{"analytics_type": "weekly_summary", "time_range": "week"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Len(t, f.jobs.jobs, 1)
	job := f.jobs.jobs[0]
	assert.Equal(t, RangeWeek, job.Range)
	assert.Equal(t, JobPending, job.Status)
}

func TestCreateJobRejectsBadRange(t *testing.T) {
	f := newServerFixture()
	rec := f.do(t, http.MethodPost, "/api/v1/users/7/jobs", `{"analytics_type": "weekly_summary", "time_range": "decade"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReadingsDefaultWindow(t *testing.T) {
	f := newServerFixture()

	rec := f.do(t, http.MethodGet, "/api/v1/users/7/readings/steps", "")
	require.Equal(t, http.StatusOK, rec.Code)

	req := f.service.lastReadingsReq
	assert.Equal(t, int64(7), req.UserID)
	assert.Equal(t, "steps", req.DataType)
	assert.Equal(t, 7*24*time.Hour, req.End.Sub(req.Start))
}

func TestReadingsExplicitWindow(t *testing.T) {
	f := newServerFixture()

	rec := f.do(t, http.MethodGet, "/api/v1/users/7/readings/steps?start=2026-08-01&end=2026-08-10", "")
	require.Equal(t, http.StatusOK, rec.Code)

	req := f.service.lastReadingsReq
	assert.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), req.Start)
	assert.Equal(t, time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC), req.End)
}

func TestReadingsRejectsInvertedWindow(t *testing.T) {
	f := newServerFixture()
	rec := f.do(t, http.MethodGet, "/api/v1/users/7/readings/steps?start=2026-08-10&end=2026-08-01", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInvalidUserID(t *testing.T) {
	f := newServerFixture()
	rec := f.do(t, http.MethodGet, "/api/v1/users/zero/results", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
