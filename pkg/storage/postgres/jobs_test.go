package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/platinummonkey/pulse/pkg/api"
	"github.com/platinummonkey/pulse/pkg/storage"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	store := NewStoreWithDB(db, storage.DefaultConfig())
	return store, mock, func() { db.Close() }
}

func jobRowColumns() []string {
	return []string{
		"id", "user_id", "analytics_type", "time_range", "start_date", "end_date",
		"status", "error", "claimed_by", "claimed_at", "created_at", "updated_at",
	}
}

func TestEnqueue(t *testing.T) {
	store, mock, done := newMockStore(t)
	defer done()

	now := time.Now()
	start := time.Date(2026, 8, 18, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("INSERT INTO analytics_jobs").
		WithArgs(int64(7), "weekly_summary", "week", start, end).
		WillReturnRows(sqlmock.NewRows(jobRowColumns()).
			AddRow(1, 7, "weekly_summary", "week", start, end, "pending", "", "", nil, now, now))

	job, err := store.Enqueue(context.Background(), 7, "weekly_summary", api.RangeWeek, start, end)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if job.Status != api.JobPending {
		t.Errorf("status = %s, want pending", job.Status)
	}
	if job.Range != api.RangeWeek {
		t.Errorf("range = %s", job.Range)
	}
	if job.ClaimedAt != nil {
		t.Error("fresh job should have no claim stamp")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestClaimNext(t *testing.T) {
	store, mock, done := newMockStore(t)
	defer done()

	now := time.Now()
	mock.ExpectQuery("UPDATE analytics_jobs").
		WithArgs("worker-a1").
		WillReturnRows(sqlmock.NewRows(jobRowColumns()).
			AddRow(3, 7, "weekly_summary", "week", now, now, "running", "", "worker-a1", now, now, now))

	job, err := store.ClaimNext(context.Background(), "worker-a1")
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if job == nil {
		t.Fatal("expected a job")
	}
	if job.Status != api.JobRunning {
		t.Errorf("status = %s, want running", job.Status)
	}
	if job.ClaimedBy != "worker-a1" {
		t.Errorf("claimed_by = %s", job.ClaimedBy)
	}
	if job.ClaimedAt == nil {
		t.Error("claimed job should carry a claim stamp")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestClaimNextEmptyQueue(t *testing.T) {
	store, mock, done := newMockStore(t)
	defer done()

	mock.ExpectQuery("UPDATE analytics_jobs").
		WithArgs("worker-a1").
		WillReturnError(sql.ErrNoRows)

	job, err := store.ClaimNext(context.Background(), "worker-a1")
	if err != nil {
		t.Fatalf("ClaimNext on empty queue should not error: %v", err)
	}
	if job != nil {
		t.Errorf("expected nil job, got %+v", job)
	}
}

func TestClaimWinsAndLoses(t *testing.T) {
	store, mock, done := newMockStore(t)
	defer done()

	// First caller flips pending->running.
	mock.ExpectExec("UPDATE analytics_jobs").
		WithArgs(int64(5), "worker-a1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	// Second caller finds the job no longer pending.
	mock.ExpectExec("UPDATE analytics_jobs").
		WithArgs(int64(5), "worker-b2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	won, err := store.Claim(context.Background(), 5, "worker-a1")
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if !won {
		t.Error("first claim should win")
	}

	won, err = store.Claim(context.Background(), 5, "worker-b2")
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if won {
		t.Error("second claim must lose")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestCompleteRequiresRunning(t *testing.T) {
	store, mock, done := newMockStore(t)
	defer done()

	mock.ExpectExec("UPDATE analytics_jobs").
		WithArgs(int64(9), "completed", "").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.Complete(context.Background(), 9); err == nil {
		t.Error("completing a non-running job should fail")
	}
}

func TestFailRecordsError(t *testing.T) {
	store, mock, done := newMockStore(t)
	defer done()

	mock.ExpectExec("UPDATE analytics_jobs").
		WithArgs(int64(9), "failed", "scan readings: connection refused").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Fail(context.Background(), 9, errors.New("scan readings: connection refused"))
	if err != nil {
		t.Fatalf("Fail failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestRequeueAbandoned(t *testing.T) {
	store, mock, done := newMockStore(t)
	defer done()

	mock.ExpectQuery("WITH abandoned AS").
		WithArgs(float64(900)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(21).AddRow(22))

	count, err := store.RequeueAbandoned(context.Background(), 15*time.Minute)
	if err != nil {
		t.Fatalf("RequeueAbandoned failed: %v", err)
	}
	if count != 2 {
		t.Errorf("requeued = %d, want 2", count)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestLatestForKeyNotScheduled(t *testing.T) {
	store, mock, done := newMockStore(t)
	defer done()

	start := time.Date(2026, 8, 18, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT (.+) FROM analytics_jobs").
		WithArgs(int64(7), "weekly_summary", "week", start, end).
		WillReturnError(sql.ErrNoRows)

	job, err := store.LatestForKey(context.Background(), api.ResultKey{
		UserID: 7, AnalyticsType: "weekly_summary", Range: api.RangeWeek,
		StartDate: start, EndDate: end,
	})
	if err != nil {
		t.Fatalf("LatestForKey failed: %v", err)
	}
	if job != nil {
		t.Error("unscheduled key should yield nil")
	}
}
