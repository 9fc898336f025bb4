package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/platinummonkey/pulse/pkg/api"
)

func TestUpsertReadings(t *testing.T) {
	store, mock, done := newMockStore(t)
	defer done()

	ts := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	readings := []api.Reading{
		{UserID: 7, Timestamp: ts, DataType: "hrv", MetricName: "hrv_last_night_avg", Value: 48, RawValue: json.RawMessage(`{"lastNightAvg":48}`)},
		{UserID: 7, Timestamp: ts, DataType: "hrv", MetricName: "hrv_weekly_avg", Value: 52},
	}

	mock.ExpectExec("INSERT INTO readings").
		WithArgs(
			int64(7), ts, "hrv", "hrv_last_night_avg", 48.0, []byte(`{"lastNightAvg":48}`),
			int64(7), ts, "hrv", "hrv_weekly_avg", 52.0, nil,
		).
		WillReturnResult(sqlmock.NewResult(0, 2))

	if err := store.UpsertReadings(context.Background(), readings); err != nil {
		t.Fatalf("UpsertReadings failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestUpsertReadingsEmpty(t *testing.T) {
	store, mock, done := newMockStore(t)
	defer done()

	if err := store.UpsertReadings(context.Background(), nil); err != nil {
		t.Fatalf("empty upsert should be a no-op: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("no statements expected: %v", err)
	}
}

func TestUpsertReadingsBatches(t *testing.T) {
	store, mock, done := newMockStore(t)
	defer done()

	ts := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	readings := make([]api.Reading, upsertBatchSize+1)
	for i := range readings {
		readings[i] = api.Reading{
			UserID:     7,
			Timestamp:  ts.Add(time.Duration(i) * time.Minute),
			DataType:   "steps",
			MetricName: "steps",
			Value:      float64(i),
		}
	}

	// One full statement plus a one-row remainder.
	mock.ExpectExec("INSERT INTO readings").
		WillReturnResult(sqlmock.NewResult(0, int64(upsertBatchSize)))
	mock.ExpectExec("INSERT INTO readings").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.UpsertReadings(context.Background(), readings); err != nil {
		t.Fatalf("UpsertReadings failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestScanReadings(t *testing.T) {
	store, mock, done := newMockStore(t)
	defer done()

	start := time.Date(2026, 8, 18, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)
	created := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM readings").
		WithArgs(int64(7), "hrv", start, end).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "timestamp", "data_type", "metric_name", "value", "raw_value", "created_at",
		}).
			AddRow(1, 7, start, "hrv", "hrv_last_night_avg", 48.0, `{"lastNightAvg":48}`, created).
			AddRow(2, 7, start, "hrv", "hrv_weekly_avg", 52.0, nil, created))

	readings, err := store.ScanReadings(context.Background(), 7, "hrv", start, end)
	if err != nil {
		t.Fatalf("ScanReadings failed: %v", err)
	}
	if len(readings) != 2 {
		t.Fatalf("got %d readings, want 2", len(readings))
	}
	if readings[0].MetricName != "hrv_last_night_avg" || readings[0].Value != 48 {
		t.Errorf("unexpected first reading: %+v", readings[0])
	}
	if readings[0].RawValue == nil {
		t.Error("raw value should round-trip")
	}
	if readings[1].RawValue != nil {
		t.Error("null raw value should stay nil")
	}
}
