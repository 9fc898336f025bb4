package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/platinummonkey/pulse/pkg/api"
	"github.com/platinummonkey/pulse/pkg/config"
	"github.com/platinummonkey/pulse/pkg/observability"
	"github.com/platinummonkey/pulse/pkg/storage/postgres"
	"github.com/platinummonkey/pulse/pkg/validate"
)

var (
	startDate = flag.String("start-date", "", "Start of the validation window (YYYY-MM-DD, default: 7 days ago)")
	endDate   = flag.String("end-date", "", "End of the validation window, exclusive (YYYY-MM-DD, default: tomorrow)")
	userID    = flag.Int64("user-id", 0, "Validate a single user (default: all users)")
	output    = flag.String("output", "", "Write the JSON report to a file instead of stdout")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stderr).
		WithField("service", "pulse-validate")

	start, end, err := window(*startDate, *endDate)
	if err != nil {
		logger.WithError(err).Error("invalid validation window")
		os.Exit(1)
	}

	store, err := postgres.NewStore(cfg.Storage)
	if err != nil {
		logger.WithError(err).Error("failed to connect to storage")
		os.Exit(1)
	}
	defer store.Close()

	ctx := observability.WithLogger(context.Background(), logger)
	validator := validate.NewValidator(store, store, cfg.Ingestion.DataTypes, nil)

	var report *validate.Report
	if *userID > 0 {
		report, err = validator.ValidateUser(ctx, *userID, start, end)
	} else {
		report, err = validator.ValidateAll(ctx, start, end)
	}
	if err != nil {
		logger.WithError(err).Error("validation failed")
		os.Exit(1)
	}

	if err := emit(report, *output); err != nil {
		logger.WithError(err).Error("failed to write report")
		os.Exit(1)
	}
	logger.WithFields(map[string]interface{}{
		"total":   report.Total,
		"invalid": report.Invalid,
	}).Info("validation complete")
}

func window(startFlag, endFlag string) (time.Time, time.Time, error) {
	start, end := api.RangeWeek.Window(time.Now())
	if startFlag != "" {
		parsed, err := time.Parse("2006-01-02", startFlag)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("bad start date %q: %w", startFlag, err)
		}
		start = parsed
	}
	if endFlag != "" {
		parsed, err := time.Parse("2006-01-02", endFlag)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("bad end date %q: %w", endFlag, err)
		}
		end = parsed
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end date must be after start date")
	}
	return start, end, nil
}

func emit(report *validate.Report, path string) error {
	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	out = append(out, '\n')
	if path == "" {
		_, err = os.Stdout.Write(out)
		return err
	}
	return os.WriteFile(path, out, 0o644)
}
