// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/cardinalhq/oteltools/pkg/telemetry"
	slogmulti "github.com/samber/slog-multi"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/instrumentation/host"
	iruntime "go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/cardinalhq/bulkrunner/internal/workflow"
)

var (
	meter = otel.Meter("github.com/cardinalhq/bulkrunner")

	operationDuration  metric.Float64Histogram
	operationsFinished metric.Int64Counter
)

func init() {
	m, err := meter.Float64Histogram(
		"bulkrunner.operation.duration",
		metric.WithUnit("s"),
		metric.WithDescription("The duration in seconds of a load or unload"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create operation.duration histogram: %w", err))
	}
	operationDuration = m

	c, err := meter.Int64Counter(
		"bulkrunner.operation.finished",
		metric.WithDescription("The number of operations finished, by exit status"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create operation.finished counter: %w", err))
	}
	operationsFinished = c
}

func recordSummary(ctx context.Context, s workflow.Summary) {
	attrs := metric.WithAttributeSet(attribute.NewSet(
		attribute.String("operation", s.Operation),
		attribute.String("status", s.Status.String()),
	))
	operationDuration.Record(ctx, s.Elapsed.Seconds(), attrs)
	operationsFinished.Add(ctx, 1, attrs)
}

// setupTelemetry installs the default logger, writing to stdout and to
// operationLog, and starts OpenTelemetry export when ENABLE_OTLP_TELEMETRY
// is "true". The returned context is cancelled on SIGINT or SIGTERM.
func setupTelemetry(servicename string, operationLog io.Writer) (context.Context, func() error, error) {
	doneCtx, doneCancel := handleSignals(context.Background())

	f := func() error {
		doneCancel()
		return nil
	}

	// Configure slog level based on DEBUG environment variables
	var opts *slog.HandlerOptions
	if os.Getenv("DEBUG") != "" || os.Getenv("BULKRUNNER_DEBUG") != "" {
		opts = &slog.HandlerOptions{Level: slog.LevelDebug}
	}

	// stdout may be carrying unloaded data
	handlers := []slog.Handler{slog.NewTextHandler(os.Stderr, opts)}
	if operationLog != nil {
		handlers = append(handlers, slog.NewTextHandler(operationLog, opts))
	}

	otlp := os.Getenv("OTEL_SERVICE_NAME") != "" && os.Getenv("ENABLE_OTLP_TELEMETRY") == "true"
	if otlp {
		handlers = append(handlers, otelslog.NewHandler(servicename))
	}
	slog.SetDefault(slog.New(slogmulti.Fanout(handlers...)).With(
		slog.String("service", servicename),
	))

	if !otlp {
		return doneCtx, f, nil
	}

	slog.Info("OpenTelemetry exporting enabled")
	otelShutdown, err := telemetry.SetupOTelSDK(doneCtx)
	if err != nil {
		doneCancel()
		return doneCtx, nil, fmt.Errorf("failed to setup OpenTelemetry SDK: %w", err)
	}

	if err := iruntime.Start(iruntime.WithMinimumReadMemStatsInterval(time.Second * 10)); err != nil {
		slog.Warn("failed to start runtime metrics", "error", err.Error())
	}

	if err := host.Start(); err != nil {
		slog.Warn("failed to start host metrics", "error", err.Error())
	}

	f = func() error {
		defer doneCancel()
		slog.Info("Shutting down OpenTelemetry SDK")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return otelShutdown(ctx)
	}
	return doneCtx, f, nil
}
