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

package executor

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/cardinalhq/bulkrunner/internal/statement"
)

var (
	requestsStarted   metric.Int64Counter
	requestsSucceeded metric.Int64Counter
	requestsFailed    metric.Int64Counter
	statementsSent    metric.Int64Counter
	rowsReceived      metric.Int64Counter
	requestsInFlight  metric.Int64UpDownCounter
	requestDuration   metric.Float64Histogram
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/bulkrunner/internal/executor")

	var err error

	requestsStarted, err = meter.Int64Counter(
		"bulkrunner.executor.requests.started",
		metric.WithDescription("Number of requests dispatched to the database"),
	)
	if err != nil {
		log.Fatalf("failed to create requests.started counter: %v", err)
	}

	requestsSucceeded, err = meter.Int64Counter(
		"bulkrunner.executor.requests.succeeded",
		metric.WithDescription("Number of requests that completed successfully"),
	)
	if err != nil {
		log.Fatalf("failed to create requests.succeeded counter: %v", err)
	}

	requestsFailed, err = meter.Int64Counter(
		"bulkrunner.executor.requests.failed",
		metric.WithDescription("Number of requests that failed"),
	)
	if err != nil {
		log.Fatalf("failed to create requests.failed counter: %v", err)
	}

	statementsSent, err = meter.Int64Counter(
		"bulkrunner.executor.statements",
		metric.WithDescription("Number of statements dispatched, counting each batch child"),
	)
	if err != nil {
		log.Fatalf("failed to create statements counter: %v", err)
	}

	rowsReceived, err = meter.Int64Counter(
		"bulkrunner.executor.rows_received",
		metric.WithDescription("Number of rows received from reads"),
	)
	if err != nil {
		log.Fatalf("failed to create rows_received counter: %v", err)
	}

	requestsInFlight, err = meter.Int64UpDownCounter(
		"bulkrunner.executor.in_flight",
		metric.WithDescription("Number of requests dispatched and not yet completed"),
	)
	if err != nil {
		log.Fatalf("failed to create in_flight counter: %v", err)
	}

	requestDuration, err = meter.Float64Histogram(
		"bulkrunner.executor.duration",
		metric.WithDescription("Request latency"),
		metric.WithUnit("s"),
	)
	if err != nil {
		log.Fatalf("failed to create duration histogram: %v", err)
	}
}

// MetricsListener records request counts and latencies as OpenTelemetry
// metrics.
type MetricsListener struct {
	attrs metric.MeasurementOption
}

var _ Listener = (*MetricsListener)(nil)

// NewMetricsListener tags every measurement with the given operation name,
// such as "load" or "unload".
func NewMetricsListener(operation string) *MetricsListener {
	return &MetricsListener{attrs: metric.WithAttributes(attribute.String("operation", operation))}
}

func requestKind(s statement.Statement) attribute.KeyValue {
	if b, ok := s.(*statement.Batch); ok {
		return attribute.String("request", b.Type.String()+"_batch")
	}
	return attribute.String("request", "single")
}

func (m *MetricsListener) OnExecutionStarted(ctx context.Context, s statement.Statement) {
	requestsStarted.Add(ctx, 1, m.attrs, metric.WithAttributes(requestKind(s)))
	statementsSent.Add(ctx, int64(statement.Len(s)), m.attrs)
	requestsInFlight.Add(ctx, 1, m.attrs)
}

func (m *MetricsListener) OnExecutionSucceeded(ctx context.Context, s statement.Statement, elapsed time.Duration) {
	requestsSucceeded.Add(ctx, 1, m.attrs, metric.WithAttributes(requestKind(s)))
	requestsInFlight.Add(ctx, -1, m.attrs)
	requestDuration.Record(ctx, elapsed.Seconds(), m.attrs, metric.WithAttributes(attribute.Bool("success", true)))
}

func (m *MetricsListener) OnExecutionFailed(ctx context.Context, s statement.Statement, _ error, elapsed time.Duration) {
	requestsFailed.Add(ctx, 1, m.attrs, metric.WithAttributes(requestKind(s)))
	requestsInFlight.Add(ctx, -1, m.attrs)
	requestDuration.Record(ctx, elapsed.Seconds(), m.attrs, metric.WithAttributes(attribute.Bool("success", false)))
}

func (m *MetricsListener) OnRowReceived(ctx context.Context, _ *statement.Bound) {
	rowsReceived.Add(ctx, 1, m.attrs)
}
