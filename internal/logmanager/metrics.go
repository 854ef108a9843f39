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

package logmanager

import (
	"context"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var loggedErrors metric.Int64Counter

func init() {
	meter := otel.Meter("github.com/cardinalhq/bulkrunner/internal/logmanager")

	var err error
	loggedErrors, err = meter.Int64Counter(
		"bulkrunner.logmanager.errors",
		metric.WithDescription("Number of failed records logged, by category"),
	)
	if err != nil {
		log.Fatalf("failed to create errors counter: %v", err)
	}
}

func recordErrors(ctx context.Context, c Category, n int) {
	loggedErrors.Add(ctx, int64(n), metric.WithAttributes(attribute.String("category", c.String())))
}
