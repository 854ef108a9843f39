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

package connector

import (
	"fmt"

	"go.opentelemetry.io/otel"
	otelmetric "go.opentelemetry.io/otel/metric"
)

var (
	rowsIn     otelmetric.Int64Counter
	rowsOut    otelmetric.Int64Counter
	rowsFailed otelmetric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/bulkrunner/internal/connector")

	var err error
	rowsIn, err = meter.Int64Counter(
		"bulkrunner.connector.rows.in",
		otelmetric.WithDescription("Number of records read from the input resource"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create rows.in counter: %w", err))
	}

	rowsOut, err = meter.Int64Counter(
		"bulkrunner.connector.rows.out",
		otelmetric.WithDescription("Number of records written to the output resource"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create rows.out counter: %w", err))
	}

	rowsFailed, err = meter.Int64Counter(
		"bulkrunner.connector.rows.failed",
		otelmetric.WithDescription("Number of input lines that could not be parsed"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create rows.failed counter: %w", err))
	}
}
