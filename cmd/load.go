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

	"github.com/spf13/cobra"

	"github.com/cardinalhq/bulkrunner/internal/connector"
	"github.com/cardinalhq/bulkrunner/internal/workflow"
)

var loadFlags = map[string]string{
	"connector.skip_records": "skip-records",
	"connector.max_records":  "max-records",
	"batch.enabled":          "batch",
	"batch.mode":             "batch-mode",
	"batch.type":             "batch-type",
	"schema.workers":         "mapping-workers",
}

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load records from a CSV or JSON-lines source into a table",
	Example: `  bulkrunner load -u data.csv -t people --db-url postgres://localhost/app
  cat events.jsonl | bulkrunner load --format json -t events -m "ts = created_at, id = id"`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runOperation(cmd, "load", lookupFlags(cmd, commonFlags, loadFlags), runLoad)
	},
}

func init() {
	addCommonFlags(loadCmd)
	f := loadCmd.Flags()
	f.Int64("skip-records", 0, "number of records to skip at the start of the input")
	f.Int64("max-records", 0, "maximum number of records to read; 0 means all")
	f.Bool("batch", true, "group statements sharing a locality key into batches")
	f.String("batch-mode", "", "batch grouping: PARTITION_KEY or REPLICA_SET")
	f.String("batch-type", "", "batch atomicity: UNLOGGED or LOGGED")
	f.Int("mapping-workers", 0, "number of goroutines mapping records; above one loses input order")
}

func runLoad(ctx context.Context, op *operation) workflow.Summary {
	batcher, err := op.cfg.Batch.Build(op.cfg.Cluster)
	if err != nil {
		return aborted(op.name, err)
	}
	records, err := connector.NewReader(ctx, op.cfg.Connector)
	if err != nil {
		return aborted(op.name, err)
	}
	load := &workflow.Load{
		Records:         records,
		Mapper:          op.mapper,
		Executor:        op.executor,
		Logs:            op.logs,
		Batcher:         batcher,
		BatchBufferSize: op.cfg.Batch.BufferSize,
		MappingWorkers:  op.cfg.Schema.Workers,
	}
	return load.Run(ctx)
}
