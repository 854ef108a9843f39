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
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/bulkrunner/internal/connector"
	"github.com/cardinalhq/bulkrunner/internal/logctx"
	"github.com/cardinalhq/bulkrunner/internal/workflow"
)

var unloadFlags = map[string]string{
	"schema.splits":       "splits",
	"executor.fetch_size": "fetch-size",
}

var unloadCmd = &cobra.Command{
	Use:   "unload",
	Short: "Unload a table into a CSV or JSON-lines destination",
	Example: `  bulkrunner unload -t people -u people.csv --db-url postgres://localhost/app
  bulkrunner unload -t events --format json --splits 8 > events.jsonl`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runOperation(cmd, "unload", lookupFlags(cmd, commonFlags, unloadFlags), runUnload)
	},
}

func init() {
	addCommonFlags(unloadCmd)
	f := unloadCmd.Flags()
	f.Int("splits", 0, "number of concurrent reads the table is divided into")
	f.Int("fetch-size", 0, "rows per page fetched from the database")
}

func runUnload(ctx context.Context, op *operation) workflow.Summary {
	writer, err := connector.NewWriter(op.cfg.Connector)
	if err != nil {
		return aborted(op.name, err)
	}
	unload := &workflow.Unload{
		Mapper:   op.mapper,
		Executor: op.executor,
		Logs:     op.logs,
		Writer:   writer,
		Splits:   op.cfg.Schema.Splits,
	}
	summary := unload.Run(ctx)
	if err := writer.Close(); err != nil {
		logctx.FromContext(ctx).Error("Failed to close output", slog.Any("error", err))
		if summary.Err == nil {
			summary.Err = err
			summary.Status = workflow.AbortedFatalError
		}
	}
	return summary
}
