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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/cardinalhq/bulkrunner/config"
	"github.com/cardinalhq/bulkrunner/internal/codec"
	"github.com/cardinalhq/bulkrunner/internal/connector"
	"github.com/cardinalhq/bulkrunner/internal/driver/pgdriver"
	"github.com/cardinalhq/bulkrunner/internal/executor"
	"github.com/cardinalhq/bulkrunner/internal/idgen"
	"github.com/cardinalhq/bulkrunner/internal/logctx"
	"github.com/cardinalhq/bulkrunner/internal/logmanager"
	"github.com/cardinalhq/bulkrunner/internal/mapping"
	"github.com/cardinalhq/bulkrunner/internal/workflow"
)

const (
	operationLogName = "operation.log"
	progressInterval = 5 * time.Second
)

// commonFlags maps configuration keys to the flags shared by load and
// unload.
var commonFlags = map[string]string{
	"connector.url":           "url",
	"connector.name":          "format",
	"connector.delimiter":     "delimiter",
	"connector.header":        "header",
	"schema.keyspace":         "keyspace",
	"schema.table":            "table",
	"schema.mapping":          "mapping",
	"log.directory":           "log-dir",
	"log.max_errors":          "max-errors",
	"log.verbosity":           "verbosity",
	"executor.max_in_flight":  "max-in-flight",
	"executor.max_per_second": "max-per-second",
	"executor.fail_fast":      "fail-fast",
	"driver.url":              "db-url",
}

func addCommonFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("url", "u", "", "input or output location: a path, file:// or http(s):// URL, or - for stdin/stdout")
	f.String("format", "", "connector format: csv or json")
	f.String("delimiter", "", "CSV field delimiter")
	f.Bool("header", true, "CSV data starts with a header line")
	f.StringP("keyspace", "k", "", "schema of the table")
	f.StringP("table", "t", "", "table name")
	f.StringP("mapping", "m", "", `field to column mapping, e.g. "id = user_id, name = full_name"`)
	f.String("log-dir", "", "directory receiving one sub-directory of logs per execution")
	f.Int64("max-errors", 0, "abort after that many failures; 0 or less means unlimited")
	f.String("verbosity", "", "statement detail in error logs: abridged, normal or extended")
	f.Int("max-in-flight", 0, "maximum number of concurrent requests")
	f.Float64("max-per-second", 0, "maximum number of statements per second")
	f.Bool("fail-fast", false, "abort on the first failed request")
	f.String("db-url", "", "PostgreSQL connection URL")
}

func lookupFlags(cmd *cobra.Command, keys ...map[string]string) map[string]*pflag.Flag {
	out := map[string]*pflag.Flag{}
	for _, m := range keys {
		for key, name := range m {
			out[key] = cmd.Flags().Lookup(name)
		}
	}
	return out
}

// operation holds the components shared by a load or unload run.
type operation struct {
	name     string
	cfg      *config.Config
	pool     *pgxpool.Pool
	mapper   *mapping.Mapper
	logs     *logmanager.Manager
	executor *executor.Executor
	workers  *executor.WorkerPool
	progress *progressListener
}

func newOperation(ctx context.Context, name string, cfg *config.Config, logDir string) (_ *operation, err error) {
	op := &operation{name: name, cfg: cfg}
	defer func() {
		if err != nil {
			_ = op.close()
		}
	}()

	op.pool, err = pgdriver.NewPool(ctx, cfg.Driver)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	op.mapper, err = buildMapper(ctx, cfg, op.pool)
	if err != nil {
		return nil, err
	}

	logOpts, err := cfg.Log.Options()
	if err != nil {
		return nil, err
	}
	op.logs = logmanager.New(logDir, logOpts...)

	execOpts, workers := cfg.Executor.Options()
	op.workers = workers
	op.progress = &progressListener{}
	execOpts = append(execOpts, executor.WithListener(executor.MultiListener{
		executor.NewMetricsListener(name),
		op.progress,
	}))
	op.executor, err = executor.New(pgdriver.NewSession(op.pool), execOpts...)
	if err != nil {
		return nil, err
	}
	return op, nil
}

// buildMapper resolves the mapping, asking the database for whatever the
// configuration leaves out.
func buildMapper(ctx context.Context, cfg *config.Config, db pgdriver.DB) (*mapping.Mapper, error) {
	schema := cfg.Schema
	if schema.Table == "" {
		return nil, errors.New("no table configured")
	}
	var (
		columns []mapping.Column
		pk      []string
	)
	if len(schema.Columns) == 0 || len(schema.PartitionKey) == 0 {
		var err error
		columns, pk, err = pgdriver.DescribeTable(ctx, db, schema.Keyspace, schema.Table)
		if err != nil {
			return nil, err
		}
	}
	m, err := schema.Build(columns, pk)
	if err != nil {
		return nil, err
	}
	settings, err := cfg.Codec.Settings()
	if err != nil {
		return nil, err
	}
	output := codec.FormatString
	if format, err := cfg.Connector.Format(); err == nil && format == connector.FormatJSON {
		output = codec.FormatJSON
	}
	return mapping.NewMapper(m, codec.NewRegistry(), settings,
		mapping.WithOutputFormat(output),
		mapping.WithFetchSize(cfg.Executor.FetchSize))
}

// close releases everything the operation opened. The executor goes first
// so that no request is outstanding when the pool closes.
func (o *operation) close() error {
	var errs *multierror.Error
	if o.executor != nil {
		errs = multierror.Append(errs, o.executor.Close())
	}
	if o.workers != nil {
		o.workers.Close()
	}
	if o.logs != nil {
		errs = multierror.Append(errs, o.logs.Close())
	}
	if o.pool != nil {
		o.pool.Close()
	}
	return errs.ErrorOrNil()
}

// runOperation loads the configuration, prepares the execution directory
// and telemetry, runs the operation and reports its summary.
func runOperation(cmd *cobra.Command, name string, flags map[string]*pflag.Flag, run func(ctx context.Context, op *operation) workflow.Summary) error {
	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	executionID := idgen.ExecutionID(name, time.Now())
	logDir := filepath.Join(cfg.Log.Directory, executionID)
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	opLog, err := os.OpenFile(filepath.Join(logDir, operationLogName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open operation log: %w", err)
	}
	defer func() { _ = opLog.Close() }()

	doneCtx, doneFx, err := setupTelemetry("bulkrunner-"+name, opLog)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	defer func() {
		if err := doneFx(); err != nil {
			slog.Error("Error shutting down telemetry", slog.Any("error", err))
		}
	}()

	ctx := logctx.WithExecution(logctx.WithLogger(doneCtx, slog.Default()), name, executionID)
	logger := logctx.FromContext(ctx)
	logger.Info("Operation starting", slog.String("logDirectory", logDir))

	op, err := newOperation(ctx, name, cfg, logDir)
	if err != nil {
		logger.Error("Failed to prepare operation", slog.Any("error", err))
		exitStatus = workflow.AbortedFatalError
		return err
	}

	stopProgress := op.progress.start(ctx, progressInterval)
	summary := run(ctx, op)
	stopProgress()
	if err := op.close(); err != nil {
		logger.Error("Failed to close operation", slog.Any("error", err))
	}

	exitStatus = summary.Status
	recordSummary(ctx, summary)
	printSummary(cmd.ErrOrStderr(), summary, executionID, logDir)
	return summary.Err
}

// aborted reports an operation that could not start its workflow.
func aborted(name string, err error) workflow.Summary {
	return workflow.Summary{Operation: name, Status: workflow.AbortedFatalError, Err: err}
}

func printSummary(w io.Writer, s workflow.Summary, executionID, logDir string) {
	fmt.Fprintf(w, "Operation %s %s after %s.\n", executionID, s.Status, s.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "  records: %d  statements: %d  rows: %d  failures: %d\n",
		s.Records, s.Statements, s.Rows, s.TotalFailures())
	if s.TotalFailures() > 0 {
		fmt.Fprintf(w, "  failure details are in %s\n", logDir)
	}
}
