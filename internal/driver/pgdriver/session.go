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

// Package pgdriver executes statements against PostgreSQL through a pgx
// connection pool.
package pgdriver

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgx-contrib/pgxotel"

	"github.com/cardinalhq/bulkrunner/internal/executor"
	"github.com/cardinalhq/bulkrunner/internal/statement"
)

// NewPool opens a traced connection pool.
func NewPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	connString, err := cfg.ConnString()
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, err
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	poolCfg.ConnConfig.Tracer = &pgxotel.QueryTracer{
		Name: "bulkrunner",
	}
	return pgxpool.NewWithConfig(ctx, poolCfg)
}

// DB is the part of *pgxpool.Pool a session uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Begin(ctx context.Context) (pgx.Tx, error)
}

var _ DB = (*pgxpool.Pool)(nil)

var ErrUnmappable = errors.New("unmappable statement cannot be executed")

// Session implements executor.Session. Logged batches run in one
// transaction; unlogged batches are sent in one round trip without one.
type Session struct {
	db DB
}

var _ executor.Session = (*Session)(nil)

func NewSession(db DB) *Session {
	return &Session{db: db}
}

func (s *Session) Exec(ctx context.Context, st statement.Statement) (executor.ExecInfo, error) {
	switch x := st.(type) {
	case *statement.Bound:
		tag, err := s.db.Exec(ctx, x.Query, bindValues(x.Values)...)
		if err != nil {
			return executor.ExecInfo{}, err
		}
		return executor.ExecInfo{RowsAffected: tag.RowsAffected()}, nil
	case *statement.Batch:
		if x.Type == statement.Logged {
			return s.execLogged(ctx, x)
		}
		return sendBatch(ctx, s.db, x)
	case *statement.Unmappable:
		return executor.ExecInfo{}, ErrUnmappable
	}
	return executor.ExecInfo{}, fmt.Errorf("unsupported statement %T", st)
}

func (s *Session) execLogged(ctx context.Context, b *statement.Batch) (executor.ExecInfo, error) {
	var info executor.ExecInfo
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		var err error
		info, err = sendBatch(ctx, tx, b)
		return err
	})
	return info, err
}

type batchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

func sendBatch(ctx context.Context, db batchSender, b *statement.Batch) (executor.ExecInfo, error) {
	batch := &pgx.Batch{}
	for _, child := range b.Statements {
		batch.Queue(child.Query, bindValues(child.Values)...)
	}
	results := db.SendBatch(ctx, batch)
	var info executor.ExecInfo
	for i := range b.Statements {
		tag, err := results.Exec()
		if err != nil {
			_ = results.Close()
			return info, fmt.Errorf("batch statement %d: %w", i+1, err)
		}
		info.RowsAffected += tag.RowsAffected()
	}
	return info, results.Close()
}

func (s *Session) Query(ctx context.Context, st *statement.Bound) (executor.Rows, error) {
	rows, err := s.db.Query(ctx, st.Query, bindValues(st.Values)...)
	if err != nil {
		return nil, err
	}
	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Name
	}
	return &pgRows{rows: rows, columns: columns}, nil
}

// pgRows streams query results; pgx reads them off the connection as Next
// is called.
type pgRows struct {
	rows    pgx.Rows
	columns []string
}

func (r *pgRows) Next() bool        { return r.rows.Next() }
func (r *pgRows) Columns() []string { return r.columns }
func (r *pgRows) Err() error        { return r.rows.Err() }
func (r *pgRows) Close()            { r.rows.Close() }

func (r *pgRows) Values() ([]any, error) {
	values, err := r.rows.Values()
	if err != nil {
		return nil, err
	}
	for i, v := range values {
		values[i] = nativeValue(v)
	}
	return values, nil
}
