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

import "time"

// Config holds the tunables of an executor. Zero limits mean unlimited.
// FailFast is off by default: failures are then counted by the log manager,
// which decides when the operation gives up.
type Config struct {
	MaxInFlight     int           `mapstructure:"max_in_flight"`
	MaxPerSecond    float64       `mapstructure:"max_per_second"`
	FailFast        bool          `mapstructure:"fail_fast"`
	Workers         int           `mapstructure:"workers"`
	FetchSize       int           `mapstructure:"fetch_size"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

func DefaultConfig() Config {
	return Config{
		MaxInFlight:     1024,
		FetchSize:       DefaultFetchSize,
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

// Options translates the configuration. When Workers is set, requests run
// on a pool of that many goroutines; the pool is returned so the caller can
// close it after the executor.
func (c Config) Options() ([]Option, *WorkerPool) {
	opts := []Option{
		WithFailFast(c.FailFast),
		WithMaxInFlight(c.MaxInFlight),
		WithMaxPerSecond(c.MaxPerSecond),
	}
	if c.ShutdownTimeout > 0 {
		opts = append(opts, WithShutdownTimeout(c.ShutdownTimeout))
	}
	var pool *WorkerPool
	if c.Workers > 0 {
		pool = NewWorkerPool(c.Workers)
		opts = append(opts, WithRunner(pool))
	}
	return opts, pool
}
