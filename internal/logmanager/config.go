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
	"github.com/cardinalhq/bulkrunner/internal/statement"
)

// Config controls where failures are logged and when an operation gives up.
type Config struct {
	// Directory is the parent of the per-execution log directories.
	Directory string `mapstructure:"directory"`
	// MaxErrors aborts the operation once that many failures are logged.
	// Zero or less means unlimited.
	MaxErrors           int64  `mapstructure:"max_errors"`
	Verbosity           string `mapstructure:"verbosity"`
	MaxSourceLength     int    `mapstructure:"max_source_length"`
	MaxQueryLength      int    `mapstructure:"max_query_length"`
	MaxBoundValueLength int    `mapstructure:"max_bound_value_length"`
	MaxBoundValues      int    `mapstructure:"max_bound_values"`
	MaxInnerStatements  int    `mapstructure:"max_inner_statements"`
}

func DefaultConfig() Config {
	f := statement.DefaultFormatter()
	return Config{
		Directory:           "./logs",
		MaxErrors:           100,
		Verbosity:           "normal",
		MaxSourceLength:     DefaultMaxSourceLength,
		MaxQueryLength:      f.MaxQueryLength,
		MaxBoundValueLength: f.MaxBoundValueLength,
		MaxBoundValues:      f.MaxBoundValues,
		MaxInnerStatements:  f.MaxInnerStatements,
	}
}

// Options translates the configuration into manager options.
func (c Config) Options() ([]Option, error) {
	verbosity, err := statement.ParseVerbosity(c.Verbosity)
	if err != nil {
		return nil, err
	}
	return []Option{
		WithMaxErrors(c.MaxErrors),
		WithMaxSourceLength(c.MaxSourceLength),
		WithFormatter(statement.Formatter{
			Verbosity:           verbosity,
			MaxQueryLength:      c.MaxQueryLength,
			MaxBoundValueLength: c.MaxBoundValueLength,
			MaxBoundValues:      c.MaxBoundValues,
			MaxInnerStatements:  c.MaxInnerStatements,
		}),
	}, nil
}
