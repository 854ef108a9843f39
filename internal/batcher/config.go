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

package batcher

import (
	"fmt"

	"github.com/cardinalhq/bulkrunner/internal/statement"
)

// Config controls batching during a load.
type Config struct {
	Enabled bool   `mapstructure:"enabled"`
	Mode    string `mapstructure:"mode"`
	Type    string `mapstructure:"type"`
	// MaxBatchStatements splits larger groups. Zero means no limit.
	MaxBatchStatements int `mapstructure:"max_batch_statements"`
	// BufferSize is the number of statements grouped together. Zero
	// groups the whole input at once.
	BufferSize int `mapstructure:"buffer_size"`
}

// ClusterConfig describes the replicas used for replica-set batching.
type ClusterConfig struct {
	Hosts             []string `mapstructure:"hosts"`
	ReplicationFactor int      `mapstructure:"replication_factor"`
}

func DefaultConfig() Config {
	return Config{
		Enabled:            true,
		Mode:               ModePartitionKey.String(),
		Type:               statement.Unlogged.String(),
		MaxBatchStatements: 32,
		BufferSize:         512,
	}
}

func DefaultClusterConfig() ClusterConfig {
	return ClusterConfig{ReplicationFactor: 3}
}

// Build returns the configured batcher, or nil when batching is disabled.
func (c Config) Build(cluster ClusterConfig) (*Batcher, error) {
	if !c.Enabled {
		return nil, nil
	}
	mode, err := ParseMode(c.Mode)
	if err != nil {
		return nil, err
	}
	batchType, err := statement.ParseBatchType(c.Type)
	if err != nil {
		return nil, err
	}
	if c.BufferSize < 0 {
		return nil, fmt.Errorf("batch buffer size must not be negative, got %d", c.BufferSize)
	}
	opts := []Option{
		WithMode(mode),
		WithBatchType(batchType),
		WithMaxBatchStatements(c.MaxBatchStatements),
	}
	if mode == ModeReplicaSet && len(cluster.Hosts) > 0 {
		opts = append(opts, WithTopology(NewRendezvousTopology(cluster.Hosts, cluster.ReplicationFactor)))
	}
	return New(opts...)
}
