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

package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/cardinalhq/bulkrunner/internal/batcher"
	"github.com/cardinalhq/bulkrunner/internal/codec"
	"github.com/cardinalhq/bulkrunner/internal/connector"
	"github.com/cardinalhq/bulkrunner/internal/driver/pgdriver"
	"github.com/cardinalhq/bulkrunner/internal/executor"
	"github.com/cardinalhq/bulkrunner/internal/logmanager"
	"github.com/cardinalhq/bulkrunner/internal/mapping"
)

// Config aggregates configuration for the application.
// Each field is owned by its respective package.
type Config struct {
	Executor  executor.Config       `mapstructure:"executor"`
	Batch     batcher.Config        `mapstructure:"batch"`
	Cluster   batcher.ClusterConfig `mapstructure:"cluster"`
	Codec     codec.Config          `mapstructure:"codec"`
	Log       logmanager.Config     `mapstructure:"log"`
	Connector connector.Config      `mapstructure:"connector"`
	Schema    mapping.Config        `mapstructure:"schema"`
	Driver    pgdriver.Config       `mapstructure:"driver"`
}

func defaults() *Config {
	return &Config{
		Executor:  executor.DefaultConfig(),
		Batch:     batcher.DefaultConfig(),
		Cluster:   batcher.DefaultClusterConfig(),
		Codec:     codec.DefaultConfig(),
		Log:       logmanager.DefaultConfig(),
		Connector: connector.DefaultConfig(),
		Schema:    mapping.DefaultConfig(),
		Driver:    pgdriver.DefaultConfig(),
	}
}

// Load reads configuration from an optional file, environment variables and
// command line flags, in increasing order of precedence. Environment
// variables use the prefix "BULKRUNNER" and the dot character in keys is
// replaced by an underscore. For example, "executor.max_in_flight" becomes
// "BULKRUNNER_EXECUTOR_MAX_IN_FLIGHT".
//
// flags maps configuration keys to the flags that override them; a flag
// only wins when it was set on the command line.
func Load(path string, flags map[string]*pflag.Flag) (*Config, error) {
	cfg := defaults()

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("bulkrunner")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix("BULKRUNNER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading configuration: %w", err)
		}
	}
	for key, flag := range flags {
		if flag == nil || !flag.Changed {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, fmt.Errorf("binding flag %s: %w", flag.Name, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// bindEnvs registers all keys within cfg so that viper will look up
// corresponding environment variables when unmarshalling.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(parts, tag)
		if f.Type.Kind() == reflect.Struct {
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		}
		_ = v.BindEnv(strings.Join(key, "."))
	}
}
