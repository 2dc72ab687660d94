// Copyright 2024 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads the defaults of the agbench command. Sources are
// applied in increasing priority: built-in defaults, a config file, then
// AGBENCH_* environment variables. Command-line flags override all of them.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

const envPrefix = "AGBENCH_"

// FileNames are the config files searched for in the working directory
// when no explicit path is given.
var FileNames = []string{"agbench.yaml", "agbench.yml", "agbench.json"}

// Config holds the defaults of every agbench subcommand.
type Config struct {
	// Records is the path of the record file used by gen and bench.
	Records string `koanf:"records"`
	// Order is the order of generated records: sequence or random.
	Order string `koanf:"order"`
	// Seed seeds random record generation and concurrent workloads. Zero
	// picks a seed from the clock.
	Seed int64 `koanf:"seed"`
	// Ops lists the operation counts run by bench.
	Ops []int `koanf:"ops"`
	// Strings makes bench use decimal string keys on a table with a 16-bit
	// hash and report the load of every bucket.
	Strings bool `koanf:"strings"`
	// Keys is the number of keys inserted by gen, distinct, sparse and read.
	Keys int `koanf:"keys"`
	// KeyRange bounds the random keys of the concurrent workload.
	KeyRange int `koanf:"key-range"`
	// OpsPerWorker is the number of operations each concurrent worker runs.
	OpsPerWorker int `koanf:"ops-per-worker"`
	// Workers is the number of parallel readers of the read workload.
	Workers int `koanf:"workers"`
	// Mode is the locking mode of the concurrent workload: linear,
	// table-lock or bucket-lock.
	Mode string `koanf:"mode"`
	// InitialBuckets is the initial bucket count of every table.
	InitialBuckets int `koanf:"initial-buckets"`
}

// DefaultOps are the operation counts of bench when none are configured.
var DefaultOps = []int{50_000, 1_000_000}

// Default returns the built-in defaults. Ops is left empty so that a
// configured list replaces DefaultOps rather than merging with it.
func Default() *Config {
	return &Config{
		Records:        "records.in",
		Order:          "random",
		Keys:           1_000_000,
		KeyRange:       100_000,
		OpsPerWorker:   1_000_000,
		Workers:        8,
		Mode:           "bucket-lock",
		InitialBuckets: 16,
	}
}

// Load returns the configuration read from path, or from the first of
// FileNames found in the working directory if path is empty, overlaid with
// the environment. A missing config file is not an error unless path was
// given explicitly.
func Load(path string) (*Config, string, error) {
	k := koanf.New(".")

	if path == "" {
		for _, name := range FileNames {
			if _, err := os.Stat(name); err == nil {
				path = name
				break
			}
		}
	}
	if path != "" {
		if err := loadFile(k, path); err != nil {
			return nil, "", errors.Wrapf(err, "reading config file %s", path)
		}
	}

	if err := k.Load(env.ProviderWithValue(envPrefix, "", envKey), nil); err != nil {
		return nil, "", errors.Wrap(err, "loading environment variables")
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, "", errors.Wrap(err, "unmarshaling config")
	}
	if len(cfg.Ops) == 0 {
		cfg.Ops = DefaultOps
	}
	return cfg, path, nil
}

func loadFile(k *koanf.Koanf, path string) error {
	var parser koanf.Parser
	switch filepath.Ext(path) {
	case ".json":
		parser = json.Parser()
	case ".yaml", ".yml":
		parser = yaml.Parser()
	default:
		return errors.Errorf("unknown config file extension %q", filepath.Ext(path))
	}
	return k.Load(file.Provider(path), parser)
}

// envKey maps AGBENCH_KEY_RANGE to key-range. Comma separated values become
// lists.
func envKey(key, value string) (string, interface{}) {
	key = strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(key, envPrefix), "_", "-"))
	if key == "ops" {
		return key, strings.Split(value, ",")
	}
	return key, value
}
