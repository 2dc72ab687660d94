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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, path, err := Load("")
	require.NoError(t, err)
	require.Empty(t, path)

	want := Default()
	want.Ops = DefaultOps
	require.Equal(t, want, cfg)
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "bench.yaml", `
records: data/random_all.in
ops: [10, 20, 30]
key-range: 500
mode: table-lock
`)

	cfg, used, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, path, used)
	require.Equal(t, "data/random_all.in", cfg.Records)
	require.Equal(t, []int{10, 20, 30}, cfg.Ops)
	require.Equal(t, 500, cfg.KeyRange)
	require.Equal(t, "table-lock", cfg.Mode)
	// Untouched keys keep their defaults.
	require.Equal(t, Default().Workers, cfg.Workers)
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "bench.json", `{"ops": [5], "workers": 2}`)

	cfg, _, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, []int{5}, cfg.Ops)
	require.Equal(t, 2, cfg.Workers)
}

func TestSearchWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "agbench.json", `{"keys": 42}`)
	t.Chdir(dir)

	cfg, used, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "agbench.json", used)
	require.Equal(t, 42, cfg.Keys)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "bench.yaml", "key-range: 500\nworkers: 3\n")
	t.Setenv("AGBENCH_KEY_RANGE", "1000")
	t.Setenv("AGBENCH_OPS", "1,2")
	t.Setenv("AGBENCH_INITIAL_BUCKETS", "1")
	t.Setenv("AGBENCH_STRINGS", "true")

	cfg, _, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 1000, cfg.KeyRange)
	require.Equal(t, 3, cfg.Workers)
	require.Equal(t, []int{1, 2}, cfg.Ops)
	require.Equal(t, 1, cfg.InitialBuckets)
	require.True(t, cfg.Strings)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, _, err := Load(filepath.Join(dir, "missing.yaml"))
	require.ErrorContains(t, err, "reading config file")

	path := writeFile(t, dir, "bench.toml", "keys = 1")
	_, _, err = Load(path)
	require.ErrorContains(t, err, "unknown config file extension")

	path = writeFile(t, dir, "bad.json", "{")
	_, _, err = Load(path)
	require.Error(t, err)
}
