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

// Command agbench generates record files and runs workloads against
// aghash tables.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/cockroachdb/aghash/internal/config"
	"github.com/cockroachdb/aghash/internal/logger"
	isatty "github.com/mattn/go-isatty"
	"github.com/urfave/cli/v3"
)

// globalFlags returns the flags that are available on all commands.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to a YAML or JSON config file. Defaults to agbench.yaml or agbench.json in the working directory.",
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output logs as JSON. Set to true if stdout is not a TTY.",
		},
		&cli.StringFlag{
			Name:    "log-level",
			Aliases: []string{"l"},
			Value:   "info",
			Usage:   "Set the log level. One of: trace, debug, info, warn, error.",
		},
		&cli.IntFlag{
			Name:  "initial-buckets",
			Usage: "Initial bucket count of every table.",
		},
	}
}

type configKey struct{}

func withConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

func configFrom(ctx context.Context) *config.Config {
	if cfg, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return cfg
	}
	return config.Default()
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:   "agbench",
		Usage:  titleStyle.Render("Benchmarks and workloads for aggregate hash tables"),
		Writer: os.Stdout,
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			var opts []logger.Option
			if cmd.Bool("json") {
				opts = append(opts, logger.WithHandler(logger.JSONHandler))
			}
			if os.Getenv("LOG_LEVEL") == "" || cmd.IsSet("log-level") {
				opts = append(opts, logger.WithLevel(logger.ParseLevel(cmd.String("log-level"))))
			}
			l := logger.New(opts...)
			ctx = logger.WithContext(ctx, l)

			cfg, path, err := config.Load(cmd.String("config"))
			if err != nil {
				return ctx, err
			}
			if path != "" {
				l.Debug("using config", "file", path)
			}
			if cmd.IsSet("initial-buckets") {
				cfg.InitialBuckets = cmd.Int("initial-buckets")
			}
			return withConfig(ctx, cfg), nil
		},
		Flags: globalFlags(),
		Commands: []*cli.Command{
			genCommand(),
			benchCommand(),
			distinctCommand(),
			sparseCommand(),
			concurrentCommand(),
			readCommand(),
		},
	}
}

func main() {
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		// Always use JSON when not in a terminal
		os.Setenv("LOG_HANDLER", "json")
	}

	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
