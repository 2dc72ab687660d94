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

package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cockroachdb/aghash/internal/logger"
	"github.com/cockroachdb/aghash/internal/workload"
	"github.com/urfave/cli/v3"
)

func keysFlag() cli.Flag {
	return &cli.IntFlag{
		Name:    "keys",
		Aliases: []string{"n"},
		Usage:   "Number of keys to insert.",
	}
}

func distinctCommand() *cli.Command {
	return &cli.Command{
		Name:  "distinct",
		Usage: "Insert 0..n-1 with the identity hash and report the table counters",
		Flags: []cli.Flag{keysFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := configFrom(ctx)
			w := cmd.Root().Writer

			res, err := workload.Distinct(intOr(cmd, "keys", cfg.Keys), cfg.InitialBuckets)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s %s ms\n", labelStyle.Render("Time elapsed:"), millis(res.Elapsed))
			fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Distinct keys:"), comma(res.Len))
			fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Buckets:"), comma(res.BucketCount))
			printStats(w, res.Stats)
			return nil
		},
	}
}

func sparseCommand() *cli.Command {
	return &cli.Command{
		Name:  "sparse",
		Usage: "Insert keys spread " + strconv.Itoa(workload.SparseStride) + " apart with the identity hash",
		Flags: []cli.Flag{keysFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := configFrom(ctx)
			w := cmd.Root().Writer

			res, err := workload.Sparse(intOr(cmd, "keys", cfg.Keys), cfg.InitialBuckets)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Successful insertions:"), comma(res.Inserted))
			fmt.Fprintf(w, "%s %s ms\n", labelStyle.Render("Time elapsed:"), millis(res.Elapsed))
			fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Buckets:"), comma(res.BucketCount))
			return nil
		},
	}
}

func concurrentCommand() *cli.Command {
	return &cli.Command{
		Name:  "concurrent",
		Usage: "Run insert, find and erase passes over random keys at the same time",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Usage: "Locking mode: linear, table-lock or bucket-lock."},
			&cli.IntFlag{Name: "ops", Usage: "Number of operations per pass."},
			&cli.IntFlag{Name: "key-range", Usage: "Keys are drawn from [0, key-range)."},
			&cli.Int64Flag{Name: "seed", Usage: "Seed of the key generators. Defaults to the clock."},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := configFrom(ctx)
			l := logger.From(ctx)
			w := cmd.Root().Writer

			mode, err := workload.ParseMode(stringOr(cmd, "mode", cfg.Mode))
			if err != nil {
				return err
			}
			opts := workload.ConcurrentOptions{
				Mode:           mode,
				Ops:            intOr(cmd, "ops", cfg.OpsPerWorker),
				KeyRange:       intOr(cmd, "key-range", cfg.KeyRange),
				Seed:           seed(cmd, cfg.Seed),
				InitialBuckets: cfg.InitialBuckets,
			}
			l.Debug("running concurrent workload", "mode", mode.String(), "ops", opts.Ops,
				"key-range", opts.KeyRange, "seed", opts.Seed)

			res, err := workload.Concurrent(ctx, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s %s\n", titleStyle.Render("Mode:"), mode)
			fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Successful finds:"), comma(res.Found))
			fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Successful insertions:"), comma(res.Inserted))
			fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Successful erasures:"), comma(res.Erased))
			fmt.Fprintf(w, "%s %s ms\n", labelStyle.Render("Time elapsed:"), millis(res.Elapsed))
			printStats(w, res.Stats)
			return nil
		},
	}
}

func readCommand() *cli.Command {
	return &cli.Command{
		Name:  "read",
		Usage: "Insert 0..n-1 then look every key up from parallel readers",
		Flags: []cli.Flag{
			keysFlag(),
			&cli.IntFlag{Name: "workers", Aliases: []string{"w"}, Usage: "Number of parallel readers."},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := configFrom(ctx)
			w := cmd.Root().Writer

			res, err := workload.Read(ctx, intOr(cmd, "keys", cfg.Keys),
				intOr(cmd, "workers", cfg.Workers), cfg.InitialBuckets)
			if err != nil {
				return err
			}
			t := newTable("Reader", "Found").alignRight(0, 1)
			for i, hits := range res.Hits {
				t.add(strconv.Itoa(i), comma(hits))
			}
			fmt.Fprintln(w, t)
			fmt.Fprintf(w, "%s %s ms\n", labelStyle.Render("Time elapsed:"), millis(res.Elapsed))
			return nil
		},
	}
}
