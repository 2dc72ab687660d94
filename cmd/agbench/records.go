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
	"io"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/cockroachdb/aghash/internal/logger"
	"github.com/cockroachdb/aghash/internal/records"
	"github.com/cockroachdb/aghash/internal/workload"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"
)

func recordsFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "records",
		Aliases: []string{"f"},
		Usage:   "Path of the record file.",
	}
}

func stringOr(cmd *cli.Command, name, fallback string) string {
	if cmd.IsSet(name) {
		return cmd.String(name)
	}
	return fallback
}

func intOr(cmd *cli.Command, name string, fallback int) int {
	if cmd.IsSet(name) {
		return cmd.Int(name)
	}
	return fallback
}

func boolOr(cmd *cli.Command, name string, fallback bool) bool {
	if cmd.IsSet(name) {
		return cmd.Bool(name)
	}
	return fallback
}

func seed(cmd *cli.Command, fallback int64) int64 {
	if cmd.IsSet("seed") {
		return cmd.Int64("seed")
	}
	if fallback != 0 {
		return fallback
	}
	return time.Now().UnixNano()
}

func genCommand() *cli.Command {
	return &cli.Command{
		Name:  "gen",
		Usage: "Write a record file of insert, find and erase keys",
		Flags: []cli.Flag{
			recordsFlag(),
			&cli.IntFlag{Name: "keys", Aliases: []string{"n"}, Usage: "Number of records per operation type."},
			&cli.StringFlag{Name: "order", Usage: "Order of the records: sequence or random."},
			&cli.Int64Flag{Name: "seed", Usage: "Seed of the random order. Defaults to the clock."},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := configFrom(ctx)
			l := logger.From(ctx)

			order, err := records.ParseOrder(stringOr(cmd, "order", cfg.Order))
			if err != nil {
				return err
			}
			n := intOr(cmd, "keys", cfg.Keys)
			path := stringOr(cmd, "records", cfg.Records)

			f, err := os.Create(path)
			if err != nil {
				return errors.Wrap(err, "creating record file")
			}
			rng := rand.New(rand.NewSource(seed(cmd, cfg.Seed)))
			if err := records.Generate(f, n, order, rng); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return errors.Wrap(err, "closing record file")
			}
			l.Info("wrote records", "file", path, "records", n, "order", order.String())
			return nil
		},
	}
}

func benchCommand() *cli.Command {
	return &cli.Command{
		Name:      "bench",
		Usage:     "Time insert, find and erase on a table and the builtin map",
		ArgsUsage: "[ops...]",
		Flags: []cli.Flag{
			recordsFlag(),
			&cli.BoolFlag{
				Name:  "strings",
				Usage: "Use decimal string keys on a table with a 16-bit hash and print the load of every bucket.",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := configFrom(ctx)
			l := logger.From(ctx)
			w := cmd.Root().Writer

			ops := cfg.Ops
			if cmd.Args().Len() > 0 {
				ops = nil
				for _, a := range cmd.Args().Slice() {
					n, err := strconv.Atoi(a)
					if err != nil || n < 0 {
						return errors.Errorf("invalid operation count %q", a)
					}
					ops = append(ops, n)
				}
			}

			path := stringOr(cmd, "records", cfg.Records)
			f, err := os.Open(path)
			if err != nil {
				return errors.Wrap(err, "opening record file")
			}
			defer f.Close()

			start := time.Now()
			recs, err := records.Load(f)
			if err != nil {
				return errors.Wrapf(err, "loading %s", path)
			}
			l.Info("read records", "file", path, "records", recs.Len(), "elapsed", time.Since(start))

			strs := boolOr(cmd, "strings", cfg.Strings)
			for _, n := range ops {
				if strs {
					res, err := workload.BenchStrings(recs, n, cfg.InitialBuckets)
					if err != nil {
						l.Warn("skipping benchmark", "ops", n, "error", err)
						continue
					}
					printTimings(w, n, res.Timings)
					printBucketLoads(w, res)
					continue
				}

				timings, err := workload.Bench(recs, n, cfg.InitialBuckets)
				if err != nil {
					l.Warn("skipping benchmark", "ops", n, "error", err)
					continue
				}
				printTimings(w, n, timings)
			}
			return nil
		},
	}
}

func printTimings(w io.Writer, ops int, timings []workload.Timing) {
	fmt.Fprintf(w, "\n%s\n", titleStyle.Render(comma(ops)+" operations of each type"))
	t := newTable("Operation", "Class", "Successful", "Time (ms)").alignRight(2, 3)
	for _, tm := range timings {
		t.add(tm.Op, tm.Impl, comma(tm.Successful), millis(tm.Elapsed))
	}
	fmt.Fprintln(w, t)
}

// printBucketLoads writes the keys and distinct hashes of every occupied
// bucket followed by the table counters.
func printBucketLoads(w io.Writer, res workload.StringResult) {
	t := newTable("Bucket", "Key Count", "Unique Hash Count").alignRight(0, 1, 2)
	for _, b := range res.Buckets {
		t.add(comma(b.Bucket), comma(b.Keys), comma(b.Distinct))
	}
	fmt.Fprintln(w, t)
	fmt.Fprintf(w, "%s %s bytes\n", labelStyle.Render("Memory used:"), comma(res.Stats.BytesAllocated))
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Buckets:"), comma(res.BucketCount))
	printStats(w, res.Stats)
}
