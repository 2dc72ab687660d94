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
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/cockroachdb/aghash"
	humanize "github.com/dustin/go-humanize"
)

var (
	primary = lipgloss.Color("#2c9b63")
	feint   = lipgloss.AdaptiveColor{Light: "#999999", Dark: "#888888"}

	titleStyle  = lipgloss.NewStyle().Bold(true)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(primary)
	labelStyle  = lipgloss.NewStyle().Foreground(feint)
	cellStyle   = lipgloss.NewStyle().PaddingLeft(1).PaddingRight(1)
)

// comma formats n with thousand separators.
func comma[T ~int | ~int64](n T) string {
	return humanize.Comma(int64(n))
}

func millis(d time.Duration) string {
	return comma(d.Milliseconds())
}

// table is a bordered result table. Numeric columns are right aligned.
type table struct {
	headers []string
	numeric []bool
	rows    [][]string
}

func newTable(headers ...string) *table {
	return &table{headers: headers, numeric: make([]bool, len(headers))}
}

func (t *table) alignRight(cols ...int) *table {
	for _, c := range cols {
		t.numeric[c] = true
	}
	return t
}

func (t *table) add(cells ...string) {
	if len(cells) != len(t.headers) {
		panic(fmt.Sprintf("row has %d cells, table has %d columns", len(cells), len(t.headers)))
	}
	t.rows = append(t.rows, cells)
}

func (t *table) String() string {
	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, r := range t.rows {
		for i, c := range r {
			widths[i] = max(widths[i], lipgloss.Width(c))
		}
	}

	line := func(cells []string, style lipgloss.Style) string {
		parts := make([]string, len(cells))
		for i, c := range cells {
			s := cellStyle.Copy().Width(widths[i] + 2)
			if t.numeric[i] {
				s = s.Align(lipgloss.Right)
			}
			parts[i] = s.Render(style.Render(c))
		}
		return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
	}

	lines := []string{line(t.headers, headerStyle)}
	for _, r := range t.rows {
		lines = append(lines, line(r, lipgloss.NewStyle()))
	}
	return lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		Render(strings.Join(lines, "\n"))
}

// printStats writes labelled table counters, one per line.
func printStats(w io.Writer, stats aghash.Stats) {
	kv := []struct {
		label string
		value int64
	}{
		{"Allocations", stats.Allocs},
		{"Deletions", stats.Frees},
		{"Allocation amount", stats.BytesAllocated},
		{"Resizes", stats.Resizes},
		{"Failed resizes", stats.FailedResizes},
	}
	for _, e := range kv {
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render(e.label+":"), comma(e.value))
	}
}
