// Package iers loads UT1−UTC correction tables. The table file is the one
// artifact the simulator consumes from disk: whitespace-separated rows of
// MJD and offset in seconds, with '#' comment lines.
package iers

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Entry is one tabulated UT1−UTC offset.
type Entry struct {
	MJD    float64
	Offset float64 // seconds
}

// Table holds UT1−UTC offsets sorted by MJD. Immutable after load.
type Table struct {
	entries []Entry
}

// Load reads a table from a file.
func Load(path string, logger *slog.Logger) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening UT1-UTC table: %w", err)
	}
	defer f.Close()
	return Parse(f, logger)
}

// Parse reads MJD/offset rows from r. Malformed rows are skipped with a
// warning log.
func Parse(r io.Reader, logger *slog.Logger) (*Table, error) {
	scanner := bufio.NewScanner(r)
	var entries []Entry
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			logger.Warn("skipping short UT1-UTC row", "line", lineno)
			continue
		}
		mjd, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			logger.Warn("skipping UT1-UTC row with bad MJD", "line", lineno, "value", fields[0])
			continue
		}
		off, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			logger.Warn("skipping UT1-UTC row with bad offset", "line", lineno, "value", fields[1])
			continue
		}
		entries = append(entries, Entry{MJD: mjd, Offset: off})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading UT1-UTC table: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("UT1-UTC table contains no usable rows")
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].MJD < entries[j].MJD })
	return &Table{entries: entries}, nil
}

// Len returns the number of tabulated rows.
func (t *Table) Len() int { return len(t.entries) }

// OffsetAt returns the UT1−UTC offset in seconds at an MJD: linear
// interpolation inside the table range, clamped to the end values outside.
func (t *Table) OffsetAt(mjd float64) float64 {
	n := len(t.entries)
	if mjd <= t.entries[0].MJD {
		return t.entries[0].Offset
	}
	if mjd >= t.entries[n-1].MJD {
		return t.entries[n-1].Offset
	}
	i := sort.Search(n, func(k int) bool { return t.entries[k].MJD > mjd })
	a, b := t.entries[i-1], t.entries[i]
	if b.MJD == a.MJD {
		return a.Offset
	}
	f := (mjd - a.MJD) / (b.MJD - a.MJD)
	return a.Offset + f*(b.Offset-a.Offset)
}
