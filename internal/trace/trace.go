// Package trace writes the per-tick trace file and the bouncer trace
// file, the two external collaborator contracts fixed by spec.md
// section 6: whitespace-separated text, one header line starting with
// "#", then one line per tick.
package trace

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/snsim/snsim/internal/sim"
)

// resourceColumns returns the sorted, de-duplicated set of resource
// names across every pool in entries, so the header's resource columns
// are stable regardless of map iteration order.
func resourceColumns(entries []sim.TraceEntry) []string {
	seen := make(map[string]struct{})
	for _, e := range entries {
		for _, levels := range e.Resources {
			for name := range levels {
				seen[name] = struct{}{}
			}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// meanResourceLevel returns the mean normalised level of the named
// resource across every pool that defines it in entry.
func meanResourceLevel(entry sim.TraceEntry, name string) float64 {
	var sum float64
	var n int
	for _, levels := range entry.Resources {
		if v, ok := levels[name]; ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// WriteTickTrace writes the per-tick trace file:
// "tick activeJobs activeServices generatedJobs abortedJobs declinedJobs
// resource<Name>... accBiddings accPenalties accRevenue resourceAvg",
// with one resource<Name> column per distinct resource name across
// every pool, normalised levels and accumulators to 2 decimals.
func WriteTickTrace(w io.Writer, entries []sim.TraceEntry) error {
	bw := bufio.NewWriter(w)

	resources := resourceColumns(entries)
	header := "#tick activeJobs activeServices generatedJobs abortedJobs declinedJobs"
	for _, name := range resources {
		header += " resource" + name
	}
	header += " accBiddings accPenalties accRevenue resourceAvg"
	if _, err := fmt.Fprintln(bw, header); err != nil {
		return err
	}

	for _, e := range entries {
		line := fmt.Sprintf("%d %d %d %d %d %d", e.Tick, e.ActiveJobs, e.ActiveServices, e.GeneratedJobs, e.AbortedJobs, e.DeclinedJobs)
		for _, name := range resources {
			line += fmt.Sprintf(" %.2f", meanResourceLevel(e, name))
		}
		line += fmt.Sprintf(" %.2f %.2f %.2f %.2f", 0.0, e.AccPenalty, e.AccRevenue, e.ResourceAvg)
		if _, err := fmt.Fprintln(bw, line); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteTickTraceFile is WriteTickTrace against a file path, creating or
// truncating it.
func WriteTickTraceFile(path string, entries []sim.TraceEntry) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return WriteTickTrace(f, entries)
}

// WriteBouncerTrace writes the bouncer trace file:
// "tick basevalue tendency newJobs derivative quota".
func WriteBouncerTrace(w io.Writer, entries []sim.BouncerTraceEntry) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintln(bw, "#tick basevalue tendency newJobs derivative quota"); err != nil {
		return err
	}
	for _, e := range entries {
		line := fmt.Sprintf("%d %.6f %.6f %d %.6f %.6f", e.Tick, e.BaseValue, e.Tendency, e.NewJobs, e.Derivative, e.Quota)
		if _, err := fmt.Fprintln(bw, line); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteBouncerTraceFile is WriteBouncerTrace against a file path,
// creating or truncating it.
func WriteBouncerTraceFile(path string, entries []sim.BouncerTraceEntry) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return WriteBouncerTrace(f, entries)
}

// Row is one parsed line of a per-tick trace file: the fixed leading
// columns, the dynamic resource<Name> columns in file order, and the
// trailing accumulators.
type Row struct {
	Tick                                       int
	ActiveJobs, ActiveServices, GeneratedJobs  int
	AbortedJobs, DeclinedJobs                  int
	Resources                                  map[string]float64
	AccBiddings, AccPenalties, AccRevenue, ResourceAvg float64
}

// ReadTickTrace parses a per-tick trace file written by WriteTickTrace.
func ReadTickTrace(r io.Reader) ([]Row, error) {
	scanner := bufio.NewScanner(r)
	var resourceNames []string
	var rows []Row
	first := true
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if first {
			first = false
			if !strings.HasPrefix(line, "#") {
				return nil, fmt.Errorf("trace: expected header line, got %q", line)
			}
			fields := strings.Fields(strings.TrimPrefix(line, "#"))
			for _, f := range fields {
				if strings.HasPrefix(f, "resource") && f != "resourceAvg" {
					resourceNames = append(resourceNames, strings.TrimPrefix(f, "resource"))
				}
			}
			continue
		}
		fields := strings.Fields(line)
		want := 6 + len(resourceNames) + 4
		if len(fields) != want {
			return nil, fmt.Errorf("trace: expected %d fields, got %d in line %q", want, len(fields), line)
		}
		row := Row{Resources: make(map[string]float64, len(resourceNames))}
		ints := make([]int, 6)
		for i := 0; i < 6; i++ {
			v, err := strconv.Atoi(fields[i])
			if err != nil {
				return nil, fmt.Errorf("trace: field %d: %w", i, err)
			}
			ints[i] = v
		}
		row.Tick, row.ActiveJobs, row.ActiveServices, row.GeneratedJobs, row.AbortedJobs, row.DeclinedJobs =
			ints[0], ints[1], ints[2], ints[3], ints[4], ints[5]

		idx := 6
		for _, name := range resourceNames {
			v, err := strconv.ParseFloat(fields[idx], 64)
			if err != nil {
				return nil, fmt.Errorf("trace: resource %s: %w", name, err)
			}
			row.Resources[name] = v
			idx++
		}
		tail := make([]float64, 4)
		for i := 0; i < 4; i++ {
			v, err := strconv.ParseFloat(fields[idx+i], 64)
			if err != nil {
				return nil, fmt.Errorf("trace: trailing field %d: %w", i, err)
			}
			tail[i] = v
		}
		row.AccBiddings, row.AccPenalties, row.AccRevenue, row.ResourceAvg = tail[0], tail[1], tail[2], tail[3]
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}
