package trace

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snsim/snsim/internal/sim"
)

func sampleEntries() []sim.TraceEntry {
	return []sim.TraceEntry{
		{
			Tick: 0, ActiveJobs: 2, ActiveServices: 1, GeneratedJobs: 2, AbortedJobs: 0, DeclinedJobs: 0,
			AccRevenue: 0, AccPenalty: 0,
			Resources:   map[string]map[string]float64{"pool-a": {"cpu": 0.25, "mem": 0.75}},
			ResourceAvg: 0.5,
		},
		{
			Tick: 1, ActiveJobs: 1, ActiveServices: 1, GeneratedJobs: 0, AbortedJobs: 1, DeclinedJobs: 0,
			AccRevenue: 10, AccPenalty: 4,
			Resources:   map[string]map[string]float64{"pool-a": {"cpu": 0.5, "mem": 0.5}},
			ResourceAvg: 0.5,
		},
	}
}

func TestWriteTickTrace_HeaderHasDynamicResourceColumns(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTickTrace(&buf, sampleEntries()))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.GreaterOrEqual(t, len(lines), 1)
	header := lines[0]
	assert.True(t, strings.HasPrefix(header, "#"))
	assert.Contains(t, header, "resourcecpu")
	assert.Contains(t, header, "resourcemem")
	assert.Contains(t, header, "resourceAvg")
}

func TestWriteTickTrace_RoundTripsThroughReadTickTrace(t *testing.T) {
	var buf bytes.Buffer
	entries := sampleEntries()
	require.NoError(t, WriteTickTrace(&buf, entries))

	rows, err := ReadTickTrace(&buf)
	require.NoError(t, err)
	require.Len(t, rows, len(entries))

	for i, row := range rows {
		assert.Equal(t, entries[i].Tick, row.Tick)
		assert.Equal(t, entries[i].ActiveJobs, row.ActiveJobs)
		assert.Equal(t, entries[i].ActiveServices, row.ActiveServices)
		assert.Equal(t, entries[i].GeneratedJobs, row.GeneratedJobs)
		assert.Equal(t, entries[i].AbortedJobs, row.AbortedJobs)
		assert.Equal(t, entries[i].DeclinedJobs, row.DeclinedJobs)
		assert.InDelta(t, entries[i].AccRevenue, row.AccRevenue, 1e-6)
		assert.InDelta(t, entries[i].AccPenalty, row.AccPenalties, 1e-6)
		assert.InDelta(t, entries[i].ResourceAvg, row.ResourceAvg, 1e-6)
		for name, level := range entries[i].Resources["pool-a"] {
			assert.InDelta(t, level, row.Resources[name], 1e-6)
		}
	}
}

func TestReadTickTrace_RejectsMissingHeader(t *testing.T) {
	_, err := ReadTickTrace(strings.NewReader("0 1 1 1 0 0 0.1 0.1 0.0 0.0 0.0\n"))
	require.Error(t, err)
}

func TestReadTickTrace_RejectsWrongFieldCount(t *testing.T) {
	r := strings.NewReader("#tick activeJobs activeServices generatedJobs abortedJobs declinedJobs accBiddings accPenalties accRevenue resourceAvg\n0 1 1\n")
	_, err := ReadTickTrace(r)
	require.Error(t, err)
}

func TestWriteBouncerTrace_HeaderAndRows(t *testing.T) {
	entries := []sim.BouncerTraceEntry{
		{Tick: 0, BaseValue: 1.5, Tendency: 0.1, NewJobs: 2, Derivative: 0.01, Quota: 0.9},
		{Tick: 1, BaseValue: 1.6, Tendency: 0.2, NewJobs: 0, Derivative: 0.02, Quota: 0.8},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteBouncerTrace(&buf, entries))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "#tick basevalue tendency newJobs derivative quota", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "0 "))
	assert.True(t, strings.HasPrefix(lines[2], "1 "))
}

func TestResourceColumns_SortedAndDeduplicated(t *testing.T) {
	entries := []sim.TraceEntry{
		{Resources: map[string]map[string]float64{"pool-a": {"mem": 1}, "pool-b": {"cpu": 1}}},
		{Resources: map[string]map[string]float64{"pool-a": {"cpu": 1}}},
	}
	assert.Equal(t, []string{"cpu", "mem"}, resourceColumns(entries))
}
