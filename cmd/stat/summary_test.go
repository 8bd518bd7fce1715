package stat

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"testing"

	"perfstat/internal/perfevent"

	"github.com/stretchr/testify/assert"
)

func TestAddAggregated(t *testing.T) {
	tests := []struct {
		name          string
		readouts      []perfevent.CounterReadout
		expectedCount uint64
		expectedScale float64
	}{
		{
			name: "counted all the time",
			readouts: []perfevent.CounterReadout{
				{Value: 100, TimeEnabled: 1000, TimeRunning: 1000},
				{Value: 200, TimeEnabled: 1000, TimeRunning: 1000},
			},
			expectedCount: 300,
			expectedScale: 1.0,
		},
		{
			name: "multiplexed half the time",
			readouts: []perfevent.CounterReadout{
				{Value: 100, TimeEnabled: 1000, TimeRunning: 500},
				{Value: 100, TimeEnabled: 1000, TimeRunning: 500},
			},
			expectedCount: 200,
			expectedScale: 2.0,
		},
		{
			name: "never scheduled readout is skipped",
			readouts: []perfevent.CounterReadout{
				{Value: 100, TimeEnabled: 1000, TimeRunning: 1000},
				{Value: 999, TimeEnabled: 1000, TimeRunning: 0},
			},
			expectedCount: 100,
			expectedScale: 1.0,
		},
		{
			name: "nothing scheduled",
			readouts: []perfevent.CounterReadout{
				{Value: 999, TimeEnabled: 1000, TimeRunning: 0},
			},
			expectedCount: 0,
			expectedScale: 1.0,
		},
		{
			name: "running exceeds enabled",
			readouts: []perfevent.CounterReadout{
				{Value: 100, TimeEnabled: 1000, TimeRunning: 1001},
			},
			expectedCount: 100,
			expectedScale: 1.0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summaries := newCounterSummaries(tableStyle)
			summaries.addAggregated(perfevent.SelectionReadouts{
				Selection: &perfevent.Selection{Type: perfevent.FindTypeByName("cpu-cycles"), GroupID: 0},
				Readouts:  tt.readouts,
			})
			assert.Len(t, summaries.summaries, 1)
			summary := summaries.summaries[0]
			assert.Equal(t, tt.expectedCount, summary.Count, "unexpected aggregated count")
			assert.Equal(t, tt.expectedScale, summary.Scale, "unexpected scale")
			assert.GreaterOrEqual(t, summary.Scale, 1.0, "scale must never drop below 1")
		})
	}
}

func TestAutoGenerateSummaries(t *testing.T) {
	summaries := newCounterSummaries(tableStyle)
	summaries.Add("branch-misses", "u", 0, 20, 1.0, false)
	summaries.Add("branch-misses", "k", 1, 30, 1.0, false)
	summaries.autoGenerateSummaries()
	assert.Len(t, summaries.summaries, 3, "one summary should be synthesized")
	generated := summaries.Find("branch-misses", "")
	if assert.NotNil(t, generated) {
		assert.Equal(t, uint64(50), generated.Count, "synthesized count should be the sum of the halves")
		assert.True(t, generated.AutoGenerated)
	}
	// a second pass must not synthesize a duplicate
	summaries.autoGenerateSummaries()
	assert.Len(t, summaries.summaries, 3, "synthesis should be idempotent")
}

func TestAutoGenerateSummariesSkipped(t *testing.T) {
	// an unmodified summary already exists
	summaries := newCounterSummaries(tableStyle)
	summaries.Add("cpu-cycles", "", 0, 100, 1.0, false)
	summaries.Add("cpu-cycles", "u", 1, 20, 1.0, false)
	summaries.Add("cpu-cycles", "k", 2, 30, 1.0, false)
	summaries.autoGenerateSummaries()
	assert.Len(t, summaries.summaries, 3, "existing unmodified summary should suppress synthesis")

	// the halves weren't counted over the same time
	summaries = newCounterSummaries(tableStyle)
	summaries.Add("cpu-cycles", "u", 0, 20, 1.0, false)
	summaries.Add("cpu-cycles", "k", 1, 30, 1.5, false)
	summaries.autoGenerateSummaries()
	assert.Len(t, summaries.summaries, 2, "halves counted at different times should not be combined")

	// no kernel half at all
	summaries = newCounterSummaries(tableStyle)
	summaries.Add("cpu-cycles", "u", 0, 20, 1.0, false)
	summaries.autoGenerateSummaries()
	assert.Len(t, summaries.summaries, 1)
}

func TestMonitoredAtTheSameTime(t *testing.T) {
	tests := []struct {
		name     string
		a        *CounterSummary
		b        *CounterSummary
		expected bool
	}{
		{
			name:     "same group",
			a:        &CounterSummary{GroupID: 3, Scale: 2.0},
			b:        &CounterSummary{GroupID: 3, Scale: 3.0},
			expected: true,
		},
		{
			name:     "different groups, both run all the time",
			a:        &CounterSummary{GroupID: 0, Scale: 1.0},
			b:        &CounterSummary{GroupID: 1, Scale: 1.000009},
			expected: true,
		},
		{
			name:     "different groups, one multiplexed",
			a:        &CounterSummary{GroupID: 0, Scale: 1.0},
			b:        &CounterSummary{GroupID: 1, Scale: 1.00002},
			expected: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.a.MonitoredAtTheSameTime(tt.b))
			assert.Equal(t, tt.expected, tt.b.MonitoredAtTheSameTime(tt.a))
		})
	}
}

func TestReadableCount(t *testing.T) {
	tableSummaries := newCounterSummaries(tableStyle)
	csvSummaries := newCounterSummaries(csvStyle)

	tableSummaries.Add("instructions", "", 0, 1234567, 1.0, false)
	assert.Equal(t, "1,234,567", tableSummaries.summaries[0].ReadableCount, "table counts get digit grouping")

	csvSummaries.Add("instructions", "", 0, 1234567, 1.0, false)
	assert.Equal(t, "1234567", csvSummaries.summaries[0].ReadableCount, "csv counts stay ungrouped")

	// clock counts are nanoseconds, shown as milliseconds
	tableSummaries.Add("task-clock", "", 1, 2000000, 1.0, false)
	assert.Equal(t, "2.000000(ms)", tableSummaries.summaries[1].ReadableCount)

	csvSummaries.Add("cpu-clock", "", 1, 2000000, 1.0, false)
	assert.Equal(t, "2.000000(ms)", csvSummaries.summaries[1].ReadableCount)
}

func TestCommentForSummary(t *testing.T) {
	tests := []struct {
		name     string
		typeName string
		modifier string
		count    uint64
		scale    float64
		duration float64
		expected string
	}{
		{
			name:     "task-clock reports cpus used",
			typeName: "task-clock",
			count:    2000000000, // 2s on cpu
			scale:    1.0,
			duration: 2.0,
			expected: "1.000000 cpus used",
		},
		{
			name:     "cpu-clock has no comment",
			typeName: "cpu-clock",
			count:    2000000000,
			scale:    1.0,
			duration: 2.0,
			expected: "",
		},
		{
			name:     "cpu-cycles reports clock rate",
			typeName: "cpu-cycles",
			count:    3600000000,
			scale:    1.0,
			duration: 1.0,
			expected: "3.600000 GHz",
		},
		{
			name:     "giga rate",
			typeName: "bus-cycles",
			count:    2000000000,
			scale:    1.0,
			duration: 1.0,
			expected: "2.000 G/sec",
		},
		{
			name:     "mega rate",
			typeName: "context-switches",
			count:    5000000,
			scale:    1.0,
			duration: 1.0,
			expected: "5.000 M/sec",
		},
		{
			name:     "kilo rate at the threshold",
			typeName: "page-faults",
			count:    1000,
			scale:    1.0,
			duration: 1.0,
			expected: "1.000 K/sec",
		},
		{
			name:     "plain rate",
			typeName: "cpu-migrations",
			count:    5,
			scale:    1.0,
			duration: 1.0,
			expected: "5.000 /sec",
		},
		{
			name:     "rate adjusted for multiplexing",
			typeName: "page-faults",
			count:    1000,
			scale:    2.0,
			duration: 2.0,
			expected: "1.000 K/sec",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summaries := newCounterSummaries(tableStyle)
			summaries.Add(tt.typeName, tt.modifier, 0, tt.count, tt.scale, false)
			summaries.generateComments(tt.duration)
			assert.Equal(t, tt.expected, summaries.summaries[0].Comment)
		})
	}
}

func TestCommentCyclesPerInstruction(t *testing.T) {
	summaries := newCounterSummaries(tableStyle)
	summaries.Add("cpu-cycles", "", 0, 2000000000, 1.0, false)
	summaries.Add("instructions", "", 0, 1000000000, 1.0, false)
	summaries.generateComments(1.0)
	assert.Equal(t, "2.000000 cycles per instruction", summaries.Find("instructions", "").Comment)

	// without a cycles summary counted at the same time, fall back to the rate
	summaries = newCounterSummaries(tableStyle)
	summaries.Add("cpu-cycles", "", 0, 2000000000, 1.5, false)
	summaries.Add("instructions", "", 1, 1000000000, 1.0, false)
	summaries.generateComments(1.0)
	assert.Equal(t, "1.000 G/sec", summaries.Find("instructions", "").Comment)

	// a zero instruction count can't form a ratio
	summaries = newCounterSummaries(tableStyle)
	summaries.Add("cpu-cycles", "", 0, 2000000000, 1.0, false)
	summaries.Add("instructions", "", 0, 0, 1.0, false)
	summaries.generateComments(1.0)
	assert.Equal(t, "0.000 /sec", summaries.Find("instructions", "").Comment)
}

func TestCommentMissRate(t *testing.T) {
	summaries := newCounterSummaries(tableStyle)
	summaries.Add("branch-misses", "", 0, 50, 1.0, false)
	summaries.Add("branch-instructions", "", 0, 1000, 1.0, false)
	summaries.generateComments(1.0)
	assert.Equal(t, "5.000000% miss rate", summaries.Find("branch-misses", "").Comment)

	// modifiers must match for the pairing
	summaries = newCounterSummaries(tableStyle)
	summaries.Add("cache-misses", "u", 0, 50, 1.0, false)
	summaries.Add("cache-references", "u", 0, 1000, 1.0, false)
	summaries.generateComments(1.0)
	assert.Equal(t, "5.000000% miss rate", summaries.Find("cache-misses", "u").Comment)

	// generated cache event names pair by trimming the suffix
	summaries = newCounterSummaries(tableStyle)
	summaries.Add("L1-dcache-load-misses", "", 0, 1, 1.0, false)
	summaries.Add("L1-dcache-loads", "", 0, 100, 1.0, false)
	summaries.generateComments(1.0)
	assert.Equal(t, "1.000000% miss rate", summaries.Find("L1-dcache-load-misses", "").Comment)

	// a zero reference count can't form a rate, fall back
	summaries = newCounterSummaries(tableStyle)
	summaries.Add("branch-misses", "", 0, 50, 1.0, false)
	summaries.Add("branch-instructions", "", 0, 0, 1.0, false)
	summaries.generateComments(1.0)
	assert.Equal(t, "50.000 /sec", summaries.Find("branch-misses", "").Comment)
}

func TestCommentSeparatorCSV(t *testing.T) {
	summaries := newCounterSummaries(csvStyle)
	summaries.Add("task-clock", "", 0, 2000000000, 1.0, false)
	summaries.Add("context-switches", "", 1, 5000000, 1.0, false)
	summaries.generateComments(2.0)
	assert.Equal(t, "1.000000,cpus used", summaries.Find("task-clock", "").Comment)
	assert.Equal(t, "2.500,M/sec", summaries.Find("context-switches", "").Comment)
}

func TestMissReferenceName(t *testing.T) {
	tests := []struct {
		typeName string
		expected string
	}{
		{"cache-misses", "cache-references"},
		{"branch-misses", "branch-instructions"},
		{"L1-dcache-load-misses", "L1-dcache-loads"},
		{"LLC-store-misses", "LLC-stores"},
		{"iTLB-prefetch-misses", "iTLB-prefetchs"},
		{"instructions", ""},
		{"cpu-cycles", ""},
	}
	for _, tt := range tests {
		t.Run(tt.typeName, func(t *testing.T) {
			assert.Equal(t, tt.expected, missReferenceName(tt.typeName))
		})
	}
}

func TestSummarizeCounters(t *testing.T) {
	results := []perfevent.SelectionReadouts{
		{
			Selection: &perfevent.Selection{Type: perfevent.FindTypeByName("branch-misses"), Modifier: "u", GroupID: 0},
			Readouts:  []perfevent.CounterReadout{{Value: 20, TimeEnabled: 1000, TimeRunning: 1000}},
		},
		{
			Selection: &perfevent.Selection{Type: perfevent.FindTypeByName("branch-misses"), Modifier: "k", GroupID: 1},
			Readouts:  []perfevent.CounterReadout{{Value: 30, TimeEnabled: 1000, TimeRunning: 1000}},
		},
		{
			Selection: &perfevent.Selection{Type: perfevent.FindTypeByName("branch-instructions"), Modifier: "u", GroupID: 2},
			Readouts:  []perfevent.CounterReadout{{Value: 1000, TimeEnabled: 1000, TimeRunning: 1000}},
		},
	}
	summaries := summarizeCounters(results, 1.0, tableStyle)
	assert.Len(t, summaries.summaries, 4, "expected three aggregated summaries plus one synthesized")
	assert.Equal(t, "2.000000% miss rate", summaries.Find("branch-misses", "u").Comment)
	generated := summaries.Find("branch-misses", "")
	if assert.NotNil(t, generated) {
		assert.Equal(t, uint64(50), generated.Count)
		assert.True(t, generated.AutoGenerated)
	}
}
