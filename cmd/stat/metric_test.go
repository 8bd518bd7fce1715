package stat

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func writeMetricFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "metrics.yaml")
	err := os.WriteFile(path, []byte(content), 0600)
	if err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMetricDefinitions(t *testing.T) {
	path := writeMetricFile(t, `
- name: cycles per instruction
  expression: "[cpu-cycles] / instructions"
- name: fault rate
  expression: "[page-faults] / duration"
`)
	metrics, err := loadMetricDefinitions(path)
	assert.NoError(t, err)
	if assert.Len(t, metrics, 2) {
		assert.Equal(t, "cycles per instruction", metrics[0].Name)
		assert.Equal(t, "fault rate", metrics[1].Name)
		assert.NotNil(t, metrics[0].Evaluable)
		assert.NotNil(t, metrics[1].Evaluable)
	}
}

func TestLoadMetricDefinitionsErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "missing name",
			content: "- expression: \"1 + 1\"\n",
		},
		{
			name:    "missing expression",
			content: "- name: incomplete\n",
		},
		{
			name:    "malformed expression",
			content: "- name: broken\n  expression: \"instructions +\"\n",
		},
		{
			name:    "not yaml",
			content: "{{{",
		},
		{
			name:    "empty file",
			content: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeMetricFile(t, tt.content)
			_, err := loadMetricDefinitions(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadMetricDefinitionsMissingFile(t *testing.T) {
	_, err := loadMetricDefinitions(filepath.Join(t.TempDir(), "no-such-file.yaml"))
	assert.Error(t, err)
}

func TestEvaluateMetrics(t *testing.T) {
	path := writeMetricFile(t, `
- name: cycles per instruction
  expression: "[cpu-cycles] / instructions"
- name: ghz
  expression: "[cpu-cycles] / duration / 1000000000"
- name: biggest
  expression: "max(instructions, [cpu-cycles])"
- name: unknown event
  expression: "[branch-misses] / duration"
`)
	metricDefs, err := loadMetricDefinitions(path)
	assert.NoError(t, err)

	summaries := newCounterSummaries(tableStyle)
	summaries.Add("cpu-cycles", "", 0, 2000000000, 1.0, false)
	summaries.Add("instructions", "", 0, 1000000000, 1.0, false)

	metrics := evaluateMetrics(metricDefs, summaries, 2.0)
	if assert.Len(t, metrics, 3, "the metric referencing an uncounted event should be skipped") {
		assert.Equal(t, metricValue{name: "cycles per instruction", value: "2"}, metrics[0])
		assert.Equal(t, metricValue{name: "ghz", value: "1"}, metrics[1])
		assert.Equal(t, metricValue{name: "biggest", value: "2e+09"}, metrics[2])
	}
}

func TestEvaluateMetricsModifiedEvents(t *testing.T) {
	path := writeMetricFile(t, `
- name: kernel share
  expression: "[page-faults:k] / ([page-faults:k] + [page-faults:u])"
`)
	metricDefs, err := loadMetricDefinitions(path)
	assert.NoError(t, err)

	summaries := newCounterSummaries(tableStyle)
	summaries.Add("page-faults", "u", 0, 75, 1.0, false)
	summaries.Add("page-faults", "k", 1, 25, 1.0, false)

	metrics := evaluateMetrics(metricDefs, summaries, 1.0)
	if assert.Len(t, metrics, 1) {
		assert.Equal(t, metricValue{name: "kernel share", value: "0.25"}, metrics[0])
	}
}

func TestEvaluateMetricsNone(t *testing.T) {
	summaries := newCounterSummaries(tableStyle)
	assert.Nil(t, evaluateMetrics(nil, summaries, 1.0))
}

func TestFormatMetricValue(t *testing.T) {
	assert.Equal(t, "2", formatMetricValue(2.0))
	assert.Equal(t, "0.25", formatMetricValue(0.25))
	assert.Equal(t, "2e+09", formatMetricValue(2e9))
	assert.Equal(t, "1.3333333", formatMetricValue(4.0/3.0))
}
