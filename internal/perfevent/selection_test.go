package perfevent

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"
)

func TestAddEventType(t *testing.T) {
	s := NewSelectionSet()
	assert.True(t, s.Empty())

	err := s.AddEventType("cpu-cycles")
	assert.NoError(t, err)
	err = s.AddEventType("branch-misses:u")
	assert.NoError(t, err)
	assert.False(t, s.Empty())

	// one scheduling group per event
	assert.Len(t, s.groups, 2)
	assert.Equal(t, 0, s.groups[0][0].GroupID)
	assert.Equal(t, 1, s.groups[1][0].GroupID)
	assert.Equal(t, "cpu-cycles", s.groups[0][0].Name())
	assert.Equal(t, "branch-misses:u", s.groups[1][0].Name())
	assert.Equal(t, "u", s.groups[1][0].Modifier)

	err = s.AddEventType("not-an-event")
	assert.Error(t, err)
	err = s.AddEventType("cpu-cycles:z")
	assert.Error(t, err)
}

func TestAddEventGroup(t *testing.T) {
	s := NewSelectionSet()
	err := s.AddEventGroup([]string{"branch-misses", "branch-instructions"})
	assert.NoError(t, err)

	// both selections share one scheduling group
	assert.Len(t, s.groups, 1)
	assert.Len(t, s.groups[0], 2)
	assert.Equal(t, s.groups[0][0].GroupID, s.groups[0][1].GroupID)

	err = s.AddEventGroup([]string{"cpu-cycles", "not-an-event"})
	assert.Error(t, err)
	err = s.AddEventGroup([]string{})
	assert.Error(t, err)
}

func TestAttrBits(t *testing.T) {
	s := NewSelectionSet()
	err := s.AddEventType("cpu-cycles:u")
	assert.NoError(t, err)
	err = s.AddEventType("cpu-cycles:k")
	assert.NoError(t, err)
	sel := s.groups[0][0]

	attr := s.attrFor(sel, true)
	assert.Equal(t, uint32(unix.PERF_TYPE_HARDWARE), attr.Type)
	assert.Equal(t, uint64(unix.PERF_COUNT_HW_CPU_CYCLES), attr.Config)
	expectedFormat := uint64(unix.PERF_FORMAT_TOTAL_TIME_ENABLED | unix.PERF_FORMAT_TOTAL_TIME_RUNNING | unix.PERF_FORMAT_ID)
	assert.Equal(t, expectedFormat, attr.Read_format)

	// counters follow children by default
	assert.NotZero(t, attr.Bits&unix.PerfBitInherit)
	s.SetInherit(false)
	attr = s.attrFor(sel, true)
	assert.Zero(t, attr.Bits&unix.PerfBitInherit)

	// the user space modifier excludes kernel and hypervisor counting
	assert.NotZero(t, attr.Bits&unix.PerfBitExcludeKernel)
	assert.NotZero(t, attr.Bits&unix.PerfBitExcludeHv)
	assert.Zero(t, attr.Bits&unix.PerfBitExcludeUser)

	// the kernel space modifier excludes user and hypervisor counting
	attr = s.attrFor(s.groups[1][0], true)
	assert.NotZero(t, attr.Bits&unix.PerfBitExcludeUser)
	assert.NotZero(t, attr.Bits&unix.PerfBitExcludeHv)
	assert.Zero(t, attr.Bits&unix.PerfBitExcludeKernel)

	// without the exec gate, counters start enabled
	assert.Zero(t, attr.Bits&unix.PerfBitDisabled)
	assert.Zero(t, attr.Bits&unix.PerfBitEnableOnExec)

	// with the exec gate, only the group leader starts disabled
	s.SetEnableOnExec(true)
	attr = s.attrFor(sel, true)
	assert.NotZero(t, attr.Bits&unix.PerfBitDisabled)
	assert.NotZero(t, attr.Bits&unix.PerfBitEnableOnExec)
	attr = s.attrFor(sel, false)
	assert.Zero(t, attr.Bits&unix.PerfBitDisabled)
	assert.Zero(t, attr.Bits&unix.PerfBitEnableOnExec)
}

func TestMonitoredPairs(t *testing.T) {
	tests := []struct {
		name     string
		target   Target
		expected []monitoredPair
		err      bool
	}{
		{
			name:     "system-wide on explicit cpus",
			target:   Target{SystemWide: true, CPUs: []int{0, 2}},
			expected: []monitoredPair{{-1, 0}, {-1, 2}},
		},
		{
			name:     "threads on any cpu",
			target:   Target{TIDs: []int{10, 11}},
			expected: []monitoredPair{{10, AnyCPU}, {11, AnyCPU}},
		},
		{
			name:     "threads crossed with cpus",
			target:   Target{TIDs: []int{10, 11}, CPUs: []int{0, 1}},
			expected: []monitoredPair{{10, 0}, {10, 1}, {11, 0}, {11, 1}},
		},
		{
			name:   "nothing to monitor",
			target: Target{},
			err:    true,
		},
	}

	s := NewSelectionSet()
	err := s.AddEventType("cpu-cycles")
	assert.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pairs, err := s.monitoredPairs(tt.target)
			if tt.err {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, pairs)
		})
	}
}
