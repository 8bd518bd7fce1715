// Package perfevent provides access to the Linux kernel's performance
// monitoring facility: the event types that can be counted, counter
// configuration and grouping, and reading of time-multiplexed counters.
package perfevent

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"
)

// EventType identifies one countable event as the kernel knows it.
type EventType struct {
	Name   string
	Type   uint32 // perf_event_attr.type
	Config uint64 // perf_event_attr.config
}

// HardwareEvents are the generalized hardware events, mapped by the kernel
// onto the PMU of the running processor.
var HardwareEvents = []EventType{
	{"cpu-cycles", unix.PERF_TYPE_HARDWARE, unix.PERF_COUNT_HW_CPU_CYCLES},
	{"instructions", unix.PERF_TYPE_HARDWARE, unix.PERF_COUNT_HW_INSTRUCTIONS},
	{"cache-references", unix.PERF_TYPE_HARDWARE, unix.PERF_COUNT_HW_CACHE_REFERENCES},
	{"cache-misses", unix.PERF_TYPE_HARDWARE, unix.PERF_COUNT_HW_CACHE_MISSES},
	{"branch-instructions", unix.PERF_TYPE_HARDWARE, unix.PERF_COUNT_HW_BRANCH_INSTRUCTIONS},
	{"branch-misses", unix.PERF_TYPE_HARDWARE, unix.PERF_COUNT_HW_BRANCH_MISSES},
	{"bus-cycles", unix.PERF_TYPE_HARDWARE, unix.PERF_COUNT_HW_BUS_CYCLES},
	{"stalled-cycles-frontend", unix.PERF_TYPE_HARDWARE, unix.PERF_COUNT_HW_STALLED_CYCLES_FRONTEND},
	{"stalled-cycles-backend", unix.PERF_TYPE_HARDWARE, unix.PERF_COUNT_HW_STALLED_CYCLES_BACKEND},
	{"ref-cpu-cycles", unix.PERF_TYPE_HARDWARE, unix.PERF_COUNT_HW_REF_CPU_CYCLES},
}

// SoftwareEvents are counted by the kernel itself and are available on every
// system.
var SoftwareEvents = []EventType{
	{"cpu-clock", unix.PERF_TYPE_SOFTWARE, unix.PERF_COUNT_SW_CPU_CLOCK},
	{"task-clock", unix.PERF_TYPE_SOFTWARE, unix.PERF_COUNT_SW_TASK_CLOCK},
	{"page-faults", unix.PERF_TYPE_SOFTWARE, unix.PERF_COUNT_SW_PAGE_FAULTS},
	{"context-switches", unix.PERF_TYPE_SOFTWARE, unix.PERF_COUNT_SW_CONTEXT_SWITCHES},
	{"cpu-migrations", unix.PERF_TYPE_SOFTWARE, unix.PERF_COUNT_SW_CPU_MIGRATIONS},
	{"minor-faults", unix.PERF_TYPE_SOFTWARE, unix.PERF_COUNT_SW_PAGE_FAULTS_MIN},
	{"major-faults", unix.PERF_TYPE_SOFTWARE, unix.PERF_COUNT_SW_PAGE_FAULTS_MAJ},
	{"alignment-faults", unix.PERF_TYPE_SOFTWARE, unix.PERF_COUNT_SW_ALIGNMENT_FAULTS},
	{"emulation-faults", unix.PERF_TYPE_SOFTWARE, unix.PERF_COUNT_SW_EMULATION_FAULTS},
}

// HardwareCacheEvents are the generalized cache events, one per supported
// combination of cache, operation, and result, e.g., "L1-dcache-load-misses".
var HardwareCacheEvents = generateHardwareCacheEvents()

// hardware cache event config layout: cache | (op << 8) | (result << 16)
var hwCaches = []struct {
	name   string
	config uint64
}{
	{"L1-dcache", unix.PERF_COUNT_HW_CACHE_L1D},
	{"L1-icache", unix.PERF_COUNT_HW_CACHE_L1I},
	{"LLC", unix.PERF_COUNT_HW_CACHE_LL},
	{"dTLB", unix.PERF_COUNT_HW_CACHE_DTLB},
	{"iTLB", unix.PERF_COUNT_HW_CACHE_ITLB},
	{"branch", unix.PERF_COUNT_HW_CACHE_BPU},
}
var hwCacheOps = []struct {
	name   string
	config uint64
}{
	{"load", unix.PERF_COUNT_HW_CACHE_OP_READ},
	{"store", unix.PERF_COUNT_HW_CACHE_OP_WRITE},
	{"prefetch", unix.PERF_COUNT_HW_CACHE_OP_PREFETCH},
}
var hwCacheResults = []struct {
	suffix string
	config uint64
}{
	{"s", unix.PERF_COUNT_HW_CACHE_RESULT_ACCESS},
	{"-misses", unix.PERF_COUNT_HW_CACHE_RESULT_MISS},
}

func generateHardwareCacheEvents() []EventType {
	events := make([]EventType, 0, len(hwCaches)*len(hwCacheOps)*len(hwCacheResults))
	for _, cache := range hwCaches {
		for _, op := range hwCacheOps {
			for _, result := range hwCacheResults {
				events = append(events, EventType{
					Name:   cache.name + "-" + op.name + result.suffix,
					Type:   unix.PERF_TYPE_HW_CACHE,
					Config: cache.config | op.config<<8 | result.config<<16,
				})
			}
		}
	}
	return events
}

// FindTypeByName returns the event type with the given name, nil if there is
// no such event.
func FindTypeByName(name string) *EventType {
	for _, events := range [][]EventType{HardwareEvents, SoftwareEvents, HardwareCacheEvents} {
		for i := range events {
			if events[i].Name == name {
				return &events[i]
			}
		}
	}
	return nil
}

// IsSupported reports whether the running kernel and processor can count the
// event. The probe opens a counter on the calling thread and closes it right
// away. Kernel space is excluded from the probe so that events are reported
// supported even where kernel counting needs more privilege.
func (t *EventType) IsSupported() bool {
	attr := t.attr()
	attr.Bits |= unix.PerfBitDisabled | unix.PerfBitExcludeKernel | unix.PerfBitExcludeHv
	fd, err := unix.PerfEventOpen(&attr, 0, -1, -1, unix.PERF_FLAG_FD_CLOEXEC)
	if err != nil {
		return false
	}
	_ = unix.Close(fd)
	return true
}

func (t *EventType) attr() unix.PerfEventAttr {
	var attr unix.PerfEventAttr
	attr.Type = t.Type
	attr.Size = uint32(unsafe.Sizeof(attr))
	attr.Config = t.Config
	return attr
}

// IsClockEvent reports whether the named event counts nanoseconds rather
// than occurrences.
func IsClockEvent(name string) bool {
	return name == "cpu-clock" || name == "task-clock"
}

// ParseNameAndModifier splits an event specification of the form
// "name[:modifier]". The supported modifiers are "u", count in user space
// only, and "k", count in kernel space only.
func ParseNameAndModifier(spec string) (name string, modifier string, err error) {
	name, modifier, found := strings.Cut(spec, ":")
	if !found {
		return name, "", nil
	}
	if modifier != "u" && modifier != "k" {
		return "", "", fmt.Errorf("invalid modifier %q in event %q, expected u or k", modifier, spec)
	}
	return name, modifier, nil
}
