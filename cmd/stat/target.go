package stat

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"slices"
	"strconv"

	"perfstat/internal/perfevent"
	"perfstat/internal/util"

	mapset "github.com/deckarep/golang-set/v2"
)

// indirection for testing
var (
	isElevated       = util.IsElevated
	threadsOfProcess = perfevent.ThreadsOfProcess
	threadExists     = perfevent.ThreadExists
)

// resolveTarget turns the target flags into the set of threads and CPUs to
// count on. Process ids expand to the threads the process has right now;
// later threads are picked up through inheritance. A target with neither
// SystemWide nor TIDs set means the caller must supply a workload.
func resolveTarget(systemWide bool, pidArgs []string, tidArgs []string, cpuList string) (perfevent.Target, error) {
	var target perfevent.Target
	if systemWide && (len(pidArgs) > 0 || len(tidArgs) > 0) {
		return target, fmt.Errorf("system-wide collection and existing processes/threads can't be used at the same time")
	}
	if systemWide {
		if !isElevated() {
			return target, fmt.Errorf("system-wide collection requires root privilege")
		}
		target.SystemWide = true
	}
	tids := mapset.NewSet[int]()
	for _, pidArg := range pidArgs {
		pid, err := strconv.Atoi(pidArg)
		if err != nil {
			return target, fmt.Errorf("invalid process id %q", pidArg)
		}
		processTids, err := threadsOfProcess(pid)
		if err != nil {
			return target, err
		}
		tids.Append(processTids...)
	}
	for _, tidArg := range tidArgs {
		tid, err := strconv.Atoi(tidArg)
		if err != nil {
			return target, fmt.Errorf("invalid thread id %q", tidArg)
		}
		if !threadExists(tid) {
			return target, fmt.Errorf("thread %d does not exist", tid)
		}
		tids.Add(tid)
	}
	if tids.Cardinality() > 0 {
		target.TIDs = tids.ToSlice()
		slices.Sort(target.TIDs)
	}
	if cpuList != "" {
		cpus, err := util.SelectiveIntRangeToIntList(cpuList)
		if err != nil {
			return target, fmt.Errorf("invalid cpu list %q: %v", cpuList, err)
		}
		for _, cpu := range cpus {
			target.CPUs = util.UniqueAppend(target.CPUs, cpu)
		}
	}
	return target, nil
}
