package perfevent

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"perfstat/internal/util"
)

const onlineCPUsPath = "/sys/devices/system/cpu/online"

// OnlineCPUs returns the indices of the CPUs that are currently online, e.g.,
// [0 1 2 3] when the kernel reports "0-3".
func OnlineCPUs() ([]int, error) {
	data, err := os.ReadFile(onlineCPUsPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read the online cpu list")
	}
	cpus, err := util.SelectiveIntRangeToIntList(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse the online cpu list %q", strings.TrimSpace(string(data)))
	}
	return cpus, nil
}

// ThreadsOfProcess returns the ids of all threads that currently belong to
// the process.
func ThreadsOfProcess(pid int) ([]int, error) {
	entries, err := os.ReadDir("/proc/" + strconv.Itoa(pid) + "/task")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read the threads of process %d", pid)
	}
	tids := make([]int, 0, len(entries))
	for _, entry := range entries {
		tid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}
		tids = append(tids, tid)
	}
	return tids, nil
}

// ThreadExists reports whether a thread with the given id is running.
func ThreadExists(tid int) bool {
	_, err := os.Stat("/proc/" + strconv.Itoa(tid) + "/status")
	return err == nil
}
