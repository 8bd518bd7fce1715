package perfevent

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"encoding/binary"
	"os"
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

const paranoidPath = "/proc/sys/kernel/perf_event_paranoid"

// CounterReadout is one raw sample from a single counter file descriptor: the
// cumulative count plus the enabled and running times that expose PMU
// multiplexing, and the kernel-assigned counter id.
type CounterReadout struct {
	TID         int
	CPU         int
	Value       uint64
	TimeEnabled uint64
	TimeRunning uint64
	ID          uint64
}

// eventFd owns one open perf event file descriptor.
type eventFd struct {
	file *os.File
	name string // event name, for diagnostics
	tid  int
	cpu  int
}

// openEventFd opens one counter for tid on cpu. groupFd is the descriptor of
// the group leader, or -1 to lead a new group.
func openEventFd(attr *unix.PerfEventAttr, name string, tid int, cpu int, groupFd int) (*eventFd, error) {
	fd, err := unix.PerfEventOpen(attr, tid, cpu, groupFd, unix.PERF_FLAG_FD_CLOEXEC)
	if err != nil {
		if errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM) {
			return nil, errors.Wrapf(err, "failed to open perf event %s for tid %d on cpu %d, consider lowering %s", name, tid, cpu, paranoidPath)
		}
		return nil, errors.Wrapf(err, "failed to open perf event %s for tid %d on cpu %d", name, tid, cpu)
	}
	return &eventFd{file: os.NewFile(uintptr(fd), "[perf_event]"), name: name, tid: tid, cpu: cpu}, nil
}

// read retrieves the current state of the counter. The 32-byte layout
// matches a read format of TOTAL_TIME_ENABLED | TOTAL_TIME_RUNNING | ID:
// value, time_enabled, time_running, id.
func (f *eventFd) read() (CounterReadout, error) {
	buf := make([]byte, 32)
	n, err := f.file.Read(buf)
	if err != nil {
		return CounterReadout{}, errors.Wrapf(err, "failed to read perf event %s for tid %d on cpu %d", f.name, f.tid, f.cpu)
	}
	if n != len(buf) {
		return CounterReadout{}, errors.Errorf("short read (%d bytes) from perf event %s for tid %d on cpu %d", n, f.name, f.tid, f.cpu)
	}
	return CounterReadout{
		TID:         f.tid,
		CPU:         f.cpu,
		Value:       binary.NativeEndian.Uint64(buf[0:]),
		TimeEnabled: binary.NativeEndian.Uint64(buf[8:]),
		TimeRunning: binary.NativeEndian.Uint64(buf[16:]),
		ID:          binary.NativeEndian.Uint64(buf[24:]),
	}, nil
}

func (f *eventFd) fd() int {
	return int(f.file.Fd())
}

func (f *eventFd) close() {
	_ = f.file.Close()
}
