package stat

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"log/slog"
	"sync/atomic"
	"time"

	"perfstat/internal/perfevent"
	"perfstat/internal/workload"
)

// pollInterval is how often the measurement loop checks the termination
// flag. Counters keep counting in the kernel between checks, so the
// interval only bounds shutdown latency, not accuracy.
const pollInterval = time.Second

// counterSource opens, reads, and closes a set of perf event counters.
type counterSource interface {
	Open(target perfevent.Target) error
	Read() ([]perfevent.SelectionReadouts, error)
	Close()
}

// workloadProc starts a held workload process.
type workloadProc interface {
	Start() error
	Pid() int
}

// statRunner drives one measurement window: open the counters, release the
// workload if there is one, wait for termination, read the counts.
type statRunner struct {
	selections  counterSource
	target      perfevent.Target
	workload    workloadProc
	interrupted *atomic.Bool
	now         func() time.Time
	sleep       func(time.Duration)
}

func newStatRunner(selections counterSource, target perfevent.Target, wl *workload.Workload) *statRunner {
	r := &statRunner{
		selections:  selections,
		target:      target,
		interrupted: &gInterrupted,
		now:         time.Now,
		sleep:       time.Sleep,
	}
	// a plain nil assignment would wrap the typed nil in a non-nil interface
	if wl != nil {
		r.workload = wl
	}
	return r
}

// run executes the measurement window. It returns the per-selection raw
// readouts and the wall-clock duration of the window in seconds.
func (r *statRunner) run() ([]perfevent.SelectionReadouts, float64, error) {
	if err := r.selections.Open(r.target); err != nil {
		return nil, 0, err
	}
	defer r.selections.Close()
	start := r.now()
	if r.workload != nil {
		if err := r.workload.Start(); err != nil {
			return nil, 0, err
		}
		slog.Debug("workload released", slog.Int("pid", r.workload.Pid()))
	}
	for !r.interrupted.Load() {
		r.sleep(pollInterval)
	}
	duration := r.now().Sub(start).Seconds()
	results, err := r.selections.Read()
	if err != nil {
		return nil, 0, err
	}
	slog.Debug("measurement window closed", slog.Float64("duration", duration))
	return results, duration, nil
}
