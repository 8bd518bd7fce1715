package perfevent

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

// AnyCPU monitors a thread on whichever CPU it runs.
const AnyCPU = -1

// Target selects what a SelectionSet monitors. A system-wide target monitors
// every thread on the listed CPUs, or on all online CPUs when the list is
// empty. Otherwise each listed thread is monitored on the listed CPUs, or on
// any CPU when the list is empty.
type Target struct {
	SystemWide bool
	CPUs       []int
	TIDs       []int
}
