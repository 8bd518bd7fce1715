package perfevent

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"log/slog"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Selection is one requested event: an event type, an optional privilege
// modifier, and the scheduling group it belongs to. Selections that share a
// GroupID are co-resident on the PMU, the kernel schedules them on and off
// together.
type Selection struct {
	Type     *EventType
	Modifier string
	GroupID  int
	fds      []*eventFd
}

// Name returns the selection as it was requested, "type" or "type:modifier".
func (sel *Selection) Name() string {
	if sel.Modifier == "" {
		return sel.Type.Name
	}
	return sel.Type.Name + ":" + sel.Modifier
}

// SelectionReadouts carries the raw samples read for one selection, one per
// open descriptor.
type SelectionReadouts struct {
	Selection *Selection
	Readouts  []CounterReadout
}

// SelectionSet is an insertion-ordered collection of event selections
// organized into scheduling groups. Configure it with the Add and Set
// methods, then Open, Read, and Close it.
type SelectionSet struct {
	groups       [][]*Selection
	inherit      bool
	enableOnExec bool
}

// NewSelectionSet returns an empty selection set. Counters follow threads
// and processes created by the monitored targets until SetInherit disables
// that.
func NewSelectionSet() *SelectionSet {
	return &SelectionSet{inherit: true}
}

// Empty reports whether no selections have been added.
func (s *SelectionSet) Empty() bool {
	return len(s.groups) == 0
}

// AddEventType adds one event specification, "name" or "name:modifier", as
// its own scheduling group.
func (s *SelectionSet) AddEventType(spec string) error {
	sel, err := s.newSelection(spec, len(s.groups))
	if err != nil {
		return err
	}
	s.groups = append(s.groups, []*Selection{sel})
	return nil
}

// AddEventGroup adds a list of event specifications as one scheduling group,
// so all of them are counted over the very same slices of time.
func (s *SelectionSet) AddEventGroup(specs []string) error {
	if len(specs) == 0 {
		return errors.New("empty event group")
	}
	groupID := len(s.groups)
	group := make([]*Selection, 0, len(specs))
	for _, spec := range specs {
		sel, err := s.newSelection(spec, groupID)
		if err != nil {
			return err
		}
		group = append(group, sel)
	}
	s.groups = append(s.groups, group)
	return nil
}

func (s *SelectionSet) newSelection(spec string, groupID int) (*Selection, error) {
	name, modifier, err := ParseNameAndModifier(spec)
	if err != nil {
		return nil, err
	}
	eventType := FindTypeByName(name)
	if eventType == nil {
		return nil, errors.Errorf("unknown event type %q", name)
	}
	return &Selection{Type: eventType, Modifier: modifier, GroupID: groupID}, nil
}

// SetInherit controls whether counters follow children created by the
// monitored threads. Must be called before Open.
func (s *SelectionSet) SetInherit(inherit bool) {
	s.inherit = inherit
}

// SetEnableOnExec arranges for the counters to stay disabled until the
// monitored process calls exec, so counting starts at the workload's first
// instruction. Must be called before Open.
func (s *SelectionSet) SetEnableOnExec(enable bool) {
	s.enableOnExec = enable
}

func (s *SelectionSet) attrFor(sel *Selection, leader bool) unix.PerfEventAttr {
	var attr unix.PerfEventAttr
	attr.Type = sel.Type.Type
	attr.Size = uint32(unsafe.Sizeof(attr))
	attr.Config = sel.Type.Config
	attr.Read_format = unix.PERF_FORMAT_TOTAL_TIME_ENABLED | unix.PERF_FORMAT_TOTAL_TIME_RUNNING | unix.PERF_FORMAT_ID
	if s.inherit {
		attr.Bits |= unix.PerfBitInherit
	}
	// only the group leader carries the exec gate, members are scheduled
	// with their leader
	if s.enableOnExec && leader {
		attr.Bits |= unix.PerfBitDisabled | unix.PerfBitEnableOnExec
	}
	switch sel.Modifier {
	case "u":
		attr.Bits |= unix.PerfBitExcludeKernel | unix.PerfBitExcludeHv
	case "k":
		attr.Bits |= unix.PerfBitExcludeUser | unix.PerfBitExcludeHv
	}
	return attr
}

type monitoredPair struct {
	tid int
	cpu int
}

func (s *SelectionSet) monitoredPairs(target Target) ([]monitoredPair, error) {
	if target.SystemWide {
		cpus := target.CPUs
		if len(cpus) == 0 {
			var err error
			if cpus, err = OnlineCPUs(); err != nil {
				return nil, err
			}
		}
		pairs := make([]monitoredPair, 0, len(cpus))
		for _, cpu := range cpus {
			pairs = append(pairs, monitoredPair{tid: -1, cpu: cpu})
		}
		return pairs, nil
	}
	if len(target.TIDs) == 0 {
		return nil, errors.New("no threads to monitor")
	}
	cpus := target.CPUs
	if len(cpus) == 0 {
		cpus = []int{AnyCPU}
	}
	pairs := make([]monitoredPair, 0, len(target.TIDs)*len(cpus))
	for _, tid := range target.TIDs {
		for _, cpu := range cpus {
			pairs = append(pairs, monitoredPair{tid: tid, cpu: cpu})
		}
	}
	return pairs, nil
}

// Open opens one counter per selection for every monitored thread/cpu pair
// of the target. Selections in a group share a group leader so the kernel
// schedules them together. On failure every descriptor opened so far is
// closed.
func (s *SelectionSet) Open(target Target) error {
	pairs, err := s.monitoredPairs(target)
	if err != nil {
		return err
	}
	descriptors := 0
	for _, group := range s.groups {
		for _, pair := range pairs {
			leaderFd := -1
			for i, sel := range group {
				attr := s.attrFor(sel, i == 0)
				fd, err := openEventFd(&attr, sel.Name(), pair.tid, pair.cpu, leaderFd)
				if err != nil {
					s.Close()
					return err
				}
				if i == 0 {
					leaderFd = fd.fd()
				}
				sel.fds = append(sel.fds, fd)
				descriptors++
			}
		}
	}
	slog.Debug("opened perf event counters", slog.Int("groups", len(s.groups)), slog.Int("descriptors", descriptors))
	return nil
}

// Read reads every open counter once. A failed read fails the whole call.
// Results are in the order the selections were added.
func (s *SelectionSet) Read() ([]SelectionReadouts, error) {
	var results []SelectionReadouts
	for _, group := range s.groups {
		for _, sel := range group {
			readouts := SelectionReadouts{Selection: sel, Readouts: make([]CounterReadout, 0, len(sel.fds))}
			for _, fd := range sel.fds {
				readout, err := fd.read()
				if err != nil {
					return nil, err
				}
				readouts.Readouts = append(readouts.Readouts, readout)
			}
			results = append(results, readouts)
		}
	}
	return results, nil
}

// Close closes all open counters. Safe to call more than once.
func (s *SelectionSet) Close() {
	for _, group := range s.groups {
		for _, sel := range group {
			for _, fd := range sel.fds {
				fd.close()
			}
			sel.fds = nil
		}
	}
}
