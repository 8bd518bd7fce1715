package stat

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

// counter summaries: aggregation of the raw readouts, synthesis of combined
// user+kernel counts, and derivation of the per-event comments

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"perfstat/internal/perfevent"
)

// scaleErrorLimit allows for rounding error when deciding whether a
// multiplexing scale means the counter ran all the time.
const scaleErrorLimit = 1e-5

// CounterSummary is the aggregated result of one event selection over the
// whole measurement window.
type CounterSummary struct {
	TypeName      string
	Modifier      string
	GroupID       int
	Count         uint64
	Scale         float64
	ReadableCount string
	Comment       string
	AutoGenerated bool
}

func (s *CounterSummary) Name() string {
	if s.Modifier == "" {
		return s.TypeName
	}
	return s.TypeName + ":" + s.Modifier
}

func (s *CounterSummary) monitoredAllTheTime() bool {
	return math.Abs(s.Scale-1.0) < scaleErrorLimit
}

// MonitoredAtTheSameTime reports whether two summaries were counted over
// the same portions of the window, which is what makes a ratio of their
// counts meaningful. Counters in the same event group are co-scheduled by
// the kernel; otherwise both must have been scheduled all the time.
func (s *CounterSummary) MonitoredAtTheSameTime(other *CounterSummary) bool {
	if s.GroupID == other.GroupID {
		return true
	}
	return s.monitoredAllTheTime() && other.monitoredAllTheTime()
}

type summaryKey struct {
	typeName string
	modifier string
}

// CounterSummaries holds the summaries of one measurement window in report
// order.
type CounterSummaries struct {
	summaries []*CounterSummary
	index     map[summaryKey]*CounterSummary
	style     renderStyle
}

func newCounterSummaries(style renderStyle) *CounterSummaries {
	return &CounterSummaries{
		index: make(map[summaryKey]*CounterSummary),
		style: style,
	}
}

// Add appends a summary. The first summary of each event name and modifier
// wins the lookup index used for comment derivation.
func (cs *CounterSummaries) Add(typeName string, modifier string, groupID int, count uint64, scale float64, autoGenerated bool) {
	summary := &CounterSummary{
		TypeName:      typeName,
		Modifier:      modifier,
		GroupID:       groupID,
		Count:         count,
		Scale:         scale,
		AutoGenerated: autoGenerated,
	}
	summary.ReadableCount = cs.readableCount(summary)
	cs.summaries = append(cs.summaries, summary)
	key := summaryKey{typeName: typeName, modifier: modifier}
	if _, ok := cs.index[key]; !ok {
		cs.index[key] = summary
	}
}

// Find returns the first summary added for the event name and modifier, or
// nil if there is none.
func (cs *CounterSummaries) Find(typeName string, modifier string) *CounterSummary {
	return cs.index[summaryKey{typeName: typeName, modifier: modifier}]
}

// addAggregated folds the per-thread, per-cpu readouts of one selection
// into a single summary. Readouts the kernel never scheduled carry no
// information and are left out of the scale computation.
func (cs *CounterSummaries) addAggregated(readouts perfevent.SelectionReadouts) {
	var valueSum, enabledSum, runningSum uint64
	for _, readout := range readouts.Readouts {
		if readout.TimeRunning == 0 {
			continue
		}
		valueSum += readout.Value
		enabledSum += readout.TimeEnabled
		runningSum += readout.TimeRunning
	}
	scale := 1.0
	if runningSum != 0 && runningSum < enabledSum {
		scale = float64(enabledSum) / float64(runningSum)
	}
	selection := readouts.Selection
	cs.Add(selection.Type.Name, selection.Modifier, selection.GroupID, valueSum, scale, false)
}

// autoGenerateSummaries adds a whole-event summary for each event that was
// counted in user and kernel space separately, provided the two halves were
// counted over the same time and no unmodified summary exists already.
func (cs *CounterSummaries) autoGenerateSummaries() {
	for i := 0; i < len(cs.summaries); i++ {
		summary := cs.summaries[i]
		if summary.Modifier != "u" {
			continue
		}
		other := cs.Find(summary.TypeName, "k")
		if other == nil || !other.MonitoredAtTheSameTime(summary) {
			continue
		}
		if cs.Find(summary.TypeName, "") != nil {
			continue
		}
		cs.Add(summary.TypeName, "", summary.GroupID, summary.Count+other.Count, summary.Scale, true)
	}
}

func (cs *CounterSummaries) generateComments(duration float64) {
	for _, summary := range cs.summaries {
		summary.Comment = cs.commentForSummary(summary, duration)
	}
}

// commentForSummary derives the human oriented annotation for one summary.
// Rates are normalized by the time the counter was actually scheduled,
// duration/scale, so multiplexed counters aren't underreported.
func (cs *CounterSummaries) commentForSummary(summary *CounterSummary, duration float64) string {
	sep := cs.style.commentSeparator
	if summary.TypeName == "task-clock" {
		runSec := float64(summary.Count) / 1e9
		usedCPUs := runSec / (duration / summary.Scale)
		return fmt.Sprintf("%f%scpus used", usedCPUs, sep)
	}
	if summary.TypeName == "cpu-clock" {
		return ""
	}
	if summary.TypeName == "cpu-cycles" {
		hz := float64(summary.Count) / (duration / summary.Scale)
		return fmt.Sprintf("%f%sGHz", hz/1e9, sep)
	}
	if summary.TypeName == "instructions" && summary.Count != 0 {
		cycles := cs.Find("cpu-cycles", summary.Modifier)
		if cycles != nil && cycles.MonitoredAtTheSameTime(summary) {
			cpi := float64(cycles.Count) / float64(summary.Count)
			return fmt.Sprintf("%f%scycles per instruction", cpi, sep)
		}
	}
	if comment := cs.missRateComment(summary, sep); comment != "" {
		return comment
	}
	rate := float64(summary.Count) / (duration / summary.Scale)
	if rate >= 1e9 {
		return fmt.Sprintf("%.3f%sG/sec", rate/1e9, sep)
	}
	if rate >= 1e6 {
		return fmt.Sprintf("%.3f%sM/sec", rate/1e6, sep)
	}
	if rate >= 1e3 {
		return fmt.Sprintf("%.3f%sK/sec", rate/1e3, sep)
	}
	return fmt.Sprintf("%.3f%s/sec", rate, sep)
}

// missRateComment relates a miss count to the count of its reference
// event, e.g., cache-misses to cache-references, when both were counted
// over the same time.
func (cs *CounterSummaries) missRateComment(summary *CounterSummary, sep string) string {
	referenceName := missReferenceName(summary.TypeName)
	if referenceName == "" {
		return ""
	}
	reference := cs.Find(referenceName, summary.Modifier)
	if reference == nil || !reference.MonitoredAtTheSameTime(summary) || reference.Count == 0 {
		return ""
	}
	missRate := float64(summary.Count) / float64(reference.Count)
	return fmt.Sprintf("%f%%%smiss rate", missRate*100, sep)
}

// missReferenceName maps a *-misses event to the event its misses are
// measured against. Event names without the -misses suffix map to "".
func missReferenceName(typeName string) string {
	base, found := strings.CutSuffix(typeName, "-misses")
	if !found {
		return ""
	}
	switch base {
	case "cache":
		return "cache-references"
	case "branch":
		return "branch-instructions"
	}
	return base + "s"
}

// readableCount renders a count for the report. Clock event counts are
// nanoseconds and read better as milliseconds; other counts get digit
// grouping unless the style forbids it.
func (cs *CounterSummaries) readableCount(summary *CounterSummary) string {
	if perfevent.IsClockEvent(summary.TypeName) {
		return fmt.Sprintf("%f(ms)", float64(summary.Count)/1e6)
	}
	if cs.style.groupedCount {
		return englishPrinter.Sprintf("%d", summary.Count)
	}
	return strconv.FormatUint(summary.Count, 10)
}

// summarizeCounters turns the raw readouts of a measurement window into
// the summaries the report is built from.
func summarizeCounters(results []perfevent.SelectionReadouts, duration float64, style renderStyle) *CounterSummaries {
	summaries := newCounterSummaries(style)
	for _, readouts := range results {
		summaries.addAggregated(readouts)
	}
	summaries.autoGenerateSummaries()
	summaries.generateComments(duration)
	return summaries
}
