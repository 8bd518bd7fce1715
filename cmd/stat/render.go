package stat

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

// report rendering in table, csv, and xlsx form

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"perfstat/internal/common"
	"perfstat/internal/perfevent"
	"perfstat/internal/report"
	"perfstat/internal/util"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// englishPrinter groups the digits of large counts, e.g., 1,234,567.
var englishPrinter = message.NewPrinter(language.English)

// renderStyle holds the differences between the table and csv renditions
// of the report.
type renderStyle struct {
	csv              bool
	groupedCount     bool
	commentSeparator string
}

var (
	tableStyle = renderStyle{csv: false, groupedCount: true, commentSeparator: " "}
	csvStyle   = renderStyle{csv: true, groupedCount: false, commentSeparator: ","}
)

type columnWidths struct {
	count   int
	name    int
	comment int
}

func (cs *CounterSummaries) columnWidths() columnWidths {
	var widths columnWidths
	for _, summary := range cs.summaries {
		widths.count = max(widths.count, len(summary.ReadableCount))
		widths.name = max(widths.name, len(summary.Name()))
		widths.comment = max(widths.comment, len(summary.Comment))
	}
	return widths
}

// renderText writes the report in the style the summaries were built
// with. The scale percentage on each row is the share of the window the
// counter was scheduled on the PMU.
func renderText(w io.Writer, results []perfevent.SelectionReadouts, summaries *CounterSummaries, metrics []metricValue, duration float64, verbose bool) error {
	style := summaries.style
	var sb strings.Builder
	if style.csv {
		sb.WriteString("Performance counter statistics,\n")
	} else {
		sb.WriteString("Performance counter statistics:\n\n")
	}
	if verbose {
		for _, readouts := range results {
			name := readouts.Selection.Name()
			for _, readout := range readouts.Readouts {
				if style.csv {
					fmt.Fprintf(&sb, "%s,tid,%d,cpu,%d,count,%d,time_enabled,%d,time running,%d,id,%d,\n",
						name, readout.TID, readout.CPU, readout.Value, readout.TimeEnabled, readout.TimeRunning, readout.ID)
				} else {
					fmt.Fprintf(&sb, "%s(tid %d, cpu %d): count %d, time_enabled %d, time running %d, id %d\n",
						name, readout.TID, readout.CPU, readout.Value, readout.TimeEnabled, readout.TimeRunning, readout.ID)
				}
			}
		}
	}
	if style.csv {
		for _, summary := range summaries.summaries {
			suffix := ","
			if summary.AutoGenerated {
				suffix = " (generated),"
			}
			fmt.Fprintf(&sb, "%s,%s,%s,(%.0f%%)%s\n",
				summary.ReadableCount, summary.Name(), summary.Comment, 1.0/summary.Scale*100, suffix)
		}
	} else {
		widths := summaries.columnWidths()
		for _, summary := range summaries.summaries {
			suffix := ""
			if summary.AutoGenerated {
				suffix = " (generated)"
			}
			fmt.Fprintf(&sb, "  %*s  %-*s   # %-*s  (%.0f%%)%s\n",
				widths.count, summary.ReadableCount, widths.name, summary.Name(),
				widths.comment, summary.Comment, 1.0/summary.Scale*100, suffix)
		}
	}
	if len(metrics) > 0 {
		if style.csv {
			for _, metric := range metrics {
				fmt.Fprintf(&sb, "%s,%s,\n", metric.value, metric.name)
			}
		} else {
			sb.WriteString("\n")
			valueWidth := 0
			for _, metric := range metrics {
				valueWidth = max(valueWidth, len(metric.value))
			}
			for _, metric := range metrics {
				fmt.Fprintf(&sb, "  %*s  %s\n", valueWidth, metric.value, metric.name)
			}
		}
	}
	if style.csv {
		fmt.Fprintf(&sb, "Total test time,%f,seconds,\n", duration)
	} else {
		fmt.Fprintf(&sb, "\nTotal test time: %f seconds.\n", duration)
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

// writeReport sends the report where the output flags point: stdout by
// default, a text or csv file with --output, a spreadsheet when the output
// file name carries the xlsx suffix.
func writeReport(appContext common.AppContext, results []perfevent.SelectionReadouts, summaries *CounterSummaries, metrics []metricValue, duration float64) error {
	if strings.HasSuffix(flagOutputPath, xlsxSuffix) {
		return writeXlsxReport(appContext, results, summaries, metrics, duration, flagOutputPath, flagVerbose)
	}
	out := os.Stdout
	if flagOutputPath != "" {
		path, err := util.AbsPath(flagOutputPath)
		if err != nil {
			return err
		}
		file, err := os.Create(path) // #nosec G304
		if err != nil {
			return fmt.Errorf("failed to create report file: %w", err)
		}
		defer file.Close()
		out = file
	}
	return renderText(out, results, summaries, metrics, duration, flagVerbose)
}

func writeXlsxReport(appContext common.AppContext, results []perfevent.SelectionReadouts, summaries *CounterSummaries, metrics []metricValue, duration float64, outputPath string, verbose bool) error {
	counterTable := report.TableValues{
		Name:        "Performance Counter Statistics",
		HasRows:     true,
		NoDataFound: "No events were counted.",
		Fields: []report.Field{
			{Name: "Event"},
			{Name: "Count"},
			{Name: "Time Counted (%)"},
			{Name: "Comment"},
			{Name: "Generated"},
		},
	}
	for _, summary := range summaries.summaries {
		generated := ""
		if summary.AutoGenerated {
			generated = "yes"
		}
		counterTable.Fields[0].Values = append(counterTable.Fields[0].Values, summary.Name())
		counterTable.Fields[1].Values = append(counterTable.Fields[1].Values, strconv.FormatUint(summary.Count, 10))
		counterTable.Fields[2].Values = append(counterTable.Fields[2].Values, fmt.Sprintf("%.0f", 1.0/summary.Scale*100))
		counterTable.Fields[3].Values = append(counterTable.Fields[3].Values, summary.Comment)
		counterTable.Fields[4].Values = append(counterTable.Fields[4].Values, generated)
	}
	allTableValues := []report.TableValues{counterTable}
	if verbose {
		readoutTable := report.TableValues{
			Name:        "Raw Counter Readouts",
			HasRows:     true,
			NoDataFound: "No counters were read.",
			Fields: []report.Field{
				{Name: "Event"},
				{Name: "TID"},
				{Name: "CPU"},
				{Name: "Count"},
				{Name: "Time Enabled"},
				{Name: "Time Running"},
				{Name: "ID"},
			},
		}
		for _, readouts := range results {
			name := readouts.Selection.Name()
			for _, readout := range readouts.Readouts {
				readoutTable.Fields[0].Values = append(readoutTable.Fields[0].Values, name)
				readoutTable.Fields[1].Values = append(readoutTable.Fields[1].Values, strconv.Itoa(readout.TID))
				readoutTable.Fields[2].Values = append(readoutTable.Fields[2].Values, strconv.Itoa(readout.CPU))
				readoutTable.Fields[3].Values = append(readoutTable.Fields[3].Values, strconv.FormatUint(readout.Value, 10))
				readoutTable.Fields[4].Values = append(readoutTable.Fields[4].Values, strconv.FormatUint(readout.TimeEnabled, 10))
				readoutTable.Fields[5].Values = append(readoutTable.Fields[5].Values, strconv.FormatUint(readout.TimeRunning, 10))
				readoutTable.Fields[6].Values = append(readoutTable.Fields[6].Values, strconv.FormatUint(readout.ID, 10))
			}
		}
		allTableValues = append(allTableValues, readoutTable)
	}
	if len(metrics) > 0 {
		metricTable := report.TableValues{
			Name:        "Derived Metrics",
			HasRows:     true,
			NoDataFound: "No metrics were evaluated.",
			Fields: []report.Field{
				{Name: "Metric"},
				{Name: "Value"},
			},
		}
		for _, metric := range metrics {
			metricTable.Fields[0].Values = append(metricTable.Fields[0].Values, metric.name)
			metricTable.Fields[1].Values = append(metricTable.Fields[1].Values, metric.value)
		}
		allTableValues = append(allTableValues, metricTable)
	}
	allTableValues = append(allTableValues, report.TableValues{
		Name: "Collection",
		Fields: []report.Field{
			{Name: "Timestamp", Values: []string{appContext.Timestamp}},
			{Name: "Total Test Time (seconds)", Values: []string{fmt.Sprintf("%f", duration)}},
			{Name: "App Version", Values: []string{appContext.Version}},
			{Name: "Arguments", Values: []string{strings.Join(os.Args[1:], " ")}},
		},
	})
	path, err := util.AbsPath(outputPath)
	if err != nil {
		return err
	}
	return report.WriteXlsx(allTableValues, path)
}
