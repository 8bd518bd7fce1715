// Package stat is a subcommand of the root command. It counts hardware and
// software performance events for a workload, for existing processes or
// threads, or for the whole system, and reports per-event statistics when
// the measurement window closes.
package stat

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"

	"perfstat/internal/common"
	"perfstat/internal/perfevent"
	"perfstat/internal/progress"
	"perfstat/internal/util"
	"perfstat/internal/workload"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const cmdName = "stat"

var examples = []string{
	fmt.Sprintf("  Count default events while a command runs:     $ %s %s -- ./myapp arg1", common.AppName, cmdName),
	fmt.Sprintf("  Count cycles and instructions for 5 seconds:    $ %s %s -e cpu-cycles,instructions -a --duration 5", common.AppName, cmdName),
	fmt.Sprintf("  Count a co-scheduled group on a running app:    $ %s %s --group branch-misses,branch-instructions -p 1234", common.AppName, cmdName),
	fmt.Sprintf("  Split counts into user and kernel space:        $ %s %s -e cpu-cycles:u,cpu-cycles:k -- ./myapp", common.AppName, cmdName),
	fmt.Sprintf("  Write the report in comma separated form:       $ %s %s --csv -o counts.csv -- ./myapp", common.AppName, cmdName),
}

var Cmd = &cobra.Command{
	Use:           cmdName,
	Short:         "Count performance events for a workload, running threads, or the whole system",
	Long:          "",
	Example:       strings.Join(examples, "\n"),
	RunE:          runCmd,
	PreRunE:       validateFlags,
	GroupID:       "primary",
	Args:          cobra.ArbitraryArgs,
	SilenceErrors: true,
}

// gInterrupted is the process-wide termination flag. Signal handlers do
// nothing but set it; the measurement loop polls it from the main flow and
// all real work happens after the loop observes it.
var gInterrupted atomic.Bool

// defaultEventNames is the event selection used when no events are
// requested. Events the kernel can't count are silently skipped.
var defaultEventNames = []string{
	"cpu-cycles",
	"stalled-cycles-frontend",
	"stalled-cycles-backend",
	"instructions",
	"branch-instructions",
	"branch-misses",
	"task-clock",
	"context-switches",
	"page-faults",
}

var (
	// target options
	flagSystemWide bool
	flagCPUList    string
	flagPidList    []string
	flagTidList    []string
	// event options
	flagEvents    []string
	flagGroups    []string
	flagNoInherit bool
	// collection options
	flagDuration float64
	// output options
	flagCSV        bool
	flagOutputPath string
	flagVerbose    bool
	flagMetricFile string

	// positional arguments, the workload command with its arguments
	argsWorkload []string
)

const (
	flagSystemWideName = "all-cpus"
	flagCPUListName    = "cpu"
	flagPidListName    = "pids"
	flagTidListName    = "tids"
	flagEventsName     = "events"
	flagGroupsName     = "group"
	flagNoInheritName  = "no-inherit"
	flagDurationName   = "duration"
	flagCSVName        = "csv"
	flagOutputPathName = "output"
	flagVerboseName    = "verbose"
	flagMetricFileName = "metricfile"
)

const xlsxSuffix = ".xlsx"

func init() {
	Cmd.Flags().BoolVarP(&flagSystemWide, flagSystemWideName, "a", false, "")
	Cmd.Flags().StringVar(&flagCPUList, flagCPUListName, "", "")
	Cmd.Flags().StringSliceVarP(&flagPidList, flagPidListName, "p", []string{}, "")
	Cmd.Flags().StringSliceVarP(&flagTidList, flagTidListName, "t", []string{}, "")

	Cmd.Flags().StringSliceVarP(&flagEvents, flagEventsName, "e", []string{}, "")
	Cmd.Flags().StringArrayVar(&flagGroups, flagGroupsName, []string{}, "")
	Cmd.Flags().BoolVar(&flagNoInherit, flagNoInheritName, false, "")

	Cmd.Flags().Float64Var(&flagDuration, flagDurationName, 0, "")

	Cmd.Flags().BoolVar(&flagCSV, flagCSVName, false, "")
	Cmd.Flags().StringVarP(&flagOutputPath, flagOutputPathName, "o", "", "")
	Cmd.Flags().BoolVar(&flagVerbose, flagVerboseName, false, "")
	Cmd.Flags().StringVar(&flagMetricFile, flagMetricFileName, "", "")

	Cmd.SetUsageFunc(usageFunc)
}

func usageFunc(cmd *cobra.Command) error {
	cmd.Printf("Usage: %s [flags] [-- workload command with args]\n\n", cmd.CommandPath())
	cmd.Printf("Examples:\n%s\n\n", cmd.Example)
	cmd.Println("Arguments:")
	cmd.Printf("  workload (optional): command to start and measure, counting stops when it exits\n\n")
	cmd.Println("Flags:")
	for _, group := range getFlagGroups() {
		cmd.Printf("  %s:\n", group.GroupName)
		for _, flag := range group.Flags {
			flagUsage := "--" + flag.Name
			if shorthand := cmd.Flags().Lookup(flag.Name).Shorthand; shorthand != "" {
				flagUsage = "-" + shorthand + ", " + flagUsage
			}
			flagDefault := ""
			if cmd.Flags().Lookup(flag.Name).DefValue != "" {
				flagDefault = fmt.Sprintf(" (default: %s)", cmd.Flags().Lookup(flag.Name).DefValue)
			}
			cmd.Printf("    %-24s %s%s\n", flagUsage, flag.Help, flagDefault)
		}
	}
	cmd.Println("\nGlobal Flags:")
	cmd.Parent().PersistentFlags().VisitAll(func(pf *pflag.Flag) {
		flagDefault := ""
		if cmd.Parent().PersistentFlags().Lookup(pf.Name).DefValue != "" {
			flagDefault = fmt.Sprintf(" (default: %s)", pf.DefValue)
		}
		cmd.Printf("  --%-22s %s%s\n", pf.Name, pf.Usage, flagDefault)
	})
	return nil
}

func getFlagGroups() []common.FlagGroup {
	var groups []common.FlagGroup
	// target options
	flags := []common.Flag{
		{
			Name: flagSystemWideName,
			Help: fmt.Sprintf("count on all CPUs for all threads. Requires root. Can't be combined with --%s or --%s.", flagPidListName, flagTidListName),
		},
		{
			Name: flagCPUListName,
			Help: "comma separated list of CPU indices or ranges to count on, e.g., 0-3,7",
		},
		{
			Name: flagPidListName,
			Help: "comma separated list of process ids to monitor. All current threads of each process are counted.",
		},
		{
			Name: flagTidListName,
			Help: "comma separated list of thread ids to monitor",
		},
	}
	groups = append(groups, common.FlagGroup{
		GroupName: "Target Options",
		Flags:     flags,
	})
	// event options
	flags = []common.Flag{
		{
			Name: flagEventsName,
			Help: fmt.Sprintf("comma separated list of events to count, each optionally limited to user or kernel space, e.g., cpu-cycles,branch-misses:u. Run `%s list` for event names.", common.AppName),
		},
		{
			Name: flagGroupsName,
			Help: "comma separated list of events to count as a group, i.e., scheduled on the PMU at the same time. May be repeated to define more groups.",
		},
		{
			Name: flagNoInheritName,
			Help: "don't count threads and processes created by the monitored targets",
		},
	}
	groups = append(groups, common.FlagGroup{
		GroupName: "Event Options",
		Flags:     flags,
	})
	// collection options
	flags = []common.Flag{
		{
			Name: flagDurationName,
			Help: "number of seconds to count instead of running a workload command. May be fractional.",
		},
	}
	groups = append(groups, common.FlagGroup{
		GroupName: "Collection Options",
		Flags:     flags,
	})
	// output options
	flags = []common.Flag{
		{
			Name: flagCSVName,
			Help: "write the report in comma separated form",
		},
		{
			Name: flagOutputPathName,
			Help: fmt.Sprintf("write the report to a file instead of stdout. A %s suffix selects a spreadsheet report.", xlsxSuffix),
		},
		{
			Name: flagVerboseName,
			Help: "include every raw per-thread, per-cpu counter readout ahead of the summaries",
		},
		{
			Name: flagMetricFileName,
			Help: "YAML file with derived metrics to evaluate over the final counts",
		},
	}
	groups = append(groups, common.FlagGroup{
		GroupName: "Output Options",
		Flags:     flags,
	})
	return groups
}

func validateFlags(cmd *cobra.Command, args []string) error {
	// a workload command and a fixed duration are two different ways to end
	// the measurement window, only one may be given
	if len(args) > 0 {
		argsWorkload = args
		if cmd.Flags().Changed(flagDurationName) {
			return common.FlagValidationError(cmd, fmt.Sprintf("--%s is not supported with a workload command", flagDurationName))
		}
	}
	if cmd.Flags().Changed(flagDurationName) && flagDuration <= 0 {
		return common.FlagValidationError(cmd, fmt.Sprintf("invalid duration %g, must be a positive number of seconds", flagDuration))
	}
	for _, pid := range flagPidList {
		if _, err := strconv.Atoi(pid); err != nil {
			return common.FlagValidationError(cmd, "process ids must be integers")
		}
	}
	for _, tid := range flagTidList {
		if _, err := strconv.Atoi(tid); err != nil {
			return common.FlagValidationError(cmd, "thread ids must be integers")
		}
	}
	if flagCPUList != "" {
		if _, err := util.SelectiveIntRangeToIntList(flagCPUList); err != nil {
			return common.FlagValidationError(cmd, fmt.Sprintf("invalid cpu list: %v", err))
		}
	}
	for _, group := range flagGroups {
		if group == "" {
			return common.FlagValidationError(cmd, "event groups must not be empty")
		}
	}
	if flagCSV && strings.HasSuffix(flagOutputPath, xlsxSuffix) {
		return common.FlagValidationError(cmd, fmt.Sprintf("--%s can't be combined with a %s output file", flagCSVName, xlsxSuffix))
	}
	return nil
}

func runCmd(cmd *cobra.Command, args []string) error {
	// appContext is the application context that holds common data and resources.
	appContext := cmd.Parent().Context().Value(common.AppContext{}).(common.AppContext)
	// compile the metric definitions up front so a bad file fails before any
	// counters are touched
	var metricDefs []MetricDefinition
	if flagMetricFile != "" {
		var err error
		metricDefs, err = loadMetricDefinitions(flagMetricFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			slog.Error(err.Error())
			cmd.SilenceUsage = true
			return err
		}
	}
	// assemble the event selections
	selections := perfevent.NewSelectionSet()
	for _, spec := range flagEvents {
		if err := selections.AddEventType(spec); err != nil {
			err = fmt.Errorf("%w, run `%s list` for supported events", err, common.AppName)
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			slog.Error(err.Error())
			cmd.SilenceUsage = true
			return err
		}
	}
	for _, group := range flagGroups {
		if err := selections.AddEventGroup(strings.Split(group, ",")); err != nil {
			err = fmt.Errorf("%w, run `%s list` for supported events", err, common.AppName)
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			slog.Error(err.Error())
			cmd.SilenceUsage = true
			return err
		}
	}
	if selections.Empty() {
		if err := addDefaultEvents(selections); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			slog.Error(err.Error())
			cmd.SilenceUsage = true
			return err
		}
	}
	selections.SetInherit(!flagNoInherit)
	// a fixed duration becomes a synthetic sleep workload so a single
	// termination path serves both
	workloadArgs := argsWorkload
	if flagDuration > 0 {
		workloadArgs = []string{"sleep", fmt.Sprintf("%f", flagDuration)}
	}
	// resolve the monitored target
	target, err := resolveTarget(flagSystemWide, flagPidList, flagTidList, flagCPUList)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		slog.Error(err.Error())
		cmd.SilenceUsage = true
		return err
	}
	var wl *workload.Workload
	if len(workloadArgs) > 0 {
		if wl, err = workload.New(workloadArgs); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			slog.Error(err.Error())
			cmd.SilenceUsage = true
			return err
		}
		defer wl.Close()
	}
	if !target.SystemWide && len(target.TIDs) == 0 {
		if wl == nil {
			err := fmt.Errorf("no threads to monitor, provide a workload command or see `%s %s --help`", common.AppName, cmdName)
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			slog.Error(err.Error())
			cmd.SilenceUsage = true
			return err
		}
		// counting starts at the workload's first instruction
		target.TIDs = []int{wl.Pid()}
		selections.SetEnableOnExec(true)
	}
	// handle signals
	// termination signals and the workload's exit only set the flag, the
	// measurement loop below polls it
	sigChannel := make(chan os.Signal, 1)
	signal.Notify(sigChannel, syscall.SIGINT, syscall.SIGTERM, syscall.SIGCHLD)
	defer signal.Stop(sigChannel)
	go func() {
		sig := <-sigChannel
		slog.Info("received signal", slog.String("signal", sig.String()))
		gInterrupted.Store(true)
	}()
	// run the measurement window
	runner := newStatRunner(selections, target, wl)
	spinner := progress.NewSpinner()
	spinner.Start(waitStatus(workloadArgs))
	defer spinner.Finish()
	results, duration, err := runner.run()
	spinner.Finish()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		slog.Error(err.Error())
		cmd.SilenceUsage = true
		return err
	}
	// summarize and report
	style := tableStyle
	if flagCSV {
		style = csvStyle
	}
	summaries := summarizeCounters(results, duration, style)
	metrics := evaluateMetrics(metricDefs, summaries, duration)
	if err := writeReport(appContext, results, summaries, metrics, duration); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		slog.Error(err.Error())
		cmd.SilenceUsage = true
		return err
	}
	return nil
}

// addDefaultEvents fills the selection set with the default events the
// running kernel supports. Unsupported defaults are skipped; explicitly
// requested events never pass through here, so those stay fatal.
func addDefaultEvents(selections *perfevent.SelectionSet) error {
	skipped := mapset.NewSet[string]()
	for _, name := range defaultEventNames {
		eventType := perfevent.FindTypeByName(name)
		if eventType == nil || !eventType.IsSupported() {
			skipped.Add(name)
			continue
		}
		if err := selections.AddEventType(name); err != nil {
			return err
		}
	}
	if skipped.Cardinality() > 0 {
		names := skipped.ToSlice()
		slices.Sort(names)
		slog.Debug("kernel can't count all default events", slog.String("skipped", strings.Join(names, ",")))
	}
	if selections.Empty() {
		return fmt.Errorf("none of the default events is supported by the kernel")
	}
	return nil
}

func waitStatus(workloadArgs []string) string {
	if flagDuration > 0 {
		return fmt.Sprintf("counting for %g seconds", flagDuration)
	}
	if len(workloadArgs) > 0 {
		return fmt.Sprintf("counting while %s runs", workloadArgs[0])
	}
	return "counting, press Ctrl+C to stop"
}
