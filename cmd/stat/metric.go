package stat

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

// derived metric definitions and evaluation

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"perfstat/internal/util"

	"github.com/casbin/govaluate"
	"gopkg.in/yaml.v2"
)

// MetricDefinition represents a derived metric read from a metric
// definitions file. The expression is evaluated over the final counts;
// event names with characters outside identifier rules, e.g.,
// cache-misses, are written in square brackets: [cache-misses] / duration.
type MetricDefinition struct {
	Name       string                         `yaml:"name"`
	Expression string                         `yaml:"expression"`
	Evaluable  *govaluate.EvaluableExpression `yaml:"-"` // parse expression once, store here for use in metric evaluation
}

// metricValue is one evaluated metric ready for the report.
type metricValue struct {
	name  string
	value string
}

// loadMetricDefinitions reads the metric definitions file and parses each
// expression so a malformed file fails before any counters are opened.
func loadMetricDefinitions(path string) ([]MetricDefinition, error) {
	absPath, err := util.AbsPath(path)
	if err != nil {
		return nil, err
	}
	yamlData, err := os.ReadFile(absPath) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("failed to read metric definitions file: %w", err)
	}
	var metrics []MetricDefinition
	if err := yaml.Unmarshal(yamlData, &metrics); err != nil {
		return nil, fmt.Errorf("failed to parse metric definitions file: %w", err)
	}
	if len(metrics) == 0 {
		return nil, fmt.Errorf("no metric definitions found in %s", path)
	}
	evaluatorFunctions := getEvaluatorFunctions()
	for i := range metrics {
		metric := &metrics[i]
		if metric.Name == "" || metric.Expression == "" {
			return nil, fmt.Errorf("metric definitions require a name and an expression")
		}
		if metric.Evaluable, err = govaluate.NewEvaluableExpressionWithFunctions(metric.Expression, evaluatorFunctions); err != nil {
			return nil, fmt.Errorf("failed to parse expression of metric %s: %w", metric.Name, err)
		}
	}
	return metrics, nil
}

// evaluateMetrics produces a value for each metric definition from the
// summarized counts. Along with the counts, keyed by event name, the
// expressions can reference the duration variable, the length of the
// measurement window in seconds. A metric that fails to evaluate, e.g.,
// because it references an event that wasn't counted, is skipped with a
// warning rather than spoiling the report.
func evaluateMetrics(metricDefs []MetricDefinition, summaries *CounterSummaries, duration float64) []metricValue {
	if len(metricDefs) == 0 {
		return nil
	}
	variables := make(map[string]any, len(summaries.summaries)+1)
	variables["duration"] = duration
	for _, summary := range summaries.summaries {
		variables[summary.Name()] = float64(summary.Count)
	}
	metrics := make([]metricValue, 0, len(metricDefs))
	for _, metricDef := range metricDefs {
		result, err := evaluateExpression(metricDef, variables)
		if err != nil {
			slog.Warn("failed to evaluate metric", slog.String("name", metricDef.Name), slog.String("error", err.Error()))
			continue
		}
		value, ok := result.(float64)
		if !ok {
			slog.Warn("metric did not evaluate to a number", slog.String("name", metricDef.Name), slog.String("expression", metricDef.Expression))
			continue
		}
		metrics = append(metrics, metricValue{name: metricDef.Name, value: formatMetricValue(value)})
	}
	return metrics
}

// evaluateExpression calls the evaluator so that we can catch panics that
// come from the evaluator
func evaluateExpression(metric MetricDefinition, variables map[string]any) (result any, err error) {
	defer func() {
		if errx := recover(); errx != nil {
			err = errx.(error)
		}
	}()
	if result, err = metric.Evaluable.Evaluate(variables); err != nil {
		err = fmt.Errorf("%v : %s : %s", err, metric.Name, metric.Expression)
	}
	return
}

func formatMetricValue(value float64) string {
	return strconv.FormatFloat(value, 'g', 8, 64)
}

// getEvaluatorFunctions defines functions that can be called in metric expressions
func getEvaluatorFunctions() (functions map[string]govaluate.ExpressionFunction) {
	functions = make(map[string]govaluate.ExpressionFunction)
	functions["max"] = func(args ...any) (any, error) {
		var leftVal float64
		var rightVal float64
		switch t := args[0].(type) {
		case int:
			leftVal = float64(t)
		case float64:
			leftVal = t
		}
		switch t := args[1].(type) {
		case int:
			rightVal = float64(t)
		case float64:
			rightVal = t
		}
		return max(leftVal, rightVal), nil
	}
	functions["min"] = func(args ...any) (any, error) {
		var leftVal float64
		var rightVal float64
		switch t := args[0].(type) {
		case int:
			leftVal = float64(t)
		case float64:
			leftVal = t
		}
		switch t := args[1].(type) {
		case int:
			rightVal = float64(t)
		case float64:
			rightVal = t
		}
		return min(leftVal, rightVal), nil
	}
	return
}
