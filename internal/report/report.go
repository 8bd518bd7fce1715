// Package report provides functions to generate counter statistics reports in
// file formats beyond the stat command's plain text output.
package report

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"os"
)

// Field represents the values for one column of a table.
type Field struct {
	Name   string
	Values []string
}

// TableValues is one named table of report values.
type TableValues struct {
	Name        string
	HasRows     bool   // render as rows of values under column headings, otherwise as field name/value pairs
	NoDataFound string // message to write when the table is empty, a default is used when not set
	Fields      []Field
}

const noDataFound = "No data found."

// CreateXlsx generates an xlsx workbook from the provided tables.
// The function ensures that all fields have the same number of values before
// generating the report.
func CreateXlsx(allTableValues []TableValues) (out []byte, err error) {
	// make sure that all fields have the same number of values
	for _, tableValues := range allTableValues {
		numRows := -1
		for _, field := range tableValues.Fields {
			if numRows == -1 {
				numRows = len(field.Values)
				continue
			}
			if len(field.Values) != numRows {
				return nil, fmt.Errorf("table %s: expected %d value(s) for field %s, found %d", tableValues.Name, numRows, field.Name, len(field.Values))
			}
		}
	}
	return createXlsxReport(allTableValues)
}

// WriteXlsx generates an xlsx workbook from the provided tables and writes it
// to path.
func WriteXlsx(allTableValues []TableValues, path string) error {
	out, err := CreateXlsx(allTableValues)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, out, 0644); err != nil { // #nosec G306
		return fmt.Errorf("failed to write report file %s: %w", path, err)
	}
	return nil
}
