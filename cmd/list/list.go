// Package list is a subcommand of the root command. It prints the names of
// the performance events the running kernel can count.
package list

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"strings"

	"perfstat/internal/common"
	"perfstat/internal/perfevent"

	"github.com/spf13/cobra"
)

const cmdName = "list"

var examples = []string{
	fmt.Sprintf("  List the events usable with the stat command:   $ %s %s", common.AppName, cmdName),
}

var Cmd = &cobra.Command{
	Use:           cmdName,
	Short:         "List the performance events supported on this system",
	Long:          "",
	Example:       strings.Join(examples, "\n"),
	RunE:          runCmd,
	GroupID:       "primary",
	Args:          cobra.NoArgs,
	SilenceErrors: true,
}

func runCmd(cmd *cobra.Command, args []string) error {
	sections := []struct {
		name   string
		events []perfevent.EventType
	}{
		{"hardware events", perfevent.HardwareEvents},
		{"software events", perfevent.SoftwareEvents},
		{"hardware cache events", perfevent.HardwareCacheEvents},
	}
	for _, section := range sections {
		cmd.Printf("List of %s:\n", section.name)
		for i := range section.events {
			if section.events[i].IsSupported() {
				cmd.Printf("  %s\n", section.events[i].Name)
			}
		}
		cmd.Println()
	}
	return nil
}
