// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

/*
Package progress provides a CLI progress indicator.
*/
package progress

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/term"
)

var spinChars []string = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

type spinner struct {
	status      string
	statusIsNew bool
	spinIndex   int
	ticker      *time.Ticker
	done        chan bool
	spinning    bool
}

// NewSpinner creates a new spinner
func NewSpinner() *spinner {
	s := spinner{}
	s.done = make(chan bool)
	return &s
}

// Start starts the spinner with an initial status
func (s *spinner) Start(status string) {
	s.status = status
	s.statusIsNew = true
	s.draw(true)
	s.ticker = time.NewTicker(250 * time.Millisecond)
	s.spinning = true
	go s.onTick()
}

// Status updates the status of the spinner
func (s *spinner) Status(status string) {
	if status != s.status {
		s.status = status
		s.statusIsNew = true
	}
}

// Finish stops the spinner, safe to call when not spinning
func (s *spinner) Finish() {
	if s.spinning {
		s.ticker.Stop()
		s.done <- true
		s.draw(false)
		s.spinning = false
	}
}

func (s *spinner) onTick() {
	for {
		select {
		case <-s.done:
			return
		case <-s.ticker.C:
			s.draw(true)
		}
	}
}

func (s *spinner) draw(goUp bool) {
	if !term.IsTerminal(int(os.Stderr.Fd())) && !s.statusIsNew {
		return
	}
	fmt.Fprintf(os.Stderr, "%s  %-60s\n", spinChars[s.spinIndex], s.status)
	s.statusIsNew = false
	s.spinIndex += 1
	if s.spinIndex >= len(spinChars) {
		s.spinIndex = 0
	}
	if goUp && term.IsTerminal(int(os.Stderr.Fd())) {
		fmt.Fprintf(os.Stderr, "\x1b[1A")
	}
}
