// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

/*
Package workload starts the measured command in a held state so counters can
attach before it executes a single instruction.

The parent re-executes its own binary with a hidden trampoline command and a
pipe on an inherited descriptor. The trampoline blocks reading the pipe.
Start writes one byte, and the trampoline replaces its process image with the
real command via exec. Counters opened with an enable-on-exec gate activate
exactly at that exec.
*/
package workload

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/sys/unix"
)

// TrampolineCommandName is the hidden subcommand the parent invokes on its
// own binary to host the workload until Start is called.
const TrampolineCommandName = "exec-workload"

// startFd is the descriptor number the trampoline inherits for the start
// pipe, the first entry of exec.Cmd.ExtraFiles.
const startFd = 3

const startByte = 0x55

// Workload is a command prepared to run under measurement.
type Workload struct {
	cmd       *exec.Cmd
	startPipe *os.File
	started   bool
}

// New spawns the trampoline that hosts the command given by args. The
// workload's pid is valid immediately, but the command itself does not run
// until Start.
func New(args []string) (*Workload, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("no workload command given")
	}
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to locate own executable: %w", err)
	}
	readPipe, writePipe, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create the workload start pipe: %w", err)
	}
	cmdArgs := append([]string{TrampolineCommandName, "--"}, args...)
	cmd := exec.Command(exe, cmdArgs...) // #nosec G204
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.ExtraFiles = []*os.File{readPipe} // becomes startFd in the trampoline
	if err := cmd.Start(); err != nil {
		_ = readPipe.Close()
		_ = writePipe.Close()
		return nil, fmt.Errorf("failed to spawn workload %s: %w", args[0], err)
	}
	_ = readPipe.Close() // the trampoline holds the read end now
	slog.Debug("spawned workload", slog.Int("pid", cmd.Process.Pid), slog.String("command", strings.Join(args, " ")))
	return &Workload{cmd: cmd, startPipe: writePipe}, nil
}

// Pid returns the process id to monitor.
func (w *Workload) Pid() int {
	return w.cmd.Process.Pid
}

// Start releases the trampoline so it execs the real command.
func (w *Workload) Start() error {
	if w.started {
		return nil
	}
	if _, err := w.startPipe.Write([]byte{startByte}); err != nil {
		return fmt.Errorf("failed to start the workload: %w", err)
	}
	_ = w.startPipe.Close()
	w.started = true
	return nil
}

// Close ends the workload if it is still alive and reaps it. Safe to call
// whether or not Start was called.
func (w *Workload) Close() {
	if w.cmd == nil {
		return
	}
	if !w.started {
		_ = w.startPipe.Close() // the trampoline sees EOF and exits
	}
	_ = w.cmd.Process.Kill()
	_ = w.cmd.Wait()
	w.cmd = nil
}

// ExecChild runs in the trampoline process. It blocks until the parent
// writes the start byte, then replaces the process image with the workload
// command. A closed pipe means the parent gave up before starting us.
func ExecChild(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("no workload command given")
	}
	pipe := os.NewFile(uintptr(startFd), "workload-start-pipe")
	if pipe == nil {
		return fmt.Errorf("workload start pipe was not inherited")
	}
	buf := make([]byte, 1)
	n, err := pipe.Read(buf)
	if err != nil || n != 1 || buf[0] != startByte {
		return fmt.Errorf("workload start signal was not received")
	}
	_ = pipe.Close()
	path, err := exec.LookPath(args[0])
	if err != nil {
		return fmt.Errorf("failed to find workload command %q: %w", args[0], err)
	}
	if err := unix.Exec(path, args, os.Environ()); err != nil {
		return fmt.Errorf("failed to exec workload %q: %w", path, err)
	}
	return nil
}
