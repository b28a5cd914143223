// Copyright 2026 The flowbridge Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !windows

package runner

import (
	"os/exec"
	"syscall"
)

// setProcGroup places the child in a new process group so that signals
// sent to the negative PID reach the whole group, including any workers
// the CLI forks.
func setProcGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// terminateProcess asks the process group to exit.
func terminateProcess(cmd *exec.Cmd) error {
	return signalGroup(cmd, syscall.SIGTERM)
}

// killProcess forcibly terminates the process group. If group signaling
// fails it falls back to killing the direct child.
func killProcess(cmd *exec.Cmd) error {
	if err := signalGroup(cmd, syscall.SIGKILL); err != nil {
		return cmd.Process.Kill()
	}
	return nil
}

func signalGroup(cmd *exec.Cmd, sig syscall.Signal) error {
	if cmd.Process == nil {
		return nil
	}
	return syscall.Kill(-cmd.Process.Pid, sig)
}
