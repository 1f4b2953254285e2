//go:build !windows

package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/essenlikcia/health-tracker/internal/config"
)

var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

// cmdStart daemonizes by re-exec'ing with the "run" subcommand.
func cmdStart() {
	cfg := config.Load()

	// Check if already running
	if pid, err := readPidFile(cfg.PidFile); err == nil {
		if processExists(pid) {
			fmt.Printf("health-tracker is already running (PID %d)\n", pid)
			os.Exit(1)
		}
		// Stale PID file
		os.Remove(cfg.PidFile)
	}

	childArgs := []string{"run", "-config", cfg.ConfigPath}

	exe, err := os.Executable()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to find executable: %v\n", err)
		os.Exit(1)
	}

	logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log file %s: %v\n", cfg.LogFile, err)
		os.Exit(1)
	}

	child := &exec.Cmd{
		Path:   exe,
		Args:   append([]string{filepath.Base(exe)}, childArgs...),
		Stdout: logFile,
		Stderr: logFile,
		SysProcAttr: &syscall.SysProcAttr{
			Setsid: true, // detach from terminal
		},
	}

	if err := child.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start daemon: %v\n", err)
		os.Exit(1)
	}

	pid := child.Process.Pid
	if err := writePidFile(cfg.PidFile, pid); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to write PID file: %v\n", err)
	}

	// Release the child — parent exits
	child.Process.Release()
	logFile.Close()

	fmt.Printf("health-tracker started (PID %d)\n", pid)
	fmt.Printf("  Listen  : http://%s\n", cfg.Listen)
	fmt.Printf("  Config  : %s\n", cfg.ConfigPath)
	fmt.Printf("  Metrics : %s\n", cfg.MetricsFile)
	fmt.Printf("  PID     : %s\n", cfg.PidFile)
	fmt.Printf("  Log     : %s\n", cfg.LogFile)
}

// cmdStop reads the PID file and sends SIGTERM.
func cmdStop() {
	cfg := config.Load()

	pid, err := readPidFile(cfg.PidFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "health-tracker is not running (no PID file: %s)\n", cfg.PidFile)
		os.Exit(1)
	}

	if !processExists(pid) {
		fmt.Printf("health-tracker is not running (stale PID %d)\n", pid)
		os.Remove(cfg.PidFile)
		os.Exit(1)
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to find process %d: %v\n", pid, err)
		os.Exit(1)
	}

	if err := proc.Signal(syscall.SIGTERM); err != nil {
		fmt.Fprintf(os.Stderr, "failed to stop PID %d: %v\n", pid, err)
		os.Exit(1)
	}

	// Wait for process to exit (up to 10 seconds)
	for i := 0; i < 100; i++ {
		time.Sleep(100 * time.Millisecond)
		if !processExists(pid) {
			os.Remove(cfg.PidFile)
			fmt.Printf("health-tracker stopped (PID %d)\n", pid)
			return
		}
	}

	fmt.Printf("health-tracker stop signal sent (PID %d), waiting for exit...\n", pid)
	os.Remove(cfg.PidFile)
}

// cmdStatus checks the PID file.
func cmdStatus() {
	cfg := config.Load()

	pid, err := readPidFile(cfg.PidFile)
	if err != nil {
		fmt.Println("health-tracker is stopped")
		os.Exit(1)
	}

	if processExists(pid) {
		fmt.Printf("health-tracker is running (PID %d)\n", pid)
		fmt.Printf("  Listen  : http://%s\n", cfg.Listen)
		fmt.Printf("  Config  : %s\n", cfg.ConfigPath)
		fmt.Printf("  Metrics : %s\n", cfg.MetricsFile)
	} else {
		fmt.Printf("health-tracker is stopped (stale PID file, was PID %d)\n", pid)
		os.Remove(cfg.PidFile)
		os.Exit(1)
	}
}

func processExists(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Signal 0 checks existence without actually sending a signal
	err = proc.Signal(syscall.Signal(0))
	return err == nil
}
