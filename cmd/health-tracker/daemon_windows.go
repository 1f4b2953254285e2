//go:build windows

package main

import (
	"fmt"
	"os"
)

var shutdownSignals = []os.Signal{os.Interrupt}

func cmdStart() {
	fmt.Fprintln(os.Stderr, "daemon mode is not supported on Windows; use \"run\"")
	os.Exit(1)
}

func cmdStop() {
	fmt.Fprintln(os.Stderr, "daemon mode is not supported on Windows; use \"run\"")
	os.Exit(1)
}

func cmdStatus() {
	fmt.Fprintln(os.Stderr, "daemon mode is not supported on Windows; use \"run\"")
	os.Exit(1)
}
