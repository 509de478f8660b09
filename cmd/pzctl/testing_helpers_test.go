package main

import (
	"bytes"
	"os"
	"testing"
)

// resetFlags restores every flag variable to its default.
func resetFlags() {
	verbose, quiet, jsonOut = false, false, false
	regionStart, regionEnd, pageSize = defaultStart, defaultEnd, defaultPageSize
	pagesPerZone, reserveDescriptors = 1, false

	simOps, simSeed, simMaxSize = 10000, 1, 16384
	simTrace, simMmap = "", false
	simWorkers, simQuarantine = 1, 0
	replayMaxReport = 20
	serveListen = "127.0.0.1:8080"
}

// captureOutput captures stdout while running a function
func captureOutput(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	// Save original stdout
	origStdout := os.Stdout

	// Create a pipe to capture output
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}

	// Redirect stdout to pipe
	os.Stdout = w

	// Drain the pipe concurrently so large outputs cannot block fn
	done := make(chan struct{})
	var buf bytes.Buffer
	go func() {
		_, _ = buf.ReadFrom(r)
		close(done)
	}()

	// Run function
	fnErr := fn()

	// Close write end and restore stdout
	w.Close()
	os.Stdout = origStdout
	<-done
	r.Close()

	return buf.String(), fnErr
}
