// Copyright (C) 2025 Bering Labs (oss@beringlabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForEntries(t *testing.T, exp *BufferedExporter, n int) []LogEntry {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if entries := exp.Entries(); len(entries) >= n {
			return entries
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("exporter never received %d entries", n)
	return nil
}

func TestExporterReceivesEntries(t *testing.T) {
	exp := NewBufferedExporter()
	logger := New(WithService("test"), WithQuiet(), WithExporter(exp))
	defer logger.Close()

	logger.Info("hello", "key", "value")
	logger.Debug("filtered out")

	entries := waitForEntries(t, exp, 1)
	require.Len(t, entries, 1)
	assert.Equal(t, "hello", entries[0].Message)
	assert.Equal(t, slog.LevelInfo, entries[0].Level)
	assert.Equal(t, "test", entries[0].Service)
	assert.Equal(t, "value", entries[0].Attrs["key"])
}

func TestExportPreservesLogOrder(t *testing.T) {
	exp := NewBufferedExporter()
	logger := New(WithQuiet(), WithExporter(exp))

	for i := range 20 {
		logger.Info("entry", "i", i)
	}
	require.NoError(t, logger.Close())

	entries := exp.Entries()
	require.Len(t, entries, 20)
	for i, e := range entries {
		assert.EqualValues(t, i, e.Attrs["i"])
	}
}

func TestWithAddsAttributesToExportedEntries(t *testing.T) {
	exp := NewBufferedExporter()
	logger := New(WithService("test"), WithQuiet(), WithExporter(exp))
	defer logger.Close()

	child := logger.With("run_id", "abc123")
	child.Warn("something odd", "detail", 7)

	entries := waitForEntries(t, exp, 1)
	require.Len(t, entries, 1)
	assert.Equal(t, slog.LevelWarn, entries[0].Level)
	assert.Equal(t, "abc123", entries[0].Attrs["run_id"])
	assert.EqualValues(t, 7, entries[0].Attrs["detail"])
}

func TestCloseDrainsQueueAndIsIdempotent(t *testing.T) {
	exp := NewBufferedExporter()
	logger := New(WithQuiet(), WithExporter(exp))

	logger.Info("one")
	logger.Info("two")
	require.NoError(t, logger.Close())
	require.NoError(t, logger.Close())

	assert.Len(t, exp.Entries(), 2)
}

func TestFileLogging(t *testing.T) {
	dir := t.TempDir()
	logger := New(WithService("codesnip"), WithFileDir(dir), WithQuiet())
	logger.Info("to file", "n", 1)
	require.NoError(t, logger.Close())

	matches, err := filepath.Glob(filepath.Join(dir, "codesnip_*.log"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), `"to file"`)
	assert.Contains(t, string(data), `"service":"codesnip"`)
}

func TestExpandTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".algokit"), expandTilde("~/.algokit"))
	assert.Equal(t, "/var/log", expandTilde("/var/log"))
}

func TestNopExporter(t *testing.T) {
	logger := New(WithQuiet(), WithExporter(NopExporter{}))
	logger.Error("discarded")
	require.NoError(t, logger.Close())
}

func TestLevelFiltering(t *testing.T) {
	exp := NewBufferedExporter()
	logger := New(WithLevel(slog.LevelError), WithQuiet(), WithExporter(exp))

	logger.Debug("no")
	logger.Info("no")
	logger.Warn("no")
	logger.Error("yes")
	require.NoError(t, logger.Close())

	entries := exp.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "yes", entries[0].Message)
}

func TestBufferedExporterReset(t *testing.T) {
	exp := NewBufferedExporter()
	logger := New(WithQuiet(), WithExporter(exp))

	logger.Info("before")
	require.NoError(t, logger.Close())
	require.NotEmpty(t, exp.Entries())

	exp.Reset()
	assert.Empty(t, exp.Entries())
}
