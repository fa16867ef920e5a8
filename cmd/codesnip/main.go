// Copyright (C) 2025 Bering Labs (oss@beringlabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command codesnip extracts annotated snippets from Go source trees.
//
// Usage:
//
//	codesnip -t lib.go cache out/snippets.bin
//	codesnip -t lib.go list
//	codesnip -t lib.go snippet vscode.json --ignore-include
//	codesnip -t lib.go bundle SegmentTree --excludes algebra
//	codesnip -t lib.go --use-cache out/snippets.bin verify
//
// Exit status is 0 on success; the first unrecovered error prints its
// chain to standard error and exits non-zero without writing a partial
// artifact.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/beringlabs/algokit/pkg/logging"
)

func main() {
	logger := logging.New(logging.WithService("codesnip"))
	defer logger.Close()
	runLogger := logger.With("run_id", uuid.NewString())
	slogger := runLogger.Slog()
	// Library packages log through the default slog logger.
	slog.SetDefault(slogger)

	var shutdown func(context.Context) error
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if !enableTrace {
			return nil
		}
		exp, err := stdouttrace.New(stdouttrace.WithWriter(os.Stderr))
		if err != nil {
			return fmt.Errorf("init trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp))
		otel.SetTracerProvider(tp)
		shutdown = tp.Shutdown
		return nil
	}

	err := rootCmd.ExecuteContext(context.Background())
	if shutdown != nil {
		_ = shutdown(context.Background())
	}
	if err != nil {
		slogger.Error("command failed", "error", err.Error())
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
