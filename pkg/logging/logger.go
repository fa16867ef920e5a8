// Copyright (C) 2025 Bering Labs (oss@beringlabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logging provides structured logging for algokit tools.
//
// The package is a thin layer over Go's standard slog: a Logger embeds a
// *slog.Logger whose handler is a router over up to three sinks — stderr
// (Unix CLI convention), an optional JSON log file, and an optional
// LogExporter. Export delivery runs on a single background worker fed by
// a bounded queue, so logging never blocks on a slow exporter; entries
// are dropped, not queued unboundedly, under backpressure.
//
// Basic usage:
//
//	logger := logging.Default()
//	logger.Info("bundle written", "name", name, "bytes", n)
//
// With file logging:
//
//	logger := logging.New(
//	    logging.WithService("codesnip"),
//	    logging.WithFileDir("~/.algokit/logs"),
//	)
//	defer logger.Close()
//
// Logger is safe for concurrent use.
package logging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// exportQueueDepth bounds the in-flight entries between the logging call
// sites and the export worker.
const exportQueueDepth = 256

// LogExporter receives log entries for delivery to an external system.
// Export is called from a single worker goroutine, one entry at a time
// and in log order.
type LogExporter interface {
	// Export sends one entry; ctx carries a short per-entry timeout.
	Export(ctx context.Context, entry LogEntry) error

	// Flush sends anything the exporter buffered; called during Close.
	Flush(ctx context.Context) error

	// Close releases resources; called after Flush.
	Close() error
}

// LogEntry is the exporter-facing form of one log record.
type LogEntry struct {
	Time    time.Time
	Level   slog.Level
	Message string
	Service string
	Attrs   map[string]any
}

// Option configures New.
type Option func(*settings)

type settings struct {
	level    slog.Level
	service  string
	logDir   string
	json     bool
	quiet    bool
	exporter LogExporter
}

// WithLevel sets the minimum level; records below it are discarded
// before reaching any sink. The default is slog.LevelInfo.
func WithLevel(level slog.Level) Option {
	return func(st *settings) { st.level = level }
}

// WithService attaches name to every record as the "service" attribute
// and uses it in log file names.
func WithService(name string) Option {
	return func(st *settings) { st.service = name }
}

// WithFileDir enables file logging: "{service}_{date}.log" in JSON
// format under dir, created as needed. A leading ~/ expands to the home
// directory.
func WithFileDir(dir string) Option {
	return func(st *settings) { st.logDir = dir }
}

// WithJSON switches the stderr sink to JSON. File output is always JSON.
func WithJSON() Option {
	return func(st *settings) { st.json = true }
}

// WithQuiet disables the stderr sink.
func WithQuiet() Option {
	return func(st *settings) { st.quiet = true }
}

// WithExporter routes every surviving record to e as a LogEntry.
func WithExporter(e LogExporter) Option {
	return func(st *settings) { st.exporter = e }
}

// Logger is a slog.Logger bound to the sinks picked at construction.
// The slog surface (Debug/Info/Warn/Error/With/Log) is promoted from the
// embedded logger.
type Logger struct {
	*slog.Logger
	core *core
}

// core owns the resources shared by a Logger and everything derived from
// it via With: the log file and the export worker.
type core struct {
	file     *os.File
	exporter LogExporter
	queue    chan LogEntry
	drained  chan struct{}
	once     sync.Once
}

// New builds a Logger from options. Close it when file logging or an
// exporter is configured.
func New(opts ...Option) *Logger {
	st := settings{level: slog.LevelInfo}
	for _, opt := range opts {
		opt(&st)
	}

	c := &core{exporter: st.exporter}
	if st.exporter != nil {
		c.queue = make(chan LogEntry, exportQueueDepth)
		c.drained = make(chan struct{})
		go c.exportLoop()
	}

	r := &router{level: st.level, core: c, service: st.service}
	if !st.quiet {
		r.console = newSink(os.Stderr, st.json, st.level)
	}
	if st.logDir != "" {
		if file := openLogFile(expandTilde(st.logDir), st.service); file != nil {
			c.file = file
			r.file = newSink(file, true, st.level)
		}
	}
	if r.console == nil && r.file == nil && c.exporter == nil {
		// Nothing would see the records; fall back to stderr.
		r.console = newSink(os.Stderr, st.json, st.level)
	}

	logger := slog.New(r)
	if st.service != "" {
		logger = logger.With(slog.String("service", st.service))
	}
	return &Logger{Logger: logger, core: c}
}

// Default returns an Info-level stderr logger for the "algokit" service.
func Default() *Logger {
	return New(WithService("algokit"))
}

// With returns a child logger carrying additional attributes. The child
// shares this logger's sinks; closing either closes both.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...), core: l.core}
}

// Slog exposes the underlying slog.Logger.
func (l *Logger) Slog() *slog.Logger { return l.Logger }

// Close stops the export worker, flushes and closes the exporter, and
// closes the log file. Safe to call more than once.
func (l *Logger) Close() error {
	var err error
	l.core.once.Do(func() { err = l.core.shutdown() })
	return err
}

func (c *core) shutdown() error {
	var errs []error
	if c.queue != nil {
		close(c.queue)
		<-c.drained
	}
	if c.exporter != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.exporter.Flush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush exporter: %w", err))
		}
		if err := c.exporter.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close exporter: %w", err))
		}
	}
	if c.file != nil {
		if err := c.file.Sync(); err != nil {
			errs = append(errs, fmt.Errorf("sync log file: %w", err))
		}
		if err := c.file.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close log file: %w", err))
		}
	}
	return errors.Join(errs...)
}

// enqueue hands an entry to the export worker, dropping it when the
// queue is full rather than blocking the log call.
func (c *core) enqueue(e LogEntry) {
	select {
	case c.queue <- e:
	default:
	}
}

// exportLoop delivers queued entries until the queue closes. Export
// failures are dropped; logging about them here would recurse.
func (c *core) exportLoop() {
	defer close(c.drained)
	for e := range c.queue {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		_ = c.exporter.Export(ctx, e)
		cancel()
	}
}

// router is the slog.Handler behind every Logger: it applies the level
// gate once, then hands each record to the console sink, the file sink,
// and the export queue. Attributes added via With are pushed into the
// sinks and mirrored in baseAttrs so exported entries carry them too.
type router struct {
	level   slog.Level
	console slog.Handler // nil when quiet
	file    slog.Handler // nil without file logging
	core    *core
	service string

	baseAttrs map[string]any
	group     string // dotted prefix for attrs added after WithGroup
}

func (r *router) Enabled(_ context.Context, level slog.Level) bool {
	return level >= r.level
}

func (r *router) Handle(ctx context.Context, rec slog.Record) error {
	var errs []error
	if r.console != nil {
		errs = append(errs, r.console.Handle(ctx, rec))
	}
	if r.file != nil {
		errs = append(errs, r.file.Handle(ctx, rec))
	}
	if r.core.exporter != nil {
		r.core.enqueue(r.entry(rec))
	}
	return errors.Join(errs...)
}

func (r *router) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := r.clone()
	if next.console != nil {
		next.console = next.console.WithAttrs(attrs)
	}
	if next.file != nil {
		next.file = next.file.WithAttrs(attrs)
	}
	for _, a := range attrs {
		next.baseAttrs[next.group+a.Key] = a.Value.Resolve().Any()
	}
	return next
}

func (r *router) WithGroup(name string) slog.Handler {
	next := r.clone()
	if next.console != nil {
		next.console = next.console.WithGroup(name)
	}
	if next.file != nil {
		next.file = next.file.WithGroup(name)
	}
	next.group += name + "."
	return next
}

func (r *router) clone() *router {
	next := *r
	next.baseAttrs = make(map[string]any, len(r.baseAttrs)+4)
	for k, v := range r.baseAttrs {
		next.baseAttrs[k] = v
	}
	return &next
}

// entry converts a record into the exporter form, merging the attributes
// accumulated via With with the record's own.
func (r *router) entry(rec slog.Record) LogEntry {
	attrs := make(map[string]any, len(r.baseAttrs)+rec.NumAttrs())
	for k, v := range r.baseAttrs {
		attrs[k] = v
	}
	rec.Attrs(func(a slog.Attr) bool {
		attrs[r.group+a.Key] = a.Value.Resolve().Any()
		return true
	})
	return LogEntry{
		Time:    rec.Time,
		Level:   rec.Level,
		Message: rec.Message,
		Service: r.service,
		Attrs:   attrs,
	}
}

// newSink builds one output handler. The router already gates on level,
// but the sink repeats the gate so a handler handed out via Slog() stays
// correct on its own.
func newSink(f *os.File, json bool, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if json {
		return slog.NewJSONHandler(f, opts)
	}
	return slog.NewTextHandler(f, opts)
}

// openLogFile opens (creating as needed) today's log file for service
// under dir. File logging is best-effort: any failure returns nil and
// the logger runs without it.
func openLogFile(dir, service string) *os.File {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil
	}
	if service == "" {
		service = "algokit"
	}
	name := fmt.Sprintf("%s_%s.log", service, time.Now().Format("2006-01-02"))
	file, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return nil
	}
	return file
}

// expandTilde resolves a leading ~/ against the home directory.
func expandTilde(path string) string {
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, rest)
		}
	}
	return path
}

// NopExporter discards all entries; useful when export is disabled.
type NopExporter struct{}

// Export discards the entry.
func (NopExporter) Export(context.Context, LogEntry) error { return nil }

// Flush is a no-op.
func (NopExporter) Flush(context.Context) error { return nil }

// Close is a no-op.
func (NopExporter) Close() error { return nil }

// BufferedExporter keeps every entry in memory; tests use it to assert
// on log output.
type BufferedExporter struct {
	mu      sync.Mutex
	entries []LogEntry
}

// NewBufferedExporter creates an empty BufferedExporter.
func NewBufferedExporter() *BufferedExporter { return &BufferedExporter{} }

// Export records the entry.
func (b *BufferedExporter) Export(_ context.Context, e LogEntry) error {
	b.mu.Lock()
	b.entries = append(b.entries, e)
	b.mu.Unlock()
	return nil
}

// Flush is a no-op; entries are already in memory.
func (b *BufferedExporter) Flush(context.Context) error { return nil }

// Close is a no-op.
func (b *BufferedExporter) Close() error { return nil }

// Entries returns a snapshot of everything exported so far.
func (b *BufferedExporter) Entries() []LogEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]LogEntry, len(b.entries))
	copy(out, b.entries)
	return out
}

// Reset discards the recorded entries.
func (b *BufferedExporter) Reset() {
	b.mu.Lock()
	b.entries = nil
	b.mu.Unlock()
}

var _ LogExporter = NopExporter{}
var _ LogExporter = (*BufferedExporter)(nil)
