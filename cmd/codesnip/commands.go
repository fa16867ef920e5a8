// Copyright (C) 2025 Bering Labs (oss@beringlabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/beringlabs/algokit/snippet"
)

// --- Global Command Variables ---
var (
	targets       []string
	useCache      []string
	cfgTags       []string
	filterItem    []string
	filterAttr    []string
	enableTrace   bool
	ignoreInclude bool
	excludes      []string

	rootCmd = &cobra.Command{
		Use:           "codesnip",
		Short:         "Extract, cache and bundle annotated code snippets",
		Long: `codesnip collects //codesnip:entry annotated items from Go source
trees, resolves their transitive includes and emits bundled artifacts.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cacheCmd = &cobra.Command{
		Use:   "cache <file>",
		Short: "Save analyzed snippet data into a file",
		Args:  cobra.ExactArgs(1),
		RunE:  runCache,
	}
	listCmd = &cobra.Command{
		Use:   "list",
		Short: "List snippet names",
		Args:  cobra.NoArgs,
		RunE:  runList,
	}
	snippetCmd = &cobra.Command{
		Use:   "snippet [<file>]",
		Short: "Output snippets in VSCode format",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSnippet,
	}
	bundleCmd = &cobra.Command{
		Use:   "bundle <name>",
		Short: "Bundle a snippet with its include closure",
		Args:  cobra.ExactArgs(1),
		RunE:  runBundle,
	}
	verifyCmd = &cobra.Command{
		Use:   "verify",
		Short: "Check that every snippet's include closure resolves",
		Args:  cobra.NoArgs,
		RunE:  runVerify,
	}
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringSliceVarP(&targets, "target", "t", nil, "target file paths")
	pf.StringSliceVar(&useCache, "use-cache", nil, "cached data files to merge")
	pf.StringSliceVar(&cfgTags, "cfg", nil, "enabled cfg tags, e.g. --cfg=nightly")
	pf.StringSliceVar(&filterItem, "filter-item", nil, "drop items carrying these attributes")
	pf.StringSliceVar(&filterAttr, "filter-attr", nil, "strip these attribute lines from output")
	pf.BoolVar(&enableTrace, "trace", false, "emit OpenTelemetry spans to stderr")

	snippetCmd.Flags().BoolVar(&ignoreInclude, "ignore-include", false, "do not inline include closures")
	bundleCmd.Flags().StringSliceVarP(&excludes, "excludes", "e", nil, "snippet names to exclude from the closure")

	rootCmd.AddCommand(cacheCmd, listCmd, snippetCmd, bundleCmd, verifyCmd)
}

// fileConfig is the optional .codesnip.yaml project file; command line
// flags extend, never replace, its lists.
type fileConfig struct {
	Targets    []string `yaml:"targets"`
	Cfg        []string `yaml:"cfg"`
	FilterItem []string `yaml:"filter_item"`
	FilterAttr []string `yaml:"filter_attr"`
}

const configFile = ".codesnip.yaml"

func loadFileConfig() (fileConfig, error) {
	var fc fileConfig
	data, err := os.ReadFile(configFile)
	if err != nil {
		if os.IsNotExist(err) {
			return fc, nil
		}
		return fc, fmt.Errorf("read %s: %w", configFile, err)
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("parse %s: %w", configFile, err)
	}
	return fc, nil
}

// buildMap parses every target (concurrently, one walker per file),
// collects entries, and merges any cache files in.
func buildMap(ctx context.Context) (*snippet.SnippetMap, error) {
	fc, err := loadFileConfig()
	if err != nil {
		return nil, err
	}
	allTargets := append(fc.Targets, targets...)
	tags := snippet.NewTagSet(append(fc.Cfg, cfgTags...))
	filter := snippet.Filter{
		FilterItem: append(fc.FilterItem, filterItem...),
		FilterAttr: append(fc.FilterAttr, filterAttr...),
	}

	parsed := make([][]snippet.Item, len(allTargets))
	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex
	for i, path := range allTargets {
		g.Go(func() error {
			w := &snippet.Walker{Tags: tags}
			items, err := w.ParseFile(gctx, path)
			if err != nil {
				return err
			}
			mu.Lock()
			parsed[i] = items
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	m := snippet.NewMap()
	for _, items := range parsed {
		m.Collect(ctx, items, filter)
	}

	for _, path := range useCache {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", snippet.ErrFileNotFound, path, err)
		}
		cached, err := snippet.ReadCache(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("cache %s: %w", path, err)
		}
		m.Extend(cached)
	}

	slog.Debug("snippet map built",
		slog.Int("targets", len(allTargets)),
		slog.Int("snippets", len(m.Map)),
	)
	return m, nil
}

func runCache(cmd *cobra.Command, args []string) error {
	m, err := buildMap(cmd.Context())
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := m.WriteCache(&buf); err != nil {
		return err
	}
	if err := writeFileRecursive(args[0], buf.Bytes()); err != nil {
		return err
	}
	slog.Info("cache written", slog.String("file", args[0]), slog.Int("snippets", len(m.Map)))
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	m, err := buildMap(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), strings.Join(m.Names(), " "))
	return nil
}

func runSnippet(cmd *cobra.Command, args []string) error {
	m, err := buildMap(cmd.Context())
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(m.ToVSCode(ignoreInclude), "", "  ")
	if err != nil {
		return err
	}
	if len(args) == 1 {
		return writeFileRecursive(args[0], out)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func runBundle(cmd *cobra.Command, args []string) error {
	m, err := buildMap(cmd.Context())
	if err != nil {
		return err
	}
	text, err := m.Bundle(args[0], excludes, true)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), text)
	return nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	m, err := buildMap(cmd.Context())
	if err != nil {
		return err
	}
	names := m.Names()
	broken := make([]string, 0)
	var mu sync.Mutex
	g, _ := errgroup.WithContext(cmd.Context())
	for _, name := range names {
		g.Go(func() error {
			// Every snippet is checked, so a closure resolves exactly when
			// each of its members' direct includes is in the map.
			missing := false
			for _, inc := range m.Map[name].Includes {
				if _, ok := m.Map[inc]; !ok {
					missing = true
				}
			}
			if missing {
				mu.Lock()
				broken = append(broken, name)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if len(broken) > 0 {
		return fmt.Errorf("%d of %d snippets have unresolved includes: %s",
			len(broken), len(names), strings.Join(broken, ", "))
	}
	slog.Info("verify passed", slog.Int("snippets", len(names)))
	return nil
}

// writeFileRecursive creates parent directories and writes data in one
// shot, so a failed build never leaves a partial artifact.
func writeFileRecursive(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
