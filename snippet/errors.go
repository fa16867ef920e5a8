// Copyright (C) 2025 Bering Labs (oss@beringlabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package snippet extracts annotated code snippets from Go source trees.
//
// Top-level declarations carry metadata in //codesnip: directive comments:
//
//	//codesnip:entry "name" include("dep1", "dep2") [inline|no_inline]
//	//codesnip:skip
//	//codesnip:cfg nightly && !verify
//	//codesnip:cfgattr nightly, codesnip:entry "unstable"
//	//codesnip:mod helpers [path = "impl/helpers.go"]
//
// A Walker parses target files (expanding mod directives into neighbour
// files), evaluates cfg predicates against a tag set, and yields an item
// tree. Collect gathers entries into a SnippetMap: name -> rendered text
// plus an include set. Bundle renders the closure of a name under
// include, dependencies first, target last, each exactly once even when
// the include relation is cyclic.
//
// # Failure model
//
// File-system and parse failures surface as typed errors and abort the
// walk. Malformed entry metadata is logged and skips only the offending
// item; the walk continues.
package snippet

import "errors"

// Sentinel errors for extractor operations.
var (
	// ErrFileNotFound is returned when a target or module file cannot be
	// read.
	ErrFileNotFound = errors.New("file not found")

	// ErrParse is returned when a source file does not parse.
	ErrParse = errors.New("parse error")

	// ErrModuleNotFound is returned when a //codesnip:mod directive
	// resolves to neither name.go beside the parent nor name/name.go.
	ErrModuleNotFound = errors.New("module not found")

	// ErrModuleCycle is returned when module expansion revisits a file
	// already on the expansion stack.
	ErrModuleCycle = errors.New("module cycle")

	// ErrSnippetNotFound is returned when bundling a name absent from
	// the map.
	ErrSnippetNotFound = errors.New("snippet not found")

	// ErrCacheVersion is returned when a cache blob was written by an
	// incompatible schema version.
	ErrCacheVersion = errors.New("incompatible cache version")
)
