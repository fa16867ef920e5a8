// Copyright (C) 2025 Bering Labs (oss@beringlabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package splaytree provides a splay-tree sequence: a positionally indexed
// list with O(log n) amortised insert, remove, range apply, range fold and
// range reverse, plus scoped range handles for algorithms that need direct
// access to a contiguous segment.
//
// Nodes live in a per-sequence arena and are addressed by integer index;
// parent/child links are arena indices with -1 as null. Rotations move
// links, never node storage, and removed nodes return to a free list. No
// arena slot is read after its node is removed.
//
// # Thread Safety
//
// A Sequence is not safe for concurrent use; even reads splay.
package splaytree

import "errors"

// Sentinel errors for sequence operations.
var (
	// ErrIndexOutOfRange is returned when an insert position is not in
	// [0, Len()] or a Modify position is not in [0, Len()).
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrInvalidRange is returned when a half-open range does not satisfy
	// 0 <= l <= r <= Len().
	ErrInvalidRange = errors.New("invalid range")

	// ErrRangeHandleOpen is returned when a sequence operation is invoked
	// while a RangeHandle has the tree split apart. Close the handle
	// first.
	ErrRangeHandleOpen = errors.New("range handle still open")
)
