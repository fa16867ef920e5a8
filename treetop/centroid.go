// Copyright (C) 2025 Bering Labs (oss@beringlabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package treetop

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// Visitor receives one decomposed subtree per call. cparents and cvs
// describe the subtree on its local renumbering: the centroid is index 0,
// indices [1, lsize] are the left bucket, [lsize+1, lsize+rsize] the
// right bucket, and cparents[i] < i throughout. cvs maps local indices
// back to the caller's vertex labels. The slices belong to the driver;
// visitors must copy what they keep.
type Visitor func(cparents, cvs []int, lsize, rsize int)

// Decompose runs the 1/3 centroid decomposition of adj and invokes the
// visitor once per decomposed subtree of size >= 3. Empty and singleton
// trees short-circuit without visiting.
//
// Algorithm:
//
//	The tree is flattened by BFS so parents precede children, then
//	recursively split: pick the first vertex (scanning leaves upward)
//	whose subtree size reaches half the current tree — a centroid — then
//	pack whole centroid subtrees into a left bucket of total size at most
//	(n-1)/2 and put everything else, the centroid's ancestor chain
//	included, into the right bucket. Each recursion keeps the centroid as
//	local root of both buckets, so every bucket shrinks to at most 2/3 of
//	its parent call: O(log n) depth, O(n log n) visitor work for linear
//	visitors.
func Decompose(ctx context.Context, adj Adjacency, f Visitor) error {
	_, span := otel.Tracer("algokit").Start(ctx, "treetop.Decompose")
	defer span.End()
	span.SetAttributes(attribute.Int("vertices", adj.Len()))

	n := adj.Len()
	if n <= 1 {
		return nil
	}
	parents, vs, err := flatten(adj)
	if err != nil {
		return err
	}
	decomposeDFS(parents, vs, f)
	return nil
}

// decomposeDFS splits one subtree around its centroid and recurses into
// the two buckets. parents/vs are the subtree's local flattening with
// parents[i] < i; len(vs) >= 2 is required and len(vs) == 2 is the
// recursion floor.
func decomposeDFS(parents, vs []int, f Visitor) {
	n := len(vs)
	if n == 2 {
		return
	}

	// Subtree sizes bottom-up until the first candidate with
	// size >= ceil(n/2): that vertex is a centroid.
	size := make([]int, n)
	for i := range size {
		size[i] = 1
	}
	c := -1
	for i := n - 1; i >= 0; i-- {
		if size[i] >= (n+1)/2 {
			c = i
			break
		}
		size[parents[i]] += size[i]
	}

	// Two-colour around c: whole child subtrees of c go left, in order of
	// appearance, while they still fit under (n-1)/2; the rest, the
	// ancestor chain of c included, goes right.
	color := make([]int, n)
	order := make([]int, n)
	for i := range color {
		color[i] = -1
		order[i] = -1
	}
	order[c] = 0
	count := 1
	sumSize := 0
	for u := 1; u < n; u++ {
		if parents[u] == c && sumSize+size[u] <= (n-1)/2 {
			sumSize += size[u]
			color[u] = 0
			order[u] = count
			count++
		}
	}
	for u := 1; u < n; u++ {
		if color[parents[u]] == 0 {
			color[u] = 0
			order[u] = count
			count++
		}
	}
	lsize := count - 1
	for u := parents[c]; u != -1; u = parents[u] {
		color[u] = 1
		order[u] = count
		count++
	}
	for u := 0; u < n; u++ {
		if u != c && color[u] == -1 {
			color[u] = 1
			order[u] = count
			count++
		}
	}
	rsize := n - lsize - 1

	// Renumber onto centroid-first order and rebuild parents for the
	// whole subtree and for each bucket (the centroid is index 0 of all
	// three).
	cparents := make([]int, n)
	cvs := make([]int, n)
	lparents := make([]int, lsize+1)
	lvs := make([]int, lsize+1)
	rparents := make([]int, rsize+1)
	rvs := make([]int, rsize+1)
	cparents[0] = -1
	lparents[0] = -1
	rparents[0] = -1
	for u := 0; u < n; u++ {
		i := order[u]
		cvs[i] = vs[u]
		if color[u] != 1 {
			lvs[i] = vs[u]
		}
		if color[u] != 0 {
			if i == 0 {
				rvs[0] = vs[u]
			} else {
				rvs[i-lsize] = vs[u]
			}
		}
	}
	for u := 1; u < n; u++ {
		x := order[u]
		y := order[parents[u]]
		if x > y {
			x, y = y, x
		}
		cparents[y] = x
		if color[u] != 1 && color[parents[u]] != 1 {
			lparents[y] = x
		}
		if color[u] != 0 && color[parents[u]] != 0 {
			ry := y - lsize
			if y == 0 {
				ry = 0
			}
			rx := x - lsize
			if x == 0 {
				rx = 0
			}
			rparents[ry] = rx
		}
	}

	f(cparents, cvs, lsize, rsize)
	decomposeDFS(lparents, lvs, f)
	decomposeDFS(rparents, rvs, f)
}
