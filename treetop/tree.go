// Copyright (C) 2025 Bering Labs (oss@beringlabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package treetop decomposes undirected trees: a BFS flattening with
// parent-before-child ordering, a 1/3 centroid decomposition driver that
// hands each decomposed subtree to a caller visitor, and the pairwise
// distance-frequency counter derived from it.
package treetop

import (
	"errors"
	"fmt"
)

// Sentinel errors for tree construction.
var (
	// ErrVertexOutOfRange is returned when an edge endpoint is not in
	// [0, n).
	ErrVertexOutOfRange = errors.New("vertex out of range")

	// ErrNotATree is returned when the adjacency structure is not a
	// single connected tree on its vertex set.
	ErrNotATree = errors.New("adjacency structure is not a tree")
)

// Adjacency is the tree view the decomposition consumes: each undirected
// edge appears once in each endpoint's neighbour list.
type Adjacency interface {
	// Len returns the number of vertices.
	Len() int

	// Neighbors returns the neighbour list of u. Callers must not mutate
	// the returned slice.
	Neighbors(u int) []int
}

// UndirectedTree is the shipped Adjacency implementation.
type UndirectedTree struct {
	n   int
	adj [][]int
}

// NewUndirectedTree creates a tree skeleton on n vertices with no edges.
func NewUndirectedTree(n int) *UndirectedTree {
	return &UndirectedTree{n: n, adj: make([][]int, n)}
}

// AddEdge records the undirected edge u-v.
func (t *UndirectedTree) AddEdge(u, v int) error {
	if u < 0 || u >= t.n || v < 0 || v >= t.n {
		return fmt.Errorf("%w: edge %d-%d with n=%d", ErrVertexOutOfRange, u, v, t.n)
	}
	t.adj[u] = append(t.adj[u], v)
	t.adj[v] = append(t.adj[v], u)
	return nil
}

// Len returns the number of vertices.
func (t *UndirectedTree) Len() int { return t.n }

// Neighbors returns u's neighbour list.
func (t *UndirectedTree) Neighbors(u int) []int { return t.adj[u] }

// flatten produces the BFS order vs (vs[0] == 0) and, for every vertex,
// its parent's BFS position: parents[i] < i for i > 0, parents[0] == -1.
// Both slices are indexed by BFS position; vs maps positions back to
// vertex labels.
func flatten(adj Adjacency) (parents, vs []int, err error) {
	n := adj.Len()
	if n == 0 {
		return nil, nil, nil
	}
	vs = make([]int, 0, n)
	parentOf := make([]int, n)
	for i := range parentOf {
		parentOf[i] = -1
	}
	seen := make([]bool, n)
	vs = append(vs, 0)
	seen[0] = true
	for l := 0; l < len(vs); l++ {
		u := vs[l]
		for _, v := range adj.Neighbors(u) {
			if v == parentOf[u] {
				continue
			}
			if seen[v] {
				return nil, nil, fmt.Errorf("%w: cycle through %d-%d", ErrNotATree, u, v)
			}
			seen[v] = true
			vs = append(vs, v)
			parentOf[v] = u
		}
	}
	if len(vs) != n {
		return nil, nil, fmt.Errorf("%w: %d of %d vertices reachable", ErrNotATree, len(vs), n)
	}
	pos := make([]int, n)
	for i, v := range vs {
		pos[v] = i
	}
	parents = make([]int, n)
	parents[0] = -1
	for v := 1; v < n; v++ {
		parents[pos[v]] = pos[parentOf[v]]
	}
	return parents, vs, nil
}

// Depths returns the distance of every vertex from root 0.
func Depths(adj Adjacency) ([]int, error) {
	parents, vs, err := flatten(adj)
	if err != nil {
		return nil, err
	}
	n := adj.Len()
	depth := make([]int, n)
	for i := 1; i < n; i++ {
		depth[vs[i]] = depth[vs[parents[i]]] + 1
	}
	return depth, nil
}
