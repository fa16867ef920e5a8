// Copyright (C) 2025 Bering Labs (oss@beringlabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package treetop

import (
	"context"

	"github.com/beringlabs/algokit/convolve"
)

// DistanceFrequencies returns table where table[d] counts ordered vertex
// pairs at shortest-path distance d; table[0] == n and the table sums to
// n*n.
//
// Each decomposed subtree contributes the cross-bucket pairs through its
// centroid: the per-bucket depth histograms are convolved with conv and
// added twice (once per pair orientation). Distances 0 and 1 are seeded
// directly, so the visitor only accounts for d >= 2 paths, which always
// cross a centroid exactly once over the whole recursion.
func DistanceFrequencies(ctx context.Context, adj Adjacency, conv convolve.Convolver) ([]uint64, error) {
	n := adj.Len()
	table := make([]uint64, n)
	if n == 0 {
		return table, nil
	}
	table[0] = uint64(n)
	if n == 1 {
		return table, nil
	}
	table[1] = uint64(2*n - 2)
	err := Decompose(ctx, adj, func(cparents, cvs []int, lsize, rsize int) {
		m := len(cvs)
		dist := make([]int, m)
		dmax := 0
		for i := 1; i < m; i++ {
			dist[i] = dist[cparents[i]] + 1
			if dist[i] > dmax {
				dmax = dist[i]
			}
		}
		f := make([]uint64, dmax+1)
		g := make([]uint64, dmax+1)
		for i := 1; i <= lsize; i++ {
			f[dist[i]]++
		}
		for i := lsize + 1; i < m; i++ {
			g[dist[i]]++
		}
		for len(f) > 0 && f[len(f)-1] == 0 {
			f = f[:len(f)-1]
		}
		for len(g) > 0 && g[len(g)-1] == 0 {
			g = g[:len(g)-1]
		}
		for i, x := range conv.Convolve(f, g) {
			table[i] += x * 2
		}
	})
	if err != nil {
		return nil, err
	}
	return table, nil
}
