// Copyright (C) 2025 Bering Labs (oss@beringlabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package treetop

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/beringlabs/algokit/convolve"
)

// bfsDistanceOracle counts ordered pairs per distance by a BFS from every
// vertex.
func bfsDistanceOracle(tr *UndirectedTree) []uint64 {
	n := tr.Len()
	table := make([]uint64, n)
	for src := 0; src < n; src++ {
		dist := make([]int, n)
		for i := range dist {
			dist[i] = -1
		}
		dist[src] = 0
		queue := []int{src}
		for len(queue) > 0 {
			u := queue[0]
			queue = queue[1:]
			table[dist[u]]++
			for _, v := range tr.Neighbors(u) {
				if dist[v] == -1 {
					dist[v] = dist[u] + 1
					queue = append(queue, v)
				}
			}
		}
	}
	return table
}

func TestDistanceFrequencies_Path(t *testing.T) {
	tr := pathTree(4)
	table, err := DistanceFrequencies(context.Background(), tr, convolve.Schoolbook{})
	require.NoError(t, err)
	// Path on 4 vertices: 4 self pairs, 6 at distance 1, 4 at 2, 2 at 3.
	require.Equal(t, []uint64{4, 6, 4, 2}, table)
}

func TestDistanceFrequencies_Tiny(t *testing.T) {
	for n := 0; n <= 2; n++ {
		tr := pathTree(n)
		table, err := DistanceFrequencies(context.Background(), tr, convolve.Schoolbook{})
		require.NoError(t, err)
		require.Equal(t, bfsDistanceOracle(tr), table)
	}
}

func TestDistanceFrequencies_RandomTreesAgainstBFS(t *testing.T) {
	rng := rand.New(rand.NewSource(77))
	for trial := 0; trial < 40; trial++ {
		n := 1 + rng.Intn(90)
		tr := randomTree(rng, n)

		table, err := DistanceFrequencies(context.Background(), tr, convolve.Schoolbook{})
		require.NoError(t, err)
		require.Equal(t, bfsDistanceOracle(tr), table, "n=%d trial=%d", n, trial)
	}
}

func TestDistanceFrequencies_ConvolverIsPluggable(t *testing.T) {
	// Counts stay below the NTT modulus here, so both convolvers agree.
	rng := rand.New(rand.NewSource(13))
	tr := randomTree(rng, 64)

	a, err := DistanceFrequencies(context.Background(), tr, convolve.Schoolbook{})
	require.NoError(t, err)
	b, err := DistanceFrequencies(context.Background(), tr, convolve.NTT{})
	require.NoError(t, err)
	require.Equal(t, a, b)
}
