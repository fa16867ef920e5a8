// Copyright (C) 2025 Bering Labs (oss@beringlabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package convolve

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchoolbook_Known(t *testing.T) {
	sb := Schoolbook{}
	// (1 + 2x)(3 + 4x) = 3 + 10x + 8x^2
	assert.Equal(t, []uint64{3, 10, 8}, sb.Convolve([]uint64{1, 2}, []uint64{3, 4}))
	assert.Equal(t, []uint64{6}, sb.Convolve([]uint64{2}, []uint64{3}))
	assert.Nil(t, sb.Convolve(nil, []uint64{1}))
	assert.Nil(t, sb.Convolve([]uint64{1}, nil))
}

func TestNTT_MatchesSchoolbook(t *testing.T) {
	rng := rand.New(rand.NewSource(31))
	sb := Schoolbook{}
	ntt := NTT{}
	for trial := 0; trial < 30; trial++ {
		la := 1 + rng.Intn(40)
		lb := 1 + rng.Intn(40)
		a := make([]uint64, la)
		b := make([]uint64, lb)
		for i := range a {
			a[i] = uint64(rng.Intn(1000))
		}
		for i := range b {
			b[i] = uint64(rng.Intn(1000))
		}
		want := sb.Convolve(a, b)
		for i := range want {
			want[i] %= Mod
		}
		got := ntt.Convolve(a, b)
		require.Equal(t, want, got, "la=%d lb=%d", la, lb)
	}
}

func TestNTT_SingleElement(t *testing.T) {
	got := NTT{}.Convolve([]uint64{7}, []uint64{6})
	require.Equal(t, []uint64{42}, got)
}

func TestNTT_ReducesInputs(t *testing.T) {
	got := NTT{}.Convolve([]uint64{Mod + 2}, []uint64{3})
	require.Equal(t, []uint64{6}, got)
}
