// Copyright (C) 2025 Bering Labs (oss@beringlabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package segtree

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beringlabs/algokit/algebra"
)

func TestSegmentTree_AdditiveScenario(t *testing.T) {
	// Values [3,1,4,1,5,9]; add 7 at index 2.
	st := FromSlice(context.Background(), []int64{3, 1, 4, 1, 5, 9}, algebra.Additive[int64]{})
	require.NoError(t, st.Update(2, 7))

	sum, err := st.Fold(0, 6)
	require.NoError(t, err)
	assert.Equal(t, int64(30), sum)

	sum, err = st.Fold(2, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(17), sum)

	i, ok, err := st.PositionAcc(0, 6, func(s int64) bool { return s >= 20 })
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 4, i)

	assert.Equal(t, int64(30), st.FoldAll())
}

func TestSegmentTree_SetGetClear(t *testing.T) {
	st := New(4, algebra.MaxWithLowest[int64](0))
	require.NoError(t, st.Set(1, 9))
	require.NoError(t, st.Set(3, 4))

	v, err := st.Get(1)
	require.NoError(t, err)
	assert.Equal(t, int64(9), v)

	m, err := st.Fold(0, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(9), m)

	require.NoError(t, st.Clear(1))
	m, err = st.Fold(0, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(4), m)

	assert.Equal(t, []int64{0, 0, 0, 4}, st.AsSlice())
}

func TestSegmentTree_Errors(t *testing.T) {
	st := New(3, algebra.Additive[int64]{})
	assert.ErrorIs(t, st.Set(3, 1), ErrIndexOutOfRange)
	assert.ErrorIs(t, st.Update(-1, 1), ErrIndexOutOfRange)
	_, err := st.Get(5)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = st.Fold(2, 1)
	assert.ErrorIs(t, err, ErrInvalidRange)
	_, _, err = st.PositionAcc(0, 4, func(int64) bool { return true })
	assert.ErrorIs(t, err, ErrInvalidRange)
}

// Fold must combine left and right partials in sequence order even for a
// non-commutative monoid.
func TestSegmentTree_NonCommutativeFoldOrder(t *testing.T) {
	words := [][]byte{{'a'}, {'b'}, {'c'}, {'d'}, {'e'}, {'f'}, {'g'}}
	st := FromSlice(context.Background(), words, algebra.Concat[byte]{})
	for l := 0; l <= len(words); l++ {
		for r := l; r <= len(words); r++ {
			got, err := st.Fold(l, r)
			require.NoError(t, err)
			var want []byte
			for _, w := range words[l:r] {
				want = append(want, w...)
			}
			assert.Equal(t, string(want), string(got), "range [%d,%d)", l, r)
		}
	}
}

func TestSegmentTree_RandomAgainstPrefixSums(t *testing.T) {
	const n = 200
	const q = 500
	rng := rand.New(rand.NewSource(42))

	st := New(n, algebra.Additive[int64]{})
	arr := make([]int64, n+1)
	for range q {
		k := rng.Intn(n)
		v := rng.Int63n(1_000_000) + 1
		require.NoError(t, st.Set(k, v))
		arr[k+1] = v
	}
	prefix := make([]int64, n+1)
	for i := 0; i < n; i++ {
		prefix[i+1] = prefix[i] + arr[i+1]
	}

	for l := 0; l <= n; l += 7 {
		for r := l; r <= n; r += 5 {
			got, err := st.Fold(l, r)
			require.NoError(t, err)
			require.Equal(t, prefix[r]-prefix[l], got)
		}
	}

	require.NoError(t, st.Validate(func(a, b int64) bool { return a == b }))
}

// PositionAcc contract: predicate holds at the returned index's running
// fold, fails just before it, and fails for the whole range on not-found.
func TestSegmentTree_PositionAccContract(t *testing.T) {
	const n = 128
	rng := rand.New(rand.NewSource(7))
	vals := make([]int64, n)
	for i := range vals {
		vals[i] = rng.Int63n(50) + 1
	}
	st := FromSlice(context.Background(), vals, algebra.Additive[int64]{})

	fold := func(l, r int) int64 {
		var s int64
		for _, v := range vals[l:r] {
			s += v
		}
		return s
	}

	for range 500 {
		l := rng.Intn(n)
		r := l + 1 + rng.Intn(n-l)
		target := rng.Int63n(fold(0, n) + 10)
		pred := func(s int64) bool { return s >= target }

		i, ok, err := st.PositionAcc(l, r, pred)
		require.NoError(t, err)
		if ok {
			require.True(t, pred(fold(l, i+1)), "predicate at returned index")
			require.False(t, pred(fold(l, i)), "predicate just before")
		} else {
			require.False(t, pred(fold(l, r)), "whole range fails")
		}

		j, ok, err := st.RPositionAcc(l, r, pred)
		require.NoError(t, err)
		if ok {
			require.True(t, pred(fold(j, r)), "suffix predicate at returned index")
			require.False(t, pred(fold(j+1, r)), "suffix predicate just after")
		} else {
			require.False(t, pred(fold(l, r)))
		}
	}
}

func TestSegmentTree_PositionAccSubrangeTieBreak(t *testing.T) {
	// Earliest index wins for PositionAcc, latest for RPositionAcc.
	st := FromSlice(context.Background(), []int64{0, 5, 0, 5, 0}, algebra.Additive[int64]{})

	i, ok, err := st.PositionAcc(0, 5, func(s int64) bool { return s >= 5 })
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, i)

	j, ok, err := st.RPositionAcc(0, 5, func(s int64) bool { return s >= 5 })
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, j)

	_, ok, err = st.PositionAcc(2, 3, func(s int64) bool { return s >= 5 })
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSegmentTree_Stats(t *testing.T) {
	st := New(6, algebra.Additive[int64]{})
	s := st.Stats()
	assert.Equal(t, 6, s.Len)
	assert.Equal(t, 12, s.Storage)
	assert.Equal(t, 4, s.Height)

	lt := NewLazy(6, algebra.RangeSumRangeAdd[int64]{})
	assert.Equal(t, s, lt.Stats())
}

func TestSegmentTree_EmptyAndSingleton(t *testing.T) {
	empty := New(0, algebra.Additive[int64]{})
	assert.Equal(t, int64(0), empty.FoldAll())
	v, err := empty.Fold(0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)

	one := FromSlice(context.Background(), []int64{42}, algebra.Additive[int64]{})
	assert.Equal(t, int64(42), one.FoldAll())
	i, ok, err := one.PositionAcc(0, 1, func(s int64) bool { return s >= 42 })
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0, i)
}
