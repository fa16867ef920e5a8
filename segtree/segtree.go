// Copyright (C) 2025 Bering Labs (oss@beringlabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package segtree

import (
	"context"
	"fmt"
	"math/bits"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/beringlabs/algokit/algebra"
)

// SegmentTree supports point writes and O(log n) range folds over a monoid.
//
// Description:
//
//	An array-backed tree over n elements of T, folded under a caller
//	supplied monoid. Every mutation restores the internal-node invariant
//	(each internal node equals the fold of its two children) on the path
//	to the root before returning, so the root always holds the fold of
//	the whole sequence.
//
// Invariants:
//   - len(seg) == 2n, leaves at seg[n:2n]
//   - seg[i] == m.Operate(seg[2i], seg[2i+1]) for all 1 <= i < n
type SegmentTree[T any] struct {
	n   int
	m   algebra.Monoid[T]
	seg []T
}

// New creates a tree of n identity elements.
func New[T any](n int, m algebra.Monoid[T]) *SegmentTree[T] {
	seg := make([]T, 2*n)
	unit := m.Unit()
	for i := range seg {
		seg[i] = unit
	}
	return &SegmentTree[T]{n: n, m: m, seg: seg}
}

// FromSlice builds a tree over a copy of v in O(n).
func FromSlice[T any](ctx context.Context, v []T, m algebra.Monoid[T]) *SegmentTree[T] {
	_, span := otel.Tracer("algokit").Start(ctx, "segtree.FromSlice")
	defer span.End()
	span.SetAttributes(attribute.Int("size", len(v)))

	n := len(v)
	seg := make([]T, 2*n)
	unit := m.Unit()
	for i := range n {
		seg[i] = unit
		seg[n+i] = v[i]
	}
	for i := n - 1; i >= 1; i-- {
		seg[i] = m.Operate(seg[2*i], seg[2*i+1])
	}
	return &SegmentTree[T]{n: n, m: m, seg: seg}
}

// Len returns the number of elements.
func (st *SegmentTree[T]) Len() int { return st.n }

// Set writes x at index k and restores ancestors.
func (st *SegmentTree[T]) Set(k int, x T) error {
	if k < 0 || k >= st.n {
		return fmt.Errorf("%w: %d not in [0,%d)", ErrIndexOutOfRange, k, st.n)
	}
	k += st.n
	st.seg[k] = x
	for k /= 2; k > 0; k /= 2 {
		st.seg[k] = st.m.Operate(st.seg[2*k], st.seg[2*k+1])
	}
	return nil
}

// Clear resets index k to the identity element.
func (st *SegmentTree[T]) Clear(k int) error {
	return st.Set(k, st.m.Unit())
}

// Update composes x into index k on the right: seg[k] = Operate(seg[k], x).
func (st *SegmentTree[T]) Update(k int, x T) error {
	if k < 0 || k >= st.n {
		return fmt.Errorf("%w: %d not in [0,%d)", ErrIndexOutOfRange, k, st.n)
	}
	k += st.n
	st.seg[k] = st.m.Operate(st.seg[k], x)
	for k /= 2; k > 0; k /= 2 {
		st.seg[k] = st.m.Operate(st.seg[2*k], st.seg[2*k+1])
	}
	return nil
}

// Get reads the element at index k in O(1).
func (st *SegmentTree[T]) Get(k int) (T, error) {
	if k < 0 || k >= st.n {
		var zero T
		return zero, fmt.Errorf("%w: %d not in [0,%d)", ErrIndexOutOfRange, k, st.n)
	}
	return st.seg[k+st.n], nil
}

func (st *SegmentTree[T]) checkRange(l, r int) error {
	if l < 0 || r > st.n || l > r {
		return fmt.Errorf("%w: [%d,%d) with n=%d", ErrInvalidRange, l, r, st.n)
	}
	return nil
}

// Fold returns the fold of [l, r) in O(log n).
//
// The walk accumulates a left partial vl over the left skirt and a right
// partial vr over the right skirt, combining them only at the end as
// Operate(vl, vr). Keeping the two sides separate is what makes the fold
// order-correct for non-commutative monoids.
func (st *SegmentTree[T]) Fold(l, r int) (T, error) {
	if err := st.checkRange(l, r); err != nil {
		var zero T
		return zero, err
	}
	l += st.n
	r += st.n
	vl := st.m.Unit()
	vr := st.m.Unit()
	for l < r {
		if l&1 == 1 {
			vl = st.m.Operate(vl, st.seg[l])
			l++
		}
		if r&1 == 1 {
			r--
			vr = st.m.Operate(st.seg[r], vr)
		}
		l /= 2
		r /= 2
	}
	return st.m.Operate(vl, vr), nil
}

// FoldAll returns the fold of the entire sequence in O(1). The root is
// kept coherent by every mutation, so this reads seg[1] directly.
func (st *SegmentTree[T]) FoldAll() T {
	if st.n == 0 {
		return st.m.Unit()
	}
	return st.seg[1]
}

// bisectPerfect descends from a matched node to the leftmost leaf at which
// the running fold first satisfies pred. pos names a node whose inclusion
// is known to cross the predicate; acc is the fold strictly before it.
func (st *SegmentTree[T]) bisectPerfect(pos int, acc T, pred func(T) bool) (int, T) {
	for pos < st.n {
		pos <<= 1
		nacc := st.m.Operate(acc, st.seg[pos])
		if !pred(nacc) {
			acc = nacc
			pos++
		}
	}
	return pos - st.n, acc
}

// rbisectPerfect is the mirror descent toward the rightmost leaf.
func (st *SegmentTree[T]) rbisectPerfect(pos int, acc T, pred func(T) bool) (int, T) {
	for pos < st.n {
		pos = pos*2 + 1
		nacc := st.m.Operate(st.seg[pos], acc)
		if !pred(nacc) {
			acc = nacc
			pos--
		}
	}
	return pos - st.n, acc
}

// PositionAcc returns the first index i in [l, r) at which the running
// fold of [l, i] first satisfies pred, or ok=false when even the fold of
// the whole range does not.
//
// The walk visits the left skirt bottom-up and then the right skirt
// top-down, exactly as Fold would, keeping a running accumulator; the
// first skirt segment whose inclusion crosses the predicate boundary is
// refined by bisectPerfect. O(log n).
func (st *SegmentTree[T]) PositionAcc(l, r int, pred func(T) bool) (int, bool, error) {
	if err := st.checkRange(l, r); err != nil {
		return 0, false, err
	}
	l += st.n
	r += st.n
	k := 0
	acc := st.m.Unit()
	for l < r>>k {
		if l&1 == 1 {
			nacc := st.m.Operate(acc, st.seg[l])
			if pred(nacc) {
				i, _ := st.bisectPerfect(l, acc, pred)
				return i, true, nil
			}
			acc = nacc
			l++
		}
		l >>= 1
		k++
	}
	for k--; k >= 0; k-- {
		rk := r >> k
		if rk&1 == 1 {
			nacc := st.m.Operate(acc, st.seg[rk-1])
			if pred(nacc) {
				i, _ := st.bisectPerfect(rk-1, acc, pred)
				return i, true, nil
			}
			acc = nacc
		}
	}
	return 0, false, nil
}

// RPositionAcc returns the last index i in [l, r) at which the running
// fold of [i, r) first satisfies pred, walking from the right end, or
// ok=false when the fold of the whole range does not.
func (st *SegmentTree[T]) RPositionAcc(l, r int, pred func(T) bool) (int, bool, error) {
	if err := st.checkRange(l, r); err != nil {
		return 0, false, err
	}
	l += st.n
	r += st.n
	c := 0
	k := 0
	acc := st.m.Unit()
	for l>>k < r {
		c <<= 1
		if l&(1<<k) != 0 {
			l += 1 << k
			c++
		}
		if r&1 == 1 {
			r--
			nacc := st.m.Operate(st.seg[r], acc)
			if pred(nacc) {
				i, _ := st.rbisectPerfect(r, acc, pred)
				return i, true, nil
			}
			acc = nacc
		}
		r >>= 1
		k++
	}
	for k--; k >= 0; k-- {
		if c&1 == 1 {
			l -= 1 << k
			lk := l >> k
			nacc := st.m.Operate(st.seg[lk], acc)
			if pred(nacc) {
				i, _ := st.rbisectPerfect(lk, acc, pred)
				return i, true, nil
			}
			acc = nacc
		}
		c >>= 1
	}
	return 0, false, nil
}

// AsSlice returns the leaf storage. The slice aliases the tree; callers
// must not mutate it.
func (st *SegmentTree[T]) AsSlice() []T {
	return st.seg[st.n:]
}

// Height returns the number of levels below the root, counting leaves.
func (st *SegmentTree[T]) Height() int {
	if st.n == 0 {
		return 0
	}
	return bits.Len(uint(2*st.n - 1))
}

// Stats describes a tree's shape.
type Stats struct {
	Len     int // number of elements
	Storage int // backing array length
	Height  int // levels, leaves included
}

// Stats returns the tree's shape.
func (st *SegmentTree[T]) Stats() Stats {
	return Stats{Len: st.n, Storage: len(st.seg), Height: st.Height()}
}

// Validate checks the internal-node invariant against an equality
// function. O(n); intended for tests and debugging.
func (st *SegmentTree[T]) Validate(eq func(a, b T) bool) error {
	for i := 1; i < st.n; i++ {
		want := st.m.Operate(st.seg[2*i], st.seg[2*i+1])
		if !eq(st.seg[i], want) {
			return fmt.Errorf("node %d does not equal fold of children", i)
		}
	}
	return nil
}
