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

// LazySegmentTree supports O(log n) range application of monoid actions
// and O(log n) range folds.
//
// Description:
//
//	Each node carries a value and a pending action not yet reflected into
//	it. The effective value of node i is Act(val[i], pend[i]), and for
//	every internal node the effective value equals the fold of the
//	children's effective values. Range operations thrust the two boundary
//	leaves (push every ancestor's pending action down from the root)
//	before walking the skirts, then recalc ancestors bottom-up.
//
// Pending actions on leaves are immaterial to correctness but are kept
// for uniformity, exactly like internal nodes.
//
// When the action monoid implements algebra.UnitDetector, identity
// actions are detected during propagation and skipped.
type LazySegmentTree[V, A any] struct {
	n      int
	act    algebra.MonoidAction[V, A]
	mv     algebra.Monoid[V]
	ma     algebra.Monoid[A]
	isUnit func(A) bool // nil when the action monoid has no detector
	val    []V
	pend   []A
}

// NewLazy creates a lazy tree of n identity values.
func NewLazy[V, A any](n int, act algebra.MonoidAction[V, A]) *LazySegmentTree[V, A] {
	return lazyFrom(n, nil, act)
}

// LazyFromSlice builds a lazy tree over a copy of v in O(n).
func LazyFromSlice[V, A any](ctx context.Context, v []V, act algebra.MonoidAction[V, A]) *LazySegmentTree[V, A] {
	_, span := otel.Tracer("algokit").Start(ctx, "segtree.LazyFromSlice")
	defer span.End()
	span.SetAttributes(attribute.Int("size", len(v)))
	return lazyFrom(len(v), v, act)
}

func lazyFrom[V, A any](n int, v []V, act algebra.MonoidAction[V, A]) *LazySegmentTree[V, A] {
	mv := act.ValueMonoid()
	ma := act.ActionMonoid()
	lt := &LazySegmentTree[V, A]{
		n:    n,
		act:  act,
		mv:   mv,
		ma:   ma,
		val:  make([]V, 2*n),
		pend: make([]A, 2*n),
	}
	if d, ok := ma.(algebra.UnitDetector[A]); ok {
		lt.isUnit = d.IsUnit
	}
	vunit := mv.Unit()
	aunit := ma.Unit()
	for i := range lt.val {
		lt.val[i] = vunit
		lt.pend[i] = aunit
	}
	if v != nil {
		copy(lt.val[n:], v)
		for i := n - 1; i >= 1; i-- {
			lt.val[i] = mv.Operate(lt.val[2*i], lt.val[2*i+1])
		}
	}
	return lt
}

// Len returns the number of elements.
func (lt *LazySegmentTree[V, A]) Len() int { return lt.n }

// Stats returns the tree's shape.
func (lt *LazySegmentTree[V, A]) Stats() Stats {
	height := 0
	if lt.n > 0 {
		height = bits.Len(uint(2*lt.n - 1))
	}
	return Stats{Len: lt.n, Storage: len(lt.val), Height: height}
}

// propagate pushes the pending action of internal node k into both
// children and folds it into k's stored value, leaving k's pending empty.
func (lt *LazySegmentTree[V, A]) propagate(k int) {
	x := lt.pend[k]
	lt.pend[k] = lt.ma.Unit()
	if lt.isUnit != nil && lt.isUnit(x) {
		return
	}
	lt.pend[2*k] = lt.ma.Operate(lt.pend[2*k], x)
	lt.pend[2*k+1] = lt.ma.Operate(lt.pend[2*k+1], x)
	lt.val[k] = lt.act.Act(lt.val[k], x)
}

// thrust propagates every ancestor of node k, root first, so that the
// path from the root to k holds up-to-date values and empty pendings.
func (lt *LazySegmentTree[V, A]) thrust(k int) {
	for i := bits.Len(uint(k)) - 1; i >= 1; i-- {
		lt.propagate(k >> i)
	}
}

// reflect returns the effective value of node k without mutating storage.
func (lt *LazySegmentTree[V, A]) reflect(k int) V {
	if lt.isUnit != nil && lt.isUnit(lt.pend[k]) {
		return lt.val[k]
	}
	return lt.act.Act(lt.val[k], lt.pend[k])
}

// recalc restores ancestor values from node k up to the root.
func (lt *LazySegmentTree[V, A]) recalc(k int) {
	for k /= 2; k > 0; k /= 2 {
		lt.val[k] = lt.mv.Operate(lt.reflect(2*k), lt.reflect(2*k+1))
	}
}

// Update applies action x to every element of [l, r).
func (lt *LazySegmentTree[V, A]) Update(l, r int, x A) error {
	if err := lt.checkRange(l, r); err != nil {
		return err
	}
	if l == r {
		return nil
	}
	a := l + lt.n
	b := r + lt.n
	lt.thrust(a)
	lt.thrust(b - 1)
	for a < b {
		if a&1 == 1 {
			lt.pend[a] = lt.ma.Operate(lt.pend[a], x)
			a++
		}
		if b&1 == 1 {
			b--
			lt.pend[b] = lt.ma.Operate(lt.pend[b], x)
		}
		a /= 2
		b /= 2
	}
	lt.recalc(l + lt.n)
	lt.recalc(r + lt.n - 1)
	return nil
}

// Fold returns the fold of the effective values of [l, r).
func (lt *LazySegmentTree[V, A]) Fold(l, r int) (V, error) {
	if err := lt.checkRange(l, r); err != nil {
		var zero V
		return zero, err
	}
	if l == r {
		return lt.mv.Unit(), nil
	}
	a := l + lt.n
	b := r + lt.n
	lt.thrust(a)
	lt.thrust(b - 1)
	vl := lt.mv.Unit()
	vr := lt.mv.Unit()
	for a < b {
		if a&1 == 1 {
			vl = lt.mv.Operate(vl, lt.reflect(a))
			a++
		}
		if b&1 == 1 {
			b--
			vr = lt.mv.Operate(lt.reflect(b), vr)
		}
		a /= 2
		b /= 2
	}
	return lt.mv.Operate(vl, vr), nil
}

// Set overwrites the element at index k, discarding its pending action.
func (lt *LazySegmentTree[V, A]) Set(k int, x V) error {
	if k < 0 || k >= lt.n {
		return fmt.Errorf("%w: %d not in [0,%d)", ErrIndexOutOfRange, k, lt.n)
	}
	k += lt.n
	lt.thrust(k)
	lt.val[k] = x
	lt.pend[k] = lt.ma.Unit()
	lt.recalc(k)
	return nil
}

// Get returns the effective value of the element at index k.
func (lt *LazySegmentTree[V, A]) Get(k int) (V, error) {
	return lt.Fold(k, k+1)
}

// FoldAll folds the entire sequence. Unlike the strict tree there is no
// O(1) root read: the root's pending action may not be reflected yet.
func (lt *LazySegmentTree[V, A]) FoldAll() V {
	v, _ := lt.Fold(0, lt.n)
	return v
}

func (lt *LazySegmentTree[V, A]) checkRange(l, r int) error {
	if l < 0 || r > lt.n || l > r {
		return fmt.Errorf("%w: [%d,%d) with n=%d", ErrInvalidRange, l, r, lt.n)
	}
	return nil
}

func (lt *LazySegmentTree[V, A]) bisectPerfect(pos int, acc V, pred func(V) bool) (int, V) {
	for pos < lt.n {
		lt.propagate(pos)
		pos <<= 1
		nacc := lt.mv.Operate(acc, lt.reflect(pos))
		if !pred(nacc) {
			acc = nacc
			pos++
		}
	}
	return pos - lt.n, acc
}

func (lt *LazySegmentTree[V, A]) rbisectPerfect(pos int, acc V, pred func(V) bool) (int, V) {
	for pos < lt.n {
		lt.propagate(pos)
		pos = pos*2 + 1
		nacc := lt.mv.Operate(lt.reflect(pos), acc)
		if !pred(nacc) {
			acc = nacc
			pos--
		}
	}
	return pos - lt.n, acc
}

// PositionAcc is the lazy counterpart of SegmentTree.PositionAcc: the
// first index in [l, r) at which the running fold from l first satisfies
// pred. Each descent step propagates the node it passes through.
func (lt *LazySegmentTree[V, A]) PositionAcc(l, r int, pred func(V) bool) (int, bool, error) {
	if err := lt.checkRange(l, r); err != nil {
		return 0, false, err
	}
	if l == r {
		return 0, false, nil
	}
	a := l + lt.n
	b := r + lt.n
	lt.thrust(a)
	lt.thrust(b - 1)
	k := 0
	acc := lt.mv.Unit()
	for a < b>>k {
		if a&1 == 1 {
			nacc := lt.mv.Operate(acc, lt.reflect(a))
			if pred(nacc) {
				i, _ := lt.bisectPerfect(a, acc, pred)
				return i, true, nil
			}
			acc = nacc
			a++
		}
		a >>= 1
		k++
	}
	for k--; k >= 0; k-- {
		bk := b >> k
		if bk&1 == 1 {
			nacc := lt.mv.Operate(acc, lt.reflect(bk-1))
			if pred(nacc) {
				i, _ := lt.bisectPerfect(bk-1, acc, pred)
				return i, true, nil
			}
			acc = nacc
		}
	}
	return 0, false, nil
}

// RPositionAcc is the lazy counterpart of SegmentTree.RPositionAcc.
func (lt *LazySegmentTree[V, A]) RPositionAcc(l, r int, pred func(V) bool) (int, bool, error) {
	if err := lt.checkRange(l, r); err != nil {
		return 0, false, err
	}
	if l == r {
		return 0, false, nil
	}
	a := l + lt.n
	b := r + lt.n
	lt.thrust(a)
	lt.thrust(b - 1)
	c := 0
	k := 0
	acc := lt.mv.Unit()
	for a>>k < b {
		c <<= 1
		if a&(1<<k) != 0 {
			a += 1 << k
			c++
		}
		if b&1 == 1 {
			b--
			nacc := lt.mv.Operate(lt.reflect(b), acc)
			if pred(nacc) {
				i, _ := lt.rbisectPerfect(b, acc, pred)
				return i, true, nil
			}
			acc = nacc
		}
		b >>= 1
		k++
	}
	for k--; k >= 0; k-- {
		if c&1 == 1 {
			a -= 1 << k
			ak := a >> k
			nacc := lt.mv.Operate(lt.reflect(ak), acc)
			if pred(nacc) {
				i, _ := lt.rbisectPerfect(ak, acc, pred)
				return i, true, nil
			}
			acc = nacc
		}
		c >>= 1
	}
	return 0, false, nil
}
