// Copyright (C) 2025 Bering Labs (oss@beringlabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package splaytree

import (
	"fmt"

	"github.com/beringlabs/algokit/algebra"
)

const null = -1

// node is one arena slot. agg and key always reflect every action applied
// to this subtree; lazy is pending only for the descendants' own slots,
// and rev means the children have been swapped here but not below.
type node[K, G, A any] struct {
	key    K
	agg    G
	lazy   A
	size   int
	rev    bool
	left   int
	right  int
	parent int
}

// Sequence is a positionally indexed list over a LazyMap: keys of type K,
// subtree aggregates of type G, range actions of type A.
//
// Invariants at a quiescent node x:
//   - size(x) == 1 + size(left) + size(right)
//   - agg(x) == in-order fold of Single over the subtree's keys
//   - lazy(x) != unit means an action still owed to every descendant
//   - rev(x) means the subtree's in-order sequence is reversed below x
type Sequence[K, G, A any] struct {
	lm     algebra.LazyMap[K, G, A]
	ma     algebra.Monoid[A]
	isUnit func(A) bool
	nodes  []node[K, G, A]
	free   []int
	root   int
	length int
	open   bool // a RangeHandle currently holds the tree split apart
}

// NewSequence creates an empty sequence over the given map.
func NewSequence[K, G, A any](lm algebra.LazyMap[K, G, A]) *Sequence[K, G, A] {
	return NewSequenceWithCapacity(lm, 0)
}

// NewSequenceWithCapacity pre-sizes the arena for capacity nodes.
func NewSequenceWithCapacity[K, G, A any](lm algebra.LazyMap[K, G, A], capacity int) *Sequence[K, G, A] {
	s := &Sequence[K, G, A]{
		lm:    lm,
		ma:    lm.ActionMonoid(),
		nodes: make([]node[K, G, A], 0, capacity),
		root:  null,
	}
	if d, ok := s.ma.(algebra.UnitDetector[A]); ok {
		s.isUnit = d.IsUnit
	}
	return s
}

// Len returns the number of keys in the sequence.
func (s *Sequence[K, G, A]) Len() int { return s.length }

func (s *Sequence[K, G, A]) alloc(k K) int {
	n := node[K, G, A]{
		key:    k,
		agg:    s.lm.Single(k),
		lazy:   s.ma.Unit(),
		size:   1,
		left:   null,
		right:  null,
		parent: null,
	}
	if ln := len(s.free); ln > 0 {
		x := s.free[ln-1]
		s.free = s.free[:ln-1]
		s.nodes[x] = n
		return x
	}
	s.nodes = append(s.nodes, n)
	return len(s.nodes) - 1
}

func (s *Sequence[K, G, A]) release(x int) {
	s.free = append(s.free, x)
}

func (s *Sequence[K, G, A]) size(x int) int {
	if x == null {
		return 0
	}
	return s.nodes[x].size
}

// applyAction composes a into x's pending action and updates x's key and
// aggregate immediately. When the map has no closed form for the
// aggregate, the action is pushed down instead and the aggregate rebuilt
// from the children.
func (s *Sequence[K, G, A]) applyAction(x int, a A) {
	if x == null {
		return
	}
	nd := &s.nodes[x]
	nd.lazy = s.ma.Operate(nd.lazy, a)
	nd.key = s.lm.ActKey(nd.key, a)
	if g, ok := s.lm.ActAgg(nd.agg, a); ok {
		nd.agg = g
		return
	}
	s.push(x)
	s.recalc(x)
}

// reverseNode swaps x's children eagerly and defers the rest of the
// reversal to its descendants via the rev flag.
func (s *Sequence[K, G, A]) reverseNode(x int) {
	if x == null {
		return
	}
	nd := &s.nodes[x]
	nd.left, nd.right = nd.right, nd.left
	nd.agg = s.lm.Toggle(nd.agg)
	nd.rev = !nd.rev
}

// push propagates x's pending action and reversal one level down. Must be
// called before any structural read of x's children.
func (s *Sequence[K, G, A]) push(x int) {
	nd := &s.nodes[x]
	a := nd.lazy
	nd.lazy = s.ma.Unit()
	if s.isUnit == nil || !s.isUnit(a) {
		s.applyAction(nd.left, a)
		s.applyAction(nd.right, a)
	}
	if nd.rev {
		nd.rev = false
		s.reverseNode(nd.left)
		s.reverseNode(nd.right)
	}
}

// recalc rebuilds x's size and aggregate from its children.
func (s *Sequence[K, G, A]) recalc(x int) {
	nd := &s.nodes[x]
	agg := s.lm.Single(nd.key)
	size := 1
	if l := nd.left; l != null {
		agg = s.lm.AggOperate(s.nodes[l].agg, agg)
		size += s.nodes[l].size
	}
	if r := nd.right; r != null {
		agg = s.lm.AggOperate(agg, s.nodes[r].agg)
		size += s.nodes[r].size
	}
	nd.agg = agg
	nd.size = size
}

// rotate moves x one level up, preserving the in-order sequence.
func (s *Sequence[K, G, A]) rotate(x int) {
	p := s.nodes[x].parent
	g := s.nodes[p].parent
	if s.nodes[p].left == x {
		b := s.nodes[x].right
		s.nodes[p].left = b
		if b != null {
			s.nodes[b].parent = p
		}
		s.nodes[x].right = p
	} else {
		b := s.nodes[x].left
		s.nodes[p].right = b
		if b != null {
			s.nodes[b].parent = p
		}
		s.nodes[x].left = p
	}
	s.nodes[p].parent = x
	s.nodes[x].parent = g
	if g != null {
		if s.nodes[g].left == p {
			s.nodes[g].left = x
		} else {
			s.nodes[g].right = x
		}
	}
	s.recalc(p)
	s.recalc(x)
}

// splay rotates x to the root of its tree. The access path must already
// be pushed (seek does this); splay itself performs no push-downs.
func (s *Sequence[K, G, A]) splay(x int) {
	for s.nodes[x].parent != null {
		p := s.nodes[x].parent
		g := s.nodes[p].parent
		if g == null {
			s.rotate(x)
		} else if (s.nodes[g].left == p) == (s.nodes[p].left == x) {
			s.rotate(p)
			s.rotate(x)
		} else {
			s.rotate(x)
			s.rotate(x)
		}
	}
}

// seek descends from subtree root t to the node at in-order position i,
// pushing pending state at every step, splays it to the top of that
// subtree and returns it. i must be in [0, size(t)).
func (s *Sequence[K, G, A]) seek(t, i int) int {
	x := t
	for {
		s.push(x)
		ls := s.size(s.nodes[x].left)
		switch {
		case i < ls:
			x = s.nodes[x].left
		case i == ls:
			s.splay(x)
			return x
		default:
			i -= ls + 1
			x = s.nodes[x].right
		}
	}
}

// split divides the subtree rooted at t into its first i keys and the
// rest, returning the two roots (-1 for an empty side).
func (s *Sequence[K, G, A]) split(t, i int) (int, int) {
	if t == null || i == 0 {
		return null, t
	}
	if i >= s.size(t) {
		return t, null
	}
	x := s.seek(t, i-1)
	b := s.nodes[x].right
	s.nodes[x].right = null
	s.nodes[b].parent = null
	s.recalc(x)
	return x, b
}

// merge concatenates two subtrees, a's keys before b's.
func (s *Sequence[K, G, A]) merge(a, b int) int {
	if a == null {
		return b
	}
	if b == null {
		return a
	}
	x := s.seek(a, s.size(a)-1)
	s.nodes[x].right = b
	s.nodes[b].parent = x
	s.recalc(x)
	return x
}

func (s *Sequence[K, G, A]) checkOpen() error {
	if s.open {
		return ErrRangeHandleOpen
	}
	return nil
}

func (s *Sequence[K, G, A]) checkRange(l, r int) error {
	if l < 0 || r > s.length || l > r {
		return fmt.Errorf("%w: [%d,%d) with len=%d", ErrInvalidRange, l, r, s.length)
	}
	return nil
}

// Insert places key k at position i; i == Len() appends.
func (s *Sequence[K, G, A]) Insert(i int, k K) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if i < 0 || i > s.length {
		return fmt.Errorf("%w: insert at %d with len=%d", ErrIndexOutOfRange, i, s.length)
	}
	x := s.alloc(k)
	a, b := s.split(s.root, i)
	s.root = s.merge(s.merge(a, x), b)
	s.length++
	return nil
}

// Remove deletes and returns the key at position i; ok=false when i is
// out of range.
func (s *Sequence[K, G, A]) Remove(i int) (K, bool) {
	var zero K
	if s.open || i < 0 || i >= s.length {
		return zero, false
	}
	x := s.seek(s.root, i)
	a := s.nodes[x].left
	b := s.nodes[x].right
	if a != null {
		s.nodes[a].parent = null
	}
	if b != null {
		s.nodes[b].parent = null
	}
	k := s.nodes[x].key
	s.release(x)
	s.root = s.merge(a, b)
	s.length--
	return k, true
}

// Get returns the key at position i; ok=false when i is out of range.
// The accessed node splays to the root.
func (s *Sequence[K, G, A]) Get(i int) (K, bool) {
	var zero K
	if s.open || i < 0 || i >= s.length {
		return zero, false
	}
	s.root = s.seek(s.root, i)
	return s.nodes[s.root].key, true
}

// Modify replaces the key at position i with f(key).
func (s *Sequence[K, G, A]) Modify(i int, f func(K) K) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if i < 0 || i >= s.length {
		return fmt.Errorf("%w: %d with len=%d", ErrIndexOutOfRange, i, s.length)
	}
	s.root = s.seek(s.root, i)
	nd := &s.nodes[s.root]
	nd.key = f(nd.key)
	s.recalc(s.root)
	return nil
}

// Update applies action a to every key in [l, r).
func (s *Sequence[K, G, A]) Update(l, r int, a A) error {
	h, err := s.Range(l, r)
	if err != nil {
		return err
	}
	defer h.Close()
	h.Apply(a)
	return nil
}

// Fold returns the aggregate of [l, r); the aggregate unit for an empty
// range.
func (s *Sequence[K, G, A]) Fold(l, r int) (G, error) {
	h, err := s.Range(l, r)
	if err != nil {
		var zero G
		return zero, err
	}
	defer h.Close()
	return h.Fold(), nil
}

// Reverse reverses the order of [l, r) in place.
func (s *Sequence[K, G, A]) Reverse(l, r int) error {
	h, err := s.Range(l, r)
	if err != nil {
		return err
	}
	defer h.Close()
	h.Reverse()
	return nil
}

// Keys returns the whole sequence in order. O(n).
func (s *Sequence[K, G, A]) Keys() ([]K, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	out := make([]K, 0, s.length)
	s.collect(s.root, &out)
	return out, nil
}

func (s *Sequence[K, G, A]) collect(x int, out *[]K) {
	if x == null {
		return
	}
	s.push(x)
	s.collect(s.nodes[x].left, out)
	*out = append(*out, s.nodes[x].key)
	s.collect(s.nodes[x].right, out)
}

// RangeHandle isolates a contiguous segment as its own subtree. While a
// handle is open it holds exclusive access to the sequence: until Close
// re-merges the three pieces, every other operation fails with
// ErrRangeHandleOpen, except Get and Remove, which report ok=false. Close is idempotent and safe to defer unconditionally.
type RangeHandle[K, G, A any] struct {
	s                *Sequence[K, G, A]
	left, mid, right int
	closed           bool
}

// Range isolates [l, r) and returns its handle.
func (s *Sequence[K, G, A]) Range(l, r int) (*RangeHandle[K, G, A], error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if err := s.checkRange(l, r); err != nil {
		return nil, err
	}
	a, bc := s.split(s.root, l)
	b, c := s.split(bc, r-l)
	s.open = true
	s.root = null
	return &RangeHandle[K, G, A]{s: s, left: a, mid: b, right: c}, nil
}

// Len returns the number of keys in the isolated segment.
func (h *RangeHandle[K, G, A]) Len() int {
	return h.s.size(h.mid)
}

// Apply applies action a to every key in the segment.
func (h *RangeHandle[K, G, A]) Apply(a A) {
	h.s.applyAction(h.mid, a)
}

// Fold returns the segment's aggregate.
func (h *RangeHandle[K, G, A]) Fold() G {
	if h.mid == null {
		return h.s.lm.AggUnit()
	}
	return h.s.nodes[h.mid].agg
}

// Reverse reverses the segment's order.
func (h *RangeHandle[K, G, A]) Reverse() {
	h.s.reverseNode(h.mid)
}

// Keys returns the segment's keys in order. O(len).
func (h *RangeHandle[K, G, A]) Keys() []K {
	out := make([]K, 0, h.s.size(h.mid))
	h.s.collect(h.mid, &out)
	return out
}

// Close re-merges the three pieces and returns exclusive access to the
// sequence. The tree invariant is restored no matter how the handle's
// user exited.
func (h *RangeHandle[K, G, A]) Close() {
	if h.closed {
		return
	}
	h.closed = true
	h.s.open = false
	h.s.root = h.s.merge(h.s.merge(h.left, h.mid), h.right)
}
