// Copyright (C) 2025 Bering Labs (oss@beringlabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package convolve supplies polynomial convolution over uint64 sequences.
// Consumers (treetop.DistanceFrequencies among them) depend only on the
// Convolver interface; Schoolbook and NTT are interchangeable behind it.
package convolve

import "math/bits"

// Convolver computes the convolution of two finite sequences:
// out[k] = sum over i+j==k of a[i]*b[j]. An empty input yields nil.
type Convolver interface {
	Convolve(a, b []uint64) []uint64
}

// Schoolbook is the quadratic direct convolution. Exact for any values
// whose products and partial sums fit in uint64.
type Schoolbook struct{}

// Convolve multiplies in O(len(a)*len(b)).
func (Schoolbook) Convolve(a, b []uint64) []uint64 {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	out := make([]uint64, len(a)+len(b)-1)
	for i, x := range a {
		if x == 0 {
			continue
		}
		for j, y := range b {
			out[i+j] += x * y
		}
	}
	return out
}

// Mod is the NTT-friendly prime 119*2^23 + 1.
const Mod = 998244353

const primitiveRoot = 3

// NTT convolves in O(m log m) over the field Z/Mod. Outputs are reduced
// modulo Mod; callers needing exact counts above the modulus should use
// Schoolbook or combine several prime moduli themselves.
type NTT struct{}

// Convolve multiplies modulo Mod.
func (NTT) Convolve(a, b []uint64) []uint64 {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	need := len(a) + len(b) - 1
	sz := 1 << bits.Len(uint(need-1))
	if need == 1 {
		sz = 1
	}
	fa := make([]uint64, sz)
	fb := make([]uint64, sz)
	for i, x := range a {
		fa[i] = x % Mod
	}
	for i, x := range b {
		fb[i] = x % Mod
	}
	transform(fa, false)
	transform(fb, false)
	for i := range fa {
		fa[i] = fa[i] * fb[i] % Mod
	}
	transform(fa, true)
	return fa[:need]
}

// transform runs an in-place iterative radix-2 transform; invert applies
// the inverse transform including the 1/n scaling.
func transform(a []uint64, invert bool) {
	n := len(a)
	if n == 1 {
		return
	}
	// Bit-reversal permutation.
	for i, j := 1, 0; i < n; i++ {
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j ^= bit
		}
		j ^= bit
		if i < j {
			a[i], a[j] = a[j], a[i]
		}
	}
	for length := 2; length <= n; length <<= 1 {
		w := modPow(primitiveRoot, (Mod-1)/uint64(length))
		if invert {
			w = modPow(w, Mod-2)
		}
		for i := 0; i < n; i += length {
			wn := uint64(1)
			half := length / 2
			for j := range half {
				u := a[i+j]
				v := a[i+j+half] * wn % Mod
				a[i+j] = (u + v) % Mod
				a[i+j+half] = (u + Mod - v) % Mod
				wn = wn * w % Mod
			}
		}
	}
	if invert {
		inv := modPow(uint64(n)%Mod, Mod-2)
		for i := range a {
			a[i] = a[i] * inv % Mod
		}
	}
}

func modPow(x, e uint64) uint64 {
	x %= Mod
	res := uint64(1)
	for e > 0 {
		if e&1 == 1 {
			res = res * x % Mod
		}
		x = x * x % Mod
		e >>= 1
	}
	return res
}
