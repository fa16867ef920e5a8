// Copyright (C) 2025 Bering Labs (oss@beringlabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package snippet

import (
	"bytes"
	"context"
	"encoding/gob"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapFromSource(t *testing.T, files map[string]string, entry string, tags []string, filter Filter) *SnippetMap {
	t.Helper()
	w := &Walker{Read: fakeFS(files), Tags: NewTagSet(tags)}
	items, err := w.ParseFile(context.Background(), entry)
	require.NoError(t, err)
	m := NewMap()
	m.Collect(context.Background(), items, filter)
	return m
}

func TestBundle_CyclicIncludesTerminate(t *testing.T) {
	// A includes B; B includes A.
	files := map[string]string{
		"lib.go": `package lib

//codesnip:entry "A" include("B")
func A() {}

//codesnip:entry "B" include("A")
func B() {}
`,
	}
	m := mapFromSource(t, files, "lib.go", nil, Filter{})

	out, err := m.Bundle("A", nil, true)
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(out, "func A() {}"))
	assert.Equal(t, 1, strings.Count(out, "func B() {}"))
	assert.Contains(t, out, "// codesnip-guard: A")
	assert.Contains(t, out, "// codesnip-guard: B")
	// The target renders last.
	assert.Greater(t, strings.Index(out, "func A()"), strings.Index(out, "func B()"))
}

func TestBundle_TransitiveClosureAndExcludes(t *testing.T) {
	files := map[string]string{
		"lib.go": `package lib

//codesnip:entry "Top" include("Mid")
func Top() {}

//codesnip:entry "Mid" include("Base")
func Mid() {}

//codesnip:entry "Base"
func Base() {}
`,
	}
	m := mapFromSource(t, files, "lib.go", nil, Filter{})

	out, err := m.Bundle("Top", nil, true)
	require.NoError(t, err)
	assert.Contains(t, out, "func Base() {}")
	assert.Contains(t, out, "func Mid() {}")
	// Dependencies render in sorted order before the target.
	assert.Less(t, strings.Index(out, "func Base()"), strings.Index(out, "func Mid()"))
	assert.Less(t, strings.Index(out, "func Mid()"), strings.Index(out, "func Top()"))

	// Excluding Base removes it and it alone.
	out, err = m.Bundle("Top", []string{"Base"}, true)
	require.NoError(t, err)
	assert.NotContains(t, out, "func Base() {}")
	assert.Contains(t, out, "func Mid() {}")

	// Excluding the target itself yields nothing.
	out, err = m.Bundle("Top", []string{"Top"}, true)
	require.NoError(t, err)
	assert.Empty(t, out)

	_, err = m.Bundle("Missing", nil, true)
	assert.ErrorIs(t, err, ErrSnippetNotFound)
}

func TestBundle_Deterministic(t *testing.T) {
	files := map[string]string{
		"lib.go": `package lib

//codesnip:entry "Hub" include("Zeta", "Alpha", "Mu")
func Hub() {}

//codesnip:entry "Zeta"
func Zeta() {}

//codesnip:entry "Alpha"
func Alpha() {}

//codesnip:entry "Mu"
func Mu() {}
`,
	}
	m := mapFromSource(t, files, "lib.go", nil, Filter{})
	first, err := m.Bundle("Hub", nil, true)
	require.NoError(t, err)
	for range 10 {
		again, err := m.Bundle("Hub", nil, true)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}

func TestCollect_InlineModule(t *testing.T) {
	files := map[string]string{
		"lib.go": `package lib

//codesnip:entry "tools" inline
//codesnip:mod tools
`,
		"tools.go": `package tools

func Helper() {}

//codesnip:skip
func hiddenHelper() {}
`,
	}
	m := mapFromSource(t, files, "lib.go", nil, Filter{})

	link, ok := m.Map["tools"]
	require.True(t, ok)
	assert.Contains(t, link.Contents, "func Helper() {}")
	assert.NotContains(t, link.Contents, "hiddenHelper")
	// inline merges items without the module wrapper.
	assert.NotContains(t, link.Contents, "// module tools")
}

func TestCollect_NonInlineModuleKeepsWrapper(t *testing.T) {
	files := map[string]string{
		"lib.go":   "package lib\n\n//codesnip:entry \"tools\"\n//codesnip:mod tools\n",
		"tools.go": "package tools\n\nfunc Helper() {}\n",
	}
	m := mapFromSource(t, files, "lib.go", nil, Filter{})

	link := m.Map["tools"]
	require.NotNil(t, link)
	assert.Contains(t, link.Contents, "// module tools")
	assert.Contains(t, link.Contents, "func Helper() {}")
}

func TestCollect_FilterItemAndAttr(t *testing.T) {
	files := map[string]string{
		"lib.go": `package lib

//go:generate stringer -type=Kind
//codesnip:entry "Kind"
type Kind int

//nolint:unused
//codesnip:entry "Dropped"
func Dropped() {}
`,
	}
	filter := Filter{
		FilterItem: []string{"nolint:unused"},
		FilterAttr: []string{"go:generate"},
	}
	m := mapFromSource(t, files, "lib.go", nil, filter)

	kind := m.Map["Kind"]
	require.NotNil(t, kind)
	assert.Contains(t, kind.Contents, "type Kind int")
	assert.NotContains(t, kind.Contents, "go:generate")

	dropped := m.Map["Dropped"]
	require.NotNil(t, dropped)
	assert.Empty(t, dropped.Contents)
}

func TestSnippetMap_ExtendMerges(t *testing.T) {
	a := NewMap()
	a.get("x").Contents = "alpha\n"
	a.get("x").addInclude("dep1")

	b := NewMap()
	b.get("x").Contents = "beta\n"
	b.get("x").addInclude("dep2")
	b.get("y").Contents = "gamma\n"

	a.Extend(b)
	assert.Equal(t, "alpha\nbeta\n", a.Map["x"].Contents)
	assert.Equal(t, []string{"dep1", "dep2"}, a.Map["x"].Includes)
	assert.Equal(t, "gamma\n", a.Map["y"].Contents)
	assert.Equal(t, []string{"x", "y"}, a.Names())
}

func TestCacheRoundTrip(t *testing.T) {
	files := map[string]string{
		"lib.go": `package lib

//codesnip:entry "A" include("B")
func A() {}

//codesnip:entry "B"
func B() {}
`,
	}
	m := mapFromSource(t, files, "lib.go", nil, Filter{})

	var buf bytes.Buffer
	require.NoError(t, m.WriteCache(&buf))

	got, err := ReadCache(&buf)
	require.NoError(t, err)
	require.Equal(t, m.Names(), got.Names())
	for _, name := range m.Names() {
		assert.Equal(t, m.Map[name], got.Map[name])
	}
}

func TestReadCache_RejectsGarbageAndWrongVersion(t *testing.T) {
	_, err := ReadCache(bytes.NewReader([]byte("not a cache")))
	assert.Error(t, err)

	var buf bytes.Buffer
	require.NoError(t, gob.NewEncoder(&buf).Encode(cacheEnvelope{Version: cacheSchemaVersion + 1}))
	_, err = ReadCache(&buf)
	assert.ErrorIs(t, err, ErrCacheVersion)
}

func TestToVSCode(t *testing.T) {
	files := map[string]string{
		"lib.go": `package lib

//codesnip:entry "A" include("B")
func A() {}

//codesnip:entry "B"
func B() {}
`,
	}
	m := mapFromSource(t, files, "lib.go", nil, Filter{})

	withIncludes := m.ToVSCode(false)
	require.Contains(t, withIncludes, "A")
	joined := strings.Join(withIncludes["A"].Body, "\n")
	assert.Contains(t, joined, "func B() {}")
	assert.Contains(t, joined, "func A() {}")
	assert.Equal(t, "A", withIncludes["A"].Prefix)
	assert.Equal(t, "go", withIncludes["A"].Scope)

	bare := m.ToVSCode(true)
	joined = strings.Join(bare["A"].Body, "\n")
	assert.NotContains(t, joined, "func B() {}")
}
