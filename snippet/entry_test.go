// Copyright (C) 2025 Bering Labs (oss@beringlabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package snippet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseToEntry(t *testing.T, args, defaultName string, isMod bool) (Entry, error) {
	t.Helper()
	parsed, err := parseEntryArgs(args)
	require.NoError(t, err)
	return toEntry(parsed, defaultName, isMod)
}

func TestParseEntryArgs(t *testing.T) {
	tests := []struct {
		name string
		args string
		want Entry
	}{
		{"positional name", `"SegTree"`, Entry{Name: "SegTree"}},
		{"named name", `name = "SegTree"`, Entry{Name: "SegTree"}},
		{"includes", `"A" include("B", "C")`, Entry{Name: "A", Include: []string{"B", "C"}}},
		{"comma separated", `"A", include("B")`, Entry{Name: "A", Include: []string{"B"}}},
		{"repeated include", `"A" include("B") include("C")`, Entry{Name: "A", Include: []string{"B", "C"}}},
		{"default name", ``, Entry{Name: "Fallback"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseToEntry(t, tt.args, "Fallback", false)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseEntryArgs_ModuleFlags(t *testing.T) {
	e, err := parseToEntry(t, `"m" inline`, "", true)
	require.NoError(t, err)
	assert.True(t, e.Inline)

	e, err = parseToEntry(t, `"m" no_inline`, "", true)
	require.NoError(t, err)
	assert.False(t, e.Inline)
}

func TestParseEntryArgs_Errors(t *testing.T) {
	// inline only applies to modules.
	_, err := parseToEntry(t, `"x" inline`, "", false)
	assert.Error(t, err)

	// duplicate names.
	_, err = parseToEntry(t, `"x" name = "y"`, "", false)
	assert.Error(t, err)

	// duplicate inline flags.
	_, err = parseToEntry(t, `"m" inline no_inline`, "", true)
	assert.Error(t, err)

	// no name anywhere.
	_, err = parseToEntry(t, ``, "", false)
	assert.Error(t, err)

	// grammar errors.
	_, err = parseEntryArgs(`includes("A")`)
	assert.Error(t, err)
	_, err = parseEntryArgs(`include()`)
	assert.Error(t, err)
	_, err = parseEntryArgs(`"unterminated`)
	assert.Error(t, err)
	_, err = parseEntryArgs(`name "x"`)
	assert.Error(t, err)
}

func TestDirectiveBody(t *testing.T) {
	body, ok := directiveBody(`//codesnip:entry "A"`)
	require.True(t, ok)
	assert.Equal(t, `entry "A"`, body)

	_, ok = directiveBody("// just a comment")
	assert.False(t, ok)
	_, ok = directiveBody("//go:generate stringer")
	assert.False(t, ok)
}

func TestSplitDirective(t *testing.T) {
	verb, rest := splitDirective(`entry "A" include("B")`)
	assert.Equal(t, "entry", verb)
	assert.Equal(t, `"A" include("B")`, rest)

	verb, rest = splitDirective("skip")
	assert.Equal(t, "skip", verb)
	assert.Empty(t, rest)
}

func TestTagSetEvalCfg(t *testing.T) {
	ts := NewTagSet([]string{"nightly", "fast"})

	assert.True(t, ts.evalCfg("nightly"))
	assert.False(t, ts.evalCfg("verify"))
	assert.True(t, ts.evalCfg("nightly && fast"))
	assert.False(t, ts.evalCfg("nightly && verify"))
	assert.True(t, ts.evalCfg("nightly || verify"))
	assert.True(t, ts.evalCfg("!verify"))
	assert.True(t, ts.evalCfg("(nightly || verify) && !slow"))

	// Unparseable predicates conservatively evaluate true.
	assert.True(t, ts.evalCfg("&&& bad"))
	assert.True(t, ts.evalCfg(""))
}

func TestSplitCfgAttr(t *testing.T) {
	pred, attr, ok := splitCfgAttr(`nightly, codesnip:entry "x"`)
	require.True(t, ok)
	assert.Equal(t, "nightly", pred)
	assert.Equal(t, `codesnip:entry "x"`, attr)

	_, _, ok = splitCfgAttr("no comma here")
	assert.False(t, ok)
}
