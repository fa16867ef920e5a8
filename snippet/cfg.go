// Copyright (C) 2025 Bering Labs (oss@beringlabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package snippet

import (
	"go/build/constraint"
	"strings"
)

// TagSet is the configuration cfg predicates evaluate against: the set of
// enabled tags, as passed on the command line with --cfg.
type TagSet map[string]bool

// NewTagSet builds a TagSet from a list of enabled tags.
func NewTagSet(tags []string) TagSet {
	ts := make(TagSet, len(tags))
	for _, t := range tags {
		ts[t] = true
	}
	return ts
}

// evalCfg evaluates a //codesnip:cfg predicate: a build-constraint
// expression (&&, ||, ! and parentheses over tags). Predicates that do
// not parse conservatively evaluate true, so a malformed condition keeps
// its item rather than silently dropping it.
func (ts TagSet) evalCfg(expr string) bool {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return true
	}
	e, err := constraint.Parse("//go:build " + expr)
	if err != nil {
		return true
	}
	return e.Eval(func(tag string) bool { return ts[tag] })
}

// splitCfgAttr separates a //codesnip:cfgattr body into its predicate and
// the directive it guards: "nightly, codesnip:entry \"x\"" ->
// ("nightly", "codesnip:entry \"x\""). The predicate grammar contains no
// commas, so the first comma is the separator.
func splitCfgAttr(body string) (pred, attr string, ok bool) {
	i := strings.IndexByte(body, ',')
	if i < 0 {
		return "", "", false
	}
	return strings.TrimSpace(body[:i]), strings.TrimSpace(body[i+1:]), true
}
