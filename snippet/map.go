// Copyright (C) 2025 Bering Labs (oss@beringlabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package snippet

import (
	"context"
	"encoding/gob"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// LinkedSnippet is one snippet's rendered text plus its direct includes.
type LinkedSnippet struct {
	Contents string
	Includes []string // sorted, unique
}

// addInclude inserts name keeping Includes sorted and unique.
func (l *LinkedSnippet) addInclude(name string) {
	i, found := slices.BinarySearch(l.Includes, name)
	if found {
		return
	}
	l.Includes = slices.Insert(l.Includes, i, name)
}

// append merges another snippet collected under the same name.
func (l *LinkedSnippet) append(o *LinkedSnippet) {
	l.Contents += o.Contents
	for _, inc := range o.Includes {
		l.addInclude(inc)
	}
}

// SnippetMap maps snippet names to their linked snippets.
type SnippetMap struct {
	Map map[string]*LinkedSnippet
}

// NewMap returns an empty snippet map.
func NewMap() *SnippetMap {
	return &SnippetMap{Map: map[string]*LinkedSnippet{}}
}

func (m *SnippetMap) get(name string) *LinkedSnippet {
	l, ok := m.Map[name]
	if !ok {
		l = &LinkedSnippet{}
		m.Map[name] = l
	}
	return l
}

// Names returns the snippet names in sorted order.
func (m *SnippetMap) Names() []string {
	names := make([]string, 0, len(m.Map))
	for name := range m.Map {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Extend merges another map into this one; snippets collected under the
// same name concatenate.
func (m *SnippetMap) Extend(o *SnippetMap) {
	for _, name := range o.Names() {
		m.get(name).append(o.Map[name])
	}
}

// Filter selects what collection drops and strips.
type Filter struct {
	// FilterItem drops items whose attributes carry any of these names
	// (in addition to //codesnip:skip, which always drops).
	FilterItem []string

	// FilterAttr strips matching //name directive lines from rendered
	// text.
	FilterAttr []string
}

func (f Filter) isSkip(it *Item) bool {
	if it.Skip {
		return true
	}
	for _, attr := range it.Attrs {
		if slices.Contains(f.FilterItem, attr) {
			return true
		}
	}
	return false
}

// render produces an item's contribution to a snippet: its text with
// filtered attribute lines removed, or a comment-wrapped module body.
// Skipped items render empty.
func (f Filter) render(it *Item) string {
	if f.isSkip(it) {
		return ""
	}
	if it.IsMod {
		var sb strings.Builder
		fmt.Fprintf(&sb, "// module %s\n", it.Ident)
		for i := range it.Children {
			sb.WriteString(f.render(&it.Children[i]))
		}
		fmt.Fprintf(&sb, "// end module %s\n", it.Ident)
		return sb.String()
	}
	return f.stripAttrs(it.Text)
}

func (f Filter) stripAttrs(text string) string {
	if len(f.FilterAttr) == 0 {
		return text
	}
	var sb strings.Builder
	for line := range strings.Lines(text) {
		if name, ok := attrName(line); ok && slices.Contains(f.FilterAttr, name) {
			continue
		}
		sb.WriteString(line)
	}
	return sb.String()
}

// Collect walks the item tree and gathers every entry into the map. An
// inline entry on a module merges the module's items directly into the
// snippet text instead of keeping the module wrapper.
func (m *SnippetMap) Collect(ctx context.Context, items []Item, filter Filter) {
	_, span := otel.Tracer("algokit").Start(ctx, "snippet.Collect")
	defer span.End()

	m.collect(items, filter)

	span.SetAttributes(attribute.Int("snippets", len(m.Map)))
	slog.Debug("snippet collection complete",
		slog.Int("items", len(items)),
		slog.Int("snippets", len(m.Map)),
	)
}

func (m *SnippetMap) collect(items []Item, filter Filter) {
	for i := range items {
		it := &items[i]
		for _, e := range it.Entries {
			link := m.get(e.Name)
			if it.IsMod && e.Inline {
				if !filter.isSkip(it) {
					for j := range it.Children {
						link.Contents += filter.render(&it.Children[j])
					}
				}
			} else {
				link.Contents += filter.render(it)
			}
			for _, inc := range e.Include {
				link.addInclude(inc)
			}
		}
		m.collect(it.Children, filter)
	}
}

// resolveIncludes returns the closure of includes under the include
// relation, seeded with used. A visited set makes cyclic include graphs
// terminate; unknown names stay in the closure so excludes can still name
// them.
func (m *SnippetMap) resolveIncludes(used map[string]bool, includes []string) map[string]bool {
	visited := make(map[string]bool, len(used)+len(includes))
	for name := range used {
		visited[name] = true
	}
	stack := make([]string, 0, len(includes))
	for _, inc := range includes {
		if !visited[inc] {
			visited[inc] = true
		}
		stack = append(stack, inc)
	}
	for len(stack) > 0 {
		inc := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		link, ok := m.Map[inc]
		if !ok {
			continue
		}
		for _, next := range link.Includes {
			if !visited[next] {
				visited[next] = true
				stack = append(stack, next)
			}
		}
	}
	return visited
}

// Bundle renders name's snippet preceded by every snippet reachable from
// it under include, minus excludes and name itself, each exactly once in
// sorted order. With guard set, each piece is preceded by a
// "// codesnip-guard: <name>" header line.
func (m *SnippetMap) Bundle(name string, excludes []string, guard bool) (string, error) {
	link, ok := m.Map[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrSnippetNotFound, name)
	}
	used := make(map[string]bool, len(excludes)+1)
	for _, ex := range excludes {
		used[ex] = true
	}
	if used[name] {
		return "", nil
	}
	used[name] = true

	visited := m.resolveIncludes(used, link.Includes)
	deps := make([]string, 0, len(visited))
	for dep := range visited {
		if !used[dep] {
			deps = append(deps, dep)
		}
	}
	sort.Strings(deps)

	var sb strings.Builder
	for _, dep := range deps {
		if guard {
			sb.WriteString("// codesnip-guard: " + dep + "\n")
		}
		if nl, ok := m.Map[dep]; ok {
			sb.WriteString(nl.Contents)
		}
	}
	if guard {
		sb.WriteString("// codesnip-guard: " + name + "\n")
	}
	sb.WriteString(link.Contents)
	return sb.String(), nil
}

// VSCodeSnippet is one entry of a VSCode snippets JSON object.
type VSCodeSnippet struct {
	Prefix string   `json:"prefix"`
	Body   []string `json:"body"`
	Scope  string   `json:"scope"`
}

// ToVSCode renders the map as a VSCode snippets object. Unless
// ignoreInclude is set, each body is prefixed with the text of its
// resolved include closure.
func (m *SnippetMap) ToVSCode(ignoreInclude bool) map[string]VSCodeSnippet {
	out := make(map[string]VSCodeSnippet, len(m.Map))
	for name, link := range m.Map {
		body := link.Contents
		if !ignoreInclude {
			used := map[string]bool{name: true}
			visited := m.resolveIncludes(used, link.Includes)
			deps := make([]string, 0, len(visited))
			for dep := range visited {
				if dep != name {
					deps = append(deps, dep)
				}
			}
			sort.Strings(deps)
			var sb strings.Builder
			for _, dep := range deps {
				if nl, ok := m.Map[dep]; ok {
					sb.WriteString(nl.Contents)
				}
			}
			sb.WriteString(link.Contents)
			body = sb.String()
		}
		out[name] = VSCodeSnippet{
			Prefix: name,
			Body:   strings.Split(strings.TrimRight(body, "\n"), "\n"),
			Scope:  "go",
		}
	}
	return out
}

// cacheSchemaVersion tags the cache blob layout; bump when LinkedSnippet
// or the envelope changes shape.
const cacheSchemaVersion = 1

type cacheEnvelope struct {
	Version int
	Map     map[string]*LinkedSnippet
}

// WriteCache serialises the map as a self-described binary blob.
func (m *SnippetMap) WriteCache(w io.Writer) error {
	env := cacheEnvelope{Version: cacheSchemaVersion, Map: m.Map}
	if err := gob.NewEncoder(w).Encode(env); err != nil {
		return fmt.Errorf("encode snippet cache: %w", err)
	}
	return nil
}

// ReadCache deserialises a blob written by WriteCache.
func ReadCache(r io.Reader) (*SnippetMap, error) {
	var env cacheEnvelope
	if err := gob.NewDecoder(r).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode snippet cache: %w", err)
	}
	if env.Version != cacheSchemaVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrCacheVersion, env.Version, cacheSchemaVersion)
	}
	if env.Map == nil {
		env.Map = map[string]*LinkedSnippet{}
	}
	return &SnippetMap{Map: env.Map}, nil
}
