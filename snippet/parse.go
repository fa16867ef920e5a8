// Copyright (C) 2025 Bering Labs (oss@beringlabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package snippet

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Item is one extractable unit: a top-level declaration, or a module
// introduced by a //codesnip:mod directive.
type Item struct {
	// Ident is the declared identifier ("" when the item has none).
	Ident string

	// Name is the default snippet name: Ident qualified by the module
	// path ("x.Foo" for Foo declared inside module x). Empty when the
	// item has no identifier; such items need an explicit entry name.
	Name string

	// IsMod marks module items; their content is in Children.
	IsMod bool

	// Entries holds the item's well-formed entry directives.
	Entries []Entry

	// Skip marks items carrying //codesnip:skip.
	Skip bool

	// Attrs lists non-entry directive names seen on the item:
	// "codesnip:<verb>" for unrecognised //codesnip: directives and the
	// name of other //tool:verb comments ("go:generate",
	// "nolint:unused", ...). Filters match against these.
	Attrs []string

	// Text is the item's source text, doc comment included, with every
	// //codesnip: directive line removed. Empty for modules.
	Text string

	// Children holds a module's items.
	Children []Item
}

// ReadFileFunc loads one source file. The default is os.ReadFile; tests
// and embedded callers substitute their own.
type ReadFileFunc func(path string) ([]byte, error)

// Walker parses target files into item trees.
type Walker struct {
	// Read loads files; nil means os.ReadFile.
	Read ReadFileFunc

	// Tags is the cfg configuration; nil means no tags enabled.
	Tags TagSet
}

func (w *Walker) read(path string) ([]byte, error) {
	if w.Read != nil {
		return w.Read(path)
	}
	return os.ReadFile(path)
}

// ParseFile parses path and returns its items, expanding every
// //codesnip:mod directive from neighbour files and applying cfg
// preprocessing. The first file-system or parse failure aborts the walk.
func (w *Walker) ParseFile(ctx context.Context, path string) ([]Item, error) {
	_, span := otel.Tracer("algokit").Start(ctx, "snippet.ParseFile",
		trace.WithAttributes(attribute.String("path", path)))
	defer span.End()

	items, err := w.parseFile(path, nil, map[string]bool{})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("items", len(items)))
	return items, nil
}

func (w *Walker) parseFile(path string, modPath []string, onStack map[string]bool) ([]Item, error) {
	if onStack[path] {
		return nil, fmt.Errorf("%w: %s", ErrModuleCycle, path)
	}
	onStack[path] = true
	defer delete(onStack, path)

	src, err := w.read(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFileNotFound, path, err)
	}
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, src, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParse, path, err)
	}

	// Comment groups serving as declaration docs belong to their
	// declaration; the rest are candidates for standalone directives
	// such as //codesnip:mod.
	docGroups := map[*ast.CommentGroup]bool{file.Doc: true}
	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			docGroups[d.Doc] = true
		case *ast.GenDecl:
			docGroups[d.Doc] = true
		}
	}

	var items []Item
	for _, decl := range file.Decls {
		it, keep, err := w.declItem(fset, src, decl, modPath)
		if err != nil {
			return nil, err
		}
		if keep {
			items = append(items, it)
		}
	}
	for _, group := range file.Comments {
		if docGroups[group] {
			continue
		}
		it, keep, err := w.modItem(path, group, modPath, onStack)
		if err != nil {
			return nil, err
		}
		if keep {
			items = append(items, it)
		}
	}
	return items, nil
}

// declItem builds the item of one top-level declaration. keep=false means
// the item was dropped by a cfg predicate.
func (w *Walker) declItem(fset *token.FileSet, src []byte, decl ast.Decl, modPath []string) (Item, bool, error) {
	var doc *ast.CommentGroup
	switch d := decl.(type) {
	case *ast.FuncDecl:
		doc = d.Doc
	case *ast.GenDecl:
		doc = d.Doc
	}

	var lines []string
	if doc != nil {
		for _, c := range doc.List {
			lines = append(lines, c.Text)
		}
	}
	bodies, keep := preprocess(lines, w.Tags)
	if !keep {
		return Item{}, false, nil
	}

	ident := declIdent(decl)
	it := Item{
		Ident: ident,
		Name:  qualify(modPath, ident),
		Text:  renderDecl(fset, src, decl, doc),
	}
	w.applyDirectives(&it, bodies)
	return it, true, nil
}

// modItem builds a module item from a standalone comment group carrying a
// //codesnip:mod directive, expanding the module file. keep=false when
// the group declares no module or a cfg predicate drops it.
func (w *Walker) modItem(path string, group *ast.CommentGroup, modPath []string, onStack map[string]bool) (Item, bool, error) {
	var lines []string
	for _, c := range group.List {
		lines = append(lines, c.Text)
	}
	bodies, keep := preprocess(lines, w.Tags)
	if !keep {
		return Item{}, false, nil
	}

	name, pathAttr, rest, found := extractMod(bodies)
	if !found {
		return Item{}, false, nil
	}

	modFile, err := w.findModFile(path, name, pathAttr)
	if err != nil {
		return Item{}, false, err
	}
	children, err := w.parseFile(modFile, append(modPath, name), onStack)
	if err != nil {
		return Item{}, false, err
	}

	it := Item{
		Ident:    name,
		Name:     qualify(modPath, name),
		IsMod:    true,
		Children: children,
	}
	w.applyDirectives(&it, rest)
	return it, true, nil
}

// findModFile resolves a module reference: the path attribute when
// present, else name.go beside the parent file, else name/name.go.
func (w *Walker) findModFile(parent, name, pathAttr string) (string, error) {
	dir := filepath.Dir(parent)
	if pathAttr != "" {
		p := filepath.Join(dir, pathAttr)
		if _, err := w.read(p); err != nil {
			return "", fmt.Errorf("%w: module %q at %s", ErrModuleNotFound, name, p)
		}
		return p, nil
	}
	p1 := filepath.Join(dir, name+".go")
	if _, err := w.read(p1); err == nil {
		return p1, nil
	}
	p2 := filepath.Join(dir, name, name+".go")
	if _, err := w.read(p2); err == nil {
		return p2, nil
	}
	return "", fmt.Errorf("%w: module %q near %s", ErrModuleNotFound, name, parent)
}

// applyDirectives folds preprocessed directive bodies into the item:
// entries, skip, and attribute names for filtering. Malformed entry
// metadata is logged and skipped without failing the walk.
func (w *Walker) applyDirectives(it *Item, bodies []string) {
	for _, body := range bodies {
		if rest, ok := strings.CutPrefix(body, "@"); ok {
			it.Attrs = append(it.Attrs, rest)
			continue
		}
		verb, rest := splitDirective(body)
		switch verb {
		case "entry":
			args, err := parseEntryArgs(rest)
			if err == nil {
				var e Entry
				e, err = toEntry(args, it.Name, it.IsMod)
				if err == nil {
					it.Entries = append(it.Entries, e)
					continue
				}
			}
			slog.Warn("malformed entry directive, item skipped",
				slog.String("item", it.Name),
				slog.String("directive", body),
				slog.String("error", err.Error()),
			)
		case "skip":
			it.Skip = true
		case "mod":
			// Consumed by modItem; ignore on declarations.
		default:
			it.Attrs = append(it.Attrs, "codesnip:"+verb)
		}
	}
}

// preprocess implements conditional compilation over a doc comment's
// lines: cfg predicates decide whether the item survives, cfgattr
// directives flatten into their guarded directive, and every surviving
// //codesnip: body is returned. keep=false drops the item entirely.
// Non-codesnip directive comments (//go:generate and friends) surface as
// pseudo-bodies prefixed with "@" so callers can record them as
// attributes.
func preprocess(lines []string, tags TagSet) (bodies []string, keep bool) {
	keep = true
	for _, line := range lines {
		body, ok := directiveBody(line)
		if !ok {
			if name, isAttr := attrName(line); isAttr {
				bodies = append(bodies, "@"+name)
			}
			continue
		}
		verb, rest := splitDirective(body)
		switch verb {
		case "cfg":
			if !tags.evalCfg(rest) {
				keep = false
			}
		case "cfgattr":
			pred, attr, ok := splitCfgAttr(rest)
			if !ok {
				// Unparseable guards conservatively keep their payload.
				bodies = append(bodies, rest)
				continue
			}
			if tags.evalCfg(pred) {
				attr = strings.TrimPrefix(attr, "//")
				attr = strings.TrimPrefix(attr, "codesnip:")
				bodies = append(bodies, attr)
			}
		default:
			bodies = append(bodies, body)
		}
	}
	if !keep {
		return nil, false
	}
	// Route attribute pseudo-bodies to the end unchanged; applyDirectives
	// unwraps them.
	out := bodies[:0]
	var attrs []string
	for _, b := range bodies {
		if strings.HasPrefix(b, "@") {
			attrs = append(attrs, b)
			continue
		}
		out = append(out, b)
	}
	return append(out, attrs...), true
}

// attrName recognises non-codesnip directive comments of the //tool:verb
// shape and returns their name.
func attrName(line string) (string, bool) {
	t := strings.TrimSpace(line)
	if !strings.HasPrefix(t, "//") || strings.HasPrefix(t, "// ") {
		return "", false
	}
	t = t[2:]
	if i := strings.IndexByte(t, ' '); i >= 0 {
		t = t[:i]
	}
	if !strings.Contains(t, ":") {
		return "", false
	}
	return t, true
}

// extractMod pulls the mod directive out of preprocessed bodies,
// returning the module name, its optional path attribute, and the
// remaining bodies.
func extractMod(bodies []string) (name, pathAttr string, rest []string, found bool) {
	for _, body := range bodies {
		verb, args := splitDirective(body)
		if verb != "mod" || found {
			rest = append(rest, body)
			continue
		}
		tk := &tokenizer{src: args}
		tok, err := tk.next()
		if err != nil || tok.kind != tokIdent {
			rest = append(rest, body)
			continue
		}
		name = tok.text
		found = true
		if next, err := tk.next(); err == nil && next.kind == tokIdent && next.text == "path" {
			if err := tk.expect(tokEq); err == nil {
				if v, err := tk.next(); err == nil && v.kind == tokString {
					pathAttr = v.text
				}
			}
		}
	}
	return name, pathAttr, rest, found
}

func declIdent(decl ast.Decl) string {
	switch d := decl.(type) {
	case *ast.FuncDecl:
		return d.Name.Name
	case *ast.GenDecl:
		if len(d.Specs) != 1 {
			return ""
		}
		switch s := d.Specs[0].(type) {
		case *ast.TypeSpec:
			return s.Name.Name
		case *ast.ValueSpec:
			if len(s.Names) == 1 {
				return s.Names[0].Name
			}
		}
	}
	return ""
}

func qualify(modPath []string, ident string) string {
	if ident == "" {
		return ""
	}
	if len(modPath) == 0 {
		return ident
	}
	return strings.Join(modPath, ".") + "." + ident
}

// renderDecl slices the declaration's source text, doc comment included,
// and removes every //codesnip: directive line.
func renderDecl(fset *token.FileSet, src []byte, decl ast.Decl, doc *ast.CommentGroup) string {
	start := decl.Pos()
	if doc != nil {
		start = doc.Pos()
	}
	lo := fset.Position(start).Offset
	hi := fset.Position(decl.End()).Offset
	text := string(src[lo:hi])

	var sb strings.Builder
	for line := range strings.Lines(text) {
		if _, isDirective := directiveBody(line); isDirective {
			continue
		}
		sb.WriteString(line)
	}
	out := sb.String()
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	return out
}
