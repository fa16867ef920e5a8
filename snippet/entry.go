// Copyright (C) 2025 Bering Labs (oss@beringlabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package snippet

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Entry is the resolved metadata of one //codesnip:entry directive.
type Entry struct {
	Name    string
	Include []string
	Inline  bool
}

// directivePrefix introduces every extractor directive comment.
const directivePrefix = "//codesnip:"

// entryArg is one parsed argument of an entry directive.
type entryArg struct {
	kind  argKind
	value string   // name value
	items []string // include list
}

type argKind int

const (
	argName argKind = iota
	argInclude
	argInline
	argNoInline
)

// parseEntryArgs parses the argument list of an entry directive:
// a positional string or name = "..." for the name, include("a", "b"),
// and the inline / no_inline flags.
func parseEntryArgs(s string) ([]entryArg, error) {
	tk := &tokenizer{src: s}
	var args []entryArg
	for {
		tok, err := tk.next()
		if err != nil {
			return nil, err
		}
		if tok.kind == tokEOF {
			return args, nil
		}
		switch {
		case tok.kind == tokString:
			args = append(args, entryArg{kind: argName, value: tok.text})
		case tok.kind == tokIdent && tok.text == "name":
			if err := tk.expect(tokEq); err != nil {
				return nil, err
			}
			v, err := tk.next()
			if err != nil {
				return nil, err
			}
			if v.kind != tokString {
				return nil, fmt.Errorf("expected string after name =, got %q", v.text)
			}
			args = append(args, entryArg{kind: argName, value: v.text})
		case tok.kind == tokIdent && tok.text == "include":
			items, err := tk.stringList()
			if err != nil {
				return nil, err
			}
			args = append(args, entryArg{kind: argInclude, items: items})
		case tok.kind == tokIdent && tok.text == "inline":
			args = append(args, entryArg{kind: argInline})
		case tok.kind == tokIdent && tok.text == "no_inline":
			args = append(args, entryArg{kind: argNoInline})
		default:
			return nil, fmt.Errorf("expected `name` | `include` | `inline` | `no_inline`, got %q", tok.text)
		}
		// Arguments may be comma separated; a trailing comma is fine.
		if err := tk.skipComma(); err != nil {
			return nil, err
		}
	}
}

// toEntry resolves parsed arguments against the item they annotate.
// defaultName is the item's own name ("" when it has none); isMod reports
// whether the item is a module.
func toEntry(args []entryArg, defaultName string, isMod bool) (Entry, error) {
	var e Entry
	name := ""
	inlineSet := false
	for _, a := range args {
		switch a.kind {
		case argName:
			if name != "" {
				return e, fmt.Errorf("duplicate `name` specified")
			}
			name = a.value
		case argInclude:
			e.Include = append(e.Include, a.items...)
		case argInline, argNoInline:
			if !isMod {
				return e, fmt.Errorf("`inline` expected to apply to a module")
			}
			if inlineSet {
				return e, fmt.Errorf("duplicate inline flag specified")
			}
			inlineSet = true
			e.Inline = a.kind == argInline
		}
	}
	if name == "" {
		name = defaultName
	}
	if name == "" {
		return e, fmt.Errorf("`name` unspecified")
	}
	e.Name = name
	return e, nil
}

// tokenizer splits a directive argument string into strings, identifiers
// and punctuation.
type tokenizer struct {
	src string
	pos int
}

type tokKind int

const (
	tokEOF tokKind = iota
	tokString
	tokIdent
	tokEq
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokKind
	text string
}

func (tk *tokenizer) next() (token, error) {
	for tk.pos < len(tk.src) && unicode.IsSpace(rune(tk.src[tk.pos])) {
		tk.pos++
	}
	if tk.pos >= len(tk.src) {
		return token{kind: tokEOF}, nil
	}
	c := tk.src[tk.pos]
	switch {
	case c == '"':
		rest := tk.src[tk.pos:]
		// strconv handles escapes the way Go string literals do.
		end := 1
		for end < len(rest) {
			if rest[end] == '\\' {
				end += 2
				continue
			}
			if rest[end] == '"' {
				break
			}
			end++
		}
		if end >= len(rest) {
			return token{}, fmt.Errorf("unterminated string literal")
		}
		lit := rest[:end+1]
		val, err := strconv.Unquote(lit)
		if err != nil {
			return token{}, fmt.Errorf("bad string literal %s", lit)
		}
		tk.pos += end + 1
		return token{kind: tokString, text: val}, nil
	case c == '=':
		tk.pos++
		return token{kind: tokEq, text: "="}, nil
	case c == '(':
		tk.pos++
		return token{kind: tokLParen, text: "("}, nil
	case c == ')':
		tk.pos++
		return token{kind: tokRParen, text: ")"}, nil
	case c == ',':
		tk.pos++
		return token{kind: tokComma, text: ","}, nil
	case isIdentStart(c):
		start := tk.pos
		for tk.pos < len(tk.src) && isIdentPart(tk.src[tk.pos]) {
			tk.pos++
		}
		return token{kind: tokIdent, text: tk.src[start:tk.pos]}, nil
	default:
		return token{}, fmt.Errorf("unexpected character %q", c)
	}
}

func (tk *tokenizer) expect(kind tokKind) error {
	tok, err := tk.next()
	if err != nil {
		return err
	}
	if tok.kind != kind {
		return fmt.Errorf("unexpected token %q", tok.text)
	}
	return nil
}

// stringList parses ("a", "b", ...) with at least one element.
func (tk *tokenizer) stringList() ([]string, error) {
	if err := tk.expect(tokLParen); err != nil {
		return nil, err
	}
	var items []string
	for {
		tok, err := tk.next()
		if err != nil {
			return nil, err
		}
		if tok.kind == tokRParen && len(items) > 0 {
			return items, nil
		}
		if tok.kind != tokString {
			return nil, fmt.Errorf("expected string in include list, got %q", tok.text)
		}
		items = append(items, tok.text)
		tok, err = tk.next()
		if err != nil {
			return nil, err
		}
		if tok.kind == tokRParen {
			return items, nil
		}
		if tok.kind != tokComma {
			return nil, fmt.Errorf("expected , or ) in include list, got %q", tok.text)
		}
	}
}

// skipComma consumes an optional separating comma without disturbing any
// other token.
func (tk *tokenizer) skipComma() error {
	save := tk.pos
	tok, err := tk.next()
	if err != nil {
		return err
	}
	if tok.kind != tokComma {
		tk.pos = save
	}
	return nil
}

func isIdentStart(c byte) bool {
	return c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || ('0' <= c && c <= '9')
}

// directiveBody returns the text after //codesnip: when line is a
// directive comment, with ok reporting the match.
func directiveBody(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, directivePrefix) {
		return "", false
	}
	return strings.TrimSpace(trimmed[len(directivePrefix):]), true
}

// splitDirective separates a directive body into its verb and argument
// string: "entry \"a\"" -> ("entry", "\"a\"").
func splitDirective(body string) (verb, rest string) {
	i := 0
	for i < len(body) && isIdentPart(body[i]) {
		i++
	}
	return body[:i], strings.TrimSpace(body[i:])
}
