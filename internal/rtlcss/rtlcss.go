// Package rtlcss converts a left-to-right stylesheet into its right-to-left
// mirror image.
package rtlcss

import (
	"bytes"
	"errors"
	"io"
	"strings"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
)

// SyntaxError is returned when the stylesheet cannot be parsed.
type SyntaxError struct {
	Err error
}

func (e *SyntaxError) Error() string { return "css syntax error: " + e.Err.Error() }

func (e *SyntaxError) Unwrap() error { return e.Err }

// keywordProps are the properties whose left/right keyword values flip.
var keywordProps = map[string]bool{
	"float":           true,
	"clear":           true,
	"text-align":      true,
	"text-align-last": true,
}

// boxProps take one to four values ordered top, right, bottom, left.
var boxProps = map[string]bool{
	"margin":         true,
	"padding":        true,
	"border-width":   true,
	"border-style":   true,
	"border-color":   true,
	"inset":          true,
	"scroll-margin":  true,
	"scroll-padding": true,
}

var cursors = map[string]string{
	"e-resize":  "w-resize",
	"w-resize":  "e-resize",
	"ne-resize": "nw-resize",
	"nw-resize": "ne-resize",
	"se-resize": "sw-resize",
	"sw-resize": "se-resize",
}

// Flip returns the right-to-left version of src. Property names and values
// that encode a horizontal side are mirrored; sourceMappingURL comments are
// dropped since the source map describes the original file.
func Flip(src []byte) ([]byte, error) {
	p := css.NewParser(parse.NewInputBytes(src), false)
	w := &writer{}
	// Selectors before the last comma of a selector list.
	var selectors []string

	for {
		gt, _, data := p.Next()
		switch gt {
		case css.ErrorGrammar:
			err := p.Err()
			if errors.Is(err, io.EOF) {
				return w.buf.Bytes(), nil
			}
			return nil, &SyntaxError{Err: err}
		case css.CommentGrammar:
			if bytes.Contains(data, []byte("sourceMappingURL")) {
				continue
			}
			w.line(string(data))
		case css.AtRuleGrammar:
			w.line(string(data) + tokens(p.Values()) + ";")
		case css.BeginAtRuleGrammar:
			w.line(string(data) + tokens(p.Values()) + " {")
			w.depth++
		case css.QualifiedRuleGrammar:
			selectors = append(selectors, strings.TrimSpace(tokens(p.Values())))
		case css.BeginRulesetGrammar:
			selectors = append(selectors, strings.TrimSpace(tokens(p.Values())))
			w.line(strings.Join(selectors, ", ") + " {")
			selectors = nil
			w.depth++
		case css.EndAtRuleGrammar, css.EndRulesetGrammar:
			w.depth--
			w.line("}")
		case css.DeclarationGrammar:
			name, value := flipDeclaration(string(data), p.Values())
			w.line(name + ": " + value + ";")
		case css.CustomPropertyGrammar:
			w.line(string(data) + ":" + tokens(p.Values()) + ";")
		case css.TokenGrammar:
			// Body of an unknown at-rule, or a top-level <!-- / -->.
			if w.depth > 0 {
				w.raw(data)
			}
		}
	}
}

type writer struct {
	buf   bytes.Buffer
	depth int
	inRaw bool
}

func (w *writer) line(s string) {
	if w.inRaw {
		w.buf.WriteByte('\n')
		w.inRaw = false
	}
	if w.depth < 0 {
		w.depth = 0
	}
	w.buf.WriteString(strings.Repeat("  ", w.depth))
	w.buf.WriteString(s)
	w.buf.WriteByte('\n')
}

func (w *writer) raw(b []byte) {
	w.inRaw = true
	w.buf.Write(b)
}

func tokens(ts []css.Token) string {
	var b strings.Builder
	for _, t := range ts {
		b.Write(t.Data)
	}
	return b.String()
}

// flipDeclaration mirrors one declaration and returns its name and value.
func flipDeclaration(name string, values []css.Token) (string, string) {
	flipped := flipName(name)
	base := strings.TrimPrefix(name, "*")
	for _, prefix := range []string{"-webkit-", "-moz-", "-ms-", "-o-"} {
		base = strings.TrimPrefix(base, prefix)
	}

	switch {
	case keywordProps[base]:
		return flipped, swapIdents(values, map[string]string{"left": "right", "right": "left"})
	case base == "direction":
		return flipped, swapIdents(values, map[string]string{"ltr": "rtl", "rtl": "ltr"})
	case base == "cursor":
		return flipped, swapIdents(values, cursors)
	case boxProps[base]:
		return flipped, joinGroups(flipBox(splitGroups(values)))
	case base == "border-radius":
		return flipped, flipRadius(values)
	}
	return flipped, tokens(values)
}

// flipName swaps "left" and "right" segments of a hyphenated property name.
func flipName(name string) string {
	parts := strings.Split(name, "-")
	for i, part := range parts {
		switch part {
		case "left":
			parts[i] = "right"
		case "right":
			parts[i] = "left"
		}
	}
	return strings.Join(parts, "-")
}

func swapIdents(values []css.Token, swaps map[string]string) string {
	var b strings.Builder
	for _, t := range values {
		if t.TokenType == css.IdentToken {
			if repl, ok := swaps[strings.ToLower(string(t.Data))]; ok {
				b.WriteString(repl)
				continue
			}
		}
		b.Write(t.Data)
	}
	return b.String()
}

// splitGroups splits a value on top-level whitespace. Function arguments
// stay together.
func splitGroups(values []css.Token) [][]css.Token {
	var (
		groups  [][]css.Token
		current []css.Token
		level   int
	)
	for _, t := range values {
		switch t.TokenType {
		case css.FunctionToken, css.LeftParenthesisToken:
			level++
		case css.RightParenthesisToken:
			level--
		case css.WhitespaceToken:
			if level == 0 {
				if len(current) > 0 {
					groups = append(groups, current)
				}
				current = nil
				continue
			}
		}
		current = append(current, t)
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}
	return groups
}

func joinGroups(groups [][]css.Token) string {
	parts := make([]string, len(groups))
	for i, g := range groups {
		parts[i] = tokens(g)
	}
	return strings.Join(parts, " ")
}

// flipBox swaps the right and left values of a four-value shorthand. Shorter
// forms are symmetric. A trailing !important stays in place.
func flipBox(groups [][]css.Token) [][]css.Token {
	values, important := splitImportant(groups)
	if len(values) == 4 {
		values[1], values[3] = values[3], values[1]
	}
	return append(values, important...)
}

// flipRadius mirrors border-radius horizontally. Each side of an elliptical
// "/" is flipped on its own.
func flipRadius(values []css.Token) string {
	var halves [][]css.Token
	start := 0
	for i, t := range values {
		if t.TokenType == css.DelimToken && string(t.Data) == "/" {
			halves = append(halves, values[start:i])
			start = i + 1
		}
	}
	halves = append(halves, values[start:])

	out := make([]string, len(halves))
	for i, h := range halves {
		groups, important := splitImportant(splitGroups(h))
		out[i] = joinGroups(append(flipCorners(groups), important...))
	}
	return strings.Join(out, " / ")
}

// flipCorners maps top-left, top-right, bottom-right, bottom-left onto their
// mirrored positions.
func flipCorners(g [][]css.Token) [][]css.Token {
	switch len(g) {
	case 2:
		return [][]css.Token{g[1], g[0]}
	case 3:
		return [][]css.Token{g[1], g[0], g[1], g[2]}
	case 4:
		return [][]css.Token{g[1], g[0], g[3], g[2]}
	}
	return g
}

// splitImportant separates a trailing "!important" from the value groups. It
// accepts "4px!important" and "! important" as well.
func splitImportant(groups [][]css.Token) (values, important [][]css.Token) {
	n := len(groups)
	if n == 0 {
		return groups, nil
	}
	last := groups[n-1]
	for i, t := range last {
		if !isBang(t) {
			continue
		}
		if i == 0 {
			return groups[:n-1], groups[n-1:]
		}
		values = append(append(values, groups[:n-1]...), last[:i])
		return values, [][]css.Token{last[i:]}
	}
	if n > 1 && len(groups[n-2]) == 1 && isBang(groups[n-2][0]) &&
		len(last) == 1 && last[0].TokenType == css.IdentToken && strings.EqualFold(string(last[0].Data), "important") {
		return groups[:n-2], [][]css.Token{{groups[n-2][0], last[0]}}
	}
	return groups, nil
}

func isBang(t css.Token) bool {
	return t.TokenType == css.DelimToken && string(t.Data) == "!"
}

// Name returns the output filename for a stylesheet: "a.css" becomes
// "a.rtl.css".
func Name(filename string) string {
	if strings.HasSuffix(filename, ".css") {
		return strings.TrimSuffix(filename, ".css") + ".rtl.css"
	}
	return filename + ".rtl"
}

// IsRTLName reports whether filename is already an RTL output.
func IsRTLName(filename string) bool {
	return strings.HasSuffix(filename, "rtl.css")
}
