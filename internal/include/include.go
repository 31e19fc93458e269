// Package include expands partial-include markers in HTML files.
//
// With the default "@@" prefix an entry file may contain
//
//	@@include('header.html')
//	@@include('card.html', {"title": "Hello"})
//
// Names resolve against the partials directory. Inside an included partial
// every @@key named by the context is replaced with its value. Partials may
// include other partials; a partial that includes itself, directly or
// through others, is an error.
package include

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ErrPartialNotFound is returned when an include names a file that does not
// exist under the partials directory.
var ErrPartialNotFound = errors.New("partial not found")

// ErrCycle is returned when partials include each other in a loop.
var ErrCycle = errors.New("include cycle")

const defaultCacheSize = 256

type cachedPartial struct {
	modTime time.Time
	size    int64
	content string
}

// Engine renders HTML files against one partials directory. It is safe for
// concurrent use.
type Engine struct {
	partials string
	prefix   string
	cache    *lru.Cache[string, cachedPartial]
}

// New creates an engine resolving partials under dir. prefix is the marker
// in front of include directives and context variables.
func New(dir, prefix string) (*Engine, error) {
	if prefix == "" {
		return nil, errors.New("include prefix must not be empty")
	}
	cache, err := lru.New[string, cachedPartial](defaultCacheSize)
	if err != nil {
		return nil, err
	}
	return &Engine{partials: dir, prefix: prefix, cache: cache}, nil
}

// Render expands every include in src. filename is used in error messages.
func (e *Engine) Render(filename string, src []byte) ([]byte, error) {
	out, err := e.render(filename, string(src), nil, nil)
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}

func (e *Engine) render(filename, src string, vars map[string]string, stack []string) (string, error) {
	if len(vars) > 0 {
		src = e.substitute(src, vars)
	}

	marker := e.prefix + "include("
	var b strings.Builder
	for {
		i := strings.Index(src, marker)
		if i < 0 {
			b.WriteString(src)
			return b.String(), nil
		}
		b.WriteString(src[:i])

		d, n, err := parseDirective(src[i+len(marker):])
		if err != nil {
			return "", fmt.Errorf("%s: %w", filename, err)
		}
		src = src[i+len(marker)+n:]

		body, err := e.expand(filename, d, vars, stack)
		if err != nil {
			return "", err
		}
		b.WriteString(body)
	}
}

func (e *Engine) expand(from string, d directive, parentVars map[string]string, stack []string) (string, error) {
	path := filepath.Join(e.partials, filepath.FromSlash(d.name))
	for _, p := range stack {
		if p == path {
			chain := append(append([]string(nil), stack...), path)
			return "", fmt.Errorf("%w: %s", ErrCycle, strings.Join(chain, " -> "))
		}
	}

	content, err := e.load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%s includes %q: %w", from, d.name, ErrPartialNotFound)
		}
		return "", fmt.Errorf("%s includes %q: %w", from, d.name, err)
	}

	vars := make(map[string]string, len(parentVars)+len(d.context))
	for k, v := range parentVars {
		vars[k] = v
	}
	for k, v := range d.context {
		vars[k] = v
	}
	return e.render(path, content, vars, append(stack, path))
}

// load returns the partial's content, reusing the cached copy while the
// file's modification time and size are unchanged.
func (e *Engine) load(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if c, ok := e.cache.Get(path); ok && c.modTime.Equal(info.ModTime()) && c.size == info.Size() {
		return c.content, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	e.cache.Add(path, cachedPartial{modTime: info.ModTime(), size: info.Size(), content: string(data)})
	return string(data), nil
}

// substitute replaces prefix+key for every key in vars. Longer keys are
// replaced first so @@titleText is not clobbered by @@title.
func (e *Engine) substitute(src string, vars map[string]string) string {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, e.prefix+k, vars[k])
	}
	return strings.NewReplacer(pairs...).Replace(src)
}

type directive struct {
	name    string
	context map[string]string
}

// parseDirective parses the arguments after "include(" up to and including
// the closing parenthesis. It returns the directive and the number of bytes
// consumed.
func parseDirective(s string) (directive, int, error) {
	var d directive
	pos := skipSpace(s, 0)
	if pos >= len(s) || (s[pos] != '\'' && s[pos] != '"') {
		return d, 0, errors.New("include: expected quoted file name")
	}
	quote := s[pos]
	end := strings.IndexByte(s[pos+1:], quote)
	if end < 0 {
		return d, 0, errors.New("include: unterminated file name")
	}
	d.name = s[pos+1 : pos+1+end]
	if d.name == "" {
		return d, 0, errors.New("include: empty file name")
	}
	pos = skipSpace(s, pos+end+2)

	if pos < len(s) && s[pos] == ',' {
		pos = skipSpace(s, pos+1)
		dec := json.NewDecoder(strings.NewReader(s[pos:]))
		dec.UseNumber()
		var raw map[string]any
		if err := dec.Decode(&raw); err != nil {
			return d, 0, fmt.Errorf("include %q: invalid context: %w", d.name, err)
		}
		d.context = make(map[string]string, len(raw))
		for k, v := range raw {
			d.context[k] = stringify(v)
		}
		pos = skipSpace(s, pos+int(dec.InputOffset()))
	}

	if pos >= len(s) || s[pos] != ')' {
		return d, 0, fmt.Errorf("include %q: expected ')'", d.name)
	}
	return d, pos + 1, nil
}

func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return x.String()
	case nil:
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func skipSpace(s string, i int) int {
	for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
		i++
	}
	return i
}
