// Package cssproc post-processes compiled CSS with esbuild: vendor prefixing
// for a browser range, minification and pretty-printing.
package cssproc

import (
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// ErrUnknownBrowsers is returned for a browser range that has no engine
// mapping.
var ErrUnknownBrowsers = errors.New("unknown browser range")

// browserRanges maps the supported browserslist queries onto the oldest
// engine versions they cover.
var browserRanges = map[string][]api.Engine{
	"> 1%": {
		{Name: api.EngineChrome, Version: "109"},
		{Name: api.EngineEdge, Version: "120"},
		{Name: api.EngineFirefox, Version: "115"},
		{Name: api.EngineSafari, Version: "15.6"},
		{Name: api.EngineIOS, Version: "15.6"},
		{Name: api.EngineOpera, Version: "95"},
	},
	"> 0.5%": {
		{Name: api.EngineChrome, Version: "103"},
		{Name: api.EngineEdge, Version: "109"},
		{Name: api.EngineFirefox, Version: "102"},
		{Name: api.EngineSafari, Version: "14.1"},
		{Name: api.EngineIOS, Version: "14.5"},
		{Name: api.EngineOpera, Version: "90"},
	},
	"defaults": {
		{Name: api.EngineChrome, Version: "109"},
		{Name: api.EngineEdge, Version: "120"},
		{Name: api.EngineFirefox, Version: "115"},
		{Name: api.EngineSafari, Version: "16.6"},
		{Name: api.EngineIOS, Version: "16.6"},
		{Name: api.EngineOpera, Version: "102"},
	},
	"last 2 versions": {
		{Name: api.EngineChrome, Version: "129"},
		{Name: api.EngineEdge, Version: "129"},
		{Name: api.EngineFirefox, Version: "130"},
		{Name: api.EngineSafari, Version: "17.6"},
		{Name: api.EngineIOS, Version: "17.6"},
		{Name: api.EngineOpera, Version: "113"},
	},
}

// SupportedBrowsers lists the browser ranges New accepts.
func SupportedBrowsers() []string {
	out := make([]string, 0, len(browserRanges))
	for k := range browserRanges {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// sourceMapComment matches a trailing sourceMappingURL comment.
var sourceMapComment = regexp.MustCompile(`(?m)\n?/\*# sourceMappingURL=[^*]*\*/\s*$`)

// Processor transforms CSS for one browser range.
type Processor struct {
	browsers string
	engines  []api.Engine
}

// New returns a processor targeting browsers, e.g. "> 1%".
func New(browsers string) (*Processor, error) {
	browsers = strings.TrimSpace(browsers)
	engines, ok := browserRanges[browsers]
	if !ok {
		return nil, fmt.Errorf("%w %q (supported: %s)", ErrUnknownBrowsers, browsers, strings.Join(SupportedBrowsers(), ", "))
	}
	return &Processor{browsers: browsers, engines: engines}, nil
}

// Browsers returns the range the processor was built for.
func (p *Processor) Browsers() string { return p.browsers }

// Prefix adds the vendor prefixes the browser range needs. When inputMap is
// set the returned map traces back through it to the original sources.
func (p *Processor) Prefix(css []byte, filename string, inputMap []byte) (out, outMap []byte, err error) {
	code := string(StripSourceMapComment(css))
	opts := api.TransformOptions{
		Loader:     api.LoaderCSS,
		Engines:    p.engines,
		Sourcefile: filename,
		LogLevel:   api.LogLevelSilent,
	}
	if len(inputMap) > 0 {
		code += "\n/*# sourceMappingURL=data:application/json;base64," + base64.StdEncoding.EncodeToString(inputMap) + " */\n"
		opts.Sourcemap = api.SourceMapExternal
	}

	res := api.Transform(code, opts)
	if err := messagesError(filename, res.Errors); err != nil {
		return nil, nil, err
	}
	return res.Code, res.Map, nil
}

// Minify collapses whitespace and shortens syntax. A sourceMappingURL comment
// in the input is carried over.
func (p *Processor) Minify(css []byte, filename string) ([]byte, error) {
	return transformKeepingMapComment(css, filename, api.TransformOptions{
		Loader:           api.LoaderCSS,
		MinifyWhitespace: true,
		MinifySyntax:     true,
		Sourcefile:       filename,
		LogLevel:         api.LogLevelSilent,
	})
}

// Beautify re-prints the stylesheet with one declaration per line and
// two-space indentation. A sourceMappingURL comment in the input is carried
// over.
func (p *Processor) Beautify(css []byte, filename string) ([]byte, error) {
	return transformKeepingMapComment(css, filename, api.TransformOptions{
		Loader:     api.LoaderCSS,
		Sourcefile: filename,
		LogLevel:   api.LogLevelSilent,
	})
}

func transformKeepingMapComment(css []byte, filename string, opts api.TransformOptions) ([]byte, error) {
	comment := sourceMapComment.Find(css)
	body := StripSourceMapComment(css)

	res := api.Transform(string(body), opts)
	if err := messagesError(filename, res.Errors); err != nil {
		return nil, err
	}
	out := res.Code
	if len(comment) > 0 {
		if len(out) > 0 && out[len(out)-1] != '\n' {
			out = append(out, '\n')
		}
		out = append(out, strings.TrimSpace(string(comment))...)
		out = append(out, '\n')
	}
	return out, nil
}

// StripSourceMapComment removes a trailing sourceMappingURL comment.
func StripSourceMapComment(css []byte) []byte {
	return sourceMapComment.ReplaceAll(css, nil)
}

func messagesError(filename string, msgs []api.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	errs := make([]error, 0, len(msgs))
	for _, m := range msgs {
		if m.Location != nil {
			errs = append(errs, fmt.Errorf("%s:%d:%d: %s", filename, m.Location.Line, m.Location.Column, m.Text))
			continue
		}
		errs = append(errs, fmt.Errorf("%s: %s", filename, m.Text))
	}
	return errors.Join(errs...)
}
