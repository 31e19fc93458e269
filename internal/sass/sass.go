// Package sass compiles SCSS through the Dart Sass embedded protocol.
package sass

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"sync"

	"github.com/bep/godartsass/v2"
	"github.com/vk/sitegridgo/internal/ctxlog"
)

// Request is a single stylesheet compilation.
type Request struct {
	// Filename is the absolute path of the entry stylesheet.
	Filename string
	Source   string
	// IncludePaths are searched for @use and @import targets after the
	// directory of Filename.
	IncludePaths []string
	SourceMap    bool
}

// Result is the compiled stylesheet and, if requested, its source map.
type Result struct {
	CSS       string
	SourceMap string
}

// Compiler turns SCSS into CSS.
type Compiler interface {
	Compile(ctx context.Context, req Request) (Result, error)
}

// CompileError is a syntax or semantic error in the stylesheet itself, as
// opposed to a failure of the compiler process.
type CompileError struct {
	File string
	Err  error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile %s: %v", e.File, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

// IsCompileError reports whether err is a stylesheet error.
func IsCompileError(err error) bool {
	var ce *CompileError
	return errors.As(err, &ce)
}

// DartSass is a Compiler backed by a long-lived Dart Sass process. The
// process is started on first use and reused until Close.
type DartSass struct {
	binary string

	mu         sync.Mutex
	transpiler *godartsass.Transpiler
}

// NewDartSass creates a compiler that will run binary (for example "sass").
func NewDartSass(binary string) *DartSass {
	return &DartSass{binary: binary}
}

var _ Compiler = (*DartSass)(nil)

func (d *DartSass) start(ctx context.Context) (*godartsass.Transpiler, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.transpiler != nil && !d.transpiler.IsShutDown() {
		return d.transpiler, nil
	}

	logger := ctxlog.FromContext(ctx)
	t, err := godartsass.Start(godartsass.Options{
		DartSassEmbeddedFilename: d.binary,
		LogEventHandler: func(ev godartsass.LogEvent) {
			logger.Warn("Sass: "+ev.Message, "type", ev.Type)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("start dart sass %q: %w", d.binary, err)
	}
	logger.Debug("Dart Sass started.", "binary", d.binary)
	d.transpiler = t
	return t, nil
}

// Compile compiles req.Source. Errors in the stylesheet are returned as
// *CompileError.
func (d *DartSass) Compile(ctx context.Context, req Request) (Result, error) {
	t, err := d.start(ctx)
	if err != nil {
		return Result{}, err
	}

	includes := append([]string{filepath.Dir(req.Filename)}, req.IncludePaths...)
	res, err := t.Execute(godartsass.Args{
		Source:                  req.Source,
		URL:                     fileURL(req.Filename),
		IncludePaths:            includes,
		OutputStyle:             godartsass.OutputStyleExpanded,
		EnableSourceMap:         req.SourceMap,
		SourceMapIncludeSources: req.SourceMap,
	})
	if err != nil {
		var sassErr godartsass.SassError
		if errors.As(err, &sassErr) {
			return Result{}, &CompileError{File: req.Filename, Err: sassErr}
		}
		return Result{}, fmt.Errorf("dart sass: %w", err)
	}
	return Result{CSS: res.CSS, SourceMap: res.SourceMap}, nil
}

// Close stops the Dart Sass process if it was started.
func (d *DartSass) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.transpiler == nil {
		return nil
	}
	err := d.transpiler.Close()
	d.transpiler = nil
	if errors.Is(err, godartsass.ErrShutdown) {
		return nil
	}
	return err
}

func fileURL(path string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	return u.String()
}
