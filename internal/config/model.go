package config

import (
	"errors"
	"fmt"
	"time"
)

// Model is the complete, immutable build configuration.
type Model struct {
	Paths  Paths
	Styles Styles
	Markup Markup
	Vendor Vendor
	Serve  Serve
}

// Styles configures stylesheet compilation.
type Styles struct {
	// Browsers is the browser-support range used for vendor prefixing,
	// e.g. "> 1%".
	Browsers string
	// SassBinary is the Dart Sass executable used by the embedded protocol.
	SassBinary string
	// SourceMaps writes a .css.map next to every compiled stylesheet.
	SourceMaps bool
}

// Markup configures HTML partial inclusion.
type Markup struct {
	// Prefix is the marker token in front of include directives and
	// context variables.
	Prefix string
}

// Vendor configures enumeration of third-party package files.
type Vendor struct {
	// Excludes are extra glob patterns, relative to a package directory,
	// that are never copied.
	Excludes []string
	// ReplaceDefaultExcludes drops the built-in exclusion list.
	ReplaceDefaultExcludes bool
}

// Serve configures the development server and the watcher.
type Serve struct {
	Host     string
	Port     int
	Debounce time.Duration
}

// Addr returns the listen address of the dev server.
func (s Serve) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Default returns the model used when no configuration file is present.
// Paths are still project-relative; call Resolved before use.
func Default() Model {
	return Model{
		Paths: DefaultPaths(),
		Styles: Styles{
			Browsers:   "> 1%",
			SassBinary: "sass",
			SourceMaps: true,
		},
		Markup: Markup{Prefix: "@@"},
		Serve: Serve{
			Host:     "localhost",
			Port:     3000,
			Debounce: 100 * time.Millisecond,
		},
	}
}

// Resolved returns a copy of m with every path made absolute against root.
func (m Model) Resolved(root string) Model {
	m.Paths = m.Paths.Resolved(root)
	m.Vendor.Excludes = append([]string(nil), m.Vendor.Excludes...)
	return m
}

// Validate reports every configuration problem found in the model.
func (m Model) Validate() error {
	var errs []error
	if err := m.Paths.Validate(); err != nil {
		errs = append(errs, err)
	}
	if m.Styles.Browsers == "" {
		errs = append(errs, errors.New("styles: browsers must not be empty"))
	}
	if m.Markup.Prefix == "" {
		errs = append(errs, errors.New("markup: prefix must not be empty"))
	}
	if m.Serve.Port < 0 || m.Serve.Port > 65535 {
		errs = append(errs, fmt.Errorf("serve: port %d out of range", m.Serve.Port))
	}
	if m.Serve.Debounce < 0 {
		errs = append(errs, fmt.Errorf("serve: debounce %s must not be negative", m.Serve.Debounce))
	}
	return errors.Join(errs...)
}
