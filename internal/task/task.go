// Package task defines the closed set of build task identifiers.
//
// Every task the application knows about is declared here as a constant, so a
// typo in a composition is a compile error rather than a lookup failure at
// runtime. Names coming from the command line go through Parse.
package task

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknown is returned by Parse for names outside the closed set.
var ErrUnknown = errors.New("unknown task")

// ID is a strongly-typed task identifier.
type ID string

// Serve pipeline, writing to the temp tree.
const (
	Scss       ID = "scss"
	HTML       ID = "html"
	Assets     ID = "assets"
	Vendor     ID = "vendor"
	CleanTemp  ID = "clean:temp"
	ServeBuild ID = "serve:build"
	Serve      ID = "serve"
)

// RTL pipeline, operating on the temp stylesheets.
const (
	CleanRTL ID = "clean:rtl"
	RTLCSS   ID = "rtl:css"
	BuildRTL ID = "build:rtl"
)

// Dev pipeline.
const (
	CleanDev      ID = "clean:dev"
	CopyDevCSS    ID = "copy:dev:css"
	CopyDevHTML   ID = "copy:dev:html"
	CopyDevAssets ID = "copy:dev:assets"
	BeautifyCSS   ID = "beautify:css"
	CopyDevVendor ID = "copy:dev:vendor"
	BuildDev      ID = "build:dev"
)

// Dist pipeline.
const (
	CleanDist      ID = "clean:dist"
	CopyDistCSS    ID = "copy:dist:css"
	CopyDistHTML   ID = "copy:dist:html"
	CopyDistAssets ID = "copy:dist:assets"
	MinifyCSS      ID = "minify:css"
	MinifyHTML     ID = "minify:html"
	CopyDistVendor ID = "copy:dist:vendor"
	BuildDist      ID = "build:dist"
)

// Build runs the dev and dist pipelines side by side.
const Build ID = "build"

// Default is the task run when none is named.
const Default = Serve

var known = map[ID]struct{}{}

func init() {
	for _, id := range []ID{
		Scss, HTML, Assets, Vendor, CleanTemp, ServeBuild, Serve,
		CleanRTL, RTLCSS, BuildRTL,
		CleanDev, CopyDevCSS, CopyDevHTML, CopyDevAssets, BeautifyCSS, CopyDevVendor, BuildDev,
		CleanDist, CopyDistCSS, CopyDistHTML, CopyDistAssets, MinifyCSS, MinifyHTML, CopyDistVendor, BuildDist,
		Build,
	} {
		known[id] = struct{}{}
	}
}

// Known reports whether id belongs to the closed set.
func (id ID) Known() bool {
	_, ok := known[id]
	return ok
}

func (id ID) String() string { return string(id) }

// Parse converts a command-line name into an ID. An empty name selects the
// default task.
func Parse(name string) (ID, error) {
	if name == "" || name == "default" {
		return Default, nil
	}
	id := ID(name)
	if !id.Known() {
		return "", fmt.Errorf("%w: %q", ErrUnknown, name)
	}
	return id, nil
}

// All returns every known ID in lexical order.
func All() []ID {
	ids := make([]ID, 0, len(known))
	for id := range known {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Target binds a task to the directory it writes or processes.
type Target struct {
	ID  ID
	Dir string
}
