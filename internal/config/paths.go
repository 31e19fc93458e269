package config

import (
	"errors"
	"fmt"
	"path/filepath"
)

// ErrUnknownPath is returned when a role/category combination is not part of
// the registry.
var ErrUnknownPath = errors.New("unknown path")

// Role names one of the four directory trees.
type Role string

const (
	RoleSource Role = "source"
	RoleTemp   Role = "temp"
	RoleDev    Role = "dev"
	RoleDist   Role = "dist"
)

// Roles lists every role in declaration order.
var Roles = []Role{RoleSource, RoleTemp, RoleDev, RoleDist}

// Category names one directory inside a PathSet.
type Category string

const (
	CategoryBase   Category = "base"
	CategoryStyles Category = "styles"
	CategoryMarkup Category = "markup"
	CategoryAssets Category = "assets"
	CategoryVendor Category = "vendor"
)

// Categories lists every category in declaration order.
var Categories = []Category{CategoryBase, CategoryStyles, CategoryMarkup, CategoryAssets, CategoryVendor}

// PathSet is the group of directories for one role.
type PathSet struct {
	Base   string
	Styles string
	Markup string
	Assets string
	Vendor string
}

// Get returns the directory for a category.
func (p PathSet) Get(cat Category) (string, error) {
	switch cat {
	case CategoryBase:
		return p.Base, nil
	case CategoryStyles:
		return p.Styles, nil
	case CategoryMarkup:
		return p.Markup, nil
	case CategoryAssets:
		return p.Assets, nil
	case CategoryVendor:
		return p.Vendor, nil
	}
	return "", fmt.Errorf("%w: category %q", ErrUnknownPath, cat)
}

func (p PathSet) resolve(root string) PathSet {
	return PathSet{
		Base:   absJoin(root, p.Base),
		Styles: absJoin(root, p.Styles),
		Markup: absJoin(root, p.Markup),
		Assets: absJoin(root, p.Assets),
		Vendor: absJoin(root, p.Vendor),
	}
}

// SourceExtras holds source-only locations that have no output counterpart.
type SourceExtras struct {
	Partials    string
	NodeModules string
	Manifest    string
}

// Paths is the path registry: one PathSet per role plus the source extras.
type Paths struct {
	Root   string
	Source PathSet
	Extras SourceExtras
	Temp   PathSet
	Dev    PathSet
	Dist   PathSet
}

// Set returns the PathSet of a role.
func (p Paths) Set(role Role) (PathSet, error) {
	switch role {
	case RoleSource:
		return p.Source, nil
	case RoleTemp:
		return p.Temp, nil
	case RoleDev:
		return p.Dev, nil
	case RoleDist:
		return p.Dist, nil
	}
	return PathSet{}, fmt.Errorf("%w: role %q", ErrUnknownPath, role)
}

// Resolve returns the directory registered for role and category.
func (p Paths) Resolve(role Role, cat Category) (string, error) {
	set, err := p.Set(role)
	if err != nil {
		return "", err
	}
	return set.Get(cat)
}

// Validate checks that every role defines every category and that the
// source extras are present.
func (p Paths) Validate() error {
	var errs []error
	for _, role := range Roles {
		for _, cat := range Categories {
			dir, err := p.Resolve(role, cat)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if dir == "" {
				errs = append(errs, fmt.Errorf("%w: %s.%s is empty", ErrUnknownPath, role, cat))
			}
		}
	}
	if p.Extras.Partials == "" || p.Extras.NodeModules == "" || p.Extras.Manifest == "" {
		errs = append(errs, fmt.Errorf("%w: source partials, node_modules and manifest must be set", ErrUnknownPath))
	}
	return errors.Join(errs...)
}

// Resolved returns a copy of p with every path made absolute against root.
func (p Paths) Resolved(root string) Paths {
	return Paths{
		Root:   root,
		Source: p.Source.resolve(root),
		Extras: SourceExtras{
			Partials:    absJoin(root, p.Extras.Partials),
			NodeModules: absJoin(root, p.Extras.NodeModules),
			Manifest:    absJoin(root, p.Extras.Manifest),
		},
		Temp: p.Temp.resolve(root),
		Dev:  p.Dev.resolve(root),
		Dist: p.Dist.resolve(root),
	}
}

func absJoin(root, s string) string {
	if s == "" {
		return ""
	}
	if filepath.IsAbs(s) {
		return filepath.Clean(s)
	}
	return filepath.Join(root, s)
}

// DefaultPaths returns the project-relative layout used when the config file
// does not override it.
func DefaultPaths() Paths {
	return Paths{
		Source: PathSet{
			Base:   "src",
			Styles: "src/scss",
			Markup: "src/html",
			Assets: "src/assets",
			Vendor: "vendor",
		},
		Extras: SourceExtras{
			Partials:    "src/partials",
			NodeModules: "node_modules",
			Manifest:    "package.json",
		},
		Temp: PathSet{
			Base:   ".temp",
			Styles: ".temp/css",
			Markup: ".temp",
			Assets: ".temp/assets",
			Vendor: ".temp/vendor",
		},
		Dev: PathSet{
			Base:   "html",
			Styles: "html/css",
			Markup: "html",
			Assets: "html/assets",
			Vendor: "html/vendor",
		},
		Dist: PathSet{
			Base:   "dist",
			Styles: "dist/css",
			Markup: "dist/html",
			Assets: "dist/assets",
			Vendor: "dist/vendor",
		},
	}
}
