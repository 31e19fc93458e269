package hcl

import "github.com/hashicorp/hcl/v2"

// fileRoot is the top-level structure of a sitegrid.hcl file. Every block is
// optional; absent blocks and attributes keep their default values.
type fileRoot struct {
	Paths        []*pathsBlock      `hcl:"paths,block"`
	SourceExtras *sourceExtrasBlock `hcl:"source_extras,block"`
	Styles       *stylesBlock       `hcl:"styles,block"`
	Markup       *markupBlock       `hcl:"markup,block"`
	Vendor       *vendorBlock       `hcl:"vendor,block"`
	Serve        *serveBlock        `hcl:"serve,block"`
}

// pathsBlock overrides the directories of one role.
type pathsBlock struct {
	Role      string    `hcl:"role,label"`
	RoleRange hcl.Range `hcl:"role,label_range"`
	Base      *string   `hcl:"base,optional"`
	Styles    *string   `hcl:"styles,optional"`
	Markup    *string   `hcl:"markup,optional"`
	Assets    *string   `hcl:"assets,optional"`
	VendorDir *string   `hcl:"vendor,optional"`
	DefRange  hcl.Range `hcl:",def_range"`
}

type sourceExtrasBlock struct {
	Partials    *string `hcl:"partials,optional"`
	NodeModules *string `hcl:"node_modules,optional"`
	Manifest    *string `hcl:"manifest,optional"`
}

type stylesBlock struct {
	Browsers   *string `hcl:"browsers,optional"`
	SassBinary *string `hcl:"sass_binary,optional"`
	SourceMaps *bool   `hcl:"source_maps,optional"`
}

type markupBlock struct {
	Prefix *string `hcl:"prefix,optional"`
}

type vendorBlock struct {
	Excludes               []string `hcl:"excludes,optional"`
	ReplaceDefaultExcludes *bool    `hcl:"replace_default_excludes,optional"`
}

type serveBlock struct {
	Host     *string   `hcl:"host,optional"`
	Port     *int      `hcl:"port,optional"`
	Debounce *string   `hcl:"debounce,optional"`
	DefRange hcl.Range `hcl:",def_range"`
}
