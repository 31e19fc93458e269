package hcl

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/sitegridgo/internal/config"
	"github.com/vk/sitegridgo/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
)

// DefaultFilename is the configuration file looked up in the project root
// when none is given explicitly.
const DefaultFilename = "sitegrid.hcl"

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct{}

// NewLoader creates a new HCL configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

var _ config.Loader = (*Loader)(nil)

// Load reads the file at path, overlays it on config.Default and resolves
// every path against root. An empty path loads the defaults only. Relative
// paths in the file are relative to root, not to the file.
func (l *Loader) Load(ctx context.Context, root, path string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve project root %s: %w", root, err)
	}

	model := config.Default()
	if path != "" {
		logger.Debug("HCL loader started.", "file", path)

		parser := hclparse.NewParser()
		file, diags := parser.ParseHCLFile(path)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", path, diags)
		}

		var fr fileRoot
		diags = gohcl.DecodeBody(file.Body, evalContext(absRoot), &fr)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode HCL file %s: %w", path, diags)
		}

		if diags := apply(&model, &fr); diags.HasErrors() {
			return nil, fmt.Errorf("invalid configuration in %s: %w", path, diags)
		}
	} else {
		logger.Debug("No configuration file, using defaults.")
	}

	resolved := model.Resolved(absRoot)
	if err := resolved.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger.Debug("Configuration loaded.", "root", absRoot, "browsers", resolved.Styles.Browsers, "addr", resolved.Serve.Addr())
	return &resolved, nil
}

func evalContext(root string) *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"root": cty.StringVal(root),
		},
	}
}

// apply overlays every attribute present in fr onto m.
func apply(m *config.Model, fr *fileRoot) hcl.Diagnostics {
	var diags hcl.Diagnostics

	diags = append(diags, checkUniqueRoles(fr.Paths)...)
	for _, pb := range fr.Paths {
		set, d := pathSetFor(&m.Paths, pb)
		if d != nil {
			diags = append(diags, d)
			continue
		}
		setIf(&set.Base, pb.Base)
		setIf(&set.Styles, pb.Styles)
		setIf(&set.Markup, pb.Markup)
		setIf(&set.Assets, pb.Assets)
		setIf(&set.Vendor, pb.VendorDir)
	}

	if x := fr.SourceExtras; x != nil {
		setIf(&m.Paths.Extras.Partials, x.Partials)
		setIf(&m.Paths.Extras.NodeModules, x.NodeModules)
		setIf(&m.Paths.Extras.Manifest, x.Manifest)
	}

	if s := fr.Styles; s != nil {
		setIf(&m.Styles.Browsers, s.Browsers)
		setIf(&m.Styles.SassBinary, s.SassBinary)
		setIf(&m.Styles.SourceMaps, s.SourceMaps)
	}

	if mk := fr.Markup; mk != nil {
		setIf(&m.Markup.Prefix, mk.Prefix)
	}

	if v := fr.Vendor; v != nil {
		if v.Excludes != nil {
			m.Vendor.Excludes = append([]string(nil), v.Excludes...)
		}
		setIf(&m.Vendor.ReplaceDefaultExcludes, v.ReplaceDefaultExcludes)
	}

	if sv := fr.Serve; sv != nil {
		setIf(&m.Serve.Host, sv.Host)
		setIf(&m.Serve.Port, sv.Port)
		if sv.Debounce != nil {
			d, err := time.ParseDuration(*sv.Debounce)
			if err != nil {
				rng := sv.DefRange
				diags = append(diags, &hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Invalid debounce duration",
					Detail:   fmt.Sprintf("%q is not a duration: %s.", *sv.Debounce, err),
					Subject:  &rng,
				})
			} else {
				m.Serve.Debounce = d
			}
		}
	}

	return diags
}

func pathSetFor(p *config.Paths, pb *pathsBlock) (*config.PathSet, *hcl.Diagnostic) {
	switch config.Role(pb.Role) {
	case config.RoleSource:
		return &p.Source, nil
	case config.RoleTemp:
		return &p.Temp, nil
	case config.RoleDev:
		return &p.Dev, nil
	case config.RoleDist:
		return &p.Dist, nil
	}
	rng := pb.RoleRange
	return nil, &hcl.Diagnostic{
		Severity: hcl.DiagError,
		Summary:  "Unknown path role",
		Detail:   fmt.Sprintf("%q is not a path role; expected one of source, temp, dev, dist.", pb.Role),
		Subject:  &rng,
	}
}

// checkUniqueRoles reports every paths block whose role was already declared.
func checkUniqueRoles(blocks []*pathsBlock) hcl.Diagnostics {
	var diags hcl.Diagnostics
	seen := make(map[string]bool)
	for _, pb := range blocks {
		if seen[pb.Role] {
			rng := pb.DefRange
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Duplicate \"paths\" block",
				Detail:   "Only one \"paths\" block is allowed for role \"" + pb.Role + "\".",
				Subject:  &rng,
			})
		}
		seen[pb.Role] = true
	}
	return diags
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
