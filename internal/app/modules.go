package app

import (
	"fmt"

	"github.com/vk/sitegridgo/internal/config"
	"github.com/vk/sitegridgo/internal/cssproc"
	"github.com/vk/sitegridgo/internal/htmlmin"
	"github.com/vk/sitegridgo/internal/include"
	"github.com/vk/sitegridgo/internal/npmdist"
	"github.com/vk/sitegridgo/internal/registry"
	"github.com/vk/sitegridgo/internal/sass"
	"github.com/vk/sitegridgo/internal/task"
	"github.com/vk/sitegridgo/modules/assets"
	"github.com/vk/sitegridgo/modules/clean"
	"github.com/vk/sitegridgo/modules/markup"
	"github.com/vk/sitegridgo/modules/rtl"
	"github.com/vk/sitegridgo/modules/styles"
	"github.com/vk/sitegridgo/modules/vendor"
)

// collaborators are the transformation backends shared by every module.
type collaborators struct {
	compiler  sass.Compiler
	processor *cssproc.Processor
	includes  *include.Engine
	minifier  *htmlmin.Minifier
	vendor    *npmdist.Enumerator
}

func newCollaborators(m *config.Model, compiler sass.Compiler) (*collaborators, error) {
	processor, err := cssproc.New(m.Styles.Browsers)
	if err != nil {
		return nil, fmt.Errorf("styles: %w", err)
	}
	includes, err := include.New(m.Paths.Extras.Partials, m.Markup.Prefix)
	if err != nil {
		return nil, fmt.Errorf("markup: %w", err)
	}
	if compiler == nil {
		compiler = sass.NewDartSass(m.Styles.SassBinary)
	}
	return &collaborators{
		compiler:  compiler,
		processor: processor,
		includes:  includes,
		minifier:  htmlmin.New(),
		vendor: npmdist.New(
			m.Paths.Extras.NodeModules,
			m.Paths.Extras.Manifest,
			m.Vendor.Excludes,
			m.Vendor.ReplaceDefaultExcludes,
		),
	}, nil
}

// coreModules is the definitive list of modules compiled into the binary,
// each bound to the directories it reads and writes.
func coreModules(m *config.Model, c *collaborators) []registry.Module {
	p := m.Paths
	return []registry.Module{
		&clean.Module{Trees: []task.Target{
			{ID: task.CleanTemp, Dir: p.Temp.Base},
			{ID: task.CleanDev, Dir: p.Dev.Base},
			{ID: task.CleanDist, Dir: p.Dist.Base},
		}},
		&styles.Module{
			Source:       p.Source.Styles,
			IncludePaths: []string{p.Source.Styles, p.Extras.NodeModules},
			SourceMaps:   m.Styles.SourceMaps,
			Compiler:     c.compiler,
			Processor:    c.processor,
			Compile: []task.Target{
				{ID: task.Scss, Dir: p.Temp.Styles},
				{ID: task.CopyDevCSS, Dir: p.Dev.Styles},
				{ID: task.CopyDistCSS, Dir: p.Dist.Styles},
			},
			Minify:   []task.Target{{ID: task.MinifyCSS, Dir: p.Dist.Styles}},
			Beautify: []task.Target{{ID: task.BeautifyCSS, Dir: p.Dev.Styles}},
		},
		&markup.Module{
			Source:   p.Source.Markup,
			Engine:   c.includes,
			Minifier: c.minifier,
			Render: []task.Target{
				{ID: task.HTML, Dir: p.Temp.Markup},
				{ID: task.CopyDevHTML, Dir: p.Dev.Markup},
				{ID: task.CopyDistHTML, Dir: p.Dist.Markup},
			},
			Minify: []task.Target{{ID: task.MinifyHTML, Dir: p.Dist.Markup}},
		},
		&assets.Module{
			Source: p.Source.Assets,
			Copy: []task.Target{
				{ID: task.Assets, Dir: p.Temp.Assets},
				{ID: task.CopyDevAssets, Dir: p.Dev.Assets},
				{ID: task.CopyDistAssets, Dir: p.Dist.Assets},
			},
		},
		&vendor.Module{
			NodeModules: p.Extras.NodeModules,
			Enumerator:  c.vendor,
			Copy: []task.Target{
				{ID: task.Vendor, Dir: p.Temp.Vendor},
				{ID: task.CopyDevVendor, Dir: p.Dev.Vendor},
				{ID: task.CopyDistVendor, Dir: p.Dist.Vendor},
			},
		},
		&rtl.Module{Dir: p.Temp.Styles, Flip: task.RTLCSS, Clean: task.CleanRTL},
	}
}
