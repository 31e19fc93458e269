package app

import (
	"github.com/vk/sitegridgo/internal/registry"
	"github.com/vk/sitegridgo/internal/task"
)

// pipelines registers the composite tasks and the serve loop.
type pipelines struct {
	serve registry.Step
}

type composite struct {
	id          task.ID
	description string
	body        registry.Body
}

var composites = []composite{
	{task.ServeBuild, "Build the temp tree for the dev server", registry.Series{
		task.CleanTemp, task.Scss, task.HTML, task.Assets, task.Vendor,
	}},
	{task.BuildRTL, "Regenerate RTL stylesheets in the temp tree", registry.Series{
		task.CleanRTL, task.RTLCSS,
	}},
	{task.BuildDev, "Build the readable dev tree", registry.Series{
		task.CleanDev, task.CopyDevCSS, task.CopyDevHTML, task.CopyDevAssets, task.BeautifyCSS, task.CopyDevVendor,
	}},
	{task.BuildDist, "Build the minified dist tree", registry.Series{
		task.CleanDist, task.CopyDistCSS, task.CopyDistHTML, task.CopyDistAssets, task.MinifyCSS, task.MinifyHTML, task.CopyDistVendor,
	}},
	{task.Build, "Build the dev and dist trees side by side", registry.Parallel{
		task.BuildDev, task.BuildDist,
	}},
}

func (p *pipelines) Register(r *registry.Registry) error {
	for _, c := range composites {
		if err := r.Define(c.id, c.description, c.body); err != nil {
			return err
		}
	}
	return r.Define(task.Serve, "Build, serve and rebuild on change", p.serve)
}
