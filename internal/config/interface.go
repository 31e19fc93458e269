package config

import "context"

// Loader is the interface for a format-specific configuration loader.
type Loader interface {
	// Load reads the configuration file at path (empty means defaults only),
	// resolves every path against root and returns a validated Model.
	Load(ctx context.Context, root, path string) (*Model, error)
}
