// Package npmdist lists the distributable files of the packages a project
// depends on: every file of each package named under "dependencies" in the
// package manifest, minus sources, tests, docs and build configuration.
package npmdist

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/vk/sitegridgo/internal/ctxlog"
	"github.com/vk/sitegridgo/internal/fsutil"
)

const (
	defaultExpiration = 10 * time.Minute
	cleanupInterval   = 30 * time.Minute
)

// DefaultExcludes are matched against paths inside each package directory,
// at any depth.
var DefaultExcludes = []string{
	"*.map",
	"src/**/*",
	"examples/**/*",
	"example/**/*",
	"demo/**/*",
	"spec/**/*",
	"docs/**/*",
	"tests/**/*",
	"test/**/*",
	"Gruntfile.js",
	"gulpfile.js",
	"package.json",
	"package-lock.json",
	"bower.json",
	"composer.json",
	"yarn.lock",
	"webpack.config.js",
	"README",
	"LICENSE",
	"CHANGELOG",
	"*.yml",
	"*.md",
	"*.coffee",
	"*.ts",
	"*.scss",
	"*.less",
}

type manifest struct {
	Dependencies map[string]string `json:"dependencies"`
}

// Enumerator lists vendor files. Results are cached per manifest content, so
// editing the declared dependencies forces a fresh walk.
type Enumerator struct {
	nodeModules string
	manifest    string
	excludes    []string
	cache       *gocache.Cache
}

// New creates an enumerator reading manifestPath and walking nodeModules.
// extra patterns are added to DefaultExcludes unless replaceDefaults is set.
func New(nodeModules, manifestPath string, extra []string, replaceDefaults bool) *Enumerator {
	var patterns []string
	if !replaceDefaults {
		patterns = append(patterns, DefaultExcludes...)
	}
	patterns = append(patterns, extra...)

	excludes := make([]string, 0, len(patterns))
	for _, p := range patterns {
		excludes = append(excludes, "**/"+strings.TrimPrefix(p, "/"))
	}
	return &Enumerator{
		nodeModules: nodeModules,
		manifest:    manifestPath,
		excludes:    excludes,
		cache:       gocache.New(defaultExpiration, cleanupInterval),
	}
}

// Files returns the vendor files as slash-separated paths relative to the
// node_modules directory, sorted. A missing manifest means no dependencies.
func (e *Enumerator) Files(ctx context.Context) ([]string, error) {
	logger := ctxlog.FromContext(ctx)

	data, err := os.ReadFile(e.manifest)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Debug("No package manifest, no vendor files.", "file", e.manifest)
			return nil, nil
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	sum := sha256.Sum256(data)
	key := hex.EncodeToString(sum[:])
	if v, found := e.cache.Get(key); found {
		if files, ok := v.([]string); ok {
			logger.Debug("Vendor file list cache hit.", "files", len(files))
			return files, nil
		}
	}

	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", e.manifest, err)
	}

	names := make([]string, 0, len(m.Dependencies))
	for name := range m.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)

	var files []string
	for _, name := range names {
		pkgDir := filepath.Join(e.nodeModules, filepath.FromSlash(name))
		if _, err := os.Stat(pkgDir); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				logger.Warn("Dependency is not installed.", "package", name, "dir", pkgDir)
				continue
			}
			return nil, err
		}

		rels, err := fsutil.Glob(pkgDir, "**/*")
		if err != nil {
			return nil, err
		}
		for _, rel := range rels {
			excluded, err := fsutil.MatchAny(e.excludes, rel)
			if err != nil {
				return nil, err
			}
			if !excluded {
				files = append(files, name+"/"+rel)
			}
		}
	}

	e.cache.Set(key, files, gocache.DefaultExpiration)
	logger.Debug("Vendor files enumerated.", "packages", len(names), "files", len(files))
	return files, nil
}
