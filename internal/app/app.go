package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/vk/sitegridgo/internal/config"
	"github.com/vk/sitegridgo/internal/ctxlog"
	"github.com/vk/sitegridgo/internal/executor"
	"github.com/vk/sitegridgo/internal/hcl"
	"github.com/vk/sitegridgo/internal/registry"
	"github.com/vk/sitegridgo/internal/sass"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	config   *Config
	model    *config.Model
	registry *registry.Registry
	executor *executor.Executor
	compiler sass.Compiler
}

// Option customizes NewApp.
type Option func(*options)

type options struct {
	compiler sass.Compiler
}

// WithCompiler replaces the Dart Sass compiler.
func WithCompiler(c sass.Compiler) Option {
	return func(o *options) { o.compiler = c }
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger and registry.
// Configuration errors are fatal and panic; the entrypoint recovers them.
func NewApp(outW io.Writer, appConfig *Config, loader config.Loader, opts ...Option) *App {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	path, err := configFile(appConfig)
	if err != nil {
		panic(fmt.Errorf("failed to load configuration: %w", err))
	}
	model, err := loader.Load(ctx, appConfig.Root, path)
	if err != nil {
		panic(fmt.Errorf("failed to load configuration: %w", err))
	}
	if appConfig.Port > 0 {
		model.Serve.Port = appConfig.Port
	}
	logger.Debug("Configuration loaded.", "file", path, "root", model.Paths.Root)

	collab, err := newCollaborators(model, o.compiler)
	if err != nil {
		panic(fmt.Errorf("invalid configuration: %w", err))
	}

	a := &App{
		outW:     outW,
		logger:   logger,
		config:   appConfig,
		model:    model,
		compiler: collab.compiler,
	}

	reg := registry.New()
	modules := append(coreModules(model, collab), &pipelines{serve: a.serve})
	if err := reg.RegisterModules(ctx, modules...); err != nil {
		panic(err)
	}
	logger.Debug("All modules registered.", "modules", len(modules), "tasks", reg.Len())

	// A broken composition is a programmer error, so we panic.
	if err := reg.Validate(ctx); err != nil {
		panic(err)
	}
	order, err := reg.Order()
	if err != nil {
		panic(err)
	}
	logger.Debug("Task graph resolved.", "order", order)

	a.registry = reg
	a.executor = executor.New(reg)
	return a
}

// configFile picks the explicit config file, or the default file in the
// project root when it exists.
func configFile(c *Config) (string, error) {
	if c.ConfigPath != "" {
		return c.ConfigPath, nil
	}
	path := filepath.Join(c.Root, hcl.DefaultFilename)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	return path, nil
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Model returns the loaded configuration.
func (a *App) Model() *config.Model {
	return a.model
}

// Close releases the stylesheet compiler.
func (a *App) Close() error {
	if c, ok := a.compiler.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (a *App) serve(ctx context.Context) error {
	return NewServer(a.executor, a.model.Paths, a.model.Serve).Run(ctx)
}
