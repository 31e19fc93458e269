package cli

import (
	"errors"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/vk/sitegridgo/internal/app"
	"github.com/vk/sitegridgo/internal/task"
)

// Exit codes.
const (
	ExitTaskFailed = 1
	ExitUsage      = 2
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Invocation is what the command line asks for.
type Invocation struct {
	Config *app.Config
	Task   task.ID
	// List prints the task table instead of running a task.
	List bool
}

const long = `sitegrid builds a static front-end site: it compiles SCSS, inlines HTML
partials, copies assets and npm vendor files, and writes a readable dev tree
and a minified dist tree. The default task serves the site with live reload.

Run "sitegrid --list" to see every task.`

// Parse processes command-line arguments. It returns the invocation, a
// boolean indicating if the program should exit cleanly (help was printed),
// or an ExitError.
func Parse(args []string, output io.Writer) (*Invocation, bool, error) {
	slog.Debug("CLI parser started.")

	var (
		inv     *Invocation
		cfg     app.Config
		listing bool
	)
	cmd := &cobra.Command{
		Use:           "sitegrid [TASK]",
		Short:         "Front-end asset build runner",
		Long:          long,
		Args:          cobra.MaximumNArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) > 0 {
				name = args[0]
			}
			id, err := task.Parse(name)
			if err != nil {
				return err
			}
			validated, err := app.NewConfig(cfg)
			if err != nil {
				return err
			}
			inv = &Invocation{Config: validated, Task: id, List: listing}
			return nil
		},
	}
	// A nil slice would make cobra fall back to os.Args.
	cmd.SetArgs(append([]string{}, args...))
	cmd.SetOut(output)
	cmd.SetErr(output)

	flags := cmd.Flags()
	flags.StringVarP(&cfg.ConfigPath, "config", "c", "", "HCL configuration file (default: sitegrid.hcl in the project root, if present)")
	flags.StringVar(&cfg.Root, "root", ".", "project root every configured path is relative to")
	flags.StringVar(&cfg.LogLevel, "log-level", "info", "logging level: 'debug', 'info', 'warn' or 'error'")
	flags.StringVar(&cfg.LogFormat, "log-format", "text", "log output format: 'text' or 'json'")
	flags.IntVar(&cfg.Port, "port", 0, "dev server port (default: from the config file)")
	flags.BoolVar(&listing, "list", false, "print every task and exit")

	if err := cmd.Execute(); err != nil {
		return nil, false, &ExitError{Code: ExitUsage, Message: err.Error()}
	}
	if inv == nil {
		slog.Debug("Help requested, exiting.")
		return nil, true, nil
	}

	slog.Debug("CLI parser finished successfully.", "task", inv.Task.String(), "config", inv.Config)
	return inv, false, nil
}

// AsExitError maps a task failure to its exit code. Errors that already
// carry one are returned as they are.
func AsExitError(err error) *ExitError {
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}
	return &ExitError{Code: ExitTaskFailed, Message: err.Error()}
}
