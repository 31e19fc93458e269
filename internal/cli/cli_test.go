package cli

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/sitegridgo/internal/task"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantTask task.ID
		wantList bool
		check    func(t *testing.T, inv *Invocation)
	}{
		{name: "default task", args: nil, wantTask: task.Serve},
		{name: "named task", args: []string{"build:dist"}, wantTask: task.BuildDist},
		{name: "default alias", args: []string{"default"}, wantTask: task.Serve},
		{name: "list", args: []string{"--list"}, wantTask: task.Serve, wantList: true},
		{
			name:     "flags",
			args:     []string{"build", "-c", "site.hcl", "--root", "/srv/site", "--log-level", "DEBUG", "--log-format", "json", "--port", "8080"},
			wantTask: task.Build,
			check: func(t *testing.T, inv *Invocation) {
				assert.Equal(t, "site.hcl", inv.Config.ConfigPath)
				assert.Equal(t, "/srv/site", inv.Config.Root)
				assert.Equal(t, "debug", inv.Config.LogLevel)
				assert.Equal(t, "json", inv.Config.LogFormat)
				assert.Equal(t, 8080, inv.Config.Port)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv, exit, err := Parse(tt.args, &bytes.Buffer{})
			require.NoError(t, err)
			require.False(t, exit)
			assert.Equal(t, tt.wantTask, inv.Task)
			assert.Equal(t, tt.wantList, inv.List)
			if tt.check != nil {
				tt.check(t, inv)
			}
		})
	}
}

func TestParse_Help(t *testing.T) {
	var out bytes.Buffer
	inv, exit, err := Parse([]string{"--help"}, &out)
	require.NoError(t, err)
	assert.True(t, exit)
	assert.Nil(t, inv)
	assert.Contains(t, out.String(), "Usage:")
	assert.Contains(t, out.String(), "--log-format")
}

func TestParse_UsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown task", []string{"deploy"}, "unknown task"},
		{"unknown flag", []string{"--bogus"}, "unknown flag"},
		{"too many tasks", []string{"build:dev", "build:dist"}, "accepts at most 1 arg"},
		{"bad log format", []string{"--log-format", "xml"}, "invalid log-format"},
		{"bad log level", []string{"--log-level", "loud"}, "invalid log-level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, exit, err := Parse(tt.args, &bytes.Buffer{})
			require.Error(t, err)
			assert.False(t, exit)

			var exitErr *ExitError
			require.True(t, errors.As(err, &exitErr))
			assert.Equal(t, ExitUsage, exitErr.Code)
			assert.Contains(t, exitErr.Message, tt.want)
		})
	}
}

func TestAsExitError(t *testing.T) {
	assert.Nil(t, AsExitError(nil))
	assert.Equal(t, ExitTaskFailed, AsExitError(errors.New("boom")).Code)

	usage := &ExitError{Code: ExitUsage, Message: "bad"}
	assert.Same(t, usage, AsExitError(usage))
}
