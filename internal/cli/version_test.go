package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/xrd2template/internal/version"
)

func TestVersionCommand(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		contains string
		exact    string
	}{
		{name: "human", args: []string{"version"}, contains: "xrd2template dev (commit:"},
		{name: "short", args: []string{"version", "--short"}, exact: "dev\n"},
		{name: "check on dev build", args: []string{"version", "--short", "--check", ">= 9.0"}, exact: "dev\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, _, err := executeCommand(tt.args...)
			require.NoError(t, err)

			if tt.exact != "" {
				assert.Equal(t, tt.exact, stdout)
				return
			}

			assert.Contains(t, stdout, tt.contains)
		})
	}
}

func TestVersionCommand_JSON(t *testing.T) {
	stdout, _, err := executeCommand("version", "--json")
	require.NoError(t, err)

	var info version.Info
	require.NoError(t, json.Unmarshal([]byte(stdout), &info))

	assert.Equal(t, "dev", info.Version)
	assert.NotEmpty(t, info.GoVersion)
	assert.NotEmpty(t, info.Platform)
}

func TestVersionCommand_Errors(t *testing.T) {
	_, _, err := executeCommand("version", "extra")
	require.Error(t, err)

	_, _, err = executeCommand("version", "--json", "--short")
	require.Error(t, err)

	_, _, err = executeCommand("version", "--check", "not a constraint")
	require.Error(t, err)
	requireExitCode(t, err, ExitUsage)
	assert.Contains(t, err.Error(), "invalid version constraint")
}

func TestCompletionCommand(t *testing.T) {
	for _, shell := range completionShells {
		t.Run(shell, func(t *testing.T) {
			stdout, _, err := executeCommand("completion", shell)
			require.NoError(t, err)
			assert.Contains(t, stdout, "xrd2template")

			_, _, err = executeCommand("completion", shell, "--no-descriptions")
			require.NoError(t, err)
		})
	}

	_, _, err := executeCommand("completion", "tcsh")
	require.Error(t, err)
}
