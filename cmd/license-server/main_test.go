// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/license-server/internal/database"
)

func TestRunGenerateConfigCommand(t *testing.T) {
	tests := []struct {
		name               string
		args               []string
		setupExistingFile  bool
		validateOutput     func(t *testing.T, output string)
		validateConfigFile func(t *testing.T, configPath string)
	}{
		{
			name: "generate_config_custom_directory",
			args: []string{"--config-dir", "custom/path"},
			validateOutput: func(t *testing.T, output string) {
				assert.Contains(t, output, "Configuration file created")
				assert.Contains(t, output, "custom/path/config.toml")
			},
			validateConfigFile: func(t *testing.T, configPath string) {
				content, err := os.ReadFile(configPath)
				require.NoError(t, err)
				assert.Contains(t, string(content), "# config.toml")
				assert.Contains(t, string(content), "apiKey = ")
				assert.Contains(t, string(content), "[store]")
			},
		},
		{
			name: "generate_config_custom_file",
			args: []string{"--config-dir", "custom/myconfig.toml"},
			validateOutput: func(t *testing.T, output string) {
				assert.Contains(t, output, "Configuration file created")
				assert.Contains(t, output, "custom/myconfig.toml")
			},
			validateConfigFile: func(t *testing.T, configPath string) {
				assert.Equal(t, "myconfig.toml", filepath.Base(configPath))
				_, err := os.Stat(configPath)
				assert.NoError(t, err)
			},
		},
		{
			name:              "skip_existing_config",
			args:              []string{"--config-dir", "existing/path"},
			setupExistingFile: true,
			validateOutput: func(t *testing.T, output string) {
				assert.Contains(t, output, "Configuration file already exists")
				assert.Contains(t, output, "existing/path/config.toml")
			},
			validateConfigFile: func(t *testing.T, configPath string) {
				content, err := os.ReadFile(configPath)
				require.NoError(t, err)
				assert.Equal(t, "# Existing config content", string(content))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			t.Chdir(tmpDir)

			if tt.setupExistingFile {
				existingPath := filepath.Join(tmpDir, "existing", "path", "config.toml")
				require.NoError(t, os.MkdirAll(filepath.Dir(existingPath), 0755))
				require.NoError(t, os.WriteFile(existingPath, []byte("# Existing config content"), 0644))
			}

			cmd := RunGenerateConfigCommand()
			var output bytes.Buffer
			cmd.SetOut(&output)
			cmd.SetErr(&output)
			cmd.SetArgs(tt.args)

			require.NoError(t, cmd.Execute())

			tt.validateOutput(t, output.String())

			expectedConfigPath := filepath.Join(tmpDir, tt.args[1])
			if !strings.HasSuffix(tt.args[1], ".toml") {
				expectedConfigPath = filepath.Join(expectedConfigPath, "config.toml")
			}
			tt.validateConfigFile(t, expectedConfigPath)
		})
	}
}

func TestGenerateConfigCommandHelp(t *testing.T) {
	cmd := RunGenerateConfigCommand()
	var output bytes.Buffer
	cmd.SetOut(&output)
	cmd.SetArgs([]string{"--help"})

	require.NoError(t, cmd.Execute())

	helpOutput := output.String()
	assert.Contains(t, helpOutput, "Generate a default configuration file")
	assert.Contains(t, helpOutput, "--config-dir")
	assert.Contains(t, helpOutput, "OS-specific default location")
}

func TestGenerateConfigCommandValidation(t *testing.T) {
	cmd := RunGenerateConfigCommand()
	var output bytes.Buffer
	cmd.SetOut(&output)
	cmd.SetErr(&output)
	cmd.SetArgs([]string{"--config-dir"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flag needs an argument")
}

func TestResolveConfigFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "settings")
	require.NoError(t, os.WriteFile(file, []byte(""), 0600))

	assert.Equal(t, filepath.Join(dir, "config.toml"), resolveConfigFile(dir))
	assert.Equal(t, "a/b.TOML", resolveConfigFile("a/b.TOML"))
	assert.Equal(t, file, resolveConfigFile(file))
	assert.True(t, strings.HasSuffix(resolveConfigFile(""), filepath.Join("license-server", "config.toml")))
}

func TestRunVersionCommand(t *testing.T) {
	cmd := RunVersionCommand("1.2.3")
	var output bytes.Buffer
	cmd.SetOut(&output)
	cmd.SetArgs(nil)

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "1.2.3\n", output.String())
}

func seedLicenses(t *testing.T, dataDir string) {
	t.Helper()

	db, err := database.New(filepath.Join(dataDir, "licenses.db"))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Conn().Exec(`INSERT INTO licenses (license_key, expires_at, is_banned) VALUES
		('GOOD-KEY', '2099-01-01T00:00:00Z', 0),
		('BANNED-KEY', '2099-01-01T00:00:00Z', 1),
		('OLD-KEY', '2000-01-01T00:00:00Z', 0)`)
	require.NoError(t, err)
}

func TestRunCheckCommand(t *testing.T) {
	t.Setenv("LICENSE_SERVER__STORE__DRIVER", "sqlite")
	t.Setenv("LICENSE_SERVER__CACHE__ENABLED", "false")

	dataDir := t.TempDir()
	seedLicenses(t, dataDir)

	tests := []struct {
		name        string
		key         string
		expectErr   string
		expectLines []string
	}{
		{
			name:        "valid",
			key:         "GOOD-KEY",
			expectLines: []string{"outcome: valid", "expires_at: 2099-01-01T00:00:00Z", "seconds_left: "},
		},
		{
			name:        "banned",
			key:         "BANNED-KEY",
			expectErr:   "banned",
			expectLines: []string{"outcome: banned"},
		},
		{
			name:        "expired",
			key:         "OLD-KEY",
			expectErr:   "expired",
			expectLines: []string{"outcome: expired"},
		},
		{
			name:        "unknown",
			key:         "NOPE",
			expectErr:   "invalid_key",
			expectLines: []string{"outcome: invalid_key"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := RunCheckCommand()
			var output bytes.Buffer
			cmd.SetOut(&output)
			cmd.SetErr(&output)
			cmd.SetArgs([]string{"--config-dir", t.TempDir(), "--data-dir", dataDir, "--key", tt.key})

			err := cmd.Execute()
			if tt.expectErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectErr)
			} else {
				require.NoError(t, err)
			}

			for _, line := range tt.expectLines {
				assert.Contains(t, output.String(), line)
			}
		})
	}
}

func TestRunCheckCommandRequiresKey(t *testing.T) {
	cmd := RunCheckCommand()
	var output bytes.Buffer
	cmd.SetOut(&output)
	cmd.SetErr(&output)
	cmd.SetArgs([]string{"--key", "   "})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--key is required")
}
