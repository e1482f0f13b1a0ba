package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	assert.NotNil(t, RootCmd)
	assert.Equal(t, "g2commons", RootCmd.Use)
	assert.Contains(t, RootCmd.Long, "Wikimedia Commons")
}

func TestVersionCommand(t *testing.T) {
	assert.NotNil(t, versionCmd)
	assert.Equal(t, "version", versionCmd.Use)
}

func TestGetGlobalFlags(t *testing.T) {
	InitCLI()

	flags := GetGlobalFlags()
	assert.Equal(t, "config.yaml", flags.Config)
	assert.False(t, flags.Verbose)
}

func TestGetVersionInfo(t *testing.T) {
	info := GetVersionInfo()
	assert.NotEmpty(t, info.Version)
	assert.NotEmpty(t, info.GoVersion)
	assert.NotEmpty(t, info.Platform)
}

func TestServeMissingConfig(t *testing.T) {
	InitCLI()

	err := Execute([]string{"serve", "--config", "/nonexistent/config.yaml"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration")
}
