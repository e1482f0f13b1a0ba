package cli

import (
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/spf13/cobra"
)

// GlobalFlags contains global flags available for all commands
type GlobalFlags struct {
	Config  string
	Verbose bool
}

var globalFlags GlobalFlags

// GetGlobalFlags returns the parsed global flags.
func GetGlobalFlags() GlobalFlags {
	return globalFlags
}

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "g2commons",
	Short: "G2Commons - upload Google photos to Wikimedia Commons",
	Long: `G2Commons is a small web application for moving images from Google
Photos, Google Drive and shared Google Photos albums to Wikimedia Commons.

It signs the user in with Google, lets them browse and select images,
attach Commons metadata, and uploads the selection through the Wikimedia
Action API.

Usage:
  g2commons [command] [flags]

Available Commands:
  serve      Start the G2Commons web server
  version    Print the version number

Flags:
  --config string   Path to configuration file (default "config.yaml")
  --verbose         Enable verbose output

Use "g2commons [command] --help" for more information about a command.`,
}

// InitRoot initializes the root command with global flags
func InitRoot() {
	configPath := os.Getenv("G2COMMONS_CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	RootCmd.PersistentFlags().StringVar(&globalFlags.Config, "config", configPath, "Path to configuration file")
	RootCmd.PersistentFlags().BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "Enable verbose output")

	RootCmd.AddCommand(versionCmd)
}

// VersionInfo describes the build.
type VersionInfo struct {
	Version   string
	GoVersion string
	Platform  string
}

// GetVersionInfo returns version information
func GetVersionInfo() VersionInfo {
	return VersionInfo{
		Version:   "0.1.0",
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of G2Commons",
	Run: func(cmd *cobra.Command, args []string) {
		info := GetVersionInfo()
		fmt.Printf("g2commons %s (%s, %s)\n", info.Version, info.GoVersion, info.Platform)
	},
}

var (
	cliInitialized bool
	cliInitMutex   sync.Mutex
)

// InitCLI initializes the CLI framework with all commands
func InitCLI() {
	cliInitMutex.Lock()
	defer cliInitMutex.Unlock()

	if cliInitialized {
		return
	}
	InitRoot()
	cliInitialized = true
}

// Execute runs the root command with the given arguments
func Execute(args []string) error {
	InitCLI()
	RootCmd.SetArgs(args)
	return RootCmd.Execute()
}

// ExecuteWithErrorCode runs the root command and returns an exit code
func ExecuteWithErrorCode(args []string) int {
	if err := Execute(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
