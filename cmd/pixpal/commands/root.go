package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mirubo/pixpal/cmd/pixpal/internal/config"
)

var (
	// Global flags
	verbose bool

	// Global configuration (loaded at init time)
	globalConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "pixpal",
	Short: "CLI for the pixpal streaming conversation engine",
	Long: `pixpal - talk to a streaming generation backend from the terminal.

The engine reassembles chunked streaming responses into complete turns,
follows embedded vision directives with a camera capture, and archives
finished conversations.

Configuration is stored in the OS config directory:
  macOS:   ~/Library/Application Support/pixpal/
  Linux:   ~/.config/pixpal/
  Windows: %AppData%/pixpal/

Use 'pixpal config' to manage contexts.

Examples:
  # Create a context and configure the engine
  pixpal config add-context dev
  pixpal config set dev engine api_key YOUR_KEY

  # Use the current context for subcommands
  pixpal config use-context dev
  pixpal chat

  # Or specify context on the subcommand
  pixpal chat -c dev`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// configLoadErr stores the error from config.Load() for deferred reporting.
var configLoadErr error

func initConfig() {
	cfg, err := config.Load()
	if err != nil {
		// Store error for deferred reporting. Commands that need config
		// will get a clear error via GetConfig(); non-config commands
		// like 'pixpal version' keep working.
		configLoadErr = err
		return
	}
	globalConfig = cfg
}

// GetConfig returns the global configuration.
// Returns an error if the config could not be loaded (e.g., HOME not set).
func GetConfig() (*config.Config, error) {
	if globalConfig == nil {
		if configLoadErr != nil {
			return nil, fmt.Errorf("config not available: %w", configLoadErr)
		}
		// Try loading again (e.g., dir was created since init).
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("config not available: %w", err)
		}
		globalConfig = cfg
	}
	return globalConfig, nil
}

// IsVerbose returns whether verbose mode is enabled.
func IsVerbose() bool {
	return verbose
}
