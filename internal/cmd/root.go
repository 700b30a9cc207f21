package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/dispatcher/internal/config"
	"github.com/Iron-Ham/dispatcher/internal/errors"
)

var rootCmd = &cobra.Command{
	Use:   "dispatcher",
	Short: "Run a Codex agent in tmux until it finishes",
	Long: `Dispatcher launches the Codex CLI inside a detached tmux session,
submits a prompt, watches the pane until the agent's live timer shows that
the turn is over, prints the final answer, and always saves a transcript
and tears the session down.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// ErrorMessage formats a command failure for the terminal. Failures that are
// not meant for operators carry a hint to rerun with debug logging.
func ErrorMessage(err error) string {
	if errors.IsUserFacing(err) {
		return fmt.Sprintf("Error: %v", err)
	}
	return fmt.Sprintf("Error: %v\nRerun with DISPATCHER_LOGGING_LEVEL=debug for details.", err)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/dispatcher/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix(config.EnvPrefix)
	// e.g., DISPATCHER_DISPATCH_MAX_POLLS for dispatch.max_polls
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
