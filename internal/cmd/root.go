package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tribunal/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "tribunal",
	Short: "Deterministic audit pipeline for automation projects",
	Long: `Tribunal audits a project working tree against a rubric: analyzers
gather evidence concurrently, three adversarial judge personas score each
criterion, and a deterministic rule engine synthesizes the verdict into a
reproducible audit report.`,
	SilenceUsage: true,
}

// Execute runs the root command under the given context, so an interrupt
// cancels in-flight runs and lets watchers close cleanly.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/tribunal/config.yaml)")
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
	viper.SetEnvPrefix("TRIBUNAL")
	// Replace dots with underscores for nested keys in env vars
	// e.g., TRIBUNAL_RETRY_MAX_ATTEMPTS for retry.max_attempts
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
