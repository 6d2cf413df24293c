package cli

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gatehouse/gatehouse/internal/config"
)

var cfgFile string

// Execute creates the root command tree and runs it.
func Execute(version, commit, date string) error {
	rootCmd := newRootCmd(version, commit, date)
	return rootCmd.Execute()
}

func newRootCmd(version, commit, date string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gatehouse",
		Short: "User and API-token backend with an audited auth pipeline",
		Long: `Gatehouse is a web-service backend for user accounts and API tokens.

It issues signed session tokens, transparently upgrades long-lived opaque
API tokens into per-URI scoped session tokens, gates protected routes, and
keeps a persistent audit trail of every request and response.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./app.yaml)")

	cobra.OnInitialize(initConfig)

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newVersionCmd(version, commit, date))
	cmd.AddCommand(newUserCmd())
	cmd.AddCommand(newTokenCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("app")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.gatehouse")
	}

	viper.SetEnvPrefix("GATEHOUSE")
	viper.AutomaticEnv()
	viper.ReadInConfig() // config file is optional
}

// loadConfig resolves the effective AppConfig: the YAML file named by
// --config (or the default search path) over built-in defaults.
func loadConfig() config.AppConfig {
	path := viper.ConfigFileUsed()
	if path == "" {
		if _, err := os.Stat("app.yaml"); err == nil {
			path = "app.yaml"
		}
	}
	if path == "" {
		return config.Default()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Default()
	}
	return cfg
}
