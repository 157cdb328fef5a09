package cmd

import (
	"github.com/spf13/cobra"

	"rugroulette/internal/config"
)

const BinaryName = "rouletted"

// NewRootCmd creates the rouletted command tree. It is called once in main.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           BinaryName,
		Short:         "Rug roulette settlement chain (CometBFT ABCI app)",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			cmd.SetOut(cmd.OutOrStdout())
			cmd.SetErr(cmd.ErrOrStderr())
		},
	}
	rootCmd.PersistentFlags().String(config.KeyHome, config.Default().Home, "app home directory (state under <home>/data, keys under <home>/keys)")

	rootCmd.AddCommand(
		StartCmd(),
		KeysCmd(),
		DeriveCmd(),
		TxCmd(),
	)
	return rootCmd
}

// loadConfig merges flags, ROULETTE_* env and <home>/config/app.toml.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	v, err := config.NewViper(cmd.Flags())
	if err != nil {
		return config.Config{}, err
	}
	return config.Load(v)
}
