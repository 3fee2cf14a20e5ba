package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	rootCmd = &cobra.Command{
		Use:  "factord",
		RunE: runDaemon,
	}
)

func Execute() error {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "increase verbosity")
	rootCmd.PersistentFlags().String("network", "main", "network to run on (main, test, signet, regtest)")
	rootCmd.PersistentFlags().String("datadir", "", "data directory")
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("network", rootCmd.PersistentFlags().Lookup("network"))
	viper.BindPFlag("datadir", rootCmd.PersistentFlags().Lookup("datadir"))

	rootCmd.AddCommand(daemonCmd)

	return rootCmd.Execute()
}
