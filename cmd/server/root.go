package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Global flag values.
var (
	flagConfig string
	flagPort   int
)

var rootCmd = &cobra.Command{
	Use:           "eav-server",
	Short:         "HTTP service over an entity-attribute-value store",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		v := viper.New()
		if err := v.BindPFlag("server.port", cmd.Flags().Lookup("port")); err != nil {
			return err
		}
		return serve(cmd.Context(), v, flagConfig)
	},
}

func init() {
	rootCmd.Flags().StringVar(&flagConfig, "config", "", "config file (default: ./app.yaml when present)")
	rootCmd.Flags().IntVar(&flagPort, "port", 8080, "HTTP listen port, overrides server.port")
}
