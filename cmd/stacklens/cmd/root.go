package cmd

import (
	"fmt"

	"github.com/lgili/stacklens/internal/config"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "stacklens",
	Short: "StackLens - Worst-case stack analysis for embedded firmware",
	Long: `StackLens reads the .su files GCC emits under -fstack-usage,
builds a call graph from the C sources, and solves the worst-case
stack depth from any entry point.

It helps firmware developers answer "does this fit in my stack?"
before the hardware does, by walking every call path and reporting
the deepest one: entry -> handler -> encoder -> driver.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./stacklens.yaml)")
}

func GetConfig() *config.Config {
	return cfg
}
