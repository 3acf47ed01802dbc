package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/AdrianGrassin/p1DAA/internal/logging"
	"github.com/AdrianGrassin/p1DAA/internal/strategy"
)

var (
	cfgFile string
	verbose bool
	quiet   bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "matrixprod",
	Short: "Dense integer matrix multiplication benchmark",
	Long: `Matrixprod multiplies dense int32 matrices with interchangeable
strategies (naive row/column order, cache-blocked SIMD, GPU-offloaded,
and a hybrid CPU+GPU split) and measures their throughput.`,
	Version: "1.0.0",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := viper.GetString("log-level")
		if verbose {
			level = "debug"
		}
		if quiet {
			level = "error"
		}
		return logging.Init(level, viper.GetString("log-file"), true)
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.matrixprod/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "quiet mode")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-file", "", "also write logs to this file")
	rootCmd.PersistentFlags().Int("block-size", 0, "tile edge for the blocked strategy (0 = default)")
	rootCmd.PersistentFlags().Int("workers", 0, "CPU workers for parallel loops (0 = all cores)")
	rootCmd.PersistentFlags().Uint32("device-max-dim", 0, "largest matrix edge per accelerator dispatch (0 = default)")
	rootCmd.PersistentFlags().Float64("device-mem-fraction", 0, "share of free device memory one dispatch may use (0 = default)")

	// Bind flags to viper
	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log-file", rootCmd.PersistentFlags().Lookup("log-file"))
	viper.BindPFlag("block-size", rootCmd.PersistentFlags().Lookup("block-size"))
	viper.BindPFlag("workers", rootCmd.PersistentFlags().Lookup("workers"))
	viper.BindPFlag("device-max-dim", rootCmd.PersistentFlags().Lookup("device-max-dim"))
	viper.BindPFlag("device-mem-fraction", rootCmd.PersistentFlags().Lookup("device-mem-fraction"))
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			os.Exit(1)
		}

		viper.AddConfigPath(home + "/.matrixprod")
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// Environment variables
	viper.SetEnvPrefix("MATRIXPROD")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if verbose {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}

// strategyConfig builds the strategy tuning from viper-bound settings.
// Zero values defer to the strategy package defaults.
func strategyConfig() strategy.Config {
	return strategy.Config{
		BlockSize:         viper.GetInt("block-size"),
		Workers:           viper.GetInt("workers"),
		DeviceMaxDim:      viper.GetUint32("device-max-dim"),
		DeviceMemFraction: viper.GetFloat64("device-mem-fraction"),
	}
}
