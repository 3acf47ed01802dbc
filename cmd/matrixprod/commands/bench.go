package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/AdrianGrassin/p1DAA/internal/bench"
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Benchmark the multiplication strategies",
	Long: `Runs every selected method over every selected size, timing
repeated multiplications of freshly randomized square matrices, and
writes the aggregated results as CSV.`,
	RunE: runBench,
}

func init() {
	defaults := bench.DefaultOptions()
	benchCmd.Flags().IntSlice("sizes", defaults.Sizes, "square matrix sizes to benchmark")
	benchCmd.Flags().IntP("iterations", "n", defaults.Iterations, "iterations per size/method cell")
	benchCmd.Flags().StringSlice("methods", defaults.Methods, "methods to benchmark")
	benchCmd.Flags().StringP("output", "o", "benchmark_results_detailed.csv", "CSV output path (- for stdout)")
	benchCmd.Flags().Int32("lo", defaults.RandomLo, "inclusive lower bound for random elements")
	benchCmd.Flags().Int32("hi", defaults.RandomHi, "exclusive upper bound for random elements")

	// Bind flags to viper so the config file and MATRIXPROD_* env vars
	// can set them too
	viper.BindPFlag("sizes", benchCmd.Flags().Lookup("sizes"))
	viper.BindPFlag("iterations", benchCmd.Flags().Lookup("iterations"))
	viper.BindPFlag("methods", benchCmd.Flags().Lookup("methods"))
	viper.BindPFlag("output", benchCmd.Flags().Lookup("output"))
	viper.BindPFlag("lo", benchCmd.Flags().Lookup("lo"))
	viper.BindPFlag("hi", benchCmd.Flags().Lookup("hi"))

	rootCmd.AddCommand(benchCmd)
}

// benchOptions builds the run options from viper-bound settings.
func benchOptions() bench.Options {
	return bench.Options{
		Sizes:      viper.GetIntSlice("sizes"),
		Iterations: viper.GetInt("iterations"),
		Methods:    viper.GetStringSlice("methods"),
		RandomLo:   viper.GetInt32("lo"),
		RandomHi:   viper.GetInt32("hi"),
		Config:     strategyConfig(),
	}
}

func runBench(cmd *cobra.Command, args []string) error {
	results, err := bench.Run(cmd.Context(), benchOptions())
	if err != nil {
		return err
	}

	output := viper.GetString("output")
	if output == "-" {
		return bench.WriteCSV(os.Stdout, results)
	}
	if err := bench.WriteCSVFile(output, results); err != nil {
		return err
	}
	fmt.Printf("wrote %d results to %s\n", len(results), output)
	return nil
}
