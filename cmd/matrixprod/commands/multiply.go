package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/AdrianGrassin/p1DAA/internal/matrix"
	"github.com/AdrianGrassin/p1DAA/internal/strategy"
)

var (
	multiplyMethod string
	multiplyPrint  bool
)

var multiplyCmd = &cobra.Command{
	Use:   "multiply <rows> <cols> [inner]",
	Short: "Multiply two random matrices once with a chosen method",
	Long: `Generates A (rows x inner) and B (inner x cols) with random
elements in [0,100), multiplies them with the chosen method, and prints
the elapsed time. inner defaults to rows.`,
	Args: cobra.RangeArgs(2, 3),
	RunE: runMultiply,
}

func init() {
	multiplyCmd.Flags().StringVarP(&multiplyMethod, "method", "m", "blocked", "multiplication method")
	multiplyCmd.Flags().BoolVar(&multiplyPrint, "print", false, "print the operand and result matrices")
	rootCmd.AddCommand(multiplyCmd)
}

func runMultiply(cmd *cobra.Command, args []string) error {
	dims := make([]uint32, 0, 3)
	for _, arg := range args {
		v, err := strconv.ParseUint(arg, 10, 32)
		if err != nil || v == 0 {
			return fmt.Errorf("invalid dimension %q", arg)
		}
		dims = append(dims, uint32(v))
	}
	rows, cols := dims[0], dims[1]
	inner := rows
	if len(dims) == 3 {
		inner = dims[2]
	}

	s, err := strategy.NewWithConfig(multiplyMethod, strategyConfig())
	if err != nil {
		return err
	}
	defer s.Close()

	a, err := matrix.New(rows, inner)
	if err != nil {
		return err
	}
	b, err := matrix.New(inner, cols)
	if err != nil {
		return err
	}
	if err := a.FillRandom(0, 100); err != nil {
		return err
	}
	if err := b.FillRandom(0, 100); err != nil {
		return err
	}

	start := time.Now()
	c, err := s.Multiply(cmd.Context(), a, b)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	if multiplyPrint {
		fmt.Printf("A =\n%s\nB =\n%s\nC =\n%s\n", a, b, c)
	}
	fmt.Printf("method=%s  %dx%d @ %dx%d  elapsed=%s\n",
		s.Name(), rows, inner, inner, cols, elapsed)
	return nil
}
