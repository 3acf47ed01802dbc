package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/AdrianGrassin/p1DAA/internal/device"
	"github.com/AdrianGrassin/p1DAA/internal/strategy"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "Show compute device information",
	Long: `Probes for an accelerator and reports what the multiplication
strategies will run on, including the CPU vector capability used by the
blocked strategy.`,
	RunE: runDevices,
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}

func runDevices(cmd *cobra.Command, args []string) error {
	fmt.Printf("Platform:      %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("CPU cores:     %d\n", runtime.NumCPU())
	fmt.Printf("CPU vector:    %s\n", strategy.SIMDInfo())

	dev, err := device.Probe()
	if err != nil {
		fmt.Printf("Accelerator:   none (%v)\n", err)
		fmt.Println("accelerator and hybrid methods will fall back to the blocked CPU strategy")
		return nil
	}

	info := dev.Info()
	free, total := dev.MemoryUsage()
	fmt.Printf("Accelerator:   %s %s\n", info.Vendor, info.Name)
	fmt.Printf("Compute units: %d\n", info.ComputeUnits)
	fmt.Printf("Memory:        %d MB free / %d MB total\n",
		free/(1024*1024), total/(1024*1024))
	return nil
}
