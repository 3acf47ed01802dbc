package bench

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// csvHeader matches the column layout the plotting script consumes
// (Size, Method, then value/stddev pairs, then GFlops).
var csvHeader = []string{
	"Size",
	"Method",
	"Compute Time (ms)",
	"Compute StdDev (ms)",
	"Total Time (ms)",
	"Total StdDev (ms)",
	"Memory Usage (MB)",
	"Memory StdDev (MB)",
	"GFlops",
}

// WriteCSV renders results as CSV.
func WriteCSV(w io.Writer, results []Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range results {
		record := []string{
			fmt.Sprintf("%d", r.Size),
			r.Method,
			fmt.Sprintf("%.3f", r.ComputeMeanMs),
			fmt.Sprintf("%.3f", r.ComputeStdMs),
			fmt.Sprintf("%.3f", r.TotalMeanMs),
			fmt.Sprintf("%.3f", r.TotalStdMs),
			fmt.Sprintf("%.3f", r.MemoryMeanMB),
			fmt.Sprintf("%.3f", r.MemoryStdMB),
			fmt.Sprintf("%.3f", r.GFlops),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes results to a file, creating or truncating it.
func WriteCSVFile(path string, results []Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return WriteCSV(f, results)
}
