package strategy

import (
	"os"
	"runtime"

	"golang.org/x/sys/cpu"
)

// laneWidth is the number of int32 products the blocked kernel
// accumulates per step: 8 on AVX2 (256-bit lanes), 4 on NEON/SSE2
// (128-bit), 1 when no vector unit is usable. Integer multiply-add has no
// rounding, so every width produces identical sums.
var laneWidth = detectLanes()

func detectLanes() int {
	if os.Getenv("MATRIXPROD_NOSIMD") != "" {
		return 1
	}
	switch runtime.GOARCH {
	case "amd64":
		if cpu.X86.HasAVX2 {
			return 8
		}
		if cpu.X86.HasSSE2 {
			return 4
		}
		return 1
	case "arm64":
		// NEON is mandatory on arm64
		return 4
	default:
		return 1
	}
}

// LaneWidth reports the accumulator width the blocked strategy will use.
func LaneWidth() int {
	return laneWidth
}

// SIMDInfo describes the detected vector capability for logs and the
// devices command.
func SIMDInfo() string {
	switch laneWidth {
	case 8:
		return "AVX2 (8-wide int32)"
	case 4:
		if runtime.GOARCH == "arm64" {
			return "NEON (4-wide int32)"
		}
		return "SSE2 (4-wide int32)"
	default:
		return "scalar"
	}
}
