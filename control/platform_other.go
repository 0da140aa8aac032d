//go:build !unix

// control/platform_other.go
// Author: momentics <momentics@gmail.com>
//
// Fallback platform probes.

package control

import (
	"os"
	"runtime"
)

// RegisterPlatformProbes sets platform debug values useful when sizing blobs.
func RegisterPlatformProbes(dp *DebugProbes) {
	dp.RegisterProbe("platform.cpus", func() any {
		return runtime.NumCPU()
	})
	dp.RegisterProbe("platform.page_size", func() any {
		return os.Getpagesize()
	})
}
