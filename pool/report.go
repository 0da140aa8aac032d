// File: pool/report.go
// Author: momentics <momentics@gmail.com>
//
// Process-wide diagnostic sink for leak and teardown reports.

package pool

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/momentics/hioload-mempool/internal/logger"
)

// ReportFunc receives a printf-style diagnostic message.
type ReportFunc func(format string, args ...any)

var reportFunc atomic.Pointer[ReportFunc]

func defaultReport(format string, args ...any) {
	msg := strings.TrimRight(fmt.Sprintf(format, args...), "\n")
	logger.L.Warn(msg, "component", "mempool")
}

// SetReportFunc installs fn as the process-wide sink and returns the
// previous one. A nil fn restores the logger-backed default.
func SetReportFunc(fn ReportFunc) ReportFunc {
	prev := CurrentReportFunc()
	if fn == nil {
		reportFunc.Store(nil)
	} else {
		reportFunc.Store(&fn)
	}
	return prev
}

// CurrentReportFunc returns the process-wide sink.
func CurrentReportFunc() ReportFunc {
	if fn := reportFunc.Load(); fn != nil {
		return *fn
	}
	return defaultReport
}
