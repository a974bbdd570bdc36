package common

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

var (
	crashMu  sync.Mutex
	crashDir = "./logs"
)

// InstallCrashHandler points crash reports at the configured log directory.
// Call it at the start of main and pair it with a deferred RecoverWithCrashReport.
func InstallCrashHandler(config *Config) {
	dir, err := resolveLogsDir(config.Logging.Dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "CRASH: cannot resolve log directory: %v\n", err)
		return
	}

	crashMu.Lock()
	crashDir = dir
	crashMu.Unlock()
}

// WriteCrashReport writes the panic value, all goroutine stacks and runtime
// stats to crash-<timestamp>.log and returns its path ("" when the file could
// not be written; the report then goes to stderr).
func WriteCrashReport(panicVal interface{}) string {
	crashMu.Lock()
	dir := crashDir
	crashMu.Unlock()

	now := time.Now()
	var report strings.Builder
	fmt.Fprintf(&report, "=== PRICEWATCH CRASH REPORT ===\n")
	fmt.Fprintf(&report, "Time: %s\nVersion: %s\nArgs: %s\n\n", now.Format(time.RFC3339), GetFullVersion(), strings.Join(os.Args, " "))
	fmt.Fprintf(&report, "=== PANIC ===\n%v\n\n", panicVal)
	fmt.Fprintf(&report, "=== GOROUTINES ===\n%s\n", allGoroutineStacks())

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	fmt.Fprintf(&report, "=== RUNTIME ===\nGoroutines: %d\nGOOS/GOARCH: %s/%s\nAlloc: %d MB\nSys: %d MB\nNumGC: %d\n",
		runtime.NumGoroutine(), runtime.GOOS, runtime.GOARCH, mem.Alloc/1024/1024, mem.Sys/1024/1024, mem.NumGC)

	path := filepath.Join(dir, fmt.Sprintf("crash-%s.log", now.Format("2006-01-02T15-04-05")))
	if err := os.MkdirAll(dir, 0755); err == nil {
		err = os.WriteFile(path, []byte(report.String()), 0644)
		if err == nil {
			fmt.Fprintf(os.Stderr, "\n!!! FATAL CRASH - report saved to %s !!!\nPanic: %v\n", path, panicVal)
			return path
		}
	}

	fmt.Fprintf(os.Stderr, "CRASH: failed to write crash file\n%s", report.String())
	return ""
}

// allGoroutineStacks grows the buffer until every stack fits, up to 64 MB
func allGoroutineStacks() string {
	buf := make([]byte, 64*1024)
	for {
		n := runtime.Stack(buf, true)
		if n < len(buf) || len(buf) >= 64*1024*1024 {
			return string(buf[:n])
		}
		buf = make([]byte, len(buf)*2)
	}
}

// RecoverWithCrashReport writes a crash report for a panic in the calling
// goroutine and exits with status 2.
// Usage: defer common.RecoverWithCrashReport()
func RecoverWithCrashReport() {
	if r := recover(); r != nil {
		WriteCrashReport(r)
		os.Exit(2)
	}
}
