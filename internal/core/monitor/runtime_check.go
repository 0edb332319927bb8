package monitor

import (
	"context"
	"fmt"
	"runtime"

	"github.com/frostdev-ops/erp-backend-go/internal/core/metrics"
)

// RuntimeLimits bound the process itself; zero disables a limit
type RuntimeLimits struct {
	MaxGoroutines int
	MaxHeapAlloc  uint64 // bytes
}

// DefaultRuntimeLimits returns limits suited to a single alerting process
func DefaultRuntimeLimits() RuntimeLimits {
	return RuntimeLimits{
		MaxGoroutines: 10000,
		MaxHeapAlloc:  1024 * 1024 * 1024,
	}
}

// RuntimeCheck builds the "go_runtime" health check. Exceeding a limit
// degrades the check; it never takes the process down.
func RuntimeCheck(limits RuntimeLimits) metrics.CheckFunc {
	return func(context.Context) metrics.CheckResult {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		return evaluateRuntime(runtime.NumGoroutine(), m.HeapAlloc, limits)
	}
}

func evaluateRuntime(goroutines int, heapAlloc uint64, limits RuntimeLimits) metrics.CheckResult {
	status := metrics.CheckUp
	message := "Go runtime within limits"

	switch {
	case limits.MaxGoroutines > 0 && goroutines > limits.MaxGoroutines:
		status = metrics.CheckDegraded
		message = fmt.Sprintf("goroutine count %d exceeds %d", goroutines, limits.MaxGoroutines)
	case limits.MaxHeapAlloc > 0 && heapAlloc > limits.MaxHeapAlloc:
		status = metrics.CheckDegraded
		message = fmt.Sprintf("heap allocation %d bytes exceeds %d", heapAlloc, limits.MaxHeapAlloc)
	}

	return metrics.NewCheckResult("go_runtime", status, message).
		WithDetail("goroutines", goroutines).
		WithDetail("heap_alloc_bytes", heapAlloc)
}
