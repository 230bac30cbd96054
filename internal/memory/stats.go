package memory

import (
	"fmt"
	"strings"
)

// Stats tracks arena usage.
type Stats struct {
	Buffers       int
	Allocations   int
	TotalGPUBytes int64 // capacity across all buffers
	UsedBytes     int64 // bytes handed out in slices
	WastedBytes   int64 // unusable tails of superseded buffers
	ActiveFree    int64 // bytes still available in the active buffer
}

// Stats returns current arena statistics.
func (a *Arena) Stats() Stats {
	s := Stats{
		Buffers:       len(a.buffers),
		Allocations:   a.allocations,
		TotalGPUBytes: int64(len(a.buffers)) * int64(a.capacity),
		WastedBytes:   a.wasted,
	}
	if len(a.buffers) > 0 {
		s.ActiveFree = int64(a.capacity - a.cursor)
	}
	s.UsedBytes = s.TotalGPUBytes - s.WastedBytes - s.ActiveFree
	return s
}

// PrintStats outputs arena statistics with a utilization bar per buffer.
func (a *Arena) PrintStats() {
	stats := a.Stats()

	util := 0.0
	if stats.TotalGPUBytes > 0 {
		util = float64(stats.UsedBytes) / float64(stats.TotalGPUBytes)
	}

	memoryLogger.Println("===== Buffer Arena Stats =====")
	memoryLogger.Printf("%.1f%% used (%s/%s GPU), %d buffers, %d allocations, %s wasted in retired tails",
		util*100,
		formatNumber(stats.UsedBytes),
		formatNumber(stats.TotalGPUBytes),
		stats.Buffers,
		stats.Allocations,
		formatNumber(stats.WastedBytes),
	)
	for i := range a.buffers {
		used := a.capacity
		state := "retired"
		if i == len(a.buffers)-1 {
			used = a.cursor
			state = "active"
		}
		bufUtil := float64(used) / float64(a.capacity)
		memoryLogger.Printf("      buffer#%03d  %s %.0f%% (%s) %s",
			i, makeUtilizationBar(bufUtil, 12), bufUtil*100, formatNumber(int64(used)), state)
	}
	memoryLogger.Println("==============================")
}

// makeUtilizationBar creates a visual bar for utilization percentage.
func makeUtilizationBar(utilization float64, width int) string {
	if utilization < 0 {
		utilization = 0
	}
	if utilization > 1 {
		utilization = 1
	}

	filled := int(utilization * float64(width))
	empty := width - filled

	return strings.Repeat("█", filled) + strings.Repeat("░", empty)
}

// formatNumber formats large numbers with K/M suffixes for readability.
func formatNumber(n int64) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1000000 {
		return fmt.Sprintf("%.1fK", float64(n)/1000.0)
	}
	return fmt.Sprintf("%.1fM", float64(n)/1000000.0)
}
