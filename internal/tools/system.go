package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/bowerhall/conductor/internal/llm"
)

// Status is a point-in-time host and memory-database snapshot.
type Status struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	MemoryUsed    uint64  `json:"memory_used"`
	MemoryTotal   uint64  `json:"memory_total"`
	DiskPercent   float64 `json:"disk_percent"`
	DiskFree      uint64  `json:"disk_free"`
	DiskTotal     uint64  `json:"disk_total"`
	DatabaseBytes int64   `json:"database_bytes"`
	WALBytes      int64   `json:"wal_bytes"`
}

// ReadStatus samples CPU over a short interval, so it blocks briefly.
func ReadStatus(ctx context.Context, dbPath string) Status {
	var st Status

	if pct, err := cpu.PercentWithContext(ctx, 200*time.Millisecond, false); err == nil && len(pct) > 0 {
		st.CPUPercent = pct[0]
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		st.MemoryPercent = vm.UsedPercent
		st.MemoryUsed = vm.Used
		st.MemoryTotal = vm.Total
	}

	dir := filepath.Dir(dbPath)
	if dir == "" || dir == "." {
		dir = "/"
	}
	if du, err := disk.UsageWithContext(ctx, dir); err == nil {
		st.DiskPercent = du.UsedPercent
		st.DiskFree = du.Free
		st.DiskTotal = du.Total
	}

	if info, err := os.Stat(dbPath); err == nil {
		st.DatabaseBytes = info.Size()
	}
	if info, err := os.Stat(dbPath + "-wal"); err == nil {
		st.WALBytes = info.Size()
	}

	return st
}

func RegisterSystemTools(registry *Registry, dbPath string) {
	tool := llm.Tool{
		Name: SystemStatus,
		Description: `Check host resources and the memory database size. Returns:
- CPU and RAM usage
- Total/available disk space
- Memory database and WAL size`,
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	}

	registry.Register(tool, func(ctx context.Context, args string) (string, error) {
		st := ReadStatus(ctx, dbPath)

		var sb strings.Builder
		fmt.Fprintf(&sb, "CPU: %.1f%%\n", st.CPUPercent)
		fmt.Fprintf(&sb, "Memory: %s / %s (%.1f%%)\n\n", formatBytes(st.MemoryUsed), formatBytes(st.MemoryTotal), st.MemoryPercent)

		if st.DiskTotal > 0 {
			sb.WriteString("Disk Space:\n")
			fmt.Fprintf(&sb, "  Total: %s\n", formatBytes(st.DiskTotal))
			fmt.Fprintf(&sb, "  Used: %.1f%%\n", st.DiskPercent)
			fmt.Fprintf(&sb, "  Available: %s\n\n", formatBytes(st.DiskFree))
		}

		sb.WriteString("Memory Database:\n")
		fmt.Fprintf(&sb, "  Size: %s\n", formatBytes(uint64(st.DatabaseBytes)))
		if st.WALBytes > 0 {
			fmt.Fprintf(&sb, "  WAL: %s\n", formatBytes(uint64(st.WALBytes)))
		}

		return sb.String(), nil
	})
}

func formatBytes(bytes uint64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}
