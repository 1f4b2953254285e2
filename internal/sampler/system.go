package sampler

import (
	"context"
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
)

// sampleSystem resolves a "system:" source against the local host.
//
// Supported names:
//
//	cpu.percent               total CPU utilization since the last call
//	mem.used_pct              virtual memory used percent
//	swap.used_pct             swap used percent
//	load.1 load.5 load.15     load averages
//	disk.<mount>.used_pct     filesystem used percent for a mountpoint
func sampleSystem(ctx context.Context, name string) (float64, error) {
	switch name {
	case "cpu.percent":
		pcts, err := cpu.PercentWithContext(ctx, 0, false)
		if err != nil {
			return 0, fmt.Errorf("system cpu: %w", err)
		}
		if len(pcts) == 0 {
			return 0, fmt.Errorf("system cpu: no data")
		}
		return pcts[0], nil
	case "mem.used_pct":
		vm, err := mem.VirtualMemoryWithContext(ctx)
		if err != nil {
			return 0, fmt.Errorf("system mem: %w", err)
		}
		return vm.UsedPercent, nil
	case "swap.used_pct":
		sm, err := mem.SwapMemoryWithContext(ctx)
		if err != nil {
			return 0, fmt.Errorf("system swap: %w", err)
		}
		return sm.UsedPercent, nil
	case "load.1", "load.5", "load.15":
		avg, err := load.AvgWithContext(ctx)
		if err != nil {
			return 0, fmt.Errorf("system load: %w", err)
		}
		switch name {
		case "load.1":
			return avg.Load1, nil
		case "load.5":
			return avg.Load5, nil
		default:
			return avg.Load15, nil
		}
	}

	if mount, ok := diskMount(name); ok {
		usage, err := disk.UsageWithContext(ctx, mount)
		if err != nil {
			return 0, fmt.Errorf("system disk %s: %w", mount, err)
		}
		return usage.UsedPercent, nil
	}

	return 0, fmt.Errorf("unknown system metric %q", name)
}

// diskMount extracts the mountpoint from "disk.<mount>.used_pct".
func diskMount(name string) (string, bool) {
	if !strings.HasPrefix(name, "disk.") || !strings.HasSuffix(name, ".used_pct") {
		return "", false
	}
	mount := strings.TrimSuffix(strings.TrimPrefix(name, "disk."), ".used_pct")
	if mount == "" {
		return "", false
	}
	return mount, true
}
