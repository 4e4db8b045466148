// Package metrics contains the metric sources the agent samples: host
// gauges read through gopsutil, systemd unit state read through
// systemctl, and log-derived counters. Every source is a pure read with
// no side effects beyond its own bookkeeping.
package metrics

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
)

// Source reads a single observable quantity. Boolean observations are
// encoded as 0/1. Log-backed counters report the number of new
// occurrences since the previous read; FailedUnits and PendingUpdates
// report the current absolute count each read.
type Source interface {
	Read(ctx context.Context) (float64, error)
}

// SourceFunc adapts a plain function to the Source interface.
type SourceFunc func(ctx context.Context) (float64, error)

// Read implements Source.
func (f SourceFunc) Read(ctx context.Context) (float64, error) {
	return f(ctx)
}

// CPU returns a source reporting overall CPU utilisation in percent,
// measured over the window since the previous read.
func CPU() Source {
	return SourceFunc(func(ctx context.Context) (float64, error) {
		percents, err := cpu.PercentWithContext(ctx, 0, false)
		if err != nil {
			return 0, fmt.Errorf("cpu percent: %w", err)
		}
		if len(percents) == 0 {
			return 0, fmt.Errorf("cpu percent: no data")
		}
		return clampPercent(percents[0]), nil
	})
}

// Memory returns a source reporting virtual memory usage in percent.
func Memory() Source {
	return SourceFunc(func(ctx context.Context) (float64, error) {
		vm, err := mem.VirtualMemoryWithContext(ctx)
		if err != nil {
			return 0, fmt.Errorf("virtual memory: %w", err)
		}
		return clampPercent(vm.UsedPercent), nil
	})
}

// Disk returns a source reporting used disk space in percent for the
// given mount path.
func Disk(path string) Source {
	return SourceFunc(func(ctx context.Context) (float64, error) {
		usage, err := disk.UsageWithContext(ctx, path)
		if err != nil {
			return 0, fmt.Errorf("disk usage %s: %w", path, err)
		}
		return clampPercent(usage.UsedPercent), nil
	})
}

// ServiceActive returns a source reporting 1 when the systemd unit is
// active and 0 otherwise. A missing or inactive unit is a valid
// observation, not a read error.
func ServiceActive(unit string) Source {
	return SourceFunc(func(ctx context.Context) (float64, error) {
		out, err := exec.CommandContext(ctx, "systemctl", "is-active", unit).Output()
		state := strings.TrimSpace(string(out))
		if state == "" && err != nil {
			return 0, fmt.Errorf("systemctl is-active %s: %w", unit, err)
		}
		if state == "active" {
			return 1, nil
		}
		return 0, nil
	})
}

// FailedUnits returns a source counting systemd service units currently
// in the failed state.
func FailedUnits() Source {
	return SourceFunc(func(ctx context.Context) (float64, error) {
		out, err := exec.CommandContext(ctx,
			"systemctl", "list-units", "--type=service", "--state=failed",
			"--no-legend", "--plain").Output()
		if err != nil {
			return 0, fmt.Errorf("systemctl list-units: %w", err)
		}
		count := 0
		for _, line := range strings.Split(string(out), "\n") {
			if strings.Contains(line, ".service") {
				count++
			}
		}
		return float64(count), nil
	})
}

// PendingUpdates returns a source counting packages apt reports as
// upgradable.
func PendingUpdates() Source {
	return SourceFunc(func(ctx context.Context) (float64, error) {
		out, err := exec.CommandContext(ctx, "apt", "list", "--upgradable").Output()
		if err != nil {
			return 0, fmt.Errorf("apt list --upgradable: %w", err)
		}
		count := 0
		for _, line := range strings.Split(string(out), "\n") {
			if strings.Contains(line, "/") {
				count++
			}
		}
		return float64(count), nil
	})
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
