// Package telemetry reads CPU, memory, disk and temperature metrics.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/sensors"

	"github.com/verte-zerg/bibleclock/internal/model"
)

// DefaultThermalPath is the Raspberry Pi SoC temperature file.
const DefaultThermalPath = "/sys/class/thermal/thermal_zone0/temp"

const cpuSampleWindow = 200 * time.Millisecond

type reader func(ctx context.Context) (float64, error)

// Collector reads system metrics. Each metric is read independently so one
// failing source does not hide the others.
type Collector struct {
	cpu         reader
	memory      reader
	disk        reader
	temperature reader
}

// New returns a Collector for the root filesystem and the default thermal zone.
func New() *Collector {
	return NewWithPaths("/", DefaultThermalPath)
}

// NewWithPaths returns a Collector reporting usage of diskPath and reading
// the SoC temperature from thermalPath, falling back to hardware sensors.
func NewWithPaths(diskPath, thermalPath string) *Collector {
	return &Collector{
		cpu:    cpuPercent,
		memory: memPercent,
		disk: func(ctx context.Context) (float64, error) {
			usage, err := disk.UsageWithContext(ctx, diskPath)
			if err != nil {
				return 0, err
			}
			return usage.UsedPercent, nil
		},
		temperature: func(ctx context.Context) (float64, error) {
			if v, err := readThermal(thermalPath); err == nil {
				return v, nil
			}
			return sensorTemperature(ctx)
		},
	}
}

// Read implements stats.TelemetrySource. It fails only when no metric at all
// could be read.
func (c *Collector) Read(ctx context.Context) (model.Telemetry, error) {
	var (
		t    model.Telemetry
		errs []error
	)
	for _, m := range []struct {
		name string
		read reader
		dst  *model.Metric
	}{
		{"cpu", c.cpu, &t.CPUUsage},
		{"memory", c.memory, &t.MemoryUsage},
		{"disk", c.disk, &t.DiskUsage},
		{"temperature", c.temperature, &t.CPUTemperature},
	} {
		if m.read == nil {
			errs = append(errs, fmt.Errorf("%s: not configured", m.name))
			continue
		}
		v, err := m.read(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", m.name, err))
			continue
		}
		*m.dst = model.Reading(v)
	}
	if len(errs) == 4 {
		return t, fmt.Errorf("%w: %w", model.ErrUnavailable, errors.Join(errs...))
	}
	return t, nil
}

func cpuPercent(ctx context.Context) (float64, error) {
	values, err := cpu.PercentWithContext(ctx, cpuSampleWindow, false)
	if err != nil {
		return 0, err
	}
	if len(values) == 0 {
		return 0, errors.New("no cpu sample")
	}
	return values[0], nil
}

func memPercent(ctx context.Context) (float64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return vm.UsedPercent, nil
}

func sensorTemperature(ctx context.Context) (float64, error) {
	temps, err := sensors.TemperaturesWithContext(ctx)
	if len(temps) == 0 {
		if err == nil {
			err = errors.New("no temperature sensors")
		}
		return 0, err
	}
	hottest := temps[0].Temperature
	for _, s := range temps[1:] {
		if s.Temperature > hottest {
			hottest = s.Temperature
		}
	}
	return hottest, nil
}

// readThermal parses a sysfs thermal zone, which reports millidegrees Celsius.
func readThermal(path string) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	milli, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", path, err)
	}
	return milli / 1000, nil
}
