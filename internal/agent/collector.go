// Package agent samples host telemetry and pushes it to the ingestion
// endpoint. Collection mirrors the wire shape the dashboard expects; any
// section that cannot be read on this host is left at its zero value so a
// partial sample still ships.
package agent

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"stat-watcher/internal/model"
)

// Seams over gopsutil for tests without hardware access.
var (
	cpuInfo             = cpu.InfoWithContext
	cpuCounts           = cpu.CountsWithContext
	virtualMemory       = mem.VirtualMemoryWithContext
	swapMemory          = mem.SwapMemoryWithContext
	diskPartitions      = disk.PartitionsWithContext
	diskUsage           = disk.UsageWithContext
	sensorsTemperatures = host.SensorsTemperaturesWithContext
)

type Collector struct {
	logger zerolog.Logger
}

func NewCollector(logger zerolog.Logger) *Collector {
	return &Collector{logger: logger}
}

// Collect gathers one full stats sample. Sections that fail are logged and
// left zeroed; the sample as a whole only fails on context cancellation.
func (c *Collector) Collect(ctx context.Context) (*model.Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stats := &model.Stats{
		FsSize: []model.FsSizeData{},
		Battery: model.BatteryData{
			// battery state is not exposed through gopsutil; desktops and
			// servers report no battery, which the dashboard renders as AC
			ACConnected:  true,
			CapacityUnit: "mWh",
		},
	}

	c.collectCPU(ctx, stats)
	c.collectMemory(ctx, stats)
	c.collectFilesystems(ctx, stats)
	c.collectTemperatures(ctx, stats)

	return stats, ctx.Err()
}

func (c *Collector) collectCPU(ctx context.Context, stats *model.Stats) {
	infos, err := cpuInfo(ctx)
	if err != nil || len(infos) == 0 {
		c.logger.Warn().Err(err).Msg("cpu info unavailable")
		return
	}

	first := infos[0]
	physical, err := cpuCounts(ctx, false)
	if err != nil {
		physical = 0
	}
	logical, err := cpuCounts(ctx, true)
	if err != nil {
		logical = len(infos)
	}

	sockets := make(map[string]struct{})
	speeds := make([]float64, 0, len(infos))
	for _, info := range infos {
		if info.PhysicalID != "" {
			sockets[info.PhysicalID] = struct{}{}
		}
		if info.Mhz > 0 {
			speeds = append(speeds, info.Mhz/1000)
		}
	}
	processors := len(sockets)
	if processors == 0 {
		processors = 1
	}

	stats.CPU = model.CPUData{
		Manufacturer:  first.VendorID,
		Brand:         first.ModelName,
		Vendor:        first.VendorID,
		Family:        first.Family,
		Model:         first.Model,
		Stepping:      strconv.Itoa(int(first.Stepping)),
		Speed:         first.Mhz / 1000,
		Cores:         logical,
		PhysicalCores: physical,
		Processors:    processors,
		Flags:         strings.Join(first.Flags, " "),
		Cache: model.CPUCache{
			L2: int64(first.CacheSize) * 1024,
		},
	}

	stats.CPUCurrentSpeed = currentSpeed(speeds)
}

func currentSpeed(cores []float64) model.CPUCurrentSpeedData {
	if len(cores) == 0 {
		return model.CPUCurrentSpeedData{Cores: []float64{}}
	}

	min := cores[0]
	max := cores[0]
	sum := 0.0
	for _, v := range cores {
		min = math.Min(min, v)
		max = math.Max(max, v)
		sum += v
	}
	return model.CPUCurrentSpeedData{
		Min:   round2(min),
		Max:   round2(max),
		Avg:   round2(sum / float64(len(cores))),
		Cores: cores,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func (c *Collector) collectMemory(ctx context.Context, stats *model.Stats) {
	vm, err := virtualMemory(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("memory stats unavailable")
		return
	}

	stats.Mem = model.MemData{
		Total:     vm.Total,
		Free:      vm.Free,
		Used:      vm.Used,
		Active:    vm.Active,
		Available: vm.Available,
		Buffers:   vm.Buffers,
		Cached:    vm.Cached,
		Slab:      vm.Slab,
		Buffcache: vm.Buffers + vm.Cached,
		Writeback: vm.WriteBack,
		Dirty:     vm.Dirty,
	}

	if swap, err := swapMemory(ctx); err == nil {
		stats.Mem.SwapTotal = swap.Total
		stats.Mem.SwapUsed = swap.Used
		stats.Mem.SwapFree = swap.Free
	}
}

func (c *Collector) collectFilesystems(ctx context.Context, stats *model.Stats) {
	parts, err := diskPartitions(ctx, false)
	if err != nil {
		c.logger.Warn().Err(err).Msg("disk partitions unavailable")
		return
	}

	for _, p := range parts {
		usage, err := diskUsage(ctx, p.Mountpoint)
		if err != nil || usage.Total == 0 {
			continue
		}
		rw := true
		for _, opt := range p.Opts {
			if opt == "ro" {
				rw = false
				break
			}
		}
		stats.FsSize = append(stats.FsSize, model.FsSizeData{
			Fs:        p.Device,
			Type:      p.Fstype,
			Size:      usage.Total,
			Used:      usage.Used,
			Available: usage.Free,
			Use:       round2(usage.UsedPercent),
			Mount:     p.Mountpoint,
			RW:        rw,
		})
	}
}

func (c *Collector) collectTemperatures(ctx context.Context, stats *model.Stats) {
	sensors, err := sensorsTemperatures(ctx)
	if err != nil || len(sensors) == 0 {
		return
	}

	temps := model.CPUTemperatureData{Cores: []float64{}, Socket: []float64{}}
	sum := 0.0
	count := 0
	for _, s := range sensors {
		key := strings.ToLower(s.SensorKey)
		if !strings.Contains(key, "coretemp") && !strings.Contains(key, "cpu") && !strings.Contains(key, "k10temp") {
			continue
		}
		if s.Temperature <= 0 {
			continue
		}
		temps.Cores = append(temps.Cores, s.Temperature)
		temps.Max = math.Max(temps.Max, s.Temperature)
		sum += s.Temperature
		count++
	}
	if count > 0 {
		temps.Main = round2(sum / float64(count))
	}
	stats.CPUTemperature = temps
}
