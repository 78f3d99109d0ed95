package agent

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

func stubGopsutil(t *testing.T) {
	t.Helper()

	origCPUInfo := cpuInfo
	origCPUCounts := cpuCounts
	origVirtualMemory := virtualMemory
	origSwapMemory := swapMemory
	origDiskPartitions := diskPartitions
	origDiskUsage := diskUsage
	origSensors := sensorsTemperatures
	t.Cleanup(func() {
		cpuInfo = origCPUInfo
		cpuCounts = origCPUCounts
		virtualMemory = origVirtualMemory
		swapMemory = origSwapMemory
		diskPartitions = origDiskPartitions
		diskUsage = origDiskUsage
		sensorsTemperatures = origSensors
	})

	cpuInfo = func(ctx context.Context) ([]cpu.InfoStat, error) {
		return []cpu.InfoStat{
			{CPU: 0, VendorID: "GenuineIntel", ModelName: "Test CPU", Family: "6", Model: "42", Stepping: 7, Mhz: 2400, PhysicalID: "0", CacheSize: 256, Flags: []string{"sse", "avx"}},
			{CPU: 1, VendorID: "GenuineIntel", ModelName: "Test CPU", Family: "6", Model: "42", Stepping: 7, Mhz: 3600, PhysicalID: "0", CacheSize: 256},
		}, nil
	}
	cpuCounts = func(ctx context.Context, logical bool) (int, error) {
		if logical {
			return 2, nil
		}
		return 1, nil
	}
	virtualMemory = func(ctx context.Context) (*mem.VirtualMemoryStat, error) {
		return &mem.VirtualMemoryStat{
			Total: 16e9, Free: 8e9, Used: 6e9, Active: 5e9, Available: 9e9,
			Buffers: 1e9, Cached: 2e9, Slab: 1e8, Dirty: 1e6, WriteBack: 1e5,
		}, nil
	}
	swapMemory = func(ctx context.Context) (*mem.SwapMemoryStat, error) {
		return &mem.SwapMemoryStat{Total: 4e9, Used: 1e9, Free: 3e9}, nil
	}
	diskPartitions = func(ctx context.Context, all bool) ([]disk.PartitionStat, error) {
		return []disk.PartitionStat{
			{Device: "/dev/sda1", Mountpoint: "/", Fstype: "ext4", Opts: []string{"rw", "relatime"}},
			{Device: "/dev/sr0", Mountpoint: "/cdrom", Fstype: "iso9660", Opts: []string{"ro"}},
		}, nil
	}
	diskUsage = func(ctx context.Context, path string) (*disk.UsageStat, error) {
		return &disk.UsageStat{Path: path, Total: 500e9, Used: 200e9, Free: 300e9, UsedPercent: 40}, nil
	}
	sensorsTemperatures = func(ctx context.Context) ([]host.TemperatureStat, error) {
		return []host.TemperatureStat{
			{SensorKey: "coretemp_core_0", Temperature: 50},
			{SensorKey: "coretemp_core_1", Temperature: 60},
			{SensorKey: "acpitz", Temperature: 40},
		}, nil
	}
}

func TestCollector_Collect(t *testing.T) {
	stubGopsutil(t)
	c := NewCollector(zerolog.Nop())

	stats, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}

	if stats.CPU.Brand != "Test CPU" || stats.CPU.Cores != 2 || stats.CPU.PhysicalCores != 1 {
		t.Fatalf("unexpected cpu section: %+v", stats.CPU)
	}
	if stats.CPUCurrentSpeed.Min != 2.4 || stats.CPUCurrentSpeed.Max != 3.6 || stats.CPUCurrentSpeed.Avg != 3 {
		t.Fatalf("unexpected cpu speed: %+v", stats.CPUCurrentSpeed)
	}
	if stats.Mem.Total != 16e9 || stats.Mem.SwapUsed != 1e9 || stats.Mem.Buffcache != 3e9 {
		t.Fatalf("unexpected mem section: %+v", stats.Mem)
	}
	if len(stats.FsSize) != 2 {
		t.Fatalf("expected 2 filesystems, got %d", len(stats.FsSize))
	}
	if !stats.FsSize[0].RW || stats.FsSize[1].RW {
		t.Fatalf("expected rw flags from mount options: %+v", stats.FsSize)
	}
	// acpitz is not a cpu sensor and must be excluded
	if len(stats.CPUTemperature.Cores) != 2 || stats.CPUTemperature.Main != 55 || stats.CPUTemperature.Max != 60 {
		t.Fatalf("unexpected temperature section: %+v", stats.CPUTemperature)
	}
	if stats.Battery.HasBattery {
		t.Fatalf("expected no battery reported")
	}
}

func TestCollector_WireShape(t *testing.T) {
	stubGopsutil(t)
	c := NewCollector(zerolog.Nop())

	stats, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}

	raw, err := json.Marshal(stats)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	for _, section := range []string{"battery", "cpu", "cpuCurrentSpeed", "cpuTemperature", "fsSize", "mem"} {
		if _, ok := decoded[section]; !ok {
			t.Fatalf("expected section %q on the wire", section)
		}
	}
}

func TestCollector_PartialFailure(t *testing.T) {
	stubGopsutil(t)
	virtualMemory = func(ctx context.Context) (*mem.VirtualMemoryStat, error) {
		return nil, context.DeadlineExceeded
	}

	c := NewCollector(zerolog.Nop())
	stats, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if stats.Mem.Total != 0 {
		t.Fatalf("expected zeroed mem section, got %+v", stats.Mem)
	}
	if stats.CPU.Brand != "Test CPU" {
		t.Fatalf("expected cpu section still collected")
	}
}

func TestCollector_CancelledContext(t *testing.T) {
	stubGopsutil(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewCollector(zerolog.Nop())
	if _, err := c.Collect(ctx); err == nil {
		t.Fatalf("expected error for cancelled context")
	}
}
