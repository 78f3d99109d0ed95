package model

import "encoding/json"

// Machine is a monitored host registered by a user. Token is the secret
// bearer credential the agent pushes stats with; it is returned to the user
// once, at creation time.
type Machine struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	Name      string `json:"name"`
	Token     string `json:"-"`
	LastSeen  int64  `json:"lastSeen"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
}

// SnapshotRecord is one persisted stats sample. Data is kept as raw JSON so
// the payload round-trips exactly as the agent sent it.
type SnapshotRecord struct {
	ID        string          `json:"id"`
	MachineID string          `json:"machineId"`
	Data      json.RawMessage `json:"data"`
	CreatedAt int64           `json:"createdAt"`
}

// The types below mirror the agent's wire format. The server never decodes
// into them (stats stay opaque raw JSON end to end); the agent builds them
// and tests use them to produce realistic payloads.

type BatteryData struct {
	HasBattery       bool    `json:"hasBattery"`
	CycleCount       int     `json:"cycleCount"`
	IsCharging       bool    `json:"isCharging"`
	DesignedCapacity float64 `json:"designedCapacity"`
	MaxCapacity      float64 `json:"maxCapacity"`
	CurrentCapacity  float64 `json:"currentCapacity"`
	Voltage          float64 `json:"voltage"`
	CapacityUnit     string  `json:"capacityUnit"`
	Percent          float64 `json:"percent"`
	TimeRemaining    float64 `json:"timeRemaining"`
	ACConnected      bool    `json:"acConnected"`
	Type             string  `json:"type"`
	Model            string  `json:"model"`
	Manufacturer     string  `json:"manufacturer"`
	Serial           string  `json:"serial"`
}

type CPUCache struct {
	L1D int64 `json:"l1d"`
	L1I int64 `json:"l1i"`
	L2  int64 `json:"l2"`
	L3  int64 `json:"l3"`
}

type CPUData struct {
	Manufacturer     string   `json:"manufacturer"`
	Brand            string   `json:"brand"`
	Vendor           string   `json:"vendor"`
	Family           string   `json:"family"`
	Model            string   `json:"model"`
	Stepping         string   `json:"stepping"`
	Revision         string   `json:"revision"`
	Voltage          string   `json:"voltage"`
	Speed            float64  `json:"speed"`
	SpeedMin         float64  `json:"speedMin"`
	SpeedMax         float64  `json:"speedMax"`
	Governor         string   `json:"governor"`
	Cores            int      `json:"cores"`
	PhysicalCores    int      `json:"physicalCores"`
	PerformanceCores int      `json:"performanceCores"`
	EfficiencyCores  int      `json:"efficiencyCores"`
	Processors       int      `json:"processors"`
	Socket           string   `json:"socket"`
	Flags            string   `json:"flags"`
	Virtualization   bool     `json:"virtualization"`
	Cache            CPUCache `json:"cache"`
}

type CPUCurrentSpeedData struct {
	Min   float64   `json:"min"`
	Max   float64   `json:"max"`
	Avg   float64   `json:"avg"`
	Cores []float64 `json:"cores"`
}

type CPUTemperatureData struct {
	Main    float64   `json:"main"`
	Cores   []float64 `json:"cores"`
	Max     float64   `json:"max"`
	Socket  []float64 `json:"socket"`
	Chipset float64   `json:"chipset"`
}

type FsSizeData struct {
	Fs        string  `json:"fs"`
	Type      string  `json:"type"`
	Size      uint64  `json:"size"`
	Used      uint64  `json:"used"`
	Available uint64  `json:"available"`
	Use       float64 `json:"use"`
	Mount     string  `json:"mount"`
	RW        bool    `json:"rw"`
}

type MemData struct {
	Total     uint64 `json:"total"`
	Free      uint64 `json:"free"`
	Used      uint64 `json:"used"`
	Active    uint64 `json:"active"`
	Available uint64 `json:"available"`
	Buffers   uint64 `json:"buffers"`
	Cached    uint64 `json:"cached"`
	Slab      uint64 `json:"slab"`
	Buffcache uint64 `json:"buffcache"`
	SwapTotal uint64 `json:"swaptotal"`
	SwapUsed  uint64 `json:"swapused"`
	SwapFree  uint64 `json:"swapfree"`
	Writeback uint64 `json:"writeback"`
	Dirty     uint64 `json:"dirty"`
}

// Stats is one full telemetry sample as produced by the agent.
type Stats struct {
	Battery         BatteryData         `json:"battery"`
	CPU             CPUData             `json:"cpu"`
	CPUCurrentSpeed CPUCurrentSpeedData `json:"cpuCurrentSpeed"`
	CPUTemperature  CPUTemperatureData  `json:"cpuTemperature"`
	FsSize          []FsSizeData        `json:"fsSize"`
	Mem             MemData             `json:"mem"`
}

// StatsPayload is the ingestion request body.
type StatsPayload struct {
	Data *Stats `json:"data"`
}
