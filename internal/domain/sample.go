package domain

import "time"

// Sample is one telemetry snapshot collected from the host on a tick.
// The percentage metrics are pointers because a collection source can be
// unavailable on a given host; a nil field means "not measured", which
// aggregate math substitutes with 0 except where documented otherwise.
type Sample struct {
	Timestamp     time.Time          `json:"timestamp"`
	DeviceID      string             `json:"device_id"`
	DeviceType    string             `json:"device_type,omitempty"`
	CPUPercent    *float64           `json:"cpu_percent,omitempty"`
	MemoryPercent *float64           `json:"memory_percent,omitempty"`
	DiskPercent   *float64           `json:"disk_percent,omitempty"`
	LoadAverage   []float64          `json:"load_average,omitempty"`
	Temperatures  map[string]float64 `json:"temperatures,omitempty"`
	UptimeSeconds float64            `json:"uptime_seconds,omitempty"`
	IsJetson      bool               `json:"is_jetson"`
	Network       NetworkStatus      `json:"network,omitempty"`
	EdgeProcessed bool               `json:"edge_processed"`
	BufferSize    int                `json:"buffer_size,omitempty"`
}

// NetworkStatus carries the connectivity probe result attached to a sample.
type NetworkStatus struct {
	Connectivity Connectivity `json:"connectivity,omitempty"`
}

// Connectivity reports reachability of the public internet and the hub.
type Connectivity struct {
	InternetAvailable bool      `json:"internet_available"`
	HubReachable      bool      `json:"hub_reachable"`
	LastCheck         time.Time `json:"last_check,omitempty"`
}

// CPU returns the CPU percentage, substituting 0 when the metric is missing.
func (s Sample) CPU() float64 { return orZero(s.CPUPercent) }

// Memory returns the memory percentage, substituting 0 when missing.
func (s Sample) Memory() float64 { return orZero(s.MemoryPercent) }

// Disk returns the disk percentage, substituting 0 when missing.
func (s Sample) Disk() float64 { return orZero(s.DiskPercent) }

func orZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// Float returns a pointer to v, for building samples literally.
func Float(v float64) *float64 { return &v }
