// Package hwstats samples process resource usage around a measurement.
package hwstats

import (
	"fmt"

	"github.com/prometheus/procfs"
)

// Stats contains process resource usage over a measured interval.
type Stats struct {
	CPUTime               float64 `json:"cpu_time_s"`            // CPU seconds consumed during the interval
	CPUKernelTimeFraction float64 `json:"cpu_kernel_fraction"`   // share of CPU time spent in the kernel
	VMM                   uint64  `json:"virtual_memory_bytes"`  // virtual memory at the end of the interval
	RSS                   uint64  `json:"resident_memory_bytes"` // resident memory at the end of the interval
	RSSDelta              int64   `json:"resident_memory_delta"` // RSS growth over the interval
}

func (s *Stats) String() string {
	return fmt.Sprintf(
		"CPUTime: %.3f, CPUKernelFrac: %.2f, VMM: %d, RSS: %d",
		s.CPUTime,
		s.CPUKernelTimeFraction,
		s.VMM,
		s.RSS,
	)
}

// Gatherer records a baseline at creation and reports deltas against it.
type Gatherer struct {
	proc         procfs.Proc
	startCPUTime float64
	startUTime   uint
	startSTime   uint
	startRSS     int
}

// Start snapshots the current process. It fails on platforms without procfs.
func Start() (*Gatherer, error) {
	proc, err := procfs.Self()
	if err != nil {
		return nil, fmt.Errorf("open procfs: %w", err)
	}

	return startFrom(proc)
}

func startFrom(proc procfs.Proc) (*Gatherer, error) {
	stat, err := proc.Stat()
	if err != nil {
		return nil, fmt.Errorf("read process stat: %w", err)
	}

	return &Gatherer{
		proc:         proc,
		startCPUTime: stat.CPUTime(),
		startUTime:   stat.UTime,
		startSTime:   stat.STime,
		startRSS:     stat.ResidentMemory(),
	}, nil
}

// Stop reads the process again and returns usage since Start.
func (g *Gatherer) Stop() (*Stats, error) {
	stat, err := g.proc.Stat()
	if err != nil {
		return nil, fmt.Errorf("read process stat: %w", err)
	}

	uTime := stat.UTime - g.startUTime
	sTime := stat.STime - g.startSTime

	ktFrac := float64(0)
	if uTime+sTime > 0 {
		ktFrac = float64(sTime) / float64(sTime+uTime)
	}

	return &Stats{
		CPUTime:               stat.CPUTime() - g.startCPUTime,
		CPUKernelTimeFraction: ktFrac,
		VMM:                   uint64(stat.VirtualMemory()),
		RSS:                   uint64(stat.ResidentMemory()),
		RSSDelta:              int64(stat.ResidentMemory() - g.startRSS),
	}, nil
}
