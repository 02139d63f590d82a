package marker

import (
	"sync/atomic"
	"time"
)

// Stats holds listener counters. All fields are updated atomically.
type Stats struct {
	received          atomic.Int64
	processed         atomic.Int64
	failed            atomic.Int64
	dropped           atomic.Int64
	duplicates        atomic.Int64
	rateLimited       atomic.Int64
	markersCreated    atomic.Int64
	auctionsTriggered atomic.Int64
	startTime         atomic.Int64
	lastPacket        atomic.Int64
}

// StatsSnapshot is a point-in-time copy of Stats, served by the status API.
type StatsSnapshot struct {
	Running           bool       `json:"running"`
	PacketsReceived   int64      `json:"packets_received"`
	PacketsProcessed  int64      `json:"packets_processed"`
	PacketsFailed     int64      `json:"packets_failed"`
	PacketsDropped    int64      `json:"packets_dropped"`
	Duplicates        int64      `json:"duplicates"`
	RateLimited       int64      `json:"rate_limited"`
	MarkersCreated    int64      `json:"markers_created"`
	AuctionsTriggered int64      `json:"auctions_triggered"`
	StartTime         *time.Time `json:"start_time,omitempty"`
	LastPacketTime    *time.Time `json:"last_packet_time,omitempty"`
	UptimeSeconds     float64    `json:"uptime_seconds"`
	PacketsPerSecond  float64    `json:"packets_per_second"`
}

func (s *Stats) markStarted(t time.Time) { s.startTime.Store(t.UnixNano()) }
func (s *Stats) markStopped()            { s.startTime.Store(0) }

// Snapshot returns the current counters with derived uptime and rate.
func (s *Stats) Snapshot(now time.Time) StatsSnapshot {
	out := StatsSnapshot{
		PacketsReceived:   s.received.Load(),
		PacketsProcessed:  s.processed.Load(),
		PacketsFailed:     s.failed.Load(),
		PacketsDropped:    s.dropped.Load(),
		Duplicates:        s.duplicates.Load(),
		RateLimited:       s.rateLimited.Load(),
		MarkersCreated:    s.markersCreated.Load(),
		AuctionsTriggered: s.auctionsTriggered.Load(),
	}
	if ns := s.startTime.Load(); ns != 0 {
		start := time.Unix(0, ns)
		out.Running = true
		out.StartTime = &start
		out.UptimeSeconds = now.Sub(start).Seconds()
		out.PacketsPerSecond = float64(out.PacketsReceived) / max(out.UptimeSeconds, 1)
	}
	if ns := s.lastPacket.Load(); ns != 0 {
		last := time.Unix(0, ns)
		out.LastPacketTime = &last
	}
	return out
}
