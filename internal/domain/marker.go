package domain

import (
	"fmt"
	"time"
)

// CommandType is the splice command byte carried at a fixed offset of every
// marker datagram.
type CommandType uint8

const (
	CommandSpliceNull           CommandType = 0x00
	CommandSpliceSchedule       CommandType = 0x04
	CommandSpliceInsert         CommandType = 0x05
	CommandTimeSignal           CommandType = 0x06
	CommandBandwidthReservation CommandType = 0x07
	CommandPrivate              CommandType = 0xFF
)

// String returns the wire name of the command, or UNKNOWN(0xNN).
func (c CommandType) String() string {
	switch c {
	case CommandSpliceNull:
		return "SPLICE_NULL"
	case CommandSpliceSchedule:
		return "SPLICE_SCHEDULE"
	case CommandSpliceInsert:
		return "SPLICE_INSERT"
	case CommandTimeSignal:
		return "TIME_SIGNAL"
	case CommandBandwidthReservation:
		return "BANDWIDTH_RESERVATION"
	case CommandPrivate:
		return "PRIVATE_COMMAND"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02X)", uint8(c))
	}
}

// Known reports whether c is one of the defined splice commands.
func (c CommandType) Known() bool {
	switch c {
	case CommandSpliceNull, CommandSpliceSchedule, CommandSpliceInsert,
		CommandTimeSignal, CommandBandwidthReservation, CommandPrivate:
		return true
	}
	return false
}

// Marker is a decoded in-stream event notification. It is immutable once
// decoded and never persisted.
type Marker struct {
	ReceivedAt     time.Time      `json:"received_at"`
	SourceAddr     string         `json:"source_addr"`
	CommandType    CommandType    `json:"command_type"`
	PTS            *uint64        `json:"pts,omitempty"`
	ProgramID      int            `json:"program_id"`
	AvailNum       int            `json:"avail_num"`
	AvailsExpected int            `json:"avails_expected"`
	Duration       *int           `json:"duration,omitempty"`
	Metadata       map[string]any `json:"metadata"`
	Raw            []byte         `json:"-"`
}

// Clone returns a deep-enough copy for ownership by a Trigger: the metadata
// map and raw bytes are copied, nested metadata values are shared.
func (m Marker) Clone() Marker {
	out := m
	if m.PTS != nil {
		v := *m.PTS
		out.PTS = &v
	}
	if m.Duration != nil {
		v := *m.Duration
		out.Duration = &v
	}
	out.Metadata = make(map[string]any, len(m.Metadata))
	for k, v := range m.Metadata {
		out.Metadata[k] = v
	}
	if m.Raw != nil {
		out.Raw = append([]byte(nil), m.Raw...)
	}
	return out
}
