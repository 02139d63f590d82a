// Package marker decodes broadcast marker datagrams and runs the UDP listener
// that feeds them into the auction pipeline.
package marker

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"time"

	"github.com/alanyoungcy/scteauction/internal/domain"
)

const (
	tableID       = 0xFC
	minPacketLen  = 14
	commandOffset = 13
	ptsOffset     = 14
	ptsLen        = 6
	// headerLen covers everything up to and including the command-length
	// byte that follows the PTS.
	headerLen = ptsOffset + ptsLen + 1
)

// Decode parses a raw datagram. Datagrams that are too short or do not carry
// the marker table id return ok=false. Metadata that is missing or not a JSON
// object decodes as an empty map.
func Decode(data []byte, source string, now time.Time) (domain.Marker, bool) {
	if len(data) < minPacketLen || data[0] != tableID {
		return domain.Marker{}, false
	}

	m := domain.Marker{
		ReceivedAt:  now,
		SourceAddr:  source,
		CommandType: domain.CommandType(data[commandOffset]),
		Metadata:    parseMetadata(data),
		Raw:         append([]byte(nil), data...),
	}

	if len(data) > ptsOffset+ptsLen {
		var buf [8]byte
		copy(buf[8-ptsLen:], data[ptsOffset:ptsOffset+ptsLen])
		pts := binary.BigEndian.Uint64(buf[:])
		m.PTS = &pts
	}

	m.ProgramID, _ = intField(m.Metadata, "program_id")
	m.AvailNum, _ = intField(m.Metadata, "avail_num")
	m.AvailsExpected, _ = intField(m.Metadata, "avails_expected")
	if d, ok := intField(m.Metadata, "duration"); ok {
		m.Duration = &d
	}
	return m, true
}

// parseMetadata extracts the JSON object spanning the first '{' to the last
// '}' of the datagram. When that span does not parse and the first '{' sits
// inside the binary header (a PTS byte of 0x7B), the scan is retried from the
// end of the header.
func parseMetadata(data []byte) map[string]any {
	start := bytes.IndexByte(data, '{')
	end := bytes.LastIndexByte(data, '}')
	if start < 0 || end < start {
		return map[string]any{}
	}
	if meta, ok := jsonObject(data[start : end+1]); ok {
		return meta
	}
	if start < headerLen && len(data) > headerLen {
		if i := bytes.IndexByte(data[headerLen:], '{'); i >= 0 && headerLen+i < end {
			if meta, ok := jsonObject(data[headerLen+i : end+1]); ok {
				return meta
			}
		}
	}
	return map[string]any{}
}

func jsonObject(b []byte) (map[string]any, bool) {
	var meta map[string]any
	if err := json.Unmarshal(b, &meta); err != nil || meta == nil {
		return nil, false
	}
	return meta, true
}

func intField(meta map[string]any, key string) (int, bool) {
	switch v := meta[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case int64:
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}
