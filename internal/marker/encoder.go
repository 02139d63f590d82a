package marker

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/alanyoungcy/scteauction/internal/domain"
)

// Encode builds a datagram in the layout Decode understands: table id, two
// zero section-length bytes, version, nine reserved bytes, the command byte,
// a 48-bit PTS, a zero command-length byte and the JSON metadata. The header
// never carries a '{' outside the PTS.
func Encode(cmd domain.CommandType, pts uint64, metadata map[string]any) ([]byte, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	body, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("marker: encode metadata: %w", err)
	}

	pkt := make([]byte, 0, headerLen+len(body))
	pkt = append(pkt, tableID, 0x00, 0x00, 0x00)
	pkt = append(pkt, make([]byte, 9)...)
	pkt = append(pkt, byte(cmd))

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], pts)
	pkt = append(pkt, buf[8-ptsLen:]...)
	pkt = append(pkt, 0x00)
	pkt = append(pkt, body...)
	return pkt, nil
}
