package marker

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/scteauction/internal/domain"
)

// DefaultRecentSize is the number of markers kept for the operator view.
const DefaultRecentSize = 50

// RecentMarker is the operator view of one decoded marker.
type RecentMarker struct {
	ID          string         `json:"id"`
	ReceivedAt  time.Time      `json:"timestamp"`
	Source      string         `json:"source"`
	CommandType string         `json:"command_type"`
	Metadata    map[string]any `json:"metadata"`
	PTS         *uint64        `json:"pts,omitempty"`
	Triggered   bool           `json:"triggered"`
}

// Recent is a fixed-size ring of the last decoded markers. The oldest entry
// is overwritten once the ring is full.
type Recent struct {
	mu   sync.Mutex
	buf  []RecentMarker
	next int
	full bool
}

// NewRecent creates a ring holding up to size markers.
func NewRecent(size int) *Recent {
	if size < 1 {
		size = DefaultRecentSize
	}
	return &Recent{buf: make([]RecentMarker, size)}
}

// Add records m and returns the stored entry.
func (r *Recent) Add(m domain.Marker, triggered bool) RecentMarker {
	e := RecentMarker{
		ID:          uuid.NewString(),
		ReceivedAt:  m.ReceivedAt,
		Source:      m.SourceAddr,
		CommandType: m.CommandType.String(),
		Metadata:    m.Metadata,
		PTS:         m.PTS,
		Triggered:   triggered,
	}
	r.mu.Lock()
	r.buf[r.next] = e
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
	r.mu.Unlock()
	return e
}

// List returns up to limit markers, newest first. limit <= 0 returns all.
func (r *Recent) List(limit int) []RecentMarker {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.next
	if r.full {
		n = len(r.buf)
	}
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]RecentMarker, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, r.buf[(r.next-i+len(r.buf))%len(r.buf)])
	}
	return out
}

// Len returns the number of stored markers.
func (r *Recent) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.full {
		return len(r.buf)
	}
	return r.next
}
