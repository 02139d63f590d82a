package marker

import (
	"crypto/sha256"
	"sync"
	"time"
)

// Dedup suppresses identical datagrams from the same source seen within a
// TTL window. It is safe for concurrent use.
type Dedup struct {
	seen map[[sha256.Size]byte]time.Time
	ttl  time.Duration
	now  func() time.Time
	mu   sync.Mutex
}

// NewDedup creates a Dedup with the given window.
func NewDedup(ttl time.Duration) *Dedup {
	return &Dedup{
		seen: make(map[[sha256.Size]byte]time.Time),
		ttl:  ttl,
		now:  time.Now,
	}
}

// IsDuplicate reports whether the same payload from source was seen within
// the window. First sightings are recorded and return false.
func (d *Dedup) IsDuplicate(source string, payload []byte) bool {
	h := sha256.New()
	h.Write([]byte(source))
	h.Write([]byte{0})
	h.Write(payload)
	var key [sha256.Size]byte
	copy(key[:], h.Sum(nil))

	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if last, ok := d.seen[key]; ok && now.Sub(last) < d.ttl {
		return true
	}
	d.seen[key] = now
	return false
}

// Cleanup removes expired entries. Call it periodically.
func (d *Dedup) Cleanup() {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for k, ts := range d.seen {
		if now.Sub(ts) >= d.ttl {
			delete(d.seen, k)
		}
	}
}

// Len returns the number of tracked entries.
func (d *Dedup) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
