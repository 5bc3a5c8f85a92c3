package obs

import (
	"sync/atomic"
	"time"
)

// Sequence hands out increasing ids used to correlate log lines of one order
// across its legs and forwards.
type Sequence struct {
	next atomic.Uint64
}

// NewSequence returns a sequence starting after seed. A zero seed uses the
// current time so ids from restarted processes rarely collide.
func NewSequence(seed uint64) *Sequence {
	if seed == 0 {
		seed = uint64(time.Now().UTC().UnixMilli())
	}
	s := &Sequence{}
	s.next.Store(seed)
	return s
}

// Next returns the next id.
func (s *Sequence) Next() uint64 {
	if s == nil {
		return 0
	}
	return s.next.Add(1)
}
