package chips

import "sync/atomic"

// ring is the fixed-size array of slots shared by every worker and the
// consumer. Its policy (spec.md §4.1):
//
//   - every public operation holds at most one slot lock at a time;
//   - a worker searches round-robin from a random start, skipping a
//     contended slot immediately rather than blocking on it;
//   - the consumer scans round-robin from its own cursor.
type ring struct {
	slots []*slot
	full  atomic.Int64
}

func newRing(m, imagerySize, labelSize int) *ring {
	slots := make([]*slot, m)
	for i := range slots {
		slots[i] = newSlot(imagerySize, labelSize)
	}
	return &ring{slots: slots}
}

func (r *ring) len() int {
	return len(r.slots)
}

// markFull records that a slot was just published. The caller must hold
// that slot's lock.
func (r *ring) markFull() {
	r.full.Add(1)
}

// markEmpty records that a slot was just drained. The caller must hold that
// slot's lock.
func (r *ring) markEmpty() {
	r.full.Add(-1)
}

// fullCount returns the number of slots currently holding a published,
// unconsumed chip.
func (r *ring) fullCount() int64 {
	return r.full.Load()
}
