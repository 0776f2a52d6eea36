package chips

import (
	"context"

	"github.com/cenkalti/backoff/v5"

	"github.com/jamesmcclain/chips/internal/raster"
)

// GetNext blocks until a full chip is available and copies it into
// imageryOut (and labelOut, if non-nil) (spec.md §4.3). The buffers must be
// sized exactly like the session's internal slot buffers; this is a
// precondition, not something GetNext checks.
//
// It never fails unless ctx is cancelled — the context is the resolution of
// spec.md §9's first open question: Stopped-mode callers that want the
// original "never fails" contract should pass context.Background().
func (s *Session) GetNext(ctx context.Context, imageryOut, labelOut []byte) error {
	m := s.ring.len()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		idx := int(s.current % uint64(m))
		sl := s.ring.slots[idx]

		if sl.mu.TryLock() {
			if sl.ready {
				copy(imageryOut, sl.imagery)
				if labelOut != nil {
					copy(labelOut, sl.label)
				}
				mode := sl.mode
				sl.ready = false
				s.ring.markEmpty()
				sl.mu.Unlock()
				s.stats.forMode(mode).chipsConsumed.Add(1)
				return nil
			}
			sl.mu.Unlock()
		}

		s.current++
	}
}

// GetInferenceChip synchronously reads one chip at pixel (x, y) using
// worker 0's imagery handle, valid only in Inference mode (spec.md §4.3).
// It is safe to call from any goroutine because no worker goroutine ever
// runs its sampling loop while the session is in Inference mode, so handle 0
// is uncontended.
//
// It tries up to attempts times. On success it returns true with out filled.
// On failure — wrong mode, an entirely empty chip-grid cell, or attempts
// exhausted — it zero-fills out and returns false.
func (s *Session) GetInferenceChip(ctx context.Context, out []byte, x, y, attempts int) bool {
	ws := s.cfg.WindowSize
	cx, cy := x/ws, y/ws

	if s.modeVal() != Inference {
		clear(out)
		s.stats.inferenceMisses.Add(1)
		return false
	}

	empty, err := s.firstBand[0].IsEmpty(raster.Window{X: cx * ws, Y: cy * ws, W: ws, H: ws})
	if err != nil || empty {
		clear(out)
		s.stats.inferenceMisses.Add(1)
		return false
	}

	if attempts <= 0 {
		clear(out)
		s.stats.inferenceMisses.Add(1)
		return false
	}

	win := raster.Window{X: x, Y: y, W: ws, H: ws}
	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, s.imageryDS[0].Read(win, ws, ws, s.cfg.ImageryType, s.cfg.Bands, out)
	}, backoff.WithBackOff(backoff.NewConstantBackOff(0)), backoff.WithMaxTries(uint(attempts)))

	if err != nil {
		clear(out)
		s.stats.inferenceMisses.Add(1)
		return false
	}
	s.stats.inferenceHits.Add(1)
	return true
}
