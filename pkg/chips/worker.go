package chips

import (
	"math/rand/v2"
	"time"

	"github.com/jamesmcclain/chips/internal/raster"
)

const (
	slotBackoff  = 100 * time.Microsecond
	publishDelay = time.Millisecond
	readRetry    = time.Millisecond
)

// runWorker is the body of one reader goroutine (spec.md §4.2). It loops
// while the session is in a producing mode, sampling a chip, claiming a
// slot, performing the imagery (and optional label) read, and publishing the
// slot. nonce, combined with id, seeds this worker's private PRNG so two
// Start calls against the same N never resample identically.
func (s *Session) runWorker(id int, nonce uint64) {
	rng := rand.New(rand.NewPCG(uint64(id)+1, nonce))
	ws := s.cfg.WindowSize
	imageryDS := s.imageryDS[id]
	firstBand := s.firstBand[id]
	var labelDS raster.Dataset
	if s.cfg.HasLabel() {
		labelDS = s.labelDS[id]
	}

	s.log.Infow("worker starting", "worker", id, "mode", s.modeVal())
	defer s.log.Infow("worker exiting", "worker", id)

	for s.modeVal().producing() {
		mode := s.modeVal()

		cx, cy, ok := s.sampleChip(mode, firstBand, ws, rng)
		if !ok {
			break
		}
		x, y := cx*ws, cy*ws

		slotIdx, ok := s.claimSlot(rng)
		if !ok {
			break
		}
		sl := s.ring.slots[slotIdx]

		win := raster.Window{X: x, Y: y, W: ws, H: ws}
		if err := imageryDS.Read(win, ws, ws, s.cfg.ImageryType, s.cfg.Bands, sl.imagery); err != nil {
			s.stats.forMode(mode).readErrors.Add(1)
			s.log.Debugw("imagery read failed, resampling", "worker", id, "x", x, "y", y, "err", err)
			sl.mu.Unlock()
			time.Sleep(readRetry)
			continue
		}
		if labelDS != nil {
			if err := labelDS.Read(win, ws, ws, s.cfg.LabelType, nil, sl.label); err != nil {
				s.stats.forMode(mode).readErrors.Add(1)
				s.log.Debugw("label read failed, resampling", "worker", id, "x", x, "y", y, "err", err)
				sl.mu.Unlock()
				time.Sleep(readRetry)
				continue
			}
		}

		sl.ready = true
		sl.mode = mode
		s.stats.forMode(mode).chipsProduced.Add(1)
		s.ring.markFull()
		sl.mu.Unlock()
		time.Sleep(publishDelay)
	}
}

// sampleChip resamples chip-grid coordinates until one satisfies mode's
// partition predicate and the backend's coverage predicate, or the session
// stops producing. ok is false only in the latter case.
func (s *Session) sampleChip(mode Mode, firstBand raster.Band, ws int, rng *rand.Rand) (cx, cy int, ok bool) {
	maxCX := s.width / ws
	maxCY := s.height / ws

	for {
		if !s.modeVal().producing() {
			return 0, 0, false
		}
		if maxCX <= 0 || maxCY <= 0 {
			// No valid chip grid cell exists at all: a caller
			// configuration problem, not a runtime error (spec.md
			// §7). Spin rather than fail the worker.
			time.Sleep(readRetry)
			continue
		}

		cx, cy = rng.IntN(maxCX), rng.IntN(maxCY)

		if !mode.partitionAccepts(cx, cy) {
			s.stats.forMode(mode).partitionRejects.Add(1)
			continue
		}

		empty, err := firstBand.IsEmpty(raster.Window{X: cx * ws, Y: cy * ws, W: ws, H: ws})
		if err != nil {
			s.stats.forMode(mode).readErrors.Add(1)
			continue
		}
		if empty {
			s.stats.forMode(mode).coverageRejects.Add(1)
			continue
		}
		return cx, cy, true
	}
}

// claimSlot searches the ring round-robin from a random start, trying each
// slot's lock without blocking and skipping any slot that is contended or
// already Full. It returns false only if the session stops producing during
// the search.
func (s *Session) claimSlot(rng *rand.Rand) (int, bool) {
	m := s.ring.len()
	idx := rng.IntN(m)

	for {
		if !s.modeVal().producing() {
			return 0, false
		}

		sl := s.ring.slots[idx]
		if sl.mu.TryLock() {
			if !sl.ready {
				return idx, true
			}
			sl.mu.Unlock()
		}

		time.Sleep(slotBackoff)
		idx = (idx + 1) % m
	}
}
