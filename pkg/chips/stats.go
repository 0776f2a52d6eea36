package chips

import "sync/atomic"

// modeCounters are the session's live, lock-free counters tracked separately
// for Training and Evaluation — the two modes worker goroutines actually
// produce chips under (spec.md §9's "no backpressure signal" open question
// asks for observability without changing the documented spin-forever
// behavior; a per-mode breakdown lets an operator tell a stalled partition
// from a stalled session). Every field is updated with atomic.Int64.Add and
// read with Load, the way modules/route/internal/rib/rib.go tracks its live
// counters.
type modeCounters struct {
	chipsProduced    atomic.Int64
	chipsConsumed    atomic.Int64
	partitionRejects atomic.Int64
	coverageRejects  atomic.Int64
	readErrors       atomic.Int64
}

// statCounters is the session-wide counter set: per-mode counters plus the
// inference-path counters, which have no Training/Evaluation breakdown
// because GetInferenceChip only ever runs in Inference mode.
type statCounters struct {
	training   modeCounters
	evaluation modeCounters

	inferenceHits   atomic.Int64
	inferenceMisses atomic.Int64
}

// forMode returns the counters for m. Workers and GetNext always call this
// with the mode they are actually operating under, so only Training and
// Evaluation are ever selected in practice.
func (c *statCounters) forMode(m Mode) *modeCounters {
	if m == Evaluation {
		return &c.evaluation
	}
	return &c.training
}

// ModeStats is a snapshot of the counters tracked separately for one
// producing mode.
type ModeStats struct {
	ChipsProduced    int64
	ChipsConsumed    int64
	PartitionRejects int64
	CoverageRejects  int64
	ReadErrors       int64
}

func (c *modeCounters) snapshot() ModeStats {
	return ModeStats{
		ChipsProduced:    c.chipsProduced.Load(),
		ChipsConsumed:    c.chipsConsumed.Load(),
		PartitionRejects: c.partitionRejects.Load(),
		CoverageRejects:  c.coverageRejects.Load(),
		ReadErrors:       c.readErrors.Load(),
	}
}

// Stats is a point-in-time snapshot of a Session's counters: totals across
// both producing modes, the Training/Evaluation breakdown, the inference
// path, and the ring's current occupancy.
type Stats struct {
	ChipsProduced    int64
	ChipsConsumed    int64
	PartitionRejects int64
	CoverageRejects  int64
	ReadErrors       int64
	InferenceHits    int64
	InferenceMisses  int64

	// SlotsFull is the number of ring slots currently holding a published,
	// unconsumed chip.
	SlotsFull int64

	Training   ModeStats
	Evaluation ModeStats
}

func (c *statCounters) snapshot() Stats {
	training := c.training.snapshot()
	evaluation := c.evaluation.snapshot()
	return Stats{
		ChipsProduced:    training.ChipsProduced + evaluation.ChipsProduced,
		ChipsConsumed:    training.ChipsConsumed + evaluation.ChipsConsumed,
		PartitionRejects: training.PartitionRejects + evaluation.PartitionRejects,
		CoverageRejects:  training.CoverageRejects + evaluation.CoverageRejects,
		ReadErrors:       training.ReadErrors + evaluation.ReadErrors,
		InferenceHits:    c.inferenceHits.Load(),
		InferenceMisses:  c.inferenceMisses.Load(),
		Training:         training,
		Evaluation:       evaluation,
	}
}

// Stats returns a snapshot of the session's counters.
func (s *Session) Stats() Stats {
	st := s.stats.snapshot()
	st.SlotsFull = s.ring.fullCount()
	return st
}
