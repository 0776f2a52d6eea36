package chips

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jamesmcclain/chips/internal/raster"
)

// Init performs the one-time, process-wide initialization of the raster
// backend. Call it once before the first Start.
func Init() {
	raster.Init()
}

// Deinit tears down the process-wide raster backend state. Call it once,
// after every Session has been stopped.
func Deinit() {
	raster.Deinit()
}

type options struct {
	log     *zap.SugaredLogger
	backend raster.Backend
}

func newOptions() *options {
	return &options{
		log:     zap.NewNop().Sugar(),
		backend: raster.Godal{},
	}
}

// Option configures a Session at Start.
type Option func(*options)

// WithLog sets the logger a Session uses for worker and lifecycle events.
func WithLog(log *zap.SugaredLogger) Option {
	return func(o *options) { o.log = log }
}

// WithBackend overrides the raster backend. Tests use this to inject an
// in-memory backend (see internal/raster/rastertest); production callers
// never need it — Session defaults to the godal-backed implementation.
func WithBackend(b raster.Backend) Option {
	return func(o *options) { o.backend = b }
}

// Session is a running instance of the chip reader, from Start to Stop.
// It replaces the original C core's process globals (spec.md §9): every
// operation takes this handle, and nothing here is reachable except through
// it.
type Session struct {
	cfg     Config
	backend raster.Backend
	log     *zap.SugaredLogger

	mode atomic.Int32

	width, height int

	imageryDS []raster.Dataset
	labelDS   []raster.Dataset // entries nil if cfg.HasLabel() is false
	firstBand []raster.Band

	ring *ring

	imagerySize, labelSize int

	stats statCounters

	// consumer-owned; never touched by a worker.
	current uint64

	group  *errgroup.Group
	closed sync.Once
}

// Start validates cfg, opens N imagery handles (and N label handles if
// cfg.LabelPath is set), allocates the slot ring, and spawns N reader
// workers. Session itself has no global state and Start does not check for
// other active Sessions, so nothing prevents multiple independent Sessions
// — that mirrors spec.md §4.4's redesign note
// that a session handle, not a global, is the unit of lifetime.
func Start(cfg Config, opts ...Option) (*Session, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	o := newOptions()
	for _, opt := range opts {
		opt(o)
	}

	bands := append([]int(nil), cfg.Bands...)
	cfg.Bands = bands

	s := &Session{
		cfg:     cfg,
		backend: o.backend,
		log:     o.log,
	}
	s.mode.Store(int32(cfg.Mode))

	if err := s.openDatasets(); err != nil {
		return nil, err
	}

	imagerySize, err := cfg.imageryBufSize()
	if err != nil {
		s.closeDatasets()
		return nil, err
	}
	labelSize := 0
	if cfg.HasLabel() {
		labelSize, err = cfg.labelBufSize()
		if err != nil {
			s.closeDatasets()
			return nil, err
		}
	}
	s.imagerySize, s.labelSize = imagerySize, labelSize
	s.ring = newRing(cfg.M, imagerySize, labelSize)

	s.log.Infow("starting chip reader session",
		"mode", cfg.Mode, "workers", cfg.N, "slots", cfg.M,
		"window_size", cfg.WindowSize, "bands", cfg.Bands,
		"width", s.width, "height", s.height)

	group := new(errgroup.Group)
	s.group = group
	nonce := uint64(time.Now().UnixNano())
	for id := 0; id < cfg.N; id++ {
		id := id
		group.Go(func() error {
			s.runWorker(id, nonce)
			return nil
		})
	}

	return s, nil
}

func (s *Session) openDatasets() error {
	n := s.cfg.N
	s.imageryDS = make([]raster.Dataset, n)
	s.firstBand = make([]raster.Band, n)
	if s.cfg.HasLabel() {
		s.labelDS = make([]raster.Dataset, n)
	}

	for i := 0; i < n; i++ {
		ds, err := s.backend.Open(s.cfg.ImageryPath)
		if err != nil {
			s.closeDatasets()
			return fmt.Errorf("open imagery dataset %d: %w", i, err)
		}
		s.imageryDS[i] = ds

		band, err := ds.Band(1)
		if err != nil {
			s.closeDatasets()
			return fmt.Errorf("open imagery band 1 for worker %d: %w", i, err)
		}
		s.firstBand[i] = band

		if s.cfg.HasLabel() {
			lds, err := s.backend.Open(s.cfg.LabelPath)
			if err != nil {
				s.closeDatasets()
				return fmt.Errorf("open label dataset %d: %w", i, err)
			}
			s.labelDS[i] = lds
		}

		if i == 0 {
			s.width, s.height = ds.Width(), ds.Height()
		}
	}
	return nil
}

func (s *Session) closeDatasets() {
	for _, ds := range s.imageryDS {
		if ds != nil {
			_ = ds.Close()
		}
	}
	for _, ds := range s.labelDS {
		if ds != nil {
			_ = ds.Close()
		}
	}
}

// Stop signals every worker to exit, joins them, closes every dataset
// handle, and releases the ring's slot buffers. A subsequent Start (with a
// fresh Config) is always valid after Stop returns.
func (s *Session) Stop() error {
	var err error
	s.closed.Do(func() {
		s.mode.Store(int32(Stopped))
		err = s.group.Wait()
		s.closeDatasets()
		for _, sl := range s.ring.slots {
			sl.mu.Lock()
			sl.imagery, sl.label = nil, nil
			sl.mu.Unlock()
		}
		s.log.Infow("stopped chip reader session", "stats", s.Stats())
	})
	return err
}

// GetWidth returns the raster width captured at Start, in pixels.
func (s *Session) GetWidth() int { return s.width }

// GetHeight returns the raster height captured at Start, in pixels.
func (s *Session) GetHeight() int { return s.height }

// ImageryBufSize returns the byte size callers must allocate for GetNext's
// imageryOut argument.
func (s *Session) ImageryBufSize() int { return s.imagerySize }

// LabelBufSize returns the byte size callers must allocate for GetNext's
// labelOut argument. It is zero if the session has no label raster.
func (s *Session) LabelBufSize() int { return s.labelSize }

func (s *Session) modeVal() Mode {
	return Mode(s.mode.Load())
}
