package chips

import (
	"context"
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jamesmcclain/chips/internal/raster"
	"github.com/jamesmcclain/chips/internal/raster/rastertest"
)

func float64FromBytes(b []byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}

// syntheticRaster builds a width x height single-band raster with pixel value
// = (x + y*width) mod 256, the spec.md §8 raster (210x210 in most tests here;
// S1 and S2 use gridRaster instead).
func syntheticRaster(width, height int) *rastertest.Raster {
	return &rastertest.Raster{
		Width:  width,
		Height: height,
		Pixel: func(x, y int) float64 {
			return float64((x + y*width) % 256)
		},
	}
}

func testConfig(mode Mode, n, m, window int) Config {
	return Config{
		N:           n,
		M:           m,
		ImageryPath: "imagery",
		ImageryType: raster.Byte,
		LabelType:   raster.Byte,
		Mode:        mode,
		WindowSize:  window,
		Bands:       []int{1},
	}
}

// gridRaster is constant within every chip-grid cell: Pixel(x, y) encodes
// (cx, cy) = (x/window, y/window) directly, so a delivered chip's top-left
// sample recovers its exact grid coordinates — unlike the spec's
// mod-256 byte raster, whose values wrap and can't be inverted.
func gridRaster(width, height, window int) *rastertest.Raster {
	return &rastertest.Raster{
		Width:  width,
		Height: height,
		Pixel: func(x, y int) float64 {
			cx, cy := x/window, y/window
			return float64(cx*100000 + cy)
		},
	}
}

func gridConfig(mode Mode, n, m, window int) Config {
	return Config{
		N:           n,
		M:           m,
		ImageryPath: "imagery",
		ImageryType: raster.Float64,
		Mode:        mode,
		WindowSize:  window,
		Bands:       []int{1},
	}
}

func startWithRaster(t *testing.T, mode Mode, n, m, window int, r *rastertest.Raster) *Session {
	t.Helper()
	return startWithConfig(t, testConfig(mode, n, m, window), r)
}

func startWithConfig(t *testing.T, cfg Config, r *rastertest.Raster) *Session {
	t.Helper()
	backend := rastertest.NewBackend(map[string]*rastertest.Raster{cfg.ImageryPath: r})
	s, err := Start(cfg, WithBackend(backend))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Stop()) })
	return s
}

// decodeGrid recovers (cx, cy) encoded by gridRaster's Pixel function from a
// chip's first (little-endian float64) sample.
func decodeGrid(t *testing.T, buf []byte) (cx, cy int) {
	t.Helper()
	v := int(float64FromBytes(buf[:8]))
	return v / 100000, v % 100000
}

// S1: Training, N=2, M=4. Dequeue 100 chips; each passes invariant 4; at
// least 50 distinct grid cells should be seen.
func TestTrainingPartitionAndDiversity(t *testing.T) {
	width, height, window := 210, 210, 10
	r := gridRaster(width, height, window)
	s := startWithConfig(t, gridConfig(Training, 2, 4, window), r)

	imagery := make([]byte, 8*window*window)
	seen := map[[2]int]struct{}{}

	for range 100 {
		require.NoError(t, s.GetNext(context.Background(), imagery, nil))
		cx, cy := decodeGrid(t, imagery)
		require.NotZero(t, (cx+cy)%7, "training chip violated partition predicate")
		seen[[2]int{cx, cy}] = struct{}{}
	}

	require.GreaterOrEqual(t, len(seen), 50)
}

// S2: Evaluation, same parameters; all chips satisfy (cx+cy) mod 7 == 0.
func TestEvaluationPartition(t *testing.T) {
	width, height, window := 210, 210, 10
	r := gridRaster(width, height, window)
	s := startWithConfig(t, gridConfig(Evaluation, 2, 4, window), r)

	imagery := make([]byte, 8*window*window)
	for range 40 {
		require.NoError(t, s.GetNext(context.Background(), imagery, nil))
		cx, cy := decodeGrid(t, imagery)
		require.Zero(t, (cx+cy)%7, "evaluation chip violated partition predicate")
	}
}

// S3: Inference, GetInferenceChip(buf, 30, 70, 5) returns true and
// buf[0] == (30 + 70*210) mod 256.
func TestInferenceRead(t *testing.T) {
	width, height, window := 210, 210, 10
	r := syntheticRaster(width, height)
	s := startWithRaster(t, Inference, 1, 1, window, r)

	buf := make([]byte, 1*window*window)
	ok := s.GetInferenceChip(context.Background(), buf, 30, 70, 5)
	require.True(t, ok)
	require.Equal(t, byte((30+70*width)%256), buf[0])
}

// S4: Inference on an all-empty region returns false with a zeroed buffer.
func TestInferenceEmptyRegion(t *testing.T) {
	width, height, window := 210, 210, 10
	r := syntheticRaster(width, height)
	r.Empty = func(x, y, w, h int) bool { return true }
	s := startWithRaster(t, Inference, 1, 1, window, r)

	buf := make([]byte, 1*window*window)
	for i := range buf {
		buf[i] = 0xFF
	}
	ok := s.GetInferenceChip(context.Background(), buf, 30, 70, 5)
	require.False(t, ok)
	for _, b := range buf {
		require.Zero(t, b)
	}
}

// S5: start Training, let the ring fill, then stop; Stop returns promptly
// and every dataset handle is closed (invariant 3).
func TestStopJoinsWorkersAndClosesHandles(t *testing.T) {
	r := syntheticRaster(210, 210)
	backend := rastertest.NewBackend(map[string]*rastertest.Raster{"imagery": r})

	s, err := Start(testConfig(Training, 3, 4, 10), WithBackend(backend))
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- s.Stop() }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not return in time")
	}

	require.Equal(t, r.Opens(), r.Closes())
}

// S6: two consecutive start/stop cycles with different parameters succeed
// and expose the new width/height.
func TestRestartWithDifferentParameters(t *testing.T) {
	r1 := syntheticRaster(210, 210)
	b1 := rastertest.NewBackend(map[string]*rastertest.Raster{"imagery": r1})
	s1, err := Start(testConfig(Training, 2, 4, 10), WithBackend(b1))
	require.NoError(t, err)
	require.Equal(t, 210, s1.GetWidth())
	require.NoError(t, s1.Stop())

	r2 := syntheticRaster(320, 160)
	b2 := rastertest.NewBackend(map[string]*rastertest.Raster{"imagery": r2})
	s2, err := Start(testConfig(Evaluation, 1, 2, 16), WithBackend(b2))
	require.NoError(t, err)
	require.Equal(t, 320, s2.GetWidth())
	require.Equal(t, 160, s2.GetHeight())
	require.NoError(t, s2.Stop())
}

// With label_path unset, GetNext(imagery, nil) works and no label I/O
// occurs.
func TestNoLabelConfigured(t *testing.T) {
	r := syntheticRaster(210, 210)
	s := startWithRaster(t, Training, 1, 2, 10, r)

	imagery := make([]byte, 1*10*10)
	require.NoError(t, s.GetNext(context.Background(), imagery, nil))
}

// attempts = 0 zero-fills and returns false.
func TestInferenceZeroAttempts(t *testing.T) {
	r := syntheticRaster(210, 210)
	s := startWithRaster(t, Inference, 1, 1, 10, r)

	buf := make([]byte, 1*10*10)
	for i := range buf {
		buf[i] = 0xAB
	}
	ok := s.GetInferenceChip(context.Background(), buf, 0, 0, 0)
	require.False(t, ok)
	for _, b := range buf {
		require.Zero(t, b)
	}
}

// S7 (added): Stats() reflects consumption: ChipsConsumed equals the chips
// dequeued and ChipsProduced is at least that many.
func TestStatsReflectConsumption(t *testing.T) {
	r := syntheticRaster(210, 210)
	s := startWithRaster(t, Training, 2, 4, 10, r)

	imagery := make([]byte, 1*10*10)
	for range 20 {
		require.NoError(t, s.GetNext(context.Background(), imagery, nil))
	}

	stats := s.Stats()
	require.Equal(t, int64(20), stats.ChipsConsumed)
	require.GreaterOrEqual(t, stats.ChipsProduced, int64(20))
}

// S8 (added): cancelling the context passed to GetNext during a stall
// returns promptly instead of hanging.
func TestGetNextContextCancellation(t *testing.T) {
	r := syntheticRaster(210, 210)
	r.Empty = func(x, y, w, h int) bool { return true } // nothing ever becomes ready
	s := startWithRaster(t, Training, 1, 1, 10, r)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	imagery := make([]byte, 1*10*10)
	err := s.GetNext(ctx, imagery, nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

// Chips crossing the right/bottom edge are never sampled: with a raster
// whose dimensions aren't a multiple of window_size, every delivered chip's
// pixel offsets must stay within bounds (invariant 5 / boundary property 9).
func TestEdgeChipsNeverSampled(t *testing.T) {
	width, height, window := 25, 25, 10 // grid is 2x2; edges are never hit
	r := syntheticRaster(width, height)
	s := startWithRaster(t, Training, 2, 4, window, r)

	imagery := make([]byte, 1*window*window)
	for range 30 {
		require.NoError(t, s.GetNext(context.Background(), imagery, nil))
	}

	// A sampled chip that crossed the raster edge would have failed
	// rastertest's bounds check and shown up as a read error, not a
	// GetNext error (workers resample silently on a backend failure).
	require.Zero(t, s.Stats().ReadErrors)
}
