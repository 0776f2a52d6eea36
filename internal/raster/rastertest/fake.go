// Package rastertest provides an in-memory raster.Backend for tests, so the
// chip reader core can be exercised without a real GDAL dataset on disk —
// the way modules/forward/controlplane/service_test.go swaps in a test-only
// updater to avoid real FFI calls.
package rastertest

import (
	"fmt"
	"math"
	"sync"

	"github.com/jamesmcclain/chips/internal/raster"
)

// PixelFunc computes a synthetic single-band pixel value at (x, y).
type PixelFunc func(x, y int) float64

// EmptyFunc reports whether the rectangular window starting at (x, y) and
// spanning w by h pixels should be reported as entirely empty.
type EmptyFunc func(x, y, w, h int) bool

// Raster is a synthetic single-band raster of fixed size whose pixel values
// come from a PixelFunc and whose coverage comes from an EmptyFunc.
type Raster struct {
	Width, Height int
	Pixel         PixelFunc
	Empty         EmptyFunc

	mu     sync.Mutex
	opens  int
	closes int
}

// Opens and Closes report how many times this raster has been opened and
// closed, so tests can assert every handle was released (spec.md §8
// invariant 3).
func (r *Raster) Opens() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opens
}

func (r *Raster) Closes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closes
}

// Backend is a raster.Backend that opens a fixed set of named synthetic
// rasters, keyed by path.
type Backend struct {
	mu       sync.Mutex
	datasets map[string]*Raster
}

// NewBackend constructs a Backend from a path -> Raster mapping.
func NewBackend(datasets map[string]*Raster) *Backend {
	return &Backend{datasets: datasets}
}

func (b *Backend) Open(path string) (raster.Dataset, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	r, ok := b.datasets[path]
	if !ok {
		return nil, fmt.Errorf("rastertest: no such dataset %q", path)
	}
	r.mu.Lock()
	r.opens++
	r.mu.Unlock()
	return &dataset{r: r}, nil
}

type dataset struct {
	r *Raster
}

func (d *dataset) Close() error {
	d.r.mu.Lock()
	defer d.r.mu.Unlock()
	d.r.closes++
	return nil
}

func (d *dataset) Width() int  { return d.r.Width }
func (d *dataset) Height() int { return d.r.Height }

func (d *dataset) Band(index int) (raster.Band, error) {
	if index != 1 {
		return nil, fmt.Errorf("rastertest: only band 1 exists")
	}
	return &band{r: d.r}, nil
}

func (d *dataset) Read(win raster.Window, dstW, dstH int, dtype raster.PixelType, bands []int, dst []byte) error {
	if win.X < 0 || win.Y < 0 || win.X+win.W > d.r.Width || win.Y+win.H > d.r.Height {
		return fmt.Errorf("rastertest: window out of bounds: %+v", win)
	}
	word, err := dtype.WordSize()
	if err != nil {
		return err
	}
	count := len(bands)
	if count == 0 {
		count = 1
	}
	needed := word * count * dstW * dstH
	if len(dst) < needed {
		return fmt.Errorf("rastertest: destination buffer too small: have %d need %d", len(dst), needed)
	}

	// Plane-major, row-major within each plane, as spec.md §6 requires.
	off := 0
	for range count {
		for row := 0; row < dstH; row++ {
			for col := 0; col < dstW; col++ {
				v := d.r.Pixel(win.X+col, win.Y+row)
				writeSample(dst[off:], dtype, v)
				off += word
			}
		}
	}
	return nil
}

type band struct {
	r *Raster
}

func (b *band) IsEmpty(win raster.Window) (bool, error) {
	if b.r.Empty == nil {
		return false, nil
	}
	return b.r.Empty(win.X, win.Y, win.W, win.H), nil
}

// writeSample encodes v into buf as dtype, little-endian, matching the byte
// layout raster.Dataset.Read's real implementation produces via reinterpret.
func writeSample(buf []byte, dtype raster.PixelType, v float64) {
	switch dtype {
	case raster.Byte:
		buf[0] = byte(uint8(v))
	case raster.Int16:
		putInt(buf, int64(v), 2)
	case raster.UInt16:
		putInt(buf, int64(v), 2)
	case raster.Int32:
		putInt(buf, int64(v), 4)
	case raster.UInt32:
		putInt(buf, int64(v), 4)
	case raster.Float32:
		putFloat32(buf, float32(v))
	case raster.Float64:
		putFloat64(buf, v)
	default:
		panic(fmt.Sprintf("rastertest: unsupported pixel type %s", dtype))
	}
}

func putInt(buf []byte, v int64, width int) {
	for i := range width {
		buf[i] = byte(v >> (8 * i))
	}
}

func putFloat32(buf []byte, v float32) {
	putInt(buf, int64(math.Float32bits(v)), 4)
}

func putFloat64(buf []byte, v float64) {
	putInt(buf, int64(math.Float64bits(v)), 8)
}
