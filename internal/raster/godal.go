package raster

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/airbusgeo/godal"
)

var registerOnce sync.Once

// Init performs the one-time, process-wide registration of GDAL format
// drivers. It must be called exactly once before any Open, and mirrors the
// original core's init() -> GDALAllRegister().
func Init() {
	registerOnce.Do(godal.RegisterAll)
}

// Deinit releases GDAL's process-wide state. It mirrors the original core's
// deinit() -> GDALDestroy() and should only be called once, after every
// Dataset has been closed.
func Deinit() {
	godal.Close()
}

// Godal is the Backend implementation built on github.com/airbusgeo/godal.
type Godal struct{}

func (Godal) Open(path string) (Dataset, error) {
	ds, err := godal.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", path, err)
	}
	structure := ds.Structure()
	return &godalDataset{ds: ds, width: structure.SizeX, height: structure.SizeY}, nil
}

type godalDataset struct {
	ds            *godal.Dataset
	width, height int
}

func (d *godalDataset) Close() error {
	if err := d.ds.Close(); err != nil {
		return fmt.Errorf("close dataset: %w", err)
	}
	return nil
}

func (d *godalDataset) Width() int  { return d.width }
func (d *godalDataset) Height() int { return d.height }

func (d *godalDataset) Band(index int) (Band, error) {
	bands := d.ds.Bands()
	if index < 1 || index > len(bands) {
		return nil, fmt.Errorf("band %d out of range (dataset has %d bands)", index, len(bands))
	}
	return &godalBand{band: bands[index-1]}, nil
}

// Read implements Dataset.Read. It reinterprets dst (a raw byte buffer sized
// by the caller per word_size(dtype)*len(bands-or-1)*dstW*dstH) as the typed
// slice godal's Read expects, without an intermediate copy, so that the
// slot's pinned buffer is the one godal writes into directly.
func (d *godalDataset) Read(win Window, dstW, dstH int, dtype PixelType, bands []int, dst []byte) error {
	count := len(bands)
	if count == 0 {
		count = 1
	}
	nSamples := count * dstW * dstH

	opts := []godal.DatasetReadOption{godal.Window(win.X, win.Y, win.W, win.H)}
	if len(bands) > 0 {
		opts = append(opts, godal.Bands(bands...))
	}

	switch dtype {
	case Byte:
		return d.ds.Read(0, 0, dst[:nSamples], dstW, dstH, opts...)
	case Int16:
		return d.ds.Read(0, 0, reinterpret[int16](dst, nSamples), dstW, dstH, opts...)
	case UInt16:
		return d.ds.Read(0, 0, reinterpret[uint16](dst, nSamples), dstW, dstH, opts...)
	case Int32:
		return d.ds.Read(0, 0, reinterpret[int32](dst, nSamples), dstW, dstH, opts...)
	case UInt32:
		return d.ds.Read(0, 0, reinterpret[uint32](dst, nSamples), dstW, dstH, opts...)
	case Float32:
		return d.ds.Read(0, 0, reinterpret[float32](dst, nSamples), dstW, dstH, opts...)
	case Float64:
		return d.ds.Read(0, 0, reinterpret[float64](dst, nSamples), dstW, dstH, opts...)
	case CFloat32:
		return d.ds.Read(0, 0, reinterpret[complex64](dst, nSamples), dstW, dstH, opts...)
	case CFloat64:
		return d.ds.Read(0, 0, reinterpret[complex128](dst, nSamples), dstW, dstH, opts...)
	case CInt16, CInt32:
		// godal's public Read only accepts the real-valued and
		// complex64/complex128 buffer types (see its cBuffer helper);
		// it has no complex-integer buffer case, so these two GDAL
		// types that the word-size table still names cannot be read
		// through this binding.
		return fmt.Errorf("pixel type %s: not supported by the godal backend", dtype)
	default:
		return fmt.Errorf("pixel type %s: unsupported", dtype)
	}
}

// reinterpret aliases a []byte buffer as a []T of length n without copying.
// Callers size dst per Dataset.Read's contract (pkg/chips' slot buffers, or
// the caller's own buffer for inference reads); if dst is too small to hold
// n elements of T it panics instead of reading or writing past dst.
func reinterpret[T any](dst []byte, n int) []T {
	var zero T
	size := int(unsafe.Sizeof(zero))
	if n*size > len(dst) {
		panic("raster: destination buffer too small for requested read")
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&dst[0])), n)
}

type godalBand struct {
	band godal.Band
}

// IsEmpty approximates GDAL's data-coverage-status query (not exposed by
// godal's public API) using the band's declared NoData value: it reads a
// single coarse probe tile for the window and reports the window empty only
// when every sampled pixel equals NoData. If the band declares no NoData
// value, the window is conservatively reported non-empty — a real chip is
// never silently skipped because of this approximation. See DESIGN.md.
func (b *godalBand) IsEmpty(win Window) (bool, error) {
	nodata, ok := b.band.NoData()
	if !ok {
		return false, nil
	}

	const probe = 8
	pw, ph := probe, probe
	if win.W < pw {
		pw = win.W
	}
	if win.H < ph {
		ph = win.H
	}
	buf := make([]float64, pw*ph)
	opts := []godal.BandReadOption{godal.Window(win.X, win.Y, win.W, win.H)}
	if err := b.band.Read(0, 0, buf, pw, ph, opts...); err != nil {
		return false, fmt.Errorf("coverage probe read: %w", err)
	}
	for _, v := range buf {
		if v != nodata {
			return false, nil
		}
	}
	return true, nil
}
