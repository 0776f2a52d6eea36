package raster

// Backend is the minimal surface the chip reader core needs from the raster
// library. spec.md §6 treats the raster backend as an opaque external
// collaborator with exactly this shape; Godal (this package's only concrete
// Backend) implements it over github.com/airbusgeo/godal.
type Backend interface {
	// Open opens a dataset read-only.
	Open(path string) (Dataset, error)
}

// Dataset is an open raster dataset handle. The chip reader core never
// shares a Dataset across goroutines: every worker owns its own handle pair
// (spec.md §3, DatasetHandle), and Inference mode uses worker 0's handle
// exclusively because no worker goroutines run concurrently with it.
type Dataset interface {
	// Close releases the dataset.
	Close() error
	// Width and Height return the raster's pixel dimensions.
	Width() int
	Height() int
	// Band returns a handle to the given 1-based band index, used for
	// coverage queries. Band 1 is cached per worker for fast, repeated
	// coverage checks during sampling.
	Band(index int) (Band, error)
	// Read reads win into dst, requesting a dstW x dstH destination tile
	// for the given pixel type and band list (nil bands reads band 1
	// only, matching the label read path). dst must be exactly
	// word_size(dtype) * len(bands-or-1) * dstW * dstH bytes.
	Read(win Window, dstW, dstH int, dtype PixelType, bands []int, dst []byte) error
}

// Band is a single raster band, used only for coverage queries in this
// adapter; pixel reads always go through Dataset.Read.
type Band interface {
	// IsEmpty reports whether win contains no stored data on this band.
	IsEmpty(win Window) (bool, error)
}
