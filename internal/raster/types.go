// Package raster is a thin, typed adapter over the raster backend library
// used by the chip reader core. It is the only package that imports the
// backend binding directly; every other package talks to a raster.Dataset.
package raster

import "fmt"

// PixelType enumerates the pixel data types the backend can read, matching
// the GDAL data type set the original core was built against.
type PixelType int

const (
	Byte PixelType = iota
	Int16
	UInt16
	Int32
	UInt32
	Float32
	Float64
	CInt16
	CInt32
	CFloat32
	CFloat64
)

// WordSize returns the byte width of one pixel sample of this type.
func (t PixelType) WordSize() (int, error) {
	switch t {
	case Byte:
		return 1, nil
	case Int16, UInt16:
		return 2, nil
	case Int32, UInt32, Float32:
		return 4, nil
	case Float64:
		return 8, nil
	case CInt16:
		return 4, nil
	case CInt32:
		return 8, nil
	case CFloat32:
		return 8, nil
	case CFloat64:
		return 16, nil
	default:
		return 0, fmt.Errorf("unsupported pixel type %d", int(t))
	}
}

func (t PixelType) String() string {
	switch t {
	case Byte:
		return "byte"
	case Int16:
		return "int16"
	case UInt16:
		return "uint16"
	case Int32:
		return "int32"
	case UInt32:
		return "uint32"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case CInt16:
		return "cint16"
	case CInt32:
		return "cint32"
	case CFloat32:
		return "cfloat32"
	case CFloat64:
		return "cfloat64"
	default:
		return "unknown"
	}
}

// Window is a rectangular pixel region: top-left (X, Y), spanning W by H
// pixels, expressed in source-raster pixel coordinates.
type Window struct {
	X, Y int
	W, H int
}
