package camera

import (
	"encoding/binary"
	"fmt"
)

// Dtype is the element type of a decoded frame.  It is always signed and
// wider than the unsigned pixels it holds, so no value overflows.
type Dtype int

const (
	// DtypeNone marks an unsupported pixel width
	DtypeNone Dtype = iota

	// Int16 holds 8-bit pixels
	Int16

	// Int32 holds 16-bit pixels
	Int32

	// Int64 holds 32-bit pixels
	Int64
)

// pixelDtypes is indexed by bytes per pixel.  3 bytes has no mapping
var pixelDtypes = [...]Dtype{
	0: DtypeNone,
	1: Int16,
	2: Int32,
	3: DtypeNone,
	4: Int64,
}

func (d Dtype) String() string {
	switch d {
	case Int16:
		return "int16"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	default:
		return "none"
	}
}

// MarshalText lets the dtype travel as its name in JSON
func (d Dtype) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText is the inverse of MarshalText
func (d *Dtype) UnmarshalText(b []byte) error {
	for _, c := range []Dtype{DtypeNone, Int16, Int32, Int64} {
		if c.String() == string(b) {
			*d = c
			return nil
		}
	}
	return fmt.Errorf("unknown dtype %q", b)
}

// Bits is the width of the type, which is also its FITS BITPIX
func (d Dtype) Bits() int {
	switch d {
	case Int16:
		return 16
	case Int32:
		return 32
	case Int64:
		return 64
	default:
		return 0
	}
}

// PixelDtype returns the element type used to decode pixels of the given width
func PixelDtype(bytesPerPixel int) (Dtype, error) {
	if bytesPerPixel < 0 || bytesPerPixel >= len(pixelDtypes) || pixelDtypes[bytesPerPixel] == DtypeNone {
		return DtypeNone, PixelSizeError{Bytes: bytesPerPixel}
	}
	return pixelDtypes[bytesPerPixel], nil
}

// Frame is a decoded 2-D image
type Frame interface {
	// Dims returns the (rows, cols) of the frame
	Dims() (int, int)

	// At returns the value of a pixel
	At(row, col int) int64

	// Dtype returns the element type
	Dtype() Dtype
}

// Image is a row-major frame of signed pixels
type Image[T int16 | int32 | int64] struct {
	Rows, Cols int
	Pix        []T
}

// Dims implements Frame
func (im *Image[T]) Dims() (int, int) {
	return im.Rows, im.Cols
}

// At implements Frame
func (im *Image[T]) At(row, col int) int64 {
	return int64(im.Pix[row*im.Cols+col])
}

// Dtype implements Frame
func (im *Image[T]) Dtype() Dtype {
	switch any(im.Pix).(type) {
	case []int16:
		return Int16
	case []int32:
		return Int32
	default:
		return Int64
	}
}

// Decode interprets buf as a little-endian frame of rows x cols pixels of
// bytesPerPixel each.  The buffer is not retained.
func Decode(buf []byte, bytesPerPixel, rows, cols int) (Frame, error) {
	dt, err := PixelDtype(bytesPerPixel)
	if err != nil {
		return nil, err
	}
	n := rows * cols
	if rows < 0 || cols < 0 || len(buf) != n*bytesPerPixel {
		return nil, fmt.Errorf("%w: %d bytes for %dx%d at %d bytes per pixel",
			ErrShapeMismatch, len(buf), rows, cols, bytesPerPixel)
	}
	switch dt {
	case Int16:
		pix := make([]int16, n)
		for i := range pix {
			pix[i] = int16(buf[i])
		}
		return &Image[int16]{Rows: rows, Cols: cols, Pix: pix}, nil
	case Int32:
		pix := make([]int32, n)
		for i := range pix {
			pix[i] = int32(binary.LittleEndian.Uint16(buf[2*i:]))
		}
		return &Image[int32]{Rows: rows, Cols: cols, Pix: pix}, nil
	default:
		pix := make([]int64, n)
		for i := range pix {
			pix[i] = int64(binary.LittleEndian.Uint32(buf[4*i:]))
		}
		return &Image[int64]{Rows: rows, Cols: cols, Pix: pix}, nil
	}
}
