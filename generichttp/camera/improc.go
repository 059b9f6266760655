// this file contains a few small image processing utilities
package camera

import (
	"image"

	cam "github.com/nasa-jpl/psfscan/camera"
)

// minmax returns the extrema of a frame
func minmax(f cam.Frame) (lo, hi int64) {
	rows, cols := f.Dims()
	if rows == 0 || cols == 0 {
		return 0, 0
	}
	lo, hi = f.At(0, 0), f.At(0, 0)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			v := f.At(r, c)
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
	}
	return lo, hi
}

// Stretch maps a frame onto 8-bit gray, the minimum to black and the maximum to white.
// A flat frame is all black
func Stretch(f cam.Frame) *image.Gray {
	rows, cols := f.Dims()
	im := image.NewGray(image.Rect(0, 0, cols, rows))
	lo, hi := minmax(f)
	span := hi - lo
	if span == 0 {
		return im
	}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			im.Pix[r*im.Stride+c] = uint8((f.At(r, c) - lo) * 255 / span)
		}
	}
	return im
}
