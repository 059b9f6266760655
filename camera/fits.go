package camera

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/astrogo/fitsio"
)

// ErrNoFrames is returned when writing an empty set of frames
var ErrNoFrames = errors.New("no frames to write")

// WriteFITS streams frames to w as a FITS image, or a cube when there is more than one.
// Every frame must have the same dimensions and element type
func WriteFITS(w io.Writer, cards []fitsio.Card, frames ...Frame) error {
	if len(frames) == 0 {
		return ErrNoFrames
	}
	rows, cols := frames[0].Dims()
	dt := frames[0].Dtype()
	dims := []int{cols, rows}
	if len(frames) > 1 {
		dims = append(dims, len(frames))
	}

	var (
		data interface{}
		err  error
	)
	switch dt {
	case Int16:
		data, err = flatten[int16](frames, rows, cols)
	case Int32:
		data, err = flatten[int32](frames, rows, cols)
	case Int64:
		data, err = flatten[int64](frames, rows, cols)
	default:
		err = PixelSizeError{}
	}
	if err != nil {
		return err
	}

	fits, err := fitsio.Create(w)
	if err != nil {
		return err
	}
	defer fits.Close()
	im := fitsio.NewImage(dt.Bits(), dims)
	defer im.Close()
	if err = im.Header().Append(cards...); err != nil {
		return err
	}
	if err = im.Write(data); err != nil {
		return err
	}
	return fits.Write(im)
}

func flatten[T int16 | int32 | int64](frames []Frame, rows, cols int) ([]T, error) {
	out := make([]T, 0, rows*cols*len(frames))
	for i, f := range frames {
		im, ok := f.(*Image[T])
		if !ok {
			return nil, fmt.Errorf("%w: frame %d is %v, not %v", ErrShapeMismatch, i, f.Dtype(), frames[0].Dtype())
		}
		if im.Rows != rows || im.Cols != cols {
			return nil, fmt.Errorf("%w: frame %d is %dx%d, not %dx%d", ErrShapeMismatch, i, im.Rows, im.Cols, rows, cols)
		}
		out = append(out, im.Pix...)
	}
	return out, nil
}

// Cube is a handler which keeps the frames of a session in memory so they
// can be saved as one FITS cube.  Register it with includeControlFrame to
// also keep the frame timestamps.
type Cube struct {
	mu     sync.Mutex
	params FrameParameters
	frames []Frame
	stamps []time.Duration
}

// NewCube returns an empty cube for frames with the given layout
func NewCube(p FrameParameters) *Cube {
	return &Cube{params: p}
}

// Write implements io.Writer.  A ControlFrameSize write is taken as a timestamp,
// anything else must be exactly one frame
func (c *Cube) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(p) == ControlFrameSize && c.params.Size != ControlFrameSize {
		ms := binary.LittleEndian.Uint32(p)
		c.stamps = append(c.stamps, time.Duration(ms)*time.Millisecond)
		return len(p), nil
	}
	f, err := c.params.Decode(p)
	if err != nil {
		return 0, err
	}
	c.frames = append(c.frames, f)
	return len(p), nil
}

// Len returns the number of frames held
func (c *Cube) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

// Frames returns the frames held
func (c *Cube) Frames() []Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Frame(nil), c.frames...)
}

// Timestamps returns the timestamps seen in control frames
func (c *Cube) Timestamps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.stamps...)
}

// Reset drops all frames and timestamps
func (c *Cube) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = nil
	c.stamps = nil
}

// Save writes the cube as FITS, with the metadata as header cards
func (c *Cube) Save(w io.Writer, meta Metadata, extra ...fitsio.Card) error {
	frames := c.Frames()
	stamps := c.Timestamps()
	cards := append(meta.Cards(), extra...)
	cards = append(cards, fitsio.Card{Name: "NFRAMES", Value: len(frames), Comment: "frames in cube"})
	if n := len(stamps); n > 0 {
		cards = append(cards,
			fitsio.Card{Name: "TFIRST", Value: int(stamps[0].Milliseconds()), Comment: "ms, first frame"},
			fitsio.Card{Name: "TLAST", Value: int(stamps[n-1].Milliseconds()), Comment: "ms, last frame"})
	}
	return WriteFITS(w, cards, frames...)
}
