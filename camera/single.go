package camera

import (
	"fmt"

	"github.com/nasa-jpl/psfscan/xeneth"
)

// Capture is one frame read on the caller's goroutine
type Capture struct {
	// Buf holds the raw frame; it belongs to the caller
	Buf []byte

	// Params describes the layout of Buf
	Params FrameParameters
}

// Frame decodes the capture
func (c Capture) Frame() (Frame, error) {
	return c.Params.Decode(c.Buf)
}

// readFrame does one blocking read.  ok is false if the camera had no frame,
// err is set for every other failure
func (c *Camera) readFrame(h xeneth.Handle, p FrameParameters, buf []byte) (ok bool, err error) {
	code := c.drv.GetFrame(h, p.Type, xeneth.XGFBlocking, buf)
	switch code {
	case xeneth.IOK:
		return true, nil
	case xeneth.ENoFrame:
		return false, nil
	default:
		return false, classify(ErrFrameRead, "XC_GetFrame", code)
	}
}

// CaptureFrameOnly reads one frame, starting capture first if the camera
// is not capturing.  Capture is left running, so repeated calls are cheap.
// It blocks for the duration of the read
func (c *Camera) CaptureFrameOnly() (Capture, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, err := c.idleHandle()
	if err != nil {
		return Capture{}, err
	}
	if !c.drv.IsCapturing(h) {
		if err := xeneth.Error(c.drv.StartCapture(h)); err != nil {
			return Capture{}, classify(ErrCaptureStart, "XC_StartCapture", err)
		}
	}
	p, err := queryParams(c.drv, h)
	if err != nil {
		return Capture{}, err
	}
	buf := make([]byte, p.Size)
	ok, err := c.readFrame(h, p, buf)
	if err != nil {
		return Capture{}, err
	}
	if !ok {
		return Capture{}, fmt.Errorf("%w: no frame from a blocking read", ErrFrameRead)
	}
	return Capture{Buf: buf, Params: p}, nil
}

// CaptureSingleFrame is CaptureFrameOnly which also waits, with retries,
// for capture to be confirmed running.  If dumpBuffer is true, one frame
// is read and discarded first to flush a stale buffer
func (c *Camera) CaptureSingleFrame(dumpBuffer bool) (Capture, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, err := c.idleHandle()
	if err != nil {
		return Capture{}, err
	}
	return c.captureSingle(h, dumpBuffer)
}

// captureSingle is CaptureSingleFrame.  Must hold mu
func (c *Camera) captureSingle(h xeneth.Handle, dumpBuffer bool) (Capture, error) {
	if err := c.ensureCapturing(h); err != nil {
		return Capture{}, err
	}
	p, err := queryParams(c.drv, h)
	if err != nil {
		return Capture{}, err
	}
	if dumpBuffer {
		if _, err := c.readFrame(h, p, make([]byte, p.Size)); err != nil {
			return Capture{}, err
		}
	}
	buf := make([]byte, p.Size)
	ok, err := c.readFrame(h, p, buf)
	if err != nil {
		return Capture{}, err
	}
	if !ok {
		return Capture{}, fmt.Errorf("%w: no frame from a blocking read", ErrFrameRead)
	}
	return Capture{Buf: buf, Params: p}, nil
}
