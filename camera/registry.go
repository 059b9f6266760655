package camera

import (
	"fmt"
	"io"
	"log"
)

// ControlFrameSize is the size of the timestamp header written ahead of
// each frame to handlers which asked for it.  It holds the milliseconds
// since the start of the stream as a little-endian uint32
const ControlFrameSize = 4

type handler struct {
	w    io.Writer
	ctrl bool
}

// fanout writes one frame to every handler in order
func fanout(hs []handler, hdr, buf []byte) error {
	for i, h := range hs {
		if h.ctrl {
			if _, err := h.w.Write(hdr); err != nil {
				return fmt.Errorf("handler %d control frame: %w", i, err)
			}
		}
		if _, err := h.w.Write(buf); err != nil {
			return fmt.Errorf("handler %d: %w", i, err)
		}
	}
	return nil
}

// AddHandler appends w to the list of handlers frames are written to when
// streaming.  Handlers are written in the order they were added.
// If includeControlFrame is true, each frame is preceded by a separate
// ControlFrameSize write holding its timestamp.
//
// w must not retain the slices it is given.  Handlers can only be added
// while the capture goroutine is not alive
func (c *Camera) AddHandler(w io.Writer, includeControlFrame bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.IsAlive() {
		return ErrRegistryBusy
	}
	c.handlers = append(c.handlers, handler{w: w, ctrl: includeControlFrame})
	return nil
}

// ClearHandlers removes every handler.  It fails with ErrRegistryBusy while
// the capture goroutine is alive
func (c *Camera) ClearHandlers() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.IsAlive() {
		return ErrRegistryBusy
	}
	c.handlers = nil
	log.Println("cleared handlers")
	return nil
}

// HandlerCount returns the number of handlers
func (c *Camera) HandlerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.handlers)
}
