/*Package camera runs a Xenics camera through the Xeneth SDK.

A Camera owns one SDK handle.  It can take single frames on the caller's
goroutine, or stream continuously on a background goroutine which writes
every frame, in order, to a list of io.Writers (handlers).

Only one of those may use the handle at a time.  Start, stop and single
frame captures are serialized by the Camera and refused with ErrBusy
while a stream is live.

The streaming goroutine never panics the process.  Failures are parked in
a single slot and re-raised by CheckThreadExceptions, WaitRecording or
StopRecording on the controlling goroutine.  Check before trusting
frame counts.

Handlers are written synchronously.  A slow handler stalls acquisition;
nothing is buffered and nothing is dropped.

Close always releases the handle, even when the streaming goroutine does
not exit in time.  Such a goroutine is remembered, and captures and new
streams are refused with ErrBusy until it has exited, even across a
reopen.
*/
package camera

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nasa-jpl/psfscan/util"
	"github.com/nasa-jpl/psfscan/xeneth"
)

// Config holds the tunables of a Camera.  Zero values are replaced with defaults by New
type Config struct {
	// CaptureRetries is how many times to re-check that capture started
	CaptureRetries int `koanf:"CaptureRetries" yaml:"CaptureRetries"`

	// CaptureBackoff is the wait between those checks
	CaptureBackoff time.Duration `koanf:"CaptureBackoff" yaml:"CaptureBackoff"`

	// JoinTimeout bounds how long StopRecording waits for the stream to exit
	JoinTimeout time.Duration `koanf:"JoinTimeout" yaml:"JoinTimeout"`

	// CloseJoinTimeout bounds how long Close waits for the stream to exit
	CloseJoinTimeout time.Duration `koanf:"CloseJoinTimeout" yaml:"CloseJoinTimeout"`

	// WaitPollInterval is the time between error checks in WaitRecording
	WaitPollInterval time.Duration `koanf:"WaitPollInterval" yaml:"WaitPollInterval"`
}

// DefaultConfig returns the default tunables
func DefaultConfig() Config {
	return Config{
		CaptureRetries:   5,
		CaptureBackoff:   100 * time.Millisecond,
		JoinTimeout:      5 * time.Second,
		CloseJoinTimeout: time.Second,
		WaitPollInterval: time.Millisecond,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.CaptureRetries <= 0 {
		c.CaptureRetries = d.CaptureRetries
	}
	if c.CaptureBackoff <= 0 {
		c.CaptureBackoff = d.CaptureBackoff
	}
	if c.JoinTimeout <= 0 {
		c.JoinTimeout = d.JoinTimeout
	}
	if c.CloseJoinTimeout <= 0 {
		c.CloseJoinTimeout = d.CloseJoinTimeout
	}
	if c.WaitPollInterval <= 0 {
		c.WaitPollInterval = d.WaitPollInterval
	}
	return c
}

// State is the position of the camera in its recording lifecycle
type State int32

const (
	// Idle means no session
	Idle State = iota

	// Starting means a session exists but capture is not confirmed
	Starting

	// Streaming means frames are flowing to handlers
	Streaming

	// Stopping means the session has been told to stop
	Stopping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Starting:
		return "starting"
	case Streaming:
		return "streaming"
	case Stopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// MarshalText lets the state travel as its name in JSON
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText is the inverse of MarshalText
func (s *State) UnmarshalText(b []byte) error {
	for _, c := range []State{Idle, Starting, Streaming, Stopping} {
		if c.String() == string(b) {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", b)
}

// Camera is a Xenics camera driven through the Xeneth SDK
type Camera struct {
	drv xeneth.Driver

	// calibration is the path to the .xca file, empty for none
	calibration string

	cfg Config

	// mu serializes controller operations on the handle
	mu       sync.Mutex
	handle   xeneth.Handle
	handlers []handler

	sess  atomic.Pointer[session]
	state atomic.Int32

	// orphan is a session abandoned by Close whose goroutine may still run.  Guarded by mu
	orphan *session
}

// New returns a closed Camera which talks through drv.
// calibration is a path to a calibration pack applied by Open, or empty
func New(drv xeneth.Driver, calibration string, cfg Config) *Camera {
	return &Camera{drv: drv, calibration: calibration, cfg: cfg.withDefaults()}
}

// Config returns the tunables in use
func (c *Camera) Config() Config {
	return c.cfg
}

// Open connects to the camera at path (e.g. cam://0) and loads the calibration,
// with software correction if swCorrection is true.  Opening an open camera does nothing
func (c *Camera) Open(path string, swCorrection bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handle != 0 {
		return nil
	}
	h := c.drv.OpenCamera(path, 0)
	if h == 0 {
		return fmt.Errorf("%w: camera handle is NULL for %s", ErrInitialization, path)
	}
	if !c.drv.IsInitialised(h) {
		c.drv.CloseCamera(h)
		return fmt.Errorf("%w: %s is not initialised", ErrInitialization, path)
	}
	if c.calibration != "" {
		var flag uint32
		if swCorrection {
			flag = xeneth.XLCStartSoftwareCorrection
		}
		if err := xeneth.Error(c.drv.LoadCalibration(h, c.calibration, flag)); err != nil {
			c.drv.CloseCamera(h)
			return classify(ErrCalibrationLoad, "XC_LoadCalibration", err)
		}
	}
	c.handle = h
	log.Printf("camera %s opened with handle %d\n", path, h)
	return nil
}

// Close stops any stream, stops capture and releases the handle.
// Errors on the way are collected and returned, but the handle is always
// released and reset.  Closing a closed camera does nothing
func (c *Camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var errs []error
	if s := c.sess.Load(); s != nil {
		s.enabled.Store(false)
		if s.join(c.cfg.CloseJoinTimeout) {
			errs = append(errs, s.check())
		} else {
			errs = append(errs, fmt.Errorf("%w within %v", ErrThreadTermination, c.cfg.CloseJoinTimeout))
			c.orphan = s
		}
		c.sess.Store(nil)
	}
	h := c.handle
	if h != 0 && c.drv.IsCapturing(h) {
		log.Println("stop capturing")
		errs = append(errs, enrich(xeneth.Error(c.drv.StopCapture(h)), "XC_StopCapture"))
	}
	if h != 0 && c.drv.IsInitialised(h) {
		c.drv.CloseCamera(h)
		log.Println("camera connection closed")
	}
	c.handle = 0
	c.state.Store(int32(Idle))
	return util.MergeErrors(errs)
}

// IsOpen returns true if the camera has a handle
func (c *Camera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handle != 0
}

// openHandle returns the handle, or ErrNotOpen.  Must hold mu
func (c *Camera) openHandle() (xeneth.Handle, error) {
	if c.handle == 0 {
		return 0, ErrNotOpen
	}
	return c.handle, nil
}

// idleHandle is openHandle which also refuses while streaming.  Must hold mu
func (c *Camera) idleHandle() (xeneth.Handle, error) {
	h, err := c.openHandle()
	if err != nil {
		return 0, err
	}
	if c.IsAlive() || c.lingering() {
		return 0, ErrBusy
	}
	return h, nil
}

// lingering reports if a goroutine abandoned by Close is still running.  Must hold mu
func (c *Camera) lingering() bool {
	if c.orphan == nil {
		return false
	}
	if c.orphan.alive() {
		return true
	}
	c.orphan = nil
	return false
}

// readHandle returns the handle for queries that are safe while streaming
func (c *Camera) readHandle() (xeneth.Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.openHandle()
}

// FrameParameters describes the frames the camera currently produces
type FrameParameters struct {
	// Size is the frame size in bytes
	Size int `json:"size"`

	// Rows is the frame height
	Rows int `json:"rows"`

	// Cols is the frame width
	Cols int `json:"cols"`

	// BytesPerPixel is the width of one pixel
	BytesPerPixel int `json:"pixel"`

	// Dtype is the decoded element type
	Dtype Dtype `json:"dtype"`

	// Type is the SDK frame type frames are read with
	Type xeneth.FrameType `json:"frameType"`
}

// Validate checks that the size agrees with the dimensions and pixel width
func (p FrameParameters) Validate() error {
	if p.Size != p.Rows*p.Cols*p.BytesPerPixel {
		return fmt.Errorf("%w: %d bytes != %d x %d x %d",
			ErrInconsistentFrame, p.Size, p.Rows, p.Cols, p.BytesPerPixel)
	}
	return nil
}

// Decode decodes a buffer holding one frame with these parameters
func (p FrameParameters) Decode(buf []byte) (Frame, error) {
	return Decode(buf, p.BytesPerPixel, p.Rows, p.Cols)
}

// SourceType is the name of the unsigned type the camera delivers, u1, u2 or u4
func (p FrameParameters) SourceType() string {
	return fmt.Sprintf("u%d", p.BytesPerPixel)
}

// queryParams asks the SDK for the frame layout and checks it
func queryParams(drv xeneth.Driver, h xeneth.Handle) (FrameParameters, error) {
	ft := drv.GetFrameType(h)
	p := FrameParameters{
		Size:          drv.GetFrameSize(h),
		Rows:          drv.GetHeight(h),
		Cols:          drv.GetWidth(h),
		BytesPerPixel: xeneth.PixelSize(ft),
		Type:          ft,
	}
	dt, err := PixelDtype(p.BytesPerPixel)
	if err != nil {
		return p, err
	}
	p.Dtype = dt
	return p, p.Validate()
}

// FrameParameters returns the current frame layout
func (c *Camera) FrameParameters() (FrameParameters, error) {
	h, err := c.readHandle()
	if err != nil {
		return FrameParameters{}, err
	}
	return queryParams(c.drv, h)
}

// FrameSize returns the size of a frame in bytes
func (c *Camera) FrameSize() (int, error) {
	h, err := c.readHandle()
	if err != nil {
		return 0, err
	}
	return c.drv.GetFrameSize(h), nil
}

// FrameDims returns the (height, width) of a frame
func (c *Camera) FrameDims() (int, int, error) {
	h, err := c.readHandle()
	if err != nil {
		return 0, 0, err
	}
	return c.drv.GetHeight(h), c.drv.GetWidth(h), nil
}

// FrameType returns the native frame type
func (c *Camera) FrameType() (xeneth.FrameType, error) {
	h, err := c.readHandle()
	if err != nil {
		return xeneth.FTUnknown, err
	}
	return c.drv.GetFrameType(h), nil
}

// PixelSize returns the number of bytes in a pixel
func (c *Camera) PixelSize() (int, error) {
	ft, err := c.FrameType()
	if err != nil {
		return 0, err
	}
	return xeneth.PixelSize(ft), nil
}

// PixelDtype returns the element type frames decode to
func (c *Camera) PixelDtype() (Dtype, error) {
	n, err := c.PixelSize()
	if err != nil {
		return DtypeNone, err
	}
	return PixelDtype(n)
}
