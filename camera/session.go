package camera

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/nasa-jpl/psfscan/util"
	"github.com/nasa-jpl/psfscan/xeneth"
)

var errNotCapturing = errors.New("camera is not capturing")

// Metrics counts the frames of a session
type Metrics struct {
	// Frames is the number of frames delivered to handlers
	Frames int `json:"frames"`

	// Timestamps holds the time of each frame relative to the start of the stream
	Timestamps []time.Duration `json:"timestamps"`
}

// session is everything shared between the controller and one capture goroutine
type session struct {
	id     uuid.UUID
	handle xeneth.Handle
	sinks  []handler

	enabled atomic.Bool

	// done is closed when the goroutine exits
	done chan struct{}

	// errs holds at most one failure from the goroutine
	errs chan error

	mu         sync.Mutex
	params     FrameParameters
	frames     int
	times      []time.Duration
	recordTime time.Duration
}

func newSession(h xeneth.Handle, sinks []handler) *session {
	s := &session{
		id:     uuid.New(),
		handle: h,
		sinks:  append([]handler(nil), sinks...),
		done:   make(chan struct{}),
		errs:   make(chan error, 1),
	}
	s.enabled.Store(true)
	return s
}

func (s *session) alive() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// join waits up to d for the goroutine to exit and reports if it did
func (s *session) join(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-s.done:
		return true
	case <-t.C:
		return false
	}
}

// deposit parks err for the controller.  Only the first failure is kept
func (s *session) deposit(err error) {
	log.Printf("capture goroutine %s: %v\n", s.id, err)
	select {
	case s.errs <- err:
	default:
	}
}

// check returns a parked failure without blocking
func (s *session) check() error {
	select {
	case err := <-s.errs:
		return err
	default:
		return nil
	}
}

// record counts one delivered frame
func (s *session) record(t time.Duration) {
	s.mu.Lock()
	s.times = append(s.times, t)
	s.frames++
	s.mu.Unlock()
}

func (s *session) setParams(p FrameParameters) {
	s.mu.Lock()
	s.params = p
	s.mu.Unlock()
}

func (s *session) addRecordTime(d time.Duration) {
	s.mu.Lock()
	s.recordTime += d
	s.mu.Unlock()
}

func (s *session) metrics() Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Metrics{Frames: s.frames, Timestamps: append([]time.Duration(nil), s.times...)}
}

func (s *session) metadata() Metadata {
	s.mu.Lock()
	params, rt := s.params, s.recordTime
	s.mu.Unlock()
	return BuildMetadata(params, s.metrics(), rt)
}

// ensureCapturing starts capture if needed, then waits for the camera to
// report that it is capturing
func (c *Camera) ensureCapturing(h xeneth.Handle) error {
	if !c.drv.IsCapturing(h) {
		if err := xeneth.Error(c.drv.StartCapture(h)); err != nil {
			return classify(ErrCaptureStart, "XC_StartCapture", err)
		}
	}
	op := func() error {
		if c.drv.IsCapturing(h) {
			return nil
		}
		return errNotCapturing
	}
	notify := func(err error, d time.Duration) {
		log.Printf("%v, retrying in %v\n", err, d)
	}
	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(c.cfg.CaptureBackoff), uint64(c.cfg.CaptureRetries))
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return fmt.Errorf("%w: %v after %d retries", ErrCaptureStart, err, c.cfg.CaptureRetries)
	}
	return nil
}

// stream is the body of the capture goroutine
func (c *Camera) stream(s *session) {
	defer close(s.done)
	defer func() {
		if r := recover(); r != nil {
			s.deposit(fmt.Errorf("capture goroutine panic: %v", r))
		}
		log.Printf("capture goroutine %s closed\n", s.id)
	}()
	if err := c.ensureCapturing(s.handle); err != nil {
		s.deposit(err)
		return
	}
	params, err := queryParams(c.drv, s.handle)
	if err != nil {
		s.deposit(err)
		return
	}
	s.setParams(params)
	c.state.CompareAndSwap(int32(Starting), int32(Streaming))
	log.Printf("capture stream size %d dims (%d, %d) frame type %v\n",
		params.Size, params.Rows, params.Cols, params.Type)

	buf := make([]byte, params.Size)
	hdr := make([]byte, ControlFrameSize)
	start := time.Now()
	for s.enabled.Load() {
		for {
			code := c.drv.GetFrame(s.handle, params.Type, xeneth.XGFNonBlocking, buf)
			if code == xeneth.IOK {
				break
			}
			if code != xeneth.ENoFrame {
				s.deposit(classify(ErrFrameRead, "XC_GetFrame", code))
				return
			}
		}
		t := time.Since(start)
		binary.LittleEndian.PutUint32(hdr, uint32(t.Milliseconds()))
		if err := fanout(s.sinks, hdr, buf); err != nil {
			s.deposit(err)
			return
		}
		s.record(t)
	}
}

// StartRecording starts streaming frames to the handlers on a new goroutine.
// It returns once the goroutine is launched; failures to start capture
// surface through CheckThreadExceptions
func (c *Camera) StartRecording() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, err := c.openHandle()
	if err != nil {
		return err
	}
	if c.sess.Load() != nil {
		return ErrAlreadyRecording
	}
	if c.lingering() {
		return fmt.Errorf("%w: a goroutine abandoned by Close is still running", ErrBusy)
	}
	s := newSession(h, c.handlers)
	c.sess.Store(s)
	c.state.Store(int32(Starting))
	log.Printf("starting capture session %s with %d handlers\n", s.id, len(s.sinks))
	go c.stream(s)
	return nil
}

// StopRecording stops the stream after the frame in flight, stops capture
// and returns the metadata of the session.
//
// If the goroutine does not exit within the join timeout, ErrThreadTermination
// is returned and the session is left in place; the handle is not touched.
// A failure parked by the goroutine is returned instead of metadata
func (c *Camera) StopRecording() (Metadata, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.sess.Load()
	if s == nil {
		return nil, ErrNotRecording
	}
	c.state.Store(int32(Stopping))
	start := time.Now()
	s.enabled.Store(false)
	if !s.join(c.cfg.JoinTimeout) {
		return nil, fmt.Errorf("%w within %v", ErrThreadTermination, c.cfg.JoinTimeout)
	}
	s.addRecordTime(time.Since(start))
	c.sess.Store(nil)
	c.state.Store(int32(Idle))

	errs := []error{
		s.check(),
		enrich(xeneth.Error(c.drv.StopCapture(s.handle)), "XC_StopCapture"),
	}
	if err := util.MergeErrors(errs); err != nil {
		return nil, err
	}
	meta := s.metadata()
	log.Printf("capture session %s stopped\n", s.id)
	return meta, nil
}

// CheckThreadExceptions returns the failure parked by the capture goroutine,
// if any.  It never blocks, and a failure is returned only once
func (c *Camera) CheckThreadExceptions() error {
	s := c.sess.Load()
	if s == nil {
		return nil
	}
	return s.check()
}

// WaitRecording is WaitRecordingContext without a context
func (c *Camera) WaitRecording(d time.Duration) error {
	return c.WaitRecordingContext(context.Background(), d)
}

// WaitRecordingContext blocks for d while the stream runs, checking for
// failures every WaitPollInterval.  The time spent is added to the
// session's record time
func (c *Camera) WaitRecordingContext(ctx context.Context, d time.Duration) error {
	s := c.sess.Load()
	if s == nil {
		return ErrNotRecording
	}
	start := time.Now()
	defer func() { s.addRecordTime(time.Since(start)) }()
	lim := rate.NewLimiter(rate.Every(c.cfg.WaitPollInterval), 1)
	for {
		if err := s.check(); err != nil {
			return err
		}
		remaining := d - time.Since(start)
		if remaining <= 0 {
			return nil
		}
		wctx, cancel := context.WithTimeout(ctx, remaining)
		err := lim.Wait(wctx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// the next token lies past the deadline
			time.Sleep(d - time.Since(start))
		}
	}
}

// IsAlive returns true while the capture goroutine runs
func (c *Camera) IsAlive() bool {
	s := c.sess.Load()
	return s != nil && s.alive()
}

// Enabled returns the run flag of the current session
func (c *Camera) Enabled() bool {
	s := c.sess.Load()
	return s != nil && s.enabled.Load()
}

// State returns the lifecycle state
func (c *Camera) State() State {
	return State(c.state.Load())
}

// Metrics returns a snapshot of the frame count and timestamps of the current
// session.  The zero value is returned when there is no session
func (c *Camera) Metrics() Metrics {
	s := c.sess.Load()
	if s == nil {
		return Metrics{}
	}
	return s.metrics()
}

// SessionID returns the ID of the current session, or the empty string
func (c *Camera) SessionID() string {
	s := c.sess.Load()
	if s == nil {
		return ""
	}
	return s.id.String()
}
