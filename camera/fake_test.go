package camera_test

import (
	"sync"
	"time"

	"github.com/nasa-jpl/psfscan/xeneth"
)

const fakeHandle xeneth.Handle = 7

// fakeDriver is a scripted camera for exercising the engine
type fakeDriver struct {
	mu sync.Mutex

	rows, cols int
	ft         xeneth.FrameType
	size       int // reported frame size, computed if zero

	open          bool
	uninitialised bool
	capturing     bool

	// notCapturingFor is the number of IsCapturing calls after a start that say false
	notCapturingFor int

	startCode, stopCode, calCode xeneth.ErrCode

	// frame delivery script
	noFrameUntil time.Time
	maxFrames    int // 0 is unlimited
	failAfter    int // frames before readErr is returned, 0 is never
	readErr      xeneth.ErrCode
	stall        bool // report no frame forever
	period       time.Duration
	last         time.Time

	frames                                     int
	startCalls, stopCalls, closeCalls, getCalls int

	props map[string]float64
	strs  map[string]string
}

func newFake(rows, cols int, ft xeneth.FrameType) *fakeDriver {
	return &fakeDriver{
		rows:  rows,
		cols:  cols,
		ft:    ft,
		props: map[string]float64{"IntegrationTime": 1000, "LowGain": 0},
		strs:  map[string]string{"ModelName": "fake"},
	}
}

func (f *fakeDriver) set(fn func(f *fakeDriver)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeDriver) counts() (frames, starts, stops, closes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frames, f.startCalls, f.stopCalls, f.closeCalls
}

func (f *fakeDriver) OpenCamera(path string, flags uint32) xeneth.Handle {
	f.mu.Lock()
	defer f.mu.Unlock()
	if path != "cam://0" {
		return 0
	}
	f.open = true
	return fakeHandle
}

func (f *fakeDriver) CloseCamera(h xeneth.Handle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	f.open = false
	f.capturing = false
}

func (f *fakeDriver) IsInitialised(h xeneth.Handle) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return h == fakeHandle && f.open && !f.uninitialised
}

func (f *fakeDriver) LoadCalibration(h xeneth.Handle, path string, flags uint32) xeneth.ErrCode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calCode
}

func (f *fakeDriver) StartCapture(h xeneth.Handle) xeneth.ErrCode {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCalls++
	if f.startCode != xeneth.IOK {
		return f.startCode
	}
	f.capturing = true
	return xeneth.IOK
}

func (f *fakeDriver) StopCapture(h xeneth.Handle) xeneth.ErrCode {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
	f.capturing = false
	return f.stopCode
}

func (f *fakeDriver) IsCapturing(h xeneth.Handle) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.capturing {
		return false
	}
	if f.notCapturingFor > 0 {
		f.notCapturingFor--
		return false
	}
	return true
}

func (f *fakeDriver) GetFrameSize(h xeneth.Handle) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.size != 0 {
		return f.size
	}
	return f.rows * f.cols * xeneth.PixelSize(f.ft)
}

func (f *fakeDriver) GetWidth(h xeneth.Handle) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cols
}

func (f *fakeDriver) GetHeight(h xeneth.Handle) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows
}

func (f *fakeDriver) GetFrameType(h xeneth.Handle) xeneth.FrameType {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ft
}

// poll is one non-blocking read attempt.  Must hold mu
func (f *fakeDriver) poll(buf []byte) xeneth.ErrCode {
	f.getCalls++
	if !f.open {
		return xeneth.EInvalidHandle
	}
	if !f.capturing {
		return xeneth.ECapStop
	}
	now := time.Now()
	if f.stall || now.Before(f.noFrameUntil) {
		return xeneth.ENoFrame
	}
	if f.maxFrames > 0 && f.frames >= f.maxFrames {
		return xeneth.ENoFrame
	}
	if f.period > 0 && now.Sub(f.last) < f.period {
		return xeneth.ENoFrame
	}
	if f.failAfter > 0 && f.frames >= f.failAfter {
		return f.readErr
	}
	for i := range buf {
		buf[i] = byte(f.frames + i)
	}
	f.frames++
	f.last = now
	return xeneth.IOK
}

func (f *fakeDriver) GetFrame(h xeneth.Handle, ft xeneth.FrameType, flags uint32, buf []byte) xeneth.ErrCode {
	deadline := time.Now().Add(2 * time.Second)
	for {
		f.mu.Lock()
		code := f.poll(buf)
		f.mu.Unlock()
		if code != xeneth.ENoFrame || flags&xeneth.XGFBlocking == 0 {
			return code
		}
		if time.Now().After(deadline) {
			return xeneth.ETimeout
		}
		time.Sleep(time.Millisecond)
	}
}

func (f *fakeDriver) GetPropertyCount(h xeneth.Handle) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.props) + len(f.strs)
}

func (f *fakeDriver) GetPropertyName(h xeneth.Handle, idx int) (string, xeneth.ErrCode) {
	names := []string{"IntegrationTime", "LowGain", "ModelName"}
	if idx < 0 || idx >= len(names) {
		return "", xeneth.EOutOfRange
	}
	return names[idx], xeneth.IOK
}

func (f *fakeDriver) GetPropertyRange(h xeneth.Handle, name string) (string, xeneth.ErrCode) {
	return "0>100000", xeneth.IOK
}

func (f *fakeDriver) GetPropertyUnit(h xeneth.Handle, name string) (string, xeneth.ErrCode) {
	if name == "IntegrationTime" {
		return "us", xeneth.IOK
	}
	return "", xeneth.IOK
}

func (f *fakeDriver) GetPropertyValueL(h xeneth.Handle, name string) (int64, xeneth.ErrCode) {
	v, code := f.GetPropertyValueF(h, name)
	return int64(v), code
}

func (f *fakeDriver) SetPropertyValueL(h xeneth.Handle, name string, v int64, unit string) xeneth.ErrCode {
	return f.SetPropertyValueF(h, name, float64(v), unit)
}

func (f *fakeDriver) GetPropertyValueF(h xeneth.Handle, name string) (float64, xeneth.ErrCode) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.props[name]
	if !ok {
		return 0, xeneth.ENotFound
	}
	return v, xeneth.IOK
}

func (f *fakeDriver) SetPropertyValueF(h xeneth.Handle, name string, v float64, unit string) xeneth.ErrCode {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.props[name]; !ok {
		return xeneth.ENotFound
	}
	f.props[name] = v
	return xeneth.IOK
}

func (f *fakeDriver) GetPropertyValue(h xeneth.Handle, name string) (string, xeneth.ErrCode) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.strs[name]
	if !ok {
		return "", xeneth.ENotFound
	}
	return v, xeneth.IOK
}

func (f *fakeDriver) SetPropertyValue(h xeneth.Handle, name, v, unit string) xeneth.ErrCode {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.strs[name]; !ok {
		return xeneth.ENotFound
	}
	f.strs[name] = v
	return xeneth.IOK
}

// write is one call a handler received
type write struct {
	id  int
	len int
	hdr []byte
}

// journal records writes from several handlers in the order they happened
type journal struct {
	mu     sync.Mutex
	writes []write
}

func (j *journal) handler(id int) *journalWriter {
	return &journalWriter{j: j, id: id}
}

func (j *journal) all() []write {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]write(nil), j.writes...)
}

func (j *journal) count(id int) int {
	n := 0
	for _, w := range j.all() {
		if w.id == id {
			n++
		}
	}
	return n
}

type journalWriter struct {
	j  *journal
	id int
}

func (w *journalWriter) Write(p []byte) (int, error) {
	w.j.mu.Lock()
	defer w.j.mu.Unlock()
	rec := write{id: w.id, len: len(p)}
	if len(p) == 4 {
		rec.hdr = append([]byte(nil), p...)
	}
	w.j.writes = append(w.j.writes, rec)
	return len(p), nil
}
