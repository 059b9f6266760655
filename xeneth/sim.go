package xeneth

import (
	"encoding/binary"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"
)

type simProp struct {
	num      float64
	str      string
	isStr    bool
	unit     string
	rng      string
	readOnly bool
}

// Sim is a simulated camera which implements Driver.
//
// It produces a gaussian spot on a flat background with a little noise,
// which is enough to exercise PSF tooling without hardware.
// Frames become available at the rate given by the FrameRate property,
// the peak of the spot scales with IntegrationTime.
//
// Only paths beginning with cam:// or sim:// can be opened.
type Sim struct {
	sync.Mutex

	width, height int
	ft            FrameType

	handle      Handle
	nextHandle  Handle
	initialised bool
	capturing   bool
	calibration string
	correction  bool

	props map[string]*simProp
	order []string

	due    time.Time
	frames uint64
	rng    *rand.Rand

	// StartDelay is the number of IsCapturing calls after StartCapture
	// that report false, mimicking a camera slow to spin up
	StartDelay int
	pending    int
}

// NewSim returns a simulated 16-bit camera of the given size
func NewSim(width, height int) *Sim {
	s := &Sim{
		width:      width,
		height:     height,
		ft:         FT16BppGray,
		nextHandle: 1,
		props:      map[string]*simProp{},
		rng:        rand.New(rand.NewSource(1)),
	}
	s.addProp("IntegrationTime", &simProp{num: 1000, unit: "us", rng: "1>200000"})
	s.addProp("FrameRate", &simProp{num: 100, unit: "Hz", rng: "1>400"})
	s.addProp("LowGain", &simProp{num: 0, rng: "0>1"})
	s.addProp("AutoModeUpdate", &simProp{num: 1, rng: "0>1"})
	s.addProp("ModelName", &simProp{str: "Xeva-1.7-320 (simulated)", isStr: true, readOnly: true})
	s.addProp("SerialNumber", &simProp{str: "SIM00001", isStr: true, readOnly: true})
	return s
}

func (s *Sim) addProp(name string, p *simProp) {
	s.props[name] = p
	s.order = append(s.order, name)
}

// SetFrameType changes the native frame type of the simulated sensor
func (s *Sim) SetFrameType(ft FrameType) {
	s.Lock()
	defer s.Unlock()
	s.ft = ft
}

// Frames returns the number of frames delivered since the sim was created
func (s *Sim) Frames() uint64 {
	s.Lock()
	defer s.Unlock()
	return s.frames
}

// Calibration returns the path of the last calibration loaded and whether
// software correction was requested with it
func (s *Sim) Calibration() (string, bool) {
	s.Lock()
	defer s.Unlock()
	return s.calibration, s.correction
}

func (s *Sim) valid(h Handle) bool {
	return h != 0 && h == s.handle && s.initialised
}

func (s *Sim) period() time.Duration {
	fps := s.props["FrameRate"].num
	if fps <= 0 {
		fps = 1
	}
	return time.Duration(float64(time.Second) / fps)
}

func (s *Sim) OpenCamera(path string, flags uint32) Handle {
	s.Lock()
	defer s.Unlock()
	if !strings.HasPrefix(path, "cam://") && !strings.HasPrefix(path, "sim://") {
		return 0
	}
	s.handle = s.nextHandle
	s.nextHandle++
	s.initialised = true
	return s.handle
}

func (s *Sim) CloseCamera(h Handle) {
	s.Lock()
	defer s.Unlock()
	if h == s.handle {
		s.initialised = false
		s.capturing = false
		s.handle = 0
	}
}

func (s *Sim) IsInitialised(h Handle) bool {
	s.Lock()
	defer s.Unlock()
	return s.valid(h)
}

func (s *Sim) LoadCalibration(h Handle, path string, flags uint32) ErrCode {
	s.Lock()
	defer s.Unlock()
	if !s.valid(h) {
		return EInvalidHandle
	}
	if !strings.HasSuffix(path, ".xca") {
		return EWrongFormat
	}
	s.calibration = path
	s.correction = flags&XLCStartSoftwareCorrection != 0
	return IOK
}

func (s *Sim) StartCapture(h Handle) ErrCode {
	s.Lock()
	defer s.Unlock()
	if !s.valid(h) {
		return EInvalidHandle
	}
	if !s.capturing {
		s.capturing = true
		s.pending = s.StartDelay
		s.due = time.Now().Add(s.period())
	}
	return IOK
}

func (s *Sim) StopCapture(h Handle) ErrCode {
	s.Lock()
	defer s.Unlock()
	if !s.valid(h) {
		return EInvalidHandle
	}
	s.capturing = false
	return IOK
}

func (s *Sim) IsCapturing(h Handle) bool {
	s.Lock()
	defer s.Unlock()
	if !s.valid(h) || !s.capturing {
		return false
	}
	if s.pending > 0 {
		s.pending--
		return false
	}
	return true
}

func (s *Sim) GetFrameSize(h Handle) int {
	s.Lock()
	defer s.Unlock()
	return s.width * s.height * PixelSize(s.ft)
}

func (s *Sim) GetWidth(h Handle) int {
	s.Lock()
	defer s.Unlock()
	return s.width
}

func (s *Sim) GetHeight(h Handle) int {
	s.Lock()
	defer s.Unlock()
	return s.height
}

func (s *Sim) GetFrameType(h Handle) FrameType {
	s.Lock()
	defer s.Unlock()
	return s.ft
}

func (s *Sim) GetFrame(h Handle, ft FrameType, flags uint32, buf []byte) ErrCode {
	for {
		s.Lock()
		if !s.valid(h) {
			s.Unlock()
			return EInvalidHandle
		}
		if !s.capturing {
			s.Unlock()
			return ECapStop
		}
		if ft != FTNative && ft != s.ft {
			s.Unlock()
			return ENoConversion
		}
		bpp := PixelSize(s.ft)
		if bpp == 0 {
			s.Unlock()
			return EWrongFormat
		}
		if len(buf) < s.width*s.height*bpp {
			s.Unlock()
			return EWrongSize
		}
		now := time.Now()
		if wait := s.due.Sub(now); wait > 0 {
			s.Unlock()
			if flags&XGFBlocking == 0 {
				return ENoFrame
			}
			time.Sleep(wait)
			continue
		}
		s.render(buf, bpp)
		s.frames++
		s.due = now.Add(s.period())
		s.Unlock()
		return IOK
	}
}

// render draws the spot into buf.  Must hold the lock.
func (s *Sim) render(buf []byte, bpp int) {
	const (
		background = 1000.
		noise      = 20.
		sigma      = 2.5
	)
	maxval := float64(uint64(1)<<(8*uint(bpp)) - 1)
	peak := s.props["IntegrationTime"].num * 20
	if s.props["LowGain"].num != 0 {
		peak /= 4
	}
	cx := float64(s.width)/2 + s.rng.Float64() - 0.5
	cy := float64(s.height)/2 + s.rng.Float64() - 0.5
	scale := 1.
	if bpp == 1 {
		scale = 1. / 256
	}
	for y := 0; y < s.height; y++ {
		for x := 0; x < s.width; x++ {
			dx, dy := float64(x)-cx, float64(y)-cy
			v := background + peak*math.Exp(-(dx*dx+dy*dy)/(2*sigma*sigma)) + s.rng.NormFloat64()*noise
			v *= scale
			if v < 0 {
				v = 0
			} else if v > maxval {
				v = maxval
			}
			off := (y*s.width + x) * bpp
			switch bpp {
			case 1:
				buf[off] = byte(v)
			case 2:
				binary.LittleEndian.PutUint16(buf[off:], uint16(v))
			case 4:
				binary.LittleEndian.PutUint32(buf[off:], uint32(v))
			}
		}
	}
}

func (s *Sim) GetPropertyCount(h Handle) int {
	s.Lock()
	defer s.Unlock()
	return len(s.order)
}

func (s *Sim) GetPropertyName(h Handle, idx int) (string, ErrCode) {
	s.Lock()
	defer s.Unlock()
	if idx < 0 || idx >= len(s.order) {
		return "", EOutOfRange
	}
	return s.order[idx], IOK
}

func (s *Sim) prop(h Handle, name string) (*simProp, ErrCode) {
	if !s.valid(h) {
		return nil, EInvalidHandle
	}
	p, ok := s.props[name]
	if !ok {
		return nil, ENotFound
	}
	return p, IOK
}

func (s *Sim) GetPropertyRange(h Handle, name string) (string, ErrCode) {
	s.Lock()
	defer s.Unlock()
	p, code := s.prop(h, name)
	if code != IOK {
		return "", code
	}
	return p.rng, IOK
}

func (s *Sim) GetPropertyUnit(h Handle, name string) (string, ErrCode) {
	s.Lock()
	defer s.Unlock()
	p, code := s.prop(h, name)
	if code != IOK {
		return "", code
	}
	return p.unit, IOK
}

func (s *Sim) GetPropertyValueL(h Handle, name string) (int64, ErrCode) {
	f, code := s.GetPropertyValueF(h, name)
	return int64(f), code
}

func (s *Sim) SetPropertyValueL(h Handle, name string, v int64, unit string) ErrCode {
	return s.SetPropertyValueF(h, name, float64(v), unit)
}

func (s *Sim) GetPropertyValueF(h Handle, name string) (float64, ErrCode) {
	s.Lock()
	defer s.Unlock()
	p, code := s.prop(h, name)
	if code != IOK {
		return 0, code
	}
	if p.isStr {
		return 0, EWrongFormat
	}
	return p.num, IOK
}

func (s *Sim) SetPropertyValueF(h Handle, name string, v float64, unit string) ErrCode {
	s.Lock()
	defer s.Unlock()
	p, code := s.prop(h, name)
	if code != IOK {
		return code
	}
	if p.isStr {
		return EWrongFormat
	}
	if p.readOnly {
		return ENotSupported
	}
	p.num = v
	return IOK
}

func (s *Sim) GetPropertyValue(h Handle, name string) (string, ErrCode) {
	s.Lock()
	defer s.Unlock()
	p, code := s.prop(h, name)
	if code != IOK {
		return "", code
	}
	if !p.isStr {
		return "", EWrongFormat
	}
	return p.str, IOK
}

func (s *Sim) SetPropertyValue(h Handle, name, v, unit string) ErrCode {
	s.Lock()
	defer s.Unlock()
	p, code := s.prop(h, name)
	if code != IOK {
		return code
	}
	if !p.isStr {
		return EWrongFormat
	}
	if p.readOnly {
		return ENotSupported
	}
	p.str = v
	return IOK
}
