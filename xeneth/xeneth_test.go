package xeneth

import (
	"encoding/binary"
	"errors"
	"fmt"
	"testing"
	"time"
)

func ExampleErrCode_Error() {
	fmt.Println(ENoFrame.Error())
	fmt.Println(ErrCode(42).Error())
	// Output:
	// 10008 - E_NO_FRAME
	// 42 - UNKNOWN_ERROR_CODE
}

func TestErrorOKIsNil(t *testing.T) {
	if err := Error(IOK); err != nil {
		t.Errorf("expected nil for I_OK, got %v", err)
	}
	err := Error(ETimeout)
	var code ErrCode
	if !errors.As(err, &code) || code != ETimeout {
		t.Errorf("expected E_TIMEOUT to be recoverable with errors.As, got %v", err)
	}
}

func TestPixelSizeGapAndBounds(t *testing.T) {
	cases := map[FrameType]int{
		FTNative:    0,
		FT8BppGray:  1,
		FT16BppGray: 2,
		FT32BppGray: 4,
		FT32BppBGR:  4,
		FTUnknown:   0,
		FrameType(99): 0,
	}
	for ft, expected := range cases {
		if got := PixelSize(ft); got != expected {
			t.Errorf("expected %d bytes for %v got %d", expected, ft, got)
		}
	}
}

func TestSimOpenRejectsUnknownPath(t *testing.T) {
	s := NewSim(8, 4)
	if h := s.OpenCamera("gev://10.0.0.1", 0); h != 0 {
		t.Errorf("expected zero handle for unknown scheme, got %d", h)
	}
	h := s.OpenCamera("cam://0", 0)
	if h == 0 || !s.IsInitialised(h) {
		t.Fatalf("expected a live handle, got %d", h)
	}
	s.CloseCamera(h)
	if s.IsInitialised(h) {
		t.Error("handle still initialised after close")
	}
}

func TestSimCalibration(t *testing.T) {
	s := NewSim(8, 4)
	h := s.OpenCamera("cam://0", 0)
	if code := s.LoadCalibration(h, "lens.txt", 0); code != EWrongFormat {
		t.Errorf("expected E_WRONG_FORMAT for a non-xca file, got %v", code)
	}
	if code := s.LoadCalibration(h, "xeva.xca", XLCStartSoftwareCorrection); code != IOK {
		t.Fatalf("expected I_OK, got %v", code)
	}
	path, corr := s.Calibration()
	if path != "xeva.xca" || !corr {
		t.Errorf("expected xeva.xca with correction, got %s %v", path, corr)
	}
}

func TestSimNonBlockingThenBlocking(t *testing.T) {
	s := NewSim(16, 8)
	h := s.OpenCamera("cam://0", 0)
	if err := Error(s.SetPropertyValueF(h, "FrameRate", 20, "Hz")); err != nil {
		t.Fatal(err)
	}
	if err := Error(s.StartCapture(h)); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, s.GetFrameSize(h))
	if code := s.GetFrame(h, FTNative, XGFNonBlocking, buf); code != ENoFrame {
		t.Errorf("expected E_NO_FRAME right after start, got %v", code)
	}
	start := time.Now()
	if code := s.GetFrame(h, FTNative, XGFBlocking, buf); code != IOK {
		t.Fatalf("expected I_OK from blocking read, got %v", code)
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Error("blocking read returned before the frame period elapsed")
	}
	center := binary.LittleEndian.Uint16(buf[(4*16+8)*2:])
	corner := binary.LittleEndian.Uint16(buf[0:])
	if center <= corner {
		t.Errorf("expected spot at center brighter than corner, got %d <= %d", center, corner)
	}
	if s.Frames() != 1 {
		t.Errorf("expected 1 frame delivered got %d", s.Frames())
	}
}

func TestSimStartDelay(t *testing.T) {
	s := NewSim(4, 4)
	s.StartDelay = 2
	h := s.OpenCamera("sim://", 0)
	s.StartCapture(h)
	got := []bool{s.IsCapturing(h), s.IsCapturing(h), s.IsCapturing(h)}
	expected := []bool{false, false, true}
	for i := range got {
		if got[i] != expected[i] {
			t.Errorf("call %d: expected %v got %v", i, expected[i], got[i])
		}
	}
}

func TestSimProperties(t *testing.T) {
	s := NewSim(4, 4)
	h := s.OpenCamera("cam://0", 0)
	n := s.GetPropertyCount(h)
	if n == 0 {
		t.Fatal("expected the sim to expose properties")
	}
	name, code := s.GetPropertyName(h, 0)
	if code != IOK || name != "IntegrationTime" {
		t.Errorf("expected IntegrationTime at index 0, got %s %v", name, code)
	}
	if _, code := s.GetPropertyName(h, n); code != EOutOfRange {
		t.Errorf("expected E_OUT_OF_RANGE past the end, got %v", code)
	}
	if code := s.SetPropertyValueL(h, "IntegrationTime", 250, "us"); code != IOK {
		t.Errorf("expected I_OK, got %v", code)
	}
	if v, _ := s.GetPropertyValueL(h, "IntegrationTime"); v != 250 {
		t.Errorf("expected 250 got %d", v)
	}
	if code := s.SetPropertyValue(h, "ModelName", "x", ""); code != ENotSupported {
		t.Errorf("expected read only property to refuse, got %v", code)
	}
	if _, code := s.GetPropertyValue(h, "Nope"); code != ENotFound {
		t.Errorf("expected E_NOT_FOUND, got %v", code)
	}
	unit, _ := s.GetPropertyUnit(h, "FrameRate")
	if unit != "Hz" {
		t.Errorf("expected Hz got %s", unit)
	}
}
