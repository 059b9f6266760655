package camera_test

import (
	"errors"
	"testing"
	"time"

	"github.com/nasa-jpl/psfscan/camera"
	"github.com/nasa-jpl/psfscan/xeneth"
)

func TestOpenFailures(t *testing.T) {
	f := newFake(4, 4, xeneth.FT16BppGray)
	c := camera.New(f, "", fastConfig())
	if err := c.Open("cam://9", false); !errors.Is(err, camera.ErrInitialization) {
		t.Errorf("expected ErrInitialization for a null handle, got %v", err)
	}
	f.set(func(f *fakeDriver) { f.uninitialised = true })
	if err := c.Open("cam://0", false); !errors.Is(err, camera.ErrInitialization) {
		t.Errorf("expected ErrInitialization for an uninitialised handle, got %v", err)
	}
	if c.IsOpen() {
		t.Error("camera open after failed init")
	}
}

func TestOpenCalibration(t *testing.T) {
	sim := xeneth.NewSim(8, 8)
	c := camera.New(sim, "xeva320.xca", fastConfig())
	if err := c.Open("cam://0", true); err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	path, corr := sim.Calibration()
	if path != "xeva320.xca" || !corr {
		t.Errorf("expected calibration with software correction, got %s %v", path, corr)
	}

	bad := camera.New(xeneth.NewSim(8, 8), "lens.bin", fastConfig())
	err := bad.Open("cam://0", false)
	if !errors.Is(err, camera.ErrCalibrationLoad) {
		t.Errorf("expected ErrCalibrationLoad got %v", err)
	}
	var code xeneth.ErrCode
	if !errors.As(err, &code) || code != xeneth.EWrongFormat {
		t.Errorf("expected E_WRONG_FORMAT inside, got %v", err)
	}
	if bad.IsOpen() {
		t.Error("camera left open after calibration failure")
	}
}

func TestCaptureFrameOnly(t *testing.T) {
	f := newFake(3, 5, xeneth.FT16BppGray)
	c := openFake(t, f)
	defer c.Close()
	cp, err := c.CaptureFrameOnly()
	if err != nil {
		t.Fatal(err)
	}
	if cp.Params.Size != 30 || len(cp.Buf) != 30 {
		t.Errorf("expected 30 bytes got %d (%d)", len(cp.Buf), cp.Params.Size)
	}
	if cp.Params.Rows != 3 || cp.Params.Cols != 5 {
		t.Errorf("expected 3x5 got %dx%d", cp.Params.Rows, cp.Params.Cols)
	}
	fr, err := cp.Frame()
	if err != nil {
		t.Fatal(err)
	}
	if fr.Dtype() != camera.Int32 {
		t.Errorf("expected int32 got %v", fr.Dtype())
	}
	// capture stays up between shots
	if _, err := c.CaptureFrameOnly(); err != nil {
		t.Fatal(err)
	}
	_, starts, _, _ := f.counts()
	if starts != 1 {
		t.Errorf("expected capture started once, got %d", starts)
	}
}

func TestCaptureFrameOnlyStartFailure(t *testing.T) {
	f := newFake(4, 4, xeneth.FT16BppGray)
	f.startCode = xeneth.EFrameGrabber
	c := openFake(t, f)
	defer c.Close()
	if _, err := c.CaptureFrameOnly(); !errors.Is(err, camera.ErrCaptureStart) {
		t.Errorf("expected ErrCaptureStart got %v", err)
	}
}

func TestCaptureFrameOnlyReadFailure(t *testing.T) {
	f := newFake(4, 4, xeneth.FT16BppGray)
	f.failAfter = 1
	f.readErr = xeneth.EPacketError
	c := openFake(t, f)
	defer c.Close()
	if _, err := c.CaptureFrameOnly(); err != nil {
		t.Fatal(err)
	}
	if _, err := c.CaptureFrameOnly(); !errors.Is(err, camera.ErrFrameRead) {
		t.Errorf("expected ErrFrameRead got %v", err)
	}
}

func TestCaptureSingleFrameDump(t *testing.T) {
	f := newFake(4, 4, xeneth.FT8BppGray)
	c := openFake(t, f)
	defer c.Close()
	cp, err := c.CaptureSingleFrame(true)
	if err != nil {
		t.Fatal(err)
	}
	frames, _, _, _ := f.counts()
	if frames != 2 {
		t.Errorf("expected a dumped frame and a kept frame, got %d reads", frames)
	}
	// the fake fills frame n with bytes n, n+1, ...; the kept one is the second
	if cp.Buf[0] != 1 {
		t.Errorf("expected the second frame to be returned, got first byte %d", cp.Buf[0])
	}
}

func TestCaptureSingleFrameRetries(t *testing.T) {
	f := newFake(4, 4, xeneth.FT16BppGray)
	f.notCapturingFor = 2
	c := camera.New(f, "", camera.Config{CaptureBackoff: 10 * time.Millisecond})
	c.Open("cam://0", false)
	defer c.Close()
	start := time.Now()
	if _, err := c.CaptureSingleFrame(false); err != nil {
		t.Fatal(err)
	}
	if el := time.Since(start); el < 20*time.Millisecond {
		t.Errorf("expected two backoff waits, took %v", el)
	}
}

func TestCaptureSingleFrameAlreadyCapturing(t *testing.T) {
	f := newFake(4, 4, xeneth.FT16BppGray)
	c := camera.New(f, "", camera.Config{CaptureBackoff: 100 * time.Millisecond})
	c.Open("cam://0", false)
	defer c.Close()
	f.set(func(f *fakeDriver) { f.capturing = true })
	start := time.Now()
	if _, err := c.CaptureSingleFrame(false); err != nil {
		t.Fatal(err)
	}
	if el := time.Since(start); el >= 100*time.Millisecond {
		t.Errorf("expected no retry wait, took %v", el)
	}
	_, starts, _, _ := f.counts()
	if starts != 0 {
		t.Errorf("expected no start call, got %d", starts)
	}
}

func TestInconsistentFrameParameters(t *testing.T) {
	f := newFake(4, 4, xeneth.FT16BppGray)
	f.size = 31
	c := openFake(t, f)
	defer c.Close()
	if _, err := c.FrameParameters(); !errors.Is(err, camera.ErrInconsistentFrame) {
		t.Errorf("expected ErrInconsistentFrame got %v", err)
	}
	if _, err := c.CaptureFrameOnly(); !errors.Is(err, camera.ErrInconsistentFrame) {
		t.Errorf("expected single shot to refuse, got %v", err)
	}
}

func TestFrameQueries(t *testing.T) {
	f := newFake(6, 10, xeneth.FT32BppGray)
	c := openFake(t, f)
	defer c.Close()
	p, err := c.FrameParameters()
	if err != nil {
		t.Fatal(err)
	}
	if p.Size != 240 || p.BytesPerPixel != 4 || p.Dtype != camera.Int64 {
		t.Errorf("unexpected parameters %+v", p)
	}
	rows, cols, _ := c.FrameDims()
	if rows != 6 || cols != 10 {
		t.Errorf("expected (6, 10) got (%d, %d)", rows, cols)
	}
	dt, _ := c.PixelDtype()
	if dt != camera.Int64 {
		t.Errorf("expected int64 got %v", dt)
	}
	closed := camera.New(f, "", fastConfig())
	if _, err := closed.FrameSize(); !errors.Is(err, camera.ErrNotOpen) {
		t.Errorf("expected ErrNotOpen got %v", err)
	}
}

func TestStreamWithSimulator(t *testing.T) {
	sim := xeneth.NewSim(16, 12)
	c := camera.New(sim, "", fastConfig())
	if err := c.Open("sim://", false); err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	p, err := c.FrameParameters()
	if err != nil {
		t.Fatal(err)
	}
	cube := camera.NewCube(p)
	c.AddHandler(cube, true)
	c.StartRecording()
	if err := c.WaitRecording(100 * time.Millisecond); err != nil {
		t.Fatal(err)
	}
	meta, err := c.StopRecording()
	if err != nil {
		t.Fatal(err)
	}
	bands := intField(t, meta, "bands")
	if cube.Len() != bands || len(cube.Timestamps()) != bands {
		t.Errorf("expected %d frames and stamps in the cube, got %d and %d", bands, cube.Len(), len(cube.Timestamps()))
	}
	if dt := intField(t, meta, "data type"); dt != 12 {
		t.Errorf("expected ENVI type 12 for 16-bit pixels, got %d", dt)
	}
}
