package camera

import (
	"errors"
	"fmt"
)

var (
	// ErrInitialization is returned when the SDK hands back a null or uninitialised handle
	ErrInitialization = errors.New("camera initialization failed")

	// ErrCalibrationLoad is returned when the calibration pack is rejected
	ErrCalibrationLoad = errors.New("calibration load failed")

	// ErrCaptureStart is returned when capture could not be started or never reported as running
	ErrCaptureStart = errors.New("starting capture failed")

	// ErrFrameRead is returned for any frame read error other than "no frame yet"
	ErrFrameRead = errors.New("error while getting frame")

	// ErrUnsupportedPixelSize is returned for pixel widths other than 1, 2, or 4 bytes
	ErrUnsupportedPixelSize = errors.New("unsupported pixel size")

	// ErrRegistryBusy is returned when handlers are changed while the capture goroutine is alive
	ErrRegistryBusy = errors.New("can't change handlers while the capture goroutine is alive")

	// ErrThreadTermination is returned when the capture goroutine does not exit in time
	ErrThreadTermination = errors.New("capture goroutine did not stop")

	// ErrInconsistentFrame is returned when the frame size reported by the camera
	// is not rows*cols*bytes per pixel
	ErrInconsistentFrame = errors.New("frame size does not match dimensions and pixel size")

	// ErrShapeMismatch is returned when a buffer does not hold exactly rows*cols pixels
	ErrShapeMismatch = errors.New("buffer length does not match dimensions")

	// ErrBusy is returned by operations which may not run while streaming
	ErrBusy = errors.New("camera is streaming")

	// ErrNotOpen is returned when there is no camera handle
	ErrNotOpen = errors.New("camera is not open")

	// ErrAlreadyRecording is returned by StartRecording when a session exists
	ErrAlreadyRecording = errors.New("recording session already exists, stop it first")

	// ErrNotRecording is returned when there is no session to stop or wait on
	ErrNotRecording = errors.New("not recording")
)

// PixelSizeError reports the pixel width that could not be decoded.
// It matches ErrUnsupportedPixelSize with errors.Is
type PixelSizeError struct {
	Bytes int
}

func (e PixelSizeError) Error() string {
	return fmt.Sprintf("unsupported pixel size %d", e.Bytes)
}

// Is makes errors.Is(err, ErrUnsupportedPixelSize) true
func (e PixelSizeError) Is(target error) bool {
	return target == ErrUnsupportedPixelSize
}

// enrich prefixes an error with the SDK function that produced it
func enrich(err error, fn string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fn, err)
}

// classify marks an SDK error with its kind; both match with errors.Is
func classify(kind error, fn string, err error) error {
	return fmt.Errorf("%w: %w", kind, enrich(err, fn))
}
