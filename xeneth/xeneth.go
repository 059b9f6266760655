/*Package xeneth describes the function surface of the Xenics Xeneth SDK
used to control XevaCam and related infrared cameras.

The SDK is consumed through the Driver interface.  A cgo binding to the
real library is compiled in with the xeneth build tag; without it, only
the in-process simulator (Sim) is available.

The Xeneth API is handle based.  A handle of zero means no camera; every
other call takes the handle returned by OpenCamera.  Calls that can fail
return an ErrCode; I_OK is the only success value.
*/
package xeneth

import (
	"fmt"
)

// Handle is an opaque identifier for an open camera session.  Zero is invalid.
type Handle int32

// ErrCode is an error code returned by the SDK.
type ErrCode uint32

// codes returned by the SDK.  IDirty is informational and is not treated as success by Error.
const (
	IOK              ErrCode = 0
	IDirty           ErrCode = 1
	EBug             ErrCode = 10000
	ENoInit          ErrCode = 10001
	ELogicLoadFailed ErrCode = 10002
	EInterfaceError  ErrCode = 10003
	EOutOfRange      ErrCode = 10004
	ENotSupported    ErrCode = 10005
	ENotFound        ErrCode = 10006
	EFilterDone      ErrCode = 10007
	ENoFrame         ErrCode = 10008
	ESaveError       ErrCode = 10009
	EMismatched      ErrCode = 10010
	EBusy            ErrCode = 10011
	EInvalidHandle   ErrCode = 10012
	ETimeout         ErrCode = 10013
	EFrameGrabber    ErrCode = 10014
	ENoConversion    ErrCode = 10015
	EFilterSkipFrame ErrCode = 10016
	EWrongVersion    ErrCode = 10017
	EPacketError     ErrCode = 10018
	EWrongFormat     ErrCode = 10019
	EWrongSize       ErrCode = 10020
	ECapStop         ErrCode = 10021
	EOutOfMemory     ErrCode = 10022
)

var (
	// ErrCodes maps error codes to the names used in the C headers
	ErrCodes = map[ErrCode]string{
		IOK:              "I_OK",
		IDirty:           "I_DIRTY",
		EBug:             "E_BUG",
		ENoInit:          "E_NOINIT",
		ELogicLoadFailed: "E_LOGICLOADFAILED",
		EInterfaceError:  "E_INTERFACE_ERROR",
		EOutOfRange:      "E_OUT_OF_RANGE",
		ENotSupported:    "E_NOT_SUPPORTED",
		ENotFound:        "E_NOT_FOUND",
		EFilterDone:      "E_FILTER_DONE",
		ENoFrame:         "E_NO_FRAME",
		ESaveError:       "E_SAVE_ERROR",
		EMismatched:      "E_MISMATCHED",
		EBusy:            "E_BUSY",
		EInvalidHandle:   "E_INVALID_HANDLE",
		ETimeout:         "E_TIMEOUT",
		EFrameGrabber:    "E_FRAMEGRABBER",
		ENoConversion:    "E_NO_CONVERSION",
		EFilterSkipFrame: "E_FILTER_SKIP_FRAME",
		EWrongVersion:    "E_WRONG_VERSION",
		EPacketError:     "E_PACKET_ERROR",
		EWrongFormat:     "E_WRONG_FORMAT",
		EWrongSize:       "E_WRONG_SIZE",
		ECapStop:         "E_CAPSTOP",
		EOutOfMemory:     "E_OUT_OF_MEMORY",
	}
)

func (e ErrCode) Error() string {
	if s, ok := ErrCodes[e]; ok {
		return fmt.Sprintf("%d - %s", uint32(e), s)
	}
	return fmt.Sprintf("%d - UNKNOWN_ERROR_CODE", uint32(e))
}

// Error converts a return code into a Go error.  I_OK is nil, everything else is an ErrCode
func Error(code ErrCode) error {
	if code == IOK {
		return nil
	}
	return code
}

// FrameType enumerates the pixel encodings the SDK can deliver
type FrameType int

// frame types, in SDK order
const (
	FTUnknown FrameType = iota - 1
	FTNative
	FT8BppGray
	FT16BppGray
	FT32BppGray
	FT32BppRGBA
	FT32BppRGB
	FT32BppBGRA
	FT32BppBGR
)

// PixelSizes is the number of bytes per pixel, indexed by FrameType.
// FTNative has no intrinsic size; ask the camera for its frame type instead.
var PixelSizes = [...]int{
	FTNative:    0,
	FT8BppGray:  1,
	FT16BppGray: 2,
	FT32BppGray: 4,
	FT32BppRGBA: 4,
	FT32BppRGB:  4,
	FT32BppBGRA: 4,
	FT32BppBGR:  4,
}

// PixelSize returns the number of bytes in one pixel of frame type ft,
// or zero if the type is unknown
func PixelSize(ft FrameType) int {
	if ft < 0 || int(ft) >= len(PixelSizes) {
		return 0
	}
	return PixelSizes[ft]
}

func (ft FrameType) String() string {
	switch ft {
	case FTNative:
		return "FT_NATIVE"
	case FT8BppGray:
		return "FT_8_BPP_GRAY"
	case FT16BppGray:
		return "FT_16_BPP_GRAY"
	case FT32BppGray:
		return "FT_32_BPP_GRAY"
	case FT32BppRGBA:
		return "FT_32_BPP_RGBA"
	case FT32BppRGB:
		return "FT_32_BPP_RGB"
	case FT32BppBGRA:
		return "FT_32_BPP_BGRA"
	case FT32BppBGR:
		return "FT_32_BPP_BGR"
	default:
		return "FT_UNKNOWN"
	}
}

const (
	// XGFNonBlocking makes GetFrame return ENoFrame immediately when no frame is ready
	XGFNonBlocking uint32 = 0

	// XGFBlocking makes GetFrame wait for the next frame
	XGFBlocking uint32 = 1

	// XGFNoConversion skips conversion to the requested frame type
	XGFNoConversion uint32 = 2

	// XLCStartSoftwareCorrection enables software correction when loading a calibration pack
	XLCStartSoftwareCorrection uint32 = 1
)

// Driver is the set of SDK calls used to run a camera.
//
// Implementations must tolerate being called from more than one goroutine,
// the SDK itself documents its property and size queries as reentrant.
// Start, stop and frame reads are not to be interleaved by callers.
type Driver interface {
	// OpenCamera opens the camera at path (e.g. cam://0) and returns its handle,
	// or zero on failure.  flags is reserved and should be zero
	OpenCamera(path string, flags uint32) Handle

	// CloseCamera releases the handle
	CloseCamera(Handle)

	// IsInitialised reports if the handle refers to a usable camera
	IsInitialised(Handle) bool

	// LoadCalibration loads a calibration pack (.xca)
	LoadCalibration(h Handle, path string, flags uint32) ErrCode

	// StartCapture begins acquisition
	StartCapture(Handle) ErrCode

	// StopCapture ends acquisition
	StopCapture(Handle) ErrCode

	// IsCapturing reports if acquisition is active
	IsCapturing(Handle) bool

	// GetFrameSize returns the size of one native frame in bytes
	GetFrameSize(Handle) int

	// GetWidth returns the frame width in pixels
	GetWidth(Handle) int

	// GetHeight returns the frame height in pixels
	GetHeight(Handle) int

	// GetFrameType returns the native frame type
	GetFrameType(Handle) FrameType

	// GetFrame reads one frame into buf.  With XGFBlocking it waits for a frame,
	// otherwise it returns ENoFrame when none is ready
	GetFrame(h Handle, ft FrameType, flags uint32, buf []byte) ErrCode

	// GetPropertyCount returns the number of properties the camera exposes
	GetPropertyCount(Handle) int

	// GetPropertyName returns the name of the property at idx
	GetPropertyName(h Handle, idx int) (string, ErrCode)

	// GetPropertyRange returns the valid range of a property, as text
	GetPropertyRange(h Handle, name string) (string, ErrCode)

	// GetPropertyUnit returns the unit of a property
	GetPropertyUnit(h Handle, name string) (string, ErrCode)

	GetPropertyValueL(h Handle, name string) (int64, ErrCode)
	SetPropertyValueL(h Handle, name string, v int64, unit string) ErrCode
	GetPropertyValueF(h Handle, name string) (float64, ErrCode)
	SetPropertyValueF(h Handle, name string, v float64, unit string) ErrCode
	GetPropertyValue(h Handle, name string) (string, ErrCode)
	SetPropertyValue(h Handle, name, v, unit string) ErrCode
}
