//go:build xeneth
// +build xeneth

package xeneth

/*
#cgo CFLAGS: -I/usr/share/xeneth/Include
#cgo LDFLAGS: -L/usr/lib -lxeneth
#include <stdlib.h>
#include <XCamera.h>
*/
import "C"

import (
	"unsafe"
)

// maxStr is the size of buffers handed to the SDK for string results
const maxStr = 256

// Lib is the Driver backed by libxeneth.  It has no state of its own
type Lib struct{}

// ErrorString asks the SDK for the description of an error code
func ErrorString(code ErrCode) string {
	buf := (*C.char)(C.malloc(maxStr))
	defer C.free(unsafe.Pointer(buf))
	C.XC_ErrorToString(C.ErrCode(code), buf, maxStr)
	return C.GoString(buf)
}

func (Lib) OpenCamera(path string, flags uint32) Handle {
	cs := C.CString(path)
	defer C.free(unsafe.Pointer(cs))
	return Handle(C.XC_OpenCamera(cs, nil, nil))
}

func (Lib) CloseCamera(h Handle) {
	C.XC_CloseCamera(C.XCHANDLE(h))
}

func (Lib) IsInitialised(h Handle) bool {
	return C.XC_IsInitialised(C.XCHANDLE(h)) != 0
}

func (Lib) LoadCalibration(h Handle, path string, flags uint32) ErrCode {
	cs := C.CString(path)
	defer C.free(unsafe.Pointer(cs))
	return ErrCode(C.XC_LoadCalibration(C.XCHANDLE(h), cs, C.dword(flags)))
}

func (Lib) StartCapture(h Handle) ErrCode {
	return ErrCode(C.XC_StartCapture(C.XCHANDLE(h)))
}

func (Lib) StopCapture(h Handle) ErrCode {
	return ErrCode(C.XC_StopCapture(C.XCHANDLE(h)))
}

func (Lib) IsCapturing(h Handle) bool {
	return C.XC_IsCapturing(C.XCHANDLE(h)) != 0
}

func (Lib) GetFrameSize(h Handle) int {
	return int(C.XC_GetFrameSize(C.XCHANDLE(h)))
}

func (Lib) GetWidth(h Handle) int {
	return int(C.XC_GetWidth(C.XCHANDLE(h)))
}

func (Lib) GetHeight(h Handle) int {
	return int(C.XC_GetHeight(C.XCHANDLE(h)))
}

func (Lib) GetFrameType(h Handle) FrameType {
	return FrameType(C.XC_GetFrameType(C.XCHANDLE(h)))
}

func (Lib) GetFrame(h Handle, ft FrameType, flags uint32, buf []byte) ErrCode {
	if len(buf) == 0 {
		return EWrongSize
	}
	return ErrCode(C.XC_GetFrame(C.XCHANDLE(h), C.FrameType(ft), C.dword(flags),
		unsafe.Pointer(&buf[0]), C.dword(len(buf))))
}

func (Lib) GetPropertyCount(h Handle) int {
	return int(C.XC_GetPropertyCount(C.XCHANDLE(h)))
}

func (Lib) GetPropertyName(h Handle, idx int) (string, ErrCode) {
	buf := (*C.char)(C.malloc(maxStr))
	defer C.free(unsafe.Pointer(buf))
	code := ErrCode(C.XC_GetPropertyName(C.XCHANDLE(h), C.int(idx), buf, maxStr))
	return C.GoString(buf), code
}

// getString calls one of the SDK's property-to-string functions
func getString(h Handle, name string, fn func(C.XCHANDLE, *C.char, *C.char, C.int) C.ErrCode) (string, ErrCode) {
	cs := C.CString(name)
	defer C.free(unsafe.Pointer(cs))
	buf := (*C.char)(C.malloc(maxStr))
	defer C.free(unsafe.Pointer(buf))
	code := ErrCode(fn(C.XCHANDLE(h), cs, buf, maxStr))
	return C.GoString(buf), code
}

func (Lib) GetPropertyRange(h Handle, name string) (string, ErrCode) {
	return getString(h, name, func(h C.XCHANDLE, p, out *C.char, n C.int) C.ErrCode {
		return C.XC_GetPropertyRange(h, p, out, n)
	})
}

func (Lib) GetPropertyUnit(h Handle, name string) (string, ErrCode) {
	return getString(h, name, func(h C.XCHANDLE, p, out *C.char, n C.int) C.ErrCode {
		return C.XC_GetPropertyUnit(h, p, out, n)
	})
}

func (Lib) GetPropertyValue(h Handle, name string) (string, ErrCode) {
	return getString(h, name, func(h C.XCHANDLE, p, out *C.char, n C.int) C.ErrCode {
		return C.XC_GetPropertyValue(h, p, out, n)
	})
}

func (Lib) GetPropertyValueL(h Handle, name string) (int64, ErrCode) {
	cs := C.CString(name)
	defer C.free(unsafe.Pointer(cs))
	var v C.long
	code := ErrCode(C.XC_GetPropertyValueL(C.XCHANDLE(h), cs, &v))
	return int64(v), code
}

func (Lib) SetPropertyValueL(h Handle, name string, v int64, unit string) ErrCode {
	cs := C.CString(name)
	defer C.free(unsafe.Pointer(cs))
	cu := C.CString(unit)
	defer C.free(unsafe.Pointer(cu))
	return ErrCode(C.XC_SetPropertyValueL(C.XCHANDLE(h), cs, C.long(v), cu))
}

func (Lib) GetPropertyValueF(h Handle, name string) (float64, ErrCode) {
	cs := C.CString(name)
	defer C.free(unsafe.Pointer(cs))
	var v C.double
	code := ErrCode(C.XC_GetPropertyValueF(C.XCHANDLE(h), cs, &v))
	return float64(v), code
}

func (Lib) SetPropertyValueF(h Handle, name string, v float64, unit string) ErrCode {
	cs := C.CString(name)
	defer C.free(unsafe.Pointer(cs))
	cu := C.CString(unit)
	defer C.free(unsafe.Pointer(cu))
	return ErrCode(C.XC_SetPropertyValueF(C.XCHANDLE(h), cs, C.double(v), cu))
}

func (Lib) SetPropertyValue(h Handle, name, v, unit string) ErrCode {
	cs := C.CString(name)
	defer C.free(unsafe.Pointer(cs))
	cv := C.CString(v)
	defer C.free(unsafe.Pointer(cv))
	cu := C.CString(unit)
	defer C.free(unsafe.Pointer(cu))
	return ErrCode(C.XC_SetPropertyValue(C.XCHANDLE(h), cs, cv, cu))
}

// System returns the driver for the installed SDK
func System() (Driver, error) {
	return Lib{}, nil
}
