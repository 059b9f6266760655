//go:build !xeneth
// +build !xeneth

package xeneth

import "errors"

// ErrNoLibrary is returned by System when the binary was built without the xeneth tag
var ErrNoLibrary = errors.New("built without libxeneth support, rebuild with -tags xeneth or use the simulator")

// System returns the driver for the installed SDK
func System() (Driver, error) {
	return nil, ErrNoLibrary
}
