// Package scan steps a tunable laser through a range of wavelengths and
// captures a PSF frame at each one.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/nasa-jpl/psfscan/camera"
)

const (
	// MinWavelength is the shortest wavelength the laser can reach, nm
	MinWavelength = 1500.

	// MaxWavelength is the longest wavelength the laser can reach, nm
	MaxWavelength = 1570.
)

var (
	// ErrOutOfRange is returned for wavelengths outside the laser's limits
	ErrOutOfRange = errors.New("wavelength out of range")

	// ErrBadStep is returned for a step that is not positive, or a stop before the start
	ErrBadStep = errors.New("bad wavelength step")
)

// Plan describes a scan
type Plan struct {
	// Start is the first wavelength, nm
	Start float64 `koanf:"Start" yaml:"Start"`

	// Stop is the last wavelength, nm.  It is included if it falls on a step
	Stop float64 `koanf:"Stop" yaml:"Stop"`

	// Step is the spacing of wavelengths, nm
	Step float64 `koanf:"Step" yaml:"Step"`

	// Settle is the wait after tuning the laser
	Settle time.Duration `koanf:"Settle" yaml:"Settle"`

	// Flush is the number of frames read and discarded before the kept one
	Flush int `koanf:"Flush" yaml:"Flush"`

	// IntegrationTime is set on the camera at every step, us.  Zero leaves it alone
	IntegrationTime float64 `koanf:"IntegrationTime" yaml:"IntegrationTime"`

	// PropertySettle is the wait after setting the integration time
	PropertySettle time.Duration `koanf:"PropertySettle" yaml:"PropertySettle"`
}

// DefaultPlan is a single wavelength at the middle of the band
func DefaultPlan() Plan {
	return Plan{
		Start:           1550,
		Stop:            1550,
		Step:            1,
		Settle:          500 * time.Millisecond,
		Flush:           10,
		IntegrationTime: 1000,
		PropertySettle:  200 * time.Millisecond,
	}
}

// Wavelengths checks the plan and returns the wavelengths it visits
func (p Plan) Wavelengths() ([]float64, error) {
	for _, w := range []float64{p.Start, p.Stop} {
		if w < MinWavelength || w > MaxWavelength || math.IsNaN(w) {
			return nil, fmt.Errorf("%w: %g nm is outside %g-%g", ErrOutOfRange, w, MinWavelength, MaxWavelength)
		}
	}
	if !(p.Step > 0) {
		return nil, fmt.Errorf("%w: step %g must be positive", ErrBadStep, p.Step)
	}
	if p.Stop < p.Start {
		return nil, fmt.Errorf("%w: stop %g is before start %g", ErrBadStep, p.Stop, p.Start)
	}
	// the epsilon keeps a stop that is a whole number of steps away from rounding out
	n := int(math.Floor((p.Stop-p.Start)/p.Step+1e-9)) + 1
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Round((p.Start+float64(i)*p.Step)*1e6) / 1e6
	}
	return out, nil
}

// Tuner is a laser which can be tuned
type Tuner interface {
	SetWavelength(ctx context.Context, nm float64) error
}

// Step is the result of one wavelength of a scan
type Step struct {
	// Index is the position of the step in the scan
	Index int

	// Wavelength is the laser wavelength, nm
	Wavelength float64

	// Capture is the raw frame
	Capture camera.Capture

	// Frame is the decoded frame
	Frame camera.Frame
}

// Scanner runs a Plan
type Scanner struct {
	Cam   *camera.Camera
	Laser Tuner
	Plan  Plan
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run visits every wavelength of the plan and calls fn with the frame
// captured there.  It stops at the first error, from the hardware or fn,
// or when ctx is done
func (s *Scanner) Run(ctx context.Context, fn func(Step) error) error {
	waves, err := s.Plan.Wavelengths()
	if err != nil {
		return err
	}
	for i, wl := range waves {
		st, err := s.step(ctx, i, wl)
		if err != nil {
			return fmt.Errorf("step %d (%g nm): %w", i, wl, err)
		}
		if err = fn(st); err != nil {
			return fmt.Errorf("step %d (%g nm): %w", i, wl, err)
		}
	}
	log.Printf("scan complete, %d wavelengths\n", len(waves))
	return nil
}

func (s *Scanner) step(ctx context.Context, i int, wl float64) (Step, error) {
	if err := ctx.Err(); err != nil {
		return Step{}, err
	}
	if err := s.Laser.SetWavelength(ctx, wl); err != nil {
		return Step{}, err
	}
	if err := sleep(ctx, s.Plan.Settle); err != nil {
		return Step{}, err
	}
	if s.Plan.IntegrationTime > 0 {
		if err := s.Cam.SetProperty("IntegrationTime", s.Plan.IntegrationTime, camera.KindNum); err != nil {
			return Step{}, err
		}
		if err := sleep(ctx, s.Plan.PropertySettle); err != nil {
			return Step{}, err
		}
	}
	for j := 0; j < s.Plan.Flush; j++ {
		if _, err := s.Cam.CaptureFrameOnly(); err != nil {
			return Step{}, err
		}
	}
	c, err := s.Cam.CaptureFrameOnly()
	if err != nil {
		return Step{}, err
	}
	f, err := c.Frame()
	if err != nil {
		return Step{}, err
	}
	log.Printf("captured %g nm\n", wl)
	return Step{Index: i, Wavelength: wl, Capture: c, Frame: f}, nil
}
