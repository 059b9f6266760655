package util_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nasa-jpl/psfscan/util"
)

var (
	errA = errors.New("a")
	errB = errors.New("b")
)

func ExampleMergeErrors() {
	fmt.Println(util.MergeErrors([]error{errA, nil, errB}))
	// Output: a; b
}

func TestMergeErrorsNone(t *testing.T) {
	if err := util.MergeErrors([]error{nil, nil}); err != nil {
		t.Errorf("expected nil got %v", err)
	}
	if err := util.MergeErrors(nil); err != nil {
		t.Errorf("expected nil got %v", err)
	}
}

func TestMergeErrorsSingleIsUnwrapped(t *testing.T) {
	err := util.MergeErrors([]error{nil, errA})
	if err != errA {
		t.Errorf("expected %v got %v", errA, err)
	}
}

func TestMergeErrorsIs(t *testing.T) {
	wrapped := fmt.Errorf("stop: %w", errB)
	err := util.MergeErrors([]error{errA, wrapped})
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("expected merged error to match both members, got %v", err)
	}
}

func TestAllElementsNumbers(t *testing.T) {
	cases := map[string]bool{
		"25":   true,
		"2.5":  true,
		"25ms": false,
		"":     false,
	}
	for inp, expected := range cases {
		if out := util.AllElementsNumbers(inp); out != expected {
			t.Errorf("%q: expected %v got %v", inp, expected, out)
		}
	}
}

func TestSecsToDuration(t *testing.T) {
	var dur time.Duration = 123456789
	secs := dur.Seconds()
	out := util.SecsToDuration(secs)
	if out != dur {
		t.Errorf("expected SecsToDuration to round trip, output %v != expected %v", out, dur)
	}
}

func TestDurationsToMillis(t *testing.T) {
	out := util.DurationsToMillis([]time.Duration{0, 1500 * time.Microsecond, 2 * time.Second})
	expected := []int64{0, 1, 2000}
	for i := range expected {
		if out[i] != expected[i] {
			t.Errorf("expected %d at %d got %d", expected[i], i, out[i])
		}
	}
}
