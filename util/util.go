// Package util contains misc internal utilities.
package util

import (
	"math"
	"strings"
	"time"
	"unicode"
)

// MergedError is a collection of errors that reports as one.
// errors.Is and errors.As see through it to each member.
type MergedError []error

func (m MergedError) Error() string {
	strs := make([]string, len(m))
	for i, e := range m {
		strs[i] = e.Error()
	}
	return strings.Join(strs, "; ")
}

// Unwrap returns the members, for errors.Is and errors.As
func (m MergedError) Unwrap() []error {
	return []error(m)
}

// MergeErrors combines a slice of errors into one, skipping nils.
// It returns nil if there are no errors and the error itself if there is only one
func MergeErrors(errs []error) error {
	var out MergedError
	for _, e := range errs {
		if e != nil {
			out = append(out, e)
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	default:
		return out
	}
}

// AllElementsNumbers returns true if every rune in s is a digit or a decimal point
func AllElementsNumbers(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) && r != '.' {
			return false
		}
	}
	return true
}

// SecsToDuration converts a number of seconds to a time.Duration
func SecsToDuration(secs float64) time.Duration {
	return time.Duration(math.Round(secs * float64(time.Second)))
}

// DurationsToMillis converts a slice of durations to whole milliseconds
func DurationsToMillis(ds []time.Duration) []int64 {
	out := make([]int64, len(ds))
	for i, d := range ds {
		out[i] = d.Milliseconds()
	}
	return out
}
