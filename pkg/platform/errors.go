package platform

import "fmt"

var _ error = &UnsupportedHostError{}

// UnsupportedHostError reports a host OS/architecture the build matrix does
// not cover.
type UnsupportedHostError struct {
	m string
}

func (e *UnsupportedHostError) Error() string {
	return e.m
}

func (e *UnsupportedHostError) Is(target error) bool {
	if _, ok := target.(*UnsupportedHostError); ok {
		return true
	}

	return false
}

func NewUnsupportedHostError(goos, goarch string) error {
	return &UnsupportedHostError{
		m: fmt.Sprintf("host platform %s/%s is not in the build matrix", goos, goarch),
	}
}
