// Package internal provides low-level helpers for WebDAV clients.
package internal

import (
	"errors"
	"fmt"
	"net/http"
)

// Depth indicates whether a request applies to the resource's members. It's
// defined in RFC 4918 section 10.2.
type Depth int

const (
	// DepthZero indicates that the request applies only to the resource.
	DepthZero Depth = 0
	// DepthOne indicates that the request applies to the resource and its
	// internal members only.
	DepthOne Depth = 1
	// DepthInfinity indicates that the request applies to the resource and all
	// of its members.
	DepthInfinity Depth = -1
)

// ParseDepth parses a Depth header.
func ParseDepth(s string) (Depth, error) {
	switch s {
	case "0":
		return DepthZero, nil
	case "1":
		return DepthOne, nil
	case "infinity":
		return DepthInfinity, nil
	}
	return 0, fmt.Errorf("davclient: invalid Depth value")
}

// String formats the depth.
func (d Depth) String() string {
	switch d {
	case DepthZero:
		return "0"
	case DepthOne:
		return "1"
	case DepthInfinity:
		return "infinity"
	}
	panic("davclient: invalid Depth value")
}

// HTTPError is an error due to an HTTP response with an unexpected status
// code. It carries the status code and, best-effort, the decoded DAV error
// body (see Error) or the raw response text.
//
// Callers may retry a request failing with an HTTPError according to the
// semantics of its status code. Contrast with ProtocolError.
type HTTPError struct {
	Code int
	Err  error
}

func HTTPErrorf(code int, format string, a ...interface{}) *HTTPError {
	return &HTTPError{Code: code, Err: fmt.Errorf(format, a...)}
}

func (err *HTTPError) Error() string {
	s := fmt.Sprintf("%v %v", err.Code, http.StatusText(err.Code))
	if err.Err != nil {
		return fmt.Sprintf("%v: %v", s, err.Err)
	}
	return s
}

func (err *HTTPError) Unwrap() error {
	return err.Err
}

// IsNotFound returns true if the error is an HTTPError with a 404 status
// code.
func IsNotFound(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.Code == http.StatusNotFound
}

// ProtocolError is an error due to a structurally invalid response from the
// server: malformed XML, a wrong root element, a missing required element.
// It indicates a non-conformant or unexpected server and, unlike HTTPError,
// shouldn't be blindly retried.
type ProtocolError struct {
	Err error
}

func ProtocolErrorf(format string, a ...interface{}) *ProtocolError {
	return &ProtocolError{Err: fmt.Errorf(format, a...)}
}

func (err *ProtocolError) Error() string {
	return fmt.Sprintf("davclient: protocol error: %v", err.Err)
}

func (err *ProtocolError) Unwrap() error {
	return err.Err
}
