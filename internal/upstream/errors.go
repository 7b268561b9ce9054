package upstream

import (
	"errors"
	"fmt"
)

// Sentinel classification errors (spec §4.2, §7). Use errors.Is to test.
var (
	// ErrBusy corresponds to HTTP 423 — the container is occupied.
	ErrBusy = errors.New("upstream: container busy")
	// ErrBadRequest corresponds to any other 4xx — upstream rejected the content.
	ErrBadRequest = errors.New("upstream: bad request")
	// ErrServer corresponds to any 5xx from the container.
	ErrServer = errors.New("upstream: server error")
	// ErrTransport corresponds to a transport fault: timeout, connection reset, DNS failure.
	ErrTransport = errors.New("upstream: transport error")
)

// StatusError wraps a classification sentinel with the concrete HTTP status
// and container id that produced it.
type StatusError struct {
	ContainerID string
	StatusCode  int
	Kind        error // one of ErrBusy, ErrBadRequest, ErrServer
	Body        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream %s: http %d: %v", e.ContainerID, e.StatusCode, e.Kind)
}

func (e *StatusError) Unwrap() error { return e.Kind }

// classifyStatus maps an HTTP status code to a classification sentinel per
// spec §4.2 (423 -> busy, other 4xx -> bad request, 5xx -> server). A nil
// return means the response was 2xx.
func classifyStatus(containerID string, code int, body string) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == 423:
		return &StatusError{ContainerID: containerID, StatusCode: code, Kind: ErrBusy, Body: body}
	case code >= 400 && code < 500:
		return &StatusError{ContainerID: containerID, StatusCode: code, Kind: ErrBadRequest, Body: body}
	case code >= 500:
		return &StatusError{ContainerID: containerID, StatusCode: code, Kind: ErrServer, Body: body}
	default:
		return &StatusError{ContainerID: containerID, StatusCode: code, Kind: ErrServer, Body: body}
	}
}

// TransportError wraps a network-level failure (timeout, reset, DNS) before
// an HTTP response arrives, or a failure reading the response body.
type TransportError struct {
	ContainerID string
	Err         error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("upstream %s: transport: %v", e.ContainerID, e.Err)
}

func (e *TransportError) Unwrap() error { return ErrTransport }
