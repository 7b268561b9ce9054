package executor

import (
	"errors"

	"github.com/arashi-labs/solveorch/internal/upstream"
)

// Client-visible error kinds and their HTTP statuses (spec §7).
const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeProfileBlocked = "PROFILE_BLOCKED"
	CodeChatBlocked    = "CHAT_BLOCKED"
	CodeProfileBusy    = "PROFILE_BUSY"
	CodeContainerBusy  = "CONTAINER_BUSY"
	CodeUpstreamError  = "UPSTREAM_ERROR"
	CodeInternalError  = "INTERNAL_ERROR"
)

var codeHTTPStatus = map[string]int{
	CodeInvalidRequest: 400,
	CodeProfileBlocked: 409,
	CodeChatBlocked:    409,
	CodeProfileBusy:    503,
	CodeContainerBusy:  503,
	CodeUpstreamError:  502,
	CodeInternalError:  500,
}

// ErrInvalidCandidate marks a build_candidates failure that should surface as
// INVALID_REQUEST (spec §4.8 Candidate enumeration).
var ErrInvalidCandidate = errors.New("executor: invalid candidate")

// classifyUpstreamErr maps a typed upstream error to a client-facing error
// code per spec §7's classification rules.
func classifyUpstreamErr(err error) string {
	switch {
	case errors.Is(err, upstream.ErrBusy):
		return CodeContainerBusy
	case errors.Is(err, upstream.ErrBadRequest):
		return CodeInvalidRequest
	case errors.Is(err, upstream.ErrServer), errors.Is(err, upstream.ErrTransport):
		return CodeUpstreamError
	default:
		return CodeInternalError
	}
}
