package bridge

import "errors"

// Terminal error kinds for processing one inbound delivery. Lookup timeouts
// are deliberately absent: a timed-out lookup degrades to a cache miss or an
// unresolved mention and never terminates the pipeline.
var (
	// ErrInvalidVerificationToken means the payload's declared token does
	// not match the configured secret. The request is rejected unauthorized
	// and nothing is dispatched.
	ErrInvalidVerificationToken = errors.New("invalid verification token")

	// ErrNoRouteAvailable means no directive, mapping, or default
	// destination applied to the message.
	ErrNoRouteAvailable = errors.New("no route available")

	// ErrOutboundSendFailed wraps a rejection from the destination
	// platform's API. There is no automatic retry; retrying without
	// idempotency keys risks duplicate delivery.
	ErrOutboundSendFailed = errors.New("outbound send failed")
)
