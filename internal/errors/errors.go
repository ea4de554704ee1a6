package errors

import "errors"

var ErrUnauthorized = errors.New("user is not authorized")
var ErrForbidden = errors.New("operation is forbidden for user")

var ErrNotFound = errors.New("resource not found")
var ErrInvalidRequest = errors.New("invalid request")

// ErrSlotUnavailable is returned when at least one requested slot is already booked or missing.
var ErrSlotUnavailable = errors.New("slot is not available")

// ErrGatewayUnavailable covers gateway timeouts and transport failures. Nothing is mutated when it is returned.
var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

// ErrDeclined means the gateway reported the payment as not completed.
var ErrDeclined = errors.New("payment declined")

// ErrInvalidState signals a broken internal invariant and is never shown to the caller verbatim.
var ErrInvalidState = errors.New("invalid state")
