package rta

import "errors"

var (
	ErrSubscribeFailed    = errors.New("rta: subscribe failed")
	ErrUnsubscribeFailed  = errors.New("rta: unsubscribe failed")
	ErrIdleTimeout        = errors.New("rta: no message received within the idle timeout")
	ErrUnknownStatus      = errors.New("rta: unknown status code")
	ErrUnknownMessageType = errors.New("rta: unknown message type")
	ErrDecode             = errors.New("rta: could not decode frame")
)
