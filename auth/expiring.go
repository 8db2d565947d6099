package auth

import "time"

// expiryMargin is the window before the real expiry at which a cached
// value is already treated as stale, so a refresh has time to complete
// before the upstream token actually lapses.
const expiryMargin = 10 * time.Second

// Expiring wraps a value with the unix timestamp it expires at. The zero
// value is not meaningful; build one with NewExpiringWithDuration or
// NewExpiringWithTimestamp.
type Expiring[T any] struct {
	ExpiredAt uint64 `json:"expired_at"`
	Data      T      `json:"data"`
}

// NewExpiringWithDuration builds an Expiring value that lapses expiresIn
// seconds from now.
func NewExpiringWithDuration[T any](data T, expiresIn uint64) Expiring[T] {
	return Expiring[T]{
		ExpiredAt: uint64(time.Now().Unix()) + expiresIn,
		Data:      data,
	}
}

// NewExpiringWithTimestamp builds an Expiring value with an explicit unix
// expiry timestamp.
func NewExpiringWithTimestamp[T any](data T, expiredAt uint64) Expiring[T] {
	return Expiring[T]{ExpiredAt: expiredAt, Data: data}
}

// IsExpired reports whether the value is within expiryMargin of lapsing
// (or has already lapsed).
func (e Expiring[T]) IsExpired() bool {
	return e.ExpiredAt <= uint64(time.Now().Unix())+uint64(expiryMargin.Seconds())
}

// Take returns the wrapped value.
func (e Expiring[T]) Take() T {
	return e.Data
}
