package auth

import "errors"

// Sentinel errors surfaced by the cache and token pipeline. Callers should
// use errors.Is against these rather than matching on message text.
var (
	ErrCacheMiss         = errors.New("auth: cache miss")
	ErrCacheCorrupt      = errors.New("auth: cache file is corrupt")
	ErrRefreshFailed     = errors.New("auth: token refresh failed")
	ErrDeviceCodeExpired = errors.New("auth: device code expired before user authorized")
	ErrAuthRejected      = errors.New("auth: xbox live rejected the request")
	ErrTransport         = errors.New("auth: transport error")
)

// XboxError is the error body Xbox Live returns on a non-2xx response from
// the user/device/title/XSTS endpoints. Not every rejection carries one --
// transport-level failures (timeouts, DNS) never populate it.
type XboxError struct {
	XErr     int64  `json:"XErr"`
	Message  string `json:"Message"`
	Redirect string `json:"Redirect"`
}

func (e *XboxError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "xbox live error"
}
