package auth

import (
	"context"
	"sync"
)

// SharedHolder lets multiple goroutines (for example an RTA session and a
// periodic background refresh) share one XBLAuth safely.
type SharedHolder struct {
	mu   sync.Mutex
	auth *XBLAuth
}

// NewSharedHolder wraps auth for concurrent use.
func NewSharedHolder(auth *XBLAuth) *SharedHolder {
	return &SharedHolder{auth: auth}
}

// GetXboxToken acquires the lock and delegates to XBLAuth.GetXboxToken.
func (h *SharedHolder) GetXboxToken(ctx context.Context) (Expiring[XSTSToken], error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.auth.GetXboxToken(ctx)
}
