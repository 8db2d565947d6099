// Package transport configures the retryable HTTP client shared by the
// auth and rta packages.
package transport

import (
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// New returns a *http.Client backed by retryablehttp, tuned for the short
// request/response exchanges of the MSA and Xbox Live auth endpoints
// rather than bulk transfer.
func New() *http.Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.Logger = nil

	retryClient.HTTPClient.Transport = &http.Transport{
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     90 * time.Second,
	}
	retryClient.HTTPClient.Timeout = 30 * time.Second

	return retryClient.StandardClient()
}
