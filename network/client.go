// Package network holds the HTTP client shared by the platform API, progress store and streaming engine.
package network

import (
	"net/http"
	"time"

	"github.com/lectern-cli/lectern/constant"
)

// Client has no overall timeout; callers bound requests with contexts.
var Client = &http.Client{
	Transport: &userAgent{next: newTransport()},
}

func newTransport() *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConnsPerHost = 16
	t.IdleConnTimeout = 90 * time.Second
	t.ResponseHeaderTimeout = 20 * time.Second
	return t
}

type userAgent struct {
	next http.RoundTripper
}

func (u *userAgent) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", constant.UserAgent)
	}
	return u.next.RoundTrip(req)
}

// WithTimeout returns a client sharing Client's transport that gives up on
// a whole request after d. A zero d means no limit.
func WithTimeout(d time.Duration) *http.Client {
	return &http.Client{Transport: Client.Transport, Timeout: d}
}
