// Package httpc builds the HTTP client used for model downloads.
package httpc

import (
	"net"
	"net/http"
	"time"
)

// AssetTimeout bounds a whole model download. The face landmarker bundle
// is a few MB.
const AssetTimeout = 5 * time.Minute

const (
	connectTimeout   = 10 * time.Second
	keepAlive        = 30 * time.Second
	idleConnTimeout  = 90 * time.Second
	handshakeTimeout = 10 * time.Second
)

// UserAgent is sent on requests that do not set one.
var UserAgent = "facemesh"

// NewClient returns a client with the given overall timeout, dial and TLS
// timeouts, and the package User-Agent.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &agentTransport{base: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   connectTimeout,
				KeepAlive: keepAlive,
			}).DialContext,
			MaxIdleConns:          4,
			MaxIdleConnsPerHost:   2,
			IdleConnTimeout:       idleConnTimeout,
			TLSHandshakeTimeout:   handshakeTimeout,
			ExpectContinueTimeout: time.Second,
		}},
	}
}

type agentTransport struct {
	base http.RoundTripper
}

func (t *agentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", UserAgent)
	}
	return t.base.RoundTrip(req)
}
