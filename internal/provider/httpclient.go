package provider

import (
	"net"
	"net/http"
	"time"
)

// NewHTTPClient builds the pooled client used for chat completions and reused
// by the channel layer for attachment downloads. Each caller talks to a
// single host repeatedly, so a small keep-alive pool suffices; the overall
// timeout has to cover slow LLM completions.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     2 * time.Minute,
			DialContext: (&net.Dialer{
				Timeout:   15 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
}
