package customHttpClient

import (
	"net/http"
	"time"

	"github.com/docupipe/docupipe/internal/config"
)

var pooledTransport = &http.Transport{
	MaxIdleConns:        config.MaxIdleConns,
	MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
	IdleConnTimeout:     config.IdleConnTimeout,
}

// NewPooledClient hands out an http.Client that shares one keep-alive
// transport. The parsing adapter polls the upstream job endpoint many times
// per document, so connection reuse matters there.
func NewPooledClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: pooledTransport,
	}
}
