// Package httpserver builds the certificate API's *http.Server.
package httpserver

import (
	"net/http"
	"time"

	"eduverify/internal/platform/config"
)

// registryLegs is the longest chain of registry calls one request can make:
// upload, issue, register, retried issue and the list refresh.
const registryLegs = 5

const (
	minWriteTimeout = 30 * time.Second
	readTimeout     = 30 * time.Second
)

// New returns a server for h whose write deadline covers a full issue
// request against a registry answering within cfg.Registry.Timeout per call.
func New(cfg config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       readTimeout,
		WriteTimeout:      WriteTimeout(cfg.Registry.Timeout),
		IdleTimeout:       2 * time.Minute,
	}
}

// WriteTimeout is the response deadline for a registry call timeout of perCall.
func WriteTimeout(perCall time.Duration) time.Duration {
	return max(readTimeout+registryLegs*perCall, minWriteTimeout)
}
