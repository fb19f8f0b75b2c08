// Package httpserver builds an HTTP server with project defaults.
package httpserver

import (
	"net/http"
	"time"

	"medivault/internal/platform/config"
)

func New(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}
}
