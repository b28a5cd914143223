// Copyright 2026 The flowbridge Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package api

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/async-code/flowbridge/internal/config"
	"github.com/async-code/flowbridge/internal/logging"
)

// requestIDKey is the gin context key carrying the per-request identifier.
const requestIDKey = "request_id"

// maxLoggedBodyBytes caps how much of a request body debug logging replays.
const maxLoggedBodyBytes = 4096

// requestIDMiddleware assigns every request a short identifier used to
// correlate log lines. An inbound X-Request-ID is honored when present.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()[:8]
		}
		c.Set(requestIDKey, id)
		c.Writer.Header().Set("X-Request-ID", id)
		c.Next()
	}
}

// requestLoggerMiddleware emits one line per request with method, path,
// status, and latency. At debug level the request body is replayed into the
// log with credential material redacted.
func requestLoggerMiddleware(redactor *logging.Redactor) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		if log.IsLevelEnabled(log.DebugLevel) && c.Request.Body != nil {
			body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxLoggedBodyBytes))
			if err == nil {
				c.Request.Body = replayBody(c.Request.Body, body)
				log.WithField(requestIDKey, c.GetString(requestIDKey)).
					Debugf("%s %s body: %s", c.Request.Method, c.Request.URL.Path, redactor.RedactBody(body))
			}
		}

		c.Next()

		log.WithField(requestIDKey, c.GetString(requestIDKey)).
			Infof("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start).Round(time.Millisecond))
	}
}

// replayBody stitches the already-read prefix back onto the remaining body.
func replayBody(rest io.ReadCloser, prefix []byte) io.ReadCloser {
	return readCloser{Reader: io.MultiReader(bytes.NewReader(prefix), rest), closer: rest}
}

type readCloser struct {
	io.Reader
	closer io.Closer
}

func (r readCloser) Close() error { return r.closer.Close() }

// corsMiddleware enforces the configured origin allowlist. Allowed origins
// are echoed back with credentials enabled; requests from any other origin
// are rejected before reaching a handler. Requests without an Origin header
// (curl, same-origin, server-to-server) pass through untouched.
func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			c.Next()
			return
		}

		if !cfg.OriginAllowed(origin) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"status":  "error",
				"message": "origin not allowed",
			})
			return
		}

		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Credentials", "true")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
		h.Add("Vary", "Origin")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// bodyLimitMiddleware caps request body size before any handler parses it.
// Oversized bodies surface as *http.MaxBytesError from the JSON bind and are
// translated to 413 at the handler boundary.
func bodyLimitMiddleware(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

// concurrencyLimitMiddleware bounds the number of requests simultaneously
// holding a child process slot. A zero limit disables admission control,
// matching the historical unbounded behavior.
func concurrencyLimitMiddleware(limit int) gin.HandlerFunc {
	slots := make(chan struct{}, limit)
	return func(c *gin.Context) {
		select {
		case slots <- struct{}{}:
			defer func() { <-slots }()
			c.Next()
		default:
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"status":  "error",
				"message": "too many concurrent executions",
			})
		}
	}
}

// recoveryHandler converts a handler panic into the uniform error envelope.
// The panic value is logged, never echoed to the caller.
func recoveryHandler(redactor *logging.Redactor) gin.RecoveryFunc {
	return func(c *gin.Context, recovered any) {
		log.WithField(requestIDKey, c.GetString(requestIDKey)).
			Errorf("panic serving %s %s: %s", c.Request.Method, c.Request.URL.Path, redactor.Redact(fmt.Sprint(recovered)))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": "internal server error",
		})
	}
}
