package httpserver

import "time"

// ShutdownTimeout controls how long to wait for graceful shutdowns.
var ShutdownTimeout = 10 * time.Second

// Request timeouts. Video uploads stream up to 1GB, so reads and writes get generous bounds.
var (
	ReadTimeout  = 10 * time.Minute
	WriteTimeout = 10 * time.Minute
	IdleTimeout  = 2 * time.Minute
)
