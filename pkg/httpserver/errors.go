package httpserver

import "errors"

var (
	// ErrListen indicates that the listening socket could not be opened.
	ErrListen = errors.New("failed to listen")
	// ErrStart indicates that the server failed to start.
	ErrStart = errors.New("failed to start HTTP server")
	// ErrShutdown indicates that graceful shutdown failed.
	ErrShutdown = errors.New("failed to shutdown HTTP server gracefully")
)
