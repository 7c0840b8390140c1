// Package httpserver runs the one-shot loopback HTTP server that receives OAuth
// redirects during desktop sign-in.
//
// Bind first so a busy port fails fast, then serve until the context ends:
//
//	srv := httpserver.New(httpserver.WithAddr("localhost:8080"), httpserver.WithLogger(log))
//	if err := srv.Listen(); err != nil {
//	    return err
//	}
//	go func() { _ = srv.Run(ctx, router) }()
//
// A handler that has received the final redirect calls ShutdownAsync so the
// response is flushed before the listener closes.
package httpserver
