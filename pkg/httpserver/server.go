package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/dmitrymomot/signin/pkg/logger"
)

type config struct {
	addr              string
	readHeaderTimeout time.Duration
	shutdownTimeout   time.Duration
	logger            *slog.Logger
}

func defaultConfig() *config {
	return &config{
		addr:              "localhost:8080",
		readHeaderTimeout: 10 * time.Second,
		shutdownTimeout:   2 * time.Second,
	}
}

// Server is a short-lived HTTP server used to receive OAuth redirects on a loopback address.
// A Server runs once; Listen, Run and Shutdown may be called in that order.
type Server struct {
	cfg *config

	mu   sync.Mutex
	ln   net.Listener
	srv  *http.Server
	once sync.Once
}

// New returns a configured Server.
func New(opts ...Option) *Server {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	cfg.logger = logger.OrDiscard(cfg.logger)
	return &Server{cfg: cfg}
}

// Listen binds the configured address. Calling it before Run surfaces a busy port
// before the user is sent to the browser.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.cfg.addr)
	if err != nil {
		return errors.Join(ErrListen, err)
	}
	s.ln = ln
	return nil
}

// Addr returns the bound address, or the configured one before Listen.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.cfg.addr
}

// Run serves handler until ctx is done or Shutdown is called. It listens first if needed.
func (s *Server) Run(ctx context.Context, handler http.Handler) error {
	if handler == nil {
		handler = http.NotFoundHandler()
	}
	if err := s.Listen(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.srv != nil {
		s.mu.Unlock()
		return errors.Join(ErrStart, errors.New("server already running"))
	}
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: s.cfg.readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.srv = srv
	ln := s.ln
	s.mu.Unlock()

	s.cfg.logger.DebugContext(ctx, "callback server listening", logger.URL("http://"+ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	var runErr error
	select {
	case <-ctx.Done():
		_ = s.Shutdown(context.Background())
		runErr = <-errCh
	case runErr = <-errCh:
	}

	if runErr != nil && !errors.Is(runErr, http.ErrServerClosed) {
		return errors.Join(ErrStart, runErr)
	}
	return nil
}

// Shutdown stops the server gracefully. It is safe for repeated calls and must not be
// called from inside a handler of the same server; use ShutdownAsync there.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		srv, ln := s.srv, s.ln
		s.mu.Unlock()

		if srv == nil {
			if ln != nil {
				err = ln.Close()
			}
			return
		}
		ctx, cancel := context.WithTimeout(ctx, s.cfg.shutdownTimeout)
		defer cancel()
		err = srv.Shutdown(ctx)
		s.cfg.logger.DebugContext(ctx, "callback server stopped")
	})

	if err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, net.ErrClosed) {
		return errors.Join(ErrShutdown, err)
	}
	return nil
}

// ShutdownAsync shuts the server down from a new goroutine, letting the current
// handler finish writing its response first.
func (s *Server) ShutdownAsync() {
	go func() { _ = s.Shutdown(context.Background()) }()
}
