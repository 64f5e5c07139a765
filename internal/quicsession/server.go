package quicsession

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/quic-go/quic-go"
)

// idleTimeout and keepAlivePeriod implement spec.md §5's connection
// lifecycle: a 30s idle timeout and an ack-eliciting keep-alive every
// 200ms while the connection is open (quic-go sends these internally
// once KeepAlivePeriod is set, so no manual ticker is needed here).
const (
	idleTimeout     = 30 * time.Second
	keepAlivePeriod = 200 * time.Millisecond
)

// Server accepts QUIC connections and spawns one Session goroutine per
// connection, per spec.md §4.G/§5.
type Server struct {
	listener *quic.Listener
	deps     Deps
	log      *slog.Logger
	wg       sync.WaitGroup
}

// Listen opens a QUIC listener on addr (host:port) with tlsConf, ready
// to Serve.
func Listen(addr string, tlsConf *tls.Config, deps Deps) (*Server, error) {
	qcfg := &quic.Config{
		MaxIdleTimeout:  idleTimeout,
		KeepAlivePeriod: keepAlivePeriod,
	}
	ln, err := quic.ListenAddr(addr, tlsConf, qcfg)
	if err != nil {
		return nil, fmt.Errorf("quicsession: listen %s: %w", addr, err)
	}
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	return &Server{listener: ln, deps: deps, log: log}, nil
}

// Serve accepts connections until ctx is cancelled, running one
// Session per connection in its own goroutine.
func (s *Server) Serve(ctx context.Context) error {
	for {
		conn, err := s.listener.Accept(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			s.log.Warn("quicsession: accept failed", "error", err)
			continue
		}
		s.wg.Add(1)
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn *quic.Conn) {
	defer s.wg.Done()
	sess := newSession(conn, s.deps)
	if err := sess.Run(ctx); err != nil {
		s.log.Info("quicsession: connection closed", "remote", conn.RemoteAddr(), "error", err)
		return
	}
	s.log.Info("quicsession: connection closed", "remote", conn.RemoteAddr())
}

// Close shuts down the listener, refusing new connections. Existing
// sessions drain on their own context cancellation.
func (s *Server) Close() error {
	return s.listener.Close()
}

// Wait blocks until every in-flight session goroutine started by
// Serve has returned, or ctx is done, whichever comes first. Callers
// cancel the Serve context before calling Wait so sessions actually
// unwind instead of running forever.
func (s *Server) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
