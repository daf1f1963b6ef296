package respserver

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/keymesh-go/internal/storage/memory"
	"github.com/yndnr/keymesh-go/internal/telemetry/metric"
	"github.com/yndnr/keymesh-go/pkg/resp"
)

// Config holds the server configuration.
type Config struct {
	// Addr is the TCP listen address.
	Addr string
	// MaxClients caps concurrent sessions. Connections beyond the cap are
	// refused with an error reply. 0 disables the cap.
	MaxClients int
	// RateLimit is the maximum number of commands per second per client
	// IP. 0 disables rate limiting.
	RateLimit int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Addr:       "127.0.0.1:31337",
		MaxClients: 64,
		RateLimit:  0,
	}
}

// Server accepts client connections and drives one session per connection.
//
// Commands within a session are processed strictly in receipt order and
// replies emitted in that order; sessions on different connections run
// concurrently against the shared keyspace.
type Server struct {
	cfg     *Config
	handler *CommandHandler
	logger  *slog.Logger
	metrics *metric.Registry
	limiter *limiterRegistry

	ln      net.Listener
	running atomic.Bool
	active  atomic.Int64
	wg      sync.WaitGroup

	connsMu sync.Mutex
	conns   map[*Conn]struct{}

	// onShutdownRequest is invoked once when a SHUTDOWN command arrives.
	onShutdownRequest func()
	shutdownOnce      sync.Once
}

// Conn represents a single client connection.
type Conn struct {
	id      string
	netConn net.Conn
	br      *bufio.Reader
	bw      *bufio.Writer
	closed  atomic.Bool
}

func newConn(c net.Conn) *Conn {
	return &Conn{
		id:      ulid.Make().String(),
		netConn: c,
		br:      bufio.NewReader(c),
		bw:      bufio.NewWriter(c),
	}
}

func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.netConn.Close()
}

func (c *Conn) RemoteAddr() net.Addr {
	return c.netConn.RemoteAddr()
}

// Option configures the Server.
type Option func(*Server)

// WithMetrics attaches a metrics registry.
func WithMetrics(m *metric.Registry) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithShutdownRequestHandler sets the callback run when a client issues
// SHUTDOWN. The callback must not block; it typically triggers the same
// path as a termination signal.
func WithShutdownRequestHandler(fn func()) Option {
	return func(s *Server) {
		s.onShutdownRequest = fn
	}
}

// New creates a server over the given keyspace.
func New(cfg *Config, store *memory.Store, logger *slog.Logger, opts ...Option) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		handler: NewCommandHandler(store, logger),
		conns:   make(map[*Conn]struct{}),
	}

	if cfg.RateLimit > 0 {
		s.limiter = newLimiterRegistry(cfg.RateLimit)
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start binds the listener and launches the accept loop. A bind failure is
// returned synchronously so the process can exit non-zero.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.running.Store(true)
	s.logger.Info("server listening", "addr", ln.Addr().String())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.acceptLoop(ctx, ln); err != nil && s.running.Load() {
			s.logger.Error("accept loop error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listen address, valid after Start.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Shutdown closes the listener and every live session, then waits for all
// session goroutines to finish. In-flight commands run to completion;
// subsequent reads on closed sockets fail and end their sessions.
func (s *Server) Shutdown(ctx context.Context) error {
	s.running.Store(false)

	var firstErr error
	if s.ln != nil {
		if err := s.ln.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	s.connsMu.Lock()
	for c := range s.conns {
		_ = c.Close()
	}
	s.connsMu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	return firstErr
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) error {
	for {
		c, err := ln.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return err
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(newConn(c))
		}()
	}
}

func (s *Server) trackConn(c *Conn) {
	s.connsMu.Lock()
	s.conns[c] = struct{}{}
	s.connsMu.Unlock()
}

func (s *Server) untrackConn(c *Conn) {
	s.connsMu.Lock()
	delete(s.conns, c)
	s.connsMu.Unlock()
}

// serveConn runs one session: read a framed request, dispatch it, flush
// the reply, repeat.
func (s *Server) serveConn(c *Conn) {
	defer c.Close()

	if limit := s.cfg.MaxClients; limit > 0 {
		if s.active.Add(1) > int64(limit) {
			s.active.Add(-1)
			if s.metrics != nil {
				s.metrics.ConnectionsRejected.Inc()
			}
			_ = resp.WriteError(c.bw, "ERR max number of clients reached")
			_ = c.bw.Flush()
			return
		}
		defer s.active.Add(-1)
	}

	s.trackConn(c)
	defer s.untrackConn(c)

	// A session accepted while Shutdown runs is either in the conns map
	// when the close loop fires, or sees running=false here.
	if !s.running.Load() {
		return
	}

	if s.metrics != nil {
		s.metrics.ConnectionsTotal.Inc()
		s.metrics.ConnectionsActive.Inc()
		defer s.metrics.ConnectionsActive.Dec()
	}

	logger := s.logger.With("conn", c.id, "remote", c.RemoteAddr().String())
	logger.Debug("session opened")
	defer logger.Debug("session closed")

	for {
		args, err := resp.ReadCommand(c.br)
		if err != nil {
			s.handleReadError(c, logger, err)
			return
		}

		// Blank inline line or empty array; nothing to answer.
		if len(args) == 0 {
			continue
		}

		if s.limiter != nil && !s.limiter.allow(c.RemoteAddr()) {
			_ = resp.WriteError(c.bw, "ERR rate limit exceeded")
			if c.bw.Flush() != nil {
				return
			}
			continue
		}

		reply, act := s.dispatch(args)

		if err := resp.WriteValue(c.bw, reply); err != nil {
			return
		}
		if err := c.bw.Flush(); err != nil {
			return
		}

		switch act {
		case actionQuit:
			return
		case actionShutdown:
			logger.Info("shutdown requested by client")
			s.requestShutdown()
			return
		}
	}
}

// dispatch runs the command handler and records metrics around it.
func (s *Server) dispatch(args [][]byte) (resp.Value, action) {
	if s.metrics == nil {
		return s.handler.Handle(args)
	}

	name := normalizeCommandName(args[0])
	start := time.Now()
	reply, act := s.handler.Handle(args)
	s.metrics.CommandsTotal.WithLabelValues(name).Inc()
	s.metrics.CommandDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if IsError(reply) {
		s.metrics.CommandErrors.WithLabelValues(name).Inc()
	}
	return reply, act
}

// handleReadError translates a failed read into its wire behavior: codec
// faults get an error reply before the close, transport faults close
// silently.
func (s *Server) handleReadError(c *Conn, logger *slog.Logger, err error) {
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return
	}

	if errors.Is(err, resp.ErrLimitExceeded) {
		if s.metrics != nil {
			s.metrics.ProtocolErrors.Inc()
		}
		logger.Warn("protocol limit exceeded", "error", err)
		_ = resp.WriteError(c.bw, "ERR protocol limit exceeded")
		_ = c.bw.Flush()
		return
	}

	if errors.Is(err, resp.ErrProtocol) {
		if s.metrics != nil {
			s.metrics.ProtocolErrors.Inc()
		}
		logger.Debug("protocol error", "error", err)
		_ = resp.WriteError(c.bw, "ERR protocol error: "+err.Error())
		_ = c.bw.Flush()
		return
	}

	logger.Debug("connection read error", "error", err)
}

// requestShutdown runs the shutdown callback at most once.
func (s *Server) requestShutdown() {
	s.shutdownOnce.Do(func() {
		if s.onShutdownRequest != nil {
			s.onShutdownRequest()
		}
	})
}
