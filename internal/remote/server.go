// Package remote is the connection and session lifecycle manager: it owns
// the listening socket, one goroutine per accepted client, the shared
// session registry, and the background reaper that reclaims disconnected
// sessions.
package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"podradio/internal/control"
	"podradio/internal/discovery"
)

const (
	defaultReapInterval = 5 * time.Second
	defaultMaxLineBytes = 1 << 20
	joinBound           = 2 * time.Second
)

// Handler turns one raw request line into a response envelope.
type Handler interface {
	Dispatch(ctx context.Context, payload []byte, peer string) control.Envelope
}

// Advertiser registers and withdraws the server's discoverability record.
type Advertiser interface {
	Advertise(cfg discovery.Config) error
	Withdraw()
}

type Config struct {
	ListenAddr         string
	ServiceName        string
	ServiceDescription string
	ReapInterval       time.Duration
	MaxLineBytes       int

	Handler    Handler
	Registry   *Registry
	Advertiser Advertiser
	Observer   Observer
	Logger     *slog.Logger
	Clock      clockwork.Clock
}

type Server struct {
	cfg      Config
	registry *Registry
	clock    clockwork.Clock
	logger   *slog.Logger

	running  atomic.Bool
	listener net.Listener
	stopCh   chan struct{}
	wg       sync.WaitGroup

	runCtx    context.Context
	cancelRun context.CancelFunc
}

func New(cfg Config) *Server {
	if cfg.ReapInterval <= 0 {
		cfg.ReapInterval = defaultReapInterval
	}
	if cfg.MaxLineBytes <= 0 {
		cfg.MaxLineBytes = defaultMaxLineBytes
	}
	if cfg.Registry == nil {
		cfg.Registry = NewRegistry()
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}

	return &Server{
		cfg:      cfg,
		registry: cfg.Registry,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
	}
}

// Start binds the listener, advertises the service, and launches the accept
// and reaper loops. On any setup failure nothing is left running and the
// port is released.
func (s *Server) Start() error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.New("server is already running")
	}

	listener, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		s.running.Store(false)
		return fmt.Errorf("listen on %s: %w", s.cfg.ListenAddr, err)
	}

	if s.cfg.Advertiser != nil {
		port := 0
		if tcpAddr, ok := listener.Addr().(*net.TCPAddr); ok {
			port = tcpAddr.Port
		}
		err := s.cfg.Advertiser.Advertise(discovery.Config{
			ServiceName: s.cfg.ServiceName,
			Description: s.cfg.ServiceDescription,
			Port:        port,
		})
		if err != nil {
			listener.Close()
			s.running.Store(false)
			return fmt.Errorf("advertise service: %w", err)
		}
	}

	s.listener = listener
	s.stopCh = make(chan struct{})
	s.runCtx, s.cancelRun = context.WithCancel(context.Background())

	s.wg.Add(2)
	go s.acceptLoop()
	go s.reapLoop()

	s.logEvent(slog.LevelInfo, "server_started", slog.String("addr", listener.Addr().String()))
	return nil
}

// Stop is idempotent. It closes the listener, closes every session transport
// (unblocking their read loops), waits for all loops to exit, and withdraws
// the advertisement. Stopping a server that is not running is a no-op.
func (s *Server) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}

	close(s.stopCh)
	s.cancelRun()
	_ = s.listener.Close()

	for _, sess := range s.registry.drain() {
		sess.close()
		sess.awaitExit(joinBound)
	}

	s.wg.Wait()

	if s.cfg.Advertiser != nil {
		s.cfg.Advertiser.Withdraw()
	}

	s.logEvent(slog.LevelInfo, "server_stopped")
}

// Addr reports the bound listen address, useful when the configured port was 0.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// ConnectedClients reports how many sessions are currently live.
func (s *Server) ConnectedClients() int {
	return s.registry.ConnectedClients()
}

// ConnectedAddresses lists the peer addresses of live sessions.
func (s *Server) ConnectedAddresses() []string {
	return s.registry.Addresses()
}

// Broadcast sends one message to every live session. Sessions whose write
// fails are left for their own read loop or the reaper to clean up.
func (s *Server) Broadcast(message any) {
	for _, sess := range s.registry.live() {
		if err := sess.send(message); err != nil {
			s.logEvent(slog.LevelDebug, "broadcast_write_failed", slog.String("peer", sess.peer))
		}
	}
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.running.Load() {
				return
			}
			s.logEvent(slog.LevelWarn, "accept_failed", slog.String("error", err.Error()))
			continue
		}

		if s.register(conn) == nil {
			return
		}
	}
}

// register adds an accepted connection to the registry and starts its read
// loop. A connection that raced with Stop between the registry drain and
// this point would otherwise outlive shutdown, so the running flag is
// re-checked after registration and the session closed if it lost the race.
func (s *Server) register(conn net.Conn) *session {
	sess := newSession(conn, s.logger)
	s.registry.add(sess)

	if !s.running.Load() {
		sess.close()
		return nil
	}

	go sess.run(s.runCtx, s.cfg.Handler, s.cfg.Observer, s.cfg.MaxLineBytes)

	// Registered before notifying, so a status query racing with this
	// callback already counts the new session.
	if s.cfg.Observer != nil {
		s.cfg.Observer.ClientConnected(sess.peer)
	}
	s.logEvent(slog.LevelInfo, "client_connected", slog.String("peer", sess.peer))
	return sess
}

func (s *Server) reapLoop() {
	defer s.wg.Done()

	ticker := s.clock.NewTicker(s.cfg.ReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.Chan():
			s.reapOnce()
		}
	}
}

// reapOnce reclaims sessions whose read loop has ended. This is the only
// place, outside shutdown, where disconnected sessions are released.
func (s *Server) reapOnce() {
	for _, sess := range s.registry.takeDead() {
		if !sess.awaitExit(joinBound) {
			s.logEvent(slog.LevelWarn, "session_join_timeout", slog.String("peer", sess.peer))
		}
		s.logEvent(slog.LevelDebug, "session_reaped", slog.String("peer", sess.peer))
	}
}

func (s *Server) logEvent(level slog.Level, msg string, attrs ...any) {
	if s.logger == nil {
		return
	}
	s.logger.Log(context.Background(), level, msg, attrs...)
}
