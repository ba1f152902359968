package remote

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// session owns one accepted connection: a read loop framing newline-delimited
// JSON, dispatch of each complete line, and the response write. The liveness
// flag is readable by the reaper from another goroutine; the transport handle
// is closed exactly once, by whichever of the read loop or shutdown gets
// there first.
type session struct {
	id   uuid.UUID
	conn net.Conn
	peer string

	alive     atomic.Bool
	closeOnce sync.Once
	done      chan struct{}

	writeMu sync.Mutex
	logger  *slog.Logger
}

func newSession(conn net.Conn, logger *slog.Logger) *session {
	s := &session{
		id:     uuid.New(),
		conn:   conn,
		peer:   conn.RemoteAddr().String(),
		done:   make(chan struct{}),
		logger: logger,
	}
	s.alive.Store(true)
	return s
}

func (s *session) isAlive() bool {
	return s.alive.Load()
}

// run is the session's read loop. A malformed line gets an error envelope
// and the loop continues; only transport failures (EOF, read error, a line
// over maxLineBytes) end the session.
func (s *session) run(ctx context.Context, handler Handler, observer Observer, maxLineBytes int) {
	defer func() {
		s.alive.Store(false)
		s.close()
		close(s.done)
		if observer != nil {
			observer.ClientDisconnected(s.peer)
		}
		s.log(slog.LevelInfo, "client_disconnected")
	}()

	scanner := bufio.NewScanner(s.conn)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		resp := handler.Dispatch(ctx, []byte(line), s.peer)
		if err := s.send(resp); err != nil {
			s.log(slog.LevelWarn, "session_write_error", slog.String("error", err.Error()))
			return
		}

		if observer != nil {
			observer.CommandReceived(s.peer, line)
		}
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) && !errors.Is(err, io.EOF) {
		s.log(slog.LevelWarn, "session_read_error", slog.String("error", err.Error()))
	}
}

// send serializes one envelope as a JSON line. Writes from the read loop and
// Broadcast share a mutex so lines never interleave.
func (s *session) send(v any) error {
	encoded, err := json.Marshal(v)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err = s.conn.Write(append(encoded, '\n'))
	return err
}

// close shuts the transport down exactly once. Safe to call from the read
// loop, the reaper, and shutdown concurrently.
func (s *session) close() {
	s.closeOnce.Do(func() {
		s.alive.Store(false)
		_ = s.conn.Close()
	})
}

// awaitExit blocks until the read loop has exited, or the bound elapses. By
// the time the reaper sees a dead session its loop is normally already gone.
func (s *session) awaitExit(bound time.Duration) bool {
	select {
	case <-s.done:
		return true
	case <-time.After(bound):
		return false
	}
}

func (s *session) log(level slog.Level, msg string, attrs ...any) {
	if s.logger == nil {
		return
	}
	attrs = append(attrs, slog.String("session_id", s.id.String()), slog.String("peer", s.peer))
	s.logger.Log(context.Background(), level, msg, attrs...)
}
