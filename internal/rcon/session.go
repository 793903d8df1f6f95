// Package rcon implements the authenticated RCON session to a Minecraft
// server: the login handshake, serialized command execution with
// request/response correlation, multi-packet response reassembly and
// transparent reconnection.
package rcon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mcwarden-project/mcwarden/internal/events"
	"github.com/mcwarden-project/mcwarden/internal/protocol"
	"github.com/mcwarden-project/mcwarden/internal/util"
)

const (
	// DefaultConnectTimeout bounds the TCP dial plus login handshake.
	DefaultConnectTimeout = 10 * time.Second

	// DefaultExecTimeout is the window a caller waits for a matching response.
	DefaultExecTimeout = 5 * time.Second

	// DefaultGraceRead is the short extra read performed after a
	// full-size response frame, to catch continuation frames from
	// servers that split large replies. Tolerated heuristic: servers
	// disagree on how reply completion is signalled.
	DefaultGraceRead = 120 * time.Millisecond
)

// Options tunes session timeouts. Zero values select defaults.
type Options struct {
	ConnectTimeout time.Duration
	ExecTimeout    time.Duration
	GraceRead      time.Duration
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.ConnectTimeout <= 0 {
		out.ConnectTimeout = DefaultConnectTimeout
	}
	if out.ExecTimeout <= 0 {
		out.ExecTimeout = DefaultExecTimeout
	}
	if out.GraceRead <= 0 {
		out.GraceRead = DefaultGraceRead
	}
	return out
}

// Session owns one authenticated RCON connection. Command submissions
// from concurrent callers are serialized: interleaving request ids on a
// single stream is undefined behavior for this protocol family, so calls
// queue on an internal mutex rather than pipelining.
type Session struct {
	addr     string
	password string
	opts     Options
	eventBus *events.EventBus
	logger   zerolog.Logger

	// mu guards everything below and holds the wire exclusive for the
	// duration of one request/response exchange.
	mu            chan struct{}
	conn          net.Conn
	authenticated bool
	nextID        int32
}

// NewSession creates an unauthenticated session for host:port. Call
// Connect to perform the login handshake, or let the first Execute do it.
func NewSession(host string, port int, password string, eventBus *events.EventBus, opts Options) *Session {
	s := &Session{
		addr:     fmt.Sprintf("%s:%d", host, port),
		password: password,
		opts:     opts.withDefaults(),
		eventBus: eventBus,
		logger:   util.ComponentLogger("rcon"),
		mu:       make(chan struct{}, 1),
		nextID:   1,
	}
	return s
}

// Addr returns the remote address this session targets.
func (s *Session) Addr() string {
	return s.addr
}

// lock acquires the session mutex, honoring context cancellation.
func (s *Session) lock(ctx context.Context) error {
	select {
	case s.mu <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) unlock() {
	<-s.mu
}

// Connect opens the transport and performs the login handshake.
// A *AuthError is terminal; a *ConnectError is retryable.
func (s *Session) Connect(ctx context.Context) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.unlock()
	return s.connectLocked(ctx)
}

// connectLocked dials and authenticates. Caller holds the mutex.
func (s *Session) connectLocked(ctx context.Context) error {
	if s.authenticated && s.conn != nil {
		return nil
	}
	s.dropLocked()

	s.logger.Debug().Str("addr", s.addr).Msg("connecting to rcon")

	dialer := net.Dialer{Timeout: s.opts.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return &ConnectError{Addr: s.addr, Err: err}
	}

	login := &protocol.Packet{RequestID: 0, Type: protocol.TypeLogin, Payload: s.password}
	conn.SetDeadline(time.Now().Add(s.opts.ConnectTimeout))
	if err := protocol.WritePacket(conn, login); err != nil {
		conn.Close()
		return &ConnectError{Addr: s.addr, Err: err}
	}

	// Some servers send an empty type-0 frame before the auth response;
	// read until a type-2 frame (or the sentinel id) shows up.
	for {
		resp, err := protocol.ReadPacket(conn)
		if err != nil {
			conn.Close()
			return &ConnectError{Addr: s.addr, Err: err}
		}
		if resp.RequestID == protocol.AuthFailedID {
			conn.Close()
			s.emit(events.EventRconAuthFailed, nil)
			return &AuthError{Addr: s.addr}
		}
		if resp.Type == protocol.TypeCommand {
			break
		}
	}
	conn.SetDeadline(time.Time{})

	s.conn = conn
	s.authenticated = true
	s.logger.Info().Str("addr", s.addr).Msg("rcon session authenticated")
	s.emit(events.EventRconConnected, nil)
	return nil
}

// dropLocked tears down the current connection. Caller holds the mutex.
func (s *Session) dropLocked() {
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	if s.authenticated {
		s.authenticated = false
		s.emit(events.EventRconDisconnected, nil)
	}
}

// Close shuts the session down. A closed session can be revived by Connect.
func (s *Session) Close() {
	if err := s.lock(context.Background()); err != nil {
		return
	}
	defer s.unlock()
	s.dropLocked()
}

// Connected reports whether the session currently holds an authenticated
// connection. Advisory only: the connection may drop at any moment.
func (s *Session) Connected() bool {
	if err := s.lock(context.Background()); err != nil {
		return false
	}
	defer s.unlock()
	return s.authenticated && s.conn != nil
}

// Execute sends one command and returns the server's textual reply.
// If the session lost its connection, a transparent reconnect is
// attempted before sending; login failure surfaces as *AuthError.
// A mid-call connection drop returns ErrClosed to this caller and the
// next call reconnects.
func (s *Session) Execute(ctx context.Context, command string) (string, error) {
	command = strings.TrimPrefix(command, "/")
	if len(command) > protocol.MaxOutboundPayload {
		return "", fmt.Errorf("rcon: command too long (%d bytes, max %d)", len(command), protocol.MaxOutboundPayload)
	}

	if err := s.lock(ctx); err != nil {
		return "", err
	}
	defer s.unlock()

	if !s.authenticated || s.conn == nil {
		if err := s.connectLocked(ctx); err != nil {
			var authErr *AuthError
			if errors.As(err, &authErr) {
				return "", err
			}
			return "", fmt.Errorf("%w: %v", ErrDisconnected, err)
		}
	}

	id := s.nextID
	s.nextID++

	req := &protocol.Packet{RequestID: id, Type: protocol.TypeCommand, Payload: command}
	s.conn.SetWriteDeadline(time.Now().Add(s.opts.ExecTimeout))
	if err := protocol.WritePacket(s.conn, req); err != nil {
		s.logger.Warn().Err(err).Str("addr", s.addr).Msg("rcon write failed, dropping connection")
		s.dropLocked()
		return "", fmt.Errorf("%w: %v", ErrClosed, err)
	}

	reply, err := s.readReplyLocked(id)
	if err != nil {
		return "", err
	}

	s.logger.Debug().
		Int32("request_id", id).
		Str("command", command).
		Int("reply_len", len(reply)).
		Msg("rcon command executed")

	return reply, nil
}

// readReplyLocked collects all frames belonging to request id and
// concatenates their payloads. Completion is signalled either by a frame
// shorter than the maximum fragment size, by an empty trailer frame, or
// by the grace-read window elapsing after a full-size frame. Frames
// carrying a stale request id (a previously abandoned call's late reply)
// are discarded. Caller holds the mutex.
func (s *Session) readReplyLocked(id int32) (string, error) {
	var buf strings.Builder
	got := false
	deadline := time.Now().Add(s.opts.ExecTimeout)

	for {
		if got {
			// Full-size frame seen: give continuation frames one short
			// window to arrive before declaring the reply complete.
			s.conn.SetReadDeadline(time.Now().Add(s.opts.GraceRead))
		} else {
			s.conn.SetReadDeadline(deadline)
		}

		pkt, err := protocol.ReadPacket(s.conn)
		if err != nil {
			if isTimeout(err) {
				if got {
					return buf.String(), nil
				}
				return "", ErrTimeout
			}
			var framing *protocol.FramingError
			if errors.As(err, &framing) {
				s.logger.Error().Err(err).Msg("rcon stream corrupt, dropping connection")
				s.dropLocked()
				return "", fmt.Errorf("%w: %v", ErrClosed, err)
			}
			s.logger.Warn().Err(err).Msg("rcon read failed, dropping connection")
			s.dropLocked()
			return "", fmt.Errorf("%w: %v", ErrClosed, err)
		}

		if pkt.RequestID != id {
			// No waiter for this id anymore: late reply to an abandoned
			// request. Drop it and keep reading.
			s.logger.Debug().
				Int32("got_id", pkt.RequestID).
				Int32("want_id", id).
				Msg("discarding unmatched rcon frame")
			continue
		}

		if got && pkt.Payload == "" {
			// Empty trailer frame: some server variants use it to mark
			// the end of a fragmented reply.
			return buf.String(), nil
		}

		buf.WriteString(pkt.Payload)
		got = true

		if !pkt.Fragmented() {
			return buf.String(), nil
		}
	}
}

// Ping verifies the session by executing "list" and returns the server's
// reply. Used by startup checks and the health manager.
func (s *Session) Ping(ctx context.Context) (string, error) {
	return s.Execute(ctx, "list")
}

func (s *Session) emit(t events.EventType, payload interface{}) {
	if s.eventBus == nil {
		return
	}
	s.eventBus.Emit(context.Background(), events.Event{
		Type:    t,
		Source:  "rcon:" + s.addr,
		Payload: payload,
	})
}

func isTimeout(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, os.ErrDeadlineExceeded)
}
