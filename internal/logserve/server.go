package logserve

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mcwarden-project/mcwarden/internal/util"
)

// writeTimeout bounds how long a broadcast may block on one client
// before that client is considered stuck and dropped.
const writeTimeout = 5 * time.Second

// Server accepts bridge connections and fans every tailed log line out
// to all of them. Clients send nothing meaningful; their read side is
// drained only to detect disconnects.
type Server struct {
	host   string
	port   int
	tailer *Tailer
	logger zerolog.Logger

	mu       sync.Mutex
	listener net.Listener
	clients  map[net.Conn]struct{}
}

// NewServer creates a log server that streams lines from tailer to every
// connected client.
func NewServer(host string, port int, tailer *Tailer) *Server {
	return &Server{
		host:    host,
		port:    port,
		tailer:  tailer,
		logger:  util.ComponentLogger("logserve"),
		clients: make(map[net.Conn]struct{}),
	}
}

// Addr returns the bound listen address. Valid after Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start binds the listener, then runs the accept loop and the tailer
// until ctx ends.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	// SO_REUSEADDR allows immediate rebinding after a restart while the
	// old socket lingers in TIME_WAIT.
	lc := reuseAddrListenConfig()
	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.logger.Info().Str("addr", listener.Addr().String()).Msg("log server listening")

	go func() {
		<-ctx.Done()
		listener.Close()
		s.dropAllClients()
	}()

	go s.acceptLoop(ctx, listener)

	err = s.tailer.Run(ctx, s.broadcast)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (s *Server) acceptLoop(ctx context.Context, listener net.Listener) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.logger.Info().Msg("log server stopping")
				return
			}
			s.logger.Error().Err(err).Msg("failed to accept connection")
			continue
		}

		s.logger.Info().Str("remote", conn.RemoteAddr().String()).Msg("bridge client connected")

		s.mu.Lock()
		s.clients[conn] = struct{}{}
		s.mu.Unlock()

		go s.drainClient(conn)
	}
}

// drainClient consumes whatever the client writes so the connection's
// close is noticed promptly.
func (s *Server) drainClient(conn net.Conn) {
	buf := make([]byte, 256)
	for {
		if _, err := conn.Read(buf); err != nil {
			break
		}
	}
	s.removeClient(conn)
	s.logger.Info().Str("remote", conn.RemoteAddr().String()).Msg("bridge client disconnected")
}

func (s *Server) removeClient(conn net.Conn) {
	s.mu.Lock()
	delete(s.clients, conn)
	s.mu.Unlock()
	conn.Close()
}

func (s *Server) dropAllClients() {
	s.mu.Lock()
	conns := make([]net.Conn, 0, len(s.clients))
	for conn := range s.clients {
		conns = append(conns, conn)
	}
	s.clients = make(map[net.Conn]struct{})
	s.mu.Unlock()

	for _, conn := range conns {
		conn.Close()
	}
}

// broadcast sends one log line to every connected client. Clients that
// fail the write are dropped; the tail loop never stalls on them.
func (s *Server) broadcast(line string) {
	s.mu.Lock()
	conns := make([]net.Conn, 0, len(s.clients))
	for conn := range s.clients {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	if len(conns) == 0 {
		return
	}

	data := []byte(line + "\n")
	for _, conn := range conns {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if _, err := conn.Write(data); err != nil {
			s.logger.Warn().
				Err(err).
				Str("remote", conn.RemoteAddr().String()).
				Msg("dropping client after failed write")
			s.removeClient(conn)
		}
	}
}

// ClientCount returns the number of connected bridge clients.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}
