package rcon

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mcwarden-project/mcwarden/internal/events"
	"github.com/mcwarden-project/mcwarden/internal/protocol"
)

// fakeServer is a minimal in-process RCON server for session tests.
type fakeServer struct {
	listener net.Listener
	password string
	// handle maps a command to the frames sent back. The request id of
	// each returned frame is overwritten with the request's id.
	handle func(cmd string) []*protocol.Packet
	// dropAfterAuth closes the connection right after the first command
	// arrives, once.
	dropAfterAuth atomic.Bool
	commandCount  atomic.Int64
}

func newFakeServer(t *testing.T, password string, handle func(cmd string) []*protocol.Packet) *fakeServer {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("fake server listen: %v", err)
	}

	fs := &fakeServer{listener: ln, password: password, handle: handle}
	go fs.acceptLoop()
	t.Cleanup(func() { ln.Close() })
	return fs
}

func (fs *fakeServer) acceptLoop() {
	for {
		conn, err := fs.listener.Accept()
		if err != nil {
			return
		}
		go fs.serve(conn)
	}
}

func (fs *fakeServer) serve(conn net.Conn) {
	defer conn.Close()

	for {
		pkt, err := protocol.ReadPacket(conn)
		if err != nil {
			return
		}

		switch pkt.Type {
		case protocol.TypeLogin:
			id := pkt.RequestID
			if pkt.Payload != fs.password {
				id = protocol.AuthFailedID
			}
			protocol.WritePacket(conn, &protocol.Packet{RequestID: id, Type: protocol.TypeCommand})
			if id == protocol.AuthFailedID {
				return
			}

		case protocol.TypeCommand:
			fs.commandCount.Add(1)
			if fs.dropAfterAuth.CompareAndSwap(true, false) {
				return
			}
			for _, resp := range fs.handle(pkt.Payload) {
				resp := *resp
				resp.RequestID = pkt.RequestID
				protocol.WritePacket(conn, &resp)
			}
		}
	}
}

func (fs *fakeServer) hostPort(t *testing.T) (string, int) {
	t.Helper()
	addr := fs.listener.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port
}

func echoHandler(cmd string) []*protocol.Packet {
	return []*protocol.Packet{{Type: protocol.TypeResponse, Payload: "echo:" + cmd}}
}

func newTestSession(t *testing.T, fs *fakeServer, password string) *Session {
	t.Helper()
	host, port := fs.hostPort(t)
	s := NewSession(host, port, password, events.NewEventBus(), Options{
		ConnectTimeout: 2 * time.Second,
		ExecTimeout:    2 * time.Second,
		GraceRead:      50 * time.Millisecond,
	})
	t.Cleanup(s.Close)
	return s
}

func TestConnectAndExecute(t *testing.T) {
	fs := newFakeServer(t, "secret", echoHandler)
	s := newTestSession(t, fs, "secret")

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !s.Connected() {
		t.Fatal("session should report connected after Connect")
	}

	got, err := s.Execute(context.Background(), "list")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got != "echo:list" {
		t.Errorf("Execute reply = %q, want %q", got, "echo:list")
	}
}

func TestExecuteStripsSlashPrefix(t *testing.T) {
	fs := newFakeServer(t, "secret", echoHandler)
	s := newTestSession(t, fs, "secret")

	got, err := s.Execute(context.Background(), "/say hi")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got != "echo:say hi" {
		t.Errorf("Execute reply = %q, want %q", got, "echo:say hi")
	}
}

func TestConnectWrongPassword(t *testing.T) {
	fs := newFakeServer(t, "secret", echoHandler)
	s := newTestSession(t, fs, "wrong")

	err := s.Connect(context.Background())
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("Connect with bad password: got %v, want AuthError", err)
	}
	if s.Connected() {
		t.Fatal("session must not be usable after auth failure")
	}

	if _, err := s.Execute(context.Background(), "list"); err == nil {
		t.Fatal("Execute after auth failure should not succeed")
	}
}

func TestConnectRefused(t *testing.T) {
	// Grab a port and close it so nothing is listening.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().(*net.TCPAddr)
	ln.Close()

	s := NewSession(addr.IP.String(), addr.Port, "pw", events.NewEventBus(), Options{
		ConnectTimeout: time.Second,
	})
	err = s.Connect(context.Background())
	var connErr *ConnectError
	if !errors.As(err, &connErr) {
		t.Fatalf("Connect to dead port: got %v, want ConnectError", err)
	}
}

func TestReassembleFragmentedReply(t *testing.T) {
	full := strings.Repeat("a", protocol.MaxFragmentPayload)
	tail := "the end"

	for name, frames := range map[string][]*protocol.Packet{
		"short_final_frame": {
			{Type: protocol.TypeResponse, Payload: full},
			{Type: protocol.TypeResponse, Payload: tail},
		},
		"empty_trailer": {
			{Type: protocol.TypeResponse, Payload: full},
			{Type: protocol.TypeResponse, Payload: tail},
			{Type: protocol.TypeResponse, Payload: ""},
		},
		"three_fragments": {
			{Type: protocol.TypeResponse, Payload: full},
			{Type: protocol.TypeResponse, Payload: full},
			{Type: protocol.TypeResponse, Payload: tail},
		},
	} {
		t.Run(name, func(t *testing.T) {
			var want strings.Builder
			for _, f := range frames {
				want.WriteString(f.Payload)
			}

			frames := frames
			fs := newFakeServer(t, "secret", func(string) []*protocol.Packet { return frames })
			s := newTestSession(t, fs, "secret")

			got, err := s.Execute(context.Background(), "banlist")
			if err != nil {
				t.Fatalf("Execute: %v", err)
			}
			if got != want.String() {
				t.Errorf("reassembled %d bytes, want %d", len(got), want.Len())
			}
		})
	}
}

func TestFullSizeReplyWithoutTrailer(t *testing.T) {
	// A reply that is exactly one full frame and has no continuation:
	// the grace read must elapse and the payload be returned intact.
	full := strings.Repeat("b", protocol.MaxFragmentPayload)
	fs := newFakeServer(t, "secret", func(string) []*protocol.Packet {
		return []*protocol.Packet{{Type: protocol.TypeResponse, Payload: full}}
	})
	s := newTestSession(t, fs, "secret")

	got, err := s.Execute(context.Background(), "banlist")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got != full {
		t.Errorf("reply length = %d, want %d", len(got), len(full))
	}
}

func TestExecuteTimeout(t *testing.T) {
	fs := newFakeServer(t, "secret", func(string) []*protocol.Packet { return nil })
	host, port := fs.hostPort(t)
	s := NewSession(host, port, "secret", events.NewEventBus(), Options{
		ConnectTimeout: 2 * time.Second,
		ExecTimeout:    200 * time.Millisecond,
		GraceRead:      50 * time.Millisecond,
	})
	t.Cleanup(s.Close)

	_, err := s.Execute(context.Background(), "list")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Execute against silent server: got %v, want ErrTimeout", err)
	}

	// Timeout keeps the connection: the next call reuses it.
	if !s.Connected() {
		t.Fatal("session should stay connected after a timeout")
	}
}

func TestReconnectAfterDrop(t *testing.T) {
	fs := newFakeServer(t, "secret", echoHandler)
	s := newTestSession(t, fs, "secret")

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	fs.dropAfterAuth.Store(true)
	_, err := s.Execute(context.Background(), "list")
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("Execute during drop: got %v, want ErrClosed", err)
	}

	// The next call reconnects transparently.
	got, err := s.Execute(context.Background(), "list")
	if err != nil {
		t.Fatalf("Execute after drop: %v", err)
	}
	if got != "echo:list" {
		t.Errorf("Execute after reconnect = %q, want %q", got, "echo:list")
	}
}

func TestLateReplyDiscarded(t *testing.T) {
	// The server responds to the first command only after the caller has
	// timed out. The second command's reply must not be polluted by the
	// late frame of the first.
	var calls atomic.Int64
	fs := newFakeServer(t, "secret", func(cmd string) []*protocol.Packet {
		if calls.Add(1) == 1 {
			time.Sleep(400 * time.Millisecond)
			return []*protocol.Packet{{Type: protocol.TypeResponse, Payload: "stale"}}
		}
		return []*protocol.Packet{{Type: protocol.TypeResponse, Payload: "fresh"}}
	})
	host, port := fs.hostPort(t)
	s := NewSession(host, port, "secret", events.NewEventBus(), Options{
		ConnectTimeout: 2 * time.Second,
		ExecTimeout:    150 * time.Millisecond,
		GraceRead:      50 * time.Millisecond,
	})
	t.Cleanup(s.Close)

	if _, err := s.Execute(context.Background(), "first"); !errors.Is(err, ErrTimeout) {
		t.Fatalf("first Execute: got %v, want ErrTimeout", err)
	}

	time.Sleep(500 * time.Millisecond) // let the stale frame land in the socket buffer

	got, err := s.Execute(context.Background(), "second")
	if err != nil {
		t.Fatalf("second Execute: %v", err)
	}
	if got != "fresh" {
		t.Errorf("second Execute = %q, want %q (stale frame must be discarded)", got, "fresh")
	}
}

func TestExecuteSerialized(t *testing.T) {
	fs := newFakeServer(t, "secret", func(cmd string) []*protocol.Packet {
		time.Sleep(20 * time.Millisecond)
		return []*protocol.Packet{{Type: protocol.TypeResponse, Payload: "echo:" + cmd}}
	})
	s := newTestSession(t, fs, "secret")

	done := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			reply, err := s.Execute(context.Background(), "list")
			if err == nil && reply != "echo:list" {
				err = errors.New("cross-talk: " + reply)
			}
			done <- err
		}()
	}
	for i := 0; i < 8; i++ {
		if err := <-done; err != nil {
			t.Fatalf("concurrent Execute: %v", err)
		}
	}
	if n := fs.commandCount.Load(); n != 8 {
		t.Errorf("server saw %d commands, want 8", n)
	}
}
