//go:build linux

package logserve

import (
	"bufio"
	"context"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func writeLines(t *testing.T, path string, lines ...string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	for _, line := range lines {
		if _, err := f.WriteString(line + "\n"); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
}

func collectLines(t *testing.T, tailer *Tailer) (*sync.Mutex, *[]string, context.CancelFunc) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	var mu sync.Mutex
	var got []string
	go tailer.Run(ctx, func(line string) {
		mu.Lock()
		got = append(got, line)
		mu.Unlock()
	})
	return &mu, &got, cancel
}

func waitForLines(t *testing.T, mu *sync.Mutex, got *[]string, n int) []string {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		if len(*got) >= n {
			out := append([]string(nil), *got...)
			mu.Unlock()
			return out
		}
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
	}
	mu.Lock()
	defer mu.Unlock()
	t.Fatalf("got %d lines in time, want %d: %v", len(*got), n, *got)
	return nil
}

func TestTailerDeliversAppendedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "latest.log")
	writeLines(t, path, "history line")

	tailer := NewTailer(path)
	mu, got, cancel := collectLines(t, tailer)
	defer cancel()

	// Give the tailer a moment to seek to EOF past the history.
	time.Sleep(150 * time.Millisecond)
	writeLines(t, path, "first", "second")

	lines := waitForLines(t, mu, got, 2)
	if lines[0] != "first" || lines[1] != "second" {
		t.Errorf("lines = %v, want [first second]", lines)
	}
	for _, line := range lines {
		if line == "history line" {
			t.Error("tailer must skip lines present before startup")
		}
	}
}

func TestTailerFollowsRotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "latest.log")
	writeLines(t, path, "old content that makes the file long")

	tailer := NewTailer(path)
	mu, got, cancel := collectLines(t, tailer)
	defer cancel()

	time.Sleep(150 * time.Millisecond)
	writeLines(t, path, "before rotation")
	waitForLines(t, mu, got, 1)

	// Rotate: replace with a fresh, shorter file.
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	// Let the tailer notice the shrink before appending.
	time.Sleep(300 * time.Millisecond)
	writeLines(t, path, "after rotation")

	lines := waitForLines(t, mu, got, 2)
	if lines[1] != "after rotation" {
		t.Errorf("post-rotation line = %q, want %q", lines[1], "after rotation")
	}
}

func TestServerBroadcastsToAllClients(t *testing.T) {
	path := filepath.Join(t.TempDir(), "latest.log")
	writeLines(t, path, "seed")

	srv := NewServer("127.0.0.1", 0, NewTailer(path))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Start(ctx)

	var addr net.Addr
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if addr = srv.Addr(); addr != nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if addr == nil {
		t.Fatal("server did not bind in time")
	}

	dial := func() net.Conn {
		conn, err := net.Dial("tcp", addr.String())
		if err != nil {
			t.Fatalf("dial: %v", err)
		}
		t.Cleanup(func() { conn.Close() })
		return conn
	}
	c1, c2 := dial(), dial()

	deadline = time.Now().Add(2 * time.Second)
	for srv.ClientCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if srv.ClientCount() != 2 {
		t.Fatalf("client count = %d, want 2", srv.ClientCount())
	}

	writeLines(t, path, "broadcast me")

	for _, conn := range []net.Conn{c1, c2} {
		conn.SetReadDeadline(time.Now().Add(3 * time.Second))
		line, err := bufio.NewReader(conn).ReadString('\n')
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if line != "broadcast me\n" {
			t.Errorf("line = %q, want %q", line, "broadcast me\n")
		}
	}
}

func TestServerDropsDisconnectedClient(t *testing.T) {
	path := filepath.Join(t.TempDir(), "latest.log")
	writeLines(t, path, "seed")

	srv := NewServer("127.0.0.1", 0, NewTailer(path))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Start(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for srv.Addr() == nil && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	conn, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	deadline = time.Now().Add(2 * time.Second)
	for srv.ClientCount() < 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	conn.Close()

	deadline = time.Now().Add(2 * time.Second)
	for srv.ClientCount() > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if srv.ClientCount() != 0 {
		t.Error("disconnected client still registered")
	}
}
