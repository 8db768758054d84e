package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"peerdrop/internal/session"
	"peerdrop/internal/transport"
	"peerdrop/internal/ui"
)

// syncBuffer is a bytes.Buffer safe for the UI and the test to share
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type endpoint struct {
	manager *session.Manager
	console *ui.ConsoleUI
	out     *syncBuffer
	dir     string
}

func newEndpoint(t *testing.T, ch transport.Channel) *endpoint {
	t.Helper()
	e := &endpoint{out: &syncBuffer{}, dir: t.TempDir()}
	e.console = ui.NewConsoleUI(strings.NewReader(""), e.out, e.dir, nil)

	m, err := session.NewManager(session.Options{ChunkSize: 1024, Notifier: e.console})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if err := m.Attach(ch); err != nil {
		t.Fatalf("attach: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	e.manager = m
	return e
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestInteractiveSendAndList(t *testing.T) {
	a, b := transport.NewPipe(16)
	host := newEndpoint(t, a)
	peer := newEndpoint(t, b)

	src := filepath.Join(t.TempDir(), "hello.txt")
	payload := bytes.Repeat([]byte("hello peer\n"), 500)
	if err := os.WriteFile(src, payload, 0o644); err != nil {
		t.Fatal(err)
	}

	lines := make(chan string)
	done := make(chan error, 1)
	loop := NewInteractive(host.manager, host.console, nil)
	go func() { done <- loop.Run(context.Background(), lines, nil) }()

	lines <- "send " + src
	saved := filepath.Join(peer.dir, "hello.txt")
	waitFor(t, "file on peer", func() bool {
		data, err := os.ReadFile(saved)
		return err == nil && bytes.Equal(data, payload)
	})

	lines <- "bogus"
	lines <- "cancel nothing.bin"
	lines <- "ls"
	lines <- "quit"
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}

	out := host.out.String()
	for _, want := range []string{"unknown command", "cannot cancel nothing.bin", "hello.txt", "done"} {
		if !strings.Contains(out, want) {
			t.Errorf("host output missing %q:\n%s", want, out)
		}
	}
}

func TestInteractiveStopsOnDisconnect(t *testing.T) {
	a, b := transport.NewPipe(4)
	host := newEndpoint(t, a)
	newEndpoint(t, b)

	done := make(chan error, 1)
	go func() {
		done <- NewInteractive(host.manager, host.console, nil).Run(context.Background(), make(chan string), nil)
	}()

	b.Close()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop after disconnect")
	}
	if !strings.Contains(host.out.String(), "Peer disconnected") {
		t.Errorf("no disconnect message")
	}
}

func TestInteractiveReportsSendFailure(t *testing.T) {
	a, b := transport.NewPipe(4)
	host := newEndpoint(t, a)
	newEndpoint(t, b)

	lines := make(chan string)
	done := make(chan error, 1)
	go func() { done <- NewInteractive(host.manager, host.console, nil).Run(context.Background(), lines, nil) }()

	lines <- "send " + filepath.Join(t.TempDir(), "missing.txt")
	waitFor(t, "send failure", func() bool { return strings.Contains(host.out.String(), "cannot send") })

	close(lines)
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
}
