package ui

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"peerdrop/internal/registry"
	"peerdrop/internal/transfer"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		want Command
		err  error
	}{
		{"send ./docs/report.pdf", Command{Kind: CommandSend, Arg: "./docs/report.pdf"}, nil},
		{"  send   my file.txt ", Command{Kind: CommandSend, Arg: "my file.txt"}, nil},
		{`send "quoted name.txt"`, Command{Kind: CommandSend, Arg: "quoted name.txt"}, nil},
		{"cancel report.pdf", Command{Kind: CommandCancel, Arg: "report.pdf"}, nil},
		{"ls", Command{Kind: CommandList}, nil},
		{"QUIT", Command{Kind: CommandQuit}, nil},
		{"help", Command{Kind: CommandHelp}, nil},
		{"send", Command{}, ErrMissingArgument},
		{"cancel  ", Command{}, ErrMissingArgument},
		{"upload x", Command{}, ErrUnknownCommand},
		{"", Command{}, ErrUnknownCommand},
	}

	for _, tt := range tests {
		got, err := ParseCommand(tt.line)
		if tt.err != nil {
			if !errors.Is(err, tt.err) {
				t.Errorf("ParseCommand(%q) err = %v, want %v", tt.line, err, tt.err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseCommand(%q) = %+v, %v; want %+v", tt.line, got, err, tt.want)
		}
	}
}

func TestWriteTransfers(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteTransfers(&buf, nil, nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No transfers") {
		t.Fatalf("empty table = %q", buf.String())
	}

	buf.Reset()
	err := WriteTransfers(&buf,
		[]registry.OutboundTransfer{{FileName: "a.pdf", TotalSize: 3 << 20, Progress: 67, Status: registry.StatusSending}},
		[]registry.InboundTransfer{{FileName: "b.txt", Progress: 100, Status: registry.StatusDone, ChunksReceived: 2, BytesReceived: 2048}},
	)
	if err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"a.pdf", "3.0 MB", "67%", "sending", "b.txt", "2.0 KB", "done"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func TestConsoleSavesReceivedFile(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	c := NewConsoleUI(strings.NewReader(""), &out, dir, nil)

	blob := transfer.NewBlobStore().Put("photo.png", "image/png", []byte("png-bytes"))
	c.Progress(transfer.Inbound, "photo.png", 50)
	c.Completed(transfer.Inbound, "photo.png", blob)

	data, err := os.ReadFile(filepath.Join(dir, "photo.png"))
	if err != nil || string(data) != "png-bytes" {
		t.Fatalf("saved file = %q, %v", data, err)
	}
	if !strings.Contains(out.String(), "Received photo.png") {
		t.Errorf("output = %q", out.String())
	}
	if len(c.bars) != 0 {
		t.Errorf("progress bar left behind")
	}
}

func TestConsoleCancelledClearsBar(t *testing.T) {
	var out bytes.Buffer
	c := NewConsoleUI(strings.NewReader(""), &out, t.TempDir(), nil)

	c.Progress(transfer.Outbound, "big.iso", 10)
	c.Cancelled(transfer.Outbound, "big.iso")
	c.Warn("ignoring chunk")

	if len(c.bars) != 0 {
		t.Errorf("progress bar left behind")
	}
	for _, want := range []string{"Cancelled sending big.iso", "Warning: ignoring chunk"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q: %q", want, out.String())
		}
	}
}

func TestInputCodeRetriesUntilValid(t *testing.T) {
	var out bytes.Buffer
	c := NewConsoleUI(strings.NewReader("nope\nABCD1234\n"), &out, t.TempDir(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	code, err := c.InputCode(ctx)
	if err != nil {
		t.Fatalf("input code: %v", err)
	}
	if code != "ABCD1234" {
		t.Fatalf("code = %q", code)
	}
	if !strings.Contains(out.String(), "Invalid code") {
		t.Errorf("no retry message: %q", out.String())
	}
}

func TestInputCodeEOF(t *testing.T) {
	c := NewConsoleUI(strings.NewReader(""), io.Discard, t.TempDir(), nil)
	if _, err := c.InputCode(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("err = %v, want EOF", err)
	}
}
