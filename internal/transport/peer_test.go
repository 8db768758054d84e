package transport

import (
	"strings"
	"testing"

	"github.com/pion/webrtc/v4"

	"peerdrop/internal/config"
)

func TestConnectionStateFailuresAreReported(t *testing.T) {
	p := NewPeerService(config.NewDefaultConfig(), nil)

	p.handleConnectionStateChange(webrtc.PeerConnectionStateConnected, "host")
	select {
	case f := <-p.Failures():
		t.Fatalf("unexpected failure for connected state: %v", f)
	default:
	}

	p.handleConnectionStateChange(webrtc.PeerConnectionStateFailed, "host")
	// a second failure must not block while one is pending
	p.handleConnectionStateChange(webrtc.PeerConnectionStateClosed, "host")

	f := <-p.Failures()
	if f.State != webrtc.PeerConnectionStateFailed || f.Role != "host" {
		t.Fatalf("unexpected failure: %+v", f)
	}
	if !strings.Contains(f.Error(), "failed") {
		t.Fatalf("error text = %q", f.Error())
	}
}

func TestDataChannelSendBeforeOpen(t *testing.T) {
	c := NewDataChannel(config.NewDefaultConfig(), nil)
	if err := c.Send(t.Context(), []byte("x")); err != ErrChannelNotReady {
		t.Fatalf("send before open = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := c.Send(t.Context(), []byte("x")); err != ErrChannelClosed {
		t.Fatalf("send after close = %v", err)
	}
	select {
	case <-c.Done():
	default:
		t.Fatal("Done not closed after Close")
	}
}
