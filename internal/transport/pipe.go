package transport

import (
	"context"
	"sync"
)

// PipeEnd is one side of an in-process Channel pair. Useful for tests and
// for wiring two sessions inside one process.
type PipeEnd struct {
	label string
	in    chan []byte
	peer  *PipeEnd
	state *pipeState
}

type pipeState struct {
	once sync.Once
	done chan struct{}
}

// NewPipe returns two connected channel ends. buffer is the number of
// messages each direction holds before Send blocks.
func NewPipe(buffer int) (*PipeEnd, *PipeEnd) {
	state := &pipeState{done: make(chan struct{})}
	a := &PipeEnd{label: "pipe-a", in: make(chan []byte, buffer), state: state}
	b := &PipeEnd{label: "pipe-b", in: make(chan []byte, buffer), state: state}
	a.peer, b.peer = b, a
	return a, b
}

// Send copies payload into the peer's inbox
func (p *PipeEnd) Send(ctx context.Context, payload []byte) error {
	select {
	case <-p.state.done:
		return ErrChannelClosed
	default:
	}

	msg := make([]byte, len(payload))
	copy(msg, payload)

	select {
	case p.peer.in <- msg:
		return nil
	case <-p.state.done:
		return ErrChannelClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Messages returns messages sent by the other end
func (p *PipeEnd) Messages() <-chan []byte { return p.in }

// Done is closed once either end is closed
func (p *PipeEnd) Done() <-chan struct{} { return p.state.done }

// Label identifies the pipe end
func (p *PipeEnd) Label() string { return p.label }

// Close closes both ends
func (p *PipeEnd) Close() error {
	p.state.once.Do(func() { close(p.state.done) })
	return nil
}
