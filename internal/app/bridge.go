package app

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

// Bridge carries messages from background goroutines into the program.
// Wait is re-armed after every delivered message, the same way the
// program keeps a read loop going.
type Bridge struct {
	ctx context.Context
	ch  chan tea.Msg
}

func NewBridge(ctx context.Context, size int) *Bridge {
	return &Bridge{ctx: ctx, ch: make(chan tea.Msg, size)}
}

// Send queues msg. It blocks while the queue is full and gives up once the
// bridge's context is done.
func (b *Bridge) Send(msg tea.Msg) {
	select {
	case b.ch <- msg:
	case <-b.ctx.Done():
	}
}

// Wait returns a command that delivers the next queued message.
func (b *Bridge) Wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-b.ch:
			return msg
		case <-b.ctx.Done():
			return nil
		}
	}
}
