package app

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/tetherview/tetherview/internal/preview"
	previewview "github.com/tetherview/tetherview/internal/views/preview"
)

// FrameMsg carries a displayed frame, already rendered as text.
type FrameMsg struct {
	Info previewview.FrameInfo
	Art  string
}

// ClearedMsg reports that the preview stopped.
type ClearedMsg struct{}

type feedItem struct {
	info  previewview.FrameInfo
	data  []byte
	clear bool
}

// FrameFeed is the terminal's preview display. Only the newest pending
// item is kept, so a slow terminal skips frames rather than queueing them.
type FrameFeed struct {
	ctx context.Context
	ch  chan feedItem

	mu         sync.Mutex
	cols, rows int
}

func NewFrameFeed(ctx context.Context) *FrameFeed {
	return &FrameFeed{ctx: ctx, ch: make(chan feedItem, 1), cols: 64, rows: 18}
}

// SetSize sets the text resolution frames are rendered at.
func (f *FrameFeed) SetSize(cols, rows int) {
	f.mu.Lock()
	f.cols, f.rows = cols, rows
	f.mu.Unlock()
}

func (f *FrameFeed) size() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cols, f.rows
}

// Show copies the frame; the loop reclaims its buffer on the next cycle.
func (f *FrameFeed) Show(fr *preview.Frame) {
	data := make([]byte, fr.Len())
	copy(data, fr.Bytes())
	f.push(feedItem{
		info: previewview.FrameInfo{
			Seq:         fr.Seq,
			Size:        len(data),
			ContentType: fr.ContentType,
			FetchedAt:   fr.FetchedAt,
		},
		data: data,
	})
}

func (f *FrameFeed) Clear() {
	f.push(feedItem{clear: true})
}

func (f *FrameFeed) push(it feedItem) {
	for {
		select {
		case f.ch <- it:
			return
		default:
		}
		select {
		case <-f.ch:
		default:
		}
	}
}

// Wait returns a command that delivers the next frame or clear.
func (f *FrameFeed) Wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case it := <-f.ch:
			if it.clear {
				return ClearedMsg{}
			}
			cols, rows := f.size()
			return FrameMsg{Info: it.info, Art: previewview.Render(it.data, cols, rows)}
		case <-f.ctx.Done():
			return nil
		}
	}
}
