package app

import (
	"github.com/tetherview/tetherview/internal/client"
	"github.com/tetherview/tetherview/internal/gallery"
	"github.com/tetherview/tetherview/internal/hub"
	"github.com/tetherview/tetherview/internal/preview"
)

// EventMsg is a hub event forwarded into the program.
type EventMsg struct {
	hub.Event
}

// GalleryChangedMsg reports that captures were deleted on the device.
type GalleryChangedMsg struct{}

// forwarded lists the events the program sees.
var forwarded = []string{
	hub.Connected, hub.Disconnected, hub.Captured, hub.Error,
	hub.Status, hub.Degraded, hub.Recovered,
}

// Wire subscribes the streaming loop and gallery to session events and
// forwards every event to the program. The loop follows the session:
// it runs while the camera is connected and stops when it goes away.
func Wire(h *hub.Hub, loop *preview.Loop, g *gallery.Gallery, b *Bridge) {
	h.Subscribe(hub.Connected, func(hub.Event) {
		loop.Start()
	})
	h.Subscribe(hub.Disconnected, func(hub.Event) {
		loop.Stop()
		g.Reset()
	})
	h.Subscribe(hub.Status, func(ev hub.Event) {
		st, ok := ev.Payload.(client.DeviceState)
		if !ok {
			return
		}
		if st.Connected {
			loop.Start()
		} else {
			loop.Stop()
		}
	})
	h.Subscribe(hub.Captured, func(ev hub.Event) {
		if name, ok := ev.Payload.(string); ok {
			g.MarkNew(name)
		}
	})

	for _, name := range forwarded {
		h.Subscribe(name, func(ev hub.Event) {
			b.Send(EventMsg{ev})
		})
	}
	g.OnChange(func() {
		b.Send(GalleryChangedMsg{})
	})
}
