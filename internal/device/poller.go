package device

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/tetherview/tetherview/internal/hub"
)

// Poller refreshes the mirror on an interval and turns changes into hub
// events: hub.Status on any change, hub.Disconnected when the device drops
// the session on its own.
type Poller struct {
	mirror   *Mirror
	hub      *hub.Hub
	interval time.Duration
	logger   *log.Logger
}

// NewPoller returns a Poller that refreshes mirror every interval.
func NewPoller(mirror *Mirror, h *hub.Hub, interval time.Duration, logger *log.Logger) *Poller {
	return &Poller{mirror: mirror, hub: h, interval: interval, logger: logger}
}

// Run polls until ctx is cancelled. The first poll happens immediately.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.Poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Poll(ctx)
		}
	}
}

// Poll runs a single refresh and emits what changed.
func (p *Poller) Poll(ctx context.Context) {
	ch, err := p.mirror.Refresh(ctx)
	if err != nil || !ch.Any() {
		return
	}
	p.logger.Debug("device state changed",
		"connected", ch.After.Connected,
		"model", ch.After.Model,
	)
	p.hub.Emit(hub.Status, ch.After)
	if ch.Dropped() {
		p.logger.Warn("device dropped the session")
		p.hub.Emit(hub.Disconnected, nil)
	}
}
