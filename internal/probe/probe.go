// Package probe pings the device host so the status bar can show whether
// the network path is alive independently of the HTTP service.
package probe

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	probing "github.com/prometheus-community/pro-bing"
	"github.com/tetherview/tetherview/internal/config"
)

// Result is the outcome of the latest probe round.
type Result struct {
	Host     string
	RTT      time.Duration
	Loss     float64 // percent
	Sent     int
	Received int
	At       time.Time
	Err      string
}

// Reachable reports whether at least one reply came back.
func (r Result) Reachable() bool {
	return r.Err == "" && r.Received > 0
}

// pingFunc runs one round against host.
type pingFunc func(ctx context.Context, host string, cfg config.ProbeConfig) (*probing.Statistics, error)

// Prober pings a host on an interval and keeps the last result.
type Prober struct {
	host   string
	cfg    config.ProbeConfig
	logger *log.Logger
	ping   pingFunc

	mu   sync.RWMutex
	last Result
}

// New returns a Prober for host. Nothing is sent until Run or Probe.
func New(host string, cfg config.ProbeConfig, logger *log.Logger) *Prober {
	return &Prober{host: host, cfg: cfg, logger: logger, ping: ping}
}

// Last returns the most recent result. Zero until the first round ends.
func (p *Prober) Last() Result {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last
}

// Run probes until ctx is cancelled.
func (p *Prober) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.Probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Probe(ctx)
		}
	}
}

// Probe runs a single round and stores its result.
func (p *Prober) Probe(ctx context.Context) Result {
	res := Result{Host: p.host, At: time.Now()}
	stats, err := p.ping(ctx, p.host, p.cfg)
	if err != nil {
		p.logger.Warn("probe failed", "host", p.host, "err", err)
		res.Err = err.Error()
	} else {
		res.RTT = stats.AvgRtt
		res.Loss = stats.PacketLoss
		res.Sent = stats.PacketsSent
		res.Received = stats.PacketsRecv
		p.logger.Debug("probe", "host", p.host, "rtt", res.RTT, "loss", res.Loss)
	}

	p.mu.Lock()
	p.last = res
	p.mu.Unlock()
	return res
}

func ping(ctx context.Context, host string, cfg config.ProbeConfig) (*probing.Statistics, error) {
	pinger, err := probing.NewPinger(host)
	if err != nil {
		return nil, err
	}
	pinger.Count = cfg.Count
	pinger.Interval = 200 * time.Millisecond
	pinger.Timeout = time.Duration(cfg.Count)*pinger.Interval + 2*time.Second
	pinger.SetPrivileged(cfg.Privileged)

	if err := pinger.RunWithContext(ctx); err != nil {
		return nil, err
	}
	return pinger.Statistics(), nil
}
