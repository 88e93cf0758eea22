package probe

import (
	"context"
	"errors"
	"testing"
	"time"

	probing "github.com/prometheus-community/pro-bing"
	"github.com/tetherview/tetherview/internal/config"
	"github.com/tetherview/tetherview/internal/logging"
)

func TestProbeStoresStatistics(t *testing.T) {
	p := New("camera.local", config.ProbeConfig{Interval: time.Hour, Count: 3}, logging.Discard())
	p.ping = func(ctx context.Context, host string, cfg config.ProbeConfig) (*probing.Statistics, error) {
		if host != "camera.local" || cfg.Count != 3 {
			t.Errorf("ping(%q, count=%d)", host, cfg.Count)
		}
		return &probing.Statistics{
			PacketsSent: 3,
			PacketsRecv: 2,
			PacketLoss:  33.3,
			AvgRtt:      4 * time.Millisecond,
		}, nil
	}

	res := p.Probe(context.Background())
	if !res.Reachable() || res.RTT != 4*time.Millisecond || res.Loss != 33.3 {
		t.Errorf("result = %+v", res)
	}
	if p.Last() != res {
		t.Error("Last does not match the returned result")
	}
}

func TestProbeFailureIsRecorded(t *testing.T) {
	p := New("camera.local", config.ProbeConfig{Interval: time.Hour, Count: 1}, logging.Discard())
	p.ping = func(context.Context, string, config.ProbeConfig) (*probing.Statistics, error) {
		return nil, errors.New("socket: operation not permitted")
	}

	res := p.Probe(context.Background())
	if res.Reachable() || res.Err == "" {
		t.Errorf("result = %+v, want unreachable with error", res)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	p := New("h", config.ProbeConfig{Interval: 5 * time.Millisecond, Count: 1}, logging.Discard())
	calls := make(chan struct{}, 100)
	p.ping = func(context.Context, string, config.ProbeConfig) (*probing.Statistics, error) {
		calls <- struct{}{}
		return &probing.Statistics{PacketsSent: 1, PacketsRecv: 1}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	<-calls
	<-calls
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}
