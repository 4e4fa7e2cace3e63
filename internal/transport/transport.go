// SPDX-License-Identifier: MIT
/*
Package transport streams published snapshots to external consumers:
a WebSocket broadcaster for browser frontends and, under transport/udp,
a compact binary sender for local visualizer processes. A Publisher
polls the pipeline's latest snapshot on a fixed interval and fans it
out to every configured transport.
*/
package transport

import (
	"context"
	"sync"
	"time"

	applog "spectro/internal/log"
	"spectro/internal/pipeline"
)

// SnapshotSource is anything that can hand out the latest published
// snapshot. The pipeline coordinator satisfies it.
type SnapshotSource interface {
	Latest() *pipeline.Snapshot
}

// Transport is a sink for display snapshots.
type Transport interface {
	// Send delivers one snapshot to all connected consumers. Slow or
	// gone consumers must not block the caller.
	Send(snap *pipeline.Snapshot) error
	Close() error
}

// Publisher drives one or more transports from a snapshot source at a
// fixed rate. A snapshot already delivered is not sent again, so an
// idle pipeline produces no traffic.
type Publisher struct {
	source     SnapshotSource
	transports []Transport
	interval   time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewPublisher creates a Publisher sending every interval to the given
// transports. A non-positive interval falls back to ~30 Hz.
func NewPublisher(source SnapshotSource, interval time.Duration, transports ...Transport) *Publisher {
	if interval <= 0 {
		interval = 33 * time.Millisecond
		applog.Warnf("Transport: invalid publish interval, defaulting to %s", interval)
	}
	return &Publisher{
		source:     source,
		transports: transports,
		interval:   interval,
	}
}

// Start launches the publish loop. It returns immediately.
func (p *Publisher) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.wg.Add(1)
	go p.run(ctx)
}

// Stop terminates the publish loop, waits for it to exit, and closes
// every transport. Safe to call more than once.
func (p *Publisher) Stop() {
	p.once.Do(func() {
		if p.cancel != nil {
			p.cancel()
		}
		p.wg.Wait()
		for _, tr := range p.transports {
			if err := tr.Close(); err != nil {
				applog.Warnf("Transport: close failed: %v", err)
			}
		}
	})
}

func (p *Publisher) run(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	var lastSent *pipeline.Snapshot
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := p.source.Latest()
			if snap == nil || snap == lastSent {
				continue
			}
			lastSent = snap
			for _, tr := range p.transports {
				if err := tr.Send(snap); err != nil {
					applog.Debugf("Transport: send failed: %v", err)
				}
			}
		}
	}
}
