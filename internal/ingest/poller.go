package ingest

import (
	"context"
	"log/slog"
	gosync "sync"
	"time"

	"github.com/emfcontracting/fieldsync/internal/model"
)

// PollState represents the current state of the polling loop.
type PollState int

const (
	PollIdle PollState = iota
	PollRunning
	PollError
)

// PollStatus holds the loop's last-known state for status reporting.
type PollStatus struct {
	State    PollState
	LastRun  time.Time
	LastErr  error
	Cycles   int
	Imported int
}

// Poller drives the importer on a fixed interval with support for
// immediate manual triggers. One cycle runs at a time.
type Poller struct {
	importer *Importer
	cfg      model.ImportConfig
	timeouts model.TimeoutConfig
	log      *slog.Logger

	resultCh  chan *CycleSummary
	triggerCh chan struct{}
	stopCh    chan struct{}
	mu        gosync.Mutex
	status    PollStatus
	running   bool
}

// NewPoller creates a poller around an importer.
func NewPoller(
	importer *Importer,
	cfg model.ImportConfig,
	timeouts model.TimeoutConfig,
	log *slog.Logger,
) *Poller {
	return &Poller{
		importer:  importer,
		cfg:       cfg,
		timeouts:  timeouts,
		log:       log,
		resultCh:  make(chan *CycleSummary, 16),
		triggerCh: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
	}
}

// Start launches the polling goroutine. Calling Start on a running
// poller is a no-op.
func (p *Poller) Start() {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.mu.Unlock()

	go p.loop()
}

// Stop halts the polling goroutine. An in-flight cycle finishes; its
// result is still delivered.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}

	close(p.stopCh)
	p.running = false
}

// Trigger requests an immediate cycle. Coalesces with a pending
// trigger rather than queueing.
func (p *Poller) Trigger() {
	select {
	case p.triggerCh <- struct{}{}:
	default:
	}
}

// Results exposes the stream of cycle summaries for callers that want
// to report each pass as it completes.
func (p *Poller) Results() <-chan *CycleSummary {
	return p.resultCh
}

// Status returns the loop's last-known state.
func (p *Poller) Status() PollStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// loop is the polling goroutine body.
func (p *Poller) loop() {
	interval := time.Duration(p.cfg.PollIntervalSec) * time.Second
	if interval <= 0 {
		interval = 600 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Run a cycle immediately on start.
	p.runOnce()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.runOnce()
		case <-p.triggerCh:
			p.runOnce()
		}
	}
}

// runOnce executes one import cycle under the cycle timeout and
// publishes the summary.
func (p *Poller) runOnce() {
	p.setState(PollRunning, nil)

	timeout := time.Duration(p.timeouts.CycleSec) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	summary, err := p.importer.RunCycle(ctx)
	if err != nil {
		p.log.Error("import cycle failed", "error", err)
		p.setState(PollError, err)
	} else {
		p.mu.Lock()
		p.status.Cycles++
		p.status.Imported += summary.Created
		p.mu.Unlock()
		p.setState(PollIdle, nil)
	}

	p.sendResult(summary)
}

// setState updates the loop status.
func (p *Poller) setState(state PollState, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status.State = state
	p.status.LastErr = err
	if state == PollIdle && err == nil {
		p.status.LastRun = time.Now()
	}
}

// sendResult publishes a summary without blocking the loop.
func (p *Poller) sendResult(summary *CycleSummary) {
	select {
	case p.resultCh <- summary:
	default:
		// Drop if no one is reading; the store keeps the run log.
	}
}
