package chat

import (
	"sync"
	"time"
)

// pendingTracker tracks sends awaiting their subscription echo. Each send
// moves Pending -> Confirmed when the echo arrives, or Pending -> Failed
// when the timeout fires first; a send is never left pending forever.
type pendingTracker struct {
	mu      sync.Mutex
	timeout time.Duration
	timers  map[string]*time.Timer
	onFail  func(messageID string)
}

func newPendingTracker(timeout time.Duration, onFail func(messageID string)) *pendingTracker {
	return &pendingTracker{
		timeout: timeout,
		timers:  make(map[string]*time.Timer),
		onFail:  onFail,
	}
}

func (p *pendingTracker) Track(messageID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.timers[messageID]; ok {
		return
	}
	p.timers[messageID] = time.AfterFunc(p.timeout, func() {
		if p.expire(messageID) && p.onFail != nil {
			p.onFail(messageID)
		}
	})
}

// Confirm resolves a pending send; returns whether it was still pending.
func (p *pendingTracker) Confirm(messageID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	timer, ok := p.timers[messageID]
	if !ok {
		return false
	}
	timer.Stop()
	delete(p.timers, messageID)
	return true
}

func (p *pendingTracker) expire(messageID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.timers[messageID]; !ok {
		return false
	}
	delete(p.timers, messageID)
	return true
}

// Stop drops all pending sends without firing callbacks.
func (p *pendingTracker) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, timer := range p.timers {
		timer.Stop()
		delete(p.timers, id)
	}
}
