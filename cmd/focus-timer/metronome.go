package main

import (
	"sync"
	"time"
)

// Metronome delivers the once-per-second countdown cadence. C returns nil
// while stopped, so a select on it simply never fires.
type Metronome interface {
	Start()
	Stop()
	C() <-chan time.Time
}

// tickerMetronome is a Metronome backed by time.Ticker.
type tickerMetronome struct {
	mu       sync.Mutex
	interval time.Duration
	ticker   *time.Ticker
}

func newTickerMetronome(interval time.Duration) *tickerMetronome {
	return &tickerMetronome{interval: interval}
}

// Start begins ticking. Starting a running metronome keeps its phase.
func (m *tickerMetronome) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ticker == nil {
		m.ticker = time.NewTicker(m.interval)
	}
}

func (m *tickerMetronome) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ticker != nil {
		m.ticker.Stop()
		m.ticker = nil
	}
}

func (m *tickerMetronome) C() <-chan time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ticker == nil {
		return nil
	}
	return m.ticker.C
}
