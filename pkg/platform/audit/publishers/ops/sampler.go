package ops

import (
	"math/rand/v2"
	"sync"

	audit "eduverify/pkg/platform/audit"
)

// Sampler decides which ops events are kept. Verification lookups are the
// high-volume case; mutations never pass through here.
type Sampler struct {
	mu      sync.RWMutex
	def     float64
	byEvent map[audit.AuditEvent]float64
	draw    func() float64
}

// NewSampler keeps events with probability rate, clamped to [0, 1].
func NewSampler(rate float64) *Sampler {
	return &Sampler{
		def:     clampRate(rate),
		byEvent: make(map[audit.AuditEvent]float64),
		draw:    rand.Float64,
	}
}

// ShouldSample reports whether the event with this action is kept.
func (s *Sampler) ShouldSample(action string) bool {
	rate := s.rateFor(audit.AuditEvent(action))
	switch rate {
	case 0:
		return false
	case 1:
		return true
	}
	return s.draw() < rate
}

// SetRate overrides the rate for one event type.
func (s *Sampler) SetRate(event audit.AuditEvent, rate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byEvent[event] = clampRate(rate)
}

func (s *Sampler) rateFor(event audit.AuditEvent) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rate, ok := s.byEvent[event]; ok {
		return rate
	}
	return s.def
}

func clampRate(rate float64) float64 {
	return min(max(rate, 0), 1)
}
