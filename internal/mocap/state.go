package mocap

import (
	"sync"
	"time"
)

// channelEntry pairs a channel value with its bookkeeping.
type channelEntry struct {
	ch        Channel
	source    Feature
	updatedAt time.Time
	stale     bool
}

// ChannelState is the fusion target: the current value of every live
// channel for one pipeline. Single writer (fusion merge or replayer),
// snapshot-copy readers (transmission scheduler). Channels belonging to
// disabled features are simply never applied, so they are absent rather
// than zeroed.
type ChannelState struct {
	mu      sync.RWMutex
	entries map[string]channelEntry
}

// NewChannelState returns an empty channel state.
func NewChannelState() *ChannelState {
	return &ChannelState{entries: make(map[string]channelEntry)}
}

// Apply folds a partial update from one feature into the state,
// overwriting by channel name and refreshing the update timestamp.
func (s *ChannelState) Apply(source Feature, updates []Channel, now time.Time) {
	if len(updates) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range updates {
		s.entries[ch.Name] = channelEntry{ch: ch, source: source, updatedAt: now}
	}
}

// DecayPolicy parameterises the staleness pass over the channel state.
type DecayPolicy struct {
	// Window returns the staleness window for a feature's channels.
	Window func(Feature) time.Duration
	// Step is how much a stale expression moves toward its neutral value
	// per call.
	Step float64
	// Neutral returns the resting value a stale expression decays toward.
	// Nil means zero for every channel. Recentred channels such as gaze
	// rest at 0.5, not 0; decaying those to zero would transmit a hard
	// off-centre pose after tracking loss.
	Neutral func(name string) float64
}

// DecayStale walks the state and applies the staleness policy: a channel
// whose source has not produced within its window is marked stale. Stale
// bone channels hold their last rotation; stale expression channels decay
// toward their neutral value by Step per call so a lost face never freezes
// mid-expression. It returns the names of channels that transitioned to
// stale on this call, so the caller can log each transition once.
func (s *ChannelState) DecayStale(now time.Time, policy DecayPolicy) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var newlyStale []string
	for name, e := range s.entries {
		if now.Sub(e.updatedAt) <= policy.Window(e.source) {
			continue
		}
		if !e.stale {
			e.stale = true
			newlyStale = append(newlyStale, name)
		}
		if e.ch.Kind == KindExpression {
			var rest float64
			if policy.Neutral != nil {
				rest = policy.Neutral(e.ch.Name)
			}
			switch {
			case e.ch.Value > rest:
				e.ch.Value -= policy.Step
				if e.ch.Value < rest {
					e.ch.Value = rest
				}
			case e.ch.Value < rest:
				e.ch.Value += policy.Step
				if e.ch.Value > rest {
					e.ch.Value = rest
				}
			}
		}
		s.entries[name] = e
	}
	return newlyStale
}

// Snapshot returns an immutable frame copy of the current state. The copy
// is taken under the read lock and released before the caller encodes or
// sends, so no lock is ever held across a network call.
func (s *ChannelState) Snapshot(now time.Time) Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f := Frame{TimestampNanos: now.UnixNano(), Channels: make(map[string]Channel, len(s.entries))}
	for name, e := range s.entries {
		f.Channels[name] = e.ch
	}
	return f
}

// Len returns the number of live channels.
func (s *ChannelState) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
