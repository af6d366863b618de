package playback

import (
	"sync"
	"time"

	"github.com/lexiqai/voice-client/internal/audio"
	"github.com/rs/zerolog"
)

// Scheduler plays decoded chunks back-to-back with no gap or overlap,
// even though chunks arrive at irregular times. Arrival order is assumed
// to match intended playback order; the websocket transport preserves it.
type Scheduler struct {
	device Device
	logger zerolog.Logger
	onIdle func()

	mu        sync.Mutex
	nextStart time.Duration
	live      map[*Handle]struct{}
	stats     Stats
}

// Handle represents one scheduled, in-flight chunk
type Handle struct {
	StartAt  time.Duration
	Duration time.Duration
}

// End returns the clock position at which the chunk finishes
func (h *Handle) End() time.Duration {
	return h.StartAt + h.Duration
}

// Stats tracks scheduler counters
type Stats struct {
	Scheduled int64
	Completed int64
}

// NewScheduler creates a playback scheduler. onIdle is invoked once each
// time the set of in-flight chunks drains to empty; it may be nil.
func NewScheduler(device Device, logger zerolog.Logger, onIdle func()) *Scheduler {
	return &Scheduler{
		device: device,
		logger: logger,
		onIdle: onIdle,
		live:   make(map[*Handle]struct{}),
	}
}

// Schedule queues buf for gapless playback after the previously scheduled
// chunk, or immediately if playback has stalled past the pending end time.
func (s *Scheduler) Schedule(buf *audio.SampleBuffer) (*Handle, error) {
	s.mu.Lock()

	// Critical section: nextStart must not be read and written around a
	// suspension point, or out-of-order completions would corrupt it.
	startAt := s.nextStart
	if now := s.device.Now(); now > startAt {
		startAt = now
	}

	done, err := s.device.Play(buf, startAt)
	if err != nil {
		s.mu.Unlock()
		return nil, &audio.DeviceError{Op: "play", Err: err}
	}

	h := &Handle{StartAt: startAt, Duration: buf.Duration()}
	s.live[h] = struct{}{}
	s.nextStart = startAt + h.Duration
	s.stats.Scheduled++
	s.mu.Unlock()

	s.logger.Debug().
		Dur("start_at", h.StartAt).
		Dur("duration", h.Duration).
		Msg("Scheduled playback chunk")

	go func() {
		<-done
		s.complete(h)
	}()

	return h, nil
}

func (s *Scheduler) complete(h *Handle) {
	s.mu.Lock()
	if _, ok := s.live[h]; !ok {
		// Already torn down by Reset
		s.mu.Unlock()
		return
	}
	delete(s.live, h)
	s.stats.Completed++
	idle := len(s.live) == 0
	s.mu.Unlock()

	if idle && s.onIdle != nil {
		s.onIdle()
	}
}

// Live returns the number of in-flight chunks
func (s *Scheduler) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// NextStart returns the clock position at which the next chunk would begin
func (s *Scheduler) NextStart() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextStart
}

// Stats returns scheduler counters
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Reset tears down all in-flight chunks without emitting an idle
// notification. Used when the session closes; no partial chunk resumes.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	s.live = make(map[*Handle]struct{})
	s.nextStart = 0
	s.mu.Unlock()
}
