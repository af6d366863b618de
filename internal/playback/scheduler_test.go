package playback

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lexiqai/voice-client/internal/audio"
	"github.com/rs/zerolog"
)

// fakeDevice is a manually clocked device for deterministic tests
type fakeDevice struct {
	mu      sync.Mutex
	clock   time.Duration
	plays   []fakePlay
	failErr error
}

type fakePlay struct {
	at   time.Duration
	dur  time.Duration
	done chan struct{}
}

func (d *fakeDevice) Now() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.clock
}

func (d *fakeDevice) Play(buf *audio.SampleBuffer, at time.Duration) (<-chan struct{}, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failErr != nil {
		return nil, d.failErr
	}
	p := fakePlay{at: at, dur: buf.Duration(), done: make(chan struct{})}
	d.plays = append(d.plays, p)
	return p.done, nil
}

func (d *fakeDevice) Close() error { return nil }

func (d *fakeDevice) setClock(t time.Duration) {
	d.mu.Lock()
	d.clock = t
	d.mu.Unlock()
}

func (d *fakeDevice) finish(i int) {
	d.mu.Lock()
	done := d.plays[i].done
	d.mu.Unlock()
	close(done)
}

func bufferOf(ms int) *audio.SampleBuffer {
	// mono at 16kHz: ms milliseconds = 16*ms frames
	return audio.NewSampleBuffer(1, 16*ms, 16000)
}

func TestScheduler_GaplessStartTimes(t *testing.T) {
	dev := &fakeDevice{}
	s := NewScheduler(dev, zerolog.Nop(), nil)

	durations := []int{100, 50, 25, 75}
	var handles []*Handle
	for _, ms := range durations {
		h, err := s.Schedule(bufferOf(ms))
		if err != nil {
			t.Fatalf("Schedule failed: %v", err)
		}
		handles = append(handles, h)
	}

	// Each chunk starts exactly where the previous one ends
	var expect time.Duration
	for i, h := range handles {
		if h.StartAt != expect {
			t.Errorf("Chunk %d: expected start %v, got %v", i, expect, h.StartAt)
		}
		expect += h.Duration
	}

	// No two [start, end) intervals overlap
	for i := 1; i < len(handles); i++ {
		if handles[i].StartAt < handles[i-1].End() {
			t.Errorf("Chunk %d overlaps chunk %d", i, i-1)
		}
	}

	if s.NextStart() != expect {
		t.Errorf("Expected nextStart %v, got %v", expect, s.NextStart())
	}
}

func TestScheduler_FirstChunkStartsAtClock(t *testing.T) {
	dev := &fakeDevice{}
	dev.setClock(200 * time.Millisecond)
	s := NewScheduler(dev, zerolog.Nop(), nil)

	h, err := s.Schedule(bufferOf(50))
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}

	if h.StartAt != 200*time.Millisecond {
		t.Errorf("Expected start at device clock 200ms, got %v", h.StartAt)
	}
}

func TestScheduler_StallRecovery(t *testing.T) {
	dev := &fakeDevice{}
	s := NewScheduler(dev, zerolog.Nop(), nil)

	h1, _ := s.Schedule(bufferOf(100))
	if h1.StartAt != 0 {
		t.Fatalf("Expected first chunk at 0, got %v", h1.StartAt)
	}

	// Playback underrun: clock advances past the pending end time
	dev.setClock(500 * time.Millisecond)

	h2, _ := s.Schedule(bufferOf(100))
	if h2.StartAt != 500*time.Millisecond {
		t.Errorf("Expected stalled chunk to start at clock 500ms, got %v", h2.StartAt)
	}
	if s.NextStart() != 600*time.Millisecond {
		t.Errorf("Expected nextStart 600ms, got %v", s.NextStart())
	}
}

func TestScheduler_NextStartMonotonic(t *testing.T) {
	dev := &fakeDevice{}
	s := NewScheduler(dev, zerolog.Nop(), nil)

	last := s.NextStart()
	for i := 0; i < 10; i++ {
		if i == 5 {
			dev.setClock(5 * time.Second)
		}
		s.Schedule(bufferOf(10))
		if next := s.NextStart(); next < last {
			t.Fatalf("nextStart went backwards: %v -> %v", last, next)
		} else {
			last = next
		}
	}
}

func TestScheduler_IdleSignaledOnce(t *testing.T) {
	dev := &fakeDevice{}
	idle := make(chan struct{}, 4)
	s := NewScheduler(dev, zerolog.Nop(), func() { idle <- struct{}{} })

	s.Schedule(bufferOf(50))
	s.Schedule(bufferOf(50))

	dev.finish(0)

	// First completion leaves one live chunk: no idle yet
	select {
	case <-idle:
		t.Fatal("Idle signaled while a chunk was still live")
	case <-time.After(50 * time.Millisecond):
	}

	dev.finish(1)

	select {
	case <-idle:
	case <-time.After(time.Second):
		t.Fatal("Expected idle signal after last chunk completed")
	}

	// Exactly once
	select {
	case <-idle:
		t.Fatal("Idle signaled more than once")
	case <-time.After(50 * time.Millisecond):
	}

	if s.Live() != 0 {
		t.Errorf("Expected 0 live chunks, got %d", s.Live())
	}
}

func TestScheduler_DeviceErrorLeavesStateUnchanged(t *testing.T) {
	dev := &fakeDevice{}
	s := NewScheduler(dev, zerolog.Nop(), nil)

	s.Schedule(bufferOf(100))
	before := s.NextStart()

	dev.failErr = errors.New("device gone")
	_, err := s.Schedule(bufferOf(100))
	if err == nil {
		t.Fatal("Expected error from failing device")
	}

	var devErr *audio.DeviceError
	if !errors.As(err, &devErr) {
		t.Errorf("Expected DeviceError, got %T", err)
	}

	if s.NextStart() != before {
		t.Errorf("Expected nextStart unchanged at %v, got %v", before, s.NextStart())
	}
	if s.Live() != 1 {
		t.Errorf("Expected 1 live chunk, got %d", s.Live())
	}
}

func TestScheduler_ResetTearsDownWithoutIdle(t *testing.T) {
	dev := &fakeDevice{}
	idle := make(chan struct{}, 4)
	s := NewScheduler(dev, zerolog.Nop(), func() { idle <- struct{}{} })

	s.Schedule(bufferOf(50))
	s.Reset()

	if s.Live() != 0 {
		t.Errorf("Expected 0 live chunks after Reset, got %d", s.Live())
	}
	if s.NextStart() != 0 {
		t.Errorf("Expected nextStart 0 after Reset, got %v", s.NextStart())
	}

	// Late completion of a torn-down chunk must not signal idle
	dev.finish(0)
	select {
	case <-idle:
		t.Fatal("Idle signaled for a chunk torn down by Reset")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestScheduler_Stats(t *testing.T) {
	dev := &fakeDevice{}
	s := NewScheduler(dev, zerolog.Nop(), nil)

	s.Schedule(bufferOf(10))
	s.Schedule(bufferOf(10))
	dev.finish(0)

	deadline := time.Now().Add(time.Second)
	for {
		st := s.Stats()
		if st.Completed == 1 {
			if st.Scheduled != 2 {
				t.Errorf("Expected 2 scheduled, got %d", st.Scheduled)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Timed out waiting for completion stat")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
