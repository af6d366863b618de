package playback

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/lexiqai/voice-client/internal/audio"
)

// The timeline is exercised directly so tests do not need a real output
// device.

func constantBuffer(frames int, value float32) *audio.SampleBuffer {
	buf := audio.NewSampleBuffer(1, frames, 16000)
	for i := range buf.Channels[0] {
		buf.Channels[0][i] = value
	}
	return buf
}

func TestTimeline_ServesSilenceWhenIdle(t *testing.T) {
	tl := newTimeline(16000, 1)

	p := make([]byte, 64)
	n, err := tl.Read(p)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if n != len(p) {
		t.Fatalf("Expected full read, got %d", n)
	}
	for i, b := range p {
		if b != 0 {
			t.Fatalf("Byte %d: expected silence, got %d", i, b)
		}
	}

	// The clock advances with bytes served: 64 bytes = 32 frames at 16kHz
	want := 32 * time.Second / 16000
	if tl.now() != want {
		t.Errorf("Expected clock %v, got %v", want, tl.now())
	}
}

func TestTimeline_ServesSegmentAtOffset(t *testing.T) {
	tl := newTimeline(16000, 1)

	// 10 frames of 0.5 starting at frame 16 (1ms at 16kHz)
	done := tl.insert(constantBuffer(10, 0.5), time.Millisecond)

	// Frames 0..15 are silence, 16..25 carry data
	p := make([]byte, 2*26)
	tl.Read(p)

	for f := 0; f < 16; f++ {
		if v := int16(binary.LittleEndian.Uint16(p[f*2:])); v != 0 {
			t.Fatalf("Frame %d: expected silence before segment, got %d", f, v)
		}
	}
	for f := 16; f < 26; f++ {
		if v := int16(binary.LittleEndian.Uint16(p[f*2:])); v != 16384 {
			t.Fatalf("Frame %d: expected 16384 inside segment, got %d", f, v)
		}
	}

	// Segment fully served: done closes on the next read pass
	tl.Read(make([]byte, 2))
	select {
	case <-done:
	default:
		t.Error("Expected done channel to close after segment was served")
	}
}

func TestTimeline_BackToBackSegments(t *testing.T) {
	tl := newTimeline(16000, 1)

	tl.insert(constantBuffer(8, 0.25), 0)
	tl.insert(constantBuffer(8, -0.25), 8*time.Second/16000)

	p := make([]byte, 2*16)
	tl.Read(p)

	for f := 0; f < 8; f++ {
		if v := int16(binary.LittleEndian.Uint16(p[f*2:])); v != 8192 {
			t.Fatalf("Frame %d: expected 8192, got %d", f, v)
		}
	}
	for f := 8; f < 16; f++ {
		if v := int16(binary.LittleEndian.Uint16(p[f*2:])); v != -8192 {
			t.Fatalf("Frame %d: expected -8192, got %d", f, v)
		}
	}
}

func TestTimeline_LateSegmentPlaysRemainder(t *testing.T) {
	tl := newTimeline(16000, 1)

	// Advance the clock past half of where the segment will sit
	tl.Read(make([]byte, 2*4))

	done := tl.insert(constantBuffer(8, 0.5), 0)

	p := make([]byte, 2*4)
	tl.Read(p)
	for f := 0; f < 4; f++ {
		if v := int16(binary.LittleEndian.Uint16(p[f*2:])); v != 16384 {
			t.Fatalf("Frame %d: expected remainder of late segment, got %d", f, v)
		}
	}

	tl.Read(make([]byte, 2))
	select {
	case <-done:
	default:
		t.Error("Expected done channel to close once the clock passed the segment")
	}
}

func TestTimeline_Interleave(t *testing.T) {
	buf := audio.NewSampleBuffer(2, 2, 24000)
	buf.Channels[0][0] = 0.5
	buf.Channels[1][0] = -0.5
	buf.Channels[0][1] = 0.25
	buf.Channels[1][1] = -0.25

	data := interleave(buf)
	if len(data) != 8 {
		t.Fatalf("Expected 8 bytes, got %d", len(data))
	}

	want := []int16{16384, -16384, 8192, -8192}
	for i, w := range want {
		if v := int16(binary.LittleEndian.Uint16(data[i*2:])); v != w {
			t.Errorf("Sample %d: expected %d, got %d", i, w, v)
		}
	}
}
