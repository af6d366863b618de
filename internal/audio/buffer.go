package audio

import "time"

// SampleBuffer holds normalized audio samples in [-1, 1), one slice per
// channel, all channels the same length.
type SampleBuffer struct {
	Channels   [][]float32
	SampleRate int
}

// NewSampleBuffer allocates a buffer with the given frame count
func NewSampleBuffer(channels, frames, sampleRate int) *SampleBuffer {
	chs := make([][]float32, channels)
	for i := range chs {
		chs[i] = make([]float32, frames)
	}
	return &SampleBuffer{Channels: chs, SampleRate: sampleRate}
}

// Frames returns the number of frames (samples per channel)
func (b *SampleBuffer) Frames() int {
	if len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Duration returns the playback duration of the buffer
func (b *SampleBuffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(b.Frames()) * time.Second / time.Duration(b.SampleRate)
}
