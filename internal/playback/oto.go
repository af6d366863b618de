package playback

import (
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/lexiqai/voice-client/internal/audio"
)

// OtoDevice renders scheduled chunks through the system audio output using
// oto. A single continuous player pulls from a timeline that serves each
// chunk at its byte offset and silence in between.
//
// Now() reflects the bytes pulled by oto, which runs ahead of the audible
// position by the device buffer. The lead is constant, so gapless ordering
// between chunks is preserved.
type OtoDevice struct {
	sampleRate int
	channels   int
	otoCtx     *oto.Context
	player     *oto.Player
	tl         *timeline

	closeOnce sync.Once
}

// NewOtoDevice opens the system output at the given format and starts the
// continuous playback stream.
func NewOtoDevice(sampleRate, channels int, bufferAhead time.Duration) (*OtoDevice, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   bufferAhead,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, &audio.DeviceError{Op: "open output", Err: err}
	}
	<-readyChan

	tl := newTimeline(sampleRate, channels)
	player := ctx.NewPlayer(tl)
	player.Play()

	return &OtoDevice{
		sampleRate: sampleRate,
		channels:   channels,
		otoCtx:     ctx,
		player:     player,
		tl:         tl,
	}, nil
}

// Now returns the device playback clock
func (d *OtoDevice) Now() time.Duration {
	return d.tl.now()
}

// Play schedules buf to start at the given clock position
func (d *OtoDevice) Play(buf *audio.SampleBuffer, at time.Duration) (<-chan struct{}, error) {
	if buf.SampleRate != d.sampleRate {
		return nil, fmt.Errorf("buffer rate %d does not match device rate %d", buf.SampleRate, d.sampleRate)
	}
	if len(buf.Channels) != d.channels {
		return nil, fmt.Errorf("buffer has %d channels, device has %d", len(buf.Channels), d.channels)
	}
	return d.tl.insert(buf, at), nil
}

// Close stops the playback stream
func (d *OtoDevice) Close() error {
	var err error
	d.closeOnce.Do(func() {
		err = d.player.Close()
		d.otoCtx.Suspend()
	})
	return err
}

// segment is one chunk placed on the timeline
type segment struct {
	start int64 // byte offset
	data  []byte
	done  chan struct{}
}

// timeline is an endless PCM stream. Reads serve scheduled segments at
// their byte offsets and silence everywhere else; the read position is the
// device clock.
type timeline struct {
	mu        sync.Mutex
	byteRate  int64 // bytes per second
	frameSize int64 // bytes per frame
	pos       int64 // bytes served so far
	segs      []*segment
}

func newTimeline(sampleRate, channels int) *timeline {
	return &timeline{
		byteRate:  int64(sampleRate) * int64(channels) * 2,
		frameSize: int64(channels) * 2,
	}
}

func (t *timeline) now() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bytesToDuration(t.pos)
}

func (t *timeline) bytesToDuration(b int64) time.Duration {
	return time.Duration(b) * time.Second / time.Duration(t.byteRate)
}

func (t *timeline) durationToBytes(d time.Duration) int64 {
	b := int64(d) * t.byteRate / int64(time.Second)
	// Align to a whole frame so channels stay interleaved correctly
	return b - b%t.frameSize
}

// insert places a chunk at the given clock position and returns its
// completion channel
func (t *timeline) insert(buf *audio.SampleBuffer, at time.Duration) <-chan struct{} {
	seg := &segment{
		start: t.durationToBytes(at),
		data:  interleave(buf),
		done:  make(chan struct{}),
	}

	t.mu.Lock()
	// The scheduler hands segments over in start order; insertion sort
	// keeps the slice correct even if it ever does not.
	i := len(t.segs)
	for i > 0 && t.segs[i-1].start > seg.start {
		i--
	}
	t.segs = append(t.segs, nil)
	copy(t.segs[i+1:], t.segs[i:])
	t.segs[i] = seg
	t.mu.Unlock()

	return seg.done
}

// Read implements io.Reader for the oto player. It never returns io.EOF;
// gaps between segments are zero-filled silence.
func (t *timeline) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for n < len(p) {
		// Retire segments the clock has passed
		if len(t.segs) > 0 && t.pos >= t.segs[0].start+int64(len(t.segs[0].data)) {
			close(t.segs[0].done)
			t.segs = t.segs[1:]
			continue
		}

		if len(t.segs) == 0 {
			// Idle: serve silence
			zero(p[n:])
			t.pos += int64(len(p) - n)
			n = len(p)
			break
		}

		seg := t.segs[0]
		if t.pos < seg.start {
			// Gap before the next segment: serve silence up to its start
			gap := seg.start - t.pos
			fill := int64(len(p) - n)
			if fill > gap {
				fill = gap
			}
			zero(p[n : n+int(fill)])
			t.pos += fill
			n += int(fill)
			continue
		}

		// Inside the segment
		off := t.pos - seg.start
		c := copy(p[n:], seg.data[off:])
		t.pos += int64(c)
		n += c
	}

	return n, nil
}

// interleave converts a sample buffer to interleaved PCM16LE bytes
func interleave(buf *audio.SampleBuffer) []byte {
	channels := len(buf.Channels)
	if channels == 1 {
		return audio.EncodeSamples(buf.Channels[0])
	}

	frames := buf.Frames()
	mixed := make([]float32, frames*channels)
	for f := 0; f < frames; f++ {
		for ch := 0; ch < channels; ch++ {
			mixed[f*channels+ch] = buf.Channels[ch][f]
		}
	}
	return audio.EncodeSamples(mixed)
}

func zero(p []byte) {
	for i := range p {
		p[i] = 0
	}
}
