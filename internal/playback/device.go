package playback

import (
	"time"

	"github.com/lexiqai/voice-client/internal/audio"
)

// Device is an audio output with its own playback clock. Play begins
// rendering buf at the given clock position and signals completion on the
// returned channel once the last sample has been consumed by the device.
//
// The clock is monotonic and starts at zero when the device opens.
type Device interface {
	Now() time.Duration
	Play(buf *audio.SampleBuffer, at time.Duration) (<-chan struct{}, error)
	Close() error
}
