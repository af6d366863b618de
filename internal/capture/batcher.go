package capture

import (
	"github.com/lexiqai/voice-client/internal/audio"
	"github.com/rs/zerolog"
)

// Sink receives encoded capture chunks for transmission
type Sink interface {
	SendAudio(chunk audio.WireChunk) error
	CommitAudio() error
}

// BatcherConfig holds capture batching parameters
type BatcherConfig struct {
	SourceRate int // capture device rate
	TargetRate int // outbound wire rate (16000)
	BatchMs    int // batch duration per outbound chunk
	FrameMs    int // VAD frame duration
	VAD        *audio.VADConfig
}

// Batcher accumulates capture frames into fixed-duration batches, encodes
// each batch as a wire chunk, and hands it to the sink. A VAD tracks
// speech boundaries: the end of an utterance flushes the pending batch and
// commits the outbound audio.
//
// OnFrame is invoked only from the capture callback, so no locking is
// needed on the internal buffers.
type Batcher struct {
	cfg      BatcherConfig
	sink     Sink
	vad      *audio.VADDetector
	onSpeech func(speaking bool)
	logger   zerolog.Logger

	batchSamples int // samples per batch at source rate
	frameSamples int // samples per VAD frame at source rate

	buf    []float32 // pending outbound samples
	vadBuf []float32 // pending samples not yet run through the VAD
}

// NewBatcher creates a capture batcher. onSpeech is invoked on VAD speech
// start (true) and end (false); it may be nil.
func NewBatcher(cfg BatcherConfig, sink Sink, onSpeech func(bool), logger zerolog.Logger) *Batcher {
	if cfg.BatchMs <= 0 {
		cfg.BatchMs = 100
	}
	if cfg.FrameMs <= 0 {
		cfg.FrameMs = 20
	}

	return &Batcher{
		cfg:          cfg,
		sink:         sink,
		vad:          audio.NewVADDetector(cfg.VAD),
		onSpeech:     onSpeech,
		logger:       logger,
		batchSamples: cfg.SourceRate * cfg.BatchMs / 1000,
		frameSamples: cfg.SourceRate * cfg.FrameMs / 1000,
	}
}

// OnFrame consumes one capture frame
func (b *Batcher) OnFrame(samples []float32) {
	b.vadBuf = append(b.vadBuf, samples...)
	for len(b.vadBuf) >= b.frameSamples {
		frame := b.vadBuf[:b.frameSamples]
		b.vadBuf = b.vadBuf[b.frameSamples:]

		_, started, ended := b.vad.ProcessFrame(frame)
		if started && b.onSpeech != nil {
			b.onSpeech(true)
		}
		if ended {
			if b.onSpeech != nil {
				b.onSpeech(false)
			}
			b.Flush()
			if err := b.sink.CommitAudio(); err != nil {
				b.logger.Error().Err(err).Msg("Failed to commit utterance")
			}
		}
	}

	b.buf = append(b.buf, samples...)
	for len(b.buf) >= b.batchSamples {
		batch := b.buf[:b.batchSamples]
		b.buf = b.buf[b.batchSamples:]
		b.send(batch)
	}
}

// Flush sends any pending partial batch
func (b *Batcher) Flush() {
	if len(b.buf) == 0 {
		return
	}
	batch := b.buf
	b.buf = nil
	b.send(batch)
}

func (b *Batcher) send(batch []float32) {
	if b.cfg.SourceRate != b.cfg.TargetRate {
		batch = audio.Resample(batch, b.cfg.SourceRate, b.cfg.TargetRate)
	}

	if err := b.sink.SendAudio(audio.NewWireChunk(batch)); err != nil {
		// Transport failures surface through the session event loop; the
		// batch is simply lost here.
		b.logger.Error().Err(err).Msg("Failed to send capture chunk")
	}
}
