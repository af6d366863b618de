package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lexiqai/voice-client/internal/audio"
	"github.com/lexiqai/voice-client/internal/capture"
	"github.com/lexiqai/voice-client/internal/config"
	"github.com/lexiqai/voice-client/internal/observability"
	"github.com/lexiqai/voice-client/internal/playback"
	"github.com/lexiqai/voice-client/internal/realtime"
	"github.com/lexiqai/voice-client/internal/transcript"
	"github.com/rs/zerolog"
)

// Transport is the remote AI session boundary consumed by a Session.
// Satisfied by *realtime.Client.
type Transport interface {
	Events() <-chan realtime.ServerEvent
	SendAudio(chunk audio.WireChunk) error
	CommitAudio() error
	Close() error
}

// Options allows injecting collaborators; nil fields get production
// defaults when Run starts.
type Options struct {
	Transport Transport
	Device    playback.Device
	Source    capture.Source
	Logger    *zerolog.Logger
}

// Session owns all mutable state for one voice conversation: the playback
// scheduler, the transcript accumulator, the capture pipeline, and the
// status surface. Nothing is shared between sessions.
type Session struct {
	id      string
	cfg     *config.Config
	logger  zerolog.Logger
	metrics *observability.Metrics

	transport Transport
	device    playback.Device
	source    capture.Source
	scheduler *playback.Scheduler
	batcher   *capture.Batcher

	status       chan Status
	lastStatus   Status
	statusClosed bool
	statusMu     sync.Mutex

	accum   *transcript.Accumulator
	accumMu sync.Mutex

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a session
func New(cfg *config.Config, opts Options) *Session {
	id := observability.NewSessionID()

	var logger zerolog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With().Str("session_id", id).Logger()
	} else {
		logger = observability.WithSessionID(id)
	}

	return &Session{
		id:        id,
		cfg:       cfg,
		logger:    logger,
		metrics:   observability.NewSessionMetrics(id),
		transport: opts.Transport,
		device:    opts.Device,
		source:    opts.Source,
		status:    make(chan Status, 16),
		accum:     transcript.NewAccumulator(),
		done:      make(chan struct{}),
	}
}

// ID returns the session ID
func (s *Session) ID() string {
	return s.id
}

// Status returns the status channel consumed by the UI collaborator.
// Slow consumers drop transitions rather than blocking the session.
func (s *Session) Status() <-chan Status {
	return s.status
}

// History returns the finalized conversation turns so far
func (s *Session) History() []transcript.Turn {
	s.accumMu.Lock()
	defer s.accumMu.Unlock()
	return s.accum.History()
}

// Run connects the session and dispatches server events until the
// transport terminates or Close is called. All event handling happens on
// this one goroutine, preserving delivery order.
func (s *Session) Run(ctx context.Context) error {
	s.metrics.RecordSessionStart()
	defer s.metrics.RecordSessionEnd()

	if err := s.connect(ctx); err != nil {
		s.setStatus(StatusError)
		return err
	}
	defer s.teardown()

	if err := s.startCapture(); err != nil {
		// Capture loss is fatal to the outbound path only; playback and
		// transcripts still work.
		s.logger.Error().Err(err).Msg("Capture unavailable")
	}

	s.logger.Info().Msg("Session running")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		case ev, ok := <-s.transport.Events():
			if !ok {
				// Transport channel closed without a terminal event: we
				// initiated the shutdown.
				return nil
			}
			if err := s.handleEvent(ev); err != nil {
				s.setStatus(StatusError)
				return err
			}
		}
	}
}

func (s *Session) connect(ctx context.Context) error {
	s.setStatus(StatusConnecting)

	if s.transport == nil {
		client, err := realtime.Dial(ctx, realtime.Config{
			URL:              s.cfg.RealtimeURL,
			APIKey:           s.cfg.APIKey,
			Model:            s.cfg.Model,
			Voice:            s.cfg.Voice,
			OutputSampleRate: s.cfg.OutputSampleRate,
		}, s.logger)
		if err != nil {
			s.metrics.RecordError("transport_error", "realtime")
			return err
		}
		s.transport = client
	}

	if s.device == nil {
		dev, err := playback.NewOtoDevice(s.cfg.OutputSampleRate, 1, playbackBuffer(s.cfg))
		if err != nil {
			s.metrics.RecordError("device_error", "playback")
			return err
		}
		s.device = dev
	}

	s.scheduler = playback.NewScheduler(s.device, s.logger, func() {
		s.metrics.RecordPlaybackIdle()
		s.setStatus(StatusIdle)
	})

	return nil
}

func (s *Session) startCapture() error {
	s.setStatus(StatusMicRequesting)

	if s.source == nil {
		mic, err := capture.NewMicSource(s.cfg.InputSampleRate)
		if err != nil {
			s.micDenied(err)
			return err
		}
		s.source = mic
	}

	s.batcher = capture.NewBatcher(capture.BatcherConfig{
		SourceRate: s.source.SampleRate(),
		TargetRate: s.cfg.InputSampleRate,
		BatchMs:    s.cfg.CaptureBatchMs,
		FrameMs:    s.cfg.VADFrameMs,
		VAD: &audio.VADConfig{
			EnergyThreshold: s.cfg.VADEnergyThreshold,
			SilenceFrames:   s.cfg.VADSilenceFrames,
			FrameSize:       s.source.SampleRate() * s.cfg.VADFrameMs / 1000,
		},
	}, &meteredSink{transport: s.transport, metrics: s.metrics}, func(speaking bool) {
		if speaking {
			s.setStatus(StatusListening)
		}
	}, s.logger)

	if err := s.source.Start(s.batcher.OnFrame); err != nil {
		s.micDenied(err)
		return err
	}

	s.setStatus(StatusListening)
	return nil
}

func (s *Session) micDenied(err error) {
	var devErr *audio.DeviceError
	if errors.As(err, &devErr) {
		s.setStatus(StatusMicDenied)
	} else {
		s.setStatus(StatusError)
	}
	s.metrics.RecordError("device_error", "capture")
}

// handleEvent processes one server event. A non-nil return ends the
// session.
func (s *Session) handleEvent(ev realtime.ServerEvent) error {
	switch ev.Type {
	case realtime.EventSessionCreated:
		s.logger.Info().Msg("Session established")

	case realtime.EventAudioDelta:
		s.handleAudioDelta(ev.Audio)

	case realtime.EventTranscriptDelta:
		s.accumMu.Lock()
		if ev.Transcript.Role == realtime.RoleUser {
			s.accum.AppendUser(ev.Transcript.Text)
		} else {
			s.accum.AppendModel(ev.Transcript.Text)
		}
		s.accumMu.Unlock()

	case realtime.EventTurnComplete:
		s.accumMu.Lock()
		turn := s.accum.CompleteTurn()
		s.accumMu.Unlock()
		s.metrics.RecordTurnCompleted()
		s.logger.Info().
			Str("turn_id", turn.ID).
			Str("user", turn.User).
			Str("model", turn.Model).
			Msg("Turn completed")

	case realtime.EventError:
		s.metrics.RecordError("transport_error", "realtime")
		return ev.Err

	default:
		s.logger.Debug().Str("type", ev.Type).Msg("Ignoring event")
	}

	return nil
}

// handleAudioDelta decodes and schedules one playback chunk. Malformed
// chunks are dropped; scheduling continues from the last valid position.
func (s *Session) handleAudioDelta(payload string) {
	buf, err := audio.DecodeBase64(payload, s.cfg.OutputSampleRate, 1)
	if err != nil {
		var formatErr *audio.FormatError
		if errors.As(err, &formatErr) {
			s.logger.Warn().Err(err).Msg("Dropping malformed audio chunk")
			s.metrics.RecordChunkDropped("format_error")
			s.metrics.RecordError("format_error", "codec")
			return
		}
		s.logger.Error().Err(err).Msg("Failed to decode audio chunk")
		s.metrics.RecordChunkDropped("decode_error")
		return
	}

	if _, err := s.scheduler.Schedule(buf); err != nil {
		s.logger.Error().Err(err).Msg("Playback device rejected chunk")
		s.metrics.RecordChunkDropped("device_error")
		s.metrics.RecordError("device_error", "playback")
		return
	}

	s.metrics.RecordChunkScheduled()
	s.metrics.RecordAudioBytes("in", int64(buf.Frames()*2))
	s.setStatus(StatusSpeaking)
}

// Close shuts down the session: capture stops, the transport closes, all
// in-flight playback is torn down. Idempotent.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.teardownResources()
		s.setStatus(StatusClosed)

		s.statusMu.Lock()
		s.statusClosed = true
		close(s.status)
		s.statusMu.Unlock()
	})
	return nil
}

// teardown runs when Run exits for any reason
func (s *Session) teardown() {
	s.Close()
}

func (s *Session) teardownResources() {
	if s.source != nil {
		if s.batcher != nil {
			s.batcher.Flush()
		}
		if err := s.source.Stop(); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to stop capture")
		}
	}
	if s.scheduler != nil {
		s.scheduler.Reset()
	}
	if s.device != nil {
		if err := s.device.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to close playback device")
		}
	}
	if s.transport != nil {
		if err := s.transport.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to close transport")
		}
	}
	s.logger.Info().Msg("Session closed")
}

// setStatus emits a status transition. Repeats are suppressed and slow
// consumers drop transitions rather than blocking.
func (s *Session) setStatus(st Status) {
	s.statusMu.Lock()
	if s.statusClosed || s.lastStatus == st {
		s.statusMu.Unlock()
		return
	}
	s.lastStatus = st

	s.logger.Info().Str("status", string(st)).Msg("Status changed")

	select {
	case s.status <- st:
	default:
	}
	s.statusMu.Unlock()
}

func playbackBuffer(cfg *config.Config) time.Duration {
	return time.Duration(cfg.PlaybackBufferMs) * time.Millisecond
}

// meteredSink wraps the transport so capture metrics are recorded at the
// send boundary
type meteredSink struct {
	transport Transport
	metrics   *observability.Metrics
}

func (m *meteredSink) SendAudio(chunk audio.WireChunk) error {
	if err := m.transport.SendAudio(chunk); err != nil {
		m.metrics.RecordError("transport_error", "capture")
		return err
	}
	m.metrics.RecordAudioBytes("out", int64(len(chunk.Payload)))
	return nil
}

func (m *meteredSink) CommitAudio() error {
	return m.transport.CommitAudio()
}
