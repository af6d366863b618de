package capture

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/lexiqai/voice-client/internal/audio"
)

// MicSource captures microphone audio through malgo (miniaudio). Frames
// are delivered as normalized float32 mono samples at the requested rate.
type MicSource struct {
	sampleRate int

	mu       sync.Mutex
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
	running  bool
}

// NewMicSource initializes the capture backend. Failure to initialize the
// audio context is a DeviceError (no capture hardware, no permission).
func NewMicSource(sampleRate int) (*MicSource, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, &audio.DeviceError{Op: "init capture context", Err: err}
	}

	return &MicSource{
		sampleRate: sampleRate,
		malgoCtx:   ctx,
	}, nil
}

// SampleRate returns the capture rate
func (m *MicSource) SampleRate() int {
	return m.sampleRate
}

// Start opens the default capture device and begins frame delivery
func (m *MicSource) Start(onFrame func(samples []float32)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("capture already started")
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(m.sampleRate)
	deviceConfig.Alsa.NoMMap = 1

	callbacks := malgo.DeviceCallbacks{
		Data: func(pOutputSample, pInputSamples []byte, framecount uint32) {
			onFrame(bytesToFloat32(pInputSamples))
		},
	}

	device, err := malgo.InitDevice(m.malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		return &audio.DeviceError{Op: "open microphone", Err: err}
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		return &audio.DeviceError{Op: "start microphone", Err: err}
	}

	m.device = device
	m.running = true
	return nil
}

// Stop halts capture and releases the device
func (m *MicSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil {
		m.device.Uninit()
		m.device = nil
	}
	if m.malgoCtx != nil {
		_ = m.malgoCtx.Uninit()
		m.malgoCtx.Free()
		m.malgoCtx = nil
	}
	m.running = false
	return nil
}

func bytesToFloat32(data []byte) []float32 {
	samples := make([]float32, len(data)/4)
	for i := range samples {
		bits := binary.LittleEndian.Uint32(data[i*4:])
		samples[i] = math.Float32frombits(bits)
	}
	return samples
}
