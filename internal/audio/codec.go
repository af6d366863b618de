package audio

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// MimeTypePCM16Mono16k tags outbound capture audio: 16-bit signed
// little-endian PCM, mono, 16 kHz.
const MimeTypePCM16Mono16k = "audio/pcm;rate=16000"

const pcmScale = 32768

// WireChunk is one unit of audio as it crosses the session transport:
// base64-encoded PCM16LE bytes plus a MIME tag declaring the encoding.
type WireChunk struct {
	Payload  string
	MimeType string
}

// NewWireChunk encodes mono capture samples into an outbound wire chunk
func NewWireChunk(samples []float32) WireChunk {
	return WireChunk{
		Payload:  EncodeBase64(samples),
		MimeType: MimeTypePCM16Mono16k,
	}
}

// EncodeSamples converts normalized samples to 16-bit signed little-endian
// PCM bytes. Out-of-range input is clamped to [-1, 32767/32768] so it
// cannot wrap around the int16 domain.
func EncodeSamples(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := int32(s * pcmScale)
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v)))
	}
	return out
}

// EncodeBase64 encodes normalized samples to base64 PCM16LE text
func EncodeBase64(samples []float32) string {
	return base64.StdEncoding.EncodeToString(EncodeSamples(samples))
}

// DecodeSamples reinterprets PCM16LE bytes as normalized samples,
// deinterleaving per channel. The byte length must be a multiple of
// 2*channels or a FormatError is returned.
func DecodeSamples(data []byte, sampleRate, channels int) (*SampleBuffer, error) {
	if channels <= 0 {
		return nil, &FormatError{Reason: fmt.Sprintf("invalid channel count %d", channels)}
	}
	if len(data)%(2*channels) != 0 {
		return nil, &FormatError{
			Reason: fmt.Sprintf("byte length %d is not a multiple of %d (2 bytes x %d channels)",
				len(data), 2*channels, channels),
		}
	}

	frames := len(data) / (2 * channels)
	buf := NewSampleBuffer(channels, frames, sampleRate)

	for ch := 0; ch < channels; ch++ {
		dst := buf.Channels[ch]
		for f := 0; f < frames; f++ {
			off := (f*channels + ch) * 2
			v := int16(binary.LittleEndian.Uint16(data[off:]))
			dst[f] = float32(v) / pcmScale
		}
	}

	return buf, nil
}

// DecodeBase64 decodes base64 PCM16LE text into normalized samples
func DecodeBase64(s string, sampleRate, channels int) (*SampleBuffer, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, &FormatError{Reason: "invalid base64 payload", Err: err}
	}
	return DecodeSamples(data, sampleRate, channels)
}
