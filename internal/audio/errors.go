package audio

import "fmt"

// FormatError indicates malformed wire bytes or base64 input.
// Chunks that fail with a FormatError are dropped; playback continues.
type FormatError struct {
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("audio format error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("audio format error: %s", e.Reason)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// DeviceError indicates an audio device failure (unavailable, permission
// denied, failed to start). Fatal to the capture or playback path it
// occurred on.
type DeviceError struct {
	Op  string
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("audio device error: %s: %v", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}
