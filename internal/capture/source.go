package capture

// Source delivers normalized mono capture frames. Start begins delivery and
// invokes onFrame from the device's capture callback; frames arrive in
// capture order.
type Source interface {
	Start(onFrame func(samples []float32)) error
	Stop() error
	SampleRate() int
}
