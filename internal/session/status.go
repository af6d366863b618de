package session

// Status is a human-readable session state emitted at transitions for the
// UI collaborator. Exact wording is a UI concern; these are stable keys.
type Status string

const (
	StatusConnecting    Status = "connecting"
	StatusMicRequesting Status = "microphone-requesting"
	StatusMicDenied     Status = "microphone-denied"
	StatusListening     Status = "listening"
	StatusSpeaking      Status = "speaking"
	StatusIdle          Status = "idle"
	StatusError         Status = "error"
	StatusClosed        Status = "closed"
)
