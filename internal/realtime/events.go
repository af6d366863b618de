package realtime

// Server event types
const (
	EventSessionCreated  = "session.created"
	EventAudioDelta      = "audio.delta"
	EventTranscriptDelta = "transcript.delta"
	EventTurnComplete    = "turn.complete"
	EventError           = "error"
)

// Role tags a transcript fragment as belonging to the user or the model
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// TranscriptFragment is one partial transcription delta
type TranscriptFragment struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// ServerEvent is a notification from the remote AI session. Exactly one of
// the optional fields is meaningful depending on Type; unknown payload
// fields on the wire are ignored.
type ServerEvent struct {
	Type       string
	Audio      string // base64 PCM16 payload for audio.delta
	Transcript *TranscriptFragment
	Err        error
}

// serverMessage is the wire shape of a server notification
type serverMessage struct {
	Type       string              `json:"type"`
	Audio      string              `json:"audio,omitempty"`
	MimeType   string              `json:"mime_type,omitempty"`
	Transcript *TranscriptFragment `json:"transcript,omitempty"`
	Error      *serverError        `json:"error,omitempty"`
}

type serverError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// sessionUpdate configures the session right after connecting
type sessionUpdate struct {
	Type    string          `json:"type"`
	Session sessionSettings `json:"session"`
}

type sessionSettings struct {
	Model        string `json:"model"`
	Voice        string `json:"voice"`
	InputFormat  string `json:"input_format"`
	OutputFormat string `json:"output_format"`
}

// audioAppend carries one captured chunk to the service
type audioAppend struct {
	Type     string `json:"type"`
	Audio    string `json:"audio"`
	MimeType string `json:"mime_type,omitempty"`
}

// audioCommit marks the end of a user utterance
type audioCommit struct {
	Type string `json:"type"`
}
