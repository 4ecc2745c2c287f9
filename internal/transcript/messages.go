package transcript

// clientConfig is the first JSON frame sent after the WebSocket opens.
// The server answers with SERVER_READY once a backend slot is assigned.
type clientConfig struct {
	UID               string  `json:"uid"`
	Language          string  `json:"language"`
	Task              string  `json:"task"`
	Model             string  `json:"model"`
	UseVAD            bool    `json:"use_vad"`
	SendLastNSegments int     `json:"send_last_n_segments"`
	NoSpeechThresh    float64 `json:"no_speech_thresh"`
	EnableTranslation bool    `json:"enable_translation"`
	TargetLanguage    string  `json:"target_language,omitempty"`
}

// Segment is one transcribed span with server-side timing.
type Segment struct {
	Text  string `json:"text"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// serverMessage is the union of everything the server sends. Fields are
// discriminated by presence, matching the wire protocol.
type serverMessage struct {
	UID                string    `json:"uid"`
	Message            string    `json:"message"`
	Status             string    `json:"status"`
	Segments           []Segment `json:"segments"`
	TranslatedSegments []Segment `json:"translated_segments"`
	Language           string    `json:"language"`
	LanguageProb       float64   `json:"language_prob"`
	BackendHolder      string    `json:"backend_holder"`
}

// EventKind discriminates session events delivered to the consumer.
type EventKind int

const (
	// EventReady fires when the server accepted the config and transcription
	// can begin.
	EventReady EventKind = iota
	// EventTranscript carries transcribed (and optionally translated) text.
	EventTranscript
	// EventLanguage reports the detected spoken language.
	EventLanguage
	// EventWait means the server is at capacity and the client is queued.
	EventWait
	// EventDisconnected is terminal for the current connection.
	EventDisconnected
	// EventError carries a non-fatal server error or the terminal reconnect
	// failure.
	EventError
)

// Event is what the session emits on its Events channel.
type Event struct {
	Kind               EventKind
	Text               string
	Segments           []Segment
	TranslatedSegments []Segment
	Language           string
	LanguageProb       float64
	Err                error
}
