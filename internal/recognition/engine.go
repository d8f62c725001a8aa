package recognition

// Options configures a recognition span.
type Options struct {
	Lang           string `json:"lang"`
	Continuous     bool   `json:"continuous"`
	InterimResults bool   `json:"interimResults"`
}

// Engine is the platform speech recognizer. Start and Stop only request a
// transition; the engine confirms it later on Events.
type Engine interface {
	Start(opts Options) error
	Stop() error
	Events() <-chan EngineEvent
}

// EngineEventKind names an event emitted by an Engine.
type EngineEventKind string

const (
	EngineStarted     EngineEventKind = "start"
	EngineResult      EngineEventKind = "result"
	EngineError       EngineEventKind = "error"
	EngineEnded       EngineEventKind = "end"
	EngineSpeechStart EngineEventKind = "speech_start" // synthesis playback began
	EngineSpeechEnd   EngineEventKind = "speech_end"   // synthesis playback finished
)

// Segment is one recognized fragment.
type Segment struct {
	Transcript string  `json:"transcript"`
	IsFinal    bool    `json:"isFinal"`
	Confidence float64 `json:"confidence,omitempty"`
}

// EngineEvent is a single engine notification. Results holds every segment
// of the current span; ResultIndex is the first one that changed.
type EngineEvent struct {
	Kind        EngineEventKind `json:"event"`
	ResultIndex int             `json:"resultIndex,omitempty"`
	Results     []Segment       `json:"results,omitempty"`
	Code        string          `json:"error,omitempty"`
	Message     string          `json:"message,omitempty"`
}
