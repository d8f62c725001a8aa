package recognition

// Event is delivered to subscribers. It is one of ResultEvent, StateEvent,
// ErrorEvent or SpeechEvent.
type Event interface {
	isEvent()
}

// ResultEvent carries the transcript after a result was applied.
type ResultEvent struct {
	FinalText       string
	InterimText     string
	NewFinalPortion string // text finalized by this event only
}

// State is a listening transition.
type State string

const (
	StateStarted State = "started"
	StateEnded   State = "ended"
)

// StateEvent reports that listening started or ended.
type StateEvent struct {
	State     State
	SessionID string
}

// ErrorCategory groups engine error codes for display.
type ErrorCategory string

const (
	ErrNoSpeech         ErrorCategory = "no-speech"
	ErrAudioCapture     ErrorCategory = "audio-capture"
	ErrPermissionDenied ErrorCategory = "permission-denied"
	ErrOther            ErrorCategory = "other"
)

// ErrorEvent reports a recognition error. It ends the current span only.
type ErrorEvent struct {
	Category ErrorCategory
	Code     string
	Message  string
}

// SpeechEvent reports synthesis playback starting or finishing.
type SpeechEvent struct {
	Speaking bool
}

func (ResultEvent) isEvent() {}
func (StateEvent) isEvent()  {}
func (ErrorEvent) isEvent()  {}
func (SpeechEvent) isEvent() {}

// Categorize maps an engine error code to its category.
func Categorize(code string) ErrorCategory {
	switch code {
	case "no-speech":
		return ErrNoSpeech
	case "audio-capture":
		return ErrAudioCapture
	case "not-allowed", "service-not-allowed":
		return ErrPermissionDenied
	default:
		return ErrOther
	}
}

// Describe returns the status line shown for an error category.
func (c ErrorCategory) Describe() string {
	switch c {
	case ErrNoSpeech:
		return "No speech was detected"
	case ErrAudioCapture:
		return "Microphone could not be captured"
	case ErrPermissionDenied:
		return "Microphone permission was denied"
	default:
		return "Recognition error"
	}
}
