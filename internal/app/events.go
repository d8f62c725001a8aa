package app

import "github.com/fakeyudi/minutes/internal/hiragana"

// Event is delivered to subscribers of an App.
type Event interface {
	isEvent()
}

// TranscriptEvent carries the transcript after every change.
type TranscriptEvent struct {
	Final    string
	Interim  string
	Hiragana string
}

// ListeningEvent reports that recognition started or ended.
type ListeningEvent struct {
	Listening bool
	SessionID string
}

// StatusKind classifies a status message.
type StatusKind string

const (
	StatusInfo    StatusKind = "info"
	StatusSuccess StatusKind = "success"
	StatusError   StatusKind = "error"
)

// StatusEvent is a one-line message for the status bar.
type StatusEvent struct {
	Kind StatusKind
	Text string
}

// DictionaryEvent forwards tokenizer loading progress.
type DictionaryEvent struct {
	hiragana.StatusEvent
}

// HistoryEvent reports that the history list changed.
type HistoryEvent struct{}

// TimelineEvent reports that the speaker timeline changed.
type TimelineEvent struct{}

func (TranscriptEvent) isEvent() {}
func (ListeningEvent) isEvent()  {}
func (StatusEvent) isEvent()     {}
func (DictionaryEvent) isEvent() {}
func (HistoryEvent) isEvent()    {}
func (TimelineEvent) isEvent()   {}
