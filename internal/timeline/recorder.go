package timeline

import (
	"fmt"
	"strings"
)

// Phase is the step of a spoken name-then-content entry.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseName      Phase = "name"
	PhaseAwaitText Phase = "awaitText"
	PhaseText      Phase = "text"
)

// Recorder builds utterances by voice: the first recording captures the
// speaker's name, the second what they said.
type Recorder struct {
	tl          *Timeline
	phase       Phase
	recording   bool
	pendingName string
	buffer      strings.Builder
}

// NewRecorder returns a Recorder adding to tl.
func NewRecorder(tl *Timeline) *Recorder {
	return &Recorder{tl: tl, phase: PhaseIdle}
}

// Phase returns the current step.
func (r *Recorder) Phase() Phase { return r.phase }

// Recording reports whether a capture is in progress.
func (r *Recorder) Recording() bool { return r.recording }

// Write appends recognized text to the current capture.
func (r *Recorder) Write(text string) {
	if r.recording {
		r.buffer.WriteString(text)
	}
}

// Toggle starts or stops a capture and returns a prompt for the user.
func (r *Recorder) Toggle() string {
	r.recording = !r.recording
	if r.recording {
		switch r.phase {
		case PhaseIdle:
			r.phase = PhaseName
			r.buffer.Reset()
			return "話者名を話してください"
		case PhaseAwaitText:
			r.phase = PhaseText
			r.buffer.Reset()
			return "内容を話してください"
		}
		return ""
	}

	captured := strings.TrimSpace(r.buffer.String())
	switch r.phase {
	case PhaseName:
		r.pendingName = NormalizeName(captured)
		if r.pendingName == "" && r.tl.Len() == 0 {
			r.pendingName = ExtractName(captured)
		}
		r.phase = PhaseAwaitText
		name := r.pendingName
		if name == "" {
			name = UnsetName
		}
		return fmt.Sprintf("話者「%s」を記録しました", name)
	case PhaseText:
		if r.pendingName == "" {
			r.pendingName = ExtractName(captured)
		}
		name := r.pendingName
		if name == "" {
			name = UnknownName
		}
		var msg string
		if r.pendingName != "" || captured != "" {
			r.tl.Add(name, StripSelfIntro(r.pendingName, captured))
			msg = fmt.Sprintf("%sの発言を記録しました", name)
		}
		r.pendingName = ""
		r.phase = PhaseIdle
		return msg
	}
	return ""
}
