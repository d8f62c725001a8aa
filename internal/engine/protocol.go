// Package engine connects the recognition session to an external speech
// daemon over a Unix socket using NDJSON, or replays recorded events.
package engine

// Command is sent from a client to the daemon.
type Command struct {
	Cmd            string `json:"cmd"` // start | stop | speak | subscribe | status
	Lang           string `json:"lang,omitempty"`
	Continuous     bool   `json:"continuous,omitempty"`
	InterimResults bool   `json:"interimResults,omitempty"`
	Text           string `json:"text,omitempty"`
}

// Response is returned by the daemon after processing a command.
type Response struct {
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
	Status    string `json:"status,omitempty"`
	Listening *bool  `json:"listening,omitempty"`
	Synthesis *bool  `json:"synthesis,omitempty"` // daemon can speak
}
