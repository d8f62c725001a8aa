package session

// Snapshot is the transcript on screen when the app last saved it.
type Snapshot struct {
	ID        string `json:"id,omitempty"` // recognition span that produced it
	Original  string `json:"original"`
	Hiragana  string `json:"hiragana"`
	Timestamp int64  `json:"timestamp"` // unix millis
}
