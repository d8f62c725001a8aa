// Package tabs tracks which view is active and the history search filter.
package tabs

import "sync"

// Tab identifies a view.
type Tab string

const (
	Main    Tab = "main"
	History Tab = "history"
	Limits  Tab = "limits"
)

// Order is the display order of the tabs.
var Order = []Tab{Main, History, Limits}

func known(t Tab) bool {
	for _, o := range Order {
		if o == t {
			return true
		}
	}
	return false
}

// RenderFunc redraws the history view for the active search query.
type RenderFunc func(query string)

// Machine is the main/history view state. It starts on Main.
type Machine struct {
	mu      sync.Mutex
	current Tab
	query   string
	render  RenderFunc
}

// New returns a Machine on Main. render runs each time History is entered
// and may be nil.
func New(render RenderFunc) *Machine {
	return &Machine{current: Main, render: render}
}

// Current returns the active tab.
func (m *Machine) Current() Tab {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Switch moves to target. It returns false, doing nothing, when target is
// already active or unknown.
func (m *Machine) Switch(target Tab) bool {
	m.mu.Lock()
	if target == m.current || !known(target) {
		m.mu.Unlock()
		return false
	}
	m.current = target
	render, query := m.render, m.query
	m.mu.Unlock()

	if target == History && render != nil {
		render(query)
	}
	return true
}

// SetQuery changes the history filter. The history view is redrawn if it is
// active.
func (m *Machine) SetQuery(q string) {
	m.mu.Lock()
	m.query = q
	active := m.current == History
	render := m.render
	m.mu.Unlock()

	if active && render != nil {
		render(q)
	}
}

// Query returns the history filter. Switching tabs does not reset it.
func (m *Machine) Query() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.query
}
