package engine

import (
	"bufio"
	"encoding/json"
	"errors"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/fakeyudi/minutes/internal/recognition"
)

// startMockDaemon serves every connection on a temp Unix socket. Each command
// line gets an OK response; a subscribe command is followed by events.
func startMockDaemon(t *testing.T, synthesis bool, events []recognition.EngineEvent) (string, chan Command) {
	t.Helper()

	sockPath := filepath.Join(t.TempDir(), "test.sock")
	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	received := make(chan Command, 16)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				scanner := bufio.NewScanner(conn)
				for scanner.Scan() {
					var cmd Command
					json.Unmarshal(scanner.Bytes(), &cmd)
					received <- cmd

					resp := Response{OK: true}
					if cmd.Cmd == "status" {
						resp.Synthesis = &synthesis
					}
					if cmd.Cmd == "start" && cmd.Lang != "ja-JP" {
						resp = Response{OK: false, Error: "unsupported locale"}
					}
					data, _ := json.Marshal(resp)
					conn.Write(append(data, '\n'))

					if cmd.Cmd == "subscribe" {
						for _, ev := range events {
							data, _ := json.Marshal(ev)
							conn.Write(append(data, '\n'))
						}
						return
					}
				}
			}(conn)
		}
	}()
	return sockPath, received
}

func TestClientSendCommand(t *testing.T) {
	sockPath, received := startMockDaemon(t, false, nil)

	c, err := Connect(sockPath)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Close()

	resp, err := c.SendCommand(Command{Cmd: "stop"})
	if err != nil {
		t.Fatalf("SendCommand: %v", err)
	}
	if !resp.OK {
		t.Error("expected OK response")
	}
	if cmd := <-received; cmd.Cmd != "stop" {
		t.Errorf("daemon received %q, want stop", cmd.Cmd)
	}
}

func TestConnectNoDaemon(t *testing.T) {
	_, err := Connect(filepath.Join(t.TempDir(), "missing.sock"))
	if err == nil {
		t.Fatal("expected error connecting to missing socket")
	}
}

func TestDialStreamsEvents(t *testing.T) {
	events := []recognition.EngineEvent{
		{Kind: recognition.EngineStarted},
		{Kind: recognition.EngineResult, Results: []recognition.Segment{{Transcript: "こんにちは", IsFinal: true}}},
	}
	sockPath, received := startMockDaemon(t, true, events)

	e, err := Dial(sockPath, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer e.Close()

	if !e.SynthesisAvailable() {
		t.Error("SynthesisAvailable() = false, want true")
	}
	if err := e.Start(recognition.Options{Lang: "ja-JP", Continuous: true, InterimResults: true}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var kinds []recognition.EngineEventKind
	timeout := time.After(2 * time.Second)
	for len(kinds) < 3 {
		select {
		case ev, ok := <-e.Events():
			if !ok {
				t.Fatalf("events closed early, got %v", kinds)
			}
			kinds = append(kinds, ev.Kind)
		case <-timeout:
			t.Fatalf("timed out, got %v", kinds)
		}
	}
	// The daemon closes the stream after the canned events, which ends the span.
	want := []recognition.EngineEventKind{recognition.EngineStarted, recognition.EngineResult, recognition.EngineEnded}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("events = %v, want %v", kinds, want)
		}
	}

	var sawStart bool
	for len(received) > 0 {
		if c := <-received; c.Cmd == "start" && c.Continuous && c.InterimResults {
			sawStart = true
		}
	}
	if !sawStart {
		t.Error("daemon did not receive a continuous interim start command")
	}
}

func TestStartRejected(t *testing.T) {
	sockPath, _ := startMockDaemon(t, false, nil)
	e, err := Dial(sockPath, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer e.Close()

	err = e.Start(recognition.Options{Lang: "en-US"})
	if err == nil || !strings.Contains(err.Error(), "unsupported locale") {
		t.Fatalf("Start error = %v, want rejection", err)
	}
	if err := e.Speak("テスト"); !errors.Is(err, ErrSynthesisUnavailable) {
		t.Fatalf("Speak error = %v, want ErrSynthesisUnavailable", err)
	}
}

func TestReplayEngine(t *testing.T) {
	input := strings.Join([]string{
		`{"event":"result","resultIndex":0,"results":[{"transcript":"今日は","isFinal":true}]}`,
		`not json`,
		`{"event":"result","resultIndex":1,"results":[{"transcript":"今日は","isFinal":true},{"transcript":"晴れ","isFinal":false}]}`,
	}, "\n")
	e := NewReplayEngine(strings.NewReader(input), 0, zaptest.NewLogger(t))
	s := recognition.New(e, "ja-JP", zaptest.NewLogger(t))

	if !s.Start() {
		t.Fatal("Start() = false")
	}

	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-e.Events():
			s.Handle(ev)
			if ev.Kind == recognition.EngineEnded {
				if s.FinalText() != "今日は" {
					t.Errorf("FinalText = %q, want 今日は", s.FinalText())
				}
				if s.InterimText() != "晴れ" {
					t.Errorf("InterimText = %q, want 晴れ", s.InterimText())
				}
				if s.Running() {
					t.Error("Running() = true after replay ended")
				}
				return
			}
		case <-timeout:
			t.Fatal("replay did not finish")
		}
	}
}

// serveOnce answers the first command line on a temp socket with reply, or
// hangs up when reply is empty.
func serveOnce(t *testing.T, reply string) string {
	t.Helper()
	sockPath := filepath.Join(t.TempDir(), "once.sock")
	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		bufio.NewScanner(conn).Scan()
		if reply != "" {
			conn.Write([]byte(reply + "\n"))
		}
	}()
	return sockPath
}

func TestClientReplyErrors(t *testing.T) {
	cases := []struct {
		name  string
		reply string
		check func(error) bool
	}{
		{"hang up", "", func(err error) bool { return errors.Is(err, ErrClosed) }},
		{"malformed", "not json", func(err error) bool { return err != nil && strings.Contains(err.Error(), "malformed line") }},
		{"refused", `{"ok":false,"error":"busy"}`, func(err error) bool { return err != nil && strings.Contains(err.Error(), "busy") }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := Connect(serveOnce(t, tc.reply))
			if err != nil {
				t.Fatalf("Connect: %v", err)
			}
			defer c.Close()
			if _, err := c.Status(); !tc.check(err) {
				t.Fatalf("Status error = %v", err)
			}
		})
	}
}

func TestSocketPathUsesRuntimeDir(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", dir)
	if got := SocketPath(); got != filepath.Join(dir, "minutes.sock") {
		t.Fatalf("SocketPath = %q", got)
	}
}
