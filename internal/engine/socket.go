package engine

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fakeyudi/minutes/internal/recognition"
)

// ErrSynthesisUnavailable is returned by Speak when the daemon cannot speak.
var ErrSynthesisUnavailable = errors.New("speech synthesis not supported")

// SocketEngine is a recognition.Engine backed by the speech daemon. It holds
// one connection for commands and one subscribed to the event stream.
type SocketEngine struct {
	ctrl      *Client
	sub       *Client
	events    chan recognition.EngineEvent
	synthesis bool
	logger    *zap.Logger
}

// Dial connects both connections and subscribes to events. An error here
// means recognition is unavailable for this run.
func Dial(socketPath string, logger *zap.Logger) (*SocketEngine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctrl, err := Connect(socketPath)
	if err != nil {
		return nil, err
	}
	status, err := ctrl.Status()
	if err != nil {
		ctrl.Close()
		return nil, err
	}

	sub, err := Connect(socketPath)
	if err != nil {
		ctrl.Close()
		return nil, err
	}
	resp, err := sub.SendCommand(Command{Cmd: "subscribe"})
	if err != nil || !resp.OK {
		ctrl.Close()
		sub.Close()
		if err == nil {
			err = errors.New(resp.Error)
		}
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	e := &SocketEngine{
		ctrl:      ctrl,
		sub:       sub,
		events:    make(chan recognition.EngineEvent, 64),
		synthesis: status.Synthesis != nil && *status.Synthesis,
		logger:    logger,
	}
	go e.readLoop()
	return e, nil
}

func (e *SocketEngine) readLoop() {
	defer close(e.events)
	for {
		ev, err := e.sub.ReadEvent()
		if err != nil {
			e.logger.Warn("daemon event stream closed", zap.Error(err))
			// Whatever was listening is gone with the daemon.
			e.events <- recognition.EngineEvent{Kind: recognition.EngineEnded}
			return
		}
		e.events <- ev
	}
}

func (e *SocketEngine) command(cmd Command) error {
	resp, err := e.ctrl.SendCommand(cmd)
	if err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("daemon rejected %s: %s", cmd.Cmd, resp.Error)
	}
	return nil
}

func (e *SocketEngine) Start(opts recognition.Options) error {
	return e.command(Command{
		Cmd:            "start",
		Lang:           opts.Lang,
		Continuous:     opts.Continuous,
		InterimResults: opts.InterimResults,
	})
}

func (e *SocketEngine) Stop() error {
	return e.command(Command{Cmd: "stop"})
}

func (e *SocketEngine) Events() <-chan recognition.EngineEvent { return e.events }

// SynthesisAvailable reports whether the daemon advertised text-to-speech.
func (e *SocketEngine) SynthesisAvailable() bool { return e.synthesis }

// Speak asks the daemon to read text aloud. Playback progress arrives as
// speech_start and speech_end events.
func (e *SocketEngine) Speak(text string) error {
	if !e.synthesis {
		return ErrSynthesisUnavailable
	}
	return e.command(Command{Cmd: "speak", Text: text})
}

// Close shuts down both connections.
func (e *SocketEngine) Close() error {
	err := e.ctrl.Close()
	if serr := e.sub.Close(); err == nil {
		err = serr
	}
	return err
}
