package engine

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fakeyudi/minutes/internal/recognition"
)

const (
	// DialTimeout bounds how long Connect waits for the daemon.
	DialTimeout = 2 * time.Second
	maxLine     = 1 << 20
)

// ErrClosed is returned when the daemon hangs up mid-conversation.
var ErrClosed = errors.New("speech daemon closed the connection")

// SocketPath returns the default daemon socket path: minutes.sock in
// XDG_RUNTIME_DIR, or in the temp dir when that is unset.
func SocketPath() string {
	dir := os.Getenv("XDG_RUNTIME_DIR")
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "minutes.sock")
}

// Client is one NDJSON connection to the speech daemon. A connection either
// exchanges commands or, once subscribed, only streams events.
type Client struct {
	conn  net.Conn
	enc   *json.Encoder
	lines *bufio.Scanner

	mu sync.Mutex // one command in flight
}

// Connect dials the daemon at socketPath.
func Connect(socketPath string) (*Client, error) {
	conn, err := net.DialTimeout("unix", socketPath, DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("speech daemon at %s: %w", socketPath, err)
	}
	lines := bufio.NewScanner(conn)
	lines.Buffer(make([]byte, 0, 64*1024), maxLine)
	return &Client{conn: conn, enc: json.NewEncoder(conn), lines: lines}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// SendCommand writes cmd and waits for the daemon's reply line.
func (c *Client) SendCommand(cmd Command) (Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Encode terminates the line.
	if err := c.enc.Encode(cmd); err != nil {
		return Response{}, fmt.Errorf("sending %s: %w", cmd.Cmd, err)
	}
	var resp Response
	if err := c.readLine(&resp); err != nil {
		return Response{}, fmt.Errorf("reply to %s: %w", cmd.Cmd, err)
	}
	return resp, nil
}

// Status asks the daemon what it can do and whether it is listening.
func (c *Client) Status() (Response, error) {
	resp, err := c.SendCommand(Command{Cmd: "status"})
	if err != nil {
		return Response{}, err
	}
	if !resp.OK {
		return resp, fmt.Errorf("status refused: %s", resp.Error)
	}
	return resp, nil
}

// ReadEvent blocks for the next event on a subscribed connection.
func (c *Client) ReadEvent() (recognition.EngineEvent, error) {
	var ev recognition.EngineEvent
	if err := c.readLine(&ev); err != nil {
		return recognition.EngineEvent{}, err
	}
	return ev, nil
}

func (c *Client) readLine(v any) error {
	if !c.lines.Scan() {
		if err := c.lines.Err(); err != nil {
			return err
		}
		return ErrClosed
	}
	if err := json.Unmarshal(c.lines.Bytes(), v); err != nil {
		return fmt.Errorf("malformed line %q: %w", c.lines.Text(), err)
	}
	return nil
}
