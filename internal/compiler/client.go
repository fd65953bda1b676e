package compiler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	ws "github.com/neudev/attemptd/internal/websocket"
	"github.com/rs/zerolog"
)

var (
	// ErrClosed is returned when the runner connection goes away mid-run.
	ErrClosed = errors.New("compiler connection closed")
	// ErrNotConnected is returned by Send before Open.
	ErrNotConnected = errors.New("compiler not connected")
)

const terminatedMarker = ">>> Program Terminated"

// killWait bounds how long a cancelled run waits for the runner to confirm the kill.
const killWait = 2 * time.Second

// RunRequest is one program execution. Language is the file extension.
type RunRequest struct {
	Token    string
	Language string
	Code     string
	Input    string
}

// RunResult carries the cleaned output of a run together with its token.
type RunResult struct {
	Token  string `json:"token"`
	Output string `json:"output"`
}

// Subscription receives connection events. Nil callbacks are skipped.
type Subscription struct {
	OnMessage func(ws.RunnerMessage)
	OnError   func(error)
	OnClose   func()
}

// Client owns a single websocket connection to the code runner.
type Client struct {
	url    string
	dialer *websocket.Dialer
	log    zerolog.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	readDone chan struct{} // closed when the read loop of conn exits
	subs     map[int]Subscription
	nextID   int

	writeMu  sync.Mutex
	runMu    sync.Mutex
	killWait time.Duration
}

// NewClient creates a client for the runner at url. The connection is opened lazily.
func NewClient(url string, log zerolog.Logger) *Client {
	return &Client{
		url:    url,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		log:    log.With().Str("component", "compiler").Logger(),
		subs:   make(map[int]Subscription),

		killWait: killWait,
	}
}

// Open dials the runner unless a connection is already up.
func (c *Client) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return nil
	}

	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial compiler: %w", err)
	}
	c.conn = conn
	c.readDone = make(chan struct{})
	c.log.Debug().Str("url", c.url).Msg("Compiler connected")

	go c.readLoop(conn, c.readDone)
	return nil
}

// Close shuts the connection down. Subscribers get OnClose from the read loop.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn == nil {
		return nil
	}

	c.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return conn.Close()
}

// Subscribe registers s and returns a function removing it.
func (c *Client) Subscribe(s Subscription) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = s
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// Send writes one protocol frame.
func (c *Client) Send(v any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return ws.WriteTyped(conn, v)
}

// SendInput feeds stdin of the running program.
func (c *Client) SendInput(data string) error {
	return c.Send(ws.InputRequest{Type: ws.RunnerInput, Data: data})
}

// Kill aborts the running program.
func (c *Client) Kill() error {
	return c.Send(ws.KillRequest{Type: ws.RunnerKill})
}

// Run executes one program and collects its output until the runner reports exit.
// Runs are serialised on the shared connection.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunResult, error) {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	if req.Token == "" {
		req.Token = uuid.NewString()
	}
	if err := c.Open(ctx); err != nil {
		return RunResult{}, err
	}

	msgs := make(chan ws.RunnerMessage, 64)
	failed := make(chan error, 1)
	stop := make(chan struct{})
	defer close(stop)

	unsubscribe := c.Subscribe(Subscription{
		OnMessage: func(m ws.RunnerMessage) {
			select {
			case msgs <- m:
			case <-stop:
			}
		},
		OnError: func(err error) {
			select {
			case failed <- err:
			default:
			}
		},
		OnClose: func() {
			select {
			case failed <- ErrClosed:
			default:
			}
		},
	})
	defer unsubscribe()

	start := ws.InitRequest{Type: ws.RunnerInit, Language: req.Language, Code: req.Code, Input: req.Input}
	if err := c.Send(start); err != nil {
		return RunResult{}, fmt.Errorf("send init: %w", err)
	}

	var out strings.Builder
	for {
		select {
		case <-ctx.Done():
			c.abort(msgs, failed)
			return RunResult{}, ctx.Err()
		case err := <-failed:
			return RunResult{}, err
		case m := <-msgs:
			switch m.Type {
			case ws.RunnerStdout:
				out.WriteString(m.Data)
			case ws.RunnerStderr:
				out.WriteString("Error: " + m.Data)
			case ws.RunnerExit:
				return RunResult{Token: req.Token, Output: CleanOutput(out.String())}, nil
			}
		}
	}
}

// abort kills the current program and consumes its remaining frames, so the
// next run on the connection starts clean. A runner that does not confirm the
// kill in time loses the connection and the next run redials.
func (c *Client) abort(msgs <-chan ws.RunnerMessage, failed <-chan error) {
	if err := c.Kill(); err != nil {
		c.log.Warn().Err(err).Msg("Kill after cancel failed")
		return
	}

	timer := time.NewTimer(c.killWait)
	defer timer.Stop()
	for {
		select {
		case m := <-msgs:
			if m.Type == ws.RunnerExit {
				return
			}
		case <-failed:
			return
		case <-timer.C:
			c.log.Warn().Dur("wait", c.killWait).Msg("Runner did not confirm kill, dropping connection")
			c.mu.Lock()
			done := c.readDone
			c.mu.Unlock()
			if err := c.Close(); err != nil {
				c.log.Debug().Err(err).Msg("Compiler close failed")
			}
			// The old read loop must not reach subscribers of the next run.
			for done != nil {
				select {
				case <-done:
					return
				case <-msgs:
				}
			}
			return
		}
	}
}

// CleanOutput strips the runner's termination marker and surrounding whitespace.
func CleanOutput(out string) string {
	out = strings.TrimRight(out, " \t\r\n")
	out = strings.TrimSuffix(out, terminatedMarker)
	return strings.TrimSpace(out)
}

func (c *Client) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		var m ws.RunnerMessage
		if err := conn.ReadJSON(&m); err != nil {
			c.mu.Lock()
			if c.conn == conn {
				c.conn = nil
			}
			subs := c.snapshot()
			c.mu.Unlock()

			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) &&
				!errors.Is(err, websocket.ErrCloseSent) {
				c.log.Debug().Err(err).Msg("Compiler read ended")
				for _, s := range subs {
					if s.OnError != nil {
						s.OnError(err)
					}
				}
			}
			for _, s := range subs {
				if s.OnClose != nil {
					s.OnClose()
				}
			}
			return
		}

		c.mu.Lock()
		subs := c.snapshot()
		c.mu.Unlock()
		for _, s := range subs {
			if s.OnMessage != nil {
				s.OnMessage(m)
			}
		}
	}
}

func (c *Client) snapshot() []Subscription {
	out := make([]Subscription, 0, len(c.subs))
	for _, s := range c.subs {
		out = append(out, s)
	}
	return out
}
