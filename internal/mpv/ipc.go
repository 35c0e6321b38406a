// Package mpv drives an mpv process over its JSON IPC socket and exposes it
// as a player.Surface
package mpv

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
)

// ErrClosed indicates the IPC connection is gone
var ErrClosed = errors.New("mpv connection closed")

// Event is an unsolicited message from mpv
type Event struct {
	Name      string          `json:"event"`
	ID        int64           `json:"id"`   // observer id for property-change
	Property  string          `json:"name"` // property-change only
	Data      json.RawMessage `json:"data"`
	Reason    string          `json:"reason"`     // end-file only
	FileError string          `json:"file_error"` // end-file only
}

type request struct {
	Command   []any `json:"command"`
	RequestID int64 `json:"request_id"`
}

type message struct {
	Event
	RequestID *int64 `json:"request_id"`
	Error     string `json:"error"`
}

type reply struct {
	data json.RawMessage
	err  string
}

// Conn is a JSON IPC connection. Replies are matched to commands by
// request_id; events are delivered in order on a dedicated goroutine so a
// slow handler never stalls replies
type Conn struct {
	rw      io.ReadWriteCloser
	logger  *slog.Logger
	onEvent func(Event)
	nextID  atomic.Int64

	wmu sync.Mutex

	mu      sync.Mutex
	pending map[int64]chan reply
	queue   []Event
	err     error

	wake   chan struct{}
	closed chan struct{}
	done   sync.WaitGroup
	once   sync.Once
}

// NewConn starts reading from rw. onEvent receives every event
func NewConn(rw io.ReadWriteCloser, onEvent func(Event), logger *slog.Logger) *Conn {
	if logger == nil {
		logger = slog.Default()
	}
	if onEvent == nil {
		onEvent = func(Event) {}
	}
	c := &Conn{
		rw:      rw,
		logger:  logger,
		onEvent: onEvent,
		pending: make(map[int64]chan reply),
		wake:    make(chan struct{}, 1),
		closed:  make(chan struct{}),
	}
	c.done.Add(2)
	go c.readLoop()
	go c.dispatchLoop()
	return c
}

// Dial connects to the IPC socket at path
func Dial(ctx context.Context, path string, onEvent func(Event), logger *slog.Logger) (*Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mpv socket: %w", err)
	}
	return NewConn(conn, onEvent, logger), nil
}

// Command sends a command and waits for its reply
func (c *Conn) Command(ctx context.Context, args ...any) (json.RawMessage, error) {
	id := c.nextID.Add(1)
	ch := make(chan reply, 1)

	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	data, err := json.Marshal(request{Command: args, RequestID: id})
	if err != nil {
		return nil, fmt.Errorf("failed to encode command: %w", err)
	}

	c.wmu.Lock()
	if nc, ok := c.rw.(net.Conn); ok {
		if dl, ok := ctx.Deadline(); ok {
			_ = nc.SetWriteDeadline(dl)
		}
	}
	_, err = c.rw.Write(append(data, '\n'))
	c.wmu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to send %v: %w", args[0], err)
	}

	select {
	case r := <-ch:
		if r.err != "success" {
			return nil, fmt.Errorf("mpv %v: %s", args[0], r.err)
		}
		return r.data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.closed:
		return nil, ErrClosed
	}
}

// SetProperty sets an mpv property
func (c *Conn) SetProperty(ctx context.Context, name string, value any) error {
	_, err := c.Command(ctx, "set_property", name, value)
	return err
}

// GetProperty reads an mpv property into v
func (c *Conn) GetProperty(ctx context.Context, name string, v any) error {
	data, err := c.Command(ctx, "get_property", name)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// Done is closed when the connection has been lost or closed
func (c *Conn) Done() <-chan struct{} { return c.closed }

// Close closes the connection and waits for its goroutines to exit
func (c *Conn) Close() error {
	err := c.rw.Close()
	c.done.Wait()
	return err
}

func (c *Conn) readLoop() {
	defer c.done.Done()

	r := bufio.NewReaderSize(c.rw, 64*1024)
	for {
		line, err := r.ReadBytes('\n')
		if len(line) > 0 {
			c.handleLine(line)
		}
		if err != nil {
			c.shutdown(err)
			return
		}
	}
}

func (c *Conn) handleLine(line []byte) {
	var msg message
	if err := json.Unmarshal(line, &msg); err != nil {
		c.logger.Debug("ignoring malformed mpv message", "error", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if msg.RequestID != nil {
		if ch, ok := c.pending[*msg.RequestID]; ok {
			ch <- reply{data: msg.Data, err: msg.Error}
		}
		return
	}
	if msg.Event.Name == "" {
		return
	}
	c.queue = append(c.queue, msg.Event)
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Conn) dispatchLoop() {
	defer c.done.Done()

	for {
		select {
		case <-c.wake:
		case <-c.closed:
			return
		}

		c.mu.Lock()
		events := c.queue
		c.queue = nil
		c.mu.Unlock()

		for _, ev := range events {
			c.onEvent(ev)
		}
	}
}

func (c *Conn) shutdown(err error) {
	c.once.Do(func() {
		if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
			c.logger.Debug("mpv connection closed")
		} else {
			c.logger.Warn("mpv connection lost", "error", err)
		}
		c.mu.Lock()
		c.err = ErrClosed
		c.mu.Unlock()
		close(c.closed)
	})
}
