package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/troikatech/collections-agent/pkg/audio"
)

// ErrClosed is returned for any operation on a connection that has closed
var ErrClosed = errors.New("media connection closed")

// Socket is the part of *websocket.Conn the media layer uses
type Socket interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Conn serializes writes to one carrier socket. The first failed write
// marks it closed; it is never written to again.
type Conn struct {
	ws     Socket
	mu     sync.Mutex
	sid    atomic.Value
	closed atomic.Bool
	once   sync.Once
}

func NewConn(ws Socket) *Conn {
	c := &Conn{ws: ws}
	c.sid.Store("")
	return c
}

// SetStreamSID records the stream id outbound events are addressed to
func (c *Conn) SetStreamSID(sid string) { c.sid.Store(sid) }

func (c *Conn) StreamSID() string { return c.sid.Load().(string) }

// Closed reports whether the socket is known to be gone
func (c *Conn) Closed() bool { return c.closed.Load() }

// ReadEvent blocks for the next message. Protocol errors leave the
// connection usable; any other error means it is gone.
func (c *Conn) ReadEvent() (*Inbound, error) {
	for {
		mt, raw, err := c.ws.ReadMessage()
		if err != nil {
			c.closed.Store(true)
			return nil, fmt.Errorf("%w: %v", ErrClosed, err)
		}
		if mt != websocket.TextMessage {
			continue
		}
		return Parse(raw)
	}
}

// SendMedia sends one PCM frame
func (c *Conn) SendMedia(frame []byte) error {
	m := outMedia{Event: EventMedia, StreamSID: c.StreamSID()}
	m.Media.Payload = audio.EncodeFrame(frame)
	return c.writeJSON(m)
}

// SendMark tells the carrier the preceding audio is complete
func (c *Conn) SendMark(name string) error {
	m := outMark{Event: EventMark, StreamSID: c.StreamSID()}
	m.Mark.Name = name
	return c.writeJSON(m)
}

// SendClear asks the carrier to drop audio it has buffered for playback
func (c *Conn) SendClear() error {
	return c.writeJSON(outClear{Event: EventClear, StreamSID: c.StreamSID()})
}

// SendError reports a fatal condition before the socket is closed
func (c *Conn) SendError(message string) error {
	return c.writeJSON(outError{Event: EventError, StreamSID: c.StreamSID(), Message: message})
}

func (c *Conn) writeJSON(v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.write(websocket.TextMessage, b)
}

func (c *Conn) write(messageType int, b []byte) error {
	if c.closed.Load() {
		return ErrClosed
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.WriteMessage(messageType, b); err != nil {
		c.closed.Store(true)
		return fmt.Errorf("%w: %v", ErrClosed, err)
	}
	return nil
}

// KeepAlive pings the carrier until ctx ends or a ping fails
func (c *Conn) KeepAlive(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close closes the socket once
func (c *Conn) Close() error {
	var err error
	c.once.Do(func() {
		c.closed.Store(true)
		err = c.ws.Close()
	})
	return err
}
