package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/nucleon-labs/neoportal/config"
)

// Frame types exchanged with the relay server.
const (
	frameSessionPropose = "session_propose"
	frameSessionSettle  = "session_settle"
	frameSessionDelete  = "session_delete"
	frameRequest        = "request"
	frameResponse       = "response"
)

const sessionTopic = "session"

const (
	pingInterval = 30 * time.Second
	// pongWait must outlast two missed pings before the read side gives up.
	pongWait = 75 * time.Second
)

// frame is the single wire envelope. Which fields are set depends on Type.
type frame struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Topic   string          `json:"topic,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *FaultError     `json:"error,omitempty"`
	Session *SessionRecord  `json:"session,omitempty"`
}

// Client talks to one relay server. The websocket is dialed lazily: a
// restored session does not open a connection until the first request.
type Client struct {
	cfg    config.RelayConfig
	store  SessionStore
	dialer *websocket.Dialer
	bus    EventBus.Bus

	// writeMu serializes data frames; gorilla allows one writer at a time.
	writeMu sync.Mutex

	mu      sync.Mutex
	conn    *websocket.Conn
	session *SessionRecord
	pending map[string]chan frame
	closed  chan struct{}
}

// NewClient creates a relay client and restores any persisted session. It
// never dials; pairing state is re-validated on first use.
func NewClient(cfg config.RelayConfig, store SessionStore) (*Client, error) {
	c := &Client{
		cfg:     cfg,
		store:   store,
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		bus:     EventBus.New(),
		pending: make(map[string]chan frame),
	}

	var record SessionRecord
	ok, err := store.LoadRelaySession(&record)
	if err != nil {
		return nil, fmt.Errorf("failed to restore relay session: %w", err)
	}
	if ok {
		if record.Expired() {
			log.Info().Str("topic", record.Topic).Msg("persisted relay session expired, discarding")
			_ = store.DeleteRelaySession()
		} else {
			c.session = &record
			log.Info().Str("topic", record.Topic).Msg("restored relay session")
		}
	}
	return c, nil
}

// Active reports whether a settled, unexpired session exists.
func (c *Client) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil && !c.session.Expired()
}

// Account returns the session's account address, or "" without a session.
func (c *Client) Account() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ""
	}
	return c.session.Account
}

// Network returns the session's network, or "" without a session.
func (c *Client) Network() config.NetworkID {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ""
	}
	return c.session.Network
}

// Pair runs the pairing handshake: propose a session and block until the
// remote wallet settles or rejects it. The settled record is persisted.
func (c *Client) Pair(ctx context.Context) error {
	if err := c.ensureConn(ctx); err != nil {
		return err
	}

	id := uuid.NewString()
	params, _ := json.Marshal(map[string]string{
		"appName": c.cfg.AppName,
		"appUrl":  c.cfg.AppURL,
	})

	reply, err := c.send(ctx, frame{Type: frameSessionPropose, ID: id, Params: params})
	if err != nil {
		return err
	}
	if reply.Error != nil {
		return reply.Error
	}
	if reply.Session == nil {
		return fmt.Errorf("relay settled without a session record")
	}

	c.mu.Lock()
	c.session = reply.Session
	c.mu.Unlock()

	if err := c.store.SaveRelaySession(reply.Session); err != nil {
		return fmt.Errorf("failed to persist relay session: %w", err)
	}
	log.Info().Str("topic", reply.Session.Topic).Msg("relay session settled")
	c.bus.Publish(sessionTopic)
	return nil
}

// Request sends a correlated request over the session and decodes the result
// into result. Wallet faults come back as *FaultError.
func (c *Client) Request(ctx context.Context, method string, params, result any) error {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()
	if session == nil || session.Expired() {
		return ErrNoSession
	}
	if err := c.ensureConn(ctx); err != nil {
		return err
	}

	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to encode %s params: %w", method, err)
	}

	reply, err := c.send(ctx, frame{
		Type:   frameRequest,
		ID:     uuid.NewString(),
		Topic:  session.Topic,
		Method: method,
		Params: raw,
	})
	if err != nil {
		return err
	}
	if reply.Error != nil {
		return reply.Error
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(reply.Result, result); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return nil
}

// Teardown deletes the session on the relay (best effort), drops the
// persisted record and closes the websocket.
func (c *Client) Teardown(ctx context.Context) error {
	c.mu.Lock()
	session := c.session
	conn := c.conn
	c.session = nil
	c.mu.Unlock()

	if session != nil && conn != nil {
		_ = c.writeFrame(conn, frame{Type: frameSessionDelete, Topic: session.Topic})
	}
	if err := c.store.DeleteRelaySession(); err != nil {
		return fmt.Errorf("failed to delete relay session: %w", err)
	}
	c.closeConn()
	c.bus.Publish(sessionTopic)
	return nil
}

// OnSessionChange registers a handler fired whenever the session settles or
// is torn down, locally or by the remote wallet. Returns a disposer.
func (c *Client) OnSessionChange(fn func()) func() {
	_ = c.bus.Subscribe(sessionTopic, fn)
	return func() {
		_ = c.bus.Unsubscribe(sessionTopic, fn)
	}
}

// Close tears the websocket down without touching the persisted session.
func (c *Client) Close() error {
	c.closeConn()
	return nil
}

func (c *Client) ensureConn(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return nil
	}

	conn, resp, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to dial relay %s: %w", c.cfg.URL, err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	c.conn = conn
	c.closed = make(chan struct{})
	go c.readLoop(conn, c.closed)
	go c.pingLoop(conn, c.closed)
	return nil
}

// pingLoop keeps the relay connection alive. WriteControl is safe alongside
// the request writers.
func (c *Client) pingLoop(conn *websocket.Conn, closed chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(10 * time.Second)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				log.Warn().Err(err).Msg("relay ping failed")
				return
			}
		case <-closed:
			return
		}
	}
}

// send writes the frame and blocks until its correlated reply arrives or ctx
// expires.
func (c *Client) send(ctx context.Context, f frame) (frame, error) {
	ch := make(chan frame, 1)

	c.mu.Lock()
	conn := c.conn
	closed := c.closed
	c.pending[f.ID] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, f.ID)
		c.mu.Unlock()
	}()

	if err := c.writeFrame(conn, f); err != nil {
		return frame{}, err
	}

	select {
	case reply := <-ch:
		return reply, nil
	case <-closed:
		return frame{}, fmt.Errorf("relay connection closed while waiting for reply")
	case <-ctx.Done():
		return frame{}, ctx.Err()
	}
}

func (c *Client) readLoop(conn *websocket.Conn, closed chan struct{}) {
	defer func() {
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
		close(closed)
	}()

	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Msg("relay connection dropped")
			}
			return
		}

		switch f.Type {
		case frameResponse, frameSessionSettle:
			c.mu.Lock()
			ch, ok := c.pending[f.ID]
			c.mu.Unlock()
			if ok {
				ch <- f
			}
		case frameSessionDelete:
			// The remote wallet ended the session.
			c.mu.Lock()
			c.session = nil
			c.mu.Unlock()
			if err := c.store.DeleteRelaySession(); err != nil {
				log.Warn().Err(err).Msg("failed to drop persisted relay session")
			}
			log.Info().Msg("relay session deleted by remote wallet")
			c.bus.Publish(sessionTopic)
		}
	}
}

func (c *Client) writeFrame(conn *websocket.Conn, f frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteJSON(f); err != nil {
		return fmt.Errorf("failed to write relay frame: %w", err)
	}
	return nil
}

func (c *Client) closeConn() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}
