// Package gateway fans store change notifications out to WebSocket clients.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/dyluth/roost/pkg/board"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Source is the subset of the board client the gateway listens to.
type Source interface {
	GetSession(ctx context.Context, presentationID string) (*board.ActiveSession, error)
	SubscribeSessionEvents(ctx context.Context, presentationID string) (*board.SessionSubscription, error)
	SubscribeVoteEvents(ctx context.Context, presentationID string) (*board.VoteSubscription, error)
}

// MessageType distinguishes the streams multiplexed on one socket.
type MessageType string

const (
	MessageSession MessageType = "session"
	MessageVote    MessageType = "vote"
)

// Message is the JSON frame sent to clients.
type Message struct {
	Type           MessageType          `json:"type"`
	Kind           string               `json:"kind"`
	PresentationID string               `json:"presentation_id"`
	Session        *board.ActiveSession `json:"session,omitempty"`
	Vote           *board.Vote          `json:"vote,omitempty"`
}

// Config holds configuration for WebSocket connections
type Config struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBuffer      int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConfig returns default WebSocket configuration
func DefaultConfig() Config {
	return Config{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBuffer:      64,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
}

// Manager keeps one connection pool per presentation. The first connection
// to a presentation subscribes to its store channels and the last one to
// leave cancels the subscriptions.
type Manager struct {
	source   Source
	config   Config
	upgrader websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.RWMutex
	pools map[string]*pool
}

type pool struct {
	conns  map[*Connection]bool
	cancel context.CancelFunc
}

// Connection represents a WebSocket connection to a client
type Connection struct {
	ID             string
	PresentationID string
	Votes          bool // Receives vote events, presenters only
	ConnectedAt    time.Time

	conn    *websocket.Conn
	send    chan []byte
	manager *Manager
}

// Stats summarizes open connections.
type Stats struct {
	Connections     int            `json:"total_connections"`
	Presentations   int            `json:"active_presentations"`
	PerPresentation map[string]int `json:"presentation_connections"`
}

// NewManager creates a connection manager. Close releases every connection.
func NewManager(source Source, config Config) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		source: source,
		config: config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		ctx:    ctx,
		cancel: cancel,
		pools:  make(map[string]*pool),
	}
}

// Serve upgrades the request and streams the presentation's events to it.
// withVotes adds vote events to the session stream.
func (m *Manager) Serve(w http.ResponseWriter, r *http.Request, presentationID string, withVotes bool) error {
	ws, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	c := &Connection{
		ID:             uuid.New().String(),
		PresentationID: presentationID,
		Votes:          withVotes,
		ConnectedAt:    time.Now(),
		conn:           ws,
		send:           make(chan []byte, m.config.SendBuffer),
		manager:        m,
	}

	if err := m.register(c); err != nil {
		ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "subscription failed"))
		ws.Close()
		return err
	}

	// Read after subscribing so no transition falls between snapshot and stream
	m.queueSnapshot(c)

	go c.writePump()
	go c.readPump()

	log.Info().
		Str("connection_id", c.ID).
		Str("presentation_id", presentationID).
		Bool("votes", withVotes).
		Msg("WebSocket connection established")
	return nil
}

// Broadcast sends msg to every connection of its presentation. Connections
// whose buffer is full are dropped.
func (m *Manager) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	var slow []*Connection
	sent := 0

	m.mu.RLock()
	if p, ok := m.pools[msg.PresentationID]; ok {
		for c := range p.conns {
			if msg.Type == MessageVote && !c.Votes {
				continue
			}
			select {
			case c.send <- data:
				sent++
			default:
				slow = append(slow, c)
			}
		}
	}
	m.mu.RUnlock()

	for _, c := range slow {
		log.Warn().
			Str("connection_id", c.ID).
			Str("presentation_id", c.PresentationID).
			Msg("connection send buffer full, closing connection")
		m.unregister(c)
		c.conn.Close()
	}

	log.Debug().
		Str("type", string(msg.Type)).
		Str("kind", msg.Kind).
		Str("presentation_id", msg.PresentationID).
		Int("connections", sent).
		Msg("event broadcasted")
}

// Stats returns statistics about active connections
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{PerPresentation: make(map[string]int, len(m.pools))}
	for id, p := range m.pools {
		stats.Connections += len(p.conns)
		stats.PerPresentation[id] = len(p.conns)
	}
	stats.Presentations = len(m.pools)
	return stats
}

// Close cancels every subscription and closes every connection.
func (m *Manager) Close() error {
	m.cancel()

	m.mu.Lock()
	var all []*Connection
	for _, p := range m.pools {
		for c := range p.conns {
			all = append(all, c)
		}
	}
	m.mu.Unlock()

	for _, c := range all {
		m.unregister(c)
	}
	return nil
}

func (m *Manager) register(c *Connection) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pools[c.PresentationID]
	if !ok {
		cancel, err := m.listen(c.PresentationID)
		if err != nil {
			return err
		}
		p = &pool{conns: make(map[*Connection]bool), cancel: cancel}
		m.pools[c.PresentationID] = p
	}
	p.conns[c] = true

	log.Debug().
		Str("connection_id", c.ID).
		Str("presentation_id", c.PresentationID).
		Int("total_connections", len(p.conns)).
		Msg("connection registered")
	return nil
}

func (m *Manager) unregister(c *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pools[c.PresentationID]
	if !ok || !p.conns[c] {
		return
	}

	delete(p.conns, c)
	close(c.send)

	if len(p.conns) == 0 {
		p.cancel()
		delete(m.pools, c.PresentationID)
	}

	log.Info().
		Str("connection_id", c.ID).
		Str("presentation_id", c.PresentationID).
		Msg("connection unregistered")
}

// listen subscribes to both store channels of a presentation and forwards
// them to Broadcast until the returned cancel func is called.
func (m *Manager) listen(presentationID string) (context.CancelFunc, error) {
	ctx, cancel := context.WithCancel(m.ctx)

	sessions, err := m.source.SubscribeSessionEvents(ctx, presentationID)
	if err != nil {
		cancel()
		return nil, err
	}
	votes, err := m.source.SubscribeVoteEvents(ctx, presentationID)
	if err != nil {
		sessions.Close()
		cancel()
		return nil, err
	}

	go func() {
		defer sessions.Close()
		defer votes.Close()

		sessionEvents, voteEvents := sessions.Events(), votes.Events()
		sessionErrs, voteErrs := sessions.Errors(), votes.Errors()
		for sessionEvents != nil || voteEvents != nil {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-sessionErrs:
				if !ok {
					sessionErrs = nil
					continue
				}
				log.Warn().Err(err).Str("presentation_id", presentationID).Msg("dropped malformed session event")
			case err, ok := <-voteErrs:
				if !ok {
					voteErrs = nil
					continue
				}
				log.Warn().Err(err).Str("presentation_id", presentationID).Msg("dropped malformed vote event")
			case e, ok := <-sessionEvents:
				if !ok {
					sessionEvents = nil
					continue
				}
				m.Broadcast(Message{Type: MessageSession, Kind: string(e.Kind), PresentationID: presentationID, Session: e.Session})
			case e, ok := <-voteEvents:
				if !ok {
					voteEvents = nil
					continue
				}
				m.Broadcast(Message{Type: MessageVote, Kind: string(e.Kind), PresentationID: presentationID, Vote: e.Vote})
			}
		}
	}()

	return cancel, nil
}

// queueSnapshot queues the current session so a new client does not wait
// for the next transition.
func (m *Manager) queueSnapshot(c *Connection) {
	s, err := m.source.GetSession(m.ctx, c.PresentationID)
	msg := Message{Type: MessageSession, Kind: string(board.SessionEventUpdated), PresentationID: c.PresentationID, Session: s}
	switch {
	case board.IsNotFound(err):
		msg.Kind = string(board.SessionEventEnded)
		msg.Session = nil
	case err != nil:
		log.Warn().Err(err).Str("presentation_id", c.PresentationID).Msg("failed to load session snapshot")
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	// unregister closes c.send under the write lock
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.pools[c.PresentationID]; !ok || !p.conns[c] {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}
