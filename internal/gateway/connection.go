package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/classpoll/backend/internal/session"
)

// Coordinator is the command surface the gateway dispatches into. The
// session package's Coordinator satisfies it; gateway tests use fakes.
type Coordinator interface {
	TeacherAttach(c session.Client)
	StudentAttach(c session.Client, name, studentID string)
	CreatePoll(c session.Client, req session.CreatePollRequest)
	SubmitAnswer(c session.Client, participantID, answer string)
	EndPoll()
	RemoveParticipant(participantID string)
	SendChat(text, sender string, role session.Role)
	Disconnect(c session.Client)
}

// Config holds transport-level connection settings.
type Config struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConfig returns default WebSocket connection settings.
func DefaultConfig() Config {
	return Config{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  256,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

// commandEnvelope is the inbound frame: a named command plus its payload.
type commandEnvelope struct {
	Type session.CommandType `json:"type"`
	Data json.RawMessage     `json:"data"`
}

// Connection is one WebSocket client. It implements session.Client: the
// coordinator pushes events into the send channel and the write pump drains
// it, so fan-out never blocks on a slow socket.
type Connection struct {
	id       string
	conn     *websocket.Conn
	send     chan session.Event
	coord    Coordinator
	registry *Registry
	cfg      Config

	connectedAt time.Time
}

func newConnection(conn *websocket.Conn, coord Coordinator, registry *Registry, cfg Config) *Connection {
	return &Connection{
		id:          uuid.NewString(),
		conn:        conn,
		send:        make(chan session.Event, cfg.SendBufferSize),
		coord:       coord,
		registry:    registry,
		cfg:         cfg,
		connectedAt: time.Now(),
	}
}

// Send queues an event for delivery. A full buffer drops the event; the
// session makes no delivery guarantee to individual connections.
func (c *Connection) Send(ev session.Event) {
	select {
	case c.send <- ev:
	default:
		log.Warn().
			Str("connection_id", c.id).
			Str("event_type", string(ev.Type)).
			Msg("send buffer full, dropping event")
	}
}

// readPump reads command frames until the connection fails, then reports
// the disconnect to the coordinator.
func (c *Connection) readPump() {
	defer func() {
		c.coord.Disconnect(c)
		c.registry.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("connection_id", c.id).Msg("unexpected WebSocket close")
			}
			return
		}
		c.dispatch(message)
		c.conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	}
}

// dispatch parses one inbound frame and hands it to the coordinator.
// Malformed frames and unknown commands are logged and skipped; a bad
// frame never takes the connection or the session down.
func (c *Connection) dispatch(message []byte) {
	var env commandEnvelope
	if err := json.Unmarshal(message, &env); err != nil {
		log.Warn().Err(err).Str("connection_id", c.id).Msg("malformed command frame")
		return
	}

	switch env.Type {
	case session.CmdTeacherAttach:
		c.coord.TeacherAttach(c)

	case session.CmdStudentAttach:
		var p session.StudentAttachPayload
		if !c.unmarshal(env, &p) {
			return
		}
		c.coord.StudentAttach(c, p.Name, p.StudentID)

	case session.CmdCreatePoll:
		var req session.CreatePollRequest
		if !c.unmarshal(env, &req) {
			return
		}
		c.coord.CreatePoll(c, req)

	case session.CmdSubmitAnswer:
		var p session.SubmitAnswerPayload
		if !c.unmarshal(env, &p) {
			return
		}
		c.coord.SubmitAnswer(c, p.ParticipantID, p.Answer)

	case session.CmdEndPoll:
		c.coord.EndPoll()

	case session.CmdRemoveParticipant:
		var p session.RemoveParticipantPayload
		if !c.unmarshal(env, &p) {
			return
		}
		c.coord.RemoveParticipant(p.ParticipantID)

	case session.CmdSendMessage:
		var p session.SendMessagePayload
		if !c.unmarshal(env, &p) {
			return
		}
		c.coord.SendChat(p.Text, p.SenderName, session.Role(p.SenderRole))

	default:
		log.Debug().
			Str("connection_id", c.id).
			Str("command", string(env.Type)).
			Msg("unknown command ignored")
	}
}

func (c *Connection) unmarshal(env commandEnvelope, v any) bool {
	if err := json.Unmarshal(env.Data, v); err != nil {
		log.Warn().
			Err(err).
			Str("connection_id", c.id).
			Str("command", string(env.Type)).
			Msg("malformed command payload")
		return false
	}
	return true
}

// writePump drains the send channel onto the socket with ping keepalive.
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				log.Error().Err(err).Str("connection_id", c.id).Msg("failed to write event")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
