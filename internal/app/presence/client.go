package presence

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a message sent by the client.
	maxMessageSize = 4096

	// WsCloseCodeSlowConsumer tells the client it was dropped for not reading fast enough.
	WsCloseCodeSlowConsumer = 4002
)

// Client pumps frames between a WebSocket connection and its Session.
type Client struct {
	conn    *websocket.Conn
	session *Session
	logger  zerolog.Logger
}

// NewClient binds conn to session.
func NewClient(conn *websocket.Conn, session *Session) *Client {
	return &Client{
		conn:    conn,
		session: session,
		logger:  session.logger.With().Str("remote_addr", conn.RemoteAddr().String()).Logger(),
	}
}

// Run starts the write pump and runs the read pump on the calling goroutine.
func (c *Client) Run() {
	go c.WritePump()
	c.ReadPump()
}

// ReadPump feeds inbound frames to the session in arrival order. Any read error,
// including a missed pong deadline, closes the session. When the session closes
// itself the connection is left to WritePump, which still owes the close frame.
func (c *Client) ReadPump() {
	readFailed := true
	defer func() {
		c.session.Close(ReasonDisconnect)
		if !readFailed {
			return
		}
		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Client connection close error")
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading message (Client close/going away)")
			}
			return
		}

		c.session.HandleFrame(messageBytes)

		select {
		case <-c.session.Done():
			readFailed = false
			return
		default:
		}
	}
}

// WritePump writes queued frames and keeps the connection alive with pings. When the
// session closes it sends a close frame carrying the reason and closes the connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Client connection close error in WritePump")
		}
	}()

	for {
		select {
		case frame := <-c.session.Outbound():
			if !c.write(websocket.TextMessage, frame) {
				c.session.Close(ReasonWriteError)
				return
			}

		case <-c.session.Done():
			c.writeClose(c.session.Reason())
			return

		case <-ticker.C:
			if !c.write(websocket.PingMessage, nil) {
				c.session.Close(ReasonWriteError)
				return
			}
		}
	}
}

func (c *Client) write(messageType int, data []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if err := c.conn.WriteMessage(messageType, data); err != nil {
		c.logger.Warn().Err(err).Msg("Error writing message")
		return false
	}
	return true
}

// writeClose flushes frames already queued, except for an evicted session, then sends
// the close frame. Nothing is written after a transport failure.
func (c *Client) writeClose(reason CloseReason) {
	code, text := websocket.CloseNormalClosure, string(reason)
	switch reason {
	case ReasonSlowConsumer:
		code = WsCloseCodeSlowConsumer
	case ReasonShutdown:
		code = websocket.CloseGoingAway
	case ReasonWriteError, ReasonDisconnect:
		return
	default:
		c.drain()
	}

	closeMessage := websocket.FormatCloseMessage(code, text)
	if !c.write(websocket.CloseMessage, closeMessage) {
		c.logger.Debug().Msg("Failed to send WS close message.")
	}
}

func (c *Client) drain() {
	for {
		select {
		case frame := <-c.session.Outbound():
			if !c.write(websocket.TextMessage, frame) {
				return
			}
		default:
			return
		}
	}
}
