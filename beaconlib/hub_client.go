package beaconlib

import (
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

const (
	hubWriteWait      = 10 * time.Second
	hubPongWait       = 60 * time.Second
	hubPingPeriod     = (hubPongWait * 9) / 10
	hubMaxMessageSize = 4096
	hubClientBuffer   = 256
)

var errSlowClient = errors.New("client cannot keep up, disconnected")

type hubClient struct {
	hub  *Hub
	conn *websocket.Conn

	// both are closed by hub only
	send    chan []byte
	dropped chan struct{}

	pong chan struct{}
}

func (c *hubClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.dropped:
		}

		c.conn.Close()
	}()

	c.conn.SetReadLimit(hubMaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(hubPongWait)) // nolint: errcheck
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(hubPongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.HubError(err)
			}

			return
		}

		msg := Message{}
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case MessageTypeJoinAdmin:
			select {
			case c.hub.join <- c:
			case <-c.dropped:
				return
			}
		case MessageTypePing:
			select {
			case c.pong <- struct{}{}:
			default:
			}
		}
	}
}

func (c *hubClient) writePump() {
	ticker := time.NewTicker(hubPingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	pong, _ := json.Marshal(Message{Type: MessageTypePong})

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(hubWriteWait)) // nolint: errcheck

			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{}) // nolint: errcheck

				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-c.pong:
			c.conn.SetWriteDeadline(time.Now().Add(hubWriteWait)) // nolint: errcheck

			if err := c.conn.WriteMessage(websocket.TextMessage, pong); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(hubWriteWait)) // nolint: errcheck

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func newHubClient(hub *Hub, conn *websocket.Conn) *hubClient {
	return &hubClient{
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, hubClientBuffer),
		dropped: make(chan struct{}),
		pong:    make(chan struct{}, 1),
	}
}
