package companion

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/wlo1561411/HappyTime/logger"
)

const (
	hubInnerChannelsBufferSize      = 100
	socketWriteWait                 = 10 * time.Second
	socketPongWait                  = 60 * time.Second
	socketPingPeriod                = (socketPongWait * 4) / 5
	socketMaxMessageSize            = 4096
	clientMessageChannelsBufferSize = 16
	devicesCountLimit               = 32
)

const maxDevicesReason = "max number of devices reached"

type socket struct {
	id   string
	hub  *hub
	conn *websocket.Conn
	send chan []byte
	srv  *server
	log  logger.Logger
}

func (s *server) wsWrapper(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	client := &socket{
		id:   primitive.NewObjectID().Hex(),
		hub:  s.hub,
		send: make(chan []byte, clientMessageChannelsBufferSize),
		srv:  s,
		log:  s.log,
	}

	serveWs := func(conn *websocket.Conn) {
		ctx, cancel := context.WithCancel(s.ctx)
		defer cancel()
		client.conn = conn

		admitted := make(chan bool, 1)
		var ok bool
		select {
		case client.hub.register <- registration{client: client, admitted: admitted}:
			select {
			case ok = <-admitted:
			case <-ctx.Done():
			}
		case <-ctx.Done():
		}
		if !ok {
			// no pump runs yet, this goroutine is the only writer
			conn.SetWriteDeadline(time.Now().Add(socketWriteWait))                                                                    //nolint:errcheck
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, maxDevicesReason)) //nolint:errcheck
			conn.Close()
			s.log.Warn(fmt.Sprintf("websocket server, connection %s rejected, %s", client.id, maxDevicesReason))
			return
		}

		if sum, ok := s.summaries.Latest(); ok {
			client.sendMessage(attendanceOf(sum))
		}
		go client.writePump(ctx, cancel)
		client.readPump(ctx, cancel)
	}
	s.log.Info(fmt.Sprintf("websocket server, new connection %s from address: %s accepted", client.id, c.IP()))

	return websocket.New(serveWs)(c)
}

func (c *socket) readPump(ctx context.Context, cancel context.CancelFunc) {
	defer cancel()
	c.conn.SetReadLimit(socketMaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(socketPongWait)) //nolint:errcheck
	c.conn.SetPongHandler(func(string) error { return c.conn.SetReadDeadline(time.Now().Add(socketPongWait)) })

	for {
		var req Request
		if err := c.conn.ReadJSON(&req); err != nil {
			switch {
			case websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure):
				c.log.Info(fmt.Sprintf("socket closing connection %s due to unexpected error %s", c.id, err))
			default:
				c.log.Debug(fmt.Sprintf("socket closing connection %s, %s", c.id, err))
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		c.process(&req)
	}
}

func (c *socket) writePump(ctx context.Context, cancel context.CancelFunc) {
	ticker := time.NewTicker(socketPingPeriod)
	defer func() {
		ticker.Stop()
		c.hub.unregister <- c
		c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "companion server stopped")) //nolint:errcheck
		c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case raw := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(socketWriteWait)) //nolint:errcheck
			if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				c.log.Error(fmt.Sprintf("socket closing connection %s due to %s", c.id, err))
				cancel()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(socketWriteWait)) //nolint:errcheck
			if err := c.conn.WriteMessage(websocket.PingMessage, []byte(c.id)); err != nil {
				c.log.Error(fmt.Sprintf("socket closing connection %s due to %s", c.id, err))
				cancel()
				return
			}
		}
	}
}

func (c *socket) process(req *Request) {
	out, err := c.srv.handle(*req)
	if err != nil {
		c.log.Info(fmt.Sprintf("socket %s received unknown action %q", c.id, req.Action))
		c.sendMessage(OutcomeMessage{Action: req.Action, Title: "咦！", Message: err.Error()})
		return
	}
	c.sendMessage(outcomeOf(out))
}

func (c *socket) sendMessage(msg any) {
	raw, err := json.Marshal(msg)
	if err != nil {
		c.log.Error(fmt.Sprintf("socket failed to marshal message: %s", err.Error()))
		return
	}
	select {
	case c.send <- raw:
	default:
		c.log.Warn(fmt.Sprintf("socket %s send buffer full, message dropped", c.id))
	}
}

// registration asks the hub to admit client; the answer is sent once on admitted.
type registration struct {
	client   *socket
	admitted chan<- bool
}

type hub struct {
	clients    map[string]*socket
	limit      int
	broadcast  chan AttendanceMessage
	register   chan registration
	unregister chan *socket
	log        logger.Logger
}

// newHub creates a hub admitting at most limit devices, devicesCountLimit when limit is not positive.
func newHub(log logger.Logger, limit int) *hub {
	if limit <= 0 {
		limit = devicesCountLimit
	}
	return &hub{
		limit:      limit,
		broadcast:  make(chan AttendanceMessage, hubInnerChannelsBufferSize),
		register:   make(chan registration, hubInnerChannelsBufferSize),
		unregister: make(chan *socket, hubInnerChannelsBufferSize),
		clients:    make(map[string]*socket, hubInnerChannelsBufferSize),
		log:        log,
	}
}

func (h *hub) run(ctx context.Context) {
	for {
		select {
		case r := <-h.register:
			if len(h.clients) >= h.limit {
				r.admitted <- false
				continue
			}
			h.clients[r.client.id] = r.client
			r.admitted <- true
		case client := <-h.unregister:
			delete(h.clients, client.id)
		case message := <-h.broadcast:
			raw, err := json.Marshal(&message)
			if err != nil {
				h.log.Error(fmt.Sprintf("hub failed to marshal message: %s", err.Error()))
				continue
			}
			for _, client := range h.clients {
				select {
				case client.send <- raw:
				default:
					h.log.Warn(fmt.Sprintf("hub dropped message for socket %s", client.id))
				}
			}
		case <-ctx.Done():
			for id := range h.clients {
				delete(h.clients, id)
			}
			return
		}
	}
}
