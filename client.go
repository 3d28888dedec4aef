package main

import (
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 4096
	sendBufSize       = 256
	maxMessagesPerSec = 50
	maxNameLen        = 16
	maxArenaNameLen   = 30
)

// Client represents a WebSocket connection
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	playerID   string
	arenaID    string
	remoteAddr string
	msgCount   int
	msgResetAt time.Time
	account    *Account // nil for guests
}

// NewClient creates a new Client
func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr string) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBufSize),
		remoteAddr: remoteAddr,
	}
}

// ReadPump reads messages from the WebSocket connection
func (c *Client) ReadPump() {
	defer func() {
		c.hub.TrackDisconnect(c.remoteAddr)
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws error: %v", err)
			}
			break
		}

		now := time.Now()
		if now.After(c.msgResetAt) {
			c.msgCount = 0
			c.msgResetAt = now.Add(time.Second)
		}
		c.msgCount++
		if c.msgCount > maxMessagesPerSec {
			log.Printf("rate limit exceeded for %s, disconnecting", c.remoteAddr)
			break
		}

		c.handleMessage(message)
	}
}

// WritePump writes messages to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// 0xFF prefix marks a binary frame (see SendBinary)
			var err error
			if len(message) > 0 && message[0] == 0xFF {
				err = c.conn.WriteMessage(websocket.BinaryMessage, message[1:])
			} else {
				err = c.conn.WriteMessage(websocket.TextMessage, message)
			}
			if err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendJSON sends a JSON message to the client
func (c *Client) SendJSON(msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("marshal error: %v", err)
		return
	}
	c.SendRaw(data)
}

// SendRaw sends pre-marshaled bytes as a text message to the client
func (c *Client) SendRaw(data []byte) {
	defer func() { recover() }()
	select {
	case c.send <- data:
	default:
		// Client too slow, drop message
	}
}

// SendBinary sends pre-marshaled bytes as a binary WebSocket message
func (c *Client) SendBinary(data []byte) {
	defer func() { recover() }()
	msg := make([]byte, len(data)+1)
	msg[0] = 0xFF
	copy(msg[1:], data)
	select {
	case c.send <- msg:
	default:
	}
}

func (c *Client) sendError(msg string) {
	c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: msg}})
}

// handleMessage routes incoming messages (single-pass decode via InEnvelope)
func (c *Client) handleMessage(raw []byte) {
	var env InEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Printf("unmarshal error: %v", err)
		return
	}

	switch env.T {
	case MsgList:
		c.SendJSON(Envelope{T: MsgArenas, Data: c.hub.arenas.ListArenas()})
	case MsgCreate:
		c.handleCreate(env.D)
	case MsgJoin:
		c.handleJoin(env.D)
	case MsgInput:
		c.handleInput(env.D)
	case MsgFire:
		c.handleFire()
	case MsgLeave:
		c.handleLeave()
	case MsgRegister:
		c.handleRegister(env.D)
	case MsgLogin:
		c.handleLogin(env.D)
	case MsgAuth:
		c.handleAuth(env.D)
	}
}

func (c *Client) handleCreate(data json.RawMessage) {
	var msg CreateMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	name := truncateRunes(strings.TrimSpace(msg.Name), maxArenaNameLen)
	if name == "" {
		name = "Arena"
	}

	arena, err := c.hub.arenas.CreateArena(name)
	if err != nil {
		c.sendError(err.Error())
		return
	}
	c.SendJSON(Envelope{T: MsgCreated, Data: map[string]string{"aid": arena.ID}})
}

func (c *Client) handleJoin(data json.RawMessage) {
	var msg JoinMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	if c.arenaID != "" {
		c.handleLeave()
	}
	name := truncateRunes(strings.TrimSpace(msg.Name), maxNameLen)
	var opts []PlayerOption
	if c.account != nil {
		if name == "" {
			name = c.account.Username
		}
		opts = append(opts, WithAccount(c.account.ID, c.account.Username))
	}
	if name == "" {
		name = "Cell"
	}

	arena, err := c.hub.arenas.GetArena(msg.ArenaID)
	if err != nil {
		c.sendError(err.Error())
		return
	}

	player, err := arena.World.AddPlayer(name, opts...)
	if errors.Is(err, ErrArenaClosed) {
		// Dropped between lookup and join
		err = ErrArenaNotFound
	}
	if err != nil {
		c.sendError(err.Error())
		return
	}
	c.playerID = player.ID
	c.arenaID = arena.ID

	cfg := arena.World.Config()
	c.SendJSON(Envelope{T: MsgJoined, Data: map[string]string{"aid": arena.ID}})
	c.SendJSON(Envelope{T: MsgWelcome, Data: WelcomeMsg{
		ID:     player.ID,
		Width:  cfg.Width,
		Height: cfg.Height,
		Virus: VirusStyle{
			Fill:        cfg.Virus.Fill,
			Stroke:      cfg.Virus.Stroke,
			StrokeWidth: cfg.Virus.StrokeWidth,
		},
	}})

	// Registered after the welcome so snapshots never precede it
	arena.World.SetClient(player.ID, c)
}

// world returns the world the client plays in, or nil
func (c *Client) world() *World {
	if c.arenaID == "" || c.playerID == "" {
		return nil
	}
	arena, err := c.hub.arenas.GetArena(c.arenaID)
	if err != nil {
		return nil
	}
	return arena.World
}

func (c *Client) handleInput(data json.RawMessage) {
	w := c.world()
	if w == nil {
		return
	}
	var input ClientInput
	if err := json.Unmarshal(data, &input); err != nil {
		return
	}
	if err := w.HandleInput(c.playerID, input); errors.Is(err, ErrNoSuchPlayer) {
		c.arenaID, c.playerID = "", ""
	}
}

func (c *Client) handleFire() {
	w := c.world()
	if w == nil {
		return
	}
	if err := w.Fire(c.playerID); errors.Is(err, ErrNoSuchPlayer) {
		c.arenaID, c.playerID = "", ""
	}
}

func (c *Client) handleLeave() {
	if c.arenaID != "" {
		c.hub.arenas.RemovePlayer(c.arenaID, c.playerID)
		c.arenaID = ""
		c.playerID = ""
	}
}

func (c *Client) handleRegister(data json.RawMessage) {
	if c.hub.auth == nil {
		c.sendError("accounts disabled")
		return
	}
	var msg RegisterMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	acct, err := c.hub.auth.Register(msg.Username, msg.Password)
	if err != nil {
		log.Printf("register %q: %v", msg.Username, err)
		c.sendError(publicAuthError(err))
		return
	}
	c.authOK(acct)
}

func (c *Client) handleLogin(data json.RawMessage) {
	if c.hub.auth == nil {
		c.sendError("accounts disabled")
		return
	}
	var msg LoginMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	acct, err := c.hub.auth.Login(msg.Username, msg.Password, c.remoteAddr)
	if err != nil {
		c.sendError(publicAuthError(err))
		return
	}
	c.authOK(acct)
}

func (c *Client) handleAuth(data json.RawMessage) {
	if c.hub.auth == nil {
		c.sendError("accounts disabled")
		return
	}
	var msg AuthMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	acct, err := c.hub.auth.Resume(msg.Token)
	if err != nil {
		c.sendError(ErrInvalidToken.Error())
		return
	}
	c.authOK(acct)
}

// authOK signs the connection in; the account applies from the next join
func (c *Client) authOK(acct Account) {
	c.account = &acct
	c.SendJSON(Envelope{T: MsgAuthOK, Data: AuthOKMsg{
		Token:    acct.Token,
		Username: acct.Username,
		PlayerID: acct.ID,
	}})
}

// publicAuthError hides storage details from clients
func publicAuthError(err error) string {
	for _, known := range []error{ErrBadCredentials, ErrUsernameTaken, ErrBadUsername, ErrShortPassword, ErrRateLimited} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return "internal error"
}
