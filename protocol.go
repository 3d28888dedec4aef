package main

import "encoding/json"

// Client -> Server message types
const (
	MsgJoin     = "join"
	MsgLeave    = "leave"
	MsgInput    = "input"
	MsgFire     = "fire"
	MsgCreate   = "create" // create arena
	MsgList     = "list"   // list arenas
	MsgRegister = "register"
	MsgLogin    = "login"
	MsgAuth     = "auth" // resume with a token
)

// Server -> Client message types
const (
	MsgState   = "state" // snapshots go out as msgpack binary frames
	MsgWelcome = "welcome"
	MsgArenas  = "arenas"
	MsgJoined  = "joined"
	MsgCreated = "created"
	MsgError   = "error"
	MsgAuthOK  = "auth_ok"
	MsgSplit   = "split"
)

// Envelope wraps all outgoing messages with a type field
type Envelope struct {
	T    string      `json:"t"`
	Data interface{} `json:"d,omitempty"`
}

// InEnvelope is used for incoming messages; the payload is decoded per type
type InEnvelope struct {
	T string          `json:"t"`
	D json.RawMessage `json:"d,omitempty"`
}

// ClientInput carries the aim target relative to the player centre
type ClientInput struct {
	TX float64 `json:"tx"`
	TY float64 `json:"ty"`
}

// JoinMsg is sent when a player wants to join an arena (empty aid = default)
type JoinMsg struct {
	Name    string `json:"name"`
	ArenaID string `json:"aid"`
}

// CreateMsg is sent when a player wants to open a new arena
type CreateMsg struct {
	Name string `json:"name"`
}

// RegisterMsg / LoginMsg carry account credentials
type RegisterMsg struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginMsg struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthMsg resumes an authenticated session
type AuthMsg struct {
	Token string `json:"token"`
}

// AuthOKMsg confirms authentication
type AuthOKMsg struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	PlayerID int64  `json:"pid"`
}

// CellState is one player cell
type CellState struct {
	X    float64 `json:"x" msgpack:"x"`
	Y    float64 `json:"y" msgpack:"y"`
	Mass float64 `json:"m" msgpack:"m"`
	R    float64 `json:"r" msgpack:"r"`
}

// PlayerState is broadcast per player
type PlayerState struct {
	ID      string      `json:"id" msgpack:"id"`
	Name    string      `json:"n" msgpack:"n"`
	Hue     int         `json:"h" msgpack:"h"`
	X       float64     `json:"x" msgpack:"x"`
	Y       float64     `json:"y" msgpack:"y"`
	Mass    float64     `json:"m" msgpack:"m"`
	Cells   []CellState `json:"c" msgpack:"c"`
	Account string      `json:"acct,omitempty" msgpack:"acct,omitempty"` // registered username
}

// VirusState is broadcast per virus
type VirusState struct {
	ID   string  `json:"id" msgpack:"id"`
	X    float64 `json:"x" msgpack:"x"`
	Y    float64 `json:"y" msgpack:"y"`
	Mass float64 `json:"m" msgpack:"m"`
	R    float64 `json:"r" msgpack:"r"`
}

// PelletState is broadcast per pellet
type PelletState struct {
	ID    string  `json:"id" msgpack:"id"`
	X     float64 `json:"x" msgpack:"x"`
	Y     float64 `json:"y" msgpack:"y"`
	R     float64 `json:"r" msgpack:"r"`
	Hue   int     `json:"h" msgpack:"h"`
	Owner string  `json:"o" msgpack:"o"`
}

// VirusStyle is sent once on join; virus styling never changes per virus
type VirusStyle struct {
	Fill        string  `json:"fill"`
	Stroke      string  `json:"stroke"`
	StrokeWidth float64 `json:"sw"`
}

// WorldState is the full state snapshot
type WorldState struct {
	Players []PlayerState `json:"p" msgpack:"p"`
	Viruses []VirusState  `json:"v" msgpack:"v"`
	Pellets []PelletState `json:"f" msgpack:"f"`
	Tick    uint64        `json:"tick" msgpack:"tick"`
}

// WelcomeMsg is sent to a player when they join
type WelcomeMsg struct {
	ID     string     `json:"id"`
	Width  float64    `json:"w"`
	Height float64    `json:"h"`
	Virus  VirusStyle `json:"virus"`
}

// SplitMsg tells clients a virus split, for effects
type SplitMsg struct {
	VirusID string  `json:"vid"`
	NewID   string  `json:"nid"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
}

// ArenaInfo is used in the arena list
type ArenaInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Players int    `json:"players"`
	Viruses int    `json:"viruses"`
}

// ErrorMsg sends error to client
type ErrorMsg struct {
	Msg string `json:"msg"`
}
