// Wavelength game server
//
// Players join a room identified by a 6-character code and play rounds of
// the Wavelength party game: each player privately places a hidden target
// on a left/right spectrum and writes a clue for it, then players take
// turns presenting while everyone else guesses where the target sits.
// Points are awarded by proximity.
//
// Features:
// - Single WebSocket endpoint; rooms addressed by code in each message
// - Room creation/joining with duplicate-code and duplicate-name checks
// - Host-only game controls (start, round advance, end)
// - Per-connection spectrum assignment at game start
// - Presenter rotation with timed intro and reveal phases
// - Running scores per room, leaderboard on game end
// - In-browser QR link to share a live room, backed by go-qrcode
// - Read-only /health and /rooms debug endpoints

package main

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

const (
	statusWaiting    = "waiting"
	statusInProgress = "in_progress"

	roomCodeLength = 6
)

// clientMessage is the envelope for every inbound action.
type clientMessage struct {
	Type       string   `json:"type"`                 // action name, e.g. "create-room"
	Code       string   `json:"code,omitempty"`       // room code
	Host       string   `json:"host,omitempty"`       // create-room
	PlayerName string   `json:"playerName,omitempty"` // acting player
	Angle      *float64 `json:"angle,omitempty"`      // submit-clue
	Clue       string   `json:"clue,omitempty"`       // submit-clue
	Left       string   `json:"left,omitempty"`       // submit-clue
	Right      string   `json:"right,omitempty"`      // submit-clue
	Ready      *bool    `json:"ready,omitempty"`      // player-ready
	GuessAngle *float64 `json:"guessAngle,omitempty"` // player-ready
}

// roomState is the public snapshot of a room sent to clients.
type roomState struct {
	Code      string    `json:"code"`
	Host      string    `json:"host"`
	Players   []string  `json:"players"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

type errorMessage struct {
	Type    string `json:"type"` // "room-error"
	Message string `json:"message"`
}

// roomMessage carries a room snapshot for membership events:
// "room-created", "room-joined", "player-joined", "player-left".
type roomMessage struct {
	Type string    `json:"type"`
	Room roomState `json:"room"`
}

type gameStartedMessage struct {
	Type string `json:"type"` // "game-started"
	Clue Clue   `json:"clue"`
}

type clueUpdatedMessage struct {
	Type string `json:"type"` // "clue-updated"
	Clue Clue   `json:"clue"`
}

type simpleMessage struct {
	Type string `json:"type"` // "clue-submitted", "all-submitted", "reveal-start"
}

type playerSubmittedMessage struct {
	Type           string `json:"type"` // "player-submitted"
	PlayerName     string `json:"playerName"`
	SubmittedCount int    `json:"submittedCount"`
	TotalPlayers   int    `json:"totalPlayers"`
}

type showClueGiverMessage struct {
	Type      string `json:"type"` // "show-clue-giver"
	Presenter string `json:"presenter"`
}

type presentClueMessage struct {
	Type      string  `json:"type"` // "present-clue"
	Presenter string  `json:"presenter"`
	Angle     float64 `json:"angle"`
	ClueText  string  `json:"clueText"`
	Left      string  `json:"left"`
	Right     string  `json:"right"`
}

type readyUpdatedMessage struct {
	Type        string `json:"type"` // "ready-updated"
	PlayerName  string `json:"playerName"`
	Ready       bool   `json:"ready"`
	ReadyCount  int    `json:"readyCount"`
	TotalOthers int    `json:"totalOthers"`
}

type scoreEntry struct {
	Points int      `json:"points"`
	Guess  *float64 `json:"guess,omitempty"`
}

type revealTargetMessage struct {
	Type        string                `json:"type"` // "reveal-target"
	Code        string                `json:"code"`
	Presenter   string                `json:"presenter"`
	Angle       float64               `json:"angle"`
	ClueText    string                `json:"clueText"`
	Left        string                `json:"left"`
	Right       string                `json:"right"`
	Scores      map[string]scoreEntry `json:"scores"`
	IsLastCycle bool                  `json:"isLastCycle"`
}

type leaderboardEntry struct {
	Name   string `json:"name"`
	Points int    `json:"points"`
}

type gameEndedMessage struct {
	Type        string             `json:"type"` // "game-ended"
	Code        string             `json:"code"`
	Leaderboard []leaderboardEntry `json:"leaderboard"`
}

// Submission is a player's hidden target plus the clue written for it. One
// per player per game; resubmitting overwrites.
type Submission struct {
	Angle       float64
	ClueText    string
	Left        string
	Right       string
	SubmittedAt time.Time
}

// Round is the live presentation cycle. The rotation order is frozen when
// the round starts; ready and guesses are cleared at the start of every
// presentation.
type Round struct {
	order     []string
	index     int
	presenter string
	ready     map[string]bool
	guesses   map[string]float64

	// revealing flips when the reveal sequence has been triggered for the
	// current presentation, so later ready toggles cannot re-trigger it.
	revealing  bool
	lastScores map[string]scoreEntry
}

// Room owns all state for one game session. A room with zero players is
// deleted immediately; it never exists empty.
type Room struct {
	code        string
	host        string
	players     []string
	status      string
	submissions map[string]Submission
	scores      map[string]int
	round       *Round
	createdAt   time.Time

	clients map[*client]bool
}

func (room *Room) snapshotLocked() roomState {
	players := make([]string, len(room.players))
	copy(players, room.players)

	return roomState{
		Code:      room.code,
		Host:      room.host,
		Players:   players,
		Status:    room.status,
		CreatedAt: room.createdAt,
	}
}

func (room *Room) hasPlayerLocked(name string) bool {
	for _, p := range room.players {
		if p == name {
			return true
		}
	}
	return false
}

// sendLocked delivers msg to one member, evicting it from the room if its
// outbound queue is full or already closed.
func (room *Room) sendLocked(c *client, msg any) {
	if c.trySend(msg) {
		return
	}
	delete(room.clients, c)
	c.close()
}

func (room *Room) broadcastLocked(msg any) {
	for c := range room.clients {
		room.sendLocked(c, msg)
	}
}

func (room *Room) broadcastOthersLocked(sender *client, msg any) {
	for c := range room.clients {
		if c == sender {
			continue
		}
		room.sendLocked(c, msg)
	}
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan any

	mu     sync.Mutex
	closed bool
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.closed = true
	close(c.send)
}

// trySend delivers msg without blocking, reporting whether the client could
// accept it. Messages to a closed or stalled client are dropped rather than
// stalling the registry.
func (c *client) trySend(msg any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

type binding struct {
	code string
	name string
}

// Registry is the single source of truth for all game state: every live
// room plus the connection-to-player index, behind one lock. Handlers for
// the same room therefore never interleave mid-mutation.
type Registry struct {
	mu      sync.Mutex
	cfg     *Config
	catalog *Catalog
	rooms   map[string]*Room
	conns   map[string]binding
}

func newRegistry(cfg *Config, catalog *Catalog) *Registry {
	return &Registry{
		cfg:     cfg,
		catalog: catalog,
		rooms:   make(map[string]*Room),
		conns:   make(map[string]binding),
	}
}

func (reg *Registry) createRoom(c *client, code, host, playerName string) error {
	code = normalizeCode(code)
	if len(code) != roomCodeLength {
		return errBadCode
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	if _, exists := reg.rooms[code]; exists {
		return errAlreadyExists
	}

	// A connection represents exactly one player in one room; creating a
	// new room detaches it from any previous one first.
	if _, bound := reg.conns[c.id]; bound {
		reg.removeLocked(c, "", "")
	}

	room := &Room{
		code:        code,
		host:        host,
		players:     []string{playerName},
		status:      statusWaiting,
		submissions: make(map[string]Submission),
		scores:      make(map[string]int),
		createdAt:   time.Now(),
		clients:     map[*client]bool{c: true},
	}

	reg.rooms[code] = room
	reg.conns[c.id] = binding{code: code, name: playerName}

	logf(reg.cfg, "ROOMS: Created %s for %q", code, playerName)

	room.sendLocked(c, roomMessage{Type: "room-created", Room: room.snapshotLocked()})

	return nil
}

func (reg *Registry) joinRoom(c *client, code, playerName string) error {
	code = normalizeCode(code)

	reg.mu.Lock()
	defer reg.mu.Unlock()

	room, ok := reg.rooms[code]
	if !ok {
		return errNotFound
	}

	if playerName == "" || room.hasPlayerLocked(playerName) {
		return errNameTaken
	}

	// A connection represents exactly one player in one room; joining a
	// new room detaches it from any previous one first.
	if old, bound := reg.conns[c.id]; bound {
		reg.removeLocked(c, "", "")

		// Rejoining the same room as its last member deletes it above.
		if old.code == code {
			room, ok = reg.rooms[code]
			if !ok {
				return errNotFound
			}
		}
	}

	room.players = append(room.players, playerName)
	room.clients[c] = true
	reg.conns[c.id] = binding{code: code, name: playerName}

	logf(reg.cfg, "ROOMS: Player %q joined %s", playerName, code)

	snapshot := room.snapshotLocked()
	room.sendLocked(c, roomMessage{Type: "room-joined", Room: snapshot})
	room.broadcastOthersLocked(c, roomMessage{Type: "player-joined", Room: snapshot})

	return nil
}

// leaveRoom removes the player represented by c, resolving room and name
// from the connection binding first and from the explicit hints only as a
// fallback. Nothing to resolve is a benign no-op.
func (reg *Registry) leaveRoom(c *client, codeHint, nameHint string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	reg.removeLocked(c, codeHint, nameHint)
}

// disconnect handles transport-level connection loss. Safe to call with no
// prior binding, and idempotent.
func (reg *Registry) disconnect(c *client) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	reg.removeLocked(c, "", "")
	c.close()
}

func (reg *Registry) removeLocked(c *client, codeHint, nameHint string) {
	bound := reg.conns[c.id]
	delete(reg.conns, c.id)

	code := bound.code
	if code == "" {
		code = normalizeCode(codeHint)
	}
	name := bound.name
	if name == "" {
		name = nameHint
	}

	room, ok := reg.rooms[code]
	if !ok {
		return
	}

	delete(room.clients, c)

	if name == "" {
		return
	}

	removed := false
	dst := room.players[:0]
	for _, p := range room.players {
		if p == name {
			removed = true
			continue
		}
		dst = append(dst, p)
	}
	room.players = dst

	if !removed {
		return
	}

	if room.round != nil {
		delete(room.round.ready, name)
		delete(room.round.guesses, name)
	}

	if len(room.players) == 0 {
		delete(reg.rooms, code)
		logf(reg.cfg, "ROOMS: Deleted %s", code)
		return
	}

	// The host must always be a member; promote the oldest remaining player.
	if room.host == name {
		room.host = room.players[0]
	}

	logf(reg.cfg, "ROOMS: Player %q left %s", name, code)

	room.broadcastLocked(roomMessage{Type: "player-left", Room: room.snapshotLocked()})

	// The departure may have been the last missing ready; re-check so the
	// remaining players aren't left waiting on someone who is gone.
	if room.round != nil && !room.round.revealing {
		readyCount, totalOthers := room.readyTallyLocked()
		if totalOthers > 0 && readyCount >= totalOthers {
			reg.triggerRevealLocked(room)
		}
	}
}

func (reg *Registry) roomCount() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	return len(reg.rooms)
}

func (reg *Registry) hasRoom(code string) bool {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	_, ok := reg.rooms[normalizeCode(code)]
	return ok
}

// roomSummary is the read-only listing served on /rooms.
type roomSummary struct {
	Code      string    `json:"code"`
	Players   int       `json:"players"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

func (reg *Registry) roomList() []roomSummary {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	out := make([]roomSummary, 0, len(reg.rooms))
	for code, room := range reg.rooms {
		out = append(out, roomSummary{
			Code:      code,
			Players:   len(room.players),
			Status:    room.status,
			CreatedAt: room.createdAt,
		})
	}
	return out
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// dispatch routes one inbound action. Errors are surfaced to the acting
// connection only, as a room-error payload.
func (reg *Registry) dispatch(c *client, msg clientMessage) {
	var err error

	switch msg.Type {
	case "create-room":
		err = reg.createRoom(c, msg.Code, msg.Host, msg.PlayerName)
	case "join-room":
		err = reg.joinRoom(c, msg.Code, msg.PlayerName)
	case "leave-room":
		reg.leaveRoom(c, msg.Code, msg.PlayerName)
	case "start-game":
		err = reg.startGame(c, msg.Code, msg.PlayerName)
	case "submit-clue":
		err = reg.submitClue(c, msg)
	case "start-round":
		err = reg.startRound(c, msg.Code, msg.PlayerName)
	case "player-ready":
		reg.playerReady(c, msg)
	case "next-round":
		err = reg.nextRound(c, msg.Code, msg.PlayerName)
	case "end-game":
		err = reg.endGame(c, msg.Code, msg.PlayerName)
	case "new-spectrum":
		err = reg.newSpectrum(c, msg.Code)
	default:
		// ignore unknown types
	}

	if err != nil {
		c.trySend(errorMessage{Type: "room-error", Message: err.Error()})
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func serveWS(cfg *Config, reg *Registry) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "SERVE: upgrade error from %s: %v", realIP(r), err)
			return
		}

		c := &client{
			id:   uuid.NewString(),
			conn: conn,
			send: make(chan any, 16),
		}

		logf(cfg, "SERVE: Connection %s from %s", c.id, realIP(r))

		go c.writePump()
		c.readPump(reg)
	}
}

func (c *client) readPump(reg *Registry) {
	defer func() {
		reg.disconnect(c)
		_ = c.conn.Close()
	}()

	for {
		var msg clientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		reg.dispatch(c, msg)
	}
}

func (c *client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// qrHandler generates a PNG QR code pointing at the join URL for a live
// room. Unknown codes 404 so stale links don't get shared.
func qrHandler(cfg *Config, reg *Registry) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		code := normalizeCode(ps.ByName("code"))
		if !reg.hasRoom(code) {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}

		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		url := scheme + "://" + r.Host + cfg.prefix + "/?code=" + code

		const qrSize = 320 // mobile-friendly size
		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}
}

// registerWavelengthGame sets up the realtime endpoint plus per-room QR:
//   - /ws             → shared WebSocket for all rooms
//   - /room/:code/qr  → PNG QR code linking to a live room
func registerWavelengthGame(cfg *Config, reg *Registry, mux *httprouter.Router) {
	mux.GET(cfg.prefix+"/ws", serveWS(cfg, reg))
	mux.GET(cfg.prefix+"/room/:code/qr", qrHandler(cfg, reg))
}
