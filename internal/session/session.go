package session

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"rebellion/internal/game"
)

// Status represents the session lifecycle.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

// Player represents a connected player.
type Player struct {
	ID   string
	Send chan []byte // outbound messages
}

// Session is one table with connected players.
type Session struct {
	mu       sync.RWMutex
	Code     string
	GameType string
	Status   Status
	HostID   string
	Players  map[string]*Player
	Settings json.RawMessage
	Match    game.Match

	game    game.Game
	order   []string // join order
	log     logrus.FieldLogger
	pending []game.Event
	record  func(code string, e game.Event)
}

// NewSession creates a session in the waiting state.
func NewSession(code, gameType string, g game.Game) *Session {
	l := logrus.New()
	l.SetOutput(io.Discard)
	s := &Session{
		Code:     code,
		GameType: gameType,
		Status:   StatusWaiting,
		Players:  make(map[string]*Player),
		game:     g,
		log:      l,
	}
	if c, ok := g.(game.Configurable); ok {
		s.Settings = c.DefaultSettings()
	}
	return s
}

// AddPlayer adds a player to the session. Returns error if full or already playing.
func (s *Session) AddPlayer(playerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Status != StatusWaiting {
		return fmt.Errorf("session is not accepting players")
	}
	info := s.game.Info()
	if len(s.Players) >= info.MaxPlayers {
		return fmt.Errorf("session is full")
	}
	if _, exists := s.Players[playerID]; exists {
		return fmt.Errorf("player %s already in session", playerID)
	}
	s.Players[playerID] = &Player{
		ID:   playerID,
		Send: make(chan []byte, 64),
	}
	s.order = append(s.order, playerID)
	if s.HostID == "" {
		s.HostID = playerID
	}
	s.log.WithField("player", playerID).Info("player joined")
	return nil
}

// RemovePlayer removes a player from a session that has not started and
// closes their Send channel. The next player in join order becomes host if
// the host leaves. It reports how many players remain.
func (s *Session) RemovePlayer(playerID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Status != StatusWaiting {
		return len(s.Players), fmt.Errorf("cannot leave a game in progress")
	}
	p, ok := s.Players[playerID]
	if !ok {
		return len(s.Players), fmt.Errorf("player %s not in session", playerID)
	}
	close(p.Send)
	delete(s.Players, playerID)
	for i, id := range s.order {
		if id == playerID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if s.HostID == playerID {
		s.HostID = ""
		if len(s.order) > 0 {
			s.HostID = s.order[0]
		}
	}
	s.log.WithField("player", playerID).Info("player left")
	return len(s.Players), nil
}

// ReplacePlayer hands oldID's seat to newID, who joins under the new id and
// takes over cards and coins if a match is running. oldID's Send channel is
// closed.
func (s *Session) ReplacePlayer(oldID, newID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.Players[oldID]
	if !ok {
		return fmt.Errorf("player %s not in session", oldID)
	}
	if newID == "" {
		return fmt.Errorf("replacement player id required")
	}
	if _, taken := s.Players[newID]; taken {
		return fmt.Errorf("player %s already in session", newID)
	}
	switch s.Status {
	case StatusFinished:
		return fmt.Errorf("session is finished")
	case StatusPlaying:
		r, ok := s.Match.(game.SeatReplacer)
		if !ok {
			return fmt.Errorf("%s does not allow replacing players", s.GameType)
		}
		if err := r.ReplacePlayer(oldID, newID); err != nil {
			return err
		}
	}

	close(p.Send)
	delete(s.Players, oldID)
	s.Players[newID] = &Player{ID: newID, Send: make(chan []byte, 64)}
	for i, id := range s.order {
		if id == oldID {
			s.order[i] = newID
		}
	}
	if s.HostID == oldID {
		s.HostID = newID
	}
	s.log.WithFields(logrus.Fields{"old": oldID, "new": newID}).Info("player replaced")
	return nil
}

// ConnectPlayer replaces the Send channel for a reconnecting player.
func (s *Session) ConnectPlayer(playerID string, send chan []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.Players[playerID]
	if !ok {
		return false
	}
	p.Send = send
	return true
}

// PlayerIDs returns the player IDs in join order.
func (s *Session) PlayerIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

// UpdateSettings applies a host's settings change. Before the start it edits
// the table setup; during play it is passed to the match if the match
// accepts changes.
func (s *Session) UpdateSettings(playerID string, change json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if playerID != s.HostID {
		return fmt.Errorf("only the host can change settings")
	}
	switch s.Status {
	case StatusWaiting:
		c, ok := s.game.(game.Configurable)
		if !ok {
			return fmt.Errorf("%s has no settings", s.GameType)
		}
		next, err := c.UpdateSettings(s.Settings, change)
		if err != nil {
			return err
		}
		s.Settings = next
		s.log.WithField("settings", string(next)).Info("settings changed")
		return nil
	case StatusPlaying:
		r, ok := s.Match.(game.Reconfigurable)
		if !ok {
			return fmt.Errorf("settings cannot change during a game")
		}
		return r.Reconfigure(change)
	default:
		return fmt.Errorf("session is finished")
	}
}

// Start transitions the session from waiting to playing.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Status != StatusWaiting {
		return fmt.Errorf("session is not in waiting state")
	}
	info := s.game.Info()
	if len(s.Players) < info.MinPlayers {
		return fmt.Errorf("need at least %d players, have %d", info.MinPlayers, len(s.Players))
	}

	match, err := s.game.NewMatch(game.MatchConfig{
		PlayerIDs: append([]string(nil), s.order...),
		Settings:  s.Settings,
		Events:    s.addEvent,
		Logger:    s.log,
	})
	if err != nil {
		s.pending = nil
		return fmt.Errorf("start match: %w", err)
	}
	s.Match = match
	s.Status = StatusPlaying
	s.log.WithField("players", s.order).Info("match started")
	return nil
}

// Apply applies a player's action and returns the events it caused.
func (s *Session) Apply(playerID string, action game.Action) ([]game.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Match == nil {
		return nil, fmt.Errorf("game not started")
	}
	if s.Status == StatusFinished && !s.Match.IsOver() {
		return nil, fmt.Errorf("the game was stopped")
	}
	if err := s.Match.ApplyAction(playerID, action); err != nil {
		if game.IsFatal(err) {
			s.log.WithError(err).WithFields(logrus.Fields{
				"player": playerID,
				"action": action.Type,
			}).Error("match broken, ending session")
			s.finishLocked("aborted", "the game hit an internal error and was stopped: "+err.Error())
			return s.takeEvents(), err
		}
		return nil, err
	}
	if s.Match.IsOver() {
		s.Status = StatusFinished
	}
	return s.takeEvents(), nil
}

// ParseText turns a free-text command into an action for games that support
// it. seq names the decision the command answers; zero means unknown.
func (s *Session) ParseText(text string, seq int) (game.Action, error) {
	p, ok := s.game.(game.TextParser)
	if !ok {
		return game.Action{}, fmt.Errorf("%s does not accept text commands", s.GameType)
	}
	return p.ParseAction(text, seq)
}

// Peek returns the whole table for a viewer the match allows to see it.
// Once the session is finished anyone may look.
func (s *Session) Peek(viewerID string) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Match == nil {
		return nil, fmt.Errorf("game not started")
	}
	in, ok := s.Match.(game.Inspector)
	if !ok {
		return nil, fmt.Errorf("%s cannot be inspected", s.GameType)
	}
	if s.Status == StatusFinished {
		viewerID = ""
	}
	return in.Inspect(viewerID)
}

// Rules returns the game's rule reference, if it has one.
func (s *Session) Rules() (any, bool) {
	r, ok := s.game.(game.Rulebook)
	if !ok {
		return nil, false
	}
	return r.Rules(), true
}

// Explain returns the match's explanation of playerID's options, if any.
func (s *Session) Explain(playerID string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.Match.(game.Explainer)
	if !ok {
		return nil, false
	}
	return e.Explain(playerID), true
}

// TakeEvents returns and clears events not yet handed out.
func (s *Session) TakeEvents() []game.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.takeEvents()
}

func (s *Session) takeEvents() []game.Event {
	out := s.pending
	s.pending = nil
	return out
}

// addEvent is the match's event sink; the session lock is held.
func (s *Session) addEvent(e game.Event) {
	s.pending = append(s.pending, e)
	if s.record != nil {
		s.record(s.Code, e)
	}
}

// Finish ends a running session early at the host's request.
func (s *Session) Finish(playerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if playerID != s.HostID {
		return fmt.Errorf("only the host can reset the game")
	}
	if s.Status != StatusPlaying {
		return fmt.Errorf("no game in progress")
	}
	s.log.WithField("player", playerID).Warn("game reset by host")
	s.finishLocked("reset", playerID+" reset the game")
	return nil
}

// finishLocked marks the session finished and records why; the lock is held.
func (s *Session) finishLocked(kind, text string) {
	s.Status = StatusFinished
	s.addEvent(game.Event{Type: kind, Text: text})
}

// Broadcast sends a message to all connected players.
func (s *Session) Broadcast(msg []byte) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.Players {
		select {
		case p.Send <- msg:
		default:
			// drop message if buffer full
		}
	}
}

// GetPlayer returns a player, or nil if not found.
func (s *Session) GetPlayer(playerID string) *Player {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Players[playerID]
}

// Info returns session info for the API.
type Info struct {
	Code     string          `json:"code"`
	GameType string          `json:"gameType"`
	Status   Status          `json:"status"`
	Players  []string        `json:"players"`
	HostID   string          `json:"hostId"`
	Settings json.RawMessage `json:"settings,omitempty"`
}

func (s *Session) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.infoLocked()
}

// InfoLocked returns info without acquiring the lock (caller must hold it).
func (s *Session) InfoLocked() Info {
	return s.infoLocked()
}

func (s *Session) infoLocked() Info {
	return Info{
		Code:     s.Code,
		GameType: s.GameType,
		Status:   s.Status,
		Players:  append([]string(nil), s.order...),
		HostID:   s.HostID,
		Settings: s.Settings,
	}
}

// RLock/RUnlock expose the read lock for the server's state broadcast.
func (s *Session) RLock()   { s.mu.RLock() }
func (s *Session) RUnlock() { s.mu.RUnlock() }
