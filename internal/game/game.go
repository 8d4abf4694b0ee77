package game

import (
	"encoding/json"
	"errors"

	"github.com/sirupsen/logrus"
)

// GameInfo describes a game type for the lobby.
type GameInfo struct {
	Name       string `json:"name"`
	MinPlayers int    `json:"minPlayers"`
	MaxPlayers int    `json:"maxPlayers"`
}

// Event is something that happened in a match that every player may see.
type Event struct {
	Seq     int      `json:"seq,omitempty"`
	Type    string   `json:"type"`
	Player  string   `json:"player,omitempty"`
	Players []string `json:"players,omitempty"`
	Text    string   `json:"text"`
}

// EventSink receives match events as they happen. It is called with the
// session lock held.
type EventSink func(Event)

// MatchConfig holds settings for creating a new match.
type MatchConfig struct {
	PlayerIDs []string
	Settings  json.RawMessage
	Events    EventSink
	Logger    logrus.FieldLogger
}

// Action represents a move a player can make.
type Action struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// PlayerResult holds the outcome for one player.
type PlayerResult struct {
	PlayerID string `json:"playerId"`
	Rank     int    `json:"rank"` // 1 = first place
	Score    int    `json:"score"`
}

// Game describes a game type.
type Game interface {
	Info() GameInfo
	NewMatch(config MatchConfig) (Match, error)
}

// Match is one in-progress game session.
type Match interface {
	State(playerID string) any
	ValidActions(playerID string) []Action
	ApplyAction(playerID string, action Action) error
	IsOver() bool
	Results() []PlayerResult
}

// Configurable is implemented by games whose tables can be set up before
// starting. Settings are opaque JSON owned by the game.
type Configurable interface {
	DefaultSettings() json.RawMessage
	UpdateSettings(current, change json.RawMessage) (json.RawMessage, error)
}

// Reconfigurable is implemented by matches that accept setting changes while
// in progress.
type Reconfigurable interface {
	Reconfigure(change json.RawMessage) error
}

// Explainer is implemented by matches that can list a player's options
// together with the ones they cannot take right now.
type Explainer interface {
	Explain(playerID string) any
}

// TextParser is implemented by games that accept free-text commands such as
// "steal bob". seq is the decision the command answers, taken from the last
// state the player saw; zero means unknown.
type TextParser interface {
	ParseAction(text string, seq int) (Action, error)
}

// Rulebook is implemented by games that can describe their pieces, such as
// a role list.
type Rulebook interface {
	Rules() any
}

// Inspector is implemented by matches that can show the whole table to a
// viewer who is not playing.
type Inspector interface {
	Inspect(viewerID string) (any, error)
}

// SeatReplacer is implemented by matches that let another user take over a
// seat mid-game.
type SeatReplacer interface {
	ReplacePlayer(oldID, newID string) error
}

// FatalError is implemented by errors after which a match cannot continue.
type FatalError interface {
	error
	Fatal() bool
}

// IsFatal reports whether err, or any error it wraps, is a FatalError that
// reports itself fatal.
func IsFatal(err error) bool {
	var fe FatalError
	return errors.As(err, &fe) && fe.Fatal()
}
