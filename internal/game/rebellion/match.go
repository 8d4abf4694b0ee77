package rebellion

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"rebellion/internal/game"
)

// Rebellion implements game.Game.
type Rebellion struct {
	// Synchronous is the challenge mode new tables start with.
	Synchronous bool
}

func (Rebellion) Info() game.GameInfo {
	return game.GameInfo{
		Name:       "rebellion",
		MinPlayers: MinPlayers,
		MaxPlayers: MaxPlayers,
	}
}

// Settings is the table setup chosen before a match starts.
type Settings struct {
	Roles       []RoleID `json:"roles"`
	Synchronous bool     `json:"synchronous"`
}

// settingsChange is a host's request to change the table setup. Roles takes
// "+name -name" edits, Random a role chooser pattern such as "C$FSA".
type settingsChange struct {
	Roles       string `json:"roles,omitempty"`
	Random      string `json:"random,omitempty"`
	Synchronous *bool  `json:"synchronous,omitempty"`
}

func (r Rebellion) DefaultSettings() json.RawMessage {
	data, _ := json.Marshal(Settings{Roles: DefaultRoles, Synchronous: r.Synchronous})
	return data
}

func (r Rebellion) settings(raw json.RawMessage) (Settings, error) {
	if len(raw) == 0 {
		raw = r.DefaultSettings()
	}
	var s Settings
	if err := json.Unmarshal(raw, &s); err != nil {
		return Settings{}, configError("invalid settings: %v", err)
	}
	return s, nil
}

// UpdateSettings applies a change to the current settings. The role count is
// not checked here; a table may pass through incomplete role sets while the
// host edits it.
func (r Rebellion) UpdateSettings(current, change json.RawMessage) (json.RawMessage, error) {
	s, err := r.settings(current)
	if err != nil {
		return nil, err
	}
	var c settingsChange
	if err := json.Unmarshal(change, &c); err != nil {
		return nil, configError("invalid settings change: %v", err)
	}
	if c.Random != "" {
		s.Roles = ChooseRoles(c.Random, rand.New(rand.NewSource(time.Now().UnixNano())))
	}
	if c.Roles != "" {
		roles, unknown := EditRoles(s.Roles, c.Roles)
		if len(unknown) > 0 {
			return nil, newError(CodeUnknownRole, "unknown roles: %s", strings.Join(unknown, ", "))
		}
		s.Roles = roles
	}
	if c.Synchronous != nil {
		s.Synchronous = *c.Synchronous
	}
	return json.Marshal(s)
}

func (r Rebellion) NewMatch(config game.MatchConfig) (game.Match, error) {
	s, err := r.settings(config.Settings)
	if err != nil {
		return nil, err
	}
	m := &Match{sink: config.Events, standings: &standings{}}
	g, err := NewGame(config.PlayerIDs, s.Roles, Options{
		Synchronous: s.Synchronous,
		Notifier:    MultiNotifier{m.standings, matchNotifier{m}},
		Logger:      config.Logger,
	})
	if err != nil {
		return nil, err
	}
	m.game = g
	return m, nil
}

// RoleSummary is one catalogue entry as listed to players.
type RoleSummary struct {
	Name     string   `json:"name"`
	Group    string   `json:"group"`
	Advanced bool     `json:"advanced"`
	Action   string   `json:"action,omitempty"`
	Blocks   []string `json:"blocks,omitempty"`
	Default  bool     `json:"default"`
}

// Rules lists the role catalogue.
func (Rebellion) Rules() any {
	all := Roles()
	out := make([]RoleSummary, 0, len(all))
	for _, r := range all {
		rs := RoleSummary{
			Name:     r.ID.String(),
			Group:    r.Group.String(),
			Advanced: r.Advanced,
			Default:  containsRole(DefaultRoles, r.ID),
		}
		if r.Action != ActionNone {
			rs.Action = r.Action.String()
		}
		for _, b := range r.Blocks {
			rs.Blocks = append(rs.Blocks, b.String())
		}
		out = append(out, rs)
	}
	return out
}

// ParseAction turns a command such as "steal bob" or "keep 1 3" into an
// action answering decision seq.
func (Rebellion) ParseAction(text string, seq int) (game.Action, error) {
	fields := strings.Fields(strings.ToLower(text))
	if len(fields) == 0 {
		return game.Action{}, newError(CodeIllegalChoice, "empty command")
	}
	payload, _ := json.Marshal(actionPayload{Args: fields[1:], Seq: seq})
	return game.Action{Type: fields[0], Payload: payload}, nil
}

// Match implements game.Match on top of a Game.
type Match struct {
	game      *Game
	sink      game.EventSink
	standings *standings
}

type actionPayload struct {
	Args []string `json:"args,omitempty"`
	Seq  int      `json:"seq,omitempty"`
}

// Game exposes the underlying engine.
func (m *Match) Game() *Game { return m.game }

func (m *Match) State(playerID string) any { return m.game.View(playerID) }

func (m *Match) ApplyAction(playerID string, action game.Action) error {
	var p actionPayload
	if len(action.Payload) > 0 {
		if err := json.Unmarshal(action.Payload, &p); err != nil {
			return newError(CodeIllegalChoice, "invalid action payload: %v", err)
		}
	}
	return m.game.Respond(Response{Player: playerID, Token: action.Type, Args: p.Args, Seq: p.Seq})
}

// ValidActions lists ready-to-send actions for playerID at the open decision.
func (m *Match) ValidActions(playerID string) []game.Action {
	d := m.game.CurrentDecision()
	if d == nil {
		return nil
	}
	choices, ok := m.game.EligibleResponders()[m.playerKey(playerID)]
	if !ok {
		return nil
	}
	seq := d.Seq()
	if x, ok := d.(*ExchangeChoice); ok {
		p := m.game.Player(playerID)
		return keepActions(len(p.live)+len(p.side), x.Keep, seq)
	}
	var out []game.Action
	for _, c := range choices {
		if len(c.Targets) == 0 {
			out = append(out, action(c.Token, seq))
			continue
		}
		for _, t := range c.Targets {
			out = append(out, action(c.Token, seq, t))
		}
	}
	return out
}

// playerKey maps a case-insensitive id to the id the engine reports.
func (m *Match) playerKey(playerID string) string {
	if p := m.game.Player(playerID); p != nil {
		return p.ID
	}
	return playerID
}

func action(token string, seq int, args ...string) game.Action {
	payload, _ := json.Marshal(actionPayload{Args: args, Seq: seq})
	return game.Action{Type: token, Payload: payload}
}

// keepActions enumerates every way of keeping k of n cards.
func keepActions(n, k, seq int) []game.Action {
	var out []game.Action
	var pick func(start int, chosen []string)
	pick = func(start int, chosen []string) {
		if len(chosen) == k {
			out = append(out, action(TokenKeep, seq, chosen...))
			return
		}
		for i := start; i <= n; i++ {
			pick(i+1, append(chosen[:len(chosen):len(chosen)], strconv.Itoa(i)))
		}
	}
	pick(1, nil)
	return out
}

func (m *Match) Explain(playerID string) any { return m.game.ChoiceExplanations(playerID) }

// Reconfigure applies a settings change mid-game. Only the challenge mode can
// change once cards are dealt.
func (m *Match) Reconfigure(change json.RawMessage) error {
	var c settingsChange
	if err := json.Unmarshal(change, &c); err != nil {
		return configError("invalid settings change: %v", err)
	}
	if c.Roles != "" || c.Random != "" {
		return newError(CodeIllegalChoice, "roles cannot change during a game")
	}
	if c.Synchronous != nil {
		m.game.SetSynchronous(*c.Synchronous)
		m.emit(game.Event{Type: "settings", Text: fmt.Sprintf("synchronous challenges: %t", *c.Synchronous)})
	}
	return nil
}

func (m *Match) IsOver() bool { return m.game.Finished() }

// Results ranks the winner first and everyone else by how long they survived.
func (m *Match) Results() []game.PlayerResult {
	if !m.game.Finished() {
		return nil
	}
	var out []game.PlayerResult
	if w, ok := m.game.Winner(); ok {
		out = append(out, game.PlayerResult{PlayerID: w, Rank: 1, Score: 1})
	}
	gone := m.standings.out
	for i := len(gone) - 1; i >= 0; i-- {
		out = append(out, game.PlayerResult{PlayerID: gone[i], Rank: len(out) + 1})
	}
	return out
}

// Inspect shows every hand to a viewer who is not in the game, or to anyone
// once it is over.
func (m *Match) Inspect(viewerID string) (any, error) {
	if p := m.game.Player(viewerID); p != nil && p.Alive() && !m.game.Finished() {
		return nil, newError(CodeNotEligible, "%s is still playing", p.ID)
	}
	return m.game.Snapshot(), nil
}

// ReplacePlayer hands oldID's seat, cards and coins to newID.
func (m *Match) ReplacePlayer(oldID, newID string) error {
	old := m.playerKey(oldID)
	if err := m.game.ReplacePlayer(oldID, newID); err != nil {
		return err
	}
	m.standings.rename(old, newID)
	m.emit(game.Event{Type: "replaced", Player: newID, Players: []string{old, newID}, Text: newID + " takes over from " + old})
	return nil
}

func (m *Match) emit(e game.Event) {
	if m.sink != nil {
		m.sink(e)
	}
}

// matchNotifier turns engine notifications into session events.
type matchNotifier struct{ m *Match }

func (n matchNotifier) DecisionOpened(d Decision) {
	n.m.emit(game.Event{Seq: d.Seq(), Type: d.Kind().String(), Players: d.Responders(), Text: d.Describe()})
}

func (n matchNotifier) CardsChanged(player string) {
	n.m.emit(game.Event{Type: "cards_changed", Player: player, Text: player + "'s cards changed"})
}

func (n matchNotifier) PlayerEliminated(player string) {
	n.m.emit(game.Event{Type: "eliminated", Player: player, Text: player + " has no influence left"})
}

func (n matchNotifier) Winner(player string) {
	n.m.emit(game.Event{Type: "winner", Player: player, Text: player + " wins"})
}

// standings records the order players were knocked out in.
type standings struct {
	NopNotifier
	out []string
}

func (s *standings) PlayerEliminated(player string) { s.out = append(s.out, player) }

func (s *standings) rename(old, new string) {
	for i, id := range s.out {
		if id == old {
			s.out[i] = new
		}
	}
}
