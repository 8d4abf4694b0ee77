package rebellion

import (
	"io"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Status is the game lifecycle.
type Status uint8

const (
	StatusForming Status = iota
	StatusInProgress
	StatusFinished
)

func (s Status) String() string {
	switch s {
	case StatusInProgress:
		return "in_progress"
	case StatusFinished:
		return "finished"
	default:
		return "forming"
	}
}

// Options configures a new game.
type Options struct {
	ID string // generated when empty

	// Synchronous asks challengers one at a time in turn order instead of
	// all at once.
	Synchronous bool

	// RNG seed (0 => time-based)
	Seed int64

	// KeepSeatOrder skips the random seating and uses the order players
	// were given in.
	KeepSeatOrder bool

	// DeckOrder fixes the initial deck instead of shuffling it. Cards are
	// dealt round-robin from the front, two per player.
	DeckOrder []RoleID

	Notifier Notifier
	Logger   logrus.FieldLogger
}

// Game is one table. It is not safe for concurrent use; callers serialize
// access per game.
type Game struct {
	id       string
	log      logrus.FieldLogger
	notifier Notifier
	rng      *rand.Rand

	roles       []RoleID
	synchronous bool

	players []*Player
	byID    map[string]*Player
	nodes   map[*Player]*PlayerNode
	cur     *PlayerNode

	deck *Deck

	status Status
	turn   int
	seq    int
	winner *Player

	decision   Decision
	lastClosed closedDecision
	pending    *turnState
	losses     []lossRequest
}

type closedDecision struct {
	seq        int
	responders map[*Player]bool
	// unanswered holds the players a simultaneous window was still waiting
	// on when someone else closed it. Their next unsequenced response may
	// be meant for the closed window.
	unanswered map[*Player]bool
}

type lossRequest struct {
	player *Player
	reason string
}

// NewGame validates the configuration, seats and deals, and opens the first
// action declaration. Configuration problems fail with ErrConfig or
// ErrUnknownRole and no game is created.
func NewGame(playerIDs []string, roleIDs []RoleID, opts Options) (*Game, error) {
	if len(playerIDs) < MinPlayers || len(playerIDs) > MaxPlayers {
		return nil, configError("need %d to %d players, got %d", MinPlayers, MaxPlayers, len(playerIDs))
	}
	if err := validateRoles(roleIDs); err != nil {
		return nil, err
	}

	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	g := &Game{
		id:          opts.ID,
		log:         opts.Logger,
		notifier:    opts.Notifier,
		rng:         rand.New(rand.NewSource(seed)),
		roles:       append([]RoleID(nil), roleIDs...),
		synchronous: opts.Synchronous,
		byID:        make(map[string]*Player, len(playerIDs)),
		nodes:       make(map[*Player]*PlayerNode, len(playerIDs)),
	}
	if g.id == "" {
		g.id = uuid.NewString()
	}
	if g.notifier == nil {
		g.notifier = NopNotifier{}
	}
	if g.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		g.log = l
	}
	g.log = g.log.WithField("game", g.id)

	ids := append([]string(nil), playerIDs...)
	for _, id := range ids {
		key := strings.ToLower(strings.TrimSpace(id))
		if key == "" {
			return nil, configError("empty player id")
		}
		if _, dup := g.byID[key]; dup {
			return nil, configError("duplicate player %q", id)
		}
		g.byID[key] = nil
	}
	if !opts.KeepSeatOrder {
		g.rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	}

	deck, err := newDeck(g.rng, g.roles, opts.DeckOrder)
	if err != nil {
		return nil, err
	}
	g.deck = deck

	var first, last *PlayerNode
	for seat, id := range ids {
		p := &Player{ID: id, Seat: seat, coins: StartingCoins}
		g.players = append(g.players, p)
		g.byID[strings.ToLower(strings.TrimSpace(id))] = p
		node := &PlayerNode{Player: p}
		g.nodes[p] = node
		if first == nil {
			first = node
		}
		if last != nil {
			last.Next = node
		}
		last = node
	}
	last.Next = first

	for i := 0; i < StartingCards; i++ {
		for _, p := range g.players {
			cards, err := g.deck.Draw(1)
			if err != nil {
				return nil, err
			}
			p.live = append(p.live, cards...)
		}
	}

	g.status = StatusInProgress
	g.turn = 1
	g.cur = first
	g.pending = &turnState{step: stepDeclare, actor: first.Player}
	g.log.WithField("order", ids).Info("game started")
	for _, p := range g.players {
		g.notifier.CardsChanged(p.ID)
	}
	if err := g.proceed(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Game) ID() string            { return g.id }
func (g *Game) Turn() int             { return g.turn }
func (g *Game) Status() Status        { return g.status }
func (g *Game) Finished() bool        { return g.status == StatusFinished }
func (g *Game) Synchronous() bool     { return g.synchronous }
func (g *Game) DeckCount() int        { return g.deck.Count() }
func (g *Game) EnabledRoles() []RoleID { return append([]RoleID(nil), g.roles...) }

// CurrentDecision returns the open decision, or nil once the game is over.
func (g *Game) CurrentDecision() Decision { return g.decision }

// Winner returns the winning player's id, if any.
func (g *Game) Winner() (string, bool) {
	if g.winner == nil {
		return "", false
	}
	return g.winner.ID, true
}

// CurrentPlayer returns the id of the player whose turn it is.
func (g *Game) CurrentPlayer() string {
	if g.cur == nil {
		return ""
	}
	return g.cur.Player.ID
}

// Players returns every player in turn order, eliminated ones included.
func (g *Game) Players() []*Player { return append([]*Player(nil), g.players...) }

// Player looks a player up by id, case-insensitively.
func (g *Game) Player(id string) *Player {
	return g.byID[strings.ToLower(strings.TrimSpace(id))]
}

// SetSynchronous switches challenge timing. An already open window keeps its
// mode; the next window uses the new one.
func (g *Game) SetSynchronous(sync bool) { g.synchronous = sync }

// ReplacePlayer hands a seat to a different user, keeping cards and coins.
func (g *Game) ReplacePlayer(oldID, newID string) error {
	p := g.Player(oldID)
	if p == nil {
		return newError(CodeNotEligible, "%s is not playing", oldID)
	}
	key := strings.ToLower(strings.TrimSpace(newID))
	if key == "" {
		return newError(CodeIllegalChoice, "empty player id")
	}
	if _, taken := g.byID[key]; taken {
		return newError(CodeIllegalChoice, "%s is already playing", newID)
	}
	delete(g.byID, strings.ToLower(strings.TrimSpace(p.ID)))
	old := p.ID
	p.ID = newID
	g.byID[key] = p
	renameInDecision(g.decision, old, newID)
	g.log.WithFields(logrus.Fields{"old": old, "new": newID}).Info("player replaced")
	g.notifier.CardsChanged(newID)
	return nil
}

func renameInDecision(d Decision, old, new string) {
	swap := func(s *string) {
		if *s == old {
			*s = new
		}
	}
	switch d := d.(type) {
	case *ActionDeclaration:
		swap(&d.Actor)
	case *ChallengeWindow:
		swap(&d.Claimant)
		swap(&d.Actor)
		swap(&d.Target)
	case *BlockWindow:
		swap(&d.Actor)
		swap(&d.Target)
	case *InfluenceLoss:
		swap(&d.Player)
	case *ExchangeChoice:
		swap(&d.Player)
	}
}

func (g *Game) living() []*Player {
	out := make([]*Player, 0, len(g.players))
	for _, p := range g.players {
		if p.Alive() {
			out = append(out, p)
		}
	}
	return out
}

// livingAfter returns living players other than p in turn order, starting
// with the seat after p.
func (g *Game) livingAfter(p *Player) []*Player {
	var out []*Player
	start := g.nodes[p].Next
	start.WalkOnce(func(n *PlayerNode) bool {
		if n.Player != p && n.Player.Alive() {
			out = append(out, n.Player)
		}
		return false
	})
	return out
}

func (g *Game) open(d Decision) {
	g.decision = d
	g.log.WithFields(logrus.Fields{
		"turn":       g.turn,
		"seq":        d.Seq(),
		"kind":       d.Kind().String(),
		"responders": d.Responders(),
	}).Debug(d.Describe())
	g.notifier.DecisionOpened(d)
}

// reannounce sends an open window to the notifier again after a pass changed
// who it is waiting on.
func (g *Game) reannounce(d Decision) {
	g.log.WithFields(logrus.Fields{
		"turn":       g.turn,
		"seq":        d.Seq(),
		"responders": d.Responders(),
	}).Debug("waiting on")
	g.notifier.DecisionOpened(d)
}

func (g *Game) nextSeq() int {
	g.seq++
	return g.seq
}

// close remembers who could answer the decision being closed, so a late
// answer to it can be told apart from an answer by an outsider. by is the
// player whose response closed it.
func (g *Game) close(by *Player) {
	if g.decision == nil {
		return
	}
	ids := g.decision.Responders()
	c := closedDecision{
		seq:        g.decision.Seq(),
		responders: make(map[*Player]bool, len(ids)),
		unanswered: make(map[*Player]bool),
	}
	for _, id := range ids {
		if p := g.Player(id); p != nil {
			c.responders[p] = true
		}
	}
	if w := windowOf(g.decision); w != nil {
		for _, p := range w.order {
			c.responders[p] = true
		}
		if !w.sync {
			for _, p := range w.responders() {
				if p != by {
					c.unanswered[p] = true
				}
			}
		}
	}
	g.lastClosed = c
	g.decision = nil
}

func windowOf(d Decision) *window {
	switch d := d.(type) {
	case *ChallengeWindow:
		return &d.win
	case *BlockWindow:
		return &d.win
	}
	return nil
}

// loseInfluence reveals live card i of p and runs elimination and win checks.
func (g *Game) loseInfluence(p *Player, i int, reason string) error {
	c := p.reveal(i)
	g.log.WithFields(logrus.Fields{"player": p.ID, "role": c.Role.String(), "reason": reason}).Info("influence lost")
	g.notifier.CardsChanged(p.ID)
	if p.Alive() {
		return nil
	}
	if len(p.side) > 0 {
		g.deck.ReturnAndShuffle(p.side...)
		p.side = nil
	}
	g.log.WithField("player", p.ID).Info("player eliminated")
	g.notifier.PlayerEliminated(p.ID)
	return g.checkWinner()
}

func (g *Game) checkWinner() error {
	alive := g.living()
	switch len(alive) {
	case 1:
		g.finish(alive[0])
		g.notifier.Winner(alive[0].ID)
	case 0:
		g.finish(nil)
		return newError(CodeInconsistentState, "no players left with influence")
	}
	return nil
}

func (g *Game) finish(winner *Player) {
	g.winner = winner
	g.status = StatusFinished
	g.decision = nil
	g.pending = nil
	g.losses = nil
	if winner != nil {
		g.log.WithField("winner", winner.ID).Info("game finished")
	}
}

// advanceTurn moves to the next living seat and opens its declaration on the
// next proceed.
func (g *Game) advanceTurn() {
	g.cur = g.cur.Next.WalkOnce(func(n *PlayerNode) bool { return n.Player.Alive() })
	g.turn++
	g.pending = &turnState{step: stepDeclare, actor: g.cur.Player}
}

// RoleCounts tallies every card of the game by role across the deck and all
// player piles. It is constant for the lifetime of a game.
func (g *Game) RoleCounts() map[RoleID]int {
	out := make(map[RoleID]int, len(g.roles))
	g.deck.roleCounts(out)
	for _, p := range g.players {
		p.roleCounts(out)
	}
	return out
}
