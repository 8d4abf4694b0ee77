package rebellion

import (
	"fmt"
	"strings"
)

// DecisionKind tags the Decision variants.
type DecisionKind uint8

const (
	KindActionDeclaration DecisionKind = iota + 1
	KindChallengeWindow
	KindBlockWindow
	KindInfluenceLoss
	KindExchangeChoice
)

var decisionKindNames = map[DecisionKind]string{
	KindActionDeclaration: "action_declaration",
	KindChallengeWindow:   "challenge_window",
	KindBlockWindow:       "block_window",
	KindInfluenceLoss:     "influence_loss",
	KindExchangeChoice:    "exchange_choice",
}

func (k DecisionKind) String() string { return decisionKindNames[k] }

func (k DecisionKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *DecisionKind) UnmarshalText(b []byte) error {
	for kind, name := range decisionKindNames {
		if name == string(b) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown decision kind %q", b)
}

// Decision is the single pending interaction point of a game. Values handed
// out by the engine are read-only.
type Decision interface {
	Seq() int
	Kind() DecisionKind
	// Responders lists, in turn order, the players who may answer right now.
	Responders() []string
	Describe() string
}

// Stage says whose claim a challenge window is about.
type Stage uint8

const (
	StageAction Stage = iota + 1
	StageBlock
)

func (s Stage) String() string {
	if s == StageBlock {
		return "block"
	}
	return "action"
}

// ActionDeclaration waits for the current player to pick an action.
type ActionDeclaration struct {
	seq   int
	Actor string
}

func (d *ActionDeclaration) Seq() int             { return d.seq }
func (d *ActionDeclaration) Kind() DecisionKind   { return KindActionDeclaration }
func (d *ActionDeclaration) Responders() []string { return []string{d.Actor} }
func (d *ActionDeclaration) Describe() string {
	return fmt.Sprintf("%s's turn", d.Actor)
}

// ChallengeWindow asks opponents whether to challenge a role claim.
type ChallengeWindow struct {
	seq      int
	Stage    Stage
	Claimant string
	Role     RoleID
	Action   ActionID
	Actor    string
	Target   string
	win      window
}

func (d *ChallengeWindow) Seq() int             { return d.seq }
func (d *ChallengeWindow) Kind() DecisionKind   { return KindChallengeWindow }
func (d *ChallengeWindow) Responders() []string { return playerIDs(d.win.responders()) }
func (d *ChallengeWindow) Synchronous() bool    { return d.win.sync }
func (d *ChallengeWindow) Describe() string {
	what := describeAction(d.Actor, d.Action, d.Target)
	if d.Stage == StageBlock {
		return fmt.Sprintf("%s blocks %s as %s - challenge?", d.Claimant, what, d.Role.DisplayName())
	}
	return fmt.Sprintf("%s claims %s: %s - challenge?", d.Claimant, d.Role.DisplayName(), what)
}

// BlockWindow asks the target (or, for untargeted actions, every opponent)
// whether to block by claiming a blocking role.
type BlockWindow struct {
	seq    int
	Actor  string
	Action ActionID
	Target string
	Roles  []RoleID
	win    window
}

func (d *BlockWindow) Seq() int             { return d.seq }
func (d *BlockWindow) Kind() DecisionKind   { return KindBlockWindow }
func (d *BlockWindow) Responders() []string { return playerIDs(d.win.responders()) }
func (d *BlockWindow) Synchronous() bool    { return d.win.sync }
func (d *BlockWindow) Describe() string {
	names := make([]string, len(d.Roles))
	for i, r := range d.Roles {
		names[i] = r.DisplayName()
	}
	return fmt.Sprintf("%s - block with %s?", describeAction(d.Actor, d.Action, d.Target), strings.Join(names, " or "))
}

// InfluenceLoss waits for a player to pick which live card to reveal.
type InfluenceLoss struct {
	seq    int
	Player string
	Reason string
}

func (d *InfluenceLoss) Seq() int             { return d.seq }
func (d *InfluenceLoss) Kind() DecisionKind   { return KindInfluenceLoss }
func (d *InfluenceLoss) Responders() []string { return []string{d.Player} }
func (d *InfluenceLoss) Describe() string {
	return fmt.Sprintf("%s must lose influence (%s)", d.Player, d.Reason)
}

// ExchangeChoice waits for a player to pick which cards to keep out of their
// live and side cards.
type ExchangeChoice struct {
	seq    int
	Player string
	Source RoleID
	Keep   int
}

func (d *ExchangeChoice) Seq() int             { return d.seq }
func (d *ExchangeChoice) Kind() DecisionKind   { return KindExchangeChoice }
func (d *ExchangeChoice) Responders() []string { return []string{d.Player} }
func (d *ExchangeChoice) Describe() string {
	return fmt.Sprintf("%s exchanges as %s, keeping %d", d.Player, d.Source.DisplayName(), d.Keep)
}

// window tracks who still has to answer a challenge or block window. In
// synchronous mode only order[next] is asked; otherwise everyone who has not
// passed is.
type window struct {
	sync   bool
	order  []*Player
	next   int
	passed map[*Player]bool
}

func newWindow(sync bool, order []*Player) window {
	return window{sync: sync, order: order, passed: make(map[*Player]bool, len(order))}
}

func (w *window) responders() []*Player {
	if w.sync {
		if w.next < len(w.order) {
			return []*Player{w.order[w.next]}
		}
		return nil
	}
	out := make([]*Player, 0, len(w.order))
	for _, p := range w.order {
		if !w.passed[p] {
			out = append(out, p)
		}
	}
	return out
}

// pass records a decline and reports whether everyone has now declined.
func (w *window) pass(p *Player) bool {
	w.passed[p] = true
	if w.sync {
		w.next++
		return w.next >= len(w.order)
	}
	return len(w.passed) >= len(w.order)
}

func describeAction(actor string, a ActionID, target string) string {
	if target != "" {
		return fmt.Sprintf("%s uses %s on %s", actor, a, target)
	}
	return fmt.Sprintf("%s uses %s", actor, a)
}

func playerIDs(ps []*Player) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}
