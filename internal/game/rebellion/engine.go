package rebellion

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

type step uint8

const (
	stepDeclare step = iota
	stepChallengeAction
	stepBlock
	stepChallengeBlock
	stepBlockStands
	stepEffect
	stepEndTurn
)

// turnState is the action being resolved in the current turn.
type turnState struct {
	step    step
	actor   *Player
	action  *Action
	target  *Player
	paid    int
	blocker *Player
	block   RoleID
}

// Response is one player's answer to the open decision. Token is matched
// case-insensitively against the legal choices; Args carries a target or card
// selection. Seq, when non-zero, names the decision being answered. A player
// who was still being asked in a simultaneous window that someone else closed
// must send Seq with their next response.
type Response struct {
	Player string
	Token  string
	Args   []string
	Seq    int
}

const (
	TokenPass      = "pass"
	TokenChallenge = "challenge"
	TokenBlock     = "block"
	TokenKeep      = "keep"
)

// Respond validates and applies a response. A nil error means it was applied
// and zero or more notifications were sent. Rejected responses leave the game
// untouched. Errors whose Code is Fatal mean the game is broken.
func (g *Game) Respond(r Response) error {
	if g.status == StatusFinished {
		return newError(CodeGameFinished, "game %s is over", g.id)
	}
	p := g.Player(r.Player)
	if p == nil {
		return newError(CodeNotEligible, "%s is not playing", r.Player)
	}
	d := g.decision
	if d == nil {
		return newError(CodeInconsistentState, "no open decision")
	}
	if r.Seq != 0 && r.Seq != d.Seq() {
		if r.Seq < d.Seq() {
			return newError(CodeDecisionAlreadyResolved, "decision %d was already resolved", r.Seq)
		}
		return newError(CodeIllegalChoice, "decision %d is not open", r.Seq)
	}
	if r.Seq == 0 && g.lastClosed.unanswered[p] {
		return newError(CodeDecisionAlreadyResolved,
			"decision %d was already resolved; answer decision %d with its seq", g.lastClosed.seq, d.Seq())
	}
	if !g.canRespond(p, d) {
		if r.Seq == 0 && g.lastClosed.responders[p] {
			return newError(CodeDecisionAlreadyResolved, "decision %d was already resolved", g.lastClosed.seq)
		}
		return newError(CodeNotEligible, "%s may not respond to: %s", p.ID, d.Describe())
	}

	token := strings.ToLower(strings.TrimSpace(r.Token))
	var err error
	switch d := d.(type) {
	case *ActionDeclaration:
		err = g.declare(p, token, r.Args)
	case *ChallengeWindow:
		err = g.answerChallenge(d, p, token)
	case *BlockWindow:
		err = g.answerBlock(d, p, token, r.Args)
	case *InfluenceLoss:
		err = g.chooseLoss(p, token, r.Args)
	case *ExchangeChoice:
		err = g.chooseExchange(d, p, token, r.Args)
	default:
		err = newError(CodeInconsistentState, "unknown decision %T", d)
	}
	if err != nil {
		return err
	}
	if g.decision != nil {
		// a pass that left the window open
		return nil
	}
	return g.proceed()
}

func (g *Game) canRespond(p *Player, d Decision) bool {
	for _, id := range d.Responders() {
		if id == p.ID {
			return true
		}
	}
	return false
}

// proceed runs the turn forward until a decision needs player input or the
// game ends.
func (g *Game) proceed() error {
	for {
		if g.status == StatusFinished {
			return nil
		}
		if len(g.losses) > 0 {
			l := g.losses[0]
			if !l.player.Alive() {
				g.losses = g.losses[1:]
				continue
			}
			if l.player.Influence() == 1 {
				g.losses = g.losses[1:]
				if err := g.loseInfluence(l.player, 0, l.reason); err != nil {
					return err
				}
				continue
			}
			g.open(&InfluenceLoss{seq: g.nextSeq(), Player: l.player.ID, Reason: l.reason})
			return nil
		}

		t := g.pending
		if t == nil {
			return newError(CodeInconsistentState, "no turn in progress")
		}
		switch t.step {
		case stepDeclare:
			g.open(&ActionDeclaration{seq: g.nextSeq(), Actor: t.actor.ID})
			return nil

		case stepChallengeAction:
			t.step = stepBlock
			if t.action.Claims() {
				if w := g.challengeWindow(StageAction, t.actor, t.action.Role, t); w != nil {
					g.open(w)
					return nil
				}
			}

		case stepBlock:
			t.step = stepEffect
			if w := g.blockWindow(t); w != nil {
				g.open(w)
				return nil
			}

		case stepChallengeBlock:
			t.step = stepBlockStands
			if w := g.challengeWindow(StageBlock, t.blocker, t.block, t); w != nil {
				g.open(w)
				return nil
			}

		case stepBlockStands:
			g.log.WithFields(logrus.Fields{"turn": g.turn, "blocker": t.blocker.ID, "role": t.block.String()}).Info("action blocked")
			t.step = stepEndTurn

		case stepEffect:
			t.step = stepEndTurn
			opened, err := g.applyEffect(t)
			if err != nil {
				return err
			}
			if opened {
				return nil
			}

		case stepEndTurn:
			g.advanceTurn()
		}
	}
}

func (g *Game) challengeWindow(stage Stage, claimant *Player, role RoleID, t *turnState) *ChallengeWindow {
	order := g.livingAfter(claimant)
	if len(order) == 0 {
		return nil
	}
	w := &ChallengeWindow{
		seq:      g.nextSeq(),
		Stage:    stage,
		Claimant: claimant.ID,
		Role:     role,
		Action:   t.action.ID,
		Actor:    t.actor.ID,
		win:      newWindow(g.synchronous, order),
	}
	if t.target != nil {
		w.Target = t.target.ID
	}
	return w
}

func (g *Game) blockWindow(t *turnState) *BlockWindow {
	if !t.actor.Alive() {
		return nil
	}
	blockers := g.blockingRoles(t.action.ID)
	if len(blockers) == 0 {
		return nil
	}
	var order []*Player
	if t.action.Targeted {
		if t.target == nil || !t.target.Alive() {
			return nil
		}
		order = []*Player{t.target}
	} else {
		order = g.livingAfter(t.actor)
	}
	if len(order) == 0 {
		return nil
	}
	w := &BlockWindow{
		seq:    g.nextSeq(),
		Actor:  t.actor.ID,
		Action: t.action.ID,
		Roles:  blockers,
		win:    newWindow(g.synchronous, order),
	}
	if t.target != nil {
		w.Target = t.target.ID
	}
	return w
}

// blockingRoles lists the enabled roles that can block a.
func (g *Game) blockingRoles(a ActionID) []RoleID {
	var out []RoleID
	for _, id := range g.roles {
		if r := rolesByID[id]; r.CanBlock(a) {
			out = append(out, id)
		}
	}
	return out
}

// actionByName resolves an action token among the actions this game allows.
func (g *Game) actionByName(token string) (*Action, bool) {
	for _, a := range actions {
		if a.Name != token && strings.ReplaceAll(a.Name, "_", "") != token {
			continue
		}
		if a.Claims() && !containsRole(g.roles, a.Role) {
			return nil, false
		}
		return a, true
	}
	return nil, false
}

// checkDeclaration validates an action declaration without side effects.
func (g *Game) checkDeclaration(p *Player, a *Action, targetID string) (*Player, error) {
	if p.coins >= MustCoupCoins && a.ID != ActionCoup {
		return nil, newError(CodeIllegalChoice, "with %d coins you must coup", p.coins)
	}
	if p.coins < a.Cost {
		return nil, newError(CodeInsufficientCoins, "%s costs %d coins, you have %d", a.Name, a.Cost, p.coins)
	}
	if !a.Targeted {
		return nil, nil
	}
	if targetID == "" {
		if len(g.livingAfter(p)) == 0 {
			return nil, newError(CodeNoLegalTarget, "nobody to %s", a.Name)
		}
		return nil, newError(CodeNoLegalTarget, "%s needs a target", a.Name)
	}
	target := g.Player(targetID)
	if target == nil || !target.Alive() || target == p {
		return nil, newError(CodeNoLegalTarget, "%s is not a legal target", targetID)
	}
	return target, nil
}

func (g *Game) declare(p *Player, token string, args []string) error {
	a, ok := g.actionByName(token)
	if !ok {
		return newError(CodeIllegalChoice, "%q is not an action in this game", token)
	}
	targetID := ""
	if len(args) > 0 {
		targetID = args[0]
	}
	target, err := g.checkDeclaration(p, a, targetID)
	if err != nil {
		return err
	}

	g.close(p)
	t := g.pending
	t.action = a
	t.target = target
	t.paid = p.takeCoins(a.Cost)
	t.step = stepChallengeAction
	fields := logrus.Fields{"turn": g.turn, "actor": p.ID, "action": a.Name}
	if target != nil {
		fields["target"] = target.ID
	}
	g.log.WithFields(fields).Info("action declared")
	return nil
}

func (g *Game) answerChallenge(d *ChallengeWindow, p *Player, token string) error {
	switch token {
	case TokenPass:
		if d.win.pass(p) {
			g.close(p)
		} else {
			g.reannounce(d)
		}
		return nil
	case TokenChallenge:
	default:
		return newError(CodeIllegalChoice, "choose %s or %s", TokenChallenge, TokenPass)
	}

	t := g.pending
	accused := g.Player(d.Claimant)
	g.close(p)
	truthful, err := g.resolveBluff(accused, d.Role, p)
	if err != nil {
		return err
	}
	switch {
	case d.Stage == StageAction && !truthful:
		// The claim was false: the action never happens.
		t.actor.addCoins(t.paid)
		t.paid = 0
		t.step = stepEndTurn
	case d.Stage == StageBlock && !truthful:
		t.step = stepEffect
	}
	return nil
}

// resolveBluff settles a challenge of accused's claim to role. If the claim
// was true the accused swaps the revealed card for a fresh one and the
// challenger loses influence; otherwise the accused loses influence.
func (g *Game) resolveBluff(accused *Player, role RoleID, challenger *Player) (bool, error) {
	fields := logrus.Fields{"turn": g.turn, "accused": accused.ID, "challenger": challenger.ID, "role": role.String()}
	i, ok := accused.holds(role)
	if !ok {
		g.log.WithFields(fields).Info("challenge succeeded")
		g.losses = append(g.losses, lossRequest{player: accused, reason: fmt.Sprintf("caught bluffing %s", role.DisplayName())})
		return false, nil
	}
	g.log.WithFields(fields).Info("challenge failed")
	g.deck.ReturnAndShuffle(accused.live[i])
	drawn, err := g.deck.Draw(1)
	if err != nil {
		return false, err
	}
	accused.swapLive(i, drawn[0])
	g.notifier.CardsChanged(accused.ID)
	g.losses = append(g.losses, lossRequest{player: challenger, reason: fmt.Sprintf("failed challenge of %s", role.DisplayName())})
	return true, nil
}

func (g *Game) answerBlock(d *BlockWindow, p *Player, token string, args []string) error {
	if token == TokenPass {
		if d.win.pass(p) {
			g.close(p)
		} else {
			g.reannounce(d)
		}
		return nil
	}
	name := token
	if token == TokenBlock {
		if len(args) == 0 {
			return newError(CodeIllegalChoice, "block as which role?")
		}
		name = args[0]
	}
	role, err := LookupRole(name)
	if err != nil || !containsRole(d.Roles, role) {
		return newError(CodeIllegalChoice, "%q cannot block %s", name, d.Action)
	}
	g.close(p)
	t := g.pending
	t.blocker = p
	t.block = role
	t.step = stepChallengeBlock
	g.log.WithFields(logrus.Fields{"turn": g.turn, "blocker": p.ID, "role": role.String()}).Info("block claimed")
	return nil
}

func (g *Game) chooseLoss(p *Player, token string, args []string) error {
	i, err := selectCard(p.live, token, args)
	if err != nil {
		return err
	}
	l := g.losses[0]
	g.losses = g.losses[1:]
	g.close(p)
	return g.loseInfluence(p, i, l.reason)
}

// selectCard resolves a card by 1-based index or role name.
func selectCard(cards []Card, token string, args []string) (int, error) {
	sel := token
	if (token == "lose" || token == "reveal") && len(args) > 0 {
		sel = strings.ToLower(args[0])
	}
	if n, err := strconv.Atoi(sel); err == nil {
		if n < 1 || n > len(cards) {
			return -1, newError(CodeIllegalChoice, "pick a card between 1 and %d", len(cards))
		}
		return n - 1, nil
	}
	role, err := LookupRole(sel)
	if err == nil {
		for i, c := range cards {
			if c.Role == role {
				return i, nil
			}
		}
	}
	return -1, newError(CodeIllegalChoice, "you have no %q card", sel)
}

func (g *Game) chooseExchange(d *ExchangeChoice, p *Player, token string, args []string) error {
	if token != TokenKeep {
		return newError(CodeIllegalChoice, "choose %s followed by %d card(s)", TokenKeep, d.Keep)
	}
	pool := append(append([]Card(nil), p.live...), p.side...)
	keep, err := selectKeep(pool, args, d.Keep)
	if err != nil {
		return err
	}

	g.close(p)
	var kept, returned []Card
	for i, c := range pool {
		if keep[i] {
			kept = append(kept, c)
		} else {
			returned = append(returned, c)
		}
	}
	p.live = kept
	p.side = nil
	g.deck.ReturnAndShuffle(returned...)
	g.log.WithFields(logrus.Fields{"turn": g.turn, "player": p.ID, "returned": len(returned)}).Info("exchange completed")
	g.notifier.CardsChanged(p.ID)
	return nil
}

// selectKeep maps exactly n distinct selections (1-based indices or role
// names) onto pool positions.
func selectKeep(pool []Card, args []string, n int) (map[int]bool, error) {
	if len(args) != n {
		return nil, newError(CodeIllegalChoice, "keep exactly %d card(s)", n)
	}
	keep := make(map[int]bool, n)
	for _, a := range args {
		a = strings.ToLower(strings.TrimSpace(a))
		if idx, err := strconv.Atoi(a); err == nil {
			if idx < 1 || idx > len(pool) || keep[idx-1] {
				return nil, newError(CodeIllegalChoice, "bad card %q", a)
			}
			keep[idx-1] = true
			continue
		}
		role, err := LookupRole(a)
		if err != nil {
			return nil, newError(CodeIllegalChoice, "bad card %q", a)
		}
		found := false
		for i, c := range pool {
			if c.Role == role && !keep[i] {
				keep[i] = true
				found = true
				break
			}
		}
		if !found {
			return nil, newError(CodeIllegalChoice, "no %s left to keep", role)
		}
	}
	return keep, nil
}

// applyEffect carries out an action that was neither voided nor blocked. It
// reports whether it opened a decision.
func (g *Game) applyEffect(t *turnState) (bool, error) {
	actor := t.actor
	if !actor.Alive() {
		return false, nil
	}
	target := t.target
	targetAlive := target != nil && target.Alive()
	fields := logrus.Fields{"turn": g.turn, "actor": actor.ID, "action": t.action.Name}

	switch t.action.ID {
	case ActionIncome:
		actor.addCoins(1)
	case ActionForeignAid:
		actor.addCoins(2)
	case ActionTax:
		actor.addCoins(3)
	case ActionInvest:
		actor.addCoins(4)
	case ActionHarvest:
		actor.addCoins(3)
		if targetAlive {
			target.addCoins(actor.takeCoins(1))
		}
	case ActionSteal:
		if targetAlive {
			actor.addCoins(target.takeCoins(2))
		}
	case ActionLitigate:
		base := actor.coins
		for _, p := range g.livingAfter(actor) {
			if p.coins > base {
				actor.addCoins(p.takeCoins(1))
			}
		}
	case ActionCoup, ActionAssassinate, ActionRaid:
		if targetAlive {
			g.losses = append(g.losses, lossRequest{player: target, reason: fmt.Sprintf("%s by %s", t.action.Name, actor.ID)})
		}
	case ActionExchange:
		return g.startExchange(actor, 2, RoleDirector)
	case ActionReport:
		actor.addCoins(1)
		return g.startExchange(actor, 1, RoleReporter)
	default:
		return false, newError(CodeInconsistentState, "no effect for action %s", t.action.Name)
	}
	g.log.WithFields(fields).Debug("action resolved")
	return false, nil
}

func (g *Game) startExchange(p *Player, n int, source RoleID) (bool, error) {
	drawn, err := g.deck.Draw(n)
	if err != nil {
		return false, err
	}
	p.side = append(p.side, drawn...)
	g.notifier.CardsChanged(p.ID)
	g.open(&ExchangeChoice{seq: g.nextSeq(), Player: p.ID, Source: source, Keep: len(p.live)})
	return true, nil
}
