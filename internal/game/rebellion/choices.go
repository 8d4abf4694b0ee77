package rebellion

import (
	"fmt"
	"strconv"
)

// Choice is one option a player has at the open decision.
type Choice struct {
	Token          string   `json:"token"`
	Description    string   `json:"description"`
	Targets        []string `json:"targets,omitempty"`
	Available      bool     `json:"available"`
	WhyUnavailable string   `json:"why_unavailable,omitempty"`
}

// EligibleResponders maps each player who may answer the open decision to
// the choices available to them.
func (g *Game) EligibleResponders() map[string][]Choice {
	out := make(map[string][]Choice)
	if g.decision == nil {
		return out
	}
	for _, id := range g.decision.Responders() {
		var avail []Choice
		for _, c := range g.ChoiceExplanations(id) {
			if c.Available {
				avail = append(avail, c)
			}
		}
		out[id] = avail
	}
	return out
}

// ChoiceExplanations lists every choice the open decision offers player,
// including unavailable ones with the reason they are unavailable. It returns
// nil when the player cannot answer.
func (g *Game) ChoiceExplanations(player string) []Choice {
	p := g.Player(player)
	if p == nil || g.decision == nil || !g.canRespond(p, g.decision) {
		return nil
	}
	switch d := g.decision.(type) {
	case *ActionDeclaration:
		return g.actionChoices(p)
	case *ChallengeWindow:
		return []Choice{
			{Token: TokenChallenge, Description: fmt.Sprintf("Challenge %s's claim to be %s", d.Claimant, d.Role.DisplayName()), Available: true},
			{Token: TokenPass, Description: "Let the claim stand", Available: true},
		}
	case *BlockWindow:
		out := make([]Choice, 0, len(d.Roles)+1)
		for _, r := range d.Roles {
			out = append(out, Choice{Token: r.String(), Description: fmt.Sprintf("Block %s as %s", d.Action, r.DisplayName()), Available: true})
		}
		return append(out, Choice{Token: TokenPass, Description: "Allow the action", Available: true})
	case *InfluenceLoss:
		return cardChoices(p.live, "Reveal")
	case *ExchangeChoice:
		pool := append(append([]Card(nil), p.live...), p.side...)
		out := cardChoices(pool, "Keep")
		for i := range out {
			out[i].Description = fmt.Sprintf("%s (keep %d)", out[i].Description, d.Keep)
		}
		return out
	}
	return nil
}

func (g *Game) actionChoices(p *Player) []Choice {
	targets := playerIDs(g.livingAfter(p))
	var out []Choice
	for _, a := range actions {
		if a.Claims() && !containsRole(g.roles, a.Role) {
			continue
		}
		c := Choice{Token: a.Name, Description: a.Description, Available: true}
		if a.Claims() {
			c.Description = fmt.Sprintf("%s (%s)", a.Description, a.Role.DisplayName())
		}
		if a.Targeted {
			c.Targets = targets
		}
		sample := ""
		if len(targets) > 0 {
			sample = targets[0]
		}
		if _, err := g.checkDeclaration(p, a, sample); err != nil {
			c.Available = false
			c.WhyUnavailable = err.Error()
			c.Targets = nil
		}
		out = append(out, c)
	}
	return out
}

func cardChoices(cards []Card, verb string) []Choice {
	out := make([]Choice, len(cards))
	for i, c := range cards {
		out[i] = Choice{
			Token:       strconv.Itoa(i + 1),
			Description: fmt.Sprintf("%s %s", verb, c.Role.DisplayName()),
			Available:   true,
		}
	}
	return out
}
