package rebellion

// View is a player's picture of the table. Hidden cards carry no role unless
// the viewer owns them.
type View struct {
	GameID      string        `json:"game_id"`
	Turn        int           `json:"turn"`
	Status      string        `json:"status"`
	Roles       []string      `json:"roles"`
	Synchronous bool          `json:"synchronous"`
	Current     string        `json:"current"`
	Winner      string        `json:"winner,omitempty"`
	DeckCount   int           `json:"deck_count"`
	Decision    *DecisionView `json:"decision,omitempty"`
	Players     []PlayerView  `json:"players"`
}

type DecisionView struct {
	Seq         int          `json:"seq"`
	Kind        DecisionKind `json:"kind"`
	Description string       `json:"description"`
	Waiting     []string     `json:"waiting"`
}

type PlayerView struct {
	ID        string     `json:"id"`
	Seat      int        `json:"seat"`
	Coins     int        `json:"coins"`
	Influence int        `json:"influence"`
	Alive     bool       `json:"alive"`
	Live      []CardView `json:"live"`
	Side      []CardView `json:"side,omitempty"`
	Revealed  []Card     `json:"revealed"`
}

// CardView is a card as seen by someone. Hidden cards carry neither ID nor
// role.
type CardView struct {
	ID   int    `json:"id,omitempty"`
	Role string `json:"role,omitempty"`
}

// View renders the table for viewer. An empty or unknown viewer sees only
// public information.
func (g *Game) View(viewer string) View {
	return g.view(g.Player(viewer), false)
}

// Snapshot renders the table with every card face up.
func (g *Game) Snapshot() View {
	return g.view(nil, true)
}

func (g *Game) view(viewer *Player, all bool) View {
	v := View{
		GameID:      g.id,
		Turn:        g.turn,
		Status:      g.status.String(),
		Roles:       RoleNames(g.roles),
		Synchronous: g.synchronous,
		Current:     g.CurrentPlayer(),
		DeckCount:   g.deck.Count(),
	}
	if w, ok := g.Winner(); ok {
		v.Winner = w
	}
	if d := g.decision; d != nil {
		v.Decision = &DecisionView{Seq: d.Seq(), Kind: d.Kind(), Description: d.Describe(), Waiting: d.Responders()}
	}
	for _, p := range g.players {
		show := all || p == viewer
		pv := PlayerView{
			ID:        p.ID,
			Seat:      p.Seat,
			Coins:     p.coins,
			Influence: p.Influence(),
			Alive:     p.Alive(),
			Live:      cardViews(p.live, show),
			Revealed:  p.RevealedCards(),
		}
		if len(p.side) > 0 {
			pv.Side = cardViews(p.side, show)
		}
		v.Players = append(v.Players, pv)
	}
	return v
}

func cardViews(cards []Card, show bool) []CardView {
	out := make([]CardView, len(cards))
	for i, c := range cards {
		if show {
			out[i] = CardView{ID: c.ID, Role: c.Role.String()}
		}
	}
	return out
}
