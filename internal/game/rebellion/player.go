package rebellion

// Player is one seat at the table.
type Player struct {
	ID   string
	Seat int

	coins    int
	live     []Card
	side     []Card
	revealed []Card
}

func (p *Player) Coins() int     { return p.coins }
func (p *Player) Influence() int { return len(p.live) }
func (p *Player) Alive() bool    { return len(p.live) > 0 }

// LiveCards returns a copy of the player's hidden hand.
func (p *Player) LiveCards() []Card { return append([]Card(nil), p.live...) }

// SideCards returns a copy of cards drawn for a pending exchange.
func (p *Player) SideCards() []Card { return append([]Card(nil), p.side...) }

// RevealedCards returns a copy of the player's face-up cards.
func (p *Player) RevealedCards() []Card { return append([]Card(nil), p.revealed...) }

func (p *Player) holds(r RoleID) (int, bool) {
	for i, c := range p.live {
		if c.Role == r {
			return i, true
		}
	}
	return -1, false
}

func (p *Player) addCoins(n int) { p.coins += n }

// takeCoins removes up to n coins and returns how many were taken.
func (p *Player) takeCoins(n int) int {
	if n > p.coins {
		n = p.coins
	}
	p.coins -= n
	return n
}

// reveal moves live card i face up.
func (p *Player) reveal(i int) Card {
	c := p.live[i]
	p.live = append(p.live[:i:i], p.live[i+1:]...)
	p.revealed = append(p.revealed, c)
	return c
}

// swapLive removes live card i and puts replacement in its place.
func (p *Player) swapLive(i int, replacement Card) Card {
	old := p.live[i]
	p.live[i] = replacement
	return old
}

func (p *Player) roleCounts(into map[RoleID]int) {
	for _, pile := range [][]Card{p.live, p.side, p.revealed} {
		for _, c := range pile {
			into[c.Role]++
		}
	}
}

// PlayerNode links seats in turn order (ring).
type PlayerNode struct {
	Player *Player
	Next   *PlayerNode
}

// WalkOnce visits the ring once starting at n until fn returns true, and
// returns the node it stopped on.
func (n *PlayerNode) WalkOnce(fn func(*PlayerNode) bool) *PlayerNode {
	if n == nil {
		return nil
	}
	cur := n
	for {
		if fn(cur) {
			return cur
		}
		cur = cur.Next
		if cur == nil || cur == n {
			break
		}
	}
	return nil
}
